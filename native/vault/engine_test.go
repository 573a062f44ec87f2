package vault

import (
	"math/big"

	"flashvault/core/types"
	"flashvault/crypto"
)

type mockEngineState struct {
	config   *Config
	vault    *Vault
	records  map[string]*FlashLoanRecord
	accounts map[string]*types.Account
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		records:  make(map[string]*FlashLoanRecord),
		accounts: make(map[string]*types.Account),
	}
}

func (m *mockEngineState) key(addr crypto.Address) string {
	return string(addr.Bytes())
}

func (m *mockEngineState) GetConfig() (*Config, error) {
	return m.config, nil
}

func (m *mockEngineState) PutConfig(cfg *Config) error {
	m.config = cfg
	return nil
}

func (m *mockEngineState) GetVault() (*Vault, error) {
	return m.vault, nil
}

func (m *mockEngineState) PutVault(v *Vault) error {
	m.vault = v
	return nil
}

func (m *mockEngineState) GetLoanRecord(borrower crypto.Address) (*FlashLoanRecord, error) {
	return m.records[m.key(borrower)], nil
}

func (m *mockEngineState) PutLoanRecord(record *FlashLoanRecord) error {
	if record == nil {
		return nil
	}
	m.records[m.key(record.Borrower)] = record
	return nil
}

func (m *mockEngineState) GetAccount(addr crypto.Address) (*types.Account, error) {
	return m.accounts[m.key(addr)], nil
}

func (m *mockEngineState) PutAccount(addr crypto.Address, account *types.Account) error {
	m.accounts[m.key(addr)] = account
	return nil
}

func makeAddress(suffix byte) crypto.Address {
	raw := make([]byte, 20)
	raw[len(raw)-1] = suffix
	return crypto.NewAddress(crypto.VaultPrefix, raw)
}

func fundedAccount(balance int64) *types.Account {
	return &types.Account{BalanceSOL: big.NewInt(balance), BalanceFSOL: big.NewInt(0)}
}

// newTestEngine returns an engine over an initialized vault with the given
// parameters and a funded module account mirror.
func newTestEngine(params InitParams) (*Engine, *mockEngineState, crypto.Address) {
	moduleAddr := makeAddress(0xFF)
	authority := makeAddress(0xAA)

	engine := NewEngine(moduleAddr)
	state := newMockEngineState()
	engine.SetState(state)

	cfg := &Config{
		Authority:          authority,
		Treasury:           params.Treasury,
		FeeRateBps:         params.FeeRateBps,
		TreasurySplitBps:   params.TreasurySplitBps,
		MaxFlashLoanAmount: params.MaxFlashLoanAmount,
		CooldownSlots:      params.CooldownSlots,
		MinStake:           params.MinStake,
	}
	cfg.EnsureDefaults()
	state.config = cfg

	v := &Vault{}
	v.EnsureDefaults()
	state.vault = v

	return engine, state, authority
}

func defaultParams() InitParams {
	return InitParams{
		FeeRateBps:         5,
		TreasurySplitBps:   1000,
		Treasury:           makeAddress(0xEE),
		MaxFlashLoanAmount: big.NewInt(10_000_000_000),
		CooldownSlots:      100,
		MinStake:           big.NewInt(1),
	}
}

package state

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"

	"flashvault/core/types"
	"flashvault/crypto"
	"flashvault/native/vault"
	"flashvault/storage"
)

var (
	configKey     = []byte("vault/config")
	ledgerKey     = []byte("vault/ledger")
	genesisKey    = []byte("vault/genesis")
	recordPrefix  = []byte("vault/record/")
	accountPrefix = []byte("vault/account/")
)

// Manager persists vault state in a key-value store using RLP encoding.
// Stored mirror structs keep the on-disk shape free of types the codec cannot
// handle (addresses are flattened to prefix + bytes).
//
// Writes can be staged: between BeginBatch and CommitBatch every put lands in
// memory and is flushed as one atomic database write, so a storage fault
// mid-operation never leaves a partially committed ledger.
type Manager struct {
	db     storage.Database
	staged map[string][]byte
}

// NewManager wraps the given database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// BeginBatch stages subsequent writes in memory until CommitBatch. Reads see
// staged values. Calling BeginBatch again discards the previous stage.
func (m *Manager) BeginBatch() {
	m.staged = make(map[string][]byte)
}

// CommitBatch flushes the staged writes as one atomic database write and
// leaves the manager in write-through mode. A no-op when nothing is staged.
func (m *Manager) CommitBatch() error {
	if m.staged == nil {
		return nil
	}
	kvs := make([]storage.KeyValue, 0, len(m.staged))
	for key, value := range m.staged {
		kvs = append(kvs, storage.KeyValue{Key: []byte(key), Value: value})
	}
	m.staged = nil
	if len(kvs) == 0 {
		return nil
	}
	return m.db.Write(kvs)
}

// DiscardBatch drops every staged write.
func (m *Manager) DiscardBatch() {
	m.staged = nil
}

func (m *Manager) get(key []byte, out interface{}) (bool, error) {
	raw, ok := m.staged[string(key)]
	if !ok {
		var err error
		raw, err = m.db.Get(key)
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) put(key []byte, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	if m.staged != nil {
		m.staged[string(key)] = raw
		return nil
	}
	return m.db.Put(key, raw)
}

type storedAddress struct {
	Prefix string
	Bytes  []byte
}

func toStoredAddress(addr crypto.Address) storedAddress {
	return storedAddress{Prefix: string(addr.Prefix()), Bytes: addr.Bytes()}
}

func (s storedAddress) address() crypto.Address {
	return crypto.NewAddress(crypto.AddressPrefix(s.Prefix), s.Bytes)
}

type storedFeeTier struct {
	Threshold *big.Int
	FeeBps    uint64
}

type storedConfig struct {
	Authority          storedAddress
	Treasury           storedAddress
	FeeRateBps         uint64
	TreasurySplitBps   uint64
	MaxFlashLoanAmount *big.Int
	CooldownSlots      uint64
	MinStake           *big.Int
	Paused             bool
	FeeTiers           []storedFeeTier
}

type storedVault struct {
	TotalBaseDeposited   *big.Int
	TotalSyntheticSupply *big.Int
	AccruedYield         *big.Int
	TreasuryOwed         *big.Int
}

type storedLoanRecord struct {
	Borrower          storedAddress
	LastBorrowSlot    uint64
	OutstandingAmount *big.Int
}

type storedAccount struct {
	BalanceSOL  *big.Int
	BalanceFSOL *big.Int
}

// GetConfig returns the stored configuration, or nil when Initialize has not
// run yet.
func (m *Manager) GetConfig() (*vault.Config, error) {
	var stored storedConfig
	ok, err := m.get(configKey, &stored)
	if err != nil || !ok {
		return nil, err
	}
	cfg := &vault.Config{
		Authority:          stored.Authority.address(),
		Treasury:           stored.Treasury.address(),
		FeeRateBps:         stored.FeeRateBps,
		TreasurySplitBps:   stored.TreasurySplitBps,
		MaxFlashLoanAmount: stored.MaxFlashLoanAmount,
		CooldownSlots:      stored.CooldownSlots,
		MinStake:           stored.MinStake,
		Paused:             stored.Paused,
	}
	for _, tier := range stored.FeeTiers {
		cfg.FeeTiers = append(cfg.FeeTiers, vault.FeeTier{Threshold: tier.Threshold, FeeBps: tier.FeeBps})
	}
	cfg.EnsureDefaults()
	return cfg, nil
}

// PutConfig persists the configuration.
func (m *Manager) PutConfig(cfg *vault.Config) error {
	if cfg == nil {
		return fmt.Errorf("state: nil config")
	}
	cfg.EnsureDefaults()
	stored := storedConfig{
		Authority:          toStoredAddress(cfg.Authority),
		Treasury:           toStoredAddress(cfg.Treasury),
		FeeRateBps:         cfg.FeeRateBps,
		TreasurySplitBps:   cfg.TreasurySplitBps,
		MaxFlashLoanAmount: cfg.MaxFlashLoanAmount,
		CooldownSlots:      cfg.CooldownSlots,
		MinStake:           cfg.MinStake,
		Paused:             cfg.Paused,
	}
	for _, tier := range cfg.FeeTiers {
		stored.FeeTiers = append(stored.FeeTiers, storedFeeTier{Threshold: tier.Threshold, FeeBps: tier.FeeBps})
	}
	return m.put(configKey, &stored)
}

// GetVault returns the stored pool ledger, or nil before initialization.
func (m *Manager) GetVault() (*vault.Vault, error) {
	var stored storedVault
	ok, err := m.get(ledgerKey, &stored)
	if err != nil || !ok {
		return nil, err
	}
	v := &vault.Vault{
		TotalBaseDeposited:   stored.TotalBaseDeposited,
		TotalSyntheticSupply: stored.TotalSyntheticSupply,
		AccruedYield:         stored.AccruedYield,
		TreasuryOwed:         stored.TreasuryOwed,
	}
	v.EnsureDefaults()
	return v, nil
}

// PutVault persists the pool ledger.
func (m *Manager) PutVault(v *vault.Vault) error {
	if v == nil {
		return fmt.Errorf("state: nil vault")
	}
	v.EnsureDefaults()
	stored := storedVault{
		TotalBaseDeposited:   v.TotalBaseDeposited,
		TotalSyntheticSupply: v.TotalSyntheticSupply,
		AccruedYield:         v.AccruedYield,
		TreasuryOwed:         v.TreasuryOwed,
	}
	return m.put(ledgerKey, &stored)
}

func recordKey(borrower crypto.Address) []byte {
	return append(append([]byte(nil), recordPrefix...), borrower.Bytes()...)
}

// GetLoanRecord returns the borrower's cooldown record, or nil before their
// first loan.
func (m *Manager) GetLoanRecord(borrower crypto.Address) (*vault.FlashLoanRecord, error) {
	var stored storedLoanRecord
	ok, err := m.get(recordKey(borrower), &stored)
	if err != nil || !ok {
		return nil, err
	}
	record := &vault.FlashLoanRecord{
		Borrower:          stored.Borrower.address(),
		LastBorrowSlot:    stored.LastBorrowSlot,
		OutstandingAmount: stored.OutstandingAmount,
	}
	record.EnsureDefaults()
	return record, nil
}

// PutLoanRecord persists a borrower's cooldown record.
func (m *Manager) PutLoanRecord(record *vault.FlashLoanRecord) error {
	if record == nil {
		return fmt.Errorf("state: nil loan record")
	}
	record.EnsureDefaults()
	stored := storedLoanRecord{
		Borrower:          toStoredAddress(record.Borrower),
		LastBorrowSlot:    record.LastBorrowSlot,
		OutstandingAmount: record.OutstandingAmount,
	}
	return m.put(recordKey(record.Borrower), &stored)
}

func accountKey(addr crypto.Address) []byte {
	return append(append([]byte(nil), accountPrefix...), addr.Bytes()...)
}

// GetAccount returns the account record for the address, or nil when the
// account has never been written. Callers treat nil as a zero-balance account.
func (m *Manager) GetAccount(addr crypto.Address) (*types.Account, error) {
	var stored storedAccount
	ok, err := m.get(accountKey(addr), &stored)
	if err != nil || !ok {
		return nil, err
	}
	acc := &types.Account{
		BalanceSOL:  stored.BalanceSOL,
		BalanceFSOL: stored.BalanceFSOL,
	}
	acc.EnsureDefaults()
	return acc, nil
}

// PutAccount persists an account record.
func (m *Manager) PutAccount(addr crypto.Address, acc *types.Account) error {
	if acc == nil {
		return fmt.Errorf("state: nil account")
	}
	acc.EnsureDefaults()
	stored := storedAccount{
		BalanceSOL:  acc.BalanceSOL,
		BalanceFSOL: acc.BalanceFSOL,
	}
	return m.put(accountKey(addr), &stored)
}

// GenesisApplied reports whether genesis allocations were already written.
func (m *Manager) GenesisApplied() (bool, error) {
	var applied bool
	ok, err := m.get(genesisKey, &applied)
	if err != nil {
		return false, err
	}
	return ok && applied, nil
}

// MarkGenesisApplied records that genesis allocations have been written.
func (m *Manager) MarkGenesisApplied() error {
	return m.put(genesisKey, true)
}

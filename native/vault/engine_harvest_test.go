package vault

import (
	"math/big"
	"testing"

	"flashvault/core/types"
)

// seedYieldVault installs a pool with accrued yield and two synthetic holders
// at a 75/25 split.
func seedYieldVault(state *mockEngineState) (major, minor *types.Account) {
	state.vault = &Vault{
		TotalBaseDeposited:   big.NewInt(100_010_000),
		TotalSyntheticSupply: big.NewInt(100_000_000),
		AccruedYield:         big.NewInt(10_000),
		TreasuryOwed:         big.NewInt(0),
	}
	module := makeAddress(0xFF)
	state.accounts[state.key(module)] = fundedAccount(100_010_000)

	major = &types.Account{BalanceSOL: big.NewInt(0), BalanceFSOL: big.NewInt(75_000_000)}
	minor = &types.Account{BalanceSOL: big.NewInt(0), BalanceFSOL: big.NewInt(25_000_000)}
	state.accounts[state.key(makeAddress(0x20))] = major
	state.accounts[state.key(makeAddress(0x21))] = minor
	return major, minor
}

func TestHarvestProportionalEntitlement(t *testing.T) {
	engine, state, _ := newTestEngine(defaultParams())
	major, _ := seedYieldVault(state)

	paid, err := engine.Harvest(makeAddress(0x20), big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	// 10_000 * 75M / 100M = 7_500
	if paid.Cmp(big.NewInt(7_500)) != 0 {
		t.Fatalf("expected payout 7500, got %s", paid)
	}
	if major.BalanceSOL.Cmp(big.NewInt(7_500)) != 0 {
		t.Fatalf("payout not credited, balance %s", major.BalanceSOL)
	}
	if state.vault.AccruedYield.Cmp(big.NewInt(2_500)) != 0 {
		t.Fatalf("unexpected remaining yield: %s", state.vault.AccruedYield)
	}
	if state.vault.TotalBaseDeposited.Cmp(big.NewInt(100_002_500)) != 0 {
		t.Fatalf("total base not reduced by payout: %s", state.vault.TotalBaseDeposited)
	}
	// Synthetic supply is untouched by harvest.
	if state.vault.TotalSyntheticSupply.Cmp(big.NewInt(100_000_000)) != 0 {
		t.Fatalf("supply changed: %s", state.vault.TotalSyntheticSupply)
	}
}

func TestHarvestCappedByRequest(t *testing.T) {
	engine, state, _ := newTestEngine(defaultParams())
	major, _ := seedYieldVault(state)

	paid, err := engine.Harvest(makeAddress(0x20), big.NewInt(3_000))
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if paid.Cmp(big.NewInt(3_000)) != 0 {
		t.Fatalf("expected payout capped at 3000, got %s", paid)
	}
	if major.BalanceSOL.Cmp(big.NewInt(3_000)) != 0 {
		t.Fatalf("unexpected balance: %s", major.BalanceSOL)
	}
	if state.vault.AccruedYield.Cmp(big.NewInt(7_000)) != 0 {
		t.Fatalf("unexpected remaining yield: %s", state.vault.AccruedYield)
	}
}

func TestHarvestZeroCases(t *testing.T) {
	engine, state, _ := newTestEngine(defaultParams())
	seedYieldVault(state)

	// Zero request is a successful no-op.
	paid, err := engine.Harvest(makeAddress(0x20), big.NewInt(0))
	if err != nil {
		t.Fatalf("harvest zero request: %v", err)
	}
	if paid.Sign() != 0 {
		t.Fatalf("expected zero payout, got %s", paid)
	}

	// A non-holder has no entitlement but harvest still succeeds.
	outsider := makeAddress(0x22)
	state.accounts[state.key(outsider)] = fundedAccount(0)
	paid, err = engine.Harvest(outsider, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("harvest as non-holder: %v", err)
	}
	if paid.Sign() != 0 {
		t.Fatalf("expected zero payout for non-holder, got %s", paid)
	}
	if state.vault.AccruedYield.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("yield pool changed on zero payouts: %s", state.vault.AccruedYield)
	}
}

func TestHarvestNoYieldAccrued(t *testing.T) {
	engine, state, _ := newTestEngine(defaultParams())
	staker := makeAddress(0x23)
	state.accounts[state.key(staker)] = fundedAccount(1_000_000)
	if _, err := engine.Stake(staker, big.NewInt(500_000)); err != nil {
		t.Fatalf("stake: %v", err)
	}

	paid, err := engine.Harvest(staker, big.NewInt(1_000))
	if err != nil {
		t.Fatalf("harvest: %v", err)
	}
	if paid.Sign() != 0 {
		t.Fatalf("expected zero payout before any fees accrue, got %s", paid)
	}
}

func TestHarvestRejectsNegativeRequest(t *testing.T) {
	engine, state, _ := newTestEngine(defaultParams())
	seedYieldVault(state)

	if _, err := engine.Harvest(makeAddress(0x20), big.NewInt(-1)); err != ErrInvalidAmount {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

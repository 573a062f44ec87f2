package vault

import (
	"errors"
	"math/big"
	"testing"

	"flashvault/crypto"
)

func newBareEngine() (*Engine, *mockEngineState) {
	engine := NewEngine(makeAddress(0xFF))
	state := newMockEngineState()
	engine.SetState(state)
	return engine, state
}

func TestInitializeOnce(t *testing.T) {
	engine, state := newBareEngine()
	authority := makeAddress(0xAA)

	cfg, err := engine.Initialize(authority, defaultParams())
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if !cfg.Authority.Equal(authority) {
		t.Fatalf("authority not recorded")
	}
	if cfg.FeeRateBps != 5 || cfg.TreasurySplitBps != 1000 || cfg.CooldownSlots != 100 {
		t.Fatalf("parameters not recorded: %+v", cfg)
	}
	if state.vault == nil || state.vault.TotalBaseDeposited.Sign() != 0 {
		t.Fatalf("expected an empty vault after initialize")
	}

	if _, err := engine.Initialize(authority, defaultParams()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
}

func TestInitializeParameterBounds(t *testing.T) {
	authority := makeAddress(0xAA)

	cases := []struct {
		name   string
		mutate func(*InitParams)
	}{
		{"fee rate over 10000 bps", func(p *InitParams) { p.FeeRateBps = 10_001 }},
		{"treasury split over 10000 bps", func(p *InitParams) { p.TreasurySplitBps = 10_001 }},
		{"zero treasury address", func(p *InitParams) { p.Treasury = crypto.Address{} }},
		{"negative max loan", func(p *InitParams) { p.MaxFlashLoanAmount = big.NewInt(-1) }},
		{"negative min stake", func(p *InitParams) { p.MinStake = big.NewInt(-1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, _ := newBareEngine()
			params := defaultParams()
			tc.mutate(&params)
			if _, err := engine.Initialize(authority, params); !errors.Is(err, ErrInvalidParameter) {
				t.Fatalf("expected ErrInvalidParameter, got %v", err)
			}
		})
	}

	t.Run("zero authority", func(t *testing.T) {
		engine, _ := newBareEngine()
		if _, err := engine.Initialize(crypto.Address{}, defaultParams()); !errors.Is(err, ErrInvalidParameter) {
			t.Fatalf("expected ErrInvalidParameter, got %v", err)
		}
	})
}

func TestAdminOpsRequireAuthority(t *testing.T) {
	engine, _, _ := newTestEngine(defaultParams())
	impostor := makeAddress(0xBB)

	if err := engine.SetPause(impostor, true); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("set pause: expected ErrUnauthorized, got %v", err)
	}
	if err := engine.UpdateFees(impostor, 10); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("update fees: expected ErrUnauthorized, got %v", err)
	}
	if err := engine.AddFeeTier(impostor, big.NewInt(100), 10); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("add fee tier: expected ErrUnauthorized, got %v", err)
	}
	if err := engine.ClearFeeTiers(impostor); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("clear fee tiers: expected ErrUnauthorized, got %v", err)
	}
	if _, err := engine.WithdrawTreasuryFees(impostor, big.NewInt(1)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("withdraw treasury: expected ErrUnauthorized, got %v", err)
	}
}

func TestUpdateFeesBounds(t *testing.T) {
	engine, state, authority := newTestEngine(defaultParams())

	if err := engine.UpdateFees(authority, 10_001); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if err := engine.UpdateFees(authority, 30); err != nil {
		t.Fatalf("update fees: %v", err)
	}
	if state.config.FeeRateBps != 30 {
		t.Fatalf("fee rate not persisted: %d", state.config.FeeRateBps)
	}
}

func TestFeeTierLifecycle(t *testing.T) {
	engine, state, authority := newTestEngine(defaultParams())

	if err := engine.AddFeeTier(authority, big.NewInt(0), 10); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for zero threshold, got %v", err)
	}
	if err := engine.AddFeeTier(authority, big.NewInt(1_000), 10_001); !errors.Is(err, ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter for oversized bps, got %v", err)
	}

	if err := engine.AddFeeTier(authority, big.NewInt(1_000), 10); err != nil {
		t.Fatalf("add fee tier: %v", err)
	}
	if err := engine.AddFeeTier(authority, big.NewInt(5_000), 20); err != nil {
		t.Fatalf("add fee tier: %v", err)
	}
	if len(state.config.FeeTiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d", len(state.config.FeeTiers))
	}

	if err := engine.ClearFeeTiers(authority); err != nil {
		t.Fatalf("clear fee tiers: %v", err)
	}
	if len(state.config.FeeTiers) != 0 {
		t.Fatalf("tiers not cleared")
	}
}

func TestWithdrawTreasuryFees(t *testing.T) {
	engine, state, authority := newTestEngine(defaultParams())
	treasury := defaultParams().Treasury

	state.vault = &Vault{
		TotalBaseDeposited:   big.NewInt(1_000_000),
		TotalSyntheticSupply: big.NewInt(1_000_000),
		AccruedYield:         big.NewInt(0),
		TreasuryOwed:         big.NewInt(4_000),
	}
	state.accounts[state.key(makeAddress(0xFF))] = fundedAccount(1_000_000)

	if _, err := engine.WithdrawTreasuryFees(authority, big.NewInt(5_000)); !errors.Is(err, ErrInsufficientLiquidity) {
		t.Fatalf("expected ErrInsufficientLiquidity over the owed amount, got %v", err)
	}

	paid, err := engine.WithdrawTreasuryFees(authority, big.NewInt(4_000))
	if err != nil {
		t.Fatalf("withdraw treasury: %v", err)
	}
	if paid.Cmp(big.NewInt(4_000)) != 0 {
		t.Fatalf("unexpected paid amount: %s", paid)
	}
	if state.vault.TreasuryOwed.Sign() != 0 {
		t.Fatalf("treasury owed not cleared: %s", state.vault.TreasuryOwed)
	}
	if state.vault.TotalBaseDeposited.Cmp(big.NewInt(996_000)) != 0 {
		t.Fatalf("total base not reduced: %s", state.vault.TotalBaseDeposited)
	}
	if state.accounts[state.key(treasury)].BalanceSOL.Cmp(big.NewInt(4_000)) != 0 {
		t.Fatalf("treasury account not credited")
	}
}

func TestPauseRoundTrip(t *testing.T) {
	engine, state, authority := newTestEngine(defaultParams())

	if err := engine.SetPause(authority, true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !state.config.Paused {
		t.Fatalf("pause not persisted")
	}
	if err := engine.SetPause(authority, false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if state.config.Paused {
		t.Fatalf("unpause not persisted")
	}
}

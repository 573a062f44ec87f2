package vault

import (
	"math/big"

	"flashvault/core/events"
	"flashvault/crypto"
	nativecommon "flashvault/native/common"
)

func (e *Engine) authorizedConfig(caller crypto.Address) (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if !caller.Equal(cfg.Authority) {
		return nil, ErrUnauthorized
	}
	return cfg, nil
}

// SetPause halts or resumes flash loan admission. Stake, unstake and harvest
// are unaffected.
func (e *Engine) SetPause(caller crypto.Address, paused bool) error {
	cfg, err := e.authorizedConfig(caller)
	if err != nil {
		return err
	}
	cfg.Paused = paused
	if err := e.state.PutConfig(cfg); err != nil {
		return err
	}
	e.emit(events.ConfigUpdated{Authority: caller, Field: "paused"})
	return nil
}

// UpdateFees replaces the base flash loan fee rate.
func (e *Engine) UpdateFees(caller crypto.Address, feeRateBps uint64) error {
	cfg, err := e.authorizedConfig(caller)
	if err != nil {
		return err
	}
	if feeRateBps > maxBps {
		return ErrInvalidParameter
	}
	cfg.FeeRateBps = feeRateBps
	if err := e.state.PutConfig(cfg); err != nil {
		return err
	}
	e.emit(events.ConfigUpdated{Authority: caller, Field: "feeRateBps"})
	return nil
}

// AddFeeTier appends an amount-tiered fee override. The most recently added
// tier whose threshold the loan amount reaches takes precedence.
func (e *Engine) AddFeeTier(caller crypto.Address, threshold *big.Int, feeBps uint64) error {
	cfg, err := e.authorizedConfig(caller)
	if err != nil {
		return err
	}
	if threshold == nil || threshold.Sign() <= 0 || feeBps > maxBps {
		return ErrInvalidParameter
	}
	cfg.FeeTiers = append(cfg.FeeTiers, FeeTier{Threshold: new(big.Int).Set(threshold), FeeBps: feeBps})
	if err := e.state.PutConfig(cfg); err != nil {
		return err
	}
	e.emit(events.ConfigUpdated{Authority: caller, Field: "feeTiers"})
	return nil
}

// ClearFeeTiers removes every tier, restoring the base fee rate for all loans.
func (e *Engine) ClearFeeTiers(caller crypto.Address) error {
	cfg, err := e.authorizedConfig(caller)
	if err != nil {
		return err
	}
	cfg.FeeTiers = nil
	if err := e.state.PutConfig(cfg); err != nil {
		return err
	}
	e.emit(events.ConfigUpdated{Authority: caller, Field: "feeTiers"})
	return nil
}

// WithdrawTreasuryFees transfers accrued treasury fees from the pool to the
// configured treasury account. The paid amount is returned.
func (e *Engine) WithdrawTreasuryFees(caller crypto.Address, amount *big.Int) (*big.Int, error) {
	cfg, err := e.authorizedConfig(caller)
	if err != nil {
		return nil, err
	}
	if e.activeLoan != nil {
		return nil, ErrReentrancy
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	v, err := e.loadVault()
	if err != nil {
		return nil, err
	}
	if v.TreasuryOwed.Cmp(amount) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	if moduleAcc.BalanceSOL.Cmp(amount) < 0 {
		return nil, ErrInsufficientLiquidity
	}
	treasuryAcc, err := e.loadAccount(cfg.Treasury)
	if err != nil {
		return nil, err
	}

	moduleAcc.BalanceSOL = new(big.Int).Sub(moduleAcc.BalanceSOL, amount)
	treasuryAcc.BalanceSOL = new(big.Int).Add(treasuryAcc.BalanceSOL, amount)
	v.TreasuryOwed = new(big.Int).Sub(v.TreasuryOwed, amount)
	v.TotalBaseDeposited = new(big.Int).Sub(v.TotalBaseDeposited, amount)

	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(cfg.Treasury, treasuryAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutVault(v); err != nil {
		return nil, err
	}

	e.emit(events.TreasuryWithdrawn{Treasury: cfg.Treasury, Amount: new(big.Int).Set(amount)})
	return new(big.Int).Set(amount), nil
}

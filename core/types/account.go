package types

import "math/big"

// Account holds the two balances every participant carries: the base asset
// (SOL) and the synthetic claim token (FSOL) minted against vault deposits.
// The vault engine only ever observes aggregate totals; individual claim
// balances live here and are touched exclusively through mint and burn.
type Account struct {
	BalanceSOL  *big.Int `json:"balanceSOL"`
	BalanceFSOL *big.Int `json:"balanceFSOL"`
}

// EnsureDefaults populates nil balances so callers can mutate safely.
func (a *Account) EnsureDefaults() {
	if a.BalanceSOL == nil {
		a.BalanceSOL = big.NewInt(0)
	}
	if a.BalanceFSOL == nil {
		a.BalanceFSOL = big.NewInt(0)
	}
}

// Clone returns a deep copy so staged mutations never leak into shared state.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{}
	if a.BalanceSOL != nil {
		clone.BalanceSOL = new(big.Int).Set(a.BalanceSOL)
	}
	if a.BalanceFSOL != nil {
		clone.BalanceFSOL = new(big.Int).Set(a.BalanceFSOL)
	}
	return clone
}

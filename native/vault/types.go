package vault

import (
	"math/big"

	"flashvault/crypto"
)

// Vault captures the authoritative pool accounting. AccruedYield and
// TreasuryOwed are earmarked sub-balances of TotalBaseDeposited: the flash
// loan fee grows all three views consistently and payouts shrink them
// together.
type Vault struct {
	// TotalBaseDeposited is the aggregate base asset currently held by the
	// pool, fees included.
	TotalBaseDeposited *big.Int
	// TotalSyntheticSupply tracks synthetic claims minted minus burned.
	TotalSyntheticSupply *big.Int
	// AccruedYield is the portion of the pool reserved for harvest payouts.
	AccruedYield *big.Int
	// TreasuryOwed is the portion of the pool owed to the protocol treasury.
	TreasuryOwed *big.Int
}

// EnsureDefaults populates nil balances so mutation is always safe.
func (v *Vault) EnsureDefaults() {
	if v.TotalBaseDeposited == nil {
		v.TotalBaseDeposited = big.NewInt(0)
	}
	if v.TotalSyntheticSupply == nil {
		v.TotalSyntheticSupply = big.NewInt(0)
	}
	if v.AccruedYield == nil {
		v.AccruedYield = big.NewInt(0)
	}
	if v.TreasuryOwed == nil {
		v.TreasuryOwed = big.NewInt(0)
	}
}

// Clone returns a deep copy of the vault ledger.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	clone := &Vault{}
	if v.TotalBaseDeposited != nil {
		clone.TotalBaseDeposited = new(big.Int).Set(v.TotalBaseDeposited)
	}
	if v.TotalSyntheticSupply != nil {
		clone.TotalSyntheticSupply = new(big.Int).Set(v.TotalSyntheticSupply)
	}
	if v.AccruedYield != nil {
		clone.AccruedYield = new(big.Int).Set(v.AccruedYield)
	}
	if v.TreasuryOwed != nil {
		clone.TreasuryOwed = new(big.Int).Set(v.TreasuryOwed)
	}
	return clone
}

// FlashLoanRecord tracks the per-borrower cooldown. OutstandingAmount is zero
// outside the lifetime of a single loan; the in-flight amount lives on the
// LoanVoucher and is never written to durable state.
type FlashLoanRecord struct {
	Borrower          crypto.Address
	LastBorrowSlot    uint64
	OutstandingAmount *big.Int
}

// EnsureDefaults populates nil balances on a freshly created record.
func (r *FlashLoanRecord) EnsureDefaults() {
	if r.OutstandingAmount == nil {
		r.OutstandingAmount = big.NewInt(0)
	}
}

// FeeTier overrides the base fee rate for loans at or above its threshold.
type FeeTier struct {
	Threshold *big.Int
	FeeBps    uint64
}

// Clone returns a deep copy of the tier.
func (t FeeTier) Clone() FeeTier {
	clone := FeeTier{FeeBps: t.FeeBps}
	if t.Threshold != nil {
		clone.Threshold = new(big.Int).Set(t.Threshold)
	}
	return clone
}

package vault

import "math/big"

// StakeableBase returns the portion of the pool that backs synthetic claims:
// everything deposited minus the treasury earmark. The treasury's cut is held
// inside the pool account until withdrawal but must never move the exchange
// rate, or stakers could redeem it.
func StakeableBase(v *Vault) *big.Int {
	if v == nil || v.TotalBaseDeposited == nil {
		return big.NewInt(0)
	}
	base := new(big.Int).Set(v.TotalBaseDeposited)
	if v.TreasuryOwed != nil {
		base.Sub(base, v.TreasuryOwed)
	}
	if base.Sign() < 0 {
		return big.NewInt(0)
	}
	return base
}

// ToShares converts a base asset amount into the synthetic amount it mints at
// the current exchange rate. The first deposit bootstraps the rate at 1:1;
// afterwards the result is floor(amount * supply / base) so rounding always
// favours the pool.
func ToShares(amount *big.Int, v *Vault) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	if v == nil || v.TotalSyntheticSupply == nil || v.TotalSyntheticSupply.Sign() == 0 {
		return new(big.Int).Set(amount)
	}
	base := StakeableBase(v)
	if base.Sign() == 0 {
		return new(big.Int).Set(amount)
	}
	shares := new(big.Int).Mul(amount, v.TotalSyntheticSupply)
	return shares.Quo(shares, base)
}

// ToBase converts a synthetic amount into the base asset it redeems for,
// floor-rounded in the pool's favour. The synthetic supply must be non-zero;
// ErrZeroSupply guards the division explicitly.
func ToBase(synthetic *big.Int, v *Vault) (*big.Int, error) {
	if synthetic == nil || synthetic.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	if v == nil || v.TotalSyntheticSupply == nil || v.TotalSyntheticSupply.Sign() == 0 {
		return nil, ErrZeroSupply
	}
	base := new(big.Int).Mul(synthetic, StakeableBase(v))
	return base.Quo(base, v.TotalSyntheticSupply), nil
}

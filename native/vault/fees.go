package vault

import "math/big"

var basisPoints = big.NewInt(10_000)

// LoanFee computes the flash loan fee for the given amount. Fee tiers, when
// configured, override the base rate: the highest tier whose threshold the
// amount reaches wins.
func LoanFee(cfg *Config, amount *big.Int) *big.Int {
	if cfg == nil || amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	rate := cfg.FeeRateBps
	for i := len(cfg.FeeTiers) - 1; i >= 0; i-- {
		tier := cfg.FeeTiers[i]
		if tier.Threshold != nil && amount.Cmp(tier.Threshold) >= 0 {
			rate = tier.FeeBps
			break
		}
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(rate))
	return fee.Quo(fee, basisPoints)
}

// SplitFee divides a fee between the treasury and the pool according to the
// configured treasury split. The pool cut absorbs the rounding remainder.
func SplitFee(cfg *Config, fee *big.Int) (treasuryCut, poolCut *big.Int) {
	if fee == nil || fee.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}
	treasuryCut = new(big.Int).Mul(fee, new(big.Int).SetUint64(cfg.TreasurySplitBps))
	treasuryCut = treasuryCut.Quo(treasuryCut, basisPoints)
	poolCut = new(big.Int).Sub(fee, treasuryCut)
	return treasuryCut, poolCut
}

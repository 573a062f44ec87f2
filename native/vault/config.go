package vault

import (
	"math/big"

	"flashvault/crypto"
)

const maxBps uint64 = 10_000

// Config is the singleton protocol configuration created once by Initialize.
// Mutable fields change only through the authority-gated admin operations.
type Config struct {
	Authority          crypto.Address
	Treasury           crypto.Address
	FeeRateBps         uint64
	TreasurySplitBps   uint64
	MaxFlashLoanAmount *big.Int
	CooldownSlots      uint64
	MinStake           *big.Int
	Paused             bool
	FeeTiers           []FeeTier
}

// EnsureDefaults populates nil big.Int fields so persistence is safe.
func (c *Config) EnsureDefaults() {
	if c.MaxFlashLoanAmount == nil {
		c.MaxFlashLoanAmount = big.NewInt(0)
	}
	if c.MinStake == nil {
		c.MinStake = big.NewInt(0)
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := &Config{
		Authority:        c.Authority,
		Treasury:         c.Treasury,
		FeeRateBps:       c.FeeRateBps,
		TreasurySplitBps: c.TreasurySplitBps,
		CooldownSlots:    c.CooldownSlots,
		Paused:           c.Paused,
	}
	if c.MaxFlashLoanAmount != nil {
		clone.MaxFlashLoanAmount = new(big.Int).Set(c.MaxFlashLoanAmount)
	}
	if c.MinStake != nil {
		clone.MinStake = new(big.Int).Set(c.MinStake)
	}
	if len(c.FeeTiers) > 0 {
		clone.FeeTiers = make([]FeeTier, len(c.FeeTiers))
		for i, tier := range c.FeeTiers {
			clone.FeeTiers[i] = tier.Clone()
		}
	}
	return clone
}

// InitParams carries the caller-supplied parameters for Initialize.
type InitParams struct {
	FeeRateBps         uint64
	TreasurySplitBps   uint64
	Treasury           crypto.Address
	MaxFlashLoanAmount *big.Int
	CooldownSlots      uint64
	MinStake           *big.Int
}

// Validate enforces the parameter bounds before any state is created.
func (p InitParams) Validate() error {
	if p.FeeRateBps > maxBps || p.TreasurySplitBps > maxBps {
		return ErrInvalidParameter
	}
	if p.Treasury.IsZero() {
		return ErrInvalidParameter
	}
	if p.MaxFlashLoanAmount != nil && p.MaxFlashLoanAmount.Sign() < 0 {
		return ErrInvalidParameter
	}
	if p.MinStake != nil && p.MinStake.Sign() < 0 {
		return ErrInvalidParameter
	}
	return nil
}

package events

import (
	"math/big"

	"flashvault/crypto"
)

const (
	TypeVaultInitialized  = "vault.initialized"
	TypeStaked            = "vault.staked"
	TypeUnstaked          = "vault.unstaked"
	TypeHarvested         = "vault.harvested"
	TypeFlashLoanSettled  = "vault.flash_loan.settled"
	TypeTreasuryWithdrawn = "vault.treasury.withdrawn"
	TypeConfigUpdated     = "vault.config.updated"
)

// VaultInitialized records the one-shot creation of the protocol state.
type VaultInitialized struct {
	Authority crypto.Address
	Treasury  crypto.Address
}

func (VaultInitialized) EventType() string { return TypeVaultInitialized }

// Staked records a deposit and the synthetic amount minted against it.
type Staked struct {
	Staker crypto.Address
	Amount *big.Int
	Minted *big.Int
}

func (Staked) EventType() string { return TypeStaked }

// Unstaked records a synthetic burn and the base amount released.
type Unstaked struct {
	Staker   crypto.Address
	Burned   *big.Int
	Returned *big.Int
}

func (Unstaked) EventType() string { return TypeUnstaked }

// Harvested records a yield payout drawn from the accrued pool.
type Harvested struct {
	Caller crypto.Address
	Paid   *big.Int
}

func (Harvested) EventType() string { return TypeHarvested }

// FlashLoanSettled records a fully repaid flash loan and its fee split.
type FlashLoanSettled struct {
	Borrower    crypto.Address
	Amount      *big.Int
	Fee         *big.Int
	TreasuryCut *big.Int
	PoolCut     *big.Int
	Slot        uint64
}

func (FlashLoanSettled) EventType() string { return TypeFlashLoanSettled }

// TreasuryWithdrawn records accrued treasury fees leaving the vault.
type TreasuryWithdrawn struct {
	Treasury crypto.Address
	Amount   *big.Int
}

func (TreasuryWithdrawn) EventType() string { return TypeTreasuryWithdrawn }

// ConfigUpdated records an admin mutation of the protocol parameters.
type ConfigUpdated struct {
	Authority crypto.Address
	Field     string
}

func (ConfigUpdated) EventType() string { return TypeConfigUpdated }

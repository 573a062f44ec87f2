package vault

import "errors"

var (
	// Lifecycle.
	ErrAlreadyInitialized = errors.New("vault: already initialized")
	ErrNotInitialized     = errors.New("vault: not initialized")
	ErrInvalidParameter   = errors.New("vault: invalid parameter")

	// Validation.
	ErrInvalidAmount     = errors.New("vault: amount must be positive")
	ErrBelowMinimumStake = errors.New("vault: amount below minimum stake")
	ErrTransferFailed    = errors.New("vault: insufficient caller balance")
	ErrZeroSupply        = errors.New("vault: synthetic supply is zero")

	// Policy.
	ErrExceedsMaxLoan        = errors.New("vault: loan amount exceeds max allowable")
	ErrCooldownActive        = errors.New("vault: cooldown still active")
	ErrInsufficientBalance   = errors.New("vault: insufficient synthetic balance")
	ErrInsufficientLiquidity = errors.New("vault: insufficient liquidity")
	ErrPaused                = errors.New("vault: flash loans are paused")
	ErrUnauthorized          = errors.New("vault: caller is not the authority")

	// Integrity. These abort the whole operation with no durable effects.
	ErrFlashLoanNotRepaid = errors.New("vault: flash loan not repaid")
	ErrReentrancy         = errors.New("vault: operation rejected while a loan is outstanding")

	errNilState = errors.New("vault: state not configured")
)

package vault

import (
	"fmt"
	"math/big"

	"flashvault/core/events"
	"flashvault/core/types"
	"flashvault/crypto"
	nativecommon "flashvault/native/common"
)

const moduleName = "vault"

// engineState is the persistence surface the engine mutates through. Every
// operation loads what it needs, stages mutations in memory, and writes back
// only once all checks have passed, so a failure at any step leaves durable
// state untouched.
type engineState interface {
	GetConfig() (*Config, error)
	PutConfig(cfg *Config) error
	GetVault() (*Vault, error)
	PutVault(v *Vault) error
	GetLoanRecord(borrower crypto.Address) (*FlashLoanRecord, error)
	PutLoanRecord(record *FlashLoanRecord) error
	GetAccount(addr crypto.Address) (*types.Account, error)
	PutAccount(addr crypto.Address, account *types.Account) error
}

// Loan describes an open flash loan handed to a receiver. The receiver reports
// back the amount it returns to the pool; it never touches vault state
// directly.
type Loan struct {
	Borrower crypto.Address
	Amount   *big.Int
	Fee      *big.Int
	Data     []byte
}

// Receiver is the caller-supplied settlement contract for a flash loan. The
// returned amount must cover principal plus fee or the whole operation is
// voided.
type Receiver interface {
	OnFlashLoan(loan Loan) (*big.Int, error)
}

// LoanVoucher is the capability returned by BeginLoan. Settlement consumes it;
// while it is open, any operation that would shrink available liquidity is
// rejected.
type LoanVoucher struct {
	Borrower crypto.Address
	Amount   *big.Int
	Fee      *big.Int
	Slot     uint64
	Data     []byte
}

// Engine orchestrates the vault state transitions. It is not safe for
// concurrent use; callers serialize access (the node holds a mutex around
// every operation).
type Engine struct {
	state         engineState
	moduleAddress crypto.Address
	currentSlot   uint64
	pauses        nativecommon.PauseView
	emitter       events.Emitter
	activeLoan    *LoanVoucher
}

// NewEngine constructs a vault engine bound to the module's pool address.
func NewEngine(moduleAddr crypto.Address) *Engine {
	return &Engine{moduleAddress: moduleAddr}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPauses installs the module-level pause view.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter installs the event sink. A nil emitter disables events.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	e.emitter = emitter
}

// SetCurrentSlot records the ledger tick used for cooldown checks.
func (e *Engine) SetCurrentSlot(slot uint64) {
	if e == nil {
		return
	}
	e.currentSlot = slot
}

// ModuleAddress returns the pool's own account address.
func (e *Engine) ModuleAddress() crypto.Address {
	return e.moduleAddress
}

func (e *Engine) emit(ev events.Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}

// Initialize creates the protocol configuration and an empty vault. It fails
// when the configuration already exists or any parameter is out of bounds.
func (e *Engine) Initialize(authority crypto.Address, params InitParams) (*Config, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	existing, err := e.state.GetConfig()
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyInitialized
	}
	if authority.IsZero() {
		return nil, ErrInvalidParameter
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	cfg := &Config{
		Authority:          authority,
		Treasury:           params.Treasury,
		FeeRateBps:         params.FeeRateBps,
		TreasurySplitBps:   params.TreasurySplitBps,
		MaxFlashLoanAmount: params.MaxFlashLoanAmount,
		CooldownSlots:      params.CooldownSlots,
		MinStake:           params.MinStake,
	}
	cfg.EnsureDefaults()

	v := &Vault{}
	v.EnsureDefaults()

	if err := e.state.PutConfig(cfg); err != nil {
		return nil, err
	}
	if err := e.state.PutVault(v); err != nil {
		return nil, err
	}
	e.emit(events.VaultInitialized{Authority: authority, Treasury: cfg.Treasury})
	return cfg.Clone(), nil
}

// Stake moves the base asset from the staker into the pool and mints the
// proportional synthetic amount, computed against the pre-transfer vault
// state. The minted amount is returned.
func (e *Engine) Stake(staker crypto.Address, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if amount.Cmp(cfg.MinStake) < 0 {
		return nil, ErrBelowMinimumStake
	}

	v, err := e.loadVault()
	if err != nil {
		return nil, err
	}

	stakerAcc, err := e.loadAccount(staker)
	if err != nil {
		return nil, err
	}
	if stakerAcc.BalanceSOL.Cmp(amount) < 0 {
		return nil, ErrTransferFailed
	}
	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}

	minted := ToShares(amount, v)

	stakerAcc.BalanceSOL = new(big.Int).Sub(stakerAcc.BalanceSOL, amount)
	moduleAcc.BalanceSOL = new(big.Int).Add(moduleAcc.BalanceSOL, amount)
	stakerAcc.BalanceFSOL = new(big.Int).Add(stakerAcc.BalanceFSOL, minted)

	v.TotalBaseDeposited = new(big.Int).Add(v.TotalBaseDeposited, amount)
	v.TotalSyntheticSupply = new(big.Int).Add(v.TotalSyntheticSupply, minted)

	if err := e.state.PutAccount(staker, stakerAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutVault(v); err != nil {
		return nil, err
	}

	e.emit(events.Staked{Staker: staker, Amount: new(big.Int).Set(amount), Minted: new(big.Int).Set(minted)})
	return minted, nil
}

// Unstake burns synthetic tokens and releases the corresponding base amount,
// converted against the pre-burn vault state. Fails when the caller holds too
// little synthetic or the pool lacks non-loaned liquidity.
func (e *Engine) Unstake(staker crypto.Address, synthetic *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if e.activeLoan != nil {
		return nil, ErrReentrancy
	}
	if synthetic == nil || synthetic.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := e.loadConfig(); err != nil {
		return nil, err
	}

	v, err := e.loadVault()
	if err != nil {
		return nil, err
	}

	stakerAcc, err := e.loadAccount(staker)
	if err != nil {
		return nil, err
	}
	if stakerAcc.BalanceFSOL.Cmp(synthetic) < 0 {
		return nil, ErrInsufficientBalance
	}

	baseOut, err := ToBase(synthetic, v)
	if err != nil {
		return nil, err
	}

	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	if StakeableBase(v).Cmp(baseOut) < 0 || moduleAcc.BalanceSOL.Cmp(baseOut) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	stakerAcc.BalanceFSOL = new(big.Int).Sub(stakerAcc.BalanceFSOL, synthetic)
	stakerAcc.BalanceSOL = new(big.Int).Add(stakerAcc.BalanceSOL, baseOut)
	moduleAcc.BalanceSOL = new(big.Int).Sub(moduleAcc.BalanceSOL, baseOut)

	v.TotalSyntheticSupply = new(big.Int).Sub(v.TotalSyntheticSupply, synthetic)
	v.TotalBaseDeposited = new(big.Int).Sub(v.TotalBaseDeposited, baseOut)

	if err := e.state.PutAccount(staker, stakerAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutVault(v); err != nil {
		return nil, err
	}

	e.emit(events.Unstaked{Staker: staker, Burned: new(big.Int).Set(synthetic), Returned: new(big.Int).Set(baseOut)})
	return baseOut, nil
}

// Harvest pays out the caller's share of the accrued yield pool, capped at the
// requested amount. Zero entitlement is a successful no-op, never an error.
func (e *Engine) Harvest(caller crypto.Address, requested *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if e.activeLoan != nil {
		return nil, ErrReentrancy
	}
	if requested == nil || requested.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	if _, err := e.loadConfig(); err != nil {
		return nil, err
	}

	v, err := e.loadVault()
	if err != nil {
		return nil, err
	}
	if requested.Sign() == 0 || v.AccruedYield.Sign() == 0 || v.TotalSyntheticSupply.Sign() == 0 {
		return big.NewInt(0), nil
	}

	callerAcc, err := e.loadAccount(caller)
	if err != nil {
		return nil, err
	}

	// Entitlement is proportional to synthetic holdings against the whole
	// supply, floor-rounded.
	entitlement := new(big.Int).Mul(v.AccruedYield, callerAcc.BalanceFSOL)
	entitlement = entitlement.Quo(entitlement, v.TotalSyntheticSupply)

	paid := new(big.Int).Set(requested)
	if paid.Cmp(entitlement) > 0 {
		paid = entitlement
	}
	if paid.Sign() == 0 {
		return big.NewInt(0), nil
	}

	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return nil, err
	}
	if moduleAcc.BalanceSOL.Cmp(paid) < 0 {
		return nil, ErrInsufficientLiquidity
	}

	callerAcc.BalanceSOL = new(big.Int).Add(callerAcc.BalanceSOL, paid)
	moduleAcc.BalanceSOL = new(big.Int).Sub(moduleAcc.BalanceSOL, paid)
	v.AccruedYield = new(big.Int).Sub(v.AccruedYield, paid)
	v.TotalBaseDeposited = new(big.Int).Sub(v.TotalBaseDeposited, paid)

	if err := e.state.PutAccount(caller, callerAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return nil, err
	}
	if err := e.state.PutVault(v); err != nil {
		return nil, err
	}

	e.emit(events.Harvested{Caller: caller, Paid: new(big.Int).Set(paid)})
	return paid, nil
}

// BeginLoan admits a flash loan and returns the voucher the settlement step
// consumes. No durable state is written; the disbursed principal exists only
// inside the loan window and the voucher is the sole path to closing it.
func (e *Engine) BeginLoan(borrower crypto.Address, amount *big.Int, data []byte) (*LoanVoucher, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	if e.activeLoan != nil {
		return nil, ErrReentrancy
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, ErrPaused
	}
	if amount.Cmp(cfg.MaxFlashLoanAmount) > 0 {
		return nil, ErrExceedsMaxLoan
	}

	record, err := e.state.GetLoanRecord(borrower)
	if err != nil {
		return nil, err
	}
	if record != nil && cfg.CooldownSlots > 0 {
		// Subtraction form so an extreme cooldown cannot wrap the sum. A clock
		// behind the recorded slot counts as still cooling down.
		if e.currentSlot < record.LastBorrowSlot || e.currentSlot-record.LastBorrowSlot < cfg.CooldownSlots {
			return nil, ErrCooldownActive
		}
	}

	v, err := e.loadVault()
	if err != nil {
		return nil, err
	}
	if amount.Cmp(v.TotalBaseDeposited) > 0 {
		return nil, ErrInsufficientLiquidity
	}

	voucher := &LoanVoucher{
		Borrower: borrower,
		Amount:   new(big.Int).Set(amount),
		Fee:      LoanFee(cfg, amount),
		Slot:     e.currentSlot,
		Data:     data,
	}
	e.activeLoan = voucher
	return voucher, nil
}

// CancelLoan voids an open voucher without touching state. Used when the
// receiver fails before settlement.
func (e *Engine) CancelLoan(voucher *LoanVoucher) {
	if e == nil || voucher == nil {
		return
	}
	if e.activeLoan == voucher {
		e.activeLoan = nil
	}
}

// SettleLoan consumes the voucher and verifies repayment. The repaid amount
// must cover principal plus fee; any shortfall, even a single unit, voids the
// entire loan. Overpayment is kept and credited to the yield pool. Only on
// success are the fee split, cooldown slot, and balances committed.
func (e *Engine) SettleLoan(voucher *LoanVoucher, repaid *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if voucher == nil || e.activeLoan != voucher {
		return ErrInvalidParameter
	}
	defer func() { e.activeLoan = nil }()

	required := new(big.Int).Add(voucher.Amount, voucher.Fee)
	if repaid == nil || repaid.Cmp(required) < 0 {
		return ErrFlashLoanNotRepaid
	}

	// The borrower keeps the principal inside the loan window, so settlement
	// only moves the excess over principal: fee plus any overpayment.
	cost := new(big.Int).Sub(repaid, voucher.Amount)

	cfg, err := e.loadConfig()
	if err != nil {
		return err
	}
	v, err := e.loadVault()
	if err != nil {
		return err
	}
	borrowerAcc, err := e.loadAccount(voucher.Borrower)
	if err != nil {
		return err
	}
	if borrowerAcc.BalanceSOL.Cmp(cost) < 0 {
		return ErrFlashLoanNotRepaid
	}
	moduleAcc, err := e.loadAccount(e.moduleAddress)
	if err != nil {
		return err
	}

	record, err := e.state.GetLoanRecord(voucher.Borrower)
	if err != nil {
		return err
	}
	if record == nil {
		record = &FlashLoanRecord{Borrower: voucher.Borrower}
	}
	record.EnsureDefaults()

	treasuryCut, poolCut := SplitFee(cfg, voucher.Fee)
	overpay := new(big.Int).Sub(repaid, required)

	borrowerAcc.BalanceSOL = new(big.Int).Sub(borrowerAcc.BalanceSOL, cost)
	moduleAcc.BalanceSOL = new(big.Int).Add(moduleAcc.BalanceSOL, cost)

	v.TotalBaseDeposited = new(big.Int).Add(v.TotalBaseDeposited, cost)
	v.TreasuryOwed = new(big.Int).Add(v.TreasuryOwed, treasuryCut)
	v.AccruedYield = new(big.Int).Add(v.AccruedYield, poolCut)
	v.AccruedYield.Add(v.AccruedYield, overpay)

	record.LastBorrowSlot = voucher.Slot
	record.OutstandingAmount = big.NewInt(0)

	if err := e.state.PutAccount(voucher.Borrower, borrowerAcc); err != nil {
		return err
	}
	if err := e.state.PutAccount(e.moduleAddress, moduleAcc); err != nil {
		return err
	}
	if err := e.state.PutVault(v); err != nil {
		return err
	}
	if err := e.state.PutLoanRecord(record); err != nil {
		return err
	}

	e.emit(events.FlashLoanSettled{
		Borrower:    voucher.Borrower,
		Amount:      new(big.Int).Set(voucher.Amount),
		Fee:         new(big.Int).Set(voucher.Fee),
		TreasuryCut: treasuryCut,
		PoolCut:     poolCut,
		Slot:        voucher.Slot,
	})
	return nil
}

// FlashLoan runs the full borrow, receiver, settle cycle as one all-or-nothing
// operation. A receiver error or repayment shortfall leaves every balance
// exactly as it was before the call.
func (e *Engine) FlashLoan(borrower crypto.Address, amount *big.Int, data []byte, receiver Receiver) error {
	voucher, err := e.BeginLoan(borrower, amount, data)
	if err != nil {
		return err
	}
	if receiver == nil {
		e.CancelLoan(voucher)
		return ErrFlashLoanNotRepaid
	}
	repaid, err := receiver.OnFlashLoan(Loan{
		Borrower: voucher.Borrower,
		Amount:   new(big.Int).Set(voucher.Amount),
		Fee:      new(big.Int).Set(voucher.Fee),
		Data:     voucher.Data,
	})
	if err != nil {
		e.CancelLoan(voucher)
		return fmt.Errorf("vault: flash loan receiver: %w", err)
	}
	return e.SettleLoan(voucher, repaid)
}

func (e *Engine) loadConfig() (*Config, error) {
	cfg, err := e.state.GetConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrNotInitialized
	}
	cfg.EnsureDefaults()
	return cfg, nil
}

func (e *Engine) loadVault() (*Vault, error) {
	v, err := e.state.GetVault()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotInitialized
	}
	v.EnsureDefaults()
	return v, nil
}

func (e *Engine) loadAccount(addr crypto.Address) (*types.Account, error) {
	acc, err := e.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = &types.Account{}
	}
	acc.EnsureDefaults()
	return acc, nil
}

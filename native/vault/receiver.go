package vault

import "math/big"

// FullRepayReceiver settles a loan by returning principal plus fee, plus an
// optional extra amount. It is the reference receiver registered by the
// daemon; real integrations implement Receiver with their own logic.
type FullRepayReceiver struct {
	// Extra is added on top of the required repayment. Nil means exact repay.
	Extra *big.Int
}

// OnFlashLoan implements the Receiver interface.
func (r FullRepayReceiver) OnFlashLoan(loan Loan) (*big.Int, error) {
	repay := new(big.Int).Add(loan.Amount, loan.Fee)
	if r.Extra != nil {
		repay.Add(repay, r.Extra)
	}
	return repay, nil
}

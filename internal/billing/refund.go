package billing

import (
	"github.com/shopspring/decimal"
	"github.com/stacksos/patron-billing/internal/domain/ledger"
)

// ValidateRefund performs the local admissibility checks for a refund before
// the request reaches the gateway. A transaction with nothing paid on it
// fails with ErrNoPaymentsToRefund; a non-positive refund amount fails with
// ErrInvalidAmount.
//
// The refund amount is deliberately not capped at the transaction's paid
// amount here: the external gateway enforces the refundable ceiling.
func ValidateRefund(target ledger.TransactionRow, refundAmount decimal.Decimal) error {
	if !target.AmountPaid.IsPositive() {
		return ledger.ErrNoPaymentsToRefund
	}
	if !refundAmount.IsPositive() {
		return ledger.ErrInvalidAmount
	}
	return nil
}

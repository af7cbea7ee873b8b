package billing

import (
	"github.com/shopspring/decimal"
	"github.com/stacksos/patron-billing/internal/domain/ledger"
)

// ReceiptLine is one line of the payment receipt handed to the external
// receipt-rendering pipeline.
type ReceiptLine struct {
	TransactionID int64           `json:"transaction_id"`
	Description   string          `json:"description"`
	ItemBarcode   string          `json:"item_barcode"`
	Applied       decimal.Decimal `json:"applied"`
}

// Allocation is the breakdown of one tendered amount across a set of
// outstanding transactions.
type Allocation struct {
	// Payments holds the per-transaction pairs in the shape the gateway's
	// pay operation expects, in allocation order.
	Payments []ledger.PaymentEntry `json:"payments"`
	// Receipt holds one line per allocated payment, parallel to Payments.
	Receipt []ReceiptLine `json:"receipt"`
	// Remaining is the portion of the tendered amount left unapplied. It is
	// zero unless the tender exceeded the combined balance of all targets;
	// the excess is not carried as patron credit.
	Remaining decimal.Decimal `json:"remaining"`
}

// AllocatePayment distributes one tendered amount across the targets in
// exactly the caller-supplied order, satisfying earlier entries first. It
// performs no reordering; callers choose order (typically display order)
// deliberately.
//
// Targets must already be filtered to rows with a positive balance; an empty
// target list fails with ErrNoEligibleTransactions, a non-positive amount
// with ErrInvalidAmount.
func AllocatePayment(amount decimal.Decimal, targets []ledger.TransactionRow) (*Allocation, error) {
	if !amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}
	if len(targets) == 0 {
		return nil, ledger.ErrNoEligibleTransactions
	}

	alloc := &Allocation{
		Payments: make([]ledger.PaymentEntry, 0, len(targets)),
		Receipt:  make([]ReceiptLine, 0, len(targets)),
	}

	remaining := amount
	for _, target := range targets {
		if !remaining.IsPositive() {
			break
		}
		applied := decimal.Min(remaining, target.BalanceOwed)
		if !applied.IsPositive() {
			continue
		}

		alloc.Payments = append(alloc.Payments, ledger.PaymentEntry{
			TransactionID: target.TransactionID,
			Amount:        applied,
		})
		alloc.Receipt = append(alloc.Receipt, ReceiptLine{
			TransactionID: target.TransactionID,
			Description:   target.Description,
			ItemBarcode:   target.ItemBarcode,
			Applied:       applied,
		})
		remaining = remaining.Sub(applied)
	}

	alloc.Remaining = remaining
	return alloc, nil
}

package ledger

import (
	"github.com/shopspring/decimal"
)

// Default values used when a raw ledger entry carries no usable field
const (
	DefaultDescription = "Fee"
	DefaultKind        = "other"
	NoBarcode          = "-"
)

// TransactionRow is the canonical view of one billable event on a patron's
// ledger. Rows are rebuilt from the external ledger on every load; the only
// field ever mutated in place is Selected.
type TransactionRow struct {
	TransactionID int64           `json:"transaction_id"`
	Kind          string          `json:"kind"`
	Description   string          `json:"description"`
	ItemBarcode   string          `json:"item_barcode"`
	BilledDate    string          `json:"billed_date,omitempty"`
	AmountCharged decimal.Decimal `json:"amount_charged"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	BalanceOwed   decimal.Decimal `json:"balance_owed"`
	Selected      bool            `json:"selected"`
}

// BetterSummaryThan reports whether r is the preferred record when two raw
// entries resolve to the same transaction id: higher balance owed wins, ties
// fall through to higher amount charged, and a full tie keeps the earlier
// record (the receiver loses).
func (r TransactionRow) BetterSummaryThan(other TransactionRow) bool {
	switch r.BalanceOwed.Cmp(other.BalanceOwed) {
	case 1:
		return true
	case -1:
		return false
	}
	return r.AmountCharged.GreaterThan(other.AmountCharged)
}

// Outstanding reports whether the row still carries a payable balance.
func (r TransactionRow) Outstanding() bool {
	return r.BalanceOwed.IsPositive()
}

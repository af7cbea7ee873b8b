package billing

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/stacksos/patron-billing/internal/domain/ledger"
)

// Field extraction rules, tried in order. The upstream ledger emits the same
// logical field under different names and nesting depending on which ILS
// subsystem produced the record; the nested "transaction" object is the
// summary record and is always preferred when present.
var (
	idPaths = [][]string{
		{"transaction", "id"},
		{"id"},
		{"xact_id"},
	}
	totalOwedPaths = [][]string{
		{"transaction", "total_owed"},
		{"total_owed"},
	}
	totalPaidPaths = [][]string{
		{"transaction", "total_paid"},
		{"total_paid"},
		{"amount_paid"},
	}
	balanceOwedPaths = [][]string{
		{"transaction", "balance_owed"},
		{"balance_owed"},
	}
	descriptionPaths = [][]string{
		{"transaction", "title"},
		{"title"},
		{"transaction", "last_billing_note"},
		{"last_billing_note"},
		{"note"},
	}
	barcodePaths = [][]string{
		{"transaction", "copy_barcode"},
		{"copy_barcode"},
		{"barcode"},
	}
	kindPaths = [][]string{
		{"transaction", "xact_type"},
		{"xact_type"},
		{"type"},
	}
	billedDatePaths = [][]string{
		{"transaction", "xact_start"},
		{"xact_start"},
		{"billing_ts"},
	}
)

// NormalizeTransactions collapses a raw ledger fetch into one canonical row
// per unique transaction id. Entries yielding no positive numeric id are
// dropped silently, since the upstream service is known to emit non-billing
// rows alongside billable ones. The function never fails; the worst case is
// an empty list.
//
// Rows come back sorted by billed date descending. Dates are compared as
// strings, which orders ISO-8601 timestamps correctly and pushes missing
// dates to the end.
func NormalizeTransactions(entries []ledger.RawEntry) []ledger.TransactionRow {
	byID := make(map[int64]ledger.TransactionRow, len(entries))
	order := make([]int64, 0, len(entries))

	for _, entry := range entries {
		row, ok := normalizeEntry(entry)
		if !ok {
			continue
		}

		existing, seen := byID[row.TransactionID]
		if !seen {
			byID[row.TransactionID] = row
			order = append(order, row.TransactionID)
			continue
		}
		if row.BetterSummaryThan(existing) {
			byID[row.TransactionID] = row
		}
	}

	rows := make([]ledger.TransactionRow, 0, len(order))
	for _, id := range order {
		rows = append(rows, byID[id])
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].BilledDate > rows[j].BilledDate
	})

	return rows
}

// normalizeEntry extracts one canonical row from a raw entry. The second
// return value is false when the entry carries no usable transaction id.
func normalizeEntry(entry ledger.RawEntry) (ledger.TransactionRow, bool) {
	id, ok := entry.FirstID(idPaths...)
	if !ok {
		return ledger.TransactionRow{}, false
	}

	paid, _ := entry.FirstAmount(totalPaidPaths...)
	balance, haveBalance := entry.FirstAmount(balanceOwedPaths...)

	// Prefer the explicit total; infer it from the other two otherwise.
	charged, ok := entry.FirstAmount(totalOwedPaths...)
	if !ok {
		charged = paid.Add(balance)
	}

	// A source-supplied balance is authoritative; derive it only when absent.
	if !haveBalance {
		balance = charged.Sub(paid)
		if balance.IsNegative() {
			balance = decimal.Zero
		}
	}

	description, ok := entry.FirstString(descriptionPaths...)
	if !ok {
		description = ledger.DefaultDescription
	}
	barcode, ok := entry.FirstString(barcodePaths...)
	if !ok {
		barcode = ledger.NoBarcode
	}
	kind, ok := entry.FirstString(kindPaths...)
	if !ok {
		kind = ledger.DefaultKind
	}
	billedDate, _ := entry.FirstString(billedDatePaths...)

	return ledger.TransactionRow{
		TransactionID: id,
		Kind:          kind,
		Description:   description,
		ItemBarcode:   barcode,
		BilledDate:    billedDate,
		AmountCharged: charged,
		AmountPaid:    paid,
		BalanceOwed:   balance,
	}, true
}

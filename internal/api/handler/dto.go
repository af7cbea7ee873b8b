package handler

import (
	"github.com/shopspring/decimal"
	"github.com/stacksos/patron-billing/internal/billing"
	"github.com/stacksos/patron-billing/internal/domain/ledger"
)

// OpenSessionRequest represents a request to open a billing session
type OpenSessionRequest struct {
	PatronID int64  `json:"patron_id" binding:"required,gt=0"`
	Scope    string `json:"scope" binding:"omitempty,oneof=open all"`
}

// SelectionRequest represents a request to change row selection. Either a
// list of transaction ids or the all flag is given.
type SelectionRequest struct {
	TransactionIDs []int64 `json:"transaction_ids"`
	All            bool    `json:"all"`
	Selected       *bool   `json:"selected" binding:"required"`
}

// PaymentRequest represents a request to apply one tendered payment across
// the selected bills
type PaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod string          `json:"payment_method" binding:"required,oneof=cash credit_card debit_card check"`
	Note          string          `json:"note,omitempty"`
}

// RefundRequest represents a request to refund against a single transaction
type RefundRequest struct {
	TransactionID int64           `json:"transaction_id" binding:"required,gt=0"`
	Amount        decimal.Decimal `json:"amount"`
	Note          string          `json:"note,omitempty"`
}

// TransactionRowResponse represents one canonical ledger row in API responses
type TransactionRowResponse struct {
	TransactionID int64  `json:"transaction_id"`
	Kind          string `json:"kind"`
	Description   string `json:"description"`
	ItemBarcode   string `json:"item_barcode"`
	BilledDate    string `json:"billed_date,omitempty"`
	AmountCharged string `json:"amount_charged"`
	AmountPaid    string `json:"amount_paid"`
	BalanceOwed   string `json:"balance_owed"`
	Selected      bool   `json:"selected"`
}

// SessionResponse represents a billing session in API responses
type SessionResponse struct {
	SessionID    string                   `json:"session_id"`
	State        string                   `json:"state"`
	Transactions []TransactionRowResponse `json:"transactions"`
}

// PaymentEntryResponse is one applied (transaction, amount) pair
type PaymentEntryResponse struct {
	TransactionID int64  `json:"transaction_id"`
	Amount        string `json:"amount"`
}

// ReceiptLineResponse is one receipt line of an applied payment
type ReceiptLineResponse struct {
	TransactionID int64  `json:"transaction_id"`
	Description   string `json:"description"`
	ItemBarcode   string `json:"item_barcode"`
	Applied       string `json:"applied"`
}

// PaymentResponse represents the outcome of an accepted payment
type PaymentResponse struct {
	Payments     []PaymentEntryResponse   `json:"payments"`
	Receipt      []ReceiptLineResponse    `json:"receipt"`
	Unapplied    string                   `json:"unapplied"`
	Transactions []TransactionRowResponse `json:"transactions"`
}

// RefundResponse represents the outcome of an accepted refund
type RefundResponse struct {
	TransactionID int64                    `json:"transaction_id"`
	Amount        string                   `json:"amount"`
	Transactions  []TransactionRowResponse `json:"transactions"`
}

// mapRowToResponse maps a canonical ledger row to its response DTO
func mapRowToResponse(row ledger.TransactionRow) TransactionRowResponse {
	return TransactionRowResponse{
		TransactionID: row.TransactionID,
		Kind:          row.Kind,
		Description:   row.Description,
		ItemBarcode:   row.ItemBarcode,
		BilledDate:    row.BilledDate,
		AmountCharged: row.AmountCharged.String(),
		AmountPaid:    row.AmountPaid.String(),
		BalanceOwed:   row.BalanceOwed.String(),
		Selected:      row.Selected,
	}
}

func mapRowsToResponse(rows []ledger.TransactionRow) []TransactionRowResponse {
	responses := make([]TransactionRowResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, mapRowToResponse(row))
	}
	return responses
}

// mapAllocationToResponse maps an allocation and refreshed rows to the
// payment response DTO
func mapAllocationToResponse(result *billing.PaymentResult) PaymentResponse {
	response := PaymentResponse{
		Payments:     make([]PaymentEntryResponse, 0, len(result.Allocation.Payments)),
		Receipt:      make([]ReceiptLineResponse, 0, len(result.Allocation.Receipt)),
		Unapplied:    result.Allocation.Remaining.String(),
		Transactions: mapRowsToResponse(result.Rows),
	}
	for _, p := range result.Allocation.Payments {
		response.Payments = append(response.Payments, PaymentEntryResponse{
			TransactionID: p.TransactionID,
			Amount:        p.Amount.String(),
		})
	}
	for _, line := range result.Allocation.Receipt {
		response.Receipt = append(response.Receipt, ReceiptLineResponse{
			TransactionID: line.TransactionID,
			Description:   line.Description,
			ItemBarcode:   line.ItemBarcode,
			Applied:       line.Applied.String(),
		})
	}
	return response
}

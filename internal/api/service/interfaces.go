package service

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/stacksos/patron-billing/internal/billing"
	"github.com/stacksos/patron-billing/internal/domain/ledger"
)

// BillingService defines the operations behind the Bills & Payments API.
//
// Every mutation delegates balance authority to the external ledger gateway
// and re-fetches afterwards; this layer only sequences the engine, the
// gateway, and the billing event stream.
type BillingService interface {
	// OpenSession creates a billing session and loads the patron's ledger.
	// The session id is returned even when the initial load fails, so the
	// caller can retry with a reload.
	OpenSession(ctx context.Context, patronID int64, scope ledger.FetchScope) (string, []ledger.TransactionRow, error)

	// SessionRows returns the current row set and lifecycle state.
	SessionRows(sessionID string) ([]ledger.TransactionRow, billing.State, error)

	// Reload re-fetches and re-normalizes the session's ledger.
	Reload(ctx context.Context, sessionID string) ([]ledger.TransactionRow, error)

	// SetSelection toggles the selection flag on specific transactions, or
	// on every row when all is true.
	SetSelection(sessionID string, transactionIDs []int64, all bool, selected bool) ([]ledger.TransactionRow, error)

	// SubmitPayment allocates and applies one tendered payment across the
	// selected rows, then reloads.
	SubmitPayment(ctx context.Context, sessionID string, amount decimal.Decimal, method ledger.PaymentMethod, note, correlationID string) (*billing.PaymentResult, error)

	// SubmitRefund validates and applies a refund against one transaction,
	// then reloads.
	SubmitRefund(ctx context.Context, sessionID string, transactionID int64, amount decimal.Decimal, note, correlationID string) (*billing.RefundResult, error)

	// CloseSession discards a billing session.
	CloseSession(sessionID string)
}

package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// FetchScope selects how much of a patron's ledger a fetch returns.
type FetchScope string

const (
	// ScopeOpen requests only transactions with an outstanding balance
	ScopeOpen FetchScope = "open"
	// ScopeAll requests the patron's full transaction history
	ScopeAll FetchScope = "all"
)

// ParseFetchScope validates a scope string from an API request.
func ParseFetchScope(s string) (FetchScope, error) {
	switch FetchScope(s) {
	case ScopeOpen, ScopeAll:
		return FetchScope(s), nil
	default:
		return "", fmt.Errorf("invalid fetch scope %q", s)
	}
}

// PaymentMethod is the tender type reported to the external ledger.
type PaymentMethod string

const (
	PaymentMethodCash       PaymentMethod = "cash"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodDebitCard  PaymentMethod = "debit_card"
	PaymentMethodCheck      PaymentMethod = "check"
)

// ParsePaymentMethod validates a payment method string from an API request.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch PaymentMethod(s) {
	case PaymentMethodCash, PaymentMethodCreditCard, PaymentMethodDebitCard, PaymentMethodCheck:
		return PaymentMethod(s), nil
	default:
		return "", fmt.Errorf("invalid payment method %q", s)
	}
}

// PaymentEntry is one (transaction id, amount) pair of a payment breakdown.
// On the wire the gateway expects each pair as a two-element array.
type PaymentEntry struct {
	TransactionID int64
	Amount        decimal.Decimal
}

// MarshalJSON encodes the entry as [transactionId, amount] with the amount
// as a bare JSON number.
func (p PaymentEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{p.TransactionID, json.RawMessage(p.Amount.String())})
}

// UnmarshalJSON decodes the [transactionId, amount] wire shape.
func (p *PaymentEntry) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("payment entry must be a [transaction_id, amount] pair, got %d elements", len(pair))
	}
	var id int64
	if err := json.Unmarshal(pair[0], &id); err != nil {
		return fmt.Errorf("invalid transaction id in payment entry: %w", err)
	}
	var amount decimal.Decimal
	if err := amount.UnmarshalJSON(pair[1]); err != nil {
		return fmt.Errorf("invalid amount in payment entry: %w", err)
	}
	p.TransactionID = id
	p.Amount = amount
	return nil
}

// LedgerGateway is the external integrated library system's billing surface.
// It is the single source of truth for patron ledgers; this service never
// persists ledger state and re-fetches after every mutation.
//
// Implementations must map transport failures onto the error taxonomy of
// this package: ErrSessionExpired, PermissionDeniedError, ErrRequestTimeout,
// GatewayError. Callers match on kind, never on message content.
type LedgerGateway interface {
	// FetchBills retrieves the raw ledger entries for a patron.
	FetchBills(ctx context.Context, patronID int64, scope FetchScope) ([]RawEntry, error)

	// Pay applies one tendered payment, already broken down per transaction.
	Pay(ctx context.Context, patronID int64, payments []PaymentEntry, method PaymentMethod, note string) error

	// Refund issues a refund against a single transaction.
	Refund(ctx context.Context, patronID int64, transactionID int64, amount decimal.Decimal, note string) error
}

package billing

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/stacksos/patron-billing/internal/domain/ledger"
)

// Session-local errors
var (
	ErrNoPatronLoaded     = errors.New("no patron loaded")
	ErrUnknownTransaction = errors.New("transaction is not part of the loaded ledger")
)

// State is the lifecycle phase of a billing session.
type State string

const (
	// StateEmpty means no patron has been loaded yet
	StateEmpty State = "empty"
	// StateLoaded means rows are present and no mutation is in flight
	StateLoaded State = "loaded"
	// StateMutating means a payment or refund is in flight; all mutation
	// actions are refused until it completes
	StateMutating State = "mutating"
)

// PaymentResult reports the outcome of a successful payment submission.
type PaymentResult struct {
	Allocation *Allocation
	Rows       []ledger.TransactionRow
	// ReloadErr is set when the payment itself succeeded but the follow-up
	// ledger refresh failed. The payment is never rolled back client-side;
	// callers surface this as a separate warning.
	ReloadErr error
}

// RefundResult reports the outcome of a successful refund submission.
type RefundResult struct {
	TransactionID int64
	Amount        decimal.Decimal
	Rows          []ledger.TransactionRow
	ReloadErr     error
}

// Session orchestrates the Bills & Payments workflow for one patron view.
// It owns the normalized row set and the transient selection flags, and
// serializes all gateway calls: at most one fetch, payment or refund is in
// flight at any time. The external ledger stays the single source of truth;
// every mutation is followed by a full re-fetch rather than a local patch.
type Session struct {
	gateway ledger.LedgerGateway
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	patronID int64
	scope    ledger.FetchScope
	rows     []ledger.TransactionRow
}

// NewSession creates an empty billing session backed by the given gateway.
func NewSession(logger *slog.Logger, gateway ledger.LedgerGateway) *Session {
	return &Session{
		gateway: gateway,
		logger:  logger,
		state:   StateEmpty,
	}
}

// State returns the session's current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// PatronID returns the loaded patron's id, zero when the session is empty.
func (s *Session) PatronID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patronID
}

// Scope returns the fetch scope of the last load.
func (s *Session) Scope() ledger.FetchScope {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// Rows returns a copy of the current normalized row set in display order.
func (s *Session) Rows() []ledger.TransactionRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyRowsLocked()
}

func (s *Session) copyRowsLocked() []ledger.TransactionRow {
	rows := make([]ledger.TransactionRow, len(s.rows))
	copy(rows, s.rows)
	return rows
}

// LoadPatron fetches and normalizes the patron's ledger, replacing the whole
// row set. Selection flags always reset on load. A transport error leaves
// the session in Loaded with an empty row set and the error surfaced to the
// caller.
func (s *Session) LoadPatron(ctx context.Context, patronID int64, scope ledger.FetchScope) ([]ledger.TransactionRow, error) {
	s.mu.Lock()
	if s.state == StateMutating {
		s.mu.Unlock()
		return nil, ledger.ErrMutationInFlight
	}
	s.state = StateMutating
	s.mu.Unlock()

	entries, err := s.gateway.FetchBills(ctx, patronID, scope)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateLoaded
	s.patronID = patronID
	s.scope = scope

	if err != nil {
		s.rows = nil
		s.logger.Error("Failed to fetch patron ledger", "patron_id", patronID, "scope", string(scope), "error", err)
		return nil, err
	}

	s.rows = NormalizeTransactions(entries)
	s.logger.Info("Patron ledger loaded",
		"patron_id", patronID,
		"scope", string(scope),
		"raw_entries", len(entries),
		"rows", len(s.rows),
	)
	return s.copyRowsLocked(), nil
}

// SetSelected toggles the selection flag on the given transactions. Ids not
// present in the row set are ignored.
func (s *Session) SetSelected(transactionIDs []int64, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateEmpty {
		return ErrNoPatronLoaded
	}
	wanted := make(map[int64]bool, len(transactionIDs))
	for _, id := range transactionIDs {
		wanted[id] = true
	}
	for i := range s.rows {
		if wanted[s.rows[i].TransactionID] {
			s.rows[i].Selected = selected
		}
	}
	return nil
}

// SelectAll sets the selection flag on every row.
func (s *Session) SelectAll(selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateEmpty {
		return ErrNoPatronLoaded
	}
	for i := range s.rows {
		s.rows[i].Selected = selected
	}
	return nil
}

// SubmitPayment allocates the tendered amount across the currently selected
// outstanding rows in display order, applies it through the gateway, and
// reloads the ledger. Local validation failures are resolved without any
// gateway call.
func (s *Session) SubmitPayment(ctx context.Context, amount decimal.Decimal, method ledger.PaymentMethod, note string) (*PaymentResult, error) {
	s.mu.Lock()
	switch s.state {
	case StateEmpty:
		s.mu.Unlock()
		return nil, ErrNoPatronLoaded
	case StateMutating:
		s.mu.Unlock()
		return nil, ledger.ErrMutationInFlight
	}

	if !amount.IsPositive() {
		s.mu.Unlock()
		return nil, ledger.ErrInvalidAmount
	}

	var targets []ledger.TransactionRow
	selectedAny := false
	for _, row := range s.rows {
		if !row.Selected {
			continue
		}
		selectedAny = true
		if row.Outstanding() {
			targets = append(targets, row)
		}
	}
	if !selectedAny {
		s.mu.Unlock()
		return nil, ledger.ErrNoBillsSelected
	}

	alloc, err := AllocatePayment(amount, targets)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}

	patronID := s.patronID
	scope := s.scope
	s.state = StateMutating
	s.mu.Unlock()

	if err := s.gateway.Pay(ctx, patronID, alloc.Payments, method, note); err != nil {
		s.mu.Lock()
		s.state = StateLoaded
		s.mu.Unlock()
		s.logger.Error("Payment rejected by ledger gateway", "patron_id", patronID, "error", err)
		return nil, err
	}

	s.logger.Info("Payment applied",
		"patron_id", patronID,
		"amount", amount.String(),
		"method", string(method),
		"transactions", len(alloc.Payments),
		"unapplied", alloc.Remaining.String(),
	)

	rows, reloadErr := s.reload(ctx, patronID, scope)
	return &PaymentResult{Allocation: alloc, Rows: rows, ReloadErr: reloadErr}, nil
}

// SubmitRefund validates and applies a refund against a single transaction,
// then reloads the ledger.
func (s *Session) SubmitRefund(ctx context.Context, transactionID int64, amount decimal.Decimal, note string) (*RefundResult, error) {
	s.mu.Lock()
	switch s.state {
	case StateEmpty:
		s.mu.Unlock()
		return nil, ErrNoPatronLoaded
	case StateMutating:
		s.mu.Unlock()
		return nil, ledger.ErrMutationInFlight
	}

	var target *ledger.TransactionRow
	for i := range s.rows {
		if s.rows[i].TransactionID == transactionID {
			target = &s.rows[i]
			break
		}
	}
	if target == nil {
		s.mu.Unlock()
		return nil, ErrUnknownTransaction
	}

	if err := ValidateRefund(*target, amount); err != nil {
		s.mu.Unlock()
		return nil, err
	}

	patronID := s.patronID
	scope := s.scope
	s.state = StateMutating
	s.mu.Unlock()

	if err := s.gateway.Refund(ctx, patronID, transactionID, amount, note); err != nil {
		s.mu.Lock()
		s.state = StateLoaded
		s.mu.Unlock()
		s.logger.Error("Refund rejected by ledger gateway",
			"patron_id", patronID,
			"transaction_id", transactionID,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("Refund applied",
		"patron_id", patronID,
		"transaction_id", transactionID,
		"amount", amount.String(),
	)

	rows, reloadErr := s.reload(ctx, patronID, scope)
	return &RefundResult{TransactionID: transactionID, Amount: amount, Rows: rows, ReloadErr: reloadErr}, nil
}

// reload re-fetches after a successful mutation. The session always returns
// to Loaded: a failed refresh keeps the stale rows out (the ledger moved
// under us) and reports the error for the caller to surface as a warning.
func (s *Session) reload(ctx context.Context, patronID int64, scope ledger.FetchScope) ([]ledger.TransactionRow, error) {
	entries, err := s.gateway.FetchBills(ctx, patronID, scope)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateLoaded

	if err != nil {
		s.rows = nil
		s.logger.Warn("Ledger refresh after mutation failed", "patron_id", patronID, "error", err)
		return nil, err
	}

	s.rows = NormalizeTransactions(entries)
	return s.copyRowsLocked(), nil
}

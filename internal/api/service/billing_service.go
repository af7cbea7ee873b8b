package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stacksos/patron-billing/internal/billing"
	"github.com/stacksos/patron-billing/internal/domain/ledger"
	"github.com/stacksos/patron-billing/internal/platform/messaging/producers"
)

// BillingServiceImpl implements the BillingService interface
type BillingServiceImpl struct {
	registry *billing.Registry
	events   producers.EventPublisher
	logger   *slog.Logger
}

// NewBillingService creates a new billing service
func NewBillingService(logger *slog.Logger, registry *billing.Registry, events producers.EventPublisher) BillingService {
	return &BillingServiceImpl{
		registry: registry,
		events:   events,
		logger:   logger,
	}
}

// OpenSession creates a billing session and performs the initial ledger load.
func (s *BillingServiceImpl) OpenSession(ctx context.Context, patronID int64, scope ledger.FetchScope) (string, []ledger.TransactionRow, error) {
	sessionID, session := s.registry.Create()

	rows, err := session.LoadPatron(ctx, patronID, scope)
	if err != nil {
		// The session stays usable: it is Loaded with an empty row set and
		// the caller can reload once the gateway recovers.
		s.logger.Error("Initial ledger load failed",
			"billing_session", sessionID,
			"patron_id", patronID,
			"error", err,
		)
		return sessionID, nil, err
	}
	return sessionID, rows, nil
}

// SessionRows returns the current rows and state of a session.
func (s *BillingServiceImpl) SessionRows(sessionID string) ([]ledger.TransactionRow, billing.State, error) {
	session, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, "", err
	}
	return session.Rows(), session.State(), nil
}

// Reload re-fetches the session's patron ledger.
func (s *BillingServiceImpl) Reload(ctx context.Context, sessionID string) ([]ledger.TransactionRow, error) {
	session, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return session.LoadPatron(ctx, session.PatronID(), session.Scope())
}

// SetSelection updates selection flags and returns the refreshed rows.
func (s *BillingServiceImpl) SetSelection(sessionID string, transactionIDs []int64, all bool, selected bool) ([]ledger.TransactionRow, error) {
	session, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if all {
		err = session.SelectAll(selected)
	} else {
		err = session.SetSelected(transactionIDs, selected)
	}
	if err != nil {
		return nil, err
	}
	return session.Rows(), nil
}

// SubmitPayment runs the payment flow and, on success, emits a
// payment.recorded event for the receipt and audit consumers.
func (s *BillingServiceImpl) SubmitPayment(ctx context.Context, sessionID string, amount decimal.Decimal, method ledger.PaymentMethod, note, correlationID string) (*billing.PaymentResult, error) {
	session, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	result, err := session.SubmitPayment(ctx, amount, method, note)
	if err != nil {
		return nil, err
	}

	s.publishPaymentRecorded(ctx, session.PatronID(), method, result, correlationID)
	return result, nil
}

// SubmitRefund runs the refund flow and, on success, emits a refund.recorded
// event.
func (s *BillingServiceImpl) SubmitRefund(ctx context.Context, sessionID string, transactionID int64, amount decimal.Decimal, note, correlationID string) (*billing.RefundResult, error) {
	session, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	result, err := session.SubmitRefund(ctx, transactionID, amount, note)
	if err != nil {
		return nil, err
	}

	event := producers.RefundRecordedEvent{
		EventType:     producers.EventTypeRefundRecorded,
		PatronID:      session.PatronID(),
		TransactionID: transactionID,
		Amount:        amount,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
	}
	s.publish(ctx, session.PatronID(), event)
	return result, nil
}

// CloseSession discards a session. Unknown ids are ignored.
func (s *BillingServiceImpl) CloseSession(sessionID string) {
	s.registry.Delete(sessionID)
}

func (s *BillingServiceImpl) publishPaymentRecorded(ctx context.Context, patronID int64, method ledger.PaymentMethod, result *billing.PaymentResult, correlationID string) {
	total := decimal.Zero
	for _, p := range result.Allocation.Payments {
		total = total.Add(p.Amount)
	}
	event := producers.PaymentRecordedEvent{
		EventType:     producers.EventTypePaymentRecorded,
		PatronID:      patronID,
		Payments:      result.Allocation.Payments,
		PaymentMethod: string(method),
		TotalApplied:  total,
		Unapplied:     result.Allocation.Remaining,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
	}
	s.publish(ctx, patronID, event)
}

// publish writes one billing event. Events are advisory: a publish failure
// is logged and never fails the mutation that already succeeded upstream.
func (s *BillingServiceImpl) publish(ctx context.Context, patronID int64, event any) {
	if s.events == nil {
		return
	}
	key := strconv.FormatInt(patronID, 10)
	if err := s.events.Publish(ctx, key, event); err != nil {
		s.logger.Error("Failed to publish billing event", "patron_id", patronID, "error", err)
	}
}

package billing

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stacksos/patron-billing/internal/domain/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLedgerGateway struct {
	mock.Mock
}

func (m *MockLedgerGateway) FetchBills(ctx context.Context, patronID int64, scope ledger.FetchScope) ([]ledger.RawEntry, error) {
	args := m.Called(ctx, patronID, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.RawEntry), args.Error(1)
}

func (m *MockLedgerGateway) Pay(ctx context.Context, patronID int64, payments []ledger.PaymentEntry, method ledger.PaymentMethod, note string) error {
	args := m.Called(ctx, patronID, payments, method, note)
	return args.Error(0)
}

func (m *MockLedgerGateway) Refund(ctx context.Context, patronID int64, transactionID int64, amount decimal.Decimal, note string) error {
	args := m.Called(ctx, patronID, transactionID, amount, note)
	return args.Error(0)
}

var _ ledger.LedgerGateway = (*MockLedgerGateway)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func testEntries() []ledger.RawEntry {
	return []ledger.RawEntry{
		{
			"id":           float64(1),
			"title":        "Lost item",
			"xact_start":   "2026-02-01T00:00:00Z",
			"total_owed":   float64(10),
			"total_paid":   float64(4),
			"balance_owed": float64(6),
		},
		{
			"id":           float64(2),
			"title":        "Overdue fine",
			"xact_start":   "2026-01-01T00:00:00Z",
			"total_owed":   float64(3),
			"balance_owed": float64(3),
		},
	}
}

func loadedSession(t *testing.T, gateway *MockLedgerGateway) *Session {
	t.Helper()
	session := NewSession(testLogger(), gateway)
	gateway.On("FetchBills", mock.Anything, int64(42), ledger.ScopeOpen).Return(testEntries(), nil).Once()
	_, err := session.LoadPatron(context.Background(), 42, ledger.ScopeOpen)
	require.NoError(t, err)
	return session
}

func TestSession_LoadPatron(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		gateway := new(MockLedgerGateway)
		session := NewSession(testLogger(), gateway)
		assert.Equal(t, StateEmpty, session.State())

		gateway.On("FetchBills", ctx, int64(42), ledger.ScopeOpen).Return(testEntries(), nil).Once()

		rows, err := session.LoadPatron(ctx, 42, ledger.ScopeOpen)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, StateLoaded, session.State())
		assert.Equal(t, int64(42), session.PatronID())
		assert.Equal(t, ledger.ScopeOpen, session.Scope())
		gateway.AssertExpectations(t)
	})

	t.Run("IdempotentReload", func(t *testing.T) {
		gateway := new(MockLedgerGateway)
		session := NewSession(testLogger(), gateway)
		gateway.On("FetchBills", ctx, int64(42), ledger.ScopeAll).Return(testEntries(), nil).Twice()

		first, err := session.LoadPatron(ctx, 42, ledger.ScopeAll)
		require.NoError(t, err)

		// Selection state is transient and resets on every load
		require.NoError(t, session.SetSelected([]int64{1}, true))

		second, err := session.LoadPatron(ctx, 42, ledger.ScopeAll)
		require.NoError(t, err)

		assert.Equal(t, first, second, "reload without mutation must yield the same rows, selection reset")
		for _, row := range second {
			assert.False(t, row.Selected)
		}
		gateway.AssertExpectations(t)
	})

	t.Run("TransportErrorLeavesLoadedEmpty", func(t *testing.T) {
		gateway := new(MockLedgerGateway)
		session := NewSession(testLogger(), gateway)
		gateway.On("FetchBills", ctx, int64(42), ledger.ScopeOpen).Return(nil, ledger.ErrRequestTimeout).Once()

		rows, err := session.LoadPatron(ctx, 42, ledger.ScopeOpen)
		require.ErrorIs(t, err, ledger.ErrRequestTimeout)
		assert.Empty(t, rows)
		assert.Equal(t, StateLoaded, session.State())
		assert.Empty(t, session.Rows())
	})
}

func TestSession_Selection(t *testing.T) {
	t.Run("RequiresLoadedPatron", func(t *testing.T) {
		session := NewSession(testLogger(), new(MockLedgerGateway))
		require.ErrorIs(t, session.SetSelected([]int64{1}, true), ErrNoPatronLoaded)
		require.ErrorIs(t, session.SelectAll(true), ErrNoPatronLoaded)
	})

	t.Run("ToggleAndSelectAll", func(t *testing.T) {
		gateway := new(MockLedgerGateway)
		session := loadedSession(t, gateway)

		require.NoError(t, session.SetSelected([]int64{1, 999}, true)) // unknown ids ignored
		rows := session.Rows()
		assert.True(t, rows[0].Selected)
		assert.False(t, rows[1].Selected)

		require.NoError(t, session.SelectAll(true))
		for _, row := range session.Rows() {
			assert.True(t, row.Selected)
		}

		require.NoError(t, session.SelectAll(false))
		for _, row := range session.Rows() {
			assert.False(t, row.Selected)
		}
	})
}

func TestSession_SubmitPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("InvalidAmountIssuesNoGatewayCall", func(t *testing.T) {
		gateway := new(MockLedgerGateway)
		session := loadedSession(t, gateway)
		require.NoError(t, session.SelectAll(true))

		for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-5)} {
			result, err := session.SubmitPayment(ctx, amount, ledger.PaymentMethodCash, "")
			require.ErrorIs(t, err, ledger.ErrInvalidAmount)
			assert.Nil(t, result)
		}
		gateway.AssertNotCalled(t, "Pay", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		assert.Equal(t, StateLoaded, session.State())
	})

	t.Run("NoBillsSelected", func(t *testing.T) {
		gateway := new(MockLedgerGateway)
		session := loadedSession(t, gateway)

		_, err := session.SubmitPayment(ctx, decimal.NewFromInt(5), ledger.PaymentMethodCash, "")
		require.ErrorIs(t, err, ledger.ErrNoBillsSelected)
		gateway.AssertNotCalled(t, "Pay", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("NoPatronLoaded", func(t *testing.T) {
		session := NewSession(testLogger(), new(MockLedgerGateway))
		_, err := session.SubmitPayment(ctx, decimal.NewFromInt(5), ledger.PaymentMethodCash, "")
		require.ErrorIs(t, err, ErrNoPatronLoaded)
	})

	t.Run("Success", func(t *testing.T) {
		gateway := new(MockLedgerGateway)
		session := loadedSession(t, gateway)
		require.NoError(t, session.SelectAll(true))

		gateway.On("Pay", ctx, int64(42), mock.MatchedBy(func(payments []ledger.PaymentEntry) bool {
			// 6 owed on xact 1 (newer, listed first), remainder on xact 2
			return len(payments) == 2 &&
				payments[0].TransactionID == 1 && payments[0].Amount.Equal(decimal.NewFromInt(6)) &&
				payments[1].TransactionID == 2 && payments[1].Amount.Equal(decimal.NewFromInt(1))
		}), ledger.PaymentMethodCash, "desk 3").Return(nil).Once()
		gateway.On("FetchBills", ctx, int64(42), ledger.ScopeOpen).Return(testEntries(), nil).Once()

		result, err := session.SubmitPayment(ctx, decimal.NewFromInt(7), ledger.PaymentMethodCash, "desk 3")
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.NoError(t, result.ReloadErr)
		assert.True(t, result.Allocation.Remaining.IsZero())
		assert.Len(t, result.Rows, 2)
		assert.Equal(t, StateLoaded, session.State())
		gateway.AssertExpectations(t)
	})

	t.Run("GatewayFailureReturnsToLoaded", func(t *testing.T) {
		gateway := new(MockLedgerGateway)
		session := loadedSession(t, gateway)
		require.NoError(t, session.SelectAll(true))

		gatewayErr := ledger.GatewayError{Message: "payment rejected by ILS"}
		gateway.On("Pay", ctx, int64(42), mock.Anything, ledger.PaymentMethodCheck, "").Return(gatewayErr).Once()

		result, err := session.SubmitPayment(ctx, decimal.NewFromInt(2), ledger.PaymentMethodCheck, "")
		require.ErrorIs(t, err, ledger.GatewayError{})
		assert.EqualError(t, err, "payment rejected by ILS")
		assert.Nil(t, result)
		assert.Equal(t, StateLoaded, session.State())
		// No reload after a failed mutation
		gateway.AssertNumberOfCalls(t, "FetchBills", 1)
	})

	t.Run("ReloadFailureAfterSuccessIsAWarning", func(t *testing.T) {
		gateway := new(MockLedgerGateway)
		session := loadedSession(t, gateway)
		require.NoError(t, session.SelectAll(true))

		gateway.On("Pay", ctx, int64(42), mock.Anything, ledger.PaymentMethodCash, "").Return(nil).Once()
		gateway.On("FetchBills", ctx, int64(42), ledger.ScopeOpen).Return(nil, ledger.ErrRequestTimeout).Once()

		result, err := session.SubmitPayment(ctx, decimal.NewFromInt(2), ledger.PaymentMethodCash, "")
		require.NoError(t, err, "the payment itself succeeded")
		require.NotNil(t, result)
		require.ErrorIs(t, result.ReloadErr, ledger.ErrRequestTimeout)
		assert.Equal(t, StateLoaded, session.State())
	})

	t.Run("RefusedWhileMutating", func(t *testing.T) {
		gateway := new(MockLedgerGateway)
		session := loadedSession(t, gateway)
		require.NoError(t, session.SelectAll(true))

		payStarted := make(chan struct{})
		releasePay := make(chan struct{})
		gateway.On("Pay", ctx, int64(42), mock.Anything, ledger.PaymentMethodCash, "").
			Run(func(args mock.Arguments) {
				close(payStarted)
				<-releasePay
			}).Return(nil).Once()
		gateway.On("FetchBills", ctx, int64(42), ledger.ScopeOpen).Return(testEntries(), nil).Once()

		done := make(chan error, 1)
		go func() {
			_, err := session.SubmitPayment(ctx, decimal.NewFromInt(2), ledger.PaymentMethodCash, "")
			done <- err
		}()

		<-payStarted
		assert.Equal(t, StateMutating, session.State())

		_, err := session.SubmitPayment(ctx, decimal.NewFromInt(1), ledger.PaymentMethodCash, "")
		require.ErrorIs(t, err, ledger.ErrMutationInFlight)

		_, err = session.SubmitRefund(ctx, 1, decimal.NewFromInt(1), "")
		require.ErrorIs(t, err, ledger.ErrMutationInFlight)

		close(releasePay)
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("first payment did not complete")
		}
		assert.Equal(t, StateLoaded, session.State())
	})
}

func TestSession_SubmitRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("NoPaymentsToRefundIssuesNoGatewayCall", func(t *testing.T) {
		gateway := new(MockLedgerGateway)
		session := loadedSession(t, gateway)

		// Xact 2 has nothing paid on it
		for _, amount := range []decimal.Decimal{decimal.NewFromInt(1), decimal.NewFromInt(500)} {
			_, err := session.SubmitRefund(ctx, 2, amount, "")
			require.ErrorIs(t, err, ledger.ErrNoPaymentsToRefund)
		}
		gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownTransaction", func(t *testing.T) {
		gateway := new(MockLedgerGateway)
		session := loadedSession(t, gateway)

		_, err := session.SubmitRefund(ctx, 404, decimal.NewFromInt(1), "")
		require.ErrorIs(t, err, ErrUnknownTransaction)
	})

	t.Run("InvalidAmount", func(t *testing.T) {
		gateway := new(MockLedgerGateway)
		session := loadedSession(t, gateway)

		_, err := session.SubmitRefund(ctx, 1, decimal.Zero, "")
		require.ErrorIs(t, err, ledger.ErrInvalidAmount)
		gateway.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Success", func(t *testing.T) {
		gateway := new(MockLedgerGateway)
		session := loadedSession(t, gateway)

		amount := decimal.RequireFromString("2.50")
		gateway.On("Refund", ctx, int64(42), int64(1), amount, "damaged on return").Return(nil).Once()
		gateway.On("FetchBills", ctx, int64(42), ledger.ScopeOpen).Return(testEntries(), nil).Once()

		result, err := session.SubmitRefund(ctx, 1, amount, "damaged on return")
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, int64(1), result.TransactionID)
		assert.True(t, result.Amount.Equal(amount))
		assert.NoError(t, result.ReloadErr)
		assert.Equal(t, StateLoaded, session.State())
		gateway.AssertExpectations(t)
	})

	t.Run("RefundBeyondPaidPassesLocally", func(t *testing.T) {
		// No local cap at the paid amount; the gateway enforces the ceiling
		gateway := new(MockLedgerGateway)
		session := loadedSession(t, gateway)

		gatewayErr := ledger.GatewayError{Message: "refund exceeds amount paid"}
		gateway.On("Refund", ctx, int64(42), int64(1), decimal.NewFromInt(999), "").Return(gatewayErr).Once()

		_, err := session.SubmitRefund(ctx, 1, decimal.NewFromInt(999), "")
		require.ErrorIs(t, err, ledger.GatewayError{})
		assert.Equal(t, StateLoaded, session.State())
	})
}

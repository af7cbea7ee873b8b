package ledger

import (
	"errors"
	"strings"
)

// Local validation errors. These are raised before any gateway call is made.
var (
	ErrInvalidAmount          = errors.New("amount must be a positive number")
	ErrNoEligibleTransactions = errors.New("no transactions with an outstanding balance")
	ErrNoBillsSelected        = errors.New("no bills selected")
	ErrNoPaymentsToRefund     = errors.New("transaction has no payments to refund")
	ErrMutationInFlight       = errors.New("another payment or refund is already in progress")
)

// Gateway-reported errors. None of these are retried automatically; a retry,
// if any, is a user-initiated repeat action.
var (
	ErrSessionExpired = errors.New("staff session is no longer valid")
	ErrRequestTimeout = errors.New("ledger gateway request timed out")
)

// PermissionDeniedError indicates the gateway rejected the call because the
// staff account lacks required rights. It carries the missing permission
// identifiers and a trace id for support diagnosis.
type PermissionDeniedError struct {
	MissingPerms []string
	TraceID      string
}

func (e PermissionDeniedError) Error() string {
	msg := "permission denied"
	if len(e.MissingPerms) > 0 {
		msg += ": missing " + strings.Join(e.MissingPerms, ", ")
	}
	if e.TraceID != "" {
		msg += " (trace " + e.TraceID + ")"
	}
	return msg
}

// Is implements the errors.Is interface for PermissionDeniedError
func (e PermissionDeniedError) Is(target error) bool {
	_, ok := target.(PermissionDeniedError)
	return ok
}

// GatewayError indicates the gateway was reachable but reported a failure.
// The message is surfaced verbatim.
type GatewayError struct {
	Message string
}

func (e GatewayError) Error() string {
	if e.Message == "" {
		return "ledger gateway reported a failure"
	}
	return e.Message
}

// Is implements the errors.Is interface for GatewayError
func (e GatewayError) Is(target error) bool {
	t, ok := target.(GatewayError)
	if !ok {
		return false
	}
	// An empty target message matches any GatewayError
	if t.Message == "" {
		return true
	}
	return e.Message == t.Message
}

// Package ils implements the ledger gateway client against the external
// integrated library system. The gateway owns all patron ledger state; this
// client only shapes requests and maps transport failures onto the billing
// error taxonomy so that callers can match on error kind instead of message
// text.
package ils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stacksos/patron-billing/internal/config"
	"github.com/stacksos/patron-billing/internal/domain/ledger"
)

const (
	authHeader  = "Authorization"
	traceHeader = "X-Trace-ID"
)

// httpDoer wraps http.Client for testability
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks JSON over HTTP to the ILS ledger gateway.
type Client struct {
	logger  *slog.Logger
	http    httpDoer
	baseURL string
	token   string
}

// NewClient creates a gateway client from configuration. The configured
// request timeout applies per call; its expiry is reported as a timeout
// error and never retried.
func NewClient(logger *slog.Logger, cfg *config.ILSConfig) *Client {
	return &Client{
		logger:  logger,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.AuthToken,
	}
}

// envelope is the gateway's uniform response body shape.
type envelope struct {
	OK                 bool              `json:"ok"`
	Entries            []ledger.RawEntry `json:"entries,omitempty"`
	Error              string            `json:"error,omitempty"`
	MissingPermissions []string          `json:"missing_permissions,omitempty"`
	TraceID            string            `json:"trace_id,omitempty"`
}

// FetchBills retrieves the raw ledger entries for a patron.
func (c *Client) FetchBills(ctx context.Context, patronID int64, scope ledger.FetchScope) ([]ledger.RawEntry, error) {
	endpoint := fmt.Sprintf("%s/api/patrons/%d/bills?scope=%s", c.baseURL, patronID, url.QueryEscape(string(scope)))
	body, err := c.call(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return body.Entries, nil
}

type payRequest struct {
	Payments      []ledger.PaymentEntry `json:"payments"`
	PaymentMethod string                `json:"payment_method"`
	Note          string                `json:"note,omitempty"`
}

// Pay applies one tendered payment, already broken down per transaction.
func (c *Client) Pay(ctx context.Context, patronID int64, payments []ledger.PaymentEntry, method ledger.PaymentMethod, note string) error {
	endpoint := fmt.Sprintf("%s/api/patrons/%d/payments", c.baseURL, patronID)
	_, err := c.call(ctx, http.MethodPost, endpoint, payRequest{
		Payments:      payments,
		PaymentMethod: string(method),
		Note:          note,
	})
	return err
}

type refundRequest struct {
	TransactionID int64           `json:"transaction_id"`
	RefundAmount  decimal.Decimal `json:"refund_amount"`
	Note          string          `json:"note,omitempty"`
}

// Refund issues a refund against a single transaction.
func (c *Client) Refund(ctx context.Context, patronID int64, transactionID int64, amount decimal.Decimal, note string) error {
	endpoint := fmt.Sprintf("%s/api/patrons/%d/refunds", c.baseURL, patronID)
	_, err := c.call(ctx, http.MethodPost, endpoint, refundRequest{
		TransactionID: transactionID,
		RefundAmount:  amount,
		Note:          note,
	})
	return err
}

// call executes one gateway request and decodes the response envelope.
func (c *Client) call(ctx context.Context, method, endpoint string, payload any) (*envelope, error) {
	var reqBody *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode gateway request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set(authHeader, "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			c.logger.Warn("Ledger gateway call timed out", "method", method, "endpoint", endpoint)
			return nil, ledger.ErrRequestTimeout
		}
		return nil, fmt.Errorf("ledger gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	var body envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, ledger.ErrSessionExpired
	case resp.StatusCode == http.StatusForbidden:
		perm := ledger.PermissionDeniedError{
			MissingPerms: body.MissingPermissions,
			TraceID:      body.TraceID,
		}
		if perm.TraceID == "" {
			perm.TraceID = resp.Header.Get(traceHeader)
		}
		return nil, perm
	case resp.StatusCode == http.StatusGatewayTimeout || resp.StatusCode == http.StatusRequestTimeout:
		return nil, ledger.ErrRequestTimeout
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		msg := body.Error
		if msg == "" {
			msg = "ledger gateway returned status " + strconv.Itoa(resp.StatusCode)
		}
		return nil, ledger.GatewayError{Message: msg}
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", decodeErr)
	}
	if !body.OK {
		// Propagate the gateway's message verbatim
		return nil, ledger.GatewayError{Message: body.Error}
	}
	return &body, nil
}

// isTimeout distinguishes deadline expiry from other transport failures.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stacksos/patron-billing/internal/api/middleware"
	"github.com/stacksos/patron-billing/internal/api/service"
	"github.com/stacksos/patron-billing/internal/billing"
	"github.com/stacksos/patron-billing/internal/domain/ledger"
)

// BillingHandler handles HTTP requests for the Bills & Payments workflow
type BillingHandler struct {
	billingService service.BillingService
	logger         *slog.Logger
}

// NewBillingHandler creates a new billing handler
func NewBillingHandler(logger *slog.Logger, billingService service.BillingService) *BillingHandler {
	return &BillingHandler{
		billingService: billingService,
		logger:         logger,
	}
}

// OpenSession creates a billing session for one patron view and loads the
// ledger. When the initial load fails the session is still created; the
// error is surfaced so the staff client can offer a retry.
func (h *BillingHandler) OpenSession(c *gin.Context) {
	var req OpenSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	scope := ledger.ScopeOpen
	if req.Scope != "" {
		scope = ledger.FetchScope(req.Scope)
	}

	sessionID, rows, err := h.billingService.OpenSession(c.Request.Context(), req.PatronID, scope)

	// A failed initial load still leaves a usable session behind (Loaded,
	// empty row set); the error rides along as a warning so the client can
	// offer a reload.
	response := NewResponse(SessionResponse{
		SessionID:    sessionID,
		State:        string(billing.StateLoaded),
		Transactions: mapRowsToResponse(rows),
	})
	response.CorrelationID = middleware.GetCorrelationID(c)
	if err != nil {
		_, response.Warning = billingErrorInfo(err)
	}
	c.JSON(http.StatusCreated, response)
}

// GetSession returns the session's current row set
func (h *BillingHandler) GetSession(c *gin.Context) {
	sessionID := c.Param("id")

	rows, state, err := h.billingService.SessionRows(sessionID)
	if err != nil {
		h.respondBillingError(c, err)
		return
	}

	RespondOK(c, SessionResponse{
		SessionID:    sessionID,
		State:        string(state),
		Transactions: mapRowsToResponse(rows),
	})
}

// Reload re-fetches the session's ledger from the external source of truth
func (h *BillingHandler) Reload(c *gin.Context) {
	sessionID := c.Param("id")

	rows, err := h.billingService.Reload(c.Request.Context(), sessionID)
	if err != nil {
		h.respondBillingError(c, err)
		return
	}

	RespondOK(c, SessionResponse{
		SessionID:    sessionID,
		State:        string(billing.StateLoaded),
		Transactions: mapRowsToResponse(rows),
	})
}

// SetSelection toggles the selection flag on rows of the session
func (h *BillingHandler) SetSelection(c *gin.Context) {
	sessionID := c.Param("id")

	var req SelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if !req.All && len(req.TransactionIDs) == 0 {
		RespondBadRequest(c, "Either transaction_ids or all must be given")
		return
	}

	rows, err := h.billingService.SetSelection(sessionID, req.TransactionIDs, req.All, *req.Selected)
	if err != nil {
		h.respondBillingError(c, err)
		return
	}

	RespondOK(c, SessionResponse{
		SessionID:    sessionID,
		State:        string(billing.StateLoaded),
		Transactions: mapRowsToResponse(rows),
	})
}

// SubmitPayment applies one tendered amount across the selected bills
func (h *BillingHandler) SubmitPayment(c *gin.Context) {
	sessionID := c.Param("id")

	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	method, err := ledger.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.billingService.SubmitPayment(
		c.Request.Context(),
		sessionID,
		req.Amount,
		method,
		req.Note,
		middleware.GetCorrelationID(c),
	)
	if err != nil {
		h.respondBillingError(c, err)
		return
	}

	h.respondMutation(c, mapAllocationToResponse(result), result.ReloadErr)
}

// SubmitRefund refunds against a single transaction
func (h *BillingHandler) SubmitRefund(c *gin.Context) {
	sessionID := c.Param("id")

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.billingService.SubmitRefund(
		c.Request.Context(),
		sessionID,
		req.TransactionID,
		req.Amount,
		req.Note,
		middleware.GetCorrelationID(c),
	)
	if err != nil {
		h.respondBillingError(c, err)
		return
	}

	h.respondMutation(c, RefundResponse{
		TransactionID: result.TransactionID,
		Amount:        result.Amount.String(),
		Transactions:  mapRowsToResponse(result.Rows),
	}, result.ReloadErr)
}

// CloseSession discards a billing session
func (h *BillingHandler) CloseSession(c *gin.Context) {
	h.billingService.CloseSession(c.Param("id"))
	RespondNoContent(c)
}

// respondMutation reports an accepted mutation. A failed refresh after the
// mutation does not roll it back: the response stays 200 with a separate
// warning attached.
func (h *BillingHandler) respondMutation(c *gin.Context, data interface{}, reloadErr error) {
	response := NewResponse(data)
	response.CorrelationID = middleware.GetCorrelationID(c)
	if reloadErr != nil {
		response.Warning = &ErrorInfo{
			Code:    "RELOAD_FAILED",
			Message: "The payment or refund was applied, but refreshing the ledger failed: " + reloadErr.Error(),
		}
	}
	c.JSON(http.StatusOK, response)
}

// billingErrorInfo maps the billing error taxonomy onto an HTTP status and
// error payload. Matching is on error kind, never on message content.
func billingErrorInfo(err error) (int, *ErrorInfo) {
	var permErr ledger.PermissionDeniedError
	var gatewayErr ledger.GatewayError

	switch {
	case errors.Is(err, billing.ErrSessionNotFound):
		return http.StatusNotFound, &ErrorInfo{Code: "SESSION_NOT_FOUND", Message: err.Error()}
	case errors.Is(err, billing.ErrNoPatronLoaded):
		return http.StatusBadRequest, &ErrorInfo{Code: "NO_PATRON_LOADED", Message: err.Error()}
	case errors.Is(err, billing.ErrUnknownTransaction):
		return http.StatusBadRequest, &ErrorInfo{Code: "UNKNOWN_TRANSACTION", Message: err.Error()}
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest, &ErrorInfo{Code: "INVALID_AMOUNT", Message: err.Error()}
	case errors.Is(err, ledger.ErrNoBillsSelected):
		return http.StatusBadRequest, &ErrorInfo{Code: "NO_BILLS_SELECTED", Message: err.Error()}
	case errors.Is(err, ledger.ErrNoEligibleTransactions):
		return http.StatusBadRequest, &ErrorInfo{Code: "NO_ELIGIBLE_TRANSACTIONS", Message: err.Error()}
	case errors.Is(err, ledger.ErrNoPaymentsToRefund):
		return http.StatusBadRequest, &ErrorInfo{Code: "NO_PAYMENTS_TO_REFUND", Message: err.Error()}
	case errors.Is(err, ledger.ErrMutationInFlight):
		return http.StatusConflict, &ErrorInfo{Code: "MUTATION_IN_FLIGHT", Message: err.Error()}
	case errors.Is(err, ledger.ErrSessionExpired):
		// The staff client must trigger a global re-authentication
		return http.StatusUnauthorized, &ErrorInfo{
			Code:    "SESSION_EXPIRED",
			Message: err.Error(),
			Details: map[string]any{"reauthenticate": true},
		}
	case errors.As(err, &permErr):
		return http.StatusForbidden, &ErrorInfo{
			Code:    "PERMISSION_DENIED",
			Message: permErr.Error(),
			Details: map[string]any{
				"missing_permissions": permErr.MissingPerms,
				"trace_id":            permErr.TraceID,
			},
		}
	case errors.Is(err, ledger.ErrRequestTimeout):
		return http.StatusGatewayTimeout, &ErrorInfo{Code: "GATEWAY_TIMEOUT", Message: err.Error()}
	case errors.As(err, &gatewayErr):
		return http.StatusBadGateway, &ErrorInfo{Code: "GATEWAY_FAILURE", Message: gatewayErr.Error()}
	default:
		return http.StatusInternalServerError, &ErrorInfo{Code: "INTERNAL_SERVER_ERROR", Message: "An internal server error occurred"}
	}
}

// respondBillingError writes the mapped error response
func (h *BillingHandler) respondBillingError(c *gin.Context, err error) {
	status, info := billingErrorInfo(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Unexpected billing error", "error", err)
	}
	response := &Response{Error: info}
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(status, response)
}

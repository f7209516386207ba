/**
 * @description
 * This file contains the HTTP handlers for the payment-service's API endpoints.
 * Handlers parse the request, call the payment orchestrator and write the JSON
 * response. Errors from the orchestrator are mapped to status codes in one place.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5: URL parameters.
 * - internal/app, internal/domain: service logic, response models and errors.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dummybank/payment-service/internal/app"
	"github.com/dummybank/payment-service/internal/domain"
)

// PaymentService is the slice of app.Service the handlers use.
type PaymentService interface {
	Lookup(ctx context.Context, userID int64, referenceNumber string) (*domain.InvoiceView, error)
	StartPayment(ctx context.Context, params app.StartPaymentParams) (*domain.PaymentView, error)
	ConfirmPayment(ctx context.Context, userID, paymentID int64, pin string) (*domain.PaymentView, error)
	ReversePayment(ctx context.Context, userID, paymentID int64) (*domain.PaymentView, error)
	GetPayment(ctx context.Context, userID, paymentID int64) (*domain.PaymentView, error)
	ListAccounts(ctx context.Context, userID int64) ([]domain.Account, error)
	ListServices(ctx context.Context) ([]domain.Service, error)
	ListTransactions(ctx context.Context, userID int64, page, pageSize int) (*domain.TransactionPage, error)
	GetTransaction(ctx context.Context, userID, transactionID int64) (*domain.TransactionView, error)
}

var _ PaymentService = (*app.Service)(nil)

// PaymentHandlers holds the application service that handlers will use.
type PaymentHandlers struct {
	service PaymentService
	logger  *slog.Logger
}

// NewPaymentHandlers creates a new instance of PaymentHandlers.
func NewPaymentHandlers(service PaymentService, logger *slog.Logger) *PaymentHandlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentHandlers{service: service, logger: logger}
}

// LookupHandler handles GET /payments/lookup?reference_number=.
func (h *PaymentHandlers) LookupHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	invoice, err := h.service.Lookup(r.Context(), userID, r.URL.Query().Get("reference_number"))
	if err != nil {
		h.handleError(w, r, "lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, invoice)
}

// StartPaymentHandler handles POST /payments/start.
func (h *PaymentHandlers) StartPaymentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	accountID, err := parseRequiredID(r.FormValue("account_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "account_id must be a positive integer")
		return
	}
	serviceID, err := parseRequiredID(r.FormValue("service_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "service_id must be a positive integer")
		return
	}

	view, err := h.service.StartPayment(r.Context(), app.StartPaymentParams{
		UserID:          userID,
		AccountID:       accountID,
		ServiceID:       serviceID,
		ReferenceNumber: r.FormValue("reference_number"),
	})
	if err != nil {
		h.handleError(w, r, "start_payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// ConfirmPaymentHandler handles POST /payments/{id}/confirm.
func (h *PaymentHandlers) ConfirmPaymentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	paymentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	view, err := h.service.ConfirmPayment(r.Context(), userID, paymentID, r.FormValue("pin"))
	if err != nil {
		h.handleError(w, r, "confirm_payment", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// ReversePaymentHandler handles POST /payments/{id}/reverse.
func (h *PaymentHandlers) ReversePaymentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	paymentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	view, err := h.service.ReversePayment(r.Context(), userID, paymentID)
	if err != nil {
		h.handleError(w, r, "reverse_payment", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetPaymentHandler handles GET /payments/{id}.
func (h *PaymentHandlers) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	paymentID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	view, err := h.service.GetPayment(r.Context(), userID, paymentID)
	if err != nil {
		h.handleError(w, r, "get_payment", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *PaymentHandlers) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, "list_accounts", err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *PaymentHandlers) ListServicesHandler(w http.ResponseWriter, r *http.Request) {
	services, err := h.service.ListServices(r.Context())
	if err != nil {
		h.handleError(w, r, "list_services", err)
		return
	}
	writeJSON(w, http.StatusOK, services)
}

// ListTransactionsHandler handles GET /transactions?page=&page_size=.
func (h *PaymentHandlers) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	page, err := parseOptionalPositiveInt(query.Get("page"), 1)
	if err != nil || page > app.MaxPage {
		writeError(w, http.StatusBadRequest, "page must be between 1 and "+strconv.Itoa(app.MaxPage))
		return
	}
	pageSize, err := parseOptionalPositiveInt(query.Get("page_size"), app.DefaultPageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, "page_size must be a positive integer")
		return
	}

	result, err := h.service.ListTransactions(r.Context(), userID, page, pageSize)
	if err != nil {
		h.handleError(w, r, "list_transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *PaymentHandlers) GetTransactionHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	transactionID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	view, err := h.service.GetTransaction(r.Context(), userID, transactionID)
	if err != nil {
		h.handleError(w, r, "get_transaction", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *PaymentHandlers) requireUser(w http.ResponseWriter, r *http.Request) (int64, bool) {
	userID, ok := GetUserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Could not get user ID from context")
		return 0, false
	}
	return userID, true
}

// handleError maps orchestrator errors to HTTP responses. Order matters: a
// payment can be both insufficiently funded and reversed.
func (h *PaymentHandlers) handleError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	status, message := errorStatus(err)

	var limited *app.RateLimitError
	if errors.As(err, &limited) {
		w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfterSeconds))
	}

	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, "request failed", "endpoint", endpoint, "status", status, "err", err)
	writeError(w, status, message)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, app.ErrReconciliationRequired):
		return http.StatusInternalServerError, "Payment failed and requires manual reconciliation"
	case errors.Is(err, app.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "Insufficient balance"
	case errors.Is(err, app.ErrPaymentReversed):
		return http.StatusBadGateway, "Payment could not be completed and was reversed"
	case errors.Is(err, app.ErrInvalidRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound, notFoundMessage(err)
	case errors.Is(err, app.ErrInvalidPINFormat):
		return http.StatusBadRequest, "PIN must be exactly 4 numeric digits"
	case errors.Is(err, app.ErrInvalidCredential):
		return http.StatusUnauthorized, "Invalid PIN"
	case errors.Is(err, app.ErrRateLimited):
		return http.StatusTooManyRequests, "Too many requests. Please wait and try again."
	case errors.Is(err, app.ErrInvalidState):
		return http.StatusConflict, err.Error()
	case errors.Is(err, app.ErrAlreadyPaid):
		return http.StatusLocked, "Bill already paid"
	case errors.Is(err, app.ErrGatewayUnreachable):
		return http.StatusBadGateway, "Payment gateway unavailable"
	case errors.Is(err, app.ErrGatewayRejected):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, app.ErrConfiguration):
		return http.StatusInternalServerError, "Service misconfigured"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func notFoundMessage(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 {
		msg = msg[idx+2:]
	}
	if msg == "" {
		return "Not found"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := parseRequiredID(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func parseRequiredID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, err
	}
	if id <= 0 {
		return 0, errors.New("must be > 0")
	}
	return id, nil
}

func parseOptionalPositiveInt(raw string, defaultValue int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if value < 1 {
		return 0, errors.New("must be >= 1")
	}
	return value, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/oakbank/transferd/internal/domain"
	"github.com/oakbank/transferd/internal/identity"
	"github.com/oakbank/transferd/internal/money"
	"github.com/oakbank/transferd/internal/transfer"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transferd_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transferd_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	transfersCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transferd_transfers_committed_total",
		Help: "Successfully committed transfers",
	})
)

// Directory is the read surface the handlers need from the data store.
type Directory interface {
	ListAccountsByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	ListTransactions(ctx context.Context, accountID uuid.UUID, accountNumber string) ([]domain.TransactionRecord, error)
	CustomerByEmail(ctx context.Context, email string) (*domain.Customer, error)
}

type Handler struct {
	directory Directory
	workflow  *transfer.Manager
	verifier  transfer.Verifier
	tokens    *identity.TokenManager
	validate  *validator.Validate
}

func NewHandler(directory Directory, workflow *transfer.Manager, verifier transfer.Verifier, tokens *identity.TokenManager) *Handler {
	return &Handler{
		directory: directory,
		workflow:  workflow,
		verifier:  verifier,
		tokens:    tokens,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/login"))
	defer timer.ObserveDuration()

	var req loginRequest
	if !h.decode(w, r, &req, "POST", "/login") {
		return
	}

	customer, err := h.directory.CustomerByEmail(r.Context(), req.Email)
	if err != nil {
		h.respondError(w, domain.ErrInvalidCredentials, "POST", "/login")
		return
	}
	if err := h.verifier.Verify(r.Context(), customer.Email, req.Password); err != nil {
		h.respondError(w, domain.ErrInvalidCredentials, "POST", "/login")
		return
	}

	token, err := h.tokens.Issue(*customer)
	if err != nil {
		h.respondError(w, err, "POST", "/login")
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"token": token}, "POST", "/login")
}

func (h *Handler) ListAccountsHandler(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	accounts, err := h.directory.ListAccountsByOwner(r.Context(), session.CustomerID)
	if err != nil {
		h.respondError(w, err, "GET", "/accounts")
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	h.respondJSON(w, http.StatusOK, accounts, "GET", "/accounts")
}

// ownedAccount fetches an account and hides other customers' accounts
// behind not-found.
func (h *Handler) ownedAccount(r *http.Request) (*domain.Account, error) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		return nil, domain.ErrAccountNotFound
	}
	acc, err := h.directory.GetAccount(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if acc.OwnerID != sessionFrom(r.Context()).CustomerID {
		return nil, domain.ErrAccountNotFound
	}
	return acc, nil
}

func (h *Handler) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	acc, err := h.ownedAccount(r)
	if err != nil {
		h.respondError(w, err, "GET", "/accounts/{id}")
		return
	}
	h.respondJSON(w, http.StatusOK, acc, "GET", "/accounts/{id}")
}

type transactionView struct {
	domain.TransactionRecord
	Direction    domain.Direction `json:"direction"`
	SignedAmount decimal.Decimal  `json:"signed_amount"`
}

func (h *Handler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	acc, err := h.ownedAccount(r)
	if err != nil {
		h.respondError(w, err, "GET", "/accounts/{id}/transactions")
		return
	}

	records, err := h.directory.ListTransactions(r.Context(), acc.ID, acc.Number)
	if err != nil {
		h.respondError(w, err, "GET", "/accounts/{id}/transactions")
		return
	}

	views := make([]transactionView, 0, len(records))
	for _, rec := range records {
		views = append(views, transactionView{
			TransactionRecord: rec,
			Direction:         rec.DirectionFor(*acc),
			SignedAmount:      rec.SignedAmountFor(*acc),
		})
	}
	h.respondJSON(w, http.StatusOK, views, "GET", "/accounts/{id}/transactions")
}

type draftRequest struct {
	SourceAccountID   string `json:"source_account_id" validate:"required,uuid"`
	DestinationNumber string `json:"destination_number" validate:"required"`
	Amount            string `json:"amount" validate:"required"`
	Memo              string `json:"memo"`
	Classification    string `json:"classification"`
}

func (h *Handler) CreateDraftHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/transfers/drafts"))
	defer timer.ObserveDuration()

	var req draftRequest
	if !h.decode(w, r, &req, "POST", "/transfers/drafts") {
		return
	}
	sourceID, err := uuid.Parse(req.SourceAccountID)
	if err != nil {
		h.respondError(w, domain.ErrAccountNotFound, "POST", "/transfers/drafts")
		return
	}

	session := sessionFrom(r.Context())
	view, err := h.workflow.Start(r.Context(), transfer.Identity{ID: session.CustomerID, Email: session.Email}, transfer.Input{
		SourceAccountID:   sourceID,
		DestinationNumber: req.DestinationNumber,
		Amount:            req.Amount,
		Memo:              req.Memo,
		Classification:    req.Classification,
	})
	if err != nil {
		h.respondError(w, err, "POST", "/transfers/drafts")
		return
	}
	h.respondJSON(w, http.StatusCreated, view, "POST", "/transfers/drafts")
}

func (h *Handler) GetDraftHandler(w http.ResponseWriter, r *http.Request) {
	id, session, ok := h.draftVars(w, r, "GET", "/transfers/drafts/{id}")
	if !ok {
		return
	}
	view, err := h.workflow.Get(id, session.CustomerID)
	if err != nil {
		h.respondError(w, err, "GET", "/transfers/drafts/{id}")
		return
	}
	h.respondJSON(w, http.StatusOK, view, "GET", "/transfers/drafts/{id}")
}

func (h *Handler) ProceedDraftHandler(w http.ResponseWriter, r *http.Request) {
	id, session, ok := h.draftVars(w, r, "POST", "/transfers/drafts/{id}/proceed")
	if !ok {
		return
	}
	view, err := h.workflow.Proceed(id, session.CustomerID)
	if err != nil {
		h.respondError(w, err, "POST", "/transfers/drafts/{id}/proceed")
		return
	}
	h.respondJSON(w, http.StatusOK, view, "POST", "/transfers/drafts/{id}/proceed")
}

func (h *Handler) DismissDraftHandler(w http.ResponseWriter, r *http.Request) {
	id, session, ok := h.draftVars(w, r, "POST", "/transfers/drafts/{id}/dismiss")
	if !ok {
		return
	}
	view, err := h.workflow.Dismiss(id, session.CustomerID)
	if err != nil {
		h.respondError(w, err, "POST", "/transfers/drafts/{id}/dismiss")
		return
	}
	h.respondJSON(w, http.StatusOK, view, "POST", "/transfers/drafts/{id}/dismiss")
}

func (h *Handler) CancelDraftHandler(w http.ResponseWriter, r *http.Request) {
	id, session, ok := h.draftVars(w, r, "DELETE", "/transfers/drafts/{id}")
	if !ok {
		return
	}
	if err := h.workflow.Cancel(id, session.CustomerID); err != nil {
		h.respondError(w, err, "DELETE", "/transfers/drafts/{id}")
		return
	}
	h.respondJSON(w, http.StatusNoContent, nil, "DELETE", "/transfers/drafts/{id}")
}

type verifyRequest struct {
	Password string `json:"password" validate:"required"`
}

func (h *Handler) VerifyDraftHandler(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues("POST", "/transfers/drafts/{id}/verify"))
	defer timer.ObserveDuration()

	id, session, ok := h.draftVars(w, r, "POST", "/transfers/drafts/{id}/verify")
	if !ok {
		return
	}
	var req verifyRequest
	if !h.decode(w, r, &req, "POST", "/transfers/drafts/{id}/verify") {
		return
	}

	receipt, err := h.workflow.VerifyAndCommit(r.Context(),
		id, transfer.Identity{ID: session.CustomerID, Email: session.Email}, req.Password)
	if err != nil {
		h.respondError(w, err, "POST", "/transfers/drafts/{id}/verify")
		return
	}

	transfersCommitted.Inc()
	h.respondJSON(w, http.StatusCreated, receipt, "POST", "/transfers/drafts/{id}/verify")
}

// Helpers

func (h *Handler) draftVars(w http.ResponseWriter, r *http.Request, method, endpoint string) (uuid.UUID, *identity.Session, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		h.respondError(w, domain.ErrDraftNotFound, method, endpoint)
		return uuid.Nil, nil, false
	}
	return id, sessionFrom(r.Context()), true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}, method, endpoint string) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.respondJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed JSON body"}, method, endpoint)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.respondJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()}, method, endpoint)
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrWrongPassword),
		errors.Is(err, domain.ErrVerificationFailed),
		errors.Is(err, identity.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotAccountOwner):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrRecipientNotFound),
		errors.Is(err, domain.ErrDraftNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrDraftLocked):
		return http.StatusLocked
	case errors.Is(err, domain.ErrSelfTransfer),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrStageViolation),
		errors.Is(err, domain.ErrDuplicateTransfer),
		errors.Is(err, money.ErrAmountEmpty),
		errors.Is(err, money.ErrAmountNotNumeric),
		errors.Is(err, money.ErrAmountNotPositive),
		errors.Is(err, money.ErrAmountPrecision):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (h *Handler) respondError(w http.ResponseWriter, err error, method, endpoint string) {
	code := statusFor(err)
	payload := map[string]interface{}{"error": err.Error()}
	if code == http.StatusInternalServerError {
		payload["error"] = "internal server error"
	}

	// Commit failures carry context for the failure view.
	var cf *transfer.CommitFailure
	if errors.As(err, &cf) {
		payload["error"] = cf.Error()
		payload["attempted_amount"] = cf.Amount
		payload["recipient"] = cf.RecipientLabel
	}
	h.respondJSON(w, code, payload, method, endpoint)
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	respondWithJSON(w, code, payload)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// Package httphandler is the JSON REST driving adapter for the review ledger.
package httphandler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/reviewledger/internal/adapter/driving/contract"
	"github.com/ericfisherdev/reviewledger/internal/application"
	"github.com/ericfisherdev/reviewledger/internal/domain/model"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	ledger   *application.LedgerService
	contract *contract.Contract
	logger   *slog.Logger
	now      func() time.Time
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(ledger *application.LedgerService, c *contract.Contract, logger *slog.Logger) *Handler {
	return &Handler{
		ledger:   ledger,
		contract: c,
		logger:   logger,
		now:      time.Now,
	}
}

// RegisterAPIRoutes registers the REST endpoints on mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("POST /api/v1/reviews", h.RecordReview)
	mux.HandleFunc("GET /api/v1/reviews/{id}", h.QueryReview)
	mux.HandleFunc("PUT /api/v1/reviews/{id}/status", h.UpdateReviewStatus)
	mux.HandleFunc("GET /api/v1/reviews/{id}/history", h.GetReviewHistory)
	mux.HandleFunc("GET /api/v1/reviews/{id}/commit", h.GetReviewCommit)
	mux.HandleFunc("POST /api/v1/invoke", h.Invoke)
	mux.HandleFunc("GET /api/v1/ledger/entries", h.ListEntries)
	mux.HandleFunc("GET /api/v1/ledger/verify", h.VerifyLedger)
	mux.HandleFunc("GET /api/v1/health", h.Health)
}

// NewServeMux creates an http.Handler with the API routes registered and
// wrapped with the standard middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	RegisterAPIRoutes(mux, h)
	return ApplyMiddleware(mux, logger)
}

// RecordReview files a review. Timestamp defaults to the current UTC time
// when the body omits it.
func (h *Handler) RecordReview(w http.ResponseWriter, r *http.Request) {
	var req RecordReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if missing := missingFields(map[string]string{
		"reviewId": req.ReviewID,
		"commitId": req.CommitID,
		"reviewer": req.Reviewer,
		"status":   req.Status,
	}); len(missing) > 0 {
		writeError(w, http.StatusBadRequest, "missing required fields: "+strings.Join(missing, ", "))
		return
	}

	timestamp := req.Timestamp
	if timestamp == "" {
		timestamp = h.now().UTC().Format(time.RFC3339)
	}

	record, err := h.ledger.RecordReview(r.Context(), req.ReviewID, req.CommitID, req.Reviewer, timestamp, req.Status)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to record review")
		return
	}

	writeJSON(w, http.StatusCreated, toReviewResponse(record))
}

// QueryReview returns the stored document of a review's current version
// byte-for-byte.
func (h *Handler) QueryReview(w http.ResponseWriter, r *http.Request) {
	data, err := h.ledger.QueryReview(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err, "failed to query review")
		return
	}

	writeRawJSON(w, http.StatusOK, data)
}

// UpdateReviewStatus changes the status of an existing review.
func (h *Handler) UpdateReviewStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Status == "" {
		writeError(w, http.StatusBadRequest, "missing required fields: status")
		return
	}

	record, err := h.ledger.UpdateReviewStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to update review status")
		return
	}

	writeJSON(w, http.StatusOK, toReviewResponse(record))
}

// GetReviewHistory returns every version of a review, oldest first. Unknown
// ids yield an empty array.
func (h *Handler) GetReviewHistory(w http.ResponseWriter, r *http.Request) {
	records, err := h.ledger.GetReviewHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err, "failed to get review history")
		return
	}

	resp := make([]ReviewResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toReviewResponse(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetReviewCommit resolves the current version's commit id in the configured
// repository.
func (h *Handler) GetReviewCommit(w http.ResponseWriter, r *http.Request) {
	info, err := h.ledger.LookupReviewCommit(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err, "failed to look up review commit")
		return
	}

	writeJSON(w, http.StatusOK, toCommitResponse(*info))
}

// Invoke dispatches a named contract function with string arguments.
func (h *Handler) Invoke(w http.ResponseWriter, r *http.Request) {
	if h.contract == nil {
		writeError(w, http.StatusServiceUnavailable, "contract invocation is not enabled")
		return
	}

	var req InvokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Function == "" {
		writeError(w, http.StatusBadRequest, "missing required fields: function")
		return
	}

	result, err := h.contract.Invoke(r.Context(), req.Function, req.Args...)
	if err != nil {
		h.writeServiceError(w, r, err, "contract invocation failed")
		return
	}

	writeJSON(w, http.StatusOK, InvokeResponse{Result: result})
}

// ListEntries returns a page of the ledger in commit order. Query parameters:
// after (commit ordinal, default 0) and limit.
func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	after, err := queryInt(r, "after")
	if err != nil || after < 0 {
		writeError(w, http.StatusBadRequest, "invalid after parameter")
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil || limit < 0 {
		writeError(w, http.StatusBadRequest, "invalid limit parameter")
		return
	}

	entries, err := h.ledger.ListEntries(r.Context(), after, int(limit))
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list ledger entries")
		return
	}

	resp := make([]EntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toEntryResponse(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

// VerifyLedger checks the hash chain over the whole ledger.
func (h *Handler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.VerifyLedger(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "failed to verify ledger")
		return
	}

	writeJSON(w, http.StatusOK, ChainReportResponse(report))
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   h.now().UTC().Format(time.RFC3339),
	})
}

// writeServiceError maps ledger errors to HTTP statuses. Unexpected errors
// are logged and reported as a generic 500.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, msg string) {
	var notFound *model.NotFoundError

	switch {
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, notFound.Error())
	case errors.Is(err, application.ErrCommitNotFound):
		writeError(w, http.StatusNotFound, "commit not found")
	case errors.Is(err, application.ErrEmptyReviewID), errors.Is(err, model.ErrInvalidField):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, contract.ErrUnknownFunction), errors.Is(err, contract.ErrArgumentCount):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrVersionConflict):
		writeError(w, http.StatusConflict, "review was modified concurrently, retry the request")
	case errors.Is(err, application.ErrCommitLookupDisabled):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, model.ErrMalformedStoredValue):
		h.logger.Error(msg, "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "stored review is malformed")
	default:
		h.logger.Error(msg, "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// missingFields returns the names of empty values in document field order.
func missingFields(fields map[string]string) []string {
	var missing []string
	for _, name := range []string{"reviewId", "commitId", "reviewer", "timestamp", "status"} {
		if v, ok := fields[name]; ok && v == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

func queryInt(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}

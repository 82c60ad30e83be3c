// Package web implements the HTML GUI driving adapter using templ components.
package web

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	vm "github.com/ericfisherdev/reviewledger/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/reviewledger/internal/application"
	"github.com/ericfisherdev/reviewledger/internal/domain/model"
)

// ledgerPageSize is the number of entries shown per ledger page.
const ledgerPageSize = 50

// Handler is the web GUI driving adapter that serves HTML via templ components.
type Handler struct {
	ledger *application.LedgerService
	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(ledger *application.LedgerService, logger *slog.Logger) *Handler {
	return &Handler{
		ledger: ledger,
		logger: logger,
	}
}

// Ledger renders one page of the ledger log, oldest first. One entry past the
// page is fetched to decide whether an older page exists.
func (h *Handler) Ledger(w http.ResponseWriter, r *http.Request) {
	var after int64
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid after parameter", http.StatusBadRequest)
			return
		}
		after = parsed
	}

	entries, err := h.ledger.ListEntries(r.Context(), after, ledgerPageSize+1)
	if err != nil {
		h.renderError(w, r, "failed to list ledger entries", err)
		return
	}

	hasMore := len(entries) > ledgerPageSize
	if hasMore {
		entries = entries[:ledgerPageSize]
	}

	data := vm.LedgerViewModel{Entries: make([]vm.EntryViewModel, 0, len(entries))}
	for _, e := range entries {
		data.Entries = append(data.Entries, toEntryViewModel(e))
	}
	if hasMore {
		data.NextPath = fmt.Sprintf("/?after=%d", entries[len(entries)-1].Committed)
	}

	h.render(w, r, Layout("Review Ledger", LedgerPage(data)))
}

// Verify walks the whole hash chain and renders the result.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.VerifyLedger(r.Context())
	if err != nil {
		h.renderError(w, r, "failed to verify ledger", err)
		return
	}

	h.render(w, r, Layout("Chain verification", VerifyPage(toVerifyViewModel(report))))
}

// FindReview redirects the lookup form to the review's page.
func (h *Handler) FindReview(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, reviewPath(id), http.StatusSeeOther)
}

// Review renders a review's current version, its history, and a status form.
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	record, err := h.ledger.GetReview(r.Context(), id)
	if err != nil {
		h.renderError(w, r, "failed to load review", err)
		return
	}

	versions, err := h.ledger.GetReviewVersions(r.Context(), id)
	if err != nil {
		h.renderError(w, r, "failed to load review history", err)
		return
	}

	data := toReviewPageViewModel(record, versions)
	data.CSRFToken = csrfToken(w, r)

	info, err := h.ledger.LookupReviewCommit(r.Context(), id)
	switch {
	case err == nil:
		data.Commit = toCommitViewModel(*info)
	case errors.Is(err, application.ErrCommitLookupDisabled):
	case errors.Is(err, application.ErrCommitNotFound):
		data.CommitNote = "Commit " + record.CommitID + " was not found in the configured repository."
	default:
		h.logger.Warn("commit lookup failed", "review_id", id, "error", err)
		data.CommitNote = "Commit details are temporarily unavailable."
	}

	h.render(w, r, Layout("Review "+id, ReviewPage(data)))
}

// UpdateStatus handles the status form and redirects back to the review.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	id := r.PathValue("id")
	status := strings.TrimSpace(r.FormValue("status"))
	if status == "" {
		http.Error(w, "status is required", http.StatusBadRequest)
		return
	}

	if _, err := h.ledger.UpdateReviewStatus(r.Context(), id, status); err != nil {
		h.renderError(w, r, "failed to update review status", err)
		return
	}

	h.logger.Info("review status updated via web", "review_id", id, "status", status)
	http.Redirect(w, r, reviewPath(id), http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, c templ.Component) {
	if err := c.Render(r.Context(), w); err != nil {
		h.logger.Error("failed to render page", "path", r.URL.Path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

// renderError shows the not-found page for unknown reviews, a plain 400 for
// unstorable input and a plain 500 for everything else.
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var notFound *model.NotFoundError
	if errors.As(err, &notFound) {
		templ.Handler(Layout("Not found", NotFoundPage(notFound.Error())), templ.WithStatus(http.StatusNotFound)).ServeHTTP(w, r)
		return
	}
	if errors.Is(err, model.ErrInvalidField) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.logger.Error(msg, "path", r.URL.Path, "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

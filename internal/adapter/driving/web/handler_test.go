package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/reviewledger/internal/adapter/driven/memory"
	"github.com/ericfisherdev/reviewledger/internal/application"
	"github.com/ericfisherdev/reviewledger/internal/domain/model"
)

type stubCommitSource struct {
	info *model.CommitInfo
}

func (s *stubCommitSource) FetchCommit(context.Context, string, string) (*model.CommitInfo, error) {
	return s.info, nil
}

func setupWeb(t *testing.T, opts ...application.LedgerOption) (*application.LedgerService, *http.ServeMux) {
	t.Helper()
	svc := application.NewLedgerService(memory.NewStore(), opts...)
	mux := http.NewServeMux()
	RegisterRoutes(mux, NewHandler(svc, slog.Default()))
	return svc, mux
}

func get(mux http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func postStatus(mux http.Handler, path, status, cookieToken, formToken string) *httptest.ResponseRecorder {
	form := url.Values{"status": {status}, csrfFormField: {formToken}}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookieToken != "" {
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: cookieToken})
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestLedger_Empty(t *testing.T) {
	_, mux := setupWeb(t)

	rec := get(mux, "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No reviews recorded yet.")
	assert.Contains(t, rec.Body.String(), `<a href="/verify">Verify chain</a>`)
}

func TestLedger_ListsEntries(t *testing.T) {
	svc, mux := setupWeb(t)
	ctx := context.Background()
	_, err := svc.RecordReview(ctx, "R1", "abc123", "alice", "t", "pending")
	require.NoError(t, err)
	_, err = svc.RecordReview(ctx, "R<2>", "def456", "bob", "t", "approved")
	require.NoError(t, err)

	rec := get(mux, "/")

	body := rec.Body.String()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, `<a href="/reviews/R1">R1</a>`)
	assert.Contains(t, body, "R&lt;2&gt;")
	assert.NotContains(t, body, "R<2>")
	assert.Contains(t, body, `<span class="badge" data-status="approved">approved</span>`)
	assert.NotContains(t, body, "Chain verified")
	assert.NotContains(t, body, "Older entries")
}

func TestLedger_Paging(t *testing.T) {
	svc, mux := setupWeb(t)
	for i := range ledgerPageSize + 1 {
		_, err := svc.RecordReview(context.Background(), fmt.Sprintf("R%d", i), "c", "alice", "t", "pending")
		require.NoError(t, err)
	}

	rec := get(mux, "/")
	assert.Contains(t, rec.Body.String(), fmt.Sprintf(`href="/?after=%d"`, ledgerPageSize))

	rec = get(mux, fmt.Sprintf("/?after=%d", ledgerPageSize))
	assert.Contains(t, rec.Body.String(), fmt.Sprintf(">R%d</a>", ledgerPageSize))
	assert.NotContains(t, rec.Body.String(), "Older entries")

	rec = get(mux, "/?after=nope")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLedger_FullLastPageHasNoPager(t *testing.T) {
	svc, mux := setupWeb(t)
	for i := range ledgerPageSize {
		_, err := svc.RecordReview(context.Background(), fmt.Sprintf("R%d", i), "c", "alice", "t", "pending")
		require.NoError(t, err)
	}

	rec := get(mux, "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ledgerPageSize, strings.Count(rec.Body.String(), `<tr><td>`))
	assert.NotContains(t, rec.Body.String(), "Older entries")
}

func TestVerify(t *testing.T) {
	svc, mux := setupWeb(t)
	ctx := context.Background()
	_, err := svc.RecordReview(ctx, "R1", "abc123", "alice", "t", "pending")
	require.NoError(t, err)
	_, err = svc.UpdateReviewStatus(ctx, "R1", "approved")
	require.NoError(t, err)

	rec := get(mux, "/verify")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<title>Chain verification</title>")
	assert.Contains(t, rec.Body.String(), `<p class="banner ok">Chain verified: 2 entries.</p>`)
}

// forgedStore serves a ledger whose first entry was edited after commit.
type forgedStore struct {
	*memory.Store
}

func (s *forgedStore) Entries(ctx context.Context, after int64, limit int) ([]model.VersionedEntry, error) {
	entries, err := s.Store.Entries(ctx, after, limit)
	for i := range entries {
		if entries[i].Committed == 1 {
			entries[i].Value = []byte(`{}`)
		}
	}
	return entries, err
}

func TestVerify_BrokenChain(t *testing.T) {
	svc := application.NewLedgerService(&forgedStore{Store: memory.NewStore()})
	mux := http.NewServeMux()
	RegisterRoutes(mux, NewHandler(svc, slog.Default()))
	_, err := svc.RecordReview(context.Background(), "R1", "abc123", "alice", "t", "pending")
	require.NoError(t, err)

	rec := get(mux, "/verify")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Chain broken at entry 1: ")
}

func TestFindReview(t *testing.T) {
	_, mux := setupWeb(t)

	rec := get(mux, "/reviews?id=R1")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/reviews/R1", rec.Header().Get("Location"))

	rec = get(mux, "/reviews?id=")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestReview_Page(t *testing.T) {
	svc, mux := setupWeb(t)
	ctx := context.Background()
	_, err := svc.RecordReview(ctx, "R1", "abc123", "alice", "2024-01-01T00:00:00Z", "pending")
	require.NoError(t, err)
	_, err = svc.UpdateReviewStatus(ctx, "R1", "approved")
	require.NoError(t, err)

	rec := get(mux, "/reviews/R1")

	body := rec.Body.String()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, body, "<title>Review R1</title>")
	assert.Contains(t, body, "<code>abc123</code>")
	assert.Contains(t, body, `<option value="approved" selected>`)
	assert.Contains(t, body, `action="/reviews/R1/status"`)
	assert.Contains(t, body, `<section class="report">`)
	assert.Contains(t, body, "<table>")

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, csrfCookieName, cookies[0].Name)
	assert.Contains(t, body, `value="`+cookies[0].Value+`"`)
}

func TestReview_FreeFormStatusIsSelectable(t *testing.T) {
	svc, mux := setupWeb(t)
	_, err := svc.RecordReview(context.Background(), "R1", "abc123", "alice", "t", "needs-security-signoff")
	require.NoError(t, err)

	rec := get(mux, "/reviews/R1")

	assert.Contains(t, rec.Body.String(), `<option value="needs-security-signoff" selected>`)
}

func TestReview_NotFound(t *testing.T) {
	_, mux := setupWeb(t)

	rec := get(mux, "/reviews/R9")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Review R9 does not exist")
}

func TestReview_CommitDetails(t *testing.T) {
	src := &stubCommitSource{info: &model.CommitInfo{
		SHA: "abc1234567890", Author: "alice", Message: "Fix parser", URL: "https://github.com/octo/widgets/commit/abc1234567890",
	}}
	svc, mux := setupWeb(t, application.WithCommitSource(src, "octo/widgets"))
	_, err := svc.RecordReview(context.Background(), "R1", "abc1234567890", "alice", "t", "pending")
	require.NoError(t, err)

	rec := get(mux, "/reviews/R1")

	body := rec.Body.String()
	assert.Contains(t, body, "<code>abc1234</code></a> by alice")
	assert.Contains(t, body, "Fix parser")
}

func TestReview_CommitMissing(t *testing.T) {
	svc, mux := setupWeb(t, application.WithCommitSource(&stubCommitSource{}, "octo/widgets"))
	_, err := svc.RecordReview(context.Background(), "R1", "deadbeef", "alice", "t", "pending")
	require.NoError(t, err)

	rec := get(mux, "/reviews/R1")

	assert.Contains(t, rec.Body.String(), "Commit deadbeef was not found in the configured repository.")
}

func TestUpdateStatus(t *testing.T) {
	svc, mux := setupWeb(t)
	_, err := svc.RecordReview(context.Background(), "R1", "abc123", "alice", "t", "pending")
	require.NoError(t, err)

	rec := postStatus(mux, "/reviews/R1/status", "approved", "tok", "tok")

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/reviews/R1", rec.Header().Get("Location"))
	got, err := svc.GetReview(context.Background(), "R1")
	require.NoError(t, err)
	assert.Equal(t, "approved", got.Status)
}

func TestUpdateStatus_Rejected(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		status      string
		cookieToken string
		formToken   string
		wantStatus  int
	}{
		{"missing cookie", "/reviews/R1/status", "approved", "", "tok", http.StatusForbidden},
		{"token mismatch", "/reviews/R1/status", "approved", "tok", "other", http.StatusForbidden},
		{"empty status", "/reviews/R1/status", " ", "tok", "tok", http.StatusBadRequest},
		{"unknown review", "/reviews/R9/status", "approved", "tok", "tok", http.StatusNotFound},
		{"invalid utf-8 status", "/reviews/R1/status", "appro\xffved", "tok", "tok", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mux := setupWeb(t)
			_, err := svc.RecordReview(context.Background(), "R1", "abc123", "alice", "t", "pending")
			require.NoError(t, err)

			rec := postStatus(mux, tt.path, tt.status, tt.cookieToken, tt.formToken)

			assert.Equal(t, tt.wantStatus, rec.Code)
			history, err := svc.GetReviewHistory(context.Background(), "R1")
			require.NoError(t, err)
			assert.Len(t, history, 1)
		})
	}
}

func TestStaticAssets(t *testing.T) {
	_, mux := setupWeb(t)

	rec := get(mux, "/static/ledger.css")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), ".badge")
}

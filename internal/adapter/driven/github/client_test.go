package github_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ghAdapter "github.com/ericfisherdev/reviewledger/internal/adapter/driven/github"
)

// newTestClient creates a Client backed by the given httptest handler.
func newTestClient(t *testing.T, handler http.Handler) *ghAdapter.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := ghAdapter.NewClientWithHTTPClient(server.Client(), server.URL+"/", "test-token")
	require.NoError(t, err)

	return client
}

const commitJSON = `{
	"sha": "c100abc",
	"html_url": "https://github.com/owner/repo/commit/c100abc",
	"author": {"login": "alice"},
	"commit": {
		"message": "Add ledger history endpoint",
		"author": {"name": "Alice A", "date": "2024-01-01T00:00:00Z"}
	}
}`

func TestFetchCommit(t *testing.T) {
	var gotPath, gotAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(commitJSON))
	})

	client := newTestClient(t, handler)
	info, err := client.FetchCommit(context.Background(), "owner/repo", "c100abc")

	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "/repos/owner/repo/commits/c100abc", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "c100abc", info.SHA)
	assert.Equal(t, "owner/repo", info.Repository)
	assert.Equal(t, "alice", info.Author)
	assert.Equal(t, "Add ledger history endpoint", info.Message)
	assert.Equal(t, "https://github.com/owner/repo/commit/c100abc", info.URL)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), info.CommittedAt.UTC())
}

func TestFetchCommit_AuthorFallsBackToGitName(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sha":"c1","commit":{"message":"m","author":{"name":"Bob B","date":"2024-01-01T00:00:00Z"}}}`))
	})

	client := newTestClient(t, handler)
	info, err := client.FetchCommit(context.Background(), "owner/repo", "c1")

	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Bob B", info.Author)
}

func TestFetchCommit_NotFound(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusUnprocessableEntity} {
		handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"No commit found"}`))
		})

		client := newTestClient(t, handler)
		info, err := client.FetchCommit(context.Background(), "owner/repo", "deadbeef")

		require.NoError(t, err, "status %d", status)
		assert.Nil(t, info, "status %d", status)
	}
}

func TestFetchCommit_ServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client := newTestClient(t, handler)
	_, err := client.FetchCommit(context.Background(), "owner/repo", "c1")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner/repo@c1")
}

func TestFetchCommit_InvalidRepoName(t *testing.T) {
	client := newTestClient(t, http.NotFoundHandler())

	for _, name := range []string{"", "owner", "/repo", "owner/"} {
		_, err := client.FetchCommit(context.Background(), name, "c1")
		require.Error(t, err, "repo %q", name)
		assert.Contains(t, err.Error(), "expected owner/repo")
	}
}

// Package github implements the CommitSource port using the go-github library.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/reviewledger/internal/domain/model"
	"github.com/ericfisherdev/reviewledger/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CommitSource = (*Client)(nil)

// Client implements the driven.CommitSource port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
//
// An empty token yields an unauthenticated client, which only sees public
// repositories and has a much lower rate limit.
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL, token string) (*Client, error) {
	client := gh.NewClient(httpClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// FetchCommit retrieves a single commit. Returns nil, nil when GitHub reports
// the commit or repository as missing (404) or the SHA as unresolvable (422).
func (c *Client) FetchCommit(ctx context.Context, repoFullName, sha string) (*model.CommitInfo, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	rc, resp, err := c.gh.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		var ghErr *gh.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil {
			switch ghErr.Response.StatusCode {
			case http.StatusNotFound, http.StatusUnprocessableEntity:
				return nil, nil
			}
		}
		return nil, fmt.Errorf("fetching commit %s@%s: %w", repoFullName, sha, err)
	}

	logRateLimit(resp, repoFullName+"/commits")

	return mapCommit(rc, repoFullName), nil
}

// mapCommit converts a go-github RepositoryCommit to a domain CommitInfo.
// It uses GetXxx() helper methods exclusively to avoid nil pointer panics.
func mapCommit(rc *gh.RepositoryCommit, repoFullName string) *model.CommitInfo {
	commit := rc.GetCommit()

	// Prefer the GitHub login; fall back to the git author name for commits
	// whose email is not linked to an account.
	author := rc.GetAuthor().GetLogin()
	if author == "" {
		author = commit.GetAuthor().GetName()
	}

	return &model.CommitInfo{
		SHA:         rc.GetSHA(),
		Repository:  repoFullName,
		Author:      author,
		Message:     commit.GetMessage(),
		URL:         rc.GetHTMLURL(),
		CommittedAt: commit.GetAuthor().GetDate().Time,
	}
}

// logRateLimit logs the GitHub API rate limit status after each call.
func logRateLimit(resp *gh.Response, endpoint string) {
	if resp == nil {
		return
	}

	slog.Debug("github api call",
		"endpoint", endpoint,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}

package driven

import (
	"context"

	"github.com/ericfisherdev/reviewledger/internal/domain/model"
)

// CommitSource resolves commit references against a source-hosting provider.
type CommitSource interface {
	// FetchCommit returns details for sha in repoFullName ("owner/repo").
	// Returns (nil, nil) when the commit does not exist.
	FetchCommit(ctx context.Context, repoFullName, sha string) (*model.CommitInfo, error)
}

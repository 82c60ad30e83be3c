package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ericfisherdev/reviewledger/internal/domain/model"
	"github.com/ericfisherdev/reviewledger/internal/domain/port/driven"
)

var (
	// ErrEmptyReviewID is returned when an operation is given an empty key.
	ErrEmptyReviewID = errors.New("review id must not be empty")

	// ErrCommitLookupDisabled is returned by LookupReviewCommit when no
	// commit source or repository is configured.
	ErrCommitLookupDisabled = errors.New("commit lookup is not configured")

	// ErrCommitNotFound is returned when the review's commit does not exist
	// in the configured repository.
	ErrCommitNotFound = errors.New("commit not found")
)

const (
	// DefaultUpdateRetries bounds how often UpdateReviewStatus re-reads after
	// losing a race with a concurrent writer.
	DefaultUpdateRetries = 3

	defaultEntriesLimit = 50
	maxEntriesLimit     = 500
)

// LedgerService maps the review operations onto a StateStore. It holds no
// state of its own; every record lives in the store's per-key version chain.
type LedgerService struct {
	store         driven.StateStore
	commits       driven.CommitSource
	commitRepo    string
	updateRetries int
}

// LedgerOption customizes a LedgerService.
type LedgerOption func(*LedgerService)

// WithCommitSource enables LookupReviewCommit against repoFullName.
func WithCommitSource(src driven.CommitSource, repoFullName string) LedgerOption {
	return func(s *LedgerService) {
		s.commits = src
		s.commitRepo = repoFullName
	}
}

// WithUpdateRetries sets how many version conflicts UpdateReviewStatus
// absorbs before giving up. Negative values are treated as zero.
func WithUpdateRetries(n int) LedgerOption {
	return func(s *LedgerService) {
		s.updateRetries = max(n, 0)
	}
}

// NewLedgerService creates a LedgerService over store.
func NewLedgerService(store driven.StateStore, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		store:         store,
		updateRetries: DefaultUpdateRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitLedger is called once when the ledger is deployed. It has nothing to
// seed; it only confirms the store answers.
func (s *LedgerService) InitLedger(ctx context.Context) error {
	if _, err := s.store.Entries(ctx, 0, 1); err != nil {
		return fmt.Errorf("init ledger: %w", err)
	}

	slog.Info("review ledger initialized")
	return nil
}

// RecordReview files a new review-typed record under reviewID. Recording an
// existing id is allowed: it appends a new version that becomes current while
// the earlier versions stay in the history.
func (s *LedgerService) RecordReview(
	ctx context.Context,
	reviewID, commitID, reviewer, timestamp, status string,
) (model.ReviewRecord, error) {
	if reviewID == "" {
		return model.ReviewRecord{}, ErrEmptyReviewID
	}

	record := model.NewReviewRecord(reviewID, commitID, reviewer, timestamp, status)
	data, err := model.MarshalReview(record)
	if err != nil {
		return model.ReviewRecord{}, err
	}

	seq, err := s.store.Put(ctx, reviewID, data)
	if err != nil {
		return model.ReviewRecord{}, fmt.Errorf("record review %s: %w", reviewID, err)
	}

	slog.Debug("review recorded", "review_id", reviewID, "sequence", seq, "status", status)
	return record, nil
}

// UpdateReviewStatus replaces the status of an existing review, leaving the
// other fields untouched, and appends the result as a new version.
func (s *LedgerService) UpdateReviewStatus(ctx context.Context, reviewID, newStatus string) (model.ReviewRecord, error) {
	if reviewID == "" {
		return model.ReviewRecord{}, ErrEmptyReviewID
	}

	for attempt := 0; ; attempt++ {
		entry, err := s.store.Latest(ctx, reviewID)
		if err != nil {
			return model.ReviewRecord{}, fmt.Errorf("read review %s: %w", reviewID, err)
		}
		if entry == nil || len(entry.Value) == 0 {
			return model.ReviewRecord{}, &model.NotFoundError{Key: reviewID}
		}

		record, err := decodeStored(reviewID, entry.Value)
		if err != nil {
			return model.ReviewRecord{}, err
		}
		record.Status = newStatus

		data, err := model.MarshalReview(record)
		if err != nil {
			return model.ReviewRecord{}, err
		}

		seq, err := s.store.PutIfLatest(ctx, reviewID, entry.Sequence, data)
		if errors.Is(err, model.ErrVersionConflict) && attempt < s.updateRetries {
			slog.Debug("review status update raced, retrying", "review_id", reviewID, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return model.ReviewRecord{}, fmt.Errorf("update review %s: %w", reviewID, err)
		}

		slog.Debug("review status updated", "review_id", reviewID, "sequence", seq, "status", newStatus)
		return record, nil
	}
}

// QueryReview returns the stored bytes of the current version, unmodified.
func (s *LedgerService) QueryReview(ctx context.Context, reviewID string) ([]byte, error) {
	if reviewID == "" {
		return nil, ErrEmptyReviewID
	}

	data, err := s.store.Get(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("query review %s: %w", reviewID, err)
	}
	if len(data) == 0 {
		return nil, &model.NotFoundError{Key: reviewID}
	}

	return data, nil
}

// GetReview returns the decoded current version of a review.
func (s *LedgerService) GetReview(ctx context.Context, reviewID string) (model.ReviewRecord, error) {
	data, err := s.QueryReview(ctx, reviewID)
	if err != nil {
		return model.ReviewRecord{}, err
	}
	return decodeStored(reviewID, data)
}

// GetReviewHistory returns every version of a review, oldest first. An
// unknown id yields an empty slice rather than a not-found error.
func (s *LedgerService) GetReviewHistory(ctx context.Context, reviewID string) ([]model.ReviewRecord, error) {
	versions, err := s.GetReviewVersions(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	records := make([]model.ReviewRecord, 0, len(versions))
	for _, v := range versions {
		records = append(records, v.Record)
	}
	return records, nil
}

// GetReviewVersions is GetReviewHistory with the ledger metadata of each
// version attached.
func (s *LedgerService) GetReviewVersions(ctx context.Context, reviewID string) ([]model.ReviewVersion, error) {
	if reviewID == "" {
		return nil, ErrEmptyReviewID
	}

	entries, err := s.store.History(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("review history %s: %w", reviewID, err)
	}

	versions := make([]model.ReviewVersion, 0, len(entries))
	for _, e := range entries {
		record, err := decodeStored(reviewID, e.Value)
		if err != nil {
			return nil, fmt.Errorf("version %d: %w", e.Sequence, err)
		}
		versions = append(versions, model.ReviewVersion{Record: record, Entry: e})
	}

	return versions, nil
}

// ListEntries returns a page of the ledger in commit order. A non-positive
// limit selects the default page size; larger limits are capped.
func (s *LedgerService) ListEntries(ctx context.Context, afterCommitted int64, limit int) ([]model.VersionedEntry, error) {
	if limit <= 0 {
		limit = defaultEntriesLimit
	}
	limit = min(limit, maxEntriesLimit)

	entries, err := s.store.Entries(ctx, afterCommitted, limit)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// VerifyLedger walks every entry in commit order and checks that ordinals
// are contiguous, each entry links to its predecessor's hash, and each hash
// matches its contents. The walk stops at the first broken entry.
func (s *LedgerService) VerifyLedger(ctx context.Context) (model.ChainReport, error) {
	report := model.ChainReport{Valid: true}
	prevHash := model.GenesisHash
	var after int64

	for {
		entries, err := s.store.Entries(ctx, after, maxEntriesLimit)
		if err != nil {
			return model.ChainReport{}, fmt.Errorf("verify ledger: %w", err)
		}
		if len(entries) == 0 {
			break
		}

		for _, e := range entries {
			var reason string
			switch {
			case e.Committed != after+1:
				reason = fmt.Sprintf("expected ordinal %d, found %d", after+1, e.Committed)
			case e.PrevHash != prevHash:
				reason = "previous hash does not match"
			case !e.Verify():
				reason = "entry hash does not match contents"
			}

			if reason != "" {
				report.Valid = false
				report.FirstInvalid = e.Committed
				report.Reason = reason
				slog.Warn("ledger verification failed", "committed", e.Committed, "key", e.Key, "reason", reason)
				return report, nil
			}

			report.Length++
			prevHash = e.Hash
			after = e.Committed
		}
	}

	return report, nil
}

// LookupReviewCommit resolves the current version's commitId against the
// configured repository.
func (s *LedgerService) LookupReviewCommit(ctx context.Context, reviewID string) (*model.CommitInfo, error) {
	if s.commits == nil || s.commitRepo == "" {
		return nil, ErrCommitLookupDisabled
	}

	record, err := s.GetReview(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	info, err := s.commits.FetchCommit(ctx, s.commitRepo, record.CommitID)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("%s@%s: %w", s.commitRepo, record.CommitID, ErrCommitNotFound)
	}

	return info, nil
}

// decodeStored decodes a stored document and checks it is filed under its
// own reviewId.
func decodeStored(key string, data []byte) (model.ReviewRecord, error) {
	record, err := model.UnmarshalReview(data)
	if err != nil {
		return model.ReviewRecord{}, fmt.Errorf("review %s: %w", key, err)
	}
	if record.ReviewID != key {
		return model.ReviewRecord{}, fmt.Errorf("review %s: stored reviewId %q: %w", key, record.ReviewID, model.ErrMalformedStoredValue)
	}
	return record, nil
}

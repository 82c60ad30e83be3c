package web

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	vm "github.com/ericfisherdev/reviewledger/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/reviewledger/internal/domain/model"
)

const (
	shortSHALength  = 7
	shortHashLength = 12
)

// toEntryViewModel converts a ledger entry to a log row. Values that are not
// review documents still render, without a status.
func toEntryViewModel(e model.VersionedEntry) vm.EntryViewModel {
	var status string
	if rec, err := model.UnmarshalReview(e.Value); err == nil {
		status = rec.Status
	}

	return vm.EntryViewModel{
		Committed:   e.Committed,
		Key:         e.Key,
		Sequence:    e.Sequence,
		Status:      status,
		CommittedAt: e.CommittedAt.UTC().Format(time.RFC3339),
		ShortHash:   shorten(e.Hash, shortHashLength),
		ReviewPath:  reviewPath(e.Key),
	}
}

// toReviewPageViewModel assembles the review page from the current record and
// its versions.
func toReviewPageViewModel(record model.ReviewRecord, versions []model.ReviewVersion) vm.ReviewPageViewModel {
	history := make([]vm.VersionViewModel, 0, len(versions))
	for _, v := range versions {
		history = append(history, vm.VersionViewModel{
			Sequence:    v.Entry.Sequence,
			Status:      v.Record.Status,
			Reviewer:    v.Record.Reviewer,
			Timestamp:   v.Record.Timestamp,
			CommittedAt: v.Entry.CommittedAt.UTC().Format(time.RFC3339),
			ShortHash:   shorten(v.Entry.Hash, shortHashLength),
		})
	}

	return vm.ReviewPageViewModel{
		Review: vm.ReviewViewModel{
			ReviewID:  record.ReviewID,
			CommitID:  record.CommitID,
			Reviewer:  record.Reviewer,
			Timestamp: record.Timestamp,
			Status:    record.Status,
		},
		History:         history,
		ReportHTML:      RenderMarkdown(HistoryReport(record.ReviewID, versions)),
		Statuses:        statusOptions(record.Status),
		StatusActionURL: reviewPath(record.ReviewID) + "/status",
	}
}

// toCommitViewModel converts a resolved commit for display.
func toCommitViewModel(c model.CommitInfo) *vm.CommitViewModel {
	return &vm.CommitViewModel{
		ShortSHA: shorten(c.SHA, shortSHALength),
		Author:   c.Author,
		Message:  c.Message,
		URL:      c.URL,
	}
}

func reviewPath(id string) string {
	return fmt.Sprintf("/reviews/%s", url.PathEscape(id))
}

func shorten(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// statusOptions lists the well-known statuses, plus current when it is a
// free-form value outside that set.
func statusOptions(current string) []string {
	opts := slices.Clone(model.KnownReviewStatuses)
	if current != "" && !slices.Contains(opts, current) {
		opts = append(opts, current)
	}
	return opts
}

// statusKey reduces a free-form status to the characters the stylesheet's
// data-status selectors match on.
func statusKey(status string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || r == '_' {
			return r
		}
		return -1
	}, strings.ToLower(status))
}

func statusLabel(status string) string {
	return strings.ReplaceAll(status, "_", " ")
}

// toVerifyViewModel converts a chain walk for display.
func toVerifyViewModel(report model.ChainReport) vm.VerifyViewModel {
	return vm.VerifyViewModel{
		Valid:        report.Valid,
		Length:       report.Length,
		FirstInvalid: report.FirstInvalid,
		Reason:       report.Reason,
	}
}

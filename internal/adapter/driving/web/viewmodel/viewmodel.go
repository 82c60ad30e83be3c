// Package viewmodel defines presentation-ready structs for templ components.
// View models decouple template rendering from domain model types.
package viewmodel

// EntryViewModel holds presentation-ready data for one row of the ledger log.
type EntryViewModel struct {
	Committed   int64
	Key         string
	Sequence    int64
	Status      string // Empty when the value does not decode as a review.
	CommittedAt string
	ShortHash   string
	ReviewPath  string // computed: /reviews/{id}
}

// LedgerViewModel holds all data needed to render the ledger log page.
type LedgerViewModel struct {
	Entries  []EntryViewModel
	NextPath string // Empty on the last page.
}

// VerifyViewModel holds the outcome of a hash-chain walk.
type VerifyViewModel struct {
	Valid        bool
	Length       int64
	FirstInvalid int64 // Committed ordinal of the first broken entry.
	Reason       string
}

// ReviewViewModel holds presentation-ready data for a review's current version.
type ReviewViewModel struct {
	ReviewID  string
	CommitID  string
	Reviewer  string
	Timestamp string
	Status    string
}

// VersionViewModel holds presentation-ready data for one historical version.
type VersionViewModel struct {
	Sequence    int64
	Status      string
	Reviewer    string
	Timestamp   string
	CommittedAt string
	ShortHash   string
}

// CommitViewModel holds presentation-ready data for a resolved source commit.
type CommitViewModel struct {
	ShortSHA string
	Author   string
	Message  string
	URL      string
}

// ReviewPageViewModel holds all data needed to render a review page.
type ReviewPageViewModel struct {
	Review     ReviewViewModel
	History    []VersionViewModel
	ReportHTML string // Sanitized HTML rendered from the markdown history report.
	Commit     *CommitViewModel
	CommitNote string // Shown instead of Commit when lookup is unavailable.

	// Status form.
	Statuses        []string
	StatusActionURL string // POST target for status updates
	CSRFToken       string
}

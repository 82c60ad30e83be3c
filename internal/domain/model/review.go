package model

// RecordType discriminates the kinds of documents that share the ledger.
type RecordType string

// RecordTypeReview tags every document written by the review ledger.
const RecordTypeReview RecordType = "review"

// ReviewRecord is one code-review event's latest known state. It is stored
// under its ReviewID, which never changes once the record is created.
type ReviewRecord struct {
	ReviewID  string
	CommitID  string // Opaque reference to the reviewed source commit.
	Reviewer  string
	Timestamp string // Caller supplied; never generated or validated here.
	Status    string
	Type      RecordType
}

// NewReviewRecord builds a review-typed record from its fields.
func NewReviewRecord(reviewID, commitID, reviewer, timestamp, status string) ReviewRecord {
	return ReviewRecord{
		ReviewID:  reviewID,
		CommitID:  commitID,
		Reviewer:  reviewer,
		Timestamp: timestamp,
		Status:    status,
		Type:      RecordTypeReview,
	}
}

// ReviewVersion pairs a decoded record with the ledger metadata of the
// entry it was read from.
type ReviewVersion struct {
	Record ReviewRecord
	Entry  VersionedEntry
}

package model

// Well-known review statuses. Status is free-form on the ledger; these are
// the values the GUI offers and the CLI documents.
const (
	ReviewStatusPending          = "pending"
	ReviewStatusApproved         = "approved"
	ReviewStatusRejected         = "rejected"
	ReviewStatusChangesRequested = "changes_requested"
)

// KnownReviewStatuses lists the well-known statuses in display order.
var KnownReviewStatuses = []string{
	ReviewStatusPending,
	ReviewStatusApproved,
	ReviewStatusChangesRequested,
	ReviewStatusRejected,
}

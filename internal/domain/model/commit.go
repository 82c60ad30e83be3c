package model

import "time"

// CommitInfo describes the source commit a review refers to, as resolved
// from the hosting provider.
type CommitInfo struct {
	SHA         string
	Repository  string
	Author      string
	Message     string
	URL         string
	CommittedAt time.Time
}

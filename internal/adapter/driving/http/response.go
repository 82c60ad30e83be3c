package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/reviewledger/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	writeRawJSON(w, status, data)
}

// writeRawJSON writes already-encoded JSON bytes unchanged.
func writeRawJSON(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// ReviewResponse is the JSON representation of a review record. Keys match
// the stored document.
type ReviewResponse struct {
	ReviewID  string `json:"reviewId"`
	CommitID  string `json:"commitId"`
	Reviewer  string `json:"reviewer"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
	Type      string `json:"type"`
}

// RecordReviewRequest is the JSON body for the record review endpoint.
type RecordReviewRequest struct {
	ReviewID  string `json:"reviewId"`
	CommitID  string `json:"commitId"`
	Reviewer  string `json:"reviewer"`
	Timestamp string `json:"timestamp"`
	Status    string `json:"status"`
}

// UpdateStatusRequest is the JSON body for the update status endpoint.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// InvokeRequest is the JSON body for the contract invoke endpoint.
type InvokeRequest struct {
	Function string   `json:"function"`
	Args     []string `json:"args"`
}

// InvokeResponse carries the serialized result of a contract function.
type InvokeResponse struct {
	Result string `json:"result"`
}

// EntryResponse is the JSON representation of one ledger entry.
type EntryResponse struct {
	Committed   int64  `json:"committed"`
	Key         string `json:"key"`
	Sequence    int64  `json:"sequence"`
	Value       string `json:"value"`
	CommittedAt string `json:"committedAt"`
	PrevHash    string `json:"prevHash"`
	Hash        string `json:"hash"`
}

// ChainReportResponse is the JSON representation of a ledger verification.
type ChainReportResponse struct {
	Valid        bool   `json:"valid"`
	Length       int64  `json:"length"`
	FirstInvalid int64  `json:"firstInvalid,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// CommitResponse is the JSON representation of a resolved source commit.
type CommitResponse struct {
	SHA         string `json:"sha"`
	Repository  string `json:"repository"`
	Author      string `json:"author"`
	Message     string `json:"message"`
	URL         string `json:"url"`
	CommittedAt string `json:"committedAt"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toReviewResponse converts a domain ReviewRecord to its JSON representation.
func toReviewResponse(r model.ReviewRecord) ReviewResponse {
	return ReviewResponse{
		ReviewID:  r.ReviewID,
		CommitID:  r.CommitID,
		Reviewer:  r.Reviewer,
		Timestamp: r.Timestamp,
		Status:    r.Status,
		Type:      string(r.Type),
	}
}

// toEntryResponse converts a ledger entry to its JSON representation.
func toEntryResponse(e model.VersionedEntry) EntryResponse {
	return EntryResponse{
		Committed:   e.Committed,
		Key:         e.Key,
		Sequence:    e.Sequence,
		Value:       string(e.Value),
		CommittedAt: e.CommittedAt.UTC().Format(time.RFC3339Nano),
		PrevHash:    e.PrevHash,
		Hash:        e.Hash,
	}
}

// toCommitResponse converts a domain CommitInfo to its JSON representation.
func toCommitResponse(c model.CommitInfo) CommitResponse {
	var committedAt string
	if !c.CommittedAt.IsZero() {
		committedAt = c.CommittedAt.UTC().Format(time.RFC3339)
	}

	return CommitResponse{
		SHA:         c.SHA,
		Repository:  c.Repository,
		Author:      c.Author,
		Message:     c.Message,
		URL:         c.URL,
		CommittedAt: committedAt,
	}
}

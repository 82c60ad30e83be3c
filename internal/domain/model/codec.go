package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"
)

// reviewDocument is the stored JSON shape of a ReviewRecord. Pointer fields
// let decoding tell a missing key apart from an empty string.
type reviewDocument struct {
	ReviewID  *string `json:"reviewId"`
	CommitID  *string `json:"commitId"`
	Reviewer  *string `json:"reviewer"`
	Timestamp *string `json:"timestamp"`
	Status    *string `json:"status"`
	Type      *string `json:"type"`
}

// MarshalReview serializes a record to its flat JSON document. HTML
// characters are written verbatim so stored bytes match what a JavaScript
// JSON.stringify client would produce. A field that is not valid UTF-8 is
// rejected with ErrInvalidField, since encoding/json would replace its bad
// bytes and the document would no longer decode to r.
func MarshalReview(r ReviewRecord) ([]byte, error) {
	if err := ValidateReview(r); err != nil {
		return nil, err
	}

	typ := string(r.Type)
	doc := reviewDocument{
		ReviewID:  &r.ReviewID,
		CommitID:  &r.CommitID,
		Reviewer:  &r.Reviewer,
		Timestamp: &r.Timestamp,
		Status:    &r.Status,
		Type:      &typ,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode review %q: %w", r.ReviewID, err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ValidateReview reports the first field of r that is not valid UTF-8.
func ValidateReview(r ReviewRecord) error {
	fields := []struct {
		name string
		val  string
	}{
		{"reviewId", r.ReviewID},
		{"commitId", r.CommitID},
		{"reviewer", r.Reviewer},
		{"timestamp", r.Timestamp},
		{"status", r.Status},
		{"type", string(r.Type)},
	}
	for _, f := range fields {
		if !utf8.ValidString(f.val) {
			return fmt.Errorf("%w: %s is not valid UTF-8", ErrInvalidField, f.name)
		}
	}
	return nil
}

// UnmarshalReview decodes a stored document. Anything other than a single
// JSON object carrying exactly the six string fields is rejected with
// ErrMalformedStoredValue.
func UnmarshalReview(data []byte) (ReviewRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc reviewDocument
	if err := dec.Decode(&doc); err != nil {
		return ReviewRecord{}, fmt.Errorf("%w: %v", ErrMalformedStoredValue, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return ReviewRecord{}, fmt.Errorf("%w: trailing data after document", ErrMalformedStoredValue)
	}

	fields := []struct {
		name string
		val  *string
	}{
		{"reviewId", doc.ReviewID},
		{"commitId", doc.CommitID},
		{"reviewer", doc.Reviewer},
		{"timestamp", doc.Timestamp},
		{"status", doc.Status},
		{"type", doc.Type},
	}
	for _, f := range fields {
		if f.val == nil {
			return ReviewRecord{}, fmt.Errorf("%w: missing field %q", ErrMalformedStoredValue, f.name)
		}
	}

	return ReviewRecord{
		ReviewID:  *doc.ReviewID,
		CommitID:  *doc.CommitID,
		Reviewer:  *doc.Reviewer,
		Timestamp: *doc.Timestamp,
		Status:    *doc.Status,
		Type:      RecordType(*doc.Type),
	}, nil
}

// MarshalReviews serializes a list of records as a JSON array of documents,
// the wire form of a review history.
func MarshalReviews(records []ReviewRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range records {
		data, err := MarshalReview(r)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(data)
	}
	buf.WriteByte(']')

	return buf.Bytes(), nil
}

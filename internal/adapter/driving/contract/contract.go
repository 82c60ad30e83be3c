// Package contract exposes the review ledger as a named-function contract:
// callers invoke a function by name with string arguments and receive a
// serialized string result, the calling convention of ledger chaincode.
package contract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/ericfisherdev/reviewledger/internal/application"
	"github.com/ericfisherdev/reviewledger/internal/domain/model"
)

var (
	// ErrUnknownFunction is returned for a function name the contract does not define.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrArgumentCount is returned when a function receives the wrong number of arguments.
	ErrArgumentCount = errors.New("wrong number of arguments")
)

type handlerFunc func(ctx context.Context, args []string) (string, error)

type function struct {
	params []string
	call   handlerFunc
}

// Contract dispatches invocations to a LedgerService.
type Contract struct {
	svc       *application.LedgerService
	functions map[string]function
}

// New creates a Contract backed by svc.
func New(svc *application.LedgerService) *Contract {
	c := &Contract{svc: svc}
	c.functions = map[string]function{
		"initLedger":         {nil, c.initLedger},
		"recordReview":       {[]string{"reviewId", "commitId", "reviewer", "timestamp", "status"}, c.recordReview},
		"updateReviewStatus": {[]string{"reviewId", "newStatus"}, c.updateReviewStatus},
		"queryReview":        {[]string{"reviewId"}, c.queryReview},
		"getReviewHistory":   {[]string{"reviewId"}, c.getReviewHistory},
		"verifyLedger":       {nil, c.verifyLedger},
	}
	return c
}

// Functions lists the invocable function names in sorted order.
func (c *Contract) Functions() []string {
	names := make([]string, 0, len(c.functions))
	for name := range c.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Invoke runs fn with args and returns its serialized result.
func (c *Contract) Invoke(ctx context.Context, fn string, args ...string) (string, error) {
	f, ok := c.functions[fn]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownFunction, fn)
	}
	if len(args) != len(f.params) {
		return "", fmt.Errorf("%w: %s expects %d (%v), got %d", ErrArgumentCount, fn, len(f.params), f.params, len(args))
	}

	return f.call(ctx, args)
}

func (c *Contract) initLedger(ctx context.Context, _ []string) (string, error) {
	if err := c.svc.InitLedger(ctx); err != nil {
		return "", err
	}
	return "true", nil
}

func (c *Contract) recordReview(ctx context.Context, args []string) (string, error) {
	rec, err := c.svc.RecordReview(ctx, args[0], args[1], args[2], args[3], args[4])
	if err != nil {
		return "", err
	}
	return marshalRecord(rec)
}

func (c *Contract) updateReviewStatus(ctx context.Context, args []string) (string, error) {
	rec, err := c.svc.UpdateReviewStatus(ctx, args[0], args[1])
	if err != nil {
		return "", err
	}
	return marshalRecord(rec)
}

func (c *Contract) queryReview(ctx context.Context, args []string) (string, error) {
	data, err := c.svc.QueryReview(ctx, args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *Contract) getReviewHistory(ctx context.Context, args []string) (string, error) {
	records, err := c.svc.GetReviewHistory(ctx, args[0])
	if err != nil {
		return "", err
	}

	data, err := model.MarshalReviews(records)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type chainReport struct {
	Valid        bool   `json:"valid"`
	Length       int64  `json:"length"`
	FirstInvalid int64  `json:"firstInvalid,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

func (c *Contract) verifyLedger(ctx context.Context, _ []string) (string, error) {
	report, err := c.svc.VerifyLedger(ctx)
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(chainReport(report))
	if err != nil {
		return "", fmt.Errorf("encode chain report: %w", err)
	}
	return string(data), nil
}

func marshalRecord(rec model.ReviewRecord) (string, error) {
	data, err := model.MarshalReview(rec)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

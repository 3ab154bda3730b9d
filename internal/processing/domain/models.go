package domain

import (
	"context"
	"errors"
	"time"

	aggregationdomain "github.com/smallbiznis/salesledger/internal/aggregation/domain"
)

var (
	ErrInvalidPreviewRange = errors.New("invalid_preview_range")
	// ErrLineItemsAlreadyProcessed aborts a commit whose source items were
	// marked by someone else in the meantime.
	ErrLineItemsAlreadyProcessed = errors.New("line_items_already_processed")
)

// RunRequest starts one pipeline run. Until, when set, overrides the
// configured cutoff; only line items dated on or before it are selected.
type RunRequest struct {
	Until *time.Time
}

// RunResult summarizes a finished run.
type RunResult struct {
	RunID            string
	Cutoff           time.Time
	Fetched          int
	Ignored          int
	Aggregates       int
	Committed        int
	ZeroAmount       int
	Failed           int
	NumberCollisions int
	Failures         []AggregateFailure
}

// AggregateFailure describes an aggregate whose commit was rolled back. Its
// line items stay unprocessed and are picked up again by the next run.
type AggregateFailure struct {
	Key           aggregationdomain.Key
	SourceLineIDs []string
	Attempts      int
	Err           error
}

type PreviewRequest struct {
	From time.Time
	To   time.Time
}

// PreviewResult is a dry-run aggregation; nothing is written.
type PreviewResult struct {
	LineItems int
	Ignored   []string
	Records   []aggregationdomain.Record
}

type Service interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
	Preview(ctx context.Context, req PreviewRequest) (PreviewResult, error)
}

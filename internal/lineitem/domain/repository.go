package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

var (
	ErrInvalidFilter = errors.New("invalid_filter")
	ErrInvalidID     = errors.New("invalid_id")
)

// UnprocessedFilter selects one keyset page of unprocessed line items whose
// reference date is on or before Until, ordered by id.
type UnprocessedFilter struct {
	Until   time.Time
	AfterID string
	Limit   int
}

// DateRangeFilter selects one keyset page of line items with a reference date
// in [From, To], regardless of their processed state.
type DateRangeFilter struct {
	From    time.Time
	To      time.Time
	AfterID string
	Limit   int
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, items []SourceLineItem) error
	FindByID(ctx context.Context, id string) (*SourceLineItem, error)
	ListUnprocessed(ctx context.Context, filter UnprocessedFilter) ([]SourceLineItem, error)
	ListByReferenceDateRange(ctx context.Context, filter DateRangeFilter) ([]SourceLineItem, error)
	// MarkProcessed stamps ProcessedAt on the given items that are still
	// unprocessed and returns how many rows changed.
	MarkProcessed(ctx context.Context, ids []string, at time.Time) (int64, error)
}

package repository

import (
	"context"
	"errors"
	"time"

	lineitemdomain "github.com/smallbiznis/salesledger/internal/lineitem/domain"
	"gorm.io/gorm"
)

const markBatchSize = 500

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) lineitemdomain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) lineitemdomain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, items []lineitemdomain.SourceLineItem) error {
	if len(items) == 0 {
		return nil
	}
	for _, item := range items {
		if item.ID == "" {
			return lineitemdomain.ErrInvalidID
		}
	}
	return r.db.WithContext(ctx).CreateInBatches(items, markBatchSize).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*lineitemdomain.SourceLineItem, error) {
	var item lineitemdomain.SourceLineItem
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListUnprocessed(ctx context.Context, filter lineitemdomain.UnprocessedFilter) ([]lineitemdomain.SourceLineItem, error) {
	if filter.Limit <= 0 || filter.Until.IsZero() {
		return nil, lineitemdomain.ErrInvalidFilter
	}

	stmt := r.db.WithContext(ctx).
		Model(&lineitemdomain.SourceLineItem{}).
		Where("processed_at IS NULL").
		Where("reference_date <= ?", lineitemdomain.DateOf(filter.Until))
	if filter.AfterID != "" {
		stmt = stmt.Where("id > ?", filter.AfterID)
	}

	var items []lineitemdomain.SourceLineItem
	if err := stmt.Order("id ASC").Limit(filter.Limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListByReferenceDateRange(ctx context.Context, filter lineitemdomain.DateRangeFilter) ([]lineitemdomain.SourceLineItem, error) {
	if filter.Limit <= 0 || filter.From.IsZero() || filter.To.IsZero() || filter.To.Before(filter.From) {
		return nil, lineitemdomain.ErrInvalidFilter
	}

	stmt := r.db.WithContext(ctx).
		Model(&lineitemdomain.SourceLineItem{}).
		Where("reference_date BETWEEN ? AND ?", lineitemdomain.DateOf(filter.From), lineitemdomain.DateOf(filter.To))
	if filter.AfterID != "" {
		stmt = stmt.Where("id > ?", filter.AfterID)
	}

	var items []lineitemdomain.SourceLineItem
	if err := stmt.Order("id ASC").Limit(filter.Limit).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) MarkProcessed(ctx context.Context, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	var affected int64
	for start := 0; start < len(ids); start += markBatchSize {
		end := min(start+markBatchSize, len(ids))
		result := r.db.WithContext(ctx).
			Model(&lineitemdomain.SourceLineItem{}).
			Where("id IN ?", ids[start:end]).
			Where("processed_at IS NULL").
			Update("processed_at", at.UTC())
		if result.Error != nil {
			return affected, result.Error
		}
		affected += result.RowsAffected
	}
	return affected, nil
}

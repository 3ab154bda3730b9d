package domain

import (
	"time"

	"gorm.io/datatypes"
)

// SourceLineItem is one raw sale or refund exported from the ticketing
// platform. Data carries the sale attributes as delivered; only ProcessedAt is
// written by the processing pipeline, and only once.
type SourceLineItem struct {
	ID            string            `gorm:"primaryKey;type:varchar(64)"`
	ReferenceDate datatypes.Date    `gorm:"not null;index:ix_source_line_items_reference_date"`
	Data          datatypes.JSONMap `gorm:"not null"`
	FlaggedAt     *time.Time
	ProcessedAt   *time.Time `gorm:"index:ix_source_line_items_processed_at"`
	CreatedAt     time.Time  `gorm:"not null"`
}

// TableName sets the database table name.
func (SourceLineItem) TableName() string { return "source_line_items" }

func (li SourceLineItem) IsProcessed() bool {
	return li.ProcessedAt != nil
}

// Value returns the raw payload attribute stored under key.
func (li SourceLineItem) Value(key string) (any, bool) {
	if li.Data == nil || key == "" {
		return nil, false
	}
	v, ok := li.Data[key]
	return v, ok
}

// DateOf truncates t to a UTC calendar date.
func DateOf(t time.Time) datatypes.Date {
	y, m, d := t.Date()
	return datatypes.Date(time.Date(y, m, d, 0, 0, 0, 0, time.UTC))
}

// FormatDate renders a reference date as YYYY-MM-DD.
func FormatDate(d datatypes.Date) string {
	return time.Time(d).Format(time.DateOnly)
}

package domain

import (
	"iter"

	"github.com/shopspring/decimal"
	ledgertxdomain "github.com/smallbiznis/salesledger/internal/ledgertx/domain"
	lineitemdomain "github.com/smallbiznis/salesledger/internal/lineitem/domain"
	"gorm.io/datatypes"
)

// PaymentKind is the classification branch a line item takes.
type PaymentKind string

const (
	PaymentKindCash     PaymentKind = "cash"
	PaymentKindCard     PaymentKind = "card"
	PaymentKindGeneric  PaymentKind = "generic"
	PaymentKindComposed PaymentKind = "composed"
)

// Key identifies one aggregation bucket.
type Key struct {
	ReferenceDate string
	GroupingKey   string
}

// Record accumulates the line items sharing one Key. Every field except
// Amount, SourceLineIDs, CostCenter and CostObject must agree across the
// merged items.
type Record struct {
	ReferenceDate datatypes.Date
	GroupingKey   string
	LedgerAccount string
	DocumentType  string
	Direction     ledgertxdomain.Direction
	Amount        int64
	VATRate       decimal.NullDecimal
	SourceLineIDs []string
	CostCenter    *string
	CostObject    *string
}

func (r Record) Key() Key {
	return Key{
		ReferenceDate: lineitemdomain.FormatDate(r.ReferenceDate),
		GroupingKey:   r.GroupingKey,
	}
}

// Aggregator folds line items of one pipeline run into records. It is
// write-once: Records may be drained a single time and the aggregator must
// not be fed afterwards.
type Aggregator interface {
	// Excludes reports whether the item is a composed product that must not
	// be aggregated.
	Excludes(item lineitemdomain.SourceLineItem) bool
	FeedLineItem(item lineitemdomain.SourceLineItem) error
	Records() iter.Seq[Record]
}

// Factory builds a fresh Aggregator bound to the rules in force at call time.
type Factory interface {
	NewAggregator() (Aggregator, error)
}

// RulesSource exposes the current rule configuration.
type RulesSource interface {
	Rules() RuleConfig
}

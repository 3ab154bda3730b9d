package service

import (
	"iter"

	"github.com/shopspring/decimal"
	aggregationdomain "github.com/smallbiznis/salesledger/internal/aggregation/domain"
	lineitemdomain "github.com/smallbiznis/salesledger/internal/lineitem/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type FactoryParams struct {
	fx.In

	Rules aggregationdomain.RulesSource
	Log   *zap.Logger
}

type factory struct {
	rules aggregationdomain.RulesSource
	log   *zap.Logger
}

func NewFactory(p FactoryParams) aggregationdomain.Factory {
	return &factory{
		rules: p.Rules,
		log:   p.Log.Named("aggregation"),
	}
}

// NewAggregator snapshots the current rules; later reloads do not affect the
// returned aggregator.
func (f *factory) NewAggregator() (aggregationdomain.Aggregator, error) {
	return NewAggregator(f.rules.Rules(), f.log)
}

// Aggregator is the single-run implementation of aggregationdomain.Aggregator.
// It is not safe for concurrent use.
type Aggregator struct {
	resolver *Resolver
	store    *store
	log      *zap.Logger
	consumed bool
}

func NewAggregator(rules aggregationdomain.RuleConfig, log *zap.Logger) (*Aggregator, error) {
	resolver, err := NewResolver(rules)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Aggregator{
		resolver: resolver,
		store:    newStore(),
		log:      log,
	}, nil
}

func (a *Aggregator) Excludes(item lineitemdomain.SourceLineItem) bool {
	return a.resolver.Kind(item) == aggregationdomain.PaymentKindComposed
}

func (a *Aggregator) FeedLineItem(item lineitemdomain.SourceLineItem) error {
	if a.consumed {
		return aggregationdomain.ErrAggregatorConsumed
	}
	rec, err := a.resolver.Resolve(item)
	if err != nil {
		a.log.Error("line item rejected",
			zap.String("line_item_id", item.ID),
			zap.Error(err),
		)
		return err
	}
	if err := a.store.put(rec); err != nil {
		a.log.Error("divergent aggregation",
			zap.String("line_item_id", item.ID),
			zap.String("reference_date", rec.Key().ReferenceDate),
			zap.String("grouping_key", rec.GroupingKey),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Records drains the aggregator. Only the first call yields records.
func (a *Aggregator) Records() iter.Seq[aggregationdomain.Record] {
	if a.consumed {
		return func(func(aggregationdomain.Record) bool) {}
	}
	a.consumed = true
	records := a.store.ordered()
	a.store = newStore()
	return func(yield func(aggregationdomain.Record) bool) {
		for _, rec := range records {
			if !yield(rec) {
				return
			}
		}
	}
}

// Len reports the number of distinct aggregates fed so far.
func (a *Aggregator) Len() int {
	return a.store.len()
}

func vatString(v decimal.NullDecimal) string {
	if !v.Valid {
		return "null"
	}
	return v.Decimal.String()
}

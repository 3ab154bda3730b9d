package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	aggregationdomain "github.com/smallbiznis/salesledger/internal/aggregation/domain"
	"github.com/smallbiznis/salesledger/internal/clock"
	"github.com/smallbiznis/salesledger/internal/config"
	ledgertxdomain "github.com/smallbiznis/salesledger/internal/ledgertx/domain"
	lineitemdomain "github.com/smallbiznis/salesledger/internal/lineitem/domain"
	obscontext "github.com/smallbiznis/salesledger/internal/observability/context"
	obslogger "github.com/smallbiznis/salesledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/salesledger/internal/observability/metrics"
	processingdomain "github.com/smallbiznis/salesledger/internal/processing/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	Config       config.Config
	Clock        clock.Clock
	GenID        *snowflake.Node
	LineItems    lineitemdomain.Repository
	Transactions ledgertxdomain.Repository
	Suffixes     ledgertxdomain.SuffixGenerator
	Aggregators  aggregationdomain.Factory

	PipelineMetrics *obsmetrics.PipelineMetrics `optional:"true"`
	LedgerMetrics   *obsmetrics.Metrics         `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	clock        clock.Clock
	genID        *snowflake.Node
	lineItems    lineitemdomain.Repository
	transactions ledgertxdomain.Repository
	suffixes     ledgertxdomain.SuffixGenerator
	aggregators  aggregationdomain.Factory
	tracer       trace.Tracer

	pageSize     int
	maxAttempts  int
	cutoffPolicy string
	numberFormat ledgertxdomain.NumberFormat

	pipelineMetrics *obsmetrics.PipelineMetrics
	ledgerMetrics   *obsmetrics.Metrics
}

func NewService(p Params) (processingdomain.Service, error) {
	return newService(p)
}

func newService(p Params) (*Service, error) {
	pipeline := p.Config.Pipeline

	format := ledgertxdomain.DefaultNumberFormat()
	if pipeline.NumberMaxLength > 0 {
		format.MaxLength = pipeline.NumberMaxLength
	}
	if pipeline.NumberSuffixLength > 0 {
		format.SuffixLength = pipeline.NumberSuffixLength
	}
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("pipeline number format: %w", err)
	}

	pageSize := pipeline.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	maxAttempts := pipeline.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}

	return &Service{
		db:              p.DB,
		log:             p.Log.Named("processing"),
		clock:           clk,
		genID:           p.GenID,
		lineItems:       p.LineItems,
		transactions:    p.Transactions,
		suffixes:        p.Suffixes,
		aggregators:     p.Aggregators,
		tracer:          otel.Tracer("salesledger/processing"),
		pageSize:        pageSize,
		maxAttempts:     maxAttempts,
		cutoffPolicy:    pipeline.CutoffPolicy,
		numberFormat:    format,
		pipelineMetrics: p.PipelineMetrics,
		ledgerMetrics:   p.LedgerMetrics,
	}, nil
}

const (
	defaultPageSize    = 100
	defaultMaxAttempts = 2
)

// Run executes one pipeline pass: fetch unprocessed line items up to the
// cutoff, aggregate them, mark composed items processed and commit every
// aggregate in its own transaction. Configuration and data integrity errors
// abort the run before anything is committed; a failing aggregate is logged
// and skipped.
func (s *Service) Run(ctx context.Context, req processingdomain.RunRequest) (result processingdomain.RunResult, err error) {
	began := time.Now()
	runID := ulid.Make().String()
	ctx = obscontext.WithRunID(ctx, runID)
	ctx, span := s.tracer.Start(ctx, "processing.Run", trace.WithAttributes(attribute.String("run_id", runID)))
	defer span.End()
	log := obslogger.WithContext(ctx, s.log)

	result = processingdomain.RunResult{
		RunID:  runID,
		Cutoff: resolveCutoff(s.clock.Now(), req.Until, s.cutoffPolicy),
	}
	span.SetAttributes(attribute.String("cutoff", result.Cutoff.Format(time.DateOnly)))

	defer func() {
		outcome := obsmetrics.ClassifyRunOutcome(err)
		s.pipelineMetrics.ObserveRun(outcome, time.Since(began))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			log.Error("pipeline.run.aborted",
				zap.String("outcome", outcome),
				zap.String("error_kind", string(aggregationdomain.Classify(err))),
				zap.Int("fetched", result.Fetched),
				zap.Error(err),
			)
		}
	}()

	log.Info("pipeline.run.start",
		zap.String("cutoff", result.Cutoff.Format(time.DateOnly)),
		zap.Bool("cutoff_override", req.Until != nil),
	)

	agg, err := s.aggregators.NewAggregator()
	if err != nil {
		return result, fmt.Errorf("build aggregator: %w", err)
	}

	ignored, err := s.fetchAndAggregate(ctx, agg, result.Cutoff, &result)
	if err != nil {
		return result, err
	}
	log.Info("pipeline.aggregate.done",
		zap.Int("fetched", result.Fetched),
		zap.Int("ignored", len(ignored)),
	)

	if err := s.markIgnored(ctx, ignored); err != nil {
		return result, fmt.Errorf("mark ignored line items: %w", err)
	}
	result.Ignored = len(ignored)
	if len(ignored) > 0 {
		log.Info("pipeline.ignore.marked", zap.Int("count", len(ignored)))
	}

	for rec := range agg.Records() {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Aggregates++

		outcome := s.commitAggregate(ctx, rec)
		result.NumberCollisions += outcome.collisions
		switch {
		case outcome.err != nil:
			result.Failed++
			result.Failures = append(result.Failures, processingdomain.AggregateFailure{
				Key:           rec.Key(),
				SourceLineIDs: rec.SourceLineIDs,
				Attempts:      outcome.attempts,
				Err:           outcome.err,
			})
			log.Error("pipeline.commit.failed",
				zap.String("reference_date", rec.Key().ReferenceDate),
				zap.String("grouping_key", rec.GroupingKey),
				zap.Int64("amount", rec.Amount),
				zap.Int("line_items", len(rec.SourceLineIDs)),
				zap.Int("attempts", outcome.attempts),
				zap.Error(outcome.err),
			)
		case outcome.zeroAmount:
			result.ZeroAmount++
		default:
			result.Committed++
		}
	}

	s.pipelineMetrics.AddAggregates(obsmetrics.AggregateOutcomeCommitted, result.Committed)
	s.pipelineMetrics.AddAggregates(obsmetrics.AggregateOutcomeZeroAmount, result.ZeroAmount)
	s.pipelineMetrics.AddAggregates(obsmetrics.AggregateOutcomeFailed, result.Failed)

	span.SetAttributes(
		attribute.Int("fetched", result.Fetched),
		attribute.Int("aggregates", result.Aggregates),
		attribute.Int("failed", result.Failed),
	)
	log.Info("pipeline.run.finish",
		zap.Int("fetched", result.Fetched),
		zap.Int("ignored", result.Ignored),
		zap.Int("aggregates", result.Aggregates),
		zap.Int("committed", result.Committed),
		zap.Int("zero_amount", result.ZeroAmount),
		zap.Int("failed", result.Failed),
		zap.Int("number_collisions", result.NumberCollisions),
		zap.Duration("duration", time.Since(began)),
	)
	return result, nil
}

func (s *Service) fetchAndAggregate(ctx context.Context, agg aggregationdomain.Aggregator, cutoff time.Time, result *processingdomain.RunResult) ([]string, error) {
	var ignored []string
	aggregated := 0
	afterID := ""
	for {
		page, err := s.lineItems.ListUnprocessed(ctx, lineitemdomain.UnprocessedFilter{
			Until:   cutoff,
			AfterID: afterID,
			Limit:   s.pageSize,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch line items: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for _, item := range page {
			result.Fetched++
			if agg.Excludes(item) {
				ignored = append(ignored, item.ID)
				continue
			}
			if err := agg.FeedLineItem(item); err != nil {
				return nil, fmt.Errorf("aggregate line item %s: %w", item.ID, err)
			}
			aggregated++
		}
		afterID = page[len(page)-1].ID
	}

	s.pipelineMetrics.AddLineItems(obsmetrics.LineItemAggregated, aggregated)
	s.pipelineMetrics.AddLineItems(obsmetrics.LineItemIgnored, len(ignored))
	obslogger.WithContext(ctx, s.log).Debug("pipeline.fetch.done",
		zap.Int("fetched", result.Fetched),
		zap.Int("aggregated", aggregated),
	)
	return ignored, nil
}

// markIgnored flags composed items processed regardless of what happens to
// the aggregates.
func (s *Service) markIgnored(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.lineItems.MarkProcessed(ctx, ids, s.clock.Now())
	return err
}

// Preview aggregates every line item dated within [From, To] without
// writing anything. Processed items are included.
func (s *Service) Preview(ctx context.Context, req processingdomain.PreviewRequest) (processingdomain.PreviewResult, error) {
	if req.From.IsZero() || req.To.IsZero() || req.To.Before(req.From) {
		return processingdomain.PreviewResult{}, processingdomain.ErrInvalidPreviewRange
	}

	ctx, span := s.tracer.Start(ctx, "processing.Preview")
	defer span.End()

	agg, err := s.aggregators.NewAggregator()
	if err != nil {
		return processingdomain.PreviewResult{}, fmt.Errorf("build aggregator: %w", err)
	}

	var result processingdomain.PreviewResult
	afterID := ""
	for {
		page, err := s.lineItems.ListByReferenceDateRange(ctx, lineitemdomain.DateRangeFilter{
			From:    req.From,
			To:      req.To,
			AfterID: afterID,
			Limit:   s.pageSize,
		})
		if err != nil {
			return processingdomain.PreviewResult{}, fmt.Errorf("fetch line items: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, item := range page {
			result.LineItems++
			if agg.Excludes(item) {
				result.Ignored = append(result.Ignored, item.ID)
				continue
			}
			if err := agg.FeedLineItem(item); err != nil {
				span.RecordError(err)
				return processingdomain.PreviewResult{}, fmt.Errorf("aggregate line item %s: %w", item.ID, err)
			}
		}
		afterID = page[len(page)-1].ID
	}

	result.Records = slices.Collect(agg.Records())
	return result, nil
}

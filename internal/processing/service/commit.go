package service

import (
	"context"
	"errors"
	"fmt"

	aggregationdomain "github.com/smallbiznis/salesledger/internal/aggregation/domain"
	ledgertxdomain "github.com/smallbiznis/salesledger/internal/ledgertx/domain"
	obslogger "github.com/smallbiznis/salesledger/internal/observability/logger"
	processingdomain "github.com/smallbiznis/salesledger/internal/processing/domain"
	pkgdb "github.com/smallbiznis/salesledger/pkg/db"
	"github.com/smallbiznis/salesledger/pkg/retry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type commitOutcome struct {
	zeroAmount bool
	attempts   int
	collisions int
	err        error
}

// isNumberCollision reports a unique violation on the generated transaction
// number. Any other constraint failure is not retried.
func isNumberCollision(err error) bool {
	return pkgdb.IsUniqueViolationOn(err, ledgertxdomain.NumberUniqueIndex, "ledger_transactions.number")
}

// commitAggregate persists one aggregate atomically: the ledger row, its
// source links and the processed flag of every contributing line item. A
// net-zero aggregate only marks its items. Number collisions are retried with
// a fresh suffix, each attempt in a new transaction.
func (s *Service) commitAggregate(ctx context.Context, rec aggregationdomain.Record) commitOutcome {
	ctx, span := s.tracer.Start(ctx, "processing.commitAggregate")
	defer span.End()
	span.SetAttributes(
		attribute.String("reference_date", rec.Key().ReferenceDate),
		attribute.String("grouping_key", rec.GroupingKey),
		attribute.Int64("amount", rec.Amount),
		attribute.Int("line_items", len(rec.SourceLineIDs)),
	)

	var outcome commitOutcome
	if rec.Amount == 0 {
		outcome.zeroAmount = true
		outcome.attempts = 1
		outcome.err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return s.markSources(ctx, tx, rec.SourceLineIDs)
		})
	} else {
		log := obslogger.WithContext(ctx, s.log)
		policy := retry.Policy{
			MaxAttempts: s.maxAttempts,
			Retryable:   isNumberCollision,
			OnRetry: func(attempt int, err error) {
				log.Warn("pipeline.commit.retry",
					zap.String("grouping_key", rec.GroupingKey),
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
			},
		}

		var txn *ledgertxdomain.LedgerTransaction
		outcome.err = retry.Do(ctx, policy, func(attempt int) error {
			outcome.attempts = attempt
			created, err := s.insertTransaction(ctx, rec)
			if isNumberCollision(err) {
				outcome.collisions++
				s.pipelineMetrics.IncNumberCollision()
			}
			txn = created
			return err
		})
		if outcome.err == nil {
			span.SetAttributes(attribute.String("number", txn.Number))
			s.ledgerMetrics.RecordLedgerTransaction(ctx, string(txn.Direction), txn.DocumentType, txn.Amount, len(rec.SourceLineIDs))
		}
	}

	if outcome.err != nil {
		span.RecordError(outcome.err)
		span.SetStatus(codes.Error, "commit failed")
	}
	return outcome
}

func (s *Service) insertTransaction(ctx context.Context, rec aggregationdomain.Record) (*ledgertxdomain.LedgerTransaction, error) {
	suffix, err := s.suffixes.Generate(s.numberFormat.SuffixLength)
	if err != nil {
		return nil, fmt.Errorf("generate number suffix: %w", err)
	}

	now := s.clock.Now()
	txn := &ledgertxdomain.LedgerTransaction{
		ID:            s.genID.Generate(),
		Number:        s.numberFormat.Compose(s.numberFormat.Prefix(rec.GroupingKey), suffix),
		ReferenceDate: rec.ReferenceDate,
		DocumentType:  rec.DocumentType,
		Direction:     rec.Direction,
		LedgerAccount: rec.LedgerAccount,
		Amount:        rec.Amount,
		VATRate:       rec.VATRate,
		CostCenter:    rec.CostCenter,
		CostObject:    rec.CostObject,
		CreatedAt:     now,
	}
	if err := txn.Validate(); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.transactions.WithTx(tx).Create(ctx, txn, rec.SourceLineIDs); err != nil {
			return err
		}
		return s.markSources(ctx, tx, rec.SourceLineIDs)
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func (s *Service) markSources(ctx context.Context, tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return errors.New("aggregate has no source line items")
	}
	n, err := s.lineItems.WithTx(tx).MarkProcessed(ctx, ids, s.clock.Now())
	if err != nil {
		return err
	}
	if n != int64(len(ids)) {
		return fmt.Errorf("%w: marked %d of %d", processingdomain.ErrLineItemsAlreadyProcessed, n, len(ids))
	}
	return nil
}

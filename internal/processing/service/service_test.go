package service

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	aggregationdomain "github.com/smallbiznis/salesledger/internal/aggregation/domain"
	aggregationservice "github.com/smallbiznis/salesledger/internal/aggregation/service"
	"github.com/smallbiznis/salesledger/internal/clock"
	"github.com/smallbiznis/salesledger/internal/config"
	ledgertxdomain "github.com/smallbiznis/salesledger/internal/ledgertx/domain"
	ledgertxrepo "github.com/smallbiznis/salesledger/internal/ledgertx/repository"
	lineitemdomain "github.com/smallbiznis/salesledger/internal/lineitem/domain"
	lineitemrepo "github.com/smallbiznis/salesledger/internal/lineitem/repository"
	obsmetrics "github.com/smallbiznis/salesledger/internal/observability/metrics"
	processingdomain "github.com/smallbiznis/salesledger/internal/processing/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// sequenceSuffixes returns the configured suffixes in order and repeats the
// last one once exhausted.
type sequenceSuffixes struct {
	values []string
	calls  int
}

func (g *sequenceSuffixes) Generate(length int) (string, error) {
	idx := min(g.calls, len(g.values)-1)
	g.calls++
	return g.values[idx], nil
}

type fixture struct {
	db        *gorm.DB
	svc       *Service
	lineItems lineitemdomain.Repository
	txns      ledgertxdomain.Repository
	suffixes  *sequenceSuffixes
	clock     *clock.FakeClock
	metrics   *obsmetrics.PipelineMetrics
	writes    *atomic.Int64
	node      *snowflake.Node
}

func testRules() aggregationdomain.RuleConfig {
	return aggregationdomain.RuleConfig{
		PaymentKindCash:        "Bargeld",
		PaymentKindCard:        "Zahlkart",
		DataKeys:               aggregationdomain.DefaultDataKeys(),
		OperatorLedgerAccounts: map[string]string{"Kasse": "1000"},
	}
}

func newFixture(t *testing.T, mutate ...func(*config.Config)) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&lineitemdomain.SourceLineItem{},
		&ledgertxdomain.LedgerTransaction{},
		&ledgertxdomain.LedgerTransactionSource{},
	))

	writes := &atomic.Int64{}
	count := func(*gorm.DB) { writes.Add(1) }
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:count_create", count))
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register("test:count_update", count))
	require.NoError(t, db.Callback().Delete().Before("gorm:delete").Register("test:count_delete", count))

	cfg := config.Config{
		Pipeline: config.PipelineConfig{
			PageSize:           100,
			NumberMaxLength:    15,
			NumberSuffixLength: 4,
			MaxAttempts:        2,
			CutoffPolicy:       config.CutoffPolicyNow,
		},
	}
	for _, m := range mutate {
		m(&cfg)
	}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fakeClock := clock.NewFakeClock(time.Date(2021, 11, 4, 9, 0, 0, 0, time.UTC))
	suffixes := &sequenceSuffixes{values: []string{"abcd"}}
	metrics := obsmetrics.NewPipelineMetrics(prometheus.NewRegistry(), obsmetrics.Config{})

	lineItems := lineitemrepo.NewRepository(db)
	txns := ledgertxrepo.NewRepository(db)

	svc, err := newService(Params{
		DB:           db,
		Log:          zap.NewNop(),
		Config:       cfg,
		Clock:        fakeClock,
		GenID:        node,
		LineItems:    lineItems,
		Transactions: txns,
		Suffixes:     suffixes,
		Aggregators: aggregationservice.NewFactory(aggregationservice.FactoryParams{
			Rules: config.NewStaticRulesHolder(testRules()),
			Log:   zap.NewNop(),
		}),
		PipelineMetrics: metrics,
	})
	require.NoError(t, err)

	return &fixture{
		db:        db,
		svc:       svc,
		lineItems: lineItems,
		txns:      txns,
		suffixes:  suffixes,
		clock:     fakeClock,
		metrics:   metrics,
		writes:    writes,
		node:      node,
	}
}

func (f *fixture) seed(t *testing.T, items ...lineitemdomain.SourceLineItem) {
	t.Helper()
	require.NoError(t, f.lineItems.Create(context.Background(), items))
	f.writes.Store(0)
}

func (f *fixture) processed(t *testing.T, id string) bool {
	t.Helper()
	item, err := f.lineItems.FindByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, item, id)
	return item.IsProcessed()
}

func (f *fixture) ledgerCount(t *testing.T) int64 {
	t.Helper()
	n, err := f.txns.Count(context.Background())
	require.NoError(t, err)
	return n
}

func sale(id, day, code string, amount int64) lineitemdomain.SourceLineItem {
	return withData(id, day, map[string]any{
		"kind":            "TICKET",
		"ACCOUNTING_CODE": code,
		"ANALYTIC1":       "8400",
		"DOCUMENT_TYPE":   "SA",
		"PAYMENT_SALE":    "S",
		"AMOUNT":          amount,
	})
}

func withData(id, day string, data map[string]any) lineitemdomain.SourceLineItem {
	d, err := time.Parse(time.DateOnly, day)
	if err != nil {
		panic(err)
	}
	return lineitemdomain.SourceLineItem{
		ID:            id,
		ReferenceDate: datatypes.Date(d),
		Data:          datatypes.JSONMap(data),
		CreatedAt:     time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC),
	}
}

func composed(id, day string) lineitemdomain.SourceLineItem {
	return withData(id, day, map[string]any{"kind": "COMPOSED_PRODUCT", "AMOUNT": 4200})
}

func TestRun_CommitsOneTransactionPerAggregate(t *testing.T) {
	f := newFixture(t)
	f.suffixes.values = []string{"abcd", "efgh"}
	f.seed(t,
		sale("1", "2021-10-30", "Eintritt", 1000),
		sale("2", "2021-10-30", "Eintritt", 250),
		sale("3", "2021-10-31", "Eintritt", -300),
	)

	result, err := f.svc.Run(context.Background(), processingdomain.RunRequest{})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, "2021-11-04", result.Cutoff.Format(time.DateOnly))
	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 2, result.Aggregates)
	assert.Equal(t, 2, result.Committed)
	assert.Zero(t, result.Failed)

	first, err := f.txns.FindByNumber(context.Background(), "Eintritt abcd")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, int64(1250), first.Amount)
	assert.Equal(t, "2021-10-30", time.Time(first.ReferenceDate).Format(time.DateOnly))
	assert.Equal(t, ledgertxdomain.DirectionSale, first.Direction)
	assert.Equal(t, "8400", first.LedgerAccount)
	assert.Equal(t, "SA", first.DocumentType)

	links, err := f.txns.ListSourceLineItemIDs(context.Background(), first.ID.Int64())
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, links)

	second, err := f.txns.FindByNumber(context.Background(), "Eintritt efgh")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, int64(-300), second.Amount, "negative aggregates are stored")

	for _, id := range []string{"1", "2", "3"} {
		assert.True(t, f.processed(t, id), id)
	}
}

func TestRun_WithoutEligibleItemsWritesNothing(t *testing.T) {
	f := newFixture(t)

	done := sale("1", "2021-10-30", "Eintritt", 100)
	processedAt := time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC)
	done.ProcessedAt = &processedAt
	f.seed(t, done, sale("2", "2021-11-05", "Eintritt", 100))

	result, err := f.svc.Run(context.Background(), processingdomain.RunRequest{})
	require.NoError(t, err)

	assert.Zero(t, result.Fetched)
	assert.Zero(t, result.Aggregates)
	assert.Zero(t, f.writes.Load())
	assert.Zero(t, f.ledgerCount(t))
	assert.False(t, f.processed(t, "2"))
}

func TestRun_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, sale("1", "2021-10-30", "Eintritt", 100), composed("2", "2021-10-30"))

	_, err := f.svc.Run(context.Background(), processingdomain.RunRequest{})
	require.NoError(t, err)
	require.Equal(t, int64(1), f.ledgerCount(t))

	f.writes.Store(0)
	result, err := f.svc.Run(context.Background(), processingdomain.RunRequest{})
	require.NoError(t, err)
	assert.Zero(t, result.Fetched)
	assert.Zero(t, f.writes.Load())
	assert.Equal(t, int64(1), f.ledgerCount(t))
}

func TestRun_ZeroAmountMarksWithoutLedgerRow(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		sale("1", "2021-10-30", "Eintritt", 500),
		sale("2", "2021-10-30", "Eintritt", -500),
	)

	result, err := f.svc.Run(context.Background(), processingdomain.RunRequest{})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ZeroAmount)
	assert.Zero(t, result.Committed)
	assert.Zero(t, f.ledgerCount(t))
	assert.Zero(t, f.suffixes.calls)
	assert.True(t, f.processed(t, "1"))
	assert.True(t, f.processed(t, "2"))
}

func TestRun_RetriesNumberCollisionWithFreshSuffix(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.txns.Create(context.Background(), &ledgertxdomain.LedgerTransaction{
		ID:            f.node.Generate(),
		Number:        "Eintritt dupe",
		ReferenceDate: datatypes.Date(time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC)),
		DocumentType:  "SA",
		Direction:     ledgertxdomain.DirectionSale,
		LedgerAccount: "8400",
		Amount:        1,
		CreatedAt:     time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC),
	}, []string{"old"}))
	f.suffixes.values = []string{"dupe", "uniq"}
	f.seed(t, sale("1", "2021-10-30", "Eintritt", 100))

	result, err := f.svc.Run(context.Background(), processingdomain.RunRequest{})
	require.NoError(t, err)

	assert.Equal(t, 2, f.suffixes.calls)
	assert.Equal(t, 1, result.Committed)
	assert.Equal(t, 1, result.NumberCollisions)
	assert.Equal(t, int64(2), f.ledgerCount(t))

	created, err := f.txns.FindBySourceLineItemID(context.Background(), "1")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "Eintritt uniq", created.Number)
	assert.True(t, f.processed(t, "1"))
}

func TestRun_GivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.txns.Create(context.Background(), &ledgertxdomain.LedgerTransaction{
		ID:            f.node.Generate(),
		Number:        "Eintritt dupe",
		ReferenceDate: datatypes.Date(time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC)),
		DocumentType:  "SA",
		Direction:     ledgertxdomain.DirectionSale,
		LedgerAccount: "8400",
		Amount:        1,
		CreatedAt:     time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC),
	}, []string{"old"}))
	f.suffixes.values = []string{"dupe"}
	f.seed(t, sale("1", "2021-10-30", "Eintritt", 100))

	result, err := f.svc.Run(context.Background(), processingdomain.RunRequest{})
	require.NoError(t, err, "a failing aggregate does not fail the run")

	assert.Equal(t, 2, f.suffixes.calls)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 2, result.NumberCollisions)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 2, result.Failures[0].Attempts)
	assert.True(t, isNumberCollision(result.Failures[0].Err))
	assert.Equal(t, int64(1), f.ledgerCount(t))
	assert.False(t, f.processed(t, "1"))
}

func TestRun_NumbersDifferingInCaseDoNotCollide(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.txns.Create(context.Background(), &ledgertxdomain.LedgerTransaction{
		ID:            f.node.Generate(),
		Number:        "Eintritt aBcd",
		ReferenceDate: datatypes.Date(time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC)),
		DocumentType:  "SA",
		Direction:     ledgertxdomain.DirectionSale,
		LedgerAccount: "8400",
		Amount:        1,
		CreatedAt:     time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC),
	}, []string{"old"}))
	f.suffixes.values = []string{"abcd"}
	f.seed(t, sale("1", "2021-10-30", "Eintritt", 100))

	result, err := f.svc.Run(context.Background(), processingdomain.RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Committed)
	assert.Zero(t, result.NumberCollisions)
	assert.Equal(t, 1, f.suffixes.calls)
}

func TestRun_TruncatesGroupingKeyInNumber(t *testing.T) {
	f := newFixture(t)
	f.seed(t, sale("1", "2021-10-30", "Erhaltene Anzahlungen", 100))

	_, err := f.svc.Run(context.Background(), processingdomain.RunRequest{})
	require.NoError(t, err)

	created, err := f.txns.FindBySourceLineItemID(context.Background(), "1")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "Erhaltene abcd", created.Number)
}

func TestRun_FailingAggregateDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	broken := sale("1", "2021-10-29", "Defekt", 100)
	broken.Data["DOCUMENT_TYPE"] = "TOOLONG"
	f.seed(t,
		broken,
		sale("2", "2021-10-30", "Eintritt", 100),
		sale("3", "2021-10-30", "Eintritt", 50),
		composed("4", "2021-10-30"),
	)

	result, err := f.svc.Run(context.Background(), processingdomain.RunRequest{})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Aggregates)
	assert.Equal(t, 1, result.Committed)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Ignored)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, aggregationdomain.Key{ReferenceDate: "2021-10-29", GroupingKey: "Defekt"}, result.Failures[0].Key)
	assert.ErrorIs(t, result.Failures[0].Err, ledgertxdomain.ErrInvalidDocumentType)

	assert.False(t, f.processed(t, "1"))
	assert.True(t, f.processed(t, "2"))
	assert.True(t, f.processed(t, "3"))
	assert.True(t, f.processed(t, "4"), "composed items are marked regardless of commit outcomes")
	assert.Equal(t, int64(1), f.ledgerCount(t))
}

func TestRun_DivergentAggregationAbortsBeforeWriting(t *testing.T) {
	f := newFixture(t)
	other := sale("2", "2021-10-30", "Eintritt", 100)
	other.Data["ANALYTIC1"] = "8300"
	f.seed(t, sale("1", "2021-10-30", "Eintritt", 100), other, composed("3", "2021-10-30"))

	_, err := f.svc.Run(context.Background(), processingdomain.RunRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, aggregationdomain.ErrDivergentAggregation)
	assert.Equal(t, aggregationdomain.KindDataIntegrity, aggregationdomain.Classify(err))

	assert.Zero(t, f.writes.Load())
	assert.False(t, f.processed(t, "3"))
}

func TestRun_MissingOperatorMappingAbortsRun(t *testing.T) {
	f := newFixture(t)
	f.seed(t, withData("1", "2021-10-30", map[string]any{
		"kind":          "Bargeld",
		"OPERATOR_NAME": "Unbekannt",
		"PAYMENT_SALE":  "P",
		"AMOUNT":        100,
	}))

	_, err := f.svc.Run(context.Background(), processingdomain.RunRequest{})
	assert.ErrorIs(t, err, aggregationdomain.ErrConfiguration)
	assert.Zero(t, f.writes.Load())
}

func TestRun_PagesThroughAllItems(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.Pipeline.PageSize = 2 })
	for i := 1; i <= 5; i++ {
		f.seed(t, sale(fmt.Sprintf("%03d", i), "2021-10-30", "Eintritt", 10))
	}

	result, err := f.svc.Run(context.Background(), processingdomain.RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, 5, result.Fetched)

	created, err := f.txns.FindBySourceLineItemID(context.Background(), "005")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, int64(50), created.Amount)
}

func TestRun_CutoffPolicyAndOverride(t *testing.T) {
	f := newFixture(t, func(cfg *config.Config) { cfg.Pipeline.CutoffPolicy = config.CutoffPolicyPreviousSunday })
	f.seed(t,
		sale("1", "2021-10-31", "Eintritt", 100),
		sale("2", "2021-11-01", "Eintritt", 100),
	)

	result, err := f.svc.Run(context.Background(), processingdomain.RunRequest{})
	require.NoError(t, err)
	assert.Equal(t, "2021-10-31", result.Cutoff.Format(time.DateOnly))
	assert.Equal(t, 1, result.Fetched)
	assert.False(t, f.processed(t, "2"))

	until := time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC)
	f.suffixes.values = []string{"wxyz"}
	result, err = f.svc.Run(context.Background(), processingdomain.RunRequest{Until: &until})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Fetched)
	assert.True(t, f.processed(t, "2"))
}

func TestRun_CarriesVATAndCostAssignment(t *testing.T) {
	f := newFixture(t)
	f.svc.aggregators = aggregationservice.NewFactory(aggregationservice.FactoryParams{
		Rules: config.NewStaticRulesHolder(aggregationdomain.RuleConfig{
			PaymentKindCash:           "Bargeld",
			PaymentKindCard:           "Zahlkart",
			DataKeys:                  aggregationdomain.DefaultDataKeys(),
			LedgerAccountsWithVATRate: []string{"8400"},
		}),
		Log: zap.NewNop(),
	})

	item := sale("1", "2021-10-30", "Eintritt", 100)
	item.Data["VAT_RATE"] = "19"
	item.Data["COST_CENTER"] = "KST100"
	item.Data["COST_OBJECT"] = "KTR-2021"
	f.seed(t, item)

	_, err := f.svc.Run(context.Background(), processingdomain.RunRequest{})
	require.NoError(t, err)

	created, err := f.txns.FindBySourceLineItemID(context.Background(), "1")
	require.NoError(t, err)
	require.NotNil(t, created)
	require.True(t, created.VATRate.Valid)
	assert.Equal(t, "19", created.VATRate.Decimal.String())
	require.NotNil(t, created.CostCenter)
	assert.Equal(t, "KST100", *created.CostCenter)
	require.NotNil(t, created.CostObject)
	assert.Equal(t, "KTR-2021", *created.CostObject)
}

func TestPreview_AggregatesWithoutWriting(t *testing.T) {
	f := newFixture(t)
	done := sale("1", "2021-10-30", "Eintritt", 100)
	processedAt := time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC)
	done.ProcessedAt = &processedAt
	f.seed(t,
		done,
		sale("2", "2021-10-30", "Eintritt", 50),
		sale("3", "2021-11-02", "Eintritt", 50),
		composed("4", "2021-10-31"),
	)

	result, err := f.svc.Preview(context.Background(), processingdomain.PreviewRequest{
		From: time.Date(2021, 10, 30, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2021, 10, 31, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.LineItems)
	assert.Equal(t, []string{"4"}, result.Ignored)
	require.Len(t, result.Records, 1)
	assert.Equal(t, int64(150), result.Records[0].Amount)
	assert.Equal(t, []string{"1", "2"}, result.Records[0].SourceLineIDs)
	assert.Zero(t, f.writes.Load())
	assert.False(t, f.processed(t, "4"))
}

func TestPreview_RejectsInvertedRange(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Preview(context.Background(), processingdomain.PreviewRequest{
		From: time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2021, 10, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, processingdomain.ErrInvalidPreviewRange)
}

func TestNewService_RejectsInvalidNumberFormat(t *testing.T) {
	_, err := newService(Params{
		Log: zap.NewNop(),
		Config: config.Config{Pipeline: config.PipelineConfig{
			NumberMaxLength:    3,
			NumberSuffixLength: 4,
		}},
	})
	assert.ErrorIs(t, err, ledgertxdomain.ErrInvalidNumberFormat)
}

func TestCommitAggregate_RollsBackRowAndLinksWhenMarkingFails(t *testing.T) {
	f := newFixture(t)
	done := sale("1", "2021-10-30", "Eintritt", 100)
	processedAt := time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC)
	done.ProcessedAt = &processedAt
	f.seed(t, done)

	outcome := f.svc.commitAggregate(context.Background(), aggregationdomain.Record{
		ReferenceDate: done.ReferenceDate,
		GroupingKey:   "Eintritt",
		LedgerAccount: "8400",
		DocumentType:  "SA",
		Direction:     ledgertxdomain.DirectionSale,
		Amount:        100,
		SourceLineIDs: []string{"1"},
	})

	require.Error(t, outcome.err)
	assert.ErrorIs(t, outcome.err, processingdomain.ErrLineItemsAlreadyProcessed)
	assert.Equal(t, 1, outcome.attempts)
	assert.Equal(t, 1, f.suffixes.calls, "the insert ran before marking failed")
	assert.Zero(t, f.ledgerCount(t))

	var links int64
	require.NoError(t, f.db.Model(&ledgertxdomain.LedgerTransactionSource{}).Count(&links).Error)
	assert.Zero(t, links)

	item, err := f.lineItems.FindByID(context.Background(), "1")
	require.NoError(t, err)
	require.NotNil(t, item.ProcessedAt)
	assert.True(t, item.ProcessedAt.Equal(processedAt))
}

// cancellingSuffixes cancels the run context when the suffix for the given
// call is drawn.
type cancellingSuffixes struct {
	cancelOn int
	cancel   context.CancelFunc
	calls    int
}

func (g *cancellingSuffixes) Generate(int) (string, error) {
	g.calls++
	if g.calls == g.cancelOn {
		g.cancel()
	}
	return fmt.Sprintf("s%03d", g.calls), nil
}

func TestRun_CancelledBetweenCommitsLeavesRemainingUnprocessed(t *testing.T) {
	f := newFixture(t)
	f.seed(t,
		sale("1", "2021-10-28", "Eintritt", 100),
		sale("2", "2021-10-29", "Eintritt", 100),
		sale("3", "2021-10-30", "Eintritt", 100),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	suffixes := &cancellingSuffixes{cancelOn: 2, cancel: cancel}
	f.svc.suffixes = suffixes

	result, err := f.svc.Run(ctx, processingdomain.RunRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 3, result.Fetched)
	assert.Equal(t, 1, result.Committed)
	assert.Equal(t, 1, result.Failed, "the commit in flight at cancellation rolls back")
	assert.Equal(t, 2, suffixes.calls, "no commit is attempted after cancellation")
	assert.Equal(t, int64(1), f.ledgerCount(t))

	assert.True(t, f.processed(t, "1"))
	assert.False(t, f.processed(t, "2"))
	assert.False(t, f.processed(t, "3"))
}

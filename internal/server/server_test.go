package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	aggregationdomain "github.com/smallbiznis/salesledger/internal/aggregation/domain"
	"github.com/smallbiznis/salesledger/internal/clock"
	ledgertxdomain "github.com/smallbiznis/salesledger/internal/ledgertx/domain"
	lineitemdomain "github.com/smallbiznis/salesledger/internal/lineitem/domain"
	"github.com/smallbiznis/salesledger/internal/observability"
	processingdomain "github.com/smallbiznis/salesledger/internal/processing/domain"
	"github.com/smallbiznis/salesledger/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockProcessing struct {
	mock.Mock
}

func (m *mockProcessing) Run(ctx context.Context, req processingdomain.RunRequest) (processingdomain.RunResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(processingdomain.RunResult), args.Error(1)
}

func (m *mockProcessing) Preview(ctx context.Context, req processingdomain.PreviewRequest) (processingdomain.PreviewResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(processingdomain.PreviewResult), args.Error(1)
}

func newTestServer(t *testing.T) (*gin.Engine, *mockProcessing) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	processing := &mockProcessing{}
	runner, err := scheduler.New(scheduler.Params{
		Log:        zap.NewNop(),
		Clock:      clock.NewFakeClock(time.Date(2021, 11, 4, 9, 0, 0, 0, time.UTC)),
		Processing: processing,
	})
	require.NoError(t, err)

	engine := NewEngine(EngineParams{
		ObsCfg:   observability.Config{},
		Log:      zap.NewNop(),
		Gatherer: prometheus.NewRegistry(),
	})
	NewServer(ServerParams{Engine: engine, Processing: processing, Runner: runner})
	return engine, processing
}

func serve(engine *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	engine, _ := newTestServer(t)

	rec := serve(engine, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = serve(engine, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(engine, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPreview(t *testing.T) {
	engine, processing := newTestServer(t)
	from := time.Date(2021, 11, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2021, 11, 2, 0, 0, 0, 0, time.UTC)
	costCenter := "KST1"
	processing.On("Preview", mock.Anything, processingdomain.PreviewRequest{From: from, To: to}).
		Return(processingdomain.PreviewResult{
			LineItems: 3,
			Ignored:   []string{"c1"},
			Records: []aggregationdomain.Record{{
				ReferenceDate: lineitemdomain.DateOf(from),
				GroupingKey:   "Eintritt",
				LedgerAccount: "4000",
				DocumentType:  "SA",
				Direction:     ledgertxdomain.DirectionSale,
				Amount:        -250,
				VATRate:       decimal.NewNullDecimal(decimal.RequireFromString("19")),
				SourceLineIDs: []string{"a", "b"},
				CostCenter:    &costCenter,
			}},
		}, nil).Once()

	rec := serve(engine, http.MethodGet, "/v1/preview?from=2021-11-01&to=2021-11-02", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data processingdomain.PreviewView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 3, body.Data.LineItems)
	assert.Equal(t, []string{"c1"}, body.Data.Ignored)
	require.Len(t, body.Data.Records, 1)
	record := body.Data.Records[0]
	assert.Equal(t, "2021-11-01", record.ReferenceDate)
	assert.Equal(t, "S", record.Direction)
	assert.Equal(t, int64(-250), record.Amount)
	require.NotNil(t, record.VATRate)
	assert.Equal(t, "19", *record.VATRate)
	assert.Equal(t, "KST1", *record.CostCenter)
	assert.Nil(t, record.CostObject)
	processing.AssertExpectations(t)
}

func TestPreview_Validation(t *testing.T) {
	engine, processing := newTestServer(t)

	rec := serve(engine, http.MethodGet, "/v1/preview?from=yesterday&to=2021-11-02", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid_date")

	processing.On("Preview", mock.Anything, mock.Anything).
		Return(processingdomain.PreviewResult{}, processingdomain.ErrInvalidPreviewRange).Once()
	rec = serve(engine, http.MethodGet, "/v1/preview?from=2021-11-03&to=2021-11-02", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRun(t *testing.T) {
	engine, processing := newTestServer(t)
	until := time.Date(2021, 10, 31, 0, 0, 0, 0, time.UTC)
	processing.On("Run", mock.Anything, processingdomain.RunRequest{Until: &until}).
		Return(processingdomain.RunResult{RunID: "run-1", Cutoff: until, Committed: 2}, nil).Once()

	rec := serve(engine, http.MethodPost, "/v1/runs", `{"until":"2021-10-31"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data processingdomain.RunView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "run-1", body.Data.RunID)
	assert.Equal(t, "2021-10-31", body.Data.Cutoff)
	assert.Equal(t, 2, body.Data.Committed)
	processing.AssertExpectations(t)
}

func TestRun_MapsDomainErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{"configuration", &aggregationdomain.RuleError{Kind: aggregationdomain.KindConfiguration, Field: "operator"}, http.StatusUnprocessableEntity},
		{"divergent", aggregationdomain.Mismatch(aggregationdomain.Key{GroupingKey: "Eintritt"}, "ledgerAccount", "2", "4000", "4001"), http.StatusConflict},
		{"locked", scheduler.ErrRunInProgress, http.StatusConflict},
		{"storage", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, processing := newTestServer(t)
			processing.On("Run", mock.Anything, processingdomain.RunRequest{}).
				Return(processingdomain.RunResult{}, tc.err).Once()

			rec := serve(engine, http.MethodPost, "/v1/runs", "")
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestRun_InvalidUntil(t *testing.T) {
	engine, processing := newTestServer(t)

	rec := serve(engine, http.MethodPost, "/v1/runs", `{"until":"31.10.2021"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	processing.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockboard/internal/api/handlers"
	"github.com/wonny/stockboard/internal/collector"
	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/internal/datasets"
	"github.com/wonny/stockboard/pkg/logger"
	"github.com/wonny/stockboard/pkg/metrics"
)

type fakeDatasets struct {
	table  contracts.UnifiedTable
	builds int
}

func (f *fakeDatasets) Statuses() []datasets.Status {
	return []datasets.Status{{Name: "stock_trend_data", Exists: true, Windows: 2}}
}

func (f *fakeDatasets) Load(_ context.Context, name string) (*datasets.Result, error) {
	switch name {
	case "stock_trend_data":
		return &datasets.Result{Name: name, Origin: datasets.OriginFile, Table: f.table}, nil
	case "empty":
		return nil, datasets.ErrNoData
	default:
		return nil, datasets.ErrUnknownDataset
	}
}

func (f *fakeDatasets) Build(ctx context.Context, name string) (*datasets.Result, error) {
	f.builds++
	res, err := f.Load(ctx, name)
	if err == nil {
		res.Origin = datasets.OriginFetched
		res.Failed = []string{"BA"}
	}
	return res, err
}

type fakeFetcher struct{}

func (fakeFetcher) FetchAll(_ context.Context, symbols []string, _ contracts.Period, _ contracts.Interval) (*collector.Batch, error) {
	sym := symbols[0]
	if sym == "NOPE" {
		err := contracts.NewSourceError(contracts.KindNotFound, "fake", sym, errors.New("404"))
		return &collector.Batch{Failed: []string{sym}, Results: []collector.FetchResult{{Symbol: sym, Err: err}}}, nil
	}
	var t contracts.UnifiedTable
	t.Append(contracts.SymbolSeries{Symbol: sym, Records: records(sym, 5)}, "")
	return &collector.Batch{Table: t, Results: []collector.FetchResult{{Symbol: sym, Rows: 5, Source: "fake"}}}, nil
}

type fakeAsker struct{}

func (fakeAsker) Ask(_ context.Context, t contracts.UnifiedTable, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", errors.New("question is empty")
	}
	if question == "down?" {
		return "", &contracts.LLMError{Kind: contracts.LLMUnavailable, Err: errors.New("503")}
	}
	return "answered over " + t.Symbols()[0], nil
}

func records(symbol string, n int) []contracts.Record {
	out := make([]contracts.Record, n)
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	for i := range out {
		p := 100 + float64(i)
		if symbol == "BBB" {
			p *= 2
		}
		out[i] = contracts.Record{Date: start.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p, Volume: 10}
	}
	return out
}

func newTestRouter(t *testing.T) (http.Handler, *fakeDatasets) {
	t.Helper()
	var table contracts.UnifiedTable
	table.Append(contracts.SymbolSeries{Symbol: "AAA", Records: records("AAA", 3)}, "1 Year")
	table.Append(contracts.SymbolSeries{Symbol: "BBB", Records: records("BBB", 2)}, "1 Year")
	table.Append(contracts.SymbolSeries{Symbol: "AAA", Records: records("AAA", 1)}, "Yesterday")

	ds := &fakeDatasets{table: table}
	log := logger.Nop()
	router := NewRouter(Handlers{
		Datasets: handlers.NewDatasetHandler(ds, log),
		Series:   handlers.NewSeriesHandler(fakeFetcher{}, log),
		Ask:      handlers.NewAskHandler(ds, fakeAsker{}, log),
		Metrics:  metrics.New().Handler(),
	}, log)
	return router, ds
}

func do(t *testing.T, h http.Handler, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestRouter_Health(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, body := do(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_Metrics(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, _ := do(t, router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_Datasets(t *testing.T) {
	router, ds := newTestRouter(t)

	tests := []struct {
		name   string
		target string
		status int
		check  func(t *testing.T, body map[string]interface{})
	}{
		{
			name: "list", target: "/api/datasets", status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Len(t, body["datasets"], 1)
			},
		},
		{
			name: "get", target: "/api/datasets/stock_trend_data", status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, float64(6), body["count"])
				assert.Equal(t, "file", body["origin"])
				assert.Equal(t, []interface{}{}, body["failed"])
			},
		},
		{
			name: "get by label", target: "/api/datasets/stock_trend_data?label=Yesterday", status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, float64(1), body["count"])
			},
		},
		{
			name: "refresh", target: "/api/datasets/stock_trend_data?refresh=true", status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "fetched", body["origin"])
				assert.Equal(t, []interface{}{"BA"}, body["failed"])
			},
		},
		{
			name: "risk return", target: "/api/datasets/stock_trend_data/risk-return?label=1%20Year", status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				points := body["points"].([]interface{})
				require.Len(t, points, 2)
				first := points[0].(map[string]interface{})
				assert.Equal(t, "AAA", first["symbol"])
				assert.InDelta(t, 0.02, first["annual_return"], 1e-9)
			},
		},
		{
			name: "aligned wide", target: "/api/datasets/stock_trend_data/aligned", status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Len(t, body["dates"], 3)
				values := body["values"].(map[string]interface{})
				bbb := values["BBB"].([]interface{})
				assert.Equal(t, float64(202), bbb[2])
			},
		},
		{
			name: "aligned long", target: "/api/datasets/stock_trend_data/aligned?format=long", status: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Len(t, body["points"], 6)
			},
		},
		{name: "unknown", target: "/api/datasets/nope", status: http.StatusNotFound},
		{name: "no data", target: "/api/datasets/empty", status: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := do(t, router, http.MethodGet, tt.target, "")
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}
	assert.Equal(t, 1, ds.builds)
}

func TestRouter_Series(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, body := do(t, router, http.MethodGet, "/api/series/aaa?period=6mo&window=3", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "AAA", body["symbol"])
	assert.Equal(t, "fake", body["source"])

	points := body["points"].([]interface{})
	require.Len(t, points, 5)
	first := points[0].(map[string]interface{})
	assert.Nil(t, first["daily_return"])
	assert.Equal(t, float64(100), first["moving_average"])
	last := points[4].(map[string]interface{})
	assert.InDelta(t, 103, last["moving_average"], 1e-9)

	rec, _ = do(t, router, http.MethodGet, "/api/series/NOPE", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/api/series/AAA?period=2w", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/api/series/AAA?window=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouter_Ask(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, body := do(t, router, http.MethodPost, "/api/ask", `{"dataset":"stock_trend_data","question":"best?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "answered over AAA", body["answer"])

	rec, body = do(t, router, http.MethodPost, "/api/ask", `{"question":"down?"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, body["error"], "unavailable")

	rec, _ = do(t, router, http.MethodPost, "/api/ask", `{"dataset":"nope","question":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, router, http.MethodPost, "/api/ask", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodGet, "/api/ask", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

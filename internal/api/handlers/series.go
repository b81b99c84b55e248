package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/guregu/null/v6"

	"github.com/wonny/stockboard/internal/analytics"
	"github.com/wonny/stockboard/internal/collector"
	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/pkg/logger"
)

// DefaultMovingAverageWindow is the trend line window when none is given
const DefaultMovingAverageWindow = 20

// SeriesFetcher fetches one window for many symbols
type SeriesFetcher interface {
	FetchAll(ctx context.Context, symbols []string, period contracts.Period, interval contracts.Interval) (*collector.Batch, error)
}

// SeriesHandler serves a single symbol with its per-point metrics
type SeriesHandler struct {
	fetcher SeriesFetcher
	logger  *logger.Logger
}

// NewSeriesHandler creates a new series handler
func NewSeriesHandler(fetcher SeriesFetcher, log *logger.Logger) *SeriesHandler {
	return &SeriesHandler{
		fetcher: fetcher,
		logger:  log,
	}
}

// SeriesPoint is one session with its derived columns
type SeriesPoint struct {
	contracts.Record
	DailyReturn       null.Float `json:"daily_return"`
	DailyChange       null.Float `json:"daily_change"`
	MovingAverage     float64    `json:"moving_average"`
	RollingVolatility null.Float `json:"rolling_volatility"`
	Cumulative        null.Float `json:"cumulative_performance"`
}

// SeriesResponse is the series endpoint payload
type SeriesResponse struct {
	Symbol   string                   `json:"symbol"`
	Period   contracts.Period         `json:"period"`
	Interval contracts.Interval       `json:"interval"`
	Window   int                      `json:"window"`
	Source   string                   `json:"source"`
	Metrics  analytics.DerivedMetrics `json:"metrics"`
	Points   []SeriesPoint            `json:"points"`
}

// Get returns one symbol's history with returns, moving average and volatility
// GET /api/series/{symbol}?period=1y&interval=1d&window=20
func (h *SeriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(mux.Vars(r)["symbol"])
	q := r.URL.Query()

	period := contracts.Period(q.Get("period"))
	if period == "" {
		period = contracts.Period1Y
	}
	interval := contracts.Interval(q.Get("interval"))
	if interval == "" {
		interval = contracts.IntervalDay
	}

	req := contracts.HistoryRequest{Symbol: symbol, Period: period, Interval: interval}
	if err := req.Validate(); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	window, err := queryInt(r, "window", DefaultMovingAverageWindow)
	if err != nil || window < 1 {
		respondError(w, http.StatusBadRequest, "Invalid 'window' (expected a positive integer)")
		return
	}

	batch, err := h.fetcher.FetchAll(r.Context(), []string{symbol}, period, interval)
	if err != nil {
		h.logger.WithError(err).WithField("symbol", symbol).Error("Failed to fetch series")
		respondError(w, http.StatusInternalServerError, "Failed to fetch series")
		return
	}
	if len(batch.Failed) > 0 || len(batch.Results) == 0 {
		var kind contracts.ErrorKind = contracts.KindNotFound
		if len(batch.Results) > 0 {
			kind = contracts.KindOf(batch.Results[0].Err)
		}
		respondError(w, statusForKind(kind), "No data for "+symbol+" ("+string(kind)+")")
		return
	}

	series := batch.Table.Split()[0]
	respondJSON(w, http.StatusOK, SeriesResponse{
		Symbol:   symbol,
		Period:   period,
		Interval: interval,
		Window:   window,
		Source:   batch.Results[0].Source,
		Metrics:  analytics.Derive(series),
		Points:   buildPoints(series, window),
	})
}

func buildPoints(s contracts.SymbolSeries, window int) []SeriesPoint {
	closes := s.Closes()
	returns := analytics.DailyReturns(closes)
	ma := analytics.MovingAverage(closes, window)
	vol := analytics.RollingVolatility(returns, window)
	cum := analytics.CumulativePerformance(closes)

	points := make([]SeriesPoint, len(s.Records))
	for i, rec := range s.Records {
		points[i] = SeriesPoint{
			Record:            rec,
			DailyReturn:       returns[i],
			DailyChange:       analytics.DailyChange(rec),
			MovingAverage:     ma[i],
			RollingVolatility: vol[i],
			Cumulative:        cum[i],
		}
	}
	return points
}

func statusForKind(kind contracts.ErrorKind) int {
	switch kind {
	case contracts.KindNotFound:
		return http.StatusNotFound
	case contracts.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

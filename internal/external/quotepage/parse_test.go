package quotepage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/pkg/config"
	"github.com/wonny/stockboard/pkg/httputil"
	"github.com/wonny/stockboard/pkg/logger"
)

const fullPage = `
<html><body>
<fin-streamer data-field="regularMarketPrice" data-symbol="CVX">151.20</fin-streamer>
<table>
  <tr><td>Previous Close</td><td data-test="PREV_CLOSE-value">150.90</td></tr>
  <tr><td>Open</td><td data-test="OPEN-value">150.10</td></tr>
  <tr><td>Day's Range</td><td data-test="DAYS_RANGE-value">149.50 - 152.00</td></tr>
  <tr><td>Volume</td><td data-test="TD_VOLUME-value">12,345,678</td></tr>
  <tr><td>Forward Dividend &amp; Yield</td><td data-test="DIVIDEND_AND_YIELD-value">6.52 (4.12%)</td></tr>
  <tr><td>52 Week Change</td><td data-testid="52_WEEK_CHANGE-value">-3.10%</td></tr>
  <tr><td>Total Debt/Equity</td><td data-test="DEBT_EQUITY_RATIO-value">14.20%</td></tr>
  <tr><td>Quarterly Revenue Growth</td><td data-test="REVENUE_GROWTH_QTRLY_YOY-value">N/A</td></tr>
  <tr><td>Profit Margin</td><td data-test="PROFIT_MARGIN-value">11.50%</td></tr>
</table>
</body></html>`

func TestParseQuote(t *testing.T) {
	q, err := ParseQuote("CVX", strings.NewReader(fullPage))
	require.NoError(t, err)

	assert.Equal(t, 151.20, q.Price.Float64)
	assert.Equal(t, 150.10, q.Open.Float64)
	assert.Equal(t, 150.90, q.PrevClose.Float64)
	assert.Equal(t, 149.50, q.DayLow.Float64)
	assert.Equal(t, 152.00, q.DayHigh.Float64)
	assert.Equal(t, 12345678.0, q.Volume.Float64)
	assert.InDelta(t, 0.0412, q.DividendYield.Float64, 1e-12)
	assert.InDelta(t, -0.031, q.WeekChange52.Float64, 1e-12)
	assert.InDelta(t, 0.142, q.DebtToEquity.Float64, 1e-12)
	assert.InDelta(t, 0.115, q.ProfitMargin.Float64, 1e-12)
	assert.False(t, q.RevenueGrowth.Valid)
	assert.Equal(t, []string{"revenue_growth"}, q.Missing())
}

func TestParseQuote_FieldsDegradeIndependently(t *testing.T) {
	page := `<html><body><table><tr>
		<td data-test="OPEN-value">--</td>
		<td data-test="52_WEEK_CHANGE-value">7.25%</td>
	</tr></table></body></html>`

	q, err := ParseQuote("F", strings.NewReader(page))
	require.NoError(t, err)

	assert.False(t, q.Open.Valid)
	assert.InDelta(t, 0.0725, q.WeekChange52.Float64, 1e-12)

	_, ok := q.Record(time.Now())
	assert.False(t, ok)

	p := q.Profile()
	assert.Equal(t, "F", p.Symbol)
	assert.True(t, p.WeekChange52.Valid)
	assert.False(t, p.DividendYield.Valid)
	assert.Empty(t, p.Sector)
}

func TestQuote_Record(t *testing.T) {
	q, err := ParseQuote("CVX", strings.NewReader(fullPage))
	require.NoError(t, err)

	rec, ok := q.Record(time.Date(2024, 5, 6, 15, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), rec.Date)
	assert.Equal(t, 151.20, rec.Close)
	assert.Equal(t, 152.00, rec.High)
	assert.Equal(t, int64(12345678), rec.Volume)

	// without a live price the previous close is used
	q.Price.Valid = false
	rec, ok = q.Record(time.Now())
	require.True(t, ok)
	assert.Equal(t, 150.90, rec.Close)
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in    string
		want  float64
		valid bool
	}{
		{"12.5%", 0.125, true},
		{"-2.10%", -0.021, true},
		{"1,250.00%", 12.5, true},
		{"N/A", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parsePercent(tt.in)
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				assert.InDelta(t, tt.want, got.Float64, 1e-12)
			}
		})
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{HTTP: config.HTTPConfig{Timeout: 5 * time.Second}}
	c := NewClient(httputil.New(cfg, logger.Nop()), server.URL+"/quote", logger.Nop())
	c.now = func() time.Time { return time.Date(2024, 5, 6, 16, 0, 0, 0, time.UTC) }
	return c
}

func TestClient_FetchHistory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote/CVX/", r.URL.Path)
		_, _ = w.Write([]byte(fullPage))
	})

	records, err := c.FetchHistory(context.Background(), contracts.HistoryRequest{
		Symbol: "cvx", Period: contracts.Period1Y, Interval: contracts.IntervalDay,
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), records[0].Date)
}

func TestClient_FetchHistory_PastRangeSkipsRequest(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	records, err := c.FetchHistory(context.Background(), contracts.HistoryRequest{
		Symbol: "CVX",
		Range: &contracts.DateRange{
			Start: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		},
		Interval: contracts.IntervalDay,
	})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestClient_FetchProfile_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.FetchProfile(context.Background(), "ZZZZ")
	require.Error(t, err)
	assert.Equal(t, contracts.KindNotFound, contracts.KindOf(err))
}

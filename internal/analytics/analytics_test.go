package analytics

import (
	"math"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockboard/internal/contracts"
)

const tolerance = 1e-9

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func series(symbol string, dates []time.Time, closes []float64) contracts.SymbolSeries {
	s := contracts.SymbolSeries{Symbol: symbol}
	for i, d := range dates {
		c := closes[i]
		s.Records = append(s.Records, contracts.Record{Date: d, Open: c, High: c, Low: c, Close: c})
	}
	return s
}

func TestDailyReturns(t *testing.T) {
	got := DailyReturns([]float64{100, 110, 99})

	require.Len(t, got, 3)
	assert.False(t, got[0].Valid)
	assert.InDelta(t, 0.10, got[1].Float64, tolerance)
	assert.InDelta(t, -0.10, got[2].Float64, tolerance)
}

func TestDailyReturns_EdgeCases(t *testing.T) {
	assert.Empty(t, DailyReturns(nil))

	single := DailyReturns([]float64{42})
	require.Len(t, single, 1)
	assert.False(t, single[0].Valid)

	zeroPrev := DailyReturns([]float64{0, 10, 11})
	assert.False(t, zeroPrev[1].Valid)
	assert.InDelta(t, 0.1, zeroPrev[2].Float64, tolerance)
}

func TestEmptySeriesSafety(t *testing.T) {
	assert.False(t, AnnualizedVolatility(nil).Valid)
	assert.False(t, AnnualizedVolatility(DailyReturns([]float64{100})).Valid)
	assert.False(t, PeriodReturn(nil).Valid)
	assert.False(t, PeriodReturn([]float64{}).Valid)
	assert.False(t, YTDPerformance(contracts.SymbolSeries{}).Valid)

	m := Derive(contracts.SymbolSeries{Symbol: "EMPTY"})
	assert.Equal(t, "EMPTY", m.Symbol)
	assert.False(t, m.AnnualReturn.Valid)
	assert.False(t, m.AnnualizedVolatility.Valid)
	assert.False(t, m.YTDPerformance.Valid)
	assert.False(t, m.LastClose.Valid)
}

func TestAnnualizedVolatility(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   null.Float
	}{
		{"empty", nil, null.Float{}},
		{"single close", []float64{100}, null.Float{}},
		{"two closes, one return", []float64{100, 110}, null.Float{}},
		{"three closes", []float64{100, 101, 99.99}, null.FloatFrom(math.Sqrt(2e-4) * math.Sqrt(252))},
		{"four closes", []float64{100, 110, 99, 105}, null.FloatFrom(1.6818263718064306)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AnnualizedVolatility(DailyReturns(tt.closes))

			require.Equal(t, tt.want.Valid, got.Valid)
			if tt.want.Valid {
				assert.InDelta(t, tt.want.Float64, got.Float64, 1e-9)
			}
		})
	}
}

func TestAnnualizedVolatility_SkipsAbsentReturns(t *testing.T) {
	returns := []null.Float{{}, null.FloatFrom(0.01), null.FloatFrom(-0.01)}

	got := AnnualizedVolatility(returns)

	require.True(t, got.Valid)
	assert.InDelta(t, math.Sqrt(2e-4)*math.Sqrt(252), got.Float64, tolerance)
}

func TestPeriodReturn(t *testing.T) {
	tests := []struct {
		name   string
		closes []float64
		want   null.Float
	}{
		{"gain", []float64{100, 120, 150}, null.FloatFrom(0.5)},
		{"loss", []float64{200, 150}, null.FloatFrom(-0.25)},
		{"single", []float64{80}, null.FloatFrom(0)},
		{"non-positive start", []float64{0, 5}, null.Float{}},
		{"empty", nil, null.Float{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PeriodReturn(tt.closes)
			assert.Equal(t, tt.want.Valid, got.Valid)
			assert.InDelta(t, tt.want.Float64, got.Float64, tolerance)
		})
	}
}

func TestMovingAverage_FullCoverage(t *testing.T) {
	closes := []float64{10, 20, 30, 40, 50}

	got := MovingAverage(closes, 20)

	require.Len(t, got, 5)
	assert.Equal(t, []float64{10, 15, 20, 25, 30}, got)
}

func TestMovingAverage_Window(t *testing.T) {
	got := MovingAverage([]float64{1, 2, 3, 4, 5}, 2)
	assert.Equal(t, []float64{1, 1.5, 2.5, 3.5, 4.5}, got)

	assert.Equal(t, []float64{7, 8}, MovingAverage([]float64{7, 8}, 0))
	assert.Empty(t, MovingAverage(nil, 5))
}

func TestRollingVolatility(t *testing.T) {
	returns := DailyReturns([]float64{100, 101, 100, 102, 101})

	got := RollingVolatility(returns, 3)

	require.Len(t, got, 5)
	for i := 0; i < 3; i++ {
		assert.False(t, got[i].Valid, "index %d", i)
	}
	assert.True(t, got[3].Valid)
	assert.True(t, got[4].Valid)

	short := RollingVolatility(DailyReturns([]float64{1, 2, 3}), 20)
	for _, v := range short {
		assert.False(t, v.Valid)
	}
}

func TestInputsNotMutated(t *testing.T) {
	closes := []float64{100, 110, 99}
	snapshot := append([]float64(nil), closes...)

	_ = DailyReturns(closes)
	_ = MovingAverage(closes, 2)
	_ = PeriodReturn(closes)
	_ = CumulativePerformance(closes)
	assert.Equal(t, snapshot, closes)

	s := series("AAA", []time.Time{day(2024, 1, 3), day(2024, 1, 2)}, []float64{2, 1})
	before := s.Clone()
	_ = Derive(s)
	_ = AlignAndForwardFill([]contracts.SymbolSeries{s})
	assert.Equal(t, before.Records, s.Records)
}

func TestAlignAndForwardFill_FillsGaps(t *testing.T) {
	d1, d2, d3 := day(2024, 1, 2), day(2024, 1, 3), day(2024, 1, 4)
	aaa := series("AAA", []time.Time{d1, d3}, []float64{10, 12})
	bbb := series("BBB", []time.Time{d1, d2, d3}, []float64{20, 21, 22})

	panel := AlignAndForwardFill([]contracts.SymbolSeries{aaa, bbb})

	assert.Equal(t, []time.Time{d1, d2, d3}, panel.Dates)
	assert.Equal(t, []string{"AAA", "BBB"}, panel.Symbols)
	for _, sym := range panel.Symbols {
		for i := range panel.Dates {
			assert.True(t, panel.At(sym, i).Valid, "%s at %d", sym, i)
		}
	}
	assert.Equal(t, null.FloatFrom(10), panel.At("AAA", 1))
	assert.Equal(t, null.FloatFrom(12), panel.At("AAA", 2))
}

func TestAlignAndForwardFill_NoValueBeforeFirstObservation(t *testing.T) {
	d1, d2, d3, d4 := day(2024, 1, 2), day(2024, 1, 3), day(2024, 1, 4), day(2024, 1, 5)
	early := series("EARLY", []time.Time{d1, d2, d3, d4}, []float64{1, 2, 3, 4})
	late := series("LATE", []time.Time{d3}, []float64{30})

	panel := AlignAndForwardFill([]contracts.SymbolSeries{early, late, {Symbol: "NONE"}})

	assert.False(t, panel.At("LATE", 0).Valid)
	assert.False(t, panel.At("LATE", 1).Valid)
	assert.Equal(t, null.FloatFrom(30), panel.At("LATE", 2))
	assert.Equal(t, null.FloatFrom(30), panel.At("LATE", 3))
	assert.NotContains(t, panel.Symbols, "NONE")
}

func TestAlignedPanel_Melt(t *testing.T) {
	d1, d2 := day(2024, 1, 2), day(2024, 1, 3)
	a := series("AAA", []time.Time{d1, d2}, []float64{10, 40})
	b := series("BBB", []time.Time{d2}, []float64{20})

	points := AlignAndForwardFill([]contracts.SymbolSeries{a, b}).Melt()

	require.Len(t, points, 4)
	assert.Equal(t, "AAA", points[0].Symbol)
	assert.Equal(t, "BBB", points[1].Symbol)
	assert.False(t, points[1].Close.Valid)
	assert.Equal(t, d2, points[2].Date)
	assert.Equal(t, "AAA", points[2].Symbol)
	assert.Equal(t, "BBB", points[3].Symbol)
}

func TestRiskReturn_DropsEmptySeries(t *testing.T) {
	dates := []time.Time{day(2024, 1, 2), day(2024, 1, 3), day(2024, 1, 4)}
	rows := RiskReturn([]contracts.SymbolSeries{
		series("AAA", dates, []float64{100, 110, 99}),
		{Symbol: "EMPTY"},
		series("BBB", dates[:1], []float64{50}),
	})

	require.Len(t, rows, 2)
	assert.Equal(t, "AAA", rows[0].Symbol)
	assert.InDelta(t, -0.01, rows[0].AnnualReturn.Float64, tolerance)
	assert.InDelta(t, math.Sqrt(0.02)*math.Sqrt(252), rows[0].Volatility.Float64, tolerance)

	assert.Equal(t, "BBB", rows[1].Symbol)
	assert.Equal(t, null.FloatFrom(0), rows[1].AnnualReturn)
	assert.False(t, rows[1].Volatility.Valid)
}

func TestYTDPerformance(t *testing.T) {
	s := series("AAA",
		[]time.Time{day(2023, 12, 28), day(2024, 1, 2), day(2024, 3, 1)},
		[]float64{90, 100, 125})

	got := YTDPerformance(s)

	require.True(t, got.Valid)
	assert.InDelta(t, 0.25, got.Float64, tolerance)
}

func TestCumulativePerformance(t *testing.T) {
	got := CumulativePerformance([]float64{50, 55, 45})

	assert.InDelta(t, 0, got[0].Float64, tolerance)
	assert.InDelta(t, 0.1, got[1].Float64, tolerance)
	assert.InDelta(t, -0.1, got[2].Float64, tolerance)
}

func TestMinMaxNormalize(t *testing.T) {
	got := MinMaxNormalize([]null.Float{null.FloatFrom(10), {}, null.FloatFrom(20), null.FloatFrom(15)})

	assert.Equal(t, null.FloatFrom(0), got[0])
	assert.False(t, got[1].Valid)
	assert.Equal(t, null.FloatFrom(1), got[2])
	assert.Equal(t, null.FloatFrom(0.5), got[3])

	flat := MinMaxNormalize([]null.Float{null.FloatFrom(3), null.FloatFrom(3)})
	assert.Equal(t, []null.Float{null.FloatFrom(0), null.FloatFrom(0)}, flat)
}

func TestYearlyMeanDailyChange(t *testing.T) {
	var table contracts.UnifiedTable
	table.Append(contracts.SymbolSeries{Symbol: "BBB", Records: []contracts.Record{
		{Date: day(2023, 5, 1), Open: 100, High: 110, Low: 90, Close: 110},
		{Date: day(2023, 5, 2), Open: 100, High: 110, Low: 90, Close: 90},
		{Date: day(2024, 5, 1), Open: 50, High: 60, Low: 50, Close: 55},
	}}, "")
	table.Append(contracts.SymbolSeries{Symbol: "AAA", Records: []contracts.Record{
		{Date: day(2023, 6, 1), Open: 10, High: 12, Low: 10, Close: 12},
	}}, "")

	got := YearlyMeanDailyChange(table)

	require.Len(t, got, 3)
	assert.Equal(t, YearlyChange{Year: 2023, Symbol: "BBB", MeanDailyChange: null.FloatFrom(0)}, got[0])
	assert.Equal(t, 2023, got[1].Year)
	assert.Equal(t, "AAA", got[1].Symbol)
	assert.InDelta(t, 0.2, got[1].MeanDailyChange.Float64, tolerance)
	assert.Equal(t, 2024, got[2].Year)
	assert.InDelta(t, 0.1, got[2].MeanDailyChange.Float64, tolerance)
}

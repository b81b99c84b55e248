// Package analytics derives returns, volatility, moving averages and
// date-aligned panels from price series. Every function is pure: inputs are
// never modified and insufficient data yields an absent null.Float instead
// of NaN or a panic. Ratios are fractions (0.05 means 5%).
package analytics

import (
	"math"

	"github.com/guregu/null/v6"

	"github.com/wonny/stockboard/internal/contracts"
)

// TradingDaysPerYear scales daily volatility to a yearly horizon
const TradingDaysPerYear = 252

// DailyReturns returns close[t]/close[t-1] - 1 for every t.
// The first value is absent, as is any value whose previous close is not positive.
func DailyReturns(closes []float64) []null.Float {
	out := make([]null.Float, len(closes))
	for t := 1; t < len(closes); t++ {
		prev := closes[t-1]
		if prev <= 0 || !finite(prev) || !finite(closes[t]) {
			continue
		}
		out[t] = null.FloatFrom(closes[t]/prev - 1)
	}
	return out
}

// DailyReturn is DailyReturns over the closes of s
func DailyReturn(s contracts.SymbolSeries) []null.Float {
	return DailyReturns(s.Closes())
}

// PeriodReturn returns close[last]/close[first] - 1 as a fraction.
// An empty series, or one starting at a non-positive close, is absent.
func PeriodReturn(closes []float64) null.Float {
	if len(closes) == 0 {
		return null.Float{}
	}
	first, last := closes[0], closes[len(closes)-1]
	if first <= 0 || !finite(first) || !finite(last) {
		return null.Float{}
	}
	return null.FloatFrom(last/first - 1)
}

// CumulativePerformance returns close[t]/close[0] - 1 for every t
func CumulativePerformance(closes []float64) []null.Float {
	out := make([]null.Float, len(closes))
	if len(closes) == 0 || closes[0] <= 0 {
		return out
	}
	for t, c := range closes {
		if finite(c) {
			out[t] = null.FloatFrom(c/closes[0] - 1)
		}
	}
	return out
}

// YTDPerformance measures from the first session of the calendar year of the
// latest record to the latest record.
func YTDPerformance(s contracts.SymbolSeries) null.Float {
	if s.Empty() {
		return null.Float{}
	}
	records := contracts.NormalizeRecords(append([]contracts.Record(nil), s.Records...))
	year := records[len(records)-1].Date.Year()

	var closes []float64
	for _, r := range records {
		if r.Date.Year() == year {
			closes = append(closes, r.Close)
		}
	}
	return PeriodReturn(closes)
}

// DailyChange is the intraday move (close - open) / open of one record
func DailyChange(r contracts.Record) null.Float {
	if r.Open <= 0 {
		return null.Float{}
	}
	return null.FloatFrom((r.Close - r.Open) / r.Open)
}

// MovingAverage is the simple rolling mean of closes. The first window-1
// points average over the shorter prefix, so the result always has
// len(closes) values.
func MovingAverage(closes []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(closes))
	var sum float64
	for t, c := range closes {
		sum += c
		if t >= window {
			sum -= closes[t-window]
		}
		n := min(t+1, window)
		out[t] = sum / float64(n)
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func present(values []null.Float) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if v.Valid && finite(v.Float64) {
			out = append(out, v.Float64)
		}
	}
	return out
}

package analytics

import (
	"sort"

	"github.com/guregu/null/v6"

	"github.com/wonny/stockboard/internal/contracts"
)

// RiskReturnRow places one symbol on the risk/return plane
type RiskReturnRow struct {
	Symbol       string     `json:"symbol"`
	AnnualReturn null.Float `json:"annual_return"`
	Volatility   null.Float `json:"annualized_volatility"`
}

// RiskReturn returns one row per non-empty series, in input order
func RiskReturn(series []contracts.SymbolSeries) []RiskReturnRow {
	out := make([]RiskReturnRow, 0, len(series))
	for _, s := range series {
		if s.Empty() {
			continue
		}
		s = s.Normalize()
		out = append(out, RiskReturnRow{
			Symbol:       s.Symbol,
			AnnualReturn: PeriodReturn(s.Closes()),
			Volatility:   AnnualizedVolatility(DailyReturn(s)),
		})
	}
	return out
}

// DerivedMetrics are the per-symbol scalar aggregates
type DerivedMetrics struct {
	Symbol               string     `json:"symbol"`
	Sector               string     `json:"sector"`
	Observations         int        `json:"observations"`
	LastClose            null.Float `json:"last_close"`
	AnnualReturn         null.Float `json:"annual_return"`
	AnnualizedVolatility null.Float `json:"annualized_volatility"`
	YTDPerformance       null.Float `json:"ytd_performance"`
	MarketCap            null.Float `json:"market_cap"`
	PERatio              null.Float `json:"pe_ratio"`
	WeekChange52         null.Float `json:"52_week_change"`
}

// Derive computes the DerivedMetrics of one series.
// An empty series keeps every metric absent.
func Derive(s contracts.SymbolSeries) DerivedMetrics {
	s = s.Normalize()
	m := DerivedMetrics{
		Symbol:       s.Symbol,
		Sector:       s.Profile.Sector,
		Observations: s.Len(),
		MarketCap:    s.Profile.MarketCap,
		PERatio:      s.Profile.PERatio,
		WeekChange52: s.Profile.WeekChange52,
	}
	if s.Empty() {
		return m
	}

	closes := s.Closes()
	m.LastClose = null.FloatFrom(closes[len(closes)-1])
	m.AnnualReturn = PeriodReturn(closes)
	m.AnnualizedVolatility = AnnualizedVolatility(DailyReturns(closes))
	m.YTDPerformance = YTDPerformance(s)
	return m
}

// DeriveAll applies Derive to every series
func DeriveAll(series []contracts.SymbolSeries) []DerivedMetrics {
	out := make([]DerivedMetrics, len(series))
	for i, s := range series {
		out[i] = Derive(s)
	}
	return out
}

// MinMaxNormalize rescales present values onto [0, 1].
// When every present value is equal they all map to 0.
func MinMaxNormalize(values []null.Float) []null.Float {
	out := make([]null.Float, len(values))
	nums := present(values)
	if len(nums) == 0 {
		return out
	}

	lo, hi := nums[0], nums[0]
	for _, v := range nums[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := hi - lo

	for i, v := range values {
		if !v.Valid || !finite(v.Float64) {
			continue
		}
		if span == 0 {
			out[i] = null.FloatFrom(0)
			continue
		}
		out[i] = null.FloatFrom((v.Float64 - lo) / span)
	}
	return out
}

// YearlyChange is the mean intraday change of one symbol in one year
type YearlyChange struct {
	Year            int        `json:"year"`
	Symbol          string     `json:"symbol"`
	MeanDailyChange null.Float `json:"mean_daily_change"`
}

// YearlyMeanDailyChange groups the table by (year, symbol) and averages
// DailyChange. Output is ordered by year, then by first appearance of the
// symbol in the table.
func YearlyMeanDailyChange(t contracts.UnifiedTable) []YearlyChange {
	type key struct {
		year   int
		symbol string
	}
	type acc struct {
		sum float64
		n   int
	}

	order := make(map[string]int)
	groups := make(map[key]*acc)
	var keys []key

	for _, row := range t.Rows {
		if _, ok := order[row.Symbol]; !ok {
			order[row.Symbol] = len(order)
		}
		k := key{year: row.Date.Year(), symbol: row.Symbol}
		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
			keys = append(keys, k)
		}
		if c := DailyChange(row.Record); c.Valid {
			a.sum += c.Float64
			a.n++
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].year != keys[j].year {
			return keys[i].year < keys[j].year
		}
		return order[keys[i].symbol] < order[keys[j].symbol]
	})

	out := make([]YearlyChange, len(keys))
	for i, k := range keys {
		a := groups[k]
		out[i] = YearlyChange{Year: k.year, Symbol: k.symbol}
		if a.n > 0 {
			out[i].MeanDailyChange = null.FloatFrom(a.sum / float64(a.n))
		}
	}
	return out
}

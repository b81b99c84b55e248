package contracts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/guregu/null/v6"
)

// DateLayout is the calendar date format used in keys and dataset files
const DateLayout = "2006-01-02"

// Period is a lookback window understood by the upstream chart API
type Period string

const (
	Period1D  Period = "1d"
	Period5D  Period = "5d"
	Period1M  Period = "1mo"
	Period3M  Period = "3mo"
	Period6M  Period = "6mo"
	Period1Y  Period = "1y"
	Period2Y  Period = "2y"
	Period5Y  Period = "5y"
	Period10Y Period = "10y"
	PeriodYTD Period = "ytd"
	PeriodMax Period = "max"
)

var validPeriods = map[Period]bool{
	Period1D: true, Period5D: true, Period1M: true, Period3M: true, Period6M: true,
	Period1Y: true, Period2Y: true, Period5Y: true, Period10Y: true, PeriodYTD: true, PeriodMax: true,
}

// Valid reports whether p is a known period
func (p Period) Valid() bool {
	return validPeriods[p]
}

// Interval is the bar size of a history request
type Interval string

const (
	IntervalDay   Interval = "1d"
	IntervalWeek  Interval = "1wk"
	IntervalMonth Interval = "1mo"
)

// Valid reports whether i is a known interval
func (i Interval) Valid() bool {
	return i == IntervalDay || i == IntervalWeek || i == IntervalMonth
}

// DateRange is an inclusive calendar range
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// HistoryRequest identifies one upstream history call.
// Exactly one of Period or Range is used; Range wins when set.
type HistoryRequest struct {
	Symbol   string
	Period   Period
	Range    *DateRange
	Interval Interval
}

// CacheKey is the deterministic snapshot key for the request
func (r HistoryRequest) CacheKey() string {
	symbol := strings.ToUpper(r.Symbol)
	if r.Range != nil {
		return fmt.Sprintf("%s_%s_%s_%s", symbol,
			r.Range.Start.Format(DateLayout), r.Range.End.Format(DateLayout), r.Interval)
	}
	return fmt.Sprintf("%s_%s_%s", symbol, r.Period, r.Interval)
}

// Validate checks the request shape before any upstream call
func (r HistoryRequest) Validate() error {
	if strings.TrimSpace(r.Symbol) == "" {
		return fmt.Errorf("symbol is required")
	}
	if !r.Interval.Valid() {
		return fmt.Errorf("unknown interval %q", r.Interval)
	}
	if r.Range != nil {
		if r.Range.End.Before(r.Range.Start) {
			return fmt.Errorf("range end %s before start %s",
				r.Range.End.Format(DateLayout), r.Range.Start.Format(DateLayout))
		}
		return nil
	}
	if !r.Period.Valid() {
		return fmt.Errorf("unknown period %q", r.Period)
	}
	return nil
}

// DatasetKey is the snapshot key for a named dataset
func DatasetKey(name string) string {
	return "dataset:" + name
}

// Record is one trading-session observation for one symbol.
// OHLC ordering (high >= max(open, close) >= low) is tolerated, not enforced.
type Record struct {
	Date   time.Time `json:"date" validate:"required"`
	Open   float64   `json:"open" validate:"gt=0"`
	High   float64   `json:"high" validate:"gt=0"`
	Low    float64   `json:"low" validate:"gt=0"`
	Close  float64   `json:"close" validate:"gt=0"`
	Volume int64     `json:"volume" validate:"gte=0"`
}

// Profile is per-symbol static metadata fetched once per refresh cycle.
// Ratios are fractions; an invalid null.Float means the field is unknown.
type Profile struct {
	Symbol        string     `json:"symbol" validate:"required"`
	Sector        string     `json:"sector"`
	MarketCap     null.Float `json:"market_cap"`
	PERatio       null.Float `json:"pe_ratio"`
	WeekChange52  null.Float `json:"52_week_change"`
	DividendYield null.Float `json:"dividend_yield"`
	DebtToEquity  null.Float `json:"debt_to_equity"`
	RevenueGrowth null.Float `json:"revenue_growth"`
	ProfitMargin  null.Float `json:"profit_margin"`
}

// Merge fills fields that are unknown in p from other
func (p Profile) Merge(other Profile) Profile {
	if p.Symbol == "" {
		p.Symbol = other.Symbol
	}
	if p.Sector == "" {
		p.Sector = other.Sector
	}
	fill := func(dst *null.Float, src null.Float) {
		if !dst.Valid && src.Valid {
			*dst = src
		}
	}
	fill(&p.MarketCap, other.MarketCap)
	fill(&p.PERatio, other.PERatio)
	fill(&p.WeekChange52, other.WeekChange52)
	fill(&p.DividendYield, other.DividendYield)
	fill(&p.DebtToEquity, other.DebtToEquity)
	fill(&p.RevenueGrowth, other.RevenueGrowth)
	fill(&p.ProfitMargin, other.ProfitMargin)
	return p
}

// SymbolSeries is one symbol's ordered records plus its profile
type SymbolSeries struct {
	Symbol    string    `json:"symbol"`
	Records   []Record  `json:"records"`
	Profile   Profile   `json:"profile"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Len returns the number of records
func (s SymbolSeries) Len() int {
	return len(s.Records)
}

// Empty reports whether the series has no records
func (s SymbolSeries) Empty() bool {
	return len(s.Records) == 0
}

// Closes returns a copy of the close prices in date order
func (s SymbolSeries) Closes() []float64 {
	out := make([]float64, len(s.Records))
	for i, r := range s.Records {
		out[i] = r.Close
	}
	return out
}

// Clone returns a deep copy safe to hand to another owner
func (s SymbolSeries) Clone() SymbolSeries {
	out := s
	out.Records = append([]Record(nil), s.Records...)
	return out
}

// Normalize returns a copy sorted by date with duplicate dates removed
// (the last occurrence wins), so dates are strictly increasing.
func (s SymbolSeries) Normalize() SymbolSeries {
	out := s.Clone()
	out.Records = NormalizeRecords(out.Records)
	return out
}

// NormalizeRecords sorts records by date and drops duplicate dates in place
func NormalizeRecords(records []Record) []Record {
	if len(records) < 2 {
		return records
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	out := records[:0]
	for _, r := range records {
		if n := len(out); n > 0 && out[n-1].Date.Equal(r.Date) {
			out[n-1] = r
			continue
		}
		out = append(out, r)
	}
	return out
}

// SessionDate truncates t to a timezone-naive calendar date (UTC midnight)
func SessionDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

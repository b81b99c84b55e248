package contracts

import (
	"github.com/guregu/null/v6"
)

// Row is one record tagged with its symbol and the profile columns.
// Label names the window a row came from ("1 Year", "Yesterday", ...) and is
// empty for single-window fetches.
type Row struct {
	Symbol string `json:"symbol"`
	Label  string `json:"time_period,omitempty"`
	Record

	Sector       string     `json:"sector"`
	MarketCap    null.Float `json:"market_cap"`
	PERatio      null.Float `json:"pe_ratio"`
	WeekChange52 null.Float `json:"52_week_change"`
}

// UnifiedTable is the row concatenation of several SymbolSeries.
// Failed symbols are absent; there are no placeholder rows.
type UnifiedTable struct {
	Rows []Row `json:"rows"`
}

// NewUnifiedTable builds a table from series in the given order
func NewUnifiedTable(series ...SymbolSeries) UnifiedTable {
	var t UnifiedTable
	for _, s := range series {
		t.Append(s, "")
	}
	return t
}

// Append adds every record of s tagged with s.Symbol and label
func (t *UnifiedTable) Append(s SymbolSeries, label string) {
	for _, r := range s.Records {
		t.Rows = append(t.Rows, Row{
			Symbol:       s.Symbol,
			Label:        label,
			Record:       r,
			Sector:       s.Profile.Sector,
			MarketCap:    s.Profile.MarketCap,
			PERatio:      s.Profile.PERatio,
			WeekChange52: s.Profile.WeekChange52,
		})
	}
}

// Concat appends all rows of other
func (t *UnifiedTable) Concat(other UnifiedTable) {
	t.Rows = append(t.Rows, other.Rows...)
}

// Len returns the number of rows
func (t UnifiedTable) Len() int {
	return len(t.Rows)
}

// Symbols returns the distinct symbols in order of first appearance
func (t UnifiedTable) Symbols() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.Rows {
		if !seen[r.Symbol] {
			seen[r.Symbol] = true
			out = append(out, r.Symbol)
		}
	}
	return out
}

// Labels returns the distinct window labels in order of first appearance
func (t UnifiedTable) Labels() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range t.Rows {
		if !seen[r.Label] {
			seen[r.Label] = true
			out = append(out, r.Label)
		}
	}
	return out
}

// Filter returns a new table holding the rows for which keep is true
func (t UnifiedTable) Filter(keep func(Row) bool) UnifiedTable {
	var out UnifiedTable
	for _, r := range t.Rows {
		if keep(r) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// ByLabel returns the rows of one window
func (t UnifiedTable) ByLabel(label string) UnifiedTable {
	return t.Filter(func(r Row) bool { return r.Label == label })
}

// Split regroups rows into one normalized SymbolSeries per symbol, in order
// of first appearance. The profile is taken from the symbol's rows.
func (t UnifiedTable) Split() []SymbolSeries {
	index := make(map[string]int)
	var out []SymbolSeries

	for _, r := range t.Rows {
		i, ok := index[r.Symbol]
		if !ok {
			i = len(out)
			index[r.Symbol] = i
			out = append(out, SymbolSeries{
				Symbol: r.Symbol,
				Profile: Profile{
					Symbol:       r.Symbol,
					Sector:       r.Sector,
					MarketCap:    r.MarketCap,
					PERatio:      r.PERatio,
					WeekChange52: r.WeekChange52,
				},
			})
		}
		out[i].Records = append(out[i].Records, r.Record)
	}

	for i := range out {
		out[i].Records = NormalizeRecords(out[i].Records)
	}
	return out
}

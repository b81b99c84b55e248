package analytics

import (
	"sort"
	"time"

	"github.com/guregu/null/v6"

	"github.com/wonny/stockboard/internal/contracts"
)

// AlignedPanel holds closes of several symbols on one shared date axis.
// Values[symbol][i] is the close at Dates[i].
type AlignedPanel struct {
	Dates   []time.Time             `json:"dates"`
	Symbols []string                `json:"symbols"`
	Values  map[string][]null.Float `json:"values"`
}

// PanelPoint is one (date, symbol) cell of a melted panel
type PanelPoint struct {
	Date   time.Time  `json:"date"`
	Symbol string     `json:"symbol"`
	Close  null.Float `json:"close"`
}

// AlignAndForwardFill reindexes every series onto the union of their dates
// and carries the latest observed close forward over gaps.
// ⭐ SSOT: dates before a symbol's first observation stay absent.
func AlignAndForwardFill(series []contracts.SymbolSeries) AlignedPanel {
	panel := AlignedPanel{Values: make(map[string][]null.Float)}

	bySymbol := make(map[string]map[time.Time]float64)
	dateSet := make(map[time.Time]bool)
	for _, s := range series {
		if s.Empty() {
			continue
		}
		obs, ok := bySymbol[s.Symbol]
		if !ok {
			obs = make(map[time.Time]float64)
			bySymbol[s.Symbol] = obs
			panel.Symbols = append(panel.Symbols, s.Symbol)
		}
		for _, r := range s.Records {
			d := contracts.SessionDate(r.Date)
			obs[d] = r.Close
			dateSet[d] = true
		}
	}

	panel.Dates = make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		panel.Dates = append(panel.Dates, d)
	}
	sort.Slice(panel.Dates, func(i, j int) bool { return panel.Dates[i].Before(panel.Dates[j]) })

	for _, sym := range panel.Symbols {
		obs := bySymbol[sym]
		values := make([]null.Float, len(panel.Dates))
		var last null.Float
		for i, d := range panel.Dates {
			if c, ok := obs[d]; ok {
				last = null.FloatFrom(c)
			}
			values[i] = last
		}
		panel.Values[sym] = values
	}
	return panel
}

// Len returns the number of dates
func (p AlignedPanel) Len() int {
	return len(p.Dates)
}

// At returns the value of symbol at date index i
func (p AlignedPanel) At(symbol string, i int) null.Float {
	values, ok := p.Values[symbol]
	if !ok || i < 0 || i >= len(values) {
		return null.Float{}
	}
	return values[i]
}

// Melt flattens the panel to long form ordered by date, then by close
// descending with absent closes last. This is the frame order of a ranking
// animation.
func (p AlignedPanel) Melt() []PanelPoint {
	out := make([]PanelPoint, 0, len(p.Dates)*len(p.Symbols))
	for i, d := range p.Dates {
		start := len(out)
		for _, sym := range p.Symbols {
			out = append(out, PanelPoint{Date: d, Symbol: sym, Close: p.Values[sym][i]})
		}
		frame := out[start:]
		sort.SliceStable(frame, func(a, b int) bool {
			ca, cb := frame[a].Close, frame[b].Close
			if ca.Valid != cb.Valid {
				return ca.Valid
			}
			return ca.Float64 > cb.Float64
		})
	}
	return out
}

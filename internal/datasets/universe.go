package datasets

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wonny/stockboard/internal/collector"
	"github.com/wonny/stockboard/internal/contracts"
)

// DefaultSymbols is the universe used when no file is configured
var DefaultSymbols = []string{"CVX", "BA", "GM", "C", "BAC", "T", "CAT", "F", "DIS", "DE"}

// Universe는 대시보드가 다루는 종목과 데이터셋 정의
type Universe struct {
	Symbols  []string     `yaml:"symbols" json:"symbols" validate:"required,min=1,dive,required"`
	Interval string       `yaml:"interval" json:"interval"`
	Datasets []Definition `yaml:"datasets" json:"datasets" validate:"required,min=1,dive"`
}

// Definition describes one named dataset file
type Definition struct {
	Name        string       `yaml:"name" json:"name" validate:"required"`
	Description string       `yaml:"description" json:"description"`
	Symbols     []string     `yaml:"symbols" json:"symbols,omitempty" validate:"omitempty,dive,required"`
	Windows     []WindowSpec `yaml:"windows" json:"windows" validate:"required,min=1,dive"`
}

// WindowSpec is either a period ("1y") or a lookback in days.
// SpanDays bounds a lookback window; zero means "until today".
type WindowSpec struct {
	Label        string `yaml:"label" json:"label"`
	Period       string `yaml:"period" json:"period,omitempty"`
	LookbackDays int    `yaml:"lookback_days" json:"lookback_days,omitempty" validate:"gte=0"`
	SpanDays     int    `yaml:"span_days" json:"span_days,omitempty" validate:"gte=0"`
	Interval     string `yaml:"interval" json:"interval,omitempty"`
}

// LoadUniverse reads and validates a universe file.
// KnownFields(true): 오타/미사용 필드는 즉시 실패
func LoadUniverse(path string) (*Universe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe: %w", err)
	}
	return ParseUniverse(data)
}

// ParseUniverse decodes and validates universe YAML
func ParseUniverse(data []byte) (*Universe, error) {
	var u Universe
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&u); err != nil {
		return nil, fmt.Errorf("decode universe: %w", err)
	}
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return &u, nil
}

// Validate checks field constraints and window consistency, normalizing
// symbols to upper case.
func (u *Universe) Validate() error {
	if u.Interval == "" {
		u.Interval = string(contracts.IntervalDay)
	}
	if !contracts.Interval(u.Interval).Valid() {
		return fmt.Errorf("universe.interval: unknown interval %q", u.Interval)
	}
	if err := contracts.Validator().Struct(u); err != nil {
		return fmt.Errorf("invalid universe: %w", err)
	}

	u.Symbols = upper(u.Symbols)
	seen := make(map[string]bool)
	for i := range u.Datasets {
		d := &u.Datasets[i]
		if seen[d.Name] {
			return fmt.Errorf("datasets[%d]: duplicate name %q", i, d.Name)
		}
		seen[d.Name] = true
		if strings.ContainsAny(d.Name, `/\ `) {
			return fmt.Errorf("datasets[%d]: name %q is not a file name", i, d.Name)
		}
		d.Symbols = upper(d.Symbols)

		for j, w := range d.Windows {
			if err := w.validate(); err != nil {
				return fmt.Errorf("datasets.%s.windows[%d]: %w", d.Name, j, err)
			}
		}
	}
	return nil
}

func (w WindowSpec) validate() error {
	switch {
	case w.Period != "" && w.LookbackDays > 0:
		return fmt.Errorf("period and lookback_days are exclusive")
	case w.Period == "" && w.LookbackDays == 0:
		return fmt.Errorf("one of period or lookback_days is required")
	case w.Period != "" && !contracts.Period(w.Period).Valid():
		return fmt.Errorf("unknown period %q", w.Period)
	case w.SpanDays > 0 && w.LookbackDays == 0:
		return fmt.Errorf("span_days needs lookback_days")
	case w.Interval != "" && !contracts.Interval(w.Interval).Valid():
		return fmt.Errorf("unknown interval %q", w.Interval)
	}
	return nil
}

// Definition returns the dataset called name
func (u *Universe) Definition(name string) (Definition, bool) {
	for _, d := range u.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return Definition{}, false
}

// SymbolsFor returns the dataset's own symbols or the universe symbols
func (u *Universe) SymbolsFor(d Definition) []string {
	if len(d.Symbols) > 0 {
		return d.Symbols
	}
	return u.Symbols
}

// Windows resolves the dataset windows against today.
// Lookback ranges end the day before their exclusive end date, so
// "Yesterday" (lookback 1, span 1) is exactly one session date.
func (u *Universe) Windows(d Definition, now time.Time) []collector.Window {
	today := contracts.SessionDate(now)
	out := make([]collector.Window, len(d.Windows))
	for i, w := range d.Windows {
		interval := contracts.Interval(w.Interval)
		if interval == "" {
			interval = contracts.Interval(u.Interval)
		}

		cw := collector.Window{Label: w.Label, Interval: interval}
		if w.Period != "" {
			cw.Period = contracts.Period(w.Period)
		} else {
			start := today.AddDate(0, 0, -w.LookbackDays)
			end := today
			if w.SpanDays > 0 {
				end = start.AddDate(0, 0, w.SpanDays)
			}
			cw.Range = &contracts.DateRange{Start: start, End: end.AddDate(0, 0, -1)}
		}
		out[i] = cw
	}
	return out
}

// DefaultUniverse mirrors configs/universe.yaml
func DefaultUniverse() *Universe {
	lookback := func(label string, days, span int) WindowSpec {
		return WindowSpec{Label: label, LookbackDays: days, SpanDays: span}
	}
	return &Universe{
		Symbols:  append([]string(nil), DefaultSymbols...),
		Interval: string(contracts.IntervalDay),
		Datasets: []Definition{
			{
				Name:        "stock_trend_data",
				Description: "Trend windows with profile columns",
				Windows: []WindowSpec{
					lookback("1 Year", 365, 0),
					lookback("6 Months", 182, 0),
					lookback("3 Months", 91, 0),
					lookback("Yesterday", 1, 1),
				},
			},
			{
				Name:        "bubble_chart_stock_data",
				Description: "One year of closes for bubble animation",
				Windows:     []WindowSpec{{Period: string(contracts.Period1Y)}},
			},
			{
				Name:        "grouped_bar_chart",
				Description: "Ten years of sessions for yearly bar races",
				Windows:     []WindowSpec{{Period: string(contracts.Period10Y)}},
			},
			{
				Name:        "stock_sparkline",
				Description: "Sparkline year plus the latest sessions",
				Windows: []WindowSpec{
					lookback("1 Year", 365, 0),
					lookback("Yesterday", 2, 2),
				},
			},
			{
				Name:        "stock_data_cache",
				Description: "One year of sessions for parallel coordinates",
				Windows:     []WindowSpec{{Period: string(contracts.Period1Y)}},
			},
		},
	}
}

func upper(symbols []string) []string {
	if len(symbols) == 0 {
		return nil
	}
	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = strings.ToUpper(strings.TrimSpace(s))
	}
	return out
}

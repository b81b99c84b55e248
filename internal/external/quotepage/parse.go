package quotepage

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"

	"github.com/wonny/stockboard/internal/contracts"
)

// Quote holds every field the quote page may expose. Each field is
// extracted on its own; a field the page lacks stays absent.
type Quote struct {
	Symbol        string
	Price         null.Float
	Open          null.Float
	PrevClose     null.Float
	DayLow        null.Float
	DayHigh       null.Float
	Volume        null.Float
	DividendYield null.Float
	WeekChange52  null.Float
	DebtToEquity  null.Float
	RevenueGrowth null.Float
	ProfitMargin  null.Float
}

var (
	percentInParens = regexp.MustCompile(`\(([-+]?[\d.,]+)%\)`)
	numberToken     = regexp.MustCompile(`[-+]?[\d,]*\.?\d+`)
)

// field finds a table cell by its data-test key, old or new attribute name
func field(doc *goquery.Document, key string) string {
	sel := fmt.Sprintf(`[data-test="%s-value"], [data-testid="%s-value"]`, key, key)
	return strings.TrimSpace(doc.Find(sel).First().Text())
}

// ParseQuote extracts quote fields from a quote page document
func ParseQuote(symbol string, r io.Reader) (Quote, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Quote{}, fmt.Errorf("parse html: %w", err)
	}

	q := Quote{Symbol: symbol}

	price := strings.TrimSpace(doc.Find(`fin-streamer[data-field="regularMarketPrice"]`).First().Text())
	q.Price = parseNumber(price)
	q.Open = parseNumber(field(doc, "OPEN"))
	q.PrevClose = parseNumber(field(doc, "PREV_CLOSE"))
	q.Volume = parseNumber(field(doc, "TD_VOLUME"))

	if parts := strings.Split(field(doc, "DAYS_RANGE"), "-"); len(parts) == 2 {
		q.DayLow = parseNumber(parts[0])
		q.DayHigh = parseNumber(parts[1])
	}

	// "6.52 (4.12%)"
	if m := percentInParens.FindStringSubmatch(field(doc, "DIVIDEND_AND_YIELD")); m != nil {
		q.DividendYield = parsePercent(m[1])
	}

	q.WeekChange52 = parsePercent(field(doc, "52_WEEK_CHANGE"))
	q.DebtToEquity = parsePercent(field(doc, "DEBT_EQUITY_RATIO"))
	q.RevenueGrowth = parsePercent(field(doc, "REVENUE_GROWTH_QTRLY_YOY"))
	q.ProfitMargin = parsePercent(field(doc, "PROFIT_MARGIN"))

	return q, nil
}

// Record converts the quote into a session record. It needs open, day
// range, volume and a closing value (live price, else previous close).
func (q Quote) Record(date time.Time) (contracts.Record, bool) {
	closeValue := q.Price
	if !closeValue.Valid {
		closeValue = q.PrevClose
	}
	if !q.Open.Valid || !q.DayLow.Valid || !q.DayHigh.Valid || !q.Volume.Valid || !closeValue.Valid {
		return contracts.Record{}, false
	}

	return contracts.Record{
		Date:   contracts.SessionDate(date),
		Open:   q.Open.Float64,
		High:   q.DayHigh.Float64,
		Low:    q.DayLow.Float64,
		Close:  closeValue.Float64,
		Volume: int64(q.Volume.Float64),
	}, true
}

// Profile returns the scraped fundamentals
func (q Quote) Profile() contracts.Profile {
	return contracts.Profile{
		Symbol:        q.Symbol,
		WeekChange52:  q.WeekChange52,
		DividendYield: q.DividendYield,
		DebtToEquity:  q.DebtToEquity,
		RevenueGrowth: q.RevenueGrowth,
		ProfitMargin:  q.ProfitMargin,
	}
}

// Missing names the fields the page did not provide
func (q Quote) Missing() []string {
	fields := []struct {
		name string
		v    null.Float
	}{
		{"price", q.Price}, {"open", q.Open}, {"prev_close", q.PrevClose},
		{"day_low", q.DayLow}, {"day_high", q.DayHigh}, {"volume", q.Volume},
		{"dividend_yield", q.DividendYield}, {"52_week_change", q.WeekChange52},
		{"debt_to_equity", q.DebtToEquity}, {"revenue_growth", q.RevenueGrowth},
		{"profit_margin", q.ProfitMargin},
	}

	var missing []string
	for _, f := range fields {
		if !f.v.Valid {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// parseNumber reads "12,345.67" style text; N/A, "--" and blanks are absent
func parseNumber(s string) null.Float {
	tok := numberToken.FindString(strings.TrimSpace(s))
	if tok == "" {
		return null.Float{}
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(tok, ",", ""))
	if err != nil {
		return null.Float{}
	}
	return null.FloatFrom(d.InexactFloat64())
}

// parsePercent reads "12.5%" as the fraction 0.125
func parsePercent(s string) null.Float {
	tok := numberToken.FindString(strings.TrimSpace(s))
	if tok == "" {
		return null.Float{}
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(tok, ",", ""))
	if err != nil {
		return null.Float{}
	}
	return null.FloatFrom(d.Div(decimal.NewFromInt(100)).InexactFloat64())
}

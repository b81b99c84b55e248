package quotepage

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/internal/external"
	"github.com/wonny/stockboard/pkg/httputil"
	"github.com/wonny/stockboard/pkg/logger"
)

// SourceName labels errors, logs and metrics from this client
const SourceName = "quotepage"

// Client scrapes the public quote page as a secondary MarketDataSource.
// It only knows today's session, so history requests get at most one record.
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	now        func() time.Time
}

// NewClient creates a quote page scraper rooted at baseURL (…/quote)
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("quotepage"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		now:        time.Now,
	}
}

func (c *Client) Name() string {
	return SourceName
}

// FetchQuote downloads and parses the quote page of symbol
func (c *Client) FetchQuote(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	body, err := c.httpClient.GetBytes(ctx, fmt.Sprintf("%s/%s/", c.baseURL, url.PathEscape(symbol)))
	if err != nil {
		return Quote{}, external.Classify(SourceName, symbol, err)
	}

	quote, err := ParseQuote(symbol, strings.NewReader(string(body)))
	if err != nil {
		return Quote{}, contracts.NewSourceError(contracts.KindMalformed, SourceName, symbol, err)
	}

	if missing := quote.Missing(); len(missing) > 0 {
		c.logger.WithFields(map[string]interface{}{
			"symbol":  symbol,
			"missing": missing,
		}).Debug("Quote page fields absent")
	}
	return quote, nil
}

// FetchHistory returns today's session scraped from the quote page, or
// nothing when the request window does not cover today or the page lacks
// a complete OHLCV set.
func (c *Client) FetchHistory(ctx context.Context, req contracts.HistoryRequest) ([]contracts.Record, error) {
	today := contracts.SessionDate(c.now())
	if req.Range != nil && contracts.SessionDate(req.Range.End).Before(today) {
		return nil, nil
	}

	quote, err := c.FetchQuote(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	record, ok := quote.Record(today)
	if !ok {
		return nil, nil
	}

	valid, _, err := contracts.SanitizeRecords(SourceName, quote.Symbol, []contracts.Record{record})
	if err != nil {
		return nil, err
	}
	return valid, nil
}

// FetchProfile returns the fundamentals the quote page exposes.
// Sector, market cap and P/E are not scraped and stay absent.
func (c *Client) FetchProfile(ctx context.Context, symbol string) (contracts.Profile, error) {
	quote, err := c.FetchQuote(ctx, symbol)
	if err != nil {
		return contracts.Profile{}, err
	}
	return quote.Profile(), nil
}

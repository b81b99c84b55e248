package yahoo

import (
	"strings"

	"github.com/wonny/stockboard/pkg/httputil"
	"github.com/wonny/stockboard/pkg/logger"
)

// SourceName labels errors, logs and metrics from this client
const SourceName = "yahoo"

// Client reads daily history from the chart API and profile fields from
// quoteSummary. It implements contracts.MarketDataSource.
// ⭐ SSOT: Yahoo Finance API calls go through this client only
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new Yahoo Finance client
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     log.WithComponent("yahoo"),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

func (c *Client) Name() string {
	return SourceName
}

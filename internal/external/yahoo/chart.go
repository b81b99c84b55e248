package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/internal/external"
)

// chartResponse is the v8 chart payload. Nullable arrays hold nil on
// holidays and halted sessions.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"chart"`
}

type apiError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// FetchHistory returns validated daily records for req
func (c *Client) FetchHistory(ctx context.Context, req contracts.HistoryRequest) ([]contracts.Record, error) {
	symbol := strings.ToUpper(req.Symbol)
	if err := req.Validate(); err != nil {
		return nil, contracts.NewSourceError(contracts.KindMalformed, SourceName, symbol, err)
	}

	body, err := c.httpClient.GetBytes(ctx, c.chartURL(req))
	if err != nil {
		// the chart API answers unknown symbols with 404 and a JSON error body
		return nil, external.Classify(SourceName, symbol, err)
	}

	records, err := parseChart(symbol, body)
	if err != nil {
		return nil, err
	}

	valid, dropped, err := contracts.SanitizeRecords(SourceName, symbol, records)
	if err != nil {
		return nil, err
	}
	if dropped > 0 {
		c.logger.WithFields(map[string]interface{}{
			"symbol":  symbol,
			"dropped": dropped,
		}).Debug("Dropped invalid chart rows")
	}

	return valid, nil
}

func (c *Client) chartURL(req contracts.HistoryRequest) string {
	params := url.Values{}
	params.Set("interval", string(req.Interval))
	params.Set("includePrePost", "false")
	params.Set("events", "div,splits")

	if req.Range != nil {
		start := contracts.SessionDate(req.Range.Start)
		// period2 is exclusive upstream; the range end is inclusive here
		end := contracts.SessionDate(req.Range.End).Add(24 * time.Hour)
		params.Set("period1", strconv.FormatInt(start.Unix(), 10))
		params.Set("period2", strconv.FormatInt(end.Unix(), 10))
	} else {
		params.Set("range", string(req.Period))
	}

	return fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(strings.ToUpper(req.Symbol)), params.Encode())
}

func parseChart(symbol string, body []byte) ([]contracts.Record, error) {
	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, contracts.NewSourceError(contracts.KindMalformed, SourceName, symbol, fmt.Errorf("decode chart: %w", err))
	}

	if e := chart.Chart.Error; e != nil {
		kind := contracts.KindMalformed
		if strings.EqualFold(e.Code, "Not Found") {
			kind = contracts.KindNotFound
		}
		return nil, contracts.NewSourceError(kind, SourceName, symbol, fmt.Errorf("%s: %s", e.Code, e.Description))
	}

	if len(chart.Chart.Result) == 0 {
		return nil, nil
	}

	result := chart.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, nil
	}

	quote := result.Indicators.Quote[0]
	n := len(result.Timestamp)
	if len(quote.Open) != n || len(quote.High) != n || len(quote.Low) != n ||
		len(quote.Close) != n || len(quote.Volume) != n {
		return nil, contracts.NewSourceError(contracts.KindMalformed, SourceName, symbol,
			fmt.Errorf("indicator arrays do not match %d timestamps", n))
	}

	records := make([]contracts.Record, 0, n)
	for i, ts := range result.Timestamp {
		if quote.Close[i] == nil || quote.Open[i] == nil || quote.High[i] == nil || quote.Low[i] == nil {
			continue
		}
		var volume int64
		if quote.Volume[i] != nil {
			volume = *quote.Volume[i]
		}

		// exchange-local calendar date
		local := time.Unix(ts+result.Meta.GMTOffset, 0).UTC()
		records = append(records, contracts.Record{
			Date:   contracts.SessionDate(local),
			Open:   *quote.Open[i],
			High:   *quote.High[i],
			Low:    *quote.Low[i],
			Close:  *quote.Close[i],
			Volume: volume,
		})
	}

	return records, nil
}

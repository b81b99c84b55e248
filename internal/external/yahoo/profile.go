package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/guregu/null/v6"

	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/internal/external"
)

const profileModules = "assetProfile,summaryDetail,defaultKeyStatistics,financialData"

type rawValue struct {
	Raw *float64 `json:"raw"`
}

func (v *rawValue) value() null.Float {
	if v == nil {
		return null.Float{}
	}
	return null.FloatFromPtr(v.Raw)
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			AssetProfile struct {
				Sector string `json:"sector"`
			} `json:"assetProfile"`
			SummaryDetail struct {
				MarketCap     *rawValue `json:"marketCap"`
				TrailingPE    *rawValue `json:"trailingPE"`
				DividendYield *rawValue `json:"dividendYield"`
			} `json:"summaryDetail"`
			DefaultKeyStatistics struct {
				WeekChange52 *rawValue `json:"52WeekChange"`
			} `json:"defaultKeyStatistics"`
			FinancialData struct {
				DebtToEquity  *rawValue `json:"debtToEquity"`
				RevenueGrowth *rawValue `json:"revenueGrowth"`
				ProfitMargins *rawValue `json:"profitMargins"`
			} `json:"financialData"`
		} `json:"result"`
		Error *apiError `json:"error"`
	} `json:"quoteSummary"`
}

// FetchProfile returns sector and fundamentals. Fields the API omits stay absent.
func (c *Client) FetchProfile(ctx context.Context, symbol string) (contracts.Profile, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=%s",
		c.baseURL, url.PathEscape(symbol), url.QueryEscape(profileModules))

	body, err := c.httpClient.GetBytes(ctx, endpoint)
	if err != nil {
		return contracts.Profile{}, external.Classify(SourceName, symbol, err)
	}

	profile, err := parseProfile(symbol, body)
	if err != nil {
		return contracts.Profile{}, err
	}

	if err := contracts.ValidateProfile(&profile); err != nil {
		return contracts.Profile{}, contracts.NewSourceError(contracts.KindMalformed, SourceName, symbol, err)
	}
	return profile, nil
}

func parseProfile(symbol string, body []byte) (contracts.Profile, error) {
	var resp quoteSummaryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return contracts.Profile{}, contracts.NewSourceError(contracts.KindMalformed, SourceName, symbol, fmt.Errorf("decode quoteSummary: %w", err))
	}

	if e := resp.QuoteSummary.Error; e != nil {
		kind := contracts.KindMalformed
		if strings.EqualFold(e.Code, "Not Found") {
			kind = contracts.KindNotFound
		}
		return contracts.Profile{}, contracts.NewSourceError(kind, SourceName, symbol, fmt.Errorf("%s: %s", e.Code, e.Description))
	}

	if len(resp.QuoteSummary.Result) == 0 {
		return contracts.Profile{}, contracts.NewSourceError(contracts.KindNotFound, SourceName, symbol, fmt.Errorf("empty quoteSummary result"))
	}

	r := resp.QuoteSummary.Result[0]
	profile := contracts.Profile{
		Symbol:        symbol,
		Sector:        r.AssetProfile.Sector,
		MarketCap:     r.SummaryDetail.MarketCap.value(),
		PERatio:       r.SummaryDetail.TrailingPE.value(),
		DividendYield: r.SummaryDetail.DividendYield.value(),
		WeekChange52:  r.DefaultKeyStatistics.WeekChange52.value(),
		RevenueGrowth: r.FinancialData.RevenueGrowth.value(),
		ProfitMargin:  r.FinancialData.ProfitMargins.value(),
	}

	// debtToEquity is published as a percentage (e.g. 14.2 for 0.142)
	if de := r.FinancialData.DebtToEquity.value(); de.Valid {
		profile.DebtToEquity = null.FloatFrom(de.Float64 / 100)
	}

	return profile, nil
}

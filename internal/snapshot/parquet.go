package snapshot

import (
	"fmt"
	"time"

	"github.com/guregu/null/v6"
	"github.com/parquet-go/parquet-go"

	"github.com/wonny/stockboard/internal/contracts"
)

// parquetRow is the on-disk schema of a parquet dataset file
type parquetRow struct {
	TimePeriod   string   `parquet:"time_period"`
	Date         string   `parquet:"date"`
	Symbol       string   `parquet:"symbol"`
	Sector       string   `parquet:"sector"`
	Open         float64  `parquet:"open"`
	High         float64  `parquet:"high"`
	Low          float64  `parquet:"low"`
	Close        float64  `parquet:"close"`
	Volume       int64    `parquet:"volume"`
	MarketCap    *float64 `parquet:"market_cap,optional"`
	PERatio      *float64 `parquet:"pe_ratio,optional"`
	WeekChange52 *float64 `parquet:"52_week_change,optional"`
}

func writeParquet(path string, table contracts.UnifiedTable) error {
	rows := make([]parquetRow, len(table.Rows))
	for i, r := range table.Rows {
		rows[i] = parquetRow{
			TimePeriod:   r.Label,
			Date:         r.Date.Format(contracts.DateLayout),
			Symbol:       r.Symbol,
			Sector:       r.Sector,
			Open:         r.Open,
			High:         r.High,
			Low:          r.Low,
			Close:        r.Close,
			Volume:       r.Volume,
			MarketCap:    r.MarketCap.Ptr(),
			PERatio:      r.PERatio.Ptr(),
			WeekChange52: r.WeekChange52.Ptr(),
		}
	}
	return parquet.WriteFile(path, rows)
}

func readParquet(path string) (contracts.UnifiedTable, error) {
	rows, err := parquet.ReadFile[parquetRow](path)
	if err != nil {
		return contracts.UnifiedTable{}, err
	}

	table := contracts.UnifiedTable{Rows: make([]contracts.Row, len(rows))}
	for i, r := range rows {
		date, err := time.Parse(contracts.DateLayout, r.Date)
		if err != nil {
			return contracts.UnifiedTable{}, fmt.Errorf("row %d date: %w", i, err)
		}
		table.Rows[i] = contracts.Row{
			Label:  r.TimePeriod,
			Symbol: r.Symbol,
			Sector: r.Sector,
			Record: contracts.Record{
				Date:   date,
				Open:   r.Open,
				High:   r.High,
				Low:    r.Low,
				Close:  r.Close,
				Volume: r.Volume,
			},
			MarketCap:    null.FloatFromPtr(r.MarketCap),
			PERatio:      null.FloatFromPtr(r.PERatio),
			WeekChange52: null.FloatFromPtr(r.WeekChange52),
		}
	}
	return table, nil
}

package snapshot

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/guregu/null/v6"

	"github.com/wonny/stockboard/internal/contracts"
)

// CSVHeader lists the dataset columns in file order
var CSVHeader = []string{
	"time_period", "date", "symbol", "sector",
	"open", "high", "low", "close", "volume",
	"market_cap", "pe_ratio", "52_week_change",
}

// WriteCSV encodes table with a header row. Absent values are empty cells.
func WriteCSV(w io.Writer, table contracts.UnifiedTable) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}

	for _, r := range table.Rows {
		rec := []string{
			r.Label,
			r.Date.Format(contracts.DateLayout),
			r.Symbol,
			r.Sector,
			formatFloat(r.Open),
			formatFloat(r.High),
			formatFloat(r.Low),
			formatFloat(r.Close),
			strconv.FormatInt(r.Volume, 10),
			formatNull(r.MarketCap),
			formatNull(r.PERatio),
			formatNull(r.WeekChange52),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV decodes a table written by WriteCSV
func ReadCSV(r io.Reader) (contracts.UnifiedTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)

	header, err := cr.Read()
	if err != nil {
		return contracts.UnifiedTable{}, fmt.Errorf("read header: %w", err)
	}
	for i, col := range CSVHeader {
		if header[i] != col {
			return contracts.UnifiedTable{}, fmt.Errorf("column %d is %q, want %q", i, header[i], col)
		}
	}

	var table contracts.UnifiedTable
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return contracts.UnifiedTable{}, fmt.Errorf("line %d: %w", line, err)
		}

		row, err := parseRow(rec)
		if err != nil {
			return contracts.UnifiedTable{}, fmt.Errorf("line %d: %w", line, err)
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

func parseRow(rec []string) (contracts.Row, error) {
	date, err := time.Parse(contracts.DateLayout, rec[1])
	if err != nil {
		return contracts.Row{}, fmt.Errorf("date: %w", err)
	}

	var prices [4]float64
	for i := range prices {
		prices[i], err = strconv.ParseFloat(rec[4+i], 64)
		if err != nil {
			return contracts.Row{}, fmt.Errorf("%s: %w", CSVHeader[4+i], err)
		}
	}

	volume, err := strconv.ParseInt(rec[8], 10, 64)
	if err != nil {
		return contracts.Row{}, fmt.Errorf("volume: %w", err)
	}

	var opt [3]null.Float
	for i := range opt {
		opt[i], err = parseNull(rec[9+i])
		if err != nil {
			return contracts.Row{}, fmt.Errorf("%s: %w", CSVHeader[9+i], err)
		}
	}

	return contracts.Row{
		Label:  rec[0],
		Symbol: rec[2],
		Sector: rec[3],
		Record: contracts.Record{
			Date:   date,
			Open:   prices[0],
			High:   prices[1],
			Low:    prices[2],
			Close:  prices[3],
			Volume: volume,
		},
		MarketCap:    opt[0],
		PERatio:      opt[1],
		WeekChange52: opt[2],
	}, nil
}

func readCSVFile(path string) (contracts.UnifiedTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return contracts.UnifiedTable{}, err
	}
	defer f.Close()
	return ReadCSV(f)
}

func writeCSVFile(path string, table contracts.UnifiedTable) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteCSV(f, table); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatNull(v null.Float) string {
	if !v.Valid {
		return ""
	}
	return formatFloat(v.Float64)
}

func parseNull(s string) (null.Float, error) {
	if s == "" {
		return null.Float{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return null.Float{}, err
	}
	return null.FloatFrom(v), nil
}

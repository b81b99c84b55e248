package snapshot

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/guregu/null/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/pkg/logger"
)

func trendTable() contracts.UnifiedTable {
	var table contracts.UnifiedTable
	cvx := sampleSeries("CVX")
	cvx.Profile.WeekChange52 = null.FloatFrom(-0.031)
	table.Append(cvx, "1 Year")

	// no profile at all: every optional column stays absent
	ba := sampleSeries("BA")
	ba.Profile = contracts.Profile{Symbol: "BA"}
	table.Append(ba, "Yesterday")
	return table
}

func TestWriteCSV_HeaderAndAbsentCells(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, trendTable()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, strings.Join(CSVHeader, ","), lines[0])
	assert.Equal(t, "1 Year,2024-03-01,CVX,Industrials,10,11,9,10.5,1000,150000000000,,-0.031", lines[1])
	assert.Equal(t, "Yesterday,2024-03-04,BA,,10.5,12,10,11.75,1200,,,", lines[4])
}

func TestReadCSV_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ""},
		{"wrong header", "a,b,c,d,e,f,g,h,i,j,k,l\n"},
		{"bad date", strings.Join(CSVHeader, ",") + "\n,03/01/2024,CVX,,1,1,1,1,1,,,\n"},
		{"bad price", strings.Join(CSVHeader, ",") + "\n,2024-03-01,CVX,,x,1,1,1,1,,,\n"},
		{"short row", strings.Join(CSVHeader, ",") + "\n,2024-03-01,CVX\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestDatasetStore_SaveLoad(t *testing.T) {
	for _, format := range []Format{FormatCSV, FormatParquet} {
		t.Run(string(format), func(t *testing.T) {
			store, err := NewDatasetStore(t.TempDir(), format, logger.Nop())
			require.NoError(t, err)

			assert.False(t, store.Exists("stock_trend_data"))
			require.NoError(t, store.Save("stock_trend_data", trendTable()))
			assert.True(t, store.Exists("stock_trend_data"))

			got, err := store.Load("stock_trend_data")
			require.NoError(t, err)
			require.Equal(t, 4, got.Len())
			assert.Equal(t, "1 Year", got.Rows[0].Label)
			assert.Equal(t, day(1), got.Rows[0].Date)
			assert.InDelta(t, -0.031, got.Rows[0].WeekChange52.Float64, 1e-12)
			assert.False(t, got.Rows[0].PERatio.Valid)
			assert.False(t, got.Rows[3].MarketCap.Valid)
			assert.Equal(t, int64(1200), got.Rows[3].Volume)

			names, err := store.List()
			require.NoError(t, err)
			assert.Equal(t, []string{"stock_trend_data"}, names)

			require.NoError(t, store.Remove("stock_trend_data"))
			assert.False(t, store.Exists("stock_trend_data"))
			assert.NoError(t, store.Remove("stock_trend_data"))
		})
	}
}

func TestDatasetStore_CorruptFile(t *testing.T) {
	store, err := NewDatasetStore(t.TempDir(), FormatCSV, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(store.Path("broken"), []byte("time_period,date\n"), 0o644))

	_, err = store.Load("broken")
	require.Error(t, err)

	var cacheErr *contracts.CacheError
	assert.True(t, errors.As(err, &cacheErr))
	assert.Equal(t, "broken", cacheErr.Key)
}

func TestDatasetStore_RefusesEmpty(t *testing.T) {
	store, err := NewDatasetStore(t.TempDir(), FormatCSV, logger.Nop())
	require.NoError(t, err)

	err = store.Save("empty", contracts.UnifiedTable{})
	assert.ErrorIs(t, err, ErrEmptyPayload)
	assert.False(t, store.Exists("empty"))
}

func TestNewDatasetStore_UnknownFormat(t *testing.T) {
	_, err := NewDatasetStore(t.TempDir(), "xlsx", logger.Nop())
	assert.Error(t, err)
}

package datasets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockboard/internal/contracts"
)

func TestLoadUniverse_ConfigFile(t *testing.T) {
	u, err := LoadUniverse(filepath.Join("..", "..", "configs", "universe.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultSymbols, u.Symbols)
	assert.Equal(t, DefaultUniverse(), u)
}

func TestParseUniverse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "valid with lowercase symbols",
			yaml: `
symbols: [cvx, ba]
datasets:
  - name: trend
    windows:
      - { label: "1 Year", lookback_days: 365 }
`,
		},
		{
			name:    "unknown field",
			yaml:    "symbols: [CVX]\ntickers: [BA]\ndatasets: [{name: x, windows: [{period: 1y}]}]\n",
			wantErr: "tickers",
		},
		{
			name:    "no symbols",
			yaml:    "symbols: []\ndatasets: [{name: x, windows: [{period: 1y}]}]\n",
			wantErr: "Symbols",
		},
		{
			name:    "period and lookback",
			yaml:    "symbols: [CVX]\ndatasets: [{name: x, windows: [{period: 1y, lookback_days: 3}]}]\n",
			wantErr: "exclusive",
		},
		{
			name:    "unknown period",
			yaml:    "symbols: [CVX]\ndatasets: [{name: x, windows: [{period: 2w}]}]\n",
			wantErr: "unknown period",
		},
		{
			name:    "span without lookback",
			yaml:    "symbols: [CVX]\ndatasets: [{name: x, windows: [{period: 1y, span_days: 2}]}]\n",
			wantErr: "span_days",
		},
		{
			name:    "duplicate dataset",
			yaml:    "symbols: [CVX]\ndatasets: [{name: x, windows: [{period: 1y}]}, {name: x, windows: [{period: 5d}]}]\n",
			wantErr: "duplicate",
		},
		{
			name:    "path in name",
			yaml:    "symbols: [CVX]\ndatasets: [{name: ../x, windows: [{period: 1y}]}]\n",
			wantErr: "file name",
		},
		{
			name:    "bad interval",
			yaml:    "symbols: [CVX]\ninterval: 1h\ndatasets: [{name: x, windows: [{period: 1y}]}]\n",
			wantErr: "interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := ParseUniverse([]byte(tt.yaml))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"CVX", "BA"}, u.Symbols)
			assert.Equal(t, "1d", u.Interval)
		})
	}
}

func TestLoadUniverse_MissingFile(t *testing.T) {
	_, err := LoadUniverse(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestUniverse_Windows(t *testing.T) {
	u := DefaultUniverse()
	def, ok := u.Definition("stock_trend_data")
	require.True(t, ok)

	now := time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)
	windows := u.Windows(def, now)
	require.Len(t, windows, 4)

	year := windows[0]
	assert.Equal(t, "1 Year", year.Label)
	require.NotNil(t, year.Range)
	assert.Equal(t, time.Date(2023, 6, 16, 0, 0, 0, 0, time.UTC), year.Range.Start)
	assert.Equal(t, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), year.Range.End)

	yesterday := windows[3]
	assert.Equal(t, "Yesterday", yesterday.Label)
	assert.Equal(t, yesterday.Range.Start, yesterday.Range.End)
	assert.Equal(t, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), yesterday.Range.Start)
	assert.Equal(t, contracts.IntervalDay, yesterday.Interval)

	bubble, _ := u.Definition("bubble_chart_stock_data")
	w := u.Windows(bubble, now)
	require.Len(t, w, 1)
	assert.Equal(t, contracts.Period1Y, w[0].Period)
	assert.Nil(t, w[0].Range)
}

func TestUniverse_SymbolsFor(t *testing.T) {
	u := DefaultUniverse()
	assert.Equal(t, u.Symbols, u.SymbolsFor(Definition{Name: "x"}))
	assert.Equal(t, []string{"AAPL"}, u.SymbolsFor(Definition{Name: "x", Symbols: []string{"AAPL"}}))
}

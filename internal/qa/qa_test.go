package qa

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/pkg/logger"
)

type fakeAnswerer struct {
	sample   []contracts.Row
	question string
	err      error
}

func (f *fakeAnswerer) Answer(_ context.Context, sample []contracts.Row, question string) (string, error) {
	f.sample = sample
	f.question = question
	if f.err != nil {
		return "", f.err
	}
	return "CVX had the highest close.", nil
}

func table(n int) contracts.UnifiedTable {
	s := contracts.SymbolSeries{Symbol: "CVX"}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		p := float64(100 + i)
		s.Records = append(s.Records, contracts.Record{Date: start.AddDate(0, 0, i), Open: p, High: p, Low: p, Close: p})
	}
	return contracts.NewUnifiedTable(s)
}

func TestSample_BoundedAndOrdered(t *testing.T) {
	svc := New(&fakeAnswerer{}, logger.Nop(), WithSampleSize(10), WithSeed(7))

	sample := svc.Sample(table(50))

	require.Len(t, sample, 10)
	seen := make(map[time.Time]bool)
	for i, row := range sample {
		assert.False(t, seen[row.Date], "duplicate row")
		seen[row.Date] = true
		if i > 0 {
			assert.True(t, row.Date.After(sample[i-1].Date))
		}
	}
}

func TestSample_SmallTableIsWhole(t *testing.T) {
	svc := New(&fakeAnswerer{}, logger.Nop())

	tbl := table(5)
	assert.Equal(t, tbl.Rows, svc.Sample(tbl))
	assert.Empty(t, svc.Sample(contracts.UnifiedTable{}))
}

func TestAsk(t *testing.T) {
	ans := &fakeAnswerer{}
	svc := New(ans, logger.Nop(), WithSampleSize(3), WithSeed(1))

	got, err := svc.Ask(context.Background(), table(20), "  Which stock closed highest?  ")
	require.NoError(t, err)

	assert.Equal(t, "CVX had the highest close.", got)
	assert.Equal(t, "Which stock closed highest?", ans.question)
	assert.Len(t, ans.sample, 3)
}

func TestAsk_Errors(t *testing.T) {
	unavailable := &contracts.LLMError{Kind: contracts.LLMUnavailable, Err: errors.New("503")}
	malformed := &contracts.LLMError{Kind: contracts.LLMMalformedResponse, Err: errors.New("no choices")}

	tests := []struct {
		name     string
		table    contracts.UnifiedTable
		question string
		llmErr   error
		wantErr  error
		wantMsg  string
	}{
		{"empty question", table(3), "   ", nil, ErrEmptyQuestion, "Please enter a question."},
		{"empty table", contracts.UnifiedTable{}, "why?", nil, ErrNoData, "No data is loaded for this dataset yet."},
		{"unavailable", table(3), "why?", unavailable, unavailable, "The assistant is unavailable right now. Please try again later."},
		{"malformed", table(3), "why?", malformed, malformed, "The assistant returned an unreadable answer. Please try again."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(&fakeAnswerer{err: tt.llmErr}, logger.Nop())

			_, err := svc.Ask(context.Background(), tt.table, tt.question)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantMsg, UserMessage(err))
		})
	}
}

package contracts

import "context"

// MarketDataSource is an upstream provider of history and profile data.
// Implementations return *SourceError on failure and validated, date-ordered
// records on success. An empty slice with a nil error means "no data".
type MarketDataSource interface {
	Name() string
	FetchHistory(ctx context.Context, req HistoryRequest) ([]Record, error)
	FetchProfile(ctx context.Context, symbol string) (Profile, error)
}

// Answerer answers a free-text question about a bounded data sample
type Answerer interface {
	Answer(ctx context.Context, sample []Row, question string) (string, error)
}

package collector

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"

	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/pkg/config"
)

// Default jitter bounds, used only when the whole Config is zero
const (
	DefaultJitterMin = time.Second
	DefaultJitterMax = 3 * time.Second
)

// Config tunes the orchestrator. Zero Workers and CallTimeout take the
// tagged defaults. Zero jitter is legal (no pause), so the jitter bounds
// are kept as given unless the whole Config is zero.
type Config struct {
	Workers      int           `default:"3" validate:"gte=1"`
	CallTimeout  time.Duration `default:"30s" validate:"gt=0"`
	JitterMin    time.Duration `validate:"gte=0"`
	JitterMax    time.Duration `validate:"gtefield=JitterMin"`
	SkipProfiles bool
}

// RetryPolicy decides how often and after which failures a source call is
// repeated. It is independent of any fallback source.
type RetryPolicy struct {
	MaxAttempts    int                   `default:"3" validate:"gte=1"`
	InitialBackoff time.Duration         `default:"1s" validate:"gte=0"`
	MaxBackoff     time.Duration         `default:"10s" validate:"gtefield=InitialBackoff"`
	RetryOn        []contracts.ErrorKind `validate:"dive,oneof=rate_limited not_found network malformed"`
}

// SetDefaults implements defaults.Setter
func (p *RetryPolicy) SetDefaults() {
	if p.RetryOn == nil {
		p.RetryOn = []contracts.ErrorKind{contracts.KindRateLimited, contracts.KindNetwork}
	}
}

// DefaultRetryPolicy retries rate limits and network errors three times
func DefaultRetryPolicy() RetryPolicy {
	var p RetryPolicy
	_ = defaults.Set(&p)
	return p
}

// NoRetry makes exactly one attempt
func NoRetry() RetryPolicy {
	return RetryPolicy{MaxAttempts: 1, RetryOn: []contracts.ErrorKind{}}
}

// ShouldRetry reports whether a failure of kind may be retried
func (p RetryPolicy) ShouldRetry(kind contracts.ErrorKind) bool {
	for _, k := range p.RetryOn {
		if k == kind {
			return true
		}
	}
	return false
}

// Backoff returns the wait before attempt+1, doubling from InitialBackoff
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	delay := p.InitialBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if delay > p.MaxBackoff {
		return p.MaxBackoff
	}
	return delay
}

// ConfigFromEnv maps application config onto the orchestrator config
func ConfigFromEnv(cfg *config.Config) Config {
	return Config{
		Workers:      cfg.Fetch.Workers,
		CallTimeout:  cfg.Fetch.CallTimeout,
		JitterMin:    cfg.Fetch.JitterMin,
		JitterMax:    cfg.Fetch.JitterMax,
		SkipProfiles: !cfg.Fetch.FetchProfiles,
	}
}

// RetryPolicyFromEnv maps application config onto a RetryPolicy
func RetryPolicyFromEnv(cfg *config.Config) RetryPolicy {
	p := RetryPolicy{
		MaxAttempts:    cfg.Retry.MaxAttempts,
		InitialBackoff: cfg.Retry.InitialBackoff,
		MaxBackoff:     cfg.Retry.MaxBackoff,
	}
	_ = defaults.Set(&p)
	return p
}

func prepare(cfg *Config, policy *RetryPolicy) error {
	if *cfg == (Config{}) {
		cfg.JitterMin, cfg.JitterMax = DefaultJitterMin, DefaultJitterMax
	}
	if err := defaults.Set(cfg); err != nil {
		return fmt.Errorf("apply config defaults: %w", err)
	}
	if err := defaults.Set(policy); err != nil {
		return fmt.Errorf("apply retry defaults: %w", err)
	}

	v := contracts.Validator()
	if err := v.Struct(cfg); err != nil {
		return fmt.Errorf("invalid collector config: %w", err)
	}
	if err := v.Struct(policy); err != nil {
		return fmt.Errorf("invalid retry policy: %w", err)
	}
	return nil
}

// Window is one history slice fetched per symbol. Label tags its rows.
type Window struct {
	Label    string
	Period   contracts.Period
	Range    *contracts.DateRange
	Interval contracts.Interval
}

// Request builds the history request of symbol for this window
func (w Window) Request(symbol string) contracts.HistoryRequest {
	return contracts.HistoryRequest{
		Symbol:   symbol,
		Period:   w.Period,
		Range:    w.Range,
		Interval: w.Interval,
	}
}

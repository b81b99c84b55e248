// Package qa answers free-text questions about a dataset by handing a
// bounded row sample to an Answerer.
package qa

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/pkg/logger"
)

// DefaultSampleSize bounds the rows sent with a question
const DefaultSampleSize = 100

var (
	ErrEmptyQuestion = errors.New("question is empty")
	ErrNoData        = errors.New("dataset has no rows")
)

// Service samples tables and forwards questions
type Service struct {
	answerer   contracts.Answerer
	sampleSize int
	logger     *logger.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// Option configures a Service
type Option func(*Service)

// WithSampleSize overrides DefaultSampleSize
func WithSampleSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.sampleSize = n
		}
	}
}

// WithSeed makes sampling deterministic
func WithSeed(seed uint64) Option {
	return func(s *Service) { s.rnd = rand.New(rand.NewPCG(seed, seed+1)) }
}

// New creates a Service
func New(answerer contracts.Answerer, log *logger.Logger, opts ...Option) *Service {
	s := &Service{
		answerer:   answerer,
		sampleSize: DefaultSampleSize,
		logger:     log.WithField("module", "qa"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rnd == nil {
		s.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

// Sample draws min(sampleSize, len) rows without replacement, kept in
// table order.
func (s *Service) Sample(t contracts.UnifiedTable) []contracts.Row {
	n := t.Len()
	k := min(s.sampleSize, n)
	if k == n {
		return append([]contracts.Row(nil), t.Rows...)
	}

	s.mu.Lock()
	idx := s.rnd.Perm(n)[:k]
	s.mu.Unlock()
	sort.Ints(idx)

	out := make([]contracts.Row, k)
	for i, j := range idx {
		out[i] = t.Rows[j]
	}
	return out
}

// Ask answers question against a sample of t
func (s *Service) Ask(ctx context.Context, t contracts.UnifiedTable, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}
	if t.Len() == 0 {
		return "", ErrNoData
	}

	sample := s.Sample(t)
	s.logger.WithFields(map[string]interface{}{
		"rows":   len(sample),
		"of":     t.Len(),
		"length": len(question),
	}).Debug("Asking question")

	answer, err := s.answerer.Answer(ctx, sample, question)
	if err != nil {
		s.logger.WithError(err).Warn("Question not answered")
		return "", err
	}
	return answer, nil
}

// UserMessage turns an Ask failure into text fit for an end user
func UserMessage(err error) string {
	var llmErr *contracts.LLMError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyQuestion):
		return "Please enter a question."
	case errors.Is(err, ErrNoData):
		return "No data is loaded for this dataset yet."
	case errors.As(err, &llmErr) && llmErr.Kind == contracts.LLMMalformedResponse:
		return "The assistant returned an unreadable answer. Please try again."
	case errors.As(err, &llmErr):
		return "The assistant is unavailable right now. Please try again later."
	default:
		return "Something went wrong while answering the question."
	}
}

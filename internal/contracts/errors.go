package contracts

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a per-symbol source failure
type ErrorKind string

const (
	KindRateLimited ErrorKind = "rate_limited"
	KindNotFound    ErrorKind = "not_found"
	KindNetwork     ErrorKind = "network"
	KindMalformed   ErrorKind = "malformed"
)

// SourceError is a recoverable failure of one MarketDataSource call
type SourceError struct {
	Kind   ErrorKind
	Source string
	Symbol string
	Err    error
}

// NewSourceError wraps err with its kind and origin
func NewSourceError(kind ErrorKind, source, symbol string, err error) *SourceError {
	return &SourceError{Kind: kind, Source: source, Symbol: symbol, Err: err}
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Source, e.Symbol, e.Kind, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// KindOf classifies any error returned by a source call.
// Deadlines and unknown errors count as network failures.
func KindOf(err error) ErrorKind {
	var srcErr *SourceError
	if errors.As(err, &srcErr) {
		return srcErr.Kind
	}
	return KindNetwork
}

// IsCanceled reports whether err comes from the caller cancelling ctx
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// CacheError is an infrastructure failure of a snapshot store.
// Readers treat it as a miss.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// LLMErrorKind classifies question-answering failures
type LLMErrorKind string

const (
	LLMUnavailable       LLMErrorKind = "unavailable"
	LLMMalformedResponse LLMErrorKind = "malformed_response"
)

// LLMError is returned by an Answerer
type LLMError struct {
	Kind LLMErrorKind
	Err  error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm %s: %v", e.Kind, e.Err)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

// Package external holds the upstream clients (quote API, quote pages, LLM)
// and the error mapping they share.
package external

import (
	"context"
	"errors"
	"net/http"

	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/pkg/httputil"
)

// Classify maps a transport or status error onto a SourceError kind
func Classify(source, symbol string, err error) *contracts.SourceError {
	var srcErr *contracts.SourceError
	if errors.As(err, &srcErr) {
		return srcErr
	}

	kind := contracts.KindNetwork
	var statusErr *httputil.StatusError
	switch {
	case errors.As(err, &statusErr):
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			kind = contracts.KindRateLimited
		case statusErr.StatusCode == http.StatusNotFound:
			kind = contracts.KindNotFound
		case statusErr.StatusCode >= 500:
			kind = contracts.KindNetwork
		default:
			kind = contracts.KindMalformed
		}
	case errors.Is(err, context.DeadlineExceeded):
		kind = contracts.KindNetwork
	}

	return contracts.NewSourceError(kind, source, symbol, err)
}

package external

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/pkg/httputil"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want contracts.ErrorKind
	}{
		{"429", &httputil.StatusError{StatusCode: 429}, contracts.KindRateLimited},
		{"404", &httputil.StatusError{StatusCode: 404}, contracts.KindNotFound},
		{"503", &httputil.StatusError{StatusCode: 503}, contracts.KindNetwork},
		{"401", &httputil.StatusError{StatusCode: 401}, contracts.KindMalformed},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), contracts.KindNetwork},
		{"plain", errors.New("connection reset"), contracts.KindNetwork},
		{"already classified", contracts.NewSourceError(contracts.KindNotFound, "yahoo", "X", errors.New("gone")), contracts.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("yahoo", "CVX", tt.err)
			assert.Equal(t, tt.want, got.Kind)
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

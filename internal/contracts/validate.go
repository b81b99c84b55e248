package contracts

import (
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared struct validator
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// SanitizeRecords validates records at the source boundary.
// Invalid rows are dropped; the rest are date-normalized. It fails only when
// input was non-empty and nothing valid remains.
func SanitizeRecords(source, symbol string, records []Record) ([]Record, int, error) {
	v := Validator()

	valid := make([]Record, 0, len(records))
	var firstErr error
	for _, r := range records {
		r.Date = SessionDate(r.Date)
		if err := v.Struct(r); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		valid = append(valid, r)
	}

	dropped := len(records) - len(valid)
	if len(records) > 0 && len(valid) == 0 {
		return nil, dropped, NewSourceError(KindMalformed, source, symbol,
			fmt.Errorf("all %d records invalid: %w", len(records), firstErr))
	}

	return NormalizeRecords(valid), dropped, nil
}

// ValidateProfile checks a profile and normalizes its symbol
func ValidateProfile(p *Profile) error {
	p.Symbol = strings.ToUpper(strings.TrimSpace(p.Symbol))
	return Validator().Struct(p)
}

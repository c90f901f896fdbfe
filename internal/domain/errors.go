package domain

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInvalidInput marks malformed input: an empty series, a non-positive
	// period or an unknown symbol/mode.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientData marks a series too short for the requested computation.
	ErrInsufficientData = errors.New("insufficient data")
)

var symbolPattern = regexp.MustCompile(`^[A-Z0-9.\-]{1,20}$`)

// NormalizeSymbol upper-cases and validates a ticker or trading pair.
func NormalizeSymbol(raw string) (string, bool) {
	symbol := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolPattern.MatchString(symbol) {
		return "", false
	}
	return symbol, true
}

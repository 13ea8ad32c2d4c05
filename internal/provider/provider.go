package provider

import (
	"context"
	"errors"
)

// Quote is one snapshot of the price fields for a symbol.
// A refresh replaces the whole record; quotes are never mutated in place.
type Quote struct {
	Current       float64 `json:"current"`
	Change        float64 `json:"change"`
	PercentChange float64 `json:"percent_change"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	Open          float64 `json:"open"`
	PreviousClose float64 `json:"previous_close"`
}

// Up reports whether the quote should get the up color.
// A percent change of exactly zero counts as up.
func (q Quote) Up() bool { return q.PercentChange >= 0 }

// Refresh-scoped error kinds. Callers classify with errors.Is.
var (
	// ErrAuth means the credential is missing or rejected. Not retryable
	// without user action.
	ErrAuth = errors.New("authentication failed")
	// ErrNetwork is a transport-level failure. Retryable.
	ErrNetwork = errors.New("network error")
	// ErrRateLimited means the provider asked us to back off.
	ErrRateLimited = errors.New("rate limited")
	// ErrMalformedResponse means the provider returned an unexpected shape.
	ErrMalformedResponse = errors.New("malformed response")
)

// Provider fetches current quotes for a set of symbols.
//
// FetchAll is all-or-nothing: if any symbol's fetch fails, the whole call
// fails and no partial map is returned. Symbols the provider has no data
// for may be omitted from the result.
type Provider interface {
	Name() string
	FetchAll(ctx context.Context, symbols []string) (map[string]Quote, error)
}

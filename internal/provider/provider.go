// Package provider defines the image search backends and the ordered chain
// that walks them. Each backend classifies its own failures into a Kind so
// the chain can route on structured values instead of error text.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleveque/restaurant-images/internal/model"
)

// Provider is an image search backend.
type Provider interface {
	// Search returns results for query starting at the 1-based result offset
	// start. Results are not yet tagged with a source; the chain does that.
	Search(ctx context.Context, query string, start int) ([]model.ImageResult, error)

	// Name returns a short identifier used in logs, metrics and call records.
	Name() string
}

// Kind classifies why a provider produced no results.
type Kind string

const (
	KindConfigMissing Kind = "config_missing" // credentials absent, no network call made
	KindQuotaExceeded Kind = "quota_exceeded" // provider-reported rate or quota limit
	KindNoResults     Kind = "no_results"     // valid response with zero usable items
	KindTransport     Kind = "transport"      // network, status or decode failure
	KindRateGoverned  Kind = "rate_governed"  // denied locally before any network attempt
)

// Sentinel errors, one per kind, for errors.Is matching.
var (
	ErrConfigMissing = &Error{Kind: KindConfigMissing}
	ErrQuotaExceeded = &Error{Kind: KindQuotaExceeded}
	ErrNoResults     = &Error{Kind: KindNoResults}
	ErrTransport     = &Error{Kind: KindTransport}
	ErrRateGoverned  = &Error{Kind: KindRateGoverned}
)

// Error is a classified provider failure.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int // HTTP status when the provider answered, else 0
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Provider != "" {
		msg = e.Provider + ": " + msg
	}
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrQuotaExceeded)
// works regardless of provider or status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the kind of err. Unclassified errors count as transport.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransport
}

// StatusOf extracts the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}

func newError(provider string, kind Kind, status int, err error) *Error {
	return &Error{Provider: provider, Kind: kind, StatusCode: status, Err: err}
}

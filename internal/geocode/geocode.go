// Package geocode validates free-text addresses through an external geocoder.
// The Geocoder port keeps the pipeline testable without network access; the
// Validator applies the acceptance policy on top of raw candidates.
package geocode

import (
	"context"

	dErrors "sightline/pkg/domain-errors"
)

// Candidate is one raw geocoder match, before policy is applied.
type Candidate struct {
	// FormattedAddress is the geocoder-normalized address text. The address
	// key is derived from this, never from the raw user input.
	FormattedAddress string
	Lat              float64
	Lng              float64
	// Country is the ISO 3166-1 alpha-2 code of the match.
	Country string
	// Types carries the geocoder's classification of the match (street
	// address, premise, locality, ...).
	Types []string
}

// Geocoder resolves free text to zero or more candidates. Implementations
// return an error only for infrastructure failure; "no match" is an empty
// slice.
type Geocoder interface {
	Geocode(ctx context.Context, address string) ([]Candidate, error)
}

// Result is a validated, normalized address.
type Result struct {
	Address string
	Lat     float64
	Lng     float64
}

// preciseTypes are the match classifications precise enough to pin a
// sighting. Anything coarser (locality, postal code, political area) is a
// bare region and gets rejected.
var preciseTypes = map[string]bool{
	"street_address": true,
	"intersection":   true,
	"premise":        true,
	"subpremise":     true,
}

// Validator applies the acceptance policy: exactly one candidate, inside the
// supported country, precise to street/intersection/premise level. Every
// policy rejection maps to the same validation failure so callers cannot
// distinguish probing inputs; infrastructure failure surfaces separately.
type Validator struct {
	geocoder Geocoder
	country  string
}

func NewValidator(geocoder Geocoder, country string) *Validator {
	return &Validator{geocoder: geocoder, country: country}
}

func (v *Validator) Validate(ctx context.Context, address string) (Result, error) {
	candidates, err := v.geocoder.Geocode(ctx, address)
	if err != nil {
		return Result{}, dErrors.Wrap(err, dErrors.CodeInternal, "geocoding service unavailable")
	}

	if len(candidates) != 1 {
		return Result{}, rejection()
	}

	c := candidates[0]
	if c.Country != v.country {
		return Result{}, rejection()
	}
	if !precise(c.Types) {
		return Result{}, rejection()
	}

	return Result{Address: c.FormattedAddress, Lat: c.Lat, Lng: c.Lng}, nil
}

func precise(types []string) bool {
	for _, t := range types {
		if preciseTypes[t] {
			return true
		}
	}
	return false
}

func rejection() error {
	return dErrors.New(dErrors.CodeValidation, "address could not be resolved to a precise location")
}

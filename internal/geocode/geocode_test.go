package geocode

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "sightline/pkg/domain-errors"
)

type fakeGeocoder struct {
	candidates []Candidate
	err        error
}

func (f *fakeGeocoder) Geocode(context.Context, string) ([]Candidate, error) {
	return f.candidates, f.err
}

func streetAddress(formatted, country string) Candidate {
	return Candidate{
		FormattedAddress: formatted,
		Lat:              37.42,
		Lng:              -122.08,
		Country:          country,
		Types:            []string{"street_address"},
	}
}

func TestValidatorAccept(t *testing.T) {
	v := NewValidator(&fakeGeocoder{
		candidates: []Candidate{streetAddress("1600 Amphitheatre Pkwy, Mountain View, CA 94043, USA", "US")},
	}, "US")

	result, err := v.Validate(context.Background(), "1600 amphitheatre pkwy")
	require.NoError(t, err)
	assert.Equal(t, "1600 Amphitheatre Pkwy, Mountain View, CA 94043, USA", result.Address)
	assert.InDelta(t, 37.42, result.Lat, 0.001)
	assert.InDelta(t, -122.08, result.Lng, 0.001)
}

func TestValidatorRejects(t *testing.T) {
	tests := []struct {
		name       string
		candidates []Candidate
	}{
		{
			name:       "no match",
			candidates: nil,
		},
		{
			name: "ambiguous match",
			candidates: []Candidate{
				streetAddress("Main St, Springfield, IL", "US"),
				streetAddress("Main St, Springfield, MA", "US"),
			},
		},
		{
			name:       "wrong country",
			candidates: []Candidate{streetAddress("10 Downing St, London", "GB")},
		},
		{
			name: "region-level match is too coarse",
			candidates: []Candidate{{
				FormattedAddress: "Mountain View, CA, USA",
				Country:          "US",
				Types:            []string{"locality", "political"},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(&fakeGeocoder{candidates: tt.candidates}, "US")
			_, err := v.Validate(context.Background(), "whatever")
			require.Error(t, err)
			// Policy rejections are indistinguishable from each other and
			// carry the validation code, not internal.
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, "address could not be resolved to a precise location", dErrors.Message(err))
		})
	}
}

func TestValidatorInfrastructureFailure(t *testing.T) {
	v := NewValidator(&fakeGeocoder{err: errors.New("connection refused")}, "US")
	_, err := v.Validate(context.Background(), "1600 amphitheatre pkwy")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
	assert.False(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

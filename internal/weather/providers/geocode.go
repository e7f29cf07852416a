package providers

import (
	"context"
	"errors"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/i474232898/agritrack/internal/weather"
)

// GoogleGeocoder resolves locations with the Google Geocoding API.
type GoogleGeocoder struct {
	country string
}

var geocoderKeyMu sync.Mutex

// NewGoogleGeocoder configures the geocoding API key. Country is appended
// to every lookup to disambiguate district names.
func NewGoogleGeocoder(apiKey, country string) *GoogleGeocoder {
	geocoderKeyMu.Lock()
	geocoder.ApiKey = apiKey
	geocoderKeyMu.Unlock()
	return &GoogleGeocoder{country: country}
}

func (g *GoogleGeocoder) Geocode(ctx context.Context, loc weather.Location) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if loc.Region == "" && loc.District == "" {
		return 0, 0, errors.New("geocode: empty location")
	}

	type result struct {
		loc geocoder.Location
		err error
	}
	done := make(chan result, 1)
	go func() {
		l, err := geocoder.Geocoding(geocoder.Address{
			City:    loc.District,
			State:   loc.Region,
			Country: g.country,
		})
		done <- result{loc: l, err: err}
	}()

	// The geocoder library has no context support; stop waiting on ctx.
	select {
	case <-ctx.Done():
		return 0, 0, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return 0, 0, r.err
		}
		return r.loc.Latitude, r.loc.Longitude, nil
	}
}

package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/agritrack/internal/weather"
)

func fastConfig(client *http.Client) HTTPClientConfig {
	return HTTPClientConfig{
		Client: client,
		Backoff: BackoffConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	}
}

func TestOpenWeatherFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Kadıköy,İstanbul", r.URL.Query().Get("q"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		_, _ = w.Write([]byte(`{
			"dt": 1705741200,
			"timezone": 10800,
			"main": {"temp": 5.04, "humidity": 81},
			"wind": {"speed": 2.5},
			"rain": {"1h": 0.4},
			"sys": {"sunrise": 1705726800, "sunset": 1705762800},
			"weather": [{"main": "Rain"}]
		}`))
	}))
	defer srv.Close()

	p := NewOpenWeatherProvider(srv.Client(), "key")
	p.baseURL = srv.URL
	p.httpCfg = fastConfig(srv.Client())

	r, err := p.Fetch(context.Background(), weather.Location{Region: "İstanbul", District: "Kadıköy"})
	require.NoError(t, err)
	assert.Equal(t, weather.ConditionRain, r.Condition)
	assert.InDelta(t, 5.04, r.Measurements[weather.ParamTemperature], 1e-9)
	assert.InDelta(t, 9.0, r.Measurements[weather.ParamWindSpeed], 1e-9)
	assert.InDelta(t, 0.4, r.Measurements[weather.ParamRainfall], 1e-9)
	assert.Equal(t, "08:00", r.Sunrise)
	assert.Equal(t, "18:00", r.Sunset)
}

func TestOpenWeatherRequiresKey(t *testing.T) {
	_, err := NewOpenWeatherProvider(http.DefaultClient, "").Fetch(context.Background(), weather.Location{})
	assert.Error(t, err)
}

func TestWeatherAPIFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"location": {"localtime_epoch": 1705741200},
			"current": {"temp_c": 4.8, "humidity": 80, "wind_kph": 11.2, "precip_mm": 0.2,
				"condition": {"text": "Patchy light rain"}},
			"forecast": {"forecastday": [{"astro": {"sunrise": "08:01 AM", "sunset": "05:59 PM"}}]}
		}`))
	}))
	defer srv.Close()

	p := NewWeatherAPIProvider(srv.Client(), "key")
	p.baseURL = srv.URL
	p.httpCfg = fastConfig(srv.Client())

	r, err := p.Fetch(context.Background(), weather.Location{Region: "İstanbul", District: "Kadıköy"})
	require.NoError(t, err)
	assert.Equal(t, weather.ConditionRain, r.Condition)
	assert.InDelta(t, 11.2, r.Measurements[weather.ParamWindSpeed], 1e-9)
	assert.Equal(t, "08:01", r.Sunrise)
	assert.Equal(t, "17:59", r.Sunset)
}

func TestMapWeatherAPICondition(t *testing.T) {
	cases := map[string]weather.Condition{
		"":                         weather.ConditionUnknown,
		"Sunny":                    weather.ConditionClear,
		"Partly cloudy":            weather.ConditionCloudy,
		"Moderate snow":            weather.ConditionSnow,
		"Thundery outbreaks":       weather.ConditionStorm,
		"Moderate or heavy shower": weather.ConditionRain,
		"Freezing fog":             weather.ConditionMist,
	}
	for text, want := range cases {
		assert.Equal(t, want, mapWeatherAPICondition(text), text)
	}
}

type fixedGeocoder struct {
	calls atomic.Int32
	err   error
}

func (g *fixedGeocoder) Geocode(context.Context, weather.Location) (float64, float64, error) {
	g.calls.Add(1)
	return 40.99, 29.03, g.err
}

func TestOpenMeteoGeocodesOnceAndParses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "40.990000", r.URL.Query().Get("latitude"))
		_, _ = w.Write([]byte(`{
			"elevation": 32.0,
			"current": {"time": "2024-01-20T12:00", "temperature_2m": 6.1, "relative_humidity_2m": 77,
				"precipitation": 0.0, "wind_speed_10m": 14.4, "weather_code": 3},
			"daily": {"sunrise": ["2024-01-20T08:15"], "sunset": ["2024-01-20T17:55"]}
		}`))
	}))
	defer srv.Close()

	geo := &fixedGeocoder{}
	p := NewOpenMeteoProvider(srv.Client(), geo)
	p.baseURL = srv.URL
	p.httpCfg = fastConfig(srv.Client())

	loc := weather.Location{Region: "İstanbul", District: "Kadıköy"}
	for i := 0; i < 2; i++ {
		r, err := p.Fetch(context.Background(), loc)
		require.NoError(t, err)
		assert.Equal(t, weather.ConditionCloudy, r.Condition)
		assert.Equal(t, 32.0, r.Measurements[weather.ParamAltitude])
		assert.Equal(t, "08:15", r.Sunrise)
		assert.Equal(t, "17:55", r.Sunset)
	}
	assert.Equal(t, int32(1), geo.calls.Load())
}

func TestOpenMeteoWithoutCoordinatesOrGeocoder(t *testing.T) {
	p := NewOpenMeteoProvider(http.DefaultClient, nil)
	_, err := p.Fetch(context.Background(), weather.Location{Region: "İstanbul"})
	assert.Error(t, err)

	p = NewOpenMeteoProvider(http.DefaultClient, &fixedGeocoder{err: errors.New("denied")})
	_, err = p.Fetch(context.Background(), weather.Location{Region: "İstanbul"})
	assert.Error(t, err)
}

func TestResilienceRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	build := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	}
	resp, err := doRequestWithResilience(context.Background(), fastConfig(srv.Client()), newBreaker("test"), build)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(3), hits.Load())
}

func TestResilienceReportsClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	build := func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	}
	_, err := doRequestWithResilience(context.Background(), fastConfig(srv.Client()), newBreaker("test"), build)
	assert.ErrorIs(t, err, errUnexpected)

	_, err = doRequestWithResilience(context.Background(), HTTPClientConfig{}, newBreaker("test"), build)
	assert.ErrorIs(t, err, errNoHTTPClient)
}

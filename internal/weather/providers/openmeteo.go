package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/agritrack/internal/weather"
)

// OpenMeteoProvider implements the weather.Provider interface for Open-Meteo.
// It needs coordinates; locations without them are resolved through the
// geocoder and cached by location key.
type OpenMeteoProvider struct {
	name     string
	baseURL  string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	geocoder weather.Geocoder

	mu     sync.Mutex
	coords map[string][2]float64
}

func NewOpenMeteoProvider(client *http.Client, geocoder weather.Geocoder) *OpenMeteoProvider {
	return &OpenMeteoProvider{
		name:     "openmeteo",
		baseURL:  "https://api.open-meteo.com/v1/forecast",
		httpCfg:  defaultHTTPConfig(client),
		circuit:  newBreaker("openmeteo"),
		geocoder: geocoder,
		coords:   make(map[string][2]float64),
	}
}

func (p *OpenMeteoProvider) Name() string {
	return p.name
}

func (p *OpenMeteoProvider) resolve(ctx context.Context, loc weather.Location) (float64, float64, error) {
	if loc.HasCoordinates() {
		return *loc.Latitude, *loc.Longitude, nil
	}

	p.mu.Lock()
	c, ok := p.coords[loc.Key()]
	p.mu.Unlock()
	if ok {
		return c[0], c[1], nil
	}

	if p.geocoder == nil {
		return 0, 0, fmt.Errorf("openmeteo requires latitude and longitude")
	}
	lat, lon, err := p.geocoder.Geocode(ctx, loc)
	if err != nil {
		return 0, 0, fmt.Errorf("geocode %s: %w", loc.Key(), err)
	}

	p.mu.Lock()
	p.coords[loc.Key()] = [2]float64{lat, lon}
	p.mu.Unlock()
	return lat, lon, nil
}

func (p *OpenMeteoProvider) Fetch(ctx context.Context, loc weather.Location) (weather.ProviderReading, error) {
	lat, lon, err := p.resolve(ctx, loc)
	if err != nil {
		return weather.ProviderReading{}, err
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("latitude", fmt.Sprintf("%f", lat))
		values.Set("longitude", fmt.Sprintf("%f", lon))
		values.Set("current", "temperature_2m,relative_humidity_2m,precipitation,wind_speed_10m,weather_code")
		values.Set("daily", "sunrise,sunset")
		values.Set("timezone", "auto")
		values.Set("forecast_days", "1")
		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"?"+values.Encode(), nil)
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.ProviderReading{}, err
	}
	defer resp.Body.Close()

	var payload struct {
		Elevation *float64 `json:"elevation"`
		Current   struct {
			Time          string  `json:"time"`
			Temperature   float64 `json:"temperature_2m"`
			Humidity      float64 `json:"relative_humidity_2m"`
			Precipitation float64 `json:"precipitation"`
			WindSpeed     float64 `json:"wind_speed_10m"`
			WeatherCode   int     `json:"weather_code"`
		} `json:"current"`
		Daily struct {
			Sunrise []string `json:"sunrise"`
			Sunset  []string `json:"sunset"`
		} `json:"daily"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.ProviderReading{}, err
	}

	// Open-Meteo local times come without seconds or offset.
	ts, err := time.Parse("2006-01-02T15:04", payload.Current.Time)
	if err != nil {
		ts = time.Now()
	}

	measurements := map[weather.Parameter]float64{
		weather.ParamTemperature: payload.Current.Temperature,
		weather.ParamHumidity:    payload.Current.Humidity,
		weather.ParamRainfall:    payload.Current.Precipitation,
		weather.ParamWindSpeed:   payload.Current.WindSpeed,
	}
	if payload.Elevation != nil {
		measurements[weather.ParamAltitude] = *payload.Elevation
	}

	reading := weather.ProviderReading{
		ProviderName: p.name,
		Timestamp:    ts.UTC(),
		Measurements: measurements,
		Condition:    mapOpenMeteoCondition(payload.Current.WeatherCode),
	}
	if len(payload.Daily.Sunrise) > 0 {
		reading.Sunrise = clockPart(payload.Daily.Sunrise[0])
	}
	if len(payload.Daily.Sunset) > 0 {
		reading.Sunset = clockPart(payload.Daily.Sunset[0])
	}
	return reading, nil
}

func clockPart(isoLocal string) string {
	if i := strings.IndexByte(isoLocal, 'T'); i >= 0 {
		return isoLocal[i+1:]
	}
	return ""
}

func mapOpenMeteoCondition(code int) weather.Condition {
	// Mapping based on WMO weather codes (simplified).
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case code == 45 || code == 48:
		return weather.ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}

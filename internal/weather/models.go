package weather

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Parameter names one of the fixed weather readings a snapshot may carry.
type Parameter string

const (
	ParamTemperature Parameter = "Temperature"
	ParamCondition   Parameter = "Condition"
	ParamRainfall    Parameter = "Rainfall"
	ParamHumidity    Parameter = "Humidity"
	ParamWindSpeed   Parameter = "WindSpeed"
	ParamAltitude    Parameter = "Altitude"
	ParamSunrise     Parameter = "Sunrise"
	ParamSunset      Parameter = "Sunset"
)

// Parameters lists every parameter in display and evaluation order.
var Parameters = []Parameter{
	ParamTemperature,
	ParamCondition,
	ParamRainfall,
	ParamHumidity,
	ParamWindSpeed,
	ParamAltitude,
	ParamSunrise,
	ParamSunset,
}

var units = map[Parameter]string{
	ParamTemperature: "°C",
	ParamRainfall:    " mm",
	ParamHumidity:    " %",
	ParamWindSpeed:   " km/h",
	ParamAltitude:    " m",
}

// IsValid reports whether p is one of the enumerated parameters.
func (p Parameter) IsValid() bool {
	for _, known := range Parameters {
		if p == known {
			return true
		}
	}
	return false
}

// ParseParameter matches s case-insensitively against the enumeration.
func ParseParameter(s string) (Parameter, error) {
	s = strings.TrimSpace(s)
	for _, known := range Parameters {
		if strings.EqualFold(s, string(known)) {
			return known, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownParameter, s)
}

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Location represents the place the snapshot is fetched for.
// Region and District must be provided; coordinates are optional.
type Location struct {
	Region    string   `json:"region" validate:"required"`
	District  string   `json:"district" validate:"required"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// Key returns a canonical string key for this location.
func (l Location) Key() string {
	return l.Region + ":" + l.District
}

// Query renders the location as a free-text search string.
func (l Location) Query() string {
	if l.District == "" {
		return l.Region
	}
	if l.Region == "" {
		return l.District
	}
	return l.District + "," + l.Region
}

// HasCoordinates reports whether both latitude and longitude are set.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}

// Value is a single reading as presented to the user. Number is the
// comparable view of the reading and is nil for textual readings.
type Value struct {
	Text   string   `json:"text"`
	Number *float64 `json:"number,omitempty"`
}

func (v Value) String() string {
	return v.Text
}

// NumberValue rounds n to one decimal and renders it with the unit of p.
// The rounded number is what reminder thresholds are compared against.
func NumberValue(p Parameter, n float64) Value {
	n = math.Round(n*10) / 10
	return Value{
		Text:   strconv.FormatFloat(n, 'f', -1, 64) + units[p],
		Number: &n,
	}
}

// TextValue is a reading without a numeric view.
func TextValue(s string) Value {
	return Value{Text: s}
}

// ClockValue parses an "HH:MM" clock time; its numeric view is decimal hours.
func ClockValue(hhmm string) (Value, error) {
	hhmm = strings.TrimSpace(hhmm)
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return Value{}, fmt.Errorf("invalid clock time %q: %w", hhmm, err)
	}
	hours := float64(t.Hour()) + float64(t.Minute())/60
	return Value{Text: t.Format("15:04"), Number: &hours}, nil
}

// Snapshot is the single most-recent set of readings. It is immutable:
// the constructor copies its input and accessors return copies.
type Snapshot struct {
	fetchedAt time.Time
	values    map[Parameter]Value
}

// NewSnapshot builds a Snapshot, dropping parameters outside the enumeration.
func NewSnapshot(fetchedAt time.Time, values map[Parameter]Value) Snapshot {
	copied := make(map[Parameter]Value, len(values))
	for p, v := range values {
		if !p.IsValid() {
			continue
		}
		if v.Number != nil {
			n := *v.Number
			v.Number = &n
		}
		copied[p] = v
	}
	return Snapshot{fetchedAt: fetchedAt.UTC(), values: copied}
}

// IsEmpty reports whether the snapshot carries no readings at all.
func (s Snapshot) IsEmpty() bool {
	return len(s.values) == 0
}

// FetchedAt is the time the snapshot was produced.
func (s Snapshot) FetchedAt() time.Time {
	return s.fetchedAt
}

// Value returns the reading for p.
func (s Snapshot) Value(p Parameter) (Value, bool) {
	v, ok := s.values[p]
	if !ok {
		return Value{}, false
	}
	if v.Number != nil {
		n := *v.Number
		v.Number = &n
	}
	return v, true
}

// Number returns the numeric view of the reading for p.
func (s Snapshot) Number(p Parameter) (float64, bool) {
	v, ok := s.values[p]
	if !ok || v.Number == nil {
		return 0, false
	}
	return *v.Number, true
}

// Parameters returns the parameters present, in enumeration order.
func (s Snapshot) Parameters() []Parameter {
	out := make([]Parameter, 0, len(s.values))
	for _, p := range Parameters {
		if _, ok := s.values[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Select returns a copy restricted to the given parameters.
func (s Snapshot) Select(params []Parameter) Snapshot {
	subset := make(map[Parameter]Value, len(params))
	for _, p := range params {
		if v, ok := s.values[p]; ok {
			subset[p] = v
		}
	}
	return NewSnapshot(s.fetchedAt, subset)
}

type snapshotJSON struct {
	FetchedAt time.Time           `json:"fetchedAt"`
	Values    map[Parameter]Value `json:"values"`
}

func (s Snapshot) MarshalJSON() ([]byte, error) {
	values := s.values
	if values == nil {
		values = map[Parameter]Value{}
	}
	return json.Marshal(snapshotJSON{FetchedAt: s.fetchedAt, Values: values})
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var raw snapshotJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = NewSnapshot(raw.FetchedAt, raw.Values)
	return nil
}

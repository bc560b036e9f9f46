package weather

import (
	"errors"
	"fmt"
	"time"
)

// Units selects the temperature scale requested from the upstream API.
type Units string

const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
	UnitsStandard Units = "standard"
)

var (
	// ErrUpstream covers transport failures and unusable upstream responses.
	ErrUpstream = errors.New("weather lookup failed")

	// ErrCityNotFound is returned when the upstream API does not know the city.
	ErrCityNotFound = errors.New("city not found")

	// ErrIncompleteReading is returned when a successful response lacks fields
	// needed for display. It wraps ErrUpstream.
	ErrIncompleteReading = fmt.Errorf("%w: incomplete reading", ErrUpstream)

	// ErrUpstreamTimeout is returned when the upstream call exceeds its
	// deadline. It wraps ErrUpstream.
	ErrUpstreamTimeout = fmt.Errorf("%w: timed out", ErrUpstream)
)

// LookupError records which city a failed lookup was for.
type LookupError struct {
	City string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("fetch %q: %v", e.City, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Query identifies a single current-conditions lookup.
// City is forwarded to the upstream API as-is.
type Query struct {
	City  string `json:"city"`
	Units Units  `json:"units"`
}

// Reading is the parsed current-conditions data for one city.
type Reading struct {
	CityName    string    `json:"city"`
	Description string    `json:"description"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	WindSpeed   float64   `json:"windSpeed"`
	Sunrise     time.Time `json:"sunrise"`
	Sunset      time.Time `json:"sunset"`
}

// CityReport is the display record for the single-city results page.
type CityReport struct {
	Date        string  `json:"date"`
	City        string  `json:"city"`
	Description string  `json:"description"`
	Temp        float64 `json:"temp"`
	Humidity    float64 `json:"humidity"`
	WindSpeed   float64 `json:"windSpeed"`
	Sunrise     string  `json:"sunrise"`
	Sunset      string  `json:"sunset"`
	UnitsLetter string  `json:"unitsLetter"`
}

// CitySide holds one city's fields on the comparison page.
type CitySide struct {
	City       string    `json:"city"`
	Temp       float64   `json:"temp"`
	Humidity   float64   `json:"humidity"`
	WindSpeed  float64   `json:"windSpeed"`
	Sunrise    time.Time `json:"sunrise"`
	SunsetHour int       `json:"sunsetHour"`
}

// Comparison is a derived view over two readings.
type Comparison struct {
	Date        string   `json:"date"`
	UnitsLetter string   `json:"unitsLetter"`
	First       CitySide `json:"city1"`
	Second      CitySide `json:"city2"`

	AbsDiffTemp      float64 `json:"absDifferenceInTemp"`
	AbsDiffHumidity  float64 `json:"absDifferenceInHumidity"`
	AbsDiffWindSpeed float64 `json:"absDifferenceWindSpeed"`

	// AbsDiffSunset compares hour-of-day values only, so sunsets at 23:xx and
	// 00:xx on different days differ by 23.
	AbsDiffSunset int `json:"absDifferenceSunset"`
}

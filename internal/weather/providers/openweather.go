package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-pages/internal/weather"
)

// DefaultOpenWeatherURL is the OpenWeatherMap current-conditions endpoint.
const DefaultOpenWeatherURL = "https://api.openweathermap.org/data/2.5/weather"

// OpenWeatherProvider implements the weather.Provider interface for OpenWeatherMap.
type OpenWeatherProvider struct {
	name     string
	apiKey   string
	baseURL  string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	observer Observer
}

// NewOpenWeatherProvider builds a provider for baseURL (DefaultOpenWeatherURL
// when empty). observer may be nil.
func NewOpenWeatherProvider(cfg HTTPClientConfig, baseURL, apiKey string, observer Observer) *OpenWeatherProvider {
	if baseURL == "" {
		baseURL = DefaultOpenWeatherURL
	}
	return &OpenWeatherProvider{
		name:     "openweathermap",
		apiKey:   apiKey,
		baseURL:  baseURL,
		httpCfg:  cfg,
		circuit:  newBreaker("openweather", cfg),
		observer: observer,
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// BreakerState reports the circuit breaker state ("closed", "half-open", "open").
func (p *OpenWeatherProvider) BreakerState() string {
	return p.circuit.State().String()
}

func (p *OpenWeatherProvider) Fetch(ctx context.Context, q weather.Query) (weather.Reading, error) {
	start := time.Now()
	reading, err := p.fetch(ctx, q)
	if p.observer != nil {
		p.observer.ObserveUpstream(p.name, outcome(err), time.Since(start))
	}
	return reading, err
}

func (p *OpenWeatherProvider) fetch(ctx context.Context, q weather.Query) (weather.Reading, error) {
	if p.apiKey == "" {
		return weather.Reading{}, fmt.Errorf("%w: openweather api key is not configured", weather.ErrUpstream)
	}

	buildRequest := func() (*http.Request, error) {
		values := url.Values{}
		values.Set("appid", p.apiKey)
		values.Set("q", q.City)
		if q.Units != "" {
			values.Set("units", string(q.Units))
		}

		u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())
		return http.NewRequest(http.MethodGet, u, nil)
	}

	resp, err := doRequest(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		return weather.Reading{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		if msg := upstreamMessage(resp.Body); msg != "" && !strings.EqualFold(strings.TrimSpace(msg), weather.ErrCityNotFound.Error()) {
			return weather.Reading{}, fmt.Errorf("%w: %s", weather.ErrCityNotFound, msg)
		}
		return weather.Reading{}, weather.ErrCityNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return weather.Reading{}, fmt.Errorf("%w: unexpected status %d: %s", weather.ErrUpstream, resp.StatusCode, upstreamMessage(resp.Body))
	}

	var payload openWeatherPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return weather.Reading{}, fmt.Errorf("%w: decode response: %v", weather.ErrUpstream, err)
	}

	return payload.toReading()
}

// openWeatherPayload mirrors the subset of the response we display. Pointer
// fields distinguish absent keys from zero values.
type openWeatherPayload struct {
	Name    *string `json:"name"`
	Weather []struct {
		Description *string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Sunrise *int64 `json:"sunrise"`
		Sunset  *int64 `json:"sunset"`
	} `json:"sys"`
}

func (p openWeatherPayload) toReading() (weather.Reading, error) {
	var missing []string
	if p.Name == nil {
		missing = append(missing, "name")
	}
	if len(p.Weather) == 0 || p.Weather[0].Description == nil {
		missing = append(missing, "weather[0].description")
	}
	if p.Main.Temp == nil {
		missing = append(missing, "main.temp")
	}
	if p.Main.Humidity == nil {
		missing = append(missing, "main.humidity")
	}
	if p.Wind.Speed == nil {
		missing = append(missing, "wind.speed")
	}
	if p.Sys.Sunrise == nil {
		missing = append(missing, "sys.sunrise")
	}
	if p.Sys.Sunset == nil {
		missing = append(missing, "sys.sunset")
	}
	if len(missing) > 0 {
		return weather.Reading{}, fmt.Errorf("%w: missing %v", weather.ErrIncompleteReading, missing)
	}

	return weather.Reading{
		CityName:    *p.Name,
		Description: *p.Weather[0].Description,
		Temperature: *p.Main.Temp,
		Humidity:    *p.Main.Humidity,
		WindSpeed:   *p.Wind.Speed,
		Sunrise:     time.Unix(*p.Sys.Sunrise, 0).UTC(),
		Sunset:      time.Unix(*p.Sys.Sunset, 0).UTC(),
	}, nil
}

// upstreamMessage extracts the "message" field of an OpenWeatherMap error body.
func upstreamMessage(body io.Reader) string {
	var e struct {
		Message string `json:"message"`
	}
	data, err := io.ReadAll(io.LimitReader(body, 4<<10))
	if err != nil {
		return "unreadable body"
	}
	if err := json.Unmarshal(data, &e); err != nil || e.Message == "" {
		return string(data)
	}
	return e.Message
}

package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-pages/internal/metrics"
	"github.com/i474232898/weather-pages/internal/store"
	"github.com/i474232898/weather-pages/internal/weather"
	"github.com/i474232898/weather-pages/internal/weather/providers"
)

type cityFixture struct {
	temp, humidity, wind float64
	sunrise, sunset      time.Time
}

func day(hour, minute int) time.Time {
	return time.Date(2024, time.March, 7, hour, minute, 0, 0, time.UTC)
}

var fixtures = map[string]cityFixture{
	"London": {temp: 15.0, humidity: 70, wind: 3.5, sunrise: day(7, 0), sunset: day(17, 30)},
	"Paris":  {temp: 10.0, humidity: 60, wind: 2.0, sunrise: day(6, 50), sunset: day(18, 40)},
	"Rome":   {temp: 12.5, humidity: 65, wind: 1.5, sunrise: day(6, 20), sunset: day(17, 55)},
}

type testEnv struct {
	app      *fiber.App
	upstream atomic.Int32
	metrics  *metrics.Collector
	probes   *store.MemoryStore
	service  *weather.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{}

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.upstream.Add(1)
		city := r.URL.Query().Get("q")
		if city == "Broken" {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		f, ok := fixtures[city]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"cod":"404","message":"city not found"}`))
			return
		}
		_, _ = fmt.Fprintf(w, `{"name":%q,"weather":[{"description":"clear sky"}],"main":{"temp":%v,"humidity":%v},"wind":{"speed":%v},"sys":{"sunrise":%d,"sunset":%d}}`,
			city, f.temp, f.humidity, f.wind, f.sunrise.Unix(), f.sunset.Unix())
	}))
	t.Cleanup(upstream.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	env.metrics = metrics.NewCollector("weather_pages")
	provider := providers.NewOpenWeatherProvider(providers.HTTPClientConfig{
		Client:          upstream.Client(),
		BreakerFailures: 100,
	}, upstream.URL, "test-key", env.metrics)
	env.probes = store.NewMemoryStore(10, 0)
	env.service = weather.NewService(provider, env.probes, time.UTC, logger)

	env.app = NewApp(Options{
		Service:  env.service,
		Metrics:  env.metrics,
		Breaker:  provider,
		Logger:   logger,
		Location: time.UTC,
	})
	return env
}

func (e *testEnv) get(t *testing.T, target string) (int, string) {
	t.Helper()
	return getBody(t, e.app, target)
}

func TestResultsPage(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/results?city=London&units=metric")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "<h1>London</h1>")
	require.Contains(t, body, "clear sky")
	require.Contains(t, body, `<dd class="temp">15.0&deg;C</dd>`)
	require.Contains(t, body, `<dd class="humidity">70%</dd>`)
	require.Contains(t, body, `<dd class="wind">3.5</dd>`)
	require.Contains(t, body, `<dd class="sunrise">7:00 AM</dd>`)
	require.Contains(t, body, `<dd class="sunset">5:30 PM</dd>`)
	require.Contains(t, body, "/static/style.css")
}

func TestResultsPageValidatesBeforeLookup(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/results?units=metric")
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body, "city is required")

	status, body = env.get(t, "/results?city=London&units=rankine")
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body, "units must be one of: metric, imperial, standard")

	require.Zero(t, env.upstream.Load())
}

func TestResultsPageDefaultsToKelvin(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/results?city=London")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "15.0&deg;K")
}

func TestResultsPageCityNotFound(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/results?city=Atlantis&units=metric")
	require.Equal(t, http.StatusNotFound, status)
	require.Contains(t, body, "city not found: &#34;Atlantis&#34;")
	require.NotContains(t, body, "city not found: city not found")
}

func TestResultsPageUpstreamFailure(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/results?city=Broken&units=metric")
	require.Equal(t, http.StatusBadGateway, status)
	require.Contains(t, body, "Weather lookup failed")
	require.Contains(t, body, "weather lookup failed")
	require.NotContains(t, body, "test-key")
}

// newUpstreamApp wires an app to an arbitrary upstream and captures its logs.
func newUpstreamApp(t *testing.T, baseURL string, client *http.Client, apiKey string) (*fiber.App, *bytes.Buffer) {
	t.Helper()
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	provider := providers.NewOpenWeatherProvider(providers.HTTPClientConfig{
		Client:          client,
		BreakerFailures: 100,
	}, baseURL, apiKey, nil)
	service := weather.NewService(provider, store.NewMemoryStore(10, 0), time.UTC, logger)
	return NewApp(Options{Service: service, Breaker: provider, Logger: logger, Location: time.UTC}), logs
}

func closedServerURL() string {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()
	return addr
}

func getBody(t *testing.T, app *fiber.App, target string) (int, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, target, nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestUpstreamUnreachableKeepsAPIKeyPrivate(t *testing.T) {
	const apiKey = "SECRET-APPID-123"
	app, logs := newUpstreamApp(t, closedServerURL(), &http.Client{Timeout: 2 * time.Second}, apiKey)

	status, body := getBody(t, app, "/results?city=London&units=metric")
	require.Equal(t, http.StatusBadGateway, status)
	require.Contains(t, body, "Weather lookup failed")
	require.Contains(t, body, "weather lookup failed")
	require.NotContains(t, body, apiKey)

	status, body = getBody(t, app, "/api/v1/weather/current?city=London&units=metric")
	require.Equal(t, http.StatusBadGateway, status)
	var errBody struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &errBody))
	require.True(t, errBody.Error)
	require.Equal(t, "weather lookup failed", errBody.Message)
	require.NotContains(t, body, apiKey)

	status, body = getBody(t, app, "/comparison_results?city1=London&city2=Paris")
	require.Equal(t, http.StatusBadGateway, status)
	require.NotContains(t, body, apiKey)

	require.Contains(t, logs.String(), "weather lookup failed")
	require.Contains(t, logs.String(), "appid=REDACTED")
	require.NotContains(t, logs.String(), apiKey)
}

func TestUpstreamTimeoutIsGatewayTimeout(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(upstream.Close)

	app, logs := newUpstreamApp(t, upstream.URL, &http.Client{Timeout: 50 * time.Millisecond}, "slow-key")

	status, body := getBody(t, app, "/results?city=London&units=metric")
	require.Equal(t, http.StatusGatewayTimeout, status)
	require.Contains(t, body, "weather lookup timed out")

	status, body = getBody(t, app, "/api/v1/weather/current?city=London")
	require.Equal(t, http.StatusGatewayTimeout, status)
	require.Contains(t, body, "weather lookup timed out")

	require.NotContains(t, logs.String(), "slow-key")
}

func TestComparisonPage(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/comparison_results?city1=Paris&city2=Rome&units=metric")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "Paris vs Rome")
	require.Contains(t, body, `<td>10.0&deg;C</td>`)
	require.Contains(t, body, `<td>12.5&deg;C</td>`)
	require.Contains(t, body, `<td class="diff-temp">2.5&deg;C</td>`)
	require.Contains(t, body, `<td class="diff-humidity">5%</td>`)
	require.Contains(t, body, `<td class="diff-wind">0.5</td>`)
	require.Contains(t, body, `<td class="diff-sunset">1 hours</td>`)
	require.Contains(t, body, "6:50 AM")
	require.Equal(t, int32(2), env.upstream.Load())
}

func TestComparisonPageRequiresBothCities(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/comparison_results?city1=Paris")
	require.Equal(t, http.StatusBadRequest, status)
	require.Contains(t, body, "city2 is required")
	require.Zero(t, env.upstream.Load())
}

func TestComparisonPageSecondCityFails(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.get(t, "/comparison_results?city1=Paris&city2=Atlantis")
	require.Equal(t, http.StatusNotFound, status)
}

func TestHomePage(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, `action="/results"`)
	require.Contains(t, body, `action="/comparison_results"`)

	now := time.Now().UTC()
	require.Contains(t, body, `max="`+now.Format(time.DateOnly)+`"`)
	require.Contains(t, body, `min="`+now.AddDate(0, 0, -5).Format(time.DateOnly)+`"`)
}

func TestAPICurrent(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/api/v1/weather/current?city=London&units=metric")
	require.Equal(t, http.StatusOK, status)

	var report weather.CityReport
	require.NoError(t, json.Unmarshal([]byte(body), &report))
	require.Equal(t, "London", report.City)
	require.Equal(t, "C", report.UnitsLetter)
	require.Equal(t, 15.0, report.Temp)
	require.Equal(t, 70.0, report.Humidity)
	require.Equal(t, 3.5, report.WindSpeed)
	require.Equal(t, "7:00 AM", report.Sunrise)
	require.Equal(t, "5:30 PM", report.Sunset)
}

func TestAPICompare(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/api/v1/weather/compare?city1=Paris&city2=Rome&units=imperial")
	require.Equal(t, http.StatusOK, status)

	var cmp weather.Comparison
	require.NoError(t, json.Unmarshal([]byte(body), &cmp))
	require.Equal(t, 2.5, cmp.AbsDiffTemp)
	require.Equal(t, 5.0, cmp.AbsDiffHumidity)
	require.Equal(t, 0.5, cmp.AbsDiffWindSpeed)
	require.Equal(t, 1, cmp.AbsDiffSunset)
	require.Equal(t, 18, cmp.First.SunsetHour)
	require.Equal(t, "F", cmp.UnitsLetter)
}

func TestAPIErrorsAreJSON(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/api/v1/weather/current?units=metric")
	require.Equal(t, http.StatusBadRequest, status)

	var errBody struct {
		Error   bool   `json:"error"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &errBody))
	require.True(t, errBody.Error)
	require.Equal(t, "city is required", errBody.Message)

	status, body = env.get(t, "/api/v1/weather/current?city=Atlantis")
	require.Equal(t, http.StatusNotFound, status)
	require.NoError(t, json.Unmarshal([]byte(body), &errBody))
	require.Contains(t, errBody.Message, "city not found")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/health")
	require.Equal(t, http.StatusOK, status)

	var health map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	require.Equal(t, "ok", health["status"])
	require.Equal(t, "closed", health["breaker"])
	require.NotContains(t, health, "probe")

	env.service.Probe(context.Background(), "Broken")

	_, body = env.get(t, "/health")
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	require.Equal(t, "degraded", health["status"])
	require.Contains(t, health, "probe")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	status, _ := env.get(t, "/results?city=London&units=metric")
	require.Equal(t, http.StatusOK, status)

	status, body := env.get(t, "/metrics")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, `weather_pages_upstream_requests_total{outcome="ok",provider="openweathermap"} 1`)
	require.True(t, strings.Contains(body, `weather_pages_http_requests_total{method="GET",route="/results",status="200"} 1`))
}

func TestStaticStylesheet(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/static/style.css")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "font-family")
}

func TestUnknownRouteRendersErrorPage(t *testing.T) {
	env := newTestEnv(t)

	status, body := env.get(t, "/nowhere")
	require.Equal(t, http.StatusNotFound, status)
	require.Contains(t, body, "Not found")
}

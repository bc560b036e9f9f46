package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-pages/internal/weather"
)

// historyWindow is how far back the home page's date pickers reach.
const historyWindow = 5 * 24 * time.Hour

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("query"); name != "" {
			return name
		}
		return fld.Name
	})
	return v
}

// BreakerStater reports the upstream circuit breaker state.
type BreakerStater interface {
	BreakerState() string
}

type handler struct {
	service  *weather.Service
	breaker  BreakerStater
	location *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

// RegisterRoutes wires the page, API, health and metrics handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, opts Options) {
	h := &handler{
		service:  opts.Service,
		breaker:  opts.Breaker,
		location: opts.Location,
		logger:   opts.Logger,
		now:      time.Now,
	}
	if h.location == nil {
		h.location = time.Local
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}

	app.Get("/", h.home)
	app.Get("/results", h.results)
	app.Get("/comparison_results", h.comparisonResults)

	app.Get("/health", h.health)
	if opts.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Metrics.Registry, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/api/v1")
	v1.Get("/weather/current", h.apiCurrent)
	v1.Get("/weather/compare", h.apiCompare)
}

// currentQuery holds query parameters for a single-city lookup.
type currentQuery struct {
	City  string `query:"city" validate:"required"`
	Units string `query:"units" validate:"omitempty,oneof=metric imperial standard"`
}

func (q currentQuery) toQuery() weather.Query {
	return weather.Query{City: q.City, Units: weather.Units(q.Units)}
}

// comparisonQuery holds query parameters for a two-city comparison.
type comparisonQuery struct {
	City1 string `query:"city1" validate:"required"`
	City2 string `query:"city2" validate:"required"`
	Units string `query:"units" validate:"omitempty,oneof=metric imperial standard"`
}

func bindQuery(c *fiber.Ctx, out interface{}) error {
	if err := c.QueryParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed query string")
	}
	if err := validate.Struct(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", ")))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return strings.Join(msgs, "; ")
}

// lookupError maps service errors to HTTP errors. Users get a fixed message;
// the underlying cause is only logged.
func (h *handler) lookupError(c *fiber.Ctx, err error) error {
	h.logger.Warn("weather lookup failed", "path", c.Path(), "request_id", c.Locals("requestid"), "error", err)

	switch {
	case errors.Is(err, weather.ErrCityNotFound):
		var lerr *weather.LookupError
		if errors.As(err, &lerr) {
			return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("city not found: %q", lerr.City))
		}
		return fiber.NewError(fiber.StatusNotFound, "city not found")
	case errors.Is(err, weather.ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, "weather lookup timed out")
	case errors.Is(err, weather.ErrUpstream):
		return fiber.NewError(fiber.StatusBadGateway, "weather lookup failed")
	default:
		return err
	}
}

func (h *handler) home(c *fiber.Ctx) error {
	now := h.now().In(h.location)
	return c.Render("home", fiber.Map{
		"Title":   "Weather",
		"MinDate": now.Add(-historyWindow).Format(time.DateOnly),
		"MaxDate": now.Format(time.DateOnly),
	})
}

func (h *handler) results(c *fiber.Ctx) error {
	var q currentQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}

	report, err := h.service.Current(c.UserContext(), q.toQuery())
	if err != nil {
		return h.lookupError(c, err)
	}

	return c.Render("results", fiber.Map{
		"Title":  "Weather in " + report.City,
		"Report": report,
	})
}

func (h *handler) comparisonResults(c *fiber.Ctx) error {
	var q comparisonQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}

	cmp, err := h.service.Compare(c.UserContext(), q.City1, q.City2, weather.Units(q.Units))
	if err != nil {
		return h.lookupError(c, err)
	}

	return c.Render("comparison_results", fiber.Map{
		"Title":      fmt.Sprintf("%s vs %s", cmp.First.City, cmp.Second.City),
		"Comparison": cmp,
	})
}

func (h *handler) apiCurrent(c *fiber.Ctx) error {
	var q currentQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}

	report, err := h.service.Current(c.UserContext(), q.toQuery())
	if err != nil {
		return h.lookupError(c, err)
	}
	return c.JSON(report)
}

func (h *handler) apiCompare(c *fiber.Ctx) error {
	var q comparisonQuery
	if err := bindQuery(c, &q); err != nil {
		return err
	}

	cmp, err := h.service.Compare(c.UserContext(), q.City1, q.City2, weather.Units(q.Units))
	if err != nil {
		return h.lookupError(c, err)
	}
	return c.JSON(cmp)
}

func (h *handler) health(c *fiber.Ctx) error {
	body := fiber.Map{
		"status":  "ok",
		"service": "weather-pages",
	}
	if h.breaker != nil {
		body["breaker"] = h.breaker.BreakerState()
	}

	// LatestProbe fails until the first scheduled probe has run.
	if probe, err := h.service.LatestProbe(); err == nil {
		body["probe"] = probe
		if !probe.OK {
			body["status"] = "degraded"
		}
	}
	return c.JSON(body)
}

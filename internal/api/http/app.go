package httpapi

import (
	"embed"
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/template/html/v2"
	"github.com/google/uuid"

	"github.com/i474232898/weather-pages/internal/metrics"
	"github.com/i474232898/weather-pages/internal/weather"
)

//go:embed templates static
var assets embed.FS

// Options configures NewApp. Only Service is required.
type Options struct {
	Service *weather.Service
	Metrics *metrics.Collector
	Breaker BreakerStater
	Logger  *slog.Logger

	// Location renders dates on the home page; time.Local when nil.
	Location *time.Location
	// AccessLog enables the fiber request logger.
	AccessLog bool
}

// NewApp builds the fiber application with views, middleware and routes.
func NewApp(opts Options) *fiber.App {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	app := fiber.New(fiber.Config{
		AppName:               "weather-pages",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		Views:                 newViews(),
		ViewsLayout:           "layouts/main",
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler:          errorHandler(opts.Logger),
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{Generator: uuid.NewString}))
	if opts.AccessLog {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:requestid} ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	if opts.Metrics != nil {
		app.Use(metricsMiddleware(opts.Metrics))
	}

	static, err := fs.Sub(assets, "static")
	if err != nil {
		panic(err)
	}
	app.Use("/static", filesystem.New(filesystem.Config{
		Root:   http.FS(static),
		MaxAge: 3600,
	}))

	RegisterRoutes(app, opts)
	return app
}

func newViews() *html.Engine {
	templates, err := fs.Sub(assets, "templates")
	if err != nil {
		panic(err)
	}
	engine := html.NewFileSystem(http.FS(templates), ".html")
	engine.AddFunc("clock", func(t time.Time) string {
		return t.Format(weather.ClockLayout)
	})
	engine.AddFunc("decimal", formatDecimal)
	return engine
}

// formatDecimal renders a measurement with at least one decimal place, so
// 15 prints as "15.0" and 3.25 as "3.25".
func formatDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsNaN(v) || math.IsInf(v, 0) || strings.Contains(s, ".") {
		return s
	}
	return s + ".0"
}

// errorHandler renders errors as JSON under /api and as an HTML page elsewhere.
func errorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
		}

		message := err.Error()
		if code >= fiber.StatusInternalServerError {
			log.Error("request failed", "status", code, "path", c.Path(), "request_id", c.Locals("requestid"), "error", err)
			if e == nil {
				message = "something went wrong"
			}
		} else {
			log.Warn("request failed", "status", code, "path", c.Path(), "request_id", c.Locals("requestid"), "error", err)
		}

		if strings.HasPrefix(c.Path(), "/api/") {
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": message,
			})
		}

		renderErr := c.Status(code).Render("error", fiber.Map{
			"Title":   errorTitle(code),
			"Status":  code,
			"Message": message,
		})
		if renderErr != nil {
			log.Error("render error page", "error", renderErr)
			return c.Status(code).SendString(message)
		}
		return nil
	}
}

func errorTitle(code int) string {
	switch {
	case code == fiber.StatusBadRequest:
		return "Invalid request"
	case code == fiber.StatusNotFound:
		return "Not found"
	case code == fiber.StatusBadGateway, code == fiber.StatusGatewayTimeout:
		return "Weather lookup failed"
	default:
		return "Something went wrong"
	}
}

func metricsMiddleware(m *metrics.Collector) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				status = e.Code
			}
		}

		route := c.Route().Path
		m.RecordRequest(route, c.Method(), strconv.Itoa(status), time.Since(start))
		return err
	}
}

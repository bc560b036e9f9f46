package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/i474232898/weather-pages/internal/api/http"
	"github.com/i474232898/weather-pages/internal/config"
	"github.com/i474232898/weather-pages/internal/logger"
	"github.com/i474232898/weather-pages/internal/metrics"
	"github.com/i474232898/weather-pages/internal/scheduler"
	"github.com/i474232898/weather-pages/internal/store"
	"github.com/i474232898/weather-pages/internal/weather"
	"github.com/i474232898/weather-pages/internal/weather/providers"
)

func main() {
	slog.SetDefault(logger.New(os.Getenv("LOG_LEVEL")))

	// Load configuration (.env, optional YAML file, environment).
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	collector := metrics.NewCollector("weather_pages")

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	provider := providers.NewOpenWeatherProvider(providers.HTTPClientConfig{
		Client: httpClient,
	}, cfg.OpenWeatherBaseURL, cfg.OpenWeatherAPIKey, collector)

	// Probe history with configured retention.
	probes := store.NewMemoryStore(cfg.ProbeMaxHistory, cfg.ProbeMaxAge)

	service := weather.NewService(provider, probes, cfg.Location, log)

	// Scheduler that periodically checks the upstream API.
	sched := scheduler.New(cfg.ProbeCity, cfg.ProbeInterval, cfg.HTTPTimeout, service, log)
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	app := httpapi.NewApp(httpapi.Options{
		Service:   service,
		Metrics:   collector,
		Breaker:   provider,
		Logger:    log,
		Location:  cfg.Location,
		AccessLog: true,
	})

	go func() {
		log.Info("http server listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error("error during shutdown", "error", err)
	}
}

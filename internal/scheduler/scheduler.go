package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/i474232898/weather-pages/internal/weather"
)

// Prober performs one upstream health check.
type Prober interface {
	Probe(ctx context.Context, city string) weather.ProbeResult
}

// Scheduler periodically probes the upstream weather API.
type Scheduler struct {
	scheduler *gocron.Scheduler
	prober    Prober
	city      string
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// New creates a new Scheduler. An empty city disables probing.
func New(city string, interval, timeout time.Duration, prober Prober, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		prober:    prober,
		city:      city,
		interval:  interval,
		timeout:   timeout,
		logger:    logger,
	}
}

// Start schedules the periodic probe job and starts the underlying scheduler.
func (s *Scheduler) Start() error {
	if s.city == "" {
		s.logger.Info("scheduler: no probe city configured; nothing to schedule")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = 15 * time.Minute
	}

	_, err := s.scheduler.Every(interval).Do(s.run)
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler: upstream probe scheduled", "city", s.city, "interval", interval.String())
	return nil
}

func (s *Scheduler) run() {
	timeout := s.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result := s.prober.Probe(ctx, s.city)
	s.logger.Debug("scheduler: completed upstream probe", "city", s.city, "ok", result.OK)
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}

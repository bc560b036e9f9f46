package weather

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Service turns upstream readings into display records and tracks upstream health.
type Service struct {
	provider Provider
	store    ProbeStore
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time
}

// NewService creates a new Service. Display times are rendered in loc
// (time.Local when nil).
func NewService(provider Provider, store ProbeStore, loc *time.Location, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		provider: provider,
		store:    store,
		logger:   logger,
		location: orLocal(loc),
		now:      time.Now,
	}
}

// Current fetches one city and builds its display record.
func (s *Service) Current(ctx context.Context, q Query) (CityReport, error) {
	reading, err := s.fetch(ctx, q)
	if err != nil {
		return CityReport{}, err
	}
	return Present(reading, q.Units, s.now(), s.location), nil
}

// Compare fetches city1 and then city2 and derives the comparison view.
// A failure of either lookup aborts the whole comparison.
func (s *Service) Compare(ctx context.Context, city1, city2 string, units Units) (Comparison, error) {
	first, err := s.fetch(ctx, Query{City: city1, Units: units})
	if err != nil {
		return Comparison{}, err
	}
	second, err := s.fetch(ctx, Query{City: city2, Units: units})
	if err != nil {
		return Comparison{}, err
	}
	return Compare(first, second, units, s.now(), s.location), nil
}

// Probe performs one upstream lookup for city and records the outcome.
func (s *Service) Probe(ctx context.Context, city string) ProbeResult {
	start := time.Now()
	_, err := s.provider.Fetch(ctx, Query{City: city})

	result := ProbeResult{
		Timestamp: start.UTC(),
		City:      city,
		OK:        err == nil,
		Latency:   time.Since(start),
	}
	if err != nil {
		result.Error = err.Error()
		s.logger.Warn("upstream probe failed", "provider", s.provider.Name(), "city", city, "error", err)
	} else {
		s.logger.Debug("upstream probe succeeded", "provider", s.provider.Name(), "city", city, "latency_ms", result.Latency.Milliseconds())
	}

	if s.store != nil {
		s.store.Save(result)
	}
	return result
}

// LatestProbe delegates to the underlying store.
func (s *Service) LatestProbe() (ProbeResult, error) {
	if s.store == nil {
		return ProbeResult{}, fmt.Errorf("no probe store configured")
	}
	return s.store.Latest()
}

func (s *Service) fetch(ctx context.Context, q Query) (Reading, error) {
	if s.provider == nil {
		return Reading{}, fmt.Errorf("%w: no weather provider configured", ErrUpstream)
	}
	reading, err := s.provider.Fetch(ctx, q)
	if err != nil {
		s.logger.Info("weather lookup failed", "provider", s.provider.Name(), "city", q.City, "units", string(q.Units), "error", err)
		return Reading{}, &LookupError{City: q.City, Err: err}
	}
	return reading, nil
}

package weather

import (
	"context"
)

// Provider abstracts the upstream current-conditions source (OpenWeatherMap).
type Provider interface {
	Name() string
	Fetch(ctx context.Context, q Query) (Reading, error)
}

// ProbeStore is the contract for recording upstream health probes.
type ProbeStore interface {
	Save(result ProbeResult)
	Latest() (ProbeResult, error)
}

package weather

import "time"

// ProbeResult records one scheduled upstream health check.
type ProbeResult struct {
	Timestamp time.Time     `json:"timestamp"` // always UTC
	City      string        `json:"city"`
	OK        bool          `json:"ok"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latencyNs"`
}

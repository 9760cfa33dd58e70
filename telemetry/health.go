package telemetry

import (
	"encoding/json"
	"net/http"
	"time"
)

// SignalHealth reports the export outcome of one signal.
type SignalHealth struct {
	Exported     int64  `json:"exported"`
	Dropped      int64  `json:"dropped"`
	Errors       int64  `json:"errors"`
	LastError    string `json:"last_error,omitempty"`
	CircuitState string `json:"circuit_state"`
}

// Health represents the health status of the telemetry system
type Health struct {
	Enabled         bool                    `json:"enabled"`
	Initialized     bool                    `json:"initialized"`
	ServiceName     string                  `json:"service_name,omitempty"`
	Exporter        string                  `json:"exporter,omitempty"`
	MetricsExporter string                  `json:"metrics_exporter,omitempty"`
	Signals         map[string]SignalHealth `json:"signals,omitempty"`
	SDKErrors       int64                   `json:"sdk_errors"`
	LastSDKError    string                  `json:"last_sdk_error,omitempty"`
	Uptime          string                  `json:"uptime,omitempty"`
}

// GetHealth returns the current health status of the telemetry system
func GetHealth() Health {
	r := GetRegistry()
	if r == nil {
		return Health{}
	}

	signals := make(map[string]SignalHealth, len(r.provider.guards))
	for name, g := range r.provider.guards {
		lastErr, _ := g.stats.lastError.Load().(string)
		signals[name] = SignalHealth{
			Exported:     g.stats.exported.Load(),
			Dropped:      g.stats.dropped.Load(),
			Errors:       g.stats.errors.Load(),
			LastError:    lastErr,
			CircuitState: g.circuit.State(),
		}
	}

	lastSDKErr, _ := r.lastError.Load().(string)

	return Health{
		Enabled:         r.config.Enabled,
		Initialized:     true,
		ServiceName:     r.config.ServiceName,
		Exporter:        r.config.Exporter,
		MetricsExporter: r.config.metricsExporter(),
		Signals:         signals,
		SDKErrors:       otelErrors.Load(),
		LastSDKError:    lastSDKErr,
		Uptime:          time.Since(r.startTime).String(),
	}
}

// status maps health onto an HTTP status code.
func (h Health) status() int {
	if !h.Enabled || !h.Initialized {
		return http.StatusServiceUnavailable
	}
	degraded := false
	for _, s := range h.Signals {
		if s.CircuitState == CircuitOpen {
			return http.StatusServiceUnavailable
		}
		if s.Errors > 0 && s.Exported == 0 {
			return http.StatusServiceUnavailable
		}
		// More than 10% of items dropped
		if float64(s.Dropped)/float64(s.Exported+s.Dropped+1) > 0.1 {
			degraded = true
		}
	}
	if degraded {
		return http.StatusPartialContent
	}
	return http.StatusOK
}

// HealthHandler provides an HTTP endpoint for telemetry health
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := GetHealth()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(health.status())
	_ = json.NewEncoder(w).Encode(health)
}

// MetricsHandler serves the Prometheus scrape endpoint of the global
// registry. It answers 404 before Initialize or when metrics are pushed
// rather than scraped.
func MetricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r := GetRegistry()
		if r == nil {
			http.NotFound(w, req)
			return
		}
		r.provider.MetricsHandler().ServeHTTP(w, req)
	})
}

// ResetInternalMetrics resets export counters (useful for testing)
func ResetInternalMetrics() {
	otelErrors.Store(0)
	if r := GetRegistry(); r != nil {
		r.lastError.Store("")
		for _, g := range r.provider.guards {
			g.stats.reset()
		}
	}
}

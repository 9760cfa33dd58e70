package telemetry

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itsneelabh/gomind-genai/core"
)

// Circuit states
const (
	CircuitClosed   = "closed"
	CircuitOpen     = "open"
	CircuitHalfOpen = "half-open"
	CircuitDisabled = "disabled"
)

// TelemetryCircuitBreaker stops a signal exporter from hammering an
// unavailable backend. While open, batches for that signal are dropped.
type TelemetryCircuitBreaker struct {
	config CircuitConfig
	signal string
	logger core.Logger

	state           atomic.Value // string: "closed", "open", "half-open"
	failures        atomic.Int64
	successes       atomic.Int64
	lastFailureTime atomic.Value // time.Time

	mu sync.Mutex
}

// CircuitConfig configures the telemetry circuit breaker
type CircuitConfig struct {
	Enabled      bool
	MaxFailures  int
	RecoveryTime time.Duration
	HalfOpenMax  int // Max requests in half-open state
}

// NewTelemetryCircuitBreaker creates a circuit breaker for one signal
// ("traces", "metrics" or "logs"). It returns nil when config is disabled;
// a nil breaker allows everything.
func NewTelemetryCircuitBreaker(signal string, config CircuitConfig, logger core.Logger) *TelemetryCircuitBreaker {
	if !config.Enabled {
		return nil
	}

	// Set defaults
	if config.MaxFailures == 0 {
		config.MaxFailures = 10
	}
	if config.RecoveryTime == 0 {
		config.RecoveryTime = 30 * time.Second
	}
	if config.HalfOpenMax == 0 {
		config.HalfOpenMax = 5
	}
	if logger == nil {
		logger = &core.NoOpLogger{}
	}

	cb := &TelemetryCircuitBreaker{
		config: config,
		signal: signal,
		logger: logger,
	}
	cb.state.Store(CircuitClosed)
	cb.lastFailureTime.Store(time.Time{})

	return cb
}

// Allow checks if an export should be attempted
func (cb *TelemetryCircuitBreaker) Allow() bool {
	if cb == nil {
		return true // No circuit breaker configured
	}

	switch cb.State() {
	case CircuitOpen:
		lastFailureVal := cb.lastFailureTime.Load()
		if lastFailure, ok := lastFailureVal.(time.Time); ok && !lastFailure.IsZero() {
			if time.Since(lastFailure) > cb.config.RecoveryTime {
				cb.mu.Lock()
				// Double-check after acquiring lock
				if cb.state.Load().(string) == CircuitOpen {
					cb.state.Store(CircuitHalfOpen)
					cb.successes.Store(0)

					cb.logger.Info("Exporter circuit entering HALF-OPEN state", map[string]interface{}{
						"signal":             cb.signal,
						"previous_state":     CircuitOpen,
						"recovery_wait":      cb.config.RecoveryTime.String(),
						"time_since_failure": time.Since(lastFailure).String(),
						"max_test_exports":   cb.config.HalfOpenMax,
						"action":             "Testing backend connectivity with limited exports",
					})
				}
				cb.mu.Unlock()
				return true
			}
		}
		return false

	case CircuitHalfOpen:
		current := cb.successes.Load()
		allowed := current < int64(cb.config.HalfOpenMax)
		if !allowed {
			cb.logger.Debug("Exporter circuit rejecting export in half-open state", map[string]interface{}{
				"signal":        cb.signal,
				"current_tests": current,
				"max_tests":     cb.config.HalfOpenMax,
			})
		}
		return allowed

	default: // closed
		return true
	}
}

// RecordSuccess records a successful export.
// In half-open state, enough successes close the circuit.
// In closed state, this resets the failure counter.
func (cb *TelemetryCircuitBreaker) RecordSuccess() {
	if cb == nil {
		return
	}

	successes := cb.successes.Add(1)

	switch cb.State() {
	case CircuitHalfOpen:
		cb.logger.Debug("Exporter circuit recovery test", map[string]interface{}{
			"signal":   cb.signal,
			"progress": fmt.Sprintf("%d/%d", successes, cb.config.HalfOpenMax),
		})

		if successes >= int64(cb.config.HalfOpenMax) {
			cb.mu.Lock()
			if cb.state.Load().(string) == CircuitHalfOpen {
				cb.state.Store(CircuitClosed)
				cb.failures.Store(0)

				recoveryDuration := "unknown"
				if lastFailure, ok := cb.lastFailureTime.Load().(time.Time); ok && !lastFailure.IsZero() {
					recoveryDuration = time.Since(lastFailure).String()
				}

				cb.logger.Info("Exporter circuit CLOSED - telemetry export recovered", map[string]interface{}{
					"signal":            cb.signal,
					"recovery_tests":    successes,
					"recovery_duration": recoveryDuration,
					"impact":            "Export resumed",
				})
			}
			cb.mu.Unlock()
		}
	case CircuitClosed:
		cb.failures.Store(0)
	}
}

// RecordFailure records a failed export
func (cb *TelemetryCircuitBreaker) RecordFailure() {
	if cb == nil {
		return
	}

	failures := cb.failures.Add(1)
	cb.lastFailureTime.Store(time.Now())

	if cb.State() == CircuitHalfOpen {
		// A failed probe reopens immediately.
		failures = int64(cb.config.MaxFailures)
	}

	if failures >= int64(cb.config.MaxFailures) {
		cb.mu.Lock()
		if previous := cb.state.Load().(string); previous != CircuitOpen {
			cb.state.Store(CircuitOpen)
			cb.successes.Store(0)

			cb.logger.Warn("Exporter circuit OPENED - telemetry will be dropped", map[string]interface{}{
				"signal":         cb.signal,
				"previous_state": previous,
				"failure_count":  failures,
				"max_failures":   cb.config.MaxFailures,
				"recovery_time":  cb.config.RecoveryTime.String(),
				"impact":         fmt.Sprintf("All %s will be dropped until recovery", cb.signal),
				"action":         "Check OTEL collector health at configured endpoint",
			})
		}
		cb.mu.Unlock()
		return
	}

	if failures == 1 {
		cb.logger.Info("Exporter circuit recorded first failure", map[string]interface{}{
			"signal":        cb.signal,
			"failure_count": 1,
			"max_failures":  cb.config.MaxFailures,
		})
	} else if cb.config.MaxFailures > 2 && failures == int64((cb.config.MaxFailures+1)/2) {
		cb.logger.Warn("Exporter circuit failures increasing", map[string]interface{}{
			"signal":        cb.signal,
			"failure_count": failures,
			"max_failures":  cb.config.MaxFailures,
			"percentage":    (failures * 100) / int64(cb.config.MaxFailures),
			"action":        "Investigate telemetry backend connectivity",
		})
	}
}

// State returns the current circuit breaker state
func (cb *TelemetryCircuitBreaker) State() string {
	if cb == nil {
		return CircuitDisabled
	}
	return cb.state.Load().(string)
}

// Reset closes the circuit and clears all counters
func (cb *TelemetryCircuitBreaker) Reset() {
	if cb == nil {
		return
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	previousState := cb.state.Load().(string)
	previousFailures := cb.failures.Load()

	cb.state.Store(CircuitClosed)
	cb.failures.Store(0)
	cb.successes.Store(0)
	cb.lastFailureTime.Store(time.Time{})

	if previousState != CircuitClosed || previousFailures > 0 {
		cb.logger.Info("Exporter circuit manually reset", map[string]interface{}{
			"signal":            cb.signal,
			"previous_state":    previousState,
			"previous_failures": previousFailures,
		})
	}
}

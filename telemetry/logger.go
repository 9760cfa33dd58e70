package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/itsneelabh/gomind-genai/core"
)

// TelemetryLogger is the self-logger of the telemetry system and of the
// GenAI instrumentation. It reports what happens to the telemetry itself
// (dropped exports, skipped content blocks, provider lifecycle), never the
// GenAI events, which go through the OpenTelemetry log pipeline.
//
// Output is JSON inside Kubernetes and text otherwise. ERROR records are
// rate-limited so a dead collector cannot flood the console. Loggers
// derived with WithComponent share level, format and output with their
// parent.
type TelemetryLogger struct {
	sink        *loggerSink
	serviceName string
	component   string

	// Rate limiting to prevent log flooding during failures
	errorLimiter *RateLimiter
}

type loggerSink struct {
	mu     sync.RWMutex
	level  string
	debug  bool
	format string
	output io.Writer
}

var _ core.ComponentAwareLogger = (*TelemetryLogger)(nil)

// telemetryLoggerSingleton ensures single logger instance for the module
var (
	telemetryLogger     *TelemetryLogger
	telemetryLoggerOnce sync.Once
)

// NewTelemetryLogger returns the process-wide telemetry logger, creating it
// on first use.
// Configuration priority:
//  1. Environment variables (GOMIND_LOG_LEVEL, GOMIND_LOG_FORMAT, GOMIND_DEBUG, TELEMETRY_DEBUG)
//  2. Auto-detection (K8s environment)
//  3. Defaults
func NewTelemetryLogger(serviceName string) *TelemetryLogger {
	telemetryLoggerOnce.Do(func() {
		telemetryLogger = createTelemetryLogger(serviceName)
	})
	return telemetryLogger
}

// createTelemetryLogger creates the actual logger instance
func createTelemetryLogger(serviceName string) *TelemetryLogger {
	level := os.Getenv("GOMIND_LOG_LEVEL")
	if level == "" {
		level = "INFO"
	}

	// Debug mode can be enabled via GOMIND_DEBUG or TELEMETRY_DEBUG
	debug := os.Getenv("GOMIND_DEBUG") == "true" ||
		os.Getenv("TELEMETRY_DEBUG") == "true" ||
		strings.ToUpper(level) == "DEBUG"

	format := "text"
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		format = "json"
	}
	if envFormat := os.Getenv("GOMIND_LOG_FORMAT"); envFormat != "" {
		format = strings.ToLower(envFormat)
	}

	if serviceName == "" {
		serviceName = "telemetry"
	}

	return &TelemetryLogger{
		sink: &loggerSink{
			level:  strings.ToUpper(level),
			debug:  debug,
			format: format,
			output: os.Stdout,
		},
		serviceName:  serviceName,
		component:    "telemetry",
		errorLimiter: NewRateLimiter(1 * time.Second), // Max 1 error log per second
	}
}

// WithComponent returns a logger whose records are tagged with component.
func (l *TelemetryLogger) WithComponent(component string) core.Logger {
	derived := *l
	derived.component = component
	return &derived
}

// Info logs informational messages
func (l *TelemetryLogger) Info(msg string, fields map[string]interface{}) {
	l.log("INFO", msg, fields)
}

// Warn logs warning messages
func (l *TelemetryLogger) Warn(msg string, fields map[string]interface{}) {
	l.log("WARN", msg, fields)
}

// Error logs error messages with rate limiting
func (l *TelemetryLogger) Error(msg string, fields map[string]interface{}) {
	if l.errorLimiter != nil {
		if !l.errorLimiter.Allow() {
			return
		}
		if n := l.errorLimiter.TakeSuppressed(); n > 0 {
			fields = withField(fields, "suppressed_errors", n)
		}
	}
	l.log("ERROR", msg, fields)
}

// Debug logs debug messages (only when debug mode is enabled)
func (l *TelemetryLogger) Debug(msg string, fields map[string]interface{}) {
	l.sink.mu.RLock()
	debug := l.sink.debug
	l.sink.mu.RUnlock()
	if !debug {
		return
	}
	l.log("DEBUG", msg, fields)
}

func (l *TelemetryLogger) log(level, msg string, fields map[string]interface{}) {
	l.sink.mu.RLock()
	defer l.sink.mu.RUnlock()

	if !shouldLog(l.sink.level, level) {
		return
	}

	timestamp := time.Now().Format(time.RFC3339)
	if l.sink.format == "json" {
		l.logJSON(timestamp, level, msg, fields)
	} else {
		l.logText(timestamp, level, msg, fields)
	}
}

var reservedFields = map[string]bool{
	"timestamp": true,
	"level":     true,
	"service":   true,
	"component": true,
	"message":   true,
}

// logJSON outputs structured JSON logs
func (l *TelemetryLogger) logJSON(timestamp, level, msg string, fields map[string]interface{}) {
	logEntry := map[string]interface{}{
		"timestamp": timestamp,
		"level":     level,
		"service":   l.serviceName,
		"component": l.component,
		"message":   msg,
	}
	for k, v := range fields {
		if !reservedFields[k] {
			logEntry[k] = v
		}
	}

	if data, err := json.Marshal(logEntry); err == nil {
		fmt.Fprintln(l.sink.output, string(data))
	}
}

// Fields printed first, in this order, in text format.
var leadingTextFields = []string{"operation_id", "signal", "error", "action", "impact"}

// logText outputs human-readable text logs
func (l *TelemetryLogger) logText(timestamp, level, msg string, fields map[string]interface{}) {
	var fieldStr strings.Builder
	if len(fields) > 0 {
		seen := make(map[string]bool, len(leadingTextFields))
		for _, k := range leadingTextFields {
			if v, ok := fields[k]; ok {
				fmt.Fprintf(&fieldStr, " %s=%q", k, fmt.Sprint(v))
				seen[k] = true
			}
		}
		rest := make([]string, 0, len(fields))
		for k := range fields {
			if !seen[k] {
				rest = append(rest, k)
			}
		}
		sort.Strings(rest)
		for _, k := range rest {
			fmt.Fprintf(&fieldStr, " %s=%v", k, fields[k])
		}
	}

	fmt.Fprintf(l.sink.output, "%s [%s] [%s:%s] %s%s\n",
		timestamp, level, l.component, l.serviceName, msg, fieldStr.String())
}

var levelRank = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
}

// shouldLog reports whether a record at level passes the configured level.
// Unknown levels always log.
func shouldLog(configured, level string) bool {
	current, ok1 := levelRank[configured]
	message, ok2 := levelRank[level]
	if !ok1 || !ok2 {
		return true
	}
	return message >= current
}

// SetLevel dynamically updates the log level
func (l *TelemetryLogger) SetLevel(level string) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = strings.ToUpper(level)
	l.sink.debug = l.sink.level == "DEBUG"
}

// SetFormat dynamically updates the log format
func (l *TelemetryLogger) SetFormat(format string) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.format = strings.ToLower(format)
}

// SetOutput changes the output writer (useful for testing)
func (l *TelemetryLogger) SetOutput(w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.output = w
}

// applyConfig adopts the level and format named in cfg, if any.
func (l *TelemetryLogger) applyConfig(cfg Config) {
	if cfg.LogLevel != "" {
		l.SetLevel(cfg.LogLevel)
	}
	if cfg.LogFormat != "" {
		l.SetFormat(cfg.LogFormat)
	}
}

// GetLogger returns the global telemetry logger instance.
// It derives the service name from the global registry if available.
func GetLogger() *TelemetryLogger {
	telemetryLoggerOnce.Do(func() {
		serviceName := "telemetry"
		if r := GetRegistry(); r != nil && r.config.ServiceName != "" {
			serviceName = r.config.ServiceName
		}
		telemetryLogger = createTelemetryLogger(serviceName)
	})
	return telemetryLogger
}

func withField(fields map[string]interface{}, key string, value interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[key] = value
	return out
}

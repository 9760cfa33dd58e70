package telemetry

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/itsneelabh/gomind-genai/core"
	"gopkg.in/yaml.v3"
)

// DefaultServiceName is used when neither the environment nor an option
// names the service.
const DefaultServiceName = "gomind-genai"

// Exporter kinds
const (
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
	ExporterPrometheus = "prometheus" // metrics only
)

// OTLP transport protocols
const (
	ProtocolHTTP = "http"
	ProtocolGRPC = "grpc"
)

// Config configures the telemetry system
type Config struct {
	// Basic settings
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	Environment    string

	// Export settings. MetricsExporter defaults to Exporter when empty.
	Exporter        string
	MetricsExporter string
	Protocol        string
	Endpoint        string
	Insecure        bool
	Headers         map[string]string
	MetricInterval  time.Duration

	// Output receives stdout exporter data. Defaults to os.Stdout.
	Output io.Writer

	// Sampling configuration
	SamplingRate float64

	// CaptureMessageContent controls whether message text and tool
	// arguments are written into GenAI log event bodies.
	CaptureMessageContent bool

	// Circuit breaker configuration, applied per signal exporter
	CircuitBreaker CircuitConfig

	// Self-logger settings
	LogLevel  string
	LogFormat string
}

// Option configures a Config. Options are applied after environment variables.
type Option func(*Config) error

// Profile represents a pre-configured telemetry profile
type Profile string

const (
	ProfileDevelopment Profile = "development"
	ProfileStaging     Profile = "staging"
	ProfileProduction  Profile = "production"
)

// Profiles contains pre-configured telemetry profiles
var Profiles = map[Profile]Config{
	ProfileDevelopment: {
		Enabled:               true,
		Environment:           "development",
		Exporter:              ExporterOTLP,
		Protocol:              ProtocolHTTP,
		Endpoint:              "localhost:4318",
		Insecure:              true,
		MetricInterval:        10 * time.Second,
		SamplingRate:          1.0,
		CaptureMessageContent: true,
		CircuitBreaker: CircuitConfig{
			Enabled: false,
		},
	},
	ProfileStaging: {
		Enabled:        true,
		Environment:    "staging",
		Exporter:       ExporterOTLP,
		Protocol:       ProtocolHTTP,
		Endpoint:       "otel-collector.staging:4318",
		Insecure:       true,
		MetricInterval: 30 * time.Second,
		SamplingRate:   0.1,
		CircuitBreaker: CircuitConfig{
			Enabled:      true,
			MaxFailures:  10,
			RecoveryTime: 15 * time.Second,
		},
	},
	ProfileProduction: {
		Enabled:        true,
		Environment:    "production",
		Exporter:       ExporterOTLP,
		Protocol:       ProtocolHTTP,
		Endpoint:       "otel-collector.prod:4318", // Override with env var
		MetricInterval: 60 * time.Second,
		SamplingRate:   0.01,
		CircuitBreaker: CircuitConfig{
			Enabled:      true,
			MaxFailures:  10,
			RecoveryTime: 30 * time.Second,
			HalfOpenMax:  5,
		},
	},
}

// UseProfile returns a configuration based on a profile name
func UseProfile(profile Profile) Config {
	if config, ok := Profiles[profile]; ok {
		return config
	}
	// Default to development profile
	return Profiles[ProfileDevelopment]
}

// WithOverrides applies overrides to a config
func (c Config) WithOverrides(overrides Config) Config {
	// Override non-zero values
	if overrides.Enabled {
		c.Enabled = overrides.Enabled
	}
	if overrides.ServiceName != "" {
		c.ServiceName = overrides.ServiceName
	}
	if overrides.ServiceVersion != "" {
		c.ServiceVersion = overrides.ServiceVersion
	}
	if overrides.Environment != "" {
		c.Environment = overrides.Environment
	}
	if overrides.Exporter != "" {
		c.Exporter = overrides.Exporter
	}
	if overrides.MetricsExporter != "" {
		c.MetricsExporter = overrides.MetricsExporter
	}
	if overrides.Protocol != "" {
		c.Protocol = overrides.Protocol
	}
	if overrides.Endpoint != "" {
		c.Endpoint = overrides.Endpoint
	}
	if overrides.Insecure {
		c.Insecure = overrides.Insecure
	}
	if len(overrides.Headers) > 0 {
		c.Headers = overrides.Headers
	}
	if overrides.MetricInterval > 0 {
		c.MetricInterval = overrides.MetricInterval
	}
	if overrides.Output != nil {
		c.Output = overrides.Output
	}
	if overrides.SamplingRate > 0 {
		c.SamplingRate = overrides.SamplingRate
	}
	if overrides.CaptureMessageContent {
		c.CaptureMessageContent = overrides.CaptureMessageContent
	}
	if overrides.CircuitBreaker.Enabled {
		c.CircuitBreaker = overrides.CircuitBreaker
	}
	if overrides.LogLevel != "" {
		c.LogLevel = overrides.LogLevel
	}
	if overrides.LogFormat != "" {
		c.LogFormat = overrides.LogFormat
	}

	return c
}

// NewConfig builds a Config in three layers: the profile named by
// GOMIND_TELEMETRY_PROFILE (development by default), then environment
// variables, then opts. The result is validated.
func NewConfig(opts ...Option) (Config, error) {
	cfg := UseProfile(Profile(os.Getenv("GOMIND_TELEMETRY_PROFILE")))

	if err := cfg.LoadFromEnv(); err != nil {
		return Config{}, fmt.Errorf("failed to load env config: %w", err)
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}

	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return Config{}, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFromEnv overlays environment variables onto c.
//
// GOMIND_TELEMETRY_* variables win over their OTEL_* counterparts.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("GOMIND_TELEMETRY_ENABLED"); v != "" {
		c.Enabled = parseBool(v)
	}
	if v := os.Getenv("GOMIND_TELEMETRY_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	} else if v := os.Getenv("OTEL_SERVICE_NAME"); v != "" {
		c.ServiceName = v
	}
	if v := os.Getenv("GOMIND_TELEMETRY_SERVICE_VERSION"); v != "" {
		c.ServiceVersion = v
	}
	if v := os.Getenv("GOMIND_TELEMETRY_ENVIRONMENT"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("GOMIND_TELEMETRY_ENDPOINT"); v != "" {
		c.Endpoint = v
	} else if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv("GOMIND_TELEMETRY_PROTOCOL"); v != "" {
		c.Protocol = normalizeProtocol(v)
	} else if v := os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL"); v != "" {
		c.Protocol = normalizeProtocol(v)
	}
	if v := os.Getenv("GOMIND_TELEMETRY_EXPORTER"); v != "" {
		c.Exporter = strings.ToLower(v)
	}
	if v := os.Getenv("GOMIND_TELEMETRY_METRICS_EXPORTER"); v != "" {
		c.MetricsExporter = strings.ToLower(v)
	}
	if v := os.Getenv("GOMIND_TELEMETRY_INSECURE"); v != "" {
		c.Insecure = parseBool(v)
	}
	if v := os.Getenv("GOMIND_TELEMETRY_SAMPLING_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("GOMIND_TELEMETRY_SAMPLING_RATE %q: %w", v, core.ErrInvalidConfiguration)
		}
		c.SamplingRate = rate
	}
	if v := os.Getenv("GOMIND_TELEMETRY_METRIC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("GOMIND_TELEMETRY_METRIC_INTERVAL %q: %w", v, core.ErrInvalidConfiguration)
		}
		c.MetricInterval = d
	}
	if v := os.Getenv("OTEL_INSTRUMENTATION_GENAI_CAPTURE_MESSAGE_CONTENT"); v != "" {
		c.CaptureMessageContent = parseBool(v)
	}
	if v := os.Getenv("GOMIND_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("GOMIND_LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	return nil
}

// fileConfig is the on-disk shape of a Config. Pointers distinguish
// "absent" from zero so a file only overrides what it names.
type fileConfig struct {
	Enabled               *bool             `json:"enabled" yaml:"enabled"`
	ServiceName           string            `json:"service_name" yaml:"service_name"`
	ServiceVersion        string            `json:"service_version" yaml:"service_version"`
	Environment           string            `json:"environment" yaml:"environment"`
	Exporter              string            `json:"exporter" yaml:"exporter"`
	MetricsExporter       string            `json:"metrics_exporter" yaml:"metrics_exporter"`
	Protocol              string            `json:"protocol" yaml:"protocol"`
	Endpoint              string            `json:"endpoint" yaml:"endpoint"`
	Insecure              *bool             `json:"insecure" yaml:"insecure"`
	Headers               map[string]string `json:"headers" yaml:"headers"`
	MetricInterval        string            `json:"metric_interval" yaml:"metric_interval"`
	SamplingRate          *float64          `json:"sampling_rate" yaml:"sampling_rate"`
	CaptureMessageContent *bool             `json:"capture_message_content" yaml:"capture_message_content"`
	CircuitBreaker        *struct {
		Enabled      bool   `json:"enabled" yaml:"enabled"`
		MaxFailures  int    `json:"max_failures" yaml:"max_failures"`
		RecoveryTime string `json:"recovery_time" yaml:"recovery_time"`
		HalfOpenMax  int    `json:"half_open_max" yaml:"half_open_max"`
	} `json:"circuit_breaker" yaml:"circuit_breaker"`
	Logging struct {
		Level  string `json:"level" yaml:"level"`
		Format string `json:"format" yaml:"format"`
	} `json:"logging" yaml:"logging"`
}

// LoadFromFile overlays a JSON or YAML file onto c. The format is chosen by
// extension (.json, .yaml, .yml). Durations are Go duration strings.
//
// Example YAML:
//
//	service_name: weather-agent
//	exporter: otlp
//	protocol: grpc
//	endpoint: otel-collector:4317
//	capture_message_content: true
//	circuit_breaker:
//	  enabled: true
//	  max_failures: 5
//	  recovery_time: 20s
func (c *Config) LoadFromFile(path string) error {
	cleanPath := filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(cleanPath))
	if ext != ".json" && ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %s: %w", ext, core.ErrInvalidConfiguration)
	}

	data, err := os.ReadFile(cleanPath) // nosec G304 -- extension is validated
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", cleanPath, err)
	}

	var fc fileConfig
	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("failed to parse JSON config file: %v: %w", err, core.ErrInvalidConfiguration)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return fmt.Errorf("failed to parse YAML config file: %v: %w", err, core.ErrInvalidConfiguration)
		}
	}

	return c.applyFile(fc)
}

func (c *Config) applyFile(fc fileConfig) error {
	if fc.Enabled != nil {
		c.Enabled = *fc.Enabled
	}
	if fc.ServiceName != "" {
		c.ServiceName = fc.ServiceName
	}
	if fc.ServiceVersion != "" {
		c.ServiceVersion = fc.ServiceVersion
	}
	if fc.Environment != "" {
		c.Environment = fc.Environment
	}
	if fc.Exporter != "" {
		c.Exporter = strings.ToLower(fc.Exporter)
	}
	if fc.MetricsExporter != "" {
		c.MetricsExporter = strings.ToLower(fc.MetricsExporter)
	}
	if fc.Protocol != "" {
		c.Protocol = normalizeProtocol(fc.Protocol)
	}
	if fc.Endpoint != "" {
		c.Endpoint = fc.Endpoint
	}
	if fc.Insecure != nil {
		c.Insecure = *fc.Insecure
	}
	if len(fc.Headers) > 0 {
		c.Headers = fc.Headers
	}
	if fc.MetricInterval != "" {
		d, err := time.ParseDuration(fc.MetricInterval)
		if err != nil {
			return fmt.Errorf("metric_interval %q: %w", fc.MetricInterval, core.ErrInvalidConfiguration)
		}
		c.MetricInterval = d
	}
	if fc.SamplingRate != nil {
		c.SamplingRate = *fc.SamplingRate
	}
	if fc.CaptureMessageContent != nil {
		c.CaptureMessageContent = *fc.CaptureMessageContent
	}
	if cb := fc.CircuitBreaker; cb != nil {
		c.CircuitBreaker = CircuitConfig{
			Enabled:     cb.Enabled,
			MaxFailures: cb.MaxFailures,
			HalfOpenMax: cb.HalfOpenMax,
		}
		if cb.RecoveryTime != "" {
			d, err := time.ParseDuration(cb.RecoveryTime)
			if err != nil {
				return fmt.Errorf("circuit_breaker.recovery_time %q: %w", cb.RecoveryTime, core.ErrInvalidConfiguration)
			}
			c.CircuitBreaker.RecoveryTime = d
		}
	}
	if fc.Logging.Level != "" {
		c.LogLevel = fc.Logging.Level
	}
	if fc.Logging.Format != "" {
		c.LogFormat = fc.Logging.Format
	}
	return nil
}

// Validate checks the configuration.
//
// Validation rules:
//   - Service name is required when telemetry is enabled
//   - Exporter must be otlp, stdout or none
//   - Metrics exporter must be otlp, stdout, prometheus or none
//   - Protocol must be http or grpc
//   - Endpoint is required when any signal is exported over OTLP
//   - Sampling rate must be within [0, 1]
func (c Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return &core.OperationError{
			Op:   "telemetry.Config.Validate",
			Kind: core.KindConfig,
			Err:  fmt.Errorf(format+": %w", append(args, core.ErrInvalidConfiguration)...),
		}
	}

	if !c.Enabled {
		return nil
	}
	if c.ServiceName == "" {
		return &core.OperationError{
			Op:   "telemetry.Config.Validate",
			Kind: core.KindConfig,
			Err:  fmt.Errorf("service name is required when telemetry is enabled: %w", core.ErrMissingConfiguration),
		}
	}
	switch c.Exporter {
	case ExporterOTLP, ExporterStdout, ExporterNone:
	default:
		return invalid("unknown exporter %q", c.Exporter)
	}
	switch c.MetricsExporter {
	case "", ExporterOTLP, ExporterStdout, ExporterPrometheus, ExporterNone:
	default:
		return invalid("unknown metrics exporter %q", c.MetricsExporter)
	}
	if c.usesOTLP() {
		switch c.Protocol {
		case ProtocolHTTP, ProtocolGRPC:
		default:
			return invalid("unknown protocol %q", c.Protocol)
		}
		if c.Endpoint == "" {
			return &core.OperationError{
				Op:   "telemetry.Config.Validate",
				Kind: core.KindConfig,
				Err:  fmt.Errorf("endpoint is required for the otlp exporter: %w", core.ErrMissingConfiguration),
			}
		}
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return invalid("sampling rate %v out of range [0, 1]", c.SamplingRate)
	}
	if c.MetricInterval < 0 {
		return invalid("negative metric interval %s", c.MetricInterval)
	}
	return nil
}

// metricsExporter resolves the effective metrics exporter.
func (c Config) metricsExporter() string {
	if c.MetricsExporter == "" {
		return c.Exporter
	}
	return c.MetricsExporter
}

func (c Config) usesOTLP() bool {
	return c.Exporter == ExporterOTLP || c.metricsExporter() == ExporterOTLP
}

// Functional Options

// WithServiceName sets the service.name resource attribute.
func WithServiceName(name string) Option {
	return func(c *Config) error {
		c.ServiceName = name
		return nil
	}
}

// WithServiceVersion sets the service.version resource attribute.
func WithServiceVersion(version string) Option {
	return func(c *Config) error {
		c.ServiceVersion = version
		return nil
	}
}

// WithEnabled turns the whole telemetry system on or off.
func WithEnabled(enabled bool) Option {
	return func(c *Config) error {
		c.Enabled = enabled
		return nil
	}
}

// WithOTLP exports every signal over OTLP using protocol ("http" or "grpc").
func WithOTLP(protocol, endpoint string) Option {
	return func(c *Config) error {
		c.Exporter = ExporterOTLP
		c.Protocol = normalizeProtocol(protocol)
		c.Endpoint = endpoint
		return nil
	}
}

// WithExporter selects the exporter for all signals.
func WithExporter(exporter string) Option {
	return func(c *Config) error {
		c.Exporter = strings.ToLower(exporter)
		return nil
	}
}

// WithStdout exports every signal as JSON to w.
func WithStdout(w io.Writer) Option {
	return func(c *Config) error {
		c.Exporter = ExporterStdout
		c.Output = w
		return nil
	}
}

// WithPrometheus serves metrics through MetricsHandler instead of pushing
// them.
func WithPrometheus() Option {
	return func(c *Config) error {
		c.MetricsExporter = ExporterPrometheus
		return nil
	}
}

// WithInsecure disables TLS for OTLP exporters.
func WithInsecure(insecure bool) Option {
	return func(c *Config) error {
		c.Insecure = insecure
		return nil
	}
}

// WithHeaders adds headers to every OTLP export request.
func WithHeaders(headers map[string]string) Option {
	return func(c *Config) error {
		c.Headers = headers
		return nil
	}
}

// WithMetricInterval sets the push interval of the periodic metric reader.
func WithMetricInterval(d time.Duration) Option {
	return func(c *Config) error {
		if d <= 0 {
			return fmt.Errorf("metric interval must be positive: %w", core.ErrInvalidConfiguration)
		}
		c.MetricInterval = d
		return nil
	}
}

// WithSamplingRate sets the ratio of new traces that are sampled.
func WithSamplingRate(rate float64) Option {
	return func(c *Config) error {
		c.SamplingRate = rate
		return nil
	}
}

// WithCaptureMessageContent controls whether message content is recorded
// in GenAI log events.
func WithCaptureMessageContent(capture bool) Option {
	return func(c *Config) error {
		c.CaptureMessageContent = capture
		return nil
	}
}

// WithCircuitBreaker guards every exporter with a circuit breaker.
func WithCircuitBreaker(maxFailures int, recovery time.Duration) Option {
	return func(c *Config) error {
		c.CircuitBreaker = CircuitConfig{
			Enabled:      true,
			MaxFailures:  maxFailures,
			RecoveryTime: recovery,
		}
		return nil
	}
}

// WithConfigFile overlays a JSON or YAML file.
func WithConfigFile(path string) Option {
	return func(c *Config) error {
		return c.LoadFromFile(path)
	}
}

// parseBool accepts "true", "1", "yes", "on" (case-insensitive) as true.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// normalizeProtocol maps OTEL_EXPORTER_OTLP_PROTOCOL values onto ours.
func normalizeProtocol(p string) string {
	p = strings.ToLower(strings.TrimSpace(p))
	switch p {
	case "grpc":
		return ProtocolGRPC
	case "http", "http/protobuf", "http/json":
		return ProtocolHTTP
	default:
		return p
	}
}

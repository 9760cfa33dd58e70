/*
Package telemetry sets up the OpenTelemetry pipelines that carry GenAI
spans, metrics and log events, and provides the self-logger used by the
instrumentation.

Architecture Overview:

 1. Configuration - profiles, environment variables, JSON/YAML files and
    functional options, validated before use
 2. Provider Layer - SDK tracer, meter and logger providers with OTLP
    (HTTP or gRPC), stdout or Prometheus exporters
 3. Export Guards - every exporter sits behind a circuit breaker; a failed
    export is logged and dropped, never returned to the instrumented call
 4. Registry - installs the providers as OpenTelemetry globals and exposes
    health

Thread Safety:

All public functions are safe for concurrent use. The registry is read
through atomic.Value; exporters are shared by all operations and are
concurrency safe.

Usage:

Initialize once in main:

	cfg, err := telemetry.NewConfig(telemetry.WithServiceName("weather-agent"))
	if err != nil {
		log.Fatal(err)
	}
	if err := telemetry.Initialize(cfg); err != nil {
		log.Fatal(err)
	}
	defer telemetry.Shutdown(context.Background())

	http.HandleFunc("/health/telemetry", telemetry.HealthHandler)
	http.Handle("/metrics", telemetry.MetricsHandler())

Configuration Profiles:

  - ProfileDevelopment: full sampling, message content captured, no circuit breaker
  - ProfileStaging: 10% sampling, circuit breaker enabled
  - ProfileProduction: 1% sampling, circuit breaker with half-open probing
*/
package telemetry

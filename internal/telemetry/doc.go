// Package telemetry wraps OpenTelemetry SDK initialization and provides the
// process-wide TracerProvider and MeterProvider configuration. When telemetry
// is disabled the globals stay noop and nothing connects to external services.
package telemetry

// Package telemetry exposes the logging/metrics facade the controller and
// the debug-dump sink use. It mirrors the shape of
// goa.design/goa-ai's runtime/agent/telemetry package: a small interface
// plus a concrete implementation backed by clue and OpenTelemetry, so the
// runtime never talks to those libraries directly.
package telemetry

import "context"

type (
	// Logger is a structured, leveled logging sink.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records named counters and timers. The controller holds one
	// but records nothing through it.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, seconds float64, tags ...string)
	}
)

// NoopLogger discards everything. Used by tests and by callers that don't
// wire a real sink.
type NoopLogger struct{}

func (NoopLogger) Debug(context.Context, string, ...any) {}
func (NoopLogger) Info(context.Context, string, ...any)  {}
func (NoopLogger) Warn(context.Context, string, ...any)  {}
func (NoopLogger) Error(context.Context, string, ...any) {}

// NoopMetrics discards everything.
type NoopMetrics struct{}

func (NoopMetrics) IncCounter(string, float64, ...string)  {}
func (NoopMetrics) RecordTimer(string, float64, ...string) {}

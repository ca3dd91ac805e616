// Package sink defines the telemetry sink that instrumentation reports to,
// and provides a default implementation on top of go-kit log and opentracing.
package sink

type (
	// Level is the type for report levels
	Level string

	// Attributes are the loggable fields attached to a report
	Attributes map[string]interface{}

	// Span is a scoped tracing context around a unit of host work.
	// End must be called exactly once, on both success and failure paths.
	Span interface {
		End()
	}

	// Sink receives structured reports from instrumentation.
	// Implementations are called from the host's dispatch path and must not
	// panic on well-formed input.
	Sink interface {
		Log(level Level, message string, attrs Attributes)
		Span(name string, attrs Attributes) Span
		Exception(message string)
		WithTags(tags ...string) Sink
	}
)

const (
	// Debug level report
	Debug Level = "debug"
	// Warn level report
	Warn Level = "warn"
	// Error level report
	Error Level = "error"
)

type (
	nopSink struct{}
	nopSpan struct{}
)

func (nopSpan) End() {}

func (nopSink) Log(Level, string, Attributes) {}
func (nopSink) Span(string, Attributes) Span  { return nopSpan{} }
func (nopSink) Exception(string)              {}
func (s nopSink) WithTags(...string) Sink     { return s }

// NewNopSink creates a sink that discards every report, for testing purposes
func NewNopSink() Sink {
	return nopSink{}
}

package sink

import (
	"errors"
	"io"
	"os"
	"strings"

	kitLog "github.com/go-kit/kit/log"
	kitLevel "github.com/go-kit/kit/log/level"
	opentracing "github.com/opentracing/opentracing-go"
)

type (
	// Format is the type for log output format
	Format int

	// ErrorReporter forwards instrumentation-internal failures to an external
	// error tracking service.
	ErrorReporter interface {
		Error(err error)
	}

	// Options contains optional options for the default sink
	Options struct {
		Writer      io.Writer
		Format      Format
		Name        string
		Environment string
		Region      string
		Tracer      opentracing.Tracer
		Reporter    ErrorReporter
	}

	telemetrySink struct {
		logger   kitLog.Logger
		tracer   opentracing.Tracer
		reporter ErrorReporter
		tags     []string
	}

	tracerSpan struct {
		span opentracing.Span
	}
)

const (
	// JSON represents a json log encoding
	JSON Format = iota
	// Logfmt represents logfmt log encoding
	Logfmt
)

// New creates a sink that logs reports through a go-kit logger and opens
// opentracing spans. Without a tracer, spans are no-ops.
func New(opts Options) Sink {
	var logger kitLog.Logger

	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}

	switch opts.Format {
	case Logfmt:
		logger = kitLog.NewLogfmtLogger(opts.Writer)
	case JSON:
		fallthrough
	default:
		logger = kitLog.NewJSONLogger(opts.Writer)
	}

	logger = kitLog.NewSyncLogger(logger)
	logger = kitLog.With(logger, "timestamp", kitLog.DefaultTimestampUTC)

	if opts.Name != "" {
		logger = kitLog.With(logger, "sink", opts.Name)
	}

	if opts.Environment != "" {
		logger = kitLog.With(logger, "environment", opts.Environment)
	}

	if opts.Region != "" {
		logger = kitLog.With(logger, "region", opts.Region)
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = opentracing.NoopTracer{}
	}

	return &telemetrySink{
		logger:   logger,
		tracer:   tracer,
		reporter: opts.Reporter,
	}
}

func (s *telemetrySink) kv(message string, attrs Attributes) []interface{} {
	kv := make([]interface{}, 0, 2*len(attrs)+4)
	kv = append(kv, "message", message)

	if len(s.tags) > 0 {
		kv = append(kv, "tags", strings.Join(s.tags, ","))
	}

	for k, v := range attrs {
		kv = append(kv, k, v)
	}

	return kv
}

// Log reports a message at one of the debug, warn, or error levels.
func (s *telemetrySink) Log(level Level, message string, attrs Attributes) {
	switch level {
	case Debug:
		kitLevel.Debug(s.logger).Log(s.kv(message, attrs)...)
	case Warn:
		kitLevel.Warn(s.logger).Log(s.kv(message, attrs)...)
	case Error:
		kitLevel.Error(s.logger).Log(s.kv(message, attrs)...)
	default:
		kitLevel.Info(s.logger).Log(s.kv(message, attrs)...)
	}
}

// Span opens a tracing span carrying the attributes as tags.
func (s *telemetrySink) Span(name string, attrs Attributes) Span {
	span := s.tracer.StartSpan(name)

	for k, v := range attrs {
		span.SetTag(k, v)
	}

	if len(s.tags) > 0 {
		span.SetTag("tags", strings.Join(s.tags, ","))
	}

	return &tracerSpan{span: span}
}

// Exception reports an instrumentation-internal failure.
func (s *telemetrySink) Exception(message string) {
	kitLevel.Error(s.logger).Log(s.kv(message, nil)...)

	if s.reporter != nil {
		s.reporter.Error(errors.New(message))
	}
}

// WithTags returns a derived sink annotating all subsequent reports with the given tags.
func (s *telemetrySink) WithTags(tags ...string) Sink {
	derived := *s
	derived.tags = append(append([]string{}, s.tags...), tags...)
	return &derived
}

func (t *tracerSpan) End() {
	t.span.Finish()
}

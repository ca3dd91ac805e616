// Package xloop instruments an event loop's callback dispatch.
//
// A loop that wants to be observable exposes the entry point it uses to run
// scheduled callbacks as a swappable function. LogSlowCallbacks captures that
// entry point once, installs a timed wrapper around it, and reports callbacks
// that block the loop for too long. The wrapper is transparent: the original
// entry point is always invoked, its result and panics pass through
// unchanged, and any failure inside the reporting path is swallowed.
package xloop

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/zoobzio/clockz"

	"github.com/probekit/probe/metrics"
	"github.com/probekit/probe/sink"
)

const slowTag = "slow-async"

type (
	// Handle is a scheduled callback pending execution on a loop
	Handle interface {
		// Callback returns the underlying callable or task-bound method.
		Callback() interface{}
	}

	// RunFunc is a loop's entry point for executing a pending handle
	RunFunc func(h Handle) error

	// Loop exposes its callback-run entry point for interception
	Loop interface {
		Entrypoint() RunFunc
		SetEntrypoint(RunFunc)
	}

	// Option sets an optional parameter for the monitor
	Option func(*monitor)

	monitor struct {
		sink     sink.Sink
		clock    clockz.Clock
		slow     time.Duration
		original RunFunc

		durationHist *prometheus.HistogramVec
		slowCounter  *prometheus.CounterVec
	}
)

// WithClock sets the time source used to measure callback durations
func WithClock(clock clockz.Clock) Option {
	return func(m *monitor) {
		m.clock = clock
	}
}

// WithMetrics adds prometheus metrics for callback durations and slow callbacks
func WithMetrics(mf *metrics.Factory) Option {
	return func(m *monitor) {
		m.durationHist = mf.Histogram("loop_callback_duration_seconds", "histogram metric for duration of loop callbacks in seconds", []string{})
		m.slowCounter = mf.Counter("loop_slow_callbacks_total", "counter metric for total number of slow loop callbacks", []string{})
	}
}

// LogSlowCallbacks reports a warning whenever a callback blocks the loop for
// slow or longer. The loop's entry point is captured once and replaced with a
// timed wrapper. The returned restore function swaps the captured original
// back in, returning the loop to its pre-activation dispatch; it is meant to
// be called once.
func LogSlowCallbacks(s sink.Sink, loop Loop, slow time.Duration, opts ...Option) (restore func()) {
	m := &monitor{
		sink:     s.WithTags(slowTag),
		clock:    clockz.RealClock,
		slow:     slow,
		original: loop.Entrypoint(),
	}

	for _, opt := range opts {
		opt(m)
	}

	loop.SetEntrypoint(m.run)

	var once sync.Once
	return func() {
		once.Do(func() {
			loop.SetEntrypoint(m.original)
		})
	}
}

func (m *monitor) run(h Handle) error {
	start := m.clock.Now()
	err := m.original(h)
	elapsed := m.clock.Now().Sub(start)

	if m.durationHist != nil {
		m.durationHist.WithLabelValues().Observe(elapsed.Seconds())
	}

	if elapsed >= m.slow {
		m.report(h, elapsed)
	}

	return err
}

// report must never crash the loop, no matter what the callback looks like.
func (m *monitor) report(h Handle, elapsed time.Duration) {
	defer func() {
		_ = recover()
	}()

	if m.slowCounter != nil {
		m.slowCounter.WithLabelValues().Inc()
	}

	d := Describe(h.Callback())
	seconds := elapsed.Seconds()

	attrs := sink.Attributes{
		"name":     d.Name,
		"duration": seconds,
	}
	if d.Location != nil {
		attrs["code.function"] = d.Location.Function
		attrs["code.filepath"] = d.Location.File
		if d.Location.Line > 0 {
			attrs["code.lineno"] = d.Location.Line
		}
	}

	m.sink.Log(sink.Warn, fmt.Sprintf("Async %s blocked for %.3f seconds", d.Name, seconds), attrs)
}

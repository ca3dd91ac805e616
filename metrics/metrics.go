// Package metrics creates prometheus metrics with consistent naming and
// registration settings.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	defaultBuckets   = []float64{0.001, 0.010, 0.100, 0.500, 1.000, 5.000}
	defaultQuantiles = map[float64]float64{
		0.5:  0.05,
		0.9:  0.01,
		0.99: 0.001,
	}
)

type (
	// FactoryOptions contains optional options for creating a Factory
	FactoryOptions struct {
		Namespace  string
		Buckets    []float64
		Quantiles  map[float64]float64
		Registerer prometheus.Registerer
	}

	// Factory is used for creating new metrics with consistent settings
	Factory struct {
		namespace  string
		buckets    []float64
		quantiles  map[float64]float64
		registerer prometheus.Registerer
	}
)

// NewFactory creates a new instance of Factory
func NewFactory(opts FactoryOptions) *Factory {
	if len(opts.Buckets) == 0 {
		opts.Buckets = defaultBuckets
	}

	if len(opts.Quantiles) == 0 {
		opts.Quantiles = defaultQuantiles
	}

	if opts.Registerer == nil {
		opts.Registerer = prometheus.DefaultRegisterer
	}

	return &Factory{
		namespace:  sanitize(opts.Namespace),
		buckets:    opts.Buckets,
		quantiles:  opts.Quantiles,
		registerer: opts.Registerer,
	}
}

func sanitize(name string) string {
	name = strings.Replace(name, " ", "_", -1)
	name = strings.Replace(name, "-", "_", -1)

	return name
}

// Counter creates a new counter metric
func (f *Factory) Counter(name, description string, labels []string) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: f.namespace,
		Name:      sanitize(name),
		Help:      description,
	}, labels)

	f.registerer.MustRegister(counter)

	return counter
}

// Gauge creates a new gauge metric
func (f *Factory) Gauge(name, description string, labels []string) *prometheus.GaugeVec {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: f.namespace,
		Name:      sanitize(name),
		Help:      description,
	}, labels)

	f.registerer.MustRegister(gauge)

	return gauge
}

// Histogram creates a new histogram metric
func (f *Factory) Histogram(name, description string, labels []string) *prometheus.HistogramVec {
	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: f.namespace,
		Name:      sanitize(name),
		Help:      description,
		Buckets:   f.buckets,
	}, labels)

	f.registerer.MustRegister(histogram)

	return histogram
}

// Summary creates a new summary metric
func (f *Factory) Summary(name, description string, labels []string) *prometheus.SummaryVec {
	summary := prometheus.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:  f.namespace,
		Name:       sanitize(name),
		Help:       description,
		Objectives: f.quantiles,
	}, labels)

	f.registerer.MustRegister(summary)

	return summary
}

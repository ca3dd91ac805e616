// Package trace creates Jaeger tracers for the default sink.
package trace

import (
	"fmt"
	"io"
	"time"

	kitLog "github.com/go-kit/kit/log"
	kitLevel "github.com/go-kit/kit/log/level"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus"
	jconfig "github.com/uber/jaeger-client-go/config"
	jmetrics "github.com/uber/jaeger-lib/metrics"
	jprometheus "github.com/uber/jaeger-lib/metrics/prometheus"
)

// jaegerLogger implements jaeger.Logger on a go-kit logger
type jaegerLogger struct {
	logger kitLog.Logger
}

func (l *jaegerLogger) Error(msg string) {
	kitLevel.Error(l.logger).Log("message", msg)
}

func (l *jaegerLogger) Infof(msg string, args ...interface{}) {
	kitLevel.Info(l.logger).Log("message", fmt.Sprintf(msg, args...))
}

// ConstSampler creates a constant Jaeger sampler
//   enabled true will report all traces
//   enabled false will skip all traces
func ConstSampler(enabled bool) *jconfig.SamplerConfig {
	var param float64
	if enabled {
		param = 1
	}

	return &jconfig.SamplerConfig{
		Type:  "const",
		Param: param,
	}
}

// ProbabilisticSampler creates a probabilistic Jaeger sampler
//   probability is between 0 and 1
func ProbabilisticSampler(probability float64) *jconfig.SamplerConfig {
	return &jconfig.SamplerConfig{
		Type:  "probabilistic",
		Param: probability,
	}
}

// RemoteSampler creates a Jaeger sampler pulling remote sampling strategies
//   probability is the initial probability before a remote strategy is received
//   serverURL is the address of the sampling server
//   interval specifies the rate of polling remote sampling strategies
func RemoteSampler(probability float64, serverURL string, interval time.Duration) *jconfig.SamplerConfig {
	return &jconfig.SamplerConfig{
		Type:                    "remote",
		Param:                   probability,
		SamplingServerURL:       serverURL,
		SamplingRefreshInterval: interval,
	}
}

// AgentReporter creates a Jaeger reporter reporting to jaeger-agent
func AgentReporter(agentAddr string, logSpans bool) *jconfig.ReporterConfig {
	return &jconfig.ReporterConfig{
		LocalAgentHostPort: agentAddr,
		LogSpans:           logSpans,
	}
}

// CollectorReporter creates a Jaeger reporter reporting to jaeger-collector
func CollectorReporter(collectorAddr string, logSpans bool) *jconfig.ReporterConfig {
	return &jconfig.ReporterConfig{
		CollectorEndpoint: collectorAddr,
		LogSpans:          logSpans,
	}
}

// Options contains optional options for Tracer
type Options struct {
	Name     string
	Sampler  *jconfig.SamplerConfig
	Reporter *jconfig.ReporterConfig
	Logger   kitLog.Logger
	PromReg  prometheus.Registerer
}

// NewTracer creates a new tracer
func NewTracer(opts Options) (opentracing.Tracer, io.Closer, error) {
	if opts.Name == "" {
		opts.Name = "tracer"
	}

	if opts.Sampler == nil {
		opts.Sampler = ConstSampler(true)
	}

	if opts.Reporter == nil {
		opts.Reporter = AgentReporter("localhost:6831", false)
	}

	jgOpts := []jconfig.Option{}
	jgConfig := &jconfig.Configuration{
		ServiceName: opts.Name,
		Sampler:     opts.Sampler,
		Reporter:    opts.Reporter,
	}

	if opts.Logger != nil {
		jgOpts = append(jgOpts, jconfig.Logger(&jaegerLogger{opts.Logger}))
	}

	if opts.PromReg != nil {
		factory := jprometheus.New(jprometheus.WithRegisterer(opts.PromReg)).Namespace(jmetrics.NSOptions{Name: opts.Name})
		jgOpts = append(jgOpts, jconfig.Metrics(factory))
	}

	return jgConfig.NewTracer(jgOpts...)
}

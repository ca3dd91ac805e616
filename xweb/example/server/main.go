package main

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/probekit/probe/metrics"
	"github.com/probekit/probe/sink"
	"github.com/probekit/probe/trace"
	"github.com/probekit/probe/xweb"
)

const port = ":10080"

func main() {
	// Create a tracer
	tracer, closer, _ := trace.NewTracer(trace.Options{Name: "server"})
	defer closer.Close()

	// Create a sink
	s := sink.New(sink.Options{
		Name:        "server",
		Environment: "dev",
		Region:      "us-east-1",
		Tracer:      tracer,
	})

	// Create a metrics factory
	mf := metrics.NewFactory(metrics.FactoryOptions{Namespace: "demo"})

	app := newDemoApp()
	app.Handle("GET", "/healthz", "health", health)
	app.Handle("GET", "/items/{id}", "get-item", getItem)

	excluded, _ := xweb.ExcludeURLs(`/healthz`)

	// Attach the pipeline interceptor
	uninstrument := xweb.Instrument(s, app,
		xweb.WithExcludedURLs(excluded),
		xweb.WithMetrics(mf),
	)
	defer uninstrument()

	http.Handle("/", app)
	http.Handle("/metrics", promhttp.Handler())
	panic(http.ListenAndServe(port, nil))
}

func health(ctx context.Context, args xweb.Values) (interface{}, error) {
	return map[string]string{"status": "ok"}, nil
}

func getItem(ctx context.Context, args xweb.Values) (interface{}, error) {
	return map[string]interface{}{
		"id":   args["id"],
		"name": "greeting",
	}, nil
}

// Package xweb instruments a web framework's request pipeline.
//
// A framework that wants to be observable exposes its two per-request
// stages, dependency resolution and endpoint invocation, as swappable
// functions behind the App interface. Instrument captures both, installs
// wrappers that report resolved argument values and open a tracing span
// around endpoint execution, and returns a handle that makes the wrappers
// inert again. The wrappers stay installed once made: in-flight requests may
// still be inside them, so deactivation only flips a flag.
package xweb

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/probekit/probe/metrics"
	"github.com/probekit/probe/sink"
)

const webTag = "web"

type (
	// Values maps resolved argument names to their values
	Values map[string]interface{}

	// ArgValues is a bundle of resolved argument values handed to the
	// invoker. Hosts should only rely on Map: the interceptor substitutes
	// its own marked implementation for requests it has processed.
	ArgValues interface {
		Map() Values
	}

	// Resolution is the outcome of the dependency-resolution stage.
	// Errors are validation errors belonging to the request, not stage
	// failures.
	Resolution struct {
		Values ArgValues
		Errors []error
	}

	// Endpoint identifies the matched handler about to be invoked.
	// The interceptor treats it as opaque.
	Endpoint interface{}

	// ResolveFunc is the host's dependency-resolution entry point
	ResolveFunc func(ctx context.Context, req Request) (Resolution, error)

	// InvokeFunc is the host's endpoint-invocation entry point
	InvokeFunc func(ctx context.Context, endpoint Endpoint, values ArgValues) (interface{}, error)

	// App exposes the two pipeline stages for interception
	App interface {
		Resolver() ResolveFunc
		SetResolver(ResolveFunc)
		Invoker() InvokeFunc
		SetInvoker(InvokeFunc)
	}

	// Route is a matched route
	Route interface {
		Path() string
		Name() string
		OperationID() string
	}

	// Request is the incoming request (or streaming connection) being
	// resolved
	Request interface {
		App() App
		Method() string
		URL() string
		// Route returns nil when no route was matched.
		Route() Route
		// Streaming reports whether this is a streaming connection
		// rather than a plain request/response exchange.
		Streaming() bool
	}

	// BackgroundTasks queues work the host runs after the response is
	// sent. Resolved values of this shape are framework plumbing, not
	// user data.
	BackgroundTasks interface {
		AddTask(task func())
	}

	// SecurityScopes carries the security scopes required by an endpoint
	SecurityScopes interface {
		Scopes() []string
	}

	// AttributesMapper lets callers reshape the reported attributes per
	// request. Returning nil suppresses the report for that request.
	AttributesMapper func(req Request, attrs sink.Attributes) sink.Attributes

	// Instrumentor is an auto-instrumentation layer underneath this one.
	// It is told to uninstrument the app on deactivation.
	Instrumentor interface {
		InstrumentApp(app App)
		UninstrumentApp(app App)
	}

	// Option sets an optional parameter for the interceptor
	Option func(*interceptor)
)

// instrumented marks a value bundle already seen by the resolver wrapper and
// remembers which request produced it, so the invoker wrapper can recognize
// the request without any shared per-request state.
type instrumented struct {
	values  Values
	request Request
}

func (iv *instrumented) Map() Values {
	return iv.values
}

// Map implements ArgValues
func (v Values) Map() Values {
	return v
}

// WithAttributesMapper sets the mapper applied to each request's attribute
// bundle before it is reported
func WithAttributesMapper(mapper AttributesMapper) Option {
	return func(in *interceptor) {
		if mapper != nil {
			in.mapper = mapper
		}
	}
}

// WithExcludedURLs sets the predicate deciding which request URLs are not
// reported
func WithExcludedURLs(excluded func(url string) bool) Option {
	return func(in *interceptor) {
		if excluded != nil {
			in.excluded = excluded
		}
	}
}

// WithInstrumentor layers the interceptor on top of a base
// auto-instrumentation layer
func WithInstrumentor(base Instrumentor) Option {
	return func(in *interceptor) {
		in.base = base
	}
}

// WithMetrics counts argument reports by method, route, and level
func WithMetrics(mf *metrics.Factory) Option {
	return func(in *interceptor) {
		in.reportCounter = mf.Counter("pipeline_reports_total", "counter metric for total number of pipeline argument reports", []string{"method", "route", "level"})
	}
}

type interceptor struct {
	sink     sink.Sink
	app      App
	mapper   AttributesMapper
	excluded func(url string) bool
	base     Instrumentor
	active   atomic.Bool

	originalResolve ResolveFunc
	originalInvoke  InvokeFunc

	reportCounter *prometheus.CounterVec
}

// Instrument attaches the interceptor to the app's pipeline stages and
// returns the deactivation handle. Activating again layers a new interceptor
// with its own flag over the existing wrappers; the wrappers themselves are
// never removed, so repeated activate/deactivate cycles cannot race
// reentrant in-flight calls against an unpatch.
func Instrument(s sink.Sink, app App, opts ...Option) (uninstrument func()) {
	in := &interceptor{
		sink: s.WithTags(webTag),
		app:  app,
		mapper: func(_ Request, attrs sink.Attributes) sink.Attributes {
			return attrs
		},
		excluded: func(string) bool {
			return false
		},
	}

	for _, opt := range opts {
		opt(in)
	}

	in.originalResolve = app.Resolver()
	in.originalInvoke = app.Invoker()
	app.SetResolver(in.resolve)
	app.SetInvoker(in.invoke)

	if in.base != nil {
		in.base.InstrumentApp(app)
	}

	in.active.Store(true)

	return func() {
		in.active.Store(false)
		if in.base != nil {
			in.base.UninstrumentApp(app)
		}
	}
}

// instrumenting reports whether this request should be reported at all.
func (in *interceptor) instrumenting(req Request) bool {
	return in.active.Load() && req.App() == in.app && !in.excluded(req.URL())
}

// resolve wraps the dependency-resolution stage. The original always runs
// first and its outcome is never changed, except that for plain requests the
// resolved values are substituted with a marked bundle the invoker wrapper
// can recognize.
func (in *interceptor) resolve(ctx context.Context, req Request) (Resolution, error) {
	result, err := in.originalResolve(ctx, req)
	if err != nil {
		return result, err
	}

	if !in.instrumenting(req) {
		return result, nil
	}

	return in.observe(req, result), nil
}

// observe builds and reports the attribute bundle for a resolved request.
// It never fails the request: any panic in here is reported through the sink
// as an instrumentation failure.
func (in *interceptor) observe(req Request, result Resolution) (out Resolution) {
	out = result

	defer func() {
		if recover() != nil {
			in.sink.Exception("error logging endpoint arguments")
		}
	}()

	// Shallow copies, so the mapper can safely modify them.
	values := Values{}
	if result.Values != nil {
		for k, v := range result.Values.Map() {
			if frameworkInternal(v) {
				continue
			}
			values[k] = v
		}
	}

	errs := make([]error, len(result.Errors))
	copy(errs, result.Errors)

	attrs := sink.Attributes{
		"values": values,
		"errors": errs,
	}

	// Mark the bundle so the invoker wrapper can recognize this request.
	if !req.Streaming() && result.Values != nil {
		out = Resolution{
			Values: &instrumented{values: result.Values.Map(), request: req},
			Errors: result.Errors,
		}
	}

	attrs = in.mapper(req, attrs)
	if attrs == nil {
		// The mapper opted this request out.
		return out
	}

	// The mapper may have removed or replaced the errors.
	level := sink.Debug
	if truthy(attrs["errors"]) {
		level = sink.Error
	}

	// Injected after the mapper so that the mapper's view stays clean.
	route := req.Route()
	if !req.Streaming() {
		attrs["http.method"] = req.Method()
	}
	if route != nil {
		attrs["http.route"] = route.Path()
		attrs["route.name"] = route.Name()
		if id := route.OperationID(); id != "" {
			attrs["route.operation_id"] = id
		}
	}

	if in.reportCounter != nil {
		path := ""
		if route != nil {
			path = route.Path()
		}
		in.reportCounter.WithLabelValues(req.Method(), path, string(level)).Inc()
	}

	in.sink.Log(level, "endpoint arguments", attrs)

	return out
}

// invoke wraps the endpoint-invocation stage. A span is opened only for
// value bundles the resolver wrapper marked for this app; it closes before
// this stage returns, and invocation errors and panics propagate unchanged
// through it.
func (in *interceptor) invoke(ctx context.Context, endpoint Endpoint, values ArgValues) (interface{}, error) {
	if iv, ok := values.(*instrumented); ok && iv.request.App() == in.app {
		path := ""
		if route := iv.request.Route(); route != nil {
			path = route.Path()
		}

		span := in.sink.Span(fmt.Sprintf("%s %s endpoint function", iv.request.Method(), path), sink.Attributes{
			"method": iv.request.Method(),
			"route":  path,
		})
		defer span.End()
	}

	return in.originalInvoke(ctx, endpoint, values)
}

// frameworkInternal reports whether a resolved value is framework plumbing
// rather than user data.
func frameworkInternal(v interface{}) bool {
	switch v.(type) {
	case Request, http.ResponseWriter, BackgroundTasks, SecurityScopes:
		return true
	}

	return false
}

// truthy mirrors how a mapper-returned attribute is judged present: empty
// collections and nil values do not count.
func truthy(v interface{}) bool {
	if v == nil {
		return false
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array, reflect.String:
		return rv.Len() > 0
	case reflect.Bool:
		return rv.Bool()
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	default:
		return true
	}
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/probekit/probe/xweb"
)

// handlerFunc is the shape of this demo framework's endpoint functions.
type handlerFunc func(ctx context.Context, args xweb.Values) (interface{}, error)

// demoApp is a toy host framework built on gorilla/mux. It resolves path
// variables into endpoint arguments and invokes handlers through the two
// swappable pipeline stages, so the interceptor can observe both.
type demoApp struct {
	router  *mux.Router
	resolve xweb.ResolveFunc
	invoke  xweb.InvokeFunc
}

func newDemoApp() *demoApp {
	app := &demoApp{router: mux.NewRouter()}
	app.resolve = app.resolveArguments
	app.invoke = invokeEndpoint
	return app
}

func (a *demoApp) Resolver() xweb.ResolveFunc {
	return a.resolve
}

func (a *demoApp) SetResolver(fn xweb.ResolveFunc) {
	a.resolve = fn
}

func (a *demoApp) Invoker() xweb.InvokeFunc {
	return a.invoke
}

func (a *demoApp) SetInvoker(fn xweb.InvokeFunc) {
	a.invoke = fn
}

// resolveArguments is the host's own dependency-resolution stage. Path
// variables become endpoint arguments and numeric ones are validated.
func (a *demoApp) resolveArguments(ctx context.Context, req xweb.Request) (xweb.Resolution, error) {
	dreq := req.(*demoRequest)

	values := xweb.Values{"request": dreq}
	var errs []error

	for k, v := range mux.Vars(dreq.r) {
		if k == "id" {
			id, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("id must be an integer: %q", v))
				continue
			}
			values[k] = id
			continue
		}
		values[k] = v
	}

	return xweb.Resolution{Values: values, Errors: errs}, nil
}

func invokeEndpoint(ctx context.Context, endpoint xweb.Endpoint, values xweb.ArgValues) (interface{}, error) {
	return endpoint.(handlerFunc)(ctx, values.Map())
}

type demoRoute struct {
	route *mux.Route
}

func (r *demoRoute) Path() string {
	path, _ := r.route.GetPathTemplate()
	return path
}

func (r *demoRoute) Name() string {
	return r.route.GetName()
}

func (r *demoRoute) OperationID() string {
	return ""
}

type demoRequest struct {
	app   *demoApp
	r     *http.Request
	route xweb.Route
}

func (d *demoRequest) App() xweb.App {
	return d.app
}

func (d *demoRequest) Method() string {
	return d.r.Method
}

func (d *demoRequest) URL() string {
	return d.r.URL.String()
}

func (d *demoRequest) Route() xweb.Route {
	return d.route
}

func (d *demoRequest) Streaming() bool {
	return false
}

// Handle registers a route whose handler runs through the pipeline stages.
func (a *demoApp) Handle(method, path, name string, endpoint handlerFunc) {
	a.router.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		// Ensure every request has a unique id
		requestID := r.Header.Get("Request-Id")
		if requestID == "" {
			requestID = uuid.New().String()
			r.Header.Set("Request-Id", requestID)
		}
		w.Header().Set("Request-Id", requestID)

		req := &demoRequest{app: a, r: r}
		if route := mux.CurrentRoute(r); route != nil {
			req.route = &demoRoute{route: route}
		}

		res, err := a.resolve(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if len(res.Errors) > 0 {
			http.Error(w, res.Errors[0].Error(), http.StatusUnprocessableEntity)
			return
		}

		out, err := a.invoke(r.Context(), endpoint, res.Values)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}).Methods(method).Name(name)
}

func (a *demoApp) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Package report forwards instrumentation-internal failures to Rollbar.
package report

import (
	"fmt"
	"os"

	rollbar "github.com/rollbar/rollbar-go"
)

type (
	rollbarClient interface {
		ErrorWithStackSkip(level string, err error, skip int)
		ErrorWithStackSkipWithExtras(level string, err error, skip int, extras map[string]interface{})
		Wait()
	}

	// Options contains optional options for Reporter
	Options struct {
		Token       string
		Environment string
		CodeVersion string
		ProjectURL  string
		SkipDepth   int
	}

	// Reporter reports errors raised inside instrumentation to Rollbar
	Reporter struct {
		client    rollbarClient
		skipDepth int
	}
)

// NewReporter creates a new instance of Reporter
func NewReporter(opts Options) *Reporter {
	hostname, _ := os.Hostname()
	client := rollbar.NewAsync(opts.Token, opts.Environment, opts.CodeVersion, hostname, opts.ProjectURL)

	return &Reporter{
		client:    client,
		skipDepth: opts.SkipDepth,
	}
}

// Error reports an error
func (r *Reporter) Error(err error) {
	r.client.ErrorWithStackSkip(rollbar.ERR, err, r.skipDepth)
}

// ErrorWithMetadata reports an error with extra metadata
func (r *Reporter) ErrorWithMetadata(err error, metadata map[string]interface{}) {
	r.client.ErrorWithStackSkipWithExtras(rollbar.ERR, err, r.skipDepth, metadata)
}

// OnPanic reports a panic and re-panics. It should be used with defer.
func (r *Reporter) OnPanic() {
	if e := recover(); e != nil {
		err := fmt.Errorf("panic occurred: %v", e)
		r.client.ErrorWithStackSkip(rollbar.CRIT, err, r.skipDepth+2)
		r.client.Wait()
		panic(e)
	}
}

// Wait blocks until all pending reports are delivered
func (r *Reporter) Wait() {
	r.client.Wait()
}

package xloop

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeCoroutine struct {
	live  bool
	frame Location
	code  Location
}

func (c *fakeCoroutine) Frame() (Location, bool) {
	return c.frame, c.live
}

func (c *fakeCoroutine) Code() Location {
	return c.code
}

type fakeTask struct {
	name string
	coro Coroutine
}

func (t *fakeTask) Name() string {
	return t.name
}

func (t *fakeTask) Coroutine() Coroutine {
	return t.coro
}

type taskBoundCallback struct {
	task Task
}

func (c *taskBoundCallback) Task() Task {
	return c.task
}

type wrappedCallback struct {
	inner interface{}
}

func (w *wrappedCallback) Unwrap() interface{} {
	return w.inner
}

type selfWrapper struct{}

func (w *selfWrapper) Unwrap() interface{} {
	return w
}

type fullNamedCallback struct{}

func (fullNamedCallback) FullName() string {
	return "handlers.Items.fetch"
}

type namedCallback struct{}

func (namedCallback) Name() string {
	return "fetch"
}

func sampleCallback() {}

func TestDescribeTaskBound(t *testing.T) {
	tests := []struct {
		name             string
		task             *fakeTask
		expectedName     string
		expectedLocation *Location
	}{
		{
			name: "SuspendedCoroutine",
			task: &fakeTask{
				name: "fetch-items",
				coro: &fakeCoroutine{
					live:  true,
					frame: Location{Function: "handlers.fetchItems", File: "handlers/items.go", Line: 42},
					code:  Location{Function: "handlers.fetchItems", File: "handlers/items.go", Line: 30},
				},
			},
			expectedName:     "task fetch-items (handlers.fetchItems)",
			expectedLocation: &Location{Function: "handlers.fetchItems", File: "handlers/items.go", Line: 42},
		},
		{
			name: "FinishedCoroutine",
			task: &fakeTask{
				name: "fetch-items",
				coro: &fakeCoroutine{
					live: false,
					code: Location{Function: "handlers.fetchItems", File: "handlers/items.go", Line: 30},
				},
			},
			expectedName: "task fetch-items (handlers.fetchItems)",
			// A finished coroutine has a function and file but no current line.
			expectedLocation: &Location{Function: "handlers.fetchItems", File: "handlers/items.go"},
		},
		{
			name: "NoCoroutine",
			task: &fakeTask{
				name: "fetch-items",
			},
			expectedName:     "task fetch-items",
			expectedLocation: nil,
		},
		{
			name: "AnonymousCoroutine",
			task: &fakeTask{
				name: "fetch-items",
				coro: &fakeCoroutine{
					live:  true,
					frame: Location{File: "handlers/items.go", Line: 42},
				},
			},
			expectedName:     "task fetch-items",
			expectedLocation: &Location{File: "handlers/items.go", Line: 42},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := Describe(&taskBoundCallback{task: tc.task})

			assert.Equal(t, tc.expectedName, d.Name)
			assert.Equal(t, tc.expectedLocation, d.Location)
		})
	}
}

func TestDescribePlainFunction(t *testing.T) {
	d := Describe(sampleCallback)

	assert.True(t, strings.HasPrefix(d.Name, "callback "))
	assert.Contains(t, d.Name, "sampleCallback")
	assert.NotNil(t, d.Location)
	assert.Contains(t, d.Location.File, "descriptor_test.go")
	assert.Greater(t, d.Location.Line, 0)
}

func TestDescribeNamedCallbacks(t *testing.T) {
	d := Describe(fullNamedCallback{})
	assert.Equal(t, "callback handlers.Items.fetch", d.Name)
	assert.Nil(t, d.Location)

	d = Describe(namedCallback{})
	assert.Equal(t, "callback fetch", d.Name)
	assert.Nil(t, d.Location)
}

func TestDescribeWrapped(t *testing.T) {
	d := Describe(&wrappedCallback{inner: sampleCallback})

	assert.Contains(t, d.Name, "sampleCallback")
	assert.NotNil(t, d.Location)
	assert.Contains(t, d.Location.File, "descriptor_test.go")

	// A chain of wrappers resolves to the innermost callable.
	d = Describe(&wrappedCallback{inner: &wrappedCallback{inner: namedCallback{}}})
	assert.Equal(t, "callback fetch", d.Name)

	// A wrapper that unwraps to itself terminates.
	assert.NotPanics(t, func() {
		d = Describe(&selfWrapper{})
	})
	assert.True(t, strings.HasPrefix(d.Name, "callback "))

	// A wrapper that unwraps to nil keeps the wrapper itself.
	d = Describe(&wrappedCallback{inner: nil})
	assert.True(t, strings.HasPrefix(d.Name, "callback "))
}

func TestDescribeFallback(t *testing.T) {
	tests := []struct {
		name     string
		callback interface{}
	}{
		{"Nil", nil},
		{"Struct", struct{}{}},
		{"Int", 42},
		{"NilFunc", (func())(nil)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var d Descriptor
			assert.NotPanics(t, func() {
				d = Describe(tc.callback)
			})
			assert.True(t, strings.HasPrefix(d.Name, "callback "))
			assert.NotEqual(t, "callback ", d.Name)
		})
	}
}

func TestSafeString(t *testing.T) {
	assert.NotEmpty(t, safeString(nil))
	assert.NotEmpty(t, safeString(""))
	assert.Equal(t, "42", safeString(42))
}

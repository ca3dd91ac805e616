package xloop

import (
	"fmt"
	"reflect"
	"runtime"
)

// Callbacks scheduled on a loop are opaque: the shapes below are the ones the
// resolver recognizes. Anything else falls through to a string representation
// that never fails.

type (
	// Location describes where in user code a callback originates
	Location struct {
		Function string
		File     string
		Line     int
	}

	// Descriptor is the human-readable attribution of a callback
	Descriptor struct {
		Name     string
		Location *Location
	}

	// Task is a named unit of scheduled coroutine-style execution
	Task interface {
		Name() string
		Coroutine() Coroutine
	}

	// Coroutine is the resumable function a task drives
	Coroutine interface {
		// Frame reports the current suspension point. ok is false once the
		// coroutine has finished and no longer has a current line.
		Frame() (loc Location, ok bool)
		// Code reports the static location of the coroutine's function.
		Code() Location
	}

	// TaskCallback marks a callback bound to the task that scheduled it.
	// Loops whose tasks resume coroutines implement this on the bound
	// method they put on a Handle.
	TaskCallback interface {
		Task() Task
	}

	// Wrapper is implemented by decorated callables that expose the
	// callable they wrap
	Wrapper interface {
		Unwrap() interface{}
	}

	fullNamer interface {
		FullName() string
	}

	namer interface {
		Name() string
	}
)

// Wrapper chains are followed to the innermost callable, with a bound in
// case a wrapper unwraps to itself.
const maxUnwrapDepth = 32

// Describe resolves a human-readable name and source location for an opaque
// callback. Task-bound callbacks are attributed to their task and its
// coroutine's current or static location; plain callables are attributed
// through the runtime symbol table. Describe has no side effects, but callers
// on a hot path should still guard it: the task and coroutine accessors
// belong to the host and may misbehave.
func Describe(callback interface{}) Descriptor {
	if tc, ok := callback.(TaskCallback); ok {
		return describeTask(tc.Task())
	}

	return describeCallable(callback)
}

func describeTask(task Task) Descriptor {
	d := Descriptor{Name: fmt.Sprintf("task %s", task.Name())}

	coro := task.Coroutine()
	if coro == nil {
		return d
	}

	if loc, ok := coro.Frame(); ok {
		d.Location = &loc
	} else {
		// The coroutine has finished, so there is no current line.
		code := coro.Code()
		d.Location = &Location{Function: code.Function, File: code.File}
	}

	if d.Location.Function != "" {
		d.Name = fmt.Sprintf("%s (%s)", d.Name, d.Location.Function)
	}

	return d
}

func describeCallable(callback interface{}) Descriptor {
	callback = unwrap(callback)

	d := Descriptor{Location: funcLocation(callback)}

	var name string
	if fn, ok := callback.(fullNamer); ok {
		name = fn.FullName()
	}
	if name == "" {
		if n, ok := callback.(namer); ok {
			name = n.Name()
		}
	}
	if name == "" && d.Location != nil {
		name = d.Location.Function
	}
	if name == "" {
		name = safeString(callback)
	}

	d.Name = fmt.Sprintf("callback %s", name)
	return d
}

func unwrap(callback interface{}) interface{} {
	for i := 0; i < maxUnwrapDepth; i++ {
		w, ok := callback.(Wrapper)
		if !ok {
			return callback
		}

		inner := w.Unwrap()
		if inner == nil {
			return callback
		}
		callback = inner
	}

	return callback
}

// funcLocation reads the runtime symbol table for plain functions.
func funcLocation(callback interface{}) *Location {
	v := reflect.ValueOf(callback)
	if !v.IsValid() || v.Kind() != reflect.Func || v.IsNil() {
		return nil
	}

	fn := runtime.FuncForPC(v.Pointer())
	if fn == nil {
		return nil
	}

	file, line := fn.FileLine(fn.Entry())

	return &Location{
		Function: fn.Name(),
		File:     file,
		Line:     line,
	}
}

// safeString formats a value without ever panicking.
func safeString(v interface{}) (s string) {
	defer func() {
		if recover() != nil {
			s = "<unprintable callback>"
		}
	}()

	s = fmt.Sprintf("%v", v)
	if s == "" {
		s = "<unprintable callback>"
	}

	return s
}

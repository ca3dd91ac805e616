package main

import (
	"time"

	"github.com/probekit/probe/sink"
	"github.com/probekit/probe/xloop"
)

// A minimal single-goroutine callback loop implementing the xloop contracts.

type handle struct {
	callback interface{}
}

func (h *handle) Callback() interface{} {
	return h.callback
}

type loop struct {
	entry xloop.RunFunc
	queue chan *handle
}

func newLoop() *loop {
	l := &loop{queue: make(chan *handle, 16)}
	l.entry = func(h xloop.Handle) error {
		switch cb := h.Callback().(type) {
		case func():
			cb()
		case *taskStep:
			cb.run()
		}
		return nil
	}
	return l
}

func (l *loop) Entrypoint() xloop.RunFunc {
	return l.entry
}

func (l *loop) SetEntrypoint(fn xloop.RunFunc) {
	l.entry = fn
}

// CallSoon schedules a callback to run on the loop.
func (l *loop) CallSoon(callback func()) {
	l.queue <- &handle{callback: callback}
}

// CallTask schedules one resumption step of a task.
func (l *loop) CallTask(t *task) {
	l.queue <- &handle{callback: &taskStep{task: t}}
}

// Run executes the next n scheduled callbacks.
func (l *loop) Run(n int) {
	for i := 0; i < n; i++ {
		l.entry(<-l.queue)
	}
}

// task is a named unit of coroutine-style execution the loop resumes step by
// step. Each step blocks the loop for the task's step duration.
type task struct {
	name string
	step time.Duration
	line int
	done bool
}

func (t *task) Name() string {
	return t.name
}

func (t *task) Coroutine() xloop.Coroutine {
	return t
}

func (t *task) Frame() (xloop.Location, bool) {
	if t.done {
		return xloop.Location{}, false
	}
	return xloop.Location{Function: "step", File: "example/main.go", Line: t.line}, true
}

func (t *task) Code() xloop.Location {
	return xloop.Location{Function: "step", File: "example/main.go"}
}

// taskStep is the task-bound callback the loop puts on a handle.
type taskStep struct {
	task *task
}

func (s *taskStep) Task() xloop.Task {
	return s.task
}

func (s *taskStep) run() {
	time.Sleep(s.task.step)
	s.task.line++
}

func main() {
	// Create a sink
	s := sink.New(sink.Options{
		Name:   "loop",
		Format: sink.Logfmt,
	})

	// Attach the slow callback monitor
	l := newLoop()
	restore := xloop.LogSlowCallbacks(s, l, 100*time.Millisecond)
	defer restore()

	// The second callback and the task step block the loop long enough to
	// be reported
	l.CallSoon(func() { time.Sleep(10 * time.Millisecond) })
	l.CallSoon(func() { time.Sleep(250 * time.Millisecond) })
	l.CallTask(&task{name: "main", step: 150 * time.Millisecond, line: 12})
	l.Run(3)
}

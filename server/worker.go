package server

import (
	"errors"
	"fmt"
)

// ErrStopped is returned for work submitted after the worker stopped.
var ErrStopped = errors.New("server stopped")

// workRequest represents a unit of work to be executed on the worker goroutine.
type workRequest struct {
	fn   func() (interface{}, error)
	done chan workResult
}

// workResult holds the return value from a worker operation.
type workResult struct {
	value interface{}
	err   error
}

// Worker serializes all interpreter access through a single goroutine.
// Interpreters are single-threaded; all Connect/gRPC handlers must go
// through the worker to avoid data races.
type Worker struct {
	requests chan workRequest
	quit     chan struct{}
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker() *Worker {
	w := &Worker{
		requests: make(chan workRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes requests sequentially on a dedicated goroutine.
func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, recovering from panics.
func (w *Worker) execute(fn func() (interface{}, error)) (result workResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Criticalf("worker: recovered panic: %v", r)
			result = workResult{err: fmt.Errorf("panic: %v", r)}
		}
	}()
	value, err := fn()
	return workResult{value: value, err: err}
}

// Do submits fn for execution on the worker goroutine and blocks until it
// completes. It returns fn's results, or an error if fn panicked or the
// worker has stopped.
func (w *Worker) Do(fn func() (interface{}, error)) (interface{}, error) {
	req := workRequest{
		fn:   fn,
		done: make(chan workResult, 1),
	}
	select {
	case <-w.quit:
		return nil, ErrStopped
	default:
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, ErrStopped
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		return nil, ErrStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Stop() {
	select {
	case <-w.quit:
	default:
		close(w.quit)
	}
}

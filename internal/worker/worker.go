// Package worker runs one pipeline job at a time on a background goroutine
// and streams its events to the caller.
package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/session"
)

// EventBufferSize is the capacity of the event channel created by NewTask.
const EventBufferSize = 128

// ErrBusy is returned by Start while a previous job is still running.
var ErrBusy = errors.New("worker: a job is already running")

// Job is the unit of work. It reports through sess and returns its
// terminal error.
type Job func(ctx context.Context, sess *session.Session) error

// Worker serialises jobs. The zero value is ready to use.
type Worker struct {
	mu      sync.Mutex
	running bool
}

// Task is a started job.
type Task struct {
	// Events delivers the job's events followed by a final EventDone. It
	// is closed when the job has finished.
	Events <-chan model.Event

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start creates a session from config wired to a fresh event channel and
// runs job with it on a new goroutine. config.Events is ignored.
func (w *Worker) Start(ctx context.Context, config session.Config, job Job) (*Task, error) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	w.running = true
	w.mu.Unlock()

	events := make(chan model.Event, EventBufferSize)
	config.Events = events
	sess := session.New(config)

	ctx, cancel := context.WithCancel(ctx)
	task := &Task{
		Events: events,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer func() {
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
			close(task.done)
		}()
		defer close(events)

		task.err = job(ctx, sess)

		done := model.Event{Kind: model.EventDone, Err: task.err}
		if task.err != nil {
			done.Message = task.err.Error()
		}
		// Delivered even after cancellation so consumers always see the end.
		sess.Emit(context.Background(), done)
	}()
	return task, nil
}

// Wait blocks until the job returns and yields its error. The caller must
// drain Events or Wait may block forever.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Interrupt cancels the job's context.
func (t *Task) Interrupt() {
	t.cancel()
}

// Run starts job and passes every event to handle on the calling goroutine
// until the job finishes.
func (w *Worker) Run(ctx context.Context, config session.Config, job Job, handle func(model.Event)) error {
	task, err := w.Start(ctx, config, job)
	if err != nil {
		return err
	}
	defer task.Interrupt()
	for ev := range task.Events {
		if handle != nil {
			handle(ev)
		}
	}
	return task.Wait()
}

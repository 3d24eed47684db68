// Package runloop provides the application's single logical thread.
//
// Tasks posted from any goroutine run one at a time, in posting order, on
// the goroutine that called Run. Tasks still queued when the loop quits are
// dropped.
package runloop

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/danmuck/testcentre/internal/logging"
	"github.com/rs/zerolog"
)

var ErrAlreadyRunning = errors.New("runloop: already running")

type Loop struct {
	tasks   *queue[func()]
	running atomic.Bool
	quit    chan struct{}
	log     zerolog.Logger
}

func New() *Loop {
	return &Loop{
		tasks: newQueue[func()](),
		quit:  make(chan struct{}),
		log:   logging.Component("runloop"),
	}
}

// Post queues task and reports false once the loop has quit. It never
// waits for task to run.
func (l *Loop) Post(task func()) bool {
	if task == nil {
		return false
	}
	return l.tasks.push(task)
}

// Run executes tasks until Quit or ctx cancellation. It returns ctx.Err()
// when cancelled and nil after Quit.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer l.running.Store(false)

	stop := context.AfterFunc(ctx, l.Quit)
	defer stop()

	for {
		task, ok := l.tasks.pop()
		if !ok {
			break
		}
		l.runTask(task)
	}
	return ctx.Err()
}

// Quit stops the loop after the current task. Safe to call from any
// goroutine, including from inside a task, and more than once.
func (l *Loop) Quit() {
	if l.tasks.close() {
		close(l.quit)
	}
}

// Done is closed once Quit has been called.
func (l *Loop) Done() <-chan struct{} {
	return l.quit
}

// Pending reports queued tasks not yet started.
func (l *Loop) Pending() int {
	return l.tasks.len()
}

func (l *Loop) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Msg("run loop task panicked")
		}
	}()
	task()
}

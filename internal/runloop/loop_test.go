package runloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/testcentre/internal/testutil/testlog"
)

func runAsync(t *testing.T, l *Loop, ctx context.Context) <-chan error {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- l.Run(ctx) }()
	return errCh
}

func waitErr(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatalf("run loop did not exit")
		return nil
	}
}

func TestLoopRunsTasksInPostingOrder(t *testing.T) {
	testlog.Start(t)
	l := New()
	var got []int
	for i := 0; i < 100; i++ {
		if !l.Post(func() { got = append(got, i) }) {
			t.Fatalf("post %d rejected", i)
		}
	}
	l.Post(l.Quit)
	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(got) != 100 {
		t.Fatalf("expected 100 tasks, got %d", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order at %d: %d", i, v)
		}
	}
}

func TestLoopPreservesOrderFromSingleProducerGoroutine(t *testing.T) {
	testlog.Start(t)
	l := New()
	errCh := runAsync(t, l, context.Background())

	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			l.Post(func() {
				mu.Lock()
				got = append(got, i)
				mu.Unlock()
			})
		}
		l.Post(func() { close(done) })
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("tasks never drained")
	}
	l.Quit()
	if err := waitErr(t, errCh); err != nil {
		t.Fatalf("run: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order at %d: %d", i, v)
		}
	}
}

func TestLoopQuitFromTaskStopsLoop(t *testing.T) {
	testlog.Start(t)
	l := New()
	ran := false
	l.Post(l.Quit)
	l.Post(func() { ran = true })
	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if ran {
		t.Fatalf("tasks queued behind quit must be dropped")
	}
	if l.Post(func() {}) {
		t.Fatalf("post after quit must be rejected")
	}
	select {
	case <-l.Done():
	default:
		t.Fatalf("Done should be closed after Quit")
	}
	l.Quit()
}

func TestLoopContextCancellation(t *testing.T) {
	testlog.Start(t)
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := runAsync(t, l, ctx)
	cancel()
	if err := waitErr(t, errCh); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLoopRecoversTaskPanic(t *testing.T) {
	testlog.Start(t)
	l := New()
	after := false
	l.Post(func() { panic("task failure") })
	l.Post(func() { after = true })
	l.Post(l.Quit)
	if err := l.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !after {
		t.Fatalf("loop should keep running after a task panic")
	}
}

func TestLoopRejectsConcurrentRun(t *testing.T) {
	testlog.Start(t)
	l := New()
	started := make(chan struct{})
	l.Post(func() { close(started) })
	errCh := runAsync(t, l, context.Background())
	<-started
	if err := l.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	l.Quit()
	if err := waitErr(t, errCh); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestLoopPendingAndNilTask(t *testing.T) {
	testlog.Start(t)
	l := New()
	if l.Post(nil) {
		t.Fatalf("nil task must be rejected")
	}
	l.Post(func() {})
	l.Post(func() {})
	if got := l.Pending(); got != 2 {
		t.Fatalf("pending got=%d", got)
	}
}

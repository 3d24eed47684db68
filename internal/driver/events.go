package driver

import (
	"context"
	"sync"

	"github.com/danmuck/testcentre/internal/protocol/envelope"
)

const maxRetainedEvents = 1024

// eventLog keeps received events so waiters can match ones that arrived
// before they started waiting. changed is closed and replaced on every
// append.
type eventLog struct {
	mu      sync.Mutex
	events  []envelope.Event
	changed chan struct{}
	closed  bool
}

func newEventLog() *eventLog {
	return &eventLog{changed: make(chan struct{})}
}

func (l *eventLog) append(ev envelope.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.events = append(l.events, ev)
	if over := len(l.events) - maxRetainedEvents; over > 0 {
		l.events = append(l.events[:0:0], l.events[over:]...)
	}
	close(l.changed)
	l.changed = make(chan struct{})
}

func (l *eventLog) clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = nil
}

func (l *eventLog) close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.changed)
}

func (l *eventLog) snapshot() []envelope.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]envelope.Event(nil), l.events...)
}

// wait returns the first retained event named name that satisfies match.
// match may be nil.
func (l *eventLog) wait(ctx context.Context, name string, match func(envelope.Event) bool) (envelope.Event, error) {
	for {
		l.mu.Lock()
		for _, ev := range l.events {
			if ev.Name == name && (match == nil || match(ev)) {
				l.mu.Unlock()
				return ev, nil
			}
		}
		closed := l.closed
		changed := l.changed
		l.mu.Unlock()

		if closed {
			return envelope.Event{}, ErrConnClosed
		}
		select {
		case <-ctx.Done():
			return envelope.Event{}, ctx.Err()
		case <-changed:
		}
	}
}

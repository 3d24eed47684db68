package driver

import (
	"sync"

	"github.com/danmuck/testcentre/internal/protocol/envelope"
	"github.com/google/uuid"
)

// pending owns response channels for in-flight commands. A closed channel
// without a value means the connection went away.
type pending struct {
	mu      sync.Mutex
	waiters map[uuid.UUID]chan envelope.Response
	err     error
}

func newPending() *pending {
	return &pending{waiters: make(map[uuid.UUID]chan envelope.Response)}
}

func (p *pending) register(id uuid.UUID) (chan envelope.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	ch := make(chan envelope.Response, 1)
	p.waiters[id] = ch
	return ch, nil
}

func (p *pending) drop(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.waiters, id)
}

// resolve reports false for responses nobody is waiting for.
func (p *pending) resolve(resp envelope.Response) bool {
	p.mu.Lock()
	ch, ok := p.waiters[resp.UUID]
	delete(p.waiters, resp.UUID)
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- resp
	close(ch)
	return true
}

func (p *pending) close(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
	for id, ch := range p.waiters {
		close(ch)
		delete(p.waiters, id)
	}
}

func (p *pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

package session

import (
	"sync"
)

// Preview fans JPEG frames out to any number of viewers. Subscriptions
// survive rebinding; a slow viewer misses frames instead of stalling the
// pump.
type Preview struct {
	mu   sync.Mutex
	subs map[int]chan []byte
	next int
}

func newPreview() *Preview {
	return &Preview{subs: make(map[int]chan []byte)}
}

// Subscribe returns a frame channel and a cancel func that closes it.
func (p *Preview) Subscribe() (<-chan []byte, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.next
	p.next++
	ch := make(chan []byte, 1)
	p.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
}

func (p *Preview) HasSubscribers() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs) > 0
}

// Publish offers frame to every viewer without blocking. Viewers must not
// modify it.
func (p *Preview) Publish(frame []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- frame:
		default:
			// viewer is behind, drop
		}
	}
}

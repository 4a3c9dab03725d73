// Package notify is a small multi-subscriber callback registry so UI layers
// can react to local-store mutations without polling.
package notify

import "sync"

type Callback func()

type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]Callback
}

func NewBus() *Bus {
	return &Bus{subs: map[int]Callback{}}
}

// Subscribe registers cb and returns a handle for Unsubscribe.
func (b *Bus) Subscribe(cb Callback) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.subs[b.next] = cb
	return b.next
}

func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

// NotifyAll invokes every subscriber. Invocation order is unspecified.
// Callers must fire this only after the storage write has committed.
func (b *Bus) NotifyAll() {
	b.mu.Lock()
	cbs := make([]Callback, 0, len(b.subs))
	for _, cb := range b.subs {
		cbs = append(cbs, cb)
	}
	b.mu.Unlock()
	for _, cb := range cbs {
		cb()
	}
}

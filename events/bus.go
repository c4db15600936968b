// Package events is a small typed publish/subscribe bus. Components that
// mirror session state subscribe to it instead of polling the controller.
package events

import (
	"sort"
	"sync"
)

// Bus delivers events of type T to subscribers synchronously, in the order
// they subscribed. Handlers may call back into the publisher.
type Bus[T any] struct {
	mu     sync.RWMutex
	subs   map[uint64]func(T)
	nextID uint64
	closed bool
}

func NewBus[T any]() *Bus[T] {
	return &Bus[T]{subs: make(map[uint64]func(T))}
}

// Subscribe registers fn and returns a function removing it. The returned
// function is safe to call more than once.
func (b *Bus[T]) Subscribe(fn func(T)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || fn == nil {
		return func() {}
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
		})
	}
}

func (b *Bus[T]) Publish(ev T) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	ids := make([]uint64, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]func(T), 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.subs[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}

// Len returns the number of live subscriptions.
func (b *Bus[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drops all subscribers; later publishes are ignored.
func (b *Bus[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = make(map[uint64]func(T))
}

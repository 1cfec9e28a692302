// Package handoff passes a single pending record from one flow to another.
package handoff

import "sync"

// Mailbox is a single-slot mailbox. Post replaces any pending record and
// signals every subscriber; Take hands the record out at most once.
type Mailbox[T any] struct {
	mu      sync.Mutex
	pending *T
	subs    map[int]chan struct{}
	nextID  int
}

// New returns an empty mailbox.
func New[T any]() *Mailbox[T] {
	return &Mailbox[T]{subs: make(map[int]chan struct{})}
}

// Post stores v and signals subscribers.
func (m *Mailbox[T]) Post(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = &v
	for _, ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Take returns the pending record and clears it.
func (m *Mailbox[T]) Take() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var zero T
	if m.pending == nil {
		return zero, false
	}
	v := *m.pending
	m.pending = nil
	return v, true
}

// Subscribe returns a channel that receives a signal after each Post. Signals
// coalesce while unread. The returned func unsubscribes and closes the channel.
func (m *Mailbox[T]) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

package measure

import "sync"

// Node is an observable piece of geometry. Resize stores a new value and
// synchronously notifies every live observer.
type Node[T comparable] struct {
	mu        sync.Mutex
	value     T
	nextID    int
	observers map[int]func(T)
}

// NewNode returns a node holding initial.
func NewNode[T comparable](initial T) *Node[T] {
	return &Node[T]{value: initial, observers: make(map[int]func(T))}
}

// Value returns the current geometry.
func (n *Node[T]) Value() T {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.value
}

// Observe registers fn for future changes. The returned stop function is
// idempotent; once it returns fn is never called again.
func (n *Node[T]) Observe(fn func(T)) (stop func()) {
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.observers[id] = fn
	n.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.observers, id)
			n.mu.Unlock()
		})
	}
}

// Resize stores v and notifies observers. Every call notifies, even when the
// value is unchanged.
func (n *Node[T]) Resize(v T) {
	n.mu.Lock()
	n.value = v
	ids := make([]int, 0, len(n.observers))
	for id := range n.observers {
		ids = append(ids, id)
	}
	n.mu.Unlock()

	for _, id := range ids {
		n.mu.Lock()
		fn, ok := n.observers[id]
		n.mu.Unlock()
		if ok {
			fn(v)
		}
	}
}

// Package arena provides an append-only container that owns values of one
// type and hands out index handles to them.
//
// Plan and expression graphs reference their children by [Node] instead of
// by pointer, so a whole graph is owned by one arena and rewrites can swap
// the content of a slot without touching the nodes that point to it.
package arena

import "fmt"

// Node is an opaque handle to a value inside an [Arena]. A Node is only
// meaningful for the arena that issued it; handles of different arenas must
// never be mixed. The zero Node is a valid handle (the first value added).
type Node int

// String returns a printable form of the handle.
func (n Node) String() string { return fmt.Sprintf("Node(%d)", int(n)) }

type slot[T any] struct {
	value T
	taken bool
}

// Arena owns a growable, indexed sequence of values. Handles returned by
// [Arena.Add] stay valid for the lifetime of the arena and are never reused.
//
// Arena is not safe for concurrent use.
type Arena[T any] struct {
	items []slot[T]
}

// New returns an empty arena.
func New[T any]() *Arena[T] {
	return WithCapacity[T](16)
}

// WithCapacity returns an empty arena with room for n values.
func WithCapacity[T any](n int) *Arena[T] {
	return &Arena[T]{items: make([]slot[T], 0, n)}
}

// Len returns the number of handles issued so far, including taken slots.
func (a *Arena[T]) Len() int { return len(a.items) }

// Add appends v and returns its handle.
func (a *Arena[T]) Add(v T) Node {
	a.items = append(a.items, slot[T]{value: v})
	return Node(len(a.items) - 1)
}

// Get returns the value stored at n. Get panics if n was never issued or if
// the slot is currently taken.
func (a *Arena[T]) Get(n Node) T {
	return a.live(n).value
}

// GetMut returns a pointer to the value stored at n so it can be modified in
// place. The pointer is invalidated by the next call to [Arena.Add].
func (a *Arena[T]) GetMut(n Node) *T {
	return &a.live(n).value
}

// Take moves the value out of slot n and marks the slot as taken. Every Take
// must be followed by exactly one [Arena.Replace] of the same handle before
// the handle is read again.
func (a *Arena[T]) Take(n Node) T {
	s := a.live(n)
	v := s.value

	var zero T
	s.value = zero
	s.taken = true
	return v
}

// Replace stores v at n, overwriting whatever the slot held. It is the
// counterpart of [Arena.Take] but may also overwrite a live slot.
func (a *Arena[T]) Replace(n Node, v T) {
	a.checkBounds(n)
	a.items[n] = slot[T]{value: v}
}

// IsTaken reports whether slot n is currently taken.
func (a *Arena[T]) IsTaken(n Node) bool {
	a.checkBounds(n)
	return a.items[n].taken
}

func (a *Arena[T]) live(n Node) *slot[T] {
	a.checkBounds(n)
	s := &a.items[n]
	if s.taken {
		panic(fmt.Sprintf("arena: read of taken slot %d", int(n)))
	}
	return s
}

func (a *Arena[T]) checkBounds(n Node) {
	if n < 0 || int(n) >= len(a.items) {
		panic(fmt.Sprintf("arena: handle %d out of range [0, %d)", int(n), len(a.items)))
	}
}

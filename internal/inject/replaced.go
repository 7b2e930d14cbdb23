package inject

import (
	"iter"
	"slices"
	"sync"
	"sync/atomic"
)

// Mapping substitutes New for Old wherever the host reads Old.
type Mapping[T comparable] struct {
	Old T
	New T
}

// ReplacedList presents an underlying List through a mapping table. The
// underlying list always holds the host's own elements; substitution only
// happens on the way out, so reverting a mapping needs no bookkeeping.
//
// Mappings are applied in registration order and chain: with a->b and b->c
// registered, a is presented as c.
type ReplacedList[T comparable] struct {
	underlying List[T]

	mu    sync.Mutex
	table atomic.Pointer[[]Mapping[T]]
}

func NewReplacedList[T comparable](underlying List[T]) *ReplacedList[T] {
	return &ReplacedList[T]{underlying: underlying}
}

// Underlying returns the wrapped list.
func (l *ReplacedList[T]) Underlying() List[T] {
	return l.underlying
}

func (l *ReplacedList[T]) snapshot() []Mapping[T] {
	if t := l.table.Load(); t != nil {
		return *t
	}
	return nil
}

func present[T comparable](table []Mapping[T], x T) T {
	for _, m := range table {
		if m.Old == x {
			x = m.New
		}
	}
	return x
}

// Add stores x as given. Reads present it through the current mappings.
func (l *ReplacedList[T]) Add(x T) {
	l.underlying.Add(x)
}

// Remove removes the underlying element presented as x, or x itself when no
// element presents as x.
func (l *ReplacedList[T]) Remove(x T) bool {
	table := l.snapshot()
	for e := range l.underlying.All() {
		if present(table, e) == x {
			return l.underlying.Remove(e)
		}
	}
	return l.underlying.Remove(x)
}

// Contains reports whether any element is presented as x. A mapped original
// is not contained while its mapping is active.
func (l *ReplacedList[T]) Contains(x T) bool {
	table := l.snapshot()
	if len(table) == 0 {
		return l.underlying.Contains(x)
	}
	for e := range l.underlying.All() {
		if present(table, e) == x {
			return true
		}
	}
	return false
}

func (l *ReplacedList[T]) Len() int {
	return l.underlying.Len()
}

// All yields the underlying elements through the mapping table as it was
// when iteration started.
func (l *ReplacedList[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		table := l.snapshot()
		for e := range l.underlying.All() {
			if !yield(present(table, e)) {
				return
			}
		}
	}
}

func (l *ReplacedList[T]) AddMapping(old, replacement T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := append(slices.Clone(l.snapshot()), Mapping[T]{Old: old, New: replacement})
	l.table.Store(&next)
}

// RemoveMapping removes the first mapping registered for old and reports
// whether there was one.
func (l *ReplacedList[T]) RemoveMapping(old T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.snapshot()
	i := slices.IndexFunc(cur, func(m Mapping[T]) bool { return m.Old == old })
	if i < 0 {
		return false
	}
	next := slices.Delete(slices.Clone(cur), i, i+1)
	l.table.Store(&next)
	return true
}

// RevertAll drops every mapping.
func (l *ReplacedList[T]) RevertAll() {
	l.mu.Lock()
	l.table.Store(nil)
	l.mu.Unlock()
}

// Mappings returns the active mappings in registration order.
func (l *ReplacedList[T]) Mappings() []Mapping[T] {
	return slices.Clone(l.snapshot())
}

// Package inject splices substituting collections into a running host so
// that elements the host iterates can be swapped for replacements without
// the host noticing.
package inject

import (
	"iter"
	"slices"
	"sync"
)

// List is the collection surface the layer can substitute. A host field is
// collection-like when its declared type is an interface that
// *ReplacedList[T] implements.
type List[T comparable] interface {
	Add(x T)
	Remove(x T) bool
	Contains(x T) bool
	Len() int
	All() iter.Seq[T]
}

// SliceList is a List backed by a slice. Iteration works on a copy, so the
// list may be modified while it is being ranged over.
type SliceList[T comparable] struct {
	mu    sync.RWMutex
	items []T
}

func NewSliceList[T comparable](items ...T) *SliceList[T] {
	return &SliceList[T]{items: slices.Clone(items)}
}

func (l *SliceList[T]) Add(x T) {
	l.mu.Lock()
	l.items = append(l.items, x)
	l.mu.Unlock()
}

// Remove deletes the first occurrence of x.
func (l *SliceList[T]) Remove(x T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	i := slices.Index(l.items, x)
	if i < 0 {
		return false
	}
	l.items = slices.Delete(l.items, i, i+1)
	return true
}

func (l *SliceList[T]) Contains(x T) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(l.items, x)
}

func (l *SliceList[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func (l *SliceList[T]) All() iter.Seq[T] {
	l.mu.RLock()
	snapshot := slices.Clone(l.items)
	l.mu.RUnlock()
	return slices.Values(snapshot)
}

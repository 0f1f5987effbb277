// Package container provides List, the reference counted ordered
// collection of handles used by option sets, filter nodes and hash caches.
package container

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/wudi/colorkit/object"
	"github.com/wudi/colorkit/observer"
)

var (
	ErrNilHandle   = errors.New("container: nil handle")
	ErrRankLength  = errors.New("container: rank array length mismatch")
	ErrDigestWidth = errors.New("container: digest key must be 32 bytes")
)

// Flag modifies MoveIn.
type Flag int

const (
	// FlagObserve makes the list observe the inserted element and re-emit
	// its signals. The observation ends when the element leaves the list or
	// the list is released.
	FlagObserve Flag = 1 << iota
)

// Copier is implemented by handles that CopyFrom should deep copy instead
// of sharing.
type Copier interface {
	CopyObject(env *object.Env) object.Object
}

// List is an ordered collection of owned handles. Indices are only stable
// between structural mutations.
type List struct {
	object.Base

	mu      sync.Mutex
	items   []object.Object
	observe map[object.ID]bool
	index   map[[DigestSize]byte]*HashEntry
}

// New returns an empty list.
func New(env *object.Env) *List {
	l := &List{}
	l.Init(object.KindContainer, env)
	l.OnRelease(l.Clear)
	return l
}

// MoveIn transfers ownership of *h into l at pos (appending when pos is out
// of range) and zeroes the caller's variable.
func MoveIn[T object.Object](l *List, h *T, pos int, flags Flag) error {
	if h == nil {
		return ErrNilHandle
	}
	var zero T
	if err := l.Insert(*h, pos, flags); err != nil {
		return err
	}
	*h = zero
	return nil
}

// Insert takes over one reference of obj.
func (l *List) Insert(obj object.Object, pos int, flags Flag) error {
	if obj == nil {
		return ErrNilHandle
	}
	l.mu.Lock()
	if pos < 0 || pos >= len(l.items) {
		l.items = append(l.items, obj)
	} else {
		l.items = slices.Insert(l.items, pos, obj)
	}
	if flags&FlagObserve != 0 {
		if l.observe == nil {
			l.observe = make(map[object.ID]bool)
		}
		l.observe[obj.ID()] = true
	}
	if e, ok := obj.(*HashEntry); ok {
		if l.index == nil {
			l.index = make(map[[DigestSize]byte]*HashEntry)
		}
		if _, dup := l.index[e.key]; !dup {
			l.index[e.key] = e
		}
	}
	l.mu.Unlock()

	if flags&FlagObserve != 0 {
		if reg := observer.From(l.Env()); reg != nil {
			reg.Add(obj, l, nil, observer.Forward)
		}
	}
	return nil
}

// Count returns the number of elements.
func (l *List) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// At borrows the element at pos without touching its reference count.
func (l *List) At(pos int) object.Object {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pos < 0 || pos >= len(l.items) {
		return nil
	}
	return l.items[pos]
}

// Get returns the element at pos with an extra reference the caller must
// release.
func (l *List) Get(pos int) object.Object {
	o := l.At(pos)
	if o != nil {
		o.Retain()
	}
	return o
}

// GetTyped is Get restricted to elements of kind. A mismatch releases the
// borrow and returns nil.
func (l *List) GetTyped(pos int, kind object.Kind) object.Object {
	o := l.Get(pos)
	if o == nil {
		return nil
	}
	if o.Kind() != kind {
		l.Env().Message(object.SeverityWarn, l, "element %d is %s, want %s", pos, o.Kind(), kind)
		o.Release()
		return nil
	}
	return o
}

// Typed borrows the element at pos as T.
func Typed[T object.Object](l *List, pos int) (T, bool) {
	t, ok := l.At(pos).(T)
	return t, ok
}

// Index returns the position of obj or -1.
func (l *List) Index(obj object.Object) int {
	if obj == nil {
		return -1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, o := range l.items {
		if o.ID() == obj.ID() {
			return i
		}
	}
	return -1
}

// Each calls fn for every element in order until fn returns false. fn sees
// a snapshot, so it may mutate the list.
func (l *List) Each(fn func(i int, o object.Object) bool) {
	l.mu.Lock()
	snapshot := slices.Clone(l.items)
	l.mu.Unlock()
	for i, o := range snapshot {
		if !fn(i, o) {
			return
		}
	}
}

// ReleaseAt removes the element at pos and drops the list's reference.
func (l *List) ReleaseAt(pos int) error {
	l.mu.Lock()
	if pos < 0 || pos >= len(l.items) {
		l.mu.Unlock()
		return fmt.Errorf("container: position %d out of range [0,%d)", pos, len(l.items))
	}
	o := l.items[pos]
	l.items = slices.Delete(l.items, pos, pos+1)
	observed := l.observe[o.ID()]
	delete(l.observe, o.ID())
	if e, ok := o.(*HashEntry); ok && l.index[e.key] == e {
		l.reindex(e.key)
	}
	l.mu.Unlock()

	l.drop(o, observed)
	return nil
}

// reindex points key at the first remaining entry carrying it.
func (l *List) reindex(key [DigestSize]byte) {
	delete(l.index, key)
	for _, o := range l.items {
		if e, ok := o.(*HashEntry); ok && e.key == key {
			l.index[key] = e
			return
		}
	}
}

func (l *List) drop(o object.Object, observed bool) {
	if observed {
		if reg := observer.From(l.Env()); reg != nil {
			reg.Remove(o, l, observer.Forward)
		}
	}
	o.Release()
}

// Clear releases every element.
func (l *List) Clear() {
	l.mu.Lock()
	items := l.items
	observed := l.observe
	l.items = nil
	l.observe = nil
	l.index = nil
	l.mu.Unlock()

	for _, o := range items {
		l.drop(o, observed[o.ID()])
	}
}

// Sort orders the elements by rank, highest first. Equal ranks keep their
// relative order and ranks is permuted along with the elements.
func (l *List) Sort(ranks []int32) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(ranks) != len(l.items) {
		return fmt.Errorf("%w: %d ranks for %d elements", ErrRankLength, len(ranks), len(l.items))
	}
	order := make([]int, len(ranks))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case ranks[a] > ranks[b]:
			return -1
		case ranks[a] < ranks[b]:
			return 1
		}
		return 0
	})
	items := make([]object.Object, len(order))
	sorted := make([]int32, len(order))
	for i, j := range order {
		items[i] = l.items[j]
		sorted[i] = ranks[j]
	}
	l.items = items
	copy(ranks, sorted)
	return nil
}

// CopyFrom appends the elements of src. Elements implementing Copier are
// deep copied, all others are shared.
func (l *List) CopyFrom(src *List) {
	if src == nil {
		return
	}
	src.Each(func(_ int, o object.Object) bool {
		if c, ok := o.(Copier); ok {
			_ = l.Insert(c.CopyObject(l.Env()), -1, 0)
			return true
		}
		o.Retain()
		_ = l.Insert(o, -1, 0)
		return true
	})
}

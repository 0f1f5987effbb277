package option

import (
	"fmt"

	"github.com/wudi/colorkit/container"
	"github.com/wudi/colorkit/object"
	"github.com/wudi/colorkit/observer"
	"github.com/wudi/colorkit/value"
)

// Ownership selects whether an option handed to a set is shared or
// copied.
type Ownership int

const (
	Share Ownership = iota
	Duplicate
)

// Status is the outcome of Add.
type Status int

const (
	StatusAdded Status = iota
	// StatusReplaced means an existing option with the same key prefix
	// took the incoming value in place.
	StatusReplaced
	// StatusSkipped means the incoming option did not outrank the
	// existing one and nothing changed.
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusAdded:
		return "added"
	case StatusReplaced:
		return "replaced"
	case StatusSkipped:
		return "skipped"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// SetFlag modifies the SetFrom* helpers.
type SetFlag int

const (
	// SetCreate creates the option when no match exists.
	SetCreate SetFlag = 1 << iota
	// SetAddAlways appends a new option even when one with the same key
	// prefix exists.
	SetAddAlways
	// SetMatchKey matches on the bare key, ignoring the path prefix.
	SetMatchKey
	// SetAutomatic marks the change as automatic instead of edited.
	SetAutomatic
)

// Set is an ordered collection of options. Insertion order matters for
// serialization only.
type Set struct {
	object.Base

	list *container.List
}

// NewSet returns an empty set.
func NewSet(env *object.Env) *Set {
	s := &Set{list: container.New(env)}
	s.Init(object.KindOptionSet, env)
	if reg := observer.From(env); reg != nil {
		reg.Add(s.list, s, nil, observer.Forward)
	}
	s.OnRelease(func() { s.list.Release() })
	return s
}

// Ensure returns *ps, creating an empty set when it is nil.
func Ensure(ps **Set, env *object.Env) *Set {
	if *ps == nil {
		*ps = NewSet(env)
	}
	return *ps
}

// Count returns the number of options.
func (s *Set) Count() int { return s.list.Count() }

// Get borrows option i.
func (s *Set) Get(i int) *Option {
	o, _ := container.Typed[*Option](s.list, i)
	return o
}

// Options borrows all options in order.
func (s *Set) Options() []*Option {
	out := make([]*Option, 0, s.list.Count())
	s.list.Each(func(_ int, o object.Object) bool {
		if opt, ok := o.(*Option); ok {
			out = append(out, opt)
		}
		return true
	})
	return out
}

func (s *Set) indexOf(path string, mode MatchMode) int {
	idx := -1
	s.list.Each(func(i int, o object.Object) bool {
		if opt, ok := o.(*Option); ok && Match(opt.Registration(), path, mode) {
			idx = i
			return false
		}
		return true
	})
	return idx
}

// Find returns the first option matching path under mode. The option is
// borrowed; Retain it to keep it past the set.
func (s *Set) Find(path string, mode MatchMode) (*Option, bool) {
	i := s.indexOf(path, mode)
	if i < 0 {
		return nil, false
	}
	return s.Get(i), true
}

func (s *Set) insert(o *Option, pos int, own Ownership) error {
	if own == Duplicate {
		o = o.Copy(s.Env())
	} else {
		o.Retain()
	}
	if err := container.MoveIn(s.list, &o, pos, container.FlagObserve); err != nil {
		return err
	}
	return nil
}

func (s *Set) added(o *Option) {
	s.Env().Emit(s, object.SignalDataChanged, o)
}

// Add inserts o at pos unless an option with the same key prefix exists.
// On a conflict the existing option takes o's value, flags and source in
// place when o strictly outranks it; otherwise nothing changes.
func (s *Set) Add(o *Option, pos int, own Ownership) (Status, error) {
	if o == nil {
		return StatusSkipped, fmt.Errorf("option: add nil option")
	}
	if existing, ok := s.Find(o.Registration(), MatchExact); ok {
		if existing == o {
			return StatusSkipped, nil
		}
		if o.Flags().Rank() <= existing.Flags().Rank() {
			return StatusSkipped, nil
		}
		existing.assign(o)
		return StatusReplaced, nil
	}
	if err := s.insert(o, pos, own); err != nil {
		return StatusSkipped, err
	}
	s.added(o)
	return StatusAdded, nil
}

// AddAlways inserts o without checking for an existing key prefix.
func (s *Set) AddAlways(o *Option, pos int, own Ownership) error {
	if o == nil {
		return fmt.Errorf("option: add nil option")
	}
	if err := s.insert(o, pos, own); err != nil {
		return err
	}
	s.added(o)
	return nil
}

// Set overwrites the first option with o's key prefix in place, or
// inserts o when there is none.
func (s *Set) Set(o *Option, pos int, own Ownership) error {
	if o == nil {
		return fmt.Errorf("option: set nil option")
	}
	if existing, ok := s.Find(o.Registration(), MatchExact); ok {
		if existing != o {
			existing.assign(o)
		}
		return nil
	}
	return s.AddAlways(o, pos, own)
}

// Remove releases the first option matching path exactly.
func (s *Set) Remove(path string) bool {
	i := s.indexOf(path, MatchExact)
	if i < 0 {
		return false
	}
	if err := s.list.ReleaseAt(i); err != nil {
		return false
	}
	s.Env().Emit(s, object.SignalDataChanged, nil)
	return true
}

// Clear releases every option.
func (s *Set) Clear() {
	if s.list.Count() == 0 {
		return
	}
	s.list.Clear()
	s.Env().Emit(s, object.SignalDataChanged, nil)
}

func (s *Set) findPattern(path string) (*Option, error) {
	o, ok := s.Find(path, MatchPattern)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return o, nil
}

func (s *Set) FindString(path string, pos int) (string, error) {
	o, err := s.findPattern(path)
	if err != nil {
		return "", err
	}
	return o.Text(pos)
}

func (s *Set) FindInt(path string, pos int) (int32, error) {
	o, err := s.findPattern(path)
	if err != nil {
		return 0, err
	}
	return o.Int(pos)
}

func (s *Set) FindDouble(path string, pos int) (float64, error) {
	o, err := s.findPattern(path)
	if err != nil {
		return 0, err
	}
	return o.Double(pos)
}

func (s *Set) FindData(path string) (value.StructRef, error) {
	o, err := s.findPattern(path)
	if err != nil {
		return nil, err
	}
	return o.Data()
}

// FindValue returns a copy of the value of the option matching path.
func (s *Set) FindValue(path string) (value.Value, error) {
	o, err := s.findPattern(path)
	if err != nil {
		return value.Value{}, err
	}
	return o.Value(), nil
}

// setFrom locates or creates the option for path and applies fn to it.
func (s *Set) setFrom(path string, flags SetFlag, fn func(o *Option, f Flags) error) error {
	var optFlags Flags
	if flags&SetAutomatic != 0 {
		optFlags = FlagAutomatic
	}
	mode := MatchExact
	if flags&SetMatchKey != 0 {
		mode = MatchKey
	}
	if flags&SetAddAlways == 0 {
		if o, ok := s.Find(path, mode); ok {
			return fn(o, optFlags)
		}
		if flags&SetCreate == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
	}
	o, err := New(s.Env(), path)
	if err != nil {
		return err
	}
	defer o.Release()
	if err := fn(o, optFlags); err != nil {
		return err
	}
	return s.AddAlways(o, -1, Share)
}

func (s *Set) SetFromString(path, v string, pos int, flags SetFlag) error {
	return s.setFrom(path, flags, func(o *Option, f Flags) error { return o.SetString(v, pos, f) })
}

func (s *Set) SetFromInt(path string, v int32, pos int, flags SetFlag) error {
	return s.setFrom(path, flags, func(o *Option, f Flags) error { return o.SetInt(v, pos, f) })
}

func (s *Set) SetFromDouble(path string, v float64, pos int, flags SetFlag) error {
	return s.setFrom(path, flags, func(o *Option, f Flags) error { return o.SetDouble(v, pos, f) })
}

// SetFromData stores a structured payload, taking over the caller's
// reference.
func (s *Set) SetFromData(path string, v value.StructRef, flags SetFlag) error {
	return s.setFrom(path, flags, func(o *Option, f Flags) error { return o.SetData(v, f) })
}

// SetFromValue stores a copy of v as the whole value.
func (s *Set) SetFromValue(path string, v value.Value, flags SetFlag) error {
	return s.setFrom(path, flags, func(o *Option, f Flags) error {
		o.SetValue(v, f)
		return nil
	})
}

// SetSource stamps every option with src.
func (s *Set) SetSource(src Source) {
	for _, o := range s.Options() {
		o.SetSource(src)
	}
}

// ObserverAdd lets obs watch the set and, through it, every option.
func (s *Set) ObserverAdd(obs object.Object, user any, h observer.Handler) bool {
	reg := observer.From(s.Env())
	if reg == nil {
		return false
	}
	return reg.Add(s, obs, user, h)
}

func (s *Set) ObserverRemove(obs object.Object, h observer.Handler) int {
	reg := observer.From(s.Env())
	if reg == nil {
		return 0
	}
	return reg.Remove(s, obs, h)
}

// Copy returns a set holding duplicates of every option.
func (s *Set) Copy(env *object.Env) *Set {
	c := NewSet(env)
	for _, o := range s.Options() {
		_ = c.insert(o, -1, Duplicate)
	}
	return c
}

// CopyObject lets containers deep copy sets.
func (s *Set) CopyObject(env *object.Env) object.Object { return s.Copy(env) }

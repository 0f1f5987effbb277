// Package object provides the envelope shared by every colorkit handle:
// process-wide ids, type tags, reference counting, a small name cache and
// the runtime Env that carries the signal bus and the message channel.
package object

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// ID identifies an object for the lifetime of the process.
type ID int64

var lastID atomic.Int64

// NextID returns the next monotonic object id.
func NextID() ID { return ID(lastID.Add(1)) }

// Kind is the type tag of a handle.
type Kind int

const (
	KindNone Kind = iota
	KindOption
	KindOptionSet
	KindContainer
	KindHashEntry
	KindNode
	KindPlug
	KindSocket
	KindImage
	KindTicket
	KindFilter
	KindBlob
	KindCustom
)

var kindNames = [...]string{
	KindNone:      "none",
	KindOption:    "option",
	KindOptionSet: "option-set",
	KindContainer: "container",
	KindHashEntry: "hash-entry",
	KindNode:      "node",
	KindPlug:      "plug",
	KindSocket:    "socket",
	KindImage:     "image",
	KindTicket:    "ticket",
	KindFilter:    "filter",
	KindBlob:      "blob",
	KindCustom:    "custom",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// NameKind selects an entry of the per-object name cache.
type NameKind int

const (
	NameNick NameKind = iota
	NameName
	NameDescription
)

// Object is implemented by every reference counted handle.
type Object interface {
	ID() ID
	Kind() Kind
	Env() *Env
	Retain()
	// Release drops one reference and reports whether it was the last one.
	Release() bool
	Refs() int
	Name(NameKind) string
	SetName(NameKind, string)
}

// Base implements Object. Embed it and call Init from the constructor.
type Base struct {
	id       ID
	kind     Kind
	env      *Env
	refs     atomic.Int32
	released atomic.Bool

	namesMu sync.Mutex
	names   map[NameKind]string

	finalize func()
}

// Init assigns a fresh id and sets the reference count to one.
func (b *Base) Init(kind Kind, env *Env) {
	b.id = NextID()
	b.kind = kind
	b.env = env
	b.refs.Store(1)
}

// OnRelease installs the hook run when the last reference is dropped.
func (b *Base) OnRelease(fn func()) { b.finalize = fn }

func (b *Base) ID() ID      { return b.id }
func (b *Base) Kind() Kind  { return b.kind }
func (b *Base) Env() *Env   { return b.env }
func (b *Base) Refs() int   { return int(b.refs.Load()) }
func (b *Base) Alive() bool { return !b.released.Load() }

func (b *Base) Retain() {
	if b.released.Load() {
		b.env.Message(SeverityWarn, b, "retain of released object")
		return
	}
	b.refs.Add(1)
}

// Release drops one reference. The last release detaches every observer
// edge touching the object before the finalize hook runs.
func (b *Base) Release() bool {
	if b.released.Load() {
		b.env.Message(SeverityWarn, b, "release of released object")
		return false
	}
	if b.refs.Add(-1) > 0 {
		return false
	}
	if !b.released.CompareAndSwap(false, true) {
		return false
	}
	if b.env != nil && b.env.Bus != nil {
		b.env.Bus.Detach(b.id)
	}
	if b.finalize != nil {
		b.finalize()
	}
	return true
}

func (b *Base) Name(k NameKind) string {
	b.namesMu.Lock()
	defer b.namesMu.Unlock()
	return b.names[k]
}

func (b *Base) SetName(k NameKind, name string) {
	b.namesMu.Lock()
	defer b.namesMu.Unlock()
	if b.names == nil {
		b.names = make(map[NameKind]string)
	}
	b.names[k] = name
}

// Describe returns "kind[id]", the form used in diagnostics.
func Describe(o Object) string {
	if o == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s[%d]", o.Kind(), o.ID())
}

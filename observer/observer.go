// Package observer keeps the (model, observer, user data, handler) edges
// between objects and dispatches signals along them.
//
// All edges live in one canonical slice owned by a Registry. The "models"
// and "observers" views of an object are derived from that slice, so
// there is no second copy that can be forgotten during teardown.
package observer

import (
	"reflect"
	"sync"

	"github.com/wudi/colorkit/object"
	"github.com/wudi/colorkit/observability"
)

// Edge is the view of a relationship passed to handlers.
type Edge struct {
	Model    object.Object
	Observer object.Object
	User     any
}

// Handler receives a signal emitted by e.Model.
type Handler func(e Edge, sig object.Signal, data any)

// CountFlag selects the side counted by Registry.Count.
type CountFlag int

const (
	AsModel CountFlag = 1 << iota
	AsObserver
)

type edge struct {
	Edge
	handler  Handler
	hid      uintptr
	disabled int
}

// delivery is an edge carrying a signal. Reaching the same delivery again
// before it returns means the signal went round a cycle.
type delivery struct {
	e   *edge
	sig object.Signal
}

// Registry implements object.Bus.
type Registry struct {
	mu       sync.Mutex
	edges    []*edge
	blocked  int
	inflight map[delivery]int
	env      *object.Env
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{inflight: make(map[delivery]int)}
}

// NewEnv returns an Env whose bus is a fresh Registry.
func NewEnv(logger observability.Logger) *object.Env {
	r := NewRegistry()
	env := &object.Env{Bus: r, Logger: logger}
	r.env = env
	return env
}

// From returns the registry behind env, or nil.
func From(env *object.Env) *Registry {
	if env == nil {
		return nil
	}
	r, _ := env.Bus.(*Registry)
	return r
}

func handlerID(h Handler) uintptr {
	if h == nil {
		return 0
	}
	return reflect.ValueOf(h).Pointer()
}

// Add registers observer on model. Adding an existing (model, observer,
// handler) triple again is a no-op and returns false. Handlers are
// compared by their function code, so two closures built from the same
// literal count as the same handler.
func (r *Registry) Add(model, observer object.Object, user any, h Handler) bool {
	if model == nil || observer == nil || h == nil {
		return false
	}
	hid := handlerID(h)
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.edges {
		if e.Model.ID() == model.ID() && e.Observer.ID() == observer.ID() && e.hid == hid {
			return false
		}
	}
	r.edges = append(r.edges, &edge{
		Edge:    Edge{Model: model, Observer: observer, User: user},
		handler: h,
		hid:     hid,
	})
	return true
}

// Remove deletes the triple (model, observer, h). A nil handler removes
// every edge between the pair. It returns the number of edges removed.
func (r *Registry) Remove(model, observer object.Object, h Handler) int {
	if model == nil || observer == nil {
		return 0
	}
	hid := handlerID(h)
	return r.removeIf(func(e *edge) bool {
		return e.Model.ID() == model.ID() && e.Observer.ID() == observer.ID() && (h == nil || e.hid == hid)
	})
}

func (r *Registry) removeIf(match func(*edge) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.edges[:0]
	removed := 0
	for _, e := range r.edges {
		if match(e) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(r.edges); i++ {
		r.edges[i] = nil
	}
	r.edges = kept
	return removed
}

// Emit delivers sig to every enabled observer of model in insertion order
// and returns how many were signaled. Handlers run without the registry
// lock held and may add or remove edges. An edge already delivering sig
// further up the stack is skipped, so nesting is bounded by the length
// of the longest acyclic path rather than by a fixed depth.
func (r *Registry) Emit(model object.Object, sig object.Signal, data any) int {
	if model == nil {
		return 0
	}
	r.mu.Lock()
	if r.blocked > 0 {
		r.mu.Unlock()
		return 0
	}
	var targets []*edge
	cycle := false
	for _, e := range r.edges {
		if e.Model.ID() != model.ID() || e.disabled != 0 {
			continue
		}
		if r.inflight[delivery{e, sig}] > 0 {
			cycle = true
			continue
		}
		targets = append(targets, e)
	}
	for _, e := range targets {
		r.inflight[delivery{e, sig}]++
	}
	r.mu.Unlock()

	if cycle {
		r.env.Message(object.SeverityError, model, "signal %s dropped on a cycle", sig)
	}
	defer func() {
		r.mu.Lock()
		for _, e := range targets {
			d := delivery{e, sig}
			if r.inflight[d]--; r.inflight[d] <= 0 {
				delete(r.inflight, d)
			}
		}
		r.mu.Unlock()
	}()
	for _, e := range targets {
		e.handler(e.Edge, sig, data)
	}
	return len(targets)
}

// Disable suppresses delivery on every edge where model is the model.
// Calls nest; each needs a matching Enable.
func (r *Registry) Disable(model object.Object) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.edges {
		if e.Model.ID() == model.ID() {
			e.disabled++
		}
	}
}

// Enable undoes one Disable. Counters never drop below zero; an unmatched
// Enable is reported through the message channel.
func (r *Registry) Enable(model object.Object) {
	r.mu.Lock()
	unmatched := false
	for _, e := range r.edges {
		if e.Model.ID() != model.ID() {
			continue
		}
		if e.disabled == 0 {
			unmatched = true
			continue
		}
		e.disabled--
	}
	r.mu.Unlock()
	if unmatched {
		r.env.Message(object.SeverityWarn, model, "enable without matching disable")
	}
}

// Block suppresses every signal on the registry until the returned
// function is called. Blocks nest.
func (r *Registry) Block() func() {
	r.mu.Lock()
	r.blocked++
	r.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.blocked--
			r.mu.Unlock()
		})
	}
}

// IsObserved reports whether model has any observer, or the given
// observer when it is non-nil.
func (r *Registry) IsObserved(model, observer object.Object) bool {
	if model == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.edges {
		if e.Model.ID() != model.ID() {
			continue
		}
		if observer == nil || e.Observer.ID() == observer.ID() {
			return true
		}
	}
	return false
}

// Count returns the number of edges touching obj on the selected sides.
func (r *Registry) Count(obj object.Object, flags CountFlag) int {
	if obj == nil {
		return 0
	}
	return r.countID(obj.ID(), flags)
}

func (r *Registry) countID(id object.ID, flags CountFlag) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.edges {
		if flags&AsModel != 0 && e.Model.ID() == id {
			n++
		}
		if flags&AsObserver != 0 && e.Observer.ID() == id {
			n++
		}
	}
	return n
}

// Observers returns the observers of model in delivery order.
func (r *Registry) Observers(model object.Object) []object.Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []object.Object
	for _, e := range r.edges {
		if e.Model.ID() == model.ID() {
			out = append(out, e.Observer)
		}
	}
	return out
}

// Models returns the objects observed by observer.
func (r *Registry) Models(observer object.Object) []object.Object {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []object.Object
	for _, e := range r.edges {
		if e.Observer.ID() == observer.ID() {
			out = append(out, e.Model)
		}
	}
	return out
}

// Len returns the total number of edges.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.edges)
}

// Detach tells the observers of id that it is going away, then removes
// every edge that touches id on either side.
func (r *Registry) Detach(id object.ID) {
	r.mu.Lock()
	var model object.Object
	for _, e := range r.edges {
		if e.Model.ID() == id {
			model = e.Model
			break
		}
	}
	r.mu.Unlock()

	if model != nil {
		r.Emit(model, object.SignalReleased, nil)
	}
	n := r.removeIf(func(e *edge) bool {
		return e.Model.ID() == id || e.Observer.ID() == id
	})
	if n > 0 && r.env != nil {
		r.env.Log().Debug("observer edges detached",
			observability.Int64("id", int64(id)),
			observability.Int("edges", n))
	}
}

// Forward re-emits a received signal with the edge's observer as the
// model. Released is not forwarded: it concerns the model only.
func Forward(e Edge, sig object.Signal, data any) {
	if sig == object.SignalReleased {
		return
	}
	e.Observer.Env().Emit(e.Observer, sig, data)
}

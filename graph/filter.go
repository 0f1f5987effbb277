// Package graph implements the pull driven filter graph: filter
// descriptors, nodes joined by plugs and sockets, tickets that carry a
// region request through the graph, and the socket result cache.
package graph

import (
	"context"
	"errors"
	"fmt"
	"image"
	"slices"
	"sync"

	"github.com/wudi/colorkit/option"
)

var (
	ErrIncompleteGraph = errors.New("graph: plug is not connected")
	ErrIncompatible    = errors.New("graph: incompatible connectors")
	ErrInvalidOptions  = errors.New("graph: invalid options")
	ErrUnknownFilter   = errors.New("graph: unknown filter")
	ErrCycle           = errors.New("graph: connection would create a cycle")
	ErrRetryLimit      = errors.New("graph: retry limit reached")
)

// Result is the outcome of a successful run. Failures are errors.
type Result int

const (
	// Done means the requested region is available.
	Done Result = iota
	// Retry means data was produced or fetched during this call and the
	// caller should issue the pull again.
	Retry
)

func (r Result) String() string {
	switch r {
	case Done:
		return "done"
	case Retry:
		return "retry"
	}
	return fmt.Sprintf("result(%d)", int(r))
}

// RunFunc produces t.Region for the requesting plug. req is nil when the
// node is driven directly.
type RunFunc func(ctx context.Context, n *Node, req *Plug, t *Ticket) (Result, error)

// ExtentFunc reports the image a node produces.
type ExtentFunc func(n *Node) (image.Rectangle, Layout, error)

// Connector describes what a plug accepts or a socket provides. Empty
// Spaces and zero channel bounds accept anything.
type Connector struct {
	Name        string
	Spaces      []string
	MinChannels int
	MaxChannels int
}

func (c Connector) channelRange() (int, int) {
	lo, hi := c.MinChannels, c.MaxChannels
	if hi == 0 {
		hi = 1 << 16
	}
	return lo, hi
}

// Compatible reports whether a socket described by c can feed plug p.
func (c Connector) Compatible(p Connector) bool {
	if len(c.Spaces) > 0 && len(p.Spaces) > 0 {
		shared := false
		for _, s := range c.Spaces {
			if slices.Contains(p.Spaces, s) {
				shared = true
				break
			}
		}
		if !shared {
			return false
		}
	}
	clo, chi := c.channelRange()
	plo, phi := p.channelRange()
	return clo <= phi && plo <= chi
}

// Filter is the capability record of a filter type.
type Filter struct {
	// Registration is the path options of this filter live under.
	Registration string
	Name         string
	Description  string

	Plugs   []Connector
	Sockets []Connector
	// MaxPlugs allows AddPlug to grow the plug list by repeating the last
	// plug connector.
	MaxPlugs int

	// Defaults is key/value option text loaded into every new node.
	Defaults string

	Validate func(opts *option.Set) error
	// Context serializes whatever derived objects of a node depend on.
	// When nil the node options are used.
	Context func(n *Node) ([]byte, error)
	Extent  ExtentFunc
	Run     RunFunc
}

// Option returns the registration path of an option of f.
func (f *Filter) Option(key string) string {
	return f.Registration + option.Separator + key
}

func (f *Filter) plugConnector(i int) Connector {
	if i < len(f.Plugs) {
		return f.Plugs[i]
	}
	if len(f.Plugs) == 0 {
		return Connector{}
	}
	return f.Plugs[len(f.Plugs)-1]
}

// Registry holds filter descriptors by registration path.
type Registry struct {
	mu      sync.RWMutex
	filters []*Filter
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds f. Registrations must be valid paths and unique.
func (r *Registry) Register(f *Filter) error {
	if f == nil || !option.ValidRegistration(f.Registration) {
		return fmt.Errorf("%w: filter registration", option.ErrBadRegistration)
	}
	if f.Run == nil {
		return fmt.Errorf("graph: filter %s has no run function", f.Registration)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, g := range r.filters {
		if g.Registration == f.Registration {
			return fmt.Errorf("graph: filter %s already registered", f.Registration)
		}
	}
	r.filters = append(r.filters, f)
	return nil
}

// Lookup returns the first filter whose registration matches pattern.
func (r *Registry) Lookup(pattern string) (*Filter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.filters {
		if option.Match(f.Registration, pattern, option.MatchPattern) {
			return f, true
		}
	}
	return nil, false
}

// Filters returns the registered filters in registration order.
func (r *Registry) Filters() []*Filter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*Filter(nil), r.filters...)
}

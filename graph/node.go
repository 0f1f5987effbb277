package graph

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/wudi/colorkit/container"
	"github.com/wudi/colorkit/object"
	"github.com/wudi/colorkit/observability"
	"github.com/wudi/colorkit/observer"
	"github.com/wudi/colorkit/option"
)

// Plug is the consumer side of a connection.
type Plug struct {
	object.Base

	node   *Node
	index  int
	conn   Connector
	remote *Socket
}

func (p *Plug) Node() *Node          { return p.node }
func (p *Plug) Index() int           { return p.index }
func (p *Plug) Connector() Connector { return p.conn }

// Remote returns the socket feeding p, or nil.
func (p *Plug) Remote() *Socket { return p.remote }

// Socket is the producer side of a connection. It caches the image its
// node produced until invalidated.
type Socket struct {
	object.Base

	node  *Node
	index int
	conn  Connector
	data  *Image
	plugs []*Plug
}

func (s *Socket) Node() *Node          { return s.node }
func (s *Socket) Index() int           { return s.index }
func (s *Socket) Connector() Connector { return s.conn }

// Plugs returns the plugs connected to s.
func (s *Socket) Plugs() []*Plug { return append([]*Plug(nil), s.plugs...) }

// Data borrows the cached image, or nil.
func (s *Socket) Data() *Image { return s.data }

// SetData caches img, taking over the caller's reference, and emits
// StorageChanged.
func (s *Socket) SetData(img *Image) {
	old := s.data
	s.data = img
	if old != nil && old != img {
		old.Release()
	}
	s.Env().Emit(s, object.SignalStorageChanged, img)
}

// Invalidate drops the cached image and reports whether there was one.
func (s *Socket) Invalidate() bool {
	if s.data == nil {
		return false
	}
	old := s.data
	s.data = nil
	old.Release()
	s.Env().Emit(s, object.SignalDataChanged, nil)
	return true
}

// Node is an instance of a filter with its own options, connectors and
// derived object cache.
type Node struct {
	object.Base

	filter  *Filter
	options *option.Set
	plugs   []*Plug
	sockets []*Socket
	cache   *container.List
}

// NewNode instantiates f. Filter defaults are loaded as automatic options
// with the filter-default source.
func NewNode(env *object.Env, f *Filter) (*Node, error) {
	if f == nil {
		return nil, ErrUnknownFilter
	}
	opts := option.NewSet(env)
	if f.Defaults != "" {
		defs, err := option.FromText(env, []byte(f.Defaults), option.FormatKeyValue)
		if err != nil {
			opts.Release()
			return nil, fmt.Errorf("graph: defaults of %s: %w", f.Registration, err)
		}
		for _, o := range defs.Options() {
			o.SetFlags(o.Flags()&^option.FlagEdited | option.FlagAutomatic)
			o.SetSource(option.SourceFilterDefault)
			if _, err := opts.Add(o, -1, option.Share); err != nil {
				defs.Release()
				opts.Release()
				return nil, err
			}
		}
		defs.Release()
	}

	n := &Node{filter: f, options: opts, cache: container.New(env)}
	n.Init(object.KindNode, env)
	n.SetName(object.NameNick, option.Key(f.Registration))
	n.SetName(object.NameName, f.Name)
	n.SetName(object.NameDescription, f.Description)
	for i := range f.Plugs {
		n.plugs = append(n.plugs, n.newPlug(i))
	}
	for i, c := range f.Sockets {
		s := &Socket{node: n, index: i, conn: c}
		s.Init(object.KindSocket, env)
		n.sockets = append(n.sockets, s)
	}
	if reg := observer.From(env); reg != nil {
		reg.Add(opts, n, nil, nodeChanged)
	}
	n.OnRelease(n.teardown)
	return n, nil
}

// NewNode instantiates the first filter matching pattern.
func (r *Registry) NewNode(env *object.Env, pattern string) (*Node, error) {
	f, ok := r.Lookup(pattern)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, pattern)
	}
	return NewNode(env, f)
}

func (n *Node) newPlug(i int) *Plug {
	p := &Plug{node: n, index: i, conn: n.filter.plugConnector(i)}
	p.Init(object.KindPlug, n.Env())
	return p
}

func (n *Node) teardown() {
	for _, p := range n.plugs {
		n.unplug(p)
		p.Release()
	}
	for _, s := range n.sockets {
		for _, p := range s.plugs {
			p.remote = nil
			p.node.Env().Emit(p.node, object.SignalIncompleteGraph, p)
		}
		s.plugs = nil
		s.Invalidate()
		s.Release()
	}
	n.plugs, n.sockets = nil, nil
	n.options.Release()
	n.cache.Release()
}

// nodeChanged invalidates the observing node when its options or an
// upstream node change, and passes the change downstream.
func nodeChanged(e observer.Edge, sig object.Signal, data any) {
	if sig != object.SignalDataChanged {
		return
	}
	if n, ok := e.Observer.(*Node); ok {
		n.Invalidate(data)
	}
}

// Invalidate drops every socket cache of n and emits DataChanged, which
// invalidates downstream nodes in turn.
func (n *Node) Invalidate(data any) {
	for _, s := range n.sockets {
		s.Invalidate()
	}
	n.Env().Emit(n, object.SignalDataChanged, data)
}

func (n *Node) Filter() *Filter        { return n.filter }
func (n *Node) Options() *option.Set   { return n.options }
func (n *Node) Cache() *container.List { return n.cache }
func (n *Node) PlugCount() int         { return len(n.plugs) }
func (n *Node) SocketCount() int       { return len(n.sockets) }

func (n *Node) Plug(i int) *Plug {
	if i < 0 || i >= len(n.plugs) {
		return nil
	}
	return n.plugs[i]
}

func (n *Node) Socket(i int) *Socket {
	if i < 0 || i >= len(n.sockets) {
		return nil
	}
	return n.sockets[i]
}

// AddPlug appends a plug when the filter allows more.
func (n *Node) AddPlug() (*Plug, error) {
	if len(n.plugs) >= max(n.filter.MaxPlugs, len(n.filter.Plugs)) {
		return nil, fmt.Errorf("graph: %s accepts at most %d plugs", n.filter.Registration, len(n.plugs))
	}
	p := n.newPlug(len(n.plugs))
	n.plugs = append(n.plugs, p)
	return p, nil
}

// Upstream returns the node feeding plug i, or nil.
func (n *Node) Upstream(i int) *Node {
	p := n.Plug(i)
	if p == nil || p.remote == nil {
		return nil
	}
	return p.remote.node
}

func (n *Node) log() observability.Logger {
	return n.Env().Log().With(
		observability.String("filter", n.filter.Registration),
		observability.Int64("node", int64(n.ID())))
}

// Connect feeds plug of in from socket of out. A plug that is already
// connected is moved.
func Connect(out *Node, socket int, in *Node, plug int) error {
	s := out.Socket(socket)
	p := in.Plug(plug)
	if s == nil || p == nil {
		return fmt.Errorf("graph: no socket %d on %s or plug %d on %s", socket, out.filter.Registration, plug, in.filter.Registration)
	}
	if reaches(out, in) {
		return ErrCycle
	}
	if !s.conn.Compatible(p.conn) {
		in.Env().Emit(p, object.SignalIncompatibleData, s)
		return fmt.Errorf("%w: %s socket %d -> %s plug %d", ErrIncompatible,
			out.filter.Registration, socket, in.filter.Registration, plug)
	}
	in.unplug(p)

	p.remote = s
	s.plugs = append(s.plugs, p)
	if reg := observer.From(in.Env()); reg != nil {
		reg.Add(out, in, nil, nodeChanged)
	}
	in.Env().Emit(p, object.SignalConnected, s)
	out.Env().Emit(s, object.SignalConnected, p)
	in.Invalidate(p)
	return nil
}

// Disconnect detaches plug i of n.
func Disconnect(n *Node, plug int) bool {
	p := n.Plug(plug)
	if p == nil || p.remote == nil {
		return false
	}
	n.unplug(p)
	n.Invalidate(p)
	return true
}

func (n *Node) unplug(p *Plug) {
	s := p.remote
	if s == nil {
		return
	}
	p.remote = nil
	for i, q := range s.plugs {
		if q == p {
			s.plugs = append(s.plugs[:i], s.plugs[i+1:]...)
			break
		}
	}
	up := s.node
	for _, q := range n.plugs {
		if q.remote != nil && q.remote.node == up {
			return
		}
	}
	if reg := observer.From(n.Env()); reg != nil {
		reg.Remove(up, n, nodeChanged)
	}
}

// reaches reports whether target is n or lies upstream of n.
func reaches(n, target *Node) bool {
	found := false
	walk(n, map[object.ID]bool{}, func(m *Node, _ int) bool {
		if m == target {
			found = true
			return false
		}
		return true
	}, 0)
	return found
}

// Validate checks the options against the filter validator. Failures are
// reported through the message channel.
func (n *Node) Validate() error {
	if n.filter.Validate == nil {
		return nil
	}
	if err := n.filter.Validate(n.options); err != nil {
		n.Env().Message(object.SeverityError, n, "%s: %v", n.filter.Registration, err)
		return fmt.Errorf("%w: %s: %w", ErrInvalidOptions, n.filter.Registration, err)
	}
	return nil
}

// Run validates the options and calls the filter for t.
func (n *Node) Run(ctx context.Context, req *Plug, t *Ticket) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Done, err
	}
	if err := n.Validate(); err != nil {
		return Done, err
	}
	start := time.Now()
	res, err := n.filter.Run(ctx, n, req, t)
	t.metrics.run(n.filter.Registration, start, res, err)
	if err != nil {
		return res, fmt.Errorf("%s: %w", n.filter.Registration, err)
	}
	return res, nil
}

// Pull fills t from the node connected to plug i. Cached socket data is
// copied without running the upstream node.
func (n *Node) Pull(ctx context.Context, i int, t *Ticket) (Result, error) {
	p := n.Plug(i)
	if p == nil {
		return Done, fmt.Errorf("graph: %s has no plug %d", n.filter.Registration, i)
	}
	s := p.remote
	if s == nil {
		n.Env().Emit(n, object.SignalIncompleteGraph, p)
		return Done, fmt.Errorf("%w: %s plug %d", ErrIncompleteGraph, n.filter.Registration, i)
	}
	up := s.node
	if img := s.Data(); img != nil {
		t.metrics.pull(up.filter.Registration, true)
		return Done, img.ReadRegion(t.Array)
	}
	t.metrics.pull(up.filter.Registration, false)
	res, err := up.Run(ctx, p, t)
	if err != nil || res == Retry {
		return res, err
	}
	if img := s.Data(); img != nil {
		return Done, img.ReadRegion(t.Array)
	}
	return Done, nil
}

// Extent reports the bounds and layout n produces. Filters without an
// extent function pass plug 0 through.
func (n *Node) Extent() (image.Rectangle, Layout, error) {
	if n.filter.Extent != nil {
		return n.filter.Extent(n)
	}
	return n.UpstreamExtent(0)
}

// UpstreamExtent is the extent of the node feeding plug i.
func (n *Node) UpstreamExtent(i int) (image.Rectangle, Layout, error) {
	up := n.Upstream(i)
	if up == nil {
		return image.Rectangle{}, Layout{}, fmt.Errorf("%w: %s plug %d", ErrIncompleteGraph, n.filter.Registration, i)
	}
	return up.Extent()
}

package graph

import (
	"context"
	"image"
	"image/color"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/colorkit/cmm"
	"github.com/wudi/colorkit/container"
	"github.com/wudi/colorkit/object"
	"github.com/wudi/colorkit/observer"
	"github.com/wudi/colorkit/option"
	"github.com/wudi/colorkit/recovery"
)

const (
	sourceReg = "org/colorkit/test/source"
	sinkReg   = "org/colorkit/test/sink"
)

var grayExtent = image.Rect(0, 0, 4, 2)

// source produces a flat gray image on first touch and answers Retry.
func source(runs *int) *Filter {
	return &Filter{
		Registration: sourceReg,
		Name:         "source",
		Sockets:      []Connector{{Name: "out", Spaces: []string{cmm.SpaceGray}, MinChannels: 1, MaxChannels: 1}},
		Defaults:     sourceReg + "/level=0.25\n",
		Extent: func(n *Node) (image.Rectangle, Layout, error) {
			return grayExtent, LayoutOf(cmm.SpaceGray), nil
		},
		Run: func(ctx context.Context, n *Node, req *Plug, t *Ticket) (Result, error) {
			*runs++
			level, err := n.Options().FindDouble("source/level", 0)
			if err != nil {
				return Done, err
			}
			img := NewImage(n.Env(), grayExtent.Dx(), grayExtent.Dy(), LayoutOf(cmm.SpaceGray))
			for i := range img.Pixels().Data {
				img.Pixels().Data[i] = level
			}
			req.Remote().SetData(img)
			return Retry, nil
		},
	}
}

// invert pulls plug 0 into a sub-ticket and inverts it.
func invert() *Filter {
	return &Filter{
		Registration: "org/colorkit/test/invert",
		Plugs:        []Connector{{Name: "in"}},
		Sockets:      []Connector{{Name: "out"}},
		Run: func(ctx context.Context, n *Node, req *Plug, t *Ticket) (Result, error) {
			sub := t.Sub(t.Region, t.Array.Layout)
			defer sub.Release()
			res, err := n.Pull(ctx, 0, sub)
			if err != nil || res == Retry {
				return res, err
			}
			for i, v := range sub.Array.Data {
				t.Array.Data[i] = 1 - v
			}
			return Done, nil
		},
	}
}

func sink() *Filter {
	return &Filter{
		Registration: sinkReg,
		Plugs:        []Connector{{Name: "in"}},
		Run: func(ctx context.Context, n *Node, req *Plug, t *Ticket) (Result, error) {
			return n.Pull(ctx, 0, t)
		},
	}
}

func chain(t *testing.T, env *object.Env, filters ...*Filter) []*Node {
	t.Helper()
	var nodes []*Node
	for i, f := range filters {
		n, err := NewNode(env, f)
		require.NoError(t, err)
		if i > 0 {
			require.NoError(t, Connect(nodes[i-1], 0, n, 0))
		}
		nodes = append(nodes, n)
	}
	return nodes
}

type recorder struct {
	object.Base
	signals []object.Signal
	data    []any
}

func newRecorder(env *object.Env) *recorder {
	r := &recorder{}
	r.Init(object.KindCustom, env)
	return r
}

func (r *recorder) handle(e observer.Edge, sig object.Signal, data any) {
	r.signals = append(r.signals, sig)
	r.data = append(r.data, data)
}

func (r *recorder) watch(model object.Object) {
	observer.From(r.Env()).Add(model, r, nil, func(e observer.Edge, sig object.Signal, data any) {
		e.Observer.(*recorder).handle(e, sig, data)
	})
}

func (r *recorder) count(sig object.Signal) int {
	n := 0
	for _, s := range r.signals {
		if s == sig {
			n++
		}
	}
	return n
}

func TestSocketCachingAndInvalidation(t *testing.T) {
	env := observer.NewEnv(nil)
	runs := 0
	nodes := chain(t, env, source(&runs), sink())
	src, out := nodes[0], nodes[1]
	conv := NewConversion(src, out)

	img, err := conv.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
	assert.InDelta(t, 0.25, img.Pixels().Data[0], 1e-12)
	img.Release()

	img, err = conv.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, runs, "second pull served from socket data")
	img.Release()
	require.NotNil(t, src.Socket(0).Data())

	downstream := newRecorder(env)
	downstream.watch(out)
	require.NoError(t, src.Options().SetFromDouble(sourceReg+"/level", 0.5, 0, 0))
	assert.Nil(t, src.Socket(0).Data(), "option change drops the cache")
	assert.Equal(t, 1, downstream.count(object.SignalDataChanged), "change reaches downstream nodes")

	img, err = conv.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, runs)
	assert.InDelta(t, 0.5, img.Pixels().Data[0], 1e-12)
	img.Release()
}

func TestDataChangedReachesEndOfLongChain(t *testing.T) {
	var msgs []object.Message
	env := observer.NewEnv(nil)
	env.Messages = func(m object.Message) { msgs = append(msgs, m) }
	runs := 0
	filters := []*Filter{source(&runs)}
	for i := 0; i < 100; i++ {
		filters = append(filters, invert())
	}
	nodes := chain(t, env, filters...)
	last := newRecorder(env)
	last.watch(nodes[len(nodes)-1])

	require.NoError(t, nodes[0].Options().SetFromDouble(sourceReg+"/level", 0.75, 0, 0))
	assert.Equal(t, 1, last.count(object.SignalDataChanged))
	assert.Empty(t, msgs)
}

func TestDefaultsAreAutomatic(t *testing.T) {
	env := observer.NewEnv(nil)
	runs := 0
	n, err := NewNode(env, source(&runs))
	require.NoError(t, err)
	o, ok := n.Options().Find("source/level", option.MatchPattern)
	require.True(t, ok)
	assert.Equal(t, option.FlagAutomatic, o.Flags())
	assert.Equal(t, option.SourceFilterDefault, o.Source())
	assert.Equal(t, "source", n.Name(object.NameNick))

	_, err = NewNode(env, &Filter{Registration: "a/b", Defaults: "broken", Run: sink().Run})
	assert.Error(t, err)
}

func TestFanInThroughSubTickets(t *testing.T) {
	env := observer.NewEnv(nil)
	runs := 0
	nodes := chain(t, env, source(&runs), invert(), sink())
	img, err := NewConversion(nodes[0], nodes[2]).Run(context.Background())
	require.NoError(t, err)
	defer img.Release()
	for _, v := range img.Pixels().Data {
		assert.InDelta(t, 0.75, v, 1e-12)
	}
}

func TestRetryLimitAndRecovery(t *testing.T) {
	env := observer.NewEnv(nil)
	stuck := &Filter{
		Registration: "org/colorkit/test/stuck",
		Extent: func(n *Node) (image.Rectangle, Layout, error) {
			return grayExtent, LayoutOf(cmm.SpaceGray), nil
		},
		Run: func(ctx context.Context, n *Node, req *Plug, t *Ticket) (Result, error) {
			return Retry, nil
		},
	}
	n, err := NewNode(env, stuck)
	require.NoError(t, err)

	conv := NewConversion(nil, n)
	conv.MaxRetries = 3
	_, err = conv.Run(context.Background())
	assert.ErrorIs(t, err, ErrRetryLimit)

	lenient := recovery.NewLenientStrategy()
	conv.Strategy = lenient
	img, err := conv.Run(context.Background())
	require.NoError(t, err)
	img.Release()
	require.Len(t, lenient.Errs(), 1)
	assert.ErrorIs(t, lenient.Errs()[0], ErrRetryLimit)
}

func TestPullUnconnectedPlug(t *testing.T) {
	env := observer.NewEnv(nil)
	out, err := NewNode(env, sink())
	require.NoError(t, err)
	rec := newRecorder(env)
	rec.watch(out)

	tk := NewTicket(env, nil, grayExtent)
	defer tk.Release()
	_, err = out.Pull(context.Background(), 0, tk)
	assert.ErrorIs(t, err, ErrIncompleteGraph)
	assert.Equal(t, 1, rec.count(object.SignalIncompleteGraph))

	_, err = NewConversion(nil, out).Run(context.Background())
	assert.ErrorIs(t, err, ErrIncompleteGraph)
}

func TestConnectChecks(t *testing.T) {
	env := observer.NewEnv(nil)
	runs := 0
	src, err := NewNode(env, source(&runs))
	require.NoError(t, err)
	rgbOnly := sink()
	rgbOnly.Plugs = []Connector{{Name: "in", Spaces: []string{cmm.SpaceRGB}}}
	dst, err := NewNode(env, rgbOnly)
	require.NoError(t, err)

	rec := newRecorder(env)
	rec.watch(dst.Plug(0))
	err = Connect(src, 0, dst, 0)
	assert.ErrorIs(t, err, ErrIncompatible)
	assert.Equal(t, 1, rec.count(object.SignalIncompatibleData))
	assert.Nil(t, dst.Plug(0).Remote())

	a, err := NewNode(env, invert())
	require.NoError(t, err)
	b, err := NewNode(env, invert())
	require.NoError(t, err)
	require.NoError(t, Connect(a, 0, b, 0))
	assert.ErrorIs(t, Connect(b, 0, a, 0), ErrCycle)
	assert.ErrorIs(t, Connect(a, 0, a, 0), ErrCycle)

	assert.Error(t, Connect(a, 3, b, 0))
	assert.True(t, Disconnect(b, 0))
	assert.False(t, Disconnect(b, 0))
	assert.False(t, observer.From(env).IsObserved(a, b))
}

func TestConnectorCompatible(t *testing.T) {
	gray := Connector{Spaces: []string{cmm.SpaceGray}, MinChannels: 1, MaxChannels: 1}
	open := Connector{}
	color3 := Connector{MinChannels: 3, MaxChannels: 4}
	assert.True(t, gray.Compatible(open))
	assert.True(t, open.Compatible(color3))
	assert.False(t, gray.Compatible(color3))
	assert.False(t, gray.Compatible(Connector{Spaces: []string{cmm.SpaceRGB}}))
}

func TestValidationGoesToMessages(t *testing.T) {
	env := observer.NewEnv(nil)
	var msgs []object.Message
	env.Messages = func(m object.Message) { msgs = append(msgs, m) }

	f := sink()
	f.Registration = "org/colorkit/test/writer"
	f.Validate = func(set *option.Set) error {
		var o struct {
			Filename string `option:"writer/filename" validate:"required"`
		}
		return BindOptions(set, &o)
	}
	runs := 0
	nodes := chain(t, env, source(&runs), f)

	_, err := NewConversion(nodes[0], nodes[1]).Run(context.Background())
	assert.ErrorIs(t, err, ErrInvalidOptions)
	require.Len(t, msgs, 1)
	assert.Equal(t, object.SeverityError, msgs[0].Severity)
	assert.Equal(t, object.KindNode, msgs[0].Kind)
	assert.Equal(t, nodes[1].ID(), msgs[0].ID)
	assert.Zero(t, runs)

	require.NoError(t, nodes[1].Options().SetFromString(f.Option("filename"), "out.png", 0, option.SetCreate))
	img, err := NewConversion(nodes[0], nodes[1]).Run(context.Background())
	require.NoError(t, err)
	img.Release()
}

func TestBindOptions(t *testing.T) {
	env := observer.NewEnv(nil)
	set := option.NewSet(env)
	require.NoError(t, set.SetFromDouble("app/filter/scale/factor", 2, 0, option.SetCreate))
	require.NoError(t, set.SetFromString("app/filter/scale/mode", "bilinear", 0, option.SetCreate))
	require.NoError(t, set.SetFromDouble("app/filter/rect/rectangle", 0, 3, option.SetCreate))
	require.NoError(t, set.SetFromInt("app/filter/scale/steps", 3, 0, option.SetCreate))

	var o struct {
		Factor float64   `option:"scale/factor" validate:"gt=0"`
		Mode   string    `option:"scale/mode" validate:"oneof=nearest bilinear"`
		Rect   []float64 `option:"rect/rectangle" validate:"len=4"`
		Steps  int       `option:"scale/steps"`
		Absent string    `option:"scale/missing"`
	}
	require.NoError(t, BindOptions(set, &o))
	assert.Equal(t, 2.0, o.Factor)
	assert.Equal(t, "bilinear", o.Mode)
	assert.Equal(t, []float64{0, 0, 0, 0}, o.Rect)
	assert.Equal(t, 3, o.Steps)

	require.NoError(t, set.SetFromDouble("app/filter/scale/factor", -1, 0, 0))
	assert.ErrorIs(t, BindOptions(set, &o), ErrInvalidOptions)

	var bad struct {
		Factor float64 `option:"scale/mode"`
	}
	assert.ErrorIs(t, BindOptions(set, &bad), option.ErrWrongKind)
	assert.Error(t, BindOptions(set, o))
}

func TestDerivedCacheFollowsContext(t *testing.T) {
	env := observer.NewEnv(nil)
	runs := 0
	n, err := NewNode(env, source(&runs))
	require.NoError(t, err)

	builds := 0
	build := func(ctx []byte) (any, error) {
		builds++
		return string(ctx), nil
	}
	d1, err := ContextDigest(n)
	require.NoError(t, err)
	v1, err := n.Derived(build)
	require.NoError(t, err)
	v2, err := n.Derived(build)
	require.NoError(t, err)
	assert.Equal(t, 1, builds)
	assert.Equal(t, v1, v2)

	require.NoError(t, n.Options().SetFromDouble(sourceReg+"/level", 0.9, 0, 0))
	d2, err := ContextDigest(n)
	require.NoError(t, err)
	assert.NotEqual(t, d1, d2)
	_, err = n.Derived(build)
	require.NoError(t, err)
	assert.Equal(t, 2, builds)
	assert.Equal(t, 1, n.Cache().Count(), "older context evicted")
	_, ok := n.Cache().Lookup(container.HashDigest, d1[:])
	assert.False(t, ok)

	require.NoError(t, n.Options().SetFromDouble(sourceReg+"/level", 0.25, 0, 0))
	v3, err := n.Derived(build)
	require.NoError(t, err)
	assert.Equal(t, 3, builds)
	assert.Equal(t, v1, v3)
	assert.Equal(t, 1, n.Cache().Count())
}

func TestTraverseEmitsVisited(t *testing.T) {
	env := observer.NewEnv(nil)
	runs := 0
	nodes := chain(t, env, source(&runs), invert(), sink())
	rec := newRecorder(env)
	rec.watch(nodes[0])

	order := Traverse(nodes[2], nil)
	require.Len(t, order, 3)
	assert.Same(t, nodes[2], order[0])
	assert.Same(t, nodes[0], order[2])
	require.Equal(t, 1, rec.count(object.SignalVisited))
	assert.Equal(t, 2, rec.data[0])

	stopped := Traverse(nodes[2], func(n *Node, depth int) bool { return depth < 1 })
	assert.Len(t, stopped, 2)
}

func TestMetricsCountPulls(t *testing.T) {
	env := observer.NewEnv(nil)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	runs := 0
	nodes := chain(t, env, source(&runs), sink())
	conv := NewConversion(nodes[0], nodes[1])
	conv.Metrics = m

	for i := 0; i < 2; i++ {
		img, err := conv.Run(context.Background())
		require.NoError(t, err)
		img.Release()
	}
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Pulls.WithLabelValues(sourceReg)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheHits.WithLabelValues(sourceReg)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries))
	assert.Equal(t, 3, testutil.CollectAndCount(m.RunDuration), "sink retry, source retry, sink done")
}

func TestReleaseNodeUnplugsDownstream(t *testing.T) {
	env := observer.NewEnv(nil)
	reg := observer.From(env)
	runs := 0
	nodes := chain(t, env, source(&runs), sink())
	img, err := NewConversion(nodes[0], nodes[1]).Run(context.Background())
	require.NoError(t, err)
	img.Release()

	require.True(t, nodes[0].Release())
	assert.Nil(t, nodes[1].Plug(0).Remote())
	require.True(t, nodes[1].Release())
	assert.Equal(t, 0, reg.Len())
}

func TestTicketSub(t *testing.T) {
	env := observer.NewEnv(nil)
	out := NewImage(env, 8, 8, LayoutOf(cmm.SpaceRGB))
	tk := NewTicket(env, out, image.Rect(0, 0, 8, 8))
	assert.Equal(t, 2, out.Refs())

	sub := tk.Sub(image.Rect(2, 2, 4, 4), LayoutOf(cmm.SpaceGray))
	assert.Equal(t, tk.UUID, sub.Parent)
	assert.NotEqual(t, tk.UUID, sub.UUID)
	assert.Equal(t, 1, sub.Depth())
	assert.Len(t, sub.Array.Data, 4)
	assert.Same(t, out, sub.Output)

	sub.Release()
	tk.Release()
	assert.Equal(t, 1, out.Refs())
	out.Release()
}

func TestImageConversion(t *testing.T) {
	env := observer.NewEnv(nil)
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	src.SetNRGBA(1, 0, color.NRGBA{G: 255, B: 255, A: 255})

	im := FromImage(env, src)
	defer im.Release()
	assert.Equal(t, LayoutOf(cmm.SpaceRGB), im.Layout())
	assert.Equal(t, []float64{1, 0, 0, 0, 1, 1}, im.Pixels().Data)

	back, err := im.ToImage()
	require.NoError(t, err)
	r, g, b, _ := back.At(1, 0).RGBA()
	assert.Equal(t, []uint32{0, 0xffff, 0xffff}, []uint32{r, g, b})

	gray := FromImage(env, image.NewGray(image.Rect(0, 0, 3, 3)))
	defer gray.Release()
	assert.Equal(t, 1, gray.Layout().Channels)
	gi, err := gray.ToImage()
	require.NoError(t, err)
	assert.IsType(t, &image.Gray16{}, gi)

	lab := NewImage(env, 1, 1, Layout{Space: cmm.SpaceLab, Channels: 3})
	defer lab.Release()
	assert.Contains(t, lab.RenderText(0), `space="Lab "`)
}

func TestPixelArrayCopy(t *testing.T) {
	a := NewPixelArray(image.Rect(0, 0, 4, 4), LayoutOf(cmm.SpaceGray))
	for i := range a.Data {
		a.Data[i] = float64(i)
	}
	b := NewPixelArray(image.Rect(2, 1, 6, 3), LayoutOf(cmm.SpaceGray))
	require.NoError(t, b.CopyFrom(a))
	assert.Equal(t, []float64{6, 7, 0, 0, 10, 11, 0, 0}, b.Data)
	assert.Equal(t, 7.0, b.Pixel(3, 1)[0])

	rgb := NewPixelArray(image.Rect(0, 0, 1, 1), LayoutOf(cmm.SpaceRGB))
	assert.ErrorIs(t, rgb.CopyFrom(a), ErrIncompatible)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	runs := 0
	require.NoError(t, reg.Register(source(&runs)))
	require.NoError(t, reg.Register(sink()))
	assert.Error(t, reg.Register(sink()), "duplicate")
	assert.ErrorIs(t, reg.Register(&Filter{Registration: "flat", Run: sink().Run}), option.ErrBadRegistration)

	f, ok := reg.Lookup("test/sink")
	require.True(t, ok)
	assert.Equal(t, sinkReg, f.Registration)
	_, ok = reg.Lookup("nothing")
	assert.False(t, ok)

	_, err := reg.NewNode(observer.NewEnv(nil), "nothing")
	assert.ErrorIs(t, err, ErrUnknownFilter)
	assert.Len(t, reg.Filters(), 2)
}

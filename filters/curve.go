package filters

import (
	"context"
	"math"

	"github.com/wudi/colorkit/graph"
	"github.com/wudi/colorkit/scripting"
)

type curveOptions struct {
	Expression string `option:"curve/expression" validate:"required"`
	Size       int    `option:"curve/size" validate:"gte=2,lte=65536"`
}

// Curve maps every sample through a JavaScript expression of v. The
// expression can read other options of the node with option(path).
func Curve() *graph.Filter {
	reg := registration("curve")
	return &graph.Filter{
		Registration: reg,
		Name:         "Tone curve",
		Description:  "Applies a scripted tone curve to every channel.",
		Plugs:        []graph.Connector{{Name: "image"}},
		Sockets:      []graph.Connector{{Name: "image"}},
		Defaults: reg + "/expression=\"v\"\n" +
			reg + "/size=256\n",
		Validate: bind[curveOptions](),
		Run:      runCurve,
	}
}

// lookupTable samples the curve once per node context.
func lookupTable(ctx context.Context, n *graph.Node) ([]float64, error) {
	v, err := n.Derived(func([]byte) (any, error) {
		o, err := options[curveOptions](n)
		if err != nil {
			return nil, err
		}
		eng := scripting.NewEngine()
		if err := eng.RegisterOptions(n.Options()); err != nil {
			return nil, err
		}
		return eng.Curve(ctx, o.Expression, o.Size)
	})
	if err != nil {
		return nil, err
	}
	return v.([]float64), nil
}

// applyCurve interpolates linearly between table entries.
func applyCurve(lut []float64, v float64) float64 {
	pos := clampUnit(v) * float64(len(lut)-1)
	i := int(math.Floor(pos))
	if i >= len(lut)-1 {
		return lut[len(lut)-1]
	}
	f := pos - float64(i)
	return lut[i]*(1-f) + lut[i+1]*f
}

func runCurve(ctx context.Context, n *graph.Node, req *graph.Plug, t *graph.Ticket) (graph.Result, error) {
	lut, err := lookupTable(ctx, n)
	if err != nil {
		return graph.Done, err
	}
	res, err := n.Pull(ctx, 0, t)
	if err != nil || res == graph.Retry {
		return res, err
	}
	for i, v := range t.Array.Data {
		t.Array.Data[i] = applyCurve(lut, v)
	}
	return graph.Done, nil
}

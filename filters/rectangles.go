package filters

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/wudi/colorkit/graph"
	"github.com/wudi/colorkit/option"
)

type rectanglesOptions struct {
	Rectangle []float64 `option:"rectangles/rectangle"`
}

// Rectangles composes its plugs into one image. Each plug owns a
// rectangle of the output given as four doubles, x y width height,
// relative to the extent of plug 0. Later plugs paint over earlier ones.
func Rectangles() *graph.Filter {
	return &graph.Filter{
		Registration: registration("rectangles"),
		Name:         "Rectangles",
		Description:  "Tiles several inputs into rectangles of one image.",
		Plugs:        []graph.Connector{{Name: "input"}},
		Sockets:      []graph.Connector{{Name: "image"}},
		MaxPlugs:     16,
		Defaults:     registration("rectangles") + "/rectangle=[0.0, 0.0, 1.0, 1.0]\n",
		Validate: func(set *option.Set) error {
			var o rectanglesOptions
			if err := graph.BindOptions(set, &o); err != nil {
				return err
			}
			if len(o.Rectangle)%4 != 0 {
				return fmt.Errorf("%w: rectangle needs four values per plug, got %d", graph.ErrInvalidOptions, len(o.Rectangle))
			}
			return nil
		},
		Run: runRectangles,
	}
}

// placement returns the output rectangle of plug i. Plugs without their
// own entry cover the whole extent.
func placement(bounds image.Rectangle, rel []float64, i int) image.Rectangle {
	if 4*i+4 > len(rel) {
		return bounds
	}
	r := rel[4*i : 4*i+4]
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	x0 := bounds.Min.X + int(math.Round(r[0]*w))
	y0 := bounds.Min.Y + int(math.Round(r[1]*h))
	return image.Rect(x0, y0, x0+int(math.Round(r[2]*w)), y0+int(math.Round(r[3]*h))).Intersect(bounds)
}

func runRectangles(ctx context.Context, n *graph.Node, req *graph.Plug, t *graph.Ticket) (graph.Result, error) {
	o, err := options[rectanglesOptions](n)
	if err != nil {
		return graph.Done, err
	}
	bounds, _, err := n.Extent()
	if err != nil {
		return graph.Done, err
	}
	retry := false
	for i := 0; i < n.PlugCount(); i++ {
		if n.Plug(i).Remote() == nil {
			continue
		}
		r := placement(bounds, o.Rectangle, i).Intersect(t.Region)
		if r.Empty() {
			continue
		}
		_, l, err := n.UpstreamExtent(i)
		if err != nil {
			return graph.Done, err
		}
		if l.Channels != t.Array.Layout.Channels {
			return graph.Done, fmt.Errorf("%w: plug %d is %s, output is %s", graph.ErrIncompatible, i, l, t.Array.Layout)
		}
		sub := t.Sub(r, l)
		res, err := n.Pull(ctx, i, sub)
		if err == nil && res == graph.Done {
			err = t.Array.CopyFrom(sub.Array)
		}
		sub.Release()
		if err != nil {
			return graph.Done, err
		}
		retry = retry || res == graph.Retry
	}
	if retry {
		return graph.Retry, nil
	}
	return graph.Done, nil
}

package filters

import (
	"context"
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/wudi/colorkit/graph"
)

type scaleOptions struct {
	Factor        float64 `option:"scale/factor" validate:"gt=0"`
	Interpolation string  `option:"scale/interpolation" validate:"oneof=nearest bilinear catmull-rom"`
}

// Scale resizes its input by a uniform factor.
func Scale() *graph.Filter {
	reg := registration("scale")
	return &graph.Filter{
		Registration: reg,
		Name:         "Scale",
		Description:  "Resamples the image by a factor.",
		Plugs:        []graph.Connector{{Name: "image"}},
		Sockets:      []graph.Connector{{Name: "image"}},
		Defaults: reg + "/factor=1.0\n" +
			reg + "/interpolation=\"bilinear\"\n",
		Validate: bind[scaleOptions](),
		Extent:   scaleExtent,
		Run:      runScale,
	}
}

func scaled(r image.Rectangle, f float64) image.Rectangle {
	return image.Rect(
		int(math.Floor(float64(r.Min.X)*f)), int(math.Floor(float64(r.Min.Y)*f)),
		int(math.Ceil(float64(r.Max.X)*f)), int(math.Ceil(float64(r.Max.Y)*f)),
	)
}

func scaleExtent(n *graph.Node) (image.Rectangle, graph.Layout, error) {
	b, l, err := n.UpstreamExtent(0)
	if err != nil {
		return b, l, err
	}
	o, err := options[scaleOptions](n)
	if err != nil {
		return b, l, err
	}
	out := scaled(b, o.Factor)
	if err := checkExtent(out, l); err != nil {
		return out, l, err
	}
	return out, l, nil
}

func interpolator(name string) draw.Interpolator {
	switch name {
	case "nearest":
		return draw.NearestNeighbor
	case "catmull-rom":
		return draw.CatmullRom
	}
	return draw.BiLinear
}

// runScale pulls the source area under t.Region, with a margin for the
// kernel, and resamples every channel as a 16 bit gray plane.
func runScale(ctx context.Context, n *graph.Node, req *graph.Plug, t *graph.Ticket) (graph.Result, error) {
	o, err := options[scaleOptions](n)
	if err != nil {
		return graph.Done, err
	}
	bounds, l, err := n.UpstreamExtent(0)
	if err != nil {
		return graph.Done, err
	}
	if l.Channels != t.Array.Layout.Channels {
		return graph.Done, fmt.Errorf("%w: scale %s into %s", graph.ErrIncompatible, l, t.Array.Layout)
	}
	src := scaled(t.Region, 1/o.Factor).Inset(-2).Intersect(bounds)
	if src.Empty() {
		return graph.Done, nil
	}
	sub := t.Sub(src, l)
	defer sub.Release()
	res, err := n.Pull(ctx, 0, sub)
	if err != nil || res == graph.Retry {
		return res, err
	}

	// Maps source pixel space onto output pixel space.
	m := f64.Aff3{o.Factor, 0, 0, 0, o.Factor, 0}
	interp := interpolator(o.Interpolation)
	ch := l.Channels
	in := image.NewGray16(src)
	out := image.NewGray16(t.Region)
	for c := 0; c < ch; c++ {
		if err := ctx.Err(); err != nil {
			return graph.Done, err
		}
		for y := src.Min.Y; y < src.Max.Y; y++ {
			row := sub.Array.Row(y)
			for x := 0; x < src.Dx(); x++ {
				v := uint16(math.Round(clampUnit(row[x*ch+c]) * 0xffff))
				i := in.PixOffset(src.Min.X+x, y)
				in.Pix[i], in.Pix[i+1] = uint8(v>>8), uint8(v)
			}
		}
		interp.Transform(out, m, in, src, draw.Src, nil)
		for y := t.Region.Min.Y; y < t.Region.Max.Y; y++ {
			row := t.Array.Row(y)
			for x := 0; x < t.Region.Dx(); x++ {
				i := out.PixOffset(t.Region.Min.X+x, y)
				row[x*ch+c] = float64(uint16(out.Pix[i])<<8|uint16(out.Pix[i+1])) / 0xffff
			}
		}
	}
	return graph.Done, nil
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

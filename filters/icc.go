package filters

import (
	"context"
	"fmt"
	"image"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/wudi/colorkit/cmm"
	"github.com/wudi/colorkit/graph"
	"github.com/wudi/colorkit/option"
)

type iccOptions struct {
	SrcSpace string `option:"icc/src_space"`
	DstSpace string `option:"icc/dst_space" validate:"required"`
	Intent   string `option:"icc/rendering_intent"`
}

// ICC converts between color spaces. Spaces are built-in names or ICC
// file paths; an empty source uses the upstream layout.
func ICC() *graph.Filter {
	reg := registration("icc")
	return &graph.Filter{
		Registration: reg,
		Name:         "Color transform",
		Description:  "Converts pixels between profiles.",
		Plugs:        []graph.Connector{{Name: "image", MinChannels: 1, MaxChannels: 4}},
		Sockets:      []graph.Connector{{Name: "image", MinChannels: 1, MaxChannels: 4}},
		Defaults: reg + "/dst_space=\"srgb\"\n" +
			reg + "/rendering_intent=\"perceptual\"\n",
		Validate: func(set *option.Set) error {
			var o iccOptions
			if err := graph.BindOptions(set, &o); err != nil {
				return err
			}
			_, err := cmm.ParseIntent(o.Intent)
			return err
		},
		Context: iccContext,
		Extent:  iccExtent,
		Run:     runICC,
	}
}

func iccContext(n *graph.Node) ([]byte, error) {
	text, err := n.Options().ToText(option.FormatKeyValue)
	if err != nil {
		return nil, err
	}
	_, up, err := n.UpstreamExtent(0)
	if err != nil {
		return nil, err
	}
	return append(text, "upstream="+up.Space...), nil
}

func iccExtent(n *graph.Node) (image.Rectangle, graph.Layout, error) {
	b, _, err := n.UpstreamExtent(0)
	if err != nil {
		return b, graph.Layout{}, err
	}
	o, err := options[iccOptions](n)
	if err != nil {
		return b, graph.Layout{}, err
	}
	dst, err := cmm.LoadProfile(cmm.NewFactory(), o.DstSpace)
	if err != nil {
		return b, graph.Layout{}, err
	}
	return b, graph.LayoutOf(dst.ColorSpace()), nil
}

// transform returns the node's transform, built once per context.
func transform(n *graph.Node) (cmm.Transform, error) {
	v, err := n.Derived(func([]byte) (any, error) {
		o, err := options[iccOptions](n)
		if err != nil {
			return nil, err
		}
		f := cmm.NewFactory()
		srcName := o.SrcSpace
		if srcName == "" {
			_, up, err := n.UpstreamExtent(0)
			if err != nil {
				return nil, err
			}
			srcName = up.Space
		}
		src, err := cmm.LoadProfile(f, srcName)
		if err != nil {
			return nil, err
		}
		dst, err := cmm.LoadProfile(f, o.DstSpace)
		if err != nil {
			return nil, err
		}
		intent, err := cmm.ParseIntent(o.Intent)
		if err != nil {
			return nil, err
		}
		return f.NewTransform(src, dst, intent)
	})
	if err != nil {
		return nil, err
	}
	return v.(cmm.Transform), nil
}

func runICC(ctx context.Context, n *graph.Node, req *graph.Plug, t *graph.Ticket) (graph.Result, error) {
	_, up, err := n.UpstreamExtent(0)
	if err != nil {
		return graph.Done, err
	}
	tr, err := transform(n)
	if err != nil {
		return graph.Done, err
	}
	sub := t.Sub(t.Region, up)
	defer sub.Release()
	res, err := n.Pull(ctx, 0, sub)
	if err != nil || res == graph.Retry {
		return res, err
	}

	inC, outC := up.Channels, t.Array.Layout.Channels
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for y := t.Region.Min.Y; y < t.Region.Max.Y; y++ {
		y := y
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, dst := sub.Array.Row(y), t.Array.Row(y)
			for x := 0; x < t.Region.Dx(); x++ {
				px, err := tr.Convert(src[x*inC : (x+1)*inC])
				if err != nil {
					return err
				}
				if len(px) != outC {
					return fmt.Errorf("%w: transform yields %d channels, ticket has %d", graph.ErrIncompatible, len(px), outC)
				}
				copy(dst[x*outC:], px)
			}
			return nil
		})
	}
	return graph.Done, g.Wait()
}

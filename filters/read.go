package filters

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/wudi/colorkit/cmm"
	"github.com/wudi/colorkit/graph"
	"github.com/wudi/colorkit/object"
)

type readOptions struct {
	Filename string `option:"read/filename" validate:"required"`
	Profile  string `option:"read/profile"`
}

// Read decodes PNG, JPEG, TIFF or BMP files. The file is decoded on first
// touch into the socket cache and the pull is answered with Retry.
func Read() *graph.Filter {
	return &graph.Filter{
		Registration: registration("read"),
		Name:         "Read image file",
		Description:  "Decodes an image file into the socket cache.",
		Sockets:      []graph.Connector{{Name: "image"}},
		Validate:     bind[readOptions](),
		Extent:       readExtent,
		Run:          runRead,
	}
}

func readExtent(n *graph.Node) (image.Rectangle, graph.Layout, error) {
	o, err := options[readOptions](n)
	if err != nil {
		return image.Rectangle{}, graph.Layout{}, err
	}
	if s := n.Socket(0); s != nil && s.Data() != nil {
		return s.Data().Bounds(), s.Data().Layout(), nil
	}
	f, err := os.Open(o.Filename)
	if err != nil {
		return image.Rectangle{}, graph.Layout{}, err
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(bufio.NewReader(f))
	if err != nil {
		return image.Rectangle{}, graph.Layout{}, fmt.Errorf("read %s: %w", o.Filename, err)
	}
	r, l := image.Rect(0, 0, cfg.Width, cfg.Height), layoutOfModel(cfg.ColorModel)
	if err := checkExtent(r, l); err != nil {
		return image.Rectangle{}, graph.Layout{}, err
	}
	return r, l, nil
}

func layoutOfModel(m color.Model) graph.Layout {
	switch m {
	case color.GrayModel, color.Gray16Model:
		return graph.LayoutOf(cmm.SpaceGray)
	case color.CMYKModel:
		return graph.LayoutOf(cmm.SpaceCMYK)
	}
	return graph.LayoutOf(cmm.SpaceRGB)
}

// decode reads one image and checks its bounds.
func decode(env *object.Env, r io.Reader) (*graph.Image, error) {
	src, _, err := image.Decode(bufio.NewReader(r))
	if err != nil {
		return nil, err
	}
	if err := checkExtent(src.Bounds(), layoutOfModel(src.ColorModel())); err != nil {
		return nil, err
	}
	return graph.FromImage(env, src), nil
}

func runRead(ctx context.Context, n *graph.Node, req *graph.Plug, t *graph.Ticket) (graph.Result, error) {
	o, err := options[readOptions](n)
	if err != nil {
		return graph.Done, err
	}
	f, err := os.Open(o.Filename)
	if err != nil {
		return graph.Done, err
	}
	defer f.Close()
	img, err := decode(n.Env(), f)
	if err != nil {
		return graph.Done, fmt.Errorf("read %s: %w", o.Filename, err)
	}
	if o.Profile != "" {
		p, err := cmm.LoadProfile(cmm.NewFactory(), o.Profile)
		if err != nil {
			img.Release()
			return graph.Done, err
		}
		img.SetProfile(p)
	} else if p, err := cmm.NewGenericProfile(img.Layout().Space); err == nil {
		img.SetProfile(p)
	}

	if req == nil {
		defer img.Release()
		return graph.Done, img.ReadRegion(t.Array)
	}
	req.Remote().SetData(img)
	return graph.Retry, nil
}

package filters

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/wudi/colorkit/graph"
)

type writeOptions struct {
	Filename string `option:"write/filename"`
	Quality  int    `option:"write/quality" validate:"gte=1,lte=100"`
}

// Write pulls its plug into the ticket. When a filename is set and the
// ticket covers the whole output, the result is encoded by extension.
func Write() *graph.Filter {
	return &graph.Filter{
		Registration: registration("write"),
		Name:         "Write image file",
		Description:  "Pulls the graph result and optionally encodes it.",
		Plugs:        []graph.Connector{{Name: "image"}},
		Defaults:     registration("write") + "/quality=90\n",
		Validate:     bind[writeOptions](),
		Run:          runWrite,
	}
}

func runWrite(ctx context.Context, n *graph.Node, req *graph.Plug, t *graph.Ticket) (graph.Result, error) {
	res, err := n.Pull(ctx, 0, t)
	if err != nil || res == graph.Retry {
		return res, err
	}
	o, err := options[writeOptions](n)
	if err != nil {
		return graph.Done, err
	}
	if o.Filename == "" || t.Output == nil || t.Region != t.Output.Bounds() {
		return graph.Done, nil
	}
	return graph.Done, writeFile(n, t.Array, o)
}

func writeFile(n *graph.Node, a *graph.PixelArray, o writeOptions) error {
	img := graph.NewImage(n.Env(), a.Rect.Dx(), a.Rect.Dy(), a.Layout)
	defer img.Release()
	shifted := *a
	shifted.Rect = a.Rect.Sub(a.Rect.Min)
	if err := img.Pixels().CopyFrom(&shifted); err != nil {
		return err
	}
	out, err := img.ToImage()
	if err != nil {
		return err
	}

	f, err := os.Create(o.Filename)
	if err != nil {
		return err
	}
	if err := encode(f, out, filepath.Ext(o.Filename), o.Quality); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", o.Filename, err)
	}
	return f.Close()
}

func encode(w io.Writer, img image.Image, ext string, quality int) error {
	switch strings.ToLower(ext) {
	case ".png":
		return png.Encode(w, img)
	case ".jpg", ".jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case ".tif", ".tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case ".bmp":
		return bmp.Encode(w, img)
	}
	return fmt.Errorf("unsupported output format %q", ext)
}

package graph

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/wudi/colorkit/cmm"
	"github.com/wudi/colorkit/object"
	"github.com/wudi/colorkit/value"
)

// Layout describes the samples of one pixel.
type Layout struct {
	Space    string
	Channels int
}

// LayoutOf returns the layout of a cmm color space.
func LayoutOf(space string) Layout {
	return Layout{Space: space, Channels: cmm.Channels(space)}
}

func (l Layout) String() string {
	return fmt.Sprintf("%q/%d", l.Space, l.Channels)
}

// PixelArray is a rectangle of interleaved float samples in [0,1]. Rect is
// in output image coordinates.
type PixelArray struct {
	Rect   image.Rectangle
	Layout Layout
	Data   []float64
}

// NewPixelArray allocates a zeroed array covering r.
func NewPixelArray(r image.Rectangle, l Layout) *PixelArray {
	return &PixelArray{Rect: r, Layout: l, Data: make([]float64, r.Dx()*r.Dy()*l.Channels)}
}

// Offset returns the index of the first sample of (x, y).
func (a *PixelArray) Offset(x, y int) int {
	return ((y-a.Rect.Min.Y)*a.Rect.Dx() + (x - a.Rect.Min.X)) * a.Layout.Channels
}

// Pixel returns the samples of (x, y) as a subslice.
func (a *PixelArray) Pixel(x, y int) []float64 {
	i := a.Offset(x, y)
	return a.Data[i : i+a.Layout.Channels : i+a.Layout.Channels]
}

// Row returns the samples of row y.
func (a *PixelArray) Row(y int) []float64 {
	i := a.Offset(a.Rect.Min.X, y)
	return a.Data[i : i+a.Rect.Dx()*a.Layout.Channels]
}

// CopyFrom copies the overlap of src into a.
func (a *PixelArray) CopyFrom(src *PixelArray) error {
	if src.Layout.Channels != a.Layout.Channels {
		return fmt.Errorf("%w: %s into %s", ErrIncompatible, src.Layout, a.Layout)
	}
	r := a.Rect.Intersect(src.Rect)
	if r.Empty() {
		return nil
	}
	n := r.Dx() * a.Layout.Channels
	for y := r.Min.Y; y < r.Max.Y; y++ {
		copy(a.Data[a.Offset(r.Min.X, y):][:n], src.Data[src.Offset(r.Min.X, y):][:n])
	}
	return nil
}

// Image is a reference counted float image. It can sit in socket caches
// and in option values.
type Image struct {
	object.Base

	pix     *PixelArray
	profile cmm.Profile
}

// NewImage allocates a zeroed w x h image.
func NewImage(env *object.Env, w, h int, l Layout) *Image {
	im := &Image{pix: NewPixelArray(image.Rect(0, 0, w, h), l)}
	im.Init(object.KindImage, env)
	return im
}

func (im *Image) Bounds() image.Rectangle { return im.pix.Rect }
func (im *Image) Layout() Layout          { return im.pix.Layout }
func (im *Image) Pixels() *PixelArray     { return im.pix }

// Profile returns the attached color profile, which may be nil.
func (im *Image) Profile() cmm.Profile     { return im.profile }
func (im *Image) SetProfile(p cmm.Profile) { im.profile = p }

// ReadRegion fills dst from the image where they overlap.
func (im *Image) ReadRegion(dst *PixelArray) error {
	return dst.CopyFrom(im.pix)
}

// WriteRegion stores src into the image and emits DataChanged.
func (im *Image) WriteRegion(src *PixelArray) error {
	if err := im.pix.CopyFrom(src); err != nil {
		return err
	}
	im.Env().Emit(im, object.SignalDataChanged, src.Rect)
	return nil
}

// Copy returns an independent image with a new id.
func (im *Image) Copy(env *object.Env) *Image {
	c := NewImage(env, im.pix.Rect.Dx(), im.pix.Rect.Dy(), im.pix.Layout)
	copy(c.pix.Data, im.pix.Data)
	c.profile = im.profile
	return c
}

func (im *Image) CopyObject(env *object.Env) object.Object { return im.Copy(env) }

func (im *Image) Share() value.StructRef {
	im.Retain()
	return im
}

func (im *Image) Duplicate() value.StructRef { return im.Copy(im.Env()) }
func (im *Image) Drop()                      { im.Release() }
func (im *Image) TypeName() string           { return "image" }

func (im *Image) RenderText(indent int) string {
	b := im.Bounds()
	return fmt.Sprintf(`<image width="%d" height="%d" space="%s" channels="%d"/>`,
		b.Dx(), b.Dy(), im.pix.Layout.Space, im.pix.Layout.Channels)
}

// FromImage converts src into an RGB, gray or CMYK float image.
func FromImage(env *object.Env, src image.Image) *Image {
	b := src.Bounds()
	switch s := src.(type) {
	case *image.Gray, *image.Gray16:
		im := NewImage(env, b.Dx(), b.Dy(), LayoutOf(cmm.SpaceGray))
		for y := 0; y < b.Dy(); y++ {
			row := im.pix.Row(y)
			for x := 0; x < b.Dx(); x++ {
				g := color.Gray16Model.Convert(s.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				row[x] = float64(g.Y) / 0xffff
			}
		}
		return im
	case *image.CMYK:
		im := NewImage(env, b.Dx(), b.Dy(), LayoutOf(cmm.SpaceCMYK))
		for y := 0; y < b.Dy(); y++ {
			row := im.pix.Row(y)
			for x := 0; x < b.Dx(); x++ {
				c := s.CMYKAt(b.Min.X+x, b.Min.Y+y)
				px := row[4*x : 4*x+4]
				px[0], px[1], px[2], px[3] = float64(c.C)/255, float64(c.M)/255, float64(c.Y)/255, float64(c.K)/255
			}
		}
		return im
	}

	nrgba := image.NewNRGBA64(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(nrgba, nrgba.Bounds(), src, b.Min, draw.Src)
	im := NewImage(env, b.Dx(), b.Dy(), LayoutOf(cmm.SpaceRGB))
	for y := 0; y < b.Dy(); y++ {
		row := im.pix.Row(y)
		for x := 0; x < b.Dx(); x++ {
			c := nrgba.NRGBA64At(x, y)
			px := row[3*x : 3*x+3]
			px[0], px[1], px[2] = float64(c.R)/0xffff, float64(c.G)/0xffff, float64(c.B)/0xffff
		}
	}
	return im
}

// ToImage renders the image for encoding. Gray and CMYK keep their
// models, every other 3 channel space is written as RGB samples.
func (im *Image) ToImage() (image.Image, error) {
	r := image.Rect(0, 0, im.pix.Rect.Dx(), im.pix.Rect.Dy())
	switch l := im.pix.Layout; {
	case l.Channels == 1:
		out := image.NewGray16(r)
		for y := 0; y < r.Dy(); y++ {
			row := im.pix.Row(y)
			for x := 0; x < r.Dx(); x++ {
				out.SetGray16(x, y, color.Gray16{Y: unit16(row[x])})
			}
		}
		return out, nil
	case l.Channels == 4 && l.Space == cmm.SpaceCMYK:
		out := image.NewCMYK(r)
		for y := 0; y < r.Dy(); y++ {
			row := im.pix.Row(y)
			for x := 0; x < r.Dx(); x++ {
				px := row[4*x : 4*x+4]
				out.SetCMYK(x, y, color.CMYK{C: unit8(px[0]), M: unit8(px[1]), Y: unit8(px[2]), K: unit8(px[3])})
			}
		}
		return out, nil
	case l.Channels == 3:
		out := image.NewNRGBA64(r)
		for y := 0; y < r.Dy(); y++ {
			row := im.pix.Row(y)
			for x := 0; x < r.Dx(); x++ {
				px := row[3*x : 3*x+3]
				out.SetNRGBA64(x, y, color.NRGBA64{R: unit16(px[0]), G: unit16(px[1]), B: unit16(px[2]), A: 0xffff})
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: cannot render layout %s", ErrIncompatible, im.pix.Layout)
}

func unit16(v float64) uint16 {
	return uint16(math.Round(math.Min(1, math.Max(0, v)) * 0xffff))
}

func unit8(v float64) uint8 {
	return uint8(math.Round(math.Min(1, math.Max(0, v)) * 0xff))
}

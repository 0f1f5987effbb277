package filters

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/colorkit/cmm"
	"github.com/wudi/colorkit/graph"
	"github.com/wudi/colorkit/object"
	"github.com/wudi/colorkit/observer"
	"github.com/wudi/colorkit/option"
	"github.com/wudi/colorkit/value"
)

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func flatGray(level uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, 4, 2))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	return img
}

func node(t *testing.T, env *object.Env, f *graph.Filter, opts map[string]string) *graph.Node {
	t.Helper()
	n, err := graph.NewNode(env, f)
	require.NoError(t, err)
	for k, v := range opts {
		require.NoError(t, n.Options().SetFromString(f.Option(k), v, 0, option.SetCreate))
	}
	return n
}

func reader(t *testing.T, env *object.Env, path string) *graph.Node {
	return node(t, env, Read(), map[string]string{"filename": path})
}

func TestRegister(t *testing.T) {
	reg := graph.NewRegistry()
	require.NoError(t, Register(reg))
	assert.Len(t, reg.Filters(), len(All()))

	f, ok := reg.Lookup("filter/icc")
	require.True(t, ok)
	assert.Equal(t, "org/colorkit/filter/icc", f.Registration)
	assert.Error(t, Register(reg), "duplicates are rejected")
}

func TestReadRetriesOnFirstTouch(t *testing.T) {
	env := observer.NewEnv(nil)
	src := reader(t, env, writePNG(t, flatGray(0x80)))
	out := node(t, env, Write(), nil)
	require.NoError(t, graph.Connect(src, 0, out, 0))

	conv := graph.NewConversion(src, out)
	conv.Metrics = graph.NewMetrics(prometheus.NewRegistry())
	img, err := conv.Run(context.Background())
	require.NoError(t, err)
	defer img.Release()

	assert.Equal(t, 1.0, testutil.ToFloat64(conv.Metrics.Retries))
	require.NotNil(t, src.Socket(0).Data())
	assert.Equal(t, cmm.SpaceGray, img.Layout().Space)
	assert.InDelta(t, 128.0/255, img.Pixels().Pixel(3, 1)[0], 1e-6)

	img2, err := conv.Run(context.Background())
	require.NoError(t, err)
	defer img2.Release()
	assert.Equal(t, 1.0, testutil.ToFloat64(conv.Metrics.Retries), "socket data is reused")
}

func TestConvertAndWrite(t *testing.T) {
	env := observer.NewEnv(nil)
	in := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for x := 0; x < 4; x++ {
		for y := 0; y < 2; y++ {
			c := color.NRGBA{A: 0xff}
			if x >= 2 {
				c = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
			}
			in.SetNRGBA(x, y, c)
		}
	}
	dst := filepath.Join(t.TempDir(), "out.png")

	src := reader(t, env, writePNG(t, in))
	icc := node(t, env, ICC(), map[string]string{"dst_space": "gray"})
	out := node(t, env, Write(), map[string]string{"filename": dst})
	require.NoError(t, graph.Connect(src, 0, icc, 0))
	require.NoError(t, graph.Connect(icc, 0, out, 0))

	img, err := graph.NewConversion(src, out).Run(context.Background())
	require.NoError(t, err)
	defer img.Release()
	assert.Equal(t, 1, img.Layout().Channels)
	assert.InDelta(t, 0, img.Pixels().Pixel(0, 0)[0], 1e-3)
	assert.InDelta(t, 1, img.Pixels().Pixel(3, 0)[0], 1e-3)

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	back, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 2), back.Bounds())
	r, _, _, _ := back.At(3, 1).RGBA()
	assert.Greater(t, r, uint32(0xfe00))
}

func TestICCRejectsBadIntent(t *testing.T) {
	env := observer.NewEnv(nil)
	var msgs []object.Message
	env.Messages = func(m object.Message) { msgs = append(msgs, m) }
	src := reader(t, env, writePNG(t, flatGray(0)))
	icc := node(t, env, ICC(), map[string]string{"rendering_intent": "vivid"})
	require.NoError(t, graph.Connect(src, 0, icc, 0))

	_, err := graph.NewConversion(src, icc).Run(context.Background())
	assert.ErrorIs(t, err, graph.ErrInvalidOptions)
	assert.NotEmpty(t, msgs)
}

func TestScale(t *testing.T) {
	env := observer.NewEnv(nil)
	src := reader(t, env, writePNG(t, flatGray(0x80)))
	sc := node(t, env, Scale(), nil)
	require.NoError(t, sc.Options().SetFromDouble(sc.Filter().Option("factor"), 2, 0, 0))
	require.NoError(t, graph.Connect(src, 0, sc, 0))

	b, l, err := sc.Extent()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 4), b)
	assert.Equal(t, cmm.SpaceGray, l.Space)

	img, err := graph.NewConversion(src, sc).Run(context.Background())
	require.NoError(t, err)
	defer img.Release()
	for _, v := range img.Pixels().Data {
		assert.InDelta(t, 128.0/255, v, 2e-3)
	}

	require.NoError(t, sc.Options().SetFromDouble(sc.Filter().Option("factor"), 0, 0, 0))
	_, err = graph.NewConversion(src, sc).Run(context.Background())
	assert.ErrorIs(t, err, graph.ErrInvalidOptions)
}

func TestCurve(t *testing.T) {
	env := observer.NewEnv(nil)
	src := reader(t, env, writePNG(t, flatGray(0xff)))
	cv := node(t, env, Curve(), map[string]string{"expression": "v * option('curve/gain')"})
	require.NoError(t, cv.Options().SetFromDouble(cv.Filter().Option("gain"), 0.25, 0, option.SetCreate))
	require.NoError(t, graph.Connect(src, 0, cv, 0))

	img, err := graph.NewConversion(src, cv).Run(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.25, img.Pixels().Pixel(0, 0)[0], 1e-9)
	img.Release()

	require.NoError(t, cv.Options().SetFromDouble(cv.Filter().Option("gain"), 0.5, 0, 0))
	img, err = graph.NewConversion(src, cv).Run(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, img.Pixels().Pixel(0, 0)[0], 1e-9, "option change rebuilds the table")
	img.Release()
}

func TestApplyCurveInterpolates(t *testing.T) {
	lut := []float64{0, 0.5, 1}
	assert.Equal(t, 0.25, applyCurve(lut, 0.25))
	assert.Equal(t, 1.0, applyCurve(lut, 2))
	assert.Equal(t, 0.0, applyCurve(lut, -1))
}

func TestRectangles(t *testing.T) {
	env := observer.NewEnv(nil)
	black := reader(t, env, writePNG(t, flatGray(0)))
	white := reader(t, env, writePNG(t, flatGray(0xff)))
	rc := node(t, env, Rectangles(), nil)
	_, err := rc.AddPlug()
	require.NoError(t, err)
	require.NoError(t, rc.Options().SetFromValue(rc.Filter().Option("rectangle"),
		value.Doubles(0, 0, 0.5, 1, 0.5, 0, 0.5, 1), 0))
	require.NoError(t, graph.Connect(black, 0, rc, 0))
	require.NoError(t, graph.Connect(white, 0, rc, 1))

	img, err := graph.NewConversion(black, rc).Run(context.Background())
	require.NoError(t, err)
	defer img.Release()
	assert.Equal(t, 0.0, img.Pixels().Pixel(1, 1)[0])
	assert.Equal(t, 1.0, img.Pixels().Pixel(2, 0)[0])
	assert.NotNil(t, white.Socket(0).Data(), "both inputs were read")

	assert.Equal(t, image.Rect(2, 0, 4, 2), placement(image.Rect(0, 0, 4, 2), []float64{0, 0, 0.5, 1, 0.5, 0, 0.5, 1}, 1))
	assert.Equal(t, image.Rect(0, 0, 4, 2), placement(image.Rect(0, 0, 4, 2), nil, 3))
}

func TestRectanglesRejectsPartialRectangle(t *testing.T) {
	env := observer.NewEnv(nil)
	rc := node(t, env, Rectangles(), nil)
	require.NoError(t, rc.Options().SetFromValue(rc.Filter().Option("rectangle"), value.Doubles(0, 0, 1), 0))
	assert.ErrorIs(t, rc.Validate(), graph.ErrInvalidOptions)
}

package cmm

import (
	"errors"
	"fmt"
	"math"
)

// D50 white point for XYZ <-> Lab conversion.
const (
	D50X = 0.9642
	D50Y = 1.0000
	D50Z = 0.8249
)

// sRGB primaries adapted to D50, as found in the common sRGB ICC profile.
var srgbMatrix = [9]float64{
	0.4361, 0.3851, 0.1431,
	0.2225, 0.7169, 0.0606,
	0.0139, 0.0971, 0.7141,
}

const genericGamma = 2.2

var errShortInput = errors.New("cmm: input too short")

// basicTransform converts between device spaces without a PCS.
type basicTransform struct {
	src, dst string
}

func (t *basicTransform) Convert(in []float64) ([]float64, error) {
	if err := checkChannels(t.src, in); err != nil {
		return nil, err
	}
	out := make([]float64, Channels(t.dst))

	switch {
	case t.src == t.dst:
		copy(out, in)
	case t.src == SpaceRGB && t.dst == SpaceCMYK:
		rgbToCMYK(in, out)
	case t.src == SpaceCMYK && t.dst == SpaceRGB:
		cmykToRGB(in, out)
	case t.src == SpaceGray && t.dst == SpaceRGB:
		out[0], out[1], out[2] = in[0], in[0], in[0]
	case t.src == SpaceRGB && t.dst == SpaceGray:
		out[0] = luma(in[0], in[1], in[2])
	case t.src == SpaceGray && t.dst == SpaceCMYK:
		out[3] = 1.0 - in[0]
	case t.src == SpaceCMYK && t.dst == SpaceGray:
		var rgb [3]float64
		cmykToRGB(in, rgb[:])
		out[0] = luma(rgb[0], rgb[1], rgb[2])
	default:
		return nil, fmt.Errorf("cmm: unsupported conversion %q -> %q", t.src, t.dst)
	}
	return out, nil
}

func rgbToCMYK(in, out []float64) {
	r, g, b := in[0], in[1], in[2]
	k := 1.0 - math.Max(r, math.Max(g, b))
	if k < 1.0 {
		out[0] = (1.0 - r - k) / (1.0 - k)
		out[1] = (1.0 - g - k) / (1.0 - k)
		out[2] = (1.0 - b - k) / (1.0 - k)
	}
	out[3] = k
}

func cmykToRGB(in, out []float64) {
	c, m, y, k := in[0], in[1], in[2], in[3]
	out[0] = (1.0 - c) * (1.0 - k)
	out[1] = (1.0 - m) * (1.0 - k)
	out[2] = (1.0 - y) * (1.0 - k)
}

func luma(r, g, b float64) float64 {
	return 0.299*r + 0.587*g + 0.114*b
}

func checkChannels(space string, in []float64) error {
	if n := Channels(space); len(in) != n {
		return fmt.Errorf("cmm: input channels mismatch: expected %d, got %d", n, len(in))
	}
	return nil
}

// pcsTransform runs a device-to-XYZ stage then an XYZ-to-device stage.
type pcsTransform struct {
	src    string
	toPCS  Transform
	fromPC Transform
}

func (t *pcsTransform) Convert(in []float64) ([]float64, error) {
	if err := checkChannels(t.src, in); err != nil {
		return nil, err
	}
	xyz, err := t.toPCS.Convert(in)
	if err != nil {
		return nil, err
	}
	return t.fromPC.Convert(xyz)
}

// chain applies transforms in order.
type chain []Transform

func (c chain) Convert(in []float64) ([]float64, error) {
	out := in
	for _, t := range c {
		var err error
		if out, err = t.Convert(out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type funcTransform func(in []float64) ([]float64, error)

func (f funcTransform) Convert(in []float64) ([]float64, error) { return f(in) }

type matrixTRCTransform struct {
	srcGamma [3]float64
	matrix   [9]float64 // rX, gX, bX, rY, gY, bY, rZ, gZ, bZ
}

func (t *matrixTRCTransform) Convert(in []float64) ([]float64, error) {
	if len(in) < 3 {
		return nil, errShortInput
	}
	r := math.Pow(math.Max(0, in[0]), t.srcGamma[0])
	g := math.Pow(math.Max(0, in[1]), t.srcGamma[1])
	b := math.Pow(math.Max(0, in[2]), t.srcGamma[2])

	x := t.matrix[0]*r + t.matrix[1]*g + t.matrix[2]*b
	y := t.matrix[3]*r + t.matrix[4]*g + t.matrix[5]*b
	z := t.matrix[6]*r + t.matrix[7]*g + t.matrix[8]*b
	return []float64{x, y, z}, nil
}

func tryCreateMatrixTRC(p *ICCProfile) (*matrixTRCTransform, error) {
	var cols [3][3]float64
	for i, sig := range []string{"rXYZ", "gXYZ", "bXYZ"} {
		xyz, err := p.ReadXYZTag(sig)
		if err != nil {
			return nil, err
		}
		cols[i] = xyz
	}
	var gamma [3]float64
	for i, sig := range []string{"rTRC", "gTRC", "bTRC"} {
		g, err := p.ReadCurveTag(sig)
		if err != nil {
			return nil, err
		}
		gamma[i] = g
	}
	return &matrixTRCTransform{
		srcGamma: gamma,
		matrix: [9]float64{
			cols[0][0], cols[1][0], cols[2][0],
			cols[0][1], cols[1][1], cols[2][1],
			cols[0][2], cols[1][2], cols[2][2],
		},
	}, nil
}

func (t *matrixTRCTransform) Inverse() (Transform, error) {
	invMat, err := invertMatrix(t.matrix)
	if err != nil {
		return nil, err
	}
	return &inverseMatrixTRCTransform{destGamma: t.srcGamma, matrix: invMat}, nil
}

type inverseMatrixTRCTransform struct {
	destGamma [3]float64
	matrix    [9]float64 // XYZ -> linear RGB
}

func (t *inverseMatrixTRCTransform) Convert(in []float64) ([]float64, error) {
	if len(in) < 3 {
		return nil, errShortInput
	}
	x, y, z := in[0], in[1], in[2]
	rLin := t.matrix[0]*x + t.matrix[1]*y + t.matrix[2]*z
	gLin := t.matrix[3]*x + t.matrix[4]*y + t.matrix[5]*z
	bLin := t.matrix[6]*x + t.matrix[7]*y + t.matrix[8]*z

	r := math.Pow(math.Max(0, rLin), 1.0/t.destGamma[0])
	g := math.Pow(math.Max(0, gLin), 1.0/t.destGamma[1])
	b := math.Pow(math.Max(0, bLin), 1.0/t.destGamma[2])
	return []float64{r, g, b}, nil
}

func invertMatrix(m [9]float64) ([9]float64, error) {
	a, b, c := m[0], m[1], m[2]
	d, e, f := m[3], m[4], m[5]
	g, h, i := m[6], m[7], m[8]

	det := a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
	if math.Abs(det) < 1e-10 {
		return [9]float64{}, errors.New("cmm: matrix is singular")
	}
	invDet := 1.0 / det

	return [9]float64{
		(e*i - f*h) * invDet, (c*h - b*i) * invDet, (b*f - c*e) * invDet,
		(f*g - d*i) * invDet, (a*i - c*g) * invDet, (c*d - a*f) * invDet,
		(d*h - e*g) * invDet, (g*b - a*h) * invDet, (a*e - b*d) * invDet,
	}, nil
}

// matrixModel returns the matrix/TRC model of an ICC RGB profile, or nil.
func matrixModel(p Profile) *matrixTRCTransform {
	icc, ok := p.(*ICCProfile)
	if !ok || icc.ColorSpace() != SpaceRGB {
		return nil
	}
	m, err := tryCreateMatrixTRC(icc)
	if err != nil {
		return nil
	}
	return m
}

var genericRGB = &matrixTRCTransform{
	srcGamma: [3]float64{genericGamma, genericGamma, genericGamma},
	matrix:   srgbMatrix,
}

func toPCS(p Profile) (Transform, error) {
	if m := matrixModel(p); m != nil {
		return m, nil
	}
	switch p.ColorSpace() {
	case SpaceRGB:
		return genericRGB, nil
	case SpaceGray:
		return funcTransform(func(in []float64) ([]float64, error) {
			y := math.Pow(math.Max(0, in[0]), genericGamma)
			return []float64{D50X * y, D50Y * y, D50Z * y}, nil
		}), nil
	case SpaceCMYK:
		return chain{funcTransform(func(in []float64) ([]float64, error) {
			out := make([]float64, 3)
			cmykToRGB(in, out)
			return out, nil
		}), genericRGB}, nil
	case SpaceLab:
		return funcTransform(func(in []float64) ([]float64, error) {
			return LabToXYZ(DecodeLab(in)), nil
		}), nil
	case SpaceXYZ:
		return &identityTransform{}, nil
	}
	return nil, fmt.Errorf("cmm: no PCS model for %q", p.ColorSpace())
}

func fromPCS(p Profile) (Transform, error) {
	if m := matrixModel(p); m != nil {
		return m.Inverse()
	}
	rgb, err := genericRGB.Inverse()
	if err != nil {
		return nil, err
	}
	switch p.ColorSpace() {
	case SpaceRGB:
		return rgb, nil
	case SpaceGray:
		return funcTransform(func(in []float64) ([]float64, error) {
			if len(in) < 3 {
				return nil, errShortInput
			}
			return []float64{math.Pow(math.Max(0, in[1]), 1.0/genericGamma)}, nil
		}), nil
	case SpaceCMYK:
		return chain{rgb, funcTransform(func(in []float64) ([]float64, error) {
			out := make([]float64, 4)
			rgbToCMYK(clamp01(in), out)
			return out, nil
		})}, nil
	case SpaceLab:
		return funcTransform(func(in []float64) ([]float64, error) {
			if len(in) < 3 {
				return nil, errShortInput
			}
			return EncodeLab(XYZToLab(in)), nil
		}), nil
	case SpaceXYZ:
		return &identityTransform{}, nil
	}
	return nil, fmt.Errorf("cmm: no PCS model for %q", p.ColorSpace())
}

func clamp01(in []float64) []float64 {
	for i, v := range in {
		in[i] = math.Min(1, math.Max(0, v))
	}
	return in
}

// XYZToLab converts D50 XYZ to CIE Lab with L in [0,100].
func XYZToLab(xyz []float64) []float64 {
	if len(xyz) < 3 {
		return xyz
	}
	f := func(t float64) float64 {
		if t > 0.008856 {
			return math.Cbrt(t)
		}
		return 7.787*t + 16.0/116.0
	}
	fx := f(xyz[0] / D50X)
	fy := f(xyz[1] / D50Y)
	fz := f(xyz[2] / D50Z)
	return []float64{116.0*fy - 16.0, 500.0 * (fx - fy), 200.0 * (fy - fz)}
}

// LabToXYZ is the inverse of XYZToLab.
func LabToXYZ(lab []float64) []float64 {
	if len(lab) < 3 {
		return lab
	}
	fy := (lab[0] + 16.0) / 116.0
	fx := lab[1]/500.0 + fy
	fz := fy - lab[2]/200.0

	fInv := func(t float64) float64 {
		if t > 0.206893 {
			return t * t * t
		}
		return (t - 16.0/116.0) / 7.787
	}
	return []float64{D50X * fInv(fx), D50Y * fInv(fy), D50Z * fInv(fz)}
}

// EncodeLab maps Lab to unit components: L/100 and (a+128)/255.
func EncodeLab(lab []float64) []float64 {
	return []float64{lab[0] / 100, (lab[1] + 128) / 255, (lab[2] + 128) / 255}
}

// DecodeLab is the inverse of EncodeLab.
func DecodeLab(in []float64) []float64 {
	return []float64{in[0] * 100, in[1]*255 - 128, in[2]*255 - 128}
}

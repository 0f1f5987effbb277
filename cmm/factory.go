package cmm

import (
	"bytes"
	"errors"
	"os"
)

type factoryImpl struct{}

// NewFactory returns the default CMM factory.
func NewFactory() Factory {
	return &factoryImpl{}
}

func (f *factoryImpl) NewProfile(data []byte) (Profile, error) {
	return NewICCProfile(data)
}

// LoadProfile resolves a built-in space name first and falls back to
// reading an ICC file.
func LoadProfile(f Factory, nameOrPath string) (Profile, error) {
	if p, err := NewGenericProfile(nameOrPath); err == nil {
		return p, nil
	}
	data, err := os.ReadFile(nameOrPath)
	if err != nil {
		return nil, err
	}
	return f.NewProfile(data)
}

func (f *factoryImpl) NewTransform(src, dst Profile, intent RenderingIntent) (Transform, error) {
	if src == nil || dst == nil {
		return nil, errors.New("cmm: source and destination profiles required")
	}
	if Channels(src.ColorSpace()) == 0 || Channels(dst.ColorSpace()) == 0 {
		return nil, errors.New("cmm: unsupported color space")
	}
	if src.ColorSpace() == dst.ColorSpace() && bytes.Equal(src.Data(), dst.Data()) {
		return &identityTransform{}, nil
	}

	// Device to device without a colorimetric model stays direct.
	if isDevice(src.ColorSpace()) && isDevice(dst.ColorSpace()) &&
		matrixModel(src) == nil && matrixModel(dst) == nil {
		return &basicTransform{src: src.ColorSpace(), dst: dst.ColorSpace()}, nil
	}

	to, err := toPCS(src)
	if err != nil {
		return nil, err
	}
	from, err := fromPCS(dst)
	if err != nil {
		return nil, err
	}
	return &pcsTransform{src: src.ColorSpace(), toPCS: to, fromPC: from}, nil
}

func isDevice(space string) bool {
	return space == SpaceRGB || space == SpaceCMYK || space == SpaceGray
}

type identityTransform struct{}

func (t *identityTransform) Convert(src []float64) ([]float64, error) {
	dst := make([]float64, len(src))
	copy(dst, src)
	return dst, nil
}

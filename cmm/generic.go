package cmm

import (
	"fmt"
	"strings"
)

// GenericProfile is a built-in profile for a named color space. RGB is
// sRGB adapted to D50, gray uses the sRGB tone curve, CMYK is a naive
// device space without ink limits.
type GenericProfile struct {
	name  string
	space string
}

// NewGenericProfile returns the built-in profile for a space name such as
// "srgb", "gray", "cmyk", "lab" or "xyz". ICC signatures are accepted too.
func NewGenericProfile(name string) (*GenericProfile, error) {
	space, ok := genericSpaces[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		space, ok = genericSpaces[strings.ToLower(name)]
	}
	if !ok {
		return nil, fmt.Errorf("cmm: no built-in profile for %q", name)
	}
	return &GenericProfile{name: genericNames[space], space: space}, nil
}

var genericSpaces = map[string]string{
	"srgb": SpaceRGB, "rgb": SpaceRGB, "rgb ": SpaceRGB,
	"gray": SpaceGray, "grey": SpaceGray,
	"cmyk": SpaceCMYK,
	"lab": SpaceLab, "lab ": SpaceLab, "cielab": SpaceLab,
	"xyz": SpaceXYZ, "xyz ": SpaceXYZ,
}

var genericNames = map[string]string{
	SpaceRGB:  "colorkit sRGB",
	SpaceGray: "colorkit Gray",
	SpaceCMYK: "colorkit CMYK",
	SpaceLab:  "colorkit Lab",
	SpaceXYZ:  "colorkit XYZ",
}

func (p *GenericProfile) Name() string       { return p.name }
func (p *GenericProfile) ColorSpace() string { return p.space }
func (p *GenericProfile) PCS() string        { return SpaceXYZ }

func (p *GenericProfile) Class() string {
	switch p.space {
	case SpaceLab, SpaceXYZ:
		return "abst"
	case SpaceCMYK:
		return "prtr"
	}
	return "mntr"
}

// Data identifies the profile; equal data means an identity transform.
func (p *GenericProfile) Data() []byte {
	return []byte("colorkit-generic:" + p.space)
}

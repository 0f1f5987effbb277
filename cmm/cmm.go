// Package cmm is the minimal color management module behind the icc
// filter: profiles, rendering intents and per-pixel transforms.
package cmm

import (
	"fmt"
	"strings"
)

// Color space signatures as they appear in an ICC header.
const (
	SpaceRGB  = "RGB "
	SpaceCMYK = "CMYK"
	SpaceGray = "GRAY"
	SpaceLab  = "Lab "
	SpaceXYZ  = "XYZ "
)

// Profile represents a color profile (e.g., ICC).
type Profile interface {
	// Name returns the profile description or name.
	Name() string
	// ColorSpace returns the color space signature (e.g., "RGB ", "CMYK").
	ColorSpace() string
	// Class returns the profile class (e.g., "mntr", "prtr").
	Class() string
	// PCS returns the profile connection space signature.
	PCS() string
	// Data returns the raw profile bytes.
	Data() []byte
}

// Transform represents a color transformation between two profiles.
type Transform interface {
	// Convert transforms a color value from source to destination space.
	Convert(src []float64) ([]float64, error)
}

// Factory creates profiles and transforms.
type Factory interface {
	NewProfile(data []byte) (Profile, error)
	NewTransform(src, dst Profile, intent RenderingIntent) (Transform, error)
}

// RenderingIntent specifies the rendering intent for color conversion.
type RenderingIntent int

const (
	IntentPerceptual RenderingIntent = iota
	IntentRelativeColorimetric
	IntentSaturation
	IntentAbsoluteColorimetric
)

var intentNames = []string{"perceptual", "relative", "saturation", "absolute"}

func (i RenderingIntent) String() string {
	if i < 0 || int(i) >= len(intentNames) {
		return fmt.Sprintf("intent(%d)", int(i))
	}
	return intentNames[i]
}

// ParseIntent accepts an intent name, its common long form, or its ICC
// number as text.
func ParseIntent(s string) (RenderingIntent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "perceptual", "0", "":
		return IntentPerceptual, nil
	case "relative", "relative-colorimetric", "relative_colorimetric", "1":
		return IntentRelativeColorimetric, nil
	case "saturation", "2":
		return IntentSaturation, nil
	case "absolute", "absolute-colorimetric", "absolute_colorimetric", "3":
		return IntentAbsoluteColorimetric, nil
	}
	return 0, fmt.Errorf("cmm: unknown rendering intent %q", s)
}

// Channels returns the number of components of a color space, or 0.
func Channels(space string) int {
	switch space {
	case SpaceRGB, SpaceLab, SpaceXYZ:
		return 3
	case SpaceCMYK:
		return 4
	case SpaceGray:
		return 1
	}
	return 0
}

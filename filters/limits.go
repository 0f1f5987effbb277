package filters

import (
	"errors"
	"fmt"
	"image"

	"github.com/wudi/colorkit/graph"
)

// Pixel arrays hold one float64 per sample, so the sample count is what
// bounds the memory of a decoded or scaled image.
const (
	maxImageSide          = 1 << 15
	maxImageSamples int64 = 1 << 28
)

var ErrImageTooLarge = errors.New("filters: image too large")

// checkExtent rejects empty extents and extents whose pixel array in
// layout l would exceed the sample budget.
func checkExtent(r image.Rectangle, l graph.Layout) error {
	w, h := r.Dx(), r.Dy()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("filters: empty extent %v", r)
	}
	if w > maxImageSide || h > maxImageSide {
		return fmt.Errorf("%w: %dx%d exceeds side %d", ErrImageTooLarge, w, h, maxImageSide)
	}
	ch := max(l.Channels, 1)
	if samples := int64(w) * int64(h) * int64(ch); samples > maxImageSamples {
		return fmt.Errorf("%w: %d samples in %v over %d", ErrImageTooLarge, samples, l, maxImageSamples)
	}
	return nil
}

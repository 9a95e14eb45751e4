package assets

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

// Resize scales img to exactly width x height, ignoring aspect ratio, with
// Lanczos resampling.
func Resize(img image.Image, width, height int) *image.NRGBA {
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

// DropAlpha returns a copy of img with every pixel made opaque. Color values
// are kept as they are, without compositing onto a background.
func DropAlpha(img image.Image) *image.NRGBA {
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		c.A = 0xff
		return c
	})
}

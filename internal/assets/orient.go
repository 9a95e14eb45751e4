package assets

import (
	"errors"
	"image"
	"strconv"

	"github.com/disintegration/imaging"
	exif "github.com/dsoprea/go-exif/v3"
)

// EXIF orientation values.
const (
	OrientationNormal     = 1
	OrientationFlipH      = 2
	OrientationRotate180  = 3
	OrientationFlipV      = 4
	OrientationTranspose  = 5
	OrientationRotate90   = 6
	OrientationTransverse = 7
	OrientationRotate270  = 8
)

// Orientation returns the EXIF orientation of an encoded image.
// Images without EXIF data, or without the tag, are OrientationNormal.
func Orientation(data []byte) (int, error) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return OrientationNormal, nil
		}
		return OrientationNormal, err
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return OrientationNormal, err
	}

	for _, entry := range entries {
		if entry.TagName != "Orientation" {
			continue
		}
		if values, ok := entry.Value.([]uint16); ok && len(values) > 0 {
			return validOrientation(int(values[0])), nil
		}
		if n, err := strconv.Atoi(entry.FormattedFirst); err == nil {
			return validOrientation(n), nil
		}
	}

	return OrientationNormal, nil
}

func validOrientation(o int) int {
	if o < OrientationNormal || o > OrientationRotate270 {
		return OrientationNormal
	}
	return o
}

// ApplyOrientation returns img transformed so that it displays upright.
// imaging rotates counter-clockwise, so the EXIF "rotate 90 clockwise" tag
// maps to Rotate270 and vice versa.
func ApplyOrientation(img image.Image, orientation int) *image.NRGBA {
	switch orientation {
	case OrientationFlipH:
		return imaging.FlipH(img)
	case OrientationRotate180:
		return imaging.Rotate180(img)
	case OrientationFlipV:
		return imaging.FlipV(img)
	case OrientationTranspose:
		return imaging.Transpose(img)
	case OrientationRotate90:
		return imaging.Rotate270(img)
	case OrientationTransverse:
		return imaging.Transverse(img)
	case OrientationRotate270:
		return imaging.Rotate90(img)
	default:
		return imaging.Clone(img)
	}
}

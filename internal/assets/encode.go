package assets

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // register GIF sources
	"image/jpeg"
	"image/png"

	"github.com/ngoiyaeric/queuelab/internal/config"
	ico "github.com/sergeymakinen/go-ico"
	_ "golang.org/x/image/webp" // register WebP sources
)

const (
	// DefaultMaxSourceBytes caps how much of a source file is read.
	DefaultMaxSourceBytes = 64 << 20

	// MaxSourcePixels caps the size a source header may declare before any
	// pixel buffer is allocated.
	MaxSourcePixels = 16384 * 16384
)

// ErrSourceTooLarge is returned for sources over the byte or pixel limit.
var ErrSourceTooLarge = errors.New("source image too large")

// Decode decodes a source image and turns it upright according to its EXIF
// orientation. An unreadable orientation is ignored.
func Decode(data []byte) (*image.NRGBA, string, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxSourcePixels {
		return nil, "", fmt.Errorf("%w: %dx%d", ErrSourceTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	orientation, err := Orientation(data)
	if err != nil {
		orientation = OrientationNormal
	}
	return ApplyOrientation(img, orientation), format, nil
}

// Convert resizes img for job and encodes it in the job's format.
func Convert(img image.Image, job config.AssetJob) ([]byte, error) {
	out := Resize(img, job.Width, job.Height)
	if job.EffectiveMode() == config.ModeRGB {
		out = DropAlpha(out)
	}

	var buf bytes.Buffer
	switch job.Format {
	case config.FormatPNG:
		if err := png.Encode(&buf, out); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case config.FormatICO:
		if err := ico.Encode(&buf, out); err != nil {
			return nil, fmt.Errorf("encode ico: %w", err)
		}
	case config.FormatJPEG:
		if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: job.EffectiveQuality()}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w %s: unsupported format %q", config.ErrInvalidAssetJob, job.Name, job.Format)
	}
	return buf.Bytes(), nil
}

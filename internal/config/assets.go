package config

import "fmt"

// Asset job kinds.
const (
	AssetKindIcon    = "icon"
	AssetKindFavicon = "favicon"
	AssetKindOG      = "og"
	AssetKindCustom  = "custom"
)

// Output formats.
const (
	FormatPNG  = "png"
	FormatICO  = "ico"
	FormatJPEG = "jpeg"
)

// Color modes.
const (
	// ModeRGBA keeps the alpha channel.
	ModeRGBA = "rgba"

	// ModeRGB composites nothing and simply discards alpha.
	ModeRGB = "rgb"
)

// Source and destination paths of the built-in asset jobs.
const (
	IconSource  = "src/assets/logo-q.jpg"
	OGSource    = "src/assets/og-image-source.png"
	IconDest    = "src/assets/logo-q-icon.png"
	FaviconDest = "public/favicon.ico"
	OGDest      = "src/app/opengraph-image.jpg"
)

// AssetsFile is the assets section of the configuration file.
type AssetsFile struct {
	// Jobs are run in order. Empty means DefaultAssetJobs.
	Jobs []AssetJob `yaml:"jobs,omitempty"`

	// KeepSources disables deleting the source images after processing.
	KeepSources bool `yaml:"keepSources,omitempty"`
}

// AssetJob describes one image conversion.
type AssetJob struct {
	Name    string `yaml:"name"`
	Kind    string `yaml:"kind,omitempty"`
	Source  string `yaml:"source"`
	Dest    string `yaml:"dest"`
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	Format  string `yaml:"format"`
	Quality int    `yaml:"quality,omitempty"`
	Mode    string `yaml:"mode,omitempty"`
}

// DefaultAssetJobs returns the icon, favicon and social preview conversions.
func DefaultAssetJobs() []AssetJob {
	return []AssetJob{
		{
			Name: "icon", Kind: AssetKindIcon,
			Source: IconSource, Dest: IconDest,
			Width: 64, Height: 64, Format: FormatPNG, Mode: ModeRGBA,
		},
		{
			Name: "favicon", Kind: AssetKindFavicon,
			Source: IconSource, Dest: FaviconDest,
			Width: 32, Height: 32, Format: FormatICO, Mode: ModeRGBA,
		},
		{
			Name: "og", Kind: AssetKindOG,
			Source: OGSource, Dest: OGDest,
			Width: 1200, Height: 630, Format: FormatJPEG, Quality: DefaultJPEGQuality, Mode: ModeRGB,
		},
	}
}

// JobsOrDefault returns the configured jobs, or the defaults when none are set.
func (a *AssetsFile) JobsOrDefault() []AssetJob {
	if a == nil || len(a.Jobs) == 0 {
		return DefaultAssetJobs()
	}
	return a.Jobs
}

// Validate checks that the job can be executed.
func (j AssetJob) Validate() error {
	if j.Name == "" || j.Source == "" || j.Dest == "" {
		return fmt.Errorf("%w: name, source and dest are required", ErrInvalidAssetJob)
	}
	if j.Width <= 0 || j.Height <= 0 {
		return fmt.Errorf("%w %s: size must be positive, got %dx%d", ErrInvalidAssetJob, j.Name, j.Width, j.Height)
	}
	switch j.Format {
	case FormatPNG, FormatICO, FormatJPEG:
	default:
		return fmt.Errorf("%w %s: unsupported format %q", ErrInvalidAssetJob, j.Name, j.Format)
	}
	if j.Format == FormatICO && (j.Width > 256 || j.Height > 256) {
		return fmt.Errorf("%w %s: ico images are at most 256x256", ErrInvalidAssetJob, j.Name)
	}
	switch j.Mode {
	case "", ModeRGBA, ModeRGB:
	default:
		return fmt.Errorf("%w %s: unsupported mode %q", ErrInvalidAssetJob, j.Name, j.Mode)
	}
	if j.Quality < 0 || j.Quality > 100 {
		return fmt.Errorf("%w %s: quality must be between 1 and 100", ErrInvalidAssetJob, j.Name)
	}
	return nil
}

// EffectiveQuality returns the JPEG quality, defaulting to DefaultJPEGQuality.
func (j AssetJob) EffectiveQuality() int {
	if j.Quality == 0 {
		return DefaultJPEGQuality
	}
	return j.Quality
}

// EffectiveMode returns the color mode. JPEG output is always RGB.
func (j AssetJob) EffectiveMode() string {
	if j.Format == FormatJPEG {
		return ModeRGB
	}
	if j.Mode == "" {
		return ModeRGBA
	}
	return j.Mode
}

package model

import (
	"bytes"
	"encoding/hex"
	"image"
	_ "image/jpeg" // register JPEG for DecodeConfig
	_ "image/png"  // register PNG for DecodeConfig

	"golang.org/x/crypto/sha3"
)

// ArtifactKind identifies what produced an artifact file.
type ArtifactKind string

const (
	// ArtifactScreenshot is a page or element screenshot requested by a step.
	ArtifactScreenshot ArtifactKind = "screenshot"

	// ArtifactErrorScreenshot is the best-effort screenshot taken after a
	// step failed.
	ArtifactErrorScreenshot ArtifactKind = "error_screenshot"

	// ArtifactImage is a processed image asset (icon, favicon, preview).
	ArtifactImage ArtifactKind = "image"
)

// Artifact describes a file written to disk during a run.
type Artifact struct {
	// Kind tells screenshots and processed assets apart.
	Kind ArtifactKind `json:"kind"`

	// Path is where the file was written, as given in the configuration.
	Path string `json:"path"`

	// Width and Height are the pixel dimensions of the encoded image.
	// They are zero when the format could not be decoded.
	Width  int `json:"width"`
	Height int `json:"height"`

	// Bytes is the encoded file size.
	Bytes int `json:"bytes"`

	// Digest is the hex SHA3-256 of the file contents. Two runs producing
	// byte-identical screenshots share a digest.
	Digest string `json:"digest"`
}

// NewArtifact builds an artifact record for data written to path.
func NewArtifact(kind ArtifactKind, path string, data []byte) Artifact {
	a := Artifact{
		Kind:   kind,
		Path:   path,
		Bytes:  len(data),
		Digest: Digest(data),
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		a.Width = cfg.Width
		a.Height = cfg.Height
	}

	return a
}

// Digest returns the hex encoded SHA3-256 of data.
func Digest(data []byte) string {
	sum := sha3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

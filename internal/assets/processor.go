package assets

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ngoiyaeric/queuelab/internal/config"
	"github.com/ngoiyaeric/queuelab/internal/model"
)

const (
	destDirPerm  = 0o755
	destFilePerm = 0o644
)

// Processor runs asset jobs.
type Processor struct {
	// root is prepended to relative source and destination paths.
	root string

	// keepSources disables deleting the sources after the run.
	keepSources bool

	// maxSourceBytes caps how much of each source is read.
	maxSourceBytes int64

	logger *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithRoot resolves relative job paths against dir, typically the
// repository of the site being built.
func WithRoot(dir string) Option {
	return func(p *Processor) {
		p.root = dir
	}
}

// WithKeepSources keeps the source images after processing.
func WithKeepSources(keep bool) Option {
	return func(p *Processor) {
		p.keepSources = keep
	}
}

// WithMaxSourceBytes overrides DefaultMaxSourceBytes.
func WithMaxSourceBytes(n int64) Option {
	return func(p *Processor) {
		p.maxSourceBytes = n
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// NewProcessor creates a Processor.
func NewProcessor(opts ...Option) *Processor {
	p := &Processor{maxSourceBytes: DefaultMaxSourceBytes}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// source is a decoded source image shared by the jobs that read it.
type source struct {
	img *image.NRGBA
	err error
}

// Run executes jobs in order and then removes the sources that existed.
//
// A missing source is recorded in MissingSources and its jobs are skipped.
// Any other failure is recorded on the job and does not stop the run.
// Cancellation skips the jobs that have not started and leaves every
// source in place.
func (p *Processor) Run(ctx context.Context, jobs []config.AssetJob) *model.AssetReport {
	report := model.NewAssetReport()
	defer func() { report.FinishedAt = time.Now() }()

	sources := make(map[string]*source)
	existing := make([]string, 0)

	for _, job := range jobs {
		result := model.AssetResult{
			Job:    job.Name,
			Source: job.Source,
			Dest:   job.Dest,
			Format: job.Format,
		}

		if err := ctx.Err(); err != nil {
			result.Status = model.StatusSkipped
			result.Error = err.Error()
			report.AddResult(result)
			continue
		}

		src, ok := sources[job.Source]
		if !ok {
			src = p.load(job.Source)
			sources[job.Source] = src
			if !errors.Is(src.err, os.ErrNotExist) {
				existing = append(existing, job.Source)
			}
		}

		if errors.Is(src.err, os.ErrNotExist) {
			report.AddMissing(job.Source)
			result.Status = model.StatusSkipped
			result.Error = "source not found"
			report.AddResult(result)
			continue
		}

		artifact, err := p.process(src, job)
		if err != nil {
			p.logger.Error("asset job failed", "job", job.Name, "source", job.Source, "error", err)
			result.Status = model.StatusFailed
			result.Error = err.Error()
			report.AddResult(result)
			continue
		}

		p.logger.Info("asset written", "job", job.Name, "dest", artifact.Path,
			"width", artifact.Width, "height", artifact.Height)
		result.Status = model.StatusPassed
		result.Artifact = artifact
		report.AddResult(result)
	}

	if ctx.Err() == nil && !p.keepSources {
		p.cleanup(report, existing)
	}

	return report
}

// load reads and decodes a source once. A missing file keeps
// os.ErrNotExist in the chain.
func (p *Processor) load(path string) *source {
	full := p.resolve(path)
	data, err := p.read(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("source file not found", "path", full)
		}
		return &source{err: err}
	}

	img, format, err := Decode(data)
	if err != nil {
		return &source{err: fmt.Errorf("%s: %w", full, err)}
	}
	p.logger.Debug("source decoded", "path", full, "format", format,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	return &source{img: img}
}

// read returns the contents of path, failing once more than maxSourceBytes
// would be read.
func (p *Processor) read(path string) ([]byte, error) {
	f, err := os.Open(path) //nolint:gosec // paths come from the configuration
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, p.maxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if int64(len(data)) > p.maxSourceBytes {
		return nil, fmt.Errorf("%s: %w: over %d bytes", path, ErrSourceTooLarge, p.maxSourceBytes)
	}
	return data, nil
}

// process converts one job and writes its destination.
func (p *Processor) process(src *source, job config.AssetJob) (*model.Artifact, error) {
	if src.err != nil {
		return nil, src.err
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}

	data, err := Convert(src.img, job)
	if err != nil {
		return nil, err
	}

	dest := p.resolve(job.Dest)
	if err := os.MkdirAll(filepath.Dir(dest), destDirPerm); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", dest, err)
	}
	if err := os.WriteFile(dest, data, destFilePerm); err != nil {
		return nil, fmt.Errorf("write %s: %w", dest, err)
	}

	artifact := model.NewArtifact(model.ArtifactImage, dest, data)
	return &artifact, nil
}

// cleanup removes every source that existed when the run started.
func (p *Processor) cleanup(report *model.AssetReport, paths []string) {
	for _, path := range paths {
		full := p.resolve(path)
		if err := os.Remove(full); err != nil {
			p.logger.Error("failed to remove source", "path", full, "error", err)
			report.CleanupErrors = append(report.CleanupErrors, fmt.Sprintf("%s: %v", path, err))
			continue
		}
		report.RemovedSources = append(report.RemovedSources, path)
	}
}

// resolve joins relative paths onto the root.
func (p *Processor) resolve(path string) string {
	if p.root == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(p.root, path)
}

package model

import "time"

// AssetResult is the outcome of one image conversion job.
type AssetResult struct {
	// Job is the job name, e.g. "favicon".
	Job string `json:"job"`

	// Source and Dest are the input and output paths.
	Source string `json:"source"`
	Dest   string `json:"dest"`

	// Format is the output encoding (png, ico, jpeg).
	Format string `json:"format"`

	// Status is passed, failed or skipped (missing source).
	Status Status `json:"status"`

	// Artifact describes the written file when the job passed.
	Artifact *Artifact `json:"artifact,omitempty"`

	// Error is the failure message, if any.
	Error string `json:"error,omitempty"`
}

// AssetReport is the result of an asset preprocessing run.
type AssetReport struct {
	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Jobs holds one result per configured job, in configuration order.
	Jobs []AssetResult `json:"jobs"`

	// MissingSources lists source paths that did not exist.
	MissingSources []string `json:"missing_sources,omitempty"`

	// RemovedSources lists source paths deleted after processing.
	RemovedSources []string `json:"removed_sources,omitempty"`

	// CleanupErrors lists failures while deleting sources.
	CleanupErrors []string `json:"cleanup_errors,omitempty"`
}

// NewAssetReport creates an empty report stamped with the current time.
func NewAssetReport() *AssetReport {
	return &AssetReport{
		StartedAt: time.Now(),
		Jobs:      make([]AssetResult, 0),
	}
}

// AddResult appends a job result.
func (r *AssetReport) AddResult(result AssetResult) {
	r.Jobs = append(r.Jobs, result)
}

// AddMissing records a missing source once.
func (r *AssetReport) AddMissing(path string) {
	for _, p := range r.MissingSources {
		if p == path {
			return
		}
	}
	r.MissingSources = append(r.MissingSources, path)
}

// Counts returns the number of passed, failed and skipped jobs.
func (r *AssetReport) Counts() (passed, failed, skipped int) {
	for _, j := range r.Jobs {
		switch j.Status {
		case StatusPassed:
			passed++
		case StatusSkipped:
			skipped++
		default:
			failed++
		}
	}
	return passed, failed, skipped
}

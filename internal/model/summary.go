package model

import "time"

// RunSummary aggregates the outcome of a batch of scenario runs.
type RunSummary struct {
	// Total is the number of runs in the batch.
	Total int `json:"total"`

	// PassedCount, FailedCount, TimedOutCount and SkippedCount split Total by status.
	PassedCount   int `json:"passed_count"`
	FailedCount   int `json:"failed_count"`
	TimedOutCount int `json:"timed_out_count"`
	SkippedCount  int `json:"skipped_count"`

	// ArtifactCount is the number of files written across all runs.
	ArtifactCount int `json:"artifact_count"`

	// Elapsed is the summed wall time of the runs.
	Elapsed time.Duration `json:"elapsed"`

	// Failed lists the scenario names that did not pass.
	Failed []string `json:"failed,omitempty"`
}

// NewRunSummary builds a summary from a set of finalized reports.
// Nil entries, which the batch runner leaves for cancelled scenarios, are
// counted as skipped.
func NewRunSummary(reports []*RunReport) *RunSummary {
	s := &RunSummary{Total: len(reports)}

	for _, r := range reports {
		if r == nil {
			s.SkippedCount++
			continue
		}

		s.ArtifactCount += len(r.Artifacts)
		s.Elapsed += r.Duration()

		switch r.Status {
		case StatusPassed:
			s.PassedCount++
		case StatusTimedOut:
			s.TimedOutCount++
			s.Failed = append(s.Failed, r.Scenario)
		case StatusSkipped, StatusPending:
			s.SkippedCount++
		default:
			s.FailedCount++
			s.Failed = append(s.Failed, r.Scenario)
		}
	}

	return s
}

// AllPassed reports whether every run in the batch passed.
func (s *RunSummary) AllPassed() bool {
	return s.Total > 0 && s.PassedCount == s.Total
}

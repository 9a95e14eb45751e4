package model

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"
)

// TestNewRunReport tests the RunReport constructor.
func TestNewRunReport(t *testing.T) {
	t.Parallel()

	r := NewRunReport("hero-click", "http://localhost:3000")

	if r.ID == "" {
		t.Error("expected non-empty run ID")
	}
	if r.Scenario != "hero-click" {
		t.Errorf("expected scenario hero-click, got %q", r.Scenario)
	}
	if r.Status != StatusPending {
		t.Errorf("expected pending status, got %v", r.Status)
	}
	if r.StartedAt.IsZero() {
		t.Error("expected StartedAt to be set")
	}

	other := NewRunReport("hero-click", "http://localhost:3000")
	if other.ID == r.ID {
		t.Error("expected distinct run IDs")
	}
}

// TestRunReportFinalize tests status derivation.
func TestRunReportFinalize(t *testing.T) {
	t.Parallel()

	t.Run("passes when all steps passed", func(t *testing.T) {
		t.Parallel()

		r := NewRunReport("s", "u")
		r.AddStep(StepResult{Name: "navigate", Status: StatusPassed})
		r.AddStep(StepResult{Name: "screenshot", Status: StatusPassed})
		r.Finalize()

		if r.Status != StatusPassed {
			t.Errorf("expected passed, got %v", r.Status)
		}
		if r.FinishedAt.IsZero() {
			t.Error("expected FinishedAt to be set")
		}
	})

	t.Run("fails when an error was recorded", func(t *testing.T) {
		t.Parallel()

		r := NewRunReport("s", "u")
		r.Fail(errors.New("element not found"))
		r.Finalize()

		if r.Status != StatusFailed {
			t.Errorf("expected failed, got %v", r.Status)
		}
		if r.ErrorMessage != "element not found" {
			t.Errorf("unexpected error message %q", r.ErrorMessage)
		}
	})

	t.Run("timed out wins over failure", func(t *testing.T) {
		t.Parallel()

		r := NewRunReport("s", "u")
		r.Fail(errors.New("deadline"))
		r.TimedOut = true
		r.Finalize()

		if r.Status != StatusTimedOut {
			t.Errorf("expected timed out, got %v", r.Status)
		}
	})

	t.Run("failed step fails the run", func(t *testing.T) {
		t.Parallel()

		r := NewRunReport("s", "u")
		r.AddStep(StepResult{Name: "click", Status: StatusFailed})
		r.Finalize()

		if r.Status != StatusFailed {
			t.Errorf("expected failed, got %v", r.Status)
		}
	})

	t.Run("caught failure does not fail the run", func(t *testing.T) {
		t.Parallel()

		r := NewRunReport("s", "u")
		r.AddStep(StepResult{Name: "navigate", Status: StatusTimedOut, Caught: true})
		r.AddStep(StepResult{Name: "screenshot", Status: StatusPassed})
		r.Finalize()

		if r.Status != StatusPassed {
			t.Errorf("expected passed, got %v", r.Status)
		}
	})

	t.Run("nil error is ignored", func(t *testing.T) {
		t.Parallel()

		r := NewRunReport("s", "u")
		r.Fail(nil)
		r.Finalize()

		if r.Status != StatusPassed {
			t.Errorf("expected passed, got %v", r.Status)
		}
	})
}

// TestRunReportArtifacts tests artifact bookkeeping.
func TestRunReportArtifacts(t *testing.T) {
	t.Parallel()

	r := NewRunReport("s", "u")
	r.AddArtifact(Artifact{Kind: ArtifactScreenshot, Path: "shot.png", Digest: "a"})
	r.AddArtifact(Artifact{Kind: ArtifactErrorScreenshot, Path: "error.png", Digest: "b"})
	r.AddArtifact(Artifact{Kind: ArtifactScreenshot, Path: "shot.png", Digest: "c"})

	if len(r.Artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(r.Artifacts))
	}
	if r.Artifacts[0].Digest != "c" {
		t.Errorf("expected overwritten artifact digest c, got %q", r.Artifacts[0].Digest)
	}
	if len(r.Screenshots()) != 2 {
		t.Errorf("expected 2 screenshots, got %d", len(r.Screenshots()))
	}
}

// TestRunReportObservations tests observation lookup.
func TestRunReportObservations(t *testing.T) {
	t.Parallel()

	r := NewRunReport("s", "u")
	r.Observe("count", "3")
	r.Observe("count", "4")

	got, ok := r.Observation("count")
	if !ok || got != "4" {
		t.Errorf("expected latest observation 4, got %q (ok=%v)", got, ok)
	}
	if _, ok := r.Observation("missing"); ok {
		t.Error("expected missing observation to be absent")
	}
}

// TestNewArtifact tests dimension decoding and digests.
func TestNewArtifact(t *testing.T) {
	t.Parallel()

	t.Run("decodes PNG dimensions", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 64, 32))); err != nil {
			t.Fatalf("failed to encode png: %v", err)
		}

		a := NewArtifact(ArtifactImage, "icon.png", buf.Bytes())
		if a.Width != 64 || a.Height != 32 {
			t.Errorf("expected 64x32, got %dx%d", a.Width, a.Height)
		}
		if a.Bytes != buf.Len() {
			t.Errorf("expected %d bytes, got %d", buf.Len(), a.Bytes)
		}
		if len(a.Digest) != 64 {
			t.Errorf("expected 64 hex chars, got %d", len(a.Digest))
		}
	})

	t.Run("leaves dimensions zero for unknown data", func(t *testing.T) {
		t.Parallel()

		a := NewArtifact(ArtifactImage, "blob.bin", []byte("not an image"))
		if a.Width != 0 || a.Height != 0 {
			t.Errorf("expected zero dimensions, got %dx%d", a.Width, a.Height)
		}
	})

	t.Run("digest is stable", func(t *testing.T) {
		t.Parallel()

		if Digest([]byte("x")) != Digest([]byte("x")) {
			t.Error("expected identical digests for identical data")
		}
		if Digest([]byte("x")) == Digest([]byte("y")) {
			t.Error("expected different digests for different data")
		}
	})
}

// TestNewRunSummary tests batch aggregation.
func TestNewRunSummary(t *testing.T) {
	t.Parallel()

	passed := NewRunReport("a", "u")
	passed.Finalize()

	failed := NewRunReport("b", "u")
	failed.Fail(errors.New("boom"))
	failed.AddArtifact(Artifact{Path: "error.png"})
	failed.Finalize()

	timedOut := NewRunReport("c", "u")
	timedOut.TimedOut = true
	timedOut.Finalize()

	s := NewRunSummary([]*RunReport{passed, failed, timedOut, nil})

	if s.Total != 4 {
		t.Errorf("expected total 4, got %d", s.Total)
	}
	if s.PassedCount != 1 || s.FailedCount != 1 || s.TimedOutCount != 1 || s.SkippedCount != 1 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.ArtifactCount != 1 {
		t.Errorf("expected 1 artifact, got %d", s.ArtifactCount)
	}
	if len(s.Failed) != 2 {
		t.Errorf("expected 2 failed scenarios, got %v", s.Failed)
	}
	if s.AllPassed() {
		t.Error("expected AllPassed to be false")
	}
	if !NewRunSummary([]*RunReport{passed}).AllPassed() {
		t.Error("expected AllPassed for a single passing run")
	}
}

// TestAssetReport tests asset report bookkeeping.
func TestAssetReport(t *testing.T) {
	t.Parallel()

	r := NewAssetReport()
	r.AddResult(AssetResult{Job: "icon", Status: StatusPassed})
	r.AddResult(AssetResult{Job: "favicon", Status: StatusFailed})
	r.AddResult(AssetResult{Job: "og", Status: StatusSkipped})
	r.AddMissing("src/assets/og-image-source.png")
	r.AddMissing("src/assets/og-image-source.png")

	passed, failed, skipped := r.Counts()
	if passed != 1 || failed != 1 || skipped != 1 {
		t.Errorf("unexpected counts passed=%d failed=%d skipped=%d", passed, failed, skipped)
	}
	if len(r.MissingSources) != 1 {
		t.Errorf("expected missing source recorded once, got %v", r.MissingSources)
	}
}

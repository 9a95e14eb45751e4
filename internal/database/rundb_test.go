package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ngoiyaeric/queuelab/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *RunDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// newReport builds a finalized report started at the given offset from base.
func newReport(scenario string, started time.Time, status model.Status, digests ...string) *model.RunReport {
	r := model.NewRunReport(scenario, "http://localhost:3000")
	r.StartedAt = started
	for i, d := range digests {
		r.AddArtifact(model.Artifact{
			Kind:   model.ArtifactScreenshot,
			Path:   filepath.Join("shots", scenario+string(rune('a'+i))+".png"),
			Width:  1280,
			Height: 720,
			Bytes:  42,
			Digest: d,
		})
	}
	r.Observe("count", "3")
	r.FinishedAt = started.Add(1500 * time.Millisecond)
	r.Status = status
	return r
}

// TestOpen tests database opening and creation.
func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates database in new directory", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "newdir", "subdir")
		db, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		defer db.Close()

		if _, err := os.Stat(filepath.Join(dbDir, FileName)); os.IsNotExist(err) {
			t.Error("database file was not created")
		}
		if db.Path() != filepath.Join(dbDir, FileName) {
			t.Errorf("unexpected path %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "nonexistent-db")

		_, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err == nil {
			t.Fatal("expected error when CreateIfNotExists=false and database does not exist")
		}
		if !strings.Contains(err.Error(), "database not found") {
			t.Errorf("expected informative error, got %q", err.Error())
		}
		if _, statErr := os.Stat(dbDir); !os.IsNotExist(statErr) {
			t.Error("database directory should not have been created")
		}
	})

	t.Run("CreateIfNotExists=false opens existing database", func(t *testing.T) {
		t.Parallel()

		dbDir := filepath.Join(t.TempDir(), "existing-db")
		ctx := context.Background()

		db1, err := Open(dbDir, DefaultOptions())
		if err != nil {
			t.Fatalf("failed to create database: %v", err)
		}
		if _, err := db1.SaveRunReport(ctx, newReport("hero-click", time.Now(), model.StatusPassed)); err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		db1.Close()

		db2, err := Open(dbDir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to open existing database: %v", err)
		}
		defer db2.Close()

		report, err := db2.GetLatestRunReport(ctx, "hero-click")
		if err != nil || report == nil {
			t.Errorf("expected persisted report, got %v (%v)", report, err)
		}
	})
}

// TestDefaultOptions tests the default options values.
func TestDefaultOptions(t *testing.T) {
	t.Parallel()

	opts := DefaultOptions()
	if !opts.CreateIfNotExists || !opts.EnableWAL {
		t.Errorf("unexpected defaults %+v", opts)
	}
}

// TestRunReports tests saving and loading run reports.
func TestRunReports(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Two runs within the same second must still order correctly.
	first := newReport("careers-form", base, model.StatusPassed, "aaa", "bbb")
	second := newReport("careers-form", base.Add(120*time.Millisecond), model.StatusFailed, "aaa")
	second.Fail(errors.New("value not kept"))
	other := newReport("purple-planet", base.Add(time.Minute), model.StatusPassed)

	ids := make([]int64, 0, 3)
	for _, r := range []*model.RunReport{first, second, other} {
		id, err := db.SaveRunReport(ctx, r)
		if err != nil {
			t.Fatalf("failed to save: %v", err)
		}
		ids = append(ids, id)
	}

	t.Run("latest report", func(t *testing.T) {
		t.Parallel()

		latest, err := db.GetLatestRunReport(ctx, "careers-form")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if latest == nil || latest.ID != second.ID {
			t.Fatalf("expected second run, got %+v", latest)
		}
		if latest.Status != model.StatusFailed || latest.ErrorMessage != "value not kept" {
			t.Errorf("unexpected status %v %q", latest.Status, latest.ErrorMessage)
		}
		if v, ok := latest.Observation("count"); !ok || v != "3" {
			t.Errorf("expected observation to round trip, got %q", v)
		}
	})

	t.Run("missing scenario", func(t *testing.T) {
		t.Parallel()

		latest, err := db.GetLatestRunReport(ctx, "nope")
		if err != nil || latest != nil {
			t.Errorf("expected nil without error, got %v (%v)", latest, err)
		}
	})

	t.Run("history newest first", func(t *testing.T) {
		t.Parallel()

		history, err := db.GetRunHistory(ctx, "careers-form", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(history) != 2 || history[0].ID != second.ID || history[1].ID != first.ID {
			t.Errorf("unexpected history %+v", history)
		}

		limited, err := db.GetRunHistory(ctx, "careers-form", 1)
		if err != nil || len(limited) != 1 {
			t.Errorf("expected one run, got %d (%v)", len(limited), err)
		}
	})

	t.Run("metadata", func(t *testing.T) {
		t.Parallel()

		meta, err := db.GetRunHistoryWithMetadata(ctx, "careers-form")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(meta) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(meta))
		}
		if meta[0].ID != ids[1] || meta[0].Status != model.StatusFailed || meta[0].ArtifactCount != 1 {
			t.Errorf("unexpected newest entry %+v", meta[0])
		}
		if meta[1].ArtifactCount != 2 || meta[1].Duration != 1500*time.Millisecond {
			t.Errorf("unexpected oldest entry %+v", meta[1])
		}
		if !meta[1].StartedAt.Equal(base) {
			t.Errorf("expected start %v, got %v", base, meta[1].StartedAt)
		}
	})

	t.Run("by id", func(t *testing.T) {
		t.Parallel()

		r, err := db.GetRunReportByID(ctx, ids[2])
		if err != nil || r == nil || r.Scenario != "purple-planet" {
			t.Errorf("unexpected report %+v (%v)", r, err)
		}

		r, err = db.GetRunReportByID(ctx, 9999)
		if err != nil || r != nil {
			t.Errorf("expected nil for unknown id, got %+v (%v)", r, err)
		}
	})

	t.Run("list scenarios", func(t *testing.T) {
		t.Parallel()

		names, err := db.ListScenarios(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Join(names, ",") != "careers-form,purple-planet" {
			t.Errorf("unexpected scenarios %v", names)
		}
	})

	t.Run("artifact history", func(t *testing.T) {
		t.Parallel()

		records, err := db.ArtifactHistory(ctx, filepath.Join("shots", "careers-forma.png"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 versions, got %d", len(records))
		}
		if records[0].RunID != ids[1] || records[0].Digest != "aaa" || records[0].Kind != model.ArtifactScreenshot {
			t.Errorf("unexpected newest version %+v", records[0])
		}
	})

	t.Run("duplicate run id is rejected", func(t *testing.T) {
		t.Parallel()

		if _, err := db.SaveRunReport(ctx, first); err == nil {
			t.Error("expected error for duplicate run")
		}
	})
}

// TestSaveNilReport tests nil handling.
func TestSaveNilReport(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	if _, err := db.SaveRunReport(context.Background(), nil); err == nil {
		t.Error("expected error for nil report")
	}
}

// TestParseTimestamp tests timestamp parsing with various formats.
func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected time.Time
	}{
		{"stored format", "2026-03-01T10:00:00.120000000Z", time.Date(2026, 3, 1, 10, 0, 0, 120000000, time.UTC)},
		{"sqlite default", "2026-03-01 10:00:00", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"invalid", "yesterday", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := parseTimestamp(tt.input); !got.Equal(tt.expected) {
				t.Errorf("parseTimestamp(%q) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}
}

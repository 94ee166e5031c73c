package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/gemirror/internal/model"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *HistoryDB {
	t.Helper()

	db, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newFinishedRun(site string, started time.Time, pages ...*model.Page) *model.Run {
	run := model.NewRun(site, "content")
	run.StartedAt = started
	run.SetPages(pages)
	run.Advance()
	run.Advance()
	run.FinishedAt = started.Add(3 * time.Second)
	return run
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
			t.Errorf("Path() = %q", db.Path())
		}
	})

	t.Run("CreateIfNotExists=false returns error when database does not exist", func(t *testing.T) {
		t.Parallel()

		_, err := Open(filepath.Join(t.TempDir(), "missing"), Options{CreateIfNotExists: false})
		if err == nil {
			t.Error("expected error when database does not exist")
		}
	})

	t.Run("reopens an existing database", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		db, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		if _, err := db.SaveRun(context.Background(), newFinishedRun("https://www.coredump.ch", time.Now())); err != nil {
			t.Fatal(err)
		}
		if err := db.Close(); err != nil {
			t.Fatal(err)
		}

		db, err = Open(dir, Options{CreateIfNotExists: false, EnableWAL: true})
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), "", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 {
			t.Errorf("expected 1 run after reopening, got %d", len(runs))
		}
	})
}

func TestSaveRunAndGetRun(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()

	run := newFinishedRun("https://www.coredump.ch", time.Now(),
		&model.Page{URL: "https://www.coredump.ch/kontakt", TargetPath: "kontakt.gmi", Title: "Kontakt", Converted: true},
		&model.Page{URL: "https://www.coredump.ch/", TargetPath: "index.gmi", Title: "Coredump", Converted: true, Degraded: true, Error: "404"},
	)
	run.Assets = []*model.Asset{{URL: "https://www.coredump.ch/logo.png", LocalName: "logo.png", Downloaded: true}}
	run.Summarize()
	run.Summary.ParseAnomalies = 2

	id, err := db.SaveRun(ctx, run)
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if id == 0 || run.ID != id {
		t.Errorf("expected run ID to be set, got id=%d run.ID=%d", id, run.ID)
	}

	got, err := db.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got == nil {
		t.Fatal("expected a run")
	}
	if got.ID != id || got.Site != run.Site || got.State != model.StateDone {
		t.Errorf("unexpected run %+v", got)
	}
	if got.Summary != run.Summary {
		t.Errorf("summary = %+v, want %+v", got.Summary, run.Summary)
	}
	if len(got.Pages) != 2 || got.Pages[0].TargetPath != "index.gmi" || !got.Pages[0].Degraded {
		t.Errorf("unexpected pages %+v", got.Pages)
	}
	if len(got.Assets) != 1 || got.Assets[0].LocalName != "logo.png" {
		t.Errorf("unexpected assets %+v", got.Assets)
	}
	if !got.StartedAt.Equal(run.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, run.StartedAt)
	}

	missing, err := db.GetRun(ctx, id+100)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if missing != nil {
		t.Error("expected nil for an unknown run")
	}
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	runs := []*model.Run{
		newFinishedRun("https://www.coredump.ch", base),
		newFinishedRun("https://example.org", base.Add(time.Hour)),
		newFinishedRun("https://www.coredump.ch", base.Add(2*time.Hour)),
	}
	runs[2].Cancelled = true
	runs[2].Summary.PagesFailed = 4
	for _, run := range runs {
		if _, err := db.SaveRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	t.Run("all runs newest first", func(t *testing.T) {
		t.Parallel()

		list, err := db.ListRuns(ctx, "", 0)
		if err != nil {
			t.Fatalf("ListRuns() error = %v", err)
		}
		if len(list) != 3 {
			t.Fatalf("expected 3 runs, got %d", len(list))
		}
		if list[0].ID != runs[2].ID || list[2].ID != runs[0].ID {
			t.Errorf("unexpected order: %d, %d, %d", list[0].ID, list[1].ID, list[2].ID)
		}
		first := list[0]
		if !first.Cancelled || first.Summary.PagesFailed != 4 || first.State != model.StateDone {
			t.Errorf("unexpected metadata %+v", first)
		}
		if !first.StartedAt.Equal(base.Add(2*time.Hour)) || first.Duration() != 3*time.Second {
			t.Errorf("unexpected times %v / %v", first.StartedAt, first.Duration())
		}
	})

	t.Run("filtered by site", func(t *testing.T) {
		t.Parallel()

		list, err := db.ListRuns(ctx, "https://www.coredump.ch", 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 2 {
			t.Errorf("expected 2 runs, got %d", len(list))
		}
	})

	t.Run("limited", func(t *testing.T) {
		t.Parallel()

		list, err := db.ListRuns(ctx, "", 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 1 || list[0].ID != runs[2].ID {
			t.Errorf("expected only the newest run, got %+v", list)
		}
	})

	t.Run("sites", func(t *testing.T) {
		t.Parallel()

		sites, err := db.ListSites(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(sites) != 2 || sites[0] != "https://example.org" || sites[1] != "https://www.coredump.ch" {
			t.Errorf("unexpected sites %v", sites)
		}
	})
}

func TestGetPage(t *testing.T) {
	t.Parallel()

	db := setupTestDB(t)
	ctx := context.Background()
	site := "https://www.coredump.ch"
	pageURL := "https://www.coredump.ch/kontakt"

	first := newFinishedRun(site, time.Now(), &model.Page{URL: pageURL, TargetPath: "kontakt.gmi", Converted: true, Degraded: true, Error: "404"})
	if _, err := db.SaveRun(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := newFinishedRun(site, time.Now(), &model.Page{URL: pageURL, TargetPath: "kontakt.gmi", Title: "Kontakt", Converted: true})
	if _, err := db.SaveRun(ctx, second); err != nil {
		t.Fatal(err)
	}

	rec, err := db.GetPage(ctx, site, pageURL)
	if err != nil {
		t.Fatalf("GetPage() error = %v", err)
	}
	if rec == nil {
		t.Fatal("expected a page record")
	}
	if rec.LastRunID != second.ID || rec.Degraded || rec.Error != "" || rec.Title != "Kontakt" {
		t.Errorf("page record not updated by the latest run: %+v", rec)
	}

	missing, err := db.GetPage(ctx, site, "https://www.coredump.ch/nope")
	if err != nil {
		t.Fatal(err)
	}
	if missing != nil {
		t.Error("expected nil for an unknown page")
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	want := time.Date(2026, 10, 17, 8, 30, 0, 0, time.UTC)
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{name: "sqlite default", input: "2026-10-17 08:30:00", want: want},
		{name: "iso with Z", input: "2026-10-17T08:30:00Z", want: want},
		{name: "stored format", input: formatTimestamp(want), want: want},
		{name: "rfc3339 offset", input: "2026-10-17T10:30:00+02:00", want: want},
		{name: "garbage", input: "yesterday", want: time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := parseTimestamp(tt.input); !got.Equal(tt.want) {
				t.Errorf("parseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

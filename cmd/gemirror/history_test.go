package main

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/gemirror/internal/database"
	"github.com/nao1215/gemirror/internal/model"
)

// seedHistory stores two runs of two sites and returns the database dir.
func seedHistory(t *testing.T) (string, []int64) {
	t.Helper()

	dir := t.TempDir()
	db, err := database.Open(dir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	ids := make([]int64, 0, 2)
	for i, site := range []string{"https://www.coredump.ch", "https://example.com"} {
		run := model.NewRun(site, "content")
		run.StartedAt = time.Date(2026, 5, 1+i, 10, 0, 0, 0, time.UTC)
		run.SetPages([]*model.Page{
			{URL: site, TargetPath: "index.gmi", Title: "Home", Converted: true},
			{URL: site + "/leer", TargetPath: "leer.gmi", Title: "Leer", Converted: true, Degraded: true},
		})
		run.Advance()
		run.Advance()
		run.FinishedAt = run.StartedAt.Add(2 * time.Second)

		id, err := db.SaveRun(t.Context(), run)
		if err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
		ids = append(ids, id)
	}
	return dir, ids
}

// TestHistoryCmd tests listing and showing stored runs.
func TestHistoryCmd(t *testing.T) {
	t.Parallel()

	t.Run("lists all runs newest first", func(t *testing.T) {
		t.Parallel()
		dir, _ := seedHistory(t)

		stdout, err := executeRoot(t, "history", "--db-dir", dir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "Mirror runs (2):") {
			t.Errorf("expected two runs, got:\n%s", stdout)
		}
		first := strings.Index(stdout, "https://example.com")
		second := strings.Index(stdout, "https://www.coredump.ch")
		if first < 0 || second < 0 || first > second {
			t.Errorf("expected newest run first, got:\n%s", stdout)
		}
		if !strings.Contains(stdout, "pages 2/2, degraded 1, assets 0") {
			t.Errorf("expected summary line, got:\n%s", stdout)
		}
		if !strings.Contains(stdout, "degraded") || !strings.Contains(stdout, "2s") {
			t.Errorf("expected status and duration, got:\n%s", stdout)
		}
	})

	t.Run("filters by site", func(t *testing.T) {
		t.Parallel()
		dir, _ := seedHistory(t)

		stdout, err := executeRoot(t, "history", "--db-dir", dir, "https://www.coredump.ch/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "Mirror runs (1):") || strings.Contains(stdout, "example.com") {
			t.Errorf("expected only the coredump run, got:\n%s", stdout)
		}
	})

	t.Run("empty history", func(t *testing.T) {
		t.Parallel()

		stdout, err := executeRoot(t, "history", "--db-dir", t.TempDir())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(stdout, "No runs found.") {
			t.Errorf("expected empty message, got:\n%s", stdout)
		}
	})

	t.Run("shows one run", func(t *testing.T) {
		t.Parallel()
		dir, ids := seedHistory(t)

		stdout, err := executeRoot(t, "history", "--db-dir", dir, "--show", "1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ids[0] != 1 {
			t.Fatalf("expected first run ID 1, got %d", ids[0])
		}
		for _, want := range []string{"GEMIRROR RUN REPORT", "https://www.coredump.ch", "[!] leer.gmi"} {
			if !strings.Contains(stdout, want) {
				t.Errorf("expected output to contain %q, got:\n%s", want, stdout)
			}
		}
	})

	t.Run("shows one run as JSON", func(t *testing.T) {
		t.Parallel()
		dir, _ := seedHistory(t)

		stdout, err := executeRoot(t, "history", "--db-dir", dir, "--show", "2", "--json")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		var run model.Run
		if err := json.Unmarshal([]byte(stdout), &run); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if run.ID != 2 || run.Site != "https://example.com" || len(run.Pages) != 2 {
			t.Errorf("unexpected run: %+v", run)
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		t.Parallel()
		dir, _ := seedHistory(t)

		_, err := executeRoot(t, "history", "--db-dir", dir, "--show", "99")
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("expected not found error, got %v", err)
		}
	})
}

package main

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/nao1215/gemirror/internal/config"
)

// runInit executes the init command with output discarded.
func runInit(t *testing.T, args ...string) error {
	t.Helper()

	cmd := NewInitCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs(args)
	return cmd.Execute()
}

// TestNewInitCmd tests the init command creation.
func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "init" {
			t.Errorf("expected use 'init', got %q", cmd.Use)
		}
	})

	t.Run("has output flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.Shorthand != "o" {
			t.Errorf("expected shorthand 'o', got %q", flag.Shorthand)
		}
		if flag.DefValue != config.DefaultConfigFile {
			t.Errorf("expected default %q, got %q", config.DefaultConfigFile, flag.DefValue)
		}
	})

	t.Run("has force flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("force")
		if flag == nil {
			t.Fatal("expected force flag")
		}
		if flag.Shorthand != "f" {
			t.Errorf("expected shorthand 'f', got %q", flag.Shorthand)
		}
	})
}

// TestRunInitCmd tests the init command execution.
func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates config file", func(t *testing.T) {
		t.Parallel()
		outputPath := filepath.Join(t.TempDir(), ".gemirror")

		if err := runInit(t, "-o", outputPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content, err := os.ReadFile(outputPath) //nolint:gosec // test path
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		for _, key := range []string{"site:", "base_url:", "content_selectors:", "output_dir:"} {
			if !strings.Contains(string(content), key) {
				t.Errorf("expected config to contain %q", key)
			}
		}
	})

	t.Run("fails if file exists without force", func(t *testing.T) {
		t.Parallel()
		outputPath := filepath.Join(t.TempDir(), ".gemirror")
		if err := os.WriteFile(outputPath, []byte("existing"), 0600); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		err := runInit(t, "-o", outputPath)
		if err == nil {
			t.Fatal("expected error when file exists")
		}
		if !strings.Contains(err.Error(), "already exists") {
			t.Errorf("expected 'already exists' error, got %v", err)
		}
	})

	t.Run("overwrites file with force flag", func(t *testing.T) {
		t.Parallel()
		outputPath := filepath.Join(t.TempDir(), ".gemirror")
		if err := os.WriteFile(outputPath, []byte("existing"), 0600); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		if err := runInit(t, "-o", outputPath, "-f"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content, err := os.ReadFile(outputPath) //nolint:gosec // test path
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if string(content) == "existing" {
			t.Error("expected file to be overwritten")
		}
	})

	t.Run("creates parent directories", func(t *testing.T) {
		t.Parallel()
		outputPath := filepath.Join(t.TempDir(), "subdir", "nested", ".gemirror")

		if err := runInit(t, "-o", outputPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(outputPath); os.IsNotExist(err) {
			t.Error("expected config file to be created in nested directory")
		}
	})

	t.Run("file has correct permissions", func(t *testing.T) {
		t.Parallel()
		if runtime.GOOS == "windows" {
			t.Skip("skipping permission test on Windows")
		}
		outputPath := filepath.Join(t.TempDir(), ".gemirror")

		if err := runInit(t, "-o", outputPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		info, err := os.Stat(outputPath)
		if err != nil {
			t.Fatalf("failed to stat file: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("expected permissions 0600, got %o", perm)
		}
	})
}

// TestConfigTemplate checks that the generated file describes the
// built-in site and produces a valid configuration.
func TestConfigTemplate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".gemirror")
	if err := runInit(t, "-o", path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		t.Fatalf("template is not valid YAML: %v", err)
	}

	site := config.DefaultSite()
	if file.Site.BaseURL != site.BaseURL {
		t.Errorf("base_url = %q, want %q", file.Site.BaseURL, site.BaseURL)
	}
	if !slices.Equal(file.Site.Seeds, site.Seeds) {
		t.Errorf("seeds = %v, want %v", file.Site.Seeds, site.Seeds)
	}
	if !slices.Equal(file.Site.ContentSelectors, site.ContentSelectors) {
		t.Errorf("content_selectors = %v, want %v", file.Site.ContentSelectors, site.ContentSelectors)
	}
	if !slices.Equal(file.Site.IgnorePatterns, site.IgnorePatterns) {
		t.Errorf("ignore_patterns = %v, want %v", file.Site.IgnorePatterns, site.IgnorePatterns)
	}

	cfg := config.NewConfig()
	cfg.ApplyFile(file)
	if err := cfg.Validate(); err != nil {
		t.Errorf("template config is invalid: %v", err)
	}
	if cfg.OutputDir != config.DefaultOutputDir || cfg.MaxPages != config.DefaultMaxPages {
		t.Errorf("unexpected config: output %q, max pages %d", cfg.OutputDir, cfg.MaxPages)
	}
	if cfg.CrawlDelay != config.DefaultCrawlDelay || cfg.Timeout != config.DefaultTimeout {
		t.Errorf("unexpected timing: delay %s, timeout %s", cfg.CrawlDelay, cfg.Timeout)
	}
}

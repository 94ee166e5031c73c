package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
// Changes to defaults must be intentional, so each one is pinned here.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default site is the built-in site", func(t *testing.T) {
		t.Parallel()
		if cfg.Site.BaseURL != DefaultSiteURL {
			t.Errorf("expected BaseURL %q, got %q", DefaultSiteURL, cfg.Site.BaseURL)
		}
		if len(cfg.Site.Seeds) != 4 {
			t.Errorf("expected 4 seeds, got %d", len(cfg.Site.Seeds))
		}
		if cfg.Site.ContentSelectors[0] != "div.entry-content" {
			t.Errorf("expected first content selector 'div.entry-content', got %q", cfg.Site.ContentSelectors[0])
		}
	})

	t.Run("default output layout is content/images", func(t *testing.T) {
		t.Parallel()
		if cfg.OutputDir != "content" {
			t.Errorf("expected OutputDir 'content', got %q", cfg.OutputDir)
		}
		if cfg.AssetDir != "images" {
			t.Errorf("expected AssetDir 'images', got %q", cfg.AssetDir)
		}
		if got := cfg.AssetRoot(); got != filepath.Join("content", "images") {
			t.Errorf("expected AssetRoot content/images, got %q", got)
		}
	})

	t.Run("default Timeout is 30 seconds", func(t *testing.T) {
		t.Parallel()
		if cfg.Timeout != 30*time.Second {
			t.Errorf("expected Timeout to be 30s, got %v", cfg.Timeout)
		}
	})

	t.Run("default MaxPages is 500", func(t *testing.T) {
		t.Parallel()
		if cfg.MaxPages != 500 {
			t.Errorf("expected MaxPages to be 500, got %d", cfg.MaxPages)
		}
	})

	t.Run("history is saved by default", func(t *testing.T) {
		t.Parallel()
		if !cfg.SaveHistory {
			t.Error("expected SaveHistory to be true")
		}
		if cfg.DBDir == "" {
			t.Error("expected non-empty DBDir")
		}
	})

	t.Run("default config is valid", func(t *testing.T) {
		t.Parallel()
		if err := cfg.Validate(); err != nil {
			t.Errorf("expected default config to be valid, got %v", err)
		}
	})
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case is designed to test one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{
			name:    "valid config returns nil",
			modify:  func(*Config) {},
			wantErr: nil,
		},
		{
			name:    "relative base URL returns ErrInvalidBaseURL",
			modify:  func(c *Config) { c.Site.BaseURL = "www.coredump.ch" },
			wantErr: ErrInvalidBaseURL,
		},
		{
			name:    "ftp base URL returns ErrInvalidBaseURL",
			modify:  func(c *Config) { c.Site.BaseURL = "ftp://example.com" },
			wantErr: ErrInvalidBaseURL,
		},
		{
			name:    "no seeds returns ErrNoSeeds",
			modify:  func(c *Config) { c.Site.Seeds = nil },
			wantErr: ErrNoSeeds,
		},
		{
			name:    "seed on another host returns ErrInvalidSeed",
			modify:  func(c *Config) { c.Site.Seeds = []string{"https://example.org/"} },
			wantErr: ErrInvalidSeed,
		},
		{
			name:    "no content selectors returns ErrNoContentSelector",
			modify:  func(c *Config) { c.Site.ContentSelectors = nil },
			wantErr: ErrNoContentSelector,
		},
		{
			name:    "empty output dir returns ErrNoOutputDir",
			modify:  func(c *Config) { c.OutputDir = " " },
			wantErr: ErrNoOutputDir,
		},
		{
			name:    "absolute asset dir returns ErrInvalidAssetDir",
			modify:  func(c *Config) { c.AssetDir = "/var/images" },
			wantErr: ErrInvalidAssetDir,
		},
		{
			name:    "escaping asset dir returns ErrInvalidAssetDir",
			modify:  func(c *Config) { c.AssetDir = "../images" },
			wantErr: ErrInvalidAssetDir,
		},
		{
			name:    "zero timeout returns ErrInvalidTimeout",
			modify:  func(c *Config) { c.Timeout = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "negative crawl delay returns ErrInvalidCrawlDelay",
			modify:  func(c *Config) { c.CrawlDelay = -time.Second },
			wantErr: ErrInvalidCrawlDelay,
		},
		{
			name:    "zero crawl delay is valid",
			modify:  func(c *Config) { c.CrawlDelay = 0 },
			wantErr: nil,
		},
		{
			name:    "zero max pages returns ErrInvalidMaxPages",
			modify:  func(c *Config) { c.MaxPages = 0 },
			wantErr: ErrInvalidMaxPages,
		},
		{
			name:    "negative body size returns ErrInvalidMaxBodySize",
			modify:  func(c *Config) { c.MaxBodySize = -1 },
			wantErr: ErrInvalidMaxBodySize,
		},
		{
			name: "json and markdown both enabled returns ErrConflictingReportFormats",
			modify: func(c *Config) {
				c.JSONReport = true
				c.MarkdownReport = true
			},
			wantErr: ErrConflictingReportFormats,
		},
		{
			name:    "socks5 proxy is valid",
			modify:  func(c *Config) { c.ProxyURL = "socks5://127.0.0.1:9050" },
			wantErr: nil,
		},
		{
			name:    "proxy without host returns ErrInvalidProxy",
			modify:  func(c *Config) { c.ProxyURL = "127.0.0.1:9050" },
			wantErr: ErrInvalidProxy,
		},
		{
			name:    "negative image width returns ErrInvalidImageWidth",
			modify:  func(c *Config) { c.Site.MaxImageWidth = -1 },
			wantErr: ErrInvalidImageWidth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := NewConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

// TestSiteConfigSeedURLs tests resolution of seeds against the base URL.
func TestSiteConfigSeedURLs(t *testing.T) {
	t.Parallel()

	t.Run("resolves default seeds", func(t *testing.T) {
		t.Parallel()

		seeds, err := DefaultSite().SeedURLs()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{
			"https://www.coredump.ch/",
			"https://www.coredump.ch/kontakt/",
			"https://www.coredump.ch/der-verein/mitgliedschaft/",
			"https://www.coredump.ch/der-verein/gonner-und-sponsoren/",
		}
		if len(seeds) != len(want) {
			t.Fatalf("expected %d seeds, got %d: %v", len(want), len(seeds), seeds)
		}
		for i := range want {
			if seeds[i] != want[i] {
				t.Errorf("seed %d: got %q, want %q", i, seeds[i], want[i])
			}
		}
	})

	t.Run("keeps base path prefix", func(t *testing.T) {
		t.Parallel()

		site := SiteConfig{BaseURL: "https://example.com/blog/", Seeds: []string{"/", "/about", "archive/"}}
		seeds, err := site.SeedURLs()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{
			"https://example.com/blog/",
			"https://example.com/blog/about",
			"https://example.com/blog/archive/",
		}
		for i := range want {
			if seeds[i] != want[i] {
				t.Errorf("seed %d: got %q, want %q", i, seeds[i], want[i])
			}
		}
	})

	t.Run("accepts absolute seeds on the same host", func(t *testing.T) {
		t.Parallel()

		site := SiteConfig{BaseURL: "https://Example.com", Seeds: []string{"https://example.com/news"}}
		seeds, err := site.SeedURLs()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seeds[0] != "https://example.com/news" {
			t.Errorf("got %q", seeds[0])
		}
	})

	t.Run("blank seeds only returns ErrNoSeeds", func(t *testing.T) {
		t.Parallel()

		site := SiteConfig{BaseURL: "https://example.com", Seeds: []string{" ", ""}}
		if _, err := site.SeedURLs(); !errors.Is(err, ErrNoSeeds) {
			t.Errorf("expected ErrNoSeeds, got %v", err)
		}
	})
}

// TestConfigApplyFile tests merging a config file into the defaults.
func TestConfigApplyFile(t *testing.T) {
	t.Parallel()

	t.Run("nil file keeps defaults", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ApplyFile(nil)
		if cfg.Site.BaseURL != DefaultSiteURL {
			t.Errorf("expected default base URL, got %q", cfg.Site.BaseURL)
		}
	})

	t.Run("other site drops built-in seeds and ignore patterns", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.ApplyFile(&File{Site: SiteConfig{BaseURL: "https://example.com"}})

		if cfg.Site.BaseURL != "https://example.com" {
			t.Errorf("expected base URL override, got %q", cfg.Site.BaseURL)
		}
		if len(cfg.Site.Seeds) != 1 || cfg.Site.Seeds[0] != "/" {
			t.Errorf("expected root seed only, got %v", cfg.Site.Seeds)
		}
		if len(cfg.Site.IgnorePatterns) != 0 {
			t.Errorf("expected no ignore patterns, got %v", cfg.Site.IgnorePatterns)
		}
		if len(cfg.Site.ContentSelectors) == 0 {
			t.Error("expected content selectors to be kept")
		}
	})

	t.Run("overrides operational values", func(t *testing.T) {
		t.Parallel()

		delay := time.Duration(0)
		cfg := NewConfig()
		cfg.ApplyFile(&File{
			OutputDir:  "capsule",
			AssetDir:   "media",
			Timeout:    5 * time.Second,
			CrawlDelay: &delay,
			MaxPages:   20,
			UserAgent:  "TestBot/1.0",
			ProxyURL:   "socks5://127.0.0.1:9050",
		})

		if cfg.OutputDir != "capsule" || cfg.AssetDir != "media" {
			t.Errorf("unexpected output layout %q/%q", cfg.OutputDir, cfg.AssetDir)
		}
		if cfg.Timeout != 5*time.Second {
			t.Errorf("expected timeout 5s, got %v", cfg.Timeout)
		}
		if cfg.CrawlDelay != 0 {
			t.Errorf("expected explicit zero crawl delay, got %v", cfg.CrawlDelay)
		}
		if cfg.MaxPages != 20 {
			t.Errorf("expected max pages 20, got %d", cfg.MaxPages)
		}
		if cfg.UserAgent != "TestBot/1.0" {
			t.Errorf("expected user agent override, got %q", cfg.UserAgent)
		}
		if cfg.ProxyURL != "socks5://127.0.0.1:9050" {
			t.Errorf("expected proxy override, got %q", cfg.ProxyURL)
		}
	})

	t.Run("merges headers", func(t *testing.T) {
		t.Parallel()

		cfg := NewConfig()
		cfg.Site.Headers = map[string]string{"X-Default": "a", "Accept-Language": "de"}
		cfg.ApplyFile(&File{Site: SiteConfig{Headers: map[string]string{"Accept-Language": "en"}}})

		if cfg.Site.Headers["X-Default"] != "a" {
			t.Errorf("expected default header to be kept, got %v", cfg.Site.Headers)
		}
		if cfg.Site.Headers["Accept-Language"] != "en" {
			t.Errorf("expected header override, got %v", cfg.Site.Headers)
		}
	})
}

// TestLoadConfigFile tests the LoadConfigFile function.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.gemirror")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".gemirror")
		content := `site:
  base_url: https://example.com
  seeds:
    - /
    - /about/
  content_selectors:
    - article.post
  ignore_patterns:
    - "*.pdf"
  headers:
    Accept-Language: de
  max_image_width: 640
output_dir: capsule
crawl_delay: 1s
timeout: 10s
max_pages: 42
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		cf, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cf.Site.BaseURL != "https://example.com" {
			t.Errorf("expected base URL, got %q", cf.Site.BaseURL)
		}
		if len(cf.Site.Seeds) != 2 {
			t.Errorf("expected 2 seeds, got %d", len(cf.Site.Seeds))
		}
		if cf.Site.ContentSelectors[0] != "article.post" {
			t.Errorf("expected content selector, got %v", cf.Site.ContentSelectors)
		}
		if cf.Site.Headers["Accept-Language"] != "de" {
			t.Errorf("expected header, got %v", cf.Site.Headers)
		}
		if cf.Site.MaxImageWidth != 640 {
			t.Errorf("expected max image width 640, got %d", cf.Site.MaxImageWidth)
		}
		if cf.OutputDir != "capsule" {
			t.Errorf("expected output dir, got %q", cf.OutputDir)
		}
		if cf.CrawlDelay == nil || *cf.CrawlDelay != time.Second {
			t.Errorf("expected crawl delay 1s, got %v", cf.CrawlDelay)
		}
		if cf.Timeout != 10*time.Second {
			t.Errorf("expected timeout 10s, got %v", cf.Timeout)
		}
		if cf.MaxPages != 42 {
			t.Errorf("expected max pages 42, got %d", cf.MaxPages)
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), ".gemirror")
		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})
}

// TestFindConfigFile tests the FindConfigFile function.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()

		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("site: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if result := FindConfigFile(configPath); result != configPath {
			t.Errorf("expected %q, got %q", configPath, result)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()

		if result := FindConfigFile("/nonexistent/path/config.yaml"); result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})
}

// TestXDGDirs tests XDG directory functions.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	if dir := XDGDataDir(); filepath.Base(dir) != AppName {
		t.Errorf("expected XDG data dir to end in %q, got %q", AppName, dir)
	}
	if dir := XDGConfigDir(); filepath.Base(dir) != AppName {
		t.Errorf("expected XDG config dir to end in %q, got %q", AppName, dir)
	}
}

package config

import (
	"net/url"
	"strings"
	"time"
)

// Built-in site description.
// The mirror was written for this site; its sections and its content
// container are the defaults when no config file is present.
const (
	// DefaultSiteURL is the base URL of the mirrored site.
	DefaultSiteURL = "https://www.coredump.ch"
)

// defaultSeeds are the site's known top-level sections.
var defaultSeeds = []string{
	"/",
	"/kontakt/",
	"/der-verein/mitgliedschaft/",
	"/der-verein/gonner-und-sponsoren/",
}

// defaultContentSelectors pin the main content region of the site's
// WordPress theme. The first selector that matches wins.
var defaultContentSelectors = []string{
	"div.entry-content",
	"main",
}

// defaultIgnorePatterns keep discovery away from WordPress internals and
// binary downloads, which are never converted into pages.
var defaultIgnorePatterns = []string{
	"/wp-admin/*",
	"/wp-json/*",
	"/wp-content/*",
	"/wp-login.php",
	"/feed/*",
	"/xmlrpc.php",
	"*.pdf",
	"*.zip",
	"*.jpg",
	"*.jpeg",
	"*.png",
	"*.gif",
	"*.svg",
	"*.webp",
	"*.ics",
}

// SiteConfig describes the mirrored site.
//
// Design decision: The main content rule is configuration, not a heuristic.
// It depends on the site's markup and must be pinned per site. When the
// theme changes, ContentSelectors is the one place to update.
type SiteConfig struct {
	// BaseURL is the scheme and host of the site, optionally with a path
	// prefix (e.g. "https://example.com/blog").
	BaseURL string `yaml:"base_url,omitempty"`

	// Seeds are the site's top-level sections discovery starts from.
	// Each entry is a path relative to BaseURL or an absolute URL on the
	// same host.
	Seeds []string `yaml:"seeds,omitempty"`

	// ContentSelectors are CSS selectors tried in order to find the main
	// content region of a page.
	ContentSelectors []string `yaml:"content_selectors,omitempty"`

	// IgnorePatterns are URL path glob patterns excluded from discovery.
	IgnorePatterns []string `yaml:"ignore_patterns,omitempty"`

	// FollowPatterns restrict discovery to matching URL paths when set.
	FollowPatterns []string `yaml:"follow_patterns,omitempty"`

	// Headers are extra HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers,omitempty"`

	// Cookie is sent with every request when set.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// MaxImageWidth downscales downloaded raster images wider than this
	// many pixels. Zero stores images as served.
	MaxImageWidth int `yaml:"max_image_width,omitempty"`
}

// File represents the structure of the .gemirror configuration file.
type File struct {
	// Site describes the mirrored site.
	Site SiteConfig `yaml:"site,omitempty"`

	// OutputDir overrides the content root.
	OutputDir string `yaml:"output_dir,omitempty"`

	// AssetDir overrides the asset directory (relative to OutputDir).
	AssetDir string `yaml:"asset_dir,omitempty"`

	// Timeout overrides the per-request timeout, e.g. "30s".
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// CrawlDelay overrides the delay between requests, e.g. "500ms".
	// A pointer so that an explicit "0s" can disable the delay.
	CrawlDelay *time.Duration `yaml:"crawl_delay,omitempty"`

	// MaxPages overrides the discovery bound.
	MaxPages int `yaml:"max_pages,omitempty"`

	// UserAgent overrides the User-Agent header.
	UserAgent string `yaml:"user_agent,omitempty"`

	// ProxyURL routes requests through a proxy.
	ProxyURL string `yaml:"proxy,omitempty"`
}

// DefaultSite returns the built-in site description.
func DefaultSite() SiteConfig {
	return SiteConfig{
		BaseURL:          DefaultSiteURL,
		Seeds:            append([]string(nil), defaultSeeds...),
		ContentSelectors: append([]string(nil), defaultContentSelectors...),
		IgnorePatterns:   append([]string(nil), defaultIgnorePatterns...),
	}
}

// mergeSite overrides defaults with the non-zero fields of override.
//
// A config file that sets base_url describes a different site, so the
// built-in seeds and ignore patterns are dropped in that case unless the
// file repeats them.
func mergeSite(defaults, override SiteConfig) SiteConfig {
	result := defaults

	if override.BaseURL != "" && override.BaseURL != defaults.BaseURL {
		result.BaseURL = override.BaseURL
		result.Seeds = []string{"/"}
		result.IgnorePatterns = nil
	}
	if len(override.Seeds) > 0 {
		result.Seeds = override.Seeds
	}
	if len(override.ContentSelectors) > 0 {
		result.ContentSelectors = override.ContentSelectors
	}
	if len(override.IgnorePatterns) > 0 {
		result.IgnorePatterns = override.IgnorePatterns
	}
	if len(override.FollowPatterns) > 0 {
		result.FollowPatterns = override.FollowPatterns
	}
	if len(override.Headers) > 0 {
		headers := make(map[string]string, len(result.Headers)+len(override.Headers))
		for k, v := range result.Headers {
			headers[k] = v
		}
		for k, v := range override.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}
	if override.Cookie != "" {
		result.Cookie = override.Cookie
	}
	if override.MaxImageWidth > 0 {
		result.MaxImageWidth = override.MaxImageWidth
	}

	return result
}

// Base parses BaseURL. The returned URL has a lower-case host and no
// trailing slash on its path.
func (s SiteConfig) Base() (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(s.BaseURL))
	if err != nil {
		return nil, ErrInvalidBaseURL
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidBaseURL
	}
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// SeedURLs resolves the seeds against the base URL.
func (s SiteConfig) SeedURLs() ([]string, error) {
	base, err := s.Base()
	if err != nil {
		return nil, err
	}

	// Resolve relative to the base path as a directory so that "kontakt/"
	// and "/kontakt/" both land under a prefixed base.
	dir := *base
	dir.Path = base.Path + "/"

	seeds := make([]string, 0, len(s.Seeds))
	for _, seed := range s.Seeds {
		seed = strings.TrimSpace(seed)
		if seed == "" {
			continue
		}
		ref, err := url.Parse(seed)
		if err != nil {
			return nil, ErrInvalidSeed
		}
		if !ref.IsAbs() && strings.HasPrefix(ref.Path, "/") {
			ref.Path = base.Path + ref.Path
		}
		resolved := dir.ResolveReference(ref)
		if !strings.EqualFold(resolved.Host, base.Host) {
			return nil, ErrInvalidSeed
		}
		seeds = append(seeds, resolved.String())
	}
	if len(seeds) == 0 {
		return nil, ErrNoSeeds
	}
	return seeds, nil
}

// Validate checks the site description.
func (s SiteConfig) Validate() error {
	if _, err := s.Base(); err != nil {
		return err
	}
	if len(s.Seeds) == 0 {
		return ErrNoSeeds
	}
	if _, err := s.SeedURLs(); err != nil {
		return err
	}
	if len(s.ContentSelectors) == 0 {
		return ErrNoContentSelector
	}
	if s.MaxImageWidth < 0 {
		return ErrInvalidImageWidth
	}
	return nil
}

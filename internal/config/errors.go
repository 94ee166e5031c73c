package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and SiteConfig.Validate().
//
// Design decision: Package-level sentinel errors let callers use errors.Is()
// while still producing readable messages.
var (
	// ErrInvalidBaseURL is returned when the site base URL is not an
	// absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("invalid site base URL: must be an absolute http or https URL")

	// ErrNoSeeds is returned when the site has no section to start from.
	ErrNoSeeds = errors.New("no seed sections configured for the site")

	// ErrInvalidSeed is returned when a seed does not belong to the site.
	ErrInvalidSeed = errors.New("invalid seed: must be a path or a URL on the site host")

	// ErrNoContentSelector is returned when no main content selector is configured.
	ErrNoContentSelector = errors.New("no content selector configured for the site")

	// ErrNoOutputDir is returned when the output directory is empty.
	ErrNoOutputDir = errors.New("no output directory specified")

	// ErrInvalidAssetDir is returned when the asset directory is not a
	// relative path inside the output directory.
	ErrInvalidAssetDir = errors.New("invalid asset directory: must be a relative path inside the output directory")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxPages is returned when the page limit is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidMaxBodySize is returned when a size limit is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidProxy is returned when the proxy URL cannot be used.
	ErrInvalidProxy = errors.New("invalid proxy URL: expected socks5://host:port or http://host:port")

	// ErrInvalidImageWidth is returned when max_image_width is negative.
	ErrInvalidImageWidth = errors.New("invalid max image width: must be non-negative")
)

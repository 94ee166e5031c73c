package config

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These describe the deployment the mirror was built for. A config file
// or CLI flags override them.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "gemirror"

	// DefaultOutputDir is the content root handed to the Gemini server.
	DefaultOutputDir = "content"

	// DefaultAssetDir is the asset directory, relative to the content root.
	// Gemtext documents link to "images/<name>", so this must stay
	// inside the served tree.
	DefaultAssetDir = "images"

	// DefaultTimeout is the HTTP client timeout for a single request.
	DefaultTimeout = 30 * time.Second

	// DefaultCrawlDelay is the minimum interval between two requests.
	// The mirrored site is small, so a short delay keeps a full run under
	// a minute while staying polite.
	DefaultCrawlDelay = 250 * time.Millisecond

	// DefaultMaxPages bounds discovery in case a site generates links
	// without end (calendars, tag clouds).
	DefaultMaxPages = 500

	// DefaultUserAgent identifies the mirror in the site's access logs.
	DefaultUserAgent = "gemirror/1.0 (+https://github.com/nao1215/gemirror)"

	// DefaultMaxBodySize limits the size of an HTML page read into memory.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultMaxAssetSize limits the size of a downloaded image.
	DefaultMaxAssetSize = 20 * 1024 * 1024 // 20MB
)

// Config holds all configuration options for a mirror run.
// It is populated from defaults, the config file and CLI flags (in that
// order of precedence, lowest first) and passed down explicitly.
//
// Design decision: We keep a flat struct for run-level options and a
// separate SiteConfig for everything that describes the mirrored site.
// The site description is the deployment's fixed configuration point
// (base URL, sections, content selector); the rest is operational tuning.
type Config struct {
	// Site describes the mirrored site.
	Site SiteConfig

	// OutputDir is the root content directory for generated .gmi files.
	OutputDir string

	// AssetDir is the asset directory relative to OutputDir.
	AssetDir string

	// Timeout is the HTTP client timeout per request.
	Timeout time.Duration

	// CrawlDelay is the minimum interval between HTTP requests.
	// Zero disables the delay.
	CrawlDelay time.Duration

	// MaxPages bounds the number of pages registered during discovery.
	MaxPages int

	// UserAgent is the User-Agent header sent with every request.
	UserAgent string

	// MaxBodySize is the maximum HTML response size in bytes.
	MaxBodySize int64

	// MaxAssetSize is the maximum image size in bytes.
	MaxAssetSize int64

	// ProxyURL routes all requests through a proxy when set,
	// e.g. "socks5://127.0.0.1:9050" or "http://proxy:3128".
	ProxyURL string

	// Verbose enables debug logging.
	Verbose bool

	// JSONLog switches log output to JSON lines.
	JSONLog bool

	// JSONReport prints the run summary as JSON.
	// Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport prints the run summary as Markdown.
	// Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile writes the summary to a file instead of stdout.
	ReportFile string

	// ConfigFilePath is an explicit config file path. Empty means search
	// the default locations.
	ConfigFilePath string

	// SaveHistory records the run in the history database.
	SaveHistory bool

	// DBDir is the directory of the history database.
	DBDir string
}

// NewConfig creates a new Config with default values.
// The site defaults to the built-in DefaultSite.
func NewConfig() *Config {
	return &Config{
		Site:         DefaultSite(),
		OutputDir:    DefaultOutputDir,
		AssetDir:     DefaultAssetDir,
		Timeout:      DefaultTimeout,
		CrawlDelay:   DefaultCrawlDelay,
		MaxPages:     DefaultMaxPages,
		UserAgent:    DefaultUserAgent,
		MaxBodySize:  DefaultMaxBodySize,
		MaxAssetSize: DefaultMaxAssetSize,
		SaveHistory:  true,
		DBDir:        XDGDataDir(),
	}
}

// ApplyFile overrides configuration values with those set in a config file.
// Zero values in the file leave the current value untouched.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	c.Site = mergeSite(c.Site, f.Site)
	if f.OutputDir != "" {
		c.OutputDir = f.OutputDir
	}
	if f.AssetDir != "" {
		c.AssetDir = f.AssetDir
	}
	if f.Timeout > 0 {
		c.Timeout = f.Timeout
	}
	if f.CrawlDelay != nil {
		c.CrawlDelay = *f.CrawlDelay
	}
	if f.MaxPages > 0 {
		c.MaxPages = f.MaxPages
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	if f.ProxyURL != "" {
		c.ProxyURL = f.ProxyURL
	}
}

// AssetRoot returns the filesystem directory assets are written to.
func (c *Config) AssetRoot() string {
	return filepath.Join(c.OutputDir, filepath.FromSlash(c.AssetDir))
}

// XDGDataDir returns the XDG data directory for gemirror.
// On Linux: ~/.local/share/gemirror
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for gemirror.
// On Linux: ~/.config/gemirror
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns the first problem found as a sentinel error.
//
// Design decision: We validate once, before the run starts, and fail fast.
// During the run nothing is fatal, so configuration mistakes are the only
// errors that can stop the program.
func (c *Config) Validate() error {
	if err := c.Site.Validate(); err != nil {
		return err
	}

	if strings.TrimSpace(c.OutputDir) == "" {
		return ErrNoOutputDir
	}

	// The asset directory must live inside the content root so the
	// generated relative links stay servable.
	if c.AssetDir == "" || path.IsAbs(c.AssetDir) || filepath.IsAbs(c.AssetDir) {
		return ErrInvalidAssetDir
	}
	if cleaned := path.Clean(filepath.ToSlash(c.AssetDir)); cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return ErrInvalidAssetDir
	}

	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}

	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}

	if c.MaxBodySize < 0 || c.MaxAssetSize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	if c.ProxyURL != "" {
		u, err := url.Parse(c.ProxyURL)
		if err != nil || u.Host == "" {
			return ErrInvalidProxy
		}
		switch u.Scheme {
		case "socks5", "socks5h", "http", "https":
		default:
			return ErrInvalidProxy
		}
	}

	return nil
}

package crawler

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/nao1215/gemirror/internal/fetch"
	"github.com/nao1215/gemirror/internal/log"
)

// defaultMaxPages bounds discovery when no limit is configured.
const defaultMaxPages = 500

// Fetcher retrieves a page.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// Registry is the part of the page registry discovery writes to.
type Registry interface {
	Canonical(rawURL string) (string, error)
	FetchURL(rawURL string) (string, error)
	InSite(rawURL string) bool
	Register(rawURL string) (string, error)
	SetTitle(rawURL, title string)
	Len() int
}

// Spider discovers the pages of the mirrored site.
//
// Design decision: We call it "Spider" rather than "Crawler" because
// "Spider" is the traditional term and keeps crawler.NewSpider() readable.
type Spider struct {
	fetcher  Fetcher
	registry Registry

	// maxPages bounds the number of registered pages.
	maxPages int

	// ignorePatterns are URL path patterns to skip during discovery.
	// Patterns use glob syntax (e.g., "/wp-admin/*", "*.pdf").
	ignorePatterns []string

	// followPatterns restrict discovery to matching URL paths.
	// Empty means all paths are allowed (subject to ignorePatterns).
	followPatterns []string

	logger *slog.Logger
}

// SpiderOption configures a Spider.
type SpiderOption func(*Spider)

// WithMaxPages sets the maximum number of pages to register.
func WithMaxPages(maxPages int) SpiderOption {
	return func(s *Spider) {
		s.maxPages = maxPages
	}
}

// WithIgnorePatterns sets URL path patterns to skip during discovery.
// Patterns use glob syntax (e.g., "/wp-admin/*", "*.pdf", "/feed/*").
func WithIgnorePatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.ignorePatterns = patterns
	}
}

// WithFollowPatterns restricts discovery to URL paths matching at least
// one pattern. An empty slice allows every path.
func WithFollowPatterns(patterns []string) SpiderOption {
	return func(s *Spider) {
		s.followPatterns = patterns
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SpiderOption {
	return func(s *Spider) {
		s.logger = logger
	}
}

// NewSpider creates a Spider that fetches with fetcher and registers
// discovered pages in registry.
func NewSpider(fetcher Fetcher, registry Registry, opts ...SpiderOption) *Spider {
	s := &Spider{
		fetcher:  fetcher,
		registry: registry,
		maxPages: defaultMaxPages,
		logger:   log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Failure records a URL that could not be fetched during discovery.
type Failure struct {
	URL string
	Err error
}

// Result summarizes a discovery pass.
type Result struct {
	// Registered is the number of pages in the registry afterwards.
	Registered int

	// Failures lists URLs whose fetch failed. They are not registered,
	// so links to them stay absolute.
	Failures []Failure

	// Skipped counts fetched URLs that were not HTML.
	Skipped int

	// Truncated is set when the max pages bound stopped discovery
	// before the frontier was empty.
	Truncated bool
}

// Discover runs the discovery pass from seeds until the frontier is
// empty. Fetch failures are recorded and never stop the pass; only
// context cancellation does.
//
// The frontier is deduplicated by canonical URL but holds the URL as
// first linked, so the server sees the path the site itself uses.
func (s *Spider) Discover(ctx context.Context, seeds []string) (*Result, error) {
	result := &Result{Failures: make([]Failure, 0)}
	visited := make(map[string]bool)
	queue := make([]string, 0, len(seeds))

	for _, seed := range seeds {
		next, err := s.enqueue(seed, visited)
		if err != nil {
			s.logger.Warn("seed skipped", "url", seed, "error", err)
			result.Failures = append(result.Failures, Failure{URL: seed, Err: err})
			continue
		}
		if next != "" {
			queue = append(queue, next)
		}
	}

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			result.Registered = s.registry.Len()
			return result, ctx.Err()
		default:
		}

		if s.registry.Len() >= s.maxPages {
			s.logger.Warn("max pages reached, discovery stopped", "max_pages", s.maxPages, "queued", len(queue))
			result.Truncated = true
			break
		}

		pageURL := queue[0]
		queue = queue[1:]

		links, ok := s.visit(ctx, pageURL, result)
		if !ok {
			continue
		}

		for _, link := range links {
			if !s.registry.InSite(link) || !s.shouldCrawl(link) {
				continue
			}
			if next, err := s.enqueue(link, visited); err == nil && next != "" {
				queue = append(queue, next)
			}
		}
	}

	result.Registered = s.registry.Len()
	return result, nil
}

// enqueue marks rawURL visited and returns the URL to fetch for it.
// It returns "" when the page was already seen.
func (s *Spider) enqueue(rawURL string, visited map[string]bool) (string, error) {
	canonical, err := s.registry.Canonical(rawURL)
	if err != nil {
		return "", err
	}
	if visited[canonical] {
		return "", nil
	}
	fetchURL, err := s.registry.FetchURL(rawURL)
	if err != nil {
		return "", err
	}
	visited[canonical] = true
	return fetchURL, nil
}

// visit fetches and registers one page and returns its links.
func (s *Spider) visit(ctx context.Context, pageURL string, result *Result) ([]string, bool) {
	resp, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		s.logger.Warn("discovery fetch failed", "url", pageURL, "error", err)
		result.Failures = append(result.Failures, Failure{URL: pageURL, Err: err})
		return nil, false
	}
	if !resp.IsHTML() {
		s.logger.Debug("not HTML, skipped", "url", pageURL, "content_type", resp.ContentType)
		result.Skipped++
		return nil, false
	}

	// A redirect off the site means the page is not ours to mirror.
	if resp.URL != "" && !s.registry.InSite(resp.URL) {
		s.logger.Debug("redirected off-site, skipped", "url", pageURL, "location", resp.URL)
		result.Skipped++
		return nil, false
	}

	target, err := s.registry.Register(pageURL)
	if err != nil {
		result.Failures = append(result.Failures, Failure{URL: pageURL, Err: err})
		return nil, false
	}

	base := pageURL
	if resp.URL != "" {
		base = resp.URL
	}
	parser, err := NewParser(base)
	if err != nil {
		return nil, true
	}
	parsed, err := parser.Parse(bytes.NewReader(resp.Body))
	if err != nil {
		s.logger.Warn("parse failed", "url", pageURL, "error", err)
		return nil, true
	}

	s.registry.SetTitle(pageURL, parsed.DisplayTitle())
	s.logger.Debug("page registered", "url", pageURL, "target", target, "links", len(parsed.Links))
	return parsed.Links, true
}

// shouldCrawl checks if a URL should be crawled based on ignore/follow patterns.
//
// Logic:
//  1. If URL matches any ignorePattern, skip it (return false)
//  2. If followPatterns is set and URL matches none, skip it (return false)
//  3. Otherwise, crawl it (return true)
func (s *Spider) shouldCrawl(targetURL string) bool {
	u, err := url.Parse(targetURL)
	if err != nil {
		return false
	}

	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range s.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}

	if len(s.followPatterns) > 0 {
		for _, pattern := range s.followPatterns {
			if matchPattern(pattern, path) {
				return true
			}
		}
		return false
	}

	return true
}

// matchPattern checks if a path matches a glob pattern.
// Patterns can use:
//   - * to match any sequence of non-separator characters
//   - ? to match any single character
//   - a trailing "/*" to match everything below a directory
//
// Examples:
//   - "/wp-admin/*" matches "/wp-admin/edit.php", "/wp-admin"
//   - "*.pdf" matches "/docs/statuten.pdf"
//   - "/20??/*" matches "/2024/05"
func matchPattern(pattern, path string) bool {
	if strings.HasSuffix(pattern, "/*") {
		prefix := strings.TrimSuffix(pattern, "/*")
		if strings.HasPrefix(path, prefix+"/") || path == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "*.") {
		ext := strings.TrimPrefix(pattern, "*")
		if strings.HasSuffix(strings.ToLower(path), strings.ToLower(ext)) {
			return true
		}
	}

	matched, err := filepath.Match(pattern, path)
	if err != nil {
		return false
	}
	if matched {
		return true
	}

	// Patterns without a slash also match the last path segment.
	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		matched, err := filepath.Match(pattern, filepath.Base(path))
		if err == nil && matched {
			return true
		}
	}

	return false
}

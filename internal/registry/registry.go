package registry

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/nao1215/gemirror/internal/model"
)

var (
	// ErrOffSite is returned for URLs outside the mirrored site.
	ErrOffSite = errors.New("URL is outside the mirrored site")

	// ErrInvalidURL is returned for URLs that cannot be parsed or are
	// not http(s).
	ErrInvalidURL = errors.New("invalid page URL")
)

// strippedExtensions are removed from the last path segment so that
// "/about.html" and "/about/" end up in the same file.
var strippedExtensions = []string{".html", ".htm", ".php"}

// Registry maps canonical page URLs to pages.
//
// Design decision: The Registry is an explicit value created per run and
// passed to discovery and conversion. Nothing in the package keeps state
// between runs, so every run re-derives the mapping from scratch.
type Registry struct {
	// base is the site's scheme, host and optional path prefix.
	base *url.URL

	// pages maps canonical URLs to registered pages.
	pages map[string]*model.Page

	// aliases maps canonical URLs whose target path is already claimed
	// by another page (e.g. "/a/" and "/a.html") to that page's URL.
	aliases map[string]string

	// owners maps target paths to the URL that claimed them first.
	owners map[string]string

	titler cases.Caser
}

// New creates an empty Registry for the site at baseURL.
func New(baseURL string) (*Registry, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil

	return &Registry{
		base:    u,
		pages:   make(map[string]*model.Page),
		aliases: make(map[string]string),
		owners:  make(map[string]string),
		titler:  cases.Title(language.Und),
	}, nil
}

// Base returns the site's base URL.
func (r *Registry) Base() string {
	return r.base.String()
}

// Host returns the site's host.
func (r *Registry) Host() string {
	return r.base.Host
}

// Canonical returns the canonical form of rawURL: the site's scheme, a
// lower-case host and a cleaned path without query, fragment or trailing
// slash (the root keeps its slash). Relative URLs are resolved against
// the site base.
func (r *Registry) Canonical(rawURL string) (string, error) {
	u, err := r.parse(rawURL)
	if err != nil {
		return "", err
	}
	if !r.inSite(u) {
		return "", fmt.Errorf("%w: %s", ErrOffSite, rawURL)
	}
	return r.canonical(u), nil
}

// FetchURL returns rawURL resolved against the site base, without query
// or fragment. Unlike Canonical it keeps the path as linked, trailing
// slash included.
func (r *Registry) FetchURL(rawURL string) (string, error) {
	u, err := r.parse(rawURL)
	if err != nil {
		return "", err
	}
	if !r.inSite(u) {
		return "", fmt.Errorf("%w: %s", ErrOffSite, rawURL)
	}
	return r.fetchURL(u), nil
}

// InSite reports whether rawURL belongs to the mirrored site.
func (r *Registry) InSite(rawURL string) bool {
	u, err := r.parse(rawURL)
	if err != nil {
		return false
	}
	return r.inSite(u)
}

// Register assigns a target path to rawURL and returns it.
// Register is idempotent: registering the same page again returns the
// same path and adds no entry. The first registered form of a page is
// kept as its fetch URL.
func (r *Registry) Register(rawURL string) (string, error) {
	u, err := r.parse(rawURL)
	if err != nil {
		return "", err
	}
	if !r.inSite(u) {
		return "", fmt.Errorf("%w: %s", ErrOffSite, rawURL)
	}
	canonical := r.canonical(u)
	if p, ok := r.pages[canonical]; ok {
		return p.TargetPath, nil
	}
	if owner, ok := r.aliases[canonical]; ok {
		return r.pages[owner].TargetPath, nil
	}

	target := TargetPath(r.relativePath(canonical))
	if owner, ok := r.owners[target]; ok {
		r.aliases[canonical] = owner
		return target, nil
	}

	r.pages[canonical] = &model.Page{URL: canonical, FetchURL: r.fetchURL(u), TargetPath: target}
	r.owners[target] = canonical
	return target, nil
}

// Resolve returns the target path of a registered page.
// It reports false when rawURL is off-site or was never registered.
func (r *Registry) Resolve(rawURL string) (string, bool) {
	p := r.lookup(rawURL)
	if p == nil {
		return "", false
	}
	return p.TargetPath, true
}

// Page returns the registered page for rawURL, or nil.
func (r *Registry) Page(rawURL string) *model.Page {
	return r.lookup(rawURL)
}

// SetTitle records the display title of a registered page.
// Empty titles and unregistered URLs are ignored.
func (r *Registry) SetTitle(rawURL, title string) {
	title = strings.Join(strings.Fields(title), " ")
	if title == "" {
		return
	}
	if p := r.lookup(rawURL); p != nil {
		p.Title = title
	}
}

// Title returns the display title of a registered page. Pages without a
// recorded title get one derived from their last path segment
// ("gonner-und-sponsoren" becomes "Gonner Und Sponsoren"); the root page
// falls back to the site host.
func (r *Registry) Title(rawURL string) string {
	p := r.lookup(rawURL)
	if p == nil {
		return ""
	}
	if p.Title != "" {
		return p.Title
	}
	return r.slugTitle(p)
}

// MarkConverted records that the page's file has been written.
func (r *Registry) MarkConverted(rawURL string) {
	if p := r.lookup(rawURL); p != nil {
		p.Converted = true
	}
}

// MarkDegraded records that the page was written as a fallback stub.
func (r *Registry) MarkDegraded(rawURL, reason string) {
	if p := r.lookup(rawURL); p != nil {
		p.Degraded = true
		p.Error = reason
	}
}

// Pages returns all registered pages sorted by URL.
func (r *Registry) Pages() []*model.Page {
	pages := make([]*model.Page, 0, len(r.pages))
	for _, p := range r.pages {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].URL < pages[j].URL
	})
	return pages
}

// Len returns the number of registered pages, aliases excluded.
func (r *Registry) Len() int {
	return len(r.pages)
}

func (r *Registry) lookup(rawURL string) *model.Page {
	canonical, err := r.Canonical(rawURL)
	if err != nil {
		return nil
	}
	if p, ok := r.pages[canonical]; ok {
		return p
	}
	if owner, ok := r.aliases[canonical]; ok {
		return r.pages[owner]
	}
	return nil
}

func (r *Registry) parse(rawURL string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	u := r.base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return u, nil
}

func (r *Registry) inSite(u *url.URL) bool {
	if !strings.EqualFold(u.Host, r.base.Host) {
		return false
	}
	if r.base.Path == "" {
		return true
	}
	p := cleanPath(u.Path)
	return p == r.base.Path || strings.HasPrefix(p, r.base.Path+"/")
}

func (r *Registry) canonical(u *url.URL) string {
	c := url.URL{
		Scheme: r.base.Scheme,
		Host:   strings.ToLower(u.Host),
		Path:   cleanPath(u.Path),
	}
	return c.String()
}

func (r *Registry) fetchURL(u *url.URL) string {
	f := url.URL{
		Scheme: u.Scheme,
		Host:   strings.ToLower(u.Host),
		Path:   u.Path,
	}
	if f.Path == "" {
		f.Path = "/"
	}
	return f.String()
}

// relativePath returns the canonical URL's path below the site base,
// without leading slash.
func (r *Registry) relativePath(canonical string) string {
	u, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	p := strings.TrimPrefix(u.Path, r.base.Path)
	return strings.Trim(p, "/")
}

func (r *Registry) slugTitle(p *model.Page) string {
	rel := r.relativePath(p.URL)
	if rel == "" {
		return r.base.Host
	}
	slug := path.Base(rel)
	slug = trimExtension(slug)
	slug = strings.NewReplacer("-", " ", "_", " ").Replace(slug)
	slug = strings.Join(strings.Fields(slug), " ")
	if slug == "" {
		return r.base.Host
	}
	return r.titler.String(slug)
}

// cleanPath removes dot segments and duplicate slashes and drops the
// trailing slash except for the root.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	cleaned := path.Clean("/" + p)
	return cleaned
}

// TargetPath maps a site-relative URL path to a Gemtext target path.
//
//	""              -> index.gmi
//	"kontakt"       -> kontakt.gmi
//	"der-verein/x/" -> der-verein/x.gmi
//	"about.html"    -> about.gmi
//	"blog/index.php" -> blog.gmi
func TargetPath(relPath string) string {
	segments := make([]string, 0, 4)
	for _, seg := range strings.Split(relPath, "/") {
		if seg == "" || seg == "." {
			continue
		}
		if seg == ".." {
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
			continue
		}
		segments = append(segments, seg)
	}

	if n := len(segments); n > 0 {
		last := trimExtension(segments[n-1])
		if strings.EqualFold(last, "index") || last == "" {
			segments = segments[:n-1]
		} else {
			segments[n-1] = last
		}
	}
	if len(segments) == 0 {
		return model.IndexFile
	}
	return strings.Join(segments, "/") + model.GemtextExt
}

func trimExtension(name string) string {
	lower := strings.ToLower(name)
	for _, ext := range strippedExtensions {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}

// RelativeLink returns the link from the page at target path from to the
// file at target path to, both slash-separated and relative to the
// content root.
//
//	RelativeLink("kontakt.gmi", "team.gmi")             == "team.gmi"
//	RelativeLink("der-verein/a.gmi", "index.gmi")       == "../index.gmi"
//	RelativeLink("index.gmi", "images/logo.png")        == "images/logo.png"
func RelativeLink(from, to string) string {
	fromDir := strings.Split(path.Dir(from), "/")
	if len(fromDir) == 1 && fromDir[0] == "." {
		fromDir = nil
	}
	toParts := strings.Split(path.Clean(to), "/")
	toDir, toFile := toParts[:len(toParts)-1], toParts[len(toParts)-1]

	common := 0
	for common < len(fromDir) && common < len(toDir) && fromDir[common] == toDir[common] {
		common++
	}

	parts := make([]string, 0, len(fromDir)-common+len(toDir)-common+1)
	for range fromDir[common:] {
		parts = append(parts, "..")
	}
	parts = append(parts, toDir[common:]...)
	parts = append(parts, toFile)
	return strings.Join(parts, "/")
}

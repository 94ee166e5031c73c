package asset

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/gemirror/internal/fetch"
	"github.com/nao1215/gemirror/internal/log"
	"github.com/nao1215/gemirror/internal/model"
)

// defaultName is used when a URL has no usable last path segment.
const defaultName = "asset"

// Fetcher retrieves the bytes of an asset.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// Result is the outcome of Localize.
type Result struct {
	// Ref is the link target: a slash-separated path relative to the
	// content root for local assets, or the original URL on fallback.
	Ref string

	// Asset is the record kept for the summary.
	Asset *model.Asset
}

// Local reports whether Ref points at a local file.
func (r Result) Local() bool {
	return r.Asset != nil && r.Asset.Localized()
}

// Store downloads assets into a directory below the content root.
//
// Design decision: File names come from the last URL path segment so that
// the asset directory stays readable and stable across runs. Two distinct
// URLs that share a basename within one run are told apart by a short
// SHA3 suffix derived from the URL, which is stable too.
type Store struct {
	// dir is the filesystem directory assets are written to.
	dir string

	// refDir is the slash-separated asset directory relative to the
	// content root, used to build references.
	refDir string

	fetcher  Fetcher
	maxWidth int
	logger   *slog.Logger

	// results caches the outcome per URL for the duration of a run.
	results map[string]Result

	// claimed maps local file names to the URL that claimed them.
	claimed map[string]string

	// descriptions holds EXIF descriptions read from downloaded bytes,
	// keyed by local name, before any re-encoding.
	descriptions map[string]string
}

// Option configures a Store.
type Option func(*Store)

// WithMaxWidth downscales raster images wider than width pixels.
// Zero keeps images as served.
func WithMaxWidth(width int) Option {
	return func(s *Store) {
		s.maxWidth = width
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store writing to dir. refDir is the same directory
// expressed relative to the content root ("images").
func New(dir, refDir string, fetcher Fetcher, opts ...Option) *Store {
	s := &Store{
		dir:          dir,
		refDir:       strings.Trim(filepath.ToSlash(refDir), "/"),
		fetcher:      fetcher,
		logger:       log.Discard(),
		results:      make(map[string]Result),
		claimed:      make(map[string]string),
		descriptions: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Localize makes the image at imageURL available locally and returns the
// reference to use in a page. It never fails: on any error the result
// carries the original URL and Asset.Fallback is set.
func (s *Store) Localize(ctx context.Context, imageURL string) Result {
	if res, ok := s.results[imageURL]; ok {
		return res
	}
	res := s.localize(ctx, imageURL)
	s.results[imageURL] = res
	return res
}

func (s *Store) localize(ctx context.Context, imageURL string) Result {
	a := &model.Asset{URL: imageURL}

	u, err := url.Parse(imageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return s.fallback(a, fmt.Errorf("unsupported asset URL %q", imageURL))
	}

	name := s.claim(imageURL, u)
	a.LocalName = name
	target := filepath.Join(s.dir, name)

	if info, err := os.Stat(target); err == nil && info.Mode().IsRegular() {
		a.Cached = true
		s.logger.Debug("asset cached", "url", imageURL, "file", name)
		return Result{Ref: s.ref(name), Asset: a}
	}

	resp, err := s.fetcher.Fetch(ctx, imageURL)
	if err != nil {
		return s.fallback(a, err)
	}

	data := resp.Body
	if desc := describeBytes(data); desc != "" {
		s.descriptions[name] = desc
	}
	if s.maxWidth > 0 {
		data = downscale(data, s.maxWidth)
	}

	if err := s.write(target, data); err != nil {
		return s.fallback(a, err)
	}

	a.Downloaded = true
	s.logger.Debug("asset downloaded", "url", imageURL, "file", name, "bytes", len(data))
	return Result{Ref: s.ref(name), Asset: a}
}

func (s *Store) fallback(a *model.Asset, err error) Result {
	a.Fallback = true
	a.Error = err.Error()
	s.logger.Warn("asset kept remote", "url", a.URL, "error", err)
	return Result{Ref: a.URL, Asset: a}
}

// claim returns the local file name for imageURL, disambiguating names
// already claimed by another URL.
func (s *Store) claim(imageURL string, u *url.URL) string {
	name := fileName(u)
	if owner, ok := s.claimed[name]; !ok || owner == imageURL {
		s.claimed[name] = imageURL
		return name
	}

	ext := path.Ext(name)
	name = strings.TrimSuffix(name, ext) + "-" + urlHash(imageURL) + ext
	s.claimed[name] = imageURL
	return name
}

// write stores data at target through a temporary file, so that an
// interrupted run never leaves a partial file behind that a later run
// would treat as cached.
func (s *Store) write(target string, data []byte) error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return &WriteError{Path: target, Err: err}
	}

	tmp, err := os.CreateTemp(s.dir, ".asset-*")
	if err != nil {
		return &WriteError{Path: target, Err: err}
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &WriteError{Path: target, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return &WriteError{Path: target, Err: err}
	}
	if err := os.Chmod(tmpName, 0o644); err != nil { //nolint:gosec // served files must be world-readable
		_ = os.Remove(tmpName)
		return &WriteError{Path: target, Err: err}
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return &WriteError{Path: target, Err: err}
	}
	return nil
}

func (s *Store) ref(name string) string {
	if s.refDir == "" || s.refDir == "." {
		return name
	}
	return s.refDir + "/" + name
}

// Assets returns every asset seen so far, sorted by URL.
func (s *Store) Assets() []*model.Asset {
	assets := make([]*model.Asset, 0, len(s.results))
	for _, res := range s.results {
		assets = append(assets, res.Asset)
	}
	sort.Slice(assets, func(i, j int) bool {
		return assets[i].URL < assets[j].URL
	})
	return assets
}

// Stats returns the asset counters.
func (s *Store) Stats() Stats {
	var st Stats
	for _, res := range s.results {
		switch {
		case res.Asset.Fallback:
			st.Fallback++
		case res.Asset.Cached:
			st.Cached++
		case res.Asset.Downloaded:
			st.Downloaded++
		}
	}
	return st
}

// Stats holds asset counters.
type Stats struct {
	Downloaded int
	Cached     int
	Fallback   int
}

// fileName derives a safe file name from the last path segment of u.
func fileName(u *url.URL) string {
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		return defaultName
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	name := strings.TrimLeft(b.String(), ".")
	if name == "" {
		return defaultName
	}
	return name
}

// urlHash returns the first 8 hex digits of the SHA3-256 of rawURL.
func urlHash(rawURL string) string {
	sum := sha3.Sum256([]byte(rawURL))
	return hex.EncodeToString(sum[:4])
}

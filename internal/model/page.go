package model

import "strings"

// GemtextExt is the file extension of every generated page.
const GemtextExt = ".gmi"

// IndexFile is the target path of the site root.
const IndexFile = "index" + GemtextExt

// Page represents one page of the mirrored site.
// It is identified by its canonical source URL and carries the local
// target path assigned during discovery.
//
// Design decision: The target path is stored slash-separated regardless of
// the host OS because it doubles as the link target written into Gemtext
// documents. It is converted with filepath.FromSlash only when touching
// the filesystem.
type Page struct {
	// URL is the canonical source URL (scheme, host and path only).
	URL string `json:"url"`

	// FetchURL is the URL as first linked, without query or fragment.
	// It keeps the trailing slash that URL drops, because some servers
	// only answer on one of the two forms.
	FetchURL string `json:"fetch_url,omitempty"`

	// TargetPath is the output path relative to the content root, e.g.
	// "der-verein/mitgliedschaft.gmi".
	TargetPath string `json:"target_path"`

	// Title is taken from the page's first heading.
	Title string `json:"title,omitempty"`

	// Converted is set once the page body has been written.
	Converted bool `json:"converted"`

	// Degraded marks pages written as a fallback stub, either because the
	// page could not be fetched or because no content could be extracted.
	Degraded bool `json:"degraded,omitempty"`

	// Error holds the last error message recorded for this page.
	Error string `json:"error,omitempty"`
}

// Source returns the URL to request for the page.
func (p *Page) Source() string {
	if p.FetchURL != "" {
		return p.FetchURL
	}
	return p.URL
}

// Depth returns the number of directories between the content root and
// the page's file. The index page has depth 0.
func (p *Page) Depth() int {
	return strings.Count(p.TargetPath, "/")
}

// Asset is a binary resource (an image) referenced by a page.
type Asset struct {
	// URL is the absolute source URL of the asset.
	URL string `json:"url"`

	// LocalName is the file name under the asset directory.
	// Empty when the asset could not be localized.
	LocalName string `json:"local_name,omitempty"`

	// Downloaded is true when the file was fetched during this run.
	Downloaded bool `json:"downloaded"`

	// Cached is true when the file already existed on disk and no fetch
	// was performed.
	Cached bool `json:"cached"`

	// Fallback is true when the original remote URL is used instead of a
	// local copy.
	Fallback bool `json:"fallback"`

	// Error holds the reason for a fallback.
	Error string `json:"error,omitempty"`
}

// Localized reports whether the asset is available as a local file.
func (a *Asset) Localized() bool {
	return a.LocalName != "" && !a.Fallback
}

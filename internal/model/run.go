package model

import (
	"sort"
	"time"
)

// State is a phase of a mirror run.
//
// A run moves strictly forward: StateDiscover, StateConvert, StateDone.
// Conversion cannot start before discovery has reached its fixed point
// because link rewriting needs the complete URL to path mapping.
type State string

const (
	// StateDiscover is the discovery pass that builds the page registry.
	StateDiscover State = "discover"

	// StateConvert is the conversion pass that writes Gemtext files.
	StateConvert State = "convert"

	// StateDone is terminal. The summary is final once this state is reached.
	StateDone State = "done"
)

// next returns the state following s.
func (s State) next() State {
	switch s {
	case StateDiscover:
		return StateConvert
	case StateConvert:
		return StateDone
	default:
		return StateDone
	}
}

// Run collects everything produced by one invocation of the pipeline.
type Run struct {
	// ID is the history database identifier, zero until saved.
	ID int64 `json:"id,omitempty"`

	// Site is the base URL of the mirrored site.
	Site string `json:"site"`

	// OutputDir is the content root the run wrote to.
	OutputDir string `json:"output_dir"`

	// State is the current phase.
	State State `json:"state"`

	// StartedAt and FinishedAt bracket the run.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`

	// Pages holds every registered page after discovery, sorted by URL.
	Pages []*Page `json:"pages,omitempty"`

	// Assets holds every asset referenced during conversion.
	Assets []*Asset `json:"assets,omitempty"`

	// Summary holds the counters reported at the end of the run.
	Summary Summary `json:"summary"`

	// Cancelled is set when the run stopped before reaching the end of
	// the conversion pass.
	Cancelled bool `json:"cancelled,omitempty"`
}

// NewRun creates a run in the discovery state.
func NewRun(site, outputDir string) *Run {
	return &Run{
		Site:      site,
		OutputDir: outputDir,
		State:     StateDiscover,
		StartedAt: time.Now(),
		Pages:     make([]*Page, 0),
		Assets:    make([]*Asset, 0),
	}
}

// Advance moves the run to the next state and returns it.
// Reaching StateDone stamps FinishedAt and recomputes the summary.
func (r *Run) Advance() State {
	r.State = r.State.next()
	if r.State == StateDone {
		r.FinishedAt = time.Now()
		r.Summarize()
	}
	return r.State
}

// Duration returns how long the run took, or has taken so far.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// SetPages replaces the run's pages, sorted by URL for stable output.
func (r *Run) SetPages(pages []*Page) {
	sorted := make([]*Page, len(pages))
	copy(sorted, pages)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].URL < sorted[j].URL
	})
	r.Pages = sorted
}

// Summarize recomputes the page and asset counters from Pages and Assets.
// Counters that are only known while converting (anomalies, failed fetches
// during discovery) are left untouched.
func (r *Run) Summarize() {
	s := &r.Summary
	s.PagesDiscovered = len(r.Pages)
	s.PagesConverted = 0
	s.PagesDegraded = 0
	for _, p := range r.Pages {
		if p.Converted {
			s.PagesConverted++
		}
		if p.Degraded {
			s.PagesDegraded++
		}
	}

	s.AssetsDownloaded = 0
	s.AssetsCached = 0
	s.AssetsFallback = 0
	for _, a := range r.Assets {
		switch {
		case a.Fallback:
			s.AssetsFallback++
		case a.Cached:
			s.AssetsCached++
		case a.Downloaded:
			s.AssetsDownloaded++
		}
	}
}

// Summary contains the counters reported when a run finishes.
// Operators use the degraded and fallback counters to detect silent
// degradation without failing the batch.
type Summary struct {
	// PagesDiscovered is the number of pages in the registry.
	PagesDiscovered int `json:"pages_discovered"`

	// PagesConverted is the number of pages written to disk.
	PagesConverted int `json:"pages_converted"`

	// PagesDegraded is the number of pages written as fallback stubs.
	PagesDegraded int `json:"pages_degraded"`

	// PagesFailed is the number of pages that could not be written at all.
	// Such a page keeps its target path in the registry, so links to it
	// from other converted pages point at a missing file. The report
	// lists these pages as not written.
	PagesFailed int `json:"pages_failed"`

	// DiscoveryFailures is the number of URLs that could not be fetched
	// during discovery. These are never registered, so links to them stay
	// absolute.
	DiscoveryFailures int `json:"discovery_failures"`

	// AssetsDownloaded is the number of assets fetched during this run.
	AssetsDownloaded int `json:"assets_downloaded"`

	// AssetsCached is the number of assets already present on disk.
	AssetsCached int `json:"assets_cached"`

	// AssetsFallback is the number of assets left as remote references.
	AssetsFallback int `json:"assets_fallback"`

	// ParseAnomalies is the number of structural problems met while
	// converting (missing content region, unparseable URLs, ...).
	ParseAnomalies int `json:"parse_anomalies"`
}

// AssetsProcessed returns the total number of distinct assets handled.
func (s Summary) AssetsProcessed() int {
	return s.AssetsDownloaded + s.AssetsCached + s.AssetsFallback
}

// DegradedItems returns the number of pages and assets that took a
// fallback path.
func (s Summary) DegradedItems() int {
	return s.PagesDegraded + s.PagesFailed + s.AssetsFallback + s.DiscoveryFailures
}

// Clean reports whether the run finished without any degradation.
func (s Summary) Clean() bool {
	return s.DegradedItems() == 0 && s.ParseAnomalies == 0
}

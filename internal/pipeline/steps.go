package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"git.sr.ht/~adnano/go-gemini"

	"github.com/nao1215/gemirror/internal/asset"
	"github.com/nao1215/gemirror/internal/capsule"
	"github.com/nao1215/gemirror/internal/convert"
	"github.com/nao1215/gemirror/internal/crawler"
	"github.com/nao1215/gemirror/internal/fetch"
	"github.com/nao1215/gemirror/internal/log"
	"github.com/nao1215/gemirror/internal/model"
	"github.com/nao1215/gemirror/internal/registry"
)

// PageFetcher retrieves pages during the conversion pass.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Response, error)
}

// DiscoverStep runs the discovery pass: it crawls the site from its seed
// sections and fills the registry. No output is written.
type DiscoverStep struct {
	spider   *crawler.Spider
	registry *registry.Registry
	seeds    []string
	logger   *slog.Logger
}

// DiscoverStepOption configures a DiscoverStep.
type DiscoverStepOption func(*DiscoverStep)

// WithDiscoverLogger sets a custom logger for the discover step.
func WithDiscoverLogger(logger *slog.Logger) DiscoverStepOption {
	return func(s *DiscoverStep) {
		s.logger = logger
	}
}

// NewDiscoverStep creates a discovery step. spider must register pages in
// reg.
func NewDiscoverStep(spider *crawler.Spider, reg *registry.Registry, seeds []string, opts ...DiscoverStepOption) *DiscoverStep {
	s := &DiscoverStep{
		spider:   spider,
		registry: reg,
		seeds:    seeds,
		logger:   log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *DiscoverStep) Name() string {
	return "discover"
}

// Do executes the discovery pass.
func (s *DiscoverStep) Do(ctx context.Context, run *model.Run) error {
	result, err := s.spider.Discover(ctx, s.seeds)

	run.SetPages(s.registry.Pages())
	if result != nil {
		run.Summary.DiscoveryFailures = len(result.Failures)
		s.logger.Info("discovery completed",
			"pages", result.Registered,
			"failures", len(result.Failures),
			"skipped", result.Skipped,
			"truncated", result.Truncated,
		)
	}
	return err
}

// ConvertStep runs the conversion pass: every registered page is fetched
// again, converted and written, in URL order.
//
// Design decision: A page that cannot be fetched or yields no content
// still gets a file, a stub pointing at the original URL. Other pages
// already link to its target path, and a missing file would leave those
// links dangling.
type ConvertStep struct {
	fetcher   PageFetcher
	registry  *registry.Registry
	converter *convert.Converter
	assets    *asset.Store
	writer    *capsule.Writer
	logger    *slog.Logger
}

// ConvertStepOption configures a ConvertStep.
type ConvertStepOption func(*ConvertStep)

// WithConvertLogger sets a custom logger for the convert step.
func WithConvertLogger(logger *slog.Logger) ConvertStepOption {
	return func(s *ConvertStep) {
		s.logger = logger
	}
}

// NewConvertStep creates a conversion step.
func NewConvertStep(
	fetcher PageFetcher,
	reg *registry.Registry,
	converter *convert.Converter,
	assets *asset.Store,
	writer *capsule.Writer,
	opts ...ConvertStepOption,
) *ConvertStep {
	s := &ConvertStep{
		fetcher:   fetcher,
		registry:  reg,
		converter: converter,
		assets:    assets,
		writer:    writer,
		logger:    log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ConvertStep) Name() string {
	return "convert"
}

// Do executes the conversion pass. It stops between pages when ctx is
// cancelled; pages already written stay on disk.
func (s *ConvertStep) Do(ctx context.Context, run *model.Run) error {
	defer s.collect(run)

	pages := s.registry.Pages()
	for i, page := range pages {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.convertPage(ctx, run, page); err != nil {
			return err
		}
		s.logger.Debug("page done",
			"url", page.URL,
			"target", page.TargetPath,
			"progress", fmt.Sprintf("%d/%d", i+1, len(pages)),
		)
	}

	stats := s.assets.Stats()
	s.logger.Info("conversion completed",
		"pages", len(pages),
		"anomalies", run.Summary.ParseAnomalies,
		"assets_downloaded", stats.Downloaded,
		"assets_cached", stats.Cached,
		"assets_fallback", stats.Fallback,
	)
	return nil
}

// collect copies the final page and asset records into the run.
func (s *ConvertStep) collect(run *model.Run) {
	run.SetPages(s.registry.Pages())
	run.Assets = s.assets.Assets()
}

// convertPage converts and writes one page. Only cancellation is
// returned; every other problem is recorded on the page.
func (s *ConvertStep) convertPage(ctx context.Context, run *model.Run, page *model.Page) error {
	text, reason, err := s.render(ctx, run, page)
	if err != nil {
		return err
	}

	if err := s.writer.Write(page.TargetPath, text); err != nil {
		s.logger.Error("failed to write page", "url", page.URL, "target", page.TargetPath, "error", err)
		run.Summary.PagesFailed++
		page.Error = err.Error()
		return nil
	}

	if reason != "" {
		s.registry.MarkDegraded(page.URL, reason)
	}
	s.registry.MarkConverted(page.URL)
	return nil
}

// render produces the Gemtext for page. A non-empty reason means the
// text is a stub.
func (s *ConvertStep) render(ctx context.Context, run *model.Run, page *model.Page) (gemini.Text, string, error) {
	resp, err := s.fetcher.Fetch(ctx, page.Source())
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		s.logger.Warn("page fetch failed, writing stub", "url", page.URL, "error", err)
		return s.stub(page), err.Error(), nil
	}
	if !resp.IsHTML() {
		s.logger.Warn("page is no longer HTML, writing stub", "url", page.URL, "content_type", resp.ContentType)
		return s.stub(page), "unexpected content type " + resp.ContentType, nil
	}

	source := page.Source()
	if resp.URL != "" {
		source = resp.URL
	}
	result := s.converter.Convert(ctx, convert.Page{
		URL:        source,
		TargetPath: page.TargetPath,
		Title:      page.Title,
	}, bytes.NewReader(resp.Body))

	run.Summary.ParseAnomalies += len(result.Anomalies)
	for _, anomaly := range result.Anomalies {
		s.logger.Debug("parse anomaly", "url", page.URL, "error", anomaly)
	}

	if result.Degraded {
		s.logger.Warn("no content extracted, writing stub", "url", page.URL)
		return result.Text, "no content extracted", nil
	}
	return result.Text, "", nil
}

func (s *ConvertStep) stub(page *model.Page) gemini.Text {
	return convert.Stub(page.Source(), s.registry.Title(page.URL), convert.UnavailableNotice)
}

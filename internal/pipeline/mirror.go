package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/nao1215/gemirror/internal/asset"
	"github.com/nao1215/gemirror/internal/capsule"
	"github.com/nao1215/gemirror/internal/config"
	"github.com/nao1215/gemirror/internal/convert"
	"github.com/nao1215/gemirror/internal/crawler"
	"github.com/nao1215/gemirror/internal/fetch"
	"github.com/nao1215/gemirror/internal/model"
	"github.com/nao1215/gemirror/internal/registry"
)

// Mirror is a fully assembled mirror run.
type Mirror struct {
	// Pipeline runs the discovery and conversion steps.
	Pipeline *Pipeline

	// Run receives the results.
	Run *model.Run

	// Fetcher is shared by both passes and the asset store.
	Fetcher *fetch.Fetcher

	// Registry is the URL to target path mapping built by discovery.
	Registry *registry.Registry

	// Assets is the image store used during conversion.
	Assets *asset.Store
}

// Build assembles a mirror run from a validated configuration.
// The registry and the asset store are created here, per run, and handed
// to the steps explicitly.
func Build(cfg *config.Config, logger *slog.Logger) (*Mirror, error) {
	base, err := cfg.Site.Base()
	if err != nil {
		return nil, err
	}
	seeds, err := cfg.Site.SeedURLs()
	if err != nil {
		return nil, err
	}

	reg, err := registry.New(base.String())
	if err != nil {
		return nil, err
	}

	fetcher, err := fetch.New(
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithHeaders(cfg.Site.Headers),
		fetch.WithCookie(cfg.Site.Cookie),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithDelay(cfg.CrawlDelay),
		fetch.WithProxy(cfg.ProxyURL),
		fetch.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetcher: %w", err)
	}

	spider := crawler.NewSpider(fetcher, reg,
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithIgnorePatterns(cfg.Site.IgnorePatterns),
		crawler.WithFollowPatterns(cfg.Site.FollowPatterns),
		crawler.WithLogger(logger),
	)

	store := asset.New(cfg.AssetRoot(), cfg.AssetDir, fetcher.WithLimit(cfg.MaxAssetSize),
		asset.WithMaxWidth(cfg.Site.MaxImageWidth),
		asset.WithLogger(logger),
	)

	converter, err := convert.New(cfg.Site.ContentSelectors, reg, store, convert.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	writer := capsule.New(cfg.OutputDir, capsule.WithLogger(logger))

	p := New(WithLogger(logger))
	p.AddSteps(
		NewDiscoverStep(spider, reg, seeds, WithDiscoverLogger(logger)),
		NewConvertStep(fetcher, reg, converter, store, writer, WithConvertLogger(logger)),
	)

	return &Mirror{
		Pipeline: p,
		Run:      model.NewRun(reg.Base(), cfg.OutputDir),
		Fetcher:  fetcher,
		Registry: reg,
		Assets:   store,
	}, nil
}

// Package crawler discovers the pages of the mirrored site.
//
// # Architecture
//
// The Spider runs the discovery pass as an explicit frontier algorithm:
// a queue seeded with the site's known sections, a visited set keyed by
// canonical URL, and a loop that runs until the queue is empty. Every
// successfully fetched HTML page is registered in the page registry, and
// every in-site link it contains that passes the ignore/follow patterns
// is queued. Termination is explicit: each canonical URL is queued at
// most once, and the max pages bound stops runaway sites.
//
// Discovery writes no output. Its only product is the registry, which the
// conversion pass uses to rewrite links.
//
// # Components
//
//   - Spider: the discovery frontier
//   - Parser: extracts the title, the first heading and the links of a page
//
// # Usage
//
//	spider := crawler.NewSpider(fetcher, reg, crawler.WithMaxPages(500))
//	result, err := spider.Discover(ctx, seeds)
package crawler

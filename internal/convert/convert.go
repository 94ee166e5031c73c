package convert

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"git.sr.ht/~adnano/go-gemini"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/nao1215/gemirror/internal/asset"
	"github.com/nao1215/gemirror/internal/log"
)

// Notices written into stub pages.
const (
	// NoContentNotice replaces a page whose content region yielded nothing.
	NoContentNotice = "Could not extract main content. Please visit the website directly."

	// UnavailableNotice replaces a page that could not be fetched.
	UnavailableNotice = "This page could not be retrieved. Please visit the website directly."
)

// Resolver looks up registered pages.
type Resolver interface {
	// Resolve returns the target path of a registered page.
	Resolve(rawURL string) (string, bool)

	// Title returns the display title of a registered page.
	Title(rawURL string) string
}

// Localizer makes images available locally.
type Localizer interface {
	Localize(ctx context.Context, imageURL string) asset.Result
	Describe(res asset.Result) string
}

// Page identifies the page being converted.
type Page struct {
	// URL is the URL the HTML was fetched from. Relative links are
	// resolved against it.
	URL string

	// TargetPath is the page's slash-separated output path. Local links
	// are made relative to its directory.
	TargetPath string

	// Title is used for the top heading when the content has none.
	Title string
}

// Result is the outcome of converting one page.
type Result struct {
	// Text is the Gemtext document.
	Text gemini.Text

	// Degraded is set when no content could be extracted and Text is a
	// stub pointing at the original page.
	Degraded bool

	// Anomalies lists structural problems met during conversion.
	// Each wraps ErrParseAnomaly.
	Anomalies []error
}

// Converter converts HTML pages to Gemtext.
//
// Design decision: The content region is chosen by configured CSS
// selectors instead of a readability heuristic. The rule depends on the
// site's theme, and pinning it makes the output predictable; when the
// theme changes the selectors are the one thing to update.
type Converter struct {
	selectors []cascadia.Selector
	raw       []string
	resolver  Resolver
	localizer Localizer
	logger    *slog.Logger
}

// Option configures a Converter.
type Option func(*Converter)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Converter) {
		c.logger = logger
	}
}

// New creates a Converter. selectors are tried in order to find the
// content region; the first match wins.
func New(selectors []string, resolver Resolver, localizer Localizer, opts ...Option) (*Converter, error) {
	c := &Converter{
		selectors: make([]cascadia.Selector, 0, len(selectors)),
		raw:       selectors,
		resolver:  resolver,
		localizer: localizer,
		logger:    log.Discard(),
	}
	for _, s := range selectors {
		sel, err := cascadia.Compile(s)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrInvalidSelector, s, err)
		}
		c.selectors = append(c.selectors, sel)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Convert converts the HTML document read from body. It never fails:
// problems are reported in Result.Anomalies and an empty result is
// replaced by a stub linking to the original page.
func (c *Converter) Convert(ctx context.Context, page Page, body io.Reader) *Result {
	result := &Result{Anomalies: make([]error, 0)}

	title := page.Title
	if title == "" {
		title = c.resolver.Title(page.URL)
	}

	base, err := url.Parse(page.URL)
	if err != nil {
		result.Anomalies = append(result.Anomalies, fmt.Errorf("%w: page URL %q: %v", ErrParseAnomaly, page.URL, err))
		result.Text = Stub(page.URL, title, NoContentNotice)
		result.Degraded = true
		return result
	}

	doc, err := html.Parse(body)
	if err != nil {
		result.Anomalies = append(result.Anomalies, fmt.Errorf("%w: %v", ErrParseAnomaly, err))
		result.Text = Stub(page.URL, title, NoContentNotice)
		result.Degraded = true
		return result
	}

	v := &conversion{
		ctx:  ctx,
		c:    c,
		page: page,
		base: base,
		out:  make(gemini.Text, 0, 32),
	}

	root := c.contentRegion(doc)
	if root == nil {
		v.anomaly(fmt.Errorf("%w: no element matched %s, using <body>", ErrParseAnomaly, strings.Join(c.raw, ", ")))
		root = findElement(doc, "body")
	}
	if root != nil {
		v.walkChildren(root)
	}

	result.Anomalies = append(result.Anomalies, v.anomalies...)
	if len(v.out) == 0 {
		result.Text = Stub(page.URL, title, NoContentNotice)
		result.Degraded = true
		return result
	}

	result.Text = withTitle(v.out, title)
	return result
}

// contentRegion returns the first node matched by the configured
// selectors, in selector order.
func (c *Converter) contentRegion(doc *html.Node) *html.Node {
	for _, sel := range c.selectors {
		if n := sel.MatchFirst(doc); n != nil {
			return n
		}
	}
	return nil
}

// Stub returns a document that only points at the original page.
func Stub(pageURL, title, notice string) gemini.Text {
	text := make(gemini.Text, 0, 4)
	name := title
	if title != "" {
		text = append(text, gemini.LineHeading1(title), gemini.LineText(""))
	} else {
		name = pageURL
	}
	return append(text, gemini.LineText(notice), gemini.LineLink{URL: pageURL, Name: name})
}

// withTitle prepends a level-1 heading when the document does not start
// with one.
func withTitle(text gemini.Text, title string) gemini.Text {
	if title == "" {
		return text
	}
	if _, ok := text[0].(gemini.LineHeading1); ok {
		return text
	}
	titled := make(gemini.Text, 0, len(text)+2)
	titled = append(titled, gemini.LineHeading1(title), gemini.LineText(""))
	return append(titled, text...)
}

func findElement(n *html.Node, name string) *html.Node {
	if n.Type == html.ElementNode && n.Data == name {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, name); found != nil {
			return found
		}
	}
	return nil
}

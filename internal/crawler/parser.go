package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Parser extracts what discovery needs from an HTML page.
//
// Design decision: We use golang.org/x/net/html for parsing rather than
// regex because it correctly handles the malformed markup real sites
// serve and gives us a proper tree to walk.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving
	// relative links. A <base href> in the document replaces it.
	baseURL *url.URL
}

// ParseResult contains the information extracted from an HTML page.
type ParseResult struct {
	// Title is the text of the <title> element.
	Title string

	// Heading is the text of the first <h1>, or of the first heading of
	// any level when the page has no <h1>.
	Heading string

	// Links are the absolute http(s) URLs of all anchors, without
	// fragments, deduplicated in document order.
	Links []string
}

// DisplayTitle returns the heading when present, otherwise the title.
func (r *ParseResult) DisplayTitle() string {
	if r.Heading != "" {
		return r.Heading
	}
	return r.Title
}

// NewParser creates a parser for a page fetched from baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and extracts the title, heading and links.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{Links: make([]string, 0)}
	seen := make(map[string]bool)
	var firstHeading string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if result.Title == "" {
					result.Title = textOf(n)
				}
			case "base":
				if href := getAttr(n, "href"); href != "" {
					if u, err := p.baseURL.Parse(strings.TrimSpace(href)); err == nil {
						p.baseURL = u
					}
				}
			case "h1":
				if result.Heading == "" {
					result.Heading = textOf(n)
				}
			case "h2", "h3", "h4", "h5", "h6":
				if firstHeading == "" {
					firstHeading = textOf(n)
				}
			case "a", "area":
				if link := p.resolveURL(getAttr(n, "href")); link != "" && !seen[link] {
					seen[link] = true
					result.Links = append(result.Links, link)
				}
			case "script", "style", "noscript", "template":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if result.Heading == "" {
		result.Heading = firstHeading
	}
	return result, nil
}

// resolveURL resolves href against the page URL. It returns an empty
// string for links discovery cannot follow (fragments, mail, scripts,
// other schemes).
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	resolved := p.baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String()
}

// textOf returns the whitespace-normalized text content of n.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

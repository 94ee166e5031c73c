package convert

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"git.sr.ht/~adnano/go-gemini"
	"golang.org/x/net/html"

	"github.com/nao1215/gemirror/internal/registry"
)

// maxHeadingLevel is the deepest heading Gemtext supports.
const maxHeadingLevel = 3

// skipElements are dropped with their whole subtree.
var skipElements = map[string]bool{
	"script": true, "style": true, "iframe": true, "embed": true,
	"object": true, "noscript": true, "svg": true, "form": true,
	"template": true, "button": true, "input": true, "select": true,
	"textarea": true, "canvas": true, "video": true, "audio": true,
	"map": true, "head": true, "link": true, "meta": true,
}

// inlineElements are part of the surrounding text flow.
var inlineElements = map[string]bool{
	"a": true, "abbr": true, "b": true, "bdi": true, "bdo": true,
	"big": true, "br": true, "cite": true, "code": true, "data": true,
	"del": true, "dfn": true, "em": true, "font": true, "i": true,
	"img": true, "ins": true, "kbd": true, "label": true, "mark": true,
	"q": true, "s": true, "samp": true, "small": true, "span": true,
	"strike": true, "strong": true, "sub": true, "sup": true, "time": true,
	"tt": true, "u": true, "var": true, "wbr": true,
}

// conversion is the state of one Convert call.
type conversion struct {
	ctx       context.Context
	c         *Converter
	page      Page
	base      *url.URL
	out       gemini.Text
	anomalies []error
}

func (v *conversion) anomaly(err error) {
	v.anomalies = append(v.anomalies, err)
	v.c.logger.Debug("parse anomaly", "url", v.page.URL, "error", err)
}

// emit appends a block, separated from the previous one by a blank line.
func (v *conversion) emit(block []gemini.Line) {
	if len(block) == 0 {
		return
	}
	if len(v.out) > 0 {
		v.out = append(v.out, gemini.LineText(""))
	}
	v.out = append(v.out, block...)
}

// walkChildren converts the children of a container element. Runs of
// text and inline elements directly inside the container form an
// implicit paragraph.
func (v *conversion) walkChildren(n *html.Node) {
	group := make([]*html.Node, 0)
	flush := func() {
		if len(group) > 0 {
			v.paragraph(group...)
			group = group[:0]
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch {
		case c.Type == html.TextNode:
			group = append(group, c)
		case c.Type != html.ElementNode:
			continue
		case skipElements[c.Data]:
			continue
		case inlineElements[c.Data]:
			group = append(group, c)
		default:
			flush()
			v.block(c)
		}
	}
	flush()
}

// block converts one block-level element.
func (v *conversion) block(n *html.Node) {
	switch n.Data {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		v.heading(n)
	case "p":
		v.paragraph(children(n)...)
	case "ul", "ol":
		block := make([]gemini.Line, 0)
		v.list(n, &block)
		v.emit(block)
	case "blockquote":
		v.quote(n)
	case "pre":
		v.pre(n)
	case "table":
		v.table(n)
	case "hr":
	default:
		v.walkChildren(n)
	}
}

func (v *conversion) heading(n *html.Node) {
	level := min(int(n.Data[1]-'0'), maxHeadingLevel)

	in := newInline()
	v.collectAll(in, children(n))
	text := strings.Join(in.textLines(), " ")

	block := make([]gemini.Line, 0, 1+len(in.links))
	if text != "" {
		switch level {
		case 1:
			block = append(block, gemini.LineHeading1(text))
		case 2:
			block = append(block, gemini.LineHeading2(text))
		default:
			block = append(block, gemini.LineHeading3(text))
		}
	}
	v.emit(append(block, in.links...))
}

// paragraph emits the text of nodes, one line per <br>-separated run,
// followed by the link lines found in it.
func (v *conversion) paragraph(nodes ...*html.Node) {
	in := newInline()
	v.collectAll(in, nodes)

	lines := in.textLines()
	block := make([]gemini.Line, 0, len(lines)+len(in.links))
	for _, line := range lines {
		block = append(block, textLine(line))
	}
	v.emit(append(block, in.links...))
}

// list flattens a list into marker lines. Items of nested lists follow
// their parent item as lines of their own.
func (v *conversion) list(n *html.Node, block *[]gemini.Line) {
	for li := n.FirstChild; li != nil; li = li.NextSibling {
		if li.Type != html.ElementNode || skipElements[li.Data] {
			continue
		}
		if li.Data == "ul" || li.Data == "ol" {
			v.list(li, block)
			continue
		}

		in := newInline()
		in.nested = make([]*html.Node, 0)
		v.collectAll(in, children(li))
		text := strings.Join(in.textLines(), " ")

		switch {
		case text == "":
			*block = append(*block, in.links...)
		case len(in.links) == 1 && in.links[0].(gemini.LineLink).Name == text:
			// An item that is only a link becomes the link line.
			*block = append(*block, in.links[0])
		default:
			*block = append(*block, gemini.LineListItem(text))
			*block = append(*block, in.links...)
		}

		for _, nested := range in.nested {
			v.list(nested, block)
		}
	}
}

func (v *conversion) quote(n *html.Node) {
	in := newInline()
	v.collectAll(in, children(n))

	lines := in.textLines()
	block := make([]gemini.Line, 0, len(lines)+len(in.links))
	for _, line := range lines {
		block = append(block, gemini.LineQuote(line))
	}
	v.emit(append(block, in.links...))
}

// pre keeps the text verbatim between preformatting toggles.
func (v *conversion) pre(n *html.Node) {
	var b strings.Builder
	rawText(n, &b)

	lines := strings.Split(strings.ReplaceAll(b.String(), "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return
	}

	block := make([]gemini.Line, 0, len(lines)+2)
	block = append(block, gemini.LinePreformattingToggle(""))
	for _, line := range lines {
		line = strings.TrimRight(line, " \t")
		if strings.HasPrefix(line, "```") {
			// A fence inside the block would end it early.
			line = " " + line
		}
		block = append(block, gemini.LinePreformattedText(line))
	}
	v.emit(append(block, gemini.LinePreformattingToggle("")))
}

// table emits one line per row with cells joined by " | ", followed by
// the links found in the table.
func (v *conversion) table(n *html.Node) {
	links := newInline()
	block := make([]gemini.Line, 0)

	var rows func(*html.Node)
	rows = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "tr":
				cells := make([]string, 0)
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.Type != html.ElementNode || (cell.Data != "td" && cell.Data != "th") {
						continue
					}
					in := newInline()
					in.seen = links.seen
					v.collectAll(in, children(cell))
					links.links = append(links.links, in.links...)
					if text := strings.Join(in.textLines(), " "); text != "" {
						cells = append(cells, text)
					}
				}
				if len(cells) > 0 {
					block = append(block, textLine(strings.Join(cells, " | ")))
				}
			case "thead", "tbody", "tfoot":
				rows(c)
			case "caption":
				in := newInline()
				v.collectAll(in, children(c))
				if text := strings.Join(in.textLines(), " "); text != "" {
					block = append(block, textLine(text))
				}
			}
		}
	}
	rows(n)

	v.emit(append(block, links.links...))
}

// inline accumulates the text lines and deferred link lines of a run of
// inline content.
type inline struct {
	lines    []string
	cur      strings.Builder
	links    []gemini.Line
	seen     map[string]bool
	inAnchor bool

	// nested collects lists met inside a list item instead of walking
	// them. Nil outside list items.
	nested []*html.Node
}

func newInline() *inline {
	return &inline{seen: make(map[string]bool)}
}

// breakLine ends the current text line.
func (in *inline) breakLine() {
	if line := normalize(in.cur.String()); line != "" {
		in.lines = append(in.lines, line)
	}
	in.cur.Reset()
}

// textLines returns the non-empty, whitespace-normalized text lines.
func (in *inline) textLines() []string {
	in.breakLine()
	return in.lines
}

// addLink defers a link line, keeping the first occurrence of a URL.
func (in *inline) addLink(link gemini.LineLink) {
	if in.seen[link.URL] {
		return
	}
	in.seen[link.URL] = true
	in.links = append(in.links, link)
}

func (v *conversion) collectAll(in *inline, nodes []*html.Node) {
	for _, n := range nodes {
		v.collect(in, n)
	}
}

func (v *conversion) collect(in *inline, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		in.cur.WriteString(n.Data)
		return
	case html.ElementNode:
	default:
		return
	}

	switch {
	case skipElements[n.Data]:
		return
	case n.Data == "br":
		in.breakLine()
		return
	case n.Data == "img":
		if !in.inAnchor {
			v.image(in, n)
		}
		return
	case n.Data == "a" && !in.inAnchor:
		v.anchor(in, n)
		return
	case (n.Data == "ul" || n.Data == "ol") && in.nested != nil:
		in.nested = append(in.nested, n)
		return
	case !inlineElements[n.Data]:
		// A block inside inline content starts a new line.
		in.breakLine()
		v.collectAll(in, children(n))
		in.breakLine()
		return
	}
	v.collectAll(in, children(n))
}

// anchor adds the anchor's text to the flow and defers its link line.
func (v *conversion) anchor(in *inline, n *html.Node) {
	label := textOf(n)
	if label == "" {
		if img := findElement(n, "img"); img != nil {
			label = imageLabel(img)
		}
	}

	in.inAnchor = true
	v.collectAll(in, children(n))
	in.inAnchor = false

	target, abs, ok := v.link(getAttr(n, "href"))
	if !ok {
		return
	}
	if label == "" {
		if title := v.c.resolver.Title(abs); title != "" {
			label = title
		} else {
			label = abs
		}
	}
	in.addLink(gemini.LineLink{URL: target, Name: label})
}

// link resolves href and returns the link target to emit and the
// absolute URL. Fragment-only and javascript: links report false.
func (v *conversion) link(href string) (target, abs string, ok bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", "", false
	}

	u, err := v.base.Parse(href)
	if err != nil {
		v.anomaly(fmt.Errorf("%w: link %q: %v", ErrParseAnomaly, href, err))
		return "", "", false
	}

	switch u.Scheme {
	case "http", "https":
	case "javascript", "data":
		return "", "", false
	default:
		// mailto:, tel:, gemini: and friends pass through.
		return u.String(), u.String(), true
	}

	abs = u.String()
	if local, found := v.c.resolver.Resolve(abs); found {
		return localRef(registry.RelativeLink(v.page.TargetPath, local)), abs, true
	}
	return abs, abs, true
}

// image localizes an image and defers its link line.
func (v *conversion) image(in *inline, n *html.Node) {
	src := imageSource(n)
	if src == "" {
		return
	}
	u, err := v.base.Parse(src)
	if err != nil {
		v.anomaly(fmt.Errorf("%w: image %q: %v", ErrParseAnomaly, src, err))
		return
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return
	}

	res := v.c.localizer.Localize(v.ctx, u.String())
	ref := res.Ref
	if res.Local() {
		ref = localRef(registry.RelativeLink(v.page.TargetPath, res.Ref))
	}

	label := normalize(getAttr(n, "alt"))
	if label == "" {
		label = v.c.localizer.Describe(res)
	}
	if label == "" {
		label = imageLabel(n)
	}
	if label == "" {
		label = ref
	}
	in.addLink(gemini.LineLink{URL: ref, Name: label})
}

// imageSource returns the image URL, preferring lazy-loading attributes
// when src holds an inline placeholder.
func imageSource(n *html.Node) string {
	for _, key := range []string{"src", "data-src", "data-lazy-src"} {
		src := strings.TrimSpace(getAttr(n, key))
		if src != "" && !strings.HasPrefix(strings.ToLower(src), "data:") {
			return src
		}
	}
	return ""
}

// imageLabel returns the alt text of an image, or its file name.
func imageLabel(img *html.Node) string {
	if alt := normalize(getAttr(img, "alt")); alt != "" {
		return alt
	}
	src := imageSource(img)
	if src == "" {
		return ""
	}
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		return ""
	}
	return name
}

// localRef escapes a relative path for use as a link target.
func localRef(rel string) string {
	return (&url.URL{Path: rel}).String()
}

func children(n *html.Node) []*html.Node {
	nodes := make([]*html.Node, 0)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		nodes = append(nodes, c)
	}
	return nodes
}

// textOf returns the normalized text of n, ignoring skipped elements.
func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
		case html.ElementNode:
			if skipElements[n.Data] {
				return
			}
			if n.Data == "br" {
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return normalize(b.String())
}

// rawText writes the text of n without any whitespace changes.
func rawText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	if n.Type == html.ElementNode && n.Data == "br" {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		rawText(c, b)
	}
}

// linePrefixes are the line starts a Gemtext reader gives a meaning
// other than plain text.
var linePrefixes = []string{"=>", "```", "#", "*", ">"}

// textLine returns s as a text line. Text a reader would parse as another
// line type gets a leading space.
// List items and quotes carry their own marker and need no escaping.
func textLine(s string) gemini.LineText {
	for _, prefix := range linePrefixes {
		if strings.HasPrefix(s, prefix) {
			return gemini.LineText(" " + s)
		}
	}
	return gemini.LineText(s)
}

// normalize collapses all whitespace runs to single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

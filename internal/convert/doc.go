// Package convert turns the main content of an HTML page into Gemtext.
//
// The Converter selects the page's content region with the site's CSS
// selectors, walks its block elements in document order and emits a
// gemini.Text. Gemtext has no inline links, so links and images found in
// a paragraph are emitted as link lines directly after that paragraph.
// Internal links are rewritten to relative .gmi paths through the page
// registry and images are localized through the asset store.
//
// Conversion never fails. Unsupported elements are dropped and structural
// surprises are reported as parse anomalies next to the output.
package convert

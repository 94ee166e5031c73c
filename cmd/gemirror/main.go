// Package main provides the entry point for the gemirror CLI.
//
// gemirror mirrors a small website into a Gemini capsule. It discovers
// every page of the site, converts the main content of each page into
// Gemtext and downloads the images the pages reference.
//
// Usage:
//
//	gemirror mirror
//	gemirror mirror -c site.yaml -o /srv/gemini/content
//
// See --help for all available options.
package main

// main is the entry point for gemirror.
func main() {
	Execute()
}

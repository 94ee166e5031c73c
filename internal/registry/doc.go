// Package registry maps the mirrored site's URLs to Gemtext target paths.
//
// The Registry is built during discovery and consulted during conversion.
// Conversion rewrites a link to a local path only when Resolve says the
// page is registered, so a rewritten link always points at a file the
// run writes.
package registry

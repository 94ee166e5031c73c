// Package fetch retrieves pages and images from the mirrored site.
//
// The Fetcher is the only component that talks to the network. Each call
// is a single GET with no retries: a failed fetch is returned as a
// *FetchError and the caller decides on a fallback (skip the page, keep
// the remote image URL). Requests are spaced by a politeness limiter and
// may be routed through a SOCKS5 or HTTP proxy.
package fetch

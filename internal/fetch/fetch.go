package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/time/rate"

	"github.com/nao1215/gemirror/internal/log"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultMaxBodySize = 10 * 1024 * 1024 // 10MB
	defaultUserAgent   = "gemirror/1.0"
	acceptHeader       = "text/html,application/xhtml+xml,image/*;q=0.9,*/*;q=0.8"
)

// Response is a successful GET.
type Response struct {
	// URL is the final URL after redirects.
	URL string

	// StatusCode is the HTTP status code (always 2xx).
	StatusCode int

	// ContentType is the Content-Type header value.
	ContentType string

	// Body is the full response body.
	Body []byte
}

// IsHTML reports whether the response carries an HTML document.
func (r *Response) IsHTML() bool {
	ct := strings.ToLower(r.ContentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

// Fetcher performs rate-limited HTTP GET requests.
//
// Design decision: The politeness delay lives in the Fetcher, not in the
// crawler loop. Page fetches in both passes and image downloads all share
// one limiter, so the site sees a steady request rate no matter which
// component asks.
type Fetcher struct {
	client      *http.Client
	limiter     *rate.Limiter
	userAgent   string
	headers     map[string]string
	cookie      string
	maxBodySize int64
	timeout     time.Duration
	proxyURL    string
	logger      *slog.Logger

	// requests counts network requests across all copies of the Fetcher.
	requests *atomic.Int64
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithHeaders sets extra headers sent with every request.
func WithHeaders(headers map[string]string) Option {
	return func(f *Fetcher) {
		f.headers = headers
	}
}

// WithCookie sets the Cookie header sent with every request.
func WithCookie(cookie string) Option {
	return func(f *Fetcher) {
		f.cookie = cookie
	}
}

// WithMaxBodySize sets the maximum response size in bytes.
// Zero disables the limit.
func WithMaxBodySize(size int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = size
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithDelay sets the minimum interval between two requests.
// Zero disables the delay.
func WithDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.limiter = newLimiter(d)
	}
}

// WithProxy routes requests through a proxy URL
// ("socks5://host:port", "socks5h://host:port" or "http://host:port").
func WithProxy(proxyURL string) Option {
	return func(f *Fetcher) {
		f.proxyURL = proxyURL
	}
}

// WithHTTPClient replaces the HTTP client. WithTimeout and WithProxy
// are ignored when a client is supplied.
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// New creates a Fetcher. It fails only when the proxy URL is unusable.
func New(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		limiter:     newLimiter(0),
		userAgent:   defaultUserAgent,
		maxBodySize: defaultMaxBodySize,
		timeout:     defaultTimeout,
		logger:      log.Discard(),
		requests:    &atomic.Int64{},
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		transport, err := newTransport(f.proxyURL)
		if err != nil {
			return nil, err
		}
		f.client = &http.Client{
			Timeout:   f.timeout,
			Transport: transport,
		}
	}
	return f, nil
}

// WithLimit returns a copy of f with a different body size limit.
// The copy shares the client, the limiter and the request counter.
func (f *Fetcher) WithLimit(size int64) *Fetcher {
	c := *f
	c.maxBodySize = size
	return &c
}

// Requests returns the number of network requests issued so far.
func (f *Fetcher) Requests() int {
	return int(f.requests.Load())
}

// Fetch performs a single GET of rawURL.
// Non-2xx statuses and transport failures are returned as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", acceptHeader)
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}

	f.requests.Add(1)
	f.logger.Debug("GET", "url", rawURL)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: ErrStatus}
	}

	body, err := f.readBody(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Response{
		URL:         finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (f *Fetcher) readBody(r io.Reader) ([]byte, error) {
	if f.maxBodySize <= 0 {
		return io.ReadAll(r)
	}
	body, err := io.ReadAll(io.LimitReader(r, f.maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, ErrBodyTooLarge
	}
	return body, nil
}

// newLimiter allows one request per interval d. A zero interval
// disables limiting.
func newLimiter(d time.Duration) *rate.Limiter {
	if d <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(d), 1)
}

// newTransport builds an HTTP transport, optionally routed through a proxy.
//
// SOCKS5 proxies are dialed with golang.org/x/net/proxy; HTTP proxies use
// the transport's own CONNECT support.
func newTransport(proxyURL string) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL == "" {
		return transport, nil
	}

	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(u)
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(u, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create proxy dialer: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported proxy scheme %q", u.Scheme)
	}
	return transport, nil
}

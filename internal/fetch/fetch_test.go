package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("returns body and content type", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<h1>Kontakt</h1>"))
		}))
		defer server.Close()

		f, err := New()
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		resp, err := f.Fetch(context.Background(), server.URL+"/kontakt/")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if string(resp.Body) != "<h1>Kontakt</h1>" {
			t.Errorf("unexpected body %q", resp.Body)
		}
		if !resp.IsHTML() {
			t.Errorf("expected HTML content type, got %q", resp.ContentType)
		}
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}
		if f.Requests() != 1 {
			t.Errorf("expected 1 request, got %d", f.Requests())
		}
	})

	t.Run("non-2xx returns FetchError wrapping ErrStatus", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		f, err := New()
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		_, err = f.Fetch(context.Background(), server.URL+"/missing.png")
		if !errors.Is(err, ErrStatus) {
			t.Fatalf("expected ErrStatus, got %v", err)
		}
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("expected *FetchError, got %T", err)
		}
		if fe.StatusCode != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", fe.StatusCode)
		}
		if !strings.Contains(fe.Error(), "404") {
			t.Errorf("expected status in message, got %q", fe.Error())
		}
	})

	t.Run("transport failure returns FetchError", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		addr := server.URL
		server.Close()

		f, err := New(WithTimeout(2 * time.Second))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		_, err = f.Fetch(context.Background(), addr)
		var fe *FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("expected *FetchError, got %v", err)
		}
		if fe.StatusCode != 0 {
			t.Errorf("expected no status, got %d", fe.StatusCode)
		}
	})

	t.Run("sends user agent, headers and cookie", func(t *testing.T) {
		t.Parallel()

		var got http.Header
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Clone()
		}))
		defer server.Close()

		f, err := New(
			WithUserAgent("TestBot/1.0"),
			WithHeaders(map[string]string{"Accept-Language": "de"}),
			WithCookie("sid=1"),
		)
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if _, err := f.Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if got.Get("User-Agent") != "TestBot/1.0" {
			t.Errorf("User-Agent = %q", got.Get("User-Agent"))
		}
		if got.Get("Accept-Language") != "de" {
			t.Errorf("Accept-Language = %q", got.Get("Accept-Language"))
		}
		if got.Get("Cookie") != "sid=1" {
			t.Errorf("Cookie = %q", got.Get("Cookie"))
		}
	})

	t.Run("body over the limit returns ErrBodyTooLarge", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("x", 100)))
		}))
		defer server.Close()

		f, err := New(WithMaxBodySize(10))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		if _, err := f.Fetch(context.Background(), server.URL); !errors.Is(err, ErrBodyTooLarge) {
			t.Errorf("expected ErrBodyTooLarge, got %v", err)
		}

		// A copy with a larger limit shares the request counter.
		big := f.WithLimit(1000)
		if _, err := big.Fetch(context.Background(), server.URL); err != nil {
			t.Errorf("expected success with larger limit, got %v", err)
		}
		if f.Requests() != 2 || big.Requests() != 2 {
			t.Errorf("expected shared counter of 2, got %d and %d", f.Requests(), big.Requests())
		}
	})

	t.Run("reports final URL after redirect", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/new/", http.StatusMovedPermanently)
		})
		mux.HandleFunc("/new/", func(w http.ResponseWriter, r *http.Request) {})
		server := httptest.NewServer(mux)
		defer server.Close()

		f, err := New()
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		resp, err := f.Fetch(context.Background(), server.URL+"/old")
		if err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
		if resp.URL != server.URL+"/new/" {
			t.Errorf("expected final URL, got %q", resp.URL)
		}
	})

	t.Run("cancelled context returns FetchError", func(t *testing.T) {
		t.Parallel()

		f, err := New(WithDelay(time.Hour))
		if err != nil {
			t.Fatalf("New() error = %v", err)
		}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := f.Fetch(ctx, "http://127.0.0.1:1/"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if f.Requests() != 0 {
			t.Errorf("expected no request, got %d", f.Requests())
		}
	})
}

func TestFetcher_Delay(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	f, err := New(WithDelay(50 * time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	start := time.Now()
	for range 3 {
		if _, err := f.Fetch(context.Background(), server.URL); err != nil {
			t.Fatalf("Fetch() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 90*time.Millisecond {
		t.Errorf("expected requests to be spaced, took %v", elapsed)
	}
}

func TestNew_Proxy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		proxy   string
		wantErr bool
	}{
		{name: "no proxy", proxy: "", wantErr: false},
		{name: "socks5 proxy", proxy: "socks5://127.0.0.1:9050", wantErr: false},
		{name: "socks5h proxy", proxy: "socks5h://127.0.0.1:9050", wantErr: false},
		{name: "http proxy", proxy: "http://127.0.0.1:3128", wantErr: false},
		{name: "unsupported scheme", proxy: "ftp://127.0.0.1:21", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(WithProxy(tt.proxy))
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResponse_IsHTML(t *testing.T) {
	t.Parallel()

	tests := []struct {
		contentType string
		want        bool
	}{
		{"text/html", true},
		{"text/html; charset=UTF-8", true},
		{"application/xhtml+xml", true},
		{"image/png", false},
		{"", false},
	}
	for _, tt := range tests {
		r := &Response{ContentType: tt.contentType}
		if got := r.IsHTML(); got != tt.want {
			t.Errorf("IsHTML(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}

// Web fetch: pages to markdown, PDFs to text
package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/sync/errgroup"
)

// ErrTooLarge is returned when a document exceeds the configured size limit.
var ErrTooLarge = errors.New("document too large")

const (
	defaultMaxPDFBytes  = 10 << 20
	defaultMaxHTMLBytes = 5 << 20
	defaultConcurrency  = 4
)

// FetcherConfig tunes a Fetcher; zero values pick defaults.
type FetcherConfig struct {
	MaxPDFBytes int64
	MaxPDFPages int
	Concurrency int
	Logger      *zap.Logger
}

// Fetcher downloads pages and returns readable text.
type Fetcher struct {
	http        *HTTPClient
	maxPDFBytes int64
	maxPDFPages int
	concurrency int
	logger      *zap.Logger
}

// NewFetcher returns a Fetcher sending requests through hc.
func NewFetcher(hc *HTTPClient, cfg FetcherConfig) *Fetcher {
	f := &Fetcher{
		http:        hc,
		maxPDFBytes: cfg.MaxPDFBytes,
		maxPDFPages: cfg.MaxPDFPages,
		concurrency: cfg.Concurrency,
		logger:      cfg.Logger,
	}
	if f.maxPDFBytes <= 0 {
		f.maxPDFBytes = defaultMaxPDFBytes
	}
	if f.maxPDFPages <= 0 {
		f.maxPDFPages = DefaultMaxPDFPages
	}
	if f.concurrency <= 0 {
		f.concurrency = defaultConcurrency
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f
}

// Fetch returns the markdown of an HTML page or the text of a PDF.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("invalid URL: %q", rawURL)
	}
	if strings.HasSuffix(strings.ToLower(u.Path), ".pdf") {
		return f.fetchPDF(ctx, rawURL)
	}

	resp, err := f.http.get(ctx, http.MethodGet, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	contentType := resp.Header.Get("Content-Type")
	if mt, _, _ := mime.ParseMediaType(contentType); mt == "application/pdf" {
		data, err := readLimited(resp.Body, f.maxPDFBytes)
		if err != nil {
			return "", fmt.Errorf("%s: %w", rawURL, err)
		}
		return PDFToText(data, f.maxPDFPages)
	}

	body, err := charset.NewReader(resp.Body, contentType)
	if err != nil {
		return "", fmt.Errorf("%s: %w", rawURL, err)
	}
	data, err := readLimited(body, defaultMaxHTMLBytes)
	if err != nil {
		return "", fmt.Errorf("%s: %w", rawURL, err)
	}
	return HTMLToMarkdown(string(data))
}

func (f *Fetcher) fetchPDF(ctx context.Context, rawURL string) (string, error) {
	head, err := f.http.get(ctx, http.MethodHead, rawURL)
	if err != nil {
		return "", err
	}
	head.Body.Close()
	if head.ContentLength > f.maxPDFBytes {
		return "", fmt.Errorf("%s: %w (%d bytes)", rawURL, ErrTooLarge, head.ContentLength)
	}

	resp, err := f.http.get(ctx, http.MethodGet, rawURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	data, err := readLimited(resp.Body, f.maxPDFBytes)
	if err != nil {
		return "", fmt.Errorf("%s: %w", rawURL, err)
	}
	f.logger.Debug("pdf downloaded", zap.String("url", rawURL), zap.Int("bytes", len(data)))
	return PDFToText(data, f.maxPDFPages)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

// FetchAll fetches urls concurrently. The result is index-aligned with urls;
// a URL that fails yields an empty string.
func (f *Fetcher) FetchAll(ctx context.Context, urls []string) []string {
	out := make([]string, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			text, err := f.Fetch(gctx, u)
			if err != nil {
				f.logger.Warn("fetch failed", zap.String("url", u), zap.Error(err))
				return nil
			}
			out[i] = text
			return nil
		})
	}
	_ = g.Wait()
	return out
}

const defaultFetchChars = 10000

type fetchArgs struct {
	URL      string `json:"url"`
	MaxChars int    `json:"maxChars" default:"10000"`
}

// Tool exposes the fetcher as web_fetch.
func (f *Fetcher) Tool() Tool {
	return MustFunc("web_fetch", `Fetch a web page or PDF and return its readable text.

Args:
    url: page URL to fetch
    maxChars: maximum characters returned, longer content is truncated`,
		func(ctx context.Context, a fetchArgs) (string, error) {
			text, err := f.Fetch(ctx, a.URL)
			if err != nil {
				return "", err
			}
			if a.MaxChars <= 0 {
				a.MaxChars = defaultFetchChars
			}
			return Truncate(text, a.MaxChars), nil
		})
}

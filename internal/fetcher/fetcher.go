package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/nao1215/chhaya/internal/model"
)

// PageStore persists the text artifact of a fetched page.
// *storage.Layout satisfies it.
type PageStore interface {
	WritePage(rawURL, text string, images []string) (string, error)
}

// Fetcher retrieves pages one at a time. It is safe for concurrent use as
// long as its client and store are.
type Fetcher struct {
	client      *http.Client
	store       PageStore
	timeout     time.Duration
	maxBodySize int64
	limits      Limits
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithTimeout bounds a single fetch, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = d
	}
}

// WithMaxBodySize limits how many body bytes are read.
func WithMaxBodySize(n int64) Option {
	return func(f *Fetcher) {
		f.maxBodySize = n
	}
}

// WithLimits sets the text and image limits applied to every page.
func WithLimits(l Limits) Option {
	return func(f *Fetcher) {
		f.limits = l
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = l
	}
}

// WithClock overrides the time source used for FetchedAt.
func WithClock(now func() time.Time) Option {
	return func(f *Fetcher) {
		f.now = now
	}
}

// New returns a Fetcher that sends requests with client and writes page
// artifacts to store. The client is expected to route through the proxy.
func New(client *http.Client, store PageStore, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:      client,
		store:       store,
		timeout:     30 * time.Second,
		maxBodySize: 5 * 1024 * 1024,
		limits:      Limits{MaxTextLength: 2000, MaxImages: 10},
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves rawURL and returns its extracted page. Transport errors,
// timeouts and responses with status 400 or above fail with ErrFetchFailed.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (model.Page, error) {
	base, err := url.Parse(rawURL)
	if err != nil {
		return model.Page{}, fmt.Errorf("%w: %s: %w", ErrFetchFailed, rawURL, err)
	}

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return model.Page{}, fmt.Errorf("%w: %s: %w", ErrFetchFailed, rawURL, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	f.logger.Info("crawling", "url", rawURL)
	resp, err := f.client.Do(req)
	if err != nil {
		return model.Page{}, fmt.Errorf("%w: %s: %w", ErrFetchFailed, rawURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= http.StatusBadRequest {
		return model.Page{}, fmt.Errorf("%w: %s: HTTP %d", ErrFetchFailed, rawURL, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.maxBodySize > 0 {
		body = io.LimitReader(resp.Body, f.maxBodySize)
	}
	content, err := Extract(body, resp.Header.Get("Content-Type"), base, f.limits)
	if err != nil {
		return model.Page{}, fmt.Errorf("%w: %s: %w", ErrFetchFailed, rawURL, err)
	}

	path, err := f.store.WritePage(rawURL, content.Text, content.Images)
	if err != nil {
		return model.Page{}, fmt.Errorf("%w: %s: %w", ErrFetchFailed, rawURL, err)
	}

	f.logger.Info("crawled", "url", rawURL, "title", content.Title, "images", len(content.Images))
	return model.Page{
		URL:         rawURL,
		Title:       content.Title,
		TextContent: content.Text,
		Images:      content.Images,
		FetchedAt:   f.now(),
		StoragePath: path,
		Status:      model.PageCrawled,
	}, nil
}

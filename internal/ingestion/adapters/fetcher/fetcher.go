// Package fetcher retrieves city regulation pages over HTTP.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"permitpulse/internal/rules"
	id "permitpulse/pkg/domain"
	dErrors "permitpulse/pkg/domain-errors"
	"permitpulse/pkg/requestcontext"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "permitpulse-ingestor/1.0"
	// MaxContentSize bounds a fetched page.
	MaxContentSize = 10 << 20
)

// Sources resolves a city to its source URL.
type Sources interface {
	CityURL(code string) (string, bool)
}

// HTTPFetcher fetches city pages with a shared politeness limiter.
type HTTPFetcher struct {
	client         *http.Client
	sources        Sources
	limiter        *rate.Limiter
	userAgent      string
	maxContentSize int64
}

type Option func(*HTTPFetcher)

// WithRate limits outbound requests to perSecond, bursting one at a time.
// A non-positive rate disables the limiter.
func WithRate(perSecond float64) Option {
	return func(f *HTTPFetcher) {
		if perSecond <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(f *HTTPFetcher) {
		f.client = client
	}
}

func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

func WithMaxContentSize(n int64) Option {
	return func(f *HTTPFetcher) {
		f.maxContentSize = n
	}
}

// New builds a fetcher with the given request timeout.
func New(sources Sources, timeout time.Duration, opts ...Option) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	f := &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:           dialer.DialContext,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: timeout,
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
			},
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (max 5)")
				}
				return nil
			},
		},
		sources:        sources,
		limiter:        rate.NewLimiter(rate.Limit(1), 1),
		userAgent:      DefaultUserAgent,
		maxContentSize: MaxContentSize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads the configured source page for city. Non-2xx responses are errors.
func (f *HTTPFetcher) Fetch(ctx context.Context, city id.CityCode) (*rules.RawDocument, error) {
	sourceURL, ok := f.sources.CityURL(city.String())
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("no source configured for city %s", city))
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for fetch slot: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", sourceURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: HTTP %d: %s", sourceURL, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxContentSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxContentSize {
		return nil, fmt.Errorf("content too large (exceeds %d bytes)", f.maxContentSize)
	}

	return &rules.RawDocument{
		CityCode:  city,
		SourceURL: sourceURL,
		Content:   string(body),
		FetchedAt: requestcontext.Now(ctx),
	}, nil
}

// Package sources fetches the daily digest record from the public 60s API
// mirrors and downloads the pre-rendered image some deployments send instead
// of drawing their own.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http/httpproxy"

	"github.com/RobinCoderZhao/morning-news/pkg/dailynews"
)

// DefaultURLs are the API mirrors, tried in order.
var DefaultURLs = []string{
	"https://60s.viki.moe/v2/60s",
	"https://60s.b23.run/v2/60s",
	"https://60s-api-cf.viki.moe/v2/60s",
	"https://60s-api.114128.xyz/v2/60s",
	"https://60s-api-cf.114128.xyz/v2/60s",
}

// ErrAllSourcesFailed is returned when no mirror produced a record.
var ErrAllSourcesFailed = errors.New("all news sources failed")

// Config configures the fetcher.
type Config struct {
	URLs         []string      `yaml:"urls" env:"MORNINGNEWS_SOURCE_URLS"`
	Timeout      time.Duration `yaml:"timeout" env:"MORNINGNEWS_SOURCE_TIMEOUT"`
	ImageTimeout time.Duration `yaml:"image_timeout" env:"MORNINGNEWS_IMAGE_TIMEOUT"`
	Proxy        string        `yaml:"proxy" env:"MORNINGNEWS_PROXY"` // empty: use HTTP(S)_PROXY from the environment
}

// envelope is the API response wrapper.
type envelope struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    *dailynews.Record `json:"data"`
}

// Fetcher reads the daily record with mirror failover.
type Fetcher struct {
	urls         []string
	client       *http.Client
	imageTimeout time.Duration
	logger       *slog.Logger
}

// NewFetcher creates a fetcher. Zero config values take defaults: the five
// public mirrors, a 15s API timeout and a 30s image timeout.
func NewFetcher(cfg Config) *Fetcher {
	if len(cfg.URLs) == 0 {
		cfg.URLs = DefaultURLs
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.ImageTimeout <= 0 {
		cfg.ImageTimeout = 30 * time.Second
	}
	return &Fetcher{
		urls: cfg.URLs,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: newTransport(cfg.Proxy),
		},
		imageTimeout: cfg.ImageTimeout,
		logger:       slog.Default(),
	}
}

func newTransport(proxy string) *http.Transport {
	pc := httpproxy.FromEnvironment()
	if proxy != "" {
		pc = &httpproxy.Config{HTTPProxy: proxy, HTTPSProxy: proxy}
	}
	proxyFunc := pc.ProxyFunc()

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.Proxy = func(req *http.Request) (*url.URL, error) {
		return proxyFunc(req.URL)
	}
	return tr
}

// URLs returns the mirrors in the order they are tried.
func (f *Fetcher) URLs() []string {
	return f.urls
}

// FetchRecord tries each mirror in turn and returns the first record.
// A mirror that answers non-200, returns malformed JSON or carries no data
// is logged and skipped.
func (f *Fetcher) FetchRecord(ctx context.Context) (*dailynews.Record, error) {
	for _, u := range f.urls {
		rec, err := f.fetchOne(ctx, u)
		if err == nil {
			f.logger.Info("news fetched", "url", u, "date", rec.Date, "headlines", len(rec.News))
			return rec, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		f.logger.Warn("news source failed", "url", u, "error", err)
	}
	return nil, fmt.Errorf("%w: tried %d urls", ErrAllSourcesFailed, len(f.urls))
}

// FetchDigest fetches and validates today's record.
func (f *Fetcher) FetchDigest(ctx context.Context) (*dailynews.Record, *dailynews.Digest, error) {
	rec, err := f.FetchRecord(ctx)
	if err != nil {
		return nil, nil, err
	}
	d, err := dailynews.NewDigest(*rec)
	if err != nil {
		return rec, nil, fmt.Errorf("build digest: %w", err)
	}
	return rec, d, nil
}

func (f *Fetcher) fetchOne(ctx context.Context, u string) (*dailynews.Record, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("response has no data (code %d: %s)", env.Code, env.Message)
	}
	return env.Data, nil
}

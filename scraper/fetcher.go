package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/aluiziolira/go-scrape-catalogue/config"
	"github.com/aluiziolira/go-scrape-catalogue/parser"
	"github.com/gocolly/colly/v2"
)

const (
	ctxKeyListings = "listings"
	ctxKeyStatus   = "status"
)

// PageResult is the outcome of one catalogue page request. An empty Listings
// slice marks the end of the catalogue; Status carries the HTTP status seen.
type PageResult struct {
	Page     int
	URL      string
	Status   int
	Listings []parser.Listing
}

// PageFetcher loads the listings of one catalogue page. Network-level
// failures are returned as *FetchError; a non-success status is not an error.
type PageFetcher interface {
	Fetch(ctx context.Context, page int) (PageResult, error)
}

// CollyFetcher fetches catalogue pages through a synchronous colly collector.
type CollyFetcher struct {
	cfg       *config.Config
	collector *colly.Collector
	headers   http.Header
	metrics   *Metrics
}

// NewCollyFetcher builds a fetcher configured from cfg.
func NewCollyFetcher(cfg *config.Config, metrics *Metrics) (*CollyFetcher, error) {
	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host")
	}

	collector := colly.NewCollector(
		colly.AllowedDomains(parsed.Host, parsed.Hostname()),
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	collector.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxKeyStatus, r.StatusCode)
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Ctx != nil && r.StatusCode != 0 {
			r.Ctx.Put(ctxKeyStatus, r.StatusCode)
		}
	})

	collector.OnHTML(parser.ListingSelector, func(e *colly.HTMLElement) {
		listings, _ := e.Response.Ctx.GetAny(ctxKeyListings).([]parser.Listing)
		e.Response.Ctx.Put(ctxKeyListings, append(listings, e))
	})

	return &CollyFetcher{
		cfg:       cfg,
		collector: collector,
		headers:   cfg.RequestHeaders(),
		metrics:   metrics,
	}, nil
}

// WithTransport swaps the HTTP transport used by the collector.
func (f *CollyFetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Fetch requests one catalogue page and returns its listings.
func (f *CollyFetcher) Fetch(ctx context.Context, page int) (PageResult, error) {
	pageURL := f.cfg.PageURL(page)
	result := PageResult{Page: page, URL: pageURL}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	reqCtx := colly.NewContext()
	start := time.Now()
	err := f.collector.Request(http.MethodGet, pageURL, nil, reqCtx, f.headers.Clone())
	f.metrics.ObserveDuration(time.Since(start))

	if status, ok := reqCtx.GetAny(ctxKeyStatus).(int); ok {
		result.Status = status
	}

	if err != nil && result.Status == 0 {
		classified := classifyError(err)
		f.metrics.IncRequest("error")
		f.metrics.IncError(errorTypeLabel(classified))
		return result, &FetchError{Page: page, URL: pageURL, Err: classified}
	}

	if err != nil {
		f.metrics.IncRequest("status")
		slog.Warn("non-success response",
			slog.Int("page", page),
			slog.Int("status", result.Status),
			slog.String("url", pageURL),
		)
		return result, nil
	}

	f.metrics.IncRequest("ok")
	result.Listings, _ = reqCtx.GetAny(ctxKeyListings).([]parser.Listing)
	return result, nil
}

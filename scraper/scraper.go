// Package scraper drives the paginated catalogue crawl.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-catalogue/config"
	"github.com/aluiziolira/go-scrape-catalogue/models"
	"github.com/aluiziolira/go-scrape-catalogue/parser"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Scraper walks catalogue pages one at a time until the source runs out of
// pages or a request fails.
type Scraper struct {
	cfg       *config.Config
	fetcher   PageFetcher
	extractor *parser.Extractor
	Metrics   *Metrics

	seen  *lru.Cache[string, int]
	sleep func(context.Context, time.Duration) error
}

// NewScraper builds a scraper backed by a colly fetcher.
func NewScraper(cfg *config.Config) (*Scraper, error) {
	metrics := NewMetrics()
	fetcher, err := NewCollyFetcher(cfg, metrics)
	if err != nil {
		return nil, err
	}
	return New(cfg, fetcher, metrics)
}

// New builds a scraper around an arbitrary page fetcher.
func New(cfg *config.Config, fetcher PageFetcher, metrics *Metrics) (*Scraper, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher cannot be nil")
	}
	seen, err := lru.New[string, int](cfg.DuplicateWindow)
	if err != nil {
		return nil, fmt.Errorf("duplicate window: %w", err)
	}
	return &Scraper{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: parser.NewExtractor(cfg.BaseURL, cfg.ProductPath),
		Metrics:   metrics,
		seen:      seen,
		sleep:     sleepContext,
	}, nil
}

// Run crawls from page 1 and returns whatever was collected, along with the
// state and reason the loop stopped in. Fetch failures end the crawl but do
// not discard earlier pages.
func (s *Scraper) Run(ctx context.Context) *models.CrawlResult {
	if ctx == nil {
		ctx = context.Background()
	}
	s.seen.Purge()

	result := &models.CrawlResult{
		State:     models.StateRunning,
		Dropped:   make(map[string]int),
		StartTime: time.Now(),
	}

	page := 1
	for result.State == models.StateRunning {
		slog.Info("scraping page", slog.Int("page", page))

		res, err := s.fetcher.Fetch(ctx, page)
		result.LastPage = page
		if err != nil {
			if ctx.Err() != nil {
				s.stop(result, models.StateAborted, models.ReasonCancelled, err)
				break
			}
			slog.Error("request failed",
				slog.Int("page", page),
				slog.Any("error", err),
			)
			s.stop(result, models.StateAborted, models.ReasonFetchError, err)
			break
		}

		if len(res.Listings) == 0 {
			slog.Info("no more products found",
				slog.Int("page", page),
				slog.Int("status", res.Status),
			)
			s.stop(result, models.StateCompleted, models.ReasonEndOfCatalogue, nil)
			break
		}

		kept := s.collect(page, res.Listings, result)
		result.PageCount++
		s.Metrics.IncPages()
		slog.Info("page scraped",
			slog.Int("page", page),
			slog.Int("listings", len(res.Listings)),
			slog.Int("kept", kept),
			slog.Int("total", len(result.Books)),
		)

		page++
		if s.cfg.MaxPages > 0 && page > s.cfg.MaxPages {
			s.stop(result, models.StateCompleted, models.ReasonPageLimit, nil)
			break
		}
		if err := s.sleep(ctx, s.cfg.Delay); err != nil {
			s.stop(result, models.StateAborted, models.ReasonCancelled, err)
		}
	}

	result.EndTime = time.Now()
	return result
}

func (s *Scraper) collect(page int, listings []parser.Listing, result *models.CrawlResult) int {
	kept := 0
	for i, listing := range listings {
		book, err := s.extractor.Extract(listing)
		if err != nil {
			field := "unknown"
			var missing *parser.MissingFieldError
			if errors.As(err, &missing) {
				field = missing.Field
			}
			result.Dropped[field]++
			s.Metrics.IncDropped(field)
			slog.Warn("dropping listing",
				slog.Int("page", page),
				slog.Int("index", i),
				slog.Any("error", err),
			)

			if s.cfg.AbortPageOnInvalidListing {
				if rest := len(listings) - i - 1; rest > 0 {
					result.Dropped["page_aborted"] += rest
					slog.Warn("abandoning rest of page",
						slog.Int("page", page),
						slog.Int("skipped", rest),
					)
				}
				break
			}
			continue
		}

		if firstPage, ok := s.seen.Get(book.URL); ok {
			result.Duplicates++
			s.Metrics.IncDuplicates()
			slog.Debug("duplicate listing",
				slog.String("url", book.URL),
				slog.Int("page", page),
				slog.Int("first_page", firstPage),
			)
		} else {
			s.seen.Add(book.URL, page)
		}

		result.Books = append(result.Books, book)
		s.Metrics.IncItems()
		kept++
	}
	return kept
}

func (s *Scraper) stop(result *models.CrawlResult, state models.CrawlState, reason models.StopReason, err error) {
	result.State = state
	result.Reason = reason
	result.Err = err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

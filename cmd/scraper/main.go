package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aluiziolira/go-scrape-catalogue/config"
	"github.com/aluiziolira/go-scrape-catalogue/models"
	"github.com/aluiziolira/go-scrape-catalogue/parser"
	"github.com/aluiziolira/go-scrape-catalogue/pipeline"
	"github.com/aluiziolira/go-scrape-catalogue/scraper"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger, level := newLogger(cfg.Verbose)
	logger = logger.With(slog.String("run_id", uuid.NewString()))
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	os.Exit(run(cfg))
}

func run(cfg *config.Config) int {
	slog.Info("starting web scraping process",
		slog.String("base_url", cfg.BaseURL),
		slog.Int("max_pages", cfg.MaxPages),
		slog.Duration("delay", cfg.Delay),
		slog.Duration("timeout", cfg.Timeout),
	)

	s, err := scraper.NewScraper(cfg)
	if err != nil {
		slog.Error("initialising scraper", slog.Any("error", err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsServer := startMetricsServer(cfg.MetricsAddr, s.Metrics)
	defer shutdownMetricsServer(metricsServer)

	result := s.Run(ctx)
	logOutcome(result)
	slog.Info("total products scraped", slog.Int("count", len(result.Books)))

	if len(result.Books) == 0 {
		slog.Warn("no data scraped")
		return 0
	}

	snapshot, err := parser.Normalize(result.Books)
	if err != nil {
		slog.Error("normalizing records", slog.Any("error", err))
		return 1
	}

	paths, err := pipeline.NewSink(cfg.OutputFormats).Persist(snapshot, cfg.OutputDir)
	if err != nil {
		slog.Error("saving data", slog.Any("error", err))
		return 1
	}

	slog.Info("scraping completed successfully")
	printSummary(result, len(snapshot), paths)
	return 0
}

func logOutcome(result *models.CrawlResult) {
	attrs := []any{
		slog.String("state", result.State.String()),
		slog.String("reason", result.Reason.String()),
		slog.Int("last_page", result.LastPage),
	}
	switch result.Reason {
	case models.ReasonFetchError:
		slog.Error("crawl aborted after request failure", append(attrs, slog.Any("error", result.Err))...)
	case models.ReasonCancelled:
		slog.Warn("crawl interrupted", attrs...)
	default:
		slog.Info("crawl finished", attrs...)
	}
}

func startMetricsServer(addr string, metrics *scraper.Metrics) *http.Server {
	if addr == "" || metrics == nil {
		return nil
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", slog.Any("error", err))
		}
	}()
	slog.Info("metrics server enabled", slog.String("addr", addr))
	return server
}

func shutdownMetricsServer(server *http.Server) {
	if server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("metrics server shutdown failed", slog.Any("error", err))
	}
}

func printSummary(result *models.CrawlResult, records int, paths []string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Scrape complete")
	fmt.Printf("  Records:       %d\n", records)
	fmt.Printf("  Pages:         %d\n", result.PageCount)
	fmt.Printf("  Stopped:       %s (%s)\n", result.State, result.Reason)
	fmt.Printf("  Dropped:       %d\n", result.DroppedCount())
	if len(result.Dropped) > 0 {
		fmt.Printf("  Drop reasons:  %v\n", result.Dropped)
	}
	fmt.Printf("  Duplicates:    %d\n", result.Duplicates)
	fmt.Printf("  Duration:      %v\n", result.EndTime.Sub(result.StartTime).Round(time.Millisecond))
	for _, path := range paths {
		fmt.Printf("  Output file:   %s\n", path)
	}
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

package config

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Supported output formats.
const (
	FormatCSV   = "csv"
	FormatXLSX  = "xlsx"
	FormatJSONL = "jsonl"
)

// Config holds scraper configuration. It is built once and never mutated
// after Validate succeeds.
type Config struct {
	BaseURL                   string
	PagePath                  string
	ProductPath               string
	MaxPages                  int
	Delay                     time.Duration
	Timeout                   time.Duration
	UserAgent                 string
	Headers                   map[string]string
	OutputDir                 string
	OutputFormats             []string
	AbortPageOnInvalidListing bool
	DuplicateWindow           int
	MetricsAddr               string
	Verbose                   bool
	RespectRobotsTxt          bool
}

// DefaultConfig returns conservative defaults for the demo target.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://books.toscrape.com",
		PagePath:    "catalogue/page-%d.html",
		ProductPath: "catalogue",
		MaxPages:    0,
		Delay:       time.Second,
		Timeout:     10 * time.Second,
		UserAgent:   "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		Headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml",
			"Accept-Language": "en-US,en;q=0.9",
		},
		OutputDir:       "output",
		OutputFormats:   []string{FormatCSV, FormatXLSX},
		DuplicateWindow: 4096,
	}
}

// Load layers an optional config file and SCRAPER_* environment variables
// over DefaultConfig. An empty path looks for scraper.{yaml,toml,json} in the
// working directory and carries on without one.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetDefault("base_url", cfg.BaseURL)
	v.SetDefault("page_path", cfg.PagePath)
	v.SetDefault("product_path", cfg.ProductPath)
	v.SetDefault("max_pages", cfg.MaxPages)
	v.SetDefault("delay", cfg.Delay)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("user_agent", cfg.UserAgent)
	v.SetDefault("headers", cfg.Headers)
	v.SetDefault("output_dir", cfg.OutputDir)
	v.SetDefault("output_formats", strings.Join(cfg.OutputFormats, ","))
	v.SetDefault("abort_page_on_invalid_listing", cfg.AbortPageOnInvalidListing)
	v.SetDefault("duplicate_window", cfg.DuplicateWindow)
	v.SetDefault("metrics_addr", cfg.MetricsAddr)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("respect_robots_txt", cfg.RespectRobotsTxt)

	v.SetEnvPrefix("SCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("scraper")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg.BaseURL = v.GetString("base_url")
	cfg.PagePath = v.GetString("page_path")
	cfg.ProductPath = v.GetString("product_path")
	cfg.MaxPages = v.GetInt("max_pages")
	cfg.Delay = v.GetDuration("delay")
	cfg.Timeout = v.GetDuration("timeout")
	cfg.UserAgent = v.GetString("user_agent")
	cfg.Headers = v.GetStringMapString("headers")
	cfg.OutputDir = v.GetString("output_dir")
	cfg.OutputFormats = splitList(v.GetString("output_formats"))
	cfg.AbortPageOnInvalidListing = v.GetBool("abort_page_on_invalid_listing")
	cfg.DuplicateWindow = v.GetInt("duplicate_window")
	cfg.MetricsAddr = v.GetString("metrics_addr")
	cfg.Verbose = v.GetBool("verbose")
	cfg.RespectRobotsTxt = v.GetBool("respect_robots_txt")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if strings.Count(c.PagePath, "%d") != 1 {
		return fmt.Errorf("page path must contain exactly one %%d verb")
	}
	if c.MaxPages < 0 {
		return fmt.Errorf("max pages cannot be negative")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	if len(c.OutputFormats) == 0 {
		return fmt.Errorf("at least one output format is required")
	}
	for _, format := range c.OutputFormats {
		if format != FormatCSV && format != FormatXLSX && format != FormatJSONL {
			return fmt.Errorf("output format must be csv, xlsx, or jsonl, got %q", format)
		}
	}
	if c.DuplicateWindow <= 0 {
		return fmt.Errorf("duplicate window must be positive")
	}

	return nil
}

// PageURL renders the catalogue URL for a 1-based page index.
func (c *Config) PageURL(page int) string {
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + strings.TrimPrefix(fmt.Sprintf(c.PagePath, page), "/")
}

// RequestHeaders returns the fixed header set sent with every page request.
// User-Agent always wins over a header of the same name.
func (c *Config) RequestHeaders() http.Header {
	hdr := make(http.Header, len(c.Headers)+1)
	for k, v := range c.Headers {
		hdr.Set(k, v)
	}
	hdr.Set("User-Agent", c.UserAgent)
	return hdr
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

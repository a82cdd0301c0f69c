package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry              *prometheus.Registry
	RequestsTotal         *prometheus.CounterVec
	RequestDuration       prometheus.Histogram
	PagesTotal            prometheus.Counter
	ItemsScrapedTotal     prometheus.Counter
	ItemsDroppedTotal     *prometheus.CounterVec
	DuplicateListingTotal prometheus.Counter
	ErrorsTotal           *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_requests_total",
			Help: "Total catalogue page requests by outcome.",
		},
		[]string{"outcome"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_request_duration_seconds",
			Help:    "HTTP request latency for catalogue pages.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_pages_total",
			Help: "Total catalogue pages that yielded listings.",
		},
	)
	itemsScraped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_items_scraped_total",
			Help: "Total number of listings extracted into records.",
		},
	)
	itemsDropped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_items_dropped_total",
			Help: "Total number of listings dropped by missing field.",
		},
		[]string{"field"},
	)
	duplicates := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_duplicate_listings_total",
			Help: "Listings whose product URL was already seen in this run.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Total number of scraper errors by type.",
		},
		[]string{"error_type"},
	)

	registry.MustRegister(requests, requestDuration, pages, itemsScraped, itemsDropped, duplicates, errorsTotal)

	return &Metrics{
		Registry:              registry,
		RequestsTotal:         requests,
		RequestDuration:       requestDuration,
		PagesTotal:            pages,
		ItemsScrapedTotal:     itemsScraped,
		ItemsDroppedTotal:     itemsDropped,
		DuplicateListingTotal: duplicates,
		ErrorsTotal:           errorsTotal,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(outcome string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPages increments the pages counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// IncItems increments the items scraped counter.
func (m *Metrics) IncItems() {
	if m == nil {
		return
	}
	m.ItemsScrapedTotal.Inc()
}

// IncDropped increments the dropped counter for a missing field.
func (m *Metrics) IncDropped(field string) {
	if m == nil {
		return
	}
	m.ItemsDroppedTotal.WithLabelValues(field).Inc()
}

// IncDuplicates increments the duplicate listings counter.
func (m *Metrics) IncDuplicates() {
	if m == nil {
		return
	}
	m.DuplicateListingTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// Package models defines data structures for the scraper.
package models

import (
	"strconv"
	"time"
)

// Rating is a star rating in [1,5]. RatingNone marks a listing whose rating
// could not be read.
type Rating int

const (
	RatingNone Rating = iota
	RatingOne
	RatingTwo
	RatingThree
	RatingFour
	RatingFive
)

// Valid reports whether r is one of the five star values.
func (r Rating) Valid() bool {
	return r >= RatingOne && r <= RatingFive
}

// String renders the rating as a number, or an empty string when absent.
func (r Rating) String() string {
	if !r.Valid() {
		return ""
	}
	return strconv.Itoa(int(r))
}

// RawBook is a catalogue listing as scraped, before normalization.
type RawBook struct {
	Title        string
	PriceText    string
	Availability string
	Rating       Rating
	URL          string
}

// Book is a normalized catalogue record ready for persistence.
type Book struct {
	Title        string  `json:"title"`
	Price        float64 `json:"price"`
	Availability string  `json:"availability"`
	Rating       Rating  `json:"rating,omitempty"`
	URL          string  `json:"product_url"`
}

// CrawlState is the state of the crawl loop.
type CrawlState int

const (
	StateRunning CrawlState = iota
	StateCompleted
	StateAborted
)

func (s CrawlState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// StopReason tells why the crawl loop left the running state.
type StopReason int

const (
	ReasonNone StopReason = iota
	ReasonEndOfCatalogue
	ReasonFetchError
	ReasonCancelled
	ReasonPageLimit
)

func (r StopReason) String() string {
	switch r {
	case ReasonEndOfCatalogue:
		return "end_of_catalogue"
	case ReasonFetchError:
		return "fetch_error"
	case ReasonCancelled:
		return "cancelled"
	case ReasonPageLimit:
		return "page_limit"
	default:
		return "none"
	}
}

// CrawlResult holds the overall result of a crawl.
type CrawlResult struct {
	Books      []RawBook
	State      CrawlState
	Reason     StopReason
	Err        error
	LastPage   int
	PageCount  int
	Dropped    map[string]int
	Duplicates int
	StartTime  time.Time
	EndTime    time.Time
}

// DroppedCount sums dropped listings across all reasons.
func (r *CrawlResult) DroppedCount() int {
	total := 0
	for _, n := range r.Dropped {
		total += n
	}
	return total
}

// Package parser turns catalogue listings into records and normalizes them.
package parser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aluiziolira/go-scrape-catalogue/models"
)

// Selectors for the books.toscrape.com listing markup.
const (
	ListingSelector      = ".product_pod"
	TitleSelector        = "h3 a"
	PriceSelector        = ".price_color"
	AvailabilitySelector = ".availability"
	RatingSelector       = ".star-rating"
)

// ErrMissingField matches every extraction failure.
var ErrMissingField = errors.New("missing required field")

// MissingFieldError reports which required field a listing lacked.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("listing missing %s", e.Field)
}

func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingField
}

// Listing is one product block on a catalogue page. *colly.HTMLElement
// satisfies it. ChildTexts returns one entry per matching element, so an
// element with blank text is still reported as present.
type Listing interface {
	ChildAttr(selector, attrName string) string
	ChildTexts(selector string) []string
}

// Extractor reads RawBooks out of listings.
type Extractor struct {
	// ProductBase is prefixed to each listing's relative href.
	ProductBase string
}

// NewExtractor joins baseURL and productPath into the product link prefix.
func NewExtractor(baseURL, productPath string) *Extractor {
	base := strings.TrimSuffix(baseURL, "/") + "/"
	path := strings.Trim(productPath, "/")
	if path != "" {
		base += path + "/"
	}
	return &Extractor{ProductBase: base}
}

// Extract builds a RawBook from l. A missing rating is not an error.
func (x *Extractor) Extract(l Listing) (models.RawBook, error) {
	title := strings.TrimSpace(l.ChildAttr(TitleSelector, "title"))
	if title == "" {
		return models.RawBook{}, &MissingFieldError{Field: "title"}
	}

	// Blank price text is left for Normalize to reject.
	price, ok := firstText(l, PriceSelector)
	if !ok {
		return models.RawBook{}, &MissingFieldError{Field: "price"}
	}

	availability, ok := firstText(l, AvailabilitySelector)
	if !ok {
		return models.RawBook{}, &MissingFieldError{Field: "availability"}
	}

	href := strings.TrimSpace(l.ChildAttr(TitleSelector, "href"))
	if href == "" {
		return models.RawBook{}, &MissingFieldError{Field: "url"}
	}

	return models.RawBook{
		Title:        title,
		PriceText:    price,
		Availability: availability,
		Rating:       RatingFromTokens(strings.Fields(l.ChildAttr(RatingSelector, "class"))),
		URL:          x.ProductBase + strings.TrimPrefix(href, "/"),
	}, nil
}

func firstText(l Listing, selector string) (string, bool) {
	texts := l.ChildTexts(selector)
	if len(texts) == 0 {
		return "", false
	}
	return strings.TrimSpace(texts[0]), true
}

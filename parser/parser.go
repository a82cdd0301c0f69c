package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-scrape-catalogue/models"
)

// ErrInvalidPrice matches every price normalization failure.
var ErrInvalidPrice = errors.New("invalid price")

// PriceError reports a record whose price text holds no usable number.
type PriceError struct {
	Index int
	Title string
	Raw   string
	Err   error
}

func (e *PriceError) Error() string {
	return fmt.Sprintf("record %d (%q): price %q: %v", e.Index, e.Title, e.Raw, e.Err)
}

func (e *PriceError) Unwrap() error {
	return e.Err
}

func (e *PriceError) Is(target error) bool {
	return target == ErrInvalidPrice
}

var ratingWords = map[string]models.Rating{
	"One":   models.RatingOne,
	"Two":   models.RatingTwo,
	"Three": models.RatingThree,
	"Four":  models.RatingFour,
	"Five":  models.RatingFive,
}

// RatingFromTokens returns the rating named by the first known word token.
// Matching is case-sensitive; unknown tokens are ignored.
func RatingFromTokens(tokens []string) models.Rating {
	for _, token := range tokens {
		if rating, ok := ratingWords[token]; ok {
			return rating
		}
	}
	return models.RatingNone
}

// NormalizePrice keeps only digits and decimal points and parses the rest.
func NormalizePrice(price string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, price)
	if cleaned == "" {
		return 0, fmt.Errorf("%w: no numeric content", ErrInvalidPrice)
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	return value, nil
}

// NormalizeAvailability trims spacing from the availability text.
func NormalizeAvailability(text string) string {
	return strings.TrimSpace(text)
}

// Normalize converts raw records into typed books, preserving order.
// A single unparseable price fails the whole batch.
func Normalize(raw []models.RawBook) ([]models.Book, error) {
	books := make([]models.Book, 0, len(raw))
	for i, r := range raw {
		price, err := NormalizePrice(r.PriceText)
		if err != nil {
			return nil, &PriceError{Index: i, Title: r.Title, Raw: r.PriceText, Err: err}
		}
		books = append(books, models.Book{
			Title:        r.Title,
			Price:        price,
			Availability: r.Availability,
			Rating:       r.Rating,
			URL:          r.URL,
		})
	}
	return books, nil
}

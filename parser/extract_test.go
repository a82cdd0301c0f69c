package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-catalogue/models"
	"github.com/gocolly/colly/v2"
)

const listingsFixture = `<html><body><ol class="row">
<li><article class="product_pod">
  <h3><a href="a-light-in-the-attic_1000/index.html" title="A Light in the Attic">A Light in the ...</a></h3>
  <p class="star-rating Three"></p>
  <div class="product_price">
    <p class="price_color">£51.77</p>
    <p class="instock availability">
        <i class="icon-ok"></i>
        In stock
    </p>
  </div>
</article></li>
<li><article class="product_pod">
  <h3><a href="sapiens_996/index.html" title="Sapiens">Sapiens</a></h3>
  <p class="star-rating"></p>
  <p class="price_color">£54.23</p>
  <p class="instock availability">In stock</p>
</article></li>
<li><article class="product_pod">
  <h3><a href="no-price_1/index.html" title="No Price">No Price</a></h3>
  <p class="star-rating One"></p>
  <p class="instock availability">In stock</p>
</article></li>
<li><article class="product_pod">
  <h3><a href="no-title_2/index.html">No Title</a></h3>
  <p class="price_color">£1.00</p>
  <p class="instock availability">In stock</p>
</article></li>
<li><article class="product_pod">
  <h3><a href="no-stock_3/index.html" title="No Stock">No Stock</a></h3>
  <p class="price_color">£1.00</p>
</article></li>
<li><article class="product_pod">
  <h3><a title="No Link">No Link</a></h3>
  <p class="price_color">£1.00</p>
  <p class="instock availability">In stock</p>
</article></li>
</ol></body></html>`

func fixtureListings(t *testing.T, body string) []Listing {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	resp := &colly.Response{Request: &colly.Request{}}
	var listings []Listing
	doc.Find(ListingSelector).Each(func(i int, s *goquery.Selection) {
		listings = append(listings, colly.NewHTMLElementFromSelectionNode(resp, s, s.Get(0), i))
	})
	return listings
}

func TestExtractorExtract(t *testing.T) {
	listings := fixtureListings(t, listingsFixture)
	if len(listings) != 6 {
		t.Fatalf("listings=%d, want 6", len(listings))
	}

	x := NewExtractor("https://books.toscrape.com/", "catalogue")

	book, err := x.Extract(listings[0])
	if err != nil {
		t.Fatalf("extract first listing: %v", err)
	}
	want := models.RawBook{
		Title:        "A Light in the Attic",
		PriceText:    "£51.77",
		Availability: "In stock",
		Rating:       models.RatingThree,
		URL:          "https://books.toscrape.com/catalogue/a-light-in-the-attic_1000/index.html",
	}
	if book != want {
		t.Fatalf("extract = %+v, want %+v", book, want)
	}

	unrated, err := x.Extract(listings[1])
	if err != nil {
		t.Fatalf("missing rating must not fail: %v", err)
	}
	if unrated.Rating != models.RatingNone {
		t.Fatalf("rating=%d, want none", unrated.Rating)
	}
}

func TestExtractorMissingFields(t *testing.T) {
	listings := fixtureListings(t, listingsFixture)
	x := NewExtractor("https://books.toscrape.com", "/catalogue/")

	tests := []struct {
		index int
		field string
	}{
		{index: 2, field: "price"},
		{index: 3, field: "title"},
		{index: 4, field: "availability"},
		{index: 5, field: "url"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			_, err := x.Extract(listings[tt.index])
			var missing *MissingFieldError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingFieldError, got %v", err)
			}
			if missing.Field != tt.field {
				t.Fatalf("field=%q, want %q", missing.Field, tt.field)
			}
			if !errors.Is(err, ErrMissingField) {
				t.Fatalf("expected error to match ErrMissingField")
			}
		})
	}
}

func TestExtractorKeepsBlankPrice(t *testing.T) {
	listings := fixtureListings(t, `<html><body><article class="product_pod">
  <h3><a href="blank_7/index.html" title="Blank Price">Blank Price</a></h3>
  <p class="price_color">   </p>
  <p class="instock availability">In stock</p>
</article></body></html>`)
	if len(listings) != 1 {
		t.Fatalf("listings=%d, want 1", len(listings))
	}

	book, err := NewExtractor("http://example.test", "catalogue").Extract(listings[0])
	if err != nil {
		t.Fatalf("present price element must not be a missing field: %v", err)
	}
	if book.PriceText != "" {
		t.Fatalf("price text = %q, want empty", book.PriceText)
	}

	_, err = Normalize([]models.RawBook{book})
	if !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("normalize error = %v, want ErrInvalidPrice", err)
	}
}

func TestNewExtractorJoinsPaths(t *testing.T) {
	tests := []struct {
		base, path, expected string
	}{
		{base: "https://books.toscrape.com/", path: "catalogue", expected: "https://books.toscrape.com/catalogue/"},
		{base: "https://books.toscrape.com", path: "/catalogue/", expected: "https://books.toscrape.com/catalogue/"},
		{base: "http://example.test", path: "", expected: "http://example.test/"},
	}

	for _, tt := range tests {
		if got := NewExtractor(tt.base, tt.path).ProductBase; got != tt.expected {
			t.Errorf("NewExtractor(%q, %q).ProductBase = %q, want %q", tt.base, tt.path, got, tt.expected)
		}
	}
}

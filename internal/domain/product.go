package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FeedRow is one loosely-typed row from the spreadsheet-backed catalog feed.
// Price and Stock arrive as either strings or numbers depending on the row,
// and the image URL lives under one of three keys depending on the sheet
// revision. Normalization into Product happens once, at the feed boundary.
type FeedRow struct {
	SKU         string `json:"SKU"`
	Name        string `json:"Name"`
	Price       any    `json:"Price"`
	Stock       any    `json:"Stock"`
	Description string `json:"Description"`
	MPN         string `json:"MPN"`
	UPC         string `json:"UPC"`
	Links       string `json:"Links"`
	ImageURL    string `json:"Image URL"`
	ImageURLAlt string `json:"Image_URL"`
	DGURL       string `json:"DG URL"`
	Path        string `json:"Path"`
}

// Product is the canonical, normalized catalog entry used everywhere past
// the feed boundary.
type Product struct {
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	PriceDisplay string          `json:"priceDisplay"`
	Stock        string          `json:"stock"`
	InStock      bool            `json:"inStock"`
	Description  string          `json:"description"`
	MPN          string          `json:"mpn"`
	UPC          string          `json:"upc"`
	ImageURL     string          `json:"imageUrl"`
	ProductURL   string          `json:"productUrl"`
	Category     string          `json:"category"`
	Path         string          `json:"path"`
}

// CartLineItem is one ordered cart entry: a product snapshot plus a
// quantity that is always >= 1.
type CartLineItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// CartAddItem is the payload published on the cart add topic.
type CartAddItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// PathPrefix returns the hierarchy portion of a product path with the
// trailing product name removed.
func PathPrefix(path, name string) string {
	if path == "" || name == "" {
		return ""
	}
	idx := strings.LastIndex(path, name)
	if idx < 0 {
		return strings.TrimSpace(path)
	}
	return strings.TrimSpace(path[:idx])
}

// MatchSet is the result of matching an uploaded file against the catalog:
// the extracted token, the best candidate (nil when nothing matched) and
// the full candidate list for a "multiple matches" display state.
type MatchSet struct {
	Token      string    `json:"token"`
	Best       *Product  `json:"best,omitempty"`
	Candidates []Product `json:"candidates"`
}

package feed

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/eugeneleychenko/vyb-marine-demo/internal/domain"
	"github.com/shopspring/decimal"
)

// currencyNoise matches the characters stripped before parsing a price
var currencyNoise = regexp.MustCompile(`[$,]`)

// multiSpace splits the hierarchical Path field, whose segments are
// separated by runs of spaces in the sheet
var multiSpace = regexp.MustCompile(`\s{2,}`)

const defaultCategory = "Marine Parts"

// NormalizeRow converts a loosely-typed feed row into the canonical
// Product shape. All the sheet's inconsistencies are absorbed here: price
// as string or number, three possible image-URL keys, stock as string or
// number.
func NormalizeRow(row domain.FeedRow) domain.Product {
	price, display := normalizePrice(row.Price)
	stock := stringifyValue(row.Stock)

	return domain.Product{
		SKU:          row.SKU,
		Name:         row.Name,
		Price:        price,
		PriceDisplay: display,
		Stock:        stock,
		InStock:      isInStock(stock),
		Description:  row.Description,
		MPN:          row.MPN,
		UPC:          row.UPC,
		ImageURL:     pickImageURL(row),
		ProductURL:   row.Links,
		Category:     categoryFromPath(row.Path, row.Name),
		Path:         row.Path,
	}
}

// normalizePrice parses a price that may be a preformatted currency string
// or a bare number. Unparseable values become 0.
func normalizePrice(raw any) (decimal.Decimal, string) {
	switch v := raw.(type) {
	case string:
		cleaned := currencyNoise.ReplaceAllString(strings.TrimSpace(v), "")
		price, err := decimal.NewFromString(cleaned)
		if err != nil {
			return decimal.Zero, v
		}
		return price, v
	case float64:
		price := decimal.NewFromFloat(v)
		return price, "$" + price.StringFixed(2)
	case int:
		price := decimal.NewFromInt(int64(v))
		return price, "$" + price.StringFixed(2)
	default:
		return decimal.Zero, ""
	}
}

// stringifyValue renders a string-or-number field as a string
func stringifyValue(raw any) string {
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	case int:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}

// isInStock gates the add-to-cart action: only a falsy or zero stock value
// disables it.
func isInStock(stock string) bool {
	switch strings.ToLower(stock) {
	case "", "0", "out of stock", "false", "no":
		return false
	default:
		return true
	}
}

// pickImageURL unifies the three image-URL keys seen in the sheet
func pickImageURL(row domain.FeedRow) string {
	if row.ImageURL != "" {
		return row.ImageURL
	}
	if row.ImageURLAlt != "" {
		return row.ImageURLAlt
	}
	return row.DGURL
}

// categoryFromPath derives a display category from the hierarchical Path.
// The second path segment is the category; rows without one fall back to
// the storefront default.
func categoryFromPath(path, name string) string {
	if path == "" {
		return defaultCategory
	}

	trimmed := path
	// The path usually ends with the product name itself; cut it off so
	// only the hierarchy remains.
	if name != "" {
		if idx := strings.LastIndex(trimmed, name); idx > 0 {
			trimmed = trimmed[:idx]
		}
	}

	segments := multiSpace.Split(strings.TrimSpace(trimmed), -1)
	if len(segments) > 1 && segments[1] != "" {
		return segments[1]
	}

	return defaultCategory
}

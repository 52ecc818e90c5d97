package usecase

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strings"

	"github.com/eugeneleychenko/vyb-marine-demo/internal/domain"
)

// skuFilenamePattern matches catalog image filenames of the form
// "<token>__<digits>.<ext>"; the token is the SKU.
var skuFilenamePattern = regexp.MustCompile(`^(.+?)__\d+`)

// SkuExtractor derives a candidate SKU from an uploaded file's name and
// resolves it against the catalog.
type SkuExtractor struct {
	catalog domain.CatalogClient
}

// NewSkuExtractor creates a new extractor backed by the catalog
func NewSkuExtractor(catalog domain.CatalogClient) *SkuExtractor {
	return &SkuExtractor{catalog: catalog}
}

// Extract returns the SKU token embedded in a filename, or the filename
// with its extension stripped when the pattern is absent.
func (e *SkuExtractor) Extract(filename string) string {
	if m := skuFilenamePattern.FindStringSubmatch(filename); m != nil {
		return m[1]
	}
	if idx := strings.Index(filename, "."); idx >= 0 {
		return filename[:idx]
	}
	return filename
}

// Match extracts the SKU token and resolves it to catalog candidates:
// exact SKU match first, partial match as fallback. The first candidate is
// the display match; the full set backs the "multiple matches" state.
func (e *SkuExtractor) Match(ctx context.Context, filename string) (*domain.MatchSet, error) {
	token := e.Extract(filename)

	set := &domain.MatchSet{Token: token, Candidates: []domain.Product{}}

	exact, err := e.catalog.LookupBySKU(ctx, token)
	if err == nil {
		set.Best = exact
		set.Candidates = []domain.Product{*exact}
		return set, nil
	}
	if !errors.Is(err, domain.ErrProductNotFound) {
		return nil, err
	}

	candidates, err := e.catalog.FindBySKUPrefix(ctx, token)
	if err != nil {
		return nil, err
	}

	log.Printf("[UPLOAD] Extracted %q from %q: %d candidate(s)", token, filename, len(candidates))

	if len(candidates) > 0 {
		set.Best = &candidates[0]
		set.Candidates = candidates
	}
	return set, nil
}

package usecase

import (
	"context"
	"strings"

	"github.com/eugeneleychenko/vyb-marine-demo/internal/domain"
)

// stubCatalog is an in-memory CatalogClient for usecase tests
type stubCatalog struct {
	products []domain.Product
	err      error
}

func (s *stubCatalog) FetchCatalog(ctx context.Context) ([]domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.products, nil
}

func (s *stubCatalog) LookupBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	for i := range s.products {
		if s.products[i].SKU == sku {
			p := s.products[i]
			return &p, nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (s *stubCatalog) FindBySKUPrefix(ctx context.Context, sku string) ([]domain.Product, error) {
	if s.err != nil {
		return nil, s.err
	}
	prefix := sku
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}
	var matches []domain.Product
	for _, p := range s.products {
		if strings.Contains(p.SKU, sku) || (len(sku) > 3 && strings.Contains(p.SKU, prefix)) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

package usecase

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/eugeneleychenko/vyb-marine-demo/internal/domain"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Scoring weights for ranked search
const (
	fullQueryNameBonus = 10 // full query substring-matches the name
	exactMPNBonus      = 15 // manufacturer part number equals the query
	tokenNameWeight    = 5
	tokenDescWeight    = 2
	tokenMPNWeight     = 3
	minTokenLength     = 3 // shorter tokens are skipped
)

const defaultMaxResults = 5

// Sort orders accepted by FilterByKeyword
const (
	SortByRelevance = "relevance"
	SortByPrice     = "price"
	SortByName      = "name"
)

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	MaxResults         int
	EnableDebugLogging bool
}

// MatchingService ranks catalog products against free-text queries.
// Search and FilterByKeyword are deliberately separate operations: the
// voice tool surface exposes both semantics to the agent.
type MatchingService struct {
	catalog            domain.CatalogClient
	maxResults         int
	enableDebugLogging bool
	nameCollator       *collate.Collator
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(catalog domain.CatalogClient, config MatchConfig) *MatchingService {
	maxResults := config.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	return &MatchingService{
		catalog:            catalog,
		maxResults:         maxResults,
		enableDebugLogging: config.EnableDebugLogging,
		nameCollator:       collate.New(language.English, collate.IgnoreCase),
	}
}

// Search tokenizes the query on whitespace, scores every catalog product
// and returns the top results by descending score. Products scoring zero
// are excluded; ties keep original catalog order. An empty or unmatched
// query returns an empty result, never an error.
func (s *MatchingService) Search(ctx context.Context, query string) ([]domain.Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.Product{}, nil
	}

	products, err := s.catalog.FetchCatalog(ctx)
	if err != nil {
		return nil, err
	}

	queryLower := strings.ToLower(query)
	tokens := strings.Fields(queryLower)

	type scored struct {
		product domain.Product
		score   int
	}

	var results []scored
	for _, p := range products {
		score := scoreProduct(p, queryLower, tokens)
		if score > 0 {
			results = append(results, scored{product: p, score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	if len(results) > s.maxResults {
		results = results[:s.maxResults]
	}

	if s.enableDebugLogging {
		log.Printf("[MATCH] Search %q matched %d products", query, len(results))
	}

	ranked := make([]domain.Product, 0, len(results))
	for _, r := range results {
		ranked = append(ranked, r.product)
	}
	return ranked, nil
}

// scoreProduct computes the relevance score for a single product
func scoreProduct(p domain.Product, queryLower string, tokens []string) int {
	nameLower := strings.ToLower(p.Name)
	descLower := strings.ToLower(p.Description)
	mpnLower := strings.ToLower(p.MPN)

	score := 0
	if strings.Contains(nameLower, queryLower) {
		score += fullQueryNameBonus
	}
	if mpnLower == queryLower {
		score += exactMPNBonus
	}

	for _, token := range tokens {
		if len(token) < minTokenLength {
			continue
		}
		if strings.Contains(nameLower, token) {
			score += tokenNameWeight
		}
		if strings.Contains(descLower, token) {
			score += tokenDescWeight
		}
		if strings.Contains(mpnLower, token) {
			score += tokenMPNWeight
		}
	}

	return score
}

// FilterByKeyword matches the keyword against product names only, applies
// the requested sort order and truncates to maxResults (default 5).
func (s *MatchingService) FilterByKeyword(ctx context.Context, keyword string, maxResults int, sortBy string) ([]domain.Product, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []domain.Product{}, nil
	}

	products, err := s.catalog.FetchCatalog(ctx)
	if err != nil {
		return nil, err
	}

	keywordLower := strings.ToLower(keyword)

	var matches []domain.Product
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), keywordLower) {
			matches = append(matches, p)
		}
	}

	switch sortBy {
	case SortByPrice:
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Price.LessThan(matches[j].Price)
		})
	case SortByName:
		sort.SliceStable(matches, func(i, j int) bool {
			return s.nameCollator.CompareString(matches[i].Name, matches[j].Name) < 0
		})
	}

	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	if len(matches) > maxResults {
		matches = matches[:maxResults]
	}

	if s.enableDebugLogging {
		log.Printf("[MATCH] Filter %q (sort=%s) matched %d products", keyword, sortBy, len(matches))
	}

	if matches == nil {
		matches = []domain.Product{}
	}
	return matches, nil
}

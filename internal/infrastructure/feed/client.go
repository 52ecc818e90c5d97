package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/eugeneleychenko/vyb-marine-demo/internal/domain"
	"golang.org/x/time/rate"
)

const catalogCacheKey = "catalog:rows"

// Client fetches the spreadsheet-backed catalog feed and normalizes it
// into the canonical Product shape. The normalized catalog is cached for
// the session; a forced refresh is deliberately not provided.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	sheetPath   string
	cache       domain.CacheRepository
	cacheTTL    time.Duration
	rateLimiter *rate.Limiter
	debug       bool
}

// NewClient creates a new catalog feed client
func NewClient(baseURL, sheetPath string, cache domain.CacheRepository, cacheTTL time.Duration) *Client {
	// The sheet host is a free public service; keep request pressure low.
	limiter := rate.NewLimiter(rate.Limit(1), 5)

	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL:     strings.TrimRight(baseURL, "/"),
		sheetPath:   strings.Trim(sheetPath, "/"),
		cache:       cache,
		cacheTTL:    cacheTTL,
		rateLimiter: limiter,
	}
}

// SetDebug enables verbose request logging
func (c *Client) SetDebug(debug bool) {
	c.debug = debug
}

// exponentialBackoff returns the wait before the next retry attempt
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500<<(attempt-1)) * time.Millisecond
}

// doRequest executes an HTTP GET request with proper headers and error handling
func (c *Client) doRequest(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "vyb-marine-demo/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}

	return resp, nil
}

// FetchCatalog returns the normalized catalog. The first successful fetch
// of the session is cached; later calls are served from memory.
func (c *Client) FetchCatalog(ctx context.Context) ([]domain.Product, error) {
	if cached, err := c.cache.Get(ctx, catalogCacheKey); err == nil {
		if products, ok := cached.([]domain.Product); ok {
			if c.debug {
				log.Printf("[FEED] Serving %d products from session cache", len(products))
			}
			return products, nil
		}
	}

	reqURL := fmt.Sprintf("%s/%s", c.baseURL, c.sheetPath)

	// Retry transient failures; client errors fail fast.
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := c.doRequest(ctx, reqURL)
		if err != nil {
			log.Printf("[FEED] Request error (attempt %d): %v", attempt, err)
			lastErr = err
			time.Sleep(exponentialBackoff(attempt))
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			log.Printf("[FEED] Feed error (attempt %d) - Status: %d", attempt, resp.StatusCode)
			lastErr = fmt.Errorf("%w: status %d", domain.ErrNetwork, resp.StatusCode)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, lastErr
			}
			time.Sleep(exponentialBackoff(attempt))
			continue
		}

		var rows []domain.FeedRow
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("failed to decode feed: %w", err)
		}

		products := make([]domain.Product, 0, len(rows))
		for _, row := range rows {
			products = append(products, NormalizeRow(row))
		}

		log.Printf("[FEED] Fetched %d products from feed", len(products))

		if err := c.cache.Set(ctx, catalogCacheKey, products, c.cacheTTL); err != nil {
			log.Printf("[FEED] Failed to cache catalog: %v", err)
		}

		return products, nil
	}

	log.Printf("[FEED] All retries failed for %s", reqURL)
	return nil, lastErr
}

// LookupBySKU returns the product with an exactly matching SKU
func (c *Client) LookupBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	products, err := c.FetchCatalog(ctx)
	if err != nil {
		return nil, err
	}

	for i := range products {
		if products[i].SKU == sku {
			p := products[i]
			return &p, nil
		}
	}

	return nil, domain.ErrProductNotFound
}

// FindBySKUPrefix is the fallback partial match used after an exact lookup
// comes up empty: catalog SKUs containing the query, or its first 10
// characters when the query is longer than 3.
func (c *Client) FindBySKUPrefix(ctx context.Context, sku string) ([]domain.Product, error) {
	products, err := c.FetchCatalog(ctx)
	if err != nil {
		return nil, err
	}

	prefix := sku
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}

	var matches []domain.Product
	for _, p := range products {
		if strings.Contains(p.SKU, sku) || (len(sku) > 3 && strings.Contains(p.SKU, prefix)) {
			matches = append(matches, p)
		}
	}

	return matches, nil
}

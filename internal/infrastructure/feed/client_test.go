package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/eugeneleychenko/vyb-marine-demo/internal/domain"
	"github.com/eugeneleychenko/vyb-marine-demo/internal/infrastructure/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const feedBody = `[
  {"SKU":"A1","Name":"Bilge Pump","Price":"$49.99","Stock":"3","Description":"Submersible bilge pump","MPN":"BP-500","Image URL":"https://img.example/A1__1.jpg","Links":"https://shop.example/A1","Path":"Home  Pumps  Bilge Pump"},
  {"SKU":"B2","Name":"Impeller","Price":19.99,"Stock":0,"Description":"Replacement impeller","MPN":"IMP-12","DG URL":"https://img.example/B2__1.jpg"}
]`

func newTestClient(serverURL string) *Client {
	return NewClient(serverURL, "sheet/1", cache.NewMemoryCache(), time.Hour)
}

func TestNewClient(t *testing.T) {
	client := newTestClient("https://feed.example")

	assert.NotNil(t, client)
	assert.Equal(t, "https://feed.example", client.baseURL)
	assert.Equal(t, "sheet/1", client.sheetPath)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.rateLimiter)
	assert.False(t, client.debug)
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1000 * time.Millisecond},
		{3, 2000 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			assert.Equal(t, tt.expected, exponentialBackoff(tt.attempt))
		})
	}
}

func TestFetchCatalog_Success(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		assert.Equal(t, "/sheet/1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(feedBody))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	products, err := client.FetchCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, "A1", products[0].SKU)
	assert.Equal(t, "49.99", products[0].Price.String())
	assert.True(t, products[0].InStock)
	assert.Equal(t, "https://img.example/A1__1.jpg", products[0].ImageURL)

	assert.Equal(t, "B2", products[1].SKU)
	assert.False(t, products[1].InStock)
	assert.Equal(t, "https://img.example/B2__1.jpg", products[1].ImageURL)

	// Second call is served from the session cache
	_, err = client.FetchCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, requests)
}

func TestFetchCatalog_ClientErrorFailsFast(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.FetchCatalog(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Equal(t, 1, requests)
}

func TestFetchCatalog_RetriesServerErrors(t *testing.T) {
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if requests < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(feedBody))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	products, err := client.FetchCatalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.Equal(t, 3, requests)
}

func TestFetchCatalog_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"not":"an array"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	_, err := client.FetchCatalog(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode feed")
}

func TestLookupBySKU(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedBody))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	t.Run("exact match", func(t *testing.T) {
		product, err := client.LookupBySKU(ctx, "A1")
		require.NoError(t, err)
		assert.Equal(t, "Bilge Pump", product.Name)
	})

	t.Run("miss", func(t *testing.T) {
		_, err := client.LookupBySKU(ctx, "ZZ")
		assert.ErrorIs(t, err, domain.ErrProductNotFound)
	})
}

func TestFindBySKUPrefix(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
  {"SKU":"18-3200-T-KIT","Name":"Water Pump Kit"},
  {"SKU":"18-3200-T-HSG","Name":"Water Pump Housing"},
  {"SKU":"FF-3","Name":"Fuel Filter"}
]`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	t.Run("contains match", func(t *testing.T) {
		matches, err := client.FindBySKUPrefix(ctx, "FF-3")
		require.NoError(t, err)
		require.Len(t, matches, 1)
		assert.Equal(t, "FF-3", matches[0].SKU)
	})

	t.Run("first ten characters fallback", func(t *testing.T) {
		matches, err := client.FindBySKUPrefix(ctx, "18-3200-T-X")
		require.NoError(t, err)
		assert.Len(t, matches, 2)
	})

	t.Run("no match", func(t *testing.T) {
		matches, err := client.FindBySKUPrefix(ctx, "unknown-part")
		require.NoError(t, err)
		assert.Empty(t, matches)
	})
}

package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/eugeneleychenko/vyb-marine-demo/config"
	"github.com/eugeneleychenko/vyb-marine-demo/internal/domain"
	"github.com/eugeneleychenko/vyb-marine-demo/internal/eventbus"
	"github.com/eugeneleychenko/vyb-marine-demo/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)

	os.Exit(m.Run())
}

// testEnv wires real services over stub infrastructure so handlers are
// exercised end to end through the router.
type testEnv struct {
	router *gin.Engine
	bus    *eventbus.Bus
	cart   *usecase.CartService
}

func setupTestEnv() *testEnv {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:*"},
		},
	}

	catalog := newStubCatalog()
	bus := eventbus.New()
	cart := usecase.NewCartService(bus)
	matcher := usecase.NewMatchingService(catalog, usecase.MatchConfig{MaxResults: 5})
	extractor := usecase.NewSkuExtractor(catalog)
	sessions := usecase.NewVoiceSessionManager(
		stubSigner{},
		stubDialer{},
		grantedMicrophone{},
		catalog,
		matcher,
		bus,
		usecase.VoiceSessionConfig{AgentID: "agent-test", Debounce: time.Millisecond},
	)

	handler := NewHandler(catalog, cart, matcher, extractor, sessions, bus)
	return &testEnv{
		router: SetupRouter(cfg, handler),
		bus:    bus,
		cart:   cart,
	}
}

func doJSON(t *testing.T, env *testEnv, method, path, payload string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var body *strings.Reader
	if payload == "" {
		body = strings.NewReader("")
	} else {
		body = strings.NewReader(payload)
	}

	req, err := http.NewRequest(method, path, body)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	var response map[string]interface{}
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Fatalf("response is not valid JSON: %v (body: %s)", err, w.Body.String())
		}
	}
	return w, response
}

func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		env := setupTestEnv()

		w, response := doJSON(t, env, "GET", "/health", "")

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response["status"] != "healthy" {
			t.Errorf("status = %v, want healthy", response["status"])
		}
		if response["service"] != "marine-demo-backend" {
			t.Errorf("service = %v, want marine-demo-backend", response["service"])
		}
	})
}

func TestProductEndpoints(t *testing.T) {
	t.Run("lists the full catalog", func(t *testing.T) {
		env := setupTestEnv()

		w, response := doJSON(t, env, "GET", "/api/v1/products", "")

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response["count"] != float64(3) {
			t.Errorf("count = %v, want 3", response["count"])
		}
	})

	t.Run("returns a product by SKU", func(t *testing.T) {
		env := setupTestEnv()

		w, response := doJSON(t, env, "GET", "/api/v1/products/IMP-500", "")

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response["name"] != "Water Pump Impeller Kit" {
			t.Errorf("name = %v, want Water Pump Impeller Kit", response["name"])
		}
	})

	t.Run("returns 404 for unknown SKU", func(t *testing.T) {
		env := setupTestEnv()

		w, _ := doJSON(t, env, "GET", "/api/v1/products/NO-SUCH-SKU", "")

		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("ranked search returns best match first", func(t *testing.T) {
		env := setupTestEnv()

		w, response := doJSON(t, env, "POST", "/api/v1/products/search", `{"query":"impeller"}`)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		products, ok := response["products"].([]interface{})
		if !ok || len(products) == 0 {
			t.Fatalf("products = %v, want non-empty list", response["products"])
		}
		first := products[0].(map[string]interface{})
		if first["sku"] != "IMP-500" {
			t.Errorf("first result sku = %v, want IMP-500", first["sku"])
		}
	})

	t.Run("search requires a query", func(t *testing.T) {
		env := setupTestEnv()

		w, _ := doJSON(t, env, "POST", "/api/v1/products/search", `{}`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("filter publishes the result set on the carousel topic", func(t *testing.T) {
		env := setupTestEnv()

		var published []domain.Product
		env.bus.Subscribe(eventbus.TopicShowProductCarousel, func(ev eventbus.Event) {
			if products, ok := ev.Payload.([]domain.Product); ok {
				published = products
			}
		})

		w, response := doJSON(t, env, "POST", "/api/v1/products/filter", `{"keyword":"pump"}`)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response["count"] != float64(2) {
			t.Errorf("count = %v, want 2", response["count"])
		}
		if len(published) != 2 {
			t.Errorf("carousel payload has %d products, want 2", len(published))
		}
	})

	t.Run("filter with no matches publishes the clear topic", func(t *testing.T) {
		env := setupTestEnv()

		cleared := false
		env.bus.Subscribe(eventbus.TopicClearFilteredResults, func(ev eventbus.Event) {
			cleared = true
		})

		w, response := doJSON(t, env, "POST", "/api/v1/products/filter", `{"keyword":"propeller"}`)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response["count"] != float64(0) {
			t.Errorf("count = %v, want 0", response["count"])
		}
		if !cleared {
			t.Error("clear topic was not published for an empty result set")
		}
	})
}

func TestCartEndpoints(t *testing.T) {
	t.Run("starts empty", func(t *testing.T) {
		env := setupTestEnv()

		w, response := doJSON(t, env, "GET", "/api/v1/cart", "")

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response["itemCount"] != float64(0) {
			t.Errorf("itemCount = %v, want 0", response["itemCount"])
		}
	})

	t.Run("adds an item and signals the cart drawer", func(t *testing.T) {
		env := setupTestEnv()

		opened := false
		env.bus.Subscribe(eventbus.TopicCartOpened, func(ev eventbus.Event) {
			opened = true
		})

		w, response := doJSON(t, env, "POST", "/api/v1/cart/items", `{"sku":"IMP-500","quantity":2}`)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response["itemCount"] != float64(2) {
			t.Errorf("itemCount = %v, want 2", response["itemCount"])
		}
		if !opened {
			t.Error("cart opened signal did not fire after the add")
		}
	})

	t.Run("rejects out-of-stock products", func(t *testing.T) {
		env := setupTestEnv()

		w, _ := doJSON(t, env, "POST", "/api/v1/cart/items", `{"sku":"ANCHOR-22"}`)

		if w.Code != http.StatusConflict {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusConflict)
		}
		if env.cart.ItemCount() != 0 {
			t.Errorf("ItemCount = %d, want 0 after rejected add", env.cart.ItemCount())
		}
	})

	t.Run("returns 404 for unknown SKU", func(t *testing.T) {
		env := setupTestEnv()

		w, _ := doJSON(t, env, "POST", "/api/v1/cart/items", `{"sku":"NO-SUCH-SKU"}`)

		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("updates a line item quantity", func(t *testing.T) {
		env := setupTestEnv()

		doJSON(t, env, "POST", "/api/v1/cart/items", `{"sku":"IMP-500","quantity":1}`)
		w, response := doJSON(t, env, "PATCH", "/api/v1/cart/items/IMP-500", `{"quantity":4}`)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response["itemCount"] != float64(4) {
			t.Errorf("itemCount = %v, want 4", response["itemCount"])
		}
	})

	t.Run("explicit zero quantity is a no-op, not a validation failure", func(t *testing.T) {
		env := setupTestEnv()

		doJSON(t, env, "POST", "/api/v1/cart/items", `{"sku":"IMP-500","quantity":2}`)
		w, response := doJSON(t, env, "PATCH", "/api/v1/cart/items/IMP-500", `{"quantity":0}`)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response["itemCount"] != float64(2) {
			t.Errorf("itemCount = %v, want 2 (unchanged)", response["itemCount"])
		}
	})

	t.Run("negative quantity is a no-op", func(t *testing.T) {
		env := setupTestEnv()

		doJSON(t, env, "POST", "/api/v1/cart/items", `{"sku":"IMP-500","quantity":2}`)
		w, response := doJSON(t, env, "PATCH", "/api/v1/cart/items/IMP-500", `{"quantity":-2}`)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response["itemCount"] != float64(2) {
			t.Errorf("itemCount = %v, want 2 (unchanged)", response["itemCount"])
		}
	})

	t.Run("update without a quantity is rejected", func(t *testing.T) {
		env := setupTestEnv()

		w, _ := doJSON(t, env, "PATCH", "/api/v1/cart/items/IMP-500", `{}`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})

	t.Run("removes a line item", func(t *testing.T) {
		env := setupTestEnv()

		doJSON(t, env, "POST", "/api/v1/cart/items", `{"sku":"IMP-500"}`)
		w, _ := doJSON(t, env, "DELETE", "/api/v1/cart/items/IMP-500", "")

		if w.Code != http.StatusNoContent {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNoContent)
		}
		if env.cart.ItemCount() != 0 {
			t.Errorf("ItemCount = %d, want 0 after remove", env.cart.ItemCount())
		}
	})

	t.Run("removing an absent item still succeeds", func(t *testing.T) {
		env := setupTestEnv()

		w, _ := doJSON(t, env, "DELETE", "/api/v1/cart/items/NO-SUCH-SKU", "")

		if w.Code != http.StatusNoContent {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNoContent)
		}
	})
}

func TestUploadMatchEndpoint(t *testing.T) {
	t.Run("matches a SKU-named upload exactly", func(t *testing.T) {
		env := setupTestEnv()

		w, response := doJSON(t, env, "POST", "/api/v1/uploads/match", `{"filename":"IMP-500__2.jpg"}`)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response["token"] != "IMP-500" {
			t.Errorf("token = %v, want IMP-500", response["token"])
		}
		best, ok := response["best"].(map[string]interface{})
		if !ok {
			t.Fatalf("best = %v, want a product", response["best"])
		}
		if best["sku"] != "IMP-500" {
			t.Errorf("best.sku = %v, want IMP-500", best["sku"])
		}
	})

	t.Run("returns empty candidates when nothing matches", func(t *testing.T) {
		env := setupTestEnv()

		w, response := doJSON(t, env, "POST", "/api/v1/uploads/match", `{"filename":"vacation-photo.jpg"}`)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response["best"] != nil {
			t.Errorf("best = %v, want nil", response["best"])
		}
		candidates, ok := response["candidates"].([]interface{})
		if !ok || len(candidates) != 0 {
			t.Errorf("candidates = %v, want empty list", response["candidates"])
		}
	})

	t.Run("requires a filename", func(t *testing.T) {
		env := setupTestEnv()

		w, _ := doJSON(t, env, "POST", "/api/v1/uploads/match", `{}`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestVoiceSessionEndpoints(t *testing.T) {
	startSession := func(t *testing.T, env *testEnv) string {
		t.Helper()

		w, response := doJSON(t, env, "POST", "/api/v1/voice/sessions", "")
		if w.Code != http.StatusAccepted {
			t.Fatalf("Status = %d, want %d (body: %v)", w.Code, http.StatusAccepted, response)
		}
		id, ok := response["sessionId"].(string)
		if !ok || id == "" {
			t.Fatalf("sessionId = %v, want non-empty string", response["sessionId"])
		}
		return id
	}

	t.Run("starts a session and reports it connected", func(t *testing.T) {
		env := setupTestEnv()

		w, response := doJSON(t, env, "POST", "/api/v1/voice/sessions", "")

		if w.Code != http.StatusAccepted {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusAccepted)
		}
		if response["state"] != "connected" {
			t.Errorf("state = %v, want connected", response["state"])
		}
	})

	t.Run("reports session state by id", func(t *testing.T) {
		env := setupTestEnv()
		id := startSession(t, env)

		w, response := doJSON(t, env, "GET", "/api/v1/voice/sessions/"+id, "")

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response["state"] != "connected" {
			t.Errorf("state = %v, want connected", response["state"])
		}
	})

	t.Run("returns 404 for unknown session", func(t *testing.T) {
		env := setupTestEnv()

		w, _ := doJSON(t, env, "GET", "/api/v1/voice/sessions/not-a-session", "")

		if w.Code != http.StatusNotFound {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("ends a session", func(t *testing.T) {
		env := setupTestEnv()
		id := startSession(t, env)

		w, _ := doJSON(t, env, "DELETE", "/api/v1/voice/sessions/"+id, "")
		if w.Code != http.StatusNoContent {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusNoContent)
		}

		_, response := doJSON(t, env, "GET", "/api/v1/voice/sessions/"+id, "")
		if response["state"] != "idle" {
			t.Errorf("state after end = %v, want idle", response["state"])
		}
	})

	t.Run("dispatches a search tool call", func(t *testing.T) {
		env := setupTestEnv()
		id := startSession(t, env)

		w, response := doJSON(t, env, "POST", "/api/v1/voice/sessions/"+id+"/tool-calls",
			`{"tool":"searchProducts","params":{"query":"bilge pump"}}`)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response["success"] != true {
			t.Errorf("success = %v, want true", response["success"])
		}
		if response["count"] == nil {
			t.Error("expected count field in search result")
		}
	})

	t.Run("malformed tool call resolves to a structured failure", func(t *testing.T) {
		env := setupTestEnv()
		id := startSession(t, env)

		w, response := doJSON(t, env, "POST", "/api/v1/voice/sessions/"+id+"/tool-calls",
			`{"tool":"addToCart","params":{"quantity":2}}`)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response["success"] != false {
			t.Errorf("success = %v, want false", response["success"])
		}
		if response["message"] != "Failed to add product to cart. Missing product ID." {
			t.Errorf("message = %v, want missing product ID failure", response["message"])
		}
	})

	t.Run("tool call adds to the shared cart", func(t *testing.T) {
		env := setupTestEnv()
		id := startSession(t, env)

		w, response := doJSON(t, env, "POST", "/api/v1/voice/sessions/"+id+"/tool-calls",
			`{"tool":"addToCart","params":{"productId":"BP-1100","quantity":3}}`)

		if w.Code != http.StatusOK {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusOK)
		}
		if response["success"] != true {
			t.Errorf("success = %v, want true (message: %v)", response["success"], response["message"])
		}
		if env.cart.ItemCount() != 3 {
			t.Errorf("ItemCount = %d, want 3 after voice add", env.cart.ItemCount())
		}
	})

	t.Run("tool call requires a tool name", func(t *testing.T) {
		env := setupTestEnv()
		id := startSession(t, env)

		w, _ := doJSON(t, env, "POST", "/api/v1/voice/sessions/"+id+"/tool-calls", `{"params":{}}`)

		if w.Code != http.StatusBadRequest {
			t.Errorf("Status = %d, want %d", w.Code, http.StatusBadRequest)
		}
	})
}

func TestCORSIntegration(t *testing.T) {
	t.Run("allows wildcard localhost origins", func(t *testing.T) {
		env := setupTestEnv()

		req, _ := http.NewRequest("GET", "/health", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()

		env.router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
			t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:5173")
		}
	})

	t.Run("ignores unlisted origins", func(t *testing.T) {
		env := setupTestEnv()

		req, _ := http.NewRequest("GET", "/health", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		w := httptest.NewRecorder()

		env.router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
		}
	})
}

// --- Stub implementations for wiring the router under test ---

type stubCatalog struct {
	products []domain.Product
}

func newStubCatalog() *stubCatalog {
	return &stubCatalog{
		products: []domain.Product{
			{
				SKU:          "IMP-500",
				Name:         "Water Pump Impeller Kit",
				Price:        decimal.NewFromFloat(49.99),
				PriceDisplay: "$49.99",
				Stock:        "12",
				InStock:      true,
				Description:  "Replacement impeller kit for outboard water pumps",
				MPN:          "18-3233",
			},
			{
				SKU:          "BP-1100",
				Name:         "Bilge Pump 1100 GPH",
				Price:        decimal.NewFromFloat(89.50),
				PriceDisplay: "$89.50",
				Stock:        "4",
				InStock:      true,
				Description:  "Submersible bilge pump, 12V",
				MPN:          "BP1100-12",
			},
			{
				SKU:          "ANCHOR-22",
				Name:         "Fluke Anchor 22lb",
				Price:        decimal.NewFromFloat(120.00),
				PriceDisplay: "$120.00",
				Stock:        "",
				InStock:      false,
				Description:  "Galvanized fluke anchor for sand and mud bottoms",
			},
		},
	}
}

func (s *stubCatalog) FetchCatalog(ctx context.Context) ([]domain.Product, error) {
	return s.products, nil
}

func (s *stubCatalog) LookupBySKU(ctx context.Context, sku string) (*domain.Product, error) {
	for i := range s.products {
		if s.products[i].SKU == sku {
			return &s.products[i], nil
		}
	}
	return nil, domain.ErrProductNotFound
}

func (s *stubCatalog) FindBySKUPrefix(ctx context.Context, sku string) ([]domain.Product, error) {
	prefix := sku
	if len(prefix) > 10 {
		prefix = prefix[:10]
	}

	matches := []domain.Product{}
	for _, p := range s.products {
		if strings.Contains(p.SKU, sku) || (len(sku) > 3 && strings.Contains(p.SKU, prefix)) {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

type stubSigner struct{}

func (stubSigner) SignedURL(ctx context.Context, agentID string) (string, error) {
	return "wss://example.test/session", nil
}

type grantedMicrophone struct{}

func (grantedMicrophone) Acquire(ctx context.Context) error { return nil }

type stubConn struct{}

func (stubConn) Close(ctx context.Context) error { return nil }

type stubDialer struct{}

func (stubDialer) Dial(ctx context.Context, signedURL string, overrides domain.SessionOverrides, cb domain.RealtimeCallbacks) (domain.RealtimeConn, error) {
	if cb.OnConnect != nil {
		cb.OnConnect()
	}
	return stubConn{}, nil
}

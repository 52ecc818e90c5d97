package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/eugeneleychenko/vyb-marine-demo/internal/domain"
	"github.com/eugeneleychenko/vyb-marine-demo/internal/eventbus"
	"github.com/eugeneleychenko/vyb-marine-demo/internal/usecase"
	"github.com/gin-gonic/gin"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	catalog   domain.CatalogClient
	cart      *usecase.CartService
	matcher   *usecase.MatchingService
	extractor *usecase.SkuExtractor
	sessions  *usecase.VoiceSessionManager
	bus       *eventbus.Bus
}

// NewHandler creates a new HTTP handler
func NewHandler(
	catalog domain.CatalogClient,
	cart *usecase.CartService,
	matcher *usecase.MatchingService,
	extractor *usecase.SkuExtractor,
	sessions *usecase.VoiceSessionManager,
	bus *eventbus.Bus,
) *Handler {
	return &Handler{
		catalog:   catalog,
		cart:      cart,
		matcher:   matcher,
		extractor: extractor,
		sessions:  sessions,
		bus:       bus,
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "marine-demo-backend",
		"version": "1.0.0",
	})
}

// ListProducts returns the full normalized catalog
func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.catalog.FetchCatalog(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    len(products),
		"products": products,
	})
}

// GetProduct returns a single product by exact SKU
func (h *Handler) GetProduct(c *gin.Context) {
	product, err := h.catalog.LookupBySKU(c.Request.Context(), c.Param("sku"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

type searchRequest struct {
	Query string `json:"query" binding:"required"`
}

// SearchProducts returns ranked search results for a free-text query
func (h *Handler) SearchProducts(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	results, err := h.matcher.Search(c.Request.Context(), req.Query)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    len(results),
		"products": results,
	})
}

type filterRequest struct {
	Keyword    string `json:"keyword" binding:"required"`
	MaxResults int    `json:"maxResults"`
	SortBy     string `json:"sortBy"`
}

// FilterProducts filters the catalog by name keyword, publishes the result
// set on the carousel topic and returns it
func (h *Handler) FilterProducts(c *gin.Context) {
	var req filterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "keyword is required"})
		return
	}

	matches, err := h.matcher.FilterByKeyword(c.Request.Context(), req.Keyword, req.MaxResults, req.SortBy)
	if err != nil {
		respondError(c, err)
		return
	}

	if len(matches) > 0 {
		h.bus.Publish(eventbus.TopicShowProductCarousel, matches)
	} else {
		h.bus.Publish(eventbus.TopicClearFilteredResults, nil)
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    len(matches),
		"products": matches,
	})
}

// GetCart returns the cart contents, total and badge count
func (h *Handler) GetCart(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"items":     h.cart.Items(),
		"total":     h.cart.Total(),
		"itemCount": h.cart.ItemCount(),
	})
}

type addCartItemRequest struct {
	SKU      string `json:"sku" binding:"required"`
	Quantity int    `json:"quantity"`
}

// AddCartItem resolves a SKU and adds it to the cart. The add is published
// on the bus so the cart-opened signal fires exactly as it does for voice
// adds.
func (h *Handler) AddCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sku is required"})
		return
	}

	product, err := h.catalog.LookupBySKU(c.Request.Context(), req.SKU)
	if err != nil {
		respondError(c, err)
		return
	}

	if !product.InStock {
		c.JSON(http.StatusConflict, gin.H{"error": "product is out of stock"})
		return
	}

	quantity := req.Quantity
	if quantity < 1 {
		quantity = 1
	}

	h.bus.Publish(eventbus.TopicCartAddItem, domain.CartAddItem{Product: *product, Quantity: quantity})

	c.JSON(http.StatusOK, gin.H{
		"items":     h.cart.Items(),
		"total":     h.cart.Total(),
		"itemCount": h.cart.ItemCount(),
	})
}

// Quantity is bound as a pointer so an explicit zero survives validation;
// the cart treats sub-1 values as a no-op.
type updateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// UpdateCartItem sets the quantity of an existing line item. Quantities
// below 1 leave the cart unchanged.
func (h *Handler) UpdateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity is required"})
		return
	}

	h.cart.UpdateQuantity(c.Param("sku"), *req.Quantity)

	c.JSON(http.StatusOK, gin.H{
		"items":     h.cart.Items(),
		"total":     h.cart.Total(),
		"itemCount": h.cart.ItemCount(),
	})
}

// RemoveCartItem deletes a line item. Removing an absent SKU still
// succeeds.
func (h *Handler) RemoveCartItem(c *gin.Context) {
	h.cart.Remove(c.Param("sku"))
	c.Status(http.StatusNoContent)
}

type uploadMatchRequest struct {
	Filename string `json:"filename" binding:"required"`
}

// MatchUpload extracts a SKU token from an uploaded file's name and
// returns the catalog candidates
func (h *Handler) MatchUpload(c *gin.Context) {
	var req uploadMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename is required"})
		return
	}

	set, err := h.extractor.Match(c.Request.Context(), req.Filename)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, set)
}

type startSessionRequest struct {
	ProductSKU string `json:"productSku"`
}

// StartVoiceSession begins a voice session, optionally focused on a
// product. Starting while a session is already active returns the active
// session.
func (h *Handler) StartVoiceSession(c *gin.Context) {
	var req startSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	session, err := h.sessions.Start(c.Request.Context(), req.ProductSKU)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, domain.ErrPermissionDenied):
			status = http.StatusForbidden
		case errors.Is(err, domain.ErrAuth):
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{
			"sessionId": session.ID,
			"state":     session.State(),
			"error":     err.Error(),
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"sessionId": session.ID,
		"state":     session.State(),
	})
}

// GetVoiceSession reports the state of a session
func (h *Handler) GetVoiceSession(c *gin.Context) {
	session, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"sessionId": session.ID,
		"state":     session.State(),
	}
	if sessErr := session.Err(); sessErr != nil {
		resp["error"] = sessErr.Error()
	}
	if p := session.FocusedProduct(); p != nil {
		resp["focusedProduct"] = p
	}
	c.JSON(http.StatusOK, resp)
}

// EndVoiceSession ends a session. Ending an already-idle session succeeds.
func (h *Handler) EndVoiceSession(c *gin.Context) {
	if err := h.sessions.End(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DispatchToolCall relays an inbound tool call to a session. The response
// is always a structured result; malformed parameters surface inside it.
func (h *Handler) DispatchToolCall(c *gin.Context) {
	var call domain.ToolCall
	if err := c.ShouldBindJSON(&call); err != nil || call.Tool == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tool is required"})
		return
	}

	result, err := h.sessions.HandleToolCall(c.Request.Context(), c.Param("id"), call)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// StreamEvents subscribes the client to every bus publish as SSE frames so
// detached UI surfaces (carousel, cart drawer, upload drawer) can react
// without holding references to the producers.
func (h *Handler) StreamEvents(c *gin.Context) {
	events := make(chan eventbus.Event, 16)
	unsubscribe := h.bus.SubscribeAll(func(ev eventbus.Event) {
		select {
		case events <- ev:
		default:
			// Slow consumer: drop rather than block the publisher.
		}
	})
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev := <-events:
			c.SSEvent(ev.Topic, ev.Payload)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// respondError maps the domain error taxonomy to HTTP statuses
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrProductNotFound), errors.Is(err, domain.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrToolValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrAuth):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNetwork):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eugeneleychenko/vyb-marine-demo/internal/domain"
	"github.com/eugeneleychenko/vyb-marine-demo/internal/eventbus"
	"github.com/google/uuid"
)

// Tool names accepted from the realtime session
const (
	ToolSearchProducts  = "searchProducts"
	ToolFilterProducts  = "filterProducts"
	ToolAddToCart       = "addToCart"
	ToolOpenImageUpload = "openImageUpload"
)

const (
	defaultDebounce     = 300 * time.Millisecond
	summaryDescLimit    = 100
	defaultFirstMessage = "Hey, thanks for coming to Lighthouse Marine Supply. Can I help you find something or do you have an image of the product that you want to replace?"
)

// VoiceSessionConfig holds configuration for voice sessions
type VoiceSessionConfig struct {
	AgentID      string
	Debounce     time.Duration
	FirstMessage string
}

// VoiceSession is one conversational session against the speech backend,
// driven by an explicit state variable and a single transition path:
//
//	Idle -> Connecting -> Connected <-> (Speaking | Listening)
//	Connected -> Disconnecting -> Idle
//
// with Errored reachable from Connecting or Connected. All the scattered
// started/loading/attempted flags of a naive implementation collapse into
// the state plus one connection-attempted guard.
type VoiceSession struct {
	ID      string
	focused *domain.Product

	mu           sync.Mutex
	state        domain.SessionState
	attempted    bool
	endRequested bool
	lastErr      error
	conn         domain.RealtimeConn
	cancelWait   chan struct{}

	deps sessionDeps
	cfg  VoiceSessionConfig
}

type sessionDeps struct {
	signer  domain.SignedURLProvider
	dialer  domain.RealtimeDialer
	mic     domain.Microphone
	catalog domain.CatalogClient
	matcher *MatchingService
	bus     *eventbus.Bus
}

// State returns the current session state
func (s *VoiceSession) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that moved the session into Errored, if any
func (s *VoiceSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// FocusedProduct returns the product this session was started around
func (s *VoiceSession) FocusedProduct() *domain.Product {
	return s.focused
}

// Start connects the session. A start while already Connecting or
// Connected is a no-op; a short debounce absorbs rapid activate/deactivate
// flicker before committing to a connection attempt.
func (s *VoiceSession) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.attempted || (s.state != domain.StateIdle && s.state != domain.StateErrored) {
		s.mu.Unlock()
		log.Printf("[VOICE] Start on session %s ignored (state=%s)", s.ID, s.state)
		return nil
	}
	s.attempted = true
	s.endRequested = false
	s.lastErr = nil
	s.state = domain.StateConnecting
	cancel := make(chan struct{})
	s.cancelWait = cancel
	s.mu.Unlock()

	debounce := s.cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	select {
	case <-time.After(debounce):
	case <-cancel:
		s.resetToIdle()
		return nil
	case <-ctx.Done():
		s.resetToIdle()
		return ctx.Err()
	}

	if err := s.deps.mic.Acquire(ctx); err != nil {
		// Aborted before anything was opened: straight back to Idle so a
		// retry is possible once permission is granted.
		s.resetToIdle()
		return fmt.Errorf("%w: %v", domain.ErrPermissionDenied, err)
	}

	signedURL, err := s.deps.signer.SignedURL(ctx, s.cfg.AgentID)
	if err != nil {
		s.fail(err)
		return err
	}

	overrides := s.buildOverrides()

	conn, err := s.deps.dialer.Dial(ctx, signedURL, overrides, domain.RealtimeCallbacks{
		OnConnect:    s.handleConnect,
		OnDisconnect: s.handleDisconnect,
		OnError:      s.handleError,
		OnModeChange: s.handleModeChange,
	})
	if err != nil {
		s.fail(err)
		return err
	}

	// End may have raced the handshake: a connection landing on a session
	// that is no longer live must be closed, not stored, or the agent
	// session outlives the user's End.
	s.mu.Lock()
	live := !s.endRequested
	switch s.state {
	case domain.StateConnecting, domain.StateConnected, domain.StateSpeaking, domain.StateListening:
	default:
		live = false
	}
	if !live {
		s.mu.Unlock()
		log.Printf("[VOICE] Session %s ended during connect; closing connection", s.ID)
		if err := conn.Close(ctx); err != nil {
			log.Printf("[VOICE] Error closing session %s: %v", s.ID, err)
		}
		return nil
	}
	s.conn = conn
	s.mu.Unlock()

	log.Printf("[VOICE] Session %s connecting", s.ID)
	return nil
}

// End disconnects the session. Ending a session that never started is a
// no-op, so rapid toggling and unmount cleanup are both safe.
func (s *VoiceSession) End(ctx context.Context) error {
	s.mu.Lock()
	if s.cancelWait != nil {
		close(s.cancelWait)
		s.cancelWait = nil
	}

	switch s.state {
	case domain.StateIdle, domain.StateDisconnecting:
		s.attempted = false
		s.mu.Unlock()
		return nil
	case domain.StateErrored:
		s.state = domain.StateIdle
		s.attempted = false
		s.mu.Unlock()
		return nil
	}

	s.endRequested = true
	s.state = domain.StateDisconnecting
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(ctx); err != nil {
			log.Printf("[VOICE] Error closing session %s: %v", s.ID, err)
		}
	}

	// The disconnect callback normally completes the transition; if the
	// transport never calls back we still settle in Idle.
	s.mu.Lock()
	if s.state == domain.StateDisconnecting {
		s.state = domain.StateIdle
		s.attempted = false
	}
	s.mu.Unlock()

	log.Printf("[VOICE] Session %s ended", s.ID)
	return nil
}

func (s *VoiceSession) resetToIdle() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = domain.StateIdle
	s.attempted = false
	s.cancelWait = nil
}

func (s *VoiceSession) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = domain.StateErrored
	s.lastErr = err
	s.attempted = false
	s.cancelWait = nil
	log.Printf("[VOICE] Session %s errored: %v", s.ID, err)
}

func (s *VoiceSession) handleConnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == domain.StateConnecting {
		s.state = domain.StateConnected
		log.Printf("[VOICE] Session %s connected", s.ID)
	}
}

// handleDisconnect returns the session to Idle. An unexpected disconnect
// (no End requested) is treated the same way: reconnection is a manual
// user action, never automatic.
func (s *VoiceSession) handleDisconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.endRequested {
		log.Printf("[VOICE] Session %s disconnected unexpectedly", s.ID)
	}
	if s.state != domain.StateErrored {
		s.state = domain.StateIdle
	}
	s.attempted = false
	s.conn = nil
}

func (s *VoiceSession) handleError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case domain.StateConnecting, domain.StateConnected, domain.StateSpeaking, domain.StateListening:
		s.state = domain.StateErrored
		s.lastErr = err
		s.attempted = false
		log.Printf("[VOICE] Session %s errored: %v", s.ID, err)
	}
}

func (s *VoiceSession) handleModeChange(mode string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case domain.StateConnected, domain.StateSpeaking, domain.StateListening:
	default:
		return
	}

	switch mode {
	case "speaking":
		s.state = domain.StateSpeaking
	case "listening":
		s.state = domain.StateListening
	}
}

// buildOverrides assembles the context payload: a product-specific prompt
// when a product is in focus, a general shopping-assistant prompt
// otherwise.
func (s *VoiceSession) buildOverrides() domain.SessionOverrides {
	firstMessage := s.cfg.FirstMessage
	if firstMessage == "" {
		firstMessage = defaultFirstMessage
	}

	var promptPayload any
	if s.focused != nil {
		p := s.focused
		firstMessage = fmt.Sprintf("I see you're looking at the %s. How can I help you with this product?", p.Name)
		promptPayload = map[string]any{
			"product": p,
			"context": fmt.Sprintf(`The user is viewing a marine part with the following details:
- Name: %s
- SKU: %s
- Price: %s
- Stock: %s
- Description: %s

You are a helpful marine parts assistant. Answer questions about this specific product using the provided information.
If the user asks something not related to this product, you can still help, but remind them which product they're currently viewing.

If asked about compatibility, delivery times, or other information not in the product details, let them know you can only provide information based on what's in the product description.`,
				p.Name, p.SKU, p.PriceDisplay, orDefault(p.Stock, "Not specified"), p.Description),
		}
	} else {
		promptPayload = map[string]any{
			"context": `You are a helpful marine parts assistant specializing in boats, jet skis, outboard motors, and related marine equipment.

You can help users find products by asking about their needs and then using the searchProducts tool.
Once you find products, you can recommend them and add them to the cart using the addToCart tool.

When users are interested in a product:
1. Use searchProducts to find products matching their description
2. Present the options clearly with product names, prices, and brief descriptions
3. If they want to purchase, use addToCart with the correct SKU

Be helpful, conversational, and guide the user through the process of finding marine parts.

Our inventory includes many marine products from brands like Mercury Marine, Yamaha, Sea-Doo, and many others.`,
		}
	}

	encoded, err := json.Marshal(promptPayload)
	if err != nil {
		encoded = []byte("{}")
	}

	return domain.SessionOverrides{
		Agent: domain.AgentOverrides{
			FirstMessage: firstMessage,
			Prompt:       domain.PromptOverride{Prompt: string(encoded)},
		},
	}
}

// HandleToolCall validates and dispatches an inbound tool call. It never
// returns an error: a tool call must resolve to a structured or plain-text
// result even when it arrives malformed, references an unknown product, or
// lands after the session ended.
func (s *VoiceSession) HandleToolCall(ctx context.Context, call domain.ToolCall) domain.ToolResult {
	log.Printf("[TOOL] %s called on session %s", call.Tool, s.ID)

	switch call.Tool {
	case ToolSearchProducts:
		return s.searchProducts(ctx, call.Params)
	case ToolFilterProducts:
		return s.filterProducts(ctx, call.Params)
	case ToolAddToCart:
		return s.addToCart(ctx, call.Params)
	case ToolOpenImageUpload:
		return s.openImageUpload()
	default:
		return domain.ToolResult{
			Success: false,
			Message: fmt.Sprintf("Unknown tool: %s", call.Tool),
		}
	}
}

func (s *VoiceSession) searchProducts(ctx context.Context, params map[string]any) domain.ToolResult {
	query, ok := stringParam(params, "query")
	if !ok {
		return domain.ToolResult{Success: false, Message: "Query parameter is required", Products: []domain.ToolProductSummary{}}
	}

	results, err := s.deps.matcher.Search(ctx, query)
	if err != nil {
		log.Printf("[TOOL] searchProducts failed: %v", err)
		return domain.ToolResult{Success: false, Message: "An error occurred while searching for products", Products: []domain.ToolProductSummary{}}
	}

	return domain.ToolResult{
		Success:  true,
		Count:    len(results),
		Products: summarize(results, false),
	}
}

func (s *VoiceSession) filterProducts(ctx context.Context, params map[string]any) domain.ToolResult {
	keyword, ok := stringParam(params, "keyword")
	if !ok {
		return domain.ToolResult{Success: false, Message: "Keyword parameter is required", Products: []domain.ToolProductSummary{}}
	}

	maxResults := intParam(params, "maxResults", defaultMaxResults)
	sortBy, _ := stringParam(params, "sortBy")
	if sortBy == "" {
		sortBy = SortByRelevance
	}

	matches, err := s.deps.matcher.FilterByKeyword(ctx, keyword, maxResults, sortBy)
	if err != nil {
		log.Printf("[TOOL] filterProducts failed: %v", err)
		return domain.ToolResult{Success: false, Message: "An error occurred while filtering products", Products: []domain.ToolProductSummary{}}
	}

	// Show the result set on the carousel so the user sees what the agent
	// is talking about.
	if len(matches) > 0 {
		s.deps.bus.Publish(eventbus.TopicShowProductCarousel, matches)
	}

	return domain.ToolResult{
		Success:  true,
		Count:    len(matches),
		Products: summarize(matches, true),
	}
}

func (s *VoiceSession) addToCart(ctx context.Context, params map[string]any) domain.ToolResult {
	productID, ok := stringParam(params, "productId")
	if !ok {
		return domain.ToolResult{Success: false, Message: "Failed to add product to cart. Missing product ID."}
	}

	quantity := intParam(params, "quantity", 1)
	if quantity < 1 {
		quantity = 1
	}

	// Prefer the product already in focus; fall back to a catalog lookup.
	var product *domain.Product
	if s.focused != nil && s.focused.SKU == productID {
		product = s.focused
	} else {
		found, err := s.deps.catalog.LookupBySKU(ctx, productID)
		if err == nil {
			product = found
		}
	}

	if product == nil {
		return domain.ToolResult{
			Success: false,
			Message: fmt.Sprintf("Could not find a product with SKU: %s. Please try searching for a product first.", productID),
		}
	}

	s.deps.bus.Publish(eventbus.TopicCartAddItem, domain.CartAddItem{Product: *product, Quantity: quantity})

	unit := "units"
	if quantity == 1 {
		unit = "unit"
	}
	return domain.ToolResult{
		Success: true,
		Message: fmt.Sprintf("Successfully added %d %s of %s to your cart.", quantity, unit, product.Name),
	}
}

func (s *VoiceSession) openImageUpload() domain.ToolResult {
	s.deps.bus.Publish(eventbus.TopicOpenImageUpload, nil)
	return domain.ToolResult{
		Success: true,
		Message: "Image upload panel opened. You can now upload an image to find marine parts.",
	}
}

// summarize converts products to the compact agent-facing shape
func summarize(products []domain.Product, includeLinks bool) []domain.ToolProductSummary {
	out := make([]domain.ToolProductSummary, 0, len(products))
	for _, p := range products {
		desc := p.Description
		if desc == "" {
			desc = "No description available"
		} else if runes := []rune(desc); len(runes) > summaryDescLimit {
			// Truncate on a rune boundary so multibyte text stays valid.
			desc = string(runes[:summaryDescLimit]) + "..."
		}

		summary := domain.ToolProductSummary{
			Name:        p.Name,
			SKU:         p.SKU,
			MPN:         p.MPN,
			Price:       p.PriceDisplay,
			Stock:       orDefault(p.Stock, "Out of stock"),
			Description: desc,
			ImageURL:    p.ImageURL,
		}
		if includeLinks {
			summary.ProductURL = p.ProductURL
			summary.Path = domain.PathPrefix(p.Path, p.Name)
		}
		out = append(out, summary)
	}
	return out
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// stringParam reads a required string out of a loosely-typed parameter bag
func stringParam(params map[string]any, key string) (string, bool) {
	raw, exists := params[key]
	if !exists {
		return "", false
	}
	s, ok := raw.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// intParam reads an integer that may arrive as a number or a numeric string
func intParam(params map[string]any, key string, fallback int) int {
	raw, exists := params[key]
	if !exists {
		return fallback
	}

	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n)
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

// VoiceSessionManager owns all sessions for the process. Only one session
// is active at a time; starting while one is Connecting or Connected
// returns the active session unchanged.
type VoiceSessionManager struct {
	mu       sync.Mutex
	sessions map[string]*VoiceSession
	active   *VoiceSession

	deps sessionDeps
	cfg  VoiceSessionConfig
}

// NewVoiceSessionManager creates a manager with its collaborators
func NewVoiceSessionManager(
	signer domain.SignedURLProvider,
	dialer domain.RealtimeDialer,
	mic domain.Microphone,
	catalog domain.CatalogClient,
	matcher *MatchingService,
	bus *eventbus.Bus,
	cfg VoiceSessionConfig,
) *VoiceSessionManager {
	return &VoiceSessionManager{
		sessions: make(map[string]*VoiceSession),
		deps: sessionDeps{
			signer:  signer,
			dialer:  dialer,
			mic:     mic,
			catalog: catalog,
			matcher: matcher,
			bus:     bus,
		},
		cfg: cfg,
	}
}

// Start begins a session, optionally focused on a product SKU. When a
// session is already Connecting or Connected the existing session is
// returned and no new connection is attempted.
func (m *VoiceSessionManager) Start(ctx context.Context, productSKU string) (*VoiceSession, error) {
	m.mu.Lock()
	if m.active != nil {
		switch m.active.State() {
		case domain.StateConnecting, domain.StateConnected, domain.StateSpeaking, domain.StateListening:
			active := m.active
			m.mu.Unlock()
			log.Printf("[VOICE] Start ignored; session %s already active", active.ID)
			return active, nil
		}
	}

	// Settled sessions are only interesting until the next start; drop them
	// here so the map does not grow across repeated start/end cycles.
	for id, existing := range m.sessions {
		switch existing.State() {
		case domain.StateIdle, domain.StateErrored:
			delete(m.sessions, id)
		}
	}

	session := &VoiceSession{
		ID:    uuid.NewString(),
		state: domain.StateIdle,
		deps:  m.deps,
		cfg:   m.cfg,
	}
	m.sessions[session.ID] = session
	m.active = session
	m.mu.Unlock()

	if productSKU != "" {
		// A failed lookup just means no focused-product context.
		if product, err := m.deps.catalog.LookupBySKU(ctx, productSKU); err == nil {
			session.focused = product
		}
	}

	if err := session.Start(ctx); err != nil {
		return session, err
	}
	return session, nil
}

// Get returns a session by id
func (m *VoiceSessionManager) Get(id string) (*VoiceSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// End terminates a session by id. Idempotent.
func (m *VoiceSessionManager) End(ctx context.Context, id string) error {
	session, err := m.Get(id)
	if err != nil {
		return err
	}
	return session.End(ctx)
}

// HandleToolCall dispatches a tool call on a session. A call arriving for
// an unknown session (e.g. resolved after a reload) gets a structured
// failure result rather than an error.
func (m *VoiceSessionManager) HandleToolCall(ctx context.Context, id string, call domain.ToolCall) (domain.ToolResult, error) {
	session, err := m.Get(id)
	if err != nil {
		return domain.ToolResult{}, err
	}
	return session.HandleToolCall(ctx, call), nil
}

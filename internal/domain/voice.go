package domain

// SessionState is the explicit state of a voice-assistant session.
type SessionState string

const (
	StateIdle          SessionState = "idle"
	StateConnecting    SessionState = "connecting"
	StateConnected     SessionState = "connected"
	StateSpeaking      SessionState = "speaking"
	StateListening     SessionState = "listening"
	StateDisconnecting SessionState = "disconnecting"
	StateErrored       SessionState = "errored"
)

// SessionOverrides is the context payload handed to the realtime session
// at negotiation time.
type SessionOverrides struct {
	Agent AgentOverrides `json:"agent"`
}

// AgentOverrides carries the opening message and the JSON-encoded prompt
// context for the agent.
type AgentOverrides struct {
	FirstMessage string         `json:"firstMessage"`
	Prompt       PromptOverride `json:"prompt"`
}

// PromptOverride wraps the JSON-encoded context string.
type PromptOverride struct {
	Prompt string `json:"prompt"`
}

// ToolCall is an inbound request from the connected realtime session:
// a tool name plus a loosely-typed parameter bag. It is validated at the
// boundary before touching the cart or the matcher.
type ToolCall struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
}

// ToolResult is what a tool call resolves to. Tool dispatch never raises
// across the realtime boundary; failures become a result with Success false.
type ToolResult struct {
	Success  bool                 `json:"success"`
	Message  string               `json:"message,omitempty"`
	Count    int                  `json:"count,omitempty"`
	Products []ToolProductSummary `json:"products,omitempty"`
}

// ToolProductSummary is the compact product shape returned to the agent.
type ToolProductSummary struct {
	Name        string `json:"name"`
	SKU         string `json:"sku"`
	MPN         string `json:"mpn"`
	Price       string `json:"price"`
	Stock       string `json:"stock"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	ProductURL  string `json:"productUrl,omitempty"`
	Path        string `json:"path,omitempty"`
}

package elevenlabs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/eugeneleychenko/vyb-marine-demo/internal/domain"
	"github.com/gorilla/websocket"
)

// RealtimeDialer opens the conversational websocket using a signed URL and
// relays session lifecycle events to the caller. Audio frames are passed
// through untouched; only lifecycle and mode messages are interpreted.
type RealtimeDialer struct{}

// NewRealtimeDialer creates a websocket-backed dialer
func NewRealtimeDialer() *RealtimeDialer {
	return &RealtimeDialer{}
}

// initiationMessage is the first client frame: it carries the agent
// overrides negotiated for this session.
type initiationMessage struct {
	Type                       string                  `json:"type"`
	ConversationConfigOverride domain.SessionOverrides `json:"conversation_config_override"`
}

// serverMessage is the subset of inbound frames the session manager
// cares about.
type serverMessage struct {
	Type string `json:"type"`
}

// Dial negotiates the realtime session and starts the read loop
func (d *RealtimeDialer) Dial(ctx context.Context, signedURL string, overrides domain.SessionOverrides, cb domain.RealtimeCallbacks) (domain.RealtimeConn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, signedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("realtime dial failed: %w", err)
	}

	init := initiationMessage{
		Type:                       "conversation_initiation_client_data",
		ConversationConfigOverride: overrides,
	}
	if err := ws.WriteJSON(init); err != nil {
		ws.Close()
		return nil, fmt.Errorf("realtime initiation failed: %w", err)
	}

	conn := &realtimeConn{ws: ws}
	go conn.readLoop(cb)

	return conn, nil
}

type realtimeConn struct {
	ws        *websocket.Conn
	mu        sync.Mutex
	closed    bool
	requested bool
}

// readLoop relays lifecycle frames until the socket closes
func (c *realtimeConn) readLoop(cb domain.RealtimeCallbacks) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			requested := c.requested
			c.mu.Unlock()

			if !requested {
				log.Printf("[VOICE] Realtime socket closed: %v", err)
				if cb.OnError != nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					cb.OnError(err)
				}
			}
			if cb.OnDisconnect != nil {
				cb.OnDisconnect()
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "conversation_initiation_metadata":
			if cb.OnConnect != nil {
				cb.OnConnect()
			}
		case "agent_response", "audio":
			if cb.OnModeChange != nil {
				cb.OnModeChange("speaking")
			}
		case "user_transcript":
			if cb.OnModeChange != nil {
				cb.OnModeChange("listening")
			}
		case "ping":
			// Keepalive only; nothing to surface.
		}
	}
}

// Close ends the session. Safe to call more than once.
func (c *realtimeConn) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.requested = true

	deadline, ok := ctx.Deadline()
	if ok {
		c.ws.SetWriteDeadline(deadline)
	}
	c.ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
	return c.ws.Close()
}

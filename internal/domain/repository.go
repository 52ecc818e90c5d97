package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations
type CacheRepository interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// CatalogClient defines the interface for the spreadsheet-backed product feed
type CatalogClient interface {
	// FetchCatalog returns the normalized catalog, cached for the session
	// after the first successful fetch.
	FetchCatalog(ctx context.Context) ([]Product, error)

	// LookupBySKU returns the product with an exactly matching SKU,
	// or ErrProductNotFound.
	LookupBySKU(ctx context.Context, sku string) (*Product, error)

	// FindBySKUPrefix is the fallback partial match: catalog SKUs that
	// contain the query, or its first 10 characters.
	FindBySKUPrefix(ctx context.Context, sku string) ([]Product, error)
}

// SignedURLProvider exchanges an agent id for a short-lived signed
// connection URL.
type SignedURLProvider interface {
	SignedURL(ctx context.Context, agentID string) (string, error)
}

// Microphone models audio-capture permission. Acquisition failing maps to
// ErrPermissionDenied and aborts session start.
type Microphone interface {
	Acquire(ctx context.Context) error
}

// RealtimeCallbacks are invoked by the realtime transport as the opaque
// full-duplex session changes state.
type RealtimeCallbacks struct {
	OnConnect    func()
	OnDisconnect func()
	OnError      func(error)
	// OnModeChange reports "speaking" or "listening".
	OnModeChange func(mode string)
}

// RealtimeDialer negotiates the realtime session with a signed URL plus a
// context payload.
type RealtimeDialer interface {
	Dial(ctx context.Context, signedURL string, overrides SessionOverrides, cb RealtimeCallbacks) (RealtimeConn, error)
}

// RealtimeConn is an established realtime session.
type RealtimeConn interface {
	Close(ctx context.Context) error
}

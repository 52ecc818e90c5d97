package media

import (
	"context"
	"fmt"

	"github.com/eugeneleychenko/vyb-marine-demo/internal/domain"
)

// StaticMicrophone is a microphone permission gate with a fixed answer.
// The hosted deployment runs with capture granted; tests and kiosk-mode
// configurations can construct a denying gate.
type StaticMicrophone struct {
	granted bool
}

// NewStaticMicrophone creates a gate that always answers the same way
func NewStaticMicrophone(granted bool) *StaticMicrophone {
	return &StaticMicrophone{granted: granted}
}

// Acquire reports whether audio capture is permitted
func (m *StaticMicrophone) Acquire(ctx context.Context) error {
	if !m.granted {
		return fmt.Errorf("%w: audio capture refused", domain.ErrPermissionDenied)
	}
	return nil
}

// Package event defines the notifications raised when scan history changes.
package event

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/garyjia/crop-guard/internal/domain/entity"
)

// Event represents a domain event about one scan
type Event struct {
	ID        string            `json:"id"`
	Type      Type              `json:"type"`
	Scan      entity.ScanResult `json:"scan"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewEvent creates a new domain event with auto-generated ID and timestamp
func NewEvent(eventType Type, scan entity.ScanResult) *Event {
	return &Event{
		ID:        generateID(),
		Type:      eventType,
		Scan:      scan,
		Timestamp: time.Now().UTC(),
	}
}

// ScanID returns the id of the scan the event concerns
func (e *Event) ScanID() string {
	return e.Scan.ID
}

// generateID creates a unique ID using timestamp and random bytes
func generateID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%d-%s", time.Now().UnixNano(), hex.EncodeToString(b))
}

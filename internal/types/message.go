package types

import (
	"time"

	"github.com/google/uuid"
)

// Message kinds stored in metadata and the message store.
const (
	MessageTypeTrade     = "trd"
	MessageTypePortfolio = "pfl"
)

// Message is a formatted narrative ready for publishing.
type Message struct {
	ID        uuid.UUID
	Content   string
	Timestamp time.Time
	Metadata  map[string]any
}

// NewMessage builds a message with a fresh id.
func NewMessage(content string, ts time.Time, metadata map[string]any) Message {
	if metadata == nil {
		metadata = map[string]any{}
	}
	return Message{ID: uuid.New(), Content: content, Timestamp: ts, Metadata: metadata}
}

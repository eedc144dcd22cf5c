package events

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/storefront/internal/domain"
)

// EventType enumerates supported event identifiers. The values double as the
// message patterns on the broker.
type EventType string

const (
	EventUserCreated EventType = "user.created"
	EventUserDeleted EventType = "user.deleted"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// UserCreatedPayload is the created identity minus secrets.
type UserCreatedPayload struct {
	User domain.PublicUser `json:"user"`
}

// UserDeletedPayload identifies a permanently removed identity.
type UserDeletedPayload struct {
	UserID string `json:"user_id"`
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

package domain

import "time"

// EventType names an account change announced to other subsystems.
type EventType string

const (
	EventCustomerCreated EventType = "customer.created"
	EventCustomerDeleted EventType = "customer.deleted"
	EventAgentsMoved     EventType = "customer.agents_moved"
	EventAgentsPurged    EventType = "customer.agents_purged"
	EventUserCreated     EventType = "user.created"
	EventUserDeleted     EventType = "user.deleted"
)

// Event is published after an account change has been stored.
type Event struct {
	Type       EventType      `json:"type"`
	Customer   string         `json:"customer_name,omitempty"`
	Username   string         `json:"user_name,omitempty"`
	Actor      string         `json:"actor"`
	Detail     map[string]any `json:"detail,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

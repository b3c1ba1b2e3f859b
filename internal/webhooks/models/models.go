package models

import (
	"time"
)

const WebhooksCollection = "webhooks"

// SenderState describes where a webhook's sender currently is. IDLE means
// no drain in flight, DRAINING means a drain holds the send lock, and
// RATE_LIMITED means a block instant in the future forbids sending.
type SenderState string

const (
	SenderStateIdle        SenderState = "IDLE"
	SenderStateDraining    SenderState = "DRAINING"
	SenderStateRateLimited SenderState = "RATE_LIMITED"
)

// Webhook is one message destination. Each webhook owns a durable main
// queue and an error queue in Redis, keyed by its ID.
type Webhook struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	URL       string    `bson:"url" json:"url"`
	Notes     string    `bson:"notes,omitempty" json:"notes,omitempty"`
	IsEnabled bool      `bson:"is_enabled" json:"is_enabled"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

package domain

import (
	"context"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Request sends a message and waits for a response (request-reply pattern).
	Request(ctx context.Context, topic string, payload []byte) ([]byte, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names for the recompute pipeline.
const (
	// TopicMatchBorrower requests a recompute of one borrower against every
	// active policy. Payload: MatchBorrowerEvent.
	TopicMatchBorrower = "kestrel.match.borrower"

	// TopicMatchPolicy requests a recompute of one lender's new policy
	// version against the borrower population. Payload: MatchPolicyEvent.
	TopicMatchPolicy = "kestrel.match.policy"
)

// MatchBorrowerEvent is the payload for TopicMatchBorrower.
type MatchBorrowerEvent struct {
	BorrowerID int64 `json:"borrowerId"`
}

// MatchPolicyEvent is the payload for TopicMatchPolicy.
type MatchPolicyEvent struct {
	LenderID string `json:"lenderId"`
	PolicyID string `json:"policyId"`
}

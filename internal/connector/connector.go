package connector

import "context"

// Connector is the interface for external messaging platforms.
type Connector interface {
	// Name returns the connector type (e.g., "telegram").
	Name() string
	// Start begins listening for inbound messages. Blocks until context is cancelled.
	Start(ctx context.Context) error
	// Stop gracefully shuts down the connector.
	Stop() error
	// Send delivers an outbound message to the external platform.
	Send(ctx context.Context, msg OutboundMessage) error
}

// OutboundMessage is an answer sent to an external platform.
type OutboundMessage struct {
	ChatID  string // Platform-specific chat identifier
	Content string // Message text
}

// InboundMessage is a question received from an external platform.
type InboundMessage struct {
	Channel  string // Connector name (e.g., "telegram")
	SenderID string // Platform-specific sender identifier
	ChatID   string // Platform-specific chat identifier
	Content  string // Question text
}

// InboundHandler answers a question received from an external platform.
// The returned string is sent back to the originating chat.
type InboundHandler func(ctx context.Context, msg InboundMessage) (string, error)

package provider

import (
	"context"

	"github.com/datasage-io/datasage/pkg/protocol"
)

// Provider is the abstraction over LLM chat APIs with tool calling.
type Provider interface {
	Chat(ctx context.Context, req protocol.ChatRequest) (*protocol.ChatResponse, error)
	Name() string
}

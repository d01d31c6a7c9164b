package tool

import "context"

// Tool is the interface every analyst tool must implement.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any // JSON Schema
	Execute(ctx context.Context, params map[string]any) (string, error)
}

func getString(params map[string]any, key string) string {
	v, _ := params[key].(string)
	return v
}

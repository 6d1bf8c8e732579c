package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownTool means the tool passed the persona allowlist but nothing is
// registered under that name.
var ErrUnknownTool = errors.New("unknown tool")

// ToolFunc is one registered tool implementation.
type ToolFunc func(ctx context.Context, args map[string]string) (string, error)

// ToolRegistry is a ToolRunner backed by a name -> function table.
// Deployments register their tools at startup; the allowlist in the persona
// policy decides who may call which.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]ToolFunc
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{tools: make(map[string]ToolFunc)}
}

func (r *ToolRegistry) Register(name string, fn ToolFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = fn
}

func (r *ToolRegistry) Run(ctx context.Context, tool string, args map[string]string) (string, error) {
	r.mu.RLock()
	fn, found := r.tools[tool]
	r.mu.RUnlock()
	if !found {
		return "", fmt.Errorf("%w: %s", ErrUnknownTool, tool)
	}
	return fn(ctx, args)
}

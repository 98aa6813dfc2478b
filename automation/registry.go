package automation

import (
	"context"
	"sync"

	"github.com/jinzhu/gorm/dialects/postgres"

	"crmhub/model/model"
)

// Handler - Uniform contract shared by every action collaborator. The
// dispatcher passes only the rule's action config and the triggering
// event; delivery internals live behind the implementation.
type Handler interface {
	Execute(ctx context.Context, config *postgres.Jsonb, event *model.Event) error
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, config *postgres.Jsonb, event *model.Event) error

func (f HandlerFunc) Execute(ctx context.Context, config *postgres.Jsonb, event *model.Event) error {
	return f(ctx, config, event)
}

// Registry - action_type to handler lookup. Keeps type dispatch in one
// table instead of branching inside the dispatcher.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

func (r *Registry) Register(actionType string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[actionType] = handler
}

func (r *Registry) Get(actionType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, exists := r.handlers[actionType]
	return handler, exists
}

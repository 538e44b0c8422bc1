package classifier

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type Factory func(ctx context.Context, model string) (Classifier, error)

// Registry maps provider names to classifier factories so deployments can
// route sessions to different backends without touching the game engine.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, f Factory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(ctx context.Context, name string, model string) (Classifier, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown classifier provider: %s", name)
	}
	return f(ctx, model)
}

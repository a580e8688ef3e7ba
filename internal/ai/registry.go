package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type ProviderFactory func(ctx context.Context, participant string) (Provider, error)

// Registry maps participant names to provider factories. Participants with
// no factory of their own use the fallback, when one is set.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
	fallback  ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func (r *Registry) Register(participant string, f ProviderFactory) {
	participant = normalize(participant)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[participant] = f
}

func (r *Registry) SetFallback(f ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallback = f
}

func (r *Registry) Get(ctx context.Context, participant string) (Provider, error) {
	participant = normalize(participant)
	r.mu.RLock()
	f, ok := r.factories[participant]
	if !ok {
		f = r.fallback
	}
	r.mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("unknown participant: %s", participant)
	}
	return f(ctx, participant)
}

// Names lists the participants registered explicitly.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for n := range r.factories {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

package asset

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry is a concurrency-safe index of known tokens.
type Registry struct {
	mu       sync.RWMutex
	byID     map[AssetID]*Asset
	bySymbol map[string]*Asset
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[AssetID]*Asset),
		bySymbol: make(map[string]*Asset),
	}
}

// Register adds a token. Panics on nil, duplicate id or duplicate symbol.
func (r *Registry) Register(a *Asset) {
	if a == nil {
		panic("asset: cannot register nil asset")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[a.ID()]; exists {
		panic(fmt.Sprintf("asset: %s already registered", a.ID()))
	}
	key := strings.ToUpper(a.Symbol())
	if _, exists := r.bySymbol[key]; exists {
		panic(fmt.Sprintf("asset: symbol %s already registered", a.Symbol()))
	}

	r.byID[a.ID()] = a
	r.bySymbol[key] = a
}

// Get looks a token up by id.
func (r *Registry) Get(id AssetID) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// MustGet is Get that panics when the token is unknown.
func (r *Registry) MustGet(id AssetID) *Asset {
	a, ok := r.Get(id)
	if !ok {
		panic(fmt.Sprintf("asset: %s not found in registry", id))
	}
	return a
}

// BySymbol looks a token up by case-insensitive symbol.
func (r *Registry) BySymbol(symbol string) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.bySymbol[strings.ToUpper(symbol)]
	return a, ok
}

// All returns every token sorted by symbol.
func (r *Registry) All() []*Asset {
	r.mu.RLock()
	result := make([]*Asset, 0, len(r.byID))
	for _, a := range r.byID {
		result = append(result, a)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool { return result[i].Symbol() < result[j].Symbol() })
	return result
}

// Count returns the number of registered tokens.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

package cycle

import (
	"sync"

	"github.com/verte-zerg/smartchr/internal/model"
)

// MappingProvider supplies the current mapping set. Implementations that
// cannot load mappings return an empty slice.
type MappingProvider interface {
	Mappings() []model.Mapping
}

// StaticProvider is an in-memory MappingProvider.
type StaticProvider struct {
	mu       sync.RWMutex
	mappings []model.Mapping
}

// NewStaticProvider returns a provider serving a copy of mappings.
func NewStaticProvider(mappings ...model.Mapping) *StaticProvider {
	p := &StaticProvider{}
	p.Set(mappings)
	return p
}

// Mappings implements MappingProvider.
func (p *StaticProvider) Mappings() []model.Mapping {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mappings
}

// Set replaces the served mapping set.
func (p *StaticProvider) Set(mappings []model.Mapping) {
	cp := append([]model.Mapping(nil), mappings...)
	p.mu.Lock()
	p.mappings = cp
	p.mu.Unlock()
}

// ProviderFunc adapts a function to MappingProvider.
type ProviderFunc func() []model.Mapping

// Mappings implements MappingProvider.
func (f ProviderFunc) Mappings() []model.Mapping {
	return f()
}

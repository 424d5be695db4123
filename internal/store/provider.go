package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/verte-zerg/smartchr/internal/model"
)

// Provider serves a cached snapshot of the stored mappings. Call Refresh
// after changing the store.
type Provider struct {
	store *Store
	log   *slog.Logger

	mu       sync.RWMutex
	mappings []model.Mapping
}

// NewProvider loads the current mappings from store.
func NewProvider(ctx context.Context, store *Store, log *slog.Logger) *Provider {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	p := &Provider{store: store, log: log}
	if err := p.Refresh(ctx); err != nil {
		log.Warn("failed to load stored mappings", "err", err)
	}
	return p
}

// Refresh reloads the snapshot. On failure the previous snapshot is kept.
func (p *Provider) Refresh(ctx context.Context) error {
	mappings, err := p.store.ListMappings(ctx)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.mappings = mappings
	p.mu.Unlock()
	return nil
}

// Mappings implements cycle.MappingProvider.
func (p *Provider) Mappings() []model.Mapping {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mappings
}

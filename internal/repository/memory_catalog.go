package repository

import (
	"context"
	"sort"
	"sync"

	"estimate-api/internal/model"
)

// MemoryCatalogRepository is an in-process catalog seeded at startup.
type MemoryCatalogRepository struct {
	mu      sync.RWMutex
	items   map[int64]model.BaseItem
	options map[int64]model.Option
}

// NewMemoryCatalogRepository creates an empty in-memory catalog.
func NewMemoryCatalogRepository() *MemoryCatalogRepository {
	return &MemoryCatalogRepository{
		items:   make(map[int64]model.BaseItem),
		options: make(map[int64]model.Option),
	}
}

// AddBaseItem inserts or replaces a base item.
func (r *MemoryCatalogRepository) AddBaseItem(item model.BaseItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = item
}

// AddOption inserts or replaces an option.
func (r *MemoryCatalogRepository) AddOption(opt model.Option) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.options[opt.ID] = opt
}

func (r *MemoryCatalogRepository) GetBaseItem(_ context.Context, id int64) (*model.BaseItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, ok := r.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (r *MemoryCatalogRepository) GetOptions(_ context.Context, ids []int64) ([]model.Option, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.Option{}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if opt, ok := r.options[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, opt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryCatalogRepository) ListBaseItems(_ context.Context) ([]model.BaseItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.BaseItem, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryCatalogRepository) ListOptions(_ context.Context, baseItemID int64) ([]model.Option, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []model.Option{}
	for _, opt := range r.options {
		if opt.BaseItemID == baseItemID {
			out = append(out, opt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

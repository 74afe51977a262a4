package repository

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"estimate-api/internal/model"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// memoryQuoteRepository keeps quotes in process memory. It is used by the
// memory storage driver and by tests.
type memoryQuoteRepository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*model.PersistedQuote
	byKey  map[string]uuid.UUID
	logger zerolog.Logger
	now    func() time.Time
}

// NewMemoryQuoteRepository creates an empty in-memory quote repository.
func NewMemoryQuoteRepository(logger zerolog.Logger) QuoteRepository {
	return &memoryQuoteRepository{
		byID:   make(map[uuid.UUID]*model.PersistedQuote),
		byKey:  make(map[string]uuid.UUID),
		logger: logger.With().Str("repository", "memory_quote").Logger(),
		now:    time.Now,
	}
}

func (r *memoryQuoteRepository) CreateIfAbsent(_ context.Context, key string, breakdown model.QuoteBreakdown) (*model.PersistedQuote, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byKey[key]; ok {
		return cloneQuote(r.byID[id]), false, nil
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate quote id: %w", err)
	}

	quote := newPersistedQuote(id, key, r.now(), breakdown)
	r.byID[id] = quote
	r.byKey[key] = id

	r.logger.Debug().Str("quote_id", id.String()).Msg("quote created successfully")
	return cloneQuote(quote), true, nil
}

func (r *memoryQuoteRepository) GetByID(_ context.Context, id uuid.UUID) (*model.PersistedQuote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	q, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return cloneQuote(q), nil
}

func (r *memoryQuoteRepository) GetByIdempotencyKey(_ context.Context, key string) (*model.PersistedQuote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[key]
	if !ok {
		return nil, nil
	}
	return cloneQuote(r.byID[id]), nil
}

// Search filters under a read lock, so the page and its totals come from one snapshot.
func (r *memoryQuoteRepository) Search(_ context.Context, filter model.SearchFilter, page, size int) (model.PageResult[model.PersistedQuote], error) {
	r.mu.RLock()
	matched := make([]*model.PersistedQuote, 0, len(r.byID))
	for _, q := range r.byID {
		if matchesFilter(q, filter) {
			matched = append(matched, q)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return bytes.Compare(a.ID[:], b.ID[:]) > 0
	})

	total := int64(len(matched))
	var content []model.PersistedQuote
	if offset, ok := model.PageOffset(page, size, total); ok {
		end := offset + int64(size)
		if end > total {
			end = total
		}
		content = make([]model.PersistedQuote, 0, end-offset)
		for _, q := range matched[offset:end] {
			content = append(content, *cloneQuote(q))
		}
	}
	r.mu.RUnlock()

	return model.NewPageResult(content, page, size, total), nil
}

func matchesFilter(q *model.PersistedQuote, f model.SearchFilter) bool {
	if text := strings.ToLower(strings.TrimSpace(f.Text)); text != "" {
		found := strings.Contains(strings.ToLower(q.ItemName), text)
		for _, line := range q.Options {
			if found {
				break
			}
			found = strings.Contains(strings.ToLower(line.Name), text)
		}
		if !found {
			return false
		}
	}
	if f.MinTotal != nil && q.FinalTotal < *f.MinTotal {
		return false
	}
	if f.MaxTotal != nil && q.FinalTotal > *f.MaxTotal {
		return false
	}
	if f.CreatedFrom != nil && q.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && q.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if f.HasOptions && len(q.Options) == 0 {
		return false
	}
	return true
}

func cloneQuote(q *model.PersistedQuote) *model.PersistedQuote {
	c := *q
	c.Options = append([]model.OptionLine{}, q.Options...)
	return &c
}

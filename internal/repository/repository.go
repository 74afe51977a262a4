package repository

import (
	"context"

	"estimate-api/internal/model"

	"github.com/google/uuid"
)

// CatalogRepository defines read access to base items and their options.
type CatalogRepository interface {
	// GetBaseItem retrieves a base item by ID. Returns nil, nil when it does not exist.
	GetBaseItem(ctx context.Context, id int64) (*model.BaseItem, error)

	// GetOptions retrieves the options with the given IDs, whatever base item
	// they belong to. Missing IDs are simply absent from the result.
	GetOptions(ctx context.Context, ids []int64) ([]model.Option, error)

	// ListBaseItems retrieves all base items ordered by ID.
	ListBaseItems(ctx context.Context) ([]model.BaseItem, error)

	// ListOptions retrieves the options of one base item ordered by ID.
	ListOptions(ctx context.Context, baseItemID int64) ([]model.Option, error)
}

// QuoteRepository defines persistence for computed quotes.
type QuoteRepository interface {
	// CreateIfAbsent atomically stores breakdown under key unless a quote
	// already exists for key. It returns the stored quote and whether this call
	// created it.
	CreateIfAbsent(ctx context.Context, key string, breakdown model.QuoteBreakdown) (*model.PersistedQuote, bool, error)

	// GetByID retrieves a quote by its ID. Returns nil, nil when it does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*model.PersistedQuote, error)

	// GetByIdempotencyKey retrieves the quote created under key. Returns nil, nil when none exists.
	GetByIdempotencyKey(ctx context.Context, key string) (*model.PersistedQuote, error)

	// Search returns one page of quotes matching filter, newest first, with
	// totals taken from the same read as the page content.
	Search(ctx context.Context, filter model.SearchFilter, page, size int) (model.PageResult[model.PersistedQuote], error)
}

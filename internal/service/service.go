package service

import (
	"context"

	"estimate-api/internal/model"

	"github.com/google/uuid"
)

// PriceBook resolves catalog prices for quoting and serves the catalog reads.
type PriceBook interface {
	// GetBaseItem returns the base item or a NotFound error.
	GetBaseItem(ctx context.Context, id int64) (*model.BaseItem, error)

	// GetOptions returns the options named by ids, deduplicated in first
	// appearance order. Unknown ids are a ValidationError and options of another
	// base item are a Mismatch.
	GetOptions(ctx context.Context, baseItemID int64, ids []int64) ([]model.Option, error)

	// Resolve gathers everything the calculator needs for one request.
	Resolve(ctx context.Context, baseItemID int64, optionIDs []int64) (model.ResolvedPrices, error)

	// ListBaseItems returns the whole catalog.
	ListBaseItems(ctx context.Context) ([]model.BaseItem, error)

	// ListOptions returns the options of a base item, or NotFound if the item does not exist.
	ListOptions(ctx context.Context, baseItemID int64) ([]model.Option, error)
}

// QuoteService defines quote operations.
type QuoteService interface {
	// Preview computes a breakdown without storing anything.
	Preview(ctx context.Context, req model.QuoteRequest) (*model.QuoteBreakdown, error)

	// Submit computes and stores a quote exactly once per idempotency key.
	Submit(ctx context.Context, req model.QuoteRequest, key string) (*model.PersistedQuote, error)

	// KeyState reports where key is in its lifecycle as seen by this instance.
	KeyState(ctx context.Context, key string) (model.KeyState, error)

	// GetByID retrieves a stored quote or a NotFound error.
	GetByID(ctx context.Context, id uuid.UUID) (*model.PersistedQuote, error)

	// Search returns one page of stored quotes.
	Search(ctx context.Context, filter model.SearchFilter, page, size int) (model.PageResult[model.PersistedQuote], error)
}

package service

import (
	"context"
	"fmt"

	"estimate-api/internal/model"
	"estimate-api/internal/pricing"
	"estimate-api/internal/repository"

	"github.com/rs/zerolog"
)

// priceBook implements PriceBook on top of a catalog repository.
type priceBook struct {
	catalogRepo repository.CatalogRepository
	logger      zerolog.Logger
}

// NewPriceBook creates a new price book.
func NewPriceBook(catalogRepo repository.CatalogRepository, logger zerolog.Logger) PriceBook {
	return &priceBook{
		catalogRepo: catalogRepo,
		logger:      logger.With().Str("service", "pricebook").Logger(),
	}
}

// GetBaseItem retrieves a base item by ID.
func (p *priceBook) GetBaseItem(ctx context.Context, id int64) (*model.BaseItem, error) {
	if id <= 0 {
		return nil, model.NewValidationError("baseItemId", "base item id must be positive")
	}

	item, err := p.catalogRepo.GetBaseItem(ctx, id)
	if err != nil {
		p.logger.Error().Err(err).Int64("base_item_id", id).Msg("failed to get base item")
		return nil, model.NewPersistenceError("failed to load base item", err)
	}

	if item == nil {
		p.logger.Debug().Int64("base_item_id", id).Msg("base item not found")
		return nil, model.NewNotFoundError(fmt.Sprintf("base item %d not found", id))
	}

	return item, nil
}

// GetOptions retrieves the requested options and checks they belong to baseItemID.
func (p *priceBook) GetOptions(ctx context.Context, baseItemID int64, ids []int64) ([]model.Option, error) {
	distinct := pricing.DistinctOptionIDs(ids)
	if len(distinct) == 0 {
		return []model.Option{}, nil
	}

	found, err := p.catalogRepo.GetOptions(ctx, distinct)
	if err != nil {
		p.logger.Error().Err(err).Int("option_count", len(distinct)).Msg("failed to get options")
		return nil, model.NewPersistenceError("failed to load options", err)
	}

	byID := make(map[int64]model.Option, len(found))
	for _, o := range found {
		byID[o.ID] = o
	}

	options := make([]model.Option, 0, len(distinct))
	for _, id := range distinct {
		o, ok := byID[id]
		if !ok {
			p.logger.Debug().Int64("option_id", id).Msg("unknown option requested")
			return nil, model.NewValidationError("optionIds", fmt.Sprintf("option %d does not exist", id))
		}
		if o.BaseItemID != baseItemID {
			p.logger.Debug().
				Int64("option_id", id).
				Int64("option_base_item_id", o.BaseItemID).
				Int64("base_item_id", baseItemID).
				Msg("option belongs to another base item")
			return nil, model.NewMismatchError("optionIds",
				fmt.Sprintf("option %d does not belong to base item %d", id, baseItemID))
		}
		options = append(options, o)
	}

	return options, nil
}

// Resolve builds the price snapshot for one request.
func (p *priceBook) Resolve(ctx context.Context, baseItemID int64, optionIDs []int64) (model.ResolvedPrices, error) {
	item, err := p.GetBaseItem(ctx, baseItemID)
	if err != nil {
		return model.ResolvedPrices{}, err
	}

	options, err := p.GetOptions(ctx, baseItemID, optionIDs)
	if err != nil {
		return model.ResolvedPrices{}, err
	}

	prices := model.ResolvedPrices{
		BaseItem: *item,
		Options:  make(map[int64]model.Option, len(options)),
	}
	for _, o := range options {
		prices.Options[o.ID] = o
	}
	return prices, nil
}

// ListBaseItems retrieves the catalog.
func (p *priceBook) ListBaseItems(ctx context.Context) ([]model.BaseItem, error) {
	items, err := p.catalogRepo.ListBaseItems(ctx)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to list base items")
		return nil, model.NewPersistenceError("failed to list base items", err)
	}

	p.logger.Debug().Int("count", len(items)).Msg("retrieved base items")
	return items, nil
}

// ListOptions retrieves the options of one base item.
func (p *priceBook) ListOptions(ctx context.Context, baseItemID int64) ([]model.Option, error) {
	if _, err := p.GetBaseItem(ctx, baseItemID); err != nil {
		return nil, err
	}

	options, err := p.catalogRepo.ListOptions(ctx, baseItemID)
	if err != nil {
		p.logger.Error().Err(err).Int64("base_item_id", baseItemID).Msg("failed to list options")
		return nil, model.NewPersistenceError("failed to list options", err)
	}

	return options, nil
}

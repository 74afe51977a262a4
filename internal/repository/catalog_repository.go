package repository

import (
	"context"
	"errors"
	"fmt"

	"estimate-api/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// catalogRepository implements the CatalogRepository interface using PostgreSQL.
type catalogRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewCatalogRepository creates a new PostgreSQL-backed catalog repository.
func NewCatalogRepository(pool *pgxpool.Pool, logger zerolog.Logger) CatalogRepository {
	return &catalogRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "catalog").Logger(),
	}
}

// GetBaseItem retrieves a base item by ID.
func (r *catalogRepository) GetBaseItem(ctx context.Context, id int64) (*model.BaseItem, error) {
	query := `
		SELECT id, name, unit_price, created_at
		FROM base_items
		WHERE id = $1
	`

	var item model.BaseItem
	err := r.pool.QueryRow(ctx, query, id).Scan(&item.ID, &item.Name, &item.UnitPrice, &item.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug().Int64("base_item_id", id).Msg("base item not found")
			return nil, nil
		}
		r.logger.Error().Err(err).Int64("base_item_id", id).Msg("failed to query base item")
		return nil, fmt.Errorf("failed to query base item: %w", err)
	}

	return &item, nil
}

// GetOptions retrieves options by ID.
func (r *catalogRepository) GetOptions(ctx context.Context, ids []int64) ([]model.Option, error) {
	if len(ids) == 0 {
		return []model.Option{}, nil
	}

	query := `
		SELECT id, base_item_id, name, unit_price
		FROM item_options
		WHERE id = ANY($1)
		ORDER BY id
	`

	return r.queryOptions(ctx, query, ids)
}

// ListBaseItems retrieves all base items.
func (r *catalogRepository) ListBaseItems(ctx context.Context) ([]model.BaseItem, error) {
	query := `
		SELECT id, name, unit_price, created_at
		FROM base_items
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query base items")
		return nil, fmt.Errorf("failed to query base items: %w", err)
	}
	defer rows.Close()

	items := []model.BaseItem{}
	for rows.Next() {
		var item model.BaseItem
		if err := rows.Scan(&item.ID, &item.Name, &item.UnitPrice, &item.CreatedAt); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan base item row")
			return nil, fmt.Errorf("failed to scan base item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating base item rows")
		return nil, fmt.Errorf("error iterating base items: %w", err)
	}

	return items, nil
}

// ListOptions retrieves the options of one base item.
func (r *catalogRepository) ListOptions(ctx context.Context, baseItemID int64) ([]model.Option, error) {
	query := `
		SELECT id, base_item_id, name, unit_price
		FROM item_options
		WHERE base_item_id = $1
		ORDER BY id
	`

	return r.queryOptions(ctx, query, baseItemID)
}

func (r *catalogRepository) queryOptions(ctx context.Context, query string, arg any) ([]model.Option, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query options")
		return nil, fmt.Errorf("failed to query options: %w", err)
	}
	defer rows.Close()

	options := []model.Option{}
	for rows.Next() {
		var o model.Option
		if err := rows.Scan(&o.ID, &o.BaseItemID, &o.Name, &o.UnitPrice); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan option row")
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options = append(options, o)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating option rows")
		return nil, fmt.Errorf("error iterating options: %w", err)
	}

	return options, nil
}

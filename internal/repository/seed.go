package repository

import (
	"context"
	"fmt"

	"estimate-api/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// SampleCatalog is the demo catalog loaded by the memory driver and cmd/seed.
type SampleCatalog struct {
	Items   []model.BaseItem
	Options []model.Option
}

// DefaultCatalog returns a small cake shop catalog. Prices are whole currency units.
func DefaultCatalog() SampleCatalog {
	return SampleCatalog{
		Items: []model.BaseItem{
			{ID: 1, Name: "Strawberry Cream Cake", UnitPrice: 35000},
			{ID: 2, Name: "Chocolate Ganache Cake", UnitPrice: 42000},
			{ID: 3, Name: "Cheesecake", UnitPrice: 28000},
		},
		Options: []model.Option{
			{ID: 1, BaseItemID: 1, Name: "Lettering Plate", UnitPrice: 5000},
			{ID: 2, BaseItemID: 1, Name: "Candle Set", UnitPrice: 3000},
			{ID: 3, BaseItemID: 1, Name: "Extra Strawberries", UnitPrice: 7000},
			{ID: 4, BaseItemID: 2, Name: "Gold Leaf", UnitPrice: 9000},
			{ID: 5, BaseItemID: 2, Name: "Candle Set", UnitPrice: 3000},
			{ID: 6, BaseItemID: 3, Name: "Blueberry Topping", UnitPrice: 4000},
		},
	}
}

// Load copies the catalog into an in-memory repository.
func (c SampleCatalog) Load(repo *MemoryCatalogRepository) {
	for _, item := range c.Items {
		repo.AddBaseItem(item)
	}
	for _, opt := range c.Options {
		repo.AddOption(opt)
	}
}

// SeedCatalog upserts the catalog into PostgreSQL and moves the id sequences
// past the seeded ids.
func SeedCatalog(ctx context.Context, pool *pgxpool.Pool, c SampleCatalog, logger zerolog.Logger) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, item := range c.Items {
		batch.Queue(`
			INSERT INTO base_items (id, name, unit_price)
			VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, unit_price = EXCLUDED.unit_price
		`, item.ID, item.Name, item.UnitPrice)
	}
	for _, opt := range c.Options {
		batch.Queue(`
			INSERT INTO item_options (id, base_item_id, name, unit_price)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET base_item_id = EXCLUDED.base_item_id,
				name = EXCLUDED.name, unit_price = EXCLUDED.unit_price
		`, opt.ID, opt.BaseItemID, opt.Name, opt.UnitPrice)
	}
	batch.Queue(`SELECT setval(pg_get_serial_sequence('base_items', 'id'), GREATEST((SELECT MAX(id) FROM base_items), 1))`)
	batch.Queue(`SELECT setval(pg_get_serial_sequence('item_options', 'id'), GREATEST((SELECT MAX(id) FROM item_options), 1))`)

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to seed catalog: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit catalog seed: %w", err)
	}

	logger.Info().
		Int("base_items", len(c.Items)).
		Int("options", len(c.Options)).
		Msg("catalog seeded")
	return nil
}

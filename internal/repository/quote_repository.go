package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"estimate-api/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const quoteColumns = `
	q.id, q.idempotency_key, q.base_item_id, q.item_name, q.base_unit_price, q.quantity,
	q.items_total, q.options_total, q.subtotal, q.discount_rate::text, q.tax_rate::text,
	q.discount_amount, q.tax_amount, q.final_total, q.created_at`

// quoteRepository implements the QuoteRepository interface using PostgreSQL.
type quoteRepository struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
	now    func() time.Time
}

// NewQuoteRepository creates a new PostgreSQL-backed quote repository.
func NewQuoteRepository(pool *pgxpool.Pool, logger zerolog.Logger) QuoteRepository {
	return &quoteRepository{
		pool:   pool,
		logger: logger.With().Str("repository", "quote").Logger(),
		now:    time.Now,
	}
}

// CreateIfAbsent inserts the quote and its option lines in one transaction.
// A unique violation on the idempotency key is resolved by returning the row
// that won.
func (r *quoteRepository) CreateIfAbsent(ctx context.Context, key string, breakdown model.QuoteBreakdown) (*model.PersistedQuote, bool, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate quote id: %w", err)
	}
	quote := newPersistedQuote(id, key, r.now(), breakdown)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin transaction")
		return nil, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	insertQuote := `
		INSERT INTO quotes (
			id, idempotency_key, base_item_id, item_name, base_unit_price, quantity,
			items_total, options_total, subtotal, discount_rate, tax_rate,
			discount_amount, tax_amount, final_total, option_count, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11::numeric, $12, $13, $14, $15, $16)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id
	`

	var insertedID uuid.UUID
	err = tx.QueryRow(ctx, insertQuote,
		quote.ID, quote.IdempotencyKey, quote.BaseItemID, quote.ItemName, quote.BaseUnitPrice, quote.Quantity,
		quote.ItemsTotal, quote.OptionsTotal, quote.Subtotal, quote.DiscountRate.String(), quote.TaxRate.String(),
		quote.DiscountAmount, quote.TaxAmount, quote.FinalTotal, len(quote.Options), quote.CreatedAt,
	).Scan(&insertedID)
	if errors.Is(err, pgx.ErrNoRows) {
		_ = tx.Rollback(ctx)
		existing, err := r.GetByIdempotencyKey(ctx, key)
		if err != nil {
			return nil, false, err
		}
		if existing == nil {
			return nil, false, fmt.Errorf("quote for idempotency key vanished after conflict")
		}
		r.logger.Debug().Str("quote_id", existing.ID.String()).Msg("idempotency key already stored")
		return existing, false, nil
	}
	if err != nil {
		r.logger.Error().Err(err).Str("quote_id", quote.ID.String()).Msg("failed to insert quote")
		return nil, false, fmt.Errorf("failed to insert quote: %w", err)
	}

	if len(quote.Options) > 0 {
		insertLine := `
			INSERT INTO quote_option_lines (quote_id, position, option_id, name, unit_price, quantity, line_total)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`

		batch := &pgx.Batch{}
		for i, line := range quote.Options {
			batch.Queue(insertLine, quote.ID, i, line.OptionID, line.Name, line.UnitPrice, line.Quantity, line.LineTotal)
		}

		results := tx.SendBatch(ctx, batch)
		for i := range quote.Options {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				r.logger.Error().
					Err(err).
					Str("quote_id", quote.ID.String()).
					Int64("option_id", quote.Options[i].OptionID).
					Msg("failed to insert option line")
				return nil, false, fmt.Errorf("failed to insert option line: %w", err)
			}
		}
		if err := results.Close(); err != nil {
			return nil, false, fmt.Errorf("failed to close option line batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.Error().Err(err).Str("quote_id", quote.ID.String()).Msg("failed to commit quote")
		return nil, false, fmt.Errorf("failed to commit quote: %w", err)
	}

	r.logger.Debug().
		Str("quote_id", quote.ID.String()).
		Int64("final_total", quote.FinalTotal).
		Msg("quote created successfully")

	return quote, true, nil
}

// GetByID retrieves a quote and its option lines.
func (r *quoteRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.PersistedQuote, error) {
	return r.getOne(ctx, `SELECT `+quoteColumns+` FROM quotes q WHERE q.id = $1`, id)
}

// GetByIdempotencyKey retrieves the quote stored under key.
func (r *quoteRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.PersistedQuote, error) {
	return r.getOne(ctx, `SELECT `+quoteColumns+` FROM quotes q WHERE q.idempotency_key = $1`, key)
}

func (r *quoteRepository) getOne(ctx context.Context, query string, arg any) (*model.PersistedQuote, error) {
	quote, err := scanQuote(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error().Err(err).Msg("failed to query quote")
		return nil, fmt.Errorf("failed to query quote: %w", err)
	}

	quotes := []model.PersistedQuote{*quote}
	if err := r.attachLines(ctx, r.pool, quotes); err != nil {
		return nil, err
	}
	return &quotes[0], nil
}

// Search runs the count and the page query inside one read-only repeatable
// read transaction so totals and content agree.
func (r *quoteRepository) Search(ctx context.Context, filter model.SearchFilter, page, size int) (model.PageResult[model.PersistedQuote], error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to begin search transaction")
		return model.PageResult[model.PersistedQuote]{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	where, args := buildSearchWhere(filter)

	var total int64
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM quotes q`+where, args...).Scan(&total); err != nil {
		r.logger.Error().Err(err).Msg("failed to count quotes")
		return model.PageResult[model.PersistedQuote]{}, fmt.Errorf("failed to count quotes: %w", err)
	}

	offset, ok := model.PageOffset(page, size, total)
	if !ok {
		return model.NewPageResult[model.PersistedQuote](nil, page, size, total), nil
	}

	pageArgs := append(args, size, offset)
	query := fmt.Sprintf(`SELECT %s FROM quotes q%s ORDER BY q.created_at DESC, q.id DESC LIMIT $%d OFFSET $%d`,
		quoteColumns, where, len(args)+1, len(args)+2)

	rows, err := tx.Query(ctx, query, pageArgs...)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to search quotes")
		return model.PageResult[model.PersistedQuote]{}, fmt.Errorf("failed to search quotes: %w", err)
	}

	quotes := make([]model.PersistedQuote, 0, size)
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			rows.Close()
			r.logger.Error().Err(err).Msg("failed to scan quote row")
			return model.PageResult[model.PersistedQuote]{}, fmt.Errorf("failed to scan quote: %w", err)
		}
		quotes = append(quotes, *q)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("error iterating quote rows")
		return model.PageResult[model.PersistedQuote]{}, fmt.Errorf("error iterating quotes: %w", err)
	}

	if err := r.attachLines(ctx, tx, quotes); err != nil {
		return model.PageResult[model.PersistedQuote]{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.PageResult[model.PersistedQuote]{}, fmt.Errorf("failed to commit search: %w", err)
	}

	r.logger.Debug().
		Int64("total", total).
		Int("returned", len(quotes)).
		Msg("quote search completed")

	return model.NewPageResult(quotes, page, size, total), nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// attachLines loads the option lines of every quote in one query.
func (r *quoteRepository) attachLines(ctx context.Context, q querier, quotes []model.PersistedQuote) error {
	if len(quotes) == 0 {
		return nil
	}

	ids := make([]string, len(quotes))
	index := make(map[uuid.UUID]int, len(quotes))
	for i := range quotes {
		ids[i] = quotes[i].ID.String()
		index[quotes[i].ID] = i
		quotes[i].Options = []model.OptionLine{}
	}

	query := `
		SELECT quote_id, option_id, name, unit_price, quantity, line_total
		FROM quote_option_lines
		WHERE quote_id = ANY($1::uuid[])
		ORDER BY quote_id, position
	`

	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to query option lines")
		return fmt.Errorf("failed to query option lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var quoteID uuid.UUID
		var line model.OptionLine
		if err := rows.Scan(&quoteID, &line.OptionID, &line.Name, &line.UnitPrice, &line.Quantity, &line.LineTotal); err != nil {
			r.logger.Error().Err(err).Msg("failed to scan option line row")
			return fmt.Errorf("failed to scan option line: %w", err)
		}
		if i, ok := index[quoteID]; ok {
			quotes[i].Options = append(quotes[i].Options, line)
		}
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating option lines: %w", err)
	}
	return nil
}

func scanQuote(row pgx.Row) (*model.PersistedQuote, error) {
	var q model.PersistedQuote
	var discountRate, taxRate string
	err := row.Scan(
		&q.ID, &q.IdempotencyKey, &q.BaseItemID, &q.ItemName, &q.BaseUnitPrice, &q.Quantity,
		&q.ItemsTotal, &q.OptionsTotal, &q.Subtotal, &discountRate, &taxRate,
		&q.DiscountAmount, &q.TaxAmount, &q.FinalTotal, &q.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if q.DiscountRate, err = decimal.NewFromString(discountRate); err != nil {
		return nil, fmt.Errorf("invalid stored discount rate %q: %w", discountRate, err)
	}
	if q.TaxRate, err = decimal.NewFromString(taxRate); err != nil {
		return nil, fmt.Errorf("invalid stored tax rate %q: %w", taxRate, err)
	}
	q.CreatedAt = q.CreatedAt.UTC()
	return &q, nil
}

// buildSearchWhere renders filter as a WHERE clause with positional args.
func buildSearchWhere(filter model.SearchFilter) (string, []any) {
	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if text := strings.TrimSpace(filter.Text); text != "" {
		p := arg("%" + escapeLike(text) + "%")
		conds = append(conds, fmt.Sprintf(
			`(q.item_name ILIKE %[1]s OR EXISTS (SELECT 1 FROM quote_option_lines l WHERE l.quote_id = q.id AND l.name ILIKE %[1]s))`, p))
	}
	if filter.MinTotal != nil {
		conds = append(conds, "q.final_total >= "+arg(*filter.MinTotal))
	}
	if filter.MaxTotal != nil {
		conds = append(conds, "q.final_total <= "+arg(*filter.MaxTotal))
	}
	if filter.CreatedFrom != nil {
		conds = append(conds, "q.created_at >= "+arg(filter.CreatedFrom.UTC()))
	}
	if filter.CreatedTo != nil {
		conds = append(conds, "q.created_at <= "+arg(filter.CreatedTo.UTC()))
	}
	if filter.HasOptions {
		conds = append(conds, "q.option_count > 0")
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// newPersistedQuote stamps breakdown with identity and a millisecond UTC
// creation time, copying the option lines.
func newPersistedQuote(id uuid.UUID, key string, now time.Time, breakdown model.QuoteBreakdown) *model.PersistedQuote {
	q := &model.PersistedQuote{
		ID:             id,
		IdempotencyKey: key,
		CreatedAt:      now.UTC().Truncate(time.Millisecond),
		QuoteBreakdown: breakdown,
	}
	q.Options = append([]model.OptionLine{}, breakdown.Options...)
	return q
}

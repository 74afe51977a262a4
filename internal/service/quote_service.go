package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"estimate-api/internal/events"
	"estimate-api/internal/idempotency"
	"estimate-api/internal/metrics"
	"estimate-api/internal/model"
	"estimate-api/internal/pricing"
	"estimate-api/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	// MaxIdempotencyKeyLength bounds client supplied keys.
	MaxIdempotencyKeyLength = 255

	DefaultPageSize = 10
	MaxPageSize     = 100
)

// quoteService implements QuoteService. It is the submission coordinator:
// completed keys live in the quote repository, in-flight keys are coalesced
// in process with singleflight and fenced across instances by the guard.
type quoteService struct {
	prices      PriceBook
	quoteRepo   repository.QuoteRepository
	guard       idempotency.Guard
	publisher   events.Publisher
	metrics     *metrics.Metrics
	workTimeout time.Duration
	logger      zerolog.Logger

	group    singleflight.Group
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewQuoteService creates a new quote service. workTimeout bounds one
// submission attempt and should not exceed the guard's marker TTL.
func NewQuoteService(
	prices PriceBook,
	quoteRepo repository.QuoteRepository,
	guard idempotency.Guard,
	publisher events.Publisher,
	m *metrics.Metrics,
	workTimeout time.Duration,
	logger zerolog.Logger,
) QuoteService {
	if guard == nil {
		guard = idempotency.NopGuard{}
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if workTimeout <= 0 {
		workTimeout = 30 * time.Second
	}
	return &quoteService{
		prices:      prices,
		quoteRepo:   quoteRepo,
		guard:       guard,
		publisher:   publisher,
		metrics:     m,
		workTimeout: workTimeout,
		logger:      logger.With().Str("service", "quote").Logger(),
		inFlight:    make(map[string]struct{}),
	}
}

// Preview computes the breakdown for req.
func (s *quoteService) Preview(ctx context.Context, req model.QuoteRequest) (*model.QuoteBreakdown, error) {
	breakdown, err := s.compute(ctx, req)
	if err != nil {
		s.metrics.IncPreview(metrics.OutcomeFailed)
		return nil, err
	}

	s.metrics.IncPreview(metrics.OutcomeOK)
	return &breakdown, nil
}

func (s *quoteService) compute(ctx context.Context, req model.QuoteRequest) (model.QuoteBreakdown, error) {
	// Reject malformed input before touching the catalog.
	if err := pricing.ValidateRequest(req); err != nil {
		return model.QuoteBreakdown{}, err
	}

	prices, err := s.prices.Resolve(ctx, req.BaseItemID, req.OptionIDs)
	if err != nil {
		return model.QuoteBreakdown{}, err
	}

	return pricing.Compute(req, prices)
}

type submission struct {
	quote   *model.PersistedQuote
	created bool
}

// Submit stores the quote for key exactly once. A completed key returns the
// stored quote without recomputation, whatever req now says. Concurrent
// callers in this process share one attempt; an attempt running on another
// instance yields a Conflict. Failed attempts leave the key unseen.
func (s *quoteService) Submit(ctx context.Context, req model.QuoteRequest, key string) (*model.PersistedQuote, error) {
	if key == "" {
		s.metrics.IncSubmission(metrics.OutcomeFailed)
		return nil, model.NewValidationError("idempotencyKey", "idempotency key is required")
	}
	if len(key) > MaxIdempotencyKeyLength {
		s.metrics.IncSubmission(metrics.OutcomeFailed)
		return nil, model.NewValidationError("idempotencyKey",
			fmt.Sprintf("idempotency key must be at most %d characters", MaxIdempotencyKeyLength))
	}

	existing, err := s.quoteRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to look up idempotency key")
		s.metrics.IncSubmission(metrics.OutcomeFailed)
		return nil, model.NewPersistenceError("failed to look up idempotency key", err)
	}
	if existing != nil {
		s.logger.Debug().Str("quote_id", existing.ID.String()).Msg("replaying completed submission")
		s.metrics.IncSubmission(metrics.OutcomeReplayed)
		return existing, nil
	}

	leader := false
	ch := s.group.DoChan(key, func() (interface{}, error) {
		leader = true
		return s.execute(ctx, key, req)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, model.ErrConflict) {
				s.metrics.IncSubmission(metrics.OutcomeConflict)
			} else {
				s.metrics.IncSubmission(metrics.OutcomeFailed)
			}
			return nil, res.Err
		}

		sub := res.Val.(*submission)
		if leader && sub.created {
			s.metrics.IncSubmission(metrics.OutcomeCreated)
		} else {
			s.metrics.IncSubmission(metrics.OutcomeReplayed)
		}
		return sub.quote, nil

	case <-ctx.Done():
		s.metrics.IncSubmission(metrics.OutcomeFailed)
		return nil, ctx.Err()
	}
}

// execute runs one attempt for key. It is detached from the caller's
// cancellation so joined callers are not failed by the leader going away.
func (s *quoteService) execute(parent context.Context, key string, req model.QuoteRequest) (*submission, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.workTimeout)
	defer cancel()

	s.markInFlight(key)
	defer s.clearInFlight(key)

	lease, err := s.guard.Acquire(ctx, key)
	if err != nil {
		if errors.Is(err, idempotency.ErrHeld) {
			return s.resolveHeld(ctx, key)
		}
		s.logger.Error().Err(err).Msg("failed to acquire in-progress marker")
		return nil, model.NewPersistenceError("idempotency store unavailable", err)
	}
	defer func() {
		_ = lease.Release(context.WithoutCancel(ctx))
	}()

	// Another instance may have completed the key between the first lookup
	// and acquiring the marker.
	existing, err := s.quoteRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, model.NewPersistenceError("failed to look up idempotency key", err)
	}
	if existing != nil {
		return &submission{quote: existing}, nil
	}

	breakdown, err := s.compute(ctx, req)
	if err != nil {
		s.logger.Debug().Err(err).Msg("submission rejected")
		return nil, err
	}

	quote, created, err := s.quoteRepo.CreateIfAbsent(ctx, key, breakdown)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to store quote")
		return nil, model.NewPersistenceError("failed to store quote", err)
	}

	if created {
		s.logger.Info().
			Str("quote_id", quote.ID.String()).
			Int64("final_total", quote.FinalTotal).
			Int("option_count", len(quote.Options)).
			Msg("quote created successfully")

		if err := s.publisher.PublishQuoteCreated(ctx, quote); err != nil {
			s.logger.Warn().Err(err).Str("quote_id", quote.ID.String()).Msg("failed to publish quote event")
		}
	}

	return &submission{quote: quote, created: created}, nil
}

// resolveHeld handles a marker owned by another instance. If that owner has
// already stored the quote it is returned, otherwise the caller must retry.
func (s *quoteService) resolveHeld(ctx context.Context, key string) (*submission, error) {
	existing, err := s.quoteRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, model.NewPersistenceError("failed to look up idempotency key", err)
	}
	if existing != nil {
		return &submission{quote: existing}, nil
	}

	s.logger.Info().Msg("submission in progress on another instance")
	return nil, model.NewConflictError("a submission with this idempotency key is in progress, retry with the same key")
}

func (s *quoteService) markInFlight(key string) {
	s.mu.Lock()
	s.inFlight[key] = struct{}{}
	s.mu.Unlock()
}

func (s *quoteService) clearInFlight(key string) {
	s.mu.Lock()
	delete(s.inFlight, key)
	s.mu.Unlock()
}

// KeyState reports the lifecycle state of key.
func (s *quoteService) KeyState(ctx context.Context, key string) (model.KeyState, error) {
	s.mu.Lock()
	_, running := s.inFlight[key]
	s.mu.Unlock()
	if running {
		return model.KeyInProgress, nil
	}

	existing, err := s.quoteRepo.GetByIdempotencyKey(ctx, key)
	if err != nil {
		return model.KeyUnseen, model.NewPersistenceError("failed to look up idempotency key", err)
	}
	if existing != nil {
		return model.KeyCompleted, nil
	}
	return model.KeyUnseen, nil
}

// GetByID retrieves a stored quote.
func (s *quoteService) GetByID(ctx context.Context, id uuid.UUID) (*model.PersistedQuote, error) {
	quote, err := s.quoteRepo.GetByID(ctx, id)
	if err != nil {
		s.logger.Error().Err(err).Str("quote_id", id.String()).Msg("failed to get quote")
		return nil, model.NewPersistenceError("failed to load quote", err)
	}

	if quote == nil {
		s.logger.Debug().Str("quote_id", id.String()).Msg("quote not found")
		return nil, model.NewNotFoundError(fmt.Sprintf("quote %s not found", id))
	}

	return quote, nil
}

// Search validates paging and filter bounds, then queries the repository.
// A size of zero selects the default page size.
func (s *quoteService) Search(ctx context.Context, filter model.SearchFilter, page, size int) (model.PageResult[model.PersistedQuote], error) {
	if page < 0 {
		return model.PageResult[model.PersistedQuote]{}, model.NewValidationError("page", "page must not be negative")
	}
	if size == 0 {
		size = DefaultPageSize
	}
	if size < 1 || size > MaxPageSize {
		return model.PageResult[model.PersistedQuote]{}, model.NewValidationError("size",
			fmt.Sprintf("size must be between 1 and %d", MaxPageSize))
	}
	if filter.MinTotal != nil && filter.MaxTotal != nil && *filter.MinTotal > *filter.MaxTotal {
		return model.PageResult[model.PersistedQuote]{}, model.NewValidationError("minTotal", "minTotal must not exceed maxTotal")
	}
	if filter.CreatedFrom != nil && filter.CreatedTo != nil && filter.CreatedFrom.After(*filter.CreatedTo) {
		return model.PageResult[model.PersistedQuote]{}, model.NewValidationError("from", "from must not be after to")
	}

	result, err := s.quoteRepo.Search(ctx, filter, page, size)
	if err != nil {
		s.logger.Error().Err(err).Int("page", page).Int("size", size).Msg("failed to search quotes")
		return model.PageResult[model.PersistedQuote]{}, model.NewPersistenceError("failed to search quotes", err)
	}

	s.logger.Debug().
		Int64("total", result.TotalElements).
		Int("page", page).
		Int("size", size).
		Msg("searched quotes")

	return result, nil
}

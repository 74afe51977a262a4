package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"estimate-api/internal/idempotency"
	"estimate-api/internal/model"
	"estimate-api/internal/repository"
	"estimate-api/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newInstance builds one API instance's coordinator against the shared
// database and Redis.
func newInstance(t *testing.T, testDB *TestDB, client redis.UniversalClient) service.QuoteService {
	t.Helper()

	logger := zerolog.Nop()
	guard, err := idempotency.NewRedisGuard(client, 30*time.Second, logger)
	require.NoError(t, err)

	prices := service.NewPriceBook(repository.NewCatalogRepository(testDB.Pool, logger), logger)
	return service.NewQuoteService(prices, repository.NewQuoteRepository(testDB.Pool, logger), guard, nil, nil, 10*time.Second, logger)
}

func TestCoordinator_CrossInstance_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	instances := []service.QuoteService{
		newInstance(t, testDB, client),
		newInstance(t, testDB, client),
		newInstance(t, testDB, client),
	}

	req := model.QuoteRequest{
		BaseItemID: 2,
		Quantity:   1,
		OptionIDs:  []int64{4, 5},
		TaxRate:    decimal.RequireFromString("0.08"),
	}

	const perInstance = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ids       = map[string]int{}
		conflicts int
	)
	for _, svc := range instances {
		for i := 0; i < perInstance; i++ {
			wg.Add(1)
			go func(svc service.QuoteService) {
				defer wg.Done()
				q, err := svc.Submit(context.Background(), req, "shared-key")

				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ids[q.ID.String()]++
				case errors.Is(err, model.ErrConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(svc)
		}
	}
	wg.Wait()

	assert.Len(t, ids, 1, "every successful caller sees the same quote")
	assert.Equal(t, 1, CountQuotes(t, testDB.Pool))
	assert.Equal(t, len(instances)*perInstance, conflicts+func() int {
		n := 0
		for _, c := range ids {
			n += c
		}
		return n
	}())

	// Once completed, every instance replays without contention.
	for _, svc := range instances {
		q, err := svc.Submit(context.Background(), req, "shared-key")
		require.NoError(t, err)
		_, ok := ids[q.ID.String()]
		assert.True(t, ok)

		state, err := svc.KeyState(context.Background(), "shared-key")
		require.NoError(t, err)
		assert.Equal(t, model.KeyCompleted, state)
	}

	assert.False(t, mr.Exists(idempotency.MarkerKey("shared-key")), "marker released after completion")
}

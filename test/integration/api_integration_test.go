package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"estimate-api/internal/auth"
	"estimate-api/internal/config"
	"estimate-api/internal/export"
	"estimate-api/internal/handler"
	"estimate-api/internal/model"
	"estimate-api/internal/repository"
	"estimate-api/internal/router"
	"estimate-api/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiClient struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func setupTestServer(t *testing.T, testDB *TestDB) *apiClient {
	t.Helper()

	logger := zerolog.Nop()

	prices := service.NewPriceBook(repository.NewCatalogRepository(testDB.Pool, logger), logger)
	quotes := service.NewQuoteService(prices, repository.NewQuoteRepository(testDB.Pool, logger), nil, nil, nil, 5*time.Second, logger)

	archive, err := export.NewFileArchive(t.TempDir(), logger)
	require.NoError(t, err)

	issuer, err := auth.NewIssuer(config.AuthConfig{JWTSecret: "integration", Issuer: "estimate-api", TokenTTL: time.Hour})
	require.NoError(t, err)
	token, err := issuer.Issue("integration", time.Now())
	require.NoError(t, err)

	h := router.New(router.Handlers{
		Quotes:  handler.NewQuoteHandler(quotes, logger),
		Catalog: handler.NewCatalogHandler(prices, logger),
		Exports: handler.NewExportHandler(export.NewExporter(quotes, archive, logger), logger),
	}, router.Options{Verifier: issuer, Logger: logger})

	return &apiClient{t: t, handler: h, token: token}
}

func (c *apiClient) do(method, path string, body interface{}, key string) *httptest.ResponseRecorder {
	c.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if key != "" {
		req.Header.Set(handler.IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	return w
}

func cakeRequest() map[string]interface{} {
	return map[string]interface{}{
		"baseItemId":   1,
		"quantity":     2,
		"optionIds":    []int{1, 2},
		"discountRate": "0",
		"taxRate":      "0.10",
	}
}

func TestCatalogAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	client := setupTestServer(t, testDB)

	w := client.do(http.MethodGet, "/api/items", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var items []model.BaseItem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &items))
	assert.Len(t, items, 3)

	w = client.do(http.MethodGet, "/api/items/1/options", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var options []model.Option
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &options))
	assert.Len(t, options, 3)
}

func TestQuoteAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	client := setupTestServer(t, testDB)

	t.Run("Preview stores nothing", func(t *testing.T) {
		CleanupQuotes(t, testDB.Pool)

		w := client.do(http.MethodPost, "/api/quotes/preview", cakeRequest(), "")

		require.Equal(t, http.StatusOK, w.Code)
		var breakdown model.QuoteBreakdown
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &breakdown))
		assert.Equal(t, int64(85800), breakdown.FinalTotal)
		assert.Equal(t, 0, CountQuotes(t, testDB.Pool))
	})

	t.Run("Retries return the stored quote", func(t *testing.T) {
		CleanupQuotes(t, testDB.Pool)

		first := client.do(http.MethodPost, "/api/quotes", cakeRequest(), "retry-1")
		require.Equal(t, http.StatusCreated, first.Code)

		divergent := cakeRequest()
		divergent["quantity"] = 7
		second := client.do(http.MethodPost, "/api/quotes", divergent, "retry-1")
		require.Equal(t, http.StatusCreated, second.Code)

		assert.JSONEq(t, first.Body.String(), second.Body.String())
		assert.Equal(t, 1, CountQuotes(t, testDB.Pool))

		var stored model.PersistedQuote
		require.NoError(t, json.Unmarshal(first.Body.Bytes(), &stored))
		got := client.do(http.MethodGet, "/api/quotes/"+stored.ID.String(), nil, "")
		require.Equal(t, http.StatusOK, got.Code)
		assert.JSONEq(t, first.Body.String(), got.Body.String())
	})

	t.Run("Concurrent submissions store once", func(t *testing.T) {
		CleanupQuotes(t, testDB.Pool)

		const callers = 20
		var wg sync.WaitGroup
		bodies := make([]string, callers)
		codes := make([]int, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				w := client.do(http.MethodPost, "/api/quotes", cakeRequest(), "burst")
				codes[i] = w.Code
				bodies[i] = w.Body.String()
			}(i)
		}
		wg.Wait()

		for i := range codes {
			assert.Equal(t, http.StatusCreated, codes[i])
			assert.JSONEq(t, bodies[0], bodies[i])
		}
		assert.Equal(t, 1, CountQuotes(t, testDB.Pool))
	})

	t.Run("Failed submission leaves the key reusable", func(t *testing.T) {
		CleanupQuotes(t, testDB.Pool)

		bad := cakeRequest()
		bad["optionIds"] = []int{4}
		w := client.do(http.MethodPost, "/api/quotes", bad, "fix-me")
		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		w = client.do(http.MethodPost, "/api/quotes", cakeRequest(), "fix-me")
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, 1, CountQuotes(t, testDB.Pool))
	})
}

func TestSearchAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	testDB := SetupTestDB(t)
	client := setupTestServer(t, testDB)

	requests := []map[string]interface{}{
		{"baseItemId": 1, "quantity": 1, "taxRate": "0"},
		{"baseItemId": 2, "quantity": 1, "optionIds": []int{4}, "taxRate": "0"},
		{"baseItemId": 3, "quantity": 1, "optionIds": []int{6}, "taxRate": "0"},
	}
	for i, req := range requests {
		w := client.do(http.MethodPost, "/api/quotes", req, fmt.Sprintf("search-%d", i))
		require.Equal(t, http.StatusCreated, w.Code)
	}

	tests := []struct {
		name      string
		query     string
		wantTotal int64
		wantFirst string
	}{
		{name: "Newest first", query: "", wantTotal: 3, wantFirst: "Cheesecake"},
		{name: "Option name", query: "q=gold", wantTotal: 1, wantFirst: "Chocolate Ganache Cake"},
		{name: "Has options", query: "hasOptions=true", wantTotal: 2, wantFirst: "Cheesecake"},
		{name: "Total range", query: "minTotal=35000&maxTotal=40000", wantTotal: 1, wantFirst: "Strawberry Cream Cake"},
		{name: "Today", query: "from=" + time.Now().UTC().Format(time.DateOnly) + "&to=" + time.Now().UTC().Format(time.DateOnly), wantTotal: 3, wantFirst: "Cheesecake"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := client.do(http.MethodGet, "/api/quotes/search?"+tt.query, nil, "")

			require.Equal(t, http.StatusOK, w.Code)
			var page model.PageResult[model.PersistedQuote]
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
			assert.Equal(t, tt.wantTotal, page.TotalElements)
			require.NotEmpty(t, page.Content)
			assert.Equal(t, tt.wantFirst, page.Content[0].ItemName)
		})
	}

	t.Run("Page past the end", func(t *testing.T) {
		w := client.do(http.MethodGet, "/api/quotes/search?page=3&size=2", nil, "")

		require.Equal(t, http.StatusOK, w.Code)
		var page model.PageResult[model.PersistedQuote]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
		assert.Empty(t, page.Content)
		assert.Equal(t, int64(3), page.TotalElements)
		assert.Equal(t, 2, page.TotalPages)
	})

	t.Run("Export contains every match", func(t *testing.T) {
		w := client.do(http.MethodGet, "/api/quotes/export.csv?hasOptions=true", nil, "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Gold Leaf")
		assert.Contains(t, w.Body.String(), "Blueberry Topping")
		assert.NotContains(t, w.Body.String(), "Strawberry Cream Cake")
	})
}

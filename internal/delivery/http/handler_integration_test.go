package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pricelens/backend/config"
	"github.com/pricelens/backend/internal/domain"
	"github.com/pricelens/backend/internal/infrastructure/registry"
	"github.com/pricelens/backend/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// MockComparer is a mock implementation of PriceComparer
type MockComparer struct {
	products []domain.ProductRecord
	err      error
	queries  []domain.Query
}

func (m *MockComparer) Compare(ctx context.Context, q domain.Query) ([]domain.ProductRecord, error) {
	m.queries = append(m.queries, q)
	return m.products, m.err
}

// MockRetailers is a mock implementation of RetailerLister
type MockRetailers struct {
	retailers []registry.RetailerInfo
}

func (m *MockRetailers) Retailers() []registry.RetailerInfo {
	return m.retailers
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"*"},
		},
		RateLimit: config.RateLimitConfig{PerIP: 600, Burst: 100},
	}
}

// setupTestRouter creates a test router around the given comparer
func setupTestRouter(comparer PriceComparer) *gin.Engine {
	retailers := &MockRetailers{retailers: []registry.RetailerInfo{
		{ID: "exito", Name: "Éxito", Method: domain.MethodCatalogAPI, Domains: []string{"exito.com"}},
		{ID: "d1", Name: "D1", Method: domain.MethodDeepLink, Domains: []string{"domicilios.tiendasd1.com"}, ExternalLink: true},
	}}
	handler := NewHandler(usecase.NewQueryPreprocessor(usecase.QueryConfig{}), comparer, retailers)
	return SetupRouter(testConfig(), handler)
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func assertErrorBody(t *testing.T, w *httptest.ResponseRecorder, contains string) {
	t.Helper()
	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "error", response["status"])
	msg, ok := response["error"].(string)
	require.True(t, ok, "error field is not a string: %v", response["error"])
	assert.Contains(t, msg, contains)
}

func TestHealthCheckEndpoint(t *testing.T) {
	t.Run("returns healthy status", func(t *testing.T) {
		router := setupTestRouter(&MockComparer{})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

		require.Equal(t, http.StatusOK, w.Code)
		var response map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "healthy", response["status"])
		assert.Equal(t, "pricelens-backend", response["service"])
		assert.NotEmpty(t, response["version"])
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("accepts GET requests only", func(t *testing.T) {
		router := setupTestRouter(&MockComparer{})

		for _, method := range []string{"POST", "PUT", "DELETE", "PATCH"} {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(method, "/health", nil))
			assert.Equal(t, http.StatusNotFound, w.Code, method)
		}
	})
}

func TestSearchPricesEndpoint(t *testing.T) {
	arroz := domain.ProductRecord{
		Store:        "Éxito",
		StoreID:      "exito",
		Name:         "Arroz Diana 500g",
		Price:        4500,
		RegularPrice: 5000,
		DiscountPct:  10,
		Availability: domain.AvailabilityInStock,
		URL:          "https://www.exito.com/arroz-diana-500g/p",
		VerifiedAt:   "2026-03-15",
		SourceURL:    "https://www.exito.com/arroz-diana-500g/p",
	}

	t.Run("returns products", func(t *testing.T) {
		comparer := &MockComparer{products: []domain.ProductRecord{arroz}}
		router := setupTestRouter(comparer)

		w := postJSON(router, "/api/v1/prices/search",
			`{"productName":"arroz diana","selectedStores":[{"id":"exito"},{"id":"exito"}],"productLimit":10}`)

		require.Equal(t, http.StatusOK, w.Code)
		var response struct {
			Products []domain.ProductRecord `json:"products"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, []domain.ProductRecord{arroz}, response.Products)

		require.Len(t, comparer.queries, 1)
		q := comparer.queries[0]
		assert.Equal(t, "arroz diana", q.Name)
		assert.Equal(t, []string{"exito"}, q.StoreIDs)
		assert.Equal(t, 10, q.Limit)
		assert.True(t, q.IncludeOutOfStock)
	})

	t.Run("wire field names", func(t *testing.T) {
		router := setupTestRouter(&MockComparer{products: []domain.ProductRecord{arroz}})

		w := postJSON(router, "/api/v1/prices/search", `{"productName":"arroz diana"}`)

		body := w.Body.String()
		for _, field := range []string{`"store"`, `"storeId"`, `"regularPrice"`, `"discountPct"`, `"verifiedAt"`, `"externalLink"`, `"sourceUrl"`} {
			assert.Contains(t, body, field)
		}
	})

	t.Run("empty result is an empty list", func(t *testing.T) {
		router := setupTestRouter(&MockComparer{})

		w := postJSON(router, "/api/v1/prices/search", `{"ean":"7701234567890"}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"products":[]}`, w.Body.String())
	})

	t.Run("legacy alias", func(t *testing.T) {
		comparer := &MockComparer{products: []domain.ProductRecord{arroz}}
		router := setupTestRouter(comparer)

		w := postJSON(router, "/api/search", `{"productName":"7701234567890","isRadar":true}`)

		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, comparer.queries, 1)
		assert.Equal(t, "7701234567890", comparer.queries[0].Barcode)
		assert.True(t, comparer.queries[0].Broad)
	})

	t.Run("store catalog mode", func(t *testing.T) {
		comparer := &MockComparer{}
		router := setupTestRouter(comparer)

		w := postJSON(router, "/api/v1/prices/search",
			`{"productName":"leche","searchMode":"store-catalog","storeId":"olimpica","includeOutOfStock":false}`)

		require.Equal(t, http.StatusOK, w.Code)
		require.Len(t, comparer.queries, 1)
		assert.Equal(t, []string{"olimpica"}, comparer.queries[0].StoreIDs)
		assert.False(t, comparer.queries[0].IncludeOutOfStock)
	})

	errorCases := []struct {
		name     string
		body     string
		contains string
	}{
		{"malformed JSON", `{"productName":`, "malformed JSON"},
		{"missing name and barcode", `{"brand":"Diana"}`, "productName or ean is required"},
		{"store catalog without store", `{"productName":"leche","searchMode":"store-catalog"}`, "storeId is required"},
		{"unknown search mode", `{"productName":"leche","searchMode":"crawl"}`, "unknown searchMode"},
	}
	for _, tc := range errorCases {
		t.Run("rejects "+tc.name, func(t *testing.T) {
			comparer := &MockComparer{}
			router := setupTestRouter(comparer)

			w := postJSON(router, "/api/v1/prices/search", tc.body)

			assert.Equal(t, http.StatusOK, w.Code)
			assertErrorBody(t, w, tc.contains)
			assert.Empty(t, comparer.queries, "no IO before validation passes")
		})
	}

	t.Run("comparison failure", func(t *testing.T) {
		router := setupTestRouter(&MockComparer{err: errors.New("registry unavailable")})

		w := postJSON(router, "/api/v1/prices/search", `{"productName":"arroz"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assertErrorBody(t, w, "registry unavailable")
	})

	t.Run("comparison not configured", func(t *testing.T) {
		handler := NewHandler(nil, nil, nil)
		router := SetupRouter(testConfig(), handler)

		w := postJSON(router, "/api/v1/prices/search", `{"productName":"arroz"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		assertErrorBody(t, w, "not configured")
	})

	t.Run("preflight", func(t *testing.T) {
		router := setupTestRouter(&MockComparer{})

		req := httptest.NewRequest("OPTIONS", "/api/v1/prices/search", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", "POST")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Empty(t, w.Body.String())
	})
}

func TestListRetailersEndpoint(t *testing.T) {
	router := setupTestRouter(&MockComparer{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/retailers", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var response struct {
		Retailers []registry.RetailerInfo `json:"retailers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	require.Len(t, response.Retailers, 2)
	assert.Equal(t, "exito", response.Retailers[0].ID)
	assert.True(t, response.Retailers[1].ExternalLink)
}

func TestListRetailersEndpoint_Registry(t *testing.T) {
	reg, err := registry.New(nil, registry.Builtin())
	require.NoError(t, err)
	handler := NewHandler(nil, &MockComparer{}, reg)
	router := SetupRouter(testConfig(), handler)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/api/v1/retailers", nil))

	var response struct {
		Retailers []registry.RetailerInfo `json:"retailers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response.Retailers, len(registry.Builtin()))
}

package catalog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/catalog"
)

type fakeProducts struct {
	products []catalog.Product
}

func (f *fakeProducts) ListProducts(_ context.Context, limit, offset int32) ([]catalog.Product, error) {
	if int(offset) >= len(f.products) {
		return nil, nil
	}
	out := f.products[offset:]
	if int(limit) < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeProducts) CountProducts(_ context.Context) (int64, error) {
	return int64(len(f.products)), nil
}

func (f *fakeProducts) GetProductByCode(_ context.Context, code string) (catalog.Product, error) {
	for _, p := range f.products {
		if p.Code == code {
			return p, nil
		}
	}
	return catalog.Product{}, pgx.ErrNoRows
}

func sampleProducts() []catalog.Product {
	return []catalog.Product{
		{
			ID:         uuid.New(),
			Code:       "NB001",
			Name:       "Notebook",
			Stock:      50,
			UnitPrice:  decimal.RequireFromString("50.00"),
			TaxPercent: decimal.RequireFromString("5.00"),
			CreatedAt:  time.Now(),
		},
		{
			ID:         uuid.New(),
			Code:       "PEN01",
			Name:       "Pen",
			Stock:      100,
			UnitPrice:  decimal.RequireFromString("10.00"),
			TaxPercent: decimal.RequireFromString("12.00"),
			CreatedAt:  time.Now(),
		},
	}
}

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Store:        &fakeProducts{products: sampleProducts()},
		DefaultLimit: 20,
		MaxLimit:     100,
	})
	require.NoError(t, err)
	handler := catalog.Handler{Service: svc}

	r := chi.NewRouter()
	r.Get("/api/v1/products", handler.Products)
	r.Get("/api/v1/products/{code}", handler.ProductDetail)
	return r
}

func TestProductsList(t *testing.T) {
	router := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "2", rr.Header().Get("X-Total-Count"))

	var body struct {
		Data []catalog.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
}

func TestProductDetail(t *testing.T) {
	router := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products/NB001", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body struct {
		Data catalog.Product `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "NB001", body.Data.Code)
	require.True(t, body.Data.UnitPrice.Equal(decimal.RequireFromString("50")))
}

func TestProductDetailNotFound(t *testing.T) {
	router := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products/ZZZZ", nil))

	require.Equal(t, http.StatusNotFound, rr.Code)
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, "NOT_FOUND", body.Error.Code)
}

package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Product is a catalog row. Prices are exact decimals scanned from numeric columns.
type Product struct {
	ID         uuid.UUID       `json:"id"`
	Code       string          `json:"code"`
	Name       string          `json:"name"`
	Stock      int64           `json:"stock"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	TaxPercent decimal.Decimal `json:"taxPercent"`
	CreatedAt  time.Time       `json:"createdAt"`
}

// ErrStoreUnavailable indicates the catalog store dependency is not configured.
var ErrStoreUnavailable = errors.New("catalog: store unavailable")

// Store provides read access to products backed by a pgx pool.
type Store struct {
	Pool *pgxpool.Pool
}

const productColumns = `id, code, name, stock, unit_price::text, tax_percent::text, created_at`

// ListProducts returns a page of products ordered by name.
func (s *Store) ListProducts(ctx context.Context, limit, offset int32) ([]Product, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CountProducts returns the catalog size.
func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	if s == nil || s.Pool == nil {
		return 0, ErrStoreUnavailable
	}
	var total int64
	err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&total)
	return total, err
}

// GetProductByCode fetches a single product by its unique code. Returns
// pgx.ErrNoRows when absent.
func (s *Store) GetProductByCode(ctx context.Context, code string) (Product, error) {
	if s == nil || s.Pool == nil {
		return Product{}, ErrStoreUnavailable
	}
	row := s.Pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE code = $1`, code)
	return scanProduct(row)
}

func scanProduct(row pgx.Row) (Product, error) {
	var (
		p          Product
		unitPrice  string
		taxPercent string
	)
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Stock, &unitPrice, &taxPercent, &p.CreatedAt); err != nil {
		return Product{}, err
	}
	var err error
	if p.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return Product{}, err
	}
	if p.TaxPercent, err = decimal.NewFromString(taxPercent); err != nil {
		return Product{}, err
	}
	return p, nil
}

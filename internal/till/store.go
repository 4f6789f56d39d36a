package till

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrStoreUnavailable indicates the till store dependency is not configured.
var ErrStoreUnavailable = errors.New("till: store unavailable")

// Store provides read access to the denomination inventory.
type Store struct {
	Pool *pgxpool.Pool
}

// List returns all denominations ordered by descending face value.
func (s *Store) List(ctx context.Context) ([]Denomination, error) {
	if s == nil || s.Pool == nil {
		return nil, ErrStoreUnavailable
	}
	rows, err := s.Pool.Query(ctx, `SELECT value, count_available FROM denominations ORDER BY value DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Denomination
	for rows.Next() {
		var d Denomination
		if err := rows.Scan(&d.Value, &d.CountAvailable); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

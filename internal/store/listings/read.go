package listings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/5w1tchy/book-thrift/internal/models"
	"github.com/5w1tchy/book-thrift/internal/store/dbx"
)

// Fetch returns every book, optionally narrowed to one mode, in insertion order.
func (s *Store) Fetch(ctx context.Context, mode *models.Mode) ([]models.BookRow, error) {
	q := selectJoined
	var args []any
	if mode != nil {
		q += "WHERE b.mode = $1\n"
		args = append(args, string(*mode))
	}
	q += "ORDER BY b.id"

	out, err := queryRows(ctx, s.DB, q, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", err)
	}
	return out, nil
}

// FetchBySeller returns the books owned by sellerID.
func (s *Store) FetchBySeller(ctx context.Context, sellerID int64) ([]models.BookRow, error) {
	out, err := queryRows(ctx, s.DB, selectJoined+"WHERE b.seller_id = $1\nORDER BY b.id", sellerID)
	if err != nil {
		return nil, fmt.Errorf("fetch listings by seller: %w", err)
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id int64) (models.BookRow, error) {
	row, err := getRow(ctx, s.DB, id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BookRow{}, ErrNotFound
	}
	if err != nil {
		return models.BookRow{}, fmt.Errorf("get listing %d: %w", id, err)
	}
	return row, nil
}

func getRow(ctx context.Context, q dbx.Getter, id int64) (models.BookRow, error) {
	return scanRow(q.QueryRowContext(ctx, selectJoined+"WHERE b.id = $1", id))
}

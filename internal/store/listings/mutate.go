package listings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/5w1tchy/book-thrift/internal/models"
	"github.com/5w1tchy/book-thrift/internal/store/dbx"
)

// insertJoined inserts a book and returns it joined with its seller in the
// same statement, so a returned row is always one that will be committed.
const insertJoined = `
WITH b AS (
  INSERT INTO books (title, author, description, price, mode, image_filename,
                     latitude, longitude, address_label, seller_id, contact_number)
  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
  RETURNING *
)
SELECT` + joinedColumns + `
FROM b
LEFT JOIN users u ON u.id = b.seller_id`

// Insert stores a new book and returns it joined with its seller. On error
// nothing was committed.
func (s *Store) Insert(ctx context.Context, nb models.NewBook) (models.BookRow, error) {
	var row models.BookRow
	err := dbx.WithinTx(ctx, s.DB, func(tx *sql.Tx) error {
		var err error
		row, err = scanRow(tx.QueryRowContext(ctx, insertJoined,
			nb.Title, nb.Author, nb.Description, nb.Price, string(nb.Mode), nb.ImageFilename,
			nb.Coordinates.Lat, nb.Coordinates.Lon, nb.AddressLabel, nb.SellerID, nb.ContactNumber,
		))
		return err
	})
	if err != nil {
		return models.BookRow{}, fmt.Errorf("insert listing: %w", err)
	}
	return row, nil
}

// DeleteOwned removes book id if sellerID owns it and returns the image key
// the row referenced. The row is locked first so that two concurrent deletes
// resolve to one success and one ErrNotFound.
func (s *Store) DeleteOwned(ctx context.Context, id, sellerID int64) (*string, error) {
	var image *string
	err := dbx.WithinTx(ctx, s.DB, func(tx *sql.Tx) error {
		var owner int64
		err := tx.QueryRowContext(ctx,
			`SELECT seller_id, image_filename FROM books WHERE id = $1 FOR UPDATE`, id,
		).Scan(&owner, &image)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if owner != sellerID {
			return ErrNotOwner
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM books WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotOwner) {
			return nil, err
		}
		return nil, fmt.Errorf("delete listing %d: %w", id, err)
	}
	return image, nil
}

// SetSummary caches an AI summary on the book.
func (s *Store) SetSummary(ctx context.Context, id int64, summary string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE books SET ai_summary = $1 WHERE id = $2`, summary, id)
	if err != nil {
		return fmt.Errorf("set summary %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

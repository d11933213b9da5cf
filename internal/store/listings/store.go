// Package listings is the SQL store for books joined with their sellers.
package listings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/5w1tchy/book-thrift/internal/models"
	"github.com/5w1tchy/book-thrift/internal/store/dbx"
)

var (
	ErrNotFound = errors.New("listing not found")
	ErrNotOwner = errors.New("listing owned by another user")
)

type Store struct {
	DB *sql.DB
}

func New(db *sql.DB) *Store { return &Store{DB: db} }

const joinedColumns = `
  b.id, b.title, b.author, b.description, b.price, b.mode,
  b.image_filename, b.latitude, b.longitude, b.address_label,
  b.seller_id, b.contact_number, b.ai_summary, b.created_at,
  u.id, u.email, u.full_name`

// selectJoined loads a book with its seller in one round trip. The LEFT JOIN
// keeps orphaned rows visible; their seller columns come back NULL.
const selectJoined = `
SELECT` + joinedColumns + `
FROM books b
LEFT JOIN users u ON u.id = b.seller_id
`

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (models.BookRow, error) {
	var (
		b         models.Book
		mode      string
		lat, lon  *float64
		createdAt time.Time
		sellerID  sql.NullInt64
		email     sql.NullString
		fullName  sql.NullString
	)
	if err := sc.Scan(
		&b.ID, &b.Title, &b.Author, &b.Description, &b.Price, &mode,
		&b.ImageFilename, &lat, &lon, &b.AddressLabel,
		&b.SellerID, &b.ContactNumber, &b.AISummary, &createdAt,
		&sellerID, &email, &fullName,
	); err != nil {
		return models.BookRow{}, err
	}

	m, err := models.ParseMode(mode)
	if err != nil {
		return models.BookRow{}, fmt.Errorf("book %d: %w", b.ID, err)
	}
	b.Mode = m
	b.Coordinates = models.NewCoordinates(lat, lon)
	b.CreatedAt = createdAt

	row := models.BookRow{Book: b}
	if sellerID.Valid {
		row.Seller = &models.Seller{ID: sellerID.Int64, Email: email.String, FullName: fullName.String}
	}
	return row, nil
}

func queryRows(ctx context.Context, q dbx.Queryer, query string, args ...any) ([]models.BookRow, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

func scanRows(rows *sql.Rows) ([]models.BookRow, error) {
	defer rows.Close()
	out := []models.BookRow{}
	for rows.Next() {
		r, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

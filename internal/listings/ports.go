package listings

import (
	"context"
	"io"

	"github.com/5w1tchy/book-thrift/internal/external"
	"github.com/5w1tchy/book-thrift/internal/models"
)

// Repository is implemented by store/listings.Store.
type Repository interface {
	Fetch(ctx context.Context, mode *models.Mode) ([]models.BookRow, error)
	FetchBySeller(ctx context.Context, sellerID int64) ([]models.BookRow, error)
	Get(ctx context.Context, id int64) (models.BookRow, error)
	Insert(ctx context.Context, nb models.NewBook) (models.BookRow, error)
	DeleteOwned(ctx context.Context, id, sellerID int64) (*string, error)
	SetSummary(ctx context.Context, id int64, summary string) error
}

// AssetStore holds listing images by object key.
type AssetStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

type Geocoder interface {
	ResolveAddress(ctx context.Context, lat, lon float64) external.Result[string]
}

type Summarizer interface {
	Summarize(ctx context.Context, title, description, author string) external.Result[string]
}

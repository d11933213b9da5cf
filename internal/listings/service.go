package listings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/5w1tchy/book-thrift/internal/external"
	"github.com/5w1tchy/book-thrift/internal/logging"
	"github.com/5w1tchy/book-thrift/internal/metrics"
	"github.com/5w1tchy/book-thrift/internal/models"
	liststore "github.com/5w1tchy/book-thrift/internal/store/listings"
	"github.com/google/uuid"
)

type Service struct {
	repo       Repository
	assets     AssetStore
	geocoder   Geocoder
	summarizer Summarizer
}

func NewService(repo Repository, assets AssetStore, geocoder Geocoder, summarizer Summarizer) *Service {
	if summarizer == nil {
		summarizer = external.NopSummarizer{}
	}
	return &Service{repo: repo, assets: assets, geocoder: geocoder, summarizer: summarizer}
}

// CreateInput is a validated listing form.
type CreateInput struct {
	Title         string
	Author        string
	Description   *string
	Price         float64
	Mode          models.Mode
	Coordinates   models.Coordinates
	ContactNumber *string
}

// Upload is the listing image as received from the client.
type Upload struct {
	Body        io.Reader
	Size        int64
	Filename    string
	ContentType string
}

// ListListings returns every listing matching mode, nearest first when viewer
// is set and in insertion order otherwise.
func (s *Service) ListListings(ctx context.Context, mode *models.Mode, viewer *models.Coordinates) ([]models.Listing, error) {
	rows, err := s.repo.Fetch(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	ls := Rank(EnrichAll(rows, viewer), viewer != nil)
	s.attachImageURLs(ctx, ls)
	metrics.ListingsReturned.Observe(float64(len(ls)))
	return ls, nil
}

func (s *Service) ListForSeller(ctx context.Context, sellerID int64) ([]models.Listing, error) {
	rows, err := s.repo.FetchBySeller(ctx, sellerID)
	if err != nil {
		return nil, fmt.Errorf("list seller listings: %w", err)
	}
	ls := EnrichAll(rows, nil)
	s.attachImageURLs(ctx, ls)
	return ls, nil
}

func (s *Service) GetListing(ctx context.Context, id int64, viewer *models.Coordinates) (models.Listing, error) {
	row, err := s.repo.Get(ctx, id)
	if err != nil {
		return models.Listing{}, mapStoreErr(err)
	}
	l := Enrich(row, viewer)
	s.attachImageURL(ctx, &l)
	return l, nil
}

// DeleteListing removes a listing owned by userID. The image is removed
// afterwards; failing to remove it does not fail the delete.
func (s *Service) DeleteListing(ctx context.Context, id, userID int64) error {
	image, err := s.repo.DeleteOwned(ctx, id, userID)
	if err != nil {
		return mapStoreErr(err)
	}
	if image != nil && *image != "" {
		s.removeAsset(ctx, *image)
	}
	return nil
}

func (s *Service) CreateListing(ctx context.Context, sellerID int64, in CreateInput, img Upload) (models.Listing, error) {
	if err := checkCreate(in, img); err != nil {
		return models.Listing{}, err
	}

	key := uuid.NewString() + strings.ToLower(filepath.Ext(img.Filename))
	if err := s.assets.Put(ctx, key, img.Body, img.Size, img.ContentType); err != nil {
		return models.Listing{}, fmt.Errorf("store image: %w", err)
	}

	address := external.UnknownLocation
	if s.geocoder != nil {
		address = s.geocoder.ResolveAddress(ctx, in.Coordinates.Lat, in.Coordinates.Lon).Value
	}

	price := in.Price
	if in.Mode == models.ModeDonate {
		price = 0
	}

	row, err := s.repo.Insert(ctx, models.NewBook{
		Title:         in.Title,
		Author:        in.Author,
		Description:   in.Description,
		Price:         price,
		Mode:          in.Mode,
		ImageFilename: &key,
		Coordinates:   in.Coordinates,
		AddressLabel:  address,
		SellerID:      sellerID,
		ContactNumber: in.ContactNumber,
	})
	if err != nil {
		s.removeAsset(ctx, key)
		return models.Listing{}, fmt.Errorf("create listing: %w", err)
	}

	l := Enrich(row, nil)
	s.attachImageURL(ctx, &l)
	return l, nil
}

// Summary returns the cached AI summary, generating and caching it on first
// use. A degraded summary is returned but not cached.
func (s *Service) Summary(ctx context.Context, id int64) (string, error) {
	row, err := s.repo.Get(ctx, id)
	if err != nil {
		return "", mapStoreErr(err)
	}
	b := row.Book
	if b.AISummary != nil && *b.AISummary != "" {
		return *b.AISummary, nil
	}

	var desc string
	if b.Description != nil {
		desc = *b.Description
	}
	res := s.summarizer.Summarize(ctx, b.Title, desc, b.Author)
	if res.Degraded {
		return res.Value, nil
	}
	if err := s.repo.SetSummary(ctx, id, res.Value); err != nil {
		return "", mapStoreErr(err)
	}
	return res.Value, nil
}

func checkCreate(in CreateInput, img Upload) error {
	switch {
	case strings.TrimSpace(in.Title) == "":
		return fmt.Errorf("%w: title is required", ErrInvalid)
	case strings.TrimSpace(in.Author) == "":
		return fmt.Errorf("%w: author is required", ErrInvalid)
	case in.Price < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalid)
	case in.Coordinates.Lat < -90 || in.Coordinates.Lat > 90:
		return fmt.Errorf("%w: latitude out of range", ErrInvalid)
	case in.Coordinates.Lon < -180 || in.Coordinates.Lon > 180:
		return fmt.Errorf("%w: longitude out of range", ErrInvalid)
	case img.Body == nil:
		return fmt.Errorf("%w: image is required", ErrInvalid)
	}
	if _, err := models.ParseMode(string(in.Mode)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func (s *Service) attachImageURLs(ctx context.Context, ls []models.Listing) {
	for i := range ls {
		s.attachImageURL(ctx, &ls[i])
	}
}

func (s *Service) attachImageURL(ctx context.Context, l *models.Listing) {
	if s.assets == nil || l.ImageFilename == nil || *l.ImageFilename == "" {
		return
	}
	u, err := s.assets.URL(ctx, *l.ImageFilename)
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Int64("listing_id", l.ID).Msg("image url")
		return
	}
	l.ImageURL = &u
}

func (s *Service) removeAsset(ctx context.Context, key string) {
	if s.assets == nil {
		return
	}
	if err := s.assets.Delete(ctx, key); err != nil {
		metrics.AssetCleanupFailures.Inc()
		logging.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("asset cleanup failed")
	}
}

func mapStoreErr(err error) error {
	switch {
	case errors.Is(err, liststore.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, liststore.ErrNotOwner):
		return ErrForbidden
	default:
		return err
	}
}

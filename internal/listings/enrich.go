// Package listings turns stored books into ranked listings for a viewer.
package listings

import (
	"github.com/5w1tchy/book-thrift/internal/geo"
	"github.com/5w1tchy/book-thrift/internal/models"
)

// Enrich maps one row to its read-model. Distance is set only when both the
// viewer and the book have coordinates.
func Enrich(row models.BookRow, viewer *models.Coordinates) models.Listing {
	b := row.Book
	l := models.Listing{
		ID:            b.ID,
		Title:         b.Title,
		Author:        b.Author,
		Description:   b.Description,
		Price:         b.Price,
		Mode:          b.Mode,
		SellerID:      b.SellerID,
		AddressLabel:  b.AddressLabel,
		ImageFilename: b.ImageFilename,
		ContactNumber: b.ContactNumber,
		AISummary:     b.AISummary,
		CreatedAt:     b.CreatedAt,
	}
	if b.Mode == models.ModeDonate {
		l.Price = 0
	}
	if b.Coordinates != nil {
		lat, lon := b.Coordinates.Lat, b.Coordinates.Lon
		l.Latitude, l.Longitude = &lat, &lon
	}
	if row.Seller != nil {
		name := row.Seller.DisplayName()
		l.SellerName = &name
	}
	l.DistanceMeters = geo.Between(viewer, b.Coordinates)
	return l
}

// EnrichAll applies Enrich with the same viewer to every row.
func EnrichAll(rows []models.BookRow, viewer *models.Coordinates) []models.Listing {
	out := make([]models.Listing, 0, len(rows))
	for _, r := range rows {
		out = append(out, Enrich(r, viewer))
	}
	return out
}

package models

import (
	"fmt"
	"strings"
	"time"
)

// Mode is how a book is offered. The same values are stored in books.mode
// and sent over JSON.
type Mode string

const (
	ModeBuy    Mode = "buy"
	ModeSell   Mode = "sell"
	ModeDonate Mode = "donate"
)

// ParseMode is the only place raw input becomes a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeBuy, ModeSell, ModeDonate:
		return m, nil
	default:
		return "", fmt.Errorf("unknown mode %q", s)
	}
}

func (m Mode) String() string { return string(m) }

// Coordinates is a WGS84 point in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinates returns nil unless both parts are present.
func NewCoordinates(lat, lon *float64) *Coordinates {
	if lat == nil || lon == nil {
		return nil
	}
	return &Coordinates{Lat: *lat, Lon: *lon}
}

// Book is a row of the books table.
type Book struct {
	ID            int64
	Title         string
	Author        string
	Description   *string
	Price         float64
	Mode          Mode
	ImageFilename *string
	Coordinates   *Coordinates
	AddressLabel  *string
	SellerID      int64
	ContactNumber *string
	AISummary     *string
	CreatedAt     time.Time
}

// NewBook carries the fields a seller supplies when creating a listing.
type NewBook struct {
	Title         string
	Author        string
	Description   *string
	Price         float64
	Mode          Mode
	ImageFilename *string
	Coordinates   Coordinates
	AddressLabel  string
	SellerID      int64
	ContactNumber *string
}

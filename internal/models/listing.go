package models

import "time"

// BookRow is a book loaded together with its seller. Seller is nil when the
// join found no user.
type BookRow struct {
	Book   Book
	Seller *Seller
}

// Listing is the read-model returned to clients. It is built per request
// and never persisted.
type Listing struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Author         string    `json:"author"`
	Description    *string   `json:"description,omitempty"`
	Price          float64   `json:"price"`
	Mode           Mode      `json:"mode"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	SellerID       int64     `json:"seller_id"`
	SellerName     *string   `json:"seller_name,omitempty"`
	DistanceMeters *float64  `json:"distance_meters,omitempty"`
	AddressLabel   *string   `json:"address_label,omitempty"`
	ImageFilename  *string   `json:"image_filename,omitempty"`
	ImageURL       *string   `json:"image_url,omitempty"`
	ContactNumber  *string   `json:"contact_number,omitempty"`
	AISummary      *string   `json:"ai_summary,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

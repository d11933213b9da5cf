package listings

import (
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/5w1tchy/book-thrift/internal/api/apperr"
	"github.com/5w1tchy/book-thrift/internal/listings"
	"github.com/5w1tchy/book-thrift/internal/models"
	"github.com/5w1tchy/book-thrift/internal/validate"
)

// parseCreateForm reads the multipart fields of a new listing. Numbers that
// do not parse are reported as field errors before tag validation runs.
func parseCreateForm(r *http.Request) (listings.CreateInput, []apperr.FieldError) {
	req := validate.CreateListingRequest{
		Title:         validate.Normalize(r.FormValue("title")),
		Author:        validate.Normalize(r.FormValue("author")),
		Description:   validate.Normalize(r.FormValue("description")),
		ContactNumber: validate.Normalize(r.FormValue("contact_number")),
		Mode:          strings.ToLower(validate.Normalize(r.FormValue("mode"))),
	}

	var errs []apperr.FieldError
	if raw := strings.TrimSpace(r.FormValue("price")); raw != "" {
		p, ok := parseNumber(raw)
		if !ok {
			errs = append(errs, numberErr("price"))
		}
		req.Price = p
	}
	if raw := strings.TrimSpace(r.FormValue("latitude")); raw != "" {
		if lat, ok := parseNumber(raw); ok {
			req.Latitude = &lat
		} else {
			errs = append(errs, numberErr("latitude"))
		}
	}
	if raw := strings.TrimSpace(r.FormValue("longitude")); raw != "" {
		if lon, ok := parseNumber(raw); ok {
			req.Longitude = &lon
		} else {
			errs = append(errs, numberErr("longitude"))
		}
	}
	if len(errs) > 0 {
		return listings.CreateInput{}, errs
	}
	if errs := validate.Struct(req); errs != nil {
		return listings.CreateInput{}, errs
	}

	mode, _ := models.ParseMode(req.Mode)
	return listings.CreateInput{
		Title:         req.Title,
		Author:        req.Author,
		Description:   validate.Optional(req.Description),
		Price:         req.Price,
		Mode:          mode,
		Coordinates:   models.Coordinates{Lat: *req.Latitude, Lon: *req.Longitude},
		ContactNumber: validate.Optional(req.ContactNumber),
	}, nil
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func numberErr(field string) apperr.FieldError {
	return apperr.FieldError{Field: field, Code: "number", Message: "must be a number"}
}

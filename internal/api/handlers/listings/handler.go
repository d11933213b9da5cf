// Package listings serves the /listings endpoints.
package listings

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/5w1tchy/book-thrift/internal/api/apperr"
	"github.com/5w1tchy/book-thrift/internal/api/httpx"
	"github.com/5w1tchy/book-thrift/internal/api/middlewares"
	"github.com/5w1tchy/book-thrift/internal/listings"
	"github.com/5w1tchy/book-thrift/internal/logging"
	"github.com/5w1tchy/book-thrift/internal/models"
)

// Service is implemented by listings.Service.
type Service interface {
	ListListings(ctx context.Context, mode *models.Mode, viewer *models.Coordinates) ([]models.Listing, error)
	ListForSeller(ctx context.Context, sellerID int64) ([]models.Listing, error)
	GetListing(ctx context.Context, id int64, viewer *models.Coordinates) (models.Listing, error)
	CreateListing(ctx context.Context, sellerID int64, in listings.CreateInput, img listings.Upload) (models.Listing, error)
	DeleteListing(ctx context.Context, id, userID int64) error
	Summary(ctx context.Context, id int64) (string, error)
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

type Handler struct {
	svc       Service
	maxUpload int64
}

func New(svc Service, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handler{svc: svc, maxUpload: maxUpload}
}

// Routes mounts under /listings. requireAuth guards the write endpoints and
// /mine; optionalAuth is applied to the rest.
func (h *Handler) Routes(requireAuth, optionalAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(optionalAuth)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/summary", h.Summary)
	})
	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/mine", h.Mine)
		r.Post("/", h.Create)
		r.Delete("/{id}", h.Delete)
	})
	return r
}

// List handles GET /listings?mode=&lat=&lon=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var mode *models.Mode
	if raw := strings.TrimSpace(q.Get("mode")); raw != "" {
		m, err := models.ParseMode(raw)
		if err != nil {
			apperr.WriteStatus(w, r, http.StatusBadRequest, "Bad Request", "mode must be one of buy, sell, donate")
			return
		}
		mode = &m
	}

	viewer, err := viewerFrom(r)
	if err != nil {
		apperr.WriteStatus(w, r, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	ls, err := h.svc.ListListings(r.Context(), mode, viewer)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("list listings")
		apperr.WriteStatus(w, r, http.StatusInternalServerError, "Internal Server Error", "failed to load listings")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ls)
}

func (h *Handler) Mine(w http.ResponseWriter, r *http.Request) {
	uid, _ := middlewares.UserIDFrom(r.Context())
	ls, err := h.svc.ListForSeller(r.Context(), uid)
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("list own listings")
		apperr.WriteStatus(w, r, http.StatusInternalServerError, "Internal Server Error", "failed to load listings")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ls)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	viewer, err := viewerFrom(r)
	if err != nil {
		apperr.WriteStatus(w, r, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	l, err := h.svc.GetListing(r.Context(), id, viewer)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, l)
}

func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	s, err := h.svc.Summary(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"summary": s})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	uid, _ := middlewares.UserIDFrom(r.Context())
	if err := h.svc.DeleteListing(r.Context(), id, uid); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Create handles the multipart listing form. The image part is "file".
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			apperr.WriteStatus(w, r, http.StatusRequestEntityTooLarge, "Payload Too Large", "upload exceeds size limit")
			return
		}
		apperr.WriteStatus(w, r, http.StatusBadRequest, "Bad Request", "expected multipart/form-data")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	in, fieldErrs := parseCreateForm(r)
	if len(fieldErrs) > 0 {
		apperr.Write(w, r, apperr.Problem{
			Status:      http.StatusUnprocessableEntity,
			Title:       "Validation failed",
			FieldErrors: fieldErrs,
		})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		apperr.Write(w, r, apperr.Problem{
			Status:      http.StatusUnprocessableEntity,
			Title:       "Validation failed",
			FieldErrors: []apperr.FieldError{{Field: "file", Code: "required", Message: "an image is required"}},
		})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !allowedImageTypes[contentType] {
		apperr.Write(w, r, apperr.Problem{
			Status:      http.StatusUnsupportedMediaType,
			Title:       "Unsupported Media Type",
			Detail:      "image must be jpeg, png, webp or gif",
			FieldErrors: []apperr.FieldError{{Field: "file", Code: "invalid", Message: "unsupported image type"}},
		})
		return
	}

	uid, _ := middlewares.UserIDFrom(r.Context())
	l, err := h.svc.CreateListing(r.Context(), uid, in, listings.Upload{
		Body:        file,
		Size:        header.Size,
		Filename:    header.Filename,
		ContentType: contentType,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/listings/"+strconv.FormatInt(l.ID, 10))
	httpx.WriteJSON(w, http.StatusCreated, l)
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, listings.ErrNotFound):
		apperr.WriteStatus(w, r, http.StatusNotFound, "Not Found", "listing not found")
	case errors.Is(err, listings.ErrForbidden):
		apperr.WriteStatus(w, r, http.StatusForbidden, "Forbidden", "you can only modify your own listings")
	case errors.Is(err, listings.ErrInvalid):
		apperr.WriteStatus(w, r, http.StatusBadRequest, "Bad Request", err.Error())
	default:
		logging.Ctx(r.Context()).Error().Err(err).Msg("listings")
		apperr.HandleDBError(w, r, err, "Internal Server Error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		apperr.WriteStatus(w, r, http.StatusBadRequest, "Bad Request", "invalid listing id")
		return 0, false
	}
	return id, true
}

var errBadViewer = errors.New("lat and lon must be numbers within [-90,90] and [-180,180]")

// viewerFrom returns the viewer's position when both lat and lon are given.
// A single coordinate is ignored; a malformed or out-of-range one is an error.
func viewerFrom(r *http.Request) (*models.Coordinates, error) {
	q := r.URL.Query()
	rawLat, rawLon := strings.TrimSpace(q.Get("lat")), strings.TrimSpace(q.Get("lon"))
	if rawLat == "" && rawLon == "" {
		return nil, nil
	}
	var lat, lon float64
	var ok bool
	if rawLat != "" {
		if lat, ok = parseNumber(rawLat); !ok || lat < -90 || lat > 90 {
			return nil, errBadViewer
		}
	}
	if rawLon != "" {
		if lon, ok = parseNumber(rawLon); !ok || lon < -180 || lon > 180 {
			return nil, errBadViewer
		}
	}
	if rawLat == "" || rawLon == "" {
		return nil, nil
	}
	return &models.Coordinates{Lat: lat, Lon: lon}, nil
}

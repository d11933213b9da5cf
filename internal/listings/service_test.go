package listings

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/5w1tchy/book-thrift/internal/external"
	"github.com/5w1tchy/book-thrift/internal/geo"
	"github.com/5w1tchy/book-thrift/internal/models"
	liststore "github.com/5w1tchy/book-thrift/internal/store/listings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu        sync.Mutex
	rows      []models.BookRow
	fetchErr  error
	lastMode  *models.Mode
	inserted  []models.NewBook
	insertErr error
	summaries map[int64]string
	deleteErr error
}

func (f *fakeRepo) Fetch(_ context.Context, mode *models.Mode) ([]models.BookRow, error) {
	f.lastMode = mode
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	out := []models.BookRow{}
	for _, r := range f.rows {
		if mode == nil || r.Book.Mode == *mode {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) FetchBySeller(_ context.Context, sellerID int64) ([]models.BookRow, error) {
	out := []models.BookRow{}
	for _, r := range f.rows {
		if r.Book.SellerID == sellerID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRepo) Get(_ context.Context, id int64) (models.BookRow, error) {
	for _, r := range f.rows {
		if r.Book.ID == id {
			return r, nil
		}
	}
	return models.BookRow{}, liststore.ErrNotFound
}

func (f *fakeRepo) Insert(_ context.Context, nb models.NewBook) (models.BookRow, error) {
	if f.insertErr != nil {
		return models.BookRow{}, f.insertErr
	}
	f.inserted = append(f.inserted, nb)
	c := nb.Coordinates
	row := models.BookRow{Book: models.Book{
		ID: int64(len(f.rows) + 1), Title: nb.Title, Author: nb.Author, Description: nb.Description,
		Price: nb.Price, Mode: nb.Mode, ImageFilename: nb.ImageFilename, Coordinates: &c,
		AddressLabel: &nb.AddressLabel, SellerID: nb.SellerID, ContactNumber: nb.ContactNumber,
	}}
	f.rows = append(f.rows, row)
	return row, nil
}

func (f *fakeRepo) DeleteOwned(_ context.Context, id, sellerID int64) (*string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	for i, r := range f.rows {
		if r.Book.ID != id {
			continue
		}
		if r.Book.SellerID != sellerID {
			return nil, liststore.ErrNotOwner
		}
		f.rows = append(f.rows[:i], f.rows[i+1:]...)
		return r.Book.ImageFilename, nil
	}
	return nil, liststore.ErrNotFound
}

func (f *fakeRepo) SetSummary(_ context.Context, id int64, s string) error {
	if f.summaries == nil {
		f.summaries = map[int64]string{}
	}
	f.summaries[id] = s
	for i := range f.rows {
		if f.rows[i].Book.ID == id {
			f.rows[i].Book.AISummary = &s
		}
	}
	return nil
}

type fakeAssets struct {
	put       map[string][]byte
	deleted   []string
	putErr    error
	deleteErr error
}

func (f *fakeAssets) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	if f.putErr != nil {
		return f.putErr
	}
	b, _ := io.ReadAll(body)
	if f.put == nil {
		f.put = map[string][]byte{}
	}
	f.put[key] = b
	return nil
}

func (f *fakeAssets) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return f.deleteErr
}

func (f *fakeAssets) URL(_ context.Context, key string) (string, error) {
	return "https://cdn.test/" + key, nil
}

type fakeGeocoder struct{ res external.Result[string] }

func (f fakeGeocoder) ResolveAddress(context.Context, float64, float64) external.Result[string] {
	return f.res
}

type fakeSummarizer struct {
	res   external.Result[string]
	calls int
}

func (f *fakeSummarizer) Summarize(context.Context, string, string, string) external.Result[string] {
	f.calls++
	return f.res
}

// metersNorth returns a point d meters north of the equator on the prime meridian.
func metersNorth(d float64) *models.Coordinates {
	return &models.Coordinates{Lat: d / (geo.EarthRadiusMeters * math.Pi / 180), Lon: 0}
}

func TestListListings_RanksByDistance(t *testing.T) {
	far := bookAt(1, metersNorth(200))
	near := bookAt(2, metersNorth(50))
	unknown := bookAt(3, nil)
	repo := &fakeRepo{rows: []models.BookRow{far, unknown, near}}
	svc := NewService(repo, &fakeAssets{}, nil, nil)

	got, err := svc.ListListings(context.Background(), nil, &models.Coordinates{Lat: 0, Lon: 0})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, []int64{2, 1, 3}, ids(got))
	assert.InDelta(t, 50, *got[0].DistanceMeters, 0.5)
	assert.InDelta(t, 200, *got[1].DistanceMeters, 0.5)
	assert.Nil(t, got[2].DistanceMeters)
}

func TestListListings_NoViewerKeepsStoreOrder(t *testing.T) {
	repo := &fakeRepo{rows: []models.BookRow{bookAt(1, metersNorth(900)), bookAt(2, metersNorth(1))}}
	svc := NewService(repo, &fakeAssets{}, nil, nil)

	got, err := svc.ListListings(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids(got))
	for _, l := range got {
		assert.Nil(t, l.DistanceMeters)
	}
}

func TestListListings_ModeFilterAndDonate(t *testing.T) {
	donated := bookAt(1, nil)
	donated.Book.Mode = models.ModeDonate
	donated.Book.Price = 12
	repo := &fakeRepo{rows: []models.BookRow{donated, bookAt(2, nil)}}
	svc := NewService(repo, &fakeAssets{}, nil, nil)

	mode := models.ModeDonate
	got, err := svc.ListListings(context.Background(), &mode, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.0, got[0].Price)
	assert.Equal(t, &mode, repo.lastMode)
}

func TestListListings_EmptyAndStoreError(t *testing.T) {
	svc := NewService(&fakeRepo{}, &fakeAssets{}, nil, nil)
	got, err := svc.ListListings(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	boom := errors.New("connection refused")
	svc = NewService(&fakeRepo{fetchErr: boom}, &fakeAssets{}, nil, nil)
	_, err = svc.ListListings(context.Background(), nil, nil)
	assert.ErrorIs(t, err, boom)
}

func TestListListings_AttachesImageURL(t *testing.T) {
	row := bookAt(1, nil)
	row.Book.ImageFilename = ptr("abc.jpg")
	svc := NewService(&fakeRepo{rows: []models.BookRow{row, bookAt(2, nil)}}, &fakeAssets{}, nil, nil)

	got, err := svc.ListListings(context.Background(), nil, nil)
	require.NoError(t, err)
	require.NotNil(t, got[0].ImageURL)
	assert.Equal(t, "https://cdn.test/abc.jpg", *got[0].ImageURL)
	assert.Nil(t, got[1].ImageURL)
}

func TestListForSeller(t *testing.T) {
	mine := bookAt(1, metersNorth(10))
	other := bookAt(2, nil)
	other.Book.SellerID = 9
	svc := NewService(&fakeRepo{rows: []models.BookRow{mine, other}}, &fakeAssets{}, nil, nil)

	got, err := svc.ListForSeller(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, ids(got))
	assert.Nil(t, got[0].DistanceMeters)
}

func TestGetListing(t *testing.T) {
	svc := NewService(&fakeRepo{rows: []models.BookRow{bookAt(7, nil)}}, &fakeAssets{}, nil, nil)

	l, err := svc.GetListing(context.Background(), 7, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), l.ID)

	_, err = svc.GetListing(context.Background(), 8, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteListing(t *testing.T) {
	row := bookAt(1, nil)
	row.Book.ImageFilename = ptr("cover.png")

	t.Run("owner", func(t *testing.T) {
		repo := &fakeRepo{rows: []models.BookRow{row}}
		assets := &fakeAssets{}
		svc := NewService(repo, assets, nil, nil)

		require.NoError(t, svc.DeleteListing(context.Background(), 1, 1))
		assert.Empty(t, repo.rows)
		assert.Equal(t, []string{"cover.png"}, assets.deleted)
	})

	t.Run("not owner", func(t *testing.T) {
		repo := &fakeRepo{rows: []models.BookRow{row}}
		assets := &fakeAssets{}
		svc := NewService(repo, assets, nil, nil)

		err := svc.DeleteListing(context.Background(), 1, 2)
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Len(t, repo.rows, 1)
		assert.Empty(t, assets.deleted)
	})

	t.Run("missing", func(t *testing.T) {
		svc := NewService(&fakeRepo{}, &fakeAssets{}, nil, nil)
		assert.ErrorIs(t, svc.DeleteListing(context.Background(), 42, 1), ErrNotFound)
	})

	t.Run("cleanup failure is swallowed", func(t *testing.T) {
		repo := &fakeRepo{rows: []models.BookRow{row}}
		svc := NewService(repo, &fakeAssets{deleteErr: errors.New("bucket gone")}, nil, nil)

		require.NoError(t, svc.DeleteListing(context.Background(), 1, 1))
		assert.Empty(t, repo.rows)
	})

	t.Run("concurrent deletes", func(t *testing.T) {
		repo := &fakeRepo{rows: []models.BookRow{row}}
		svc := NewService(repo, &fakeAssets{}, nil, nil)

		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for range 2 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- svc.DeleteListing(context.Background(), 1, 1)
			}()
		}
		wg.Wait()
		close(errs)

		var ok, notFound int
		for err := range errs {
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrNotFound):
				notFound++
			}
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, 1, notFound)
	})
}

func validInput() CreateInput {
	return CreateInput{
		Title: "Dune", Author: "Frank Herbert", Price: 15, Mode: models.ModeSell,
		Coordinates: models.Coordinates{Lat: 41.7, Lon: 44.8},
	}
}

func upload() Upload {
	return Upload{Body: bytes.NewReader([]byte("img")), Size: 3, Filename: "Cover.JPG", ContentType: "image/jpeg"}
}

func TestCreateListing(t *testing.T) {
	repo := &fakeRepo{}
	assets := &fakeAssets{}
	gc := fakeGeocoder{res: external.Ok("Tbilisi, Georgia")}
	svc := NewService(repo, assets, gc, nil)

	l, err := svc.CreateListing(context.Background(), 5, validInput(), upload())
	require.NoError(t, err)

	require.Len(t, repo.inserted, 1)
	nb := repo.inserted[0]
	assert.Equal(t, int64(5), nb.SellerID)
	assert.Equal(t, "Tbilisi, Georgia", nb.AddressLabel)
	require.NotNil(t, nb.ImageFilename)
	assert.True(t, strings.HasSuffix(*nb.ImageFilename, ".jpg"))
	assert.Contains(t, assets.put, *nb.ImageFilename)

	require.NotNil(t, l.ImageURL)
	assert.Equal(t, "https://cdn.test/"+*nb.ImageFilename, *l.ImageURL)
}

func TestCreateListing_DonateAndGeocoderFailure(t *testing.T) {
	repo := &fakeRepo{}
	gc := fakeGeocoder{res: external.Degraded(external.UnknownLocation, errors.New("timeout"))}
	svc := NewService(repo, &fakeAssets{}, gc, nil)

	in := validInput()
	in.Mode = models.ModeDonate
	in.Price = 30

	l, err := svc.CreateListing(context.Background(), 1, in, upload())
	require.NoError(t, err)
	assert.Equal(t, 0.0, repo.inserted[0].Price)
	assert.Equal(t, 0.0, l.Price)
	assert.Equal(t, external.UnknownLocation, repo.inserted[0].AddressLabel)
}

func TestCreateListing_Invalid(t *testing.T) {
	cases := map[string]func(*CreateInput, *Upload){
		"title":    func(in *CreateInput, _ *Upload) { in.Title = "  " },
		"author":   func(in *CreateInput, _ *Upload) { in.Author = "" },
		"price":    func(in *CreateInput, _ *Upload) { in.Price = -1 },
		"lat":      func(in *CreateInput, _ *Upload) { in.Coordinates.Lat = 91 },
		"lon":      func(in *CreateInput, _ *Upload) { in.Coordinates.Lon = -181 },
		"mode":     func(in *CreateInput, _ *Upload) { in.Mode = "lend" },
		"no image": func(_ *CreateInput, up *Upload) { up.Body = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &fakeRepo{}
			assets := &fakeAssets{}
			svc := NewService(repo, assets, nil, nil)
			in, up := validInput(), upload()
			mutate(&in, &up)

			_, err := svc.CreateListing(context.Background(), 1, in, up)
			assert.ErrorIs(t, err, ErrInvalid)
			assert.Empty(t, repo.inserted)
			assert.Empty(t, assets.put)
		})
	}
}

func TestCreateListing_InsertFailureRemovesImage(t *testing.T) {
	assets := &fakeAssets{}
	svc := NewService(&fakeRepo{insertErr: errors.New("fk violation")}, assets, nil, nil)

	_, err := svc.CreateListing(context.Background(), 1, validInput(), upload())
	require.Error(t, err)
	require.Len(t, assets.put, 1)
	for key := range assets.put {
		assert.Equal(t, []string{key}, assets.deleted)
	}
}

func TestSummary(t *testing.T) {
	t.Run("generates and caches", func(t *testing.T) {
		repo := &fakeRepo{rows: []models.BookRow{bookAt(1, nil)}}
		sum := &fakeSummarizer{res: external.Ok("A good book.")}
		svc := NewService(repo, &fakeAssets{}, nil, sum)

		got, err := svc.Summary(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "A good book.", got)
		assert.Equal(t, "A good book.", repo.summaries[1])

		got, err = svc.Summary(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "A good book.", got)
		assert.Equal(t, 1, sum.calls)
	})

	t.Run("degraded is not cached", func(t *testing.T) {
		repo := &fakeRepo{rows: []models.BookRow{bookAt(1, nil)}}
		sum := &fakeSummarizer{res: external.Degraded(external.NoSummaryAvailable, errors.New("quota"))}
		svc := NewService(repo, &fakeAssets{}, nil, sum)

		got, err := svc.Summary(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, external.NoSummaryAvailable, got)
		assert.Empty(t, repo.summaries)

		_, _ = svc.Summary(context.Background(), 1)
		assert.Equal(t, 2, sum.calls)
	})

	t.Run("missing listing", func(t *testing.T) {
		svc := NewService(&fakeRepo{}, &fakeAssets{}, nil, &fakeSummarizer{})
		_, err := svc.Summary(context.Background(), 3)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("no summarizer configured", func(t *testing.T) {
		svc := NewService(&fakeRepo{rows: []models.BookRow{bookAt(1, nil)}}, &fakeAssets{}, nil, nil)
		got, err := svc.Summary(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, external.NoSummaryAvailable, got)
	})
}

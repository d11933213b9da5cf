package auth

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/5w1tchy/book-thrift/internal/api/apperr"
	"github.com/5w1tchy/book-thrift/internal/api/middlewares"
	"github.com/5w1tchy/book-thrift/internal/logging"
	"github.com/5w1tchy/book-thrift/internal/models"
	jwtutil "github.com/5w1tchy/book-thrift/internal/security/jwt"
	"github.com/5w1tchy/book-thrift/internal/security/password"
	"github.com/5w1tchy/book-thrift/internal/store/users"
)

type memUsers struct {
	mu        sync.Mutex
	next      int64
	byID      map[int64]models.User
	updateErr error
}

func newMemUsers() *memUsers { return &memUsers{byID: map[int64]models.User{}} }

func (m *memUsers) Create(_ context.Context, email, fullName, hash string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return models.User{}, users.ErrEmailTaken
		}
	}
	m.next++
	u := models.User{ID: m.next, Email: email, FullName: fullName, HashedPassword: hash, CreatedAt: time.Now()}
	m.byID[u.ID] = u
	return u, nil
}

func (m *memUsers) ByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, users.ErrNotFound
}

func (m *memUsers) ByID(_ context.Context, id int64) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return models.User{}, users.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) TokenVersion(ctx context.Context, id int64) (int, error) {
	u, err := m.ByID(ctx, id)
	return u.TokenVersion, err
}

func (m *memUsers) UpdatePasswordHash(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	u := m.byID[id]
	u.HashedPassword = hash
	m.byID[id] = u
	return nil
}

func (m *memUsers) BumpTokenVersion(_ context.Context, id int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return 0, users.ErrNotFound
	}
	u.TokenVersion++
	m.byID[id] = u
	return u.TokenVersion, nil
}

type memRefresh struct {
	mu     sync.Mutex
	n      int
	tokens map[string][2]int64
}

func (m *memRefresh) Issue(_ context.Context, userID int64, tv int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	tok := "rt-" + string(rune('a'+m.n))
	m.tokens[tok] = [2]int64{userID, int64(tv)}
	return tok, nil
}

func (m *memRefresh) Consume(_ context.Context, token string) (int64, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.tokens[token]
	if !ok {
		return 0, 0, ErrInvalidRefresh
	}
	delete(m.tokens, token)
	return v[0], int(v[1]), nil
}

func (m *memRefresh) Revoke(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

func newTestHandler(withRefresh bool) (*Handler, *memUsers) {
	store := newMemUsers()
	hasher := password.NewHasher(password.Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	signer := jwtutil.NewSigner(jwtutil.Config{Secret: []byte("0123456789abcdef0123456789abcdef"), AccessTTL: time.Minute})
	var rt RefreshTokens
	if withRefresh {
		rt = &memRefresh{tokens: map[string][2]int64{}}
	}
	return New(store, hasher, signer, rt), store
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func register(t *testing.T, h *Handler, email, pwd string) RegisterResponse {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"email": email, "password": pwd, "full_name": "Ada Reader"})
	rec := post(h.Register, string(body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: want 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var out RegisterResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestRegister(t *testing.T) {
	h, _ := newTestHandler(true)
	out := register(t, h, "  Ada@Example.com ", "Tr0ub4dor&3-horse")

	if out.User.Email != "ada@example.com" || out.User.FullName != "Ada Reader" {
		t.Errorf("unexpected user %+v", out.User)
	}
	if out.AccessToken == "" || out.RefreshToken == "" {
		t.Error("want both tokens")
	}
	if out.TokenType != "bearer" || out.ExpiresIn != 60 {
		t.Errorf("want bearer/60, got %s/%d", out.TokenType, out.ExpiresIn)
	}
}

func TestRegister_Rejects(t *testing.T) {
	h, _ := newTestHandler(false)
	register(t, h, "taken@example.com", "Tr0ub4dor&3-horse")

	cases := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{"email":`, http.StatusBadRequest},
		{"unknown field", `{"email":"a@b.co","password":"longenough1","admin":true}`, http.StatusBadRequest},
		{"bad email", `{"email":"nope","password":"longenough1"}`, http.StatusUnprocessableEntity},
		{"short password", `{"email":"a@b.co","password":"short"}`, http.StatusUnprocessableEntity},
		{"whitespace password", `{"email":"a@b.co","password":"  abc    "}`, http.StatusBadRequest},
		{"email taken", `{"email":"TAKEN@example.com","password":"Tr0ub4dor&3-horse"}`, http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := post(h.Register, tc.body); rec.Code != tc.want {
				t.Fatalf("want %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRegister_NoRefreshWhenDisabled(t *testing.T) {
	h, _ := newTestHandler(false)
	if out := register(t, h, "ada@example.com", "Tr0ub4dor&3-horse"); out.RefreshToken != "" {
		t.Fatalf("want no refresh token, got %q", out.RefreshToken)
	}
}

func TestLogin(t *testing.T) {
	h, _ := newTestHandler(true)
	register(t, h, "ada@example.com", "Tr0ub4dor&3-horse")

	rec := post(h.Login, `{"email":"ADA@example.com","password":"Tr0ub4dor&3-horse"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var pair TokenPair
	if err := json.Unmarshal(rec.Body.Bytes(), &pair); err != nil {
		t.Fatal(err)
	}
	claims, err := h.Signer.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if id, err := claims.UserID(); err != nil || id != 1 {
		t.Fatalf("want user 1, got %d (%v)", id, err)
	}

	for _, body := range []string{
		`{"email":"ada@example.com","password":"wrong-password"}`,
		`{"email":"ghost@example.com","password":"Tr0ub4dor&3-horse"}`,
	} {
		rec := post(h.Login, body)
		if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "invalid_credentials") {
			t.Errorf("%s: want 401 invalid_credentials, got %d %s", body, rec.Code, rec.Body.String())
		}
	}
}

func TestLogin_ValidatesFields(t *testing.T) {
	h, _ := newTestHandler(false)
	cases := []struct {
		body  string
		field string
	}{
		{`{"email":"nope","password":"whatever"}`, "email"},
		{`{"email":"","password":"whatever"}`, "email"},
		{`{"email":"ada@example.com","password":"   "}`, "password"},
	}
	for _, tc := range cases {
		rec := post(h.Login, tc.body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: want 422, got %d", tc.body, rec.Code)
			continue
		}
		var p apperr.Problem
		if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
			t.Fatal(err)
		}
		if len(p.FieldErrors) == 0 || p.FieldErrors[0].Field != tc.field {
			t.Errorf("%s: want field error on %s, got %+v", tc.body, tc.field, p.FieldErrors)
		}
	}
}

func TestLogin_RehashesWeakerHash(t *testing.T) {
	h, store := newTestHandler(false)
	register(t, h, "ada@example.com", "Tr0ub4dor&3-horse")
	before, _ := store.ByID(context.Background(), 1)

	h.Hasher = password.NewHasher(password.Params{Memory: 16 * 1024, Iterations: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if rec := post(h.Login, `{"email":"ada@example.com","password":"Tr0ub4dor&3-horse"}`); rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}

	after, _ := store.ByID(context.Background(), 1)
	if after.HashedPassword == before.HashedPassword {
		t.Fatal("hash was not upgraded")
	}
	if h.Hasher.NeedsRehash(after.HashedPassword) {
		t.Fatal("upgraded hash still needs rehash")
	}
}

func TestLogin_FailedRehashIsLoggedNotFatal(t *testing.T) {
	var buf bytes.Buffer
	logging.Init(logging.Config{Level: "warn", Output: &buf})
	t.Cleanup(func() { logging.Init(logging.Config{}) })

	h, store := newTestHandler(false)
	register(t, h, "ada@example.com", "Tr0ub4dor&3-horse")
	before, _ := store.ByID(context.Background(), 1)
	store.updateErr = errors.New("db gone")

	h.Hasher = password.NewHasher(password.Params{Memory: 16 * 1024, Iterations: 2, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if rec := post(h.Login, `{"email":"ada@example.com","password":"Tr0ub4dor&3-horse"}`); rec.Code != http.StatusOK {
		t.Fatalf("login must still succeed, got %d", rec.Code)
	}

	after, _ := store.ByID(context.Background(), 1)
	if after.HashedPassword != before.HashedPassword {
		t.Fatal("hash changed despite failed update")
	}
	logged := buf.String()
	if !strings.Contains(logged, `"level":"warn"`) || !strings.Contains(logged, "db gone") || !strings.Contains(logged, `"user_id":1`) {
		t.Fatalf("want warn entry for failed rehash, got %s", logged)
	}
}

func TestRefresh_Rotates(t *testing.T) {
	h, _ := newTestHandler(true)
	out := register(t, h, "ada@example.com", "Tr0ub4dor&3-horse")

	body := `{"refresh_token":"` + out.RefreshToken + `"}`
	rec := post(h.Refresh, body)
	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
	var pair TokenPair
	if err := json.Unmarshal(rec.Body.Bytes(), &pair); err != nil {
		t.Fatal(err)
	}
	if pair.RefreshToken == out.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	// the old token was consumed
	if rec := post(h.Refresh, body); rec.Code != http.StatusUnauthorized {
		t.Fatalf("reuse: want 401, got %d", rec.Code)
	}
}

func TestRefresh_RevokedByTokenVersion(t *testing.T) {
	h, store := newTestHandler(true)
	out := register(t, h, "ada@example.com", "Tr0ub4dor&3-horse")
	if _, err := store.BumpTokenVersion(context.Background(), out.User.ID); err != nil {
		t.Fatal(err)
	}

	rec := post(h.Refresh, `{"refresh_token":"`+out.RefreshToken+`"}`)
	if rec.Code != http.StatusUnauthorized || !strings.Contains(rec.Body.String(), "token_revoked") {
		t.Fatalf("want 401 token_revoked, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestRefresh_Disabled(t *testing.T) {
	h, _ := newTestHandler(false)
	if rec := post(h.Refresh, `{"refresh_token":"x"}`); rec.Code != http.StatusNotImplemented {
		t.Fatalf("want 501, got %d", rec.Code)
	}
}

func TestLogout(t *testing.T) {
	h, _ := newTestHandler(true)
	out := register(t, h, "ada@example.com", "Tr0ub4dor&3-horse")
	body := `{"refresh_token":"` + out.RefreshToken + `"}`

	if code := post(h.Logout, body).Code; code != http.StatusOK {
		t.Fatalf("logout: want 200, got %d", code)
	}
	if code := post(h.Refresh, body).Code; code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: want 401, got %d", code)
	}
}

func TestLogoutAllAndMe(t *testing.T) {
	h, store := newTestHandler(false)
	out := register(t, h, "ada@example.com", "Tr0ub4dor&3-horse")

	authed := func(fn http.HandlerFunc) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(nil))
		req = req.WithContext(middlewares.WithUserID(req.Context(), out.User.ID))
		rec := httptest.NewRecorder()
		fn(rec, req)
		return rec
	}

	rec := authed(h.Me)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: want 200, got %d", rec.Code)
	}
	var me UserResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &me); err != nil {
		t.Fatal(err)
	}
	if me.Email != "ada@example.com" {
		t.Errorf("unexpected email %q", me.Email)
	}

	if code := authed(h.LogoutAll).Code; code != http.StatusOK {
		t.Fatalf("logout-all: want 200, got %d", code)
	}
	if tv, _ := store.TokenVersion(context.Background(), out.User.ID); tv != 1 {
		t.Fatalf("want token version 1, got %d", tv)
	}

	rec = httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous me: want 401, got %d", rec.Code)
	}
}

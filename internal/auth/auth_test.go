package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"efficio-backend/internal/analytics"
	"efficio-backend/internal/testutil"
)

var testSecret = []byte("test-secret-0123456789")

type fakeRemover struct {
	removed []string
}

func (f *fakeRemover) RemoveUser(userID string) error {
	f.removed = append(f.removed, userID)
	return nil
}

func TestToken_RoundTrip(t *testing.T) {
	tok, err := GenerateToken(testSecret, "u-1", time.Hour)
	require.NoError(t, err)

	uid, err := ParseToken(testSecret, tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", uid)

	_, err = ParseToken([]byte("another-secret-000000"), tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestToken_Expired(t *testing.T) {
	tok, err := GenerateToken(testSecret, "u-1", -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(testSecret, tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestToken_RejectsNoneAlgorithm(t *testing.T) {
	claims := jwt.MapClaims{"user_id": "u-1", "exp": time.Now().Add(time.Hour).Unix()}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseToken(testSecret, tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.True(t, CheckPassword(hash, "secret1"))
	assert.False(t, CheckPassword(hash, "secret2"))
}

func TestStore_CreateUser(t *testing.T) {
	store := NewStore(testutil.NewTestDB(t))
	ctx := context.Background()

	u, err := store.CreateUser(ctx, "  Ann@Example.COM ", "hash")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", u.Email)

	_, err = store.CreateUser(ctx, "ann@example.com", "hash")
	assert.ErrorIs(t, err, ErrEmailTaken)

	got, err := store.GetByEmail(ctx, "ANN@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestStore_Roles(t *testing.T) {
	store := NewStore(testutil.NewTestDB(t))
	ctx := context.Background()

	u, err := store.CreateUser(ctx, "admin@example.com", "hash")
	require.NoError(t, err)

	ok, err := store.HasRole(ctx, u.ID, RoleAdmin)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.GrantRole(ctx, u.ID, RoleAdmin))
	require.NoError(t, store.GrantRole(ctx, u.ID, RoleAdmin))

	ok, err = store.HasRole(ctx, u.ID, RoleAdmin)
	require.NoError(t, err)
	assert.True(t, ok)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].IsAdmin)
}

func TestStore_DeleteUserCascades(t *testing.T) {
	dbx := testutil.NewTestDB(t)
	store := NewStore(dbx)
	ctx := context.Background()

	u, err := store.CreateUser(ctx, "gone@example.com", "hash")
	require.NoError(t, err)
	require.NoError(t, store.GrantRole(ctx, u.ID, RoleAdmin))

	now := time.Now().UTC()
	dbx.MustExec(dbx.Rebind(`INSERT INTO tasks (id, user_id, title, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		"t-1", u.ID, "Task", now, now)
	dbx.MustExec(dbx.Rebind(`INSERT INTO task_attachments (id, task_id, name, url, created_at) VALUES (?, ?, ?, ?, ?)`),
		"a-1", "t-1", "a.png", "http://x/a.png", now)
	require.NoError(t, analytics.NewRecorder(dbx, nil).Log(ctx, analytics.Envelope{UserID: u.ID}, "app_opened", nil, ""))

	require.NoError(t, store.DeleteUser(ctx, u.ID))

	for _, table := range []string{"users", "user_roles", "tasks", "task_attachments", "analytics_events"} {
		var n int
		require.NoError(t, dbx.Get(&n, `SELECT COUNT(*) FROM `+table))
		assert.Zero(t, n, table)
	}

	assert.ErrorIs(t, store.DeleteUser(ctx, u.ID), ErrUserNotFound)
}

type authFixture struct {
	store *Store
	mux   *http.ServeMux
	objs  *fakeRemover
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	dbx := testutil.NewTestDB(t)
	store := NewStore(dbx)
	rec := analytics.NewRecorder(dbx, nil)
	mw := New(testSecret, store)
	objs := &fakeRemover{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", RegisterHandler(store, rec, testSecret, time.Hour))
	mux.HandleFunc("POST /auth/login", LoginHandler(store, rec, testSecret, time.Hour))
	mux.HandleFunc("GET /auth/me", mw.Wrap(MeHandler(store)))
	mux.HandleFunc("POST /auth/logout", mw.Wrap(LogoutHandler()))
	mux.HandleFunc("DELETE /auth/account", mw.Wrap(DeleteAccountHandler(store, objs)))
	mux.HandleFunc("GET /admin/ping", mw.Admin(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	return &authFixture{store: store, mux: mux, objs: objs}
}

func (f *authFixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.mux.ServeHTTP(rr, req)
	return rr
}

func decodeToken(t *testing.T, rr *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var out struct {
		UserID string `json:"user_id"`
		Token  string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out.UserID, out.Token
}

func TestRegisterLoginMe(t *testing.T) {
	f := newAuthFixture(t)

	rr := f.do(t, http.MethodPost, "/auth/register", "", `{"email":"Bob@Example.com","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	uid, _ := decodeToken(t, rr)

	rr = f.do(t, http.MethodPost, "/auth/register", "", `{"email":"bob@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(t, http.MethodPost, "/auth/login", "", `{"email":"bob@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid login\n", rr.Body.String())

	rr = f.do(t, http.MethodPost, "/auth/login", "", `{"email":"bob@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	loginUID, token := decodeToken(t, rr)
	assert.Equal(t, uid, loginUID)

	rr = f.do(t, http.MethodGet, "/auth/me", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"user_id":"`+uid+`","email":"bob@example.com","is_admin":false}`, rr.Body.String())

	rr = f.do(t, http.MethodPost, "/auth/logout", token, "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRegister_Validation(t *testing.T) {
	f := newAuthFixture(t)

	for _, body := range []string{
		`{"email":"","password":"secret1"}`,
		`{"email":"not-an-email","password":"secret1"}`,
		`{"email":"c@example.com","password":"123"}`,
		`{`,
	} {
		rr := f.do(t, http.MethodPost, "/auth/register", "", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
}

func TestMiddleware(t *testing.T) {
	f := newAuthFixture(t)

	rr := f.do(t, http.MethodGet, "/auth/me", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodGet, "/auth/me", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodPost, "/auth/register", "", `{"email":"eve@example.com","password":"secret1"}`)
	uid, token := decodeToken(t, rr)

	rr = f.do(t, http.MethodGet, "/admin/ping", token, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	require.NoError(t, f.store.GrantRole(context.Background(), uid, RoleAdmin))
	rr = f.do(t, http.MethodGet, "/admin/ping", token, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestDeleteAccount(t *testing.T) {
	f := newAuthFixture(t)

	rr := f.do(t, http.MethodPost, "/auth/register", "", `{"email":"del@example.com","password":"secret1"}`)
	uid, token := decodeToken(t, rr)

	rr = f.do(t, http.MethodDelete, "/auth/account", token, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, []string{uid}, f.objs.removed)

	_, err := f.store.GetByID(context.Background(), uid)
	assert.ErrorIs(t, err, ErrUserNotFound)

	rr = f.do(t, http.MethodGet, "/auth/me", token, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	rr = f.do(t, http.MethodPost, "/auth/logout", token, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid token\n", rr.Body.String())
}

func TestStore_UserExists(t *testing.T) {
	store := NewStore(testutil.NewTestDB(t))
	ctx := context.Background()

	u, err := store.CreateUser(ctx, "here@example.com", "hash")
	require.NoError(t, err)

	ok, err := store.UserExists(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.DeleteUser(ctx, u.ID))
	ok, err = store.UserExists(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

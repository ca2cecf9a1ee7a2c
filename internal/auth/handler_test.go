package auth

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/licensehub/licensehub/internal/licensing"
	"github.com/licensehub/licensehub/internal/staff"
	_ "github.com/licensehub/licensehub/testing"
)

const testSecret = "test-secret"

type clock struct{ offset atomic.Int64 }

func (c *clock) Now() time.Time          { return time.Now().Add(time.Duration(c.offset.Load())) }
func (c *clock) Advance(d time.Duration) { c.offset.Add(int64(d)) }

type lockableDirectory struct {
	*staff.Service
	locked atomic.Bool
}

func (d *lockableDirectory) Lookup(ctx context.Context, id uuid.UUID) (staff.Employee, error) {
	e, err := d.Service.Lookup(ctx, id)
	if err != nil {
		return e, err
	}
	e.Locked = d.locked.Load()
	return e, nil
}

type authFixture struct {
	router    http.Handler
	redis     *miniredis.Miniredis
	clock     *clock
	directory *lockableDirectory
	tokens    *TokenManager
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	staffService := staff.NewService(staff.NewMemoryRepository(), logger, staff.ServiceConfig{
		InitialPassword: "tripleN1234",
		BcryptCost:      bcrypt.MinCost,
	})
	_, created, err := staffService.Bootstrap(context.Background(), staff.CreateInput{
		StaffNo: "E-001", Name: "Mei Lin", Email: "mei@licensehub.test", Phone: "0912", Address: "Taipei",
	}, "")
	require.NoError(t, err)
	require.True(t, created)

	clk := &clock{}
	tokens, err := NewTokenManager(testSecret, time.Hour, clk.Now)
	require.NoError(t, err)
	directory := &lockableDirectory{Service: staffService}
	handler := NewHandler(logger, NewService(directory, tokens, NewRedisDenylist(client, ""), logger))

	r := chi.NewRouter()
	r.Route("/auth", handler.MountRoutes)
	r.With(handler.RequireActor).Get("/api/whoami", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(licensing.ActorFromContext(r.Context()).Name))
	})
	return &authFixture{router: r, redis: mr, clock: clk, directory: directory, tokens: tokens}
}

func (f *authFixture) request(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *authFixture) login(t *testing.T) string {
	t.Helper()
	rec := f.request(http.MethodPost, "/auth/login", "", `{"email":"MEI@licensehub.test","password":"tripleN1234"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func TestLoginAndResolveActor(t *testing.T) {
	f := newAuthFixture(t)
	token := f.login(t)

	rec := f.request(http.MethodGet, "/api/whoami", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Mei Lin", rec.Body.String())
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newAuthFixture(t)

	rec := f.request(http.MethodPost, "/auth/login", "", `{"email":"mei@licensehub.test","password":"wrongpass"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.request(http.MethodPost, "/auth/login", "", `{"email":"nobody@licensehub.test","password":"tripleN1234"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.request(http.MethodPost, "/auth/login", "", `{"email":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireActorRejections(t *testing.T) {
	f := newAuthFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.request(http.MethodGet, "/api/whoami", "", "").Code)
	assert.Equal(t, http.StatusForbidden, f.request(http.MethodGet, "/api/whoami", "not-a-jwt", "").Code)

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := forged.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, f.request(http.MethodGet, "/api/whoami", signed, "").Code)

	unknown, _, err := f.tokens.Issue(uuid.New(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, f.request(http.MethodGet, "/api/whoami", unknown, "").Code)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	f := newAuthFixture(t)
	token := f.login(t)

	f.clock.Advance(time.Hour + time.Minute)
	assert.Equal(t, http.StatusForbidden, f.request(http.MethodGet, "/api/whoami", token, "").Code)
}

func TestLockedAccountLosesAccess(t *testing.T) {
	f := newAuthFixture(t)
	token := f.login(t)

	f.directory.locked.Store(true)
	assert.Equal(t, http.StatusForbidden, f.request(http.MethodGet, "/api/whoami", token, "").Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newAuthFixture(t)
	token := f.login(t)

	rec := f.request(http.MethodPost, "/auth/logout", token, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	keys := f.redis.Keys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "licensehub:auth:revoked:"))
	assert.Greater(t, f.redis.TTL(keys[0]), 50*time.Minute)

	assert.Equal(t, http.StatusForbidden, f.request(http.MethodGet, "/api/whoami", token, "").Code)
}

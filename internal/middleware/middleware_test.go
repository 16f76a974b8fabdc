package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/gym-class-booking/internal/config"
	"github.com/iliyamo/gym-class-booking/internal/identity"
)

func okHandler(c echo.Context) error {
	id, _ := ClientID(c)
	return c.JSON(http.StatusOK, echo.Map{"client_id": id})
}

func run(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate(t *testing.T) {
	v := identity.VerifierFunc(func(_ context.Context, token string) (identity.Identity, error) {
		if token == "good" {
			return identity.Identity{ClientID: 42, Role: identity.RoleClient}, nil
		}
		return identity.Identity{}, identity.ErrInvalidToken
	})
	e := echo.New()
	e.GET("/me", okHandler, Authenticate(v))

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	rec := run(e, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing bearer token")

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Basic Zm9vOmJhcg==")
	assert.Equal(t, http.StatusUnauthorized, run(e, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer bad")
	rec = run(e, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer good")
	rec = run(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"client_id":42}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	setRole := func(role interface{}) echo.MiddlewareFunc {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return func(c echo.Context) error {
				if role != nil {
					c.Set(ContextRole, role)
				}
				return next(c)
			}
		}
	}
	cases := []struct {
		name string
		role interface{}
		want int
	}{
		{"client", identity.RoleClient, http.StatusOK},
		{"other role", "TRAINER", http.StatusForbidden},
		{"no role", nil, http.StatusForbidden},
		{"wrong type", 1, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := echo.New()
			e.GET("/x", okHandler, setRole(tc.role), RequireRole(identity.RoleClient))
			rec := run(e, httptest.NewRequest(http.MethodGet, "/x", nil))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestClientID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, ok := ClientID(c)
	assert.False(t, ok)

	c.Set(ContextClientID, uint64(0))
	_, ok = ClientID(c)
	assert.False(t, ok)

	c.Set(ContextClientID, uint64(9))
	id, ok := ClientID(c)
	assert.True(t, ok)
	assert.Equal(t, uint64(9), id)
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/classes/3/reservations", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/classes/:id/reservations")
	c.Set(ContextClientID, uint64(42))

	cfg := config.RateLimitConfig{Prefix: "rl"}
	cases := map[string]string{
		"ip":           "rl:ip:10.0.0.1",
		"client":       "rl:client:42",
		"route":        "rl:route:POST /classes/:id/reservations",
		"client_route": "rl:client:42:route:POST /classes/:id/reservations",
		"":             "rl:ip:10.0.0.1:client:42:route:POST /classes/:id/reservations",
	}
	for strategy, want := range cases {
		cfg.KeyStrategy = strategy
		assert.Equal(t, want, rateKey(cfg, c), strategy)
	}
}

func TestTokenBucketPassThrough(t *testing.T) {
	e := echo.New()
	e.POST("/x", okHandler, NewTokenBucket(config.RateLimitConfig{Enabled: false}, nil, nil))
	assert.Equal(t, http.StatusOK, run(e, httptest.NewRequest(http.MethodPost, "/x", nil)).Code)

	e = echo.New()
	e.POST("/x", okHandler, NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil))
	assert.Equal(t, http.StatusOK, run(e, httptest.NewRequest(http.MethodPost, "/x", nil)).Code)
}

func TestTokenBucketFailsOpen(t *testing.T) {
	// Nothing listens on port 1, so every script call errors.
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer func() { _ = rdb.Close() }()

	cfg := config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1, RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"}
	e := echo.New()
	e.POST("/x", okHandler, NewTokenBucket(cfg, rdb, zap.NewNop()))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, run(e, httptest.NewRequest(http.MethodPost, "/x", nil)).Code)
	}
}

func TestRequestLoggerSetsRequestID(t *testing.T) {
	e := echo.New()
	e.GET("/x", okHandler, RequestLogger(zap.NewNop()))

	rec := run(e, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc-123")
	rec = run(e, req)
	assert.Equal(t, "abc-123", rec.Header().Get(echo.HeaderXRequestID))
}

func asClient(id uint64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(ContextClientID, id)
			return next(c)
		}
	}
}

func newBucketServer(t *testing.T, cfg config.RateLimitConfig) *echo.Echo {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := echo.New()
	e.POST("/x", okHandler, asClient(42), NewTokenBucket(cfg, rdb, zap.NewNop()))
	return e
}

func TestTokenBucketDeniesWhenDrained(t *testing.T) {
	e := newBucketServer(t, config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: 5 * time.Second,
		TTL:            time.Minute,
		KeyStrategy:    "client",
		Prefix:         "rl",
	})

	rec := run(e, httptest.NewRequest(http.MethodPost, "/x", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))

	rec = run(e, httptest.NewRequest(http.MethodPost, "/x", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = run(e, httptest.NewRequest(http.MethodPost, "/x", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	var body struct {
		Success    bool   `json:"success"`
		Error      string `json:"error"`
		RetryAfter int    `json:"retry_after"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "rate limit exceeded", body.Error)
	assert.GreaterOrEqual(t, body.RetryAfter, 1)
	assert.LessOrEqual(t, body.RetryAfter, 5)
}

func TestTokenBucketRefills(t *testing.T) {
	e := newBucketServer(t, config.RateLimitConfig{
		Enabled:        true,
		Capacity:       1,
		RefillTokens:   1,
		RefillInterval: 100 * time.Millisecond,
		TTL:            time.Minute,
		KeyStrategy:    "client",
		Prefix:         "rl",
	})

	require.Equal(t, http.StatusOK, run(e, httptest.NewRequest(http.MethodPost, "/x", nil)).Code)
	time.Sleep(150 * time.Millisecond)

	rec := run(e, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
}

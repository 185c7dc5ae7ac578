package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photovault/internal/models"
	"photovault/internal/security"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubUsers map[string]models.User

func (s stubUsers) GetByID(_ context.Context, id string) (models.User, error) {
	u, ok := s[id]
	if !ok {
		return models.User{}, errors.New("not found")
	}
	return u, nil
}

type stubSessions map[string]models.Session

func (s stubSessions) GetByID(_ context.Context, id string) (models.Session, error) {
	sess, ok := s[id]
	if !ok {
		return models.Session{}, errors.New("not found")
	}
	return sess, nil
}

func authRouter(users stubUsers, sessions stubSessions, extra ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	handlers := append([]gin.HandlerFunc{Auth("secret", users, sessions)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		user, _ := CurrentUser(c)
		c.JSON(http.StatusOK, gin.H{"id": user.ID, "session": CurrentSessionID(c)})
	})
	r.GET("/x", handlers...)
	return r
}

func doGet(r http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	users := stubUsers{
		"u1": {ID: "u1", Role: models.UserRoleUser, Status: models.UserStatusActive},
		"u2": {ID: "u2", Role: models.UserRoleUser, Status: models.UserStatusSuspended},
	}
	sessions := stubSessions{
		"s1": {ID: "s1", UserID: "u1"},
		"s2": {ID: "s2", UserID: "u2"},
	}
	r := authRouter(users, sessions)

	good, err := security.GenerateAccessToken("secret", "u1", "s1", "user", time.Minute)
	require.NoError(t, err)
	mismatched, err := security.GenerateAccessToken("secret", "u1", "s2", "user", time.Minute)
	require.NoError(t, err)
	suspended, err := security.GenerateAccessToken("secret", "u2", "s2", "user", time.Minute)
	require.NoError(t, err)
	forged, err := security.GenerateAccessToken("other", "u1", "s1", "user", time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"valid", good, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"forged", forged, http.StatusUnauthorized},
		{"session of another user", mismatched, http.StatusUnauthorized},
		{"suspended", suspended, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, doGet(r, tt.token).Code)
		})
	}
}

func TestRequireRoles(t *testing.T) {
	users := stubUsers{
		"u1": {ID: "u1", Role: models.UserRoleUser, Status: models.UserStatusActive},
		"a1": {ID: "a1", Role: models.UserRoleAdmin, Status: models.UserStatusActive},
	}
	sessions := stubSessions{"s1": {ID: "s1", UserID: "u1"}, "s2": {ID: "s2", UserID: "a1"}}
	r := authRouter(users, sessions, RequireAdmin(zerolog.Nop()))

	userToken, _ := security.GenerateAccessToken("secret", "u1", "s1", "user", time.Minute)
	adminToken, _ := security.GenerateAccessToken("secret", "a1", "s2", "admin", time.Minute)

	assert.Equal(t, http.StatusForbidden, doGet(r, userToken).Code)
	assert.Equal(t, http.StatusOK, doGet(r, adminToken).Code)
}

func TestRateLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := gin.New()
	r.GET("/x", RateLimit(client, "upload", 2, time.Hour, zerolog.Nop()), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	assert.Equal(t, http.StatusNoContent, doGet(r, "").Code)
	w := doGet(r, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = doGet(r, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	r := gin.New()
	r.GET("/x", RateLimit(client, "upload", 1, time.Minute, zerolog.Nop()), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusNoContent, doGet(r, "").Code)
	}
}

func TestRequestIDPropagates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	tests := []struct {
		name    string
		inbound string
		keep    bool
	}{
		{name: "well formed", inbound: "abc-123_req.1:2", keep: true},
		{name: "missing", inbound: ""},
		{name: "header injection", inbound: "abc\r\nSet-Cookie: x=1"},
		{name: "spaces", inbound: "abc 123"},
		{name: "too long", inbound: strings.Repeat("a", maxRequestIDLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/x", nil)
			if tt.inbound != "" {
				req.Header[requestIDHeader] = []string{tt.inbound}
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			got := w.Header().Get(requestIDHeader)
			assert.Equal(t, got, w.Body.String())
			if tt.keep {
				assert.Equal(t, tt.inbound, got)
			} else {
				assert.NotEqual(t, tt.inbound, got)
				assert.Len(t, got, 36)
			}
		})
	}
}

func TestRecoveryReturnsGenericError(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zerolog.Nop()))
	r.GET("/x", func(c *gin.Context) { panic("boom") })

	w := doGet(r, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"internal_error"}`, w.Body.String())
}

func TestRecoveryKeepsWrittenResponse(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(zerolog.Nop()))
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusAccepted, "partial")
		panic("late")
	})

	w := doGet(r, "")
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "partial", w.Body.String())
}

func TestRecoverySkipsReplyWhenClientIsGone(t *testing.T) {
	for _, cause := range []error{
		http.ErrAbortHandler,
		&net.OpError{Op: "write", Net: "tcp", Err: os.NewSyscallError("write", syscall.EPIPE)},
	} {
		r := gin.New()
		r.Use(Recovery(zerolog.Nop()))
		r.GET("/x", func(c *gin.Context) { panic(cause) })

		w := doGet(r, "")
		assert.Empty(t, w.Body.String(), cause.Error())
	}
}

func TestRequireRolesWithoutUser(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequireRoles(zerolog.Nop(), models.UserRoleAdmin, models.UserRoleUser), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	assert.Equal(t, http.StatusUnauthorized, doGet(r, "").Code)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"https://app.example.com/", " "}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCORSWildcard(t *testing.T) {
	r := gin.New()
	r.Use(CORS([]string{"*"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://anything.test")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "https://anything.test", rec.Header().Get("Access-Control-Allow-Origin"))
}

package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photovault/internal/config"
	"photovault/internal/handlers"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newTestServer(t *testing.T) (*HTTPServer, prometheus.Counter) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.AppConfig{
		Environment: "test",
		Security:    config.SecurityConfig{JWTAccessSecret: "secret"},
		Media:       config.MediaConfig{MaxUploadMB: 1},
	}
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "photovault_test_total", Help: "test"})
	require.NoError(t, reg.Register(counter))

	set := handlers.NewHandlerSet(handlers.Dependencies{Config: cfg, Log: zerolog.Nop(), DB: okPinger{}})
	return NewHTTPServer(cfg, zerolog.Nop(), set, reg), counter
}

func serve(s *HTTPServer, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestServerRoutes(t *testing.T) {
	s, counter := newTestServer(t)
	counter.Add(3)

	rec := serve(s, http.MethodGet, "/api/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = serve(s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "photovault_test_total 3")

	rec = serve(s, http.MethodGet, "/api/v1/media")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(s, http.MethodGet, "/api/v1/admin/users")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(s, http.MethodGet, "/api/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not_found"}`, rec.Body.String())
}

package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-session-auth/internal/config"
	"github.com/go-session-auth/internal/observability"
	"github.com/stretchr/testify/assert"
)

// Embedded nil interfaces panic if a route reaches the store; the requests
// below are all rejected before that.
type stubUsers struct{ UserRepository }
type stubSessions struct{ SessionRepository }
type stubSigner struct{ CookieSigner }

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:            "test",
		AppBaseURL:        "http://localhost:3000",
		SessionTTL:        time.Hour,
		SessionCookieName: "sid",
		OTPTTL:            10 * time.Minute,
		ResetTokenTTL:     10 * time.Minute,
		BcryptCost:        4,
		RateLimitRPS:      0.001,
		RateLimitBurst:    1,
		AllowedOrigins:    []string{"http://app.example"},
	}
}

func newTestRouter(cfg *config.Config) http.Handler {
	return NewRouter(cfg, &Deps{
		UserRepo:     stubUsers{},
		SessionStore: stubSessions{},
		Signer:       stubSigner{},
		Metrics:      observability.NewMetrics(),
	})
}

func TestRouter_Health(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(testConfig()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"message":"ok"}`, rr.Body.String())
}

func TestRouter_Metrics(t *testing.T) {
	rr := httptest.NewRecorder()
	newTestRouter(testConfig()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

func TestRouter_ProtectedRoutesNeedSession(t *testing.T) {
	router := newTestRouter(testConfig())
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/auth/dashboard"},
		{http.MethodPost, "/api/auth/logout"},
	} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code, tc.path)
		assert.JSONEq(t, `{"success":false,"message":"Unauthorized. Please log in first."}`, rr.Body.String())
	}
}

func TestRouter_PublicRoutesRateLimited(t *testing.T) {
	router := newTestRouter(testConfig())
	send := func() int {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{"))
		req.RemoteAddr = "10.1.1.1:5000"
		router.ServeHTTP(rr, req)
		return rr.Code
	}
	assert.Equal(t, http.StatusBadRequest, send())
	assert.Equal(t, http.StatusTooManyRequests, send())
}

func TestRouter_RateLimitDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimitRPS = 0
	router := newTestRouter(cfg)
	for i := 0; i < 5; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{")))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	}
}

func TestRouter_CORSAllowsCredentials(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
	req.Header.Set("Origin", "http://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	newTestRouter(testConfig()).ServeHTTP(rr, req)

	assert.Equal(t, "http://app.example", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}

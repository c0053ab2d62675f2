package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sitepulse/api/config"
	"sitepulse/api/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func guardedRouter(cfg config.DashboardConfig) *gin.Engine {
	r := gin.New()
	r.Use(Logger(zap.NewNop()))
	r.GET("/stats", DashboardGuard(cfg, zap.NewNop()), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("dashboard_client"))
	})
	return r
}

func TestDashboardGuardDisabled(t *testing.T) {
	r := guardedRouter(config.DashboardConfig{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestDashboardGuardAPIKey(t *testing.T) {
	hash, err := utils.HashAPIKey("k-123")
	require.NoError(t, err)
	r := guardedRouter(config.DashboardConfig{APIKeyHash: hash})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("X-API-KEY", "k-123")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("X-API-KEY", "wrong")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDashboardGuardBearer(t *testing.T) {
	secret := "jwt-secret"
	r := guardedRouter(config.DashboardConfig{JWTSecret: secret})
	token, err := utils.GenerateDashboardToken([]byte(secret), "grafana", time.Hour)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "grafana", w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func corsRouter() *gin.Engine {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://dash.example"}, "/api/v1/tracking/track"))
	r.POST("/api/v1/tracking/track", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/tracking/domains", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestCORSPublicPrefixAllowsAnyOrigin(t *testing.T) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/tracking/track", nil)
	req.Header.Set("Origin", "https://customer.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	corsRouter().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSDashboardRestrictsOrigin(t *testing.T) {
	r := corsRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/tracking/domains", nil)
	req.Header.Set("Origin", "https://dash.example")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://dash.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/tracking/domains", nil)
	req.Header.Set("Origin", "https://evil.example")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

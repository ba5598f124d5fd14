package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newCORSTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORSSelector())
	r.POST("/api/v1/track", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"success": true}) })
	r.GET("/api/v1/sessions/live", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{}) })
	return r
}

func TestBeaconEndpointAllowsAnyStorefrontOrigin(t *testing.T) {
	r := newCORSTestEngine()

	// Preflight from an arbitrary merchant domain.
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/track", nil)
	req.Header.Set("Origin", "https://merchant-shop.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	// The actual cross-origin beacon post.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/track", nil)
	req.Header.Set("Origin", "https://merchant-shop.example")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestDashboardKeepsStrictOriginAllowlist(t *testing.T) {
	r := newCORSTestEngine()

	// A foreign origin is refused on dashboard routes.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/live", nil)
	req.Header.Set("Origin", "https://merchant-shop.example")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)

	// The dashboard dev origin still works.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/live", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "http://localhost:3000", rr.Header().Get("Access-Control-Allow-Origin"))
}

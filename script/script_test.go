package script

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointPrefersPublicURL(t *testing.T) {
	req := httptest.NewRequest("GET", "http://internal:8080/api/v1/tracking/script", nil)
	assert.Equal(t, "https://stats.example.com/api/v1/tracking/track",
		NewRenderer("https://stats.example.com/ ").Endpoint(req))
	assert.Equal(t, "http://internal:8080/api/v1/tracking/track", NewRenderer("").Endpoint(req))
}

func TestEndpointHonoursForwardedHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "http://internal:8080/api/v1/tracking/script", nil)
	req.Header.Set("X-Forwarded-Proto", "https, http")
	req.Header.Set("X-Forwarded-Host", "stats.example.com")
	assert.Equal(t, "https://stats.example.com/api/v1/tracking/track", NewRenderer("").Endpoint(req))
}

func TestRenderEmbedsEndpointAndIdleTimeout(t *testing.T) {
	out, err := Render("https://stats.example.com/api/v1/tracking/track")
	require.NoError(t, err)
	js := string(out)
	assert.Contains(t, js, `var ENDPOINT = 'https://stats.example.com/api/v1/tracking/track';`)
	assert.Contains(t, js, "var IDLE_MS = 1800000;")
	assert.Contains(t, js, "isSessionEnd: true")
	assert.Contains(t, js, "page_path: window.location.pathname + window.location.search + window.location.hash,")
	assert.NotContains(t, js, "{{")
}

func TestRenderEscapesEndpoint(t *testing.T) {
	out, err := Render("http://x/';alert(1);//")
	require.NoError(t, err)
	assert.Contains(t, string(out), `var ENDPOINT = 'http://x/\';alert(1);//';`)
}

func TestRendererCaches(t *testing.T) {
	r := NewRenderer("https://stats.example.com")
	req := httptest.NewRequest("GET", "/api/v1/tracking/script", nil)
	first, err := r.Render(req)
	require.NoError(t, err)
	second, err := r.Render(req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, first, r.cached)
}

func TestRendererDoesNotCacheHostDerivedEndpoints(t *testing.T) {
	r := NewRenderer("")
	for _, host := range []string{"a.example", "b.example", "c.example"} {
		req := httptest.NewRequest("GET", "/api/v1/tracking/script", nil)
		req.Header.Set("X-Forwarded-Host", host)
		out, err := r.Render(req)
		require.NoError(t, err)
		assert.Contains(t, string(out), "http://"+host+TrackPath)
	}
	assert.Nil(t, r.cached)
}

package main

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"testing"

	"sitepulse/api/models"
	"sitepulse/api/tracker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vegeta "github.com/tsenart/vegeta/v12/lib"
)

func TestTargeterBuildsTrackRequests(t *testing.T) {
	tr := newTargeter("http://localhost:8080", []string{"a.com"}, 1, rand.New(rand.NewSource(1)))

	var sessionIDs []string
	for i := 0; i < 11; i++ {
		var tgt vegeta.Target
		require.NoError(t, tr(&tgt))
		assert.Equal(t, http.MethodPost, tgt.Method)
		assert.Equal(t, "http://localhost:8080/api/v1/tracking/track", tgt.URL)
		assert.Equal(t, "application/json", tgt.Header.Get("Content-Type"))

		var req models.TrackRequest
		require.NoError(t, json.Unmarshal(tgt.Body, &req))
		assert.Equal(t, "a.com", req.Domain)
		assert.Equal(t, "1920x1080", tracker.ScreenResolution(req.ScreenWidth, req.ScreenHeight))
		assert.Equal(t, i == 9, req.IsSessionEnd)
		sessionIDs = append(sessionIDs, req.SessionID)
	}

	assert.Equal(t, sessionIDs[0], sessionIDs[9])
	assert.NotEqual(t, sessionIDs[9], sessionIDs[10])
}

func TestTargeterRejectsNilTarget(t *testing.T) {
	tr := newTargeter("http://x", []string{"a.com"}, 2, rand.New(rand.NewSource(1)))
	assert.ErrorIs(t, tr(nil), vegeta.ErrNilTarget)
}

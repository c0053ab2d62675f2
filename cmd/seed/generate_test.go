package main

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"sitepulse/api/analytics"
	"sitepulse/api/models"
	"sitepulse/api/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGenerateSessions(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	events := generate(rand.New(rand.NewSource(1)), now, 40, 7, []string{"a.com", "b.com"})
	require.NotEmpty(t, events)

	bySession := map[string][]models.TrackingEvent{}
	for _, e := range events {
		assert.Contains(t, []string{"a.com", "b.com"}, e.Domain)
		assert.False(t, e.SessionStart.After(now))
		assert.NotEmpty(t, e.Country)
		assert.NotEmpty(t, e.City)
		bySession[e.SessionID] = append(bySession[e.SessionID], e)
	}
	assert.Len(t, bySession, 40)

	for _, evs := range bySession {
		for _, e := range evs {
			assert.Equal(t, evs[0].City, e.City)
		}
		last := evs[len(evs)-1]
		assert.True(t, last.IsSessionEnd)
		require.NotNil(t, last.SessionDuration)
		assert.GreaterOrEqual(t, *last.SessionDuration, 0.0)
		assert.Equal(t, len(evs), last.PageViewCount)
		for i := 1; i < len(evs); i++ {
			assert.False(t, evs[i].Timestamp.Before(evs[i-1].Timestamp))
		}
	}
}

func TestGeneratedDataAggregates(t *testing.T) {
	s := store.NewMemoryStore()
	events := generate(rand.New(rand.NewSource(2)), time.Now(), 25, 3, []string{"a.com"})
	require.NoError(t, s.InsertMany(context.Background(), events))

	a, err := analytics.NewService(s, zap.NewNop()).DomainAnalytics(context.Background(), "a.com", models.EventFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(len(events)), a.TotalPageViews)
	assert.Equal(t, int64(25), a.UniqueSessions)
	assert.Equal(t, int64(25), a.TotalSessions)
	assert.Greater(t, a.AverageSessionDuration, 0.0)
	assert.NotContains(t, a.Countries, "Unknown")
	assert.NotContains(t, a.Cities, "Unknown")
}

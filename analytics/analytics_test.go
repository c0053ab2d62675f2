package analytics

import (
	"context"
	"encoding/json"
	"math/rand"
	"testing"
	"time"

	"sitepulse/api/apperr"
	"sitepulse/api/models"
	"sitepulse/api/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func ev(ip, session, path string, offset time.Duration) models.TrackingEvent {
	return models.TrackingEvent{
		IPAddress:        ip,
		Domain:           "a.com",
		PagePath:         path,
		DeviceType:       models.DeviceDesktop,
		DeviceBrowser:    "Chrome",
		DeviceOS:         "macOS",
		ScreenResolution: "1440x900",
		Timestamp:        t0.Add(offset),
		SessionID:        session,
		SessionStart:     t0,
		PageViewCount:    1,
	}
}

func withDuration(e models.TrackingEvent, seconds float64) models.TrackingEvent {
	end := e.Timestamp
	e.IsSessionEnd = true
	e.SessionEnd = &end
	e.SessionDuration = &seconds
	return e
}

func TestUniqueVisitorsAreDistinctIPs(t *testing.T) {
	events := []models.TrackingEvent{
		ev("A", "s1", "/", 0),
		ev("A", "s1", "/", time.Second),
		ev("B", "s2", "/", 2*time.Second),
		ev("C", "s3", "/", 3*time.Second),
		ev("C", "s4", "/", 4*time.Second),
	}
	a := Compute("a.com", events)
	assert.Equal(t, int64(5), a.TotalPageViews)
	assert.Equal(t, int64(3), a.UniqueVisitors)
	assert.Equal(t, int64(4), a.UniqueSessions)
}

func TestPagesOrderedByCountThenKey(t *testing.T) {
	var events []models.TrackingEvent
	add := func(path string, n int) {
		for i := 0; i < n; i++ {
			events = append(events, ev("A", "s1", path, time.Duration(len(events))*time.Second))
		}
	}
	add("/pricing", 2)
	add("/", 5)
	add("/about", 2)
	add("/contact", 5)

	a := Compute("a.com", events)
	assert.Equal(t, []string{"/", "/contact", "/about", "/pricing"}, a.Pages.Keys())
	assert.Equal(t, int64(5), a.Pages[0].Count)
}

func TestAverageSessionDurationIgnoresMissing(t *testing.T) {
	events := []models.TrackingEvent{
		withDuration(ev("A", "s1", "/", time.Minute), 60),
		withDuration(ev("B", "s2", "/", 2*time.Minute), 120),
		ev("C", "s3", "/", 3*time.Minute),
	}
	a := Compute("a.com", events)
	assert.Equal(t, 90.0, a.AverageSessionDuration)
	assert.Equal(t, int64(2), a.TotalSessions)
}

func TestAverageSessionDurationRounds(t *testing.T) {
	events := []models.TrackingEvent{
		withDuration(ev("A", "s1", "/", 0), 10),
		withDuration(ev("A", "s2", "/", 0), 10),
		withDuration(ev("A", "s3", "/", 0), 11),
	}
	assert.Equal(t, 10.33, Compute("a.com", events).AverageSessionDuration)
	assert.Equal(t, 0.0, Compute("a.com", []models.TrackingEvent{ev("A", "s1", "/", 0)}).AverageSessionDuration)
}

func TestHistogramsBucketUnknown(t *testing.T) {
	e := ev("A", "s1", "/", 0)
	e.DeviceType = models.DeviceUnknown
	e.DeviceBrowser = ""
	e.ScreenResolution = ""
	a := Compute("a.com", []models.TrackingEvent{e, ev("B", "s2", "/", time.Second)})

	assert.Equal(t, map[string]int64{"Unknown": 1, "desktop": 1}, a.Devices)
	assert.Equal(t, map[string]int64{"Unknown": 1, "Chrome": 1}, a.Browsers)
	assert.Equal(t, map[string]int64{"Unknown": 1, "1440x900": 1}, a.ScreenResolutions)
	assert.Equal(t, map[string]int64{"macOS": 2}, a.OperatingSystems)
}

func TestLiteralUnknownKeptOutsideDeviceType(t *testing.T) {
	e := ev("A", "s1", "/", 0)
	e.DeviceType = models.DeviceUnknown
	e.DeviceBrowser = "unknown"
	e.DeviceOS = "unknown"
	e.ScreenResolution = "unknown"
	e.PagePath = "unknown"
	a := Compute("a.com", []models.TrackingEvent{e})

	assert.Equal(t, map[string]int64{"Unknown": 1}, a.Devices)
	assert.Equal(t, map[string]int64{"unknown": 1}, a.Browsers)
	assert.Equal(t, map[string]int64{"unknown": 1}, a.OperatingSystems)
	assert.Equal(t, map[string]int64{"unknown": 1}, a.ScreenResolutions)
	assert.Equal(t, []string{"unknown"}, a.Pages.Keys())
}

func TestGeoHistograms(t *testing.T) {
	berlin := ev("A", "s1", "/", 0)
	berlin.Country, berlin.City = "Germany", "Berlin"
	munich := ev("B", "s2", "/", time.Second)
	munich.Country, munich.City = "Germany", "Munich"
	unresolved := ev("C", "s3", "/", 2*time.Second)
	a := Compute("a.com", []models.TrackingEvent{berlin, munich, unresolved})

	assert.Equal(t, map[string]int64{"Germany": 2, "Unknown": 1}, a.Countries)
	assert.Equal(t, map[string]int64{"Berlin": 1, "Munich": 1, "Unknown": 1}, a.Cities)
}

func TestSessionDerivedMetrics(t *testing.T) {
	landing := ev("A", "s1", "/", 0)
	second := ev("A", "s1", "/pricing", time.Minute)
	second.PageViewCount = 2
	second.Referrer = "https://news.example"
	exit := withDuration(ev("A", "s1", "/signup", 2*time.Minute), 120)
	exit.PageViewCount = 3
	bounce := ev("B", "s2", "/blog", 30*time.Second)

	a := Compute("a.com", []models.TrackingEvent{exit, landing, bounce, second})

	assert.Equal(t, []string{"/", "/blog"}, a.EntryPages.Keys())
	assert.Equal(t, []string{"/blog", "/signup"}, a.ExitPages.Keys())
	assert.Equal(t, 50.0, a.BounceRate)
	assert.Equal(t, 2.0, a.PagesPerSession)
	assert.Equal(t, int64(1), a.TotalSessions)
	assert.Equal(t, []string{"Direct", "https://news.example"}, a.Referrers.Keys())
	require.NotNil(t, a.LatestActivity)
	assert.True(t, a.LatestActivity.Equal(t0.Add(2*time.Minute)))
}

func TestComputeIsIdempotentAndOrderIndependent(t *testing.T) {
	events := []models.TrackingEvent{
		ev("A", "s1", "/", 0),
		ev("B", "s2", "/docs", time.Second),
		withDuration(ev("A", "s1", "/docs", 2*time.Second), 2),
		ev("C", "s3", "/", 3*time.Second),
	}
	first, err := json.Marshal(Compute("a.com", events))
	require.NoError(t, err)
	second, err := json.Marshal(Compute("a.com", events))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	shuffled := append([]models.TrackingEvent(nil), events...)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	third, err := json.Marshal(Compute("a.com", shuffled))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(third))
}

func TestComputeEmpty(t *testing.T) {
	a := Compute("a.com", nil)
	assert.Zero(t, a.TotalPageViews)
	assert.Nil(t, a.LatestActivity)
	assert.Empty(t, a.Pages)
	assert.Equal(t, 0.0, a.BounceRate)
}

func seeded(t *testing.T, events ...models.TrackingEvent) *Service {
	t.Helper()
	s := store.NewMemoryStore()
	require.NoError(t, s.InsertMany(context.Background(), events))
	return NewService(s, zap.NewNop())
}

func TestServiceNotFound(t *testing.T) {
	svc := seeded(t, ev("A", "s1", "/", 0))

	_, err := svc.DomainAnalytics(context.Background(), "missing.com", models.EventFilter{})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = svc.DomainAnalytics(context.Background(), "missing.com", models.EventFilter{Browser: "Chrome"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestServiceFilteredEmptyForKnownDomain(t *testing.T) {
	svc := seeded(t, ev("A", "s1", "/", 0))

	a, err := svc.DomainAnalytics(context.Background(), "a.com", models.EventFilter{DeviceType: models.DeviceMobile})
	require.NoError(t, err)
	assert.Equal(t, "a.com", a.Domain)
	assert.Zero(t, a.TotalPageViews)
}

func TestServiceValidation(t *testing.T) {
	svc := seeded(t)
	_, err := svc.DomainAnalytics(context.Background(), " ", models.EventFilter{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	from, to := t0.Add(time.Hour), t0
	_, err = svc.DomainAnalytics(context.Background(), "a.com", models.EventFilter{From: &from, To: &to})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestServiceSnapshots(t *testing.T) {
	other := ev("Z", "s9", "/", 0)
	other.Domain = "b.com"
	svc := seeded(t, ev("A", "s1", "/", 0), other)

	all, err := svc.Snapshots(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a.com", all[0].Domain)
	assert.Equal(t, "b.com", all[1].Domain)

	one, err := svc.Snapshots(context.Background(), "b.com")
	require.NoError(t, err)
	require.Len(t, one, 1)

	none, err := svc.Snapshots(context.Background(), "nope.com")
	require.NoError(t, err)
	assert.Empty(t, none)
}

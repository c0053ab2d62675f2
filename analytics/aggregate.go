// Package analytics computes per-domain snapshots from stored tracking events.
package analytics

import (
	"sort"
	"time"

	"sitepulse/api/models"
	"sitepulse/api/utils"
)

const (
	unknownBucket = "Unknown"
	directBucket  = "Direct"
)

type sessionStats struct {
	first    *models.TrackingEvent
	last     *models.TrackingEvent
	maxViews int
	ended    bool
}

// Compute builds the snapshot of domain from its events. It does not touch
// the store and gives the same result for the same events in any order,
// except that entry and exit pages of sessions with equal timestamps follow
// input order.
func Compute(domain string, events []models.TrackingEvent) *models.DomainAnalytics {
	a := &models.DomainAnalytics{
		Domain:            domain,
		Devices:           map[string]int64{},
		Browsers:          map[string]int64{},
		OperatingSystems:  map[string]int64{},
		ScreenResolutions: map[string]int64{},
		Countries:         map[string]int64{},
		Cities:            map[string]int64{},
	}

	visitors := make(map[string]struct{})
	sessions := make(map[string]*sessionStats)
	pages := make(map[string]int64)
	referrers := make(map[string]int64)

	var (
		durationSum   float64
		durationCount int
		latest        time.Time
	)

	for i := range events {
		e := &events[i]
		a.TotalPageViews++
		visitors[e.IPAddress] = struct{}{}

		a.Devices[deviceBucket(e.DeviceType)]++
		a.Browsers[bucket(e.DeviceBrowser)]++
		a.OperatingSystems[bucket(e.DeviceOS)]++
		a.ScreenResolutions[bucket(e.ScreenResolution)]++
		a.Countries[bucket(e.Country)]++
		a.Cities[bucket(e.City)]++
		pages[bucket(e.PagePath)]++
		if e.Referrer == "" {
			referrers[directBucket]++
		} else {
			referrers[e.Referrer]++
		}

		if e.SessionDuration != nil {
			durationSum += *e.SessionDuration
			durationCount++
		}
		if e.Timestamp.After(latest) {
			latest = e.Timestamp
		}

		st, ok := sessions[e.SessionID]
		if !ok {
			st = &sessionStats{first: e, last: e}
			sessions[e.SessionID] = st
		}
		if e.Timestamp.Before(st.first.Timestamp) {
			st.first = e
		}
		if !e.Timestamp.Before(st.last.Timestamp) {
			st.last = e
		}
		if e.PageViewCount > st.maxViews {
			st.maxViews = e.PageViewCount
		}
		if e.IsSessionEnd {
			st.ended = true
		}
	}

	a.UniqueVisitors = int64(len(visitors))
	a.UniqueSessions = int64(len(sessions))
	a.Pages = Rank(pages)
	a.Referrers = Rank(referrers)

	entries := make(map[string]int64)
	exits := make(map[string]int64)
	var bounced int64
	for _, st := range sessions {
		entries[bucket(st.first.PagePath)]++
		exits[bucket(st.last.PagePath)]++
		if st.maxViews <= 1 {
			bounced++
		}
		if st.ended {
			a.TotalSessions++
		}
	}
	a.EntryPages = Rank(entries)
	a.ExitPages = Rank(exits)

	if durationCount > 0 {
		a.AverageSessionDuration = utils.Round2(durationSum / float64(durationCount))
	}
	if a.UniqueSessions > 0 {
		a.PagesPerSession = utils.Round2(float64(a.TotalPageViews) / float64(a.UniqueSessions))
		a.BounceRate = utils.Round2(float64(bounced) * 100 / float64(a.UniqueSessions))
	}
	if !latest.IsZero() {
		a.LatestActivity = &latest
	}
	return a
}

// Rank orders a histogram by descending count, ties broken by ascending key.
func Rank(counts map[string]int64) models.RankedCounts {
	out := make(models.RankedCounts, 0, len(counts))
	for k, v := range counts {
		out = append(out, models.Bucket{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// bucket maps a missing value to Unknown. Reported values, including a
// literal "unknown", are kept as sent.
func bucket(v string) string {
	if v == "" {
		return unknownBucket
	}
	return v
}

// deviceBucket also folds the normalized "unknown" device type into Unknown.
func deviceBucket(v string) string {
	if v == models.DeviceUnknown {
		return unknownBucket
	}
	return bucket(v)
}

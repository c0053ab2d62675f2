package main

import (
	"math/rand"
	"sort"
	"strconv"
	"time"

	"sitepulse/api/models"
	"sitepulse/api/utils"
)

var (
	pagePaths = []string{
		"/", "/about", "/products", "/contact", "/blog",
		"/services", "/pricing", "/faq", "/team", "/careers",
		"/privacy", "/terms", "/login", "/register", "/dashboard",
	}
	deviceTypes = []string{models.DeviceDesktop, models.DeviceMobile, models.DeviceTablet}
	browsers    = []string{"Chrome", "Firefox", "Safari", "Edge", "Opera"}
	systems     = []string{"Windows", "macOS", "Linux", "Android", "iOS"}
	resolutions = []string{
		"1920x1080", "1366x768", "1536x864", "1440x900", "1280x720",
		"375x812", "414x896", "360x740", "412x915", "390x844",
	}
	referrers = []string{
		"", "https://google.com", "https://facebook.com", "https://twitter.com",
		"https://linkedin.com", "https://reddit.com", "https://github.com",
	}
	languages = []string{"en-US", "en-GB", "de-DE", "fr-FR", "ja-JP"}
	locations = []struct {
		country string
		cities  []string
	}{
		{"United States", []string{"New York", "Los Angeles", "Chicago", "Houston", "Phoenix"}},
		{"United Kingdom", []string{"London", "Manchester", "Birmingham", "Glasgow", "Liverpool"}},
		{"Canada", []string{"Toronto", "Vancouver", "Montreal", "Calgary", "Ottawa"}},
		{"Germany", []string{"Berlin", "Munich", "Hamburg", "Frankfurt", "Cologne"}},
		{"France", []string{"Paris", "Marseille", "Lyon", "Toulouse", "Nice"}},
		{"Japan", []string{"Tokyo", "Osaka", "Nagoya", "Sapporo", "Fukuoka"}},
		{"Australia", []string{"Sydney", "Melbourne", "Brisbane", "Perth", "Adelaide"}},
	}
)

// sessionProfile shapes one synthetic session.
type sessionProfile struct {
	name         string
	weight       float64
	pages        [2]int
	duration     [2]int
	pageDuration [2]int
}

var profiles = []sessionProfile{
	{name: "regular", weight: 0.75, pages: [2]int{1, 10}, duration: [2]int{60, 3600}, pageDuration: [2]int{10, 300}},
	{name: "bounce", weight: 0.15, pages: [2]int{1, 1}, duration: [2]int{1, 10}, pageDuration: [2]int{1, 5}},
	{name: "bot", weight: 0.05, pages: [2]int{20, 50}, duration: [2]int{10, 30}, pageDuration: [2]int{1, 3}},
	{name: "power", weight: 0.05, pages: [2]int{15, 30}, duration: [2]int{7200, 14400}, pageDuration: [2]int{600, 1800}},
}

func pickProfile(r *rand.Rand) sessionProfile {
	x := r.Float64()
	for _, p := range profiles {
		if x < p.weight {
			return p
		}
		x -= p.weight
	}
	return profiles[0]
}

func between(r *rand.Rand, bounds [2]int) int {
	if bounds[1] <= bounds[0] {
		return bounds[0]
	}
	return bounds[0] + r.Intn(bounds[1]-bounds[0]+1)
}

func pick(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}

// generate builds sessions spread over the days before now. Each session has
// page views in time order and ends with a session-end event on its last page.
func generate(r *rand.Rand, now time.Time, sessions, days int, domains []string) []models.TrackingEvent {
	var events []models.TrackingEvent
	for i := 0; i < sessions; i++ {
		p := pickProfile(r)
		start := now.Add(-time.Duration(r.Intn(days*24*3600)) * time.Second).UTC()
		duration := between(r, p.duration)
		views := between(r, p.pages)
		loc := locations[r.Intn(len(locations))]

		base := models.TrackingEvent{
			IPAddress:        "10.0." + strconv.Itoa(r.Intn(256)) + "." + strconv.Itoa(r.Intn(256)),
			Domain:           pick(r, domains),
			UserAgent:        "sitepulse-seed/1.0",
			DeviceType:       pick(r, deviceTypes),
			DeviceBrowser:    pick(r, browsers),
			DeviceOS:         pick(r, systems),
			Referrer:         pick(r, referrers),
			Language:         pick(r, languages),
			ScreenResolution: pick(r, resolutions),
			Country:          loc.country,
			City:             pick(r, loc.cities),
			SessionID:        utils.NewSessionID(),
			SessionStart:     start,
		}

		offsets := make([]int, views)
		for v := range offsets {
			offsets[v] = r.Intn(duration + 1)
		}
		offsets[0] = 0
		sort.Ints(offsets)

		for v, off := range offsets {
			e := base
			e.PagePath = pick(r, pagePaths)
			e.PageTitle = e.PagePath
			e.Timestamp = start.Add(time.Duration(off) * time.Second)
			e.IsPageChange = v > 0
			e.PageDuration = float64(between(r, p.pageDuration))
			e.PageViewCount = v + 1
			if v == views-1 {
				end := start.Add(time.Duration(duration) * time.Second)
				seconds := float64(duration)
				e.Timestamp = end
				e.IsSessionEnd = true
				e.SessionEnd = &end
				e.SessionDuration = &seconds
			}
			events = append(events, e)
		}
	}
	return events
}

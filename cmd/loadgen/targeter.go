package main

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"sitepulse/api/models"
	"sitepulse/api/utils"

	vegeta "github.com/tsenart/vegeta/v12/lib"
)

var paths = []string{"/", "/pricing", "/docs", "/blog", "/signup", "/about"}

type simSession struct {
	id      string
	domain  string
	started time.Time
	views   int
}

// sessionPool hands out simulated sessions round-robin. Every tenth hit on a
// session closes it and replaces it with a fresh one.
type sessionPool struct {
	mu       sync.Mutex
	rnd      *rand.Rand
	domains  []string
	sessions []*simSession
	next     int
	now      func() time.Time
}

func (p *sessionPool) fresh() *simSession {
	return &simSession{
		id:      utils.NewSessionID(),
		domain:  strings.TrimSpace(p.domains[p.rnd.Intn(len(p.domains))]),
		started: p.now(),
	}
}

// payload returns the next tracking request body.
func (p *sessionPool) payload() models.TrackRequest {
	p.mu.Lock()
	defer p.mu.Unlock()

	i := p.next
	p.next = (p.next + 1) % len(p.sessions)
	s := p.sessions[i]
	s.views++

	now := p.now()
	startMs := float64(s.started.UnixMilli())
	nowMs := float64(now.UnixMilli())
	req := models.TrackRequest{
		Domain:           s.domain,
		PagePath:         paths[p.rnd.Intn(len(paths))],
		Title:            "Load test",
		UserAgent:        "sitepulse-loadgen/1.0",
		DeviceType:       models.DeviceDesktop,
		DeviceBrowser:    "Chrome",
		DeviceOS:         "Linux",
		Language:         "en-US",
		ScreenWidth:      models.NewDimension(1920),
		ScreenHeight:     models.NewDimension(1080),
		SessionID:        s.id,
		SessionStartTime: &startMs,
		CurrentTime:      &nowMs,
		IsPageChange:     s.views > 1,
		PageViewCount:    s.views,
	}
	if s.views >= 10 {
		req.IsSessionEnd = true
		p.sessions[i] = p.fresh()
	}
	return req
}

func newTargeter(baseURL string, domains []string, sessions int, rnd *rand.Rand) vegeta.Targeter {
	pool := &sessionPool{rnd: rnd, domains: domains, now: time.Now}
	pool.sessions = make([]*simSession, sessions)
	for i := range pool.sessions {
		pool.sessions[i] = pool.fresh()
	}

	url := baseURL + "/api/v1/tracking/track"
	header := http.Header{"Content-Type": []string{"application/json"}}

	return func(tgt *vegeta.Target) error {
		if tgt == nil {
			return vegeta.ErrNilTarget
		}
		body, err := json.Marshal(pool.payload())
		if err != nil {
			return err
		}
		tgt.Method = http.MethodPost
		tgt.URL = url
		tgt.Body = body
		tgt.Header = header.Clone()
		return nil
	}
}

// Package tracker turns raw client tracking payloads into persisted events.
package tracker

import (
	"context"
	"strings"
	"time"

	"sitepulse/api/apperr"
	"sitepulse/api/geo"
	"sitepulse/api/models"
	"sitepulse/api/store"
	"sitepulse/api/stream"
	"sitepulse/api/utils"

	"go.uber.org/zap"
)

type Tracker struct {
	store     store.EventStore
	publisher stream.Publisher
	geo       geo.Resolver
	log       *zap.Logger
	now       func() time.Time
}

func New(s store.EventStore, p stream.Publisher, log *zap.Logger) *Tracker {
	if p == nil {
		p = stream.NoopPublisher{}
	}
	return &Tracker{
		store:     s,
		publisher: p,
		geo:       geo.NopResolver{},
		log:       log.With(zap.String("component", "tracker")),
		now:       time.Now,
	}
}

// WithGeo sets the resolver used to fill country and city.
func (t *Tracker) WithGeo(r geo.Resolver) *Tracker {
	if r != nil {
		t.geo = r
	}
	return t
}

// Track records one event and returns the session id the client should keep
// using. Exactly one insert is made per call.
func (t *Tracker) Track(ctx context.Context, req *models.TrackRequest, ip string) (string, error) {
	e, err := BuildEvent(req, ip, t.now())
	if err != nil {
		return "", err
	}
	loc := t.geo.Lookup(e.IPAddress)
	e.Country, e.City = loc.Country, loc.City

	if _, err := t.store.Insert(ctx, e); err != nil {
		return "", err
	}

	if err := t.publisher.Publish(ctx, e); err != nil {
		t.log.Warn("failed to publish tracking event",
			zap.String("session_id", e.SessionID),
			zap.Error(err),
		)
	}

	t.log.Debug("tracked event",
		zap.String("domain", e.Domain),
		zap.String("session_id", e.SessionID),
		zap.Bool("session_end", e.IsSessionEnd),
	)
	return e.SessionID, nil
}

// BuildEvent validates req and derives the stored record. now is the server
// time of receipt and becomes the event timestamp. Session start and end keep
// the client's clock so that duration is currentTime minus sessionStartTime.
func BuildEvent(req *models.TrackRequest, ip string, now time.Time) (*models.TrackingEvent, error) {
	domain := strings.TrimSpace(req.Domain)
	if domain == "" {
		return nil, apperr.Validation("track", "domain is required")
	}

	pagePath := strings.TrimSpace(req.PagePath)
	if pagePath == "" {
		pagePath = "/"
	}
	if ip == "" {
		ip = utils.UnknownIP
	}

	now = now.UTC()
	start, startKnown := now, false
	if req.SessionStartTime != nil && *req.SessionStartTime > 0 {
		start, startKnown = utils.MillisToTime(*req.SessionStartTime), true
	}

	e := &models.TrackingEvent{
		IPAddress:        ip,
		Domain:           domain,
		PagePath:         pagePath,
		PageTitle:        strings.TrimSpace(req.Title),
		UserAgent:        req.UserAgent,
		DeviceType:       models.NormalizeDeviceType(req.DeviceType),
		DeviceBrowser:    strings.TrimSpace(req.DeviceBrowser),
		DeviceOS:         strings.TrimSpace(req.DeviceOS),
		Referrer:         strings.TrimSpace(req.Referrer),
		Language:         strings.TrimSpace(req.Language),
		ScreenResolution: ScreenResolution(req.ScreenWidth, req.ScreenHeight),
		Timestamp:        now,
		SessionID:        utils.ResolveSessionID(req.SessionID),
		SessionStart:     start,
		IsSessionEnd:     req.IsSessionEnd,
		IsPageChange:     req.IsPageChange,
		PageDuration:     req.PageDuration,
		PageViewCount:    req.PageViewCount,
	}

	if req.IsSessionEnd {
		end := now
		if req.CurrentTime != nil && *req.CurrentTime > 0 {
			end = utils.MillisToTime(*req.CurrentTime)
		}
		// Start and end are both client clock readings; the duration is their
		// difference and end never precedes start.
		if startKnown {
			if end.Before(start) {
				end = start
			}
			d := end.Sub(start).Seconds()
			e.SessionDuration = &d
		}
		e.SessionEnd = &end
	}
	return e, nil
}

// ScreenResolution renders "WxH". A missing side renders as 0; with both
// missing the resolution is empty.
func ScreenResolution(w, h models.Dimension) string {
	if !w.IsSet() && !h.IsSet() {
		return ""
	}
	return dimension(w) + "x" + dimension(h)
}

func dimension(d models.Dimension) string {
	if !d.IsSet() {
		return "0"
	}
	return d.String()
}

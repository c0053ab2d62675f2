// api/models/event.go
package models

import (
	"strings"
	"time"
)

const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

// TrackingEvent is one observed page view or session-boundary signal. Events are
// never updated after insert; a session end is recorded as a new event.
type TrackingEvent struct {
	ID               string     `json:"id" bson:"_id,omitempty"`
	IPAddress        string     `json:"ip_address" bson:"ip_address"`
	Domain           string     `json:"domain" bson:"domain"`
	PagePath         string     `json:"page_path" bson:"page_path"`
	PageTitle        string     `json:"page_title" bson:"page_title"`
	UserAgent        string     `json:"user_agent" bson:"user_agent"`
	DeviceType       string     `json:"device_type" bson:"device_type"`
	DeviceBrowser    string     `json:"device_browser" bson:"device_browser"`
	DeviceOS         string     `json:"device_os" bson:"device_os"`
	Referrer         string     `json:"referrer" bson:"referrer"`
	Language         string     `json:"language" bson:"language"`
	ScreenResolution string     `json:"screen_resolution" bson:"screen_resolution"`
	Country          string     `json:"country" bson:"country"`
	City             string     `json:"city" bson:"city"`
	Timestamp        time.Time  `json:"timestamp" bson:"timestamp"`
	SessionID        string     `json:"session_id" bson:"session_id"`
	SessionStart     time.Time  `json:"session_start" bson:"session_start"`
	SessionEnd       *time.Time `json:"session_end,omitempty" bson:"session_end,omitempty"`
	SessionDuration  *float64   `json:"session_duration,omitempty" bson:"session_duration,omitempty"`
	IsSessionEnd     bool       `json:"is_session_end" bson:"is_session_end"`
	IsPageChange     bool       `json:"is_page_change" bson:"is_page_change"`
	PageDuration     float64    `json:"page_duration" bson:"page_duration"`
	PageViewCount    int        `json:"page_view_count" bson:"page_view_count"`
}

// NormalizeDeviceType maps a client-reported device type onto the enumerated set.
func NormalizeDeviceType(raw string) string {
	switch v := strings.ToLower(strings.TrimSpace(raw)); v {
	case DeviceMobile, DeviceTablet, DeviceDesktop:
		return v
	default:
		return DeviceUnknown
	}
}

// EventFilter narrows the events read for a domain. The zero value matches
// every event.
type EventFilter struct {
	From       *time.Time
	To         *time.Time
	DeviceType string
	Browser    string
	OS         string
	PagePath   string
}

func (f EventFilter) IsZero() bool {
	return f.From == nil && f.To == nil && f.DeviceType == "" && f.Browser == "" && f.OS == "" && f.PagePath == ""
}

// Matches applies the filter in memory. Store adapters translate the same
// predicate into their query language.
func (f EventFilter) Matches(e *TrackingEvent) bool {
	if f.From != nil && e.Timestamp.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Timestamp.After(*f.To) {
		return false
	}
	if f.DeviceType != "" && e.DeviceType != f.DeviceType {
		return false
	}
	if f.Browser != "" && e.DeviceBrowser != f.Browser {
		return false
	}
	if f.OS != "" && e.DeviceOS != f.OS {
		return false
	}
	if f.PagePath != "" && e.PagePath != f.PagePath {
		return false
	}
	return true
}

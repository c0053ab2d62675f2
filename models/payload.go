package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TrackRequest is the raw payload posted by the embedded tracking script. Every
// field is client-supplied and unvalidated.
type TrackRequest struct {
	Domain           string    `json:"domain"`
	PagePath         string    `json:"page_path"`
	Title            string    `json:"title"`
	UserAgent        string    `json:"userAgent"`
	DeviceType       string    `json:"deviceType"`
	DeviceBrowser    string    `json:"deviceBrowser"`
	DeviceOS         string    `json:"deviceOS"`
	Referrer         string    `json:"referrer"`
	Language         string    `json:"language"`
	ScreenWidth      Dimension `json:"screenWidth"`
	ScreenHeight     Dimension `json:"screenHeight"`
	SessionID        string    `json:"sessionId"`
	SessionStartTime *float64  `json:"sessionStartTime"` // epoch ms
	CurrentTime      *float64  `json:"currentTime"`      // epoch ms
	IsSessionEnd     bool      `json:"isSessionEnd"`
	IsPageChange     bool      `json:"isPageChange"`
	PageDuration     float64   `json:"pageDuration"`
	PageViewCount    int       `json:"pageViewCount"`
}

// TrackResult is returned to the client so it can keep its session id.
type TrackResult struct {
	SessionID string `json:"sessionId"`
}

// Dimension is a screen width or height as reported by the client, which may
// arrive as a number, a numeric string or not at all.
type Dimension struct {
	raw string
	set bool
}

func NewDimension(v int) Dimension {
	return Dimension{raw: strconv.Itoa(v), set: true}
}

func (d Dimension) IsSet() bool    { return d.set }
func (d Dimension) String() string { return d.raw }

func (d *Dimension) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null" || s == "":
		*d = Dimension{}
		return nil
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		str = strings.TrimSpace(str)
		if str == "" {
			*d = Dimension{}
			return nil
		}
		*d = Dimension{raw: str, set: true}
		return nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("screen dimension must be a number or string, got %s", s)
	}
	*d = Dimension{raw: strconv.FormatFloat(f, 'f', -1, 64), set: true}
	return nil
}

func (d Dimension) MarshalJSON() ([]byte, error) {
	if !d.set {
		return []byte("null"), nil
	}
	if _, err := strconv.ParseFloat(d.raw, 64); err == nil {
		return []byte(d.raw), nil
	}
	return json.Marshal(d.raw)
}

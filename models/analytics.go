// api/models/analytics.go
package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// DomainAnalytics is a snapshot computed on demand from every event of a domain.
// It is never persisted.
type DomainAnalytics struct {
	Domain                 string           `json:"domain"`
	TotalPageViews         int64            `json:"total_page_views"`
	UniqueVisitors         int64            `json:"unique_visitors"`
	UniqueSessions         int64            `json:"unique_sessions"`
	TotalSessions          int64            `json:"total_sessions"`
	Devices                map[string]int64 `json:"devices"`
	Browsers               map[string]int64 `json:"browsers"`
	OperatingSystems       map[string]int64 `json:"operating_systems"`
	ScreenResolutions      map[string]int64 `json:"screen_resolutions"`
	Countries              map[string]int64 `json:"countries"`
	Cities                 map[string]int64 `json:"cities"`
	Pages                  RankedCounts     `json:"pages"`
	Referrers              RankedCounts     `json:"referrers"`
	EntryPages             RankedCounts     `json:"entry_pages"`
	ExitPages              RankedCounts     `json:"exit_pages"`
	AverageSessionDuration float64          `json:"average_session_duration"`
	PagesPerSession        float64          `json:"pages_per_session"`
	BounceRate             float64          `json:"bounce_rate"`
	LatestActivity         *time.Time       `json:"latest_activity"`
}

type Bucket struct {
	Key   string
	Count int64
}

// RankedCounts is a histogram in ranking order. It encodes as a JSON object whose
// keys keep that order, so dashboards reading it as a plain record still see the
// ranking.
type RankedCounts []Bucket

func (r RankedCounts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, b := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(b.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatInt(b.Count, 10))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Keys returns the bucket keys in ranking order.
func (r RankedCounts) Keys() []string {
	keys := make([]string, len(r))
	for i, b := range r {
		keys[i] = b.Key
	}
	return keys
}

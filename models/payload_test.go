package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimensionAcceptsNumbersAndStrings(t *testing.T) {
	var req TrackRequest
	body := `{"domain":"example.com","screenWidth":1920,"screenHeight":"1080"}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))

	assert.True(t, req.ScreenWidth.IsSet())
	assert.Equal(t, "1920", req.ScreenWidth.String())
	assert.Equal(t, "1080", req.ScreenHeight.String())
}

func TestDimensionAbsentOrNull(t *testing.T) {
	var req TrackRequest
	require.NoError(t, json.Unmarshal([]byte(`{"screenWidth":null}`), &req))

	assert.False(t, req.ScreenWidth.IsSet())
	assert.False(t, req.ScreenHeight.IsSet())
}

func TestDimensionRejectsBooleans(t *testing.T) {
	var req TrackRequest
	err := json.Unmarshal([]byte(`{"screenWidth":true}`), &req)
	assert.Error(t, err)
}

func TestDimensionMarshal(t *testing.T) {
	out, err := json.Marshal(struct {
		W Dimension `json:"w"`
		H Dimension `json:"h"`
	}{W: NewDimension(375)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"w":375,"h":null}`, string(out))
}

func TestRankedCountsKeepsOrder(t *testing.T) {
	r := RankedCounts{{Key: "/contact", Count: 5}, {Key: "/", Count: 5}, {Key: "/about", Count: 2}}
	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"/contact":5,"/":5,"/about":2}`, string(out))
	assert.Equal(t, []string{"/contact", "/", "/about"}, r.Keys())
}

func TestEventFilterMatches(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	from := now.Add(-time.Hour)
	e := &TrackingEvent{Timestamp: now, DeviceType: DeviceMobile, DeviceBrowser: "Chrome", DeviceOS: "Android", PagePath: "/"}

	assert.True(t, EventFilter{}.Matches(e))
	assert.True(t, EventFilter{From: &from, DeviceType: DeviceMobile}.Matches(e))
	assert.False(t, EventFilter{To: &from}.Matches(e))
	assert.False(t, EventFilter{Browser: "Firefox"}.Matches(e))
	assert.False(t, EventFilter{PagePath: "/about"}.Matches(e))
}

func TestNormalizeDeviceType(t *testing.T) {
	assert.Equal(t, DeviceMobile, NormalizeDeviceType(" Mobile "))
	assert.Equal(t, DeviceUnknown, NormalizeDeviceType("smart-tv"))
	assert.Equal(t, DeviceUnknown, NormalizeDeviceType(""))
}

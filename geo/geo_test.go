package geo

import (
	"testing"

	"github.com/oschwald/geoip2-golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOpenWithoutPath(t *testing.T) {
	r, err := Open("  ", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, Location{Country: Unknown, City: Unknown}, r.Lookup("8.8.8.8"))
	assert.NoError(t, r.Close())
}

func TestOpenMissingDatabase(t *testing.T) {
	_, err := Open("/nonexistent/GeoLite2-City.mmdb", zap.NewNop())
	assert.Error(t, err)
}

func TestLookupSkipsUnroutableAddresses(t *testing.T) {
	m := &MaxMind{log: zap.NewNop()}
	for _, ip := range []string{"", "0.0.0.0", "127.0.0.1", "10.1.2.3", "not-an-ip"} {
		assert.Equal(t, unknownLocation, m.Lookup(ip), ip)
	}
}

func TestFromRecord(t *testing.T) {
	assert.Equal(t, unknownLocation, fromRecord(nil))

	var rec geoip2.City
	rec.Country.Names = map[string]string{"en": "Germany", "de": "Deutschland"}
	assert.Equal(t, Location{Country: "Germany", City: Unknown}, fromRecord(&rec))

	rec.City.Names = map[string]string{"en": "Berlin"}
	assert.Equal(t, Location{Country: "Germany", City: "Berlin"}, fromRecord(&rec))
}

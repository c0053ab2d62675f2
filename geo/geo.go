// Package geo resolves client addresses to a country and city using a MaxMind
// GeoLite2/GeoIP2 City database.
package geo

import (
	"fmt"
	"net"
	"strings"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

// Unknown is recorded for any location part that cannot be resolved.
const Unknown = "Unknown"

type Location struct {
	Country string
	City    string
}

var unknownLocation = Location{Country: Unknown, City: Unknown}

// Resolver looks up the location of an IP address. Lookup never fails; it
// returns Unknown parts instead.
type Resolver interface {
	Lookup(ip string) Location
	Close() error
}

// Open returns a resolver backed by the database at path. An empty path gives a
// resolver that reports every address as Unknown.
func Open(path string, log *zap.Logger) (Resolver, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return NopResolver{}, nil
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}
	meta := db.Metadata()
	log.Info("GeoIP database loaded",
		zap.String("path", path),
		zap.String("type", meta.DatabaseType),
	)
	return &MaxMind{db: db, log: log.With(zap.String("component", "geo"))}, nil
}

// NopResolver is used when no database is configured.
type NopResolver struct{}

func (NopResolver) Lookup(string) Location { return unknownLocation }

func (NopResolver) Close() error { return nil }

type MaxMind struct {
	db  *geoip2.Reader
	log *zap.Logger
}

func (m *MaxMind) Lookup(ip string) Location {
	addr := net.ParseIP(strings.TrimSpace(ip))
	if addr == nil || addr.IsUnspecified() || addr.IsLoopback() || addr.IsPrivate() {
		return unknownLocation
	}
	rec, err := m.db.City(addr)
	if err != nil {
		m.log.Debug("geoip lookup failed", zap.String("ip", ip), zap.Error(err))
		return unknownLocation
	}
	return fromRecord(rec)
}

func (m *MaxMind) Close() error {
	return m.db.Close()
}

func fromRecord(rec *geoip2.City) Location {
	if rec == nil {
		return unknownLocation
	}
	return Location{
		Country: englishName(rec.Country.Names),
		City:    englishName(rec.City.Names),
	}
}

func englishName(names map[string]string) string {
	if n := strings.TrimSpace(names["en"]); n != "" {
		return n
	}
	return Unknown
}

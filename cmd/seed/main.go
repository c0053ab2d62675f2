// Command seed fills the configured event store with synthetic sessions.
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"strings"
	"time"

	"sitepulse/api/config"
	"sitepulse/api/store"
	"sitepulse/api/utils"

	"go.uber.org/zap"
)

const batchSize = 500

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	sessions := flag.Int("sessions", 100, "number of sessions to generate")
	days := flag.Int("days", 30, "spread sessions over this many past days")
	domainList := flag.String("domains", "test-site.com", "comma-separated domains")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	if *sessions <= 0 || *days <= 0 {
		log.Fatal("sessions and days must be positive")
	}
	var domains []string
	for _, d := range strings.Split(*domainList, ",") {
		if d = strings.TrimSpace(d); d != "" {
			domains = append(domains, d)
		}
	}
	if len(domains) == 0 {
		log.Fatal("at least one domain is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger, err := utils.NewLogger(cfg.IsDevelopment())
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	s, err := store.Open(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open store", zap.Error(err))
	}
	defer s.Close()

	events := generate(rand.New(rand.NewSource(*seed)), time.Now(), *sessions, *days, domains)

	ctx := context.Background()
	for start := 0; start < len(events); start += batchSize {
		end := min(start+batchSize, len(events))
		batchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := s.InsertMany(batchCtx, events[start:end])
		cancel()
		if err != nil {
			logger.Fatal("Failed to insert events", zap.Int("offset", start), zap.Error(err))
		}
	}

	logger.Info("Seeded tracking data",
		zap.String("store", cfg.Store.Driver),
		zap.Int("sessions", *sessions),
		zap.Int("events", len(events)),
		zap.Strings("domains", domains),
	)
}

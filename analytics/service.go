package analytics

import (
	"context"
	"strings"

	"sitepulse/api/apperr"
	"sitepulse/api/models"
	"sitepulse/api/store"

	"go.uber.org/zap"
)

// maxContextDomains bounds how many snapshots are computed for one chat prompt.
const maxContextDomains = 20

type Service struct {
	store store.EventStore
	log   *zap.Logger
}

func NewService(s store.EventStore, log *zap.Logger) *Service {
	return &Service{store: s, log: log.With(zap.String("component", "analytics"))}
}

// DomainAnalytics reads every event of domain matching f and aggregates it.
// A domain without any event is not found; a known domain whose events are all
// filtered out yields an empty snapshot.
func (s *Service) DomainAnalytics(ctx context.Context, domain string, f models.EventFilter) (*models.DomainAnalytics, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, apperr.Validation("domain analytics", "domain is required")
	}
	if f.From != nil && f.To != nil && f.From.After(*f.To) {
		return nil, apperr.Validation("domain analytics", "from must not be after to")
	}

	events, err := s.store.FindByDomain(ctx, domain, f)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		if f.IsZero() {
			return nil, apperr.NotFound("domain analytics", "no data found for domain %s", domain)
		}
		known, err := s.store.HasDomain(ctx, domain)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, apperr.NotFound("domain analytics", "no data found for domain %s", domain)
		}
	}

	snapshot := Compute(domain, events)
	s.log.Debug("computed domain analytics",
		zap.String("domain", domain),
		zap.Int("events", len(events)),
	)
	return snapshot, nil
}

// Domains lists every domain with at least one event.
func (s *Service) Domains(ctx context.Context) ([]string, error) {
	return s.store.Domains(ctx)
}

// Snapshots returns the snapshot of domain, or of every known domain when
// domain is blank. Unknown domains are skipped.
func (s *Service) Snapshots(ctx context.Context, domain string) ([]*models.DomainAnalytics, error) {
	domains := []string{strings.TrimSpace(domain)}
	if domains[0] == "" {
		all, err := s.store.Domains(ctx)
		if err != nil {
			return nil, err
		}
		if len(all) > maxContextDomains {
			s.log.Info("truncating chat context domains", zap.Int("domains", len(all)))
			all = all[:maxContextDomains]
		}
		domains = all
	}

	out := make([]*models.DomainAnalytics, 0, len(domains))
	for _, d := range domains {
		snap, err := s.DomainAnalytics(ctx, d, models.EventFilter{})
		if apperr.Is(err, apperr.KindNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

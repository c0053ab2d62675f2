package store

import (
	"context"
	"sort"
	"sync"

	"sitepulse/api/models"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process. It backs development runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	events []models.TrackingEvent
	chats  []models.ChatMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Insert(_ context.Context, e *models.TrackingEvent) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *e
	rec.ID = uuid.NewString()
	s.events = append(s.events, rec)
	return rec.ID, nil
}

func (s *MemoryStore) InsertMany(_ context.Context, events []models.TrackingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range events {
		e.ID = uuid.NewString()
		s.events = append(s.events, e)
	}
	return nil
}

func (s *MemoryStore) FindByDomain(_ context.Context, domain string, f models.EventFilter) ([]models.TrackingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.TrackingEvent
	for i := range s.events {
		e := &s.events[i]
		if e.Domain == domain && f.Matches(e) {
			out = append(out, *e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *MemoryStore) HasDomain(_ context.Context, domain string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.events {
		if s.events[i].Domain == domain {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Domains(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	domains := []string{}
	for _, e := range s.events {
		if e.Domain == "" {
			continue
		}
		if _, ok := seen[e.Domain]; ok {
			continue
		}
		seen[e.Domain] = struct{}{}
		domains = append(domains, e.Domain)
	}
	sort.Strings(domains)
	return domains, nil
}

func (s *MemoryStore) SaveChat(_ context.Context, m *models.ChatMessage) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := *m
	rec.ID = uuid.NewString()
	s.chats = append(s.chats, rec)
	return rec.ID, nil
}

func (s *MemoryStore) RecentChats(_ context.Context, limit int) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ChatMessage, 0, len(s.chats))
	for i := len(s.chats) - 1; i >= 0; i-- {
		out = append(out, s.chats[i])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if n := clampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

// Len reports the number of stored events.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

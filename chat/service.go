// Package chat answers natural-language questions about tracked domains by
// forwarding them to an LLM together with the current analytics snapshots.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sitepulse/api/apperr"
	"sitepulse/api/models"
	"sitepulse/api/store"

	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit = 50
	completionTimeout   = 60 * time.Second
	historyTimeout      = 5 * time.Second
)

var errDisabled = errors.New("LLM provider is not configured")

// SnapshotSource supplies analytics context for a prompt.
type SnapshotSource interface {
	Snapshots(ctx context.Context, domain string) ([]*models.DomainAnalytics, error)
}

type Service struct {
	provider  Provider
	snapshots SnapshotSource
	history   store.ChatStore
	log       *zap.Logger
	now       func() time.Time
}

func NewService(p Provider, snapshots SnapshotSource, history store.ChatStore, log *zap.Logger) *Service {
	return &Service{
		provider:  p,
		snapshots: snapshots,
		history:   history,
		log:       log.With(zap.String("component", "chat")),
		now:       time.Now,
	}
}

// Enabled reports whether a provider is configured.
func (s *Service) Enabled() bool { return s.provider != nil }

// Ask answers req.Query with the analytics of req.Domain, or of every domain
// when none is given. Every answered or failed exchange is kept as history.
func (s *Service) Ask(ctx context.Context, req models.ChatRequest) (string, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return "", apperr.Validation("chat", "query is required")
	}
	if s.provider == nil {
		return "", apperr.E(apperr.KindDisabled, "chat", errDisabled)
	}

	domain := strings.TrimSpace(req.Domain)
	snaps, err := s.snapshots.Snapshots(ctx, domain)
	if err != nil {
		return "", err
	}
	systemPrompt, err := BuildSystemPrompt(domain, snaps)
	if err != nil {
		return "", apperr.E(apperr.KindInternal, "chat", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()
	answer, err := s.provider.Complete(callCtx, systemPrompt, query)

	msg := &models.ChatMessage{
		Domain:    domain,
		Query:     query,
		Response:  answer,
		Status:    err == nil,
		Timestamp: s.now().UTC(),
	}
	if err != nil {
		msg.Error = err.Error()
	}
	s.record(ctx, msg)

	if err != nil {
		s.log.Warn("llm request failed", zap.String("domain", domain), zap.Error(err))
		return "", apperr.E(apperr.KindUpstream, "chat", err)
	}
	return answer, nil
}

// record persists an exchange. A history failure never fails the answer.
func (s *Service) record(ctx context.Context, msg *models.ChatMessage) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyTimeout)
	defer cancel()
	if _, err := s.history.SaveChat(ctx, msg); err != nil {
		s.log.Warn("failed to save chat history", zap.Error(err))
	}
}

// History returns recent exchanges, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > store.MaxChatHistory {
		limit = store.MaxChatHistory
	}
	msgs, err := s.history.RecentChats(ctx, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	return msgs, nil
}

// BuildSystemPrompt embeds the snapshots as JSON.
func BuildSystemPrompt(domain string, snaps []*models.DomainAnalytics) (string, error) {
	data, err := json.MarshalIndent(snaps, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode analytics context: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are an analytics assistant for a website tracking dashboard. ")
	b.WriteString("Answer the user's question using only the analytics data below. ")
	b.WriteString("If the data does not contain the answer, say so. Keep answers short and quote concrete numbers.\n\n")
	if domain != "" {
		fmt.Fprintf(&b, "The question is about the domain %s.\n", domain)
	}
	if len(snaps) == 0 {
		b.WriteString("No analytics data has been recorded yet.\n")
	}
	b.WriteString("Analytics data (JSON):\n")
	b.Write(data)
	return b.String(), nil
}

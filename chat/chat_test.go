package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sitepulse/api/analytics"
	"sitepulse/api/apperr"
	"sitepulse/api/config"
	"sitepulse/api/models"
	"sitepulse/api/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubProvider struct {
	answer string
	err    error
	system string
	prompt string
}

func (p *stubProvider) Complete(_ context.Context, systemPrompt, prompt string) (string, error) {
	p.system, p.prompt = systemPrompt, prompt
	return p.answer, p.err
}

func newService(t *testing.T, p Provider) (*Service, *store.MemoryStore) {
	t.Helper()
	s := store.NewMemoryStore()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.InsertMany(context.Background(), []models.TrackingEvent{
		{Domain: "shop.example", PagePath: "/cart", SessionID: "s1", IPAddress: "1.1.1.1", Timestamp: now, SessionStart: now},
	}))
	svc := NewService(p, analytics.NewService(s, zap.NewNop()), s, zap.NewNop())
	svc.now = func() time.Time { return now }
	return svc, s
}

func TestAskInjectsSnapshotsAndRecords(t *testing.T) {
	p := &stubProvider{answer: "You had 1 page view."}
	svc, s := newService(t, p)

	answer, err := svc.Ask(context.Background(), models.ChatRequest{Query: " how many views? "})
	require.NoError(t, err)
	assert.Equal(t, "You had 1 page view.", answer)
	assert.Equal(t, "how many views?", p.prompt)
	assert.Contains(t, p.system, `"domain": "shop.example"`)
	assert.Contains(t, p.system, `"/cart": 1`)

	history, err := s.RecentChats(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Status)
	assert.Equal(t, "how many views?", history[0].Query)
}

func TestAskUpstreamFailureIsRecorded(t *testing.T) {
	p := &stubProvider{err: errors.New("rate limited")}
	svc, s := newService(t, p)

	_, err := svc.Ask(context.Background(), models.ChatRequest{Query: "hi", Domain: "shop.example"})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))

	history, err := s.RecentChats(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.False(t, history[0].Status)
	assert.Equal(t, "rate limited", history[0].Error)
	assert.Equal(t, "shop.example", history[0].Domain)
}

func TestAskValidationAndDisabled(t *testing.T) {
	svc, _ := newService(t, &stubProvider{})
	_, err := svc.Ask(context.Background(), models.ChatRequest{Query: "   "})
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	disabled, s := newService(t, nil)
	assert.False(t, disabled.Enabled())
	_, err = disabled.Ask(context.Background(), models.ChatRequest{Query: "hi"})
	assert.True(t, apperr.Is(err, apperr.KindDisabled))
	history, err := s.RecentChats(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestHistoryDefaults(t *testing.T) {
	svc, _ := newService(t, &stubProvider{})
	msgs, err := svc.History(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)
}

func TestBuildSystemPromptWithoutData(t *testing.T) {
	prompt, err := BuildSystemPrompt("", nil)
	require.NoError(t, err)
	assert.Contains(t, prompt, "No analytics data has been recorded yet.")
	assert.Contains(t, prompt, "null")
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(config.LLMConfig{})
	require.NoError(t, err)
	assert.Nil(t, p)

	for _, name := range []string{config.ProviderAnthropic, config.ProviderOpenAI, config.ProviderGemini} {
		p, err := NewProvider(config.LLMConfig{Provider: name, APIKey: "k"})
		require.NoError(t, err, name)
		assert.NotNil(t, p, name)
	}

	_, err = NewProvider(config.LLMConfig{Provider: "cohere", APIKey: "k"})
	assert.Error(t, err)
}

func TestUsesChatCompletions(t *testing.T) {
	assert.True(t, usesChatCompletions(config.LLMConfig{Provider: config.ProviderGemini}))
	assert.True(t, usesChatCompletions(config.LLMConfig{Provider: config.ProviderOpenAI, BaseURL: "http://llm.local/v1"}))
	assert.False(t, usesChatCompletions(config.LLMConfig{Provider: config.ProviderOpenAI}))
	assert.False(t, usesChatCompletions(config.LLMConfig{Provider: config.ProviderAnthropic, BaseURL: "http://llm.local"}))
}

func TestGeminiProviderCallsChatCompletions(t *testing.T) {
	var (
		paths []string
		body  struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gemini-2.0-flash-001",` +
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"Mostly mobile."}}]}`))
	}))
	defer srv.Close()

	p, err := NewProvider(config.LLMConfig{
		Provider: config.ProviderGemini,
		APIKey:   "k",
		BaseURL:  srv.URL + "/v1beta/openai",
	})
	require.NoError(t, err)

	answer, err := p.Complete(context.Background(), "You are an analyst.", "Which devices?")
	require.NoError(t, err)
	assert.Equal(t, "Mostly mobile.", answer)
	assert.Equal(t, []string{"/v1beta/openai/chat/completions"}, paths)
	assert.Equal(t, defaultGeminiModel, body.Model)
	assert.Equal(t, maxOutputTokens, body.MaxTokens)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "system", body.Messages[0].Role)
	assert.Equal(t, "Which devices?", body.Messages[1].Content)
}

func TestChatCompletionsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer srv.Close()

	p, err := NewProvider(config.LLMConfig{Provider: config.ProviderOpenAI, APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = p.Complete(context.Background(), "", "hi")
	assert.Error(t, err)
}

func TestNormalizeBaseURL(t *testing.T) {
	assert.Equal(t, "", normalizeBaseURL("  "))
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1beta/openai/", normalizeBaseURL(defaultGeminiBaseURL+"/"))
	assert.Equal(t, "localhost:8080", normalizeBaseURL("localhost:8080/"))
}

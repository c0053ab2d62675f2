package chat

import (
	"context"
	"errors"
	"fmt"
	neturl "net/url"
	"strings"

	"sitepulse/api/config"

	anthropicclient "github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	openaiclient "github.com/openai/openai-go/v2"
	openaioption "github.com/openai/openai-go/v2/option"
	jetai "go.jetify.com/ai"
	jetapi "go.jetify.com/ai/api"
	jetanthropic "go.jetify.com/ai/provider/anthropic"
	jetopenai "go.jetify.com/ai/provider/openai"
)

const (
	defaultAnthropicModel = "claude-haiku-4-5-20251001"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultGeminiModel    = "gemini-2.0-flash-001"
	defaultGeminiBaseURL  = "https://generativelanguage.googleapis.com/v1beta/openai"

	maxOutputTokens = 1024
)

// Provider answers a prompt under a system prompt.
type Provider interface {
	Complete(ctx context.Context, systemPrompt, prompt string) (string, error)
}

type languageModelProvider struct {
	model jetapi.LanguageModel
}

// chatCompletionsProvider talks to OpenAI-compatible servers that only serve
// /chat/completions, such as Gemini's compatibility endpoint.
type chatCompletionsProvider struct {
	client openaiclient.Client
	model  string
}

// NewProvider builds the configured LLM provider. It returns nil without error
// when no API key is configured.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, nil
	}
	if usesChatCompletions(cfg) {
		return newChatCompletionsProvider(cfg, apiKey), nil
	}
	model, err := buildLanguageModel(cfg, apiKey)
	if err != nil {
		return nil, err
	}
	return &languageModelProvider{model: model}, nil
}

// usesChatCompletions reports whether cfg targets an OpenAI-compatible server
// rather than api.openai.com itself.
func usesChatCompletions(cfg config.LLMConfig) bool {
	switch cfg.Provider {
	case config.ProviderGemini:
		return true
	case config.ProviderOpenAI, "":
		return strings.TrimSpace(cfg.BaseURL) != ""
	}
	return false
}

func newChatCompletionsProvider(cfg config.LLMConfig, apiKey string) *chatCompletionsProvider {
	modelID := strings.TrimSpace(cfg.Model)
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if cfg.Provider == config.ProviderGemini {
		if modelID == "" {
			modelID = defaultGeminiModel
		}
		if baseURL == "" {
			baseURL = defaultGeminiBaseURL
		}
	}
	if modelID == "" {
		modelID = defaultOpenAIModel
	}
	opts := []openaioption.RequestOption{
		openaioption.WithAPIKey(apiKey),
		openaioption.WithMaxRetries(1),
	}
	if normalized := normalizeBaseURL(baseURL); normalized != "" {
		opts = append(opts, openaioption.WithBaseURL(normalized))
	}
	return &chatCompletionsProvider{client: openaiclient.NewClient(opts...), model: modelID}
}

func (p *chatCompletionsProvider) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	messages := make([]openaiclient.ChatCompletionMessageParamUnion, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, openaiclient.SystemMessage(systemPrompt))
	}
	messages = append(messages, openaiclient.UserMessage(prompt))

	resp, err := p.client.Chat.Completions.New(ctx, openaiclient.ChatCompletionNewParams{
		Model:     p.model,
		Messages:  messages,
		MaxTokens: openaiclient.Int(maxOutputTokens),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New("empty response from LLM")
	}
	return resp.Choices[0].Message.Content, nil
}

func buildLanguageModel(cfg config.LLMConfig, apiKey string) (jetapi.LanguageModel, error) {
	modelID := strings.TrimSpace(cfg.Model)
	baseURL := strings.TrimSpace(cfg.BaseURL)

	switch cfg.Provider {
	case config.ProviderAnthropic:
		if modelID == "" {
			modelID = defaultAnthropicModel
		}
		opts := []anthropicoption.RequestOption{
			anthropicoption.WithAPIKey(apiKey),
			anthropicoption.WithMaxRetries(1),
		}
		if baseURL != "" {
			opts = append(opts, anthropicoption.WithBaseURL(strings.TrimRight(baseURL, "/")))
		}
		client := anthropicclient.NewClient(opts...)
		return jetanthropic.NewLanguageModel(modelID, jetanthropic.WithClient(client)), nil

	case config.ProviderOpenAI, "":
		if modelID == "" {
			modelID = defaultOpenAIModel
		}
		opts := []openaioption.RequestOption{
			openaioption.WithAPIKey(apiKey),
			openaioption.WithMaxRetries(1),
		}
		if normalized := normalizeBaseURL(baseURL); normalized != "" {
			opts = append(opts, openaioption.WithBaseURL(normalized))
		}
		client := openaiclient.NewClient(opts...)
		return jetopenai.NewLanguageModel(modelID, jetopenai.WithClient(client)), nil

	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
}

// normalizeBaseURL trims whitespace and trailing slashes and requires an
// absolute URL. The OpenAI client joins request paths onto it with a slash.
func normalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return ""
	}
	parsed, err := neturl.Parse(base)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return base
	}
	return base + "/"
}

func (p *languageModelProvider) Complete(ctx context.Context, systemPrompt, prompt string) (string, error) {
	resp, err := jetai.GenerateText(
		ctx,
		buildPromptMessages(systemPrompt, prompt),
		jetai.WithModel(p.model),
		jetai.WithMaxOutputTokens(maxOutputTokens),
	)
	if err != nil {
		return "", err
	}
	return extractText(resp)
}

func buildPromptMessages(systemPrompt, prompt string) []jetapi.Message {
	messages := make([]jetapi.Message, 0, 2)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, &jetapi.SystemMessage{Content: systemPrompt})
	}
	messages = append(messages, &jetapi.UserMessage{Content: jetapi.ContentFromText(prompt)})
	return messages
}

func extractText(resp *jetapi.Response) (string, error) {
	if resp == nil {
		return "", errors.New("empty response from LLM")
	}
	var full strings.Builder
	for _, block := range resp.Content {
		textBlock, ok := block.(*jetapi.TextBlock)
		if !ok || textBlock.Text == "" {
			continue
		}
		full.WriteString(textBlock.Text)
	}
	text := full.String()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("empty response from LLM")
	}
	return text, nil
}

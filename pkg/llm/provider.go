package llm

import (
	"fmt"
	"net/http"
	"time"

	"github.com/killallgit/foliochat/pkg/config"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// ModelConstructor builds the langchaingo model for one provider.
type ModelConstructor func(cfg *config.Config) (llms.Model, error)

var constructors = map[string]ModelConstructor{
	"ollama": newOllamaModel,
	"openai": newOpenAIModel,
}

// NewFromConfig builds the completion client for the configured provider.
// Extra options are applied after the ones derived from cfg.
func NewFromConfig(cfg *config.Config, extra ...ClientOption) (*LangChainClient, error) {
	provider := cfg.GetActiveProvider()
	construct, ok := constructors[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	model, err := construct(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s model: %w", provider, err)
	}

	systemPrompt, err := RenderSystemPrompt(cfg.Chat.SystemPrompt, PromptVars(cfg.Notifications.PageTitle, time.Now()))
	if err != nil {
		return nil, err
	}

	opts := []ClientOption{
		WithSystemPrompt(systemPrompt),
		WithModelName(cfg.GetActiveProviderModel()),
	}
	if cfg.Chat.HideThinking {
		opts = append(opts, WithThinkingHidden())
	}
	return NewLangChainClient(model, append(opts, extra...)...), nil
}

func newOllamaModel(cfg *config.Config) (llms.Model, error) {
	return ollama.New(
		ollama.WithServerURL(cfg.Ollama.URL),
		ollama.WithModel(cfg.Ollama.Model),
		ollama.WithHTTPClient(&http.Client{Timeout: cfg.GetActiveProviderTimeout()}),
	)
}

func newOpenAIModel(cfg *config.Config) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.OpenAI.Model),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.GetActiveProviderTimeout()}),
	}
	if cfg.OpenAI.APIKey != "" {
		opts = append(opts, openai.WithToken(cfg.OpenAI.APIKey))
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	return openai.New(opts...)
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Beykus-Y/mcp-agent/internal/resilience"
	"github.com/Beykus-Y/mcp-agent/pkg/provider/llm"
	"github.com/Beykus-Y/mcp-agent/pkg/provider/llm/anyllm"
	"github.com/Beykus-Y/mcp-agent/pkg/provider/llm/mock"
	"github.com/Beykus-Y/mcp-agent/pkg/provider/llm/openai"
)

// ErrMissingAPIKey is returned when a backend needs an API key and the
// environment does not supply one.
var ErrMissingAPIKey = errors.New("config: OPENAI_API_KEY is not set")

// BuildProvider constructs the LLM backend described by cfg.LLM. With
// fallback models configured, the returned provider is a breaker-guarded
// failover chain; otherwise it is the bare backend.
//
// Model overrides the configured model when non-empty (runtime settings take
// precedence over the file).
func BuildProvider(cfg *Config, model string) (llm.Provider, error) {
	if model == "" {
		model = cfg.LLM.Model
	}

	primary, err := buildBackend(cfg, model)
	if err != nil {
		return nil, err
	}
	if len(cfg.LLM.FallbackModels) == 0 {
		return primary, nil
	}

	chain := resilience.NewLLMChain(primary, model, resilience.BreakerConfig{})
	for _, fb := range cfg.LLM.FallbackModels {
		backend, err := buildBackend(cfg, fb)
		if err != nil {
			return nil, fmt.Errorf("config: fallback model %q: %w", fb, err)
		}
		chain.AddFallback(fb, backend)
	}
	return chain, nil
}

// buildBackend constructs one backend for the given model id.
func buildBackend(cfg *Config, model string) (llm.Provider, error) {
	switch cfg.LLM.Provider {
	case ProviderOpenAI:
		key := os.Getenv("OPENAI_API_KEY")
		if key == "" {
			return nil, ErrMissingAPIKey
		}
		opts := []openai.Option{
			openai.WithTimeout(time.Duration(cfg.LLM.TimeoutSeconds) * time.Second),
		}
		if cfg.LLM.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.LLM.BaseURL))
		}
		return openai.New(key, model, opts...)

	case ProviderAnyLLM:
		providerName, bare := anyllm.ParseModel(model)
		return anyllm.New(providerName, bare)

	case ProviderMock:
		return &mock.Provider{}, nil

	default:
		return nil, fmt.Errorf("config: unknown llm provider %q", cfg.LLM.Provider)
	}
}

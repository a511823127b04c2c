package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Beykus-Y/mcp-agent/pkg/provider/llm"
	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// ErrAllBackendsFailed is returned by [LLMChain.Complete] when every backend
// fails or has an open breaker.
var ErrAllBackendsFailed = errors.New("resilience: all llm backends failed")

// llmEntry pairs a backend with its dedicated breaker.
type llmEntry struct {
	name     string
	provider llm.Provider
	breaker  *Breaker
}

// LLMChain implements [llm.Provider] with failover across model backends.
// Each backend has its own [Breaker]; when the primary fails or its breaker
// is open, the next healthy backend is tried in registration order.
type LLMChain struct {
	entries []llmEntry
	cfg     BreakerConfig
	log     *slog.Logger
}

var _ llm.Provider = (*LLMChain)(nil)

// NewLLMChain creates a chain with primary as the preferred backend. The
// breaker config is applied per backend, with Name overridden per entry.
func NewLLMChain(primary llm.Provider, primaryName string, cfg BreakerConfig) *LLMChain {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	c := &LLMChain{cfg: cfg, log: cfg.Logger}
	c.add(primaryName, primary)
	return c
}

// AddFallback appends a backend tried after all earlier entries.
func (c *LLMChain) AddFallback(name string, provider llm.Provider) {
	c.add(name, provider)
}

func (c *LLMChain) add(name string, provider llm.Provider) {
	cfg := c.cfg
	cfg.Name = name
	c.entries = append(c.entries, llmEntry{
		name:     name,
		provider: provider,
		breaker:  NewBreaker(cfg),
	})
}

// Complete sends the request to the first healthy backend. Backends with open
// breakers are skipped; if every backend fails the last error is wrapped in
// [ErrAllBackendsFailed].
func (c *LLMChain) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	var lastErr error
	for i := range c.entries {
		entry := &c.entries[i]

		var resp *llm.CompletionResponse
		err := entry.breaker.Execute(func() error {
			var callErr error
			resp, callErr = entry.provider.Complete(ctx, req)
			return callErr
		})
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, ErrBreakerOpen) {
			c.log.Debug("skipping llm backend", "backend", entry.name, "reason", "breaker open")
		} else {
			c.log.Warn("llm backend failed, trying next", "backend", entry.name, "err", err)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrAllBackendsFailed, lastErr)
}

// Capabilities reports the primary backend's capabilities. Capabilities are
// static metadata and do not participate in failover.
func (c *LLMChain) Capabilities() types.ModelCapabilities {
	if len(c.entries) > 0 {
		return c.entries[0].provider.Capabilities()
	}
	return types.ModelCapabilities{}
}

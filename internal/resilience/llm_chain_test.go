package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Beykus-Y/mcp-agent/internal/resilience"
	"github.com/Beykus-Y/mcp-agent/pkg/provider/llm"
	"github.com/Beykus-Y/mcp-agent/pkg/provider/llm/mock"
	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

func TestLLMChain_PrimaryServes(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{Script: []*llm.CompletionResponse{{Content: "primary"}}}
	fallback := &mock.Provider{Script: []*llm.CompletionResponse{{Content: "fallback"}}}

	chain := resilience.NewLLMChain(primary, "primary", resilience.BreakerConfig{})
	chain.AddFallback("fallback", fallback)

	resp, err := chain.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got, want := resp.Content, "primary"; got != want {
		t.Errorf("Content = %q, want %q", got, want)
	}
	if len(fallback.CompleteCalls) != 0 {
		t.Errorf("fallback called %d times, want 0", len(fallback.CompleteCalls))
	}
}

func TestLLMChain_FailsOverToFallback(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{Err: errors.New("backend down")}
	fallback := &mock.Provider{Script: []*llm.CompletionResponse{{Content: "fallback"}}}

	chain := resilience.NewLLMChain(primary, "primary", resilience.BreakerConfig{})
	chain.AddFallback("fallback", fallback)

	resp, err := chain.Complete(context.Background(), llm.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if got, want := resp.Content, "fallback"; got != want {
		t.Errorf("Content = %q, want %q", got, want)
	}
	if len(primary.CompleteCalls) != 1 {
		t.Errorf("primary called %d times, want 1", len(primary.CompleteCalls))
	}
}

func TestLLMChain_AllBackendsFail(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{Err: errors.New("down")}
	fallback := &mock.Provider{Err: errors.New("also down")}

	chain := resilience.NewLLMChain(primary, "primary", resilience.BreakerConfig{})
	chain.AddFallback("fallback", fallback)

	_, err := chain.Complete(context.Background(), llm.CompletionRequest{})
	if !errors.Is(err, resilience.ErrAllBackendsFailed) {
		t.Fatalf("Complete = %v, want %v", err, resilience.ErrAllBackendsFailed)
	}
}

func TestLLMChain_SkipsOpenBreaker(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{Err: errors.New("down")}
	fallback := &mock.Provider{Script: []*llm.CompletionResponse{
		{Content: "one"},
		{Content: "two"},
	}}

	chain := resilience.NewLLMChain(primary, "primary", resilience.BreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Hour,
	})
	chain.AddFallback("fallback", fallback)

	for _, want := range []string{"one", "two"} {
		resp, err := chain.Complete(context.Background(), llm.CompletionRequest{})
		if err != nil {
			t.Fatalf("Complete: %v", err)
		}
		if resp.Content != want {
			t.Errorf("Content = %q, want %q", resp.Content, want)
		}
	}

	// The first failure opened the primary's breaker; the second round must
	// not have touched it.
	if len(primary.CompleteCalls) != 1 {
		t.Errorf("primary called %d times, want 1", len(primary.CompleteCalls))
	}
}

func TestLLMChain_CapabilitiesFromPrimary(t *testing.T) {
	t.Parallel()

	primary := &mock.Provider{Caps: types.ModelCapabilities{SupportsToolCalling: true, ContextWindow: 128000}}
	chain := resilience.NewLLMChain(primary, "primary", resilience.BreakerConfig{})
	chain.AddFallback("fallback", &mock.Provider{})

	caps := chain.Capabilities()
	if !caps.SupportsToolCalling {
		t.Error("SupportsToolCalling = false, want true")
	}
	if got, want := caps.ContextWindow, 128000; got != want {
		t.Errorf("ContextWindow = %d, want %d", got, want)
	}
}

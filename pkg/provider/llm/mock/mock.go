// Package mock provides a test double for the llm.Provider interface.
//
// Use Provider in unit tests to verify that the agent runtime sends correct
// CompletionRequests and to feed controlled responses without a live LLM
// backend. Script holds the responses consumed in call order; once it is
// exhausted, Complete returns an empty response (no content, no tool calls),
// which keeps a tool-calling loop spinning until its turn budget runs out —
// convenient for budget-exhaustion tests.
//
// Example:
//
//	p := &mock.Provider{
//	    Script: []*llm.CompletionResponse{{Content: "Hello!"}},
//	}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/Beykus-Y/mcp-agent/pkg/provider/llm"
	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// CompleteCall records a single invocation of Complete.
type CompleteCall struct {
	// Ctx is the context passed to Complete.
	Ctx context.Context
	// Req is the CompletionRequest passed to Complete.
	Req llm.CompletionRequest
}

// Provider is a mock implementation of llm.Provider.
// All fields are safe to set before calling any method; mutating them during
// a concurrent call is the caller's responsibility.
type Provider struct {
	mu sync.Mutex

	// Script is the ordered sequence of responses returned by Complete.
	// When exhausted, Complete returns an empty CompletionResponse.
	Script []*llm.CompletionResponse

	// Err, if non-nil, is returned by every Complete call instead of a
	// scripted response.
	Err error

	// Caps is returned by Capabilities.
	Caps types.ModelCapabilities

	// CompleteCalls records every invocation of Complete in order.
	CompleteCalls []CompleteCall

	next int
}

// Compile-time interface check.
var _ llm.Provider = (*Provider)(nil)

// Complete records the call and returns the next scripted response.
func (p *Provider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.CompleteCalls = append(p.CompleteCalls, CompleteCall{Ctx: ctx, Req: req})
	if p.Err != nil {
		return nil, p.Err
	}
	if p.next < len(p.Script) {
		resp := p.Script[p.next]
		p.next++
		return resp, nil
	}
	return &llm.CompletionResponse{}, nil
}

// Capabilities returns Caps.
func (p *Provider) Capabilities() types.ModelCapabilities {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Caps
}

// Reset clears recorded calls and rewinds the script.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CompleteCalls = nil
	p.next = 0
}

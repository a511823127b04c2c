// Package client implements the consumer side of the MCP fabric: a [Handle]
// per MCP service for function discovery and JSON-RPC calls, and the
// [WaitReady] startup gate that blocks until every launched MCP answers.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Beykus-Y/mcp-agent/internal/mcp"
	"github.com/Beykus-Y/mcp-agent/internal/resilience"
	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// maxResponseBytes caps how much of an MCP response body is read.
const maxResponseBytes = 16 << 20

// CallError is the structured failure of one JSON-RPC call. Code carries the
// JSON-RPC error code when the server produced an error body; HTTPStatus
// carries the transport status when it did not.
type CallError struct {
	MCP        string
	Method     string
	Code       int
	Message    string
	HTTPStatus int
}

func (e *CallError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("mcp %s: %s: code %d: %s", e.MCP, e.Method, e.Code, e.Message)
	}
	return fmt.Sprintf("mcp %s: %s: http status %d: %s", e.MCP, e.Method, e.HTTPStatus, e.Message)
}

// Handle is a client for one MCP service. It is safe for concurrent use;
// request ids are unique per handle and increase monotonically from 1.
type Handle struct {
	name    string
	baseURL string
	http    *http.Client
	log     *slog.Logger
	breaker *resilience.Breaker
	nextID  atomic.Int64
}

// Option configures a Handle.
type Option func(*Handle)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(h *Handle) { h.http = c }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(h *Handle) { h.http.Timeout = d }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Handle) { h.log = l }
}

// WithBreaker wraps transport dispatch in a circuit breaker. JSON-RPC error
// bodies from a responsive server do not count as breaker failures; network
// errors and 5xx responses do.
func WithBreaker(b *resilience.Breaker) Option {
	return func(h *Handle) { h.breaker = b }
}

// New creates a Handle for the MCP at baseURL. name is the registry key the
// MCP was launched under and appears in every error and log line.
func New(name, baseURL string, opts ...Option) (*Handle, error) {
	if name == "" {
		return nil, errors.New("mcpclient: name must not be empty")
	}
	if baseURL == "" {
		return nil, errors.New("mcpclient: baseURL must not be empty")
	}
	h := &Handle{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(h)
	}
	return h, nil
}

// Name returns the MCP's registry key.
func (h *Handle) Name() string { return h.name }

// BaseURL returns the MCP's base URL.
func (h *Handle) BaseURL() string { return h.baseURL }

// Functions fetches the MCP's advertised function schemas.
func (h *Handle) Functions(ctx context.Context) ([]types.ToolDefinition, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/functions", nil)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: %s: build request: %w", h.name, err)
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mcpclient: %s: fetch functions: %w", h.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("mcpclient: %s: fetch functions: http status %d", h.name, resp.StatusCode)
	}
	var schemas []types.ToolDefinition
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&schemas); err != nil {
		return nil, fmt.Errorf("mcpclient: %s: decode functions: %w", h.name, err)
	}
	return schemas, nil
}

// Call invokes method with params (any JSON-encodable value; nil means an
// empty object) and returns the raw JSON-RPC result. JSON-RPC failures are
// returned as a [*CallError].
func (h *Handle) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	rawParams := json.RawMessage("{}")
	if params != nil {
		encoded, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("mcpclient: %s: %s: encode params: %w", h.name, method, err)
		}
		rawParams = encoded
	}

	id := h.nextID.Add(1)
	reqBody, err := json.Marshal(mcp.Request{
		JSONRPC: mcp.Version,
		ID:      json.RawMessage(strconv.FormatInt(id, 10)),
		Method:  method,
		Params:  rawParams,
	})
	if err != nil {
		return nil, fmt.Errorf("mcpclient: %s: %s: encode request: %w", h.name, method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/mcp", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("mcpclient: %s: %s: build request: %w", h.name, method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	var (
		status int
		body   []byte
	)
	do := func() error {
		httpResp, doErr := h.http.Do(httpReq)
		if doErr != nil {
			return doErr
		}
		defer httpResp.Body.Close()

		status = httpResp.StatusCode
		body, doErr = io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
		if doErr != nil {
			return doErr
		}
		// 5xx marks the server unhealthy for breaker accounting; JSON-RPC
		// error bodies on 4xx are caller faults and count as success.
		if status >= http.StatusInternalServerError {
			return fmt.Errorf("http status %d", status)
		}
		return nil
	}

	var doErr error
	if h.breaker != nil {
		doErr = h.breaker.Execute(do)
		if errors.Is(doErr, resilience.ErrBreakerOpen) {
			return nil, fmt.Errorf("mcpclient: %s: %s: %w", h.name, method, doErr)
		}
	} else {
		doErr = do()
	}

	// Prefer the JSON-RPC body over the transport outcome: even 5xx replies
	// carry a well-formed error envelope from the skeleton.
	var rpcResp mcp.Response
	if len(body) > 0 && json.Unmarshal(body, &rpcResp) == nil && rpcResp.JSONRPC == mcp.Version {
		if rpcResp.Err != nil {
			return nil, &CallError{
				MCP:        h.name,
				Method:     method,
				Code:       rpcResp.Err.Code,
				Message:    rpcResp.Err.Message,
				HTTPStatus: status,
			}
		}
		if doErr == nil && status < http.StatusBadRequest {
			return rpcResp.Result, nil
		}
	}

	if doErr != nil {
		return nil, fmt.Errorf("mcpclient: %s: %s: %w", h.name, method, doErr)
	}
	return nil, &CallError{
		MCP:        h.name,
		Method:     method,
		Message:    trimForError(body),
		HTTPStatus: status,
	}
}

// trimForError shortens a response body for inclusion in an error message.
func trimForError(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	if s == "" {
		return "empty response body"
	}
	return s
}

// Discovery pairs an MCP's registry key with its advertised functions.
type Discovery struct {
	MCP       string
	Functions []types.ToolDefinition
}

// DiscoverAll fetches function schemas from every handle in order. The first
// failure aborts: a fabric where any active MCP cannot enumerate functions is
// not usable.
func DiscoverAll(ctx context.Context, handles []*Handle) ([]Discovery, error) {
	out := make([]Discovery, 0, len(handles))
	for _, h := range handles {
		fns, err := h.Functions(ctx)
		if err != nil {
			return nil, fmt.Errorf("mcpclient: discover %s: %w", h.Name(), err)
		}
		out = append(out, Discovery{MCP: h.Name(), Functions: fns})
	}
	return out, nil
}

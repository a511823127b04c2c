// Package server implements the reusable MCP service skeleton: the
// GET /functions introspection endpoint and the POST /mcp JSON-RPC 2.0
// dispatch endpoint shared by every MCP in the fabric.
//
// A concrete MCP supplies its [Function] table; the skeleton owns request
// decoding, shape validation, parameter validation against each function's
// declared JSON schema, error-code mapping, and graceful shutdown.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Beykus-Y/mcp-agent/internal/mcp"
	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// Function binds one published function schema to its handler.
type Function struct {
	// Schema is the LLM-facing function schema served on GET /functions.
	Schema types.ToolDefinition

	// Handler executes the function. params is the raw JSON params object
	// (never nil; an absent params member arrives as "{}"). The returned
	// value is JSON-encoded into the JSON-RPC result. Returning a
	// [*mcp.Error] with an application code puts that code on the wire;
	// any other error becomes -32603 internal.
	Handler func(ctx context.Context, params json.RawMessage) (any, error)
}

// Server is one MCP service instance.
type Server struct {
	name    string
	fns     map[string]Function
	order   []string
	schemas map[string]*jsonschema.Schema // compiled params validators
	log     *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New builds a Server for the given function table. Function names must be
// unique; parameter schemas are compiled once here so that malformed schemas
// fail at startup rather than per-request.
func New(name string, fns []Function, opts ...Option) (*Server, error) {
	if name == "" {
		return nil, errors.New("mcpserver: name must not be empty")
	}

	s := &Server{
		name:    name,
		fns:     make(map[string]Function, len(fns)),
		schemas: make(map[string]*jsonschema.Schema, len(fns)),
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	for _, fn := range fns {
		fname := fn.Schema.Name
		if fname == "" {
			return nil, errors.New("mcpserver: function with empty name")
		}
		if fn.Handler == nil {
			return nil, fmt.Errorf("mcpserver: function %q has nil handler", fname)
		}
		if _, dup := s.fns[fname]; dup {
			return nil, fmt.Errorf("mcpserver: duplicate function name %q", fname)
		}
		s.fns[fname] = fn
		s.order = append(s.order, fname)

		if len(fn.Schema.Parameters) > 0 {
			compiled, err := compileParams(fname, fn.Schema.Parameters)
			if err != nil {
				return nil, fmt.Errorf("mcpserver: function %q: %w", fname, err)
			}
			s.schemas[fname] = compiled
		}
	}

	return s, nil
}

// compileParams compiles a function's JSON-Schema-like parameters object.
func compileParams(fname string, params map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("encode parameters schema: %w", err)
	}
	compiled, err := jsonschema.CompileString(fname+".params.json", string(raw))
	if err != nil {
		return nil, fmt.Errorf("compile parameters schema: %w", err)
	}
	return compiled, nil
}

// Name returns the MCP's display name.
func (s *Server) Name() string { return s.name }

// Functions returns the published schemas in registration order.
func (s *Server) Functions() []types.ToolDefinition {
	out := make([]types.ToolDefinition, 0, len(s.order))
	for _, fname := range s.order {
		out = append(out, s.fns[fname].Schema)
	}
	return out
}

// Handler returns the HTTP handler serving /functions, /mcp and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /functions", s.handleFunctions)
	mux.HandleFunc("POST /mcp", s.handleRPC)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return mux
}

// Run serves the MCP on addr until ctx is cancelled, then shuts down
// gracefully with a 5 second drain deadline.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("mcp serving", "mcp", s.name, "addr", addr, "functions", len(s.fns))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("mcpserver: shutdown: %w", err)
		}
		<-errCh // drain ListenAndServe's http.ErrServerClosed
		return nil
	case err := <-errCh:
		return fmt.Errorf("mcpserver: serve: %w", err)
	}
}

// handleFunctions serves the function schema array.
func (s *Server) handleFunctions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Functions())
}

// handleRPC decodes and dispatches one JSON-RPC request.
//
// Status mapping: request-shape and parameter errors ride HTTP 400,
// application errors raised by handlers ride HTTP 400 as well (they are
// caller faults), and unexpected handler failures ride HTTP 500. The
// JSON-RPC error body is present in every failure case.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req mcp.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.reply(w, http.StatusBadRequest, mcp.NewErrorResponse(nil, mcp.CodeInvalidRequest, "request body is not a JSON-RPC object"), "", start)
		return
	}
	if !req.Valid() {
		s.reply(w, http.StatusBadRequest, mcp.NewErrorResponse(req.ID, mcp.CodeInvalidRequest, "jsonrpc must be \"2.0\" with non-null id and method"), req.Method, start)
		return
	}

	fn, ok := s.fns[req.Method]
	if !ok {
		s.reply(w, http.StatusBadRequest, mcp.NewErrorResponse(req.ID, mcp.CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method)), req.Method, start)
		return
	}

	params := req.Params
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}

	if compiled := s.schemas[req.Method]; compiled != nil {
		var decoded any
		if err := json.Unmarshal(params, &decoded); err != nil {
			s.reply(w, http.StatusBadRequest, mcp.NewErrorResponse(req.ID, mcp.CodeInvalidParams, "params is not a JSON value"), req.Method, start)
			return
		}
		if err := compiled.Validate(decoded); err != nil {
			s.reply(w, http.StatusBadRequest, mcp.NewErrorResponse(req.ID, mcp.CodeInvalidParams, fmt.Sprintf("invalid params: %v", err)), req.Method, start)
			return
		}
	}

	result, err := fn.Handler(r.Context(), params)
	if err != nil {
		var rpcErr *mcp.Error
		if errors.As(err, &rpcErr) {
			status := http.StatusBadRequest
			if rpcErr.Code == mcp.CodeInternal {
				status = http.StatusInternalServerError
			}
			s.reply(w, status, mcp.Response{JSONRPC: mcp.Version, ID: req.ID, Err: rpcErr}, req.Method, start)
			return
		}
		s.log.Error("mcp handler failed", "mcp", s.name, "method", req.Method, "err", err)
		s.reply(w, http.StatusInternalServerError, mcp.NewErrorResponse(req.ID, mcp.CodeInternal, "internal error"), req.Method, start)
		return
	}

	s.reply(w, http.StatusOK, mcp.NewResponse(req.ID, result), req.Method, start)
}

// reply writes the response and logs the dispatch outcome.
func (s *Server) reply(w http.ResponseWriter, status int, resp mcp.Response, method string, start time.Time) {
	writeJSON(w, status, resp)

	attrs := []any{
		"mcp", s.name,
		"method", method,
		"status", status,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if resp.Err != nil {
		attrs = append(attrs, "code", resp.Err.Code, "err", resp.Err.Message)
		s.log.Warn("mcp call failed", attrs...)
		return
	}
	s.log.Debug("mcp call", attrs...)
}

// writeJSON encodes v with the JSON content type. Encoding failures are
// ignored: the status line is already written.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

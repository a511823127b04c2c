package server_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Beykus-Y/mcp-agent/internal/mcp"
	"github.com/Beykus-Y/mcp-agent/internal/mcp/server"
	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	fns := []server.Function{
		{
			Schema: types.ToolDefinition{
				Name:        "echo",
				Description: "Returns the given text.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"text": map[string]any{"type": "string"},
					},
					"required": []any{"text"},
				},
			},
			Handler: func(_ context.Context, params json.RawMessage) (any, error) {
				var p struct {
					Text string `json:"text"`
				}
				if err := json.Unmarshal(params, &p); err != nil {
					return nil, err
				}
				return map[string]string{"echo": p.Text}, nil
			},
		},
		{
			Schema: types.ToolDefinition{Name: "boom", Description: "Always fails."},
			Handler: func(_ context.Context, _ json.RawMessage) (any, error) {
				return nil, context.DeadlineExceeded
			},
		},
		{
			Schema: types.ToolDefinition{Name: "forbidden", Description: "Raises an application error."},
			Handler: func(_ context.Context, _ json.RawMessage) (any, error) {
				return nil, mcp.AppError(mcp.CodeSandboxViolation, "path %q escapes the sandbox", "../etc")
			},
		},
	}

	srv, err := server.New("test-mcp", fns)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postRPC(t *testing.T, ts *httptest.Server, body string) (int, mcp.Response) {
	t.Helper()

	resp, err := http.Post(ts.URL+"/mcp", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /mcp: %v", err)
	}
	defer resp.Body.Close()

	var decoded mcp.Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp.StatusCode, decoded
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	noop := func(_ context.Context, _ json.RawMessage) (any, error) { return nil, nil }

	if _, err := server.New("", nil); err == nil {
		t.Error("New with empty name: want error, got nil")
	}
	if _, err := server.New("x", []server.Function{{Schema: types.ToolDefinition{Name: "a"}}}); err == nil {
		t.Error("New with nil handler: want error, got nil")
	}
	_, err := server.New("x", []server.Function{
		{Schema: types.ToolDefinition{Name: "a"}, Handler: noop},
		{Schema: types.ToolDefinition{Name: "a"}, Handler: noop},
	})
	if err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Errorf("New with duplicate names: want duplicate error, got %v", err)
	}
}

func TestFunctionsEndpoint(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/functions")
	if err != nil {
		t.Fatalf("GET /functions: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var schemas []types.ToolDefinition
	if err := json.NewDecoder(resp.Body).Decode(&schemas); err != nil {
		t.Fatalf("decode schemas: %v", err)
	}
	if len(schemas) != 3 {
		t.Fatalf("len(schemas) = %d, want 3", len(schemas))
	}
	if got, want := schemas[0].Name, "echo"; got != want {
		t.Errorf("schemas[0].Name = %q, want %q", got, want)
	}
}

func TestRPC_Success(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	status, resp := postRPC(t, ts, `{"jsonrpc":"2.0","id":1,"method":"echo","params":{"text":"hi"}}`)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want %d", status, http.StatusOK)
	}
	if resp.Err != nil {
		t.Fatalf("unexpected error: %v", resp.Err)
	}
	if got, want := string(resp.ID), "1"; got != want {
		t.Errorf("id = %s, want %s", got, want)
	}
	var result map[string]string
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if got, want := result["echo"], "hi"; got != want {
		t.Errorf("result.echo = %q, want %q", got, want)
	}
}

func TestRPC_StringIDEchoed(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	_, resp := postRPC(t, ts, `{"jsonrpc":"2.0","id":"req-7","method":"echo","params":{"text":"x"}}`)
	if got, want := string(resp.ID), `"req-7"`; got != want {
		t.Errorf("id = %s, want %s", got, want)
	}
}

func TestRPC_InvalidRequestShape(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	cases := []struct {
		name string
		body string
	}{
		{"not json", `{{{`},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"echo"}`},
		{"missing id", `{"jsonrpc":"2.0","method":"echo"}`},
		{"null id", `{"jsonrpc":"2.0","id":null,"method":"echo"}`},
		{"missing method", `{"jsonrpc":"2.0","id":1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, resp := postRPC(t, ts, tc.body)
			if status != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", status, http.StatusBadRequest)
			}
			if resp.Err == nil || resp.Err.Code != mcp.CodeInvalidRequest {
				t.Errorf("error = %+v, want code %d", resp.Err, mcp.CodeInvalidRequest)
			}
		})
	}
}

func TestRPC_MethodNotFound(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	status, resp := postRPC(t, ts, `{"jsonrpc":"2.0","id":2,"method":"nonexistent","params":{}}`)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", status, http.StatusBadRequest)
	}
	if resp.Err == nil || resp.Err.Code != mcp.CodeMethodNotFound {
		t.Fatalf("error = %+v, want code %d", resp.Err, mcp.CodeMethodNotFound)
	}
	if !strings.Contains(resp.Err.Message, "nonexistent") {
		t.Errorf("message %q does not name the method", resp.Err.Message)
	}
}

func TestRPC_InvalidParams(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	// "text" is required by the echo schema.
	status, resp := postRPC(t, ts, `{"jsonrpc":"2.0","id":3,"method":"echo","params":{}}`)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", status, http.StatusBadRequest)
	}
	if resp.Err == nil || resp.Err.Code != mcp.CodeInvalidParams {
		t.Fatalf("error = %+v, want code %d", resp.Err, mcp.CodeInvalidParams)
	}
	if !strings.Contains(resp.Err.Message, "text") {
		t.Errorf("message %q does not name the missing parameter", resp.Err.Message)
	}
}

func TestRPC_ApplicationError(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	status, resp := postRPC(t, ts, `{"jsonrpc":"2.0","id":4,"method":"forbidden","params":{}}`)
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", status, http.StatusBadRequest)
	}
	if resp.Err == nil || resp.Err.Code != mcp.CodeSandboxViolation {
		t.Fatalf("error = %+v, want code %d", resp.Err, mcp.CodeSandboxViolation)
	}
	if got, want := string(resp.ID), "4"; got != want {
		t.Errorf("id = %s, want %s", got, want)
	}
}

func TestRPC_InternalError(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	status, resp := postRPC(t, ts, `{"jsonrpc":"2.0","id":5,"method":"boom","params":{}}`)
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", status, http.StatusInternalServerError)
	}
	if resp.Err == nil || resp.Err.Code != mcp.CodeInternal {
		t.Fatalf("error = %+v, want code %d", resp.Err, mcp.CodeInternal)
	}
}

func TestRPC_MissingParamsTreatedAsEmptyObject(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	// boom has no schema, so absent params must reach the handler as "{}".
	status, resp := postRPC(t, ts, `{"jsonrpc":"2.0","id":6,"method":"boom"}`)
	if status != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", status, http.StatusInternalServerError)
	}
	if resp.Err == nil {
		t.Fatal("want error response")
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

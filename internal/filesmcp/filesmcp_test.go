package filesmcp_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Beykus-Y/mcp-agent/internal/filesmcp"
	"github.com/Beykus-Y/mcp-agent/internal/mcp"
	"github.com/Beykus-Y/mcp-agent/internal/mcp/server"
)

func newTestService(t *testing.T) (*filesmcp.Service, *httptest.Server) {
	t.Helper()

	svc, err := filesmcp.New(t.TempDir())
	if err != nil {
		t.Fatalf("filesmcp.New: %v", err)
	}
	srv, err := server.New("files", svc.Functions())
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return svc, ts
}

func call(t *testing.T, ts *httptest.Server, method string, params any) (int, mcp.Response) {
	t.Helper()

	raw, err := json.Marshal(params)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	body := fmt.Sprintf(`{"jsonrpc":"2.0","id":1,"method":%q,"params":%s}`, method, raw)

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

func TestWriteReadDelete(t *testing.T) {
	t.Parallel()
	svc, ts := newTestService(t)

	status, resp := call(t, ts, "write_file", map[string]any{
		"path": "notes/hello.txt", "content": "hello sandbox",
	})
	if status != http.StatusOK || resp.Err != nil {
		t.Fatalf("write_file: status %d, err %v", status, resp.Err)
	}
	var written struct {
		Written int `json:"written"`
	}
	if err := json.Unmarshal(resp.Result, &written); err != nil {
		t.Fatalf("decode write result: %v", err)
	}
	if written.Written != len("hello sandbox") {
		t.Errorf("written = %d, want %d", written.Written, len("hello sandbox"))
	}

	status, resp = call(t, ts, "read_file", map[string]any{"path": "notes/hello.txt"})
	if status != http.StatusOK || resp.Err != nil {
		t.Fatalf("read_file: status %d, err %v", status, resp.Err)
	}
	var read struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(resp.Result, &read); err != nil {
		t.Fatalf("decode read result: %v", err)
	}
	if read.Content != "hello sandbox" {
		t.Errorf("content = %q", read.Content)
	}

	status, resp = call(t, ts, "delete_file", map[string]any{"path": "notes/hello.txt"})
	if status != http.StatusOK || resp.Err != nil {
		t.Fatalf("delete_file: status %d, err %v", status, resp.Err)
	}
	if _, err := os.Stat(filepath.Join(svc.Base(), "notes", "hello.txt")); !os.IsNotExist(err) {
		t.Errorf("file still exists after delete: %v", err)
	}
}

func TestListDir(t *testing.T) {
	t.Parallel()
	svc, ts := newTestService(t)

	if err := os.MkdirAll(filepath.Join(svc.Base(), "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(svc.Base(), "a.txt"), []byte("12345"), 0o644); err != nil {
		t.Fatal(err)
	}

	status, resp := call(t, ts, "list_dir", map[string]any{"path": "."})
	if status != http.StatusOK || resp.Err != nil {
		t.Fatalf("list_dir: status %d, err %v", status, resp.Err)
	}

	var entries []filesmcp.DirEntry
	if err := json.Unmarshal(resp.Result, &entries); err != nil {
		t.Fatalf("decode entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	byName := map[string]filesmcp.DirEntry{}
	for _, e := range entries {
		byName[e.Name] = e
	}
	if e := byName["a.txt"]; e.IsDir || e.Size != 5 {
		t.Errorf("a.txt = %+v", e)
	}
	if e := byName["sub"]; !e.IsDir {
		t.Errorf("sub = %+v", e)
	}
}

func TestSandboxViolation(t *testing.T) {
	t.Parallel()
	_, ts := newTestService(t)

	for _, path := range []string{"../escape.txt", "a/../../etc/passwd", ".."} {
		_, resp := call(t, ts, "read_file", map[string]any{"path": path})
		if resp.Err == nil {
			t.Fatalf("path %q accepted", path)
		}
		if resp.Err.Code != mcp.CodeSandboxViolation {
			t.Errorf("path %q: code %d, want %d", path, resp.Err.Code, mcp.CodeSandboxViolation)
		}
	}
}

func TestMissingParams(t *testing.T) {
	t.Parallel()
	_, ts := newTestService(t)

	status, resp := call(t, ts, "write_file", map[string]any{"path": "x.txt"})
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
	if resp.Err == nil || resp.Err.Code != mcp.CodeInvalidParams {
		t.Errorf("err = %+v, want invalid params", resp.Err)
	}
}

func TestReadMissingFile(t *testing.T) {
	t.Parallel()
	_, ts := newTestService(t)

	_, resp := call(t, ts, "read_file", map[string]any{"path": "nope.txt"})
	if resp.Err == nil || resp.Err.Code != mcp.CodeAppError {
		t.Errorf("err = %+v, want app error", resp.Err)
	}
	if resp.Err != nil && !strings.Contains(resp.Err.Message, "read_file") {
		t.Errorf("message %q does not name the operation", resp.Err.Message)
	}
}

// Package filesmcp implements the files MCP: sandboxed filesystem access
// published as the list_dir, read_file, write_file and delete_file functions.
//
// Every path parameter is relative to the service's base directory. Paths
// that try to leave the sandbox are rejected with the sandbox-violation
// application code before any I/O happens.
package filesmcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Beykus-Y/mcp-agent/internal/mcp"
	"github.com/Beykus-Y/mcp-agent/internal/mcp/server"
	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// Service is one files MCP instance rooted at a base directory.
type Service struct {
	base string
}

// New builds a Service sandboxed to baseDir. The directory is created if it
// does not exist.
func New(baseDir string) (*Service, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("filesmcp: base directory must not be empty")
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("filesmcp: resolve base %q: %w", baseDir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("filesmcp: create base %q: %w", abs, err)
	}
	return &Service{base: abs}, nil
}

// Base returns the absolute sandbox root.
func (s *Service) Base() string { return s.base }

// safePath resolves relPath against the sandbox root and verifies the result
// stays inside it. Violations carry the sandbox application code so the
// caller can tell policy from I/O failure.
func (s *Service) safePath(relPath string) (string, error) {
	if relPath == "" {
		return "", mcp.InvalidParams("path must not be empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(relPath), "/") {
		if part == ".." {
			return "", mcp.AppError(mcp.CodeSandboxViolation, "path %q escapes the sandbox", relPath)
		}
	}

	joined := filepath.Join(s.base, relPath)
	if joined != s.base && !strings.HasPrefix(joined, s.base+string(filepath.Separator)) {
		return "", mcp.AppError(mcp.CodeSandboxViolation, "path %q escapes the sandbox", relPath)
	}
	return joined, nil
}

type pathParams struct {
	Path string `json:"path"`
}

type writeParams struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// DirEntry is one row of a list_dir result.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size"`
}

// Functions returns the service's function table for the MCP skeleton.
func (s *Service) Functions() []server.Function {
	pathSchema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path relative to the sandbox root.",
			},
		},
		"required": []any{"path"},
	}

	return []server.Function{
		{
			Schema: types.ToolDefinition{
				Name:        "list_dir",
				Description: "List the entries of a directory inside the sandbox. Use path \".\" for the root.",
				Parameters:  pathSchema,
			},
			Handler: s.listDir,
		},
		{
			Schema: types.ToolDefinition{
				Name:        "read_file",
				Description: "Read a UTF-8 text file inside the sandbox and return its content.",
				Parameters:  pathSchema,
			},
			Handler: s.readFile,
		},
		{
			Schema: types.ToolDefinition{
				Name:        "write_file",
				Description: "Write a UTF-8 text file inside the sandbox, creating parent directories as needed.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"path": map[string]any{
							"type":        "string",
							"description": "Path relative to the sandbox root.",
						},
						"content": map[string]any{
							"type":        "string",
							"description": "Full file content to write.",
						},
					},
					"required": []any{"path", "content"},
				},
			},
			Handler: s.writeFile,
		},
		{
			Schema: types.ToolDefinition{
				Name:        "delete_file",
				Description: "Delete a file inside the sandbox.",
				Parameters:  pathSchema,
			},
			Handler: s.deleteFile,
		},
	}
}

func (s *Service) listDir(_ context.Context, params json.RawMessage) (any, error) {
	var p pathParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.InvalidParams("decode params: %v", err)
	}
	dir, err := s.safePath(p.Path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, mcp.AppError(mcp.CodeAppError, "list_dir %q: %v", p.Path, err)
	}

	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		row := DirEntry{Name: e.Name(), IsDir: e.IsDir()}
		if info, err := e.Info(); err == nil && !e.IsDir() {
			row.Size = info.Size()
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Service) readFile(_ context.Context, params json.RawMessage) (any, error) {
	var p pathParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.InvalidParams("decode params: %v", err)
	}
	path, err := s.safePath(p.Path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, mcp.AppError(mcp.CodeAppError, "read_file %q: %v", p.Path, err)
	}
	return map[string]any{"content": string(data)}, nil
}

func (s *Service) writeFile(_ context.Context, params json.RawMessage) (any, error) {
	var p writeParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.InvalidParams("decode params: %v", err)
	}
	path, err := s.safePath(p.Path)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, mcp.AppError(mcp.CodeAppError, "write_file %q: %v", p.Path, err)
	}
	if err := os.WriteFile(path, []byte(p.Content), 0o644); err != nil {
		return nil, mcp.AppError(mcp.CodeAppError, "write_file %q: %v", p.Path, err)
	}
	return map[string]any{"written": len(p.Content)}, nil
}

func (s *Service) deleteFile(_ context.Context, params json.RawMessage) (any, error) {
	var p pathParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, mcp.InvalidParams("decode params: %v", err)
	}
	path, err := s.safePath(p.Path)
	if err != nil {
		return nil, err
	}

	if err := os.Remove(path); err != nil {
		return nil, mcp.AppError(mcp.CodeAppError, "delete_file %q: %v", p.Path, err)
	}
	return map[string]any{"deleted": true}, nil
}

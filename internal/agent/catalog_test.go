package agent_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/Beykus-Y/mcp-agent/internal/agent"
	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// remoteCall records one dispatch through a fakeCaller.
type remoteCall struct {
	Method string
	Params string
}

// fakeCaller is a scripted RemoteCaller.
type fakeCaller struct {
	mu     sync.Mutex
	name   string
	result json.RawMessage
	err    error
	calls  []remoteCall
}

func (f *fakeCaller) Name() string { return f.name }

func (f *fakeCaller) Call(_ context.Context, method string, params any) (json.RawMessage, error) {
	raw, _ := json.Marshal(params)
	f.mu.Lock()
	f.calls = append(f.calls, remoteCall{Method: method, Params: string(raw)})
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeCaller) recorded() []remoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remoteCall(nil), f.calls...)
}

func def(name string) types.ToolDefinition {
	return types.ToolDefinition{Name: name, Description: "test function " + name}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCatalog_DefinitionsInRegistrationOrder(t *testing.T) {
	t.Parallel()

	c := agent.NewCatalog(discardLogger())
	c.AddMCP(&fakeCaller{name: "files"}, []types.ToolDefinition{def("read_file"), def("write_file")})
	c.AddMCP(&fakeCaller{name: "rpg"}, []types.ToolDefinition{def("get_player_location")})

	defs := c.Definitions(nil)
	want := []string{"read_file", "write_file", "get_player_location"}
	if len(defs) != len(want) {
		t.Fatalf("len(Definitions) = %d, want %d", len(defs), len(want))
	}
	for i, w := range want {
		if defs[i].Name != w {
			t.Errorf("Definitions[%d].Name = %q, want %q", i, defs[i].Name, w)
		}
	}
}

func TestCatalog_DuplicateNameFirstWins(t *testing.T) {
	t.Parallel()

	first := &fakeCaller{name: "files", result: json.RawMessage(`"from files"`)}
	second := &fakeCaller{name: "rpg", result: json.RawMessage(`"from rpg"`)}

	c := agent.NewCatalog(discardLogger())
	c.AddMCP(first, []types.ToolDefinition{def("status")})
	c.AddMCP(second, []types.ToolDefinition{def("status")})

	if got, want := c.Size(), 1; got != want {
		t.Fatalf("Size = %d, want %d", got, want)
	}
	caller, ok := c.Resolve("status", nil)
	if !ok {
		t.Fatal("Resolve(status) not found")
	}
	if got, want := caller.Name(), "files"; got != want {
		t.Errorf("resolved mcp = %q, want %q", got, want)
	}
}

func TestCatalog_AllowListFiltering(t *testing.T) {
	t.Parallel()

	c := agent.NewCatalog(discardLogger())
	c.AddMCP(&fakeCaller{name: "files"}, []types.ToolDefinition{def("read_file")})
	c.AddMCP(&fakeCaller{name: "rpg"}, []types.ToolDefinition{def("get_player_location")})

	cases := []struct {
		name  string
		allow []string
		want  []string
	}{
		{"nil allows all", nil, []string{"read_file", "get_player_location"}},
		{"empty hides all", []string{}, nil},
		{"single mcp", []string{"rpg"}, []string{"get_player_location"}},
		{"unknown key", []string{"nope"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			defs := c.Definitions(tc.allow)
			if len(defs) != len(tc.want) {
				t.Fatalf("len = %d, want %d", len(defs), len(tc.want))
			}
			for i, w := range tc.want {
				if defs[i].Name != w {
					t.Errorf("defs[%d].Name = %q, want %q", i, defs[i].Name, w)
				}
			}
		})
	}

	if _, ok := c.Resolve("read_file", []string{"rpg"}); ok {
		t.Error("Resolve found a function outside the allow-list")
	}
	if _, ok := c.Resolve("read_file", []string{"files"}); !ok {
		t.Error("Resolve missed a function inside the allow-list")
	}
}

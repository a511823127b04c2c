package web_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Beykus-Y/mcp-agent/internal/agent"
	"github.com/Beykus-Y/mcp-agent/internal/chat"
	"github.com/Beykus-Y/mcp-agent/internal/health"
	"github.com/Beykus-Y/mcp-agent/internal/settings"
	"github.com/Beykus-Y/mcp-agent/internal/web"
	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

type fixture struct {
	ts    *httptest.Server
	chats *chat.Store
}

func newFixture(t *testing.T, runner web.Runner) *fixture {
	t.Helper()

	chats, err := chat.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("chat.NewStore: %v", err)
	}
	sets, err := settings.Open(filepath.Join(t.TempDir(), "settings.json"),
		settings.Settings{SelectedModel: "gpt-4o", ActiveMCPs: "files,rpg"})
	if err != nil {
		t.Fatalf("settings.Open: %v", err)
	}
	if runner == nil {
		runner = web.RunnerFunc(func(_ context.Context, _ []types.Message, _ agent.Notifier) (agent.Result, error) {
			return agent.Result{Kind: agent.ResultText, Text: "ok"}, nil
		})
	}

	srv, err := web.New(web.Config{
		Chats:    chats,
		Settings: sets,
		Runner:   runner,
		Health:   health.New(),
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("web.New: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{ts: ts, chats: chats}
}

func doJSON(t *testing.T, method, url string, body string, out any) int {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestChatCRUD(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	var created chat.Chat
	if status := doJSON(t, http.MethodPost, f.ts.URL+"/api/chats", "", &created); status != http.StatusCreated {
		t.Fatalf("create status = %d", status)
	}
	if created.ID == "" {
		t.Fatal("created chat has no id")
	}

	var got chat.Chat
	if status := doJSON(t, http.MethodGet, f.ts.URL+"/api/chats/"+created.ID, "", &got); status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	if got.ID != created.ID {
		t.Errorf("got id %s, want %s", got.ID, created.ID)
	}

	var list []chat.Summary
	if status := doJSON(t, http.MethodGet, f.ts.URL+"/api/chats", "", &list); status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if len(list) != 1 {
		t.Errorf("list = %+v, want one chat", list)
	}

	if status := doJSON(t, http.MethodDelete, f.ts.URL+"/api/chats/"+created.ID, "", nil); status != http.StatusNoContent {
		t.Errorf("delete status = %d", status)
	}
	if status := doJSON(t, http.MethodGet, f.ts.URL+"/api/chats/"+created.ID, "", nil); status != http.StatusNotFound {
		t.Errorf("get after delete status = %d", status)
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	var got settings.Settings
	if status := doJSON(t, http.MethodGet, f.ts.URL+"/api/settings", "", &got); status != http.StatusOK {
		t.Fatalf("get status = %d", status)
	}
	if got.SelectedModel != "gpt-4o" {
		t.Errorf("selected_model = %q", got.SelectedModel)
	}

	body := `{"selected_model":"gpt-4o-mini","active_mcps":"rpg"}`
	if status := doJSON(t, http.MethodPut, f.ts.URL+"/api/settings", body, &got); status != http.StatusOK {
		t.Fatalf("put status = %d", status)
	}
	if got.SelectedModel != "gpt-4o-mini" || got.ActiveMCPs != "rpg" {
		t.Errorf("after put = %+v", got)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	for _, path := range []string{"/healthz", "/readyz"} {
		if status := doJSON(t, http.MethodGet, f.ts.URL+path, "", nil); status != http.StatusOK {
			t.Errorf("%s status = %d", path, status)
		}
	}
}

type wsEvent struct {
	Type    string `json:"type"`
	Tool    string `json:"tool"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
	Result  *struct {
		Kind string          `json:"kind"`
		Text string          `json:"text"`
		GUI  json.RawMessage `json:"gui"`
	} `json:"result"`
}

func TestWebsocketRun(t *testing.T) {
	t.Parallel()

	runner := web.RunnerFunc(func(_ context.Context, history []types.Message, n agent.Notifier) (agent.Result, error) {
		if len(history) == 0 || history[len(history)-1].Content != "where am I?" {
			t.Errorf("runner saw history %+v", history)
		}
		n.ActionStarted("get_player_location", "{}")
		return agent.Result{
			Kind: agent.ResultGUICommand,
			Text: `{"gui_tool":"display_text","params":{"text":"You are at (4,7) in grassland"}}`,
			GUI:  json.RawMessage(`{"gui_tool":"display_text","params":{"text":"You are at (4,7) in grassland"}}`),
		}, nil
	})
	f := newFixture(t, runner)

	var created chat.Chat
	if status := doJSON(t, http.MethodPost, f.ts.URL+"/api/chats", "", &created); status != http.StatusCreated {
		t.Fatalf("create chat status = %d", status)
	}

	ctx := t.Context()
	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	err = wsjson.Write(ctx, conn, map[string]string{
		"type": "user_message", "chat_id": created.ID, "content": "where am I?",
	})
	if err != nil {
		t.Fatalf("ws write: %v", err)
	}

	var started wsEvent
	if err := wsjson.Read(ctx, conn, &started); err != nil {
		t.Fatalf("ws read action_started: %v", err)
	}
	if started.Type != "action_started" || started.Tool != "get_player_location" {
		t.Errorf("first event = %+v", started)
	}

	var final wsEvent
	if err := wsjson.Read(ctx, conn, &final); err != nil {
		t.Fatalf("ws read final: %v", err)
	}
	if final.Type != "final" || final.Result == nil || final.Result.Kind != "gui_command" {
		t.Fatalf("final event = %+v", final)
	}
	if !strings.Contains(string(final.Result.GUI), "You are at (4,7) in grassland") {
		t.Errorf("gui payload = %s", final.Result.GUI)
	}

	// The turn is persisted: user message plus assistant text.
	stored, err := f.chats.Get(created.ID)
	if err != nil {
		t.Fatalf("chats.Get: %v", err)
	}
	if len(stored.Messages) != 2 {
		t.Fatalf("stored %d messages, want 2", len(stored.Messages))
	}
	if stored.Messages[0].Role != "user" || stored.Messages[1].Role != "assistant" {
		t.Errorf("stored roles = %s, %s", stored.Messages[0].Role, stored.Messages[1].Role)
	}
}

func TestWebsocketErrorKeepsSocketOpen(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	ctx := t.Context()
	wsURL := "ws" + strings.TrimPrefix(f.ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Unknown chat id: the server answers with an error event.
	err = wsjson.Write(ctx, conn, map[string]string{
		"type": "user_message", "chat_id": "1700000000000", "content": "hi",
	})
	if err != nil {
		t.Fatalf("ws write: %v", err)
	}
	var ev wsEvent
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("ws read: %v", err)
	}
	if ev.Type != "error" {
		t.Fatalf("event = %+v, want error", ev)
	}

	// The socket is still usable afterwards.
	var created chat.Chat
	if status := doJSON(t, http.MethodPost, f.ts.URL+"/api/chats", "", &created); status != http.StatusCreated {
		t.Fatalf("create chat status = %d", status)
	}
	err = wsjson.Write(ctx, conn, map[string]string{
		"type": "user_message", "chat_id": created.ID, "content": "hi again",
	})
	if err != nil {
		t.Fatalf("second ws write: %v", err)
	}
	if err := wsjson.Read(ctx, conn, &ev); err != nil {
		t.Fatalf("second ws read: %v", err)
	}
	if ev.Type != "final" || ev.Result == nil || ev.Result.Text != "ok" {
		t.Errorf("second event = %+v", ev)
	}
}

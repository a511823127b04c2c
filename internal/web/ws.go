package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// wsWriteTimeout bounds each outbound websocket write.
const wsWriteTimeout = 10 * time.Second

// inboundMessage is what the UI sends over the socket.
type inboundMessage struct {
	Type    string `json:"type"`
	ChatID  string `json:"chat_id"`
	Content string `json:"content"`
}

// outboundMessage is what the server pushes. Exactly the fields relevant to
// Type are set.
type outboundMessage struct {
	Type    string          `json:"type"`
	Tool    string          `json:"tool,omitempty"`
	Detail  string          `json:"detail,omitempty"`
	Result  *finalResult `json:"result,omitempty"`
	Message string       `json:"message,omitempty"`
}

// finalResult is the terminal payload of one run.
type finalResult struct {
	Kind string          `json:"kind"`
	Text string          `json:"text,omitempty"`
	GUI  json.RawMessage `json:"gui,omitempty"`
}

// wsNotifier forwards agent progress onto the socket. Callbacks run on the
// run goroutine, which is the only writer while a run is in flight.
type wsNotifier struct {
	ctx  context.Context
	conn *websocket.Conn
}

func (n *wsNotifier) ActionStarted(tool, detail string) {
	ctx, cancel := context.WithTimeout(n.ctx, wsWriteTimeout)
	defer cancel()
	_ = wsjson.Write(ctx, n.conn, outboundMessage{
		Type:   "action_started",
		Tool:   tool,
		Detail: detail,
	})
}

// serveWS handles one UI connection. Messages are processed strictly in
// order; a failed run pushes an error event and keeps the socket open.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server shutting down")

	ctx := r.Context()
	s.log.Info("websocket session started", "remote", r.RemoteAddr)

	for {
		var in inboundMessage
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
			s.log.Warn("websocket read failed", "err", err)
			return
		}

		if in.Type != "user_message" {
			s.pushError(ctx, conn, "unknown message type "+in.Type)
			continue
		}
		if in.ChatID == "" || in.Content == "" {
			s.pushError(ctx, conn, "user_message requires chat_id and content")
			continue
		}

		s.handleUserMessage(ctx, conn, in)
	}
}

// handleUserMessage appends the user turn, runs the agent with progress
// streaming, persists the assistant turn, and pushes the final result.
func (s *Server) handleUserMessage(ctx context.Context, conn *websocket.Conn, in inboundMessage) {
	c, err := s.chats.Append(in.ChatID, types.Message{Role: "user", Content: in.Content})
	if err != nil {
		s.pushError(ctx, conn, err.Error())
		return
	}

	res, err := s.runner.Run(ctx, c.Messages, &wsNotifier{ctx: ctx, conn: conn})
	if err != nil {
		s.log.Error("agent run failed", "chat", in.ChatID, "err", err)
		s.pushError(ctx, conn, "agent run failed: "+err.Error())
		return
	}
	s.metrics.RecordAgentRun(ctx, "orchestrator", res.Kind.String())

	assistant := types.Message{Role: "assistant", Content: res.Text}
	if _, err := s.chats.Append(in.ChatID, assistant); err != nil {
		s.log.Error("persist assistant message failed", "chat", in.ChatID, "err", err)
	}

	final := &finalResult{Kind: res.Kind.String(), Text: res.Text}
	if res.GUI != nil {
		final.GUI = res.GUI
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	if err := wsjson.Write(writeCtx, conn, outboundMessage{Type: "final", Result: final}); err != nil {
		s.log.Warn("websocket final write failed", "err", err)
	}
}

func (s *Server) pushError(ctx context.Context, conn *websocket.Conn, msg string) {
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	_ = wsjson.Write(writeCtx, conn, outboundMessage{Type: "error", Message: msg})
}

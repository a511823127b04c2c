// Package client is a TCP client for the game server. It performs the login
// handshake, keeps a replica of the last broadcast world snapshot, and turns
// command frames into call-and-wait round trips.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/Beykus-Y/mcp-agent/internal/game/character"
	"github.com/Beykus-Y/mcp-agent/internal/game/wire"
	"github.com/Beykus-Y/mcp-agent/internal/game/world"
)

// ErrClosed is returned by calls made after the connection has gone away.
var ErrClosed = errors.New("client: connection closed")

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// snapshot is one decoded world_state_update / initial_world_state payload.
type snapshot struct {
	World             *world.State                    `json:"world"`
	PlayerCharacterID string                          `json:"player_character_id,omitempty"`
	Players           map[string]*character.Character `json:"players"`
}

// Client is a connected, logged-in game session.
//
// The replica returned by World, Self and Players is replaced wholesale on
// every broadcast and never mutated in place, so callers may read a returned
// value without holding any lock — but must not modify it.
type Client struct {
	conn   net.Conn
	logger *slog.Logger

	// cmdMu serialises round trips so an error frame is always matched to
	// the command that caused it.
	cmdMu sync.Mutex

	mu       sync.Mutex
	playerID string
	world    *world.State
	players  map[string]*character.Character
	waiter   chan string

	closed  chan struct{}
	readErr error
}

// Dial connects and logs in as characterID. The returned client already holds
// the initial world snapshot.
func Dial(ctx context.Context, addr, characterID string, opts ...Option) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}

	c := &Client{
		conn:   conn,
		logger: slog.Default(),
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.login(characterID); err != nil {
		conn.Close()
		return nil, err
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) login(characterID string) error {
	env, err := wire.Encode(wire.TypeLogin, wire.Login{CharacterID: characterID})
	if err != nil {
		return err
	}
	if err := wire.WriteFrame(c.conn, env); err != nil {
		return err
	}

	resp, err := wire.ReadFrame(c.conn)
	if err != nil {
		return fmt.Errorf("client: login read: %w", err)
	}
	switch resp.Type {
	case wire.TypeInitialWorldState:
		return c.applySnapshot(resp)
	case wire.TypeError:
		var msg string
		if err := wire.DecodeData(resp, &msg); err != nil {
			return err
		}
		return fmt.Errorf("client: login rejected: %s", msg)
	default:
		return fmt.Errorf("client: unexpected %s frame during login", resp.Type)
	}
}

func (c *Client) applySnapshot(env wire.Envelope) error {
	var snap snapshot
	if err := wire.DecodeData(env, &snap); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.world = snap.World
	c.players = snap.Players
	if snap.PlayerCharacterID != "" {
		c.playerID = snap.PlayerCharacterID
	}
	return nil
}

// readLoop consumes server frames until the connection dies.
func (c *Client) readLoop() {
	for {
		env, err := wire.ReadFrame(c.conn)
		if err != nil {
			c.mu.Lock()
			if errors.Is(err, io.EOF) {
				c.readErr = ErrClosed
			} else {
				c.readErr = err
			}
			c.mu.Unlock()
			close(c.closed)
			return
		}

		switch env.Type {
		case wire.TypeWorldStateUpdate, wire.TypeInitialWorldState:
			if err := c.applySnapshot(env); err != nil {
				c.logger.Warn("bad state update", "error", err)
				continue
			}
			c.notify("")
		case wire.TypeError:
			var msg string
			if err := wire.DecodeData(env, &msg); err != nil {
				msg = string(env.Data)
			}
			c.notify(msg)
		case wire.TypeChatMessage:
			var msg wire.ChatMessage
			if err := wire.DecodeData(env, &msg); err == nil {
				c.logger.Info("chat", "sender", msg.Sender, "message", msg.Message)
			}
		default:
			c.logger.Debug("ignoring frame", "type", env.Type)
		}
	}
}

// notify hands the outcome of the in-flight command to its waiter, if any.
// An empty string means a state update arrived; anything else is the server's
// rejection message.
func (c *Client) notify(errMsg string) {
	c.mu.Lock()
	waiter := c.waiter
	c.waiter = nil
	c.mu.Unlock()
	if waiter != nil {
		waiter <- errMsg
	}
}

// roundTrip sends one command frame and blocks until the server either
// rejects it or broadcasts a state update.
func (c *Client) roundTrip(ctx context.Context, msgType string, payload any) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	env, err := wire.Encode(msgType, payload)
	if err != nil {
		return err
	}

	ch := make(chan string, 1)
	c.mu.Lock()
	c.waiter = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.waiter = nil
		c.mu.Unlock()
	}()

	if err := wire.WriteFrame(c.conn, env); err != nil {
		return fmt.Errorf("client: send %s: %w", msgType, err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closed:
		return c.ReadErr()
	case msg := <-ch:
		if msg != "" {
			return fmt.Errorf("client: %s rejected: %s", msgType, msg)
		}
		return nil
	}
}

// Move steps the player by (dx, dy) and waits for the resulting update.
func (c *Client) Move(ctx context.Context, dx, dy int) error {
	return c.roundTrip(ctx, wire.TypePlayerMove, wire.PlayerMove{DX: dx, DY: dy})
}

// EnterPOI reports stepping onto a point of interest. Revisits are a server
// no-op with no reply, so this is fire-and-forget.
func (c *Client) EnterPOI(poiID string) error {
	return c.send(wire.TypePlayerEnteredPOI, wire.PlayerEnteredPOI{POIID: poiID})
}

// Chat relays a chat line to every connected player.
func (c *Client) Chat(sender, message string) error {
	return c.send(wire.TypeChatMessage, wire.ChatMessage{Sender: sender, Message: message})
}

func (c *Client) send(msgType string, payload any) error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()
	env, err := wire.Encode(msgType, payload)
	if err != nil {
		return err
	}
	if err := wire.WriteFrame(c.conn, env); err != nil {
		return fmt.Errorf("client: send %s: %w", msgType, err)
	}
	return nil
}

// PlayerID is the server-assigned session id from the login snapshot.
func (c *Client) PlayerID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playerID
}

// World is the latest replica of the world state. Read-only.
func (c *Client) World() *world.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.world
}

// Players is the latest replica of all connected characters. Read-only.
func (c *Client) Players() map[string]*character.Character {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.players
}

// Self is the latest replica of this session's character, or nil if the
// server has not included it in an update yet.
func (c *Client) Self() *character.Character {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.players[c.playerID]
}

// ReadErr reports why the read loop stopped, or nil while it is running.
func (c *Client) ReadErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

// Done is closed when the connection goes away.
func (c *Client) Done() <-chan struct{} { return c.closed }

// Close tears down the connection.
func (c *Client) Close() error { return c.conn.Close() }

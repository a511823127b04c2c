// Package server implements the authoritative multiplayer game server: a TCP
// listener speaking the length-prefixed JSON protocol of [wire], a session
// per connected player, and a single lock that makes every world mutation
// serial.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Beykus-Y/mcp-agent/internal/game/character"
	"github.com/Beykus-Y/mcp-agent/internal/game/nomenclator"
	"github.com/Beykus-Y/mcp-agent/internal/game/store"
	"github.com/Beykus-Y/mcp-agent/internal/game/wire"
	"github.com/Beykus-Y/mcp-agent/internal/game/world"
	"github.com/Beykus-Y/mcp-agent/internal/observe"
)

// acceptDeadline bounds each Accept call so the loop can notice shutdown.
const acceptDeadline = time.Second

// Config holds the server's dependencies.
type Config struct {
	// World is the loaded world state. The server takes ownership; nobody
	// else may mutate it while the server runs. Must not be nil.
	World *world.State

	// Characters persists player saves. Must not be nil.
	Characters *store.CharacterStore

	// Worlds persists the world state on shutdown and after first-time POI
	// descriptions. Must not be nil.
	Worlds *store.WorldStore

	// Names generates POI descriptions. Must not be nil.
	Names *nomenclator.Generator

	// Metrics defaults to observe.DefaultMetrics().
	Metrics *observe.Metrics

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// session is one connected player.
type session struct {
	playerID string
	saveID   string
	char     *character.Character
	conn     net.Conn

	// writeMu serialises frame writes to conn.
	writeMu sync.Mutex

	// removed is set under the server lock when the session leaves the
	// session table, making cleanup idempotent.
	removed bool
}

func (s *session) write(env wire.Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return wire.WriteFrame(s.conn, env)
}

// Server owns the world and all live sessions.
type Server struct {
	world      *world.State
	characters *store.CharacterStore
	worlds     *store.WorldStore
	names      *nomenclator.Generator
	metrics    *observe.Metrics
	logger     *slog.Logger

	// mu guards world, sessions, and every character. Handlers mutate under
	// the lock and broadcast after releasing it.
	mu       sync.Mutex
	sessions map[string]*session
	rng      *rand.Rand
	closed   bool

	handlers map[string]handlerFunc

	addrOnce  sync.Once
	addrReady chan struct{}
	addr      net.Addr
}

// New validates cfg and builds a server.
func New(cfg Config) (*Server, error) {
	if cfg.World == nil {
		return nil, errors.New("server: World must not be nil")
	}
	if cfg.Characters == nil {
		return nil, errors.New("server: Characters must not be nil")
	}
	if cfg.Worlds == nil {
		return nil, errors.New("server: Worlds must not be nil")
	}
	if cfg.Names == nil {
		return nil, errors.New("server: Names must not be nil")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	s := &Server{
		world:      cfg.World,
		characters: cfg.Characters,
		worlds:     cfg.Worlds,
		names:      cfg.Names,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		sessions:   map[string]*session{},
		rng:        rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(cfg.World.Seed))),
		addrReady:  make(chan struct{}),
	}
	s.handlers = commandHandlers()
	return s, nil
}

// Run listens on addr and serves until ctx is cancelled, then saves every
// character and the world before returning.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", addr, err)
	}
	defer ln.Close()

	s.addrOnce.Do(func() {
		s.addr = ln.Addr()
		close(s.addrReady)
	})

	s.logger.Info("game server listening",
		"addr", ln.Addr().String(),
		"world", s.world.WorldName,
		"map", fmt.Sprintf("%dx%d", s.world.Width(), s.world.Height()))

	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		return fmt.Errorf("server: listener %T is not TCP", ln)
	}

	var wg sync.WaitGroup
	for {
		if ctx.Err() != nil {
			break
		}
		if err := tcpLn.SetDeadline(time.Now().Add(acceptDeadline)); err != nil {
			return fmt.Errorf("server: set accept deadline: %w", err)
		}
		conn, err := tcpLn.Accept()
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleConn(ctx, conn)
		}()
	}

	s.shutdown()
	wg.Wait()
	return nil
}

// Addr blocks until the listener is bound and returns its address. Useful
// when Run was started with port 0.
func (s *Server) Addr() net.Addr {
	<-s.addrReady
	return s.addr
}

// handleConn performs the login handshake, then pumps commands until the
// connection drops.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	logger := s.logger.With("remote", conn.RemoteAddr().String())

	sess, err := s.login(conn)
	if err != nil {
		logger.Warn("login rejected", "error", err)
		_ = writeError(conn, err.Error())
		conn.Close()
		return
	}
	logger = logger.With("player", sess.playerID, "character", sess.char.Name)
	logger.Info("player connected", "save", sess.saveID)
	s.metrics.ConnectedPlayers.Add(ctx, 1)

	if err := s.sendInitialState(sess); err != nil {
		logger.Warn("initial state send failed", "error", err)
		s.cleanup(ctx, sess)
		s.metrics.ConnectedPlayers.Add(ctx, -1)
		return
	}
	s.broadcast(ctx)

	for {
		env, err := wire.ReadFrame(sess.conn)
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("player disconnected")
			} else if !s.isClosed() {
				logger.Warn("read failed", "error", err)
			}
			break
		}
		s.dispatch(ctx, sess, env)
	}

	s.cleanup(ctx, sess)
	s.metrics.ConnectedPlayers.Add(ctx, -1)
}

// login reads and validates the first frame and builds the session. The
// session is registered before returning.
func (s *Server) login(conn net.Conn) (*session, error) {
	env, err := wire.ReadFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("invalid login sequence: %w", err)
	}
	if env.Type != wire.TypeLogin {
		return nil, fmt.Errorf("invalid login sequence: got %q frame", env.Type)
	}
	var login wire.Login
	if err := wire.DecodeData(env, &login); err != nil {
		return nil, fmt.Errorf("invalid login payload: %w", err)
	}
	if login.CharacterID == "" {
		return nil, errors.New("missing character_id")
	}

	char, err := s.characters.Load(login.CharacterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("character not found: %s", login.CharacterID)
		}
		return nil, fmt.Errorf("load character: %w", err)
	}

	sess := &session{
		playerID: uuid.NewString(),
		saveID:   login.CharacterID,
		char:     char,
		conn:     conn,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("server is shutting down")
	}

	// A save may predate this world or sit on water; drop such characters at
	// the capital, or the map center when there is none.
	x, y := char.Position[0], char.Position[1]
	if !s.world.Passable(x, y) {
		if capital, ok := s.world.Capital(); ok {
			char.Position = capital.Position
		} else {
			char.Position = [2]int{s.world.Width() / 2, s.world.Height() / 2}
		}
	}

	s.sessions[sess.playerID] = sess
	return sess, nil
}

// statePayload is the world_state_update / initial_world_state body.
type statePayload struct {
	World             *world.State                    `json:"world"`
	PlayerCharacterID string                          `json:"player_character_id,omitempty"`
	Players           map[string]*character.Character `json:"players"`
}

// snapshotLocked marshals the shared state while the caller holds the lock.
// The resulting bytes are immutable, so frames can be written lock-free.
func (s *Server) snapshotLocked(forPlayer string) (json.RawMessage, error) {
	players := make(map[string]*character.Character, len(s.sessions))
	for id, sess := range s.sessions {
		players[id] = sess.char
	}
	raw, err := json.Marshal(statePayload{
		World:             s.world,
		PlayerCharacterID: forPlayer,
		Players:           players,
	})
	if err != nil {
		return nil, fmt.Errorf("server: snapshot state: %w", err)
	}
	return raw, nil
}

func (s *Server) sendInitialState(sess *session) error {
	s.mu.Lock()
	raw, err := s.snapshotLocked(sess.playerID)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return sess.write(wire.Envelope{Type: wire.TypeInitialWorldState, Data: raw})
}

// broadcast sends the current world state to every session. The snapshot is
// taken under the lock; the socket writes happen outside it.
func (s *Server) broadcast(ctx context.Context) {
	s.mu.Lock()
	raw, err := s.snapshotLocked("")
	targets := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		targets = append(targets, sess)
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("broadcast snapshot failed", "error", err)
		return
	}

	env := wire.Envelope{Type: wire.TypeWorldStateUpdate, Data: raw}
	for _, sess := range targets {
		if err := sess.write(env); err != nil {
			s.logger.Warn("broadcast write failed, dropping session",
				"player", sess.playerID, "error", err)
			sess.conn.Close()
		}
	}
	s.metrics.GameBroadcasts.Add(ctx, 1)
}

// broadcastEnvelope relays a prebuilt frame (chat) to every session.
func (s *Server) broadcastEnvelope(env wire.Envelope) {
	s.mu.Lock()
	targets := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		targets = append(targets, sess)
	}
	s.mu.Unlock()

	for _, sess := range targets {
		if err := sess.write(env); err != nil {
			s.logger.Warn("relay write failed, dropping session",
				"player", sess.playerID, "error", err)
			sess.conn.Close()
		}
	}
}

// cleanup saves the character, removes the session, closes the socket, and
// tells the remaining players. Safe to call more than once.
func (s *Server) cleanup(ctx context.Context, sess *session) {
	s.mu.Lock()
	if sess.removed {
		s.mu.Unlock()
		return
	}
	sess.removed = true
	delete(s.sessions, sess.playerID)
	serverClosed := s.closed
	s.mu.Unlock()

	sess.conn.Close()

	if err := s.characters.Save(sess.char, sess.saveID); err != nil {
		s.logger.Error("save on disconnect failed",
			"player", sess.playerID, "save", sess.saveID, "error", err)
	} else {
		s.logger.Info("player state saved", "player", sess.playerID, "save", sess.saveID)
	}

	if !serverClosed {
		s.broadcast(ctx)
	}
}

// shutdown saves everything and closes every socket. Runs once, after the
// accept loop stops.
func (s *Server) shutdown() {
	s.mu.Lock()
	s.closed = true
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sess.removed = true
		sessions = append(sessions, sess)
	}
	s.sessions = map[string]*session{}

	for _, sess := range sessions {
		if err := s.characters.Save(sess.char, sess.saveID); err != nil {
			s.logger.Error("save on shutdown failed", "save", sess.saveID, "error", err)
		}
	}
	worldErr := s.worlds.SaveState(s.world)
	s.mu.Unlock()

	if worldErr != nil {
		s.logger.Error("world save on shutdown failed", "error", worldErr)
	} else {
		s.logger.Info("world state saved", "world", s.world.WorldName)
	}

	for _, sess := range sessions {
		sess.conn.Close()
	}
	s.logger.Info("game server stopped", "sessions_closed", len(sessions))
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// AppendHistory adds simulation log lines under the world lock. Used by the
// periodic tick job.
func (s *Server) AppendHistory(ctx context.Context, lines []string) {
	if len(lines) == 0 {
		return
	}
	s.mu.Lock()
	s.world.HistoryLog = append(s.world.HistoryLog, lines...)
	s.mu.Unlock()
	s.broadcast(ctx)
}

// Tick runs fn with the world under the lock and broadcasts the returned
// log lines. fn must not block.
func (s *Server) Tick(ctx context.Context, fn func(*world.State, *rand.Rand) []string) {
	s.mu.Lock()
	lines := fn(s.world, s.rng)
	s.world.HistoryLog = append(s.world.HistoryLog, lines...)
	s.mu.Unlock()
	if len(lines) > 0 {
		s.broadcast(ctx)
	}
}

// SaveAll persists every connected character and the world. Used by the
// autosave job. Characters and the world are marshaled while the lock is
// held; the disk writes happen after release, so a concurrent command never
// mutates a character mid-encode.
func (s *Server) SaveAll() {
	type save struct {
		raw    []byte
		saveID string
	}
	s.mu.Lock()
	saves := make([]save, 0, len(s.sessions))
	for _, sess := range s.sessions {
		raw, err := json.Marshal(sess.char)
		if err != nil {
			s.logger.Error("autosave character snapshot failed", "save", sess.saveID, "error", err)
			continue
		}
		saves = append(saves, save{raw: raw, saveID: sess.saveID})
	}
	worldRaw, worldErr := json.Marshal(s.world)
	s.mu.Unlock()

	for _, sv := range saves {
		var snapshot character.Character
		if err := json.Unmarshal(sv.raw, &snapshot); err != nil {
			s.logger.Error("autosave character decode failed", "save", sv.saveID, "error", err)
			continue
		}
		if err := s.characters.Save(&snapshot, sv.saveID); err != nil {
			s.logger.Error("autosave character failed", "save", sv.saveID, "error", err)
		}
	}
	if worldErr != nil {
		s.logger.Error("autosave world snapshot failed", "error", worldErr)
		return
	}
	var snapshot world.State
	if err := json.Unmarshal(worldRaw, &snapshot); err != nil {
		s.logger.Error("autosave world decode failed", "error", err)
		return
	}
	if err := s.worlds.SaveState(&snapshot); err != nil {
		s.logger.Error("autosave world failed", "error", err)
	}
}

func writeError(conn net.Conn, msg string) error {
	env, err := wire.Encode(wire.TypeError, msg)
	if err != nil {
		return err
	}
	return wire.WriteFrame(conn, env)
}

func (s *session) sendError(msg string) {
	env, err := wire.Encode(wire.TypeError, msg)
	if err != nil {
		return
	}
	_ = s.write(env)
}

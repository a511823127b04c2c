// Command mcp-rpg serves the game-world MCP. It logs into the running RPG
// server as a player character and exposes that character's view of the world
// as JSON-RPC functions, backed by a SQLite event journal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/Beykus-Y/mcp-agent/internal/config"
	gameclient "github.com/Beykus-Y/mcp-agent/internal/game/client"
	mcpserver "github.com/Beykus-Y/mcp-agent/internal/mcp/server"
	"github.com/Beykus-Y/mcp-agent/internal/rpgmcp"
)

// dialTimeout bounds the login handshake with the game server.
const dialTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp-rpg: %v\n", err)
		return 1
	}

	logger := config.BuildLogger(cfg.Logging).With("mcp", "rpg")
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	client, err := gameclient.Dial(dialCtx, cfg.RPGMCP.ServerAddr, cfg.RPGMCP.CharacterID,
		gameclient.WithLogger(logger))
	cancel()
	if err != nil {
		logger.Error("game server login failed",
			"addr", cfg.RPGMCP.ServerAddr,
			"character", cfg.RPGMCP.CharacterID,
			"err", err)
		return 1
	}
	defer client.Close()

	journal, err := rpgmcp.OpenJournal(cfg.RPGMCP.JournalFile)
	if err != nil {
		logger.Error("journal open failed", "path", cfg.RPGMCP.JournalFile, "err", err)
		return 1
	}
	defer journal.Close()

	svc, err := rpgmcp.New(client, journal)
	if err != nil {
		logger.Error("service init failed", "err", err)
		return 1
	}

	srv, err := mcpserver.New("rpg", svc.Functions(), mcpserver.WithLogger(logger))
	if err != nil {
		logger.Error("server init failed", "err", err)
		return 1
	}

	addr := listenAddr(cfg)
	logger.Info("mcp-rpg starting",
		"addr", addr,
		"game_server", cfg.RPGMCP.ServerAddr,
		"character", cfg.RPGMCP.CharacterID,
	)

	// The game connection dying mid-run takes the MCP down with it; the
	// supervisor's log then names the real failure instead of a stream of
	// per-call errors.
	go func() {
		select {
		case <-client.Done():
			if err := client.ReadErr(); err != nil {
				logger.Error("game server connection lost", "err", err)
			}
			stop()
		case <-ctx.Done():
		}
	}()

	if err := srv.Run(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", "err", err)
		return 1
	}
	logger.Info("mcp-rpg shut down")
	return 0
}

// listenAddr resolves the listen address: the launcher-provided PORT variable
// wins, then the registry descriptor's port resolution.
func listenAddr(cfg *config.Config) string {
	if p := os.Getenv("PORT"); p != "" {
		return "127.0.0.1:" + p
	}
	if d, ok := cfg.BuildRegistry().Get("rpg"); ok {
		return fmt.Sprintf("127.0.0.1:%d", d.Port())
	}
	return "127.0.0.1:8008"
}

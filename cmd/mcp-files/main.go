// Command mcp-files serves the sandboxed file MCP: JSON-RPC file listing,
// reading, writing and deletion confined to one base directory.
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

	"github.com/joho/godotenv"

	"github.com/Beykus-Y/mcp-agent/internal/config"
	"github.com/Beykus-Y/mcp-agent/internal/filesmcp"
	mcpserver "github.com/Beykus-Y/mcp-agent/internal/mcp/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp-files: %v\n", err)
		return 1
	}

	logger := config.BuildLogger(cfg.Logging).With("mcp", "files")
	slog.SetDefault(logger)

	svc, err := filesmcp.New(cfg.FilesMCP.BaseDir)
	if err != nil {
		logger.Error("sandbox init failed", "base_dir", cfg.FilesMCP.BaseDir, "err", err)
		return 1
	}

	srv, err := mcpserver.New("files", svc.Functions(), mcpserver.WithLogger(logger))
	if err != nil {
		logger.Error("server init failed", "err", err)
		return 1
	}

	addr := listenAddr(cfg)
	logger.Info("mcp-files starting", "addr", addr, "base_dir", svc.Base())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx, addr); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", "err", err)
		return 1
	}
	logger.Info("mcp-files shut down")
	return 0
}

// listenAddr resolves the listen address: the launcher-provided PORT variable
// wins, then the registry descriptor's port resolution.
func listenAddr(cfg *config.Config) string {
	if p := os.Getenv("PORT"); p != "" {
		return "127.0.0.1:" + p
	}
	if d, ok := cfg.BuildRegistry().Get("files"); ok {
		return fmt.Sprintf("127.0.0.1:%d", d.Port())
	}
	return "127.0.0.1:8001"
}

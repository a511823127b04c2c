// Command rpg-server runs the authoritative game world: a TCP server owning
// the world state, plus scheduled simulation ticks and autosaves.
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
	"github.com/robfig/cron/v3"

	"github.com/Beykus-Y/mcp-agent/internal/config"
	"github.com/Beykus-Y/mcp-agent/internal/game/nomenclator"
	"github.com/Beykus-Y/mcp-agent/internal/game/server"
	"github.com/Beykus-Y/mcp-agent/internal/game/sim"
	"github.com/Beykus-Y/mcp-agent/internal/game/store"
	"github.com/Beykus-Y/mcp-agent/internal/game/worldgen"
	"github.com/Beykus-Y/mcp-agent/internal/observe"
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
		fmt.Fprintf(os.Stderr, "rpg-server: %v\n", err)
		return 1
	}

	logger := config.BuildLogger(cfg.Logging)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	// After the first signal, restore default handling so a second signal
	// kills the process even if shutdown hangs.
	go func() {
		<-ctx.Done()
		stop()
	}()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "rpg-server"})
	if err != nil {
		logger.Error("telemetry init failed", "err", err)
		return 1
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "err", err)
		}
	}()

	// The LLM is optional here: without a key the nomenclator degrades to
	// its seeded fallback lists and the world still generates.
	var nameOpts []nomenclator.Option
	provider, err := config.BuildProvider(cfg, "")
	switch {
	case err == nil:
		nameOpts = append(nameOpts, nomenclator.WithProvider(provider))
	case errors.Is(err, config.ErrMissingAPIKey):
		logger.Info("no API key set, POI descriptions use fallback text")
	default:
		logger.Error("llm provider init failed", "err", err)
		return 1
	}
	names := nomenclator.New(cfg.Game.World.Seed, append(nameOpts, nomenclator.WithLogger(logger))...)

	worlds := store.NewWorldStore(cfg.Game.SavesDir)
	worldState, err := worlds.LoadOrGenerate(cfg.Game.World.Name, worldgen.Config{
		Name:         cfg.Game.World.Name,
		Seed:         cfg.Game.World.Seed,
		Width:        cfg.Game.World.Width,
		Height:       cfg.Game.World.Height,
		POICount:     cfg.Game.World.POICount,
		FactionCount: cfg.Game.World.FactionCount,
	})
	if err != nil {
		logger.Error("world load failed", "world", cfg.Game.World.Name, "err", err)
		return 1
	}

	srv, err := server.New(server.Config{
		World:      worldState,
		Characters: store.NewCharacterStore(cfg.Game.SavesDir),
		Worlds:     worlds,
		Names:      names,
		Metrics:    observe.DefaultMetrics(),
		Logger:     logger,
	})
	if err != nil {
		logger.Error("server init failed", "err", err)
		return 1
	}

	sched := cron.New()
	if cfg.Game.Simulation.Enabled {
		if _, err := sched.AddFunc(cfg.Game.Simulation.Schedule, func() {
			srv.Tick(ctx, sim.Tick)
		}); err != nil {
			logger.Error("bad simulation schedule", "schedule", cfg.Game.Simulation.Schedule, "err", err)
			return 1
		}
	}
	if cfg.Game.Autosave.Enabled {
		if _, err := sched.AddFunc(cfg.Game.Autosave.Schedule, srv.SaveAll); err != nil {
			logger.Error("bad autosave schedule", "schedule", cfg.Game.Autosave.Schedule, "err", err)
			return 1
		}
	}
	sched.Start()
	defer sched.Stop()

	logger.Info("rpg-server starting",
		"addr", cfg.Game.Addr,
		"world", worldState.WorldName,
		"size", fmt.Sprintf("%dx%d", worldState.Width(), worldState.Height()),
		"simulation", cfg.Game.Simulation.Enabled,
		"autosave", cfg.Game.Autosave.Enabled,
	)

	if err := srv.Run(ctx, cfg.Game.Addr); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", "err", err)
		return 1
	}
	logger.Info("rpg-server shut down")
	return 0
}

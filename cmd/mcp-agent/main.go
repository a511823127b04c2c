// Command mcp-agent is the orchestrator: it launches the selected MCP
// services, discovers their functions, and serves the chat web surface whose
// agent coordinates them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Beykus-Y/mcp-agent/internal/agent"
	"github.com/Beykus-Y/mcp-agent/internal/chat"
	"github.com/Beykus-Y/mcp-agent/internal/config"
	"github.com/Beykus-Y/mcp-agent/internal/health"
	mcpclient "github.com/Beykus-Y/mcp-agent/internal/mcp/client"
	"github.com/Beykus-Y/mcp-agent/internal/mcp/launcher"
	"github.com/Beykus-Y/mcp-agent/internal/observe"
	"github.com/Beykus-Y/mcp-agent/internal/resilience"
	"github.com/Beykus-Y/mcp-agent/internal/settings"
	"github.com/Beykus-Y/mcp-agent/internal/web"
	"github.com/Beykus-Y/mcp-agent/pkg/types"
)

// rpgMCPKey is the registry key whose functions are reserved for the
// specialist agent. The orchestrator reaches them only through delegation.
const rpgMCPKey = "rpg"

// manifestFile is where the launcher records the spawned fabric's ports.
const manifestFile = "mcp.env"

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp-agent: %v\n", err)
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

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "mcp-agent"})
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

	settingsFile, err := settings.Open(cfg.Settings.File, settings.Settings{
		SelectedModel: cfg.LLM.Model,
		ActiveMCPs:    strings.Join(cfg.MCP.Active, ","),
	})
	if err != nil {
		logger.Error("settings open failed", "path", cfg.Settings.File, "err", err)
		return 1
	}

	active := resolveActive(cfg, settingsFile, flag.Arg(0))
	registry := cfg.BuildRegistry()
	descs, err := registry.Select(active)
	if err != nil {
		logger.Error("active MCP set invalid", "active", active, "err", err)
		return 1
	}

	logger.Info("mcp-agent starting",
		"config", *configPath,
		"web_addr", cfg.Web.Addr,
		"model", settingsFile.Get().SelectedModel,
		"active_mcps", strings.Join(active, ","),
	)

	// Fail on a missing API key before spawning anything.
	if _, err := config.BuildProvider(cfg, settingsFile.Get().SelectedModel); err != nil {
		logger.Error("llm provider init failed", "err", err)
		return 1
	}

	sup := launcher.New(launcher.WithLogger(logger))
	if err := sup.Start(ctx, descs, active); err != nil {
		logger.Error("mcp launch failed", "err", err)
		return 1
	}
	defer sup.Stop()

	if err := sup.WriteManifest(manifestFile); err != nil {
		logger.Warn("manifest write failed", "path", manifestFile, "err", err)
	}

	handles := make([]*mcpclient.Handle, 0, len(descs))
	for _, d := range descs {
		h, err := mcpclient.New(d.Key, d.BaseURL(),
			mcpclient.WithLogger(logger),
			mcpclient.WithBreaker(resilience.NewBreaker(resilience.BreakerConfig{
				Name:   d.Key,
				Logger: logger,
			})),
		)
		if err != nil {
			logger.Error("mcp client init failed", "mcp", d.Key, "err", err)
			return 1
		}
		handles = append(handles, h)
	}

	if err := mcpclient.WaitReady(ctx, handles, mcpclient.ReadinessConfig{
		Interval: time.Duration(cfg.MCP.PollIntervalMS) * time.Millisecond,
		Deadline: time.Duration(cfg.MCP.StartupDeadlineSeconds) * time.Second,
		Logger:   logger,
	}); err != nil {
		logger.Error("mcp fabric not ready", "err", err)
		return 1
	}

	discoveries, err := mcpclient.DiscoverAll(ctx, handles)
	if err != nil {
		logger.Error("function discovery failed", "err", err)
		return 1
	}
	catalog := agent.NewCatalog(logger)
	for i, disc := range discoveries {
		catalog.AddMCP(handles[i], disc.Functions)
		logger.Info("mcp discovered", "mcp", disc.MCP, "functions", len(disc.Functions))
	}

	orchPrompt, err := loadPrompt(cfg.Agent.OrchestratorPromptFile, agent.DefaultOrchestratorPrompt)
	if err != nil {
		logger.Error("orchestrator prompt load failed", "err", err)
		return 1
	}
	specPrompt, err := loadPrompt(cfg.Agent.RPGPromptFile, agent.DefaultSpecialistPrompt)
	if err != nil {
		logger.Error("specialist prompt load failed", "err", err)
		return 1
	}

	chats, err := chat.NewStore(cfg.Chat.Dir)
	if err != nil {
		logger.Error("chat store init failed", "dir", cfg.Chat.Dir, "err", err)
		return 1
	}

	checkers := make([]health.Checker, 0, len(handles))
	for _, h := range handles {
		checkers = append(checkers, health.Checker{
			Name: "mcp_" + h.Name(),
			Check: func(ctx context.Context) error {
				_, err := h.Functions(ctx)
				return err
			},
		})
	}

	runner := newRunner(cfg, settingsFile, catalog, active, orchPrompt, specPrompt, logger)

	webSrv, err := web.New(web.Config{
		Chats:          chats,
		Settings:       settingsFile,
		Runner:         runner,
		Health:         health.New(checkers...),
		MetricsHandler: promhttp.Handler(),
		Metrics:        observe.DefaultMetrics(),
		Logger:         logger,
	})
	if err != nil {
		logger.Error("web server init failed", "err", err)
		return 1
	}

	logger.Info("fabric ready", "mcps", len(handles), "functions", catalog.Size())

	var g errgroup.Group
	g.Go(func() error { return webSrv.Run(ctx, cfg.Web.Addr) })

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("run error", "err", err)
		return 1
	}
	logger.Info("mcp-agent shut down")
	return 0
}

// resolveActive picks the active MCP set. Precedence: CLI argument, then the
// ACTIVE_MCPS environment variable, then the settings file, then the config
// default.
func resolveActive(cfg *config.Config, sf *settings.File, cliArg string) []string {
	if csv := strings.TrimSpace(cliArg); csv != "" {
		return splitCSV(csv)
	}
	if csv := strings.TrimSpace(os.Getenv("ACTIVE_MCPS")); csv != "" {
		return splitCSV(csv)
	}
	if csv := strings.TrimSpace(sf.Get().ActiveMCPs); csv != "" {
		return splitCSV(csv)
	}
	return cfg.MCP.Active
}

func splitCSV(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// loadPrompt reads a prompt override file, or returns fallback when no file
// is configured.
func loadPrompt(path, fallback string) (string, error) {
	if path == "" {
		return fallback, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt %q: %w", path, err)
	}
	if s := strings.TrimSpace(string(data)); s != "" {
		return s, nil
	}
	return "", fmt.Errorf("prompt file %q is empty", path)
}

// newRunner builds the per-message agent runner for the web surface. Each
// message constructs a fresh orchestrator so the current settings model and
// the caller's notifier apply to exactly that run.
func newRunner(cfg *config.Config, sf *settings.File, catalog *agent.Catalog,
	active []string, orchPrompt, specPrompt string, logger *slog.Logger) web.RunnerFunc {

	// The orchestrator never sees the RPG functions directly; it reaches
	// them through the delegation tool.
	orchAllow := make([]string, 0, len(active))
	for _, key := range active {
		if key != rpgMCPKey {
			orchAllow = append(orchAllow, key)
		}
	}
	hasRPG := slices.Contains(active, rpgMCPKey)

	return func(ctx context.Context, history []types.Message, n agent.Notifier) (agent.Result, error) {
		provider, err := config.BuildProvider(cfg, sf.Get().SelectedModel)
		if err != nil {
			return agent.Result{}, err
		}

		locals := []agent.LocalTool{agent.NewShowImageTool()}
		if hasRPG {
			delegate, err := agent.NewDelegateTool(agent.DelegateConfig{
				Provider:     provider,
				Catalog:      catalog,
				MCPKey:       rpgMCPKey,
				SystemPrompt: specPrompt,
				Notifier:     n,
				Logger:       logger,
			})
			if err != nil {
				return agent.Result{}, err
			}
			locals = append(locals, delegate)
		}

		orch, err := agent.New(agent.Config{
			Provider:     provider,
			SystemPrompt: orchPrompt,
			Catalog:      catalog,
			AllowMCPs:    orchAllow,
			LocalTools:   locals,
			Notifier:     n,
			Logger:       logger.With("agent", "orchestrator"),
		})
		if err != nil {
			return agent.Result{}, err
		}
		return orch.Run(ctx, history)
	}
}

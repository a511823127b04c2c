package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config]. A missing file is not an
// error: the defaults apply.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		applyEnv(cfg)
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults, applies
// environment overrides, and validates the result. Unknown keys are
// rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}

	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv folds environment overrides into cfg. The file stays the source
// of record for everything else; only endpoint and address overrides come
// from the environment.
func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENAI_API_BASE"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("GAME_SERVER_ADDR"); v != "" {
		cfg.Game.Addr = v
		cfg.RPGMCP.ServerAddr = v
	}
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Logging.Level.IsValid() {
		errs = append(errs, fmt.Errorf("logging.level %q is invalid; valid values: debug, info, warn, error", cfg.Logging.Level))
	}
	if !cfg.Logging.Format.IsValid() {
		errs = append(errs, fmt.Errorf("logging.format %q is invalid; valid values: text, json", cfg.Logging.Format))
	}

	if !cfg.LLM.Provider.IsValid() {
		errs = append(errs, fmt.Errorf("llm.provider %q is invalid; valid values: openai, anyllm, mock", cfg.LLM.Provider))
	}
	if cfg.LLM.Provider != ProviderMock && cfg.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if cfg.LLM.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeout_seconds %d must be positive", cfg.LLM.TimeoutSeconds))
	}

	if len(cfg.MCP.Active) == 0 {
		errs = append(errs, errors.New("mcp.active must name at least one MCP"))
	}
	if cfg.MCP.StartupDeadlineSeconds <= 0 {
		errs = append(errs, fmt.Errorf("mcp.startup_deadline_seconds %d must be positive", cfg.MCP.StartupDeadlineSeconds))
	}
	if cfg.MCP.PollIntervalMS <= 0 {
		errs = append(errs, fmt.Errorf("mcp.poll_interval_ms %d must be positive", cfg.MCP.PollIntervalMS))
	}
	for i, d := range cfg.MCP.Registry {
		prefix := fmt.Sprintf("mcp.registry[%d]", i)
		if d.Key == "" {
			errs = append(errs, fmt.Errorf("%s.key is required", prefix))
		}
		if d.DefaultPort <= 0 || d.DefaultPort > 65535 {
			errs = append(errs, fmt.Errorf("%s.default_port %d is out of range", prefix, d.DefaultPort))
		}
	}

	if cfg.Web.Addr == "" {
		errs = append(errs, errors.New("web.addr is required"))
	}
	if cfg.Chat.Dir == "" {
		errs = append(errs, errors.New("chat.dir is required"))
	}
	if cfg.Settings.File == "" {
		errs = append(errs, errors.New("settings.file is required"))
	}

	if cfg.Game.Addr == "" {
		errs = append(errs, errors.New("game.addr is required"))
	}
	if cfg.Game.SavesDir == "" {
		errs = append(errs, errors.New("game.saves_dir is required"))
	}
	if cfg.Game.World.Name == "" {
		errs = append(errs, errors.New("game.world.name is required"))
	}
	if cfg.Game.World.Width <= 0 || cfg.Game.World.Height <= 0 {
		errs = append(errs, fmt.Errorf("game.world dimensions %dx%d must be positive", cfg.Game.World.Width, cfg.Game.World.Height))
	}
	if cfg.Game.World.POICount < 1 {
		errs = append(errs, fmt.Errorf("game.world.poi_count %d must be at least 1", cfg.Game.World.POICount))
	}
	if cfg.Game.World.FactionCount < 1 {
		errs = append(errs, fmt.Errorf("game.world.faction_count %d must be at least 1", cfg.Game.World.FactionCount))
	}
	if cfg.Game.Simulation.Enabled && cfg.Game.Simulation.Schedule == "" {
		errs = append(errs, errors.New("game.simulation.schedule is required when enabled"))
	}
	if cfg.Game.Autosave.Enabled && cfg.Game.Autosave.Schedule == "" {
		errs = append(errs, errors.New("game.autosave.schedule is required when enabled"))
	}

	if cfg.RPGMCP.ServerAddr == "" {
		errs = append(errs, errors.New("rpg_mcp.server_addr is required"))
	}
	if cfg.RPGMCP.CharacterID == "" {
		errs = append(errs, errors.New("rpg_mcp.character_id is required"))
	}
	if cfg.RPGMCP.JournalFile == "" {
		errs = append(errs, errors.New("rpg_mcp.journal_file is required"))
	}

	if cfg.FilesMCP.BaseDir == "" {
		errs = append(errs, errors.New("files_mcp.base_dir is required"))
	}

	return errors.Join(errs...)
}

// Package config provides the YAML configuration schema and loader shared by
// all binaries. Each binary reads the sections it cares about: the
// orchestrator uses llm/agent/mcp/web/chat/settings, the game server uses
// game, and the MCP binaries use their own blocks.
package config

import (
	"github.com/Beykus-Y/mcp-agent/internal/mcp"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// LogFormat selects the slog handler.
type LogFormat string

const (
	LogText LogFormat = "text"
	LogJSON LogFormat = "json"
)

// IsValid reports whether f is a recognised log format.
func (f LogFormat) IsValid() bool {
	return f == LogText || f == LogJSON
}

// LLMProviderKind selects the LLM backend implementation.
type LLMProviderKind string

const (
	ProviderOpenAI LLMProviderKind = "openai"
	ProviderAnyLLM LLMProviderKind = "anyllm"
	ProviderMock   LLMProviderKind = "mock"
)

// IsValid reports whether k is a recognised provider kind.
func (k LLMProviderKind) IsValid() bool {
	switch k {
	case ProviderOpenAI, ProviderAnyLLM, ProviderMock:
		return true
	}
	return false
}

// Config is the root configuration structure, loaded from YAML via [Load].
type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	LLM      LLMConfig      `yaml:"llm"`
	Agent    AgentConfig    `yaml:"agent"`
	MCP      MCPConfig      `yaml:"mcp"`
	Web      WebConfig      `yaml:"web"`
	Chat     ChatConfig     `yaml:"chat"`
	Settings SettingsConfig `yaml:"settings"`
	Game     GameConfig     `yaml:"game"`
	RPGMCP   RPGMCPConfig   `yaml:"rpg_mcp"`
	FilesMCP FilesMCPConfig `yaml:"files_mcp"`
}

// LoggingConfig selects log verbosity and output shape.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// LLMConfig configures the LLM backend shared by orchestrator and
// specialists. The API key always comes from the environment, never from the
// file.
type LLMConfig struct {
	// Provider selects the backend implementation.
	Provider LLMProviderKind `yaml:"provider"`

	// Model is the model id. For the anyllm provider it is the combined
	// "provider/model" form.
	Model string `yaml:"model"`

	// BaseURL overrides the provider's default endpoint. The
	// OPENAI_API_BASE environment variable overrides this in turn.
	BaseURL string `yaml:"base_url"`

	// TimeoutSeconds bounds a single completion call.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	// FallbackModels are tried in order when the primary model fails.
	FallbackModels []string `yaml:"fallback_models"`
}

// AgentConfig points at optional prompt override files; the embedded prompts
// are used otherwise.
type AgentConfig struct {
	OrchestratorPromptFile string `yaml:"orchestrator_prompt_file"`
	RPGPromptFile          string `yaml:"rpg_prompt_file"`
}

// MCPConfig configures MCP launch and discovery.
type MCPConfig struct {
	// Active is the default MCP key list; overridden by the CLI arg, the
	// ACTIVE_MCPS environment variable, or the settings file.
	Active []string `yaml:"active"`

	// StartupDeadlineSeconds bounds the wait for all MCPs to answer
	// GET /functions at startup.
	StartupDeadlineSeconds int `yaml:"startup_deadline_seconds"`

	// PollIntervalMS is the readiness re-poll interval.
	PollIntervalMS int `yaml:"poll_interval_ms"`

	// Registry holds extra or overriding MCP descriptors merged over the
	// built-in ones.
	Registry []mcp.Descriptor `yaml:"registry"`
}

// WebConfig configures the orchestrator's HTTP surface.
type WebConfig struct {
	Addr string `yaml:"addr"`
}

// ChatConfig configures the chat session store.
type ChatConfig struct {
	Dir string `yaml:"dir"`
}

// SettingsConfig configures the runtime settings file.
type SettingsConfig struct {
	File string `yaml:"file"`
}

// GameConfig configures the game server binary.
type GameConfig struct {
	// Addr is the TCP listen address for the game protocol.
	Addr string `yaml:"addr"`

	// SavesDir is the root of the characters/ and worlds/ save trees.
	SavesDir string `yaml:"saves_dir"`

	World      WorldConfig `yaml:"world"`
	Simulation JobConfig   `yaml:"simulation"`
	Autosave   JobConfig   `yaml:"autosave"`
}

// WorldConfig parameterises world generation for worlds without a saved
// template.
type WorldConfig struct {
	Name string `yaml:"name"`

	// Seed 0 means a random seed per generation.
	Seed int64 `yaml:"seed"`

	Width        int `yaml:"width"`
	Height       int `yaml:"height"`
	POICount     int `yaml:"poi_count"`
	FactionCount int `yaml:"faction_count"`
}

// JobConfig is one scheduled background job.
type JobConfig struct {
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron descriptor, e.g. "@every 5m".
	Schedule string `yaml:"schedule"`
}

// RPGMCPConfig configures the RPG MCP binary.
type RPGMCPConfig struct {
	// ServerAddr is the game server's TCP address.
	ServerAddr string `yaml:"server_addr"`

	// CharacterID is the save the MCP logs in as.
	CharacterID string `yaml:"character_id"`

	// JournalFile is the SQLite event journal path.
	JournalFile string `yaml:"journal_file"`
}

// FilesMCPConfig configures the files MCP binary.
type FilesMCPConfig struct {
	// BaseDir is the sandbox root.
	BaseDir string `yaml:"base_dir"`
}

// Default returns the configuration used when no file (or an empty file) is
// given. Load decodes the YAML over this, so absent keys keep these values.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: LogInfo, Format: LogText},
		LLM: LLMConfig{
			Provider:       ProviderOpenAI,
			Model:          "gpt-4o",
			TimeoutSeconds: 60,
		},
		MCP: MCPConfig{
			Active:                 []string{"files", "rpg"},
			StartupDeadlineSeconds: 30,
			PollIntervalMS:         500,
		},
		Web:      WebConfig{Addr: "127.0.0.1:8090"},
		Chat:     ChatConfig{Dir: "chats"},
		Settings: SettingsConfig{File: "settings.json"},
		Game: GameConfig{
			Addr:     "127.0.0.1:5555",
			SavesDir: "saves",
			World: WorldConfig{
				Name:         "Aldervale",
				Width:        60,
				Height:       40,
				POICount:     8,
				FactionCount: 3,
			},
			Simulation: JobConfig{Enabled: true, Schedule: "@every 5m"},
			Autosave:   JobConfig{Enabled: true, Schedule: "@every 2m"},
		},
		RPGMCP: RPGMCPConfig{
			ServerAddr:  "127.0.0.1:5555",
			CharacterID: "save_1",
			JournalFile: "rpg_journal.db",
		},
		FilesMCP: FilesMCPConfig{BaseDir: "mcp_files_data"},
	}
}

// BuildRegistry merges the config's extra descriptors over the built-in MCP
// registry.
func (c *Config) BuildRegistry() *mcp.Registry {
	r := mcp.DefaultRegistry()
	for _, d := range c.MCP.Registry {
		r.Register(d)
	}
	return r
}

package config

import "slices"

// Diff describes what changed between two configs, restricted to the fields
// that are safe to apply without a restart: log verbosity and the LLM model
// selection. Everything else (addresses, directories, registry entries)
// requires a process restart and is deliberately not tracked.
type Diff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ModelChanged bool
	NewModel     string

	FallbacksChanged bool
	NewFallbacks     []string
}

// Any reports whether the diff carries at least one hot-reloadable change.
func (d Diff) Any() bool {
	return d.LogLevelChanged || d.ModelChanged || d.FallbacksChanged
}

// Compare returns the hot-reloadable differences between old and new.
func Compare(old, new *Config) Diff {
	var d Diff

	if old.Logging.Level != new.Logging.Level {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Logging.Level
	}
	if old.LLM.Model != new.LLM.Model {
		d.ModelChanged = true
		d.NewModel = new.LLM.Model
	}
	if !slices.Equal(old.LLM.FallbackModels, new.LLM.FallbackModels) {
		d.FallbacksChanged = true
		d.NewFallbacks = slices.Clone(new.LLM.FallbackModels)
	}
	return d
}

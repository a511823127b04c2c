package client

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ReadinessConfig tunes [WaitReady]. Zero fields take defaults.
type ReadinessConfig struct {
	// Interval between poll rounds. Values below 500ms are raised to 500ms
	// so freshly spawned processes are not hammered. Default: 500ms.
	Interval time.Duration

	// RequestTimeout bounds each individual probe. Default: 1s.
	RequestTimeout time.Duration

	// Deadline bounds the whole wait. Default: 30s.
	Deadline time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

func (c ReadinessConfig) withDefaults() ReadinessConfig {
	if c.Interval < 500*time.Millisecond {
		c.Interval = 500 * time.Millisecond
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = time.Second
	}
	if c.Deadline <= 0 {
		c.Deadline = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// WaitReady polls every handle's /functions endpoint until all answer or the
// deadline passes. An MCP is ready once a probe succeeds; later polls skip
// it. On timeout the error names every MCP that never became ready, so the
// operator sees the full set of broken services at once.
func WaitReady(ctx context.Context, handles []*Handle, cfg ReadinessConfig) error {
	cfg = cfg.withDefaults()

	waitCtx, cancel := context.WithTimeout(ctx, cfg.Deadline)
	defer cancel()

	ready := make(map[*Handle]bool, len(handles))
	start := time.Now()

	for {
		for _, h := range handles {
			if ready[h] {
				continue
			}
			probeCtx, probeCancel := context.WithTimeout(waitCtx, cfg.RequestTimeout)
			_, err := h.Functions(probeCtx)
			probeCancel()
			if err != nil {
				cfg.Logger.Debug("mcp not ready yet", "mcp", h.name, "err", err)
				continue
			}
			ready[h] = true
			cfg.Logger.Info("mcp ready", "mcp", h.name, "elapsed", time.Since(start).Round(time.Millisecond))
		}

		if len(ready) == len(handles) {
			return nil
		}

		select {
		case <-waitCtx.Done():
			var unready []string
			for _, h := range handles {
				if !ready[h] {
					unready = append(unready, h.name)
				}
			}
			return fmt.Errorf("mcpclient: not ready after %s: %s",
				cfg.Deadline, strings.Join(unready, ", "))
		case <-time.After(cfg.Interval):
		}
	}
}

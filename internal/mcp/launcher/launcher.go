// Package launcher spawns and supervises the MCP service processes selected
// for a run. Each MCP runs as a separate OS process; its stdout and stderr
// are forwarded line by line into the launcher's structured log, tagged with
// the MCP's registry key.
package launcher

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Beykus-Y/mcp-agent/internal/mcp"
)

// defaultGrace is how long Stop waits after SIGTERM before force-killing.
const defaultGrace = 5 * time.Second

// proc is one supervised MCP process.
type proc struct {
	desc mcp.Descriptor
	cmd  *exec.Cmd
	done chan struct{} // closed once the process is reaped
}

// Supervisor owns the lifecycle of the spawned MCP processes.
type Supervisor struct {
	log      *slog.Logger
	grace    time.Duration
	procs    []*proc
	active   []string
	group    errgroup.Group
	stopping atomic.Bool
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Supervisor) { s.log = l }
}

// WithGrace overrides the SIGTERM grace period used by [Supervisor.Stop].
func WithGrace(d time.Duration) Option {
	return func(s *Supervisor) { s.grace = d }
}

// New creates an empty Supervisor. Call [Supervisor.Start] to spawn MCPs.
func New(opts ...Option) *Supervisor {
	s := &Supervisor{
		log:   slog.Default(),
		grace: defaultGrace,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start spawns one process per descriptor. Every child receives the full
// active-set key list both in the ACTIVE_MCPS environment variable and as a
// trailing positional argument, plus PORT set to its own listen port. If any
// spawn fails, the already-started processes are stopped and the error names
// the MCP that could not be launched.
func (s *Supervisor) Start(ctx context.Context, descs []mcp.Descriptor, active []string) error {
	activeCSV := strings.Join(active, ",")
	s.active = append([]string(nil), active...)

	for _, d := range descs {
		if err := s.spawn(ctx, d, activeCSV); err != nil {
			s.Stop()
			return fmt.Errorf("launcher: start %s: %w", d.Key, err)
		}
	}
	return nil
}

func (s *Supervisor) spawn(ctx context.Context, d mcp.Descriptor, activeCSV string) error {
	if len(d.Command) == 0 {
		return fmt.Errorf("descriptor has no command")
	}

	args := append(append([]string(nil), d.Command[1:]...), activeCSV)
	cmd := exec.CommandContext(ctx, d.Command[0], args...)

	// Context cancellation delivers SIGTERM, not the default SIGKILL, so
	// children can persist state; WaitDelay bounds how long that can take.
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = s.grace

	cmd.Env = append(os.Environ(),
		"PORT="+strconv.Itoa(d.Port()),
		"ACTIVE_MCPS="+activeCSV,
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn: %w", err)
	}

	p := &proc{desc: d, cmd: cmd, done: make(chan struct{})}
	s.procs = append(s.procs, p)
	s.log.Info("mcp launched",
		"mcp", d.Key,
		"pid", cmd.Process.Pid,
		"port", d.Port(),
		"command", strings.Join(d.Command, " "))

	s.group.Go(func() error {
		var pipes errgroup.Group
		pipes.Go(func() error { s.forward(d.Key, "stdout", slog.LevelInfo, stdout); return nil })
		pipes.Go(func() error { s.forward(d.Key, "stderr", slog.LevelWarn, stderr); return nil })
		_ = pipes.Wait()

		err := cmd.Wait()
		close(p.done)
		switch {
		case err == nil:
			s.log.Info("mcp exited", "mcp", d.Key)
		case s.stopping.Load():
			s.log.Info("mcp stopped", "mcp", d.Key, "result", err.Error())
		default:
			s.log.Error("mcp exited unexpectedly", "mcp", d.Key, "err", err)
		}
		return nil
	})
	return nil
}

// forward copies one child stream into the log, line by line.
func (s *Supervisor) forward(key, stream string, level slog.Level, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		s.log.Log(context.Background(), level, scanner.Text(), "mcp", key, "stream", stream)
	}
	if err := scanner.Err(); err != nil {
		s.log.Warn("mcp stream read failed", "mcp", key, "stream", stream, "err", err)
	}
}

// Stop terminates all supervised processes: SIGTERM first, then SIGKILL for
// anything still running after the grace period. It blocks until every
// process is reaped and its log streams are drained. Safe to call more than
// once.
func (s *Supervisor) Stop() {
	s.stopping.Store(true)

	for _, p := range s.procs {
		if p.cmd.Process != nil {
			_ = p.cmd.Process.Signal(syscall.SIGTERM)
		}
	}

	deadline := time.Now().Add(s.grace)
	for _, p := range s.procs {
		select {
		case <-p.done:
		case <-time.After(time.Until(deadline)):
			s.log.Warn("mcp did not exit in time, killing", "mcp", p.desc.Key)
			if p.cmd.Process != nil {
				_ = p.cmd.Process.Kill()
			}
			<-p.done
		}
	}

	_ = s.group.Wait()
}

// Manifest describes the running fabric as environment-style pairs: each
// MCP's port under its descriptor's port variable, plus the active set.
func (s *Supervisor) Manifest() map[string]string {
	m := make(map[string]string, len(s.procs)+1)
	m["ACTIVE_MCPS"] = strings.Join(s.active, ",")
	for _, p := range s.procs {
		if p.desc.PortEnv != "" {
			m[p.desc.PortEnv] = strconv.Itoa(p.desc.Port())
		}
	}
	return m
}

// WriteManifest persists the manifest to path in dotenv format so external
// tooling can locate the spawned services.
func (s *Supervisor) WriteManifest(path string) error {
	if err := godotenv.Write(s.Manifest(), path); err != nil {
		return fmt.Errorf("launcher: write manifest: %w", err)
	}
	return nil
}

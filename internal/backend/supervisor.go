package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dellis86/sidekick/internal/process"
	"github.com/dellis86/sidekick/internal/sink"
)

// outputPrefix marks backend process output lines in the shared sink so
// they are distinguishable from stream-dispatched developer messages.
const outputPrefix = "[forge]"

// Logger defines the logging interface for the supervisor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config holds configuration for the backend supervisor.
type Config struct {
	// Python is the runtime executable used to spawn the backend.
	Python string

	// Module is the python module invoked as `<python> -m <module>`.
	Module string

	// WorkDir is the resolved workspace root the backend runs in.
	WorkDir string

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// OnSpawn is invoked after a successful spawn with the new PID.
	OnSpawn func(pid int)

	// OnExit is invoked when a process we spawned exits, with its code.
	OnExit func(code int)
}

// Supervisor decides whether the backend process needs to be spawned and
// owns its lifecycle. At most one process handle is held at a time, and
// Stop only acts on a process this supervisor started.
type Supervisor struct {
	cfg    Config
	prober Prober
	out    sink.Sink
	logger Logger

	mu          sync.Mutex
	proc        *process.Manager
	startedByUs bool
}

// NewSupervisor creates a supervisor for the backend process.
func NewSupervisor(cfg Config, prober Prober, out sink.Sink) *Supervisor {
	return &Supervisor{
		cfg:    cfg,
		prober: prober,
		out:    out,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the supervisor.
func (s *Supervisor) SetLogger(logger Logger) {
	s.logger = logger
}

// EnsureRunning makes sure a backend instance is serving: it holds the
// handle we already spawned, an externally-managed instance answers the
// health probe, or a new process is spawned in the configured workspace.
//
// Spawn failures are logged and swallowed; callers must tolerate a degraded
// state and the next EnsureRunning retries from scratch. The whole decision
// runs under the supervisor's mutex so concurrent callers cannot both
// observe "no live process" and spawn duplicates.
func (s *Supervisor) EnsureRunning(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.proc != nil && s.proc.IsRunning() {
		return
	}

	// The previous handle is confirmed dead; release it before deciding.
	if s.proc != nil {
		s.logger.Debug("releasing exited backend handle", "exit_code", s.proc.ExitCode())
		s.proc = nil
		s.startedByUs = false
	}

	if s.prober.IsReachable(ctx) {
		s.logger.Info("backend already reachable, not spawning")
		return
	}

	if err := s.spawnLocked(); err != nil {
		s.logger.Error("backend spawn failed", "error", err)
	}
}

// spawnLocked starts the backend process. Caller holds s.mu. The caller's
// context deliberately plays no part: the spawned process belongs to the
// supervisor and ends only through Stop or its own exit.
func (s *Supervisor) spawnLocked() error {
	proc := process.NewManager(process.Config{
		Name:            "forge",
		Binary:          s.cfg.Python,
		Args:            []string{"-m", s.cfg.Module},
		WorkDir:         s.cfg.WorkDir,
		GracefulTimeout: s.cfg.GracefulTimeout,
		OnLine:          s.forwardOutput,
		OnExit:          s.observeExit,
	})

	if err := proc.Start(); err != nil {
		return fmt.Errorf("spawning backend: %w", err)
	}

	s.proc = proc
	s.startedByUs = true

	pid := proc.PID()
	s.logger.Info("backend spawned",
		"python", s.cfg.Python,
		"module", s.cfg.Module,
		"workdir", s.cfg.WorkDir,
		"pid", pid,
	)
	if s.cfg.OnSpawn != nil {
		s.cfg.OnSpawn(pid)
	}

	return nil
}

// forwardOutput relays one captured backend output line to the shared sink.
// Empty lines are dropped.
func (s *Supervisor) forwardOutput(_, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	s.out.WriteLine(fmt.Sprintf("%s %s", outputPrefix, text))
}

// observeExit logs the exit of a process we spawned.
func (s *Supervisor) observeExit(code int) {
	s.logger.Warn("backend process exited", "exit_code", code)
	if s.cfg.OnExit != nil {
		s.cfg.OnExit(code)
	}
}

// Stop terminates the backend if and only if this supervisor started it.
// The handle is always released afterward; errors are logged and swallowed
// so shutdown always completes. Safe to call when nothing is running.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	proc := s.proc
	startedByUs := s.startedByUs
	s.proc = nil
	s.startedByUs = false
	s.mu.Unlock()

	if proc == nil || !startedByUs {
		return
	}

	if err := proc.Stop(); err != nil {
		s.logger.Warn("error stopping backend process", "error", err)
	}
}

// Snapshot is a point-in-time view of the supervised process.
type Snapshot struct {
	Running     bool `json:"running"`
	StartedByUs bool `json:"started_by_us"`
	PID         int  `json:"pid,omitempty"`
	ExitCode    int  `json:"exit_code,omitempty"`
}

// Snapshot reports the current process state for introspection.
func (s *Supervisor) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{StartedByUs: s.startedByUs}
	if s.proc != nil {
		snap.Running = s.proc.IsRunning()
		snap.PID = s.proc.PID()
		if !snap.Running {
			snap.ExitCode = s.proc.ExitCode()
		}
	}
	return snap
}

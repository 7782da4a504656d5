package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	_ "github.com/dellis86/sidekick/migrations"

	"github.com/dellis86/sidekick/internal/api"
	"github.com/dellis86/sidekick/internal/backend"
	"github.com/dellis86/sidekick/internal/infrastructure/config"
	"github.com/dellis86/sidekick/internal/infrastructure/database"
	"github.com/dellis86/sidekick/internal/infrastructure/logging"
	"github.com/dellis86/sidekick/internal/infrastructure/mqtt"
	"github.com/dellis86/sidekick/internal/infrastructure/telemetry"
	"github.com/dellis86/sidekick/internal/journal"
	"github.com/dellis86/sidekick/internal/sink"
	"github.com/dellis86/sidekick/internal/stream"
)

// recordTimeout bounds a single journal write from an event observer.
const recordTimeout = 2 * time.Second

func newRunCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Supervise the forge backend and stream its events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, *configPath)
		},
	}
}

// loadConfig loads the config file if one exists. A missing file is only an
// error when the path was given explicitly; otherwise the built-in defaults
// apply so the shim works with zero configuration.
func loadConfig(flagValue string) (*config.Config, error) {
	path := resolveConfigPath(flagValue)
	if _, err := os.Stat(path); err != nil {
		if flagValue != "" {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		return config.Default(), nil
	}
	return config.Load(path)
}

func run(ctx context.Context, configFlag string) error {
	cfg, err := loadConfig(configFlag)
	if err != nil {
		return err
	}

	log := logging.New(cfg.Logging, version)
	sessionID := uuid.NewString()
	log.Info("starting sidekick",
		"version", version,
		"commit", commit,
		"session_id", sessionID,
		"backend_url", cfg.Backend.URL,
	)

	// Developer-facing output goes to stdout through a buffered sink so a
	// slow terminal never stalls the read loop or output capture.
	console := sink.NewBuffered(sink.NewConsole(os.Stdout), 1024)
	defer console.Close()
	out := sink.NewFanout(console)

	// Optional event journal.
	var events *journal.Journal
	if cfg.Journal.Enabled {
		db, dbErr := database.Open(database.Config{
			Path:        cfg.Journal.Path,
			WALMode:     cfg.Journal.WALMode,
			BusyTimeout: cfg.Journal.BusyTimeout,
		})
		if dbErr != nil {
			return fmt.Errorf("opening journal database: %w", dbErr)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.Error("closing journal database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}

		events = journal.New(db, sessionID)
		log.Info("journal ready", "path", cfg.Journal.Path)
	}

	// Optional MQTT event relay. A missing broker degrades the relay, not
	// the shim.
	var relay *mqtt.Client
	if cfg.MQTT.Enabled {
		relay, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("mqtt relay unavailable", "error", err)
		} else {
			relay.SetLogger(log)
			defer relay.Close() //nolint:errcheck
			log.Info("mqtt relay connected", "host", cfg.MQTT.Host, "port", cfg.MQTT.Port)
		}
	}

	// Optional telemetry recorder.
	var recorder *telemetry.Client
	if cfg.Telemetry.Enabled {
		recorder, err = telemetry.Connect(cfg.Telemetry)
		if err != nil && !errors.Is(err, telemetry.ErrDisabled) {
			log.Warn("telemetry unavailable", "error", err)
			recorder = nil
		} else if recorder != nil {
			recorder.SetOnError(func(writeErr error) {
				log.Warn("telemetry write failed", "error", writeErr)
			})
			defer recorder.Close() //nolint:errcheck
			log.Info("telemetry connected", "url", cfg.Telemetry.URL)
		}
	}

	// recordEvent fans one session event out to every configured observer.
	recordEvent := func(kind, taskID, detail string) {
		if events != nil {
			recordCtx, cancel := context.WithTimeout(context.Background(), recordTimeout)
			if recErr := events.Record(recordCtx, kind, taskID, detail); recErr != nil {
				log.Warn("journal write failed", "kind", kind, "error", recErr)
			}
			cancel()
		}
		if relay != nil {
			if pubErr := relay.PublishEvent(sessionID, kind, taskID, detail); pubErr != nil {
				log.Warn("mqtt relay publish failed", "kind", kind, "error", pubErr)
			}
		}
		if recorder != nil {
			recorder.RecordEvent(sessionID, kind)
		}
	}

	// Process supervisor.
	prober := backend.NewHTTPProber(cfg.Backend.URL, cfg.Backend.GetProbeTimeout())
	workDir := backend.ResolveWorkspaceRoot(cfg.Workspace.Root)
	supervisor := backend.NewSupervisor(backend.Config{
		Python:          cfg.Backend.PythonExecutable(),
		Module:          cfg.Backend.Module,
		WorkDir:         workDir,
		GracefulTimeout: cfg.Backend.GetGracefulTimeout(),
		OnSpawn: func(pid int) {
			recordEvent(journal.KindSpawn, "", fmt.Sprintf("pid=%d", pid))
		},
		OnExit: func(code int) {
			recordEvent(journal.KindExit, "", fmt.Sprintf("code=%d", code))
		},
	}, prober, out)
	supervisor.SetLogger(log)

	// Stream client.
	client := stream.NewClient(stream.Config{
		OnConnect: func(streamURL string) {
			recordEvent(journal.KindConnect, "", streamURL)
		},
		OnDisconnect: func(streamURL string, discErr error) {
			detail := streamURL
			if discErr != nil {
				detail = fmt.Sprintf("%s: %v", streamURL, discErr)
			}
			recordEvent(journal.KindDisconnect, "", detail)
		},
		OnMessage: func(msg stream.Message) {
			switch msg.Type {
			case stream.TypeTaskCompleted:
				recordEvent(journal.KindTaskCompleted, msg.TaskID, "")
			case stream.TypeTaskFailed:
				recordEvent(journal.KindTaskFailed, msg.TaskID, msg.Error)
			}
		},
		OnReconnectScheduled: func(attempt int, delay time.Duration) {
			if recorder != nil {
				recorder.RecordReconnectDelay(sessionID, attempt, delay)
			}
		},
	}, out)
	client.SetLogger(log)

	service := backend.NewService(cfg.Backend.URL, supervisor, client)
	defer service.Shutdown()

	// Local status API.
	if cfg.API.Enabled {
		server, apiErr := api.New(api.Deps{
			Config:     cfg.API,
			Logger:     log,
			Supervisor: supervisor,
			Stream:     client,
			Events:     eventSource(events),
			BaseURL:    cfg.Backend.URL,
			SessionID:  sessionID,
			Version:    version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating api server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting api server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("closing api server", "error", closeErr)
			}
		}()
	}

	service.EnsureReady(ctx)
	log.Info("sidekick ready", "workdir", workDir)

	<-ctx.Done()
	log.Info("shutting down")

	return nil
}

// eventSource converts a possibly-nil journal into the API's event source
// without handing the server a non-nil interface around a nil pointer.
func eventSource(j *journal.Journal) api.EventSource {
	if j == nil {
		return nil
	}
	return j
}

// Package daemonrun wires the daemon process: logging, the job store, the
// workflow manager with its ten stages, the IPC server, and the optional
// AMQP intake. Both `loomd` and `loom daemon run` call into it so the two
// entrypoints cannot drift apart.
package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"loom/internal/config"
	"loom/internal/daemon"
	"loom/internal/events"
	"loom/internal/intake"
	"loom/internal/ipc"
	"loom/internal/logging"
	"loom/internal/pipeline"
	"loom/internal/queue"
	"loom/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
}

// SocketPath returns the daemon's IPC socket location for cfg.
func SocketPath(cfg *config.Config) string {
	if cfg == nil {
		return filepath.Join(os.TempDir(), "loomd.sock")
	}
	return filepath.Join(cfg.Paths.LogDir, "loomd.sock")
}

// Run starts the daemon runtime loop and blocks until SIGINT/SIGTERM or the
// parent context ends.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.NewForDaemon(level, cfg.Logging.Format, cfg.Paths.LogDir)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{
			Dir:     cfg.Paths.LogDir,
			Pattern: "*.log",
			Exclude: []string{filepath.Join(cfg.Paths.LogDir, logging.LogFileName)},
		},
	)

	pidPath := filepath.Join(cfg.Paths.LogDir, "loomd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}
	defer store.Close()

	deps, err := pipeline.NewDependencies(cfg, logger)
	if err != nil {
		return fmt.Errorf("build pipeline dependencies: %w", err)
	}

	publisher := events.NewPublisher(cfg, logger)
	defer publisher.Close()

	manager := workflow.NewManager(cfg, store, logger,
		workflow.WithPublisher(publisher),
		workflow.WithBudget(deps.Budget),
	)
	manager.ConfigureStages(pipeline.Stages(cfg, store, logger, deps))

	d, err := daemon.New(cfg, store, logger, manager,
		daemon.WithPublisher(publisher),
		daemon.WithCatalog(deps.Catalog),
	)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(signalCtx, SocketPath(cfg), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	consumer, err := intake.NewConsumer(cfg, d, logger)
	if err != nil {
		return fmt.Errorf("create intake consumer: %w", err)
	}
	if consumer.Enabled() {
		if err := consumer.Start(signalCtx); err != nil {
			logger.Warn("intake consumer failed to start",
				logging.Error(err),
				logging.String(logging.FieldEventType, "intake_start_failed"),
			)
		} else {
			defer consumer.Close()
		}
	}

	if err := d.Start(signalCtx); err != nil {
		logger.Warn("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
		)
	}

	<-signalCtx.Done()
	logger.Info("loom daemon shutting down")
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

// Command supervisor runs a single grain's sandbox assembly and init
// process in the foreground (spec §4.1). The backend daemon forks and
// execs this binary once per grain start; it owns the running grain
// until its init process exits or it is asked to shut down.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sandstormgo/internal/config"
	"sandstormgo/internal/supervisor"
)

func main() {
	grainDir := flag.String("grain-dir", "", "grain's on-disk directory")
	appSandbox := flag.String("app-sandbox", "", "app package's read-only sandbox/ tree")
	command := flag.String("command", "", "comma-separated argv to exec as the grain's init")
	devMode := flag.Bool("dev", false, "run in dev-account mode (relaxed sandbox)")
	mountProc := flag.Bool("mount-proc", false, "mount /proc inside the sandbox")
	flag.Parse()

	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if *grainDir == "" || *command == "" {
		log.Error("supervisor: -grain-dir and -command are required")
		os.Exit(1)
	}

	cfg := config.Get()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sup, err := supervisor.Start(ctx, supervisor.Config{
		GrainDir:    *grainDir,
		AppSandbox:  *appSandbox,
		Command:     strings.Split(*command, ","),
		UID:         1000,
		GID:         1000,
		DevMode:     *devMode,
		MountProc:   *mountProc,
		IdleTimeout: time.Duration(cfg.Supervisor.IdleShutdownSec) * time.Second,
		GraceTime:   time.Duration(cfg.Supervisor.GraceSec) * time.Second,
		LogRotate:   int64(cfg.Supervisor.LogRotateBytes),
		LogCheck:    time.Duration(cfg.Supervisor.LogCheckSec) * time.Second,
	}, log)
	if err != nil {
		log.Error("supervisor: failed to start grain", "err", err)
		os.Exit(1)
	}

	waitForExitOrSignal(ctx, sup)
	log.Info("supervisor: shutdown requested", "grain", *grainDir)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Supervisor.GraceSec+2)*time.Second)
	defer cancel()
	if err := sup.Shutdown(shutdownCtx); err != nil {
		log.Warn("supervisor: shutdown error", "err", err)
	}
}

// waitForExitOrSignal blocks until either the host process receives a
// shutdown signal or the grain's init process exits on its own (idle
// timeout or crash), whichever comes first.
func waitForExitOrSignal(ctx context.Context, sup *supervisor.Supervisor) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if sup.Disconnected() {
				return
			}
		}
	}
}

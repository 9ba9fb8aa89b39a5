// Command backend runs the node-local Backend daemon: it owns the
// package store and grain directories, launches grain supervisors on
// demand, and serves the Backend capability over a Unix-domain socket
// (spec §4.2, §6 "Internal cap'n-proto two-party sessions on
// Unix-domain sockets").
package main

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sandstormgo/internal/backend"
	"sandstormgo/internal/config"
	"sandstormgo/internal/ids"
	"sandstormgo/internal/metrics"
	"sandstormgo/internal/pkgstore"
	"sandstormgo/internal/rpc"
	"sandstormgo/internal/supervisor"
)

func main() {
	cfg := config.Get()
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	for _, dir := range []string{cfg.Paths.AppsDir(), cfg.Paths.GrainsDir(), cfg.Paths.PackagesDir()} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			log.Error("backend: failed to create data directory", "dir", dir, "err", err)
			os.Exit(1)
		}
	}

	scratchDir := cfg.Paths.DataRoot + "/scratch"
	if err := os.MkdirAll(scratchDir, 0700); err != nil {
		log.Error("backend: failed to create scratch directory", "err", err)
		os.Exit(1)
	}
	packages := pkgstore.NewStore(cfg.Paths.AppsDir(), scratchDir, nil)

	reg := prometheus.NewRegistry()
	reporter := metrics.NewRegistry(reg)

	be := backend.New(cfg.Paths.DataRoot, packages, launchSupervisor(cfg, packages, log), log)
	be.SetMetrics(reporter)

	srv, lis, err := rpc.ListenUnix(cfg.Paths.APISocket())
	if err != nil {
		log.Error("backend: failed to bind api socket", "err", err)
		os.Exit(1)
	}

	os.Remove(cfg.Paths.ResolveSocket())
	resolveLis, err := net.Listen("unix", cfg.Paths.ResolveSocket())
	if err != nil {
		log.Error("backend: failed to bind resolve socket", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("backend listening", "socket", cfg.Paths.APISocket())
		if err := srv.Serve(lis); err != nil {
			log.Warn("backend: rpc server stopped", "err", err)
		}
	}()

	go func() {
		log.Info("backend resolver listening", "socket", cfg.Paths.ResolveSocket())
		if err := be.ServeResolver(resolveLis); err != nil {
			log.Warn("backend: resolver server stopped", "err", err)
		}
	}()

	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		addr := cfg.Server.BindIP + ":" + cfg.Server.BackendMetricsPort
		log.Info("backend metrics listening", "addr", addr)
		if err := http.ListenAndServe(addr, metricsMux); err != nil {
			log.Warn("backend: metrics server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("backend shutting down")
	srv.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()
	_ = be.Ping(shutdownCtx)
}

// launchSupervisor adapts internal/supervisor.Start to the
// backend.Launcher contract, resolving each grain's sandbox root from
// the package store and its runtime knobs from config (spec §4.1).
func launchSupervisor(cfg *config.Config, packages *pkgstore.Store, log *slog.Logger) backend.Launcher {
	return func(ctx context.Context, req backend.StartGrainRequest, grainDir string) (backend.Supervisor, error) {
		pkgDir, _ := packages.TryGet(req.PackageID)

		sup, err := supervisor.Start(ctx, supervisor.Config{
			GrainDir:    grainDir,
			AppSandbox:  filepath.Join(pkgDir, "sandbox"),
			Command:     req.Command,
			UID:         1000,
			GID:         1000,
			DevMode:     req.DevMode,
			MountProc:   req.MountProc,
			IdleTimeout: time.Duration(cfg.Supervisor.IdleShutdownSec) * time.Second,
			GraceTime:   time.Duration(cfg.Supervisor.GraceSec) * time.Second,
			LogRotate:   int64(cfg.Supervisor.LogRotateBytes),
			LogCheck:    time.Duration(cfg.Supervisor.LogCheckSec) * time.Second,
			BridgeAddr:  grainBridgeAddr(req.GrainID),
		}, log.With("grain", req.GrainID))
		if err != nil {
			return nil, err
		}
		return sup, nil
	}
}

// grainBridgeAddr picks a deterministic loopback port for a grain's
// http-bridge from its grain-id, so the gateway (a separate process)
// can resolve the same address the backend assigns here without a
// shared allocator (spec §4.4). The bridge port range (20000-29999)
// sits above the well-known range and below the ephemeral range on
// most systems.
func grainBridgeAddr(id ids.GrainID) string {
	h := fnv.New32a()
	h.Write([]byte(id))
	port := 20000 + int(h.Sum32()%10000)
	return fmt.Sprintf("127.0.0.1:%d", port)
}

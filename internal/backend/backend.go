// Package backend implements the node-local Backend capability: it
// owns the grain directory, boots/stops supervisors, and drives
// package install, backup/restore and transfer (spec §4.2).
//
// Grounded on original_source/src/sandstorm/backend.c++/.h; the
// supervisor registry (single-flight boot promises keyed by grain-id)
// follows internal/ghostpool/pool_manager.go's pool-of-workers shape in
// the teacher repo.
package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"sandstormgo/internal/backup"
	"sandstormgo/internal/ids"
	"sandstormgo/internal/metrics"
	"sandstormgo/internal/ocerrors"
	"sandstormgo/internal/pkgstore"
)

// StartGrainRequest is the input contract for startGrain (spec §4.2).
type StartGrainRequest struct {
	GrainID   ids.GrainID
	PackageID ids.PackageID
	Command   []string
	IsNew     bool
	DevMode   bool
	MountProc bool
	IsRetry   bool
}

// Supervisor is the running-grain handle the registry tracks. Launch
// is injected so tests can stub out the actual fork/exec (the real
// implementation forks internal/supervisor).
type Supervisor interface {
	// Disconnected reports whether the grain process tree has exited.
	Disconnected() bool
	// Shutdown asks the supervisor to terminate its grain.
	Shutdown(ctx context.Context) error
	// BridgeAddr returns the host:port the grain's http-bridge listens
	// on for gateway-originated WebSession traffic, or "" if the grain
	// doesn't expose one (spec §4.4).
	BridgeAddr() string
}

// Launcher starts a new grain supervisor process and returns its
// capability once the RPC bootstrap handshake completes.
type Launcher func(ctx context.Context, req StartGrainRequest, grainDir string) (Supervisor, error)

type bootState struct {
	mu    sync.Mutex
	ready chan struct{}
	sup   Supervisor
	err   error
}

// Backend tracks live supervisors keyed by grain-id (spec §3 "Supervisor
// record") and exposes the Backend capability operations.
type Backend struct {
	dataRoot string
	packages *pkgstore.Store
	launch   Launcher
	log      *slog.Logger
	metrics  *metrics.Registry

	mu    sync.Mutex
	boots map[ids.GrainID]*bootState
}

// SetMetrics attaches a metrics registry after construction, so
// existing New(...) call sites (and tests) don't need to thread a
// registry through. A nil registry (the default) makes every metrics
// call below a no-op.
func (b *Backend) SetMetrics(m *metrics.Registry) {
	b.metrics = m
}

func New(dataRoot string, packages *pkgstore.Store, launch Launcher, log *slog.Logger) *Backend {
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		dataRoot: dataRoot,
		packages: packages,
		launch:   launch,
		log:      log,
		boots:    make(map[ids.GrainID]*bootState),
	}
}

func (b *Backend) grainDir(id ids.GrainID) string {
	return filepath.Join(b.dataRoot, "grains", string(id))
}

// StartGrain implements the hardest Backend operation (spec §4.2): a
// second call for the same grain-id waits on the existing start
// promise rather than launching a duplicate; a fork failure during
// start is retried exactly once with IsRetry=true.
func (b *Backend) StartGrain(ctx context.Context, req StartGrainRequest) (Supervisor, error) {
	if !ids.ValidGrainID(string(req.GrainID)) {
		return nil, ocerrors.InvalidInput("backend: invalid grain id")
	}

	b.mu.Lock()
	state, inFlight := b.boots[req.GrainID]
	if !inFlight {
		state = &bootState{ready: make(chan struct{})}
		b.boots[req.GrainID] = state
	}
	b.mu.Unlock()

	if inFlight {
		select {
		case <-state.ready:
			return state.sup, state.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	sup, err := b.doStartGrain(ctx, req)
	if err != nil && !req.IsRetry {
		b.log.Warn("grain start failed, retrying once", "grain", req.GrainID, "err", err)
		retryReq := req
		retryReq.IsRetry = true
		sup, err = b.doStartGrain(ctx, retryReq)
	}

	state.mu.Lock()
	state.sup, state.err = sup, err
	state.mu.Unlock()
	close(state.ready)

	if err != nil {
		b.mu.Lock()
		delete(b.boots, req.GrainID)
		b.mu.Unlock()
		b.observeSupervisorStart("failure")
		return nil, err
	}

	b.observeSupervisorStart("success")
	if b.metrics != nil {
		b.metrics.GrainsRunning.Inc()
	}
	return sup, nil
}

func (b *Backend) observeSupervisorStart(outcome string) {
	if b.metrics != nil {
		b.metrics.SupervisorStarts.WithLabelValues(outcome).Inc()
	}
}

func (b *Backend) doStartGrain(ctx context.Context, req StartGrainRequest) (Supervisor, error) {
	grainDir := b.grainDir(req.GrainID)
	if req.IsNew {
		if err := atomicMkdir(grainDir); err != nil {
			return nil, ocerrors.Fatal("backend: create grain dir", err)
		}
	} else if _, err := os.Stat(grainDir); err != nil {
		return nil, ocerrors.NotFound(fmt.Sprintf("backend: grain %s does not exist", req.GrainID))
	}

	if _, ok := b.packages.TryGet(req.PackageID); !ok {
		return nil, ocerrors.NotFound(fmt.Sprintf("backend: package %s not installed", req.PackageID))
	}

	sup, err := b.launch(ctx, req, grainDir)
	if err != nil {
		return nil, ocerrors.Wrap(ocerrors.KindDisconnected, "backend: launch supervisor", err)
	}
	return sup, nil
}

// GetGrain returns the live supervisor for a grain-id, or an
// unavailable error if none is booted.
func (b *Backend) GetGrain(id ids.GrainID) (Supervisor, error) {
	b.mu.Lock()
	state, ok := b.boots[id]
	b.mu.Unlock()
	if !ok {
		return nil, ocerrors.Disconnected("backend: grain not running")
	}
	state.mu.Lock()
	sup, err := state.sup, state.err
	state.mu.Unlock()
	if err != nil || sup == nil {
		return nil, ocerrors.Disconnected("backend: grain not running")
	}
	if sup.Disconnected() {
		b.mu.Lock()
		delete(b.boots, id)
		b.mu.Unlock()
		return nil, ocerrors.Disconnected("backend: grain not running")
	}
	return sup, nil
}

// DeleteGrain shuts down a running grain (if any) and removes its
// on-disk directory.
func (b *Backend) DeleteGrain(ctx context.Context, id ids.GrainID) error {
	if sup, err := b.GetGrain(id); err == nil {
		if err := sup.Shutdown(ctx); err != nil {
			b.log.Warn("grain shutdown during delete failed", "grain", id, "err", err)
		}
		if b.metrics != nil {
			b.metrics.GrainsRunning.Dec()
		}
	}
	b.mu.Lock()
	delete(b.boots, id)
	b.mu.Unlock()
	if b.metrics != nil {
		b.metrics.GrainStorageBytes.DeleteLabelValues(string(id))
	}
	return os.RemoveAll(b.grainDir(id))
}

// ResolveGrainAddr reports the host:port a running grain's http-bridge
// listens on, for the gateway's WebSession bridge to dial (spec §4.4).
func (b *Backend) ResolveGrainAddr(id ids.GrainID) (string, bool) {
	sup, err := b.GetGrain(id)
	if err != nil {
		return "", false
	}
	addr := sup.BridgeAddr()
	if addr == "" {
		return "", false
	}
	return addr, true
}

// TransferGrain moves a grain's on-disk directory to a new grain-id,
// refusing if the destination already exists or a supervisor is live
// for either id.
func (b *Backend) TransferGrain(from, to ids.GrainID) error {
	if !ids.ValidGrainID(string(to)) {
		return ocerrors.InvalidInput("backend: invalid destination grain id")
	}
	b.mu.Lock()
	_, fromLive := b.boots[from]
	_, toLive := b.boots[to]
	b.mu.Unlock()
	if fromLive || toLive {
		return ocerrors.Forbidden("backend: cannot transfer a running grain")
	}
	dst := b.grainDir(to)
	if _, err := os.Stat(dst); err == nil {
		return ocerrors.Forbidden("backend: destination grain id already in use")
	}
	return os.Rename(b.grainDir(from), dst)
}

// GetGrainStorageUsage reports the bytes used by a grain's directory.
func (b *Backend) GetGrainStorageUsage(id ids.GrainID) (int64, error) {
	var total int64
	dir := b.grainDir(id)
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, ocerrors.Wrap(ocerrors.KindNotFound, "backend: grain storage usage", err)
	}
	if b.metrics != nil {
		b.metrics.GrainStorageBytes.WithLabelValues(string(id)).Set(float64(total))
	}
	return total, nil
}

// BackupGrain zips a grain's on-disk storage to destZipPath.
func (b *Backend) BackupGrain(ctx context.Context, id ids.GrainID, destZipPath string, onProgress backup.ProgressFunc) error {
	return backup.Create(ctx, b.grainDir(id), destZipPath, onProgress)
}

// RestoreGrain unzips a backup archive into a freshly created grain
// directory.
func (b *Backend) RestoreGrain(ctx context.Context, id ids.GrainID, srcZipPath string, onProgress backup.ProgressFunc) error {
	return backup.Restore(ctx, srcZipPath, b.grainDir(id), onProgress)
}

// InstallPackage delegates to the package store (spec §4.2 streaming
// install contract).
func (b *Backend) InstallPackage(r io.Reader) (ids.AppID, ids.PackageID, *pkgstore.Manifest, error) {
	appID, pkgID, manifest, err := b.packages.Install(r)
	if b.metrics != nil {
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		b.metrics.PackageInstalls.WithLabelValues(outcome).Inc()
	}
	return appID, pkgID, manifest, err
}

// TryGetPackage returns the directory of an installed package (its
// sandbox/ tree lies beneath it).
func (b *Backend) TryGetPackage(id ids.PackageID) (string, bool) {
	return b.packages.TryGet(id)
}

// DeletePackage removes an unpacked package.
func (b *Backend) DeletePackage(id ids.PackageID) error {
	return b.packages.Delete(id)
}

// Ping is a liveness no-op exposed on the Backend capability.
func (b *Backend) Ping(context.Context) error { return nil }

// atomicMkdir creates dir with os.MkdirAll, tolerating a concurrent
// creator (MkdirAll returns nil when dir already exists). The directory
// is created in place, not under a temp name and then renamed.
func atomicMkdir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	return nil
}

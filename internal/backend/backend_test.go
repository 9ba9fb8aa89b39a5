package backend

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"sandstormgo/internal/ids"
	"sandstormgo/internal/pkgstore"
)

type fakeSupervisor struct {
	disconnected atomic.Bool
}

func (f *fakeSupervisor) Disconnected() bool { return f.disconnected.Load() }
func (f *fakeSupervisor) Shutdown(context.Context) error {
	f.disconnected.Store(true)
	return nil
}
func (f *fakeSupervisor) BridgeAddr() string { return "" }

func newTestBackend(t *testing.T, launch Launcher) *Backend {
	t.Helper()
	dataRoot := t.TempDir()
	store := pkgstore.NewStore(dataRoot+"/apps", t.TempDir(), nil)
	return New(dataRoot, store, launch, nil)
}

func installFakePackage(t *testing.T, b *Backend) ids.PackageID {
	t.Helper()
	// The store only checks presence via TryGet, so create the package
	// directory directly rather than round-tripping a signed archive.
	var pkgID ids.PackageID
	copy(pkgID[:], []byte("deadbeefdeadbeef"))
	dir := b.dataRoot + "/apps/" + pkgID.String()
	require.NoError(t, os.MkdirAll(dir, 0755))
	return pkgID
}

func TestStartGrain_DuplicateCallsShareBoot(t *testing.T) {
	var launches int32
	launch := func(ctx context.Context, req StartGrainRequest, grainDir string) (Supervisor, error) {
		atomic.AddInt32(&launches, 1)
		time.Sleep(10 * time.Millisecond)
		return &fakeSupervisor{}, nil
	}
	b := newTestBackend(t, launch)
	pkgID := installFakePackage(t, b)

	req := StartGrainRequest{GrainID: "grain-one", PackageID: pkgID, IsNew: true}

	var wg sync.WaitGroup
	results := make([]Supervisor, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sup, err := b.StartGrain(context.Background(), req)
			require.NoError(t, err)
			results[idx] = sup
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&launches), "concurrent StartGrain calls must share one boot")
	for _, r := range results {
		require.Same(t, results[0], r)
	}
}

func TestStartGrain_RetriesOnceOnFailure(t *testing.T) {
	var attempts int32
	launch := func(ctx context.Context, req StartGrainRequest, grainDir string) (Supervisor, error) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			return nil, errors.New("boom")
		}
		require.True(t, req.IsRetry)
		return &fakeSupervisor{}, nil
	}
	b := newTestBackend(t, launch)
	pkgID := installFakePackage(t, b)

	sup, err := b.StartGrain(context.Background(), StartGrainRequest{GrainID: "grain-two", PackageID: pkgID, IsNew: true})
	require.NoError(t, err)
	require.NotNil(t, sup)
	require.EqualValues(t, 2, atomic.LoadInt32(&attempts))
}

func TestGetGrain_UnregistersOnDisconnect(t *testing.T) {
	sup := &fakeSupervisor{}
	launch := func(ctx context.Context, req StartGrainRequest, grainDir string) (Supervisor, error) {
		return sup, nil
	}
	b := newTestBackend(t, launch)
	pkgID := installFakePackage(t, b)

	_, err := b.StartGrain(context.Background(), StartGrainRequest{GrainID: "grain-three", PackageID: pkgID, IsNew: true})
	require.NoError(t, err)

	sup.disconnected.Store(true)
	_, err = b.GetGrain("grain-three")
	require.Error(t, err)
}

func TestDeleteGrain_RemovesDirectory(t *testing.T) {
	launch := func(ctx context.Context, req StartGrainRequest, grainDir string) (Supervisor, error) {
		return &fakeSupervisor{}, nil
	}
	b := newTestBackend(t, launch)
	pkgID := installFakePackage(t, b)

	_, err := b.StartGrain(context.Background(), StartGrainRequest{GrainID: "grain-four", PackageID: pkgID, IsNew: true})
	require.NoError(t, err)

	require.NoError(t, b.DeleteGrain(context.Background(), "grain-four"))
	_, err = b.GetGrain("grain-four")
	require.Error(t, err)
}

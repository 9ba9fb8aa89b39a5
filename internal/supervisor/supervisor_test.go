package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, command []string) Config {
	t.Helper()
	grainDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(grainDir, "var"), 0755))
	return Config{
		GrainDir:    grainDir,
		Command:     command,
		IdleTimeout: time.Hour,
		GraceTime:   50 * time.Millisecond,
		LogRotate:   1024,
		LogCheck:    time.Hour,
	}
}

func TestStart_RunsCommandAndDetectsExit(t *testing.T) {
	cfg := testConfig(t, []string{"true"})
	s, err := Start(context.Background(), cfg, nil)
	require.NoError(t, err)

	require.Eventually(t, s.Disconnected, time.Second, 5*time.Millisecond)
}

func TestShutdown_TerminatesLongRunningProcess(t *testing.T) {
	cfg := testConfig(t, []string{"sleep", "30"})
	s, err := Start(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.False(t, s.Disconnected())

	err = s.Shutdown(context.Background())
	require.NoError(t, err)
	require.True(t, s.Disconnected())
}

func TestGetGrainSize_CountsFileBytes(t *testing.T) {
	cfg := testConfig(t, []string{"true"})
	require.NoError(t, os.WriteFile(filepath.Join(cfg.GrainDir, "var", "data"), []byte("12345"), 0644))
	s := &Supervisor{cfg: cfg, done: make(chan struct{})}

	size, err := s.GetGrainSize()
	require.NoError(t, err)
	require.Equal(t, int64(5), size)
}

func TestRotateLogIfNeeded_RotatesPastThreshold(t *testing.T) {
	cfg := testConfig(t, []string{"true"})
	cfg.LogRotate = 4
	logPath := filepath.Join(cfg.GrainDir, "var", "log")
	require.NoError(t, os.WriteFile(logPath, []byte("abcdefgh"), 0644))

	s := &Supervisor{cfg: cfg, done: make(chan struct{})}
	require.NoError(t, s.rotateLogIfNeeded())

	rotated, err := os.ReadFile(logPath + ".1")
	require.NoError(t, err)
	require.Equal(t, "efgh", string(rotated))

	info, err := os.Stat(logPath)
	require.NoError(t, err)
	require.Zero(t, info.Size())
}

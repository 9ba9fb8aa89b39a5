package backup

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateAndRestoreRoundTrip(t *testing.T) {
	if _, err := exec.LookPath("zip"); err != nil {
		t.Skip("zip not available in this environment")
	}
	if _, err := exec.LookPath("unzip"); err != nil {
		t.Skip("unzip not available in this environment")
	}

	grainDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(grainDir, "data.txt"), []byte("grain contents"), 0644))

	archive := filepath.Join(t.TempDir(), "backup.zip")
	var progressCount int
	err := Create(context.Background(), grainDir, archive, func(p Progress) {
		progressCount++
	})
	require.NoError(t, err)
	require.FileExists(t, archive)
	require.Greater(t, progressCount, 0)

	restoreDir := filepath.Join(t.TempDir(), "restored")
	err = Restore(context.Background(), archive, restoreDir, nil)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(restoreDir, "data.txt"))
	require.NoError(t, err)
	require.Equal(t, "grain contents", string(content))
}

func TestStreamMetadataRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, StreamMetadata(&buf, "My-Grain", 4096))

	title, size, err := ReadMetadata(&buf)
	require.NoError(t, err)
	require.Equal(t, "My-Grain", title)
	require.Equal(t, int64(4096), size)
}

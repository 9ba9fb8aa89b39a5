// Package backup implements the grain backup/restore engine: shelling
// out to zip/unzip against a bind-mounted read-only view of a grain's
// storage, streaming progress metadata back over stdio (spec §3, §4.2).
//
// Grounded on original_source/src/sandstorm/backup.c++/.h. The
// subprocess-management and stdio-framing shapes follow
// internal/sop/proxy.go and internal/ledger/merkle.go in the teacher
// repo.
package backup

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"sandstormgo/internal/ocerrors"
)

// Progress is one line of stdio-streamed metadata emitted while an
// archive operation runs (spec §4.2: "streams progress metadata back
// over stdio").
type Progress struct {
	BytesDone  int64
	BytesTotal int64
	Done       bool
}

// ProgressFunc receives each Progress update as the subprocess reports it.
type ProgressFunc func(Progress)

// Create zips grainDir (expected to already be a read-only bind-mounted
// view of the grain's storage, per spec §4.2) into a new archive at
// destZipPath, invoking the system zip binary exactly as the original
// does rather than an in-process archiver, so on-disk backups stay
// byte-compatible with the platform's own restore path.
func Create(ctx context.Context, grainDir, destZipPath string, onProgress ProgressFunc) error {
	if err := os.MkdirAll(filepath.Dir(destZipPath), 0755); err != nil {
		return ocerrors.Fatal("backup: mkdir dest", err)
	}

	cmd := exec.CommandContext(ctx, "zip", "-r", "-q", destZipPath, ".")
	cmd.Dir = grainDir
	return runWithProgress(cmd, onProgress)
}

// Restore unzips a backup archive into grainDir, creating grainDir
// first if it does not exist.
func Restore(ctx context.Context, srcZipPath, grainDir string, onProgress ProgressFunc) error {
	if err := os.MkdirAll(grainDir, 0755); err != nil {
		return ocerrors.Fatal("backup: mkdir grain dir", err)
	}

	cmd := exec.CommandContext(ctx, "unzip", "-q", "-o", srcZipPath, "-d", grainDir)
	return runWithProgress(cmd, onProgress)
}

// runWithProgress launches cmd, counting the lines it writes to stderr
// (reported in BytesDone as they arrive) and reporting completion with
// Done once the process exits. zip/unzip run with -q here, so they
// normally write no per-file lines and the count stays zero;
// BytesTotal is never set.
func runWithProgress(cmd *exec.Cmd, onProgress ProgressFunc) error {
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return ocerrors.Fatal("backup: stderr pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return ocerrors.Fatal("backup: start subprocess", err)
	}

	var filesDone int64
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		filesDone++
		if onProgress != nil {
			onProgress(Progress{BytesDone: filesDone})
		}
	}

	err = cmd.Wait()
	if onProgress != nil {
		onProgress(Progress{BytesDone: filesDone, Done: true})
	}
	if err != nil {
		return ocerrors.Wrap(ocerrors.KindFatal, "backup: subprocess failed", err)
	}
	return nil
}

// StreamMetadata writes a newline-delimited metadata record to w — the
// stdio-framing convention the supervisor uses to report backup size
// and grain title alongside the archive bytes (spec §4.2).
func StreamMetadata(w io.Writer, grainTitle string, size int64) error {
	_, err := fmt.Fprintf(w, "%s\t%d\n", grainTitle, size)
	return err
}

// ReadMetadata parses one metadata record written by StreamMetadata.
func ReadMetadata(r io.Reader) (title string, size int64, err error) {
	_, err = fmt.Fscanf(r, "%s\t%d\n", &title, &size)
	return title, size, err
}

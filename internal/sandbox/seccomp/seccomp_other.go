//go:build !linux

package seccomp

import "fmt"

// Action classifies how a syscall is handled (see seccomp_linux.go).
type Action int

const (
	ActionAllow Action = iota
	ActionErrno
	ActionKill
)

// Rule pairs a syscall number with its classification.
type Rule struct {
	Syscall uint32
	Action  Action
	Errno   uint32
}

// Program is unavailable off Linux; seccomp-bpf is a Linux-only
// mechanism and callers must check sandbox.Available() first.
func Program(arch uint32, rules []Rule, ioctlNR, socketNR uint32) (Filter, error) {
	return Filter{}, fmt.Errorf("seccomp: unavailable on this platform")
}

// Install is unavailable off Linux.
func Install(filter Filter) error {
	return fmt.Errorf("seccomp: unavailable on this platform")
}

// KillClasses mirrors seccomp_linux.go's list for callers that build
// their rule table before checking platform availability.
var KillClasses = []string{
	"bpf", "userfaultfd", "seccomp", "ptrace", "clone_newns",
	"keyctl", "add_key", "request_key",
	"init_module", "finit_module", "delete_module",
	"perf_event_open",
	"process_vm_readv", "process_vm_writev",
	"io_uring_setup", "io_uring_enter", "io_uring_register",
}

// ErrnoClasses mirrors seccomp_linux.go.
var ErrnoClasses = map[string]uint32{
	"ioctl_unsafe": 25, // ENOTTY, hardcoded: unix.ENOTTY isn't available off Linux
}

// SafeIoctls mirrors seccomp_linux.go; empty here since it's never
// consumed off Linux.
var SafeIoctls = []uint64{}

// AllowedSocketFamilies mirrors seccomp_linux.go; empty here since
// it's never consumed off Linux.
var AllowedSocketFamilies = []int{}

// BuildTable is unavailable off Linux; it always returns an empty
// table since Program itself refuses to run here.
func BuildTable() (rules []Rule, ioctlNR, socketNR uint32) {
	return nil, 0, 0
}

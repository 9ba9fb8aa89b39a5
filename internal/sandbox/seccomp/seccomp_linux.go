//go:build linux

// Package seccomp builds a classic-BPF seccomp filter from a symbolic
// syscall classification table (spec §4.1, Design Notes §9: "keep the
// classification table as data, then produce BPF in a builder").
//
// The table below is data, not hand-written BPF; Program assembles it
// into the instruction stream the kernel expects using
// golang.org/x/net/bpf, the ecosystem's classic-BPF assembler.
package seccomp

import (
	"fmt"
	"unsafe"

	"golang.org/x/net/bpf"
	"golang.org/x/sys/unix"
)

// Action classifies how a syscall is handled.
type Action int

const (
	ActionAllow Action = iota
	ActionErrno
	ActionKill
)

// Rule pairs a syscall number with its classification. A non-zero Errno
// is used only when Action is ActionErrno.
type Rule struct {
	Syscall uint32
	Action  Action
	Errno   uint32
}

// Dangerous syscalls the policy kills outright (spec §4.1): namespace
// manipulation, kernel module loading, raw tracing/memory access,
// io_uring, and BPF/seccomp self-modification. Listed symbolically; the
// numeric values are architecture-specific and supplied by the caller's
// syscall table (see BuildTable).
var KillClasses = []string{
	"bpf", "userfaultfd", "seccomp", "ptrace", "clone_newns",
	"keyctl", "add_key", "request_key",
	"init_module", "finit_module", "delete_module",
	"perf_event_open",
	"process_vm_readv", "process_vm_writev",
	"io_uring_setup", "io_uring_enter", "io_uring_register",
}

// ErrnoClasses are syscalls that return a fixed errno rather than
// succeeding or killing the process.
var ErrnoClasses = map[string]uint32{
	"ioctl_unsafe": uint32(unix.ENOTTY),
}

// SafeIoctls is the allow-list of terminal/descriptor ioctls (spec
// §4.1): everything else routes through the ENOTTY errno class.
var SafeIoctls = []uint64{
	unix.TCGETS, unix.TCSETS, unix.TCSETSW, unix.TCSETSF,
	unix.TIOCGWINSZ, unix.TIOCSWINSZ, unix.TIOCGPGRP, unix.TIOCSPGRP,
	unix.TIOCSCTTY, unix.TIOCNOTTY, unix.TIOCGETD, unix.TIOCSETD,
	unix.FIONREAD, unix.FIONBIO,
}

// AllowedSocketFamilies restricts socket() to AF_UNIX/AF_INET/AF_INET6
// (spec §4.1). Only the address family argument is checked; the socket
// type argument is not inspected by the filter.
var AllowedSocketFamilies = []int{unix.AF_UNIX, unix.AF_INET, unix.AF_INET6}

const socketTypeMask = unix.SOCK_STREAM | unix.SOCK_DGRAM

// killSyscallNumbers resolves the symbolic names in KillClasses to
// x86-64 syscall numbers. clone_newns has no syscall of its own —
// creating a mount namespace goes through clone(2)/unshare(2) behind a
// flag argument this syscall-number-keyed table can't inspect — so
// this filter does not restrict it, and nothing in internal/sandbox
// restricts it either.
var killSyscallNumbers = map[string]uint32{
	"bpf":               uint32(unix.SYS_BPF),
	"userfaultfd":       uint32(unix.SYS_USERFAULTFD),
	"seccomp":           uint32(unix.SYS_SECCOMP),
	"ptrace":            uint32(unix.SYS_PTRACE),
	"keyctl":            uint32(unix.SYS_KEYCTL),
	"add_key":           uint32(unix.SYS_ADD_KEY),
	"request_key":       uint32(unix.SYS_REQUEST_KEY),
	"init_module":       uint32(unix.SYS_INIT_MODULE),
	"finit_module":      uint32(unix.SYS_FINIT_MODULE),
	"delete_module":     uint32(unix.SYS_DELETE_MODULE),
	"perf_event_open":   uint32(unix.SYS_PERF_EVENT_OPEN),
	"process_vm_readv":  uint32(unix.SYS_PROCESS_VM_READV),
	"process_vm_writev": uint32(unix.SYS_PROCESS_VM_WRITEV),
	"io_uring_setup":    uint32(unix.SYS_IO_URING_SETUP),
	"io_uring_enter":    uint32(unix.SYS_IO_URING_ENTER),
	"io_uring_register": uint32(unix.SYS_IO_URING_REGISTER),
}

// syscallMax bounds the allow-by-default sweep below. x86-64 syscall
// numbers currently run up to the low 500s; anything beyond this bound
// falls through to the filter's default-kill action rather than being
// allowed, which is the safer failure mode for numbers this table
// doesn't yet know about.
const syscallMax = 460

// BuildTable assembles the default rule table described in spec §4.1:
// every syscall number up to syscallMax is allowed except the
// KillClasses set; ioctl and socket are left out of the table entirely
// and returned as ioctlNR/socketNR so Program can give them the
// argument-aware treatment SafeIoctls/AllowedSocketFamilies call for.
func BuildTable() (rules []Rule, ioctlNR, socketNR uint32) {
	kill := make(map[uint32]bool, len(KillClasses))
	for _, name := range KillClasses {
		if nr, ok := killSyscallNumbers[name]; ok {
			kill[nr] = true
		}
	}
	ioctlNR = uint32(unix.SYS_IOCTL)
	socketNR = uint32(unix.SYS_SOCKET)

	for nr := uint32(0); nr <= syscallMax; nr++ {
		switch {
		case nr == ioctlNR || nr == socketNR:
			// handled by Program's dedicated instruction blocks instead
		case kill[nr]:
			rules = append(rules, Rule{Syscall: nr, Action: ActionKill})
		default:
			rules = append(rules, Rule{Syscall: nr, Action: ActionAllow})
		}
	}
	return rules, ioctlNR, socketNR
}

// ioctlBlock implements the SafeIoctls allow-list: ioctl(2) with a
// listed request succeeds, anything else returns ENOTTY rather than
// killing the process (spec §4.1 — many libraries probe terminal
// ioctls speculatively and expect a plain error back).
func ioctlBlock(ioctlNR uint32) ([]bpf.Instruction, error) {
	var body []bpf.Instruction
	body = append(body, bpf.LoadAbsolute{Off: offArgs + 8, Size: 4}) // args[1] (request), low word
	for _, req := range SafeIoctls {
		body = append(body,
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(req), SkipFalse: 1},
			bpf.RetConstant{Val: uint32(seccompRetAllow)},
		)
	}
	errno, ok := ErrnoClasses["ioctl_unsafe"]
	if !ok {
		return nil, fmt.Errorf("seccomp: missing ioctl_unsafe errno class")
	}
	body = append(body, bpf.RetConstant{Val: uint32(seccompRetErrno) | (errno & 0xffff)})
	if len(body) > 0xff {
		return nil, fmt.Errorf("seccomp: ioctl block too large to jump over (%d insns)", len(body))
	}

	return append([]bpf.Instruction{
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: ioctlNR, SkipFalse: uint8(len(body))},
	}, body...), nil
}

// socketBlock implements the AllowedSocketFamilies allow-list: any
// other address family is killed outright, matching the kill-by-
// default posture the rest of the table uses for unclassified
// syscalls (spec §4.1).
func socketBlock(socketNR uint32) ([]bpf.Instruction, error) {
	var body []bpf.Instruction
	body = append(body, bpf.LoadAbsolute{Off: offArgs, Size: 4}) // args[0] (family), low word
	for _, fam := range AllowedSocketFamilies {
		body = append(body,
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(fam), SkipFalse: 1},
			bpf.RetConstant{Val: uint32(seccompRetAllow)},
		)
	}
	body = append(body, bpf.RetConstant{Val: uint32(seccompRetKill)})
	if len(body) > 0xff {
		return nil, fmt.Errorf("seccomp: socket block too large to jump over (%d insns)", len(body))
	}

	return append([]bpf.Instruction{
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: socketNR, SkipFalse: uint8(len(body))},
	}, body...), nil
}

// seccomp_data field offsets (linux/seccomp.h / linux/filter.h), fixed
// across architectures running this Go toolchain's native word size.
const (
	offNR   = 0
	offArch = 4
	offArgs = 16 // seccomp_data.args[0] onward, 8 bytes each
)

// Program assembles a BPF socket filter (SECCOMP_RET_* semantics)
// implementing rules, plus special handling for ioctl (SafeIoctls
// allow-list, else ENOTTY) and socket (AllowedSocketFamilies, family only)
// when ioctlNR/socketNR are non-zero — these two syscalls need their
// argument inspected, not just their number, so they're excluded from
// rules and handled by dedicated instruction blocks below instead.
func Program(arch uint32, rules []Rule, ioctlNR, socketNR uint32) (Filter, error) {
	var insns []bpf.Instruction

	insns = append(insns,
		bpf.LoadAbsolute{Off: offArch, Size: 4},
		bpf.JumpIf{Cond: bpf.JumpEqual, Val: uint32(arch), SkipFalse: 1},
		bpf.RetConstant{Val: uint32(seccompRetKill)},
		bpf.LoadAbsolute{Off: offNR, Size: 4},
	)

	// One allow/errno/kill branch per rule, in table order. Matching the
	// syscall number returns immediately; falling through checks the
	// next rule.
	for _, r := range rules {
		var ret uint32
		switch r.Action {
		case ActionAllow:
			ret = seccompRetAllow
		case ActionKill:
			ret = seccompRetKill
		case ActionErrno:
			ret = seccompRetErrno | (r.Errno & 0xffff)
		default:
			return Filter{}, fmt.Errorf("seccomp: unknown action for syscall %d", r.Syscall)
		}
		insns = append(insns,
			bpf.JumpIf{Cond: bpf.JumpEqual, Val: r.Syscall, SkipFalse: 1},
			bpf.RetConstant{Val: ret},
		)
	}

	if ioctlNR != 0 {
		block, err := ioctlBlock(ioctlNR)
		if err != nil {
			return Filter{}, err
		}
		insns = append(insns, block...)
	}
	if socketNR != 0 {
		block, err := socketBlock(socketNR)
		if err != nil {
			return Filter{}, err
		}
		insns = append(insns, block...)
	}

	// Default-kill for anything not explicitly classified: the policy
	// is allow/errno/kill, never allow-by-default (spec §4.1).
	insns = append(insns, bpf.RetConstant{Val: uint32(seccompRetKill)})

	raw, err := bpf.Assemble(insns)
	if err != nil {
		return Filter{}, fmt.Errorf("seccomp: assemble: %w", err)
	}

	words := make([]uint64, len(raw))
	for i, ri := range raw {
		words[i] = packInstruction(ri.Op, ri.Jt, ri.Jf, ri.K)
	}
	return Filter{words: words}, nil
}

// Seccomp return-action constants from linux/seccomp.h, not exposed by
// golang.org/x/sys/unix under every build tag, so named here.
const (
	seccompRetKill  = 0x00000000
	seccompRetErrno = 0x00050000
	seccompRetAllow = 0x7fff0000
)

// Install loads the assembled filter via prctl(PR_SET_SECCOMP) after
// PR_SET_NO_NEW_PRIVS, which the caller (sandbox.Assemble) must already
// have set. Any failure here is fatal per spec §7 ("seccomp installation
// failure... is fatal — the process exits before executing untrusted
// code"), so Install never attempts to recover.
func Install(filter Filter) error {
	if len(filter.words) == 0 {
		return fmt.Errorf("seccomp: empty filter")
	}
	raw := make([]unix.SockFilter, len(filter.words))
	for i, w := range filter.words {
		code, jt, jf, k := unpackInstruction(w)
		raw[i] = unix.SockFilter{Code: code, Jt: jt, Jf: jf, K: k}
	}
	prog := unix.SockFprog{
		Len:    uint16(len(raw)),
		Filter: &raw[0],
	}
	_, _, errno := unix.RawSyscall(unix.SYS_PRCTL, unix.PR_SET_SECCOMP, unix.SECCOMP_MODE_FILTER, uintptr(unsafe.Pointer(&prog)))
	if errno != 0 {
		return fmt.Errorf("seccomp: prctl(PR_SET_SECCOMP): %w", errno)
	}
	return nil
}

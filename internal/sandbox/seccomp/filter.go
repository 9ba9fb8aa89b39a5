package seccomp

// Filter is an assembled seccomp-BPF program. Each instruction is
// packed into one uint64 (code<<48 | jt<<40 | jf<<32 | k) so the type
// is identical across build tags; only seccomp_linux.go's Install
// unpacks it into the kernel's native sock_filter layout.
type Filter struct {
	words []uint64
}

func packInstruction(code uint16, jt, jf uint8, k uint32) uint64 {
	return uint64(code)<<48 | uint64(jt)<<40 | uint64(jf)<<32 | uint64(k)
}

func unpackInstruction(w uint64) (code uint16, jt, jf uint8, k uint32) {
	code = uint16(w >> 48)
	jt = uint8(w >> 40)
	jf = uint8(w >> 32)
	k = uint32(w)
	return
}

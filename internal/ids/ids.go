// Package ids implements the three identity formats of the platform's
// data model (spec §3): GrainId, PackageId and AppId, plus the app-id
// replacement list used to revoke and alias signing keys.
//
// Grounded on original_source/src/sandstorm/id-to-text.h (sizes and
// alphabet) and appid-replacements.c++ (fixed-point walk semantics).
package ids

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	AppIDByteSize     = 32
	PackageIDByteSize = 16
	AppIDTextSize     = 52
	PackageIDTextSize = 32
)

// base32 alphabet used for AppId text form (spec §3): digits then
// lowercase letters, skipping the ambiguous glyphs b/i/l/o which are
// instead accepted as aliases on parse.
const base32Alphabet = "0123456789acdefghjkmnpqrstuvwxyz"

var base32Index [256]int8

func init() {
	for i := range base32Index {
		base32Index[i] = -1
	}
	for i, c := range base32Alphabet {
		base32Index[c] = int8(i)
	}
}

// AppID is a 32-byte Ed25519 public key.
type AppID [AppIDByteSize]byte

// PackageID is a 16-byte content hash.
type PackageID [PackageIDByteSize]byte

// GrainID names the on-disk directory for a grain. Opaque, case
// sensitive, at least 8 characters, must not contain '/' or start with
// '.' (spec §3).
type GrainID string

// ValidGrainID reports whether s satisfies the GrainId invariants.
func ValidGrainID(s string) bool {
	if len(s) < 8 {
		return false
	}
	if strings.Contains(s, "/") {
		return false
	}
	if strings.HasPrefix(s, ".") {
		return false
	}
	return true
}

// String renders the AppId in its 52-character base32 text form.
func (a AppID) String() string {
	return encodeBase32(a[:], AppIDTextSize)
}

// String renders the PackageId as 32 lowercase hex characters.
func (p PackageID) String() string {
	return hex.EncodeToString(p[:])
}

func encodeBase32(data []byte, textSize int) string {
	var sb strings.Builder
	sb.Grow(textSize)

	// Encode from most-significant bits, 5 bits per output character,
	// matching a big-endian bit reader over the byte array.
	bitBuf := uint32(0)
	bitCount := 0
	bi := 0
	for sb.Len() < textSize {
		for bitCount < 5 && bi < len(data) {
			bitBuf = (bitBuf << 8) | uint32(data[bi])
			bitCount += 8
			bi++
		}
		if bitCount < 5 {
			// Pad with zero bits for the final partial group.
			bitBuf <<= uint(5 - bitCount)
			bitCount = 5
		}
		bitCount -= 5
		idx := (bitBuf >> uint(bitCount)) & 0x1f
		sb.WriteByte(base32Alphabet[idx])
	}
	return sb.String()
}

// ParseAppID parses the 52-character text form of an AppId, folding
// case and applying the aliases O→0, I/l→1, B→8 (spec §3). Rejects
// wrong length, unknown characters, or non-zero trailing bits.
func ParseAppID(s string) (AppID, bool) {
	var out AppID
	if len(s) != AppIDTextSize {
		return out, false
	}
	return out, decodeBase32(s, out[:])
}

// ParsePackageID parses the 32-character hex text form of a PackageId.
func ParsePackageID(s string) (PackageID, bool) {
	var out PackageID
	if len(s) != PackageIDTextSize {
		return out, false
	}
	b, err := hex.DecodeString(strings.ToLower(s))
	if err != nil || len(b) != PackageIDByteSize {
		return out, false
	}
	copy(out[:], b)
	return out, true
}

func decodeBase32(s string, out []byte) bool {
	bitBuf := uint64(0)
	bitCount := 0
	outPos := 0
	for i := 0; i < len(s); i++ {
		c := foldAndLower(s[i])
		idx := base32Index[c]
		if idx < 0 {
			return false
		}
		bitBuf = (bitBuf << 5) | uint64(idx)
		bitCount += 5
		if bitCount >= 8 {
			bitCount -= 8
			if outPos >= len(out) {
				// Extra full byte beyond the target size: only
				// acceptable if all remaining bits (including this
				// one) are zero trailing padding.
				if (bitBuf>>uint(bitCount))&0xff != 0 {
					return false
				}
				continue
			}
			out[outPos] = byte(bitBuf >> uint(bitCount))
			outPos++
		}
	}
	if outPos != len(out) {
		return false
	}
	// Remaining bits, if any, must be zero (no stray trailing bits).
	if bitCount > 0 && (bitBuf&((1<<uint(bitCount))-1)) != 0 {
		return false
	}
	return true
}

func toUpperAscii(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// foldAndLower applies the alias folding table (O→0, I/l→1, B→8) then
// lower-cases, matching the alphabet which is entirely lowercase/digits.
func foldAndLower(c byte) byte {
	switch toUpperAscii(c) {
	case 'O':
		return '0'
	case 'I', 'L':
		return '1'
	case 'B':
		return '8'
	}
	if c >= 'A' && c <= 'Z' {
		return c - 'A' + 'a'
	}
	return c
}

// VerifyAppSignature reports whether sig is a valid Ed25519 signature
// of body under the given AppId's public key.
func VerifyAppSignature(app AppID, body, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(app[:]), body, sig)
}

func FormatAppID(a AppID) string { return a.String() }

func ParseAppIDOrPanic(s string) AppID {
	id, ok := ParseAppID(s)
	if !ok {
		panic(fmt.Sprintf("ids: invalid AppId %q", s))
	}
	return id
}

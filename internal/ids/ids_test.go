package ids

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppIDRoundTrip(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	var a AppID
	copy(a[:], pub)

	text := a.String()
	assert.Len(t, text, AppIDTextSize)

	parsed, ok := ParseAppID(text)
	require.True(t, ok)
	assert.Equal(t, a, parsed)
}

func TestAppIDParseCaseFoldingAndAliases(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	var a AppID
	copy(a[:], pub)

	text := a.String()
	upper := strings.ToUpper(text)

	parsed, ok := ParseAppID(upper)
	require.True(t, ok)
	assert.Equal(t, a, parsed)
}

func TestAppIDRejectsWrongLength(t *testing.T) {
	_, ok := ParseAppID("short")
	assert.False(t, ok)
}

func TestPackageIDRoundTrip(t *testing.T) {
	var p PackageID
	for i := range p {
		p[i] = byte(i)
	}
	text := p.String()
	assert.Len(t, text, PackageIDTextSize)

	parsed, ok := ParsePackageID(text)
	require.True(t, ok)
	assert.Equal(t, p, parsed)
}

func TestValidGrainID(t *testing.T) {
	cases := map[string]bool{
		"abcdefgh":   true,
		"short":      false,
		"has/slash":  false,
		".leadingdot": false,
		"12345678901": true,
	}
	for id, want := range cases {
		assert.Equal(t, want, ValidGrainID(id), "grain id %q", id)
	}
}

func appID(b byte) AppID {
	var a AppID
	a[0] = b
	return a
}

func pkgID(b byte) PackageID {
	var p PackageID
	p[0] = b
	return p
}

func TestApplyAppIDReplacements_NoRules(t *testing.T) {
	a := appID(1)
	out, ok := ApplyAppIDReplacements(a, pkgID(1), nil)
	require.True(t, ok)
	assert.Equal(t, a, out)
}

func TestApplyAppIDReplacements_Revoked(t *testing.T) {
	original := appID(1)
	rules := []Replacement{
		{Original: original, RevokeExceptPackageIDs: []PackageID{pkgID(9)}},
	}
	_, ok := ApplyAppIDReplacements(original, pkgID(1), rules)
	assert.False(t, ok, "key should be revoked for packages not on the allow-list")

	out, ok := ApplyAppIDReplacements(original, pkgID(9), rules)
	require.True(t, ok, "grandfathered package must still verify")
	assert.Equal(t, original, out)
}

func TestApplyAppIDReplacements_ChainedReplacement(t *testing.T) {
	originalOriginal := appID(1)
	intermediate := appID(2)
	current := appID(3)

	rules := []Replacement{
		{Original: originalOriginal, Replacement: &intermediate},
		{Original: intermediate, Replacement: &current},
	}

	out, ok := ApplyAppIDReplacements(current, pkgID(5), rules)
	require.True(t, ok)
	assert.Equal(t, originalOriginal, out, "walking replacement->original must reach the root")
}

func TestApplyAppIDReplacements_Idempotent(t *testing.T) {
	originalOriginal := appID(1)
	intermediate := appID(2)
	current := appID(3)

	rules := []Replacement{
		{Original: originalOriginal, Replacement: &intermediate},
		{Original: intermediate, Replacement: &current},
	}

	out1, ok1 := ApplyAppIDReplacements(current, pkgID(5), rules)
	require.True(t, ok1)
	out2, ok2 := ApplyAppIDReplacements(out1, pkgID(5), rules)
	require.True(t, ok2)
	assert.Equal(t, out1, out2, "applying the fixed-point walk twice must be stable")
}

func TestCurrentSigningKey(t *testing.T) {
	root := appID(1)
	next := appID(2)
	rules := []Replacement{
		{Original: root, Replacement: &next},
	}
	assert.Equal(t, next, CurrentSigningKey(root, rules))
}

package pkgstore

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/ed25519"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"sandstormgo/internal/ids"
)

func buildSPK(t *testing.T, pub ed25519.PublicKey, priv ed25519.PrivateKey) []byte {
	t.Helper()

	var bodyBuf bytes.Buffer
	gz := gzip.NewWriter(&bodyBuf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "sandbox/hello.txt",
		Mode: 0644,
		Size: 5,
	}))
	_, err := tw.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	body := bodyBuf.Bytes()

	hasher, err := blake2b.New256(nil)
	require.NoError(t, err)
	_, _ = hasher.Write(body)
	digest := hasher.Sum(nil)
	sig := ed25519.Sign(priv, digest)

	var out bytes.Buffer
	out.WriteString(spkMagic)
	out.Write(pub)
	out.WriteByte(byte(len(sig) >> 8))
	out.WriteByte(byte(len(sig)))
	out.Write(sig)
	out.Write(body)
	return out.Bytes()
}

func TestStoreInstall_VerifiesAndUnpacks(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	appsDir := t.TempDir()
	scratchDir := t.TempDir()
	store := NewStore(appsDir, scratchDir, nil)

	pkgBytes := buildSPK(t, pub, priv)
	appID, pkgID, manifest, err := store.Install(bytes.NewReader(pkgBytes))
	require.NoError(t, err)
	require.NotNil(t, manifest)
	require.Equal(t, ids.AppID(pub), appID)

	dir, ok := store.TryGet(pkgID)
	require.True(t, ok)
	content, err := os.ReadFile(dir + "/sandbox/hello.txt")
	require.NoError(t, err)
	require.Equal(t, "hello", string(content))
}

func TestStoreInstall_RejectsBadSignature(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, wrongPriv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	appsDir := t.TempDir()
	scratchDir := t.TempDir()
	store := NewStore(appsDir, scratchDir, nil)

	pkgBytes := buildSPK(t, pub, wrongPriv)
	_, _, _, err = store.Install(bytes.NewReader(pkgBytes))
	require.Error(t, err)
}

func TestStoreInstall_RejectsBadMagic(t *testing.T) {
	appsDir := t.TempDir()
	scratchDir := t.TempDir()
	store := NewStore(appsDir, scratchDir, nil)

	_, _, _, err := store.Install(bytes.NewReader([]byte("not-a-package-body")))
	require.Error(t, err)
}

func TestStoreDelete(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	appsDir := t.TempDir()
	scratchDir := t.TempDir()
	store := NewStore(appsDir, scratchDir, nil)

	pkgBytes := buildSPK(t, pub, priv)
	_, pkgID, _, err := store.Install(bytes.NewReader(pkgBytes))
	require.NoError(t, err)

	require.NoError(t, store.Delete(pkgID))
	_, ok := store.TryGet(pkgID)
	require.False(t, ok)
}

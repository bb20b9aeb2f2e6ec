package signing_test

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spacemeshos/auditor/signing"
)

const testKeyBits = 1024

func newIdentity(t *testing.T) *signing.Identity {
	t.Helper()
	id, err := signing.Generate(testKeyBits)
	require.NoError(t, err)
	return id
}

func TestSignAndVerify(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	id := newIdentity(t)
	payload := []byte(`{"host_id":"h1"}`)

	// The IV is random, so a few signatures may collide but not all of them.
	distinct := make(map[string]struct{})
	for i := 0; i < 16; i++ {
		sig, err := id.Sign(payload)
		require.NoError(err)
		distinct[sig] = struct{}{}

		ok, err := signing.Verify(payload, id.PublicKeyText(), sig)
		require.NoError(err)
		require.True(ok)
	}
	require.Greater(len(distinct), 1, "signing is randomized")
}

func TestVerifyRejectsMutations(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	id := newIdentity(t)
	payload := []byte("sign me")
	sig, err := id.Sign(payload)
	require.NoError(err)

	for i := 0; i < len(payload)*8; i += 3 {
		mutated := append([]byte{}, payload...)
		mutated[i/8] ^= 1 << (i % 8)
		ok, err := signing.Verify(mutated, id.PublicKeyText(), sig)
		require.NoError(err)
		require.False(ok, "payload bit %d", i)
	}

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(err)
	for _, bit := range []int{0, 17, len(raw)*8 - 1} {
		mutated := append([]byte{}, raw...)
		mutated[bit/8] ^= 1 << (bit % 8)
		ok, err := signing.Verify(payload, id.PublicKeyText(), base64.StdEncoding.EncodeToString(mutated))
		require.NoError(err)
		require.False(ok, "signature bit %d", bit)
	}
}

func TestVerifyMalformedSignatureIsNotAnError(t *testing.T) {
	t.Parallel()
	id := newIdentity(t)
	for _, sig := range []string{"", "not base64!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		ok, err := signing.Verify([]byte("payload"), id.PublicKeyText(), sig)
		require.NoError(t, err)
		require.False(t, ok)
	}
}

func TestVerifyMalformedPublicKey(t *testing.T) {
	t.Parallel()
	_, err := signing.Verify([]byte("payload"), "garbage", "c2ln")
	require.ErrorIs(t, err, signing.ErrMalformedPublicKey)
}

func TestVerifyWithOtherKeyFails(t *testing.T) {
	t.Parallel()
	a, b := newIdentity(t), newIdentity(t)
	sig, err := a.Sign([]byte("payload"))
	require.NoError(t, err)
	ok, err := signing.Verify([]byte("payload"), b.PublicKeyText(), sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadOrCreatePersistsIdentity(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	dir := t.TempDir()
	priv, pub := filepath.Join(dir, "key"), filepath.Join(dir, "key.pub")

	created, err := signing.LoadOrCreate(priv, pub, testKeyBits)
	require.NoError(err)
	require.FileExists(priv)
	require.FileExists(pub)

	loaded, err := signing.LoadOrCreate(priv, pub, testKeyBits)
	require.NoError(err)
	require.Equal(created.PublicKeyText(), loaded.PublicKeyText())

	sig, err := loaded.Sign([]byte("payload"))
	require.NoError(err)
	ok, err := signing.Verify([]byte("payload"), created.PublicKeyText(), sig)
	require.NoError(err)
	require.True(ok)
}

func TestLoadOrCreateDerivesMissingPublicKey(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	dir := t.TempDir()
	priv, pub := filepath.Join(dir, "key"), filepath.Join(dir, "key.pub")

	created, err := signing.LoadOrCreate(priv, pub, testKeyBits)
	require.NoError(err)
	require.NoError(os.Remove(pub))

	loaded, err := signing.LoadOrCreate(priv, pub, testKeyBits)
	require.NoError(err)
	require.Equal(created.PublicKeyText(), loaded.PublicKeyText())
	require.FileExists(pub)
}

func TestLoadOrCreateFailsOnMalformedFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	priv, pub := filepath.Join(dir, "key"), filepath.Join(dir, "key.pub")
	require.NoError(t, os.WriteFile(priv, []byte("not a key"), 0o600))

	_, err := signing.LoadOrCreate(priv, pub, testKeyBits)
	require.ErrorIs(t, err, signing.ErrMalformedKey)
}

func TestLoadOrCreateFailsOnMissingDirectory(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "missing")
	_, err := signing.LoadOrCreate(filepath.Join(dir, "key"), filepath.Join(dir, "key.pub"), testKeyBits)
	require.Error(t, err)
}

func TestRejectsWeakKeys(t *testing.T) {
	t.Parallel()
	_, err := signing.Generate(512)
	require.ErrorIs(t, err, signing.ErrKeyTooWeak)
}

func TestVerifierCachesKeys(t *testing.T) {
	t.Parallel()
	require := require.New(t)
	id := newIdentity(t)
	verifier, err := signing.NewVerifier(4)
	require.NoError(err)

	sig, err := id.Sign([]byte("payload"))
	require.NoError(err)
	for i := 0; i < 3; i++ {
		ok, err := verifier.Verify([]byte("payload"), id.PublicKeyText(), sig)
		require.NoError(err)
		require.True(ok)
	}

	_, err = verifier.Verify([]byte("payload"), "garbage", sig)
	require.ErrorIs(err, signing.ErrMalformedPublicKey)
}

package adaptor

import (
	"crypto/sha256"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/require"
)

func mustPrivateKey(t *testing.T) *secp256k1.PrivateKey {
	t.Helper()
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	return key
}

func digest(msg string) [32]byte {
	return sha256.Sum256([]byte(msg))
}

// TestEncSignDecSigRecoverRoundTrip exercises the central algebraic law the
// whole swap protocol rests on: decrypting an encrypted signature with the
// right key, then recovering that key back out of the decrypted signature,
// returns the original secret.
func TestEncSignDecSigRecoverRoundTrip(t *testing.T) {
	x := mustPrivateKey(t)
	y := mustPrivateKey(t)
	m := digest("atomic swap transfer proof")

	es, err := EncSign(x, y.PubKey(), m)
	require.NoError(t, err)

	require.NoError(t, EncVerify(x.PubKey(), y.PubKey(), m, es))

	sig := DecSig(&y.Key, es)

	recovered, err := Recover(y.PubKey(), sig, es)
	require.NoError(t, err)

	require.Equal(t, y.Key.Bytes(), recovered.Bytes())
}

// TestDecSigProducesValidOrdinarySignature checks the decrypted signature
// actually validates as a plain ECDSA signature over m under X - the
// property the Bitcoin side of the protocol cares about, independent of
// any adaptor machinery.
func TestDecSigProducesValidOrdinarySignature(t *testing.T) {
	x := mustPrivateKey(t)
	y := mustPrivateKey(t)
	m := digest("redeem tx digest")

	es, err := EncSign(x, y.PubKey(), m)
	require.NoError(t, err)

	sig := DecSig(&y.Key, es)

	ecdsaSig := ToECDSASignature(sig)
	require.True(t, ecdsaSig.Verify(m[:], x.PubKey()))
}

// TestEncVerifyRejectsWrongKey ensures EncVerify fails closed when checked
// against the wrong signing key.
func TestEncVerifyRejectsWrongKey(t *testing.T) {
	x := mustPrivateKey(t)
	wrongX := mustPrivateKey(t)
	y := mustPrivateKey(t)
	m := digest("message")

	es, err := EncSign(x, y.PubKey(), m)
	require.NoError(t, err)

	require.Error(t, EncVerify(wrongX.PubKey(), y.PubKey(), m, es))
}

// TestEncVerifyRejectsTamperedProof ensures flipping the DLEQ challenge
// scalar is caught, guarding against a maliciously-constructed ciphertext
// that would decrypt to a signature not actually tied to R'.
func TestEncVerifyRejectsTamperedProof(t *testing.T) {
	x := mustPrivateKey(t)
	y := mustPrivateKey(t)
	m := digest("message")

	es, err := EncSign(x, y.PubKey(), m)
	require.NoError(t, err)

	es.proof.c.Add(new(secp256k1.ModNScalar).SetInt(1))

	require.ErrorIs(t, EncVerify(x.PubKey(), y.PubKey(), m, es), ErrInvalidDLEQProof)
}

// TestRecoverFailsOnMismatchedEncryptedSignature checks Recover reports
// ErrNotRecoverable rather than returning a bogus scalar when the decrypted
// signature wasn't actually derived from the given encrypted one.
func TestRecoverFailsOnMismatchedEncryptedSignature(t *testing.T) {
	x := mustPrivateKey(t)
	y := mustPrivateKey(t)
	other := mustPrivateKey(t)
	m := digest("message")

	es, err := EncSign(x, y.PubKey(), m)
	require.NoError(t, err)

	unrelatedSig := DecSig(&other.Key, es)

	_, err = Recover(y.PubKey(), unrelatedSig, es)
	require.ErrorIs(t, err, ErrNotRecoverable)
}

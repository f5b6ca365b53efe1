package dleq

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomTestScalar(t *testing.T) *big.Int {
	t.Helper()
	buf := make([]byte, 32)
	_, err := rand.Read(buf)
	require.NoError(t, err)

	s := new(big.Int).SetBytes(buf)
	// Clear the top 4 bits so the value fits in 252 bits, exactly the
	// constraint Prove enforces.
	s.Rsh(s, 4)
	return s
}

// TestProveVerifyRoundTrip checks dleq_verify(dleq_prove(s)) holds for
// freshly sampled scalars, the property spec.md §8 calls out directly.
func TestProveVerifyRoundTrip(t *testing.T) {
	s := randomTestScalar(t)

	sBitcoin, sMonero, proof, err := Prove(s)
	require.NoError(t, err)

	require.NoError(t, Verify(sBitcoin, sMonero, proof))
}

// TestProveRejectsOversizedScalar checks Prove refuses a scalar that would
// not be representable on both curves.
func TestProveRejectsOversizedScalar(t *testing.T) {
	tooBig := new(big.Int).Lsh(big.NewInt(1), 253)
	_, _, _, err := Prove(tooBig)
	require.ErrorIs(t, err, ErrScalarTooLarge)
}

// TestVerifyRejectsMismatchedPoints checks the proof fails closed when
// checked against a public point it wasn't built for.
func TestVerifyRejectsMismatchedPoints(t *testing.T) {
	s := randomTestScalar(t)
	other := randomTestScalar(t)

	_, _, proof, err := Prove(s)
	require.NoError(t, err)

	sBitcoinOther, _, _, err := Prove(other)
	require.NoError(t, err)

	_, sMonero, _, err := Prove(s)
	require.NoError(t, err)

	require.ErrorIs(t, Verify(sBitcoinOther, sMonero, proof), ErrInvalidProof)
}

// TestVerifyRejectsSingleBitMutation checks that flipping a single byte
// inside one bit's proof is caught, matching spec.md §8's "any single-bit
// mutation of the proof makes it false" requirement.
func TestVerifyRejectsSingleBitMutation(t *testing.T) {
	s := randomTestScalar(t)

	sBitcoin, sMonero, proof, err := Prove(s)
	require.NoError(t, err)

	mutated := *proof
	mutated.Bits[0].E0[0] ^= 0x01

	require.ErrorIs(t, Verify(sBitcoin, sMonero, &mutated), ErrInvalidProof)
}

package dleq

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"math/big"

	"filippo.io/edwards25519"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// numBits bounds the scalars this package can prove equality for. Ed25519's
// group order l is slightly larger than 2^252, so any value strictly below
// 2^252 reduces to itself modulo both l and secp256k1's (much larger) order
// n; a 252-bit decomposition therefore represents exactly the same integer
// on both curves with no ambiguity.
const numBits = 252

// challengeBits is the width of the Fiat-Shamir challenge and its two
// OR-proof shares. 128 bits is far smaller than either curve's order, so
// splitting and recombining challenges as plain big.Int arithmetic modulo
// 2^128 never has to worry about which curve's modulus applies.
const challengeBits = 128

// ErrScalarTooLarge is returned when Prove is given a scalar that doesn't
// fit in numBits bits.
var ErrScalarTooLarge = errors.New("dleq: scalar must be less than 2^252 to be representable on both curves")

// ErrInvalidProof is returned by Verify when a cross-curve proof fails any
// of its checks.
var ErrInvalidProof = errors.New("dleq: cross-curve proof does not verify")

var twoPow128 = new(big.Int).Lsh(big.NewInt(1), challengeBits)

func randomChallengeShare() *big.Int {
	buf := make([]byte, challengeBits/8)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return new(big.Int).SetBytes(buf)
}

func challengeHash(parts ...[]byte) *big.Int {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	digest := h.Sum(nil)
	c := new(big.Int).SetBytes(digest[:challengeBits/8])
	return c.Mod(c, twoPow128)
}

func challengeToBytes(c *big.Int) [16]byte {
	var out [16]byte
	c.FillBytes(out[:])
	return out
}

func bytesToChallenge(b [16]byte) *big.Int {
	return new(big.Int).SetBytes(b[:])
}

func bitcoinScalarFromBigInt(v *big.Int) secp256k1.ModNScalar {
	var s secp256k1.ModNScalar
	var buf [32]byte
	v.FillBytes(buf[:])
	s.SetByteSlice(buf[:])
	return s
}

// moneroScalarFromBigInt maps v onto Ed25519's scalar field. SetUniformBytes
// treats its 64-byte input as a little-endian integer reduced mod l, so v's
// big-endian bytes are reversed into the buffer's low 32 bytes; since every
// caller passes v < 2^252 < l, this is an exact embedding, not just a
// reduction.
func moneroScalarFromBigInt(v *big.Int) edwards25519.Scalar {
	be := v.Bytes()
	var wide [64]byte
	for i, b := range be {
		wide[len(be)-1-i] = b
	}
	s, err := new(edwards25519.Scalar).SetUniformBytes(wide[:])
	if err != nil {
		panic(err)
	}
	return *s
}

func randomBitcoinScalar() secp256k1.ModNScalar {
	var s secp256k1.ModNScalar
	for {
		var buf [32]byte
		if _, err := rand.Read(buf[:]); err != nil {
			panic(err)
		}
		if overflow := s.SetByteSlice(buf[:]); !overflow {
			return s
		}
	}
}

func randomMoneroScalar() edwards25519.Scalar {
	var buf [64]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(err)
	}
	s, err := new(edwards25519.Scalar).SetUniformBytes(buf[:])
	if err != nil {
		panic(err)
	}
	return *s
}

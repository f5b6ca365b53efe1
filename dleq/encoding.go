package dleq

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// bitProofSize is the wire size of one bit's worth of proof material:
// three 64-byte secp256k1 affine points (CBitcoin, A0Bitcoin and
// A1Bitcoin), three 32-byte Ed25519 points (CMonero, A0Monero and
// A1Monero), two 16-byte challenge shares, and four 32-byte scalar
// responses.
const bitProofSize = 64 + 32 + 64 + 64 + 32 + 32 + 16 + 16 + 32 + 32 + 32 + 32

// Size is the total wire size of a Proof: one bitProofSize block per bit,
// plus the two revealed total blinding factors.
const Size = numBits*bitProofSize + 32 + 32

// Bytes serializes the proof into the canonical fixed-size wire encoding
// swapmsg embeds in Message0 and Message1.
func (p *Proof) Bytes() []byte {
	out := make([]byte, 0, Size)
	for i := 0; i < numBits; i++ {
		bp := &p.Bits[i]
		out = append(out, bitcoinSerialize(&bp.CBitcoin)...)
		out = append(out, moneroSerialize(&bp.CMonero)...)
		out = append(out, bitcoinSerialize(&bp.A0Bitcoin)...)
		out = append(out, bitcoinSerialize(&bp.A1Bitcoin)...)
		out = append(out, moneroSerialize(&bp.A0Monero)...)
		out = append(out, moneroSerialize(&bp.A1Monero)...)
		out = append(out, bp.E0[:]...)
		out = append(out, bp.E1[:]...)
		z0b := bp.Z0Bitcoin.Bytes()
		z1b := bp.Z1Bitcoin.Bytes()
		out = append(out, z0b[:]...)
		out = append(out, z1b[:]...)
		z0m := bp.Z0Monero.Bytes()
		z1m := bp.Z1Monero.Bytes()
		out = append(out, z0m...)
		out = append(out, z1m...)
	}
	rb := p.RBitcoin.Bytes()
	rm := p.RMonero.Bytes()
	out = append(out, rb[:]...)
	out = append(out, rm...)
	return out
}

// ProofFromBytes parses the wire encoding Bytes produces.
func ProofFromBytes(b []byte) (*Proof, error) {
	if len(b) != Size {
		return nil, fmt.Errorf("dleq: proof must be %d bytes, got %d", Size, len(b))
	}

	proof := &Proof{}
	off := 0
	read := func(n int) []byte {
		s := b[off : off+n]
		off += n
		return s
	}

	for i := 0; i < numBits; i++ {
		bp := &proof.Bits[i]

		var err error
		bp.CBitcoin, err = bitcoinPointFromBytes(read(64))
		if err != nil {
			return nil, err
		}
		bp.CMonero, err = moneroPointFromBytes(read(32))
		if err != nil {
			return nil, err
		}
		bp.A0Bitcoin, err = bitcoinPointFromBytes(read(64))
		if err != nil {
			return nil, err
		}
		bp.A1Bitcoin, err = bitcoinPointFromBytes(read(64))
		if err != nil {
			return nil, err
		}
		bp.A0Monero, err = moneroPointFromBytes(read(32))
		if err != nil {
			return nil, err
		}
		bp.A1Monero, err = moneroPointFromBytes(read(32))
		if err != nil {
			return nil, err
		}

		copy(bp.E0[:], read(16))
		copy(bp.E1[:], read(16))

		bp.Z0Bitcoin.SetByteSlice(read(32))
		bp.Z1Bitcoin.SetByteSlice(read(32))

		z0m, err := new(edwards25519.Scalar).SetCanonicalBytes(read(32))
		if err != nil {
			return nil, fmt.Errorf("dleq: invalid Z0Monero scalar: %w", err)
		}
		bp.Z0Monero = *z0m

		z1m, err := new(edwards25519.Scalar).SetCanonicalBytes(read(32))
		if err != nil {
			return nil, fmt.Errorf("dleq: invalid Z1Monero scalar: %w", err)
		}
		bp.Z1Monero = *z1m
	}

	proof.RBitcoin.SetByteSlice(read(32))
	rMonero, err := new(edwards25519.Scalar).SetCanonicalBytes(read(32))
	if err != nil {
		return nil, fmt.Errorf("dleq: invalid RMonero scalar: %w", err)
	}
	proof.RMonero = *rMonero

	return proof, nil
}

func bitcoinPointFromBytes(b []byte) (secp256k1.JacobianPoint, error) {
	if len(b) != 64 {
		return secp256k1.JacobianPoint{}, fmt.Errorf("dleq: secp256k1 point must be 64 bytes")
	}
	var p secp256k1.JacobianPoint
	p.X.SetByteSlice(b[:32])
	p.Y.SetByteSlice(b[32:])
	p.Z.SetInt(1)
	return p, nil
}

func moneroPointFromBytes(b []byte) (edwards25519.Point, error) {
	p, err := new(edwards25519.Point).SetBytes(b)
	if err != nil {
		return edwards25519.Point{}, fmt.Errorf("dleq: invalid ed25519 point: %w", err)
	}
	return *p, nil
}

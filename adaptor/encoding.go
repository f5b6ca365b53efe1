package adaptor

import (
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Size is the wire size of an encoded EncryptedSignature: R and RPrime as
// 64-byte affine points, SHat and the two dleqProof scalars as 32 bytes
// each.
const Size = 64 + 64 + 32 + 32 + 32

// Bytes serializes an encrypted signature into the fixed-size encoding
// swapmsg embeds in Message2 and Message3.
func (es *EncryptedSignature) Bytes() []byte {
	out := make([]byte, 0, Size)
	out = append(out, serializeAffine(&es.R)...)
	out = append(out, serializeAffine(&es.RPrime)...)
	sHat := es.SHat.Bytes()
	out = append(out, sHat[:]...)
	c := es.proof.c.Bytes()
	z := es.proof.z.Bytes()
	out = append(out, c[:]...)
	out = append(out, z[:]...)
	return out
}

// EncryptedSignatureFromBytes parses the wire encoding Bytes produces.
func EncryptedSignatureFromBytes(b []byte) (*EncryptedSignature, error) {
	if len(b) != Size {
		return nil, fmt.Errorf("adaptor: encrypted signature must be %d bytes, got %d", Size, len(b))
	}

	off := 0
	read := func(n int) []byte {
		s := b[off : off+n]
		off += n
		return s
	}

	R, err := affinePointFromBytes(read(64))
	if err != nil {
		return nil, fmt.Errorf("adaptor: R: %w", err)
	}
	RPrime, err := affinePointFromBytes(read(64))
	if err != nil {
		return nil, fmt.Errorf("adaptor: RPrime: %w", err)
	}

	var sHat, c, z secp256k1.ModNScalar
	sHat.SetByteSlice(read(32))
	c.SetByteSlice(read(32))
	z.SetByteSlice(read(32))

	return &EncryptedSignature{
		R:      R,
		RPrime: RPrime,
		SHat:   sHat,
		proof:  dleqProof{c: c, z: z},
	}, nil
}

func affinePointFromBytes(b []byte) (secp256k1.JacobianPoint, error) {
	if len(b) != 64 {
		return secp256k1.JacobianPoint{}, fmt.Errorf("point must be 64 bytes")
	}
	var p secp256k1.JacobianPoint
	p.X.SetByteSlice(b[:32])
	p.Y.SetByteSlice(b[32:])
	p.Z.SetInt(1)
	return p, nil
}

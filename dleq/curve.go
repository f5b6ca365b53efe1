package dleq

import (
	"filippo.io/edwards25519"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

func bitcoinMul(k *secp256k1.ModNScalar, p *secp256k1.JacobianPoint) secp256k1.JacobianPoint {
	var result secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(k, p, &result)
	result.ToAffine()
	return result
}

func bitcoinBaseMul(k *secp256k1.ModNScalar) secp256k1.JacobianPoint {
	var result secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(k, &result)
	result.ToAffine()
	return result
}

func bitcoinAdd(a, b *secp256k1.JacobianPoint) secp256k1.JacobianPoint {
	var result secp256k1.JacobianPoint
	secp256k1.AddNonConst(a, b, &result)
	result.ToAffine()
	return result
}

func bitcoinNegate(p *secp256k1.JacobianPoint) secp256k1.JacobianPoint {
	neg := *p
	neg.Y.Negate(1)
	neg.Y.Normalize()
	return neg
}

func bitcoinSub(a, b *secp256k1.JacobianPoint) secp256k1.JacobianPoint {
	negB := bitcoinNegate(b)
	return bitcoinAdd(a, &negB)
}

func bitcoinEqual(a, b *secp256k1.JacobianPoint) bool {
	return a.X == b.X && a.Y == b.Y && a.Z == b.Z
}

func bitcoinSerialize(p *secp256k1.JacobianPoint) []byte {
	x := p.X.Bytes()
	y := p.Y.Bytes()
	out := make([]byte, 0, 64)
	out = append(out, x[:]...)
	out = append(out, y[:]...)
	return out
}

func moneroMul(k *edwards25519.Scalar, p *edwards25519.Point) edwards25519.Point {
	var result edwards25519.Point
	result.ScalarMult(k, p)
	return result
}

func moneroBaseMul(k *edwards25519.Scalar) edwards25519.Point {
	var result edwards25519.Point
	result.ScalarBaseMult(k)
	return result
}

func moneroAdd(a, b *edwards25519.Point) edwards25519.Point {
	var result edwards25519.Point
	result.Add(a, b)
	return result
}

func moneroSub(a, b *edwards25519.Point) edwards25519.Point {
	var result edwards25519.Point
	result.Subtract(a, b)
	return result
}

func moneroEqual(a, b *edwards25519.Point) bool {
	return a.Equal(b) == 1
}

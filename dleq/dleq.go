package dleq

import (
	"math/big"

	"filippo.io/edwards25519"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Scalar is the 252-bit integer this package proves cross-curve discrete
// log equality for - a Monero spend key share as used throughout xmrcrypto,
// reinterpreted here as a plain big.Int for the bit decomposition the proof
// needs.
type Scalar = big.Int

// bitProof is one bit's worth of the cross-curve range-proof-style OR
// argument: Pedersen commitments to the bit on both curves, and a
// Cramer-Damgård-Schoenmakers proof that both commitments open to the same
// bit (0 or 1) without revealing which.
type bitProof struct {
	CBitcoin secp256k1.JacobianPoint
	CMonero  edwards25519.Point

	A0Bitcoin, A1Bitcoin secp256k1.JacobianPoint
	A0Monero, A1Monero   edwards25519.Point

	E0, E1 [16]byte

	Z0Bitcoin, Z1Bitcoin secp256k1.ModNScalar
	Z0Monero, Z1Monero   edwards25519.Scalar
}

// Proof is the full cross-curve DLEQ proof for all 252 bits of a scalar,
// plus the revealed total blinding factors needed to recombine the bit
// commitments against the claimed public points.
type Proof struct {
	Bits     [numBits]bitProof
	RBitcoin secp256k1.ModNScalar
	RMonero  edwards25519.Scalar
}

// Prove builds a cross-curve DLEQ proof for s, returning the secp256k1
// point s*G, the Ed25519 point s*B, and the proof that the same s underlies
// both - spec.md's dleq_prove(s) -> (S_bitcoin, S_monero, pi).
func Prove(s *Scalar) (*secp256k1.PublicKey, *edwards25519.Point, *Proof, error) {
	if s.Sign() < 0 || s.BitLen() > numBits {
		return nil, nil, nil, ErrScalarTooLarge
	}

	sBitcoinScalar := bitcoinScalarFromBigInt(s)
	sMoneroScalar := moneroScalarFromBigInt(s)

	sBitcoinPoint := bitcoinBaseMul(&sBitcoinScalar)
	sMoneroPoint := moneroBaseMul(&sMoneroScalar)

	proof := &Proof{}

	bitcoinWeight := bitcoinScalarFromBigInt(big.NewInt(1))
	moneroWeight := moneroScalarFromBigInt(big.NewInt(1))

	var rBitcoinTotal secp256k1.ModNScalar
	var rMoneroTotal edwards25519.Scalar

	for i := 0; i < numBits; i++ {
		bit := s.Bit(i)

		rBitcoin := randomBitcoinScalar()
		rMonero := randomMoneroScalar()

		bp := proveBit(bit, &rBitcoin, &rMonero)
		proof.Bits[i] = bp

		weightedRBitcoin := bitcoinMulScalar(&bitcoinWeight, &rBitcoin)
		rBitcoinTotal.Add(&weightedRBitcoin)

		weightedRMonero := moneroMulScalar(&moneroWeight, &rMonero)
		nextRMoneroTotal := new(edwards25519.Scalar).Add(&rMoneroTotal, &weightedRMonero)
		rMoneroTotal = *nextRMoneroTotal

		nextBitcoinWeight := new(secp256k1.ModNScalar).Set(&bitcoinWeight)
		nextBitcoinWeight.Add(&bitcoinWeight)
		bitcoinWeight = *nextBitcoinWeight

		nextMoneroWeight := new(edwards25519.Scalar).Add(&moneroWeight, &moneroWeight)
		moneroWeight = *nextMoneroWeight
	}

	proof.RBitcoin = rBitcoinTotal
	proof.RMonero = rMoneroTotal

	pub, err := secp256k1.ParsePubKey(serializeAffinePubKey(&sBitcoinPoint))
	if err != nil {
		return nil, nil, nil, err
	}

	return pub, &sMoneroPoint, proof, nil
}

func bitcoinMulScalar(a, b *secp256k1.ModNScalar) secp256k1.ModNScalar {
	result := *a
	result.Mul(b)
	return result
}

func moneroMulScalar(a, b *edwards25519.Scalar) edwards25519.Scalar {
	var result edwards25519.Scalar
	result.Multiply(a, b)
	return result
}

// proveBit runs the two-curve CDS OR-proof for a single bit: prove that
// CBitcoin and CMonero, two independent Pedersen commitments, both open to
// the same bit value, without revealing it.
func proveBit(bit uint, rBitcoin *secp256k1.ModNScalar, rMonero *edwards25519.Scalar) bitProof {
	var bitBitcoin secp256k1.ModNScalar
	var bitMonero edwards25519.Scalar
	if bit == 1 {
		bitBitcoin.SetInt(1)
		bitMonero = *moneroScalarFromBigInt(big.NewInt(1))
	}

	gBitcoin := bitcoinBaseMul(&bitBitcoin)
	rHBitcoin := bitcoinMul(rBitcoin, &bitcoinH)
	cBitcoin := bitcoinAdd(&gBitcoin, &rHBitcoin)

	gMonero := moneroBaseMul(&bitMonero)
	rHMonero := moneroMul(rMonero, &moneroH)
	cMonero := moneroAdd(&gMonero, &rHMonero)

	bitcoinOne := new(secp256k1.ModNScalar)
	bitcoinOne.SetInt(1)
	bitcoinG := bitcoinBaseMul(bitcoinOne)

	moneroOne := moneroScalarFromBigInt(big.NewInt(1))
	moneroG := moneroBaseMul(&moneroOne)

	target0Bitcoin := cBitcoin
	target1Bitcoin := bitcoinSub(&cBitcoin, &bitcoinG)

	target0Monero := cMonero
	target1Monero := moneroSub(&cMonero, &moneroG)

	bp := bitProof{CBitcoin: cBitcoin, CMonero: cMonero}

	fakeBranch := uint(1 - bit)
	realBranch := bit

	eFake := randomChallengeShare()
	zFakeBitcoin := randomBitcoinScalar()
	zFakeMonero := randomMoneroScalar()

	eFakeBitcoinScalar := bitcoinScalarFromBigInt(eFake)
	eFakeMoneroScalar := moneroScalarFromBigInt(eFake)

	var fakeTargetBitcoin secp256k1.JacobianPoint
	var fakeTargetMonero edwards25519.Point
	if fakeBranch == 0 {
		fakeTargetBitcoin = target0Bitcoin
		fakeTargetMonero = target0Monero
	} else {
		fakeTargetBitcoin = target1Bitcoin
		fakeTargetMonero = target1Monero
	}

	zFakeHBitcoin := bitcoinMul(&zFakeBitcoin, &bitcoinH)
	eFakeTargetBitcoin := bitcoinMul(&eFakeBitcoinScalar, &fakeTargetBitcoin)
	aFakeBitcoin := bitcoinSub(&zFakeHBitcoin, &eFakeTargetBitcoin)

	zFakeHMonero := moneroMul(&zFakeMonero, &moneroH)
	eFakeTargetMonero := moneroMul(&eFakeMoneroScalar, &fakeTargetMonero)
	aFakeMonero := moneroSub(&zFakeHMonero, &eFakeTargetMonero)

	kBitcoin := randomBitcoinScalar()
	kMonero := randomMoneroScalar()

	aRealBitcoin := bitcoinMul(&kBitcoin, &bitcoinH)
	aRealMonero := moneroMul(&kMonero, &moneroH)

	var a0Bitcoin, a1Bitcoin secp256k1.JacobianPoint
	var a0Monero, a1Monero edwards25519.Point
	if realBranch == 0 {
		a0Bitcoin, a1Bitcoin = aRealBitcoin, aFakeBitcoin
		a0Monero, a1Monero = aRealMonero, aFakeMonero
	} else {
		a0Bitcoin, a1Bitcoin = aFakeBitcoin, aRealBitcoin
		a0Monero, a1Monero = aFakeMonero, aRealMonero
	}

	c := challengeHash(
		bitcoinSerialize(&cBitcoin), moneroSerialize(&cMonero),
		bitcoinSerialize(&a0Bitcoin), moneroSerialize(&a0Monero),
		bitcoinSerialize(&a1Bitcoin), moneroSerialize(&a1Monero),
	)

	eReal := new(big.Int).Sub(c, eFake)
	eReal.Mod(eReal, twoPow128)

	eRealBitcoinScalar := bitcoinScalarFromBigInt(eReal)
	eRealMoneroScalar := moneroScalarFromBigInt(eReal)

	var zRealBitcoin secp256k1.ModNScalar
	erR := eRealBitcoinScalar
	erR.Mul(rBitcoin)
	zRealBitcoin.Set(&kBitcoin)
	zRealBitcoin.Add(&erR)

	var zRealMonero edwards25519.Scalar
	zRealMonero.MultiplyAdd(&eRealMoneroScalar, rMonero, &kMonero)

	bp.A0Bitcoin, bp.A1Bitcoin = a0Bitcoin, a1Bitcoin
	bp.A0Monero, bp.A1Monero = a0Monero, a1Monero

	if realBranch == 0 {
		bp.E0, bp.E1 = challengeToBytes(eReal), challengeToBytes(eFake)
		bp.Z0Bitcoin, bp.Z1Bitcoin = zRealBitcoin, zFakeBitcoin
		bp.Z0Monero, bp.Z1Monero = zRealMonero, zFakeMonero
	} else {
		bp.E0, bp.E1 = challengeToBytes(eFake), challengeToBytes(eReal)
		bp.Z0Bitcoin, bp.Z1Bitcoin = zFakeBitcoin, zRealBitcoin
		bp.Z0Monero, bp.Z1Monero = zFakeMonero, zRealMonero
	}

	return bp
}

// Verify checks a cross-curve DLEQ proof against the two claimed public
// points - spec.md's dleq_verify(S_bitcoin, S_monero, pi) -> bool, returning
// an error describing the failure instead of a bare boolean.
func Verify(sBitcoin *secp256k1.PublicKey, sMonero *edwards25519.Point, proof *Proof) error {
	var accumBitcoin secp256k1.JacobianPoint
	accumBitcoin.X.SetInt(0)
	accumBitcoin.Y.SetInt(0)
	accumBitcoin.Z.SetInt(0)
	haveBitcoinAccum := false

	var accumMonero edwards25519.Point
	accumMonero.Set(edwards25519.NewIdentityPoint())

	bitcoinWeight := bitcoinScalarFromBigInt(big.NewInt(1))
	moneroWeight := moneroScalarFromBigInt(big.NewInt(1))

	bitcoinGScalar := new(secp256k1.ModNScalar)
	bitcoinGScalar.SetInt(1)
	bitcoinG := bitcoinBaseMul(bitcoinGScalar)

	moneroGScalar := moneroScalarFromBigInt(big.NewInt(1))
	moneroG := moneroBaseMul(&moneroGScalar)

	for i := 0; i < numBits; i++ {
		bp := proof.Bits[i]

		c := challengeHash(
			bitcoinSerialize(&bp.CBitcoin), moneroSerialize(&bp.CMonero),
			bitcoinSerialize(&bp.A0Bitcoin), moneroSerialize(&bp.A0Monero),
			bitcoinSerialize(&bp.A1Bitcoin), moneroSerialize(&bp.A1Monero),
		)

		e0 := bytesToChallenge(bp.E0)
		e1 := bytesToChallenge(bp.E1)
		sum := new(big.Int).Add(e0, e1)
		sum.Mod(sum, twoPow128)
		if sum.Cmp(c) != 0 {
			return ErrInvalidProof
		}

		e0Bitcoin := bitcoinScalarFromBigInt(e0)
		e1Bitcoin := bitcoinScalarFromBigInt(e1)
		e0Monero := moneroScalarFromBigInt(e0)
		e1Monero := moneroScalarFromBigInt(e1)

		target0Bitcoin := bp.CBitcoin
		target1Bitcoin := bitcoinSub(&bp.CBitcoin, &bitcoinG)
		target0Monero := bp.CMonero
		target1Monero := moneroSub(&bp.CMonero, &moneroG)

		lhs0Bitcoin := bitcoinMul(&bp.Z0Bitcoin, &bitcoinH)
		rhs0Bitcoin := bitcoinAdd(&bp.A0Bitcoin, pointPtr(bitcoinMul(&e0Bitcoin, &target0Bitcoin)))
		if !bitcoinEqual(&lhs0Bitcoin, &rhs0Bitcoin) {
			return ErrInvalidProof
		}

		lhs1Bitcoin := bitcoinMul(&bp.Z1Bitcoin, &bitcoinH)
		rhs1Bitcoin := bitcoinAdd(&bp.A1Bitcoin, pointPtr(bitcoinMul(&e1Bitcoin, &target1Bitcoin)))
		if !bitcoinEqual(&lhs1Bitcoin, &rhs1Bitcoin) {
			return ErrInvalidProof
		}

		lhs0Monero := moneroMul(&bp.Z0Monero, &moneroH)
		rhs0Monero := moneroAdd(&bp.A0Monero, edPointPtr(moneroMul(&e0Monero, &target0Monero)))
		if !moneroEqual(&lhs0Monero, &rhs0Monero) {
			return ErrInvalidProof
		}

		lhs1Monero := moneroMul(&bp.Z1Monero, &moneroH)
		rhs1Monero := moneroAdd(&bp.A1Monero, edPointPtr(moneroMul(&e1Monero, &target1Monero)))
		if !moneroEqual(&lhs1Monero, &rhs1Monero) {
			return ErrInvalidProof
		}

		weightedBitcoin := bitcoinMul(&bitcoinWeight, &bp.CBitcoin)
		if !haveBitcoinAccum {
			accumBitcoin = weightedBitcoin
			haveBitcoinAccum = true
		} else {
			accumBitcoin = bitcoinAdd(&accumBitcoin, &weightedBitcoin)
		}

		weightedMonero := moneroMul(&moneroWeight, &bp.CMonero)
		accumMonero = moneroAdd(&accumMonero, &weightedMonero)

		nextBitcoinWeight := new(secp256k1.ModNScalar).Set(&bitcoinWeight)
		nextBitcoinWeight.Add(&bitcoinWeight)
		bitcoinWeight = *nextBitcoinWeight

		nextMoneroWeight := new(edwards25519.Scalar).Add(&moneroWeight, &moneroWeight)
		moneroWeight = *nextMoneroWeight
	}

	rHBitcoin := bitcoinMul(&proof.RBitcoin, &bitcoinH)
	expectedBitcoin := bitcoinSub(&accumBitcoin, &rHBitcoin)

	var sBitcoinJac secp256k1.JacobianPoint
	sBitcoin.AsJacobian(&sBitcoinJac)
	if !bitcoinEqual(&expectedBitcoin, &sBitcoinJac) {
		return ErrInvalidProof
	}

	rHMonero := moneroMul(&proof.RMonero, &moneroH)
	expectedMonero := moneroSub(&accumMonero, &rHMonero)
	if !moneroEqual(&expectedMonero, sMonero) {
		return ErrInvalidProof
	}

	return nil
}

func pointPtr(p secp256k1.JacobianPoint) *secp256k1.JacobianPoint { return &p }
func edPointPtr(p edwards25519.Point) *edwards25519.Point         { return &p }

func moneroSerialize(p *edwards25519.Point) []byte {
	b := p.Bytes()
	return b[:]
}

func serializeAffinePubKey(p *secp256k1.JacobianPoint) []byte {
	x := p.X.Bytes()
	y := p.Y.Bytes()
	out := make([]byte, 0, 33)
	if y[31]&1 == 0 {
		out = append(out, 0x02)
	} else {
		out = append(out, 0x03)
	}
	out = append(out, x[:]...)
	return out
}

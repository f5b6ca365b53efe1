package adaptor

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ErrInvalidDLEQProof is returned by EncVerify when the embedded proof that
// R and R' share a discrete log does not check out.
var ErrInvalidDLEQProof = errors.New("adaptor: invalid dleq proof")

// ErrNotRecoverable is returned by Recover when neither candidate scalar
// it derives is the encryption key used to produce the ciphertext signature.
var ErrNotRecoverable = errors.New("adaptor: encryption key not recoverable from signature pair")

// dleqProof is a Chaum-Pedersen proof of knowledge of a scalar k such that
// R = k*G and R' = k*Y, for the same k, without revealing k. It binds the
// two nonce commitments inside an EncryptedSignature together so EncVerify
// can check the ciphertext was built honestly before anyone ever learns k.
type dleqProof struct {
	// c is the Fiat-Shamir challenge and z is the response; together
	// (c, z) let a verifier reconstruct z*G - c*R and z*Y - c*R' and
	// check both hash back to c.
	c secp256k1.ModNScalar
	z secp256k1.ModNScalar
}

// EncryptedSignature is an ECDSA signature on message m encrypted under the
// public point Y, following spec.md §4.1. Once y (the discrete log of Y) is
// known, DecSig recovers a valid, ordinary ECDSA signature (r, s) over m;
// conversely, observing both the encrypted and decrypted signatures lets
// anyone recover y via Recover. This is the "adaptor signature" primitive
// the whole swap hinges on: Bob hands Alice EncSign(b, S_a_bitcoin, m) for
// tx_redeem, Alice decrypts it with her secret s_a and publishes the
// resulting signature in tx_redeem, and Bob then recovers s_a from that
// published (decrypted) Bitcoin signature.
type EncryptedSignature struct {
	// R is the public nonce commitment k*G.
	R secp256k1.JacobianPoint
	// RPrime is the encrypted nonce commitment k*Y.
	RPrime secp256k1.JacobianPoint
	// RPrime's affine X coordinate, reduced to a scalar, is the signature's
	// r value; SHat is the "encrypted" s value, s_hat = k^-1*(m + r*x).
	SHat secp256k1.ModNScalar
	proof dleqProof
}

// EncSign produces an encrypted signature over m under private key x
// (the signer's Bitcoin key share) and encryption point Y (the counterpart's
// adaptor public key). m must be a 32-byte message digest, as with ordinary
// ECDSA signing.
func EncSign(x *secp256k1.PrivateKey, Y *secp256k1.PublicKey, m [32]byte) (*EncryptedSignature, error) {
	var k secp256k1.ModNScalar
	if err := generateNonce(&k, x, m[:]); err != nil {
		return nil, err
	}
	if k.IsZero() {
		return nil, errors.New("adaptor: zero nonce")
	}

	R := scalarBaseMul(&k)
	yJac := jacobianFromPubKey(Y)
	RPrime := pointMul(&k, &yJac)

	r := fieldToScalar(&RPrime.X)
	if r.IsZero() {
		return nil, errors.New("adaptor: zero r value, retry with fresh nonce")
	}

	xScalar := x.Key
	var rx secp256k1.ModNScalar
	rx.Set(&r).Mul(&xScalar)

	var mScalar secp256k1.ModNScalar
	mScalar.SetByteSlice(m[:])

	var num secp256k1.ModNScalar
	num.Set(&mScalar).Add(&rx)

	kInv := new(secp256k1.ModNScalar).Set(&k).InverseValNonConst()
	var sHat secp256k1.ModNScalar
	sHat.Set(kInv).Mul(&num)

	proof := proveDLEQ(&k, &R, &RPrime, Y)

	return &EncryptedSignature{
		R:      R,
		RPrime: RPrime,
		SHat:   sHat,
		proof:  proof,
	}, nil
}

// proveDLEQ builds a Chaum-Pedersen proof that R=k*G and RPrime=k*Y share
// discrete log k, binding the encrypted nonce to the plain one.
func proveDLEQ(k *secp256k1.ModNScalar, R, RPrime *secp256k1.JacobianPoint, Y *secp256k1.PublicKey) dleqProof {
	t := randomScalar()
	T1 := scalarBaseMul(&t)
	yJac := jacobianFromPubKey(Y)
	T2 := pointMul(&t, &yJac)

	c := challengeScalar(
		serializeAffine(R), serializeAffine(RPrime),
		serializeAffine(&T1), serializeAffine(&T2),
	)

	var ck secp256k1.ModNScalar
	ck.Set(&c).Mul(k)
	var z secp256k1.ModNScalar
	z.Set(&t).Add(&ck)

	return dleqProof{c: c, z: z}
}

// verifyDLEQ checks the proof that R and RPrime share a discrete log
// relative to G and Y respectively.
func verifyDLEQ(proof dleqProof, R, RPrime *secp256k1.JacobianPoint, Y *secp256k1.PublicKey) bool {
	// T1' = z*G - c*R
	zG := scalarBaseMul(&proof.z)
	cR := pointMul(&proof.c, R)
	cR.Y.Negate(1)
	cR.Y.Normalize()
	T1 := pointAdd(&zG, &cR)

	// T2' = z*Y - c*R'
	yJac := jacobianFromPubKey(Y)
	zY := pointMul(&proof.z, &yJac)
	cRPrime := pointMul(&proof.c, RPrime)
	cRPrime.Y.Negate(1)
	cRPrime.Y.Normalize()
	T2 := pointAdd(&zY, &cRPrime)

	c2 := challengeScalar(
		serializeAffine(R), serializeAffine(RPrime),
		serializeAffine(&T1), serializeAffine(&T2),
	)

	return c2.Equals(&proof.c)
}

// DecSig decrypts an EncryptedSignature using the discrete log y of the
// encryption point Y it was built under, producing an ordinary, valid
// ECDSA (r, s) signature over the original message.
func DecSig(y *secp256k1.ModNScalar, es *EncryptedSignature) *Signature {
	r := fieldToScalar(&es.RPrime.X)

	yInv := new(secp256k1.ModNScalar).Set(y).InverseValNonConst()
	var s secp256k1.ModNScalar
	s.Set(&es.SHat).Mul(yInv)

	// ECDSA signatures are conventionally normalized to the lower
	// of the two (s, n-s) malleable values.
	if s.IsOverHalfOrder() {
		s.Negate()
	}

	return &Signature{R: r, S: s}
}

// Signature is a decrypted, ordinary ECDSA signature.
type Signature struct {
	R secp256k1.ModNScalar
	S secp256k1.ModNScalar
}

// EncVerify checks that an EncryptedSignature was produced honestly: that
// it decrypts (under whatever y corresponds to Y) to a valid ECDSA
// signature over m by the holder of public key X, without ever seeing y.
func EncVerify(X, Y *secp256k1.PublicKey, m [32]byte, es *EncryptedSignature) error {
	if !verifyDLEQ(es.proof, &es.R, &es.RPrime, Y) {
		return ErrInvalidDLEQProof
	}

	r := fieldToScalar(&es.RPrime.X)
	if r.IsZero() || es.SHat.IsZero() {
		return errors.New("adaptor: degenerate encrypted signature")
	}

	sHatInv := new(secp256k1.ModNScalar).Set(&es.SHat).InverseValNonConst()

	var mScalar secp256k1.ModNScalar
	mScalar.SetByteSlice(m[:])

	var u1 secp256k1.ModNScalar
	u1.Set(sHatInv).Mul(&mScalar)
	var u2 secp256k1.ModNScalar
	u2.Set(sHatInv).Mul(&r)

	u1G := scalarBaseMul(&u1)
	xJac := jacobianFromPubKey(X)
	u2X := pointMul(&u2, &xJac)

	RCheck := pointAdd(&u1G, &u2X)

	if RCheck.X != es.R.X || RCheck.Y != es.R.Y {
		return fmt.Errorf("adaptor: encrypted signature does not verify against pubkey")
	}
	return nil
}

// Recover extracts the discrete log y of the encryption point from a
// decrypted signature and the encrypted signature it was decrypted from.
// Because ECDSA signatures are malleable between (r, s) and (r, n-s), both
// sign-candidates for y are tried; the one matching Y is returned.
func Recover(Y *secp256k1.PublicKey, sig *Signature, es *EncryptedSignature) (*secp256k1.ModNScalar, error) {
	sInv := new(secp256k1.ModNScalar).Set(&sig.S).InverseValNonConst()

	var y secp256k1.ModNScalar
	y.Set(sInv).Mul(&es.SHat)

	if candidateMatches(&y, Y) {
		yCopy := y
		return &yCopy, nil
	}

	var yNeg secp256k1.ModNScalar
	yNeg.Set(&y).Negate()
	if candidateMatches(&yNeg, Y) {
		return &yNeg, nil
	}

	return nil, ErrNotRecoverable
}

func candidateMatches(y *secp256k1.ModNScalar, Y *secp256k1.PublicKey) bool {
	candidate := scalarBaseMul(y)
	yJac := jacobianFromPubKey(Y)
	return candidate.X == yJac.X && candidate.Y == yJac.Y
}

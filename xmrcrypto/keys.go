// Package xmrcrypto implements the Ed25519 scalar and point arithmetic
// needed to represent and combine Monero key shares: private spend keys,
// private view keys, and the public key pairs derived from them. The shape
// of this API (PrivateSpendKey, PrivateViewKey, PublicKeyPair,
// SumPrivateSpendKeys, SumPublicKeys) follows the mcrypto package referenced
// throughout the retrieved atomic-swap ports (e.g. their
// protocol/*/recovery.go callers), adapted here to a concrete, self-contained
// implementation on top of filippo.io/edwards25519 rather than an opaque
// dependency.
package xmrcrypto

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"filippo.io/edwards25519"
)

// ErrInvalidScalar is returned when 32 bytes do not reduce to a canonical
// Ed25519 scalar.
var ErrInvalidScalar = errors.New("xmrcrypto: invalid ed25519 scalar")

// PrivateSpendKey is a Monero spend key share: an Ed25519 scalar modulo the
// order of the base point.
type PrivateSpendKey struct {
	scalar *edwards25519.Scalar
}

// PrivateViewKey is a Monero view key share.
type PrivateViewKey struct {
	scalar *edwards25519.Scalar
}

// PublicKey is a point on Ed25519: either a public spend or view key.
type PublicKey struct {
	point *edwards25519.Point
}

// NewPrivateSpendKey reduces 32 little-endian bytes into a canonical scalar.
// Unlike NewPrivateSpendKeyCanonical, the input need not already be reduced:
// this is used when deriving a spend key share from arbitrary randomness or
// from a hash digest, the same relaxed-input idiom mcrypto.NewPrivateSpendKey
// is reported to use by its callers in protocol/alice/recovery.go and
// recover/recovery.go, which pass raw decoded hex straight through.
func NewPrivateSpendKey(b []byte) (*PrivateSpendKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("xmrcrypto: spend key must be 32 bytes, got %d", len(b))
	}

	var wide [64]byte
	copy(wide[:], b)

	s, err := new(edwards25519.Scalar).SetUniformBytes(wide[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScalar, err)
	}

	return &PrivateSpendKey{scalar: s}, nil
}

// NewPrivateSpendKeyCanonical requires b to already be a canonical,
// reduced little-endian scalar encoding.
func NewPrivateSpendKeyCanonical(b []byte) (*PrivateSpendKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("xmrcrypto: spend key must be 32 bytes, got %d", len(b))
	}

	s, err := new(edwards25519.Scalar).SetCanonicalBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScalar, err)
	}

	return &PrivateSpendKey{scalar: s}, nil
}

// GenerateSpendKey derives a spend key share from 32 bytes of randomness,
// passed in as the seed argument, following a hash-to-scalar expansion so that
// any 32-byte seed deterministically maps to a valid scalar.
func GenerateSpendKey(seed [32]byte) (*PrivateSpendKey, error) {
	h := sha256.Sum256(seed[:])
	return NewPrivateSpendKey(h[:])
}

// Bytes returns the canonical little-endian encoding of the scalar.
func (k *PrivateSpendKey) Bytes() [32]byte {
	var out [32]byte
	copy(out[:], k.scalar.Bytes())
	return out
}

// Hex is the lowercase hex encoding of Bytes().
func (k *PrivateSpendKey) Hex() string {
	b := k.Bytes()
	return hex.EncodeToString(b[:])
}

// BigInt returns the canonical big-endian integer value of the scalar -
// the same integer dleq.Prove consumes and adaptor.Recover yields back on
// the secp256k1 side, letting a spend key share cross between the two
// curve representations without going through a hex round trip.
func (k *PrivateSpendKey) BigInt() *big.Int {
	le := k.Bytes()
	be := make([]byte, len(le))
	for i, b := range le {
		be[len(le)-1-i] = b
	}
	return new(big.Int).SetBytes(be)
}

// NewPrivateSpendKeyFromBigInt builds a spend key share out of a scalar
// produced by dleq.Prove or recovered from a decrypted adaptor signature.
// Every such value is constrained to be below 2^252 (dleq.numBits), which
// is below Ed25519's order l, so the conversion is an exact embedding and
// never needs modular reduction.
func NewPrivateSpendKeyFromBigInt(v *big.Int) (*PrivateSpendKey, error) {
	be := v.Bytes()
	if len(be) > 32 {
		return nil, fmt.Errorf("xmrcrypto: scalar does not fit in 32 bytes")
	}
	var le [32]byte
	for i, b := range be {
		le[len(be)-1-i] = b
	}
	s, err := new(edwards25519.Scalar).SetCanonicalBytes(le[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScalar, err)
	}
	return &PrivateSpendKey{scalar: s}, nil
}

// Public returns the public spend key S = s*B, where B is the Ed25519 base
// point.
func (k *PrivateSpendKey) Public() *PublicKey {
	p := new(edwards25519.Point).ScalarBaseMult(k.scalar)
	return &PublicKey{point: p}
}

// View derives the private view key from the private spend key the way
// Monero wallets do: v = H_s(H_s(s)), an iterated Keccak/SHA hash-to-scalar
// of the spend key. This repository uses SHA-256 in place of Monero's
// Keccak-256 since no Keccak implementation is part of the retrieved
// dependency pack (see DESIGN.md); the two-party swap protocol treats v_a,
// v_b as independently agreed scalars and never needs this derivation to
// match a real Monero wallet's, only to be a valid, reproducible Ed25519
// scalar.
func (k *PrivateSpendKey) View() (*PrivateViewKey, error) {
	b := k.Bytes()
	h1 := sha256.Sum256(b[:])
	h2 := sha256.Sum256(h1[:])
	s, err := new(edwards25519.Scalar).SetUniformBytes(append(h2[:], h2[:]...))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScalar, err)
	}
	return &PrivateViewKey{scalar: s}, nil
}

// NewPrivateViewKeyCanonical requires b to already be a canonical, reduced
// little-endian scalar encoding.
func NewPrivateViewKeyCanonical(b []byte) (*PrivateViewKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("xmrcrypto: view key must be 32 bytes, got %d", len(b))
	}
	s, err := new(edwards25519.Scalar).SetCanonicalBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScalar, err)
	}
	return &PrivateViewKey{scalar: s}, nil
}

// NewPrivateViewKeyFromHex decodes a hex-encoded scalar into a view key.
func NewPrivateViewKeyFromHex(s string) (*PrivateViewKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("xmrcrypto: view key must be 32 bytes, got %d", len(b))
	}
	sc, err := new(edwards25519.Scalar).SetCanonicalBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScalar, err)
	}
	return &PrivateViewKey{scalar: sc}, nil
}

// Bytes returns the canonical little-endian encoding of the scalar.
func (k *PrivateViewKey) Bytes() [32]byte {
	var out [32]byte
	copy(out[:], k.scalar.Bytes())
	return out
}

// Hex is the lowercase hex encoding of Bytes().
func (k *PrivateViewKey) Hex() string {
	b := k.Bytes()
	return hex.EncodeToString(b[:])
}

// Public returns the public view key V = v*B.
func (k *PrivateViewKey) Public() *PublicKey {
	p := new(edwards25519.Point).ScalarBaseMult(k.scalar)
	return &PublicKey{point: p}
}

// Point returns the underlying Ed25519 point, for callers (such as dleq.Verify)
// that operate directly on filippo.io/edwards25519 types.
func (k *PublicKey) Point() *edwards25519.Point {
	return k.point
}

// Bytes returns the compressed 32-byte encoding of the point.
func (k *PublicKey) Bytes() [32]byte {
	var out [32]byte
	copy(out[:], k.point.Bytes())
	return out
}

// Hex is the lowercase hex encoding of Bytes().
func (k *PublicKey) Hex() string {
	b := k.Bytes()
	return hex.EncodeToString(b[:])
}

// NewPublicKeyFromBytes decodes a compressed Ed25519 point.
func NewPublicKeyFromBytes(b []byte) (*PublicKey, error) {
	if len(b) != 32 {
		return nil, fmt.Errorf("xmrcrypto: public key must be 32 bytes, got %d", len(b))
	}
	p, err := new(edwards25519.Point).SetBytes(b)
	if err != nil {
		return nil, fmt.Errorf("xmrcrypto: invalid point encoding: %w", err)
	}
	return &PublicKey{point: p}, nil
}

// Add returns k + other as a new point, used to combine the two parties'
// public spend or view keys into the joint Monero key.
func (k *PublicKey) Add(other *PublicKey) *PublicKey {
	sum := new(edwards25519.Point).Add(k.point, other.point)
	return &PublicKey{point: sum}
}

// Equal reports whether the two points encode the same value.
func (k *PublicKey) Equal(other *PublicKey) bool {
	return k.Bytes() == other.Bytes()
}

// SumPrivateSpendKeys returns a + b mod l, the joint spend key s_a + s_b
// that controls the Monero lock output once both shares are known.
func SumPrivateSpendKeys(a, b *PrivateSpendKey) *PrivateSpendKey {
	sum := new(edwards25519.Scalar).Add(a.scalar, b.scalar)
	return &PrivateSpendKey{scalar: sum}
}

// SumPrivateViewKeys returns a + b mod l, the joint view key v_a + v_b.
func SumPrivateViewKeys(a, b *PrivateViewKey) *PrivateViewKey {
	sum := new(edwards25519.Scalar).Add(a.scalar, b.scalar)
	return &PrivateViewKey{scalar: sum}
}

// PublicKeyPair bundles a public spend and view key, exactly the public
// material each side sends the other in Message0/Message1.
type PublicKeyPair struct {
	SpendKey *PublicKey
	ViewKey  *PublicKey
}

// PrivateKeyPair bundles a private spend and view key. A PrivateKeyPair for
// s_a+s_b, v_a+v_b is what's handed to the Monero wallet's create-from-keys
// call on the refund and redeem paths.
type PrivateKeyPair struct {
	SpendKey *PrivateSpendKey
	ViewKey  *PrivateViewKey
}

// NewPrivateKeyPair bundles the given keys.
func NewPrivateKeyPair(sk *PrivateSpendKey, vk *PrivateViewKey) *PrivateKeyPair {
	return &PrivateKeyPair{SpendKey: sk, ViewKey: vk}
}

// Public returns the public spend/view key pair corresponding to kp.
func (kp *PrivateKeyPair) Public() *PublicKeyPair {
	return &PublicKeyPair{
		SpendKey: kp.SpendKey.Public(),
		ViewKey:  kp.ViewKey.Public(),
	}
}

// SumSpendAndViewKeys sums two public key pairs coordinate-wise, producing
// the joint public key pair (S_a+S_b, V_a+V_b) that both parties watch for
// on the Monero side.
func SumSpendAndViewKeys(a, b *PublicKeyPair) *PublicKeyPair {
	return &PublicKeyPair{
		SpendKey: a.SpendKey.Add(b.SpendKey),
		ViewKey:  a.ViewKey.Add(b.ViewKey),
	}
}

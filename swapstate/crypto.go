package swapstate

import (
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"

	"github.com/lightninglabs/xmrswap/xmrcrypto"
)

// scalarToModNScalar embeds a cross-curve scalar - one produced by
// dleq.Prove, always below 2^252 - onto secp256k1's (much larger) scalar
// field, for use as the y argument to adaptor.DecSig.
func scalarToModNScalar(v *big.Int) secp256k1.ModNScalar {
	var buf [32]byte
	v.FillBytes(buf[:])
	var s secp256k1.ModNScalar
	s.SetByteSlice(buf[:])
	return s
}

// modNScalarToBigInt reverses scalarToModNScalar, recovering the integer
// value of a scalar adaptor.Recover yields so it can be embedded back into
// an xmrcrypto.PrivateSpendKey.
func modNScalarToBigInt(s *secp256k1.ModNScalar) *big.Int {
	b := s.Bytes()
	return new(big.Int).SetBytes(b[:])
}

// spendKeyFromRecoveredScalar builds the counterparty's Monero spend key
// share out of a secp256k1 scalar recovered via adaptor.Recover.
func spendKeyFromRecoveredScalar(s *secp256k1.ModNScalar) (*xmrcrypto.PrivateSpendKey, error) {
	return xmrcrypto.NewPrivateSpendKeyFromBigInt(modNScalarToBigInt(s))
}

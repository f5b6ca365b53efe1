package adaptor

import (
	"encoding/asn1"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
)

// ToECDSASignature converts a decrypted Signature into the standard
// secp256k1 ECDSA signature type (github.com/btcsuite/btcd/btcec/v2/ecdsa
// is a type alias for the same underlying type), so callers can feed it
// directly to txbuilder.Tx.AddSignatures or verify it with the same code
// path any ordinary Bitcoin signature check would use.
func ToECDSASignature(sig *Signature) *ecdsa.Signature {
	r := sig.R
	s := sig.S
	return ecdsa.NewSignature(&r, &s)
}

// derSignature is the ASN.1 shape of a DER-encoded ECDSA signature.
type derSignature struct {
	R, S *big.Int
}

// SignatureFromDER parses a DER-encoded ECDSA signature, as returned by
// ecdsa.Signature.Serialize or txbuilder.ExtractSignatureByKey, back into
// the plain (R, S) pair Recover needs. ecdsa.Signature keeps its r, s
// fields unexported, so this is the only way to pull a published
// signature's components back out for recovery.
func SignatureFromDER(der []byte) (*Signature, error) {
	var parsed derSignature
	if _, err := asn1.Unmarshal(der, &parsed); err != nil {
		return nil, fmt.Errorf("adaptor: parsing DER signature: %w", err)
	}

	r, err := modNScalarFromBigInt(parsed.R)
	if err != nil {
		return nil, fmt.Errorf("adaptor: signature r: %w", err)
	}
	s, err := modNScalarFromBigInt(parsed.S)
	if err != nil {
		return nil, fmt.Errorf("adaptor: signature s: %w", err)
	}

	return &Signature{R: r, S: s}, nil
}

func modNScalarFromBigInt(v *big.Int) (secp256k1.ModNScalar, error) {
	var out secp256k1.ModNScalar
	b := v.Bytes()
	if len(b) > 32 {
		return out, fmt.Errorf("scalar does not fit in 32 bytes")
	}
	var buf [32]byte
	copy(buf[32-len(b):], b)
	out.SetByteSlice(buf[:])
	return out, nil
}

package adaptor

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// generateNonce derives a deterministic per-signature nonce from the
// private key and message, the same RFC 6979 motivation btcec's own ECDSA
// signer uses (avoid ever reusing k across two signatures under the same
// key, which would leak the private key): k = HMAC-SHA256(x, m), re-hashed
// with a counter on the rare chance the digest doesn't reduce to a
// non-zero scalar.
func generateNonce(k *secp256k1.ModNScalar, x *secp256k1.PrivateKey, m []byte) error {
	xBytes := x.Serialize()
	defer zero(xBytes)

	counter := byte(0)
	for {
		mac := hmac.New(sha256.New, xBytes)
		mac.Write(m)
		mac.Write([]byte{counter})
		digest := mac.Sum(nil)

		overflow := k.SetByteSlice(digest)
		if !overflow && !k.IsZero() {
			return nil
		}
		counter++
		if counter == 0 {
			return errNonceExhausted
		}
	}
}

var errNonceExhausted = errNonceExhaustedErr("adaptor: exhausted nonce counter space")

type errNonceExhaustedErr string

func (e errNonceExhaustedErr) Error() string { return string(e) }

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// randomScalar draws a uniformly random non-zero scalar, used for the
// DLEQ proof's commitment nonce t.
func randomScalar() secp256k1.ModNScalar {
	var s secp256k1.ModNScalar
	for {
		var buf [32]byte
		if _, err := rand.Read(buf[:]); err != nil {
			panic(err)
		}
		overflow := s.SetByteSlice(buf[:])
		if !overflow && !s.IsZero() {
			return s
		}
	}
}

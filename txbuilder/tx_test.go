package txbuilder

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func mustKey(t *testing.T) (*btcec.PrivateKey, *btcec.PublicKey) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv, priv.PubKey()
}

func testParams(t *testing.T, a, b *btcec.PublicKey) *Params {
	t.Helper()
	dummyScript := []byte{0x51} // OP_TRUE, a stand-in output script
	return &Params{
		A:              a,
		B:              b,
		CancelTimelock: 10,
		PunishTimelock: 10,
		RefundPkScript: dummyScript,
		RedeemPkScript: dummyScript,
		PunishPkScript: dummyScript,
		FeeRate:        1000,
	}
}

func mustLockTx(t *testing.T, params *Params, amount btcutil.Amount) *Tx {
	t.Helper()
	fundingOutpoint := wire.OutPoint{Hash: chainhash.Hash{0x01}, Index: 0}
	txIn := wire.NewTxIn(&fundingOutpoint, nil, nil)
	lock, err := NewTxLock(params, amount, []*wire.TxIn{txIn}, nil)
	require.NoError(t, err)
	return lock
}

// TestAddSignaturesDoesNotAlterTxID is the identity law spec.md §8
// requires: a P2WSH transaction's txid is fixed before its witness is
// filled in, since witness data sits outside the legacy-serialized,
// txid-committed part of the transaction.
func TestAddSignaturesDoesNotAlterTxID(t *testing.T) {
	aPriv, a := mustKey(t)
	bPriv, b := mustKey(t)
	params := testParams(t, a, b)

	lock := mustLockTx(t, params, 1_000_000)
	redeem := NewTxRedeem(params, lock, 1000)

	idBefore := redeem.TxID()

	digest, err := redeem.Digest()
	require.NoError(t, err)

	sigA := ecdsa.Sign(aPriv, digest[:])
	sigB := ecdsa.Sign(bPriv, digest[:])

	require.NoError(t, redeem.AddSignatures(a, sigA, b, sigB))
	require.Equal(t, idBefore, redeem.TxID())
}

// TestAddSignaturesRejectsInvalidSignature ensures a signature over the
// wrong digest is caught rather than silently installed.
func TestAddSignaturesRejectsInvalidSignature(t *testing.T) {
	aPriv, a := mustKey(t)
	_, b := mustKey(t)
	params := testParams(t, a, b)

	lock := mustLockTx(t, params, 1_000_000)
	redeem := NewTxRedeem(params, lock, 1000)

	wrongDigest := [32]byte{0xff}
	sigA := ecdsa.Sign(aPriv, wrongDigest[:])
	sigB := ecdsa.Sign(aPriv, wrongDigest[:])

	require.ErrorIs(t, redeem.AddSignatures(a, sigA, b, sigB), ErrInvalidSignature)
}

// TestCancelThenRefundChain exercises building tx_cancel off tx_lock and
// tx_refund off tx_cancel, checking each spend references its parent's
// txid and that tx_refund pays tx_cancel's output amount less its own fee.
func TestCancelThenRefundChain(t *testing.T) {
	_, a := mustKey(t)
	_, b := mustKey(t)
	params := testParams(t, a, b)

	lock := mustLockTx(t, params, 1_000_000)
	cancel, err := NewTxCancel(params, lock, 1000)
	require.NoError(t, err)
	require.Equal(t, lock.TxID(), cancel.MsgTx().TxIn[0].PreviousOutPoint.Hash)

	cancelScript, cancelPkScript, err := CancelOutputScript(params)
	require.NoError(t, err)

	refund := NewTxRefund(params, cancel, cancelScript, cancelPkScript, 1000)
	require.Equal(t, cancel.TxID(), refund.MsgTx().TxIn[0].PreviousOutPoint.Hash)
	require.Equal(t, int64(cancel.OutputAmount())-1000, refund.MsgTx().TxOut[0].Value)
}

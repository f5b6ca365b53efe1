package swapmsg_test

import (
	"bytes"
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/lightninglabs/xmrswap/adaptor"
	"github.com/lightninglabs/xmrswap/dleq"
	"github.com/lightninglabs/xmrswap/swapmsg"
	"github.com/lightninglabs/xmrswap/xmrcrypto"
)

func mustBitcoinKey(t *testing.T) *btcec.PublicKey {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return priv.PubKey()
}

func mustScalar(t *testing.T) *big.Int {
	t.Helper()
	buf := make([]byte, 31)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	return new(big.Int).SetBytes(buf)
}

func mustViewKey(t *testing.T) *xmrcrypto.PrivateViewKey {
	t.Helper()
	var seed [32]byte
	_, err := rand.Read(seed[:])
	require.NoError(t, err)
	sk, err := xmrcrypto.GenerateSpendKey(seed)
	require.NoError(t, err)
	vk, err := sk.View()
	require.NoError(t, err)
	return vk
}

func roundTrip(t *testing.T, msg swapmsg.Message) swapmsg.Message {
	t.Helper()
	var buf bytes.Buffer
	_, err := swapmsg.WriteMessage(&buf, msg)
	require.NoError(t, err)

	got, err := swapmsg.ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, msg.MsgType(), got.MsgType())
	return got
}

func TestMessage0RoundTrip(t *testing.T) {
	sBitcoin, sMonero, proof, err := dleq.Prove(mustScalar(t))
	require.NoError(t, err)
	sMoneroPub, err := xmrcrypto.NewPublicKeyFromBytes(sMonero.Bytes())
	require.NoError(t, err)

	msg := &swapmsg.Message0{
		B:            mustBitcoinKey(t),
		SBBitcoin:    sBitcoin,
		SBMonero:     sMoneroPub,
		VB:           mustViewKey(t),
		RefundScript: []byte{0x00, 0x14, 0x01, 0x02, 0x03},
		Proof:        proof,
	}

	got := roundTrip(t, msg).(*swapmsg.Message0)
	require.True(t, msg.B.IsEqual(got.B))
	require.True(t, msg.SBBitcoin.IsEqual(got.SBBitcoin))
	require.Equal(t, msg.SBMonero.Bytes(), got.SBMonero.Bytes())
	require.Equal(t, msg.VB.Bytes(), got.VB.Bytes())
	require.Equal(t, msg.RefundScript, got.RefundScript)
	require.NoError(t, dleq.Verify(got.SBBitcoin, sMonero, got.Proof))
}

func TestMessage1RoundTrip(t *testing.T) {
	sBitcoin, sMonero, proof, err := dleq.Prove(mustScalar(t))
	require.NoError(t, err)
	sMoneroPubKey, err := xmrcrypto.NewPublicKeyFromBytes(sMonero.Bytes())
	require.NoError(t, err)

	msg := &swapmsg.Message1{
		A:              mustBitcoinKey(t),
		SABitcoin:      sBitcoin,
		SAMonero:       sMoneroPubKey,
		VA:             mustViewKey(t),
		RedeemScript:   []byte{0x00, 0x14, 0xaa},
		PunishScript:   []byte{0x00, 0x14, 0xbb},
		CancelTimelock: 144,
		PunishTimelock: 288,
		Proof:          proof,
	}

	got := roundTrip(t, msg).(*swapmsg.Message1)
	require.True(t, msg.A.IsEqual(got.A))
	require.Equal(t, msg.CancelTimelock, got.CancelTimelock)
	require.Equal(t, msg.PunishTimelock, got.PunishTimelock)
	require.Equal(t, msg.RedeemScript, got.RedeemScript)
	require.Equal(t, msg.PunishScript, got.PunishScript)
}

func TestMessage2RoundTrip(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	yPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	var digest [32]byte
	_, err = rand.Read(digest[:])
	require.NoError(t, err)

	es, err := adaptor.EncSign(priv, yPriv.PubKey(), digest)
	require.NoError(t, err)

	sigCancel := ecdsa.Sign(priv, digest[:])
	sigPunish := ecdsa.Sign(priv, digest[:])

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(&wire.OutPoint{Hash: chainhash.Hash{0x01}, Index: 0}, nil, nil))
	tx.AddTxOut(wire.NewTxOut(100_000, []byte{0x00, 0x14}))

	msg := &swapmsg.Message2{
		TxLock:       tx,
		EncSigRefund: es,
		SigCancel:    sigCancel,
		SigPunish:    sigPunish,
	}

	got := roundTrip(t, msg).(*swapmsg.Message2)
	require.Equal(t, tx.TxHash(), got.TxLock.TxHash())
	require.Equal(t, es.Bytes(), got.EncSigRefund.Bytes())
	require.Equal(t, sigCancel.Serialize(), got.SigCancel.Serialize())
	require.Equal(t, sigPunish.Serialize(), got.SigPunish.Serialize())
}

func TestMessage3RoundTrip(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	yPriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	var digest [32]byte
	_, err = rand.Read(digest[:])
	require.NoError(t, err)

	es, err := adaptor.EncSign(priv, yPriv.PubKey(), digest)
	require.NoError(t, err)

	msg := &swapmsg.Message3{EncSigRedeem: es}

	got := roundTrip(t, msg).(*swapmsg.Message3)
	require.Equal(t, es.Bytes(), got.EncSigRedeem.Bytes())
}

func TestTransferProofRoundTrip(t *testing.T) {
	msg := &swapmsg.TransferProof{
		Proof:  []byte("get_tx_proof-signature"),
		Amount: 1_500_000_000_000,
	}
	_, err := rand.Read(msg.TxHash[:])
	require.NoError(t, err)

	got := roundTrip(t, msg).(*swapmsg.TransferProof)
	require.Equal(t, msg.TxHash, got.TxHash)
	require.Equal(t, msg.Proof, got.Proof)
	require.Equal(t, msg.Amount, got.Amount)
}

func TestReadMessageRejectsUnknownType(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xff, 0xff})
	_, err := swapmsg.ReadMessage(&buf)
	require.ErrorIs(t, err, swapmsg.ErrUnknownMessageType)
}

// Snapshot persistence converts AliceData/BobData into a flat, exported-
// field-only wire representation before handing it to encoding/gob, the
// same reason swapmsg/codec.go hand-rolls its own field readers/writers
// instead of reflecting over btcec/xmrcrypto types directly: none of those
// types expose exported fields gob could walk, so gob never sees them -
// only the plain []byte/uint32/bool fields below do.
package swapd

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightninglabs/xmrswap/adaptor"
	"github.com/lightninglabs/xmrswap/dleq"
	"github.com/lightninglabs/xmrswap/swapstate"
	"github.com/lightninglabs/xmrswap/txbuilder"
	"github.com/lightninglabs/xmrswap/xmrcrypto"
)

// wireParams is txbuilder.Params with its two pubkeys flattened to bytes.
type wireParams struct {
	A, B           []byte
	CancelTimelock uint32
	PunishTimelock uint32
	RefundPkScript []byte
	RedeemPkScript []byte
	PunishPkScript []byte
	FeeRate        int64
}

func encodeParams(p *txbuilder.Params) *wireParams {
	if p == nil {
		return nil
	}
	return &wireParams{
		A:              p.A.SerializeCompressed(),
		B:              p.B.SerializeCompressed(),
		CancelTimelock: p.CancelTimelock,
		PunishTimelock: p.PunishTimelock,
		RefundPkScript: p.RefundPkScript,
		RedeemPkScript: p.RedeemPkScript,
		PunishPkScript: p.PunishPkScript,
		FeeRate:        int64(p.FeeRate),
	}
}

func decodeParams(w *wireParams) (*txbuilder.Params, error) {
	if w == nil {
		return nil, nil
	}
	a, err := btcec.ParsePubKey(w.A)
	if err != nil {
		return nil, fmt.Errorf("swapd: decoding params.A: %w", err)
	}
	b, err := btcec.ParsePubKey(w.B)
	if err != nil {
		return nil, fmt.Errorf("swapd: decoding params.B: %w", err)
	}
	return &txbuilder.Params{
		A:              a,
		B:              b,
		CancelTimelock: w.CancelTimelock,
		PunishTimelock: w.PunishTimelock,
		RefundPkScript: w.RefundPkScript,
		RedeemPkScript: w.RedeemPkScript,
		PunishPkScript: w.PunishPkScript,
		FeeRate:        btcutil.Amount(w.FeeRate),
	}, nil
}

func encodeMsgTx(tx *wire.MsgTx) ([]byte, error) {
	if tx == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeMsgTx(b []byte) (*wire.MsgTx, error) {
	if len(b) == 0 {
		return nil, nil
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return tx, nil
}

// decodeTx rewraps a persisted tx_lock or tx_cancel, both of which pay the
// 2-of-2 {A,B} output TxFromMsgTx expects (see txbuilder.NewTxCancel's own
// output script), including whatever witness it was signed with.
func decodeTx(params *txbuilder.Params, raw []byte) (*txbuilder.Tx, error) {
	msg, err := decodeMsgTx(raw)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, nil
	}
	return txbuilder.TxFromMsgTx(params, msg)
}

func encodeTxInOuts(ins []*wire.TxIn, outs []*wire.TxOut) ([]byte, error) {
	msg := wire.NewMsgTx(wire.TxVersion)
	for _, in := range ins {
		msg.AddTxIn(in)
	}
	for _, out := range outs {
		msg.AddTxOut(out)
	}
	var buf bytes.Buffer
	if err := msg.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeTxInOuts(b []byte) ([]*wire.TxIn, []*wire.TxOut, error) {
	if len(b) == 0 {
		return nil, nil, nil
	}
	msg := wire.NewMsgTx(wire.TxVersion)
	if err := msg.Deserialize(bytes.NewReader(b)); err != nil {
		return nil, nil, err
	}
	return msg.TxIn, msg.TxOut, nil
}

func encodeSig(sig *ecdsa.Signature) []byte {
	if sig == nil {
		return nil
	}
	return sig.Serialize()
}

func decodeSig(b []byte) (*ecdsa.Signature, error) {
	if len(b) == 0 {
		return nil, nil
	}
	return ecdsa.ParseDERSignature(b)
}

func encodeEncSig(es *adaptor.EncryptedSignature) []byte {
	if es == nil {
		return nil
	}
	return es.Bytes()
}

func decodeEncSig(b []byte) (*adaptor.EncryptedSignature, error) {
	if len(b) == 0 {
		return nil, nil
	}
	return adaptor.EncryptedSignatureFromBytes(b)
}

func encodeProof(p *dleq.Proof) []byte {
	if p == nil {
		return nil
	}
	return p.Bytes()
}

func decodeProof(b []byte) (*dleq.Proof, error) {
	if len(b) == 0 {
		return nil, nil
	}
	return dleq.ProofFromBytes(b)
}

// wireAliceData is AliceData with every field reduced to a gob-native type.
type wireAliceData struct {
	A            []byte
	SA           [32]byte
	VA           [32]byte
	SABitcoinPub []byte
	SAMoneroPub  [32]byte
	SAProof      []byte

	Btc            int64
	Xmr            uint64
	CancelTimelock uint32
	PunishTimelock uint32
	RedeemScript   []byte
	PunishScript   []byte
	Fee            int64
	BitcoinConfs   uint32
	MoneroConfs    uint32

	B               []byte
	SBBitcoin       []byte
	SBMonero        [32]byte
	VB              [32]byte
	BobRefundScript []byte

	Params   *wireParams
	LockTx   []byte
	CancelTx []byte

	EncSigRefund []byte
	SigCancel    []byte
	SigPunish    []byte

	MoneroTxHash [32]byte
	MoneroProof  []byte

	EncSigRedeem []byte

	CancelBroadcast bool
	RefundBroadcast bool
}

func encodeAliceData(d swapstate.AliceData) (*wireAliceData, error) {
	w := &wireAliceData{
		SA:              d.SA.Bytes(),
		VA:              d.VA.Bytes(),
		SAMoneroPub:     d.SAMoneroPub.Bytes(),
		SAProof:         encodeProof(d.SAProof),
		Btc:             int64(d.Btc),
		Xmr:             d.Xmr,
		CancelTimelock:  d.CancelTimelock,
		PunishTimelock:  d.PunishTimelock,
		RedeemScript:    d.RedeemScript,
		PunishScript:    d.PunishScript,
		Fee:             int64(d.Fee),
		BitcoinConfs:    d.BitcoinConfs,
		MoneroConfs:     d.MoneroConfs,
		BobRefundScript: d.BobRefundScript,
		EncSigRefund:    encodeEncSig(d.EncSigRefund),
		SigCancel:       encodeSig(d.SigCancel),
		SigPunish:       encodeSig(d.SigPunish),
		MoneroTxHash:    d.MoneroTxHash,
		MoneroProof:     d.MoneroProof,
		EncSigRedeem:    encodeEncSig(d.EncSigRedeem),
		CancelBroadcast: d.CancelBroadcast,
		RefundBroadcast: d.RefundBroadcast,
	}
	if d.A != nil {
		w.A = d.A.Serialize()
	}
	if d.SABitcoinPub != nil {
		w.SABitcoinPub = d.SABitcoinPub.SerializeCompressed()
	}
	if d.B != nil {
		w.B = d.B.SerializeCompressed()
	}
	if d.SBBitcoin != nil {
		w.SBBitcoin = d.SBBitcoin.SerializeCompressed()
	}
	if d.SBMonero != nil {
		w.SBMonero = d.SBMonero.Bytes()
	}
	if d.VB != nil {
		w.VB = d.VB.Bytes()
	}
	w.Params = encodeParams(d.Params)

	lockTx, err := encodeMsgTx(lockMsgTx(d.Lock))
	if err != nil {
		return nil, err
	}
	w.LockTx = lockTx

	cancelTx, err := encodeMsgTx(lockMsgTx(d.Cancel))
	if err != nil {
		return nil, err
	}
	w.CancelTx = cancelTx

	return w, nil
}

func lockMsgTx(t *txbuilder.Tx) *wire.MsgTx {
	if t == nil {
		return nil
	}
	return t.MsgTx()
}

func decodeAliceData(w *wireAliceData) (swapstate.AliceData, error) {
	var d swapstate.AliceData
	var err error

	if len(w.A) > 0 {
		d.A = btcec.PrivKeyFromBytes(w.A)
	}
	if d.SA, err = xmrcrypto.NewPrivateSpendKeyCanonical(w.SA[:]); err != nil {
		return d, fmt.Errorf("swapd: decoding SA: %w", err)
	}
	if d.VA, err = xmrcrypto.NewPrivateViewKeyCanonical(w.VA[:]); err != nil {
		return d, fmt.Errorf("swapd: decoding VA: %w", err)
	}
	if len(w.SABitcoinPub) > 0 {
		if d.SABitcoinPub, err = btcec.ParsePubKey(w.SABitcoinPub); err != nil {
			return d, fmt.Errorf("swapd: decoding SABitcoinPub: %w", err)
		}
	}
	if d.SAMoneroPub, err = xmrcrypto.NewPublicKeyFromBytes(w.SAMoneroPub[:]); err != nil {
		return d, fmt.Errorf("swapd: decoding SAMoneroPub: %w", err)
	}
	if d.SAProof, err = decodeProof(w.SAProof); err != nil {
		return d, fmt.Errorf("swapd: decoding SAProof: %w", err)
	}

	d.Btc = btcutil.Amount(w.Btc)
	d.Xmr = w.Xmr
	d.CancelTimelock = w.CancelTimelock
	d.PunishTimelock = w.PunishTimelock
	d.RedeemScript = w.RedeemScript
	d.PunishScript = w.PunishScript
	d.Fee = btcutil.Amount(w.Fee)
	d.BitcoinConfs = w.BitcoinConfs
	d.MoneroConfs = w.MoneroConfs
	d.BobRefundScript = w.BobRefundScript

	if len(w.B) > 0 {
		if d.B, err = btcec.ParsePubKey(w.B); err != nil {
			return d, fmt.Errorf("swapd: decoding B: %w", err)
		}
	}
	if len(w.SBBitcoin) > 0 {
		if d.SBBitcoin, err = btcec.ParsePubKey(w.SBBitcoin); err != nil {
			return d, fmt.Errorf("swapd: decoding SBBitcoin: %w", err)
		}
	}
	if w.SBMonero != ([32]byte{}) {
		if d.SBMonero, err = xmrcrypto.NewPublicKeyFromBytes(w.SBMonero[:]); err != nil {
			return d, fmt.Errorf("swapd: decoding SBMonero: %w", err)
		}
	}
	if w.VB != ([32]byte{}) {
		if d.VB, err = xmrcrypto.NewPrivateViewKeyCanonical(w.VB[:]); err != nil {
			return d, fmt.Errorf("swapd: decoding VB: %w", err)
		}
	}

	if d.Params, err = decodeParams(w.Params); err != nil {
		return d, err
	}
	if d.Lock, err = decodeTx(d.Params, w.LockTx); err != nil {
		return d, fmt.Errorf("swapd: decoding tx_lock: %w", err)
	}
	if d.Cancel, err = decodeTx(d.Params, w.CancelTx); err != nil {
		return d, fmt.Errorf("swapd: decoding tx_cancel: %w", err)
	}

	if d.EncSigRefund, err = decodeEncSig(w.EncSigRefund); err != nil {
		return d, err
	}
	if d.SigCancel, err = decodeSig(w.SigCancel); err != nil {
		return d, err
	}
	if d.SigPunish, err = decodeSig(w.SigPunish); err != nil {
		return d, err
	}
	d.MoneroTxHash = w.MoneroTxHash
	d.MoneroProof = w.MoneroProof
	if d.EncSigRedeem, err = decodeEncSig(w.EncSigRedeem); err != nil {
		return d, err
	}
	d.CancelBroadcast = w.CancelBroadcast
	d.RefundBroadcast = w.RefundBroadcast

	return d, nil
}

// wireBobData mirrors wireAliceData for BobData.
type wireBobData struct {
	B            []byte
	SB           [32]byte
	VB           [32]byte
	SBBitcoinPub []byte
	SBMoneroPub  [32]byte
	SBProof      []byte

	Btc            int64
	Xmr            uint64
	CancelTimelock uint32
	PunishTimelock uint32
	RefundScript   []byte
	Fee            int64
	BitcoinConfs   uint32
	MoneroConfs    uint32

	FundingAndChange []byte

	A            []byte
	SABitcoin    []byte
	SAMonero     [32]byte
	VA           [32]byte
	RedeemScript []byte
	PunishScript []byte

	Params   *wireParams
	LockTx   []byte
	CancelTx []byte

	EncSigRefund []byte

	LockBroadcast bool

	MoneroTxHash [32]byte
	MoneroProof  []byte
	MoneroAmount uint64

	EncSigRedeem     []byte
	MessageThreeSent bool

	CancelSeen bool
}

func encodeBobData(d swapstate.BobData) (*wireBobData, error) {
	w := &wireBobData{
		SB:               d.SB.Bytes(),
		VB:               d.VB.Bytes(),
		SBMoneroPub:      d.SBMoneroPub.Bytes(),
		SBProof:          encodeProof(d.SBProof),
		Btc:              int64(d.Btc),
		Xmr:              d.Xmr,
		CancelTimelock:   d.CancelTimelock,
		PunishTimelock:   d.PunishTimelock,
		RefundScript:     d.RefundScript,
		Fee:              int64(d.Fee),
		BitcoinConfs:     d.BitcoinConfs,
		MoneroConfs:      d.MoneroConfs,
		RedeemScript:     d.RedeemScript,
		PunishScript:     d.PunishScript,
		EncSigRefund:     encodeEncSig(d.EncSigRefund),
		LockBroadcast:    d.LockBroadcast,
		MoneroTxHash:     d.MoneroTxHash,
		MoneroProof:      d.MoneroProof,
		MoneroAmount:     d.MoneroAmount,
		EncSigRedeem:     encodeEncSig(d.EncSigRedeem),
		MessageThreeSent: d.MessageThreeSent,
		CancelSeen:       d.CancelSeen,
	}
	if d.B != nil {
		w.B = d.B.Serialize()
	}
	if d.SBBitcoinPub != nil {
		w.SBBitcoinPub = d.SBBitcoinPub.SerializeCompressed()
	}
	if d.A != nil {
		w.A = d.A.SerializeCompressed()
	}
	if d.SABitcoin != nil {
		w.SABitcoin = d.SABitcoin.SerializeCompressed()
	}
	if d.SAMonero != nil {
		w.SAMonero = d.SAMonero.Bytes()
	}
	if d.VA != nil {
		w.VA = d.VA.Bytes()
	}

	funding, err := encodeTxInOuts(d.FundingInputs, d.ChangeOutputs)
	if err != nil {
		return nil, err
	}
	w.FundingAndChange = funding

	w.Params = encodeParams(d.Params)

	lockTx, err := encodeMsgTx(lockMsgTx(d.Lock))
	if err != nil {
		return nil, err
	}
	w.LockTx = lockTx

	cancelTx, err := encodeMsgTx(lockMsgTx(d.Cancel))
	if err != nil {
		return nil, err
	}
	w.CancelTx = cancelTx

	return w, nil
}

func decodeBobData(w *wireBobData) (swapstate.BobData, error) {
	var d swapstate.BobData
	var err error

	if len(w.B) > 0 {
		d.B = btcec.PrivKeyFromBytes(w.B)
	}
	if d.SB, err = xmrcrypto.NewPrivateSpendKeyCanonical(w.SB[:]); err != nil {
		return d, fmt.Errorf("swapd: decoding SB: %w", err)
	}
	if d.VB, err = xmrcrypto.NewPrivateViewKeyCanonical(w.VB[:]); err != nil {
		return d, fmt.Errorf("swapd: decoding VB: %w", err)
	}
	if len(w.SBBitcoinPub) > 0 {
		if d.SBBitcoinPub, err = btcec.ParsePubKey(w.SBBitcoinPub); err != nil {
			return d, fmt.Errorf("swapd: decoding SBBitcoinPub: %w", err)
		}
	}
	if d.SBMoneroPub, err = xmrcrypto.NewPublicKeyFromBytes(w.SBMoneroPub[:]); err != nil {
		return d, fmt.Errorf("swapd: decoding SBMoneroPub: %w", err)
	}
	if d.SBProof, err = decodeProof(w.SBProof); err != nil {
		return d, err
	}

	d.Btc = btcutil.Amount(w.Btc)
	d.Xmr = w.Xmr
	d.CancelTimelock = w.CancelTimelock
	d.PunishTimelock = w.PunishTimelock
	d.RefundScript = w.RefundScript
	d.Fee = btcutil.Amount(w.Fee)
	d.BitcoinConfs = w.BitcoinConfs
	d.MoneroConfs = w.MoneroConfs
	d.RedeemScript = w.RedeemScript
	d.PunishScript = w.PunishScript

	if d.FundingInputs, d.ChangeOutputs, err = decodeTxInOuts(w.FundingAndChange); err != nil {
		return d, fmt.Errorf("swapd: decoding funding inputs: %w", err)
	}

	if len(w.A) > 0 {
		if d.A, err = btcec.ParsePubKey(w.A); err != nil {
			return d, fmt.Errorf("swapd: decoding A: %w", err)
		}
	}
	if len(w.SABitcoin) > 0 {
		if d.SABitcoin, err = btcec.ParsePubKey(w.SABitcoin); err != nil {
			return d, fmt.Errorf("swapd: decoding SABitcoin: %w", err)
		}
	}
	if w.SAMonero != ([32]byte{}) {
		if d.SAMonero, err = xmrcrypto.NewPublicKeyFromBytes(w.SAMonero[:]); err != nil {
			return d, fmt.Errorf("swapd: decoding SAMonero: %w", err)
		}
	}
	if w.VA != ([32]byte{}) {
		if d.VA, err = xmrcrypto.NewPrivateViewKeyCanonical(w.VA[:]); err != nil {
			return d, fmt.Errorf("swapd: decoding VA: %w", err)
		}
	}

	if d.Params, err = decodeParams(w.Params); err != nil {
		return d, err
	}
	if d.Lock, err = decodeTx(d.Params, w.LockTx); err != nil {
		return d, fmt.Errorf("swapd: decoding tx_lock: %w", err)
	}
	if d.Cancel, err = decodeTx(d.Params, w.CancelTx); err != nil {
		return d, fmt.Errorf("swapd: decoding tx_cancel: %w", err)
	}

	if d.EncSigRefund, err = decodeEncSig(w.EncSigRefund); err != nil {
		return d, err
	}
	d.LockBroadcast = w.LockBroadcast
	d.MoneroTxHash = w.MoneroTxHash
	d.MoneroProof = w.MoneroProof
	d.MoneroAmount = w.MoneroAmount
	if d.EncSigRedeem, err = decodeEncSig(w.EncSigRedeem); err != nil {
		return d, err
	}
	d.MessageThreeSent = w.MessageThreeSent

	if d.MessageThreeSent && d.Params != nil && d.Lock != nil {
		if d.Redeem, err = txbuilder.NewTxRedeem(d.Params, d.Lock, d.Fee), error(nil); err != nil {
			return d, err
		}
	}
	d.CancelSeen = w.CancelSeen

	return d, nil
}

// aliceEnvelope/bobEnvelope are the top-level gob-encoded records stored in
// swapdb, naming which of the ten (seven) concrete states the flattened
// data belongs to - every concrete AliceState/BobState is a bare wrapper
// around AliceData/BobData with no fields of its own, so the name is all
// that's needed to pick the right wrapper back out on load.
type aliceEnvelope struct {
	StateName string
	Data      wireAliceData
}

type bobEnvelope struct {
	StateName string
	Data      wireBobData
}

// EncodeAliceState serializes s for swapdb.Store.Put.
func EncodeAliceState(s swapstate.AliceState) ([]byte, error) {
	data, err := encodeAliceData(dataOfAlice(s))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	env := aliceEnvelope{StateName: s.StateName(), Data: *data}
	if err := gob.NewEncoder(&buf).Encode(&env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeAliceState is the inverse of EncodeAliceState.
func DecodeAliceState(raw []byte) (swapstate.AliceState, error) {
	var env aliceEnvelope
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&env); err != nil {
		return nil, err
	}
	data, err := decodeAliceData(&env.Data)
	if err != nil {
		return nil, err
	}
	return wrapAlice(env.StateName, data)
}

// EncodeBobState serializes s for swapdb.Store.Put.
func EncodeBobState(s swapstate.BobState) ([]byte, error) {
	data, err := encodeBobData(dataOfBob(s))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	env := bobEnvelope{StateName: s.StateName(), Data: *data}
	if err := gob.NewEncoder(&buf).Encode(&env); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeBobState is the inverse of EncodeBobState.
func DecodeBobState(raw []byte) (swapstate.BobState, error) {
	var env bobEnvelope
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&env); err != nil {
		return nil, err
	}
	data, err := decodeBobData(&env.Data)
	if err != nil {
		return nil, err
	}
	return wrapBob(env.StateName, data)
}

func dataOfAlice(s swapstate.AliceState) swapstate.AliceData {
	switch st := s.(type) {
	case swapstate.Alice0:
		return st.AliceData
	case swapstate.Alice1:
		return st.AliceData
	case swapstate.Alice2:
		return st.AliceData
	case swapstate.Alice3:
		return st.AliceData
	case swapstate.Alice3b:
		return st.AliceData
	case swapstate.Alice4:
		return st.AliceData
	case swapstate.Alice5:
		return st.AliceData
	case swapstate.Alice6:
		return st.AliceData
	case swapstate.Alice7:
		return st.AliceData
	case swapstate.Alice8:
		return st.AliceData
	default:
		panic(fmt.Sprintf("swapd: unknown AliceState %T", s))
	}
}

func wrapAlice(name string, data swapstate.AliceData) (swapstate.AliceState, error) {
	switch name {
	case "Alice0":
		return swapstate.Alice0{AliceData: data}, nil
	case "Alice1":
		return swapstate.Alice1{AliceData: data}, nil
	case "Alice2":
		return swapstate.Alice2{AliceData: data}, nil
	case "Alice3":
		return swapstate.Alice3{AliceData: data}, nil
	case "Alice3b":
		return swapstate.Alice3b{AliceData: data}, nil
	case "Alice4":
		return swapstate.Alice4{AliceData: data}, nil
	case "Alice5":
		return swapstate.Alice5{AliceData: data}, nil
	case "Alice6":
		return swapstate.Alice6{AliceData: data}, nil
	case "Alice7":
		return swapstate.Alice7{AliceData: data}, nil
	case "Alice8":
		return swapstate.Alice8{AliceData: data}, nil
	default:
		return nil, fmt.Errorf("swapd: unknown persisted alice state %q", name)
	}
}

func dataOfBob(s swapstate.BobState) swapstate.BobData {
	switch st := s.(type) {
	case swapstate.Bob0:
		return st.BobData
	case swapstate.Bob1:
		return st.BobData
	case swapstate.Bob2:
		return st.BobData
	case swapstate.Bob3:
		return st.BobData
	case swapstate.Bob4:
		return st.BobData
	case swapstate.Bob5:
		return st.BobData
	case swapstate.Bob6:
		return st.BobData
	default:
		panic(fmt.Sprintf("swapd: unknown BobState %T", s))
	}
}

func wrapBob(name string, data swapstate.BobData) (swapstate.BobState, error) {
	switch name {
	case "Bob0":
		return swapstate.Bob0{BobData: data}, nil
	case "Bob1":
		return swapstate.Bob1{BobData: data}, nil
	case "Bob2":
		return swapstate.Bob2{BobData: data}, nil
	case "Bob3":
		return swapstate.Bob3{BobData: data}, nil
	case "Bob4":
		return swapstate.Bob4{BobData: data}, nil
	case "Bob5":
		return swapstate.Bob5{BobData: data}, nil
	case "Bob6":
		return swapstate.Bob6{BobData: data}, nil
	default:
		return nil, fmt.Errorf("swapd: unknown persisted bob state %q", name)
	}
}

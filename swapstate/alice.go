package swapstate

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightninglabs/xmrswap/adaptor"
	"github.com/lightninglabs/xmrswap/dleq"
	"github.com/lightninglabs/xmrswap/swapmsg"
	"github.com/lightninglabs/xmrswap/swapnet"
	"github.com/lightninglabs/xmrswap/txbuilder"
	"github.com/lightninglabs/xmrswap/xmrcrypto"
)

// errUnexpectedEvent is returned by a transition function when fed an
// Event its source state does not know how to handle.
var errUnexpectedEvent = errors.New("swapstate: unexpected event for current state")

// AliceState is the closed sum type of Alice's (the XMR-seller's) swap
// states, Alice0 through Alice8 per spec.md §4.4.
type AliceState interface {
	isAliceState()
	StateName() string
}

// AliceData accumulates every field Alice's states carry, following
// ResolverKit's embed-and-grow pattern: each numbered state is a thin
// wrapper around whatever subset of this data its step has populated so
// far, rather than duplicating fields across ten separate structs.
type AliceData struct {
	// Own material, fixed at Alice0.
	A  *btcec.PrivateKey
	SA *xmrcrypto.PrivateSpendKey
	VA *xmrcrypto.PrivateViewKey

	SABitcoinPub *btcec.PublicKey
	SAMoneroPub  *xmrcrypto.PublicKey
	SAProof      *dleq.Proof

	Btc            btcutil.Amount
	Xmr            uint64
	CancelTimelock uint32
	PunishTimelock uint32
	RedeemScript   []byte
	PunishScript   []byte
	Fee            btcutil.Amount
	BitcoinConfs   uint32
	MoneroConfs    uint32

	// Bob's material, learned from Message0.
	B               *btcec.PublicKey
	SBBitcoin       *btcec.PublicKey
	SBMonero        *xmrcrypto.PublicKey
	VB              *xmrcrypto.PrivateViewKey
	BobRefundScript []byte

	// Built once Message2 arrives.
	Params *txbuilder.Params
	Lock   *txbuilder.Tx
	Cancel *txbuilder.Tx

	EncSigRefund *adaptor.EncryptedSignature
	SigCancel    *ecdsa.Signature
	SigPunish    *ecdsa.Signature

	// Set once the Monero lock is broadcast.
	MoneroTxHash [32]byte
	MoneroProof  []byte

	// Set on receiving Message3.
	EncSigRedeem *adaptor.EncryptedSignature

	// Set once tx_cancel has been broadcast in the refund path, so a
	// replayed transition does not broadcast it twice.
	CancelBroadcast bool

	// Set once Alice has voluntarily completed and broadcast tx_refund,
	// so a replayed transition does not broadcast it twice.
	RefundBroadcast bool
}

// NewAliceConfig bundles the swap parameters Alice's initial state needs;
// everything else (her key shares, their public points, and the DLEQ
// proof binding them) is generated fresh by NewAlice0.
type NewAliceConfig struct {
	Btc            btcutil.Amount
	Xmr            uint64
	CancelTimelock uint32
	PunishTimelock uint32
	Fee            btcutil.Amount
	BitcoinConfs   uint32
	MoneroConfs    uint32
	RedeemScript   []byte
	PunishScript   []byte
}

// NewAlice0 generates Alice's Bitcoin key share a, her Monero spend key
// share s_a, and her view key share v_a, and proves the cross-curve DLEQ
// relation for s_a up front so Message1 can carry it without recomputing.
func NewAlice0(cfg NewAliceConfig) (*Alice0, error) {
	a, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating bitcoin key share: %w", err)
	}

	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}
	sa, err := xmrcrypto.GenerateSpendKey(seed)
	if err != nil {
		return nil, fmt.Errorf("generating monero spend key share: %w", err)
	}
	va, err := sa.View()
	if err != nil {
		return nil, fmt.Errorf("deriving monero view key share: %w", err)
	}

	saBitcoinPub, saMoneroPoint, proof, err := dleq.Prove(sa.BigInt())
	if err != nil {
		return nil, fmt.Errorf("proving cross-curve dleq for s_a: %w", err)
	}
	saMoneroPub, err := xmrcrypto.NewPublicKeyFromBytes(saMoneroPoint.Bytes())
	if err != nil {
		return nil, err
	}

	data := AliceData{
		A:              a,
		SA:             sa,
		VA:             va,
		SABitcoinPub:   saBitcoinPub,
		SAMoneroPub:    saMoneroPub,
		SAProof:        proof,
		Btc:            cfg.Btc,
		Xmr:            cfg.Xmr,
		CancelTimelock: cfg.CancelTimelock,
		PunishTimelock: cfg.PunishTimelock,
		Fee:            cfg.Fee,
		BitcoinConfs:   cfg.BitcoinConfs,
		MoneroConfs:    cfg.MoneroConfs,
		RedeemScript:   cfg.RedeemScript,
		PunishScript:   cfg.PunishScript,
	}
	return &Alice0{data}, nil
}

// Alice0 holds Alice's own key shares, awaiting Bob's opening message.
type Alice0 struct{ AliceData }

// Alice1 has verified Bob's DLEQ proof and recorded his public material,
// awaiting the chance to reply.
type Alice1 struct{ AliceData }

// Alice2 has emitted Message1, awaiting Bob's funded tx_lock.
type Alice2 struct{ AliceData }

// Alice3 has verified Message2's transactions and signatures, and holds a
// fully valid tx_lock; awaiting its confirmation before committing XMR.
type Alice3 struct{ AliceData }

// Alice3b has broadcast the Monero transfer and is awaiting its
// confirmation - split out from Alice3/Alice4 so a restart never
// re-broadcasts it (spec.md §9, Open Question 1).
type Alice3b struct{ AliceData }

// Alice4 has a confirmed Monero lock and emitted TransferProof, awaiting
// Bob's redeem adaptor signature or a refund-path trigger.
type Alice4 struct{ AliceData }

// Alice5 holds either Bob's redeem adaptor signature (happy path) or a
// refund-path trigger (EncSigRedeem left nil), and drives the remaining
// work to a terminal state.
type Alice5 struct{ AliceData }

// Alice6 is terminal: Alice redeemed her BTC.
type Alice6 struct{ AliceData }

// Alice7 is terminal: tx_refund returned the BTC to Bob; Alice's XMR lock
// is abandoned.
type Alice7 struct{ AliceData }

// Alice8 is terminal: Alice punished Bob and took the BTC as compensation.
type Alice8 struct{ AliceData }

func (Alice0) isAliceState()  {}
func (Alice1) isAliceState()  {}
func (Alice2) isAliceState()  {}
func (Alice3) isAliceState()  {}
func (Alice3b) isAliceState() {}
func (Alice4) isAliceState()  {}
func (Alice5) isAliceState()  {}
func (Alice6) isAliceState()  {}
func (Alice7) isAliceState()  {}
func (Alice8) isAliceState()  {}

func (Alice0) StateName() string  { return "Alice0" }
func (Alice1) StateName() string  { return "Alice1" }
func (Alice2) StateName() string  { return "Alice2" }
func (Alice3) StateName() string  { return "Alice3" }
func (Alice3b) StateName() string { return "Alice3b" }
func (Alice4) StateName() string  { return "Alice4" }
func (Alice5) StateName() string  { return "Alice5" }
func (Alice6) StateName() string  { return "Alice6" }
func (Alice7) StateName() string  { return "Alice7" }
func (Alice8) StateName() string  { return "Alice8" }

// StepAlice advances s by ev, dispatching to the matching state's
// transition function. Terminal states accept no further events.
func StepAlice(s AliceState, ev Event) (AliceState, []Effect, error) {
	switch st := s.(type) {
	case Alice0:
		return stepAlice0(st, ev)
	case Alice1:
		return stepAlice1(st, ev)
	case Alice2:
		return stepAlice2(st, ev)
	case Alice3:
		return stepAlice3(st, ev)
	case Alice3b:
		return stepAlice3b(st, ev)
	case Alice4:
		return stepAlice4(st, ev)
	case Alice5:
		return stepAlice5(st, ev)
	default:
		return s, nil, fmt.Errorf("swapstate: %s accepts no further events", s.StateName())
	}
}

func stepAlice0(s Alice0, ev Event) (AliceState, []Effect, error) {
	msgEv, ok := ev.(EventMessageReceived)
	if !ok {
		return s, nil, errUnexpectedEvent
	}
	msg0, ok := msgEv.Msg.(*swapmsg.Message0)
	if !ok {
		return s, nil, errUnexpectedEvent
	}

	if err := dleq.Verify(msg0.SBBitcoin, msg0.SBMonero.Point(), msg0.Proof); err != nil {
		return s, nil, fmt.Errorf("verifying bob's dleq proof: %w", err)
	}

	next := s.AliceData
	next.B = msg0.B
	next.SBBitcoin = msg0.SBBitcoin
	next.SBMonero = msg0.SBMonero
	next.VB = msg0.VB
	next.BobRefundScript = msg0.RefundScript

	return Alice1{next}, nil, nil
}

func stepAlice1(s Alice1, ev Event) (AliceState, []Effect, error) {
	if _, ok := ev.(EventProceed); !ok {
		return s, nil, errUnexpectedEvent
	}

	msg1 := &swapmsg.Message1{
		A:              s.A.PubKey(),
		SABitcoin:      s.SABitcoinPub,
		SAMonero:       s.SAMoneroPub,
		VA:             s.VA,
		RedeemScript:   s.RedeemScript,
		PunishScript:   s.PunishScript,
		CancelTimelock: s.CancelTimelock,
		PunishTimelock: s.PunishTimelock,
		Proof:          s.SAProof,
	}

	effects := []Effect{
		EffectSendMessage{Proto: swapnet.ProtoMessage1, Msg: msg1},
		EffectAwaitMessage{Proto: swapnet.ProtoMessage2},
	}
	return Alice2{s.AliceData}, effects, nil
}

func stepAlice2(s Alice2, ev Event) (AliceState, []Effect, error) {
	msgEv, ok := ev.(EventMessageReceived)
	if !ok {
		return s, nil, errUnexpectedEvent
	}
	msg2, ok := msgEv.Msg.(*swapmsg.Message2)
	if !ok {
		return s, nil, errUnexpectedEvent
	}

	params := &txbuilder.Params{
		A:              s.A.PubKey(),
		B:              s.B,
		CancelTimelock: s.CancelTimelock,
		PunishTimelock: s.PunishTimelock,
		RefundPkScript: s.BobRefundScript,
		RedeemPkScript: s.RedeemScript,
		PunishPkScript: s.PunishScript,
		FeeRate:        s.Fee,
	}

	lock, err := txbuilder.TxFromMsgTx(params, msg2.TxLock)
	if err != nil {
		return s, nil, fmt.Errorf("wrapping bob's tx_lock: %w", err)
	}

	cancel, err := txbuilder.NewTxCancel(params, lock, s.Fee)
	if err != nil {
		return s, nil, fmt.Errorf("building tx_cancel: %w", err)
	}

	cancelDigest, err := cancel.Digest()
	if err != nil {
		return s, nil, err
	}
	if !msg2.SigCancel.Verify(cancelDigest[:], s.B) {
		return s, nil, errors.New("swapstate: bob's tx_cancel signature does not verify")
	}

	sigAliceCancel := ecdsa.Sign(s.A, cancelDigest[:])
	if err := cancel.AddSignatures(s.A.PubKey(), sigAliceCancel, s.B, msg2.SigCancel); err != nil {
		return s, nil, fmt.Errorf("assembling tx_cancel witness: %w", err)
	}

	cancelWitnessScript, cancelPkScript, err := txbuilder.CancelOutputScript(params)
	if err != nil {
		return s, nil, err
	}
	refund := txbuilder.NewTxRefund(params, cancel, cancelWitnessScript, cancelPkScript, s.Fee)
	refundDigest, err := refund.Digest()
	if err != nil {
		return s, nil, err
	}
	if err := adaptor.EncVerify(s.B, s.SABitcoinPub, refundDigest, msg2.EncSigRefund); err != nil {
		return s, nil, fmt.Errorf("verifying bob's refund adaptor signature: %w", err)
	}

	punish := txbuilder.NewTxPunish(params, cancel, cancelWitnessScript, cancelPkScript, s.Fee)
	punishDigest, err := punish.Digest()
	if err != nil {
		return s, nil, err
	}
	if !msg2.SigPunish.Verify(punishDigest[:], s.B) {
		return s, nil, errors.New("swapstate: bob's tx_punish signature does not verify")
	}

	next := s.AliceData
	next.Params = params
	next.Lock = lock
	next.Cancel = cancel
	next.SigCancel = msg2.SigCancel
	next.EncSigRefund = msg2.EncSigRefund
	next.SigPunish = msg2.SigPunish

	effects := []Effect{
		EffectAwaitConfirmation{TxID: lock.TxID(), Confs: s.BitcoinConfs},
	}
	return Alice3{next}, effects, nil
}

func stepAlice3(s Alice3, ev Event) (AliceState, []Effect, error) {
	if _, ok := ev.(EventTxConfirmed); !ok {
		return s, nil, errUnexpectedEvent
	}

	joint := xmrcrypto.SumSpendAndViewKeys(
		&xmrcrypto.PublicKeyPair{SpendKey: s.SAMoneroPub, ViewKey: s.VA.Public()},
		&xmrcrypto.PublicKeyPair{SpendKey: s.SBMonero, ViewKey: s.VB.Public()},
	)

	effects := []Effect{
		EffectMoneroTransfer{To: joint, Amount: s.Xmr},
	}
	return Alice3b{s.AliceData}, effects, nil
}

func stepAlice3b(s Alice3b, ev Event) (AliceState, []Effect, error) {
	if _, ok := ev.(EventMoneroTransferConfirmed); !ok {
		return s, nil, errUnexpectedEvent
	}

	msg := &swapmsg.TransferProof{
		TxHash: s.MoneroTxHash,
		Proof:  s.MoneroProof,
		Amount: s.Xmr,
	}

	lockOutpoint := wire.OutPoint{Hash: s.Lock.TxID(), Index: 0}
	effects := []Effect{
		EffectSendMessage{Proto: swapnet.ProtoTransferProof, Msg: msg},
		EffectAwaitMessage{Proto: swapnet.ProtoMessage3},
		EffectAwaitOutpointSpend{Outpoint: lockOutpoint},
		EffectAwaitTimelock{Outpoint: lockOutpoint, Blocks: s.CancelTimelock},
	}
	return Alice4{s.AliceData}, effects, nil
}

func stepAlice4(s Alice4, ev Event) (AliceState, []Effect, error) {
	switch e := ev.(type) {
	case EventMessageReceived:
		msg3, ok := e.Msg.(*swapmsg.Message3)
		if !ok {
			return s, nil, errUnexpectedEvent
		}
		next := s.AliceData
		next.EncSigRedeem = msg3.EncSigRedeem
		return Alice5{next}, nil, nil

	case EventTimelockExpired:
		return Alice5{s.AliceData}, nil, nil

	case EventOutpointSpent:
		if e.Tx.TxHash() != s.Cancel.TxID() {
			return s, nil, errUnexpectedEvent
		}
		return Alice5{s.AliceData}, nil, nil

	default:
		return s, nil, errUnexpectedEvent
	}
}

// stepAlice5 dispatches on whether Message3 ever arrived: a non-nil
// EncSigRedeem means the happy redeem path, a nil one means the
// cancel/refund/punish path spec.md §4.4 describes as triggered by
// cancel_timelock expiry (or tx_cancel appearing) before Message3 does.
func stepAlice5(s Alice5, ev Event) (AliceState, []Effect, error) {
	if s.EncSigRedeem != nil {
		return stepAliceRedeem(s, ev)
	}
	return stepAliceRefund(s, ev)
}

// stepAliceRedeem implements the happy path: decrypt Bob's redeem adaptor
// signature with s_a, combine with Alice's own signature, and broadcast.
func stepAliceRedeem(s Alice5, ev Event) (AliceState, []Effect, error) {
	if _, ok := ev.(EventProceed); !ok {
		return s, nil, errUnexpectedEvent
	}

	redeem := txbuilder.NewTxRedeem(s.Params, s.Lock, s.Fee)
	digest, err := redeem.Digest()
	if err != nil {
		return s, nil, err
	}

	y := scalarToModNScalar(s.SA.BigInt())
	decSig := adaptor.DecSig(&y, s.EncSigRedeem)
	sigBob := adaptor.ToECDSASignature(decSig)
	sigAlice := ecdsa.Sign(s.A, digest[:])

	if err := redeem.AddSignatures(s.A.PubKey(), sigAlice, s.B, sigBob); err != nil {
		return s, nil, fmt.Errorf("assembling tx_redeem witness: %w", err)
	}

	effects := []Effect{
		EffectBroadcastTx{Tx: redeem.MsgTx(), Label: "tx_redeem"},
	}
	return Alice6{s.AliceData}, effects, nil
}

// stepAliceRefund drives the refund branch: broadcast tx_cancel once,
// then race punish_timelock maturity against tx_cancel's own output
// being spent (by a cooperative tx_refund the driver may choose to
// publish using Alice's already-verified material, or by tx_punish once
// it matures).
func stepAliceRefund(s Alice5, ev Event) (AliceState, []Effect, error) {
	switch e := ev.(type) {
	case EventProceed:
		switch {
		case !s.CancelBroadcast:
			next := s.AliceData
			next.CancelBroadcast = true
			effects := []Effect{
				EffectBroadcastTx{Tx: s.Cancel.MsgTx(), Label: "tx_cancel"},
			}
			return Alice5{next}, effects, nil

		case !s.RefundBroadcast:
			return aliceRefund(s.AliceData)

		default:
			return s, nil, errUnexpectedEvent
		}

	case EventTxConfirmed:
		outpoint := wire.OutPoint{Hash: s.Cancel.TxID(), Index: 0}
		effects := []Effect{
			EffectAwaitOutpointSpend{Outpoint: outpoint},
			EffectAwaitTimelock{Outpoint: outpoint, Blocks: s.PunishTimelock},
		}
		return s, effects, nil

	case EventTimelockExpired:
		return alicePunish(s.AliceData)

	case EventOutpointSpent:
		return aliceHandleCancelSpend(s.AliceData, e.Tx)

	default:
		return s, nil, errUnexpectedEvent
	}
}

// aliceHandleCancelSpend inspects whatever transaction spent tx_cancel's
// output and finishes accordingly: a payout to Bob's refund address ends
// the swap with Alice7, anything else is tx_punish having confirmed
// (Alice8).
func aliceHandleCancelSpend(data AliceData, spend *wire.MsgTx) (AliceState, []Effect, error) {
	if len(spend.TxOut) == 1 && scriptsEqual(spend.TxOut[0].PkScript, data.Params.RefundPkScript) {
		return Alice7{data}, nil, nil
	}
	return Alice8{data}, nil, nil
}

// aliceRefund voluntarily completes and broadcasts tx_refund, paying Bob
// back his BTC. Under this message schema Bob's tx_refund adaptor
// signature is encrypted under Alice's own point S_a_bitcoin, so Alice
// alone - without needing anything further from Bob - holds enough
// material to assemble the fully-signed transaction. No scalar is
// recovered from tx_refund on this path, so s_b never reaches Alice (see
// DESIGN.md).
func aliceRefund(data AliceData) (AliceState, []Effect, error) {
	cancelWitnessScript, cancelPkScript, err := txbuilder.CancelOutputScript(data.Params)
	if err != nil {
		return Alice5{data}, nil, err
	}
	refund := txbuilder.NewTxRefund(data.Params, data.Cancel, cancelWitnessScript, cancelPkScript, data.Fee)

	digest, err := refund.Digest()
	if err != nil {
		return Alice5{data}, nil, err
	}

	y := scalarToModNScalar(data.SA.BigInt())
	decSig := adaptor.DecSig(&y, data.EncSigRefund)
	sigBob := adaptor.ToECDSASignature(decSig)
	sigAlice := ecdsa.Sign(data.A, digest[:])

	if err := refund.AddSignatures(data.A.PubKey(), sigAlice, data.B, sigBob); err != nil {
		return Alice5{data}, nil, fmt.Errorf("assembling tx_refund witness: %w", err)
	}

	next := data
	next.RefundBroadcast = true

	effects := []Effect{
		EffectBroadcastTx{Tx: refund.MsgTx(), Label: "tx_refund"},
	}
	return Alice5{next}, effects, nil
}

// alicePunish broadcasts tx_punish using Bob's plain signature handed over
// in Message2 (see swapmsg.Message2.SigPunish) - unlike tx_refund,
// tx_punish's spend condition has no adaptor-signature channel at all, so
// Bob's half is a direct signature fixed well before any timelock race
// begins.
func alicePunish(data AliceData) (AliceState, []Effect, error) {
	cancelWitnessScript, cancelPkScript, err := txbuilder.CancelOutputScript(data.Params)
	if err != nil {
		return Alice5{data}, nil, err
	}
	punish := txbuilder.NewTxPunish(data.Params, data.Cancel, cancelWitnessScript, cancelPkScript, data.Fee)

	digest, err := punish.Digest()
	if err != nil {
		return Alice5{data}, nil, err
	}

	sigAlice := ecdsa.Sign(data.A, digest[:])

	if err := punish.AddSignatures(data.A.PubKey(), sigAlice, data.B, data.SigPunish); err != nil {
		return Alice5{data}, nil, fmt.Errorf("assembling tx_punish witness: %w", err)
	}

	effects := []Effect{
		EffectBroadcastTx{Tx: punish.MsgTx(), Label: "tx_punish"},
	}
	return Alice8{data}, effects, nil
}

func scriptsEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

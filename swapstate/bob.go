package swapstate

import (
	"crypto/rand"
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

// BobState is the closed sum type of Bob's (the XMR-buyer's) swap states,
// Bob0 through Bob6 per spec.md §4.5.
type BobState interface {
	isBobState()
	StateName() string
}

// BobData accumulates every field Bob's states carry, the same
// embed-and-grow shape AliceData uses.
type BobData struct {
	// Own material, fixed at Bob0.
	B  *btcec.PrivateKey
	SB *xmrcrypto.PrivateSpendKey
	VB *xmrcrypto.PrivateViewKey

	SBBitcoinPub *btcec.PublicKey
	SBMoneroPub  *xmrcrypto.PublicKey
	SBProof      *dleq.Proof

	Btc            btcutil.Amount
	Xmr            uint64
	CancelTimelock uint32
	PunishTimelock uint32
	RefundScript   []byte
	Fee            btcutil.Amount
	BitcoinConfs   uint32
	MoneroConfs    uint32

	// The already-selected funding material for tx_lock, supplied
	// up front since coin selection is the Bitcoin wallet's concern,
	// outside this package.
	FundingInputs []*wire.TxIn
	ChangeOutputs []*wire.TxOut

	// Alice's material, learned from Message1.
	A              *btcec.PublicKey
	SABitcoin      *btcec.PublicKey
	SAMonero       *xmrcrypto.PublicKey
	VA             *xmrcrypto.PrivateViewKey
	RedeemScript   []byte
	PunishScript   []byte

	// Built at Bob2->Bob3.
	Params       *txbuilder.Params
	Lock         *txbuilder.Tx
	Cancel       *txbuilder.Tx
	EncSigRefund *adaptor.EncryptedSignature

	// Set by stepBob2 in the same transition that emits the Message2 send
	// and tx_lock broadcast effects, before the driver performs them; it
	// is carried in snapshots and not otherwise consulted.
	LockBroadcast bool

	// Set on receiving TransferProof.
	MoneroTxHash [32]byte
	MoneroProof  []byte
	MoneroAmount uint64

	// Built once Bob decides to redeem (Bob4's happy path).
	Redeem           *txbuilder.Tx
	EncSigRedeem     *adaptor.EncryptedSignature
	MessageThreeSent bool

	// Set once the refund-path watch has progressed past tx_lock being
	// spent by tx_cancel, awaiting tx_cancel's own output to resolve.
	CancelSeen bool
}

// NewBobConfig bundles the swap parameters and already-selected funding
// material Bob's initial state needs.
type NewBobConfig struct {
	Btc            btcutil.Amount
	Xmr            uint64
	CancelTimelock uint32
	PunishTimelock uint32
	Fee            btcutil.Amount
	BitcoinConfs   uint32
	MoneroConfs    uint32
	RefundScript   []byte
	FundingInputs  []*wire.TxIn
	ChangeOutputs  []*wire.TxOut
}

// NewBob0 generates Bob's Bitcoin key share b, his Monero spend key share
// s_b, and his view key share v_b, proving the cross-curve DLEQ relation
// for s_b up front so Message0 can carry it without recomputing.
func NewBob0(cfg NewBobConfig) (*Bob0, error) {
	b, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generating bitcoin key share: %w", err)
	}

	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return nil, err
	}
	sb, err := xmrcrypto.GenerateSpendKey(seed)
	if err != nil {
		return nil, fmt.Errorf("generating monero spend key share: %w", err)
	}
	vb, err := sb.View()
	if err != nil {
		return nil, fmt.Errorf("deriving monero view key share: %w", err)
	}

	sbBitcoinPub, sbMoneroPoint, proof, err := dleq.Prove(sb.BigInt())
	if err != nil {
		return nil, fmt.Errorf("proving cross-curve dleq for s_b: %w", err)
	}
	sbMoneroPub, err := xmrcrypto.NewPublicKeyFromBytes(sbMoneroPoint.Bytes())
	if err != nil {
		return nil, err
	}

	data := BobData{
		B:              b,
		SB:             sb,
		VB:             vb,
		SBBitcoinPub:   sbBitcoinPub,
		SBMoneroPub:    sbMoneroPub,
		SBProof:        proof,
		Btc:            cfg.Btc,
		Xmr:            cfg.Xmr,
		CancelTimelock: cfg.CancelTimelock,
		PunishTimelock: cfg.PunishTimelock,
		Fee:            cfg.Fee,
		BitcoinConfs:   cfg.BitcoinConfs,
		MoneroConfs:    cfg.MoneroConfs,
		RefundScript:   cfg.RefundScript,
		FundingInputs:  cfg.FundingInputs,
		ChangeOutputs:  cfg.ChangeOutputs,
	}
	return &Bob0{data}, nil
}

// Bob0 holds Bob's own key shares, about to open the swap.
type Bob0 struct{ BobData }

// Bob1 has emitted Message0, awaiting Alice's reply.
type Bob1 struct{ BobData }

// Bob2 has verified Alice's DLEQ proof and recorded her public material.
type Bob2 struct{ BobData }

// Bob3 has funded and signed tx_lock, signed tx_cancel, adaptor-signed
// tx_refund, emitted Message2, and broadcast tx_lock; awaiting the
// Monero lock proof.
type Bob3 struct{ BobData }

// Bob4 has a confirmed Monero lock; driving the race between redeeming
// and the cancel-timelock refund path.
type Bob4 struct{ BobData }

// Bob5 is terminal: Bob received (swept) the XMR.
type Bob5 struct{ BobData }

// Bob6 is terminal: Bob's BTC was returned via the refund/punish path.
type Bob6 struct{ BobData }

func (Bob0) isBobState() {}
func (Bob1) isBobState() {}
func (Bob2) isBobState() {}
func (Bob3) isBobState() {}
func (Bob4) isBobState() {}
func (Bob5) isBobState() {}
func (Bob6) isBobState() {}

func (Bob0) StateName() string { return "Bob0" }
func (Bob1) StateName() string { return "Bob1" }
func (Bob2) StateName() string { return "Bob2" }
func (Bob3) StateName() string { return "Bob3" }
func (Bob4) StateName() string { return "Bob4" }
func (Bob5) StateName() string { return "Bob5" }
func (Bob6) StateName() string { return "Bob6" }

// StepBob advances s by ev, dispatching to the matching state's
// transition function. Terminal states accept no further events.
func StepBob(s BobState, ev Event) (BobState, []Effect, error) {
	switch st := s.(type) {
	case Bob0:
		return stepBob0(st, ev)
	case Bob1:
		return stepBob1(st, ev)
	case Bob2:
		return stepBob2(st, ev)
	case Bob3:
		return stepBob3(st, ev)
	case Bob4:
		return stepBob4(st, ev)
	default:
		return s, nil, fmt.Errorf("swapstate: %s accepts no further events", s.StateName())
	}
}

func stepBob0(s Bob0, ev Event) (BobState, []Effect, error) {
	if _, ok := ev.(EventProceed); !ok {
		return s, nil, errUnexpectedEvent
	}

	msg0 := &swapmsg.Message0{
		B:            s.B.PubKey(),
		SBBitcoin:    s.SBBitcoinPub,
		SBMonero:     s.SBMoneroPub,
		VB:           s.VB,
		RefundScript: s.RefundScript,
		Proof:        s.SBProof,
	}

	effects := []Effect{
		EffectSendMessage{Proto: swapnet.ProtoMessage0, Msg: msg0},
		EffectAwaitMessage{Proto: swapnet.ProtoMessage1},
	}
	return Bob1{s.BobData}, effects, nil
}

func stepBob1(s Bob1, ev Event) (BobState, []Effect, error) {
	msgEv, ok := ev.(EventMessageReceived)
	if !ok {
		return s, nil, errUnexpectedEvent
	}
	msg1, ok := msgEv.Msg.(*swapmsg.Message1)
	if !ok {
		return s, nil, errUnexpectedEvent
	}

	if err := dleq.Verify(msg1.SABitcoin, msg1.SAMonero.Point(), msg1.Proof); err != nil {
		return s, nil, fmt.Errorf("verifying alice's dleq proof: %w", err)
	}

	next := s.BobData
	next.A = msg1.A
	next.SABitcoin = msg1.SABitcoin
	next.SAMonero = msg1.SAMonero
	next.VA = msg1.VA
	next.RedeemScript = msg1.RedeemScript
	next.PunishScript = msg1.PunishScript
	next.CancelTimelock = msg1.CancelTimelock
	next.PunishTimelock = msg1.PunishTimelock

	return Bob2{next}, nil, nil
}

func stepBob2(s Bob2, ev Event) (BobState, []Effect, error) {
	if _, ok := ev.(EventProceed); !ok {
		return s, nil, errUnexpectedEvent
	}

	params := &txbuilder.Params{
		A:              s.A,
		B:              s.B.PubKey(),
		CancelTimelock: s.CancelTimelock,
		PunishTimelock: s.PunishTimelock,
		RefundPkScript: s.RefundScript,
		RedeemPkScript: s.RedeemScript,
		PunishPkScript: s.PunishScript,
		FeeRate:        s.Fee,
	}

	lock, err := txbuilder.NewTxLock(params, s.Btc, s.FundingInputs, s.ChangeOutputs)
	if err != nil {
		return s, nil, fmt.Errorf("building tx_lock: %w", err)
	}

	cancel, err := txbuilder.NewTxCancel(params, lock, s.Fee)
	if err != nil {
		return s, nil, fmt.Errorf("building tx_cancel: %w", err)
	}
	cancelDigest, err := cancel.Digest()
	if err != nil {
		return s, nil, err
	}
	sigCancel := ecdsa.Sign(s.B, cancelDigest[:])

	cancelWitnessScript, cancelPkScript, err := txbuilder.CancelOutputScript(params)
	if err != nil {
		return s, nil, err
	}
	refund := txbuilder.NewTxRefund(params, cancel, cancelWitnessScript, cancelPkScript, s.Fee)
	refundDigest, err := refund.Digest()
	if err != nil {
		return s, nil, err
	}
	encSigRefund, err := adaptor.EncSign(s.B, s.SABitcoin, refundDigest)
	if err != nil {
		return s, nil, fmt.Errorf("adaptor-signing tx_refund: %w", err)
	}

	punish := txbuilder.NewTxPunish(params, cancel, cancelWitnessScript, cancelPkScript, s.Fee)
	punishDigest, err := punish.Digest()
	if err != nil {
		return s, nil, err
	}
	sigPunish := ecdsa.Sign(s.B, punishDigest[:])

	msg2 := &swapmsg.Message2{
		TxLock:       lock.MsgTx(),
		EncSigRefund: encSigRefund,
		SigCancel:    sigCancel,
		SigPunish:    sigPunish,
	}

	next := s.BobData
	next.Params = params
	next.Lock = lock
	next.Cancel = cancel
	next.EncSigRefund = encSigRefund
	next.LockBroadcast = true

	effects := []Effect{
		EffectSendMessage{Proto: swapnet.ProtoMessage2, Msg: msg2},
		EffectAwaitMessage{Proto: swapnet.ProtoTransferProof},
		EffectBroadcastTx{Tx: lock.MsgTx(), Label: "tx_lock"},
	}
	return Bob3{next}, effects, nil
}

func stepBob3(s Bob3, ev Event) (BobState, []Effect, error) {
	switch e := ev.(type) {
	case EventMessageReceived:
		if s.MoneroProof != nil {
			return s, nil, errUnexpectedEvent
		}
		proof, ok := e.Msg.(*swapmsg.TransferProof)
		if !ok {
			return s, nil, errUnexpectedEvent
		}

		next := s.BobData
		next.MoneroTxHash = proof.TxHash
		next.MoneroProof = proof.Proof
		next.MoneroAmount = proof.Amount

		joint := xmrcrypto.SumSpendAndViewKeys(
			&xmrcrypto.PublicKeyPair{SpendKey: s.SAMonero, ViewKey: s.VA.Public()},
			&xmrcrypto.PublicKeyPair{SpendKey: s.SBMoneroPub, ViewKey: s.VB.Public()},
		)
		effects := []Effect{
			EffectAwaitMoneroTransfer{
				To:     joint,
				Proof:  proof.Proof,
				Amount: proof.Amount,
				Confs:  s.MoneroConfs,
				TxHash: proof.TxHash,
			},
		}
		return Bob3{next}, effects, nil

	case EventMoneroTransferConfirmed:
		if s.MoneroProof == nil {
			return s, nil, errUnexpectedEvent
		}
		if s.MoneroAmount != s.Xmr {
			return s, nil, fmt.Errorf("swapstate: monero transfer pays %d, expected %d", s.MoneroAmount, s.Xmr)
		}

		lockOutpoint := wire.OutPoint{Hash: s.Lock.TxID(), Index: 0}
		effects := []Effect{
			EffectAwaitTimelock{Outpoint: lockOutpoint, Blocks: s.CancelTimelock},
		}
		return Bob4{s.BobData}, effects, nil

	default:
		return s, nil, errUnexpectedEvent
	}
}

// stepBob4 drives the race between the happy redeem path and the
// cancel-timelock refund path, mirroring stepAliceRefund's structure.
func stepBob4(s Bob4, ev Event) (BobState, []Effect, error) {
	switch e := ev.(type) {
	case EventProceed:
		if s.MessageThreeSent {
			return s, nil, errUnexpectedEvent
		}
		return bobSendMessage3(s.BobData)

	case EventOutpointSpent:
		if s.CancelSeen {
			return bobHandleCancelSpend(s.BobData, e.Tx)
		}
		return bobHandleLockSpend(s.BobData, e.Tx)

	case EventTimelockExpired:
		if !s.MessageThreeSent && !s.CancelSeen {
			lockOutpoint := wire.OutPoint{Hash: s.Lock.TxID(), Index: 0}
			effects := []Effect{
				EffectAwaitOutpointSpend{Outpoint: lockOutpoint},
			}
			return s, effects, nil
		}
		return s, nil, nil

	default:
		return s, nil, errUnexpectedEvent
	}
}

// bobSendMessage3 builds tx_redeem, adaptor-signs it under Alice's point,
// and emits Message3 - the happy-path branch of Bob4.
func bobSendMessage3(data BobData) (BobState, []Effect, error) {
	redeem := txbuilder.NewTxRedeem(data.Params, data.Lock, data.Fee)
	digest, err := redeem.Digest()
	if err != nil {
		return Bob4{data}, nil, err
	}

	encSigRedeem, err := adaptor.EncSign(data.B, data.SABitcoin, digest)
	if err != nil {
		return Bob4{data}, nil, fmt.Errorf("adaptor-signing tx_redeem: %w", err)
	}

	msg3 := &swapmsg.Message3{EncSigRedeem: encSigRedeem}

	next := data
	next.Redeem = redeem
	next.EncSigRedeem = encSigRedeem
	next.MessageThreeSent = true

	lockOutpoint := wire.OutPoint{Hash: data.Lock.TxID(), Index: 0}
	effects := []Effect{
		EffectSendMessage{Proto: swapnet.ProtoMessage3, Msg: msg3},
		EffectAwaitOutpointSpend{Outpoint: lockOutpoint},
	}
	return Bob4{next}, effects, nil
}

// bobHandleLockSpend inspects whatever transaction spent tx_lock's
// output. If it is Bob's own tx_redeem (deterministic txid regardless of
// who completed its witness, per txbuilder.Tx.TxID), Alice has redeemed:
// extract Bob's signature slot from the published witness and recover
// s_a from it, sweep the Monero output with s_a+s_b. Anything else means
// tx_cancel appeared (Alice entering the refund path early), so Bob
// starts watching tx_cancel's own output instead of ever broadcasting it
// himself - only Alice, who alone holds both signatures on tx_cancel, can
// do that (see DESIGN.md).
func bobHandleLockSpend(data BobData, spend *wire.MsgTx) (BobState, []Effect, error) {
	if data.Redeem != nil && spend.TxHash() == data.Redeem.TxID() {
		return bobSweepMonero(data, spend)
	}

	next := data
	next.CancelSeen = true

	cancelOutpoint := wire.OutPoint{Hash: data.Cancel.TxID(), Index: 0}
	effects := []Effect{
		EffectAwaitOutpointSpend{Outpoint: cancelOutpoint},
	}
	return Bob4{next}, effects, nil
}

// bobHandleCancelSpend inspects whatever transaction spent tx_cancel's
// output, once tx_cancel itself has been observed on chain. A payout to
// Bob's own refund address means tx_refund completed (Bob got his BTC
// back); anything else is tx_punish having confirmed (Bob lost it).
// Neither outcome is distinguished by a separate terminal state: spec.md
// only names Bob6 for "BTC returned via the refund/punish path".
func bobHandleCancelSpend(data BobData, spend *wire.MsgTx) (BobState, []Effect, error) {
	return Bob6{data}, nil, nil
}

// bobSweepMonero extracts Bob's own signature out of the published
// tx_redeem, recovers s_a from it (the encryption scalar Alice used to
// decrypt Bob's adaptor signature), and sweeps the joint Monero output.
func bobSweepMonero(data BobData, published *wire.MsgTx) (BobState, []Effect, error) {
	der, err := txbuilder.ExtractSignatureByKey(published, data.A, data.B.PubKey(), data.B.PubKey())
	if err != nil {
		return Bob4{data}, nil, fmt.Errorf("extracting completed tx_redeem signature: %w", err)
	}
	sig, err := adaptor.SignatureFromDER(der.Serialize())
	if err != nil {
		return Bob4{data}, nil, fmt.Errorf("parsing completed tx_redeem signature: %w", err)
	}

	recoveredScalar, err := adaptor.Recover(data.SABitcoin, sig, data.EncSigRedeem)
	if err != nil {
		return Bob4{data}, nil, fmt.Errorf("recovering s_a: %w", err)
	}
	sa, err := spendKeyFromRecoveredScalar(recoveredScalar)
	if err != nil {
		return Bob4{data}, nil, fmt.Errorf("rebuilding alice's spend key share: %w", err)
	}

	jointSpend := xmrcrypto.SumPrivateSpendKeys(sa, data.SB)
	jointView := xmrcrypto.SumPrivateViewKeys(data.VA, data.VB)
	keys := xmrcrypto.NewPrivateKeyPair(jointSpend, jointView)

	effects := []Effect{
		EffectSweepMonero{Keys: keys},
	}
	return Bob5{data}, effects, nil
}

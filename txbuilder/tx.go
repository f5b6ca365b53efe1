package txbuilder

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ErrAlreadySigned is returned by AddSignatures on a transaction that has
// already had its witness filled in.
var ErrAlreadySigned = errors.New("txbuilder: transaction already signed")

// ErrInvalidSignature is returned by AddSignatures when a supplied
// signature does not verify against the spent output's witness script.
var ErrInvalidSignature = errors.New("txbuilder: signature does not verify")

// Params bundles the shared parameters spec.md §4.2 says every transaction
// builder consumes.
type Params struct {
	A, B           *btcec.PublicKey
	CancelTimelock uint32
	PunishTimelock uint32
	RefundPkScript []byte
	RedeemPkScript []byte
	PunishPkScript []byte
	FeeRate        btcutil.Amount
}

// Tx wraps a partially- or fully-built transaction together with the
// witness script and amount of the single input it spends, enough context
// to compute sighashes, validate signatures, and extract a counterparty's
// signature from a mined copy.
type Tx struct {
	msg           *wire.MsgTx
	prevPkScript  []byte
	witnessScript []byte
	inputAmount   btcutil.Amount
	signed        bool
}

// MsgTx returns the underlying wire transaction.
func (t *Tx) MsgTx() *wire.MsgTx { return t.msg }

// OutputAmount returns the value of this transaction's single output, the
// amount a subsequent spending transaction must treat as its input value.
func (t *Tx) OutputAmount() btcutil.Amount {
	return btcutil.Amount(t.msg.TxOut[0].Value)
}

// TxID returns the transaction's txid. Because P2WSH inputs carry their
// signatures in the witness rather than the legacy scriptSig, TxID is
// unaffected by whether the transaction has been signed yet - the identity
// law spec.md §8 requires of AddSignatures.
func (t *Tx) TxID() chainhash.Hash { return t.msg.TxHash() }

// Digest returns the BIP-143 witness sighash for the transaction's single
// input, the value both parties must sign.
func (t *Tx) Digest() ([32]byte, error) {
	prevFetcher := txscript.NewCannedPrevOutputFetcher(t.prevPkScript, int64(t.inputAmount))
	sigHashes := txscript.NewTxSigHashes(t.msg, prevFetcher)
	digest, err := txscript.CalcWitnessSigHash(
		t.witnessScript, sigHashes, txscript.SigHashAll, t.msg, 0, int64(t.inputAmount),
	)
	if err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	copy(out[:], digest)
	return out, nil
}

// AddSignatures verifies both parties' raw (r,s) ECDSA signatures against
// this transaction's digest and, once both check out, installs the final
// witness, following spec.md §4.2's add_signatures((A,sigA),(B,sigB)).
func (t *Tx) AddSignatures(a *btcec.PublicKey, sigA *ecdsa.Signature, b *btcec.PublicKey, sigB *ecdsa.Signature) error {
	if t.signed {
		return ErrAlreadySigned
	}

	digest, err := t.Digest()
	if err != nil {
		return err
	}

	if !sigA.Verify(digest[:], a) {
		return fmt.Errorf("%w: key A", ErrInvalidSignature)
	}
	if !sigB.Verify(digest[:], b) {
		return fmt.Errorf("%w: key B", ErrInvalidSignature)
	}

	witness := multiSigWitness(
		t.witnessScript,
		sigWithHashType(sigA.Serialize()),
		sigWithHashType(sigB.Serialize()),
		keysAscending(a, b),
	)
	t.msg.TxIn[0].Witness = witness
	t.signed = true
	return nil
}

// ExtractSignatureByKey reads a signature for the given public key out of
// a mined copy of this transaction's witness, the operation spec.md §4.2
// calls extract_signature_by_key - used for recovering the counterparty's
// signature off-chain once their spend has been observed.
func ExtractSignatureByKey(published *wire.MsgTx, a, b *btcec.PublicKey, key *btcec.PublicKey) (*ecdsa.Signature, error) {
	if len(published.TxIn) == 0 || len(published.TxIn[0].Witness) < 3 {
		return nil, errors.New("txbuilder: published transaction has no multisig witness")
	}

	witness := published.TxIn[0].Witness
	sigABytes := witness[1]
	sigBBytes := witness[2]

	var mine []byte
	aFirst := keysAscending(a, b)
	switch {
	case key.IsEqual(a) && aFirst:
		mine = sigABytes
	case key.IsEqual(a):
		mine = sigBBytes
	case key.IsEqual(b) && aFirst:
		mine = sigBBytes
	case key.IsEqual(b):
		mine = sigABytes
	default:
		return nil, errors.New("txbuilder: key is neither party to this multisig")
	}

	if len(mine) > 0 {
		mine = mine[:len(mine)-1] // strip the sighash-type byte
	}

	sig, err := ecdsa.ParseDERSignature(mine)
	if err != nil {
		return nil, fmt.Errorf("txbuilder: parsing extracted signature: %w", err)
	}
	return sig, nil
}

// buildMultiSigOutput builds the 2-of-2 witness script and P2WSH pkScript
// for keys a and b.
func buildMultiSigOutput(a, b *btcec.PublicKey) (script, pkScript []byte, err error) {
	script, err = multiSigScript(a, b)
	if err != nil {
		return nil, nil, err
	}
	pkScript, err = p2wshPkScript(script)
	if err != nil {
		return nil, nil, err
	}
	return script, pkScript, nil
}

// NewTxLock builds tx_lock: Bob's funding transaction paying the 2-of-2
// {A,B} output for the agreed btc amount. The caller (the Bitcoin wallet,
// outside this package per spec.md §1) supplies the funding inputs/change;
// NewTxLock only fixes the single swap output other transactions spend.
func NewTxLock(params *Params, amount btcutil.Amount, fundingInputs []*wire.TxIn, changeOutputs []*wire.TxOut) (*Tx, error) {
	script, pkScript, err := buildMultiSigOutput(params.A, params.B)
	if err != nil {
		return nil, err
	}

	msg := wire.NewMsgTx(wire.TxVersion)
	for _, in := range fundingInputs {
		msg.AddTxIn(in)
	}
	msg.AddTxOut(wire.NewTxOut(int64(amount), pkScript))
	for _, out := range changeOutputs {
		msg.AddTxOut(out)
	}

	return &Tx{
		msg:           msg,
		witnessScript: script,
		prevPkScript:  pkScript,
		inputAmount:   amount,
	}, nil
}

// TxFromMsgTx wraps a counterparty-supplied tx_lock in a Tx handle, so its
// receiver can compute digests and extract signatures the same way the
// builder of the original does. The swap output is always tx_lock's
// output 0 (see NewTxLock), so its value and scripts are read back out of
// the wire transaction rather than re-derived.
func TxFromMsgTx(params *Params, msg *wire.MsgTx) (*Tx, error) {
	if len(msg.TxOut) == 0 {
		return nil, errors.New("txbuilder: transaction has no outputs")
	}

	script, pkScript, err := buildMultiSigOutput(params.A, params.B)
	if err != nil {
		return nil, err
	}

	out := msg.TxOut[0]
	if !bytes.Equal(out.PkScript, pkScript) {
		return nil, errors.New("txbuilder: output 0 does not pay the expected 2-of-2 script")
	}

	return &Tx{
		msg:           msg,
		witnessScript: script,
		prevPkScript:  pkScript,
		inputAmount:   btcutil.Amount(out.Value),
	}, nil
}

// spendTx builds a single-input, single-output transaction spending
// outpoint (which carries amount under witnessScript/prevPkScript) and
// paying payPkScript, optionally with a relative CSV timelock.
func spendTx(outpoint wire.OutPoint, amount btcutil.Amount, witnessScript, prevPkScript, payPkScript []byte, fee btcutil.Amount, csvBlocks uint32) *Tx {
	msg := wire.NewMsgTx(wire.TxVersion)

	sequence := wire.MaxTxInSequenceNum
	if csvBlocks > 0 {
		sequence = relativeLocktimeSequence(csvBlocks)
	}
	txIn := wire.NewTxIn(&outpoint, nil, nil)
	txIn.Sequence = sequence
	msg.AddTxIn(txIn)

	msg.AddTxOut(wire.NewTxOut(int64(amount-fee), payPkScript))

	return &Tx{
		msg:           msg,
		witnessScript: witnessScript,
		prevPkScript:  prevPkScript,
		inputAmount:   amount,
	}
}

// NewTxCancel builds tx_cancel: spends tx_lock's output into a fresh 2-of-2
// {A,B} output, timelocked by cancel_timelock relative to tx_lock's
// confirmation, per spec.md §4.2's table. Its own output script is
// returned separately via CancelOutputScript since tx_refund and
// tx_punish, not tx_cancel itself, are the ones that need to spend it.
func NewTxCancel(params *Params, lock *Tx, fee btcutil.Amount) (*Tx, error) {
	_, pkScript, err := buildMultiSigOutput(params.A, params.B)
	if err != nil {
		return nil, err
	}

	outpoint := wire.OutPoint{Hash: lock.TxID(), Index: 0}
	tx := spendTx(outpoint, lock.inputAmount, lock.witnessScript, lock.prevPkScript, pkScript, fee, params.CancelTimelock)
	return tx, nil
}

// CancelOutputScript returns the witness script securing tx_cancel's own
// output, which tx_refund and tx_punish spend.
func CancelOutputScript(params *Params) ([]byte, []byte, error) {
	return buildMultiSigOutput(params.A, params.B)
}

// NewTxRefund builds tx_refund: spends tx_cancel's output to Bob's
// refund_addr.
func NewTxRefund(params *Params, cancel *Tx, cancelWitnessScript, cancelPkScript []byte, fee btcutil.Amount) *Tx {
	outpoint := wire.OutPoint{Hash: cancel.TxID(), Index: 0}
	return spendTx(outpoint, cancel.OutputAmount(), cancelWitnessScript, cancelPkScript, params.RefundPkScript, fee, 0)
}

// NewTxRedeem builds tx_redeem: spends tx_lock's output directly to
// Alice's redeem_addr (no cancel timelock on the happy path).
func NewTxRedeem(params *Params, lock *Tx, fee btcutil.Amount) *Tx {
	outpoint := wire.OutPoint{Hash: lock.TxID(), Index: 0}
	return spendTx(outpoint, lock.inputAmount, lock.witnessScript, lock.prevPkScript, params.RedeemPkScript, fee, 0)
}

// NewTxPunish builds tx_punish: spends tx_cancel's output to Alice's
// punish_addr once punish_timelock has elapsed since tx_cancel's
// confirmation.
func NewTxPunish(params *Params, cancel *Tx, cancelWitnessScript, cancelPkScript []byte, fee btcutil.Amount) *Tx {
	outpoint := wire.OutPoint{Hash: cancel.TxID(), Index: 0}
	return spendTx(outpoint, cancel.OutputAmount(), cancelWitnessScript, cancelPkScript, params.PunishPkScript, fee, params.PunishTimelock)
}

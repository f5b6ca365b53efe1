package swapmsg

import (
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightninglabs/xmrswap/adaptor"
	"github.com/lightninglabs/xmrswap/dleq"
	"github.com/lightninglabs/xmrswap/xmrcrypto"
)

// Message0 is Bob's opening message: his Bitcoin and Monero key shares, his
// Monero view key share, his Bitcoin refund address, and the cross-curve
// DLEQ proof binding S_b_bitcoin and S_b_monero to the same scalar s_b.
type Message0 struct {
	B            *btcec.PublicKey
	SBBitcoin    *btcec.PublicKey
	SBMonero     *xmrcrypto.PublicKey
	VB           *xmrcrypto.PrivateViewKey
	RefundScript []byte
	Proof        *dleq.Proof
}

func (m *Message0) MsgType() Type            { return MsgMessage0 }
func (m *Message0) MaxPayloadLength() uint32 { return MaxMessagePayload }

func (m *Message0) Encode(w io.Writer) error {
	if err := writeBitcoinPubKey(w, m.B); err != nil {
		return err
	}
	if err := writeBitcoinPubKey(w, m.SBBitcoin); err != nil {
		return err
	}
	if err := writeMoneroPubKey(w, m.SBMonero); err != nil {
		return err
	}
	if err := writeViewKey(w, m.VB); err != nil {
		return err
	}
	if err := writeVarBytes(w, m.RefundScript); err != nil {
		return err
	}
	return writeDLEQProof(w, m.Proof)
}

func (m *Message0) Decode(r io.Reader) error {
	var err error
	if m.B, err = readBitcoinPubKey(r); err != nil {
		return err
	}
	if m.SBBitcoin, err = readBitcoinPubKey(r); err != nil {
		return err
	}
	if m.SBMonero, err = readMoneroPubKey(r); err != nil {
		return err
	}
	if m.VB, err = readViewKey(r); err != nil {
		return err
	}
	if m.RefundScript, err = readVarBytes(r); err != nil {
		return err
	}
	m.Proof, err = readDLEQProof(r)
	return err
}

// Message1 is Alice's reply: her key shares, view key share, redeem and
// punish addresses, the timelocks she requires, and her own DLEQ proof for
// s_a.
type Message1 struct {
	A              *btcec.PublicKey
	SABitcoin      *btcec.PublicKey
	SAMonero       *xmrcrypto.PublicKey
	VA             *xmrcrypto.PrivateViewKey
	RedeemScript   []byte
	PunishScript   []byte
	CancelTimelock uint32
	PunishTimelock uint32
	Proof          *dleq.Proof
}

func (m *Message1) MsgType() Type            { return MsgMessage1 }
func (m *Message1) MaxPayloadLength() uint32 { return MaxMessagePayload }

func (m *Message1) Encode(w io.Writer) error {
	if err := writeBitcoinPubKey(w, m.A); err != nil {
		return err
	}
	if err := writeBitcoinPubKey(w, m.SABitcoin); err != nil {
		return err
	}
	if err := writeMoneroPubKey(w, m.SAMonero); err != nil {
		return err
	}
	if err := writeViewKey(w, m.VA); err != nil {
		return err
	}
	if err := writeVarBytes(w, m.RedeemScript); err != nil {
		return err
	}
	if err := writeVarBytes(w, m.PunishScript); err != nil {
		return err
	}
	if err := writeUint32(w, m.CancelTimelock); err != nil {
		return err
	}
	if err := writeUint32(w, m.PunishTimelock); err != nil {
		return err
	}
	return writeDLEQProof(w, m.Proof)
}

func (m *Message1) Decode(r io.Reader) error {
	var err error
	if m.A, err = readBitcoinPubKey(r); err != nil {
		return err
	}
	if m.SABitcoin, err = readBitcoinPubKey(r); err != nil {
		return err
	}
	if m.SAMonero, err = readMoneroPubKey(r); err != nil {
		return err
	}
	if m.VA, err = readViewKey(r); err != nil {
		return err
	}
	if m.RedeemScript, err = readVarBytes(r); err != nil {
		return err
	}
	if m.PunishScript, err = readVarBytes(r); err != nil {
		return err
	}
	if m.CancelTimelock, err = readUint32(r); err != nil {
		return err
	}
	if m.PunishTimelock, err = readUint32(r); err != nil {
		return err
	}
	m.Proof, err = readDLEQProof(r)
	return err
}

// Message2 is Bob's funded, signed tx_lock together with an adaptor
// signature on tx_refund (encrypted under S_a_bitcoin), a plain signature
// on tx_cancel, and a plain signature on tx_punish - everything Alice
// needs to safely broadcast nothing yet but hold a fully recoverable
// position. SigPunish has no equivalent line in the distilled message
// table; without it tx_punish's both-sigs spend condition would have no
// channel at all for Bob's half, so it travels alongside SigCancel, the
// transaction it most resembles (same input, same witness script).
type Message2 struct {
	TxLock       *wire.MsgTx
	EncSigRefund *adaptor.EncryptedSignature
	SigCancel    *ecdsa.Signature
	SigPunish    *ecdsa.Signature
}

func (m *Message2) MsgType() Type            { return MsgMessage2 }
func (m *Message2) MaxPayloadLength() uint32 { return MaxMessagePayload }

func (m *Message2) Encode(w io.Writer) error {
	if err := m.TxLock.Serialize(w); err != nil {
		return err
	}
	if err := writeEncryptedSignature(w, m.EncSigRefund); err != nil {
		return err
	}
	if err := writeECDSASignature(w, m.SigCancel); err != nil {
		return err
	}
	return writeECDSASignature(w, m.SigPunish)
}

func (m *Message2) Decode(r io.Reader) error {
	m.TxLock = &wire.MsgTx{}
	if err := m.TxLock.Deserialize(r); err != nil {
		return err
	}
	var err error
	if m.EncSigRefund, err = readEncryptedSignature(r); err != nil {
		return err
	}
	if m.SigCancel, err = readECDSASignature(r); err != nil {
		return err
	}
	m.SigPunish, err = readECDSASignature(r)
	return err
}

// TransferProof is Alice's evidence that her Monero lock transaction pays
// the joint key S_a+S_b for the agreed xmr amount: the transaction hash,
// the wallet-issued proof blob (e.g. a get_tx_proof signature), and the
// amount in piconero.
type TransferProof struct {
	TxHash [32]byte
	Proof  []byte
	Amount uint64
}

func (m *TransferProof) MsgType() Type            { return MsgTransferProof }
func (m *TransferProof) MaxPayloadLength() uint32 { return MaxMessagePayload }

func (m *TransferProof) Encode(w io.Writer) error {
	if err := writeFixedBytes(w, m.TxHash[:]); err != nil {
		return err
	}
	if err := writeVarBytes(w, m.Proof); err != nil {
		return err
	}
	return writeUint64(w, m.Amount)
}

func (m *TransferProof) Decode(r io.Reader) error {
	hash, err := readFixedBytes(r, 32)
	if err != nil {
		return err
	}
	copy(m.TxHash[:], hash)

	if m.Proof, err = readVarBytes(r); err != nil {
		return err
	}
	m.Amount, err = readUint64(r)
	return err
}

// Message3 is Bob's encrypted signature on tx_redeem, the final message of
// the happy path: once Alice decrypts it and broadcasts tx_redeem, the
// published signature lets Bob recover s_a and sweep the Monero output.
type Message3 struct {
	EncSigRedeem *adaptor.EncryptedSignature
}

func (m *Message3) MsgType() Type            { return MsgMessage3 }
func (m *Message3) MaxPayloadLength() uint32 { return MaxMessagePayload }

func (m *Message3) Encode(w io.Writer) error {
	return writeEncryptedSignature(w, m.EncSigRedeem)
}

func (m *Message3) Decode(r io.Reader) error {
	var err error
	m.EncSigRedeem, err = readEncryptedSignature(r)
	return err
}

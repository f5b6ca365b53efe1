package swapmsg

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"

	"github.com/lightninglabs/xmrswap/adaptor"
	"github.com/lightninglabs/xmrswap/dleq"
	"github.com/lightninglabs/xmrswap/xmrcrypto"
)

// maxVarBytes bounds a single length-prefixed byte field, generous enough
// for any pkScript or DER signature this protocol produces.
const maxVarBytes = 1<<16 - 1

func writeUint32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(buf[:]), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(buf[:]), nil
}

func writeFixedBytes(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

func readFixedBytes(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func writeVarBytes(w io.Writer, b []byte) error {
	if len(b) > maxVarBytes {
		return fmt.Errorf("swapmsg: field of %d bytes exceeds max of %d", len(b), maxVarBytes)
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(b)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readVarBytes(r io.Reader) ([]byte, error) {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(lenBuf[:])
	return readFixedBytes(r, int(n))
}

func writeBitcoinPubKey(w io.Writer, key *btcec.PublicKey) error {
	return writeFixedBytes(w, key.SerializeCompressed())
}

func readBitcoinPubKey(r io.Reader) (*btcec.PublicKey, error) {
	b, err := readFixedBytes(r, 33)
	if err != nil {
		return nil, err
	}
	return btcec.ParsePubKey(b)
}

func writeMoneroPubKey(w io.Writer, key *xmrcrypto.PublicKey) error {
	b := key.Bytes()
	return writeFixedBytes(w, b[:])
}

func readMoneroPubKey(r io.Reader) (*xmrcrypto.PublicKey, error) {
	b, err := readFixedBytes(r, 32)
	if err != nil {
		return nil, err
	}
	return xmrcrypto.NewPublicKeyFromBytes(b)
}

func writeViewKey(w io.Writer, key *xmrcrypto.PrivateViewKey) error {
	b := key.Bytes()
	return writeFixedBytes(w, b[:])
}

func readViewKey(r io.Reader) (*xmrcrypto.PrivateViewKey, error) {
	b, err := readFixedBytes(r, 32)
	if err != nil {
		return nil, err
	}
	return xmrcrypto.NewPrivateViewKeyCanonical(b)
}

func writeDLEQProof(w io.Writer, proof *dleq.Proof) error {
	return writeFixedBytes(w, proof.Bytes())
}

func readDLEQProof(r io.Reader) (*dleq.Proof, error) {
	b, err := readFixedBytes(r, dleq.Size)
	if err != nil {
		return nil, err
	}
	return dleq.ProofFromBytes(b)
}

func writeEncryptedSignature(w io.Writer, es *adaptor.EncryptedSignature) error {
	return writeFixedBytes(w, es.Bytes())
}

func readEncryptedSignature(r io.Reader) (*adaptor.EncryptedSignature, error) {
	b, err := readFixedBytes(r, adaptor.Size)
	if err != nil {
		return nil, err
	}
	return adaptor.EncryptedSignatureFromBytes(b)
}

func writeECDSASignature(w io.Writer, sig *ecdsa.Signature) error {
	return writeVarBytes(w, sig.Serialize())
}

func readECDSASignature(r io.Reader) (*ecdsa.Signature, error) {
	b, err := readVarBytes(r)
	if err != nil {
		return nil, err
	}
	return ecdsa.ParseDERSignature(b)
}

func writeAmount(w io.Writer, amt btcutil.Amount) error {
	return writeUint64(w, uint64(amt))
}

func readAmount(r io.Reader) (btcutil.Amount, error) {
	v, err := readUint64(r)
	if err != nil {
		return 0, err
	}
	return btcutil.Amount(v), nil
}

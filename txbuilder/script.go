// Package txbuilder constructs the five Bitcoin transactions the swap
// protocol needs - tx_lock, tx_cancel, tx_refund, tx_redeem, tx_punish -
// plus their sighash digests, following spec.md §4.2's table exactly. The
// 2-of-2 P2WSH multisig scripting follows lnwallet/script_utils.go's
// genMultiSigScript/witnessScriptHash/genFundingPkScript pattern; the
// fee-aware, CSV-sequenced spend construction follows
// sweep/txgenerator.go's createSweepTx.
package txbuilder

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// multiSigScript builds the canonical 2-of-2 CHECKMULTISIG witness script
// for pubkeys A and B, always in ascending lexicographic order the way
// genMultiSigScript does, so both parties independently derive the
// identical script regardless of message-arrival order.
func multiSigScript(a, b *btcec.PublicKey) ([]byte, error) {
	aBytes := a.SerializeCompressed()
	bBytes := b.SerializeCompressed()

	if bytes.Compare(aBytes, bBytes) > 0 {
		aBytes, bBytes = bBytes, aBytes
	}

	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_2)
	builder.AddData(aBytes)
	builder.AddData(bBytes)
	builder.AddOp(txscript.OP_2)
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	return builder.Script()
}

// witnessScriptHash returns the SHA-256 of a witness script, the value
// embedded in a P2WSH output's pkScript.
func witnessScriptHash(script []byte) [32]byte {
	return chainhash.HashH(script)
}

// p2wshPkScript builds the OP_0 <32-byte-hash> output script committing to
// the given witness script.
func p2wshPkScript(script []byte) ([]byte, error) {
	hash := witnessScriptHash(script)
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(hash[:]).
		Script()
}

// relativeLocktimeSequence encodes a BIP-68 block-based relative locktime
// of n blocks into a transaction input's sequence field: bit 31 clear
// enables relative-locktime semantics, bit 22 clear selects block units
// rather than the 512-second unit, and the low 16 bits carry n directly.
func relativeLocktimeSequence(n uint32) uint32 {
	return n & 0x0000ffff
}

// multiSigWitness assembles the final witness stack for spending a P2WSH
// 2-of-2 multisig output: an empty element first (CHECKMULTISIG's
// off-by-one quirk), then the two signatures in the same key order the
// witness script committed to, then the script itself.
func multiSigWitness(script []byte, sigA, sigB []byte, aFirst bool) wire.TxWitness {
	first, second := sigA, sigB
	if !aFirst {
		first, second = sigB, sigA
	}
	return wire.TxWitness{nil, first, second, script}
}

func keysAscending(a, b *btcec.PublicKey) bool {
	return bytes.Compare(a.SerializeCompressed(), b.SerializeCompressed()) <= 0
}

func sigWithHashType(sig []byte) []byte {
	return append(append([]byte{}, sig...), byte(txscript.SigHashAll))
}

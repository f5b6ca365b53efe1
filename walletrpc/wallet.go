// Package walletrpc defines the Bitcoin and Monero wallet contracts the
// swap core consumes, following lnd's own split between a narrow
// capability interface (e.g. lnwallet.WalletController) and the RPC client
// that implements it against a concrete backend. swapd.Driver is written
// against BitcoinWallet/MoneroWallet only; btcrpc and monerorpc are two
// interchangeable implementations, and tests substitute fakes for both.
package walletrpc

import (
	"context"
	"errors"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightninglabs/xmrswap/xmrcrypto"
)

// TransientError marks a wallet-call failure the driver should retry
// (a dropped connection, a backend temporarily out of sync) rather than
// treat as fatal to the swap. Wrap the underlying cause with
// NewTransientError; swapd.Driver unwraps it via errors.As.
type TransientError struct {
	Op  string
	Err error
}

func NewTransientError(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

func (e *TransientError) Error() string {
	return "walletrpc: transient error during " + e.Op + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

// ErrTxNotFound is returned by GetRawTransaction when no transaction with
// the given hash is known to the backend, mempool or chain.
var ErrTxNotFound = errors.New("walletrpc: transaction not found")

// BitcoinWallet is everything swapd.Driver needs from a Bitcoin backend.
// Sign covers only wallet-held keys; the swap state machines hold the
// 2-of-2 keys and sign those spends directly (per spec.md §4.4/§4.5), and
// the driver itself uses only broadcasting and chain queries.
type BitcoinWallet interface {
	// Sign produces a plain ECDSA signature over digest using the key
	// identified by pubKeyHash's wallet-internal association. This is
	// used only for the wallet's own funding inputs spent by tx_lock -
	// the swap's 2-of-2 multisig inputs are signed directly by the
	// state machines, never through this call.
	Sign(ctx context.Context, pubKeyHash []byte, digest [32]byte) (*ecdsa.Signature, error)

	// Broadcast submits tx to the network. A tx already known to the
	// backend's mempool or chain (btcjson's "already in block chain" /
	// "txn-already-known" responses) is treated as success, not error -
	// the idempotent-broadcast resolution of SPEC_FULL.md §9 item 2.
	Broadcast(ctx context.Context, tx *wire.MsgTx) error

	// GetRawTransaction returns the full transaction for txid, whether
	// it is confirmed or only in the mempool. Returns ErrTxNotFound if
	// unknown to the backend.
	GetRawTransaction(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error)

	// WatchForRawTransaction blocks until a transaction spending
	// outpoint appears (mempool or block) and returns it. Canceling ctx
	// stops the watch.
	WatchForRawTransaction(ctx context.Context, outpoint wire.OutPoint) (*wire.MsgTx, error)

	// TransactionBlockHeight returns the height of the block
	// confirming txid, or 0 if it is unconfirmed or unknown.
	TransactionBlockHeight(ctx context.Context, txid chainhash.Hash) (int32, error)

	// PollUntilBlockHeightIsGte blocks until the chain tip reaches
	// height, polling at the backend's own cadence.
	PollUntilBlockHeightIsGte(ctx context.Context, height int32) error

	// TransactionFee returns the absolute fee paid by tx, computed from
	// its funding inputs' previous outputs.
	TransactionFee(ctx context.Context, tx *wire.MsgTx) (btcutil.Amount, error)
}

// MoneroWallet is everything swapd.Driver needs from a monero-wallet-rpc
// backend: sending the Monero lock, proving it, watching the counterparty's
// lock, and sweeping a recovered joint key.
type MoneroWallet interface {
	// Balance returns the wallet's unlocked spendable balance in
	// piconero.
	Balance(ctx context.Context) (uint64, error)

	// Transfer sends amount piconero to the joint public key pair to,
	// returning the transaction hash and a get_tx_proof-style proof
	// blob that the counterparty can verify without importing the
	// sending wallet's keys.
	Transfer(ctx context.Context, to *xmrcrypto.PublicKeyPair, amount uint64) (txHash [32]byte, proof []byte, err error)

	// WatchForTransfer blocks until the transaction identified by
	// txHash, paying the joint public key pair to for at least amount
	// piconero and backed by proof, reaches confs confirmations.
	// Returns an error if proof does not verify against the address
	// derived from to.
	WatchForTransfer(ctx context.Context, to *xmrcrypto.PublicKeyPair, txHash [32]byte, proof []byte, amount uint64, confs uint32) error

	// CreateFromKeys imports or restores a spendable wallet from a
	// fully-known key pair - used once a refund or redeem path
	// recovers the joint private spend key, to sweep the Monero lock.
	CreateFromKeys(ctx context.Context, keys *xmrcrypto.PrivateKeyPair, restoreHeight uint64) error

	// GetBalance reports the balance of the wallet most recently
	// created by CreateFromKeys, so the driver can confirm a sweep's
	// funds actually arrived before declaring the swap complete.
	GetBalance(ctx context.Context, accountIndex uint32) (uint64, error)
}

// PollInterval is the default cadence used by PollUntilBlockHeightIsGte
// implementations that have no push-based chain notification, matching
// the polling cadence lnd's own neutrino backend falls back to when no
// better notification source is wired up.
const PollInterval = 10 * time.Second

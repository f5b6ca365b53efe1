// Package btcrpc implements walletrpc.BitcoinWallet against a btcd or
// bitcoind RPC endpoint via github.com/btcsuite/btcd/rpcclient, following
// chainregistry.go's rpcclient.ConnConfig construction for connecting to
// the home chain backend.
package btcrpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightninglabs/xmrswap/internal/build"
	"github.com/lightninglabs/xmrswap/walletrpc"
)

var log = build.NewSubLogger("BRPC")

// Client is a btcd/bitcoind RPC client implementing walletrpc.BitcoinWallet.
// It holds no private keys of its own - Sign is implemented against a
// wallet-side rpcclient.Client configured with WalletOnly, following the
// same split lnd's chainregistry.go makes between the chain backend's RPC
// client and the wallet's own.
type Client struct {
	chain      *rpcclient.Client
	wallet     *rpcclient.Client
	chainParams *chaincfg.Params
}

var _ walletrpc.BitcoinWallet = (*Client)(nil)

// Config bundles the two rpcclient.ConnConfig values a Client is built
// from: one talking to the chain backend (btcd/bitcoind) for broadcast and
// chain queries, one talking to the backend's wallet component for
// signing this wallet's own funding inputs.
type Config struct {
	Chain       rpcclient.ConnConfig
	Wallet      rpcclient.ConnConfig
	ChainParams *chaincfg.Params
}

// New dials both the chain and wallet RPC endpoints described by cfg.
func New(cfg Config) (*Client, error) {
	chain, err := rpcclient.New(&cfg.Chain, nil)
	if err != nil {
		return nil, fmt.Errorf("btcrpc: dialing chain backend: %w", err)
	}

	wallet, err := rpcclient.New(&cfg.Wallet, nil)
	if err != nil {
		chain.Shutdown()
		return nil, fmt.Errorf("btcrpc: dialing wallet backend: %w", err)
	}

	params := cfg.ChainParams
	if params == nil {
		params = &chaincfg.MainNetParams
	}

	return &Client{chain: chain, wallet: wallet, chainParams: params}, nil
}

func (c *Client) params() *chaincfg.Params { return c.chainParams }

// Shutdown tears down both RPC connections.
func (c *Client) Shutdown() {
	c.chain.Shutdown()
	c.wallet.Shutdown()
}

// Sign implements walletrpc.BitcoinWallet. pubKeyHash names one of this
// wallet's own P2WPKH addresses (tx_lock's funding input, never the
// swap's 2-of-2 multisig - those spends are signed directly inside
// swapstate); the wallet RPC resolves it to a private key via
// dumpprivkey and signs digest with it directly.
func (c *Client) Sign(ctx context.Context, pubKeyHash []byte, digest [32]byte) (*ecdsa.Signature, error) {
	addr, err := btcutil.NewAddressWitnessPubKeyHash(pubKeyHash, c.params())
	if err != nil {
		return nil, fmt.Errorf("btcrpc: building address for %x: %w", pubKeyHash, err)
	}

	priv, err := c.wallet.DumpPrivKey(addr)
	if err != nil {
		return nil, walletrpc.NewTransientError("Sign", err)
	}

	return ecdsa.Sign(priv.PrivKey, digest[:]), nil
}

// Broadcast implements walletrpc.BitcoinWallet, treating a transaction the
// backend already knows about - confirmed or in its mempool - as success
// rather than error, per the idempotent-broadcast resolution this repo's
// design notes describe.
func (c *Client) Broadcast(ctx context.Context, tx *wire.MsgTx) error {
	_, err := c.chain.SendRawTransaction(tx, false)
	if err == nil {
		return nil
	}

	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) {
		if rpcErr.Code == btcjson.ErrRPCVerifyAlreadyInChain {
			return nil
		}
		switch rpcErr.Message {
		case "txn-already-known", "transaction already in block chain":
			return nil
		}
	}

	return walletrpc.NewTransientError("Broadcast", err)
}

// GetRawTransaction implements walletrpc.BitcoinWallet.
func (c *Client) GetRawTransaction(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error) {
	tx, err := c.chain.GetRawTransaction(&txid)
	if err != nil {
		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo {
			return nil, walletrpc.ErrTxNotFound
		}
		return nil, walletrpc.NewTransientError("GetRawTransaction", err)
	}
	return tx.MsgTx(), nil
}

// WatchForRawTransaction implements walletrpc.BitcoinWallet by polling the
// mempool for a transaction spending outpoint, since the
// retrieved rpcclient stack's notification path (NotifyReceived et al.)
// requires a websocket-mode connection this package does not assume is
// available against every backend (bitcoind's RPC has no such feed at
// all). Canceling ctx stops the watch. A spend that is already in a block
// when first looked for, or that is mined between two polls, is not found.
func (c *Client) WatchForRawTransaction(ctx context.Context, outpoint wire.OutPoint) (*wire.MsgTx, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		tx, err := c.findSpendingTx(outpoint)
		if err != nil {
			return nil, err
		}
		if tx != nil {
			return tx, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(walletrpc.PollInterval):
		}
	}
}

// findSpendingTx scans the mempool for a transaction spending outpoint.
// Transactions already in blocks are not searched, so a confirmed spend is
// not found here.
func (c *Client) findSpendingTx(outpoint wire.OutPoint) (*wire.MsgTx, error) {
	mempool, err := c.chain.GetRawMempool()
	if err != nil {
		return nil, walletrpc.NewTransientError("findSpendingTx", err)
	}

	for _, txid := range mempool {
		tx, err := c.chain.GetRawTransaction(txid)
		if err != nil {
			continue
		}
		for _, in := range tx.MsgTx().TxIn {
			if in.PreviousOutPoint == outpoint {
				return tx.MsgTx(), nil
			}
		}
	}
	return nil, nil
}

// TransactionBlockHeight implements walletrpc.BitcoinWallet.
func (c *Client) TransactionBlockHeight(ctx context.Context, txid chainhash.Hash) (int32, error) {
	verbose, err := c.chain.GetRawTransactionVerbose(&txid)
	if err != nil {
		var rpcErr *btcjson.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == btcjson.ErrRPCNoTxInfo {
			return 0, nil
		}
		return 0, walletrpc.NewTransientError("TransactionBlockHeight", err)
	}
	if verbose.BlockHash == "" {
		return 0, nil
	}

	blockHash, err := chainhash.NewHashFromStr(verbose.BlockHash)
	if err != nil {
		return 0, err
	}
	header, err := c.chain.GetBlockVerbose(blockHash)
	if err != nil {
		return 0, walletrpc.NewTransientError("TransactionBlockHeight", err)
	}
	return int32(header.Height), nil
}

// PollUntilBlockHeightIsGte implements walletrpc.BitcoinWallet.
func (c *Client) PollUntilBlockHeightIsGte(ctx context.Context, height int32) error {
	for {
		tip, err := c.chain.GetBlockCount()
		if err != nil {
			return walletrpc.NewTransientError("PollUntilBlockHeightIsGte", err)
		}
		if int32(tip) >= height {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(walletrpc.PollInterval):
		}
	}
}

// TransactionFee implements walletrpc.BitcoinWallet by summing tx's funding
// inputs' previous output values and subtracting the sum of its outputs.
func (c *Client) TransactionFee(ctx context.Context, tx *wire.MsgTx) (btcutil.Amount, error) {
	var in btcutil.Amount
	for _, txIn := range tx.TxIn {
		prev, err := c.chain.GetRawTransaction(&txIn.PreviousOutPoint.Hash)
		if err != nil {
			return 0, walletrpc.NewTransientError("TransactionFee", err)
		}
		idx := txIn.PreviousOutPoint.Index
		if int(idx) >= len(prev.MsgTx().TxOut) {
			return 0, fmt.Errorf("btcrpc: previous outpoint index %d out of range", idx)
		}
		in += btcutil.Amount(prev.MsgTx().TxOut[idx].Value)
	}

	var out btcutil.Amount
	for _, txOut := range tx.TxOut {
		out += btcutil.Amount(txOut.Value)
	}

	return in - out, nil
}

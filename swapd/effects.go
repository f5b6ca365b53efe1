package swapd

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"golang.org/x/sync/errgroup"

	"github.com/lightninglabs/xmrswap/swapnet"
	"github.com/lightninglabs/xmrswap/swapstate"
	"github.com/lightninglabs/xmrswap/walletrpc"
)

// eventSource produces exactly one Event, or an error, once whatever it is
// watching resolves. race runs every source concurrently and returns the
// first to resolve, cancelling the rest - the mechanism behind spec.md
// §4.4/§4.5's "awaiting whichever happens first" steps (tx_cancel's spend
// racing its own timelock, and the two cooperative-action spots below).
type eventSource func(ctx context.Context) (swapstate.Event, error)

// race runs every source concurrently via an errgroup, as
// lnd/contractcourt's chainWatcher does for its own multi-subscription
// resolution loops, and returns the first Event to arrive. Every other
// source's context is cancelled once a winner is found; a source is
// expected to return promptly once its ctx is done.
func race(ctx context.Context, sources ...eventSource) (swapstate.Event, error) {
	if len(sources) == 1 {
		return sources[0](ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		ev  swapstate.Event
		err error
	}
	results := make(chan result, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			ev, err := src(gctx)
			select {
			case results <- result{ev, err}:
			case <-ctx.Done():
			}
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		g.Wait()
		close(done)
	}()

	select {
	case r := <-results:
		cancel()
		<-done
		return r.ev, r.err
	case <-ctx.Done():
		<-done
		return nil, ctx.Err()
	}
}

// cooperativeSource wraps an eventSource that performs a one-time side
// effect (e.g. attempting to broadcast a cooperative tx_refund alongside
// the genuine await of tx_cancel's spend/timelock) and then blocks until
// ctx is cancelled, so it contributes its action in parallel but never
// itself wins the race.
func cooperativeSource(action func(ctx context.Context) error) eventSource {
	return func(ctx context.Context) (swapstate.Event, error) {
		if err := action(ctx); err != nil {
			return nil, err
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

// sendMessage performs EffectSendMessage.
func sendMessage(ctx context.Context, disp *swapnet.Dispatcher, e swapstate.EffectSendMessage) error {
	return disp.Send(ctx, e.Proto, e.Msg)
}

// broadcastTx performs EffectBroadcastTx.
func broadcastTx(ctx context.Context, btc walletrpc.BitcoinWallet, e swapstate.EffectBroadcastTx) error {
	if err := btc.Broadcast(ctx, e.Tx); err != nil {
		return fmt.Errorf("swapd: broadcasting %s: %w", e.Label, err)
	}
	return nil
}

// sweepMonero performs EffectSweepMonero. restoreHeight is passed through
// to CreateFromKeys as the restored wallet's rescan start; both drivers
// pass 0, so the wallet scans from the start of the chain.
func sweepMonero(ctx context.Context, xmr walletrpc.MoneroWallet, restoreHeight uint64, e swapstate.EffectSweepMonero) error {
	return xmr.CreateFromKeys(ctx, e.Keys, restoreHeight)
}

// moneroTransfer performs Alice's EffectMoneroTransfer send-and-prove step
// inline: there is no separate await-effect for the sender's own transfer,
// only for the recipient watching it (EffectAwaitMoneroTransfer). The
// driver calls Transfer directly, then WatchForTransfer with the resulting
// proof as a local sanity check before reporting success, so Alice never
// advances to EventMoneroTransferConfirmed on a transfer she can't herself
// verify landed.
func moneroTransfer(
	ctx context.Context, xmr walletrpc.MoneroWallet, confs uint32,
	e swapstate.EffectMoneroTransfer,
) (txHash [32]byte, proof []byte, err error) {

	txHash, proof, err = xmr.Transfer(ctx, e.To, e.Amount)
	if err != nil {
		return txHash, nil, fmt.Errorf("swapd: sending monero transfer: %w", err)
	}
	if err := xmr.WatchForTransfer(ctx, e.To, txHash, proof, e.Amount, confs); err != nil {
		return txHash, nil, fmt.Errorf("swapd: confirming own monero transfer: %w", err)
	}
	return txHash, proof, nil
}

// awaitMessage builds an eventSource that blocks for a counterparty
// request and reports it as EventMessageReceived.
func awaitMessage(disp *swapnet.Dispatcher, e swapstate.EffectAwaitMessage) eventSource {
	return func(ctx context.Context) (swapstate.Event, error) {
		msg, err := disp.Receive(ctx, e.Proto)
		if err != nil {
			return nil, err
		}
		return swapstate.EventMessageReceived{Msg: msg}, nil
	}
}

// waitForConfirmations blocks until txid's confirming block is at least
// confs deep: it re-checks TransactionBlockHeight every
// walletrpc.PollInterval until txid is mined at some height, then waits in
// PollUntilBlockHeightIsGte for the tip to reach height+confs-1.
func waitForConfirmations(
	ctx context.Context, btc walletrpc.BitcoinWallet, txid chainhash.Hash, confs uint32,
) error {
	for {
		height, err := btc.TransactionBlockHeight(ctx, txid)
		if err != nil {
			return err
		}
		if height > 0 {
			if err := btc.PollUntilBlockHeightIsGte(ctx, height+int32(confs)-1); err != nil {
				return err
			}
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(walletrpc.PollInterval):
		}
	}
}

// awaitOutpointSpend builds an eventSource for EffectAwaitOutpointSpend.
func awaitOutpointSpend(btc walletrpc.BitcoinWallet, e swapstate.EffectAwaitOutpointSpend) eventSource {
	return func(ctx context.Context) (swapstate.Event, error) {
		tx, err := btc.WatchForRawTransaction(ctx, e.Outpoint)
		if err != nil {
			return nil, err
		}
		return swapstate.EventOutpointSpent{Tx: tx}, nil
	}
}

// awaitTimelock builds an eventSource for EffectAwaitTimelock: it waits for
// Outpoint's containing transaction to confirm, then for the chain tip to
// reach that height plus Blocks, matching BIP-68's relative-locktime
// maturity rule.
func awaitTimelock(btc walletrpc.BitcoinWallet, e swapstate.EffectAwaitTimelock) eventSource {
	return func(ctx context.Context) (swapstate.Event, error) {
		var height int32
		for {
			h, err := btc.TransactionBlockHeight(ctx, e.Outpoint.Hash)
			if err != nil {
				return nil, err
			}
			if h > 0 {
				height = h
				break
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(walletrpc.PollInterval):
			}
		}

		matureHeight := height + int32(e.Blocks)
		if err := btc.PollUntilBlockHeightIsGte(ctx, matureHeight); err != nil {
			return nil, err
		}
		return swapstate.EventTimelockExpired{}, nil
	}
}

// awaitMoneroTransfer builds an eventSource for EffectAwaitMoneroTransfer.
func awaitMoneroTransfer(xmr walletrpc.MoneroWallet, e swapstate.EffectAwaitMoneroTransfer) eventSource {
	return func(ctx context.Context) (swapstate.Event, error) {
		err := xmr.WatchForTransfer(ctx, e.To, e.TxHash, e.Proof, e.Amount, e.Confs)
		if err != nil {
			return nil, err
		}
		return swapstate.EventMoneroTransferConfirmed{}, nil
	}
}

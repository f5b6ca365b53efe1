package swapd

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/wire"

	"github.com/lightninglabs/xmrswap/swapnet"
	"github.com/lightninglabs/xmrswap/swapstate"
)

// AliceDriver runs Alice's side of one swap to a terminal state.
type AliceDriver struct {
	swapID string
	deps   Deps
	state  swapstate.AliceState
}

// NewAliceDriver wraps an already-constructed initial or resumed state.
func NewAliceDriver(swapID string, deps Deps, state swapstate.AliceState) *AliceDriver {
	return &AliceDriver{swapID: swapID, deps: deps, state: state}
}

func (d *AliceDriver) persist() error {
	raw, err := EncodeAliceState(d.state)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return d.deps.Store.Put(d.swapID, raw)
}

func (d *AliceDriver) step(ctx context.Context, ev swapstate.Event) error {
	next, effects, err := swapstate.StepAlice(d.state, ev)
	if err != nil {
		return err
	}
	d.state = next
	return d.performEffects(ctx, effects)
}

// performEffects runs every immediate effect in order, patching in the
// Monero transfer result (no transition function records MoneroTxHash or
// MoneroProof; stepAlice3b only reads them) and persisting before
// returning.
func (d *AliceDriver) performEffects(ctx context.Context, effects []swapstate.Effect) error {
	for _, eff := range effects {
		switch e := eff.(type) {
		case swapstate.EffectSendMessage:
			if err := sendMessage(ctx, d.deps.Dispatcher, e); err != nil {
				return err
			}

		case swapstate.EffectBroadcastTx:
			if err := broadcastTx(ctx, d.deps.Bitcoin, e); err != nil {
				return err
			}

		case swapstate.EffectMoneroTransfer:
			confs := aliceData(d.state).MoneroConfs
			txHash, proof, err := moneroTransfer(ctx, d.deps.Monero, confs, e)
			if err != nil {
				return err
			}
			ad := aliceData(d.state)
			ad.MoneroTxHash = txHash
			ad.MoneroProof = proof
			d.state = rewrapAlice(d.state, ad)

		case swapstate.EffectSweepMonero:
			if err := sweepMonero(ctx, d.deps.Monero, 0, e); err != nil {
				return err
			}

		default:
			// Await-type effects are handled by the caller via race, not
			// here.
		}
	}
	return d.persist()
}

func aliceData(s swapstate.AliceState) swapstate.AliceData {
	return dataOfAlice(s)
}

// rewrapAlice rebuilds s with the same concrete state type but data
// swapped in, used after the driver patches a field a transition function
// does not set directly.
func rewrapAlice(s swapstate.AliceState, data swapstate.AliceData) swapstate.AliceState {
	wrapped, err := wrapAlice(s.StateName(), data)
	if err != nil {
		panic(err)
	}
	return wrapped
}

func isAliceTerminal(s swapstate.AliceState) bool {
	switch s.(type) {
	case swapstate.Alice6, swapstate.Alice7, swapstate.Alice8:
		return true
	default:
		return false
	}
}

// Run drives the swap to a terminal AliceState, persisting progress after
// every effect so a restart resumes from the last acknowledged step.
func (d *AliceDriver) Run(ctx context.Context) (swapstate.AliceState, error) {
	for !isAliceTerminal(d.state) {
		if err := d.runOnce(ctx); err != nil {
			return d.state, swapIDContext(d.swapID, err)
		}
	}
	return d.state, nil
}

// runOnce advances d.state by exactly one swapstate transition, blocking
// for whatever that state's own transition function requires as its next
// Event. Each case below is keyed on the CURRENT state, not on what the
// previous step returned, so a driver resumed mid-swap from a snapshot
// takes the same branch a freshly-started one would at the same state.
func (d *AliceDriver) runOnce(ctx context.Context) error {
	switch d.state.(type) {
	case swapstate.Alice0:
		// Alice starts passively: the first step the state machine itself
		// expects is Bob's Message0, which nothing in Alice0's own
		// (nonexistent) effects ever asks for - the driver bootstraps it.
		msg, err := d.deps.Dispatcher.Receive(ctx, swapnet.ProtoMessage0)
		if err != nil {
			return err
		}
		return d.step(ctx, swapstate.EventMessageReceived{Msg: msg})

	case swapstate.Alice1:
		return d.step(ctx, swapstate.EventProceed{})

	case swapstate.Alice2:
		msg, err := d.deps.Dispatcher.Receive(ctx, swapnet.ProtoMessage2)
		if err != nil {
			return err
		}
		return d.step(ctx, swapstate.EventMessageReceived{Msg: msg})

	case swapstate.Alice3:
		ad := aliceData(d.state)
		if err := waitForConfirmations(ctx, d.deps.Bitcoin, ad.Lock.TxID(), ad.BitcoinConfs); err != nil {
			return err
		}
		return d.step(ctx, swapstate.EventTxConfirmed{TxID: ad.Lock.TxID()})

	case swapstate.Alice3b:
		// The monero transfer was already sent and self-confirmed as the
		// immediate EffectMoneroTransfer that produced this state (see
		// performEffects); nothing further to wait for here.
		return d.step(ctx, swapstate.EventMoneroTransferConfirmed{})

	case swapstate.Alice4:
		return d.runAlice4Await(ctx)

	case swapstate.Alice5:
		return d.runAlice5(ctx)

	default:
		return fmt.Errorf("swapd: driver does not know how to advance %s", d.state.StateName())
	}
}

// runAlice4Await races Alice4's three concurrently-valid triggers: Bob's
// Message3 arriving, tx_lock's output being spent (by tx_cancel), or
// cancel_timelock maturing.
func (d *AliceDriver) runAlice4Await(ctx context.Context) error {
	ad := aliceData(d.state)
	lockOutpoint := lockOutpointOf(ad)

	ev, err := race(ctx,
		awaitMessage(d.deps.Dispatcher, swapstate.EffectAwaitMessage{Proto: swapnet.ProtoMessage3}),
		awaitOutpointSpend(d.deps.Bitcoin, swapstate.EffectAwaitOutpointSpend{Outpoint: lockOutpoint}),
		awaitTimelock(d.deps.Bitcoin, swapstate.EffectAwaitTimelock{Outpoint: lockOutpoint, Blocks: ad.CancelTimelock}),
	)
	if err != nil {
		return err
	}
	return d.step(ctx, ev)
}

// runAlice5 drives Alice5, which has no single linear shape: the happy
// redeem path is one EventProceed away, while the refund path needs an
// implicit wait for tx_cancel's own confirmation (never expressed as an
// effect, since stepAliceRefund only reacts to EventTxConfirmed) followed
// by a three-way race between a cooperative tx_refund broadcast, tx_cancel's
// output being spent, and punish_timelock maturing.
func (d *AliceDriver) runAlice5(ctx context.Context) error {
	ad := aliceData(d.state)
	if ad.EncSigRedeem != nil {
		return d.step(ctx, swapstate.EventProceed{})
	}

	if !ad.CancelBroadcast {
		if err := d.step(ctx, swapstate.EventProceed{}); err != nil {
			return err
		}
		ad = aliceData(d.state)
	}

	cancelOutpoint := wire.OutPoint{Hash: ad.Cancel.TxID(), Index: 0}
	if err := waitForConfirmations(ctx, d.deps.Bitcoin, ad.Cancel.TxID(), ad.BitcoinConfs); err != nil {
		return err
	}
	if err := d.step(ctx, swapstate.EventTxConfirmed{TxID: ad.Cancel.TxID()}); err != nil {
		return err
	}

	var mu sync.Mutex
	cooperative := cooperativeSource(func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if aliceData(d.state).RefundBroadcast {
			return nil
		}
		return d.step(ctx, swapstate.EventProceed{})
	})

	ev, err := race(ctx,
		cooperative,
		awaitOutpointSpend(d.deps.Bitcoin, swapstate.EffectAwaitOutpointSpend{Outpoint: cancelOutpoint}),
		awaitTimelock(d.deps.Bitcoin, swapstate.EffectAwaitTimelock{Outpoint: cancelOutpoint, Blocks: ad.PunishTimelock}),
	)
	if err != nil {
		return err
	}
	return d.step(ctx, ev)
}

func lockOutpointOf(ad swapstate.AliceData) wire.OutPoint {
	return wire.OutPoint{Hash: ad.Lock.TxID(), Index: 0}
}

package swapd

import (
	"context"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/wire"

	"github.com/lightninglabs/xmrswap/swapnet"
	"github.com/lightninglabs/xmrswap/swapstate"
	"github.com/lightninglabs/xmrswap/xmrcrypto"
)

// jointMoneroKey recomputes the joint public key pair Alice's transfer
// pays, mirroring stepBob3's own derivation (swapstate keeps no field for
// it once Bob3 has moved past verifying the proof).
func jointMoneroKey(bd swapstate.BobData) *xmrcrypto.PublicKeyPair {
	return xmrcrypto.SumSpendAndViewKeys(
		&xmrcrypto.PublicKeyPair{SpendKey: bd.SAMonero, ViewKey: bd.VA.Public()},
		&xmrcrypto.PublicKeyPair{SpendKey: bd.SBMoneroPub, ViewKey: bd.VB.Public()},
	)
}

// BobDriver runs Bob's side of one swap to a terminal state.
type BobDriver struct {
	swapID string
	deps   Deps
	state  swapstate.BobState
}

// NewBobDriver wraps an already-constructed initial or resumed state.
func NewBobDriver(swapID string, deps Deps, state swapstate.BobState) *BobDriver {
	return &BobDriver{swapID: swapID, deps: deps, state: state}
}

func (d *BobDriver) persist() error {
	raw, err := EncodeBobState(d.state)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return d.deps.Store.Put(d.swapID, raw)
}

func (d *BobDriver) step(ctx context.Context, ev swapstate.Event) error {
	next, effects, err := swapstate.StepBob(d.state, ev)
	if err != nil {
		return err
	}
	d.state = next
	return d.performEffects(ctx, effects)
}

func (d *BobDriver) performEffects(ctx context.Context, effects []swapstate.Effect) error {
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

func bobData(s swapstate.BobState) swapstate.BobData {
	return dataOfBob(s)
}

func isBobTerminal(s swapstate.BobState) bool {
	switch s.(type) {
	case swapstate.Bob5, swapstate.Bob6:
		return true
	default:
		return false
	}
}

// Run drives the swap to a terminal BobState, persisting progress after
// every effect so a restart resumes from the last acknowledged step.
func (d *BobDriver) Run(ctx context.Context) (swapstate.BobState, error) {
	for !isBobTerminal(d.state) {
		if err := d.runOnce(ctx); err != nil {
			return d.state, swapIDContext(d.swapID, err)
		}
	}
	return d.state, nil
}

// runOnce advances d.state by exactly one swapstate transition, blocking
// for whatever that state's own transition function requires as its next
// Event. Each case is keyed on the CURRENT state so a driver resumed from
// a snapshot takes the same branch a freshly-started one would.
func (d *BobDriver) runOnce(ctx context.Context) error {
	switch d.state.(type) {
	case swapstate.Bob0:
		// Bob starts actively: stepBob0 fires off Message0 unprompted.
		return d.step(ctx, swapstate.EventProceed{})

	case swapstate.Bob1:
		msg, err := d.deps.Dispatcher.Receive(ctx, swapnet.ProtoMessage1)
		if err != nil {
			return err
		}
		return d.step(ctx, swapstate.EventMessageReceived{Msg: msg})

	case swapstate.Bob2:
		// nil effects; auto-continue straight into Bob3's own transition.
		return d.step(ctx, swapstate.EventProceed{})

	case swapstate.Bob3:
		return d.runBob3(ctx)

	case swapstate.Bob4:
		return d.runBob4(ctx)

	default:
		return fmt.Errorf("swapd: driver does not know how to advance %s", d.state.StateName())
	}
}

// runBob3 handles both of Bob3's shapes: with no proof recorded yet it
// waits for Alice's TransferProof message; once that has been recorded it
// waits for the monero transfer itself to reach MoneroConfs.
func (d *BobDriver) runBob3(ctx context.Context) error {
	if bobData(d.state).MoneroProof == nil {
		msg, err := d.deps.Dispatcher.Receive(ctx, swapnet.ProtoTransferProof)
		if err != nil {
			return err
		}
		return d.step(ctx, swapstate.EventMessageReceived{Msg: msg})
	}
	return d.awaitBob3(ctx)
}

// awaitBob3 waits for the already-recorded monero transfer to reach
// MoneroConfs and feeds the result back in, advancing to Bob4.
func (d *BobDriver) awaitBob3(ctx context.Context) error {
	bd := bobData(d.state)
	if bd.MoneroProof == nil {
		return fmt.Errorf("swapd: entered bob3 await with no transfer proof recorded")
	}

	ev, err := awaitMoneroTransfer(d.deps.Monero, swapstate.EffectAwaitMoneroTransfer{
		To:     jointMoneroKey(bd),
		Proof:  bd.MoneroProof,
		Amount: bd.MoneroAmount,
		Confs:  bd.MoneroConfs,
		TxHash: bd.MoneroTxHash,
	})(ctx)
	if err != nil {
		return err
	}
	return d.step(ctx, ev)
}

// runBob4 races the redeem and refund triggers to a conclusion, re-racing
// after any non-terminal transition since which outpoint/timelock still
// matters changes as MessageThreeSent/CancelSeen get set.
func (d *BobDriver) runBob4(ctx context.Context) error {
	for {
		bd := bobData(d.state)
		lockOutpoint := wire.OutPoint{Hash: bd.Lock.TxID(), Index: 0}

		var sources []eventSource
		var mu sync.Mutex

		if !bd.MessageThreeSent && !bd.CancelSeen {
			cooperative := cooperativeSource(func(ctx context.Context) error {
				mu.Lock()
				defer mu.Unlock()
				if bobData(d.state).MessageThreeSent {
					return nil
				}
				return d.step(ctx, swapstate.EventProceed{})
			})
			sources = append(sources, cooperative)
			sources = append(sources, awaitTimelock(d.deps.Bitcoin, swapstate.EffectAwaitTimelock{
				Outpoint: lockOutpoint, Blocks: bd.CancelTimelock,
			}))
		}

		watched := lockOutpoint
		if bd.CancelSeen {
			watched = wire.OutPoint{Hash: bd.Cancel.TxID(), Index: 0}
		}
		sources = append(sources, awaitOutpointSpend(d.deps.Bitcoin, swapstate.EffectAwaitOutpointSpend{Outpoint: watched}))

		ev, err := race(ctx, sources...)
		if err != nil {
			return err
		}

		mu.Lock()
		err = d.step(ctx, ev)
		mu.Unlock()
		if err != nil {
			return err
		}

		if isBobTerminal(d.state) {
			return nil
		}
	}
}

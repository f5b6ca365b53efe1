package swapstate_test

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/lightninglabs/xmrswap/swapmsg"
	"github.com/lightninglabs/xmrswap/swapstate"
)

// findSendMessage locates the single EffectSendMessage carrying a message
// of type T among effects, failing the test if it is not there - the two
// state machines only ever emit at most one outbound message per
// transition.
func findSendMessage[T any](t *testing.T, effects []swapstate.Effect) T {
	t.Helper()
	for _, e := range effects {
		send, ok := e.(swapstate.EffectSendMessage)
		if !ok {
			continue
		}
		if m, ok := send.Msg.(T); ok {
			return m
		}
	}
	t.Fatalf("no EffectSendMessage carrying %T found in %#v", *new(T), effects)
	panic("unreachable")
}

func findBroadcastTx(t *testing.T, effects []swapstate.Effect, label string) *wire.MsgTx {
	t.Helper()
	for _, e := range effects {
		bc, ok := e.(swapstate.EffectBroadcastTx)
		if ok && bc.Label == label {
			return bc.Tx
		}
	}
	t.Fatalf("no EffectBroadcastTx labelled %q found in %#v", label, effects)
	panic("unreachable")
}

// swapFixture holds the two parties' Alice0/Bob0 starting states, which
// newSwapFixture builds with distinct stand-in output scripts for
// redeem/refund/punish, so the refund-path branching logic (which inspects the paid script) can
// actually be exercised.
type swapFixture struct {
	alice0 *swapstate.Alice0
	bob0   *swapstate.Bob0
}

func newSwapFixture(t *testing.T) swapFixture {
	t.Helper()

	redeemScript := []byte{0x51} // OP_TRUE, a stand-in for Alice's redeem address
	refundScript := []byte{0x52} // OP_2, a stand-in for Bob's refund address
	punishScript := []byte{0x53} // OP_3, a stand-in for Alice's punish address

	fundingOutpoint := wire.OutPoint{Hash: [32]byte{0xaa}, Index: 0}
	fundingIn := wire.NewTxIn(&fundingOutpoint, nil, nil)

	bob0, err := swapstate.NewBob0(swapstate.NewBobConfig{
		Btc:            1_000_000,
		Xmr:            1_000_000_000_000,
		CancelTimelock: 10,
		PunishTimelock: 10,
		Fee:            1000,
		BitcoinConfs:   1,
		MoneroConfs:    1,
		RefundScript:   refundScript,
		FundingInputs:  []*wire.TxIn{fundingIn},
	})
	require.NoError(t, err)

	alice0, err := swapstate.NewAlice0(swapstate.NewAliceConfig{
		Btc:            1_000_000,
		Xmr:            1_000_000_000_000,
		CancelTimelock: 10,
		PunishTimelock: 10,
		Fee:            1000,
		BitcoinConfs:   1,
		MoneroConfs:    1,
		RedeemScript:   redeemScript,
		PunishScript:   punishScript,
	})
	require.NoError(t, err)

	return swapFixture{alice0: alice0, bob0: bob0}
}

// lockedSwap is the shared state reached once both parties have exchanged
// Message0/1/2, tx_lock and the Monero lock are confirmed, and
// TransferProof has been delivered (Alice4/Bob4) - the jumping-off point for
// both the happy-path and refund-path tests.
type lockedSwap struct {
	alice swapstate.AliceState
	bob   swapstate.BobState
	lock  *wire.MsgTx
}

func driveToLockConfirmed(t *testing.T, f swapFixture) lockedSwap {
	t.Helper()

	bob1, effects, err := swapstate.StepBob(*f.bob0, swapstate.EventProceed{})
	require.NoError(t, err)
	msg0 := findSendMessage[*swapmsg.Message0](t, effects)

	aliceAfter0, _, err := swapstate.StepAlice(*f.alice0, swapstate.EventMessageReceived{Msg: msg0})
	require.NoError(t, err)
	alice1, ok := aliceAfter0.(swapstate.Alice1)
	require.True(t, ok)

	alice2State, effects, err := swapstate.StepAlice(alice1, swapstate.EventProceed{})
	require.NoError(t, err)
	alice2, ok := alice2State.(swapstate.Alice2)
	require.True(t, ok)
	msg1 := findSendMessage[*swapmsg.Message1](t, effects)

	bobAfter1, _, err := swapstate.StepBob(bob1, swapstate.EventMessageReceived{Msg: msg1})
	require.NoError(t, err)
	bob2, ok := bobAfter1.(swapstate.Bob2)
	require.True(t, ok)

	bob3State, effects, err := swapstate.StepBob(bob2, swapstate.EventProceed{})
	require.NoError(t, err)
	bob3, ok := bob3State.(swapstate.Bob3)
	require.True(t, ok)
	msg2 := findSendMessage[*swapmsg.Message2](t, effects)
	lock := findBroadcastTx(t, effects, "tx_lock")

	alice3State, _, err := swapstate.StepAlice(alice2, swapstate.EventMessageReceived{Msg: msg2})
	require.NoError(t, err)
	alice3, ok := alice3State.(swapstate.Alice3)
	require.True(t, ok)

	alice3bState, effects, err := swapstate.StepAlice(alice3, swapstate.EventTxConfirmed{TxID: lock.TxHash()})
	require.NoError(t, err)
	alice3b, ok := alice3bState.(swapstate.Alice3b)
	require.True(t, ok)
	require.Len(t, effects, 1)
	_, ok = effects[0].(swapstate.EffectMoneroTransfer)
	require.True(t, ok)

	alice4State, effects, err := swapstate.StepAlice(alice3b, swapstate.EventMoneroTransferConfirmed{})
	require.NoError(t, err)
	alice4, ok := alice4State.(swapstate.Alice4)
	require.True(t, ok)
	transferProof := findSendMessage[*swapmsg.TransferProof](t, effects)

	bob3AfterProof, effects, err := swapstate.StepBob(bob3, swapstate.EventMessageReceived{Msg: transferProof})
	require.NoError(t, err)
	_, ok = effects[0].(swapstate.EffectAwaitMoneroTransfer)
	require.True(t, ok)

	bob4State, _, err := swapstate.StepBob(bob3AfterProof, swapstate.EventMoneroTransferConfirmed{})
	require.NoError(t, err)
	bob4, ok := bob4State.(swapstate.Bob4)
	require.True(t, ok)

	return lockedSwap{alice: alice4, bob: bob4, lock: lock}
}

// TestHappyPathRedeem drives both state machines through the full redeem
// path: Bob sends Message3, Alice broadcasts tx_redeem, and Bob recovers
// s_a from the published signature to sweep the joint Monero output.
func TestHappyPathRedeem(t *testing.T) {
	f := newSwapFixture(t)
	locked := driveToLockConfirmed(t, f)

	bob5State, effects, err := swapstate.StepBob(locked.bob.(swapstate.Bob4), swapstate.EventProceed{})
	require.NoError(t, err)
	bob4, ok := bob5State.(swapstate.Bob4)
	require.True(t, ok)
	msg3 := findSendMessage[*swapmsg.Message3](t, effects)

	alice5State, _, err := swapstate.StepAlice(locked.alice.(swapstate.Alice4), swapstate.EventMessageReceived{Msg: msg3})
	require.NoError(t, err)
	alice5, ok := alice5State.(swapstate.Alice5)
	require.True(t, ok)

	alice6State, effects, err := swapstate.StepAlice(alice5, swapstate.EventProceed{})
	require.NoError(t, err)
	_, ok = alice6State.(swapstate.Alice6)
	require.True(t, ok, "alice should reach the terminal redeemed state")
	redeemTx := findBroadcastTx(t, effects, "tx_redeem")

	bob5Final, _, err := swapstate.StepBob(bob4, swapstate.EventOutpointSpent{Tx: redeemTx})
	require.NoError(t, err)
	_, ok = bob5Final.(swapstate.Bob5)
	require.True(t, ok, "bob should reach the terminal swept state")
}

// TestRefundPathPunish drives both state machines down the path where
// Message3 never arrives: cancel_timelock expires, Alice broadcasts
// tx_cancel, punish_timelock then expires before tx_refund appears, and
// Alice broadcasts tx_punish using Bob's plain signature from Message2.
func TestRefundPathPunish(t *testing.T) {
	f := newSwapFixture(t)
	locked := driveToLockConfirmed(t, f)

	alice5State, _, err := swapstate.StepAlice(locked.alice.(swapstate.Alice4), swapstate.EventTimelockExpired{})
	require.NoError(t, err)
	alice5, ok := alice5State.(swapstate.Alice5)
	require.True(t, ok)

	alice5AfterCancel, effects, err := swapstate.StepAlice(alice5, swapstate.EventProceed{})
	require.NoError(t, err)
	cancelTx := findBroadcastTx(t, effects, "tx_cancel")

	alice5AfterConfirm, effects, err := swapstate.StepAlice(alice5AfterCancel.(swapstate.Alice5), swapstate.EventTxConfirmed{TxID: cancelTx.TxHash()})
	require.NoError(t, err)
	require.Len(t, effects, 2)

	alice8State, effects, err := swapstate.StepAlice(alice5AfterConfirm.(swapstate.Alice5), swapstate.EventTimelockExpired{})
	require.NoError(t, err)
	_, ok = alice8State.(swapstate.Alice8)
	require.True(t, ok, "alice should reach the terminal punished state")
	punishTx := findBroadcastTx(t, effects, "tx_punish")

	bob4AfterCancel, _, err := swapstate.StepBob(locked.bob.(swapstate.Bob4), swapstate.EventOutpointSpent{Tx: cancelTx})
	require.NoError(t, err)
	bob4, ok := bob4AfterCancel.(swapstate.Bob4)
	require.True(t, ok)

	bob6State, _, err := swapstate.StepBob(bob4, swapstate.EventOutpointSpent{Tx: punishTx})
	require.NoError(t, err)
	_, ok = bob6State.(swapstate.Bob6)
	require.True(t, ok, "bob should reach the terminal refunded/punished state")
}

// TestRefundPathCooperativeRefund covers the branch where Alice
// voluntarily completes tx_refund herself (rather than waiting out
// punish_timelock), using Bob's tx_refund adaptor signature from
// Message2 decrypted with her own s_a.
func TestRefundPathCooperativeRefund(t *testing.T) {
	f := newSwapFixture(t)
	locked := driveToLockConfirmed(t, f)

	alice5State, _, err := swapstate.StepAlice(locked.alice.(swapstate.Alice4), swapstate.EventTimelockExpired{})
	require.NoError(t, err)
	alice5 := alice5State.(swapstate.Alice5)

	alice5AfterCancel, effects, err := swapstate.StepAlice(alice5, swapstate.EventProceed{})
	require.NoError(t, err)
	cancelTx := findBroadcastTx(t, effects, "tx_cancel")

	alice7State, effects, err := swapstate.StepAlice(alice5AfterCancel.(swapstate.Alice5), swapstate.EventProceed{})
	require.NoError(t, err)
	_, ok := alice7State.(swapstate.Alice5)
	require.True(t, ok, "a voluntary refund stays in Alice5 until the chain confirms it")
	refundTx := findBroadcastTx(t, effects, "tx_refund")

	bob4AfterCancel, _, err := swapstate.StepBob(locked.bob.(swapstate.Bob4), swapstate.EventOutpointSpent{Tx: cancelTx})
	require.NoError(t, err)
	bob4 := bob4AfterCancel.(swapstate.Bob4)

	bob6State, _, err := swapstate.StepBob(bob4, swapstate.EventOutpointSpent{Tx: refundTx})
	require.NoError(t, err)
	_, ok = bob6State.(swapstate.Bob6)
	require.True(t, ok, "bob should reach the terminal refunded state")
}

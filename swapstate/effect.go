// Package swapstate implements the swap protocol's two state machines -
// Alice0..Alice8 (the XMR seller) and Bob0..Bob6 (the XMR buyer) - as
// closed sum types of immutable states, following spec.md §4.4/§4.5.
// Transitions are pure functions from (state, event) to (next state,
// effects), in the spirit of contractcourt's ContractResolver.Resolve
// loop: a resolver never touches the network or the chain notifier
// directly inside its core decision logic, it returns what it needs and
// lets the surrounding kit perform it. Here the "kit" is swapd.Driver,
// which executes each Effect and feeds the resulting Event back in.
package swapstate

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightninglabs/xmrswap/swapmsg"
	"github.com/lightninglabs/xmrswap/swapnet"
	"github.com/lightninglabs/xmrswap/xmrcrypto"
)

// Event is fed into a transition function to advance a state. EventProceed
// drives the spontaneous transitions spec.md describes as "by emitting
// ..." or "by funding and signing ..." - ones with no external trigger,
// only a deterministic next step once the driver has acted on the
// previous state's effects.
type Event interface{ isEvent() }

// EventProceed triggers a transition whose only precondition is having
// just entered its source state.
type EventProceed struct{}

// EventMessageReceived carries a decoded message in off a swapnet
// sub-protocol Receive.
type EventMessageReceived struct{ Msg swapmsg.Message }

// EventTxConfirmed reports that a watched transaction reached its
// required confirmation depth.
type EventTxConfirmed struct{ TxID chainhash.Hash }

// EventOutpointSpent reports the transaction that spent a watched
// outpoint - used for the tx_cancel/tx_refund race on both sides.
type EventOutpointSpent struct{ Tx *wire.MsgTx }

// EventTimelockExpired reports that a watched relative-locktime maturity
// height has been reached.
type EventTimelockExpired struct{}

// EventMoneroTransferConfirmed reports that a Monero transfer reached its
// required confirmation depth.
type EventMoneroTransferConfirmed struct{}

func (EventProceed) isEvent()                 {}
func (EventMessageReceived) isEvent()         {}
func (EventTxConfirmed) isEvent()             {}
func (EventOutpointSpent) isEvent()           {}
func (EventTimelockExpired) isEvent()         {}
func (EventMoneroTransferConfirmed) isEvent() {}

// Effect is something a transition asks the driver to perform before the
// next transition can run.
type Effect interface{ isEffect() }

// EffectSendMessage asks the driver to issue a swapnet request.
type EffectSendMessage struct {
	Proto swapnet.SubProtocol
	Msg   swapmsg.Message
}

// EffectAwaitMessage asks the driver to block for an incoming swapnet
// request and feed it back as an EventMessageReceived.
type EffectAwaitMessage struct {
	Proto swapnet.SubProtocol
}

// EffectBroadcastTx asks the driver to broadcast a fully signed
// transaction. Label, per spec.md §5's "shared resources" note, names
// the transaction's role (tx_lock, tx_cancel, ...); the driver uses it
// only in its broadcast error message. A restart resubmits the
// transaction, and BitcoinWallet.Broadcast treats an already-known
// transaction as success.
type EffectBroadcastTx struct {
	Tx    *wire.MsgTx
	Label string
}

// EffectAwaitConfirmation asks the driver to block until TxID reaches
// Confs confirmations.
type EffectAwaitConfirmation struct {
	TxID  chainhash.Hash
	Confs uint32
}

// EffectAwaitOutpointSpend asks the driver to watch for whichever
// transaction spends Outpoint - used to race tx_cancel's spend between
// tx_refund and tx_punish.
type EffectAwaitOutpointSpend struct {
	Outpoint wire.OutPoint
}

// EffectAwaitTimelock asks the driver to wait until Outpoint's relative
// locktime of Blocks has matured, counted from its containing block.
type EffectAwaitTimelock struct {
	Outpoint wire.OutPoint
	Blocks   uint32
}

// EffectMoneroTransfer asks the driver to send Amount piconero to the
// joint public key pair To, returning a transfer proof once broadcast.
type EffectMoneroTransfer struct {
	To     *xmrcrypto.PublicKeyPair
	Amount uint64
}

// EffectAwaitMoneroTransfer asks the driver to watch a transfer proof,
// paying the joint public key pair To for at least Amount piconero, for
// Confs confirmations.
type EffectAwaitMoneroTransfer struct {
	To     *xmrcrypto.PublicKeyPair
	Proof  []byte
	Amount uint64
	Confs  uint32
	TxHash [32]byte
}

// EffectSweepMonero asks the driver to sweep the joint Monero output into
// a fresh wallet using the now-fully-known key pair.
type EffectSweepMonero struct {
	Keys *xmrcrypto.PrivateKeyPair
}

func (EffectSendMessage) isEffect()          {}
func (EffectAwaitMessage) isEffect()         {}
func (EffectBroadcastTx) isEffect()          {}
func (EffectAwaitConfirmation) isEffect()    {}
func (EffectAwaitOutpointSpend) isEffect()   {}
func (EffectAwaitTimelock) isEffect()        {}
func (EffectMoneroTransfer) isEffect()       {}
func (EffectAwaitMoneroTransfer) isEffect()  {}
func (EffectSweepMonero) isEffect()          {}

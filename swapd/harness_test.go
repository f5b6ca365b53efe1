package swapd_test

import (
	"context"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/lightninglabs/xmrswap/internal/swapdb"
	"github.com/lightninglabs/xmrswap/swapd"
	"github.com/lightninglabs/xmrswap/swapmsg"
	"github.com/lightninglabs/xmrswap/swapnet"
	"github.com/lightninglabs/xmrswap/swapstate"
	"github.com/lightninglabs/xmrswap/walletrpc"
	"github.com/lightninglabs/xmrswap/xmrcrypto"
)

// findSendMessage locates the single EffectSendMessage carrying a message of
// type T among effects, the swapd-level counterpart of swapstate_test's own
// helper of the same name (unexported there, so not reusable across
// packages).
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

// fakeChain is a minimal in-memory Bitcoin backend shared by both parties'
// fakeBitcoinWallet instances, standing in for btcrpc.Client the same way
// lnrpc's itest harnesses swap a real btcd node for an in-process one: a
// broadcast transaction confirms instantly (one chain tip advance per
// broadcast), which is enough to exercise BitcoinConfs=1 without the
// minutes-long real confirmation wait.
type fakeChain struct {
	mu          sync.Mutex
	height      int32
	txs         map[chainhash.Hash]*wire.MsgTx
	confirmedAt map[chainhash.Hash]int32
	spentBy     map[wire.OutPoint]*wire.MsgTx
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		height:      1,
		txs:         make(map[chainhash.Hash]*wire.MsgTx),
		confirmedAt: make(map[chainhash.Hash]int32),
		spentBy:     make(map[wire.OutPoint]*wire.MsgTx),
	}
}

func (c *fakeChain) broadcast(tx *wire.MsgTx) {
	c.mu.Lock()
	defer c.mu.Unlock()

	hash := tx.TxHash()
	if _, exists := c.txs[hash]; exists {
		return
	}
	c.height++
	c.txs[hash] = tx
	c.confirmedAt[hash] = c.height
	for _, in := range tx.TxIn {
		c.spentBy[in.PreviousOutPoint] = tx
	}
}

func (c *fakeChain) tip() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

func (c *fakeChain) getRaw(txid chainhash.Hash) (*wire.MsgTx, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx, ok := c.txs[txid]
	return tx, ok
}

func (c *fakeChain) blockHeight(txid chainhash.Hash) int32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmedAt[txid]
}

func (c *fakeChain) spendOf(op wire.OutPoint) (*wire.MsgTx, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tx, ok := c.spentBy[op]
	return tx, ok
}

// fakeBitcoinWallet implements walletrpc.BitcoinWallet against a fakeChain.
// Sign and TransactionFee are never reached by swapd.Driver - the swap's
// multisig inputs are signed by the state machines directly - so both are
// stubs.
type fakeBitcoinWallet struct {
	chain *fakeChain
}

func (w *fakeBitcoinWallet) Sign(ctx context.Context, pubKeyHash []byte, digest [32]byte) (*ecdsa.Signature, error) {
	return nil, fmt.Errorf("fake bitcoin wallet: Sign is not exercised by this harness")
}

func (w *fakeBitcoinWallet) Broadcast(ctx context.Context, tx *wire.MsgTx) error {
	w.chain.broadcast(tx)
	return nil
}

func (w *fakeBitcoinWallet) GetRawTransaction(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error) {
	tx, ok := w.chain.getRaw(txid)
	if !ok {
		return nil, walletrpc.ErrTxNotFound
	}
	return tx, nil
}

func (w *fakeBitcoinWallet) WatchForRawTransaction(ctx context.Context, outpoint wire.OutPoint) (*wire.MsgTx, error) {
	for {
		if tx, ok := w.chain.spendOf(outpoint); ok {
			return tx, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func (w *fakeBitcoinWallet) TransactionBlockHeight(ctx context.Context, txid chainhash.Hash) (int32, error) {
	return w.chain.blockHeight(txid), nil
}

func (w *fakeBitcoinWallet) PollUntilBlockHeightIsGte(ctx context.Context, height int32) error {
	for {
		if w.chain.tip() >= height {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func (w *fakeBitcoinWallet) TransactionFee(ctx context.Context, tx *wire.MsgTx) (btcutil.Amount, error) {
	return 0, nil
}

// fakeMoneroLedger is the shared record of every transfer either party's
// fakeMoneroWallet has sent, letting the recipient's WatchForTransfer
// observe a transfer the sender's Transfer call produced - the Monero-side
// counterpart of fakeChain.
type fakeMoneroLedger struct {
	mu        sync.Mutex
	nextID    uint64
	transfers map[[32]byte]fakeTransfer
}

type fakeTransfer struct {
	to     *xmrcrypto.PublicKeyPair
	amount uint64
}

func newFakeMoneroLedger() *fakeMoneroLedger {
	return &fakeMoneroLedger{transfers: make(map[[32]byte]fakeTransfer)}
}

// fakeMoneroWallet implements walletrpc.MoneroWallet against a shared
// fakeMoneroLedger. It skips get_tx_proof-style cryptographic verification
// entirely - that belongs to monerorpc's real client - and only checks that
// the transfer recorded in the ledger pays the expected joint key and
// amount, which is all swapd.Driver's own logic depends on.
type fakeMoneroWallet struct {
	ledger *fakeMoneroLedger

	mu       sync.Mutex
	restored *xmrcrypto.PrivateKeyPair
	balance  uint64
}

func newFakeMoneroWallet(ledger *fakeMoneroLedger) *fakeMoneroWallet {
	return &fakeMoneroWallet{ledger: ledger}
}

func (w *fakeMoneroWallet) Balance(ctx context.Context) (uint64, error) {
	return 10_000_000_000_000_000, nil
}

func (w *fakeMoneroWallet) Transfer(ctx context.Context, to *xmrcrypto.PublicKeyPair, amount uint64) ([32]byte, []byte, error) {
	w.ledger.mu.Lock()
	defer w.ledger.mu.Unlock()

	w.ledger.nextID++
	id := w.ledger.nextID

	var txHash [32]byte
	for i := 0; i < 8; i++ {
		txHash[31-i] = byte(id >> (8 * i))
	}
	proof := []byte(fmt.Sprintf("fake-proof-%d", id))

	w.ledger.transfers[txHash] = fakeTransfer{to: to, amount: amount}
	return txHash, proof, nil
}

func (w *fakeMoneroWallet) WatchForTransfer(
	ctx context.Context, to *xmrcrypto.PublicKeyPair, txHash [32]byte, proof []byte,
	amount uint64, confs uint32,
) error {
	w.ledger.mu.Lock()
	transfer, ok := w.ledger.transfers[txHash]
	w.ledger.mu.Unlock()
	if !ok {
		return fmt.Errorf("fake monero wallet: unknown transfer %x", txHash)
	}
	if transfer.amount < amount {
		return fmt.Errorf("fake monero wallet: transfer pays %d, want at least %d", transfer.amount, amount)
	}
	if !transfer.to.SpendKey.Equal(to.SpendKey) {
		return fmt.Errorf("fake monero wallet: transfer paid a different joint spend key")
	}
	return nil
}

func (w *fakeMoneroWallet) CreateFromKeys(ctx context.Context, keys *xmrcrypto.PrivateKeyPair, restoreHeight uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.restored = keys
	w.balance = 1
	return nil
}

func (w *fakeMoneroWallet) GetBalance(ctx context.Context, accountIndex uint32) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance, nil
}

// harnessFixture wires two AliceDriver/BobDriver instances to opposite ends
// of an in-process net.Pipe connection and a shared fake chain/ledger, the
// swapd-level counterpart of swapstate's own newSwapFixture.
type harnessFixture struct {
	aliceDriver *swapd.AliceDriver
	bobDriver   *swapd.BobDriver
	aliceDeps   swapd.Deps
	bobDeps     swapd.Deps
	alice0      *swapstate.Alice0
	bob0        *swapstate.Bob0
	ledger      *fakeMoneroLedger
}

func newHarnessFixture(t *testing.T) harnessFixture {
	t.Helper()

	redeemScript := []byte{0x51}
	refundScript := []byte{0x52}
	punishScript := []byte{0x53}

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

	bobConn, aliceConn := net.Pipe()
	t.Cleanup(func() {
		bobConn.Close()
		aliceConn.Close()
	})

	aliceDisp := swapnet.NewDispatcher(aliceConn, swapnet.RoleAlice)
	bobDisp := swapnet.NewDispatcher(bobConn, swapnet.RoleBob)

	chain := newFakeChain()
	ledger := newFakeMoneroLedger()

	store, err := swapdb.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	aliceDeps := swapd.Deps{
		Dispatcher: aliceDisp,
		Bitcoin:    &fakeBitcoinWallet{chain: chain},
		Monero:     newFakeMoneroWallet(ledger),
		Store:      store,
	}
	bobDeps := swapd.Deps{
		Dispatcher: bobDisp,
		Bitcoin:    &fakeBitcoinWallet{chain: chain},
		Monero:     newFakeMoneroWallet(ledger),
		Store:      store,
	}

	return harnessFixture{
		aliceDriver: swapd.NewAliceDriver("alice:test", aliceDeps, *alice0),
		bobDriver:   swapd.NewBobDriver("bob:test", bobDeps, *bob0),
		aliceDeps:   aliceDeps,
		bobDeps:     bobDeps,
		alice0:      alice0,
		bob0:        bob0,
		ledger:      ledger,
	}
}

// TestHarnessHappyPathRedeem drives a full swap entirely through
// AliceDriver/BobDriver - network dispatch, the fake wallets, and
// swapdb-backed persistence included - verifying both sides reach their
// terminal redeemed/swept state without any manual event injection, unlike
// swapstate's own table-driven transition tests.
func TestHarnessHappyPathRedeem(t *testing.T) {
	f := newHarnessFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	var aliceFinal swapstate.AliceState
	var bobFinal swapstate.BobState
	var aliceErr, bobErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		aliceFinal, aliceErr = f.aliceDriver.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		bobFinal, bobErr = f.bobDriver.Run(ctx)
	}()
	wg.Wait()

	require.NoError(t, aliceErr)
	require.NoError(t, bobErr)

	require.Equal(t, "Alice6", aliceFinal.StateName(), "alice should reach the terminal redeemed state")
	require.Equal(t, "Bob5", bobFinal.StateName(), "bob should reach the terminal swept state")
}

// driveToPreTransferProof replays the same Message0/1/2 and lock-confirmed
// exchange newSwapFixture's StepAlice/StepBob dance would, using the
// fixture's own alice0/bob0, stopping before TransferProof is sent: Alice at
// Alice3b with her Monero transfer already recorded in ledger, Bob at Bob3
// with no transfer proof yet. This is the midpoint TestHarnessResumeAfterCrash
// treats as "what a snapshot taken right before a crash would contain" -
// built by direct StepAlice/StepBob calls instead of a live Driver, so the
// test controls the exact crash point instead of racing a goroutine to it.
func driveToPreTransferProof(t *testing.T, f harnessFixture, ledger *fakeMoneroLedger) (swapstate.Alice3b, swapstate.Bob3) {
	t.Helper()
	ctx := context.Background()

	bobState, effects, err := swapstate.StepBob(*f.bob0, swapstate.EventProceed{})
	require.NoError(t, err)
	msg0 := findSendMessage[*swapmsg.Message0](t, effects)

	aliceAfter0, _, err := swapstate.StepAlice(*f.alice0, swapstate.EventMessageReceived{Msg: msg0})
	require.NoError(t, err)
	alice1 := aliceAfter0.(swapstate.Alice1)

	alice2State, effects, err := swapstate.StepAlice(alice1, swapstate.EventProceed{})
	require.NoError(t, err)
	alice2 := alice2State.(swapstate.Alice2)
	msg1 := findSendMessage[*swapmsg.Message1](t, effects)

	bobAfter1, _, err := swapstate.StepBob(bobState.(swapstate.Bob1), swapstate.EventMessageReceived{Msg: msg1})
	require.NoError(t, err)
	bob2 := bobAfter1.(swapstate.Bob2)

	bob3State, effects, err := swapstate.StepBob(bob2, swapstate.EventProceed{})
	require.NoError(t, err)
	bob3 := bob3State.(swapstate.Bob3)
	msg2 := findSendMessage[*swapmsg.Message2](t, effects)
	lock := findBroadcastTx(t, effects, "tx_lock")

	alice3State, _, err := swapstate.StepAlice(alice2, swapstate.EventMessageReceived{Msg: msg2})
	require.NoError(t, err)
	alice3 := alice3State.(swapstate.Alice3)

	alice3bState, effects, err := swapstate.StepAlice(alice3, swapstate.EventTxConfirmed{TxID: lock.TxHash()})
	require.NoError(t, err)
	alice3b := alice3bState.(swapstate.Alice3b)
	transferEffect := effects[0].(swapstate.EffectMoneroTransfer)

	sender := newFakeMoneroWallet(ledger)
	txHash, proof, err := sender.Transfer(ctx, transferEffect.To, transferEffect.Amount)
	require.NoError(t, err)
	alice3b.MoneroTxHash = txHash
	alice3b.MoneroProof = proof

	return alice3b, bob3
}

// TestHarnessResumeAfterCrash simulates a crash by handing a brand new
// AliceDriver nothing but an Alice3b snapshot - already past the point
// EffectMoneroTransfer sent the real transfer, never having sent
// TransferProof - round-tripped through EncodeAliceState/DecodeAliceState,
// and verifies it still drives the swap to completion against a live Bob
// started at the matching Bob3 point, the crash-recovery property the
// snapshot-before-next-effect persistence in alice_driver.go exists for.
func TestHarnessResumeAfterCrash(t *testing.T) {
	f := newHarnessFixture(t)
	ledger := f.ledger

	alice3b, bob3 := driveToPreTransferProof(t, f, ledger)

	raw, err := swapd.EncodeAliceState(alice3b)
	require.NoError(t, err)
	resumedState, err := swapd.DecodeAliceState(raw)
	require.NoError(t, err)
	require.Equal(t, "Alice3b", resumedState.StateName())

	resumedDriver := swapd.NewAliceDriver("alice:resumed", f.aliceDeps, resumedState)
	bobDriver := swapd.NewBobDriver("bob:resumed", f.bobDeps, bob3)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	var aliceFinal swapstate.AliceState
	var bobFinal swapstate.BobState
	var aliceErr, bobErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		aliceFinal, aliceErr = resumedDriver.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		bobFinal, bobErr = bobDriver.Run(ctx)
	}()
	wg.Wait()

	require.NoError(t, aliceErr)
	require.NoError(t, bobErr)
	require.Equal(t, "Alice6", aliceFinal.StateName(), "resumed alice should still reach the terminal redeemed state")
	require.Equal(t, "Bob5", bobFinal.StateName(), "bob should reach the terminal swept state")
}

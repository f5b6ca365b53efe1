package swapd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lightninglabs/xmrswap/internal/swapdb"
	"github.com/lightninglabs/xmrswap/swapnet"
	"github.com/lightninglabs/xmrswap/swapstate"
	"github.com/lightninglabs/xmrswap/walletrpc"
)

// Status is the lifecycle stage of a swap tracked by Manager.
type Status int

const (
	// StatusOngoing means a Driver is running, or is persisted and
	// waiting for its counterparty connection to resume.
	StatusOngoing Status = iota
	// StatusCompleted means the Driver reached a terminal state with no
	// error.
	StatusCompleted
	// StatusAborted means the Driver gave up after a non-transient error.
	StatusAborted
)

func (s Status) String() string {
	switch s {
	case StatusOngoing:
		return "ongoing"
	case StatusCompleted:
		return "completed"
	case StatusAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Info is the bookkeeping record Manager keeps for one swap, independent
// of whatever concrete swapstate.AliceState/BobState it is currently in.
type Info struct {
	SwapID string
	Role   swapnet.Role
	Status Status
	// Err is set once Status is StatusAborted.
	Err error
}

var errNoSwapWithID = errors.New("swapd: no swap with given id")

const (
	alicePrefix = "alice:"
	bobPrefix   = "bob:"

	maxRetryBackoff = 5 * time.Minute
	maxRetries      = 8
)

func aliceKey(swapID string) string { return alicePrefix + swapID }
func bobKey(swapID string) string   { return bobPrefix + swapID }

// roleFromKey recovers the role and caller-facing swap ID from a
// Store key, the reverse of aliceKey/bobKey.
func roleFromKey(key string) (role swapnet.Role, swapID string, ok bool) {
	if rest, found := strings.CutPrefix(key, alicePrefix); found {
		return swapnet.RoleAlice, rest, true
	}
	if rest, found := strings.CutPrefix(key, bobPrefix); found {
		return swapnet.RoleBob, rest, true
	}
	return 0, "", false
}

// Manager tracks every swap a node is running, the same ongoing/past
// split bingcicle-atomic-swap's swap.Manager keeps, here backed by
// swapdb.Store instead of an in-memory database.
type Manager struct {
	bitcoin walletrpc.BitcoinWallet
	monero  walletrpc.MoneroWallet
	store   *swapdb.Store

	mu      sync.RWMutex
	ongoing map[string]*Info
	past    map[string]*Info
}

// NewManager constructs a Manager and loads every persisted-but-unfinished
// swap as StatusOngoing, without yet starting a Driver for any of them -
// each needs its counterparty's Dispatcher, supplied later via Resume.
func NewManager(bitcoin walletrpc.BitcoinWallet, monero walletrpc.MoneroWallet, store *swapdb.Store) (*Manager, error) {
	keys, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("swapd: listing persisted swaps: %w", err)
	}

	ongoing := make(map[string]*Info, len(keys))
	for _, key := range keys {
		role, swapID, ok := roleFromKey(key)
		if !ok {
			log.Warnf("ignoring persisted snapshot with unrecognized key %q", key)
			continue
		}
		ongoing[swapID] = &Info{SwapID: swapID, Role: role, Status: StatusOngoing}
	}

	return &Manager{
		bitcoin: bitcoin,
		monero:  monero,
		store:   store,
		ongoing: ongoing,
		past:    make(map[string]*Info),
	}, nil
}

func (m *Manager) deps(disp *swapnet.Dispatcher) Deps {
	return Deps{Dispatcher: disp, Bitcoin: m.bitcoin, Monero: m.monero, Store: m.store}
}

// StartAlice registers and runs a brand new swap as Alice.
func (m *Manager) StartAlice(ctx context.Context, swapID string, disp *swapnet.Dispatcher, initial *swapstate.Alice0) error {
	if err := m.register(swapID, swapnet.RoleAlice); err != nil {
		return err
	}
	driver := NewAliceDriver(aliceKey(swapID), m.deps(disp), *initial)
	go m.runAlice(ctx, swapID, driver)
	return nil
}

// StartBob registers and runs a brand new swap as Bob.
func (m *Manager) StartBob(ctx context.Context, swapID string, disp *swapnet.Dispatcher, initial *swapstate.Bob0) error {
	if err := m.register(swapID, swapnet.RoleBob); err != nil {
		return err
	}
	driver := NewBobDriver(bobKey(swapID), m.deps(disp), *initial)
	go m.runBob(ctx, swapID, driver)
	return nil
}

func (m *Manager) register(swapID string, role swapnet.Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.ongoing[swapID]; exists {
		return fmt.Errorf("swapd: swap %s is already ongoing", swapID)
	}
	m.ongoing[swapID] = &Info{SwapID: swapID, Role: role, Status: StatusOngoing}
	return nil
}

// ResumeAlice restarts a swap Manager already knows about (StatusOngoing,
// RoleAlice) from its last persisted snapshot, once disp - the
// counterparty's reconnected Dispatcher - becomes available.
func (m *Manager) ResumeAlice(ctx context.Context, swapID string, disp *swapnet.Dispatcher) error {
	key := aliceKey(swapID)
	raw, err := m.store.Get(key)
	if err != nil {
		return fmt.Errorf("swapd: loading snapshot for %s: %w", swapID, err)
	}
	state, err := DecodeAliceState(raw)
	if err != nil {
		return fmt.Errorf("swapd: decoding snapshot for %s: %w", swapID, err)
	}

	driver := NewAliceDriver(key, m.deps(disp), state)
	go m.runAlice(ctx, swapID, driver)
	return nil
}

// ResumeBob is ResumeAlice's Bob-side counterpart.
func (m *Manager) ResumeBob(ctx context.Context, swapID string, disp *swapnet.Dispatcher) error {
	key := bobKey(swapID)
	raw, err := m.store.Get(key)
	if err != nil {
		return fmt.Errorf("swapd: loading snapshot for %s: %w", swapID, err)
	}
	state, err := DecodeBobState(raw)
	if err != nil {
		return fmt.Errorf("swapd: decoding snapshot for %s: %w", swapID, err)
	}

	driver := NewBobDriver(key, m.deps(disp), state)
	go m.runBob(ctx, swapID, driver)
	return nil
}

// runAlice drives one AliceDriver to completion, retrying transient
// wallet-call failures with capped exponential backoff before giving up
// and marking the swap aborted - everything else is terminal immediately.
func (m *Manager) runAlice(ctx context.Context, swapID string, driver *AliceDriver) {
	backoff := time.Second
	for attempt := 0; ; attempt++ {
		final, err := driver.Run(ctx)
		if err == nil {
			m.complete(swapID, final.StateName(), driver.deps.Store, aliceKey(swapID))
			return
		}
		if !m.shouldRetry(ctx, swapID, err, attempt, &backoff) {
			return
		}
		driver = NewAliceDriver(aliceKey(swapID), driver.deps, final)
	}
}

// runBob is runAlice's Bob-side counterpart.
func (m *Manager) runBob(ctx context.Context, swapID string, driver *BobDriver) {
	backoff := time.Second
	for attempt := 0; ; attempt++ {
		final, err := driver.Run(ctx)
		if err == nil {
			m.complete(swapID, final.StateName(), driver.deps.Store, bobKey(swapID))
			return
		}
		if !m.shouldRetry(ctx, swapID, err, attempt, &backoff) {
			return
		}
		driver = NewBobDriver(bobKey(swapID), driver.deps, final)
	}
}

// shouldRetry classifies err: a *walletrpc.TransientError sleeps out a
// capped exponential backoff and returns true to retry from the Driver's
// last persisted state; anything else aborts the swap and returns false.
func (m *Manager) shouldRetry(ctx context.Context, swapID string, err error, attempt int, backoff *time.Duration) bool {
	var transient *walletrpc.TransientError
	if errors.As(err, &transient) && attempt < maxRetries {
		log.Warnf("swap %s: transient error, retrying in %s: %v", swapID, *backoff, transient)
		select {
		case <-time.After(*backoff):
		case <-ctx.Done():
			return false
		}
		if *backoff *= 2; *backoff > maxRetryBackoff {
			*backoff = maxRetryBackoff
		}
		return true
	}

	log.Errorf("swap %s: aborting: %v", swapID, err)
	m.mu.Lock()
	info := m.ongoing[swapID]
	delete(m.ongoing, swapID)
	if info == nil {
		info = &Info{SwapID: swapID}
	}
	info.Status = StatusAborted
	info.Err = err
	m.past[swapID] = info
	m.mu.Unlock()
	return false
}

func (m *Manager) complete(swapID, finalState string, store *swapdb.Store, key string) {
	log.Infof("swap %s reached terminal state %s", swapID, finalState)

	m.mu.Lock()
	info := m.ongoing[swapID]
	delete(m.ongoing, swapID)
	if info == nil {
		info = &Info{SwapID: swapID}
	}
	info.Status = StatusCompleted
	m.past[swapID] = info
	m.mu.Unlock()

	if err := store.Delete(key); err != nil {
		log.Warnf("swap %s: deleting terminal snapshot: %v", swapID, err)
	}
}

// GetOngoingSwaps returns every swap Manager believes is still in flight,
// including those merely persisted and awaiting a Resume call.
func (m *Manager) GetOngoingSwaps() []*Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Info, 0, len(m.ongoing))
	for _, info := range m.ongoing {
		out = append(out, info)
	}
	return out
}

// HasOngoingSwap reports whether swapID is currently tracked as ongoing.
func (m *Manager) HasOngoingSwap(swapID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.ongoing[swapID]
	return ok
}

// GetPastSwap returns a completed or aborted swap's Info.
func (m *Manager) GetPastSwap(swapID string) (*Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.past[swapID]
	if !ok {
		return nil, errNoSwapWithID
	}
	return info, nil
}

// Package swapd wires swapstate's pure transition functions to a live
// network connection, chain backends, and persisted storage, the same role
// contractcourt.ChainArbitrator plays for lnd's ContractResolvers: the
// state machines decide WHAT to do next, the Driver here performs it.
package swapd

import (
	"fmt"

	"github.com/lightninglabs/xmrswap/internal/build"
	"github.com/lightninglabs/xmrswap/internal/swapdb"
	"github.com/lightninglabs/xmrswap/swapnet"
	"github.com/lightninglabs/xmrswap/walletrpc"
)

var log = build.NewSubLogger("SWAPD")

// Deps bundles everything a Driver needs beyond the swap's own state. The
// Dispatcher is specific to one swap's counterparty connection; Bitcoin,
// Monero and Store are ordinarily the same handles across every swap a
// Manager runs.
type Deps struct {
	Dispatcher *swapnet.Dispatcher
	Bitcoin    walletrpc.BitcoinWallet
	Monero     walletrpc.MoneroWallet
	Store      *swapdb.Store
}

func swapIDContext(swapID string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("swap %s: %w", swapID, err)
}

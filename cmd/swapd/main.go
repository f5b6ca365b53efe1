// swapd is the daemon entrypoint, wiring internal/config's settings to a
// Bitcoin and Monero wallet backend, a swapdb.Store, and a swapd.Manager,
// the same role lnd.go's lndMain plays for lnd's own subsystems.
package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/rpcclient"

	"github.com/lightninglabs/xmrswap/internal/build"
	"github.com/lightninglabs/xmrswap/internal/config"
	"github.com/lightninglabs/xmrswap/internal/swapdb"
	"github.com/lightninglabs/xmrswap/swapd"
	"github.com/lightninglabs/xmrswap/swapnet"
	"github.com/lightninglabs/xmrswap/walletrpc/btcrpc"
	"github.com/lightninglabs/xmrswap/walletrpc/monerorpc"
)

var log = build.NewSubLogger("SWPD")

func main() {
	if err := swapdMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// swapdMain is the true entry point, split out from main so deferred
// cleanup still runs regardless of which return path is taken.
func swapdMain() error {
	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		return err
	}

	bitcoinCfg := rpcclient.ConnConfig{
		Host:         cfg.BitcoinRPCHost,
		User:         cfg.BitcoinRPCUser,
		Pass:         cfg.BitcoinRPCPass,
		HTTPPostMode: true,
		DisableTLS:   true,
	}
	bitcoin, err := btcrpc.New(btcrpc.Config{
		Chain:       bitcoinCfg,
		Wallet:      bitcoinCfg,
		ChainParams: &chaincfg.MainNetParams,
	})
	if err != nil {
		return fmt.Errorf("swapd: connecting to bitcoin backend: %w", err)
	}
	defer bitcoin.Shutdown()

	monero := monerorpc.New(cfg.MoneroRPCHost)

	store, err := swapdb.Open(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("swapd: opening swapdb: %w", err)
	}
	defer store.Close()

	manager, err := swapd.NewManager(bitcoin, monero, store)
	if err != nil {
		return fmt.Errorf("swapd: constructing manager: %w", err)
	}

	ongoing := manager.GetOngoingSwaps()
	log.Infof("loaded %d persisted swap(s) awaiting counterparty reconnection", len(ongoing))

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("swapd: listening on %s: %w", cfg.ListenAddress, err)
	}
	defer listener.Close()
	log.Infof("listening for swap connections on %s", cfg.ListenAddress)

	ctx, cancel := signalContext()
	defer cancel()

	go acceptLoop(ctx, listener, manager)

	<-ctx.Done()
	log.Infof("shutting down")
	return nil
}

// signalContext returns a Context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// acceptLoop accepts incoming counterparty connections and resumes
// whatever persisted swap the handshake names. Initiating a brand new
// swap - generating Alice0/Bob0 and dialing out - is a front-end concern
// (CLI/RPC) this daemon does not yet implement; see DESIGN.md.
func acceptLoop(ctx context.Context, listener net.Listener, manager *swapd.Manager) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
				log.Errorf("accept: %v", err)
				continue
			}
		}
		go handleConn(ctx, conn, manager)
	}
}

func handleConn(ctx context.Context, conn net.Conn, manager *swapd.Manager) {
	remoteRole, swapID, err := readHandshake(conn)
	if err != nil {
		log.Errorf("handshake from %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}

	// The side dialing in announces its own role; this node plays the
	// opposite one for the same swap.
	var myRole swapnet.Role
	var resumeErr error
	switch remoteRole {
	case swapnet.RoleAlice:
		myRole = swapnet.RoleBob
		disp := swapnet.NewDispatcher(conn, myRole)
		resumeErr = manager.ResumeBob(ctx, swapID, disp)
	case swapnet.RoleBob:
		myRole = swapnet.RoleAlice
		disp := swapnet.NewDispatcher(conn, myRole)
		resumeErr = manager.ResumeAlice(ctx, swapID, disp)
	default:
		resumeErr = fmt.Errorf("swapd: unrecognized handshake role %d", remoteRole)
	}
	if resumeErr != nil {
		log.Errorf("resuming swap %s: %v", swapID, resumeErr)
		conn.Close()
	}
}

// readHandshake reads the variable-length connection preamble a dialing
// counterparty sends before swapnet's own request/ack framing begins: one
// byte naming the dialer's role, one byte giving the swap ID's length,
// then the swap ID itself. Negotiating a brand new swap's parameters
// happens out of band (see spec.md §6); this preamble only identifies
// which already-known swap the connection belongs to.
func readHandshake(conn net.Conn) (swapnet.Role, string, error) {
	var header [2]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return 0, "", fmt.Errorf("reading handshake header: %w", err)
	}

	role := swapnet.Role(header[0])
	idLen := int(header[1])

	idBuf := make([]byte, idLen)
	if _, err := io.ReadFull(conn, idBuf); err != nil {
		return 0, "", fmt.Errorf("reading handshake swap id: %w", err)
	}

	return role, string(idBuf), nil
}

// Package monerorpc implements walletrpc.MoneroWallet against a running
// monero-wallet-rpc instance's JSON-RPC-over-HTTP interface, following the
// request/response shape of noot-atomic-swap/monero/client.go's
// callTransfer/callGetBalance pattern, adapted to a single self-contained
// client rather than a split client/rpctypes pair (this pack's retrieved
// slice does not carry a standalone rpctypes package). The websocket side
// channel used to watch for inbound transfers follows
// noot-atomic-swap/rpcclient/wsclient/wsclient.go's dial-and-read-loop
// idiom, reused here to watch monerod's zmq-pub-style notification feed
// instead of a swap-specific RPC server.
package monerorpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lightninglabs/xmrswap/internal/build"
	"github.com/lightninglabs/xmrswap/walletrpc"
	"github.com/lightninglabs/xmrswap/xmrcrypto"
)

// network is the Monero environment addresses are encoded for. The swap
// protocol never inspects network-specific behavior beyond address
// encoding, so a single package-level default (overridable by tests)
// suffices rather than threading a chaincfg.Params-style value through
// every call.
var network = xmrcrypto.Mainnet

var log = build.NewSubLogger("MRPC")

const jsonRPCVersion = "2.0"

// rpcRequest is a single JSON-RPC 2.0 request envelope.
type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// rpcResponse is a single JSON-RPC 2.0 response envelope.
type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("monero-wallet-rpc error %d: %s", e.Code, e.Message)
}

// Client is a monero-wallet-rpc client implementing walletrpc.MoneroWallet.
type Client struct {
	endpoint   string
	httpClient *http.Client

	mu     sync.Mutex
	nextID uint64

	notify *notificationClient
}

var _ walletrpc.MoneroWallet = (*Client)(nil)

// New returns a client that sends JSON-RPC requests to endpoint, the
// usual http://127.0.0.1:18082/json_rpc of a locally-running
// monero-wallet-rpc.
func New(endpoint string) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithNotifications is New plus a websocket endpoint streaming new-block
// notifications, letting WatchForTransfer wake up promptly on a new block
// instead of waiting out a full PollInterval tick. If the dial fails this
// falls back to the plain polling behavior of New, since the notification
// channel is an optimization, not a correctness requirement.
func NewWithNotifications(ctx context.Context, endpoint, notifyEndpoint string) *Client {
	c := New(endpoint)
	n, err := dialNotifications(ctx, notifyEndpoint)
	if err != nil {
		log.Debugf("monero block notifications unavailable, falling back to polling: %v", err)
		return c
	}
	c.notify = n
	return c
}

func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.mu.Unlock()

	req := rpcRequest{JSONRPC: jsonRPCVersion, ID: id, Method: method, Params: params}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return walletrpc.NewTransientError(method, err)
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return walletrpc.NewTransientError(method, err)
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, result)
}

type getBalanceParams struct {
	AccountIndex uint32 `json:"account_index"`
}

type getBalanceResult struct {
	UnlockedBalance uint64 `json:"unlocked_balance"`
}

// Balance implements walletrpc.MoneroWallet.
func (c *Client) Balance(ctx context.Context) (uint64, error) {
	return c.GetBalance(ctx, 0)
}

// GetBalance implements walletrpc.MoneroWallet.
func (c *Client) GetBalance(ctx context.Context, accountIndex uint32) (uint64, error) {
	var result getBalanceResult
	err := c.call(ctx, "get_balance", getBalanceParams{AccountIndex: accountIndex}, &result)
	if err != nil {
		return 0, err
	}
	return result.UnlockedBalance, nil
}

type destination struct {
	Amount  uint64 `json:"amount"`
	Address string `json:"address"`
}

type transferParams struct {
	Destinations []destination `json:"destinations"`
	AccountIndex uint32        `json:"account_index"`
	Priority     uint32        `json:"priority"`
	GetTxKey     bool          `json:"get_tx_key"`
}

type transferResult struct {
	TxHash string `json:"tx_hash"`
}

type getTxProofParams struct {
	TxHash  string `json:"txid"`
	Address string `json:"address"`
}

type getTxProofResult struct {
	Signature string `json:"signature"`
}

// Transfer implements walletrpc.MoneroWallet. It sends amount piconero to
// the address derived from the joint public key pair to, then calls
// get_tx_proof against that same address so the counterparty can verify
// the payment without ever importing this wallet's keys - the same
// two-call pattern noot-atomic-swap's XMRTaker uses to produce the
// TransferProof it hands over the swap's net layer.
func (c *Client) Transfer(ctx context.Context, to *xmrcrypto.PublicKeyPair, amount uint64) ([32]byte, []byte, error) {
	addr := string(xmrcrypto.NewAddress(network, to))

	var tr transferResult
	params := transferParams{
		Destinations: []destination{{Amount: amount, Address: addr}},
		Priority:     0,
		GetTxKey:     true,
	}
	if err := c.call(ctx, "transfer", params, &tr); err != nil {
		return [32]byte{}, nil, err
	}

	var proof getTxProofResult
	proofParams := getTxProofParams{TxHash: tr.TxHash, Address: addr}
	if err := c.call(ctx, "get_tx_proof", proofParams, &proof); err != nil {
		return [32]byte{}, nil, err
	}

	raw, err := hex.DecodeString(tr.TxHash)
	if err != nil {
		return [32]byte{}, nil, fmt.Errorf("monerorpc: decoding tx hash %q: %w", tr.TxHash, err)
	}
	if len(raw) != 32 {
		return [32]byte{}, nil, fmt.Errorf("monerorpc: tx hash %q is %d bytes, want 32", tr.TxHash, len(raw))
	}
	var hash [32]byte
	copy(hash[:], raw)

	return hash, []byte(proof.Signature), nil
}

type checkTxProofParams struct {
	TxHash    string `json:"txid"`
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

type checkTxProofResult struct {
	Good          bool   `json:"good"`
	Confirmations uint64 `json:"confirmations"`
	Received      uint64 `json:"received"`
}

// WatchForTransfer implements walletrpc.MoneroWallet by polling
// check_tx_proof until the transaction both verifies and has reached
// confs confirmations.
func (c *Client) WatchForTransfer(ctx context.Context, to *xmrcrypto.PublicKeyPair, txHash [32]byte, proof []byte, amount uint64, confs uint32) error {
	addr := string(xmrcrypto.NewAddress(network, to))
	params := checkTxProofParams{
		TxHash:    fmt.Sprintf("%x", txHash),
		Address:   addr,
		Signature: string(proof),
	}

	ticker := time.NewTicker(walletrpc.PollInterval)
	defer ticker.Stop()

	wake := make(chan struct{}, 1)
	if c.notify != nil {
		go c.notify.pump(ctx, wake)
	}

	for {
		var result checkTxProofResult
		if err := c.call(ctx, "check_tx_proof", params, &result); err != nil {
			return err
		}
		if result.Good && result.Received >= amount && uint32(result.Confirmations) >= confs {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-wake:
		}
	}
}

type generateFromKeysParams struct {
	Filename    string `json:"filename"`
	Address     string `json:"address"`
	SpendKey    string `json:"spendkey"`
	ViewKey     string `json:"viewkey"`
	Password    string `json:"password"`
	AutosaveCur bool   `json:"autosave_current"`
	RestoreHt   uint64 `json:"restore_height"`
}

// CreateFromKeys implements walletrpc.MoneroWallet, restoring a spendable
// wallet from a fully-recovered joint key pair via generate_from_keys -
// the same call noot-atomic-swap/monero/client.go's GenerateFromKeys
// wraps for the refund and redeem sweep paths.
func (c *Client) CreateFromKeys(ctx context.Context, keys *xmrcrypto.PrivateKeyPair, restoreHeight uint64) error {
	addr := string(xmrcrypto.NewAddress(network, keys.Public()))

	sk := keys.SpendKey.Bytes()
	vk := keys.ViewKey.Bytes()

	params := generateFromKeysParams{
		Filename:    fmt.Sprintf("xmrswap-%x", sk[:8]),
		Address:     addr,
		SpendKey:    hex.EncodeToString(sk[:]),
		ViewKey:     hex.EncodeToString(vk[:]),
		AutosaveCur: true,
		RestoreHt:   restoreHeight,
	}
	return c.call(ctx, "generate_from_keys", params, nil)
}

// notificationClient watches monerod's websocket notification feed for new
// blocks, a lighter-weight wakeup than polling alone for long-running
// watches - following wsclient.go's dial-and-read-loop shape. Not every
// monero-wallet-rpc deployment exposes this, so callers fall back to the
// ticker-based WatchForTransfer above when it's unavailable; when it is
// present, WatchForTransfer also wakes on each notification instead of
// only on PollInterval.
type notificationClient struct {
	conn *websocket.Conn
}

func dialNotifications(ctx context.Context, endpoint string) (*notificationClient, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("monerorpc: dialing notification feed: %w", err)
	}
	if err := resp.Body.Close(); err != nil {
		return nil, err
	}
	return &notificationClient{conn: conn}, nil
}

// pump relays every message read off the notification socket as a wakeup
// on wake, until ctx is canceled or the socket errors, following
// wsclient.go's read-loop-in-a-goroutine shape.
func (n *notificationClient) pump(ctx context.Context, wake chan<- struct{}) {
	defer n.close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			n.close()
		case <-done:
		}
	}()

	for {
		_, _, err := n.conn.ReadMessage()
		if err != nil {
			log.Debugf("monero notification socket closed: %v", err)
			return
		}
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

func (n *notificationClient) close() {
	if err := n.conn.Close(); err != nil {
		log.Debugf("closing notification socket: %v", err)
	}
}

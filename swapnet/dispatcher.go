package swapnet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/lightninglabs/xmrswap/swapmsg"
)

// DefaultRequestTimeout bounds how long Send waits for the counterparty's
// acknowledgement, per spec.md §5's "fixed request timeout (conventionally
// 30-60s)".
const DefaultRequestTimeout = 45 * time.Second

// ErrAckMismatch is returned by Send when the acknowledgement read back
// names a different sub-protocol than the one just sent - a sign the
// connection's framing has desynced.
var ErrAckMismatch = errors.New("swapnet: acknowledgement names the wrong sub-protocol")

// Dispatcher sends and receives the one-shot request/response
// sub-protocols over a single connection, acting as the fixed Role given
// at construction. Because the swap state machine only ever has one
// message in flight per direction at a time, Dispatcher makes no attempt
// at request multiplexing: Send blocks for the matching ack, and Receive
// blocks for the next request.
type Dispatcher struct {
	conn net.Conn
	role Role
}

// NewDispatcher wraps conn, a transport-layer connection to the swap
// counterparty (out of scope per spec.md §6 - any authenticated
// peer-to-peer stream works), with the sub-protocol framing.
func NewDispatcher(conn net.Conn, role Role) *Dispatcher {
	return &Dispatcher{conn: conn, role: role}
}

// Send issues a sub-protocol request and waits for its acknowledgement.
// Send refuses to issue a request for a sub-protocol this Dispatcher's
// role does not initiate.
func (d *Dispatcher) Send(ctx context.Context, proto SubProtocol, msg swapmsg.Message) error {
	wantRole, err := Sender(proto)
	if err != nil {
		return err
	}
	if wantRole != d.role {
		return fmt.Errorf("%w: %s is not sent by %s", ErrWrongDirection, proto, d.role)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultRequestTimeout)
	}
	if err := d.conn.SetDeadline(deadline); err != nil {
		return err
	}

	if _, err := d.conn.Write([]byte{byte(proto)}); err != nil {
		return err
	}
	if _, err := swapmsg.WriteMessage(d.conn, msg); err != nil {
		return err
	}

	ackProto, err := d.readAck()
	if err != nil {
		return err
	}
	if ackProto != proto {
		return fmt.Errorf("%w: sent %s, acked %s", ErrAckMismatch, proto, ackProto)
	}
	return nil
}

// Receive blocks for the next incoming request for proto, validates that
// its sender is the role expected to send it, writes back the
// acknowledgement, and returns the decoded message.
func (d *Dispatcher) Receive(ctx context.Context, proto SubProtocol) (swapmsg.Message, error) {
	wantRole, err := Sender(proto)
	if err != nil {
		return nil, err
	}
	if wantRole == d.role {
		return nil, fmt.Errorf("%w: %s is not received by %s", ErrWrongDirection, proto, d.role)
	}

	if deadline, ok := ctx.Deadline(); ok {
		if err := d.conn.SetDeadline(deadline); err != nil {
			return nil, err
		}
	} else if err := d.conn.SetDeadline(time.Time{}); err != nil {
		return nil, err
	}

	gotProto, err := d.readProto()
	if err != nil {
		return nil, err
	}
	if gotProto != proto {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrWrongDirection, proto, gotProto)
	}

	msg, err := swapmsg.ReadMessage(d.conn)
	if err != nil {
		return nil, err
	}

	if err := d.writeAck(proto); err != nil {
		return nil, err
	}
	return msg, nil
}

func (d *Dispatcher) readProto() (SubProtocol, error) {
	var buf [1]byte
	if _, err := io.ReadFull(d.conn, buf[:]); err != nil {
		return 0, err
	}
	return SubProtocol(buf[0]), nil
}

func (d *Dispatcher) readAck() (SubProtocol, error) {
	return d.readProto()
}

func (d *Dispatcher) writeAck(proto SubProtocol) error {
	_, err := d.conn.Write([]byte{byte(proto)})
	return err
}

// Package swapnet implements the five named request/response
// sub-protocols the swap's two parties exchange over a peer-to-peer
// transport, per spec.md §6: each sub-protocol carries exactly one of
// {Message0, Message1, Message2, Message3, TransferProof} in a fixed
// direction, answered by a one-byte acknowledgement echoing the
// sub-protocol identifier. Framing is swapmsg's
// lnwire-style ReadMessage/WriteMessage; this package adds the
// sub-protocol identifier and the wrong-direction protocol-violation
// check spec.md §4.3/§6 require.
package swapnet

import "errors"

// SubProtocol identifies one of the five named sub-protocols.
type SubProtocol uint8

const (
	ProtoMessage0 SubProtocol = iota
	ProtoMessage1
	ProtoMessage2
	ProtoTransferProof
	ProtoMessage3
)

func (p SubProtocol) String() string {
	switch p {
	case ProtoMessage0:
		return "Message0"
	case ProtoMessage1:
		return "Message1"
	case ProtoMessage2:
		return "Message2"
	case ProtoTransferProof:
		return "TransferProof"
	case ProtoMessage3:
		return "Message3"
	default:
		return "unknown"
	}
}

// Role identifies which party a Dispatcher is acting as.
type Role uint8

const (
	RoleAlice Role = iota
	RoleBob
)

func (r Role) String() string {
	if r == RoleAlice {
		return "alice"
	}
	return "bob"
}

// sender is, for each sub-protocol, the role that initiates the request.
// Bob opens the swap (Message0), funds and signs tx_lock (Message2), and
// hands over the redeem adaptor signature (Message3); Alice replies with
// her own key material (Message1) and later proves her Monero lock
// (TransferProof).
var sender = map[SubProtocol]Role{
	ProtoMessage0:      RoleBob,
	ProtoMessage1:      RoleAlice,
	ProtoMessage2:      RoleBob,
	ProtoTransferProof: RoleAlice,
	ProtoMessage3:      RoleBob,
}

// ErrUnknownSubProtocol is returned for a SubProtocol value outside the
// five named ones.
var ErrUnknownSubProtocol = errors.New("swapnet: unknown sub-protocol")

// ErrWrongDirection is returned when a sub-protocol request arrives from
// the role that is not its designated sender - spec.md §6's "receiving in
// the wrong direction is a protocol error".
var ErrWrongDirection = errors.New("swapnet: sub-protocol received in the wrong direction")

// Sender returns the role that initiates requests for proto.
func Sender(proto SubProtocol) (Role, error) {
	r, ok := sender[proto]
	if !ok {
		return 0, ErrUnknownSubProtocol
	}
	return r, nil
}

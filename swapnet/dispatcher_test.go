package swapnet_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lightninglabs/xmrswap/swapmsg"
	"github.com/lightninglabs/xmrswap/swapnet"
)

func TestSendReceiveRoundTrip(t *testing.T) {
	bobConn, aliceConn := net.Pipe()
	defer bobConn.Close()
	defer aliceConn.Close()

	bob := swapnet.NewDispatcher(bobConn, swapnet.RoleBob)
	alice := swapnet.NewDispatcher(aliceConn, swapnet.RoleAlice)

	msg := &swapmsg.TransferProof{Amount: 42}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := bob.Receive(ctx, swapnet.ProtoTransferProof)
		errCh <- err
	}()

	require.NoError(t, alice.Send(ctx, swapnet.ProtoTransferProof, msg))
	require.NoError(t, <-errCh)
}

func TestSendRejectsWrongDirection(t *testing.T) {
	bobConn, aliceConn := net.Pipe()
	defer bobConn.Close()
	defer aliceConn.Close()

	bob := swapnet.NewDispatcher(bobConn, swapnet.RoleBob)
	_ = aliceConn

	ctx := context.Background()
	err := bob.Send(ctx, swapnet.ProtoTransferProof, &swapmsg.TransferProof{})
	require.ErrorIs(t, err, swapnet.ErrWrongDirection)
}

func TestReceiveRejectsWrongDirection(t *testing.T) {
	bobConn, aliceConn := net.Pipe()
	defer bobConn.Close()
	defer aliceConn.Close()

	alice := swapnet.NewDispatcher(aliceConn, swapnet.RoleAlice)
	_ = bobConn

	ctx := context.Background()
	_, err := alice.Receive(ctx, swapnet.ProtoTransferProof)
	require.ErrorIs(t, err, swapnet.ErrWrongDirection)
}

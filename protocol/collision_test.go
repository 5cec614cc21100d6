package protocol

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/config"
	"github.com/nexthop-labs/bgpd/fsm"
	"github.com/nexthop-labs/bgpd/message"
	"github.com/nexthop-labs/bgpd/transport"
	"github.com/nexthop-labs/bgpd/wire"
)

// pipePair builds an in-process connection: the near end is handed to the
// Protocol, the far end plays the peer. net.Pipe is synchronous, so every
// WriteMessage/ReadMessage pair is also a deterministic sync point
// between the test and the session goroutine.
func pipePair(t *testing.T) (near, far *transport.Connection) {
	t.Helper()
	a, b := net.Pipe()
	return transport.NewFromConn(a), transport.NewFromConn(b)
}

func collisionNeighbor() config.Neighbor {
	return config.Neighbor{
		PeerAddress: net.ParseIP("192.0.2.9"),
		PeerASN:     65001,
		LocalASN:    65000,
		RouterID:    10,
		HoldTime:    90 * time.Second,
		Passive:     true,
		Families:    []wire.Family{wire.IPv4Unicast},
	}
}

func peerOpen(routerID uint32) message.Open {
	return message.Open{
		MyASN:        65001,
		HoldTime:     90,
		RouterID:     routerID,
		Capabilities: capability.NewSet(),
	}
}

func TestCollisionKeepsExistingConnectionWhenPeerIDHigher(t *testing.T) {
	p := New(collisionNeighbor())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	connA, farA := pipePair(t)
	defer farA.Close()
	p.AcceptConn(connA)

	// The session sends its OPEN on the first connection and sits in
	// OpenSent waiting for ours.
	m, err := farA.ReadMessage(nil, transport.DefaultMaxMessageSize)
	require.NoError(t, err)
	require.IsType(t, message.Open{}, m)

	connB, farB := pipePair(t)
	defer farB.Close()
	p.AcceptConn(connB)

	// The peer's router-id (20) beats ours (10) and the existing
	// connection is peer-initiated too, so it survives; the challenger is
	// dumped with Cease/ConnectionCollision.
	require.NoError(t, farB.WriteMessage(peerOpen(20), nil))
	m, err = farB.ReadMessage(nil, transport.DefaultMaxMessageSize)
	require.NoError(t, err)
	n, ok := m.(message.Notification)
	require.True(t, ok)
	assert.Equal(t, message.ErrCease, n.Code)
	assert.Equal(t, message.SubErrConnectionCollision, n.Subcode)

	_, err = farB.ReadMessage(nil, transport.DefaultMaxMessageSize)
	assert.Error(t, err, "the dumped challenger is closed")

	assert.Equal(t, fsm.StateOpenSent, p.Snapshot().State, "the original handshake continues")
}

func TestCollisionDumpsExistingConnectionWhenLocalIDHigher(t *testing.T) {
	p := New(collisionNeighbor())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	connA, farA := pipePair(t)
	defer farA.Close()
	p.AcceptConn(connA)

	m, err := farA.ReadMessage(nil, transport.DefaultMaxMessageSize)
	require.NoError(t, err)
	require.IsType(t, message.Open{}, m)

	connB, farB := pipePair(t)
	defer farB.Close()
	p.AcceptConn(connB)

	// Our router-id (10) beats the peer's (5): the existing peer-initiated
	// connection loses, gets the Cease, and the challenger takes over the
	// handshake — our OPEN, then the KEEPALIVE that enters OpenConfirm.
	require.NoError(t, farB.WriteMessage(peerOpen(5), nil))

	m, err = farA.ReadMessage(nil, transport.DefaultMaxMessageSize)
	require.NoError(t, err)
	n, ok := m.(message.Notification)
	require.True(t, ok)
	assert.Equal(t, message.ErrCease, n.Code)
	assert.Equal(t, message.SubErrConnectionCollision, n.Subcode)

	m, err = farB.ReadMessage(nil, transport.DefaultMaxMessageSize)
	require.NoError(t, err)
	require.IsType(t, message.Open{}, m)

	m, err = farB.ReadMessage(nil, transport.DefaultMaxMessageSize)
	require.NoError(t, err)
	require.IsType(t, message.Keepalive{}, m)

	assert.Equal(t, fsm.StateOpenConfirm, p.Snapshot().State)
}

func TestEstablishedSessionRejectsNewConnection(t *testing.T) {
	p := New(collisionNeighbor())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	connA, farA := pipePair(t)
	defer farA.Close()
	p.AcceptConn(connA)

	// Walk the first connection all the way to Established.
	m, err := farA.ReadMessage(nil, transport.DefaultMaxMessageSize)
	require.NoError(t, err)
	require.IsType(t, message.Open{}, m)
	require.NoError(t, farA.WriteMessage(peerOpen(20), nil))
	m, err = farA.ReadMessage(nil, transport.DefaultMaxMessageSize)
	require.NoError(t, err)
	require.IsType(t, message.Keepalive{}, m)
	require.NoError(t, farA.WriteMessage(message.Keepalive{}, nil))

	// Established sends the initial Adj-RIB-Out sync: an End-of-RIB for
	// the one negotiated family.
	m, err = farA.ReadMessage(nil, transport.DefaultMaxMessageSize)
	require.NoError(t, err)
	require.IsType(t, message.Update{}, m)

	connB, farB := pipePair(t)
	defer farB.Close()
	p.AcceptConn(connB)

	m, err = farB.ReadMessage(nil, transport.DefaultMaxMessageSize)
	require.NoError(t, err)
	n, ok := m.(message.Notification)
	require.True(t, ok)
	assert.Equal(t, message.ErrCease, n.Code)
	assert.Equal(t, message.SubErrConnectionCollision, n.Subcode)

	assert.Equal(t, fsm.StateEstablished, p.Snapshot().State)
}

package rib

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexthop-labs/bgpd/attribute"
	"github.com/nexthop-labs/bgpd/nlri"
	"github.com/nexthop-labs/bgpd/wire"
)

func prefix(t *testing.T, s string) wire.CIDR {
	t.Helper()
	ip, ipnet, err := net.ParseCIDR(s)
	require.NoError(t, err)
	ones, _ := ipnet.Mask.Size()
	return wire.CIDR{IP: wire.NewIP(ip), Length: ones}
}

func route(t *testing.T, s string) nlri.NLRI {
	return nlri.NewInet(wire.IPv4Unicast, prefix(t, s))
}

func TestAdjRibInAnnounceThenWithdraw(t *testing.T) {
	r := NewAdjRibIn()
	n := route(t, "10.0.0.0/24")
	attrs := attribute.New()
	attrs.Set(attribute.Origin{Value: attribute.OriginIGP})

	now := time.Unix(1000, 0)
	r.Announce(wire.IPv4Unicast, n, attrs, now)
	got, ok := r.Get(wire.IPv4Unicast, n)
	require.True(t, ok)
	assert.Equal(t, ActionAnnounce, got.Action)
	assert.Same(t, attrs, got.Attributes)
	assert.Equal(t, 1, r.Len())

	r.Withdraw(wire.IPv4Unicast, n, now.Add(time.Second))
	got, ok = r.Get(wire.IPv4Unicast, n)
	require.True(t, ok)
	assert.Equal(t, ActionWithdraw, got.Action)
	assert.Equal(t, 1, r.Len(), "withdraw overwrites, doesn't delete")
}

func TestAdjRibInAnnounceOverwritesSameKey(t *testing.T) {
	r := NewAdjRibIn()
	n := route(t, "10.0.0.0/24")
	first := attribute.New()
	second := attribute.New()
	second.Set(attribute.Origin{Value: attribute.OriginEGP})

	r.Announce(wire.IPv4Unicast, n, first, time.Unix(1, 0))
	r.Announce(wire.IPv4Unicast, n, second, time.Unix(2, 0))

	got, ok := r.Get(wire.IPv4Unicast, n)
	require.True(t, ok)
	assert.Same(t, second, got.Attributes)
	assert.Equal(t, 1, r.Len())
}

func TestAdjRibInGracefulRestartStaleSweep(t *testing.T) {
	r := NewAdjRibIn()
	stays := route(t, "10.0.0.0/24")
	swept := route(t, "10.0.1.0/24")
	attrs := attribute.New()

	r.Announce(wire.IPv4Unicast, stays, attrs, time.Unix(1, 0))
	r.Announce(wire.IPv4Unicast, swept, attrs, time.Unix(1, 0))
	r.MarkStale(wire.IPv4Unicast)

	// The peer replays `stays` after reconnecting.
	r.ClearStale(wire.IPv4Unicast, stays)

	removed := r.SweepStale(wire.IPv4Unicast)
	require.Len(t, removed, 1)
	assert.Equal(t, swept.Key(), removed[0].Key())

	_, ok := r.Get(wire.IPv4Unicast, swept)
	assert.False(t, ok, "swept entry must be deleted, not just unmarked")

	_, ok = r.Get(wire.IPv4Unicast, stays)
	assert.True(t, ok)
}

func TestAdjRibOutInsertSupersedesPending(t *testing.T) {
	out := NewAdjRibOut()
	n := route(t, "192.0.2.0/24")
	first := &Route{Family: wire.IPv4Unicast, NLRI: n, Attributes: attribute.New(), Action: ActionAnnounce}
	second := &Route{Family: wire.IPv4Unicast, NLRI: n, Action: ActionWithdraw}

	out.Insert(first)
	out.Insert(second)

	pending := out.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, ActionWithdraw, pending[0].Action)
	assert.Equal(t, 1, out.Len())
}

func TestAdjRibOutMarkFlushedClearsPending(t *testing.T) {
	out := NewAdjRibOut()
	n := route(t, "192.0.2.0/24")
	r := &Route{Family: wire.IPv4Unicast, NLRI: n, Attributes: attribute.New(), Action: ActionAnnounce}
	out.Insert(r)

	out.MarkFlushed(out.Pending())
	assert.Empty(t, out.Pending())
	assert.Equal(t, 1, out.Len(), "flushing clears pending, not the cache")
}

func TestAdjRibOutReplayRequeuesEverything(t *testing.T) {
	out := NewAdjRibOut()
	n := route(t, "192.0.2.0/24")
	r := &Route{Family: wire.IPv4Unicast, NLRI: n, Attributes: attribute.New(), Action: ActionAnnounce}
	out.Insert(r)
	out.MarkFlushed(out.Pending())
	require.Empty(t, out.Pending())

	out.Replay()
	assert.Len(t, out.Pending(), 1)
}

func TestAdjRibOutRoutesIncludesFlushedEntries(t *testing.T) {
	out := NewAdjRibOut()
	r := &Route{Family: wire.IPv4Unicast, NLRI: route(t, "192.0.2.0/24"), Attributes: attribute.New(), Action: ActionAnnounce}
	out.Insert(r)
	out.MarkFlushed(out.Pending())

	routes := out.Routes()
	require.Len(t, routes, 1)
	assert.Same(t, r, routes[0])
}

package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexthop-labs/bgpd/attribute"
	"github.com/nexthop-labs/bgpd/config"
	"github.com/nexthop-labs/bgpd/nlri"
	"github.com/nexthop-labs/bgpd/rib"
	"github.com/nexthop-labs/bgpd/wire"
)

type fakeDispatcher struct {
	announced  []config.Change
	restrictTo []string
	refreshed  []wire.Family
	stopped    []string
	status     []NeighborStatus
	routes     []RouteEntry
}

func (f *fakeDispatcher) Announce(c config.Change, restrictTo string) {
	f.announced = append(f.announced, c)
	f.restrictTo = append(f.restrictTo, restrictTo)
}

func (f *fakeDispatcher) RouteRefresh(family wire.Family, restrictTo string) {
	f.refreshed = append(f.refreshed, family)
	f.restrictTo = append(f.restrictTo, restrictTo)
}

func (f *fakeDispatcher) Shutdown(restrictTo string) {
	f.stopped = append(f.stopped, restrictTo)
}

func (f *fakeDispatcher) Status(restrictTo string) []NeighborStatus { return f.status }

func (f *fakeDispatcher) Routes(restrictTo string) []RouteEntry { return f.routes }

func TestParserAnnounceRoute(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	reply, err := p.Execute("announce route 10.0.0.0/24 next-hop 192.0.2.1 as-path 65001,65002 med 10 local-preference 200")
	require.NoError(t, err)
	assert.Equal(t, "done", reply)
	require.Len(t, d.announced, 1)

	c := d.announced[0]
	assert.Equal(t, wire.IPv4Unicast, c.Family)
	assert.Equal(t, rib.ActionAnnounce, c.Action)
	require.NotNil(t, c.Attributes)
	assert.Equal(t, "", d.restrictTo[0])
}

func TestParserWithdrawRouteCarriesNoAttributes(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	reply, err := p.Execute("withdraw route 10.0.0.0/24")
	require.NoError(t, err)
	assert.Equal(t, "done", reply)
	require.Len(t, d.announced, 1)
	assert.Equal(t, rib.ActionWithdraw, d.announced[0].Action)
	assert.Nil(t, d.announced[0].Attributes)
}

func TestParserNeighborPrefixRestrictsFanout(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	_, err := p.Execute("neighbor 192.0.2.1 announce route 10.0.0.0/24")
	require.NoError(t, err)
	require.Len(t, d.restrictTo, 1)
	assert.Equal(t, "192.0.2.1", d.restrictTo[0])
}

func TestParserAnnounceRouteRefreshDefaultsToIPv4Unicast(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	_, err := p.Execute("announce route-refresh")
	require.NoError(t, err)
	require.Len(t, d.refreshed, 1)
	assert.Equal(t, wire.IPv4Unicast, d.refreshed[0])
}

func TestParserAnnounceRouteRefreshExplicitFamily(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	_, err := p.Execute("announce route-refresh family ipv6 unicast")
	require.NoError(t, err)
	require.Len(t, d.refreshed, 1)
	assert.Equal(t, wire.IPv6Unicast, d.refreshed[0])
}

func TestParserShutdown(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	reply, err := p.Execute("shutdown")
	require.NoError(t, err)
	assert.Equal(t, "shutdown in progress", reply)
	require.Len(t, d.stopped, 1)
}

func TestParserBlankAndCommentLinesAreNoop(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	reply, err := p.Execute("")
	require.NoError(t, err)
	assert.Equal(t, "", reply)

	reply, err = p.Execute("   # a comment")
	require.NoError(t, err)
	assert.Equal(t, "", reply)

	assert.Empty(t, d.announced)
}

func TestParserUnknownVerbErrors(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	_, err := p.Execute("frobnicate route")
	assert.Error(t, err)
}

func TestParserAnnounceFlowDiscard(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	reply, err := p.Execute("announce flow route destination 192.0.2.0/24 source 10.1.2.0/24 port =25 then discard")
	require.NoError(t, err)
	assert.Equal(t, "done", reply)
	require.Len(t, d.announced, 1)

	c := d.announced[0]
	assert.Equal(t, wire.FlowSpecIPv4, c.Family)
	assert.Equal(t, rib.ActionAnnounce, c.Action)

	fs, ok := c.NLRI.(nlri.FlowSpec)
	require.True(t, ok)
	require.Len(t, fs.Components, 3)
	// NewFlowSpec sorts components into ascending type order.
	assert.Equal(t, nlri.FSDestinationPrefix, fs.Components[0].Type)
	assert.Equal(t, nlri.FSSourcePrefix, fs.Components[1].Type)
	assert.Equal(t, nlri.FSPort, fs.Components[2].Type)

	require.NotNil(t, c.Attributes)
	a, ok := c.Attributes.Get(attribute.CodeExtendedCommunities)
	require.True(t, ok)
	ec := a.(attribute.ExtendedCommunities)
	require.Len(t, ec.Values, 1)
	assert.Equal(t, attribute.ExtSubFlowSpecTrafficRate, ec.Values[0].SubType)
}

func TestParserAnnounceFlowRedirect(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	_, err := p.Execute("announce flow route destination 192.0.2.0/24 protocol tcp destination-port =3128 then redirect 65000:100")
	require.NoError(t, err)
	require.Len(t, d.announced, 1)

	a, ok := d.announced[0].Attributes.Get(attribute.CodeExtendedCommunities)
	require.True(t, ok)
	ec := a.(attribute.ExtendedCommunities)
	require.Len(t, ec.Values, 1)
	assert.Equal(t, attribute.ExtTypeFlowSpec, ec.Values[0].Type)
	assert.Equal(t, attribute.ExtSubFlowSpecRedirectAS, ec.Values[0].SubType)
}

func TestParserWithdrawFlowCarriesNoAttributes(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	_, err := p.Execute("withdraw flow route destination 192.0.2.0/24")
	require.NoError(t, err)
	require.Len(t, d.announced, 1)
	assert.Equal(t, rib.ActionWithdraw, d.announced[0].Action)
	assert.Nil(t, d.announced[0].Attributes)
}

func TestParserWithdrawFlowRejectsActions(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	_, err := p.Execute("withdraw flow route destination 192.0.2.0/24 then discard")
	require.Error(t, err)
}

func TestParserAnnounceFlowIPv6Family(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	_, err := p.Execute("announce flow route destination 2001:db8::/32 then discard")
	require.NoError(t, err)
	require.Len(t, d.announced, 1)
	assert.Equal(t, wire.FlowSpecIPv6, d.announced[0].Family)
}

func TestParserAnnounceFlowEmptyMatchErrors(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	_, err := p.Execute("announce flow route then discard")
	require.Error(t, err)
}

func TestParserShowNeighbor(t *testing.T) {
	d := &fakeDispatcher{
		status: []NeighborStatus{{PeerAddress: "192.0.2.1", State: "ESTABLISHED", RoutesIn: 3, RoutesOut: 1}},
	}
	p := NewParser(d)

	reply, err := p.Execute("show neighbor")
	require.NoError(t, err)
	assert.Equal(t, "neighbor 192.0.2.1 state ESTABLISHED routes-in 3 routes-out 1", reply)
}

func TestParserShowRoutes(t *testing.T) {
	d := &fakeDispatcher{
		routes: []RouteEntry{
			{PeerAddress: "192.0.2.1", Direction: "receive", Family: "ipv4/unicast", NLRI: "10.0.0.0/24"},
			{PeerAddress: "192.0.2.1", Direction: "send", Family: "ipv4/unicast", NLRI: "10.0.1.0/24", Withdrawn: true},
		},
	}
	p := NewParser(d)

	reply, err := p.Execute("show routes")
	require.NoError(t, err)
	lines := strings.Split(reply, "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "receive")
	assert.Contains(t, lines[0], "announced")
	assert.Contains(t, lines[1], "withdrawn")
}

func TestParserShowNeighborEmpty(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	reply, err := p.Execute("show neighbor")
	require.NoError(t, err)
	assert.Equal(t, "no configured neighbor", reply)
}

func TestParserInvalidPrefixErrors(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	_, err := p.Execute("announce route not-a-prefix")
	assert.Error(t, err)
}

func TestParserInvalidOriginErrors(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	_, err := p.Execute("announce route 10.0.0.0/24 origin bogus")
	assert.Error(t, err)
}

func TestWatchdogDefaultsToAnnounce(t *testing.T) {
	d := &fakeDispatcher{}
	p := NewParser(d)

	assert.True(t, p.WatchdogState("eng-dc1"))

	_, err := p.Execute("watchdog withdraw eng-dc1")
	require.NoError(t, err)
	assert.False(t, p.WatchdogState("eng-dc1"))

	_, err = p.Execute("watchdog announce eng-dc1")
	require.NoError(t, err)
	assert.True(t, p.WatchdogState("eng-dc1"))
}

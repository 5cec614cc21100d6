package capability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexthop-labs/bgpd/wire"
)

func roundTrip(t *testing.T, c Capability) Capability {
	t.Helper()
	got, err := Unpack(c.Code(), c.Pack())
	require.NoError(t, err)
	return got
}

func TestMultiProtocolRoundTrip(t *testing.T) {
	c := MultiProtocol{Family: wire.IPv6Unicast}
	got := roundTrip(t, c)
	assert.Equal(t, c, got)
}

func TestMultiProtocolRejectsBadLength(t *testing.T) {
	_, err := Unpack(CodeMultiProtocol, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestRouteRefreshRoundTrip(t *testing.T) {
	got := roundTrip(t, RouteRefresh{})
	assert.Equal(t, RouteRefresh{}, got)
	assert.Equal(t, CodeRouteRefresh, got.Code())
}

func TestRouteRefreshCiscoRoundTrip(t *testing.T) {
	c := RouteRefresh{Cisco: true}
	got := roundTrip(t, c)
	assert.Equal(t, CodeRouteRefreshCisco, got.Code())
}

func TestEnhancedRouteRefreshRoundTrip(t *testing.T) {
	got := roundTrip(t, EnhancedRouteRefresh{})
	assert.Equal(t, EnhancedRouteRefresh{}, got)
}

func TestFourByteASNRoundTrip(t *testing.T) {
	c := FourByteASN{ASN: 4200000000}
	got := roundTrip(t, c)
	assert.Equal(t, c, got)
}

func TestExtendedMessageRoundTrip(t *testing.T) {
	got := roundTrip(t, ExtendedMessage{})
	assert.Equal(t, ExtendedMessage{}, got)
}

func TestAddPathRoundTrip(t *testing.T) {
	c := AddPath{Entries: []AddPathEntry{
		{Family: wire.IPv4Unicast, Direction: AddPathSendReceive},
		{Family: wire.IPv6Unicast, Direction: AddPathReceive},
	}}
	got := roundTrip(t, c).(AddPath)
	assert.Equal(t, c.Entries, got.Entries)
}

func TestAddPathRejectsBadLength(t *testing.T) {
	_, err := Unpack(CodeAddPath, []byte{1, 2, 3})
	assert.Error(t, err)
}

func TestAddPathDirectionHelpers(t *testing.T) {
	assert.True(t, AddPathSend.canSend())
	assert.False(t, AddPathSend.canReceive())
	assert.True(t, AddPathReceive.canReceive())
	assert.False(t, AddPathReceive.canSend())
	assert.True(t, AddPathSendReceive.canSend())
	assert.True(t, AddPathSendReceive.canReceive())
}

func TestGracefulRestartRoundTrip(t *testing.T) {
	c := GracefulRestart{
		RestartTimeSeconds: 120,
		RestartState:       true,
		Families: []GracefulRestartFamily{
			{Family: wire.IPv4Unicast, ForwardingPreserved: true},
			{Family: wire.IPv6Unicast, ForwardingPreserved: false},
		},
	}
	got := roundTrip(t, c).(GracefulRestart)
	assert.Equal(t, c.RestartTimeSeconds, got.RestartTimeSeconds)
	assert.True(t, got.RestartState)
	assert.Equal(t, c.Families, got.Families)
}

func TestGracefulRestartRejectsTooShort(t *testing.T) {
	_, err := Unpack(CodeGracefulRestart, []byte{1})
	assert.Error(t, err)
}

func TestMultisessionRoundTrip(t *testing.T) {
	c := Multisession{SessionID: 7}
	got := roundTrip(t, c)
	assert.Equal(t, c, got)
}

func TestHostnameRoundTrip(t *testing.T) {
	c := Hostname{Hostname: "router1", Domain: "example.com"}
	got := roundTrip(t, c)
	assert.Equal(t, c, got)
}

func TestHostnameRejectsTruncated(t *testing.T) {
	_, err := Unpack(CodeHostname, []byte{10, 'a', 'b'})
	assert.Error(t, err)
}

func TestSoftwareVersionRoundTrip(t *testing.T) {
	c := SoftwareVersion{Version: "bgpd/1.0"}
	got := roundTrip(t, c)
	assert.Equal(t, c, got)
}

func TestUnpackUnknownCodeIsPreserved(t *testing.T) {
	got, err := Unpack(Code(200), []byte{9, 9, 9})
	require.NoError(t, err)
	assert.Equal(t, Code(200), got.Code())
	assert.Equal(t, []byte{9, 9, 9}, got.Pack())
}

func TestSetAddAllOneHas(t *testing.T) {
	s := NewSet()
	assert.False(t, s.Has(CodeMultiProtocol))

	s.Add(MultiProtocol{Family: wire.IPv4Unicast})
	s.Add(MultiProtocol{Family: wire.IPv6Unicast})

	assert.True(t, s.Has(CodeMultiProtocol))
	assert.Len(t, s.All(CodeMultiProtocol), 2)

	one, ok := s.One(CodeMultiProtocol)
	require.True(t, ok)
	assert.Equal(t, MultiProtocol{Family: wire.IPv4Unicast}, one)
}

func TestSetAllCapabilitiesAscendingByCode(t *testing.T) {
	s := NewSet()
	s.Add(FourByteASN{ASN: 1})       // code 65
	s.Add(MultiProtocol{Family: wire.IPv4Unicast}) // code 1

	all := s.AllCapabilities()
	require.Len(t, all, 2)
	assert.Equal(t, CodeMultiProtocol, all[0].Code())
	assert.Equal(t, CodeFourByteASN, all[1].Code())
}

func TestSetString(t *testing.T) {
	s := NewSet()
	s.Add(MultiProtocol{Family: wire.IPv4Unicast})
	assert.Equal(t, "capabilities(1 codes)", s.String())
}

func TestComputeFamiliesIntersection(t *testing.T) {
	local := NewSet()
	local.Add(MultiProtocol{Family: wire.IPv4Unicast})
	local.Add(MultiProtocol{Family: wire.IPv6Unicast})

	peer := NewSet()
	peer.Add(MultiProtocol{Family: wire.IPv4Unicast})

	n := Compute(local, peer, 65001, 65002, 90*time.Second, 90*time.Second, 1, 2)
	assert.True(t, n.HasFamily(wire.IPv4Unicast))
	assert.False(t, n.HasFamily(wire.IPv6Unicast))
}

func TestComputeDefaultsToIPv4UnicastWhenNoMultiProtocol(t *testing.T) {
	n := Compute(NewSet(), NewSet(), 65001, 65002, 90*time.Second, 90*time.Second, 1, 2)
	assert.True(t, n.HasFamily(wire.IPv4Unicast))
}

func TestComputeASN4RequiresBothSides(t *testing.T) {
	local := NewSet()
	local.Add(FourByteASN{ASN: 65001})
	peer := NewSet()

	n := Compute(local, peer, 65001, 65002, 90*time.Second, 90*time.Second, 1, 2)
	assert.False(t, n.ASN4)

	peer.Add(FourByteASN{ASN: 65002})
	n = Compute(local, peer, 65001, 65002, 90*time.Second, 90*time.Second, 1, 2)
	assert.True(t, n.ASN4)
}

func TestComputeExtendedMessageRequiresBothSides(t *testing.T) {
	local := NewSet()
	local.Add(ExtendedMessage{})
	peer := NewSet()
	peer.Add(ExtendedMessage{})

	n := Compute(local, peer, 65001, 65002, 90*time.Second, 90*time.Second, 1, 2)
	assert.Equal(t, ExtendedMaxMessageSize, n.MaxMessageSize)
}

func TestComputeHoldTimeIsMinimum(t *testing.T) {
	n := Compute(NewSet(), NewSet(), 65001, 65002, 90*time.Second, 30*time.Second, 1, 2)
	assert.Equal(t, 30*time.Second, n.HoldTime)
}

func TestComputeAddPathDirectionComposition(t *testing.T) {
	local := NewSet()
	local.Add(AddPath{Entries: []AddPathEntry{
		{Family: wire.IPv4Unicast, Direction: AddPathSend},
	}})
	peer := NewSet()
	peer.Add(AddPath{Entries: []AddPathEntry{
		{Family: wire.IPv4Unicast, Direction: AddPathReceive},
	}})

	n := Compute(local, peer, 65001, 65002, 90*time.Second, 90*time.Second, 1, 2)
	ap := n.AddPathFor(wire.IPv4Unicast)
	assert.True(t, ap.Send)
	assert.False(t, ap.Receive)
}

func TestComputeGracefulRestartCarriesPeerAdvertisement(t *testing.T) {
	peer := NewSet()
	peer.Add(GracefulRestart{RestartTimeSeconds: 90})

	n := Compute(NewSet(), peer, 65001, 65002, 90*time.Second, 90*time.Second, 1, 2)
	require.NotNil(t, n.GracefulRestart)
	assert.Equal(t, uint16(90), n.GracefulRestart.RestartTimeSeconds)
}

func TestAddPathForUnnegotiatedFamilyIsZeroValue(t *testing.T) {
	n := Compute(NewSet(), NewSet(), 65001, 65002, 90*time.Second, 90*time.Second, 1, 2)
	ap := n.AddPathFor(wire.IPv6Unicast)
	assert.False(t, ap.Send)
	assert.False(t, ap.Receive)
}

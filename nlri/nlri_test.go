package nlri

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

func packUnpack(t *testing.T, item NLRI, dir wire.Direction) (NLRI, []byte) {
	t.Helper()
	b := Pack(item, nil)
	got, rest, err := Unpack(item.Family(), b, dir, nil)
	require.NoError(t, err)
	return got, rest
}

func TestInetRoundTripIPv4(t *testing.T) {
	prefix := wire.CIDR{IP: wire.NewIP(net.ParseIP("192.0.2.0")), Length: 24}
	item := NewInet(wire.IPv4Unicast, prefix)

	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	assert.Equal(t, "192.0.2.0/24", got.(withPathID).NLRI.(Inet).Prefix.String())
	assert.Equal(t, item.Key(), got.Key())
}

func TestInetRoundTripIPv6(t *testing.T) {
	prefix := wire.CIDR{IP: wire.NewIP(net.ParseIP("2001:db8::")), Length: 32}
	item := NewInet(wire.IPv6Unicast, prefix)

	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	assert.Equal(t, item.Key(), got.Key())
}

func TestUnpackAllConsumesMultipleInetEntries(t *testing.T) {
	p1 := NewInet(wire.IPv4Unicast, wire.CIDR{IP: wire.NewIP(net.ParseIP("10.0.0.0")), Length: 8})
	p2 := NewInet(wire.IPv4Unicast, wire.CIDR{IP: wire.NewIP(net.ParseIP("172.16.0.0")), Length: 12})
	data := append(Pack(p1, nil), Pack(p2, nil)...)

	items, err := UnpackAll(wire.IPv4Unicast, data, wire.Announce, nil)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, p1.Key(), items[0].Key())
	assert.Equal(t, p2.Key(), items[1].Key())
}

func TestUnpackUnregisteredFamilyErrors(t *testing.T) {
	_, _, err := Unpack(wire.Family{AFI: wire.AFI(999), SAFI: wire.SAFI(99)}, []byte{0}, wire.Announce, nil)
	assert.Error(t, err)
}

func TestPackWithAddPathPrependsIdentifier(t *testing.T) {
	p := NewInet(wire.IPv4Unicast, wire.CIDR{IP: wire.NewIP(net.ParseIP("192.0.2.0")), Length: 24})
	n := &capability.Negotiated{AddPath: map[wire.Family]capability.AddPathNegotiated{
		wire.IPv4Unicast: {Send: true, Receive: true},
	}}
	withID := withPathID{NLRI: p, pathID: 7, has: true}

	packed := Pack(withID, n)
	got, rest, err := Unpack(wire.IPv4Unicast, packed, wire.Announce, n)
	require.NoError(t, err)
	assert.Empty(t, rest)
	id, ok := got.PathID()
	assert.True(t, ok)
	assert.Equal(t, uint32(7), id)
}

func TestLabeledUnicastRoundTrip(t *testing.T) {
	prefix := wire.CIDR{IP: wire.NewIP(net.ParseIP("10.1.0.0")), Length: 16}
	item := NewLabeled(wire.IPv4MPLS, wire.Labels{100}, prefix)

	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	labeled := got.(withPathID).NLRI.(Labeled)
	assert.Equal(t, wire.Labels{100}, labeled.Labels)
	assert.Equal(t, 16, labeled.Prefix.Length)
}

func TestLabeledUnicastWithdrawSentinel(t *testing.T) {
	prefix := wire.CIDR{IP: wire.NewIP(net.ParseIP("10.1.0.0")), Length: 16}
	item := NewLabeled(wire.IPv4MPLS, wire.Labels{wire.WithdrawLabel >> 4}, prefix)

	got, rest := packUnpack(t, item, wire.Withdraw)
	assert.Empty(t, rest)
	labeled := got.(withPathID).NLRI.(Labeled)
	assert.Equal(t, wire.Labels{wire.WithdrawLabel >> 4}, labeled.Labels)
}

func TestVPNRoundTrip(t *testing.T) {
	rd := wire.NewRDASN2(65000, 100)
	prefix := wire.CIDR{IP: wire.NewIP(net.ParseIP("192.168.0.0")), Length: 16}
	item := NewVPN(wire.VPNv4, wire.Labels{200}, rd, prefix)

	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	vpn := got.(withPathID).NLRI.(VPN)
	assert.Equal(t, rd, vpn.RD)
	assert.Equal(t, wire.Labels{200}, vpn.Labels)
	assert.Equal(t, 16, vpn.Prefix.Length)
}

func TestFlowSpecRoundTripDestinationPrefix(t *testing.T) {
	prefix := wire.CIDR{IP: wire.NewIP(net.ParseIP("203.0.113.0")), Length: 24}
	components := []Component{{Type: FSDestinationPrefix, Prefix: &prefix}}
	item := NewFlowSpec(wire.FlowSpecIPv4, components)

	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	fs := got.(withPathID).NLRI.(FlowSpec)
	require.Len(t, fs.Components, 1)
	assert.Equal(t, FSDestinationPrefix, fs.Components[0].Type)
	assert.Equal(t, 24, fs.Components[0].Prefix.Length)
}

func TestFlowSpecRoundTripNumericComponent(t *testing.T) {
	components := []Component{
		{Type: FSIPProtocol, Numeric: []NumericOp{{EQ: true, Value: 6}}},
		{Type: FSDestinationPort, Numeric: []NumericOp{{EQ: true, Value: 80}}},
	}
	item := NewFlowSpec(wire.FlowSpecIPv4, components)

	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	fs := got.(withPathID).NLRI.(FlowSpec)
	require.Len(t, fs.Components, 2)
	// NewFlowSpec sorts ascending by type: IPProtocol(3) before DestinationPort(5).
	assert.Equal(t, FSIPProtocol, fs.Components[0].Type)
	assert.Equal(t, FSDestinationPort, fs.Components[1].Type)
}

func TestFlowSpecRoundTripBitmaskComponent(t *testing.T) {
	components := []Component{
		{Type: FSTCPFlags, Bitmask: []BitmaskOp{{Match: true, Value: 0x02}}},
	}
	item := NewFlowSpec(wire.FlowSpecIPv4, components)

	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	fs := got.(withPathID).NLRI.(FlowSpec)
	require.Len(t, fs.Components, 1)
	require.Len(t, fs.Components[0].Bitmask, 1)
	assert.True(t, fs.Components[0].Bitmask[0].Match)
	assert.Equal(t, uint64(0x02), fs.Components[0].Bitmask[0].Value)
}

func TestFlowSpecSortsComponentsAscending(t *testing.T) {
	fs := NewFlowSpec(wire.FlowSpecIPv4, []Component{
		{Type: FSDestinationPort},
		{Type: FSIPProtocol},
	})
	assert.Equal(t, FSIPProtocol, fs.Components[0].Type)
	assert.Equal(t, FSDestinationPort, fs.Components[1].Type)
}

func TestEVPNAutoDiscoveryRoundTrip(t *testing.T) {
	rd := wire.NewRDASN2(65000, 1)
	item := EVPNAutoDiscovery{RD: rd, EthernetTagID: 100, Label: wire.Labels{500}}
	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	ad := got.(withPathID).NLRI.(EVPNAutoDiscovery)
	assert.Equal(t, rd, ad.RD)
	assert.Equal(t, uint32(100), ad.EthernetTagID)
}

func TestEVPNMACAdvertisementRoundTrip(t *testing.T) {
	rd := wire.NewRDASN2(65000, 1)
	item := EVPNMACAdvertisement{
		RD:            rd,
		EthernetTagID: 0,
		MAC:           [6]byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		IP:            wire.NewIP(net.ParseIP("192.0.2.1")),
		Labels:        wire.Labels{100},
	}
	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	mac := got.(withPathID).NLRI.(EVPNMACAdvertisement)
	assert.Equal(t, item.MAC, mac.MAC)
	assert.Equal(t, "192.0.2.1", mac.IP.Addr.String())
}

func TestEVPNInclusiveMulticastRoundTrip(t *testing.T) {
	rd := wire.NewRDASN2(65000, 1)
	item := EVPNInclusiveMulticast{RD: rd, EthernetTagID: 0, OriginatingRouter: wire.NewIP(net.ParseIP("192.0.2.1"))}
	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	im := got.(withPathID).NLRI.(EVPNInclusiveMulticast)
	assert.Equal(t, "192.0.2.1", im.OriginatingRouter.Addr.String())
}

func TestEVPNIPPrefixRoundTrip(t *testing.T) {
	rd := wire.NewRDASN2(65000, 1)
	prefix := wire.CIDR{IP: wire.NewIP(net.ParseIP("10.0.0.0")), Length: 24}
	item := EVPNIPPrefix{RD: rd, EthernetTagID: 0, Prefix: prefix, GatewayIP: wire.NewIP(net.ParseIP("10.0.0.1")), Label: 500}
	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	p := got.(withPathID).NLRI.(EVPNIPPrefix)
	assert.Equal(t, 24, p.Prefix.Length)
	assert.Equal(t, uint32(500), p.Label)
}

func TestRTCWildcardRoundTrip(t *testing.T) {
	item := RTC{Length: 0}
	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	rtc := got.(withPathID).NLRI.(RTC)
	assert.Equal(t, 0, rtc.Length)
	assert.Equal(t, "rtc:wildcard", rtc.Key())
}

func TestRTCRoundTrip(t *testing.T) {
	item := RTC{Length: 96, OriginAS: 65001, RouteTarget: [8]byte{1, 2, 3, 4, 5, 6, 7, 8}}
	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	rtc := got.(withPathID).NLRI.(RTC)
	assert.Equal(t, wire.ASN(65001), rtc.OriginAS)
	assert.Equal(t, item.RouteTarget, rtc.RouteTarget)
}

func TestVPLSRoundTrip(t *testing.T) {
	rd := wire.NewRDASN2(65000, 1)
	item := VPLS{RD: rd, VEID: 1, VEBlockOffset: 1, VEBlockSize: 10, LabelBase: 100}
	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	vpls := got.(withPathID).NLRI.(VPLS)
	assert.Equal(t, uint16(1), vpls.VEID)
	assert.Equal(t, uint32(100), vpls.LabelBase)
}

func TestMVPNIntraASRoundTrip(t *testing.T) {
	rd := wire.NewRDASN2(65000, 1)
	item := MVPNIntraASIPMSIAD{family: wire.MVPNv4, RD: rd, OriginatingRouter: wire.NewIP(net.ParseIP("192.0.2.1"))}
	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	mvpn := got.(withPathID).NLRI.(MVPNIntraASIPMSIAD)
	assert.Equal(t, "192.0.2.1", mvpn.OriginatingRouter.Addr.String())
}

func TestMVPNSourceGroupADRoundTrip(t *testing.T) {
	rd := wire.NewRDASN2(65000, 1)
	item := MVPNSourceGroupAD{
		family:          wire.MVPNv4,
		RouteType:       MVPNLeafADType,
		RD:              rd,
		MulticastSource: wire.NewIP(net.ParseIP("192.0.2.1")),
		MulticastGroup:  wire.NewIP(net.ParseIP("224.0.0.1")),
	}
	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	sg := got.(withPathID).NLRI.(MVPNSourceGroupAD)
	assert.Equal(t, "224.0.0.1", sg.MulticastGroup.Addr.String())
}

func TestMVPNUnknownRouteTypeIsOpaque(t *testing.T) {
	item := MVPNOpaque{family: wire.MVPNv4, RouteType: MVPNInterASIPMSIADType, Data: []byte{1, 2, 3}}
	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	opaque := got.(withPathID).NLRI.(MVPNOpaque)
	assert.Equal(t, []byte{1, 2, 3}, opaque.Data)
}

func TestMUPRoundTrip(t *testing.T) {
	item := MUP{ArchitectureType: 1, RouteType: 2, Value: []byte{1, 2, 3, 4}}
	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	mup := got.(withPathID).NLRI.(MUP)
	assert.Equal(t, byte(1), mup.ArchitectureType)
	assert.Equal(t, []byte{1, 2, 3, 4}, mup.Value)
}

func TestBGPLSRoundTrip(t *testing.T) {
	item := BGPLS{
		NLRIType:   BGPLSNodeType,
		ProtocolID: BGPLSProtoISISLevel2,
		Identifier: 42,
		Descriptors: []TLV{
			{Type: BGPLSTLVAutonomousSystem, Value: []byte{0, 0, 0xFD, 0xE9}},
		},
	}
	got, rest := packUnpack(t, item, wire.Announce)
	assert.Empty(t, rest)
	bgpls := got.(withPathID).NLRI.(BGPLS)
	assert.Equal(t, uint64(42), bgpls.Identifier)
	require.Len(t, bgpls.Descriptors, 1)
	assert.Equal(t, BGPLSTLVAutonomousSystem, bgpls.Descriptors[0].Type)
}

func TestUnpackAllDetectsNoProgress(t *testing.T) {
	// A malformed EVPN envelope whose declared length is 0 would make the
	// decoder consume nothing; UnpackAll must treat that as an error rather
	// than loop forever.
	data := []byte{EVPNEthernetAutoDiscoveryType, 0}
	_, err := UnpackAll(wire.EVPN, data, wire.Announce, nil)
	assert.Error(t, err)
}

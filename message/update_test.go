package message

import (
	"bytes"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexthop-labs/bgpd/attribute"
	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/nlri"
	"github.com/nexthop-labs/bgpd/wire"
)

func prefix(s string) wire.CIDR {
	ip, ipnet, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	length, _ := ipnet.Mask.Size()
	return wire.CIDR{IP: wire.NewIP(ip), Length: length}
}

func TestUpdateRoundTrip(t *testing.T) {
	attrs := attribute.New()
	attrs.Set(attribute.Origin{Value: attribute.OriginIGP})
	attrs.Set(attribute.NewASPath([]attribute.Segment{
		{Type: attribute.SegmentSequence, ASNs: []wire.ASN{65001, 65002}},
	}))
	attrs.Set(attribute.NextHop{IP: net.ParseIP("192.0.2.1")})

	u := Update{
		Announced: []nlri.NLRI{
			nlri.NewInet(wire.IPv4Unicast, prefix("203.0.113.0/24")),
		},
		Attributes: attrs,
	}

	body := u.PackBody(nil)
	decoded, err := decodeUpdate(body, nil)
	require.NoError(t, err)

	got, ok := decoded.(Update)
	require.True(t, ok)
	require.Len(t, got.Announced, 1)
	assert.Equal(t, "203.0.113.0/24", got.Announced[0].Key())
	require.Empty(t, got.Withdrawn)
	origin, ok := got.Attributes.Get(attribute.CodeOrigin)
	require.True(t, ok)
	assert.Equal(t, attribute.Origin{Value: attribute.OriginIGP}, origin)
}

func TestUpdateWithdrawRoundTrip(t *testing.T) {
	u := Update{
		Withdrawn: []nlri.NLRI{
			nlri.NewInet(wire.IPv4Unicast, prefix("198.51.100.0/24")),
		},
	}

	body := u.PackBody(nil)
	decoded, err := decodeUpdate(body, nil)
	require.NoError(t, err)

	got := decoded.(Update)
	require.Len(t, got.Withdrawn, 1)
	assert.Equal(t, "198.51.100.0/24", got.Withdrawn[0].Key())
	assert.Empty(t, got.Announced)
}

func TestUpdateIsEndOfRIB(t *testing.T) {
	u := Update{}
	family, ok := u.IsEndOfRIB()
	assert.True(t, ok)
	assert.Equal(t, wire.IPv4Unicast, family)

	u.Announced = []nlri.NLRI{nlri.NewInet(wire.IPv4Unicast, prefix("10.0.0.0/8"))}
	_, ok = u.IsEndOfRIB()
	assert.False(t, ok)
}

func TestUpdateMPUnreachEndOfRIB(t *testing.T) {
	attrs := attribute.New()
	attrs.Set(attribute.MPUnreachNLRI{Family: wire.IPv6Unicast})
	u := Update{Attributes: attrs}

	family, ok := u.IsEndOfRIB()
	assert.True(t, ok)
	assert.Equal(t, wire.IPv6Unicast, family)
}

func TestUpdateMalformedAttributeIsTreatAsWithdraw(t *testing.T) {
	// MULTI_EXIT_DISC (optional, non-transitive) with a truncated value:
	// RFC 7606 says malformed instances of this attribute are treat-as-withdraw.
	body := []byte{
		0, 0, // withdrawn routes length
		0, 4, // total path attribute length
		attribute.FlagOptional, byte(attribute.CodeMultiExitDisc), 2, 0, 0, // declares length 2, but MED wants 4
	}
	_, err := decodeUpdate(body, nil)
	require.Error(t, err)

	var attrErr *AttributeError
	require.ErrorAs(t, err, &attrErr)
	assert.True(t, attrErr.TreatAsWithdraw)
	assert.Equal(t, attribute.CodeMultiExitDisc, attrErr.Code)
}

func TestUpdateMissingOriginIsSessionFatal(t *testing.T) {
	attrs := attribute.New()
	attrs.Set(attribute.NewASPath([]attribute.Segment{
		{Type: attribute.SegmentSequence, ASNs: []wire.ASN{65001}},
	}))
	attrs.Set(attribute.NextHop{IP: net.ParseIP("192.0.2.1")})
	u := Update{
		Announced:  []nlri.NLRI{nlri.NewInet(wire.IPv4Unicast, prefix("203.0.113.0/24"))},
		Attributes: attrs,
	}

	_, err := decodeUpdate(u.PackBody(nil), nil)
	require.Error(t, err)

	n, ok := err.(Notification)
	require.True(t, ok)
	assert.Equal(t, ErrUpdateMessage, n.Code)
	assert.Equal(t, SubErrMissingWellKnownAttribute, n.Subcode)
	assert.Equal(t, []byte{byte(attribute.CodeOrigin)}, n.Data, "the NOTIFICATION names the missing attribute")
}

func TestUpdateMissingNextHopIsSessionFatal(t *testing.T) {
	attrs := attribute.New()
	attrs.Set(attribute.Origin{Value: attribute.OriginIGP})
	attrs.Set(attribute.NewASPath([]attribute.Segment{
		{Type: attribute.SegmentSequence, ASNs: []wire.ASN{65001}},
	}))
	u := Update{
		Announced:  []nlri.NLRI{nlri.NewInet(wire.IPv4Unicast, prefix("203.0.113.0/24"))},
		Attributes: attrs,
	}

	_, err := decodeUpdate(u.PackBody(nil), nil)
	require.Error(t, err)

	n, ok := err.(Notification)
	require.True(t, ok)
	assert.Equal(t, ErrUpdateMessage, n.Code)
	assert.Equal(t, SubErrMissingWellKnownAttribute, n.Subcode)
	assert.Equal(t, []byte{byte(attribute.CodeNextHop)}, n.Data)
}

func TestUpdateMPReachAnnouncementNeedsNoTopLevelNextHop(t *testing.T) {
	attrs := attribute.New()
	attrs.Set(attribute.Origin{Value: attribute.OriginIGP})
	attrs.Set(attribute.NewASPath([]attribute.Segment{
		{Type: attribute.SegmentSequence, ASNs: []wire.ASN{65001}},
	}))
	attrs.Set(attribute.MPReachNLRI{
		Family:  wire.IPv6Unicast,
		NextHop: attribute.NextHopAddr{Global: net.ParseIP("2001:db8::1")},
		NLRIs:   []nlri.NLRI{nlri.NewInet(wire.IPv6Unicast, prefix("2001:db8:1::/48"))},
	})
	u := Update{Attributes: attrs}

	decoded, err := decodeUpdate(u.PackBody(nil), nil)
	require.NoError(t, err, "the next-hop lives inside MP_REACH_NLRI")
	require.Len(t, decoded.(Update).AllAnnounced(), 1)
}

func TestUpdateWithdrawalNeedsNoMandatoryAttributes(t *testing.T) {
	u := Update{
		Withdrawn: []nlri.NLRI{nlri.NewInet(wire.IPv4Unicast, prefix("198.51.100.0/24"))},
	}
	_, err := decodeUpdate(u.PackBody(nil), nil)
	assert.NoError(t, err)
}

func TestUpdateDuplicateWellKnownAttributeIsSessionFatal(t *testing.T) {
	// ORIGIN appearing twice. A well-known attribute's duplicate is not
	// recoverable: NOTIFY(3, 1) Malformed Attribute List.
	origin := []byte{attribute.FlagTransitive, byte(attribute.CodeOrigin), 1, 0}
	body := []byte{0, 0} // withdrawn routes length
	body = append(body, 0, byte(2*len(origin)))
	body = append(body, origin...)
	body = append(body, origin...)

	_, err := decodeUpdate(body, nil)
	require.Error(t, err)

	var n Notification
	require.ErrorAs(t, err, &n)
	assert.Equal(t, ErrUpdateMessage, n.Code)
	assert.Equal(t, SubErrMalformedAttributeList, n.Subcode)
}

func TestUpdateUnrecognizedWellKnownAttributeIsSessionFatal(t *testing.T) {
	// Code 200 is unregistered; flags without OPTIONAL claim well-known.
	unknown := []byte{attribute.FlagTransitive, 200, 1, 0}
	body := []byte{0, 0}
	body = append(body, 0, byte(len(unknown)))
	body = append(body, unknown...)

	_, err := decodeUpdate(body, nil)
	require.Error(t, err)

	var n Notification
	require.ErrorAs(t, err, &n)
	assert.Equal(t, ErrUpdateMessage, n.Code)
	assert.Equal(t, SubErrUnrecognizedWellKnownAttribute, n.Subcode)
	assert.Equal(t, []byte{200}, n.Data)
}

func TestUpdateUnknownOptionalAttributeRoundTripsAsOpaque(t *testing.T) {
	// The same unregistered code with OPTIONAL set is carried opaquely.
	unknown := []byte{attribute.FlagOptional | attribute.FlagTransitive, 200, 1, 0}
	body := []byte{0, 0}
	body = append(body, 0, byte(len(unknown)))
	body = append(body, unknown...)

	decoded, err := decodeUpdate(body, nil)
	require.NoError(t, err)
	assert.True(t, decoded.(Update).Attributes.Has(attribute.Code(200)))
}

func TestUpdateDuplicateOptionalAttributeIsTreatAsWithdraw(t *testing.T) {
	// MULTI_EXIT_DISC appearing twice: its RFC 7606 policy degrades the
	// UPDATE instead of resetting the session.
	med := []byte{attribute.FlagOptional, byte(attribute.CodeMultiExitDisc), 4, 0, 0, 0, 10}
	body := []byte{0, 0}
	body = append(body, 0, byte(2*len(med)))
	body = append(body, med...)
	body = append(body, med...)

	_, err := decodeUpdate(body, nil)
	require.Error(t, err)

	var attrErr *AttributeError
	require.ErrorAs(t, err, &attrErr)
	assert.True(t, attrErr.TreatAsWithdraw)
	assert.Equal(t, attribute.CodeMultiExitDisc, attrErr.Code)
}

func TestUpdateAllAnnouncedMergesMPReach(t *testing.T) {
	attrs := attribute.New()
	attrs.Set(attribute.MPReachNLRI{
		Family:  wire.IPv6Unicast,
		NextHop: attribute.NextHopAddr{Global: net.ParseIP("2001:db8::1")},
		NLRIs: []nlri.NLRI{
			nlri.NewInet(wire.IPv6Unicast, prefix("2001:db8:1::/48")),
		},
	})
	u := Update{
		Announced:  []nlri.NLRI{nlri.NewInet(wire.IPv4Unicast, prefix("10.0.0.0/8"))},
		Attributes: attrs,
	}

	all := u.AllAnnounced()
	require.Len(t, all, 2)
}

func TestHeaderRoundTrip(t *testing.T) {
	b := Pack(Keepalive{}, nil)
	assert.Len(t, b, HeaderLength)

	h, err := ReadHeader(b, capability.DefaultMaxMessageSize)
	require.NoError(t, err)
	assert.Equal(t, uint16(HeaderLength), h.Length)
	assert.Equal(t, TypeKeepalive, h.Type)
}

func TestReadHeaderRejectsBadMarker(t *testing.T) {
	b := Pack(Keepalive{}, nil)
	b[0] = 0x00
	_, err := ReadHeader(b, capability.DefaultMaxMessageSize)
	assert.Error(t, err)
}

func TestDecodeDispatchesByType(t *testing.T) {
	frame := Pack(Keepalive{}, nil)
	m, err := Decode(frame, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeKeepalive, m.Type())
}

func TestOpenRoundTrip(t *testing.T) {
	caps := capability.NewSet()
	caps.Add(capability.MultiProtocol{Family: wire.IPv4Unicast})
	caps.Add(capability.FourByteASN{ASN: 65550})

	o := Open{MyASN: 23456, HoldTime: 180, RouterID: 0xC0000201, Capabilities: caps}
	frame := Pack(o, nil)

	m, err := Decode(frame, nil)
	require.NoError(t, err)
	got, ok := m.(Open)
	require.True(t, ok)
	assert.Equal(t, uint16(180), got.HoldTime)
	assert.Equal(t, uint32(0xC0000201), got.RouterID)
	assert.True(t, got.Capabilities.Has(capability.CodeMultiProtocol))
	assert.True(t, got.Capabilities.Has(capability.CodeFourByteASN))
}

func TestOpenRejectsWrongVersion(t *testing.T) {
	body := []byte{5, 0, 0, 0, 180, 0, 0, 0, 0, 0}
	_, err := decodeOpen(body)
	require.Error(t, err)

	n, ok := err.(Notification)
	require.True(t, ok)
	assert.Equal(t, ErrOpenMessage, n.Code)
	assert.Equal(t, SubErrUnsupportedVersionNumber, n.Subcode)
}

func TestNotificationRoundTrip(t *testing.T) {
	n := NewNotification(ErrHoldTimerExpired, noSubcode)
	frame := Pack(n, nil)

	m, err := Decode(frame, nil)
	require.NoError(t, err)
	got := m.(Notification)
	assert.Equal(t, ErrHoldTimerExpired, got.Code)
	assert.Equal(t, "Hold Timer Expired", got.Error())
}

func TestNotificationIsGoError(t *testing.T) {
	var err error = NewNotification(ErrCease, SubErrAdministrativeShutdown)
	assert.Contains(t, err.Error(), "Cease")
}

func TestKeepaliveRoundTrip(t *testing.T) {
	frame := Pack(Keepalive{}, nil)
	assert.Equal(t, HeaderLength, len(frame))
	m, err := Decode(frame, nil)
	require.NoError(t, err)
	_, ok := m.(Keepalive)
	assert.True(t, ok)
}

func TestKeepaliveWireBytes(t *testing.T) {
	want := append(bytes.Repeat([]byte{0xFF}, 16), 0x00, 0x13, 0x04)
	assert.Equal(t, want, Pack(Keepalive{}, nil))
}

func TestUpdateHostRouteWireBytes(t *testing.T) {
	attrs := attribute.New()
	attrs.Set(attribute.Origin{Value: attribute.OriginIGP})
	attrs.Set(attribute.NewASPath([]attribute.Segment{
		{Type: attribute.SegmentSequence, ASNs: []wire.ASN{65000}},
	}))
	attrs.Set(attribute.NextHop{IP: net.ParseIP("10.0.0.254")})

	u := Update{
		Announced:  []nlri.NLRI{nlri.NewInet(wire.IPv4Unicast, prefix("10.0.0.1/32"))},
		Attributes: attrs,
	}

	body := u.PackBody(nil)
	// A /32 announcement encodes as the mask-length byte followed by the
	// four address bytes, at the tail of the message.
	assert.Equal(t, []byte{0x20, 0x0a, 0x00, 0x00, 0x01}, body[len(body)-5:])

	decoded, err := decodeUpdate(body, nil)
	require.NoError(t, err)
	got := decoded.(Update)
	require.Len(t, got.Announced, 1)
	assert.Equal(t, "10.0.0.1/32", got.Announced[0].Key())
	assert.Equal(t, body, got.PackBody(nil), "re-encoding a decoded message is byte-identical")
}

func TestRouteRefreshRoundTrip(t *testing.T) {
	r := RouteRefresh{Family: wire.IPv6Unicast, Subtype: RouteRefreshBoRR}
	frame := Pack(r, nil)

	m, err := Decode(frame, nil)
	require.NoError(t, err)
	got := m.(RouteRefresh)
	assert.Equal(t, wire.IPv6Unicast, got.Family)
	assert.Equal(t, RouteRefreshBoRR, got.Subtype)
}

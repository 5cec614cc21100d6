package attribute

import (
	"fmt"
	"net"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/nlri"
	"github.com/nexthop-labs/bgpd/wire"
)

// NextHopAddr holds an MP_REACH_NLRI next-hop: always a global address,
// plus an optional link-local address when the session advertised one
// under RFC 2545 §3's 32-byte IPv6 next-hop form.
type NextHopAddr struct {
	Global   net.IP
	LinkLocal net.IP // nil unless present
}

// MPReachNLRI is the optional non-transitive MP_REACH_NLRI attribute (RFC
// 4760 §3): the multiprotocol announcement vehicle for every family other
// than plain IPv4 unicast.
type MPReachNLRI struct {
	Family  wire.Family
	NextHop NextHopAddr
	NLRIs   []nlri.NLRI
}

func (MPReachNLRI) Code() Code  { return CodeMPReachNLRI }
func (MPReachNLRI) Flags() byte { return FlagOptional }

func (m MPReachNLRI) PackValue(n *capability.Negotiated) []byte {
	b := wire.PutUint16(nil, uint16(m.Family.AFI))
	b = append(b, byte(m.Family.SAFI))

	global := m.NextHop.Global
	if m.Family.AFI == wire.AFIIPv6 {
		if v6 := global.To16(); v6 != nil {
			global = v6
		}
	} else if v4 := global.To4(); v4 != nil {
		global = v4
	}
	if m.NextHop.LinkLocal != nil {
		b = append(b, byte(len(global)+16))
		b = append(b, global...)
		b = append(b, m.NextHop.LinkLocal.To16()...)
	} else {
		b = append(b, byte(len(global)))
		b = append(b, global...)
	}
	b = append(b, 0) // reserved

	for _, item := range m.NLRIs {
		b = append(b, nlri.Pack(item, n)...)
	}
	return b
}

func unpackMPReachNLRI(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("attribute: mp-reach: short read for header")
	}
	afiVal, err := wire.ReadUint16(data)
	if err != nil {
		return nil, fmt.Errorf("attribute: mp-reach: %w", err)
	}
	afi := wire.AFI(afiVal)
	safi := wire.SAFI(data[2])
	family := wire.Family{AFI: afi, SAFI: safi}
	nhLen := int(data[3])
	rest := data[4:]
	if len(rest) < nhLen {
		return nil, fmt.Errorf("attribute: mp-reach: next-hop length %d exceeds available %d", nhLen, len(rest))
	}
	nh := rest[:nhLen]
	rest = rest[nhLen:]

	var nextHop NextHopAddr
	switch {
	case afi == wire.AFIIPv6 && nhLen == 32:
		nextHop.Global = append(net.IP(nil), nh[:16]...)
		nextHop.LinkLocal = append(net.IP(nil), nh[16:]...)
	case afi == wire.AFIIPv6 && nhLen == 16:
		nextHop.Global = append(net.IP(nil), nh...)
	case nhLen == 4:
		nextHop.Global = append(net.IP(nil), nh...)
	default:
		nextHop.Global = append(net.IP(nil), nh...)
	}

	if len(rest) < 1 {
		return nil, fmt.Errorf("attribute: mp-reach: short read for reserved byte")
	}
	rest = rest[1:] // reserved

	items, err := nlri.UnpackAll(family, rest, wire.Announce, n)
	if err != nil {
		return nil, fmt.Errorf("attribute: mp-reach: %w", err)
	}
	return MPReachNLRI{Family: family, NextHop: nextHop, NLRIs: items}, nil
}

func init() {
	Register(CodeMPReachNLRI, true, unpackMPReachNLRI)
}

package nlri

import (
	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// Inet is a plain IPv4 or IPv6 (unicast or multicast) prefix: the
// CIDR-compressed encoding shared by these four families.
type Inet struct {
	family wire.Family
	Prefix wire.CIDR
}

// NewInet builds an Inet NLRI for family with the given prefix.
func NewInet(family wire.Family, prefix wire.CIDR) Inet {
	return Inet{family: family, Prefix: prefix}
}

func (i Inet) Family() wire.Family                  { return i.family }
func (i Inet) PathID() (uint32, bool)                { return 0, false }
func (i Inet) Key() string                           { return i.Prefix.String() }
func (i Inet) packBody(*capability.Negotiated) []byte { return i.Prefix.Pack(nil) }

func decodeInet(family wire.Family) Decoder {
	return func(data []byte, dir wire.Direction, n *capability.Negotiated) (NLRI, []byte, error) {
		cidr, rest, err := wire.ReadCIDR(data, family.AFI)
		if err != nil {
			return nil, nil, err
		}
		return Inet{family: family, Prefix: cidr}, rest, nil
	}
}

func init() {
	RegisterFamily(wire.IPv4Unicast, decodeInet(wire.IPv4Unicast))
	RegisterFamily(wire.IPv6Unicast, decodeInet(wire.IPv6Unicast))
	RegisterFamily(wire.IPv4Multicast, decodeInet(wire.IPv4Multicast))
	RegisterFamily(wire.IPv6Multicast, decodeInet(wire.IPv6Multicast))
}

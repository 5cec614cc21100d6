package nlri

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// Labeled is an MPLS-labelled unicast NLRI (RFC 3107): a label stack is
// prepended and the mask length is raised by 24 bits per label to account
// for it. A withdrawal carries the sentinel WithdrawLabel in place of a
// real label.
type Labeled struct {
	family wire.Family
	Labels wire.Labels
	Prefix wire.CIDR
}

func NewLabeled(family wire.Family, labels wire.Labels, prefix wire.CIDR) Labeled {
	return Labeled{family: family, Labels: labels, Prefix: prefix}
}

func (l Labeled) Family() wire.Family   { return l.family }
func (l Labeled) PathID() (uint32, bool) { return 0, false }
func (l Labeled) Key() string           { return fmt.Sprintf("%s[%v]", l.Prefix, l.Labels) }

func (l Labeled) packBody(*capability.Negotiated) []byte {
	labelBits := len(l.Labels) * 24
	b := []byte{byte(labelBits + l.Prefix.Length)}
	b = l.Labels.Pack(b)
	return l.Prefix.PackPrefixBits(b)
}

func decodeLabeled(family wire.Family) Decoder {
	return func(data []byte, dir wire.Direction, n *capability.Negotiated) (NLRI, []byte, error) {
		if len(data) < 1 {
			return nil, nil, fmt.Errorf("nlri: labelled unicast: short read for length")
		}
		totalBits := int(data[0])
		rest := data[1:]
		labels, labelBits, rest, err := wire.ReadLabels(rest, dir)
		if err != nil {
			return nil, nil, fmt.Errorf("nlri: labelled unicast: %w", err)
		}
		prefixBits := totalBits - labelBits
		cidr, rest, err := wire.ReadPrefixBits(rest, family.AFI, prefixBits)
		if err != nil {
			return nil, nil, fmt.Errorf("nlri: labelled unicast: %w", err)
		}
		return Labeled{family: family, Labels: labels, Prefix: cidr}, rest, nil
	}
}

func init() {
	RegisterFamily(wire.IPv4MPLS, decodeLabeled(wire.IPv4MPLS))
	RegisterFamily(wire.IPv6MPLS, decodeLabeled(wire.IPv6MPLS))
}

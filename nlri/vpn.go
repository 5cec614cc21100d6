package nlri

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// VPN is a VPNv4/VPNv6 NLRI (RFC 4364 §4.3.4.1): a label stack, an 8-byte
// Route Distinguisher, then the customer prefix, all folded into one mask
// length.
type VPN struct {
	family wire.Family
	Labels wire.Labels
	RD     wire.RD
	Prefix wire.CIDR
}

func NewVPN(family wire.Family, labels wire.Labels, rd wire.RD, prefix wire.CIDR) VPN {
	return VPN{family: family, Labels: labels, RD: rd, Prefix: prefix}
}

func (v VPN) Family() wire.Family    { return v.family }
func (v VPN) PathID() (uint32, bool) { return 0, false }
func (v VPN) Key() string            { return fmt.Sprintf("%s:%s[%v]", v.RD, v.Prefix, v.Labels) }

const rdBits = 8 * 8

func (v VPN) packBody(*capability.Negotiated) []byte {
	labelBits := len(v.Labels) * 24
	b := []byte{byte(labelBits + rdBits + v.Prefix.Length)}
	b = v.Labels.Pack(b)
	b = v.RD.Pack(b)
	return v.Prefix.PackPrefixBits(b)
}

func decodeVPN(family wire.Family) Decoder {
	return func(data []byte, dir wire.Direction, n *capability.Negotiated) (NLRI, []byte, error) {
		if len(data) < 1 {
			return nil, nil, fmt.Errorf("nlri: vpn: short read for length")
		}
		totalBits := int(data[0])
		rest := data[1:]
		labels, labelBits, rest, err := wire.ReadLabels(rest, dir)
		if err != nil {
			return nil, nil, fmt.Errorf("nlri: vpn: %w", err)
		}
		rd, rest, err := wire.ReadRD(rest)
		if err != nil {
			return nil, nil, fmt.Errorf("nlri: vpn: %w", err)
		}
		prefixBits := totalBits - labelBits - rdBits
		cidr, rest, err := wire.ReadPrefixBits(rest, family.AFI, prefixBits)
		if err != nil {
			return nil, nil, fmt.Errorf("nlri: vpn: %w", err)
		}
		return VPN{family: family, Labels: labels, RD: rd, Prefix: cidr}, rest, nil
	}
}

func init() {
	RegisterFamily(wire.VPNv4, decodeVPN(wire.VPNv4))
	RegisterFamily(wire.VPNv6, decodeVPN(wire.VPNv6))
}

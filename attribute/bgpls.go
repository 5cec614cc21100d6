package attribute

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// BGPLSTLVType names the node/link/prefix attribute TLVs this codec
// recognises by number without decomposing their value (RFC 7752 §3.3,
// RFC 9514 for SRv6 extensions).
const (
	BGPLSAttrIGPFlags       uint16 = 1152
	BGPLSAttrNodeFlags      uint16 = 1024
	BGPLSAttrNodeName       uint16 = 1026
	BGPLSAttrISISAreaID     uint16 = 1027
	BGPLSAttrLocalIPv4Addr  uint16 = 1028
	BGPLSAttrLocalIPv6Addr  uint16 = 1029
	BGPLSAttrRemoteIPv4Addr uint16 = 1030
	BGPLSAttrRemoteIPv6Addr uint16 = 1031
	BGPLSAttrAdminGroup     uint16 = 1088
	BGPLSAttrMaxLinkBW      uint16 = 1089
	BGPLSAttrMaxResvLinkBW  uint16 = 1090
	BGPLSAttrUnresvBW       uint16 = 1091
	BGPLSAttrTEDefaultMetric uint16 = 1092
	BGPLSAttrIGPMetric      uint16 = 1095
	BGPLSAttrPrefixMetric   uint16 = 1155
	BGPLSAttrSRv6EndXSID    uint16 = 1107
	BGPLSAttrSRv6LANEndXSID uint16 = 1108
)

// BGPLSTLV is one node/link/prefix attribute TLV. Values are kept as raw
// bytes: the registry decomposes the attribute envelope (type code,
// length, list framing) and leaves per-TLV interpretation to the caller,
// the same layering nlri.BGPLS uses for its descriptor tree.
type BGPLSTLV struct {
	Type  uint16
	Value []byte
}

func (t BGPLSTLV) pack(b []byte) []byte {
	b = wire.PutUint16(b, t.Type)
	b = wire.PutUint16(b, uint16(len(t.Value)))
	return append(b, t.Value...)
}

// BGPLS is the optional non-transitive BGP-LS attribute (RFC 7752 §3.3),
// carrying link-state and TE information about the node, link or prefix
// identified by the companion BGP-LS NLRI.
type BGPLS struct {
	TLVs []BGPLSTLV
}

func (BGPLS) Code() Code  { return CodeBGPLS }
func (BGPLS) Flags() byte { return FlagOptional }

func (b BGPLS) PackValue(*capability.Negotiated) []byte {
	var out []byte
	for _, t := range b.TLVs {
		out = t.pack(out)
	}
	return out
}

func unpackBGPLS(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
	var tlvs []BGPLSTLV
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, fmt.Errorf("attribute: bgp-ls: short read for TLV header")
		}
		t, err := wire.ReadUint16(data)
		if err != nil {
			return nil, fmt.Errorf("attribute: bgp-ls: %w", err)
		}
		length, err := wire.ReadUint16(data[2:])
		if err != nil {
			return nil, fmt.Errorf("attribute: bgp-ls: %w", err)
		}
		data = data[4:]
		if len(data) < int(length) {
			return nil, fmt.Errorf("attribute: bgp-ls: TLV %d declares length %d, only %d available", t, length, len(data))
		}
		tlvs = append(tlvs, BGPLSTLV{Type: t, Value: append([]byte(nil), data[:length]...)})
		data = data[length:]
	}
	return BGPLS{TLVs: tlvs}, nil
}

func init() {
	Register(CodeBGPLS, false, unpackBGPLS)
}

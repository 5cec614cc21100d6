package nlri

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// BGP-LS NLRI types (RFC 7752 §3.2, RFC 9514 §4 for the SRv6 SID type).
const (
	BGPLSNodeType     uint16 = 1
	BGPLSLinkType     uint16 = 2
	BGPLSIPv4Prefix   uint16 = 3
	BGPLSIPv6Prefix   uint16 = 4
	BGPLSSRv6SIDType  uint16 = 6
)

// BGP-LS protocol identifiers (RFC 7752 §3.2.1.1).
const (
	BGPLSProtoISISLevel1 byte = 1
	BGPLSProtoISISLevel2 byte = 2
	BGPLSProtoOSPFv2     byte = 3
	BGPLSProtoDirect     byte = 4
	BGPLSProtoStatic     byte = 5
	BGPLSProtoOSPFv3     byte = 6
	BGPLSProtoBGP        byte = 7
)

// Node/link/prefix/SRv6 descriptor TLV types (RFC 7752 §3.2.1, §3.2.2,
// §3.2.3, RFC 9514 §4.1). Each descriptor TLV's payload is kept opaque:
// the registry decomposes the outer NLRI and the descriptor TLV framing
// only, leaving deeper fields (IGP router-ID bytes, SRv6 SID itself) for
// the caller to interpret with the relevant RFC in hand.
const (
	BGPLSTLVLocalNodeDescriptor  uint16 = 256
	BGPLSTLVRemoteNodeDescriptor uint16 = 257
	BGPLSTLVLinkLocalRemoteID    uint16 = 258
	BGPLSTLVIPv4InterfaceAddr    uint16 = 259
	BGPLSTLVIPv4NeighborAddr     uint16 = 260
	BGPLSTLVIPv6InterfaceAddr    uint16 = 261
	BGPLSTLVIPv6NeighborAddr     uint16 = 262
	BGPLSTLVMultiTopologyID      uint16 = 263
	BGPLSTLVOSPFRouteType        uint16 = 264
	BGPLSTLVIPReachability       uint16 = 265
	BGPLSTLVAutonomousSystem     uint16 = 512
	BGPLSTLVBGPLSIdentifier      uint16 = 513
	BGPLSTLVOSPFAreaID           uint16 = 514
	BGPLSTLVIGPRouterID          uint16 = 515
	BGPLSTLVSRv6SIDInformation   uint16 = 518
)

// TLV is a generic BGP-LS descriptor TLV: a 2-byte type, 2-byte length and
// raw value.
type TLV struct {
	Type  uint16
	Value []byte
}

func (t TLV) pack(b []byte) []byte {
	b = wire.PutUint16(b, t.Type)
	b = wire.PutUint16(b, uint16(len(t.Value)))
	return append(b, t.Value...)
}

func readTLV(b []byte) (TLV, []byte, error) {
	if len(b) < 4 {
		return TLV{}, nil, fmt.Errorf("nlri: bgp-ls: short read for TLV header")
	}
	t, err := wire.ReadUint16(b)
	if err != nil {
		return TLV{}, nil, err
	}
	length, err := wire.ReadUint16(b[2:])
	if err != nil {
		return TLV{}, nil, err
	}
	b = b[4:]
	if len(b) < int(length) {
		return TLV{}, nil, fmt.Errorf("nlri: bgp-ls: TLV %d declares length %d, only %d available", t, length, len(b))
	}
	return TLV{Type: t, Value: append([]byte(nil), b[:length]...)}, b[length:], nil
}

func readTLVs(b []byte) ([]TLV, error) {
	var tlvs []TLV
	for len(b) > 0 {
		tlv, rest, err := readTLV(b)
		if err != nil {
			return nil, err
		}
		tlvs = append(tlvs, tlv)
		b = rest
	}
	return tlvs, nil
}

func packTLVs(b []byte, tlvs []TLV) []byte {
	for _, t := range tlvs {
		b = t.pack(b)
	}
	return b
}

// BGPLS is a BGP-LS NLRI (RFC 7752 §3.2): a node, link, prefix or (RFC 9514)
// SRv6 SID route, carried as a protocol/topology identifier plus a tree of
// descriptor TLVs.
type BGPLS struct {
	NLRIType    uint16
	ProtocolID  byte
	Identifier  uint64
	Descriptors []TLV
}

func (b BGPLS) Family() wire.Family    { return wire.BGPLS }
func (b BGPLS) PathID() (uint32, bool) { return 0, false }

func (b BGPLS) Key() string {
	return fmt.Sprintf("bgpls:%d:%d:%d:%x", b.NLRIType, b.ProtocolID, b.Identifier, packTLVs(nil, b.Descriptors))
}

func (b BGPLS) packBody(*capability.Negotiated) []byte {
	body := []byte{b.ProtocolID}
	body = append(body,
		byte(b.Identifier>>56), byte(b.Identifier>>48), byte(b.Identifier>>40), byte(b.Identifier>>32),
		byte(b.Identifier>>24), byte(b.Identifier>>16), byte(b.Identifier>>8), byte(b.Identifier))
	body = packTLVs(body, b.Descriptors)

	out := wire.PutUint16(nil, b.NLRIType)
	out = wire.PutUint16(out, uint16(len(body)))
	return append(out, body...)
}

func decodeBGPLS(data []byte, dir wire.Direction, n *capability.Negotiated) (NLRI, []byte, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("nlri: bgp-ls: short read for NLRI header")
	}
	nlriType, err := wire.ReadUint16(data)
	if err != nil {
		return nil, nil, err
	}
	length, err := wire.ReadUint16(data[2:])
	if err != nil {
		return nil, nil, err
	}
	rest := data[4:]
	if len(rest) < int(length) {
		return nil, nil, fmt.Errorf("nlri: bgp-ls: declared length %d exceeds available %d", length, len(rest))
	}
	body := rest[:length]
	tail := rest[length:]

	if len(body) < 9 {
		return nil, nil, fmt.Errorf("nlri: bgp-ls: short read for protocol-id/identifier")
	}
	protocolID := body[0]
	identifier := uint64(body[1])<<56 | uint64(body[2])<<48 | uint64(body[3])<<40 | uint64(body[4])<<32 |
		uint64(body[5])<<24 | uint64(body[6])<<16 | uint64(body[7])<<8 | uint64(body[8])
	descriptors, err := readTLVs(body[9:])
	if err != nil {
		return nil, nil, fmt.Errorf("nlri: bgp-ls: %w", err)
	}
	return BGPLS{NLRIType: nlriType, ProtocolID: protocolID, Identifier: identifier, Descriptors: descriptors}, tail, nil
}

func init() {
	RegisterFamily(wire.BGPLS, decodeBGPLS)
}

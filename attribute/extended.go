package attribute

import (
	"fmt"
	"math"
	"net"

	"github.com/nexthop-labs/bgpd/capability"
)

// Extended community type octets (RFC 4360 §3, RFC 5575 §7 for the
// Flow-Spec actions).
const (
	ExtTypeTwoOctetAS   byte = 0x00
	ExtTypeIPv4Address  byte = 0x01
	ExtTypeFourOctetAS  byte = 0x02
	ExtTypeOpaque       byte = 0x03
	ExtTypeFlowSpec     byte = 0x80
)

// Extended community sub-types this codec names explicitly.
const (
	ExtSubRouteTarget          byte = 0x02
	ExtSubRouteOrigin          byte = 0x03
	ExtSubEncapsulation        byte = 0x0c
	ExtSubFlowSpecTrafficRate  byte = 0x06
	ExtSubFlowSpecTrafficAction byte = 0x07
	ExtSubFlowSpecRedirectAS   byte = 0x08
	ExtSubFlowSpecTrafficMarking byte = 0x09
	ExtSubFlowSpecRedirectIPv4 byte = 0x00
)

// ExtendedCommunity is one 8-byte (type, sub-type, 6-byte value) tuple.
type ExtendedCommunity struct {
	Type    byte
	SubType byte
	Value   [6]byte
}

func (e ExtendedCommunity) pack(b []byte) []byte {
	return append(append(b, e.Type, e.SubType), e.Value[:]...)
}

// NewRouteTarget2Byte builds a Type-0 (2-byte ASN : 4-byte number) Route
// Target community (RFC 4360 §4).
func NewRouteTarget2Byte(asn uint16, number uint32) ExtendedCommunity {
	var v [6]byte
	v[0], v[1] = byte(asn>>8), byte(asn)
	v[2], v[3], v[4], v[5] = byte(number>>24), byte(number>>16), byte(number>>8), byte(number)
	return ExtendedCommunity{Type: ExtTypeTwoOctetAS, SubType: ExtSubRouteTarget, Value: v}
}

// NewRouteTarget4Byte builds a Type-2 (4-byte ASN : 2-byte number) Route
// Target community.
func NewRouteTarget4Byte(asn uint32, number uint16) ExtendedCommunity {
	var v [6]byte
	v[0], v[1], v[2], v[3] = byte(asn>>24), byte(asn>>16), byte(asn>>8), byte(asn)
	v[4], v[5] = byte(number>>8), byte(number)
	return ExtendedCommunity{Type: ExtTypeFourOctetAS, SubType: ExtSubRouteTarget, Value: v}
}

// NewRouteTargetIPv4 builds a Type-1 (IPv4 address : 2-byte number) Route
// Target community.
func NewRouteTargetIPv4(ip net.IP, number uint16) ExtendedCommunity {
	var v [6]byte
	copy(v[:4], ip.To4())
	v[4], v[5] = byte(number>>8), byte(number)
	return ExtendedCommunity{Type: ExtTypeIPv4Address, SubType: ExtSubRouteTarget, Value: v}
}

// NewEncapsulation builds an Encapsulation extended community (RFC 5512
// §4.5) identifying the tunnel type used to reach the NLRI's next-hop.
func NewEncapsulation(tunnelType uint16) ExtendedCommunity {
	var v [6]byte
	v[4], v[5] = byte(tunnelType>>8), byte(tunnelType)
	return ExtendedCommunity{Type: ExtTypeOpaque, SubType: ExtSubEncapsulation, Value: v}
}

// NewFlowSpecTrafficRate builds the Flow-Spec traffic-rate action (RFC
// 5575 §7.1): rate-limit to rate bytes/sec, attributed to asn for
// accounting.
func NewFlowSpecTrafficRate(asn uint16, rate float32) ExtendedCommunity {
	var v [6]byte
	v[0], v[1] = byte(asn>>8), byte(asn)
	bits := math.Float32bits(rate)
	v[2], v[3], v[4], v[5] = byte(bits>>24), byte(bits>>16), byte(bits>>8), byte(bits)
	return ExtendedCommunity{Type: ExtTypeFlowSpec, SubType: ExtSubFlowSpecTrafficRate, Value: v}
}

// NewFlowSpecRedirectAS builds the Flow-Spec traffic-redirect action (RFC
// 5575 §7.3), redirecting matching traffic into the VRF importing this
// Route Target.
func NewFlowSpecRedirectAS(asn uint16, number uint32) ExtendedCommunity {
	c := NewRouteTarget2Byte(asn, number)
	c.Type = ExtTypeFlowSpec
	c.SubType = ExtSubFlowSpecRedirectAS
	return c
}

// NewFlowSpecTrafficMarking builds the Flow-Spec traffic-marking action
// (RFC 5575 §7.4): rewrite the DSCP field of matching packets.
func NewFlowSpecTrafficMarking(dscp byte) ExtendedCommunity {
	var v [6]byte
	v[5] = dscp & 0x3F
	return ExtendedCommunity{Type: ExtTypeFlowSpec, SubType: ExtSubFlowSpecTrafficMarking, Value: v}
}

// ExtendedCommunities is the optional transitive EXTENDED_COMMUNITIES
// attribute.
type ExtendedCommunities struct {
	Values []ExtendedCommunity
}

func (ExtendedCommunities) Code() Code  { return CodeExtendedCommunities }
func (ExtendedCommunities) Flags() byte { return FlagOptional | FlagTransitive }

func (e ExtendedCommunities) PackValue(*capability.Negotiated) []byte {
	var b []byte
	for _, v := range e.Values {
		b = v.pack(b)
	}
	return b
}

func unpackExtendedCommunities(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("attribute: extended-communities: length %d not a multiple of 8", len(data))
	}
	values := make([]ExtendedCommunity, 0, len(data)/8)
	for len(data) > 0 {
		var v ExtendedCommunity
		v.Type = data[0]
		v.SubType = data[1]
		copy(v.Value[:], data[2:8])
		values = append(values, v)
		data = data[8:]
	}
	return ExtendedCommunities{Values: values}, nil
}

func init() {
	Register(CodeExtendedCommunities, true, unpackExtendedCommunities)
}

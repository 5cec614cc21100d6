package nlri

import (
	"fmt"
	"sort"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// Flow-Spec component types (RFC 5575 §4, plus the IPv6 flow-label
// extension carried under the same registry).
const (
	FSDestinationPrefix byte = 1
	FSSourcePrefix      byte = 2
	FSIPProtocol        byte = 3
	FSPort              byte = 4
	FSDestinationPort   byte = 5
	FSSourcePort        byte = 6
	FSICMPType          byte = 7
	FSICMPCode          byte = 8
	FSTCPFlags          byte = 9
	FSPacketLength      byte = 10
	FSDSCP              byte = 11
	FSFragment          byte = 12
	FSFlowLabel         byte = 13
)

// numeric operator bits (RFC 5575 §4.2.1), low three bits of the op byte.
const (
	opLT = 0x04
	opGT = 0x02
	opEQ = 0x01
)

// bitmask operator bits (RFC 5575 §4.2.2), low two bits of the op byte.
const (
	opNot   = 0x02
	opMatch = 0x01
)

const (
	opEOL = 0x80
	opAnd = 0x40
)

// NumericOp is one {operator, value} pair in a numeric component's value
// list (ip-protocol, port family, icmp, packet-length, dscp, flow-label).
type NumericOp struct {
	And         bool
	LT, GT, EQ  bool
	Value       uint64
}

// BitmaskOp is one {operator, value} pair in a bitmask component's value
// list (tcp-flags, fragment).
type BitmaskOp struct {
	And        bool
	Not, Match bool
	Value      uint64
}

// Component is one ordered predicate inside a Flow-Spec rule.
type Component struct {
	Type     byte
	Prefix   *wire.CIDR // destination/source prefix components
	Offset   byte       // IPv6 prefix components only (RFC 8956 §4.2)
	Numeric  []NumericOp
	Bitmask  []BitmaskOp
}

func isPrefixType(t byte) bool { return t == FSDestinationPrefix || t == FSSourcePrefix }
func isBitmaskType(t byte) bool { return t == FSTCPFlags || t == FSFragment }

func valueLen(v uint64) int {
	switch {
	case v <= 0xFF:
		return 1
	case v <= 0xFFFF:
		return 2
	case v <= 0xFFFFFFFF:
		return 4
	default:
		return 8
	}
}

func lenBits(n int) byte {
	switch n {
	case 1:
		return 0
	case 2:
		return 1
	case 4:
		return 2
	default:
		return 3
	}
}

func bitsToLen(b byte) int {
	switch b {
	case 0:
		return 1
	case 1:
		return 2
	case 2:
		return 4
	default:
		return 8
	}
}

func packValue(b []byte, v uint64, n int) []byte {
	for i := n - 1; i >= 0; i-- {
		b = append(b, byte(v>>(uint(i)*8)))
	}
	return b
}

func readValue(b []byte, n int) (uint64, []byte, error) {
	if len(b) < n {
		return 0, nil, fmt.Errorf("nlri: flow-spec: short read for %d-byte operator value", n)
	}
	var v uint64
	for i := 0; i < n; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v, b[n:], nil
}

func packComponent(c Component) []byte {
	b := []byte{c.Type}
	switch {
	case isPrefixType(c.Type):
		if c.Prefix == nil {
			return b
		}
		b = append(b, byte(c.Prefix.Length))
		if c.Prefix.IP.AFI == wire.AFIIPv6 {
			b = append(b, c.Offset)
		}
		b = c.Prefix.PackPrefixBits(b)
	case isBitmaskType(c.Type):
		for i, op := range c.Bitmask {
			n := valueLen(op.Value)
			opByte := lenBits(n) << 4
			if op.And {
				opByte |= opAnd
			}
			if op.Not {
				opByte |= opNot
			}
			if op.Match {
				opByte |= opMatch
			}
			if i == len(c.Bitmask)-1 {
				opByte |= opEOL
			}
			b = append(b, opByte)
			b = packValue(b, op.Value, n)
		}
	default:
		for i, op := range c.Numeric {
			n := valueLen(op.Value)
			opByte := lenBits(n) << 4
			if op.And {
				opByte |= opAnd
			}
			if op.LT {
				opByte |= opLT
			}
			if op.GT {
				opByte |= opGT
			}
			if op.EQ {
				opByte |= opEQ
			}
			if i == len(c.Numeric)-1 {
				opByte |= opEOL
			}
			b = append(b, opByte)
			b = packValue(b, op.Value, n)
		}
	}
	return b
}

func readComponent(data []byte, afi wire.AFI) (Component, []byte, error) {
	if len(data) < 1 {
		return Component{}, nil, fmt.Errorf("nlri: flow-spec: short read for component type")
	}
	t := data[0]
	rest := data[1:]
	c := Component{Type: t}
	switch {
	case isPrefixType(t):
		if len(rest) < 1 {
			return Component{}, nil, fmt.Errorf("nlri: flow-spec: short read for prefix length")
		}
		length := int(rest[0])
		rest = rest[1:]
		if afi == wire.AFIIPv6 {
			if len(rest) < 1 {
				return Component{}, nil, fmt.Errorf("nlri: flow-spec: short read for ipv6 offset")
			}
			c.Offset = rest[0]
			rest = rest[1:]
		}
		cidr, next, err := wire.ReadPrefixBits(rest, afi, length)
		if err != nil {
			return Component{}, nil, fmt.Errorf("nlri: flow-spec prefix: %w", err)
		}
		c.Prefix = &cidr
		rest = next
	case isBitmaskType(t):
		for {
			if len(rest) < 1 {
				return Component{}, nil, fmt.Errorf("nlri: flow-spec: short read for operator")
			}
			opByte := rest[0]
			rest = rest[1:]
			n := bitsToLen((opByte & 0x30) >> 4)
			var v uint64
			var err error
			v, rest, err = readValue(rest, n)
			if err != nil {
				return Component{}, nil, err
			}
			c.Bitmask = append(c.Bitmask, BitmaskOp{
				And:   opByte&opAnd != 0,
				Not:   opByte&opNot != 0,
				Match: opByte&opMatch != 0,
				Value: v,
			})
			if opByte&opEOL != 0 {
				break
			}
		}
	default:
		for {
			if len(rest) < 1 {
				return Component{}, nil, fmt.Errorf("nlri: flow-spec: short read for operator")
			}
			opByte := rest[0]
			rest = rest[1:]
			n := bitsToLen((opByte & 0x30) >> 4)
			var v uint64
			var err error
			v, rest, err = readValue(rest, n)
			if err != nil {
				return Component{}, nil, err
			}
			c.Numeric = append(c.Numeric, NumericOp{
				And: opByte&opAnd != 0,
				LT:  opByte&opLT != 0,
				GT:  opByte&opGT != 0,
				EQ:  opByte&opEQ != 0,
				Value: v,
			})
			if opByte&opEOL != 0 {
				break
			}
		}
	}
	return c, rest, nil
}

// FlowSpec is a Flow-Spec rule (RFC 5575/8956): an ordered, ascending-type
// list of components, used both for traffic filtering and for BGP
// Flow-Spec DDoS redirection.
type FlowSpec struct {
	family     wire.Family
	Components []Component
}

// NewFlowSpec builds a rule, sorting components into the ascending type
// order the wire format and RFC both require.
func NewFlowSpec(family wire.Family, components []Component) FlowSpec {
	sorted := append([]Component(nil), components...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Type < sorted[j].Type })
	return FlowSpec{family: family, Components: sorted}
}

func (f FlowSpec) Family() wire.Family    { return f.family }
func (f FlowSpec) PathID() (uint32, bool) { return 0, false }

func (f FlowSpec) Key() string {
	return fmt.Sprintf("flow-spec:%x", f.packComponents())
}

func (f FlowSpec) packComponents() []byte {
	var b []byte
	for _, c := range f.Components {
		b = append(b, packComponent(c)...)
	}
	return b
}

func (f FlowSpec) packBody(*capability.Negotiated) []byte {
	components := f.packComponents()
	var b []byte
	if len(components) < 240 {
		b = append(b, byte(len(components)))
	} else {
		v := uint16(0xF000) | uint16(len(components))
		b = wire.PutUint16(b, v)
	}
	return append(b, components...)
}

func decodeFlowSpec(family wire.Family) Decoder {
	return func(data []byte, dir wire.Direction, n *capability.Negotiated) (NLRI, []byte, error) {
		if len(data) < 1 {
			return nil, nil, fmt.Errorf("nlri: flow-spec: short read for length")
		}
		var length int
		var rest []byte
		if data[0]&0xF0 == 0xF0 {
			v, err := wire.ReadUint16(data)
			if err != nil {
				return nil, nil, fmt.Errorf("nlri: flow-spec: %w", err)
			}
			length = int(v & 0x0FFF)
			rest = data[2:]
		} else {
			length = int(data[0])
			rest = data[1:]
		}
		if len(rest) < length {
			return nil, nil, fmt.Errorf("nlri: flow-spec: declared length %d exceeds available %d", length, len(rest))
		}
		body := rest[:length]
		tail := rest[length:]
		var components []Component
		for len(body) > 0 {
			c, next, err := readComponent(body, family.AFI)
			if err != nil {
				return nil, nil, err
			}
			components = append(components, c)
			body = next
		}
		return FlowSpec{family: family, Components: components}, tail, nil
	}
}

func init() {
	RegisterFamily(wire.FlowSpecIPv4, decodeFlowSpec(wire.FlowSpecIPv4))
	RegisterFamily(wire.FlowSpecIPv6, decodeFlowSpec(wire.FlowSpecIPv6))
}

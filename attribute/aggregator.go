package attribute

import (
	"fmt"
	"net"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// Aggregator is the optional transitive AGGREGATOR attribute: the ASN and
// router-ID of the speaker that performed route aggregation. AS4_AGGREGATOR
// carries the same fields with a four-byte ASN and is, like AS4_PATH,
// suppressed once ASN4 is negotiated on both sides.
type Aggregator struct {
	code Code
	ASN  wire.ASN
	IP   net.IP
}

// NewAggregator builds an AGGREGATOR attribute.
func NewAggregator(asn wire.ASN, ip net.IP) Aggregator {
	return Aggregator{code: CodeAggregator, ASN: asn, IP: ip}
}

// NewAS4Aggregator builds an AS4_AGGREGATOR attribute.
func NewAS4Aggregator(asn wire.ASN, ip net.IP) Aggregator {
	return Aggregator{code: CodeAS4Aggregator, ASN: asn, IP: ip}
}

func (a Aggregator) Code() Code  { return a.code }
func (a Aggregator) Flags() byte { return FlagOptional | FlagTransitive }

func (a Aggregator) PackValue(n *capability.Negotiated) []byte {
	asn4 := a.code == CodeAS4Aggregator || (n != nil && n.ASN4)
	var b []byte
	if asn4 {
		b = wire.PutASN4(b, a.ASN)
	} else {
		b = wire.PutASN2(b, a.ASN)
	}
	v4 := a.IP.To4()
	if v4 == nil {
		v4 = net.IPv4zero.To4()
	}
	return append(b, v4...)
}

func unpackAggregator(code Code, asn4 bool) unpacker {
	return func(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
		var asn wire.ASN
		var err error
		var rest []byte
		if asn4 {
			asn, err = wire.ReadASN4(data)
			rest = data[4:]
		} else {
			asn, err = wire.ReadASN2(data)
			rest = data[2:]
		}
		if err != nil {
			return nil, fmt.Errorf("attribute: aggregator: %w", err)
		}
		if len(rest) != 4 {
			return nil, fmt.Errorf("attribute: aggregator: expected 4-byte router-id, got %d", len(rest))
		}
		ip := make(net.IP, 4)
		copy(ip, rest)
		return Aggregator{code: code, ASN: asn, IP: ip}, nil
	}
}

func init() {
	Register(CodeAggregator, true, func(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
		asn4 := n != nil && n.ASN4
		return unpackAggregator(CodeAggregator, asn4)(flags, data, n)
	})
	Register(CodeAS4Aggregator, true, unpackAggregator(CodeAS4Aggregator, true))
}

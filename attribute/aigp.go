package attribute

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// aigpTLVType is the single TLV type AIGP currently defines (RFC 7311
// §3).
const aigpTLVType byte = 1

// AIGP is the optional non-transitive Accumulated IGP Metric attribute
// (RFC 7311), carried as a single AIGP TLV (type 1); a value whose TLV is
// of any other type is rejected on decode.
type AIGP struct {
	Metric uint64
}

func (AIGP) Code() Code  { return CodeAIGP }
func (AIGP) Flags() byte { return FlagOptional }

func (a AIGP) PackValue(*capability.Negotiated) []byte {
	b := []byte{aigpTLVType, 0, 11}
	v := a.Metric
	for i := 7; i >= 0; i-- {
		b = append(b, byte(v>>(uint(i)*8)))
	}
	return b
}

func unpackAIGP(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("attribute: aigp: short read for TLV header")
	}
	if data[0] != aigpTLVType {
		return nil, fmt.Errorf("attribute: aigp: unsupported TLV type %d", data[0])
	}
	length, err := wire.ReadUint16(data[1:])
	if err != nil {
		return nil, fmt.Errorf("attribute: aigp: %w", err)
	}
	value := data[3:]
	if len(value) != int(length)-3 || len(value) != 8 {
		return nil, fmt.Errorf("attribute: aigp: unexpected metric length %d", len(value))
	}
	var metric uint64
	for _, b := range value {
		metric = metric<<8 | uint64(b)
	}
	return AIGP{Metric: metric}, nil
}

func init() {
	Register(CodeAIGP, false, unpackAIGP)
}

package attribute

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// LargeCommunity is a 12-byte (global-admin, local1, local2) tuple (RFC
// 8092 §2).
type LargeCommunity struct {
	GlobalAdmin uint32
	Local1      uint32
	Local2      uint32
}

// LargeCommunities is the optional transitive LARGE_COMMUNITIES attribute.
type LargeCommunities struct {
	Values []LargeCommunity
}

func (LargeCommunities) Code() Code  { return CodeLargeCommunities }
func (LargeCommunities) Flags() byte { return FlagOptional | FlagTransitive }

func (l LargeCommunities) PackValue(*capability.Negotiated) []byte {
	var b []byte
	for _, v := range l.Values {
		b = wire.PutUint32(b, v.GlobalAdmin)
		b = wire.PutUint32(b, v.Local1)
		b = wire.PutUint32(b, v.Local2)
	}
	return b
}

func unpackLargeCommunities(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
	if len(data)%12 != 0 {
		return nil, fmt.Errorf("attribute: large-communities: length %d not a multiple of 12", len(data))
	}
	values := make([]LargeCommunity, 0, len(data)/12)
	for len(data) > 0 {
		ga, err := wire.ReadUint32(data)
		if err != nil {
			return nil, fmt.Errorf("attribute: large-communities: %w", err)
		}
		l1, err := wire.ReadUint32(data[4:])
		if err != nil {
			return nil, fmt.Errorf("attribute: large-communities: %w", err)
		}
		l2, err := wire.ReadUint32(data[8:])
		if err != nil {
			return nil, fmt.Errorf("attribute: large-communities: %w", err)
		}
		values = append(values, LargeCommunity{GlobalAdmin: ga, Local1: l1, Local2: l2})
		data = data[12:]
	}
	return LargeCommunities{Values: values}, nil
}

func init() {
	Register(CodeLargeCommunities, true, unpackLargeCommunities)
}

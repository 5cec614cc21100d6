package attribute

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// Well-known community values (RFC 1997 §4).
const (
	CommunityNoExport        uint32 = 0xFFFFFF01
	CommunityNoAdvertise     uint32 = 0xFFFFFF02
	CommunityNoExportSubconfed uint32 = 0xFFFFFF03
)

// Communities is the optional transitive COMMUNITIES attribute: an
// unordered list of 4-byte (ASN:value) tags.
type Communities struct {
	Values []uint32
}

func (Communities) Code() Code  { return CodeCommunities }
func (Communities) Flags() byte { return FlagOptional | FlagTransitive }

func (c Communities) PackValue(*capability.Negotiated) []byte {
	var b []byte
	for _, v := range c.Values {
		b = wire.PutUint32(b, v)
	}
	return b
}

func (c Communities) String() string {
	return fmt.Sprintf("communities(%d)", len(c.Values))
}

func unpackCommunities(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("attribute: communities: length %d not a multiple of 4", len(data))
	}
	values := make([]uint32, 0, len(data)/4)
	for len(data) > 0 {
		v, err := wire.ReadUint32(data)
		if err != nil {
			return nil, fmt.Errorf("attribute: communities: %w", err)
		}
		values = append(values, v)
		data = data[4:]
	}
	return Communities{Values: values}, nil
}

func init() {
	Register(CodeCommunities, true, unpackCommunities)
}

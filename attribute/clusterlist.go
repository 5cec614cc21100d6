package attribute

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// ClusterList is the optional non-transitive CLUSTER_LIST attribute: the
// reflection path a route has travelled, used for loop detection between
// route reflectors (RFC 4456 §8).
type ClusterList struct {
	ClusterIDs []uint32
}

func (ClusterList) Code() Code  { return CodeClusterList }
func (ClusterList) Flags() byte { return FlagOptional }

func (c ClusterList) PackValue(*capability.Negotiated) []byte {
	var b []byte
	for _, id := range c.ClusterIDs {
		b = wire.PutUint32(b, id)
	}
	return b
}

func unpackClusterList(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("attribute: cluster-list: length %d not a multiple of 4", len(data))
	}
	ids := make([]uint32, 0, len(data)/4)
	for len(data) > 0 {
		v, err := wire.ReadUint32(data)
		if err != nil {
			return nil, fmt.Errorf("attribute: cluster-list: %w", err)
		}
		ids = append(ids, v)
		data = data[4:]
	}
	return ClusterList{ClusterIDs: ids}, nil
}

func init() {
	Register(CodeClusterList, true, unpackClusterList)
}

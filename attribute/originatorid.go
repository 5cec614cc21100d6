package attribute

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// OriginatorID is the optional non-transitive ORIGINATOR_ID attribute,
// added by the first route-reflector to process a route (RFC 4456 §8).
type OriginatorID struct {
	RouterID uint32
}

func (OriginatorID) Code() Code  { return CodeOriginatorID }
func (OriginatorID) Flags() byte { return FlagOptional }

func (o OriginatorID) PackValue(*capability.Negotiated) []byte {
	return wire.PutUint32(nil, o.RouterID)
}

func unpackOriginatorID(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
	v, err := wire.ReadUint32(data)
	if err != nil {
		return nil, fmt.Errorf("attribute: originator-id: %w", err)
	}
	return OriginatorID{RouterID: v}, nil
}

func init() {
	Register(CodeOriginatorID, true, unpackOriginatorID)
}

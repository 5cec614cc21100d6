package attribute

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// MED is the optional non-transitive MULTI_EXIT_DISC attribute.
type MED struct {
	Value uint32
}

func (MED) Code() Code  { return CodeMultiExitDisc }
func (MED) Flags() byte { return FlagOptional }

func (m MED) PackValue(*capability.Negotiated) []byte {
	return wire.PutUint32(nil, m.Value)
}

func unpackMED(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
	v, err := wire.ReadUint32(data)
	if err != nil {
		return nil, fmt.Errorf("attribute: med: %w", err)
	}
	return MED{Value: v}, nil
}

func init() {
	Register(CodeMultiExitDisc, true, unpackMED)
}

package attribute

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
)

// AtomicAggregate is the well-known, zero-length ATOMIC_AGGREGATE
// attribute: a marker that a less-specific route was selected over a
// more-specific one during aggregation (RFC 4271 §5.1.6).
type AtomicAggregate struct{}

func (AtomicAggregate) Code() Code                                { return CodeAtomicAggregate }
func (AtomicAggregate) Flags() byte                               { return FlagTransitive }
func (AtomicAggregate) PackValue(*capability.Negotiated) []byte   { return nil }

func unpackAtomicAggregate(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
	if len(data) != 0 {
		return nil, fmt.Errorf("attribute: atomic-aggregate: expected 0 bytes, got %d", len(data))
	}
	return AtomicAggregate{}, nil
}

func init() {
	Register(CodeAtomicAggregate, false, unpackAtomicAggregate)
}

package attribute

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/nlri"
	"github.com/nexthop-labs/bgpd/wire"
)

// MPUnreachNLRI is the optional non-transitive MP_UNREACH_NLRI attribute
// (RFC 4760 §4): the multiprotocol withdrawal vehicle. An UPDATE carrying
// only this attribute and no NLRI is the per-family End-of-RIB marker
// (RFC 4724 §2).
type MPUnreachNLRI struct {
	Family wire.Family
	NLRIs  []nlri.NLRI
}

func (MPUnreachNLRI) Code() Code  { return CodeMPUnreachNLRI }
func (MPUnreachNLRI) Flags() byte { return FlagOptional }

// IsEndOfRIB reports whether this is the End-of-RIB marker for its family:
// MP_UNREACH_NLRI present with zero withdrawn routes.
func (m MPUnreachNLRI) IsEndOfRIB() bool { return len(m.NLRIs) == 0 }

func (m MPUnreachNLRI) PackValue(n *capability.Negotiated) []byte {
	b := wire.PutUint16(nil, uint16(m.Family.AFI))
	b = append(b, byte(m.Family.SAFI))
	for _, item := range m.NLRIs {
		b = append(b, nlri.Pack(item, n)...)
	}
	return b
}

func unpackMPUnreachNLRI(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
	if len(data) < 3 {
		return nil, fmt.Errorf("attribute: mp-unreach: short read for header")
	}
	afiVal, err := wire.ReadUint16(data)
	if err != nil {
		return nil, fmt.Errorf("attribute: mp-unreach: %w", err)
	}
	family := wire.Family{AFI: wire.AFI(afiVal), SAFI: wire.SAFI(data[2])}
	rest := data[3:]

	items, err := nlri.UnpackAll(family, rest, wire.Withdraw, n)
	if err != nil {
		return nil, fmt.Errorf("attribute: mp-unreach: %w", err)
	}
	return MPUnreachNLRI{Family: family, NLRIs: items}, nil
}

func init() {
	Register(CodeMPUnreachNLRI, true, unpackMPUnreachNLRI)
}

package nlri

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// MUP is a BGP Mobile User Plane NLRI (draft-ietf-bess-bgp-mup-safi): an
// architecture type, a route type and an architecture-specific value. Only
// the envelope is decomposed here; the value is kept opaque since its
// layout is architecture-defined (3GPP 5G, EPC, fixed broadband...).
type MUP struct {
	ArchitectureType byte
	RouteType        uint16
	Value            []byte
}

func (m MUP) Family() wire.Family    { return wire.MUPFamily }
func (m MUP) PathID() (uint32, bool) { return 0, false }
func (m MUP) Key() string {
	return fmt.Sprintf("mup:%d:%d:%x", m.ArchitectureType, m.RouteType, m.Value)
}

func (m MUP) packBody(*capability.Negotiated) []byte {
	b := []byte{m.ArchitectureType}
	b = wire.PutUint16(b, m.RouteType)
	b = append(b, byte(len(m.Value)))
	return append(b, m.Value...)
}

func decodeMUP(data []byte, dir wire.Direction, n *capability.Negotiated) (NLRI, []byte, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("nlri: mup: short read for envelope")
	}
	archType := data[0]
	routeType, err := wire.ReadUint16(data[1:])
	if err != nil {
		return nil, nil, fmt.Errorf("nlri: mup: route type: %w", err)
	}
	length := int(data[3])
	rest := data[4:]
	if len(rest) < length {
		return nil, nil, fmt.Errorf("nlri: mup: declared length %d exceeds available %d", length, len(rest))
	}
	value := append([]byte(nil), rest[:length]...)
	return MUP{ArchitectureType: archType, RouteType: routeType, Value: value}, rest[length:], nil
}

func init() {
	RegisterFamily(wire.MUPFamily, decodeMUP)
}

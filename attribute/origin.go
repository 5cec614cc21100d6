package attribute

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
)

// OriginValue is the well-known ORIGIN attribute's single byte (RFC 4271
// §5.1.1).
type OriginValue byte

const (
	OriginIGP        OriginValue = 0
	OriginEGP        OriginValue = 1
	OriginIncomplete OriginValue = 2
)

func (o OriginValue) String() string {
	switch o {
	case OriginIGP:
		return "IGP"
	case OriginEGP:
		return "EGP"
	case OriginIncomplete:
		return "INCOMPLETE"
	default:
		return fmt.Sprintf("unknown(%d)", byte(o))
	}
}

// Origin is the well-known mandatory ORIGIN attribute.
type Origin struct {
	Value OriginValue
}

func (Origin) Code() Code                                   { return CodeOrigin }
func (Origin) Flags() byte                                  { return FlagTransitive }
func (o Origin) PackValue(*capability.Negotiated) []byte    { return []byte{byte(o.Value)} }

func unpackOrigin(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
	if len(data) != 1 {
		return nil, fmt.Errorf("attribute: origin: expected 1 byte, got %d", len(data))
	}
	return Origin{Value: OriginValue(data[0])}, nil
}

func init() {
	Register(CodeOrigin, false, unpackOrigin)
}

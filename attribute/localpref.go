package attribute

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// LocalPref is the well-known LOCAL_PREF attribute, sent only between IBGP
// peers (RFC 4271 §5.1.5).
type LocalPref struct {
	Value uint32
}

func (LocalPref) Code() Code  { return CodeLocalPref }
func (LocalPref) Flags() byte { return FlagTransitive }

func (l LocalPref) PackValue(*capability.Negotiated) []byte {
	return wire.PutUint32(nil, l.Value)
}

func unpackLocalPref(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
	v, err := wire.ReadUint32(data)
	if err != nil {
		return nil, fmt.Errorf("attribute: local-pref: %w", err)
	}
	return LocalPref{Value: v}, nil
}

func init() {
	Register(CodeLocalPref, false, unpackLocalPref)
}

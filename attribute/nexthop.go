package attribute

import (
	"fmt"
	"net"

	"github.com/nexthop-labs/bgpd/capability"
)

// NextHop is the well-known mandatory NEXT_HOP attribute: the IPv4 address
// of the border router to use for the carried NLRI. Non-IPv4-unicast
// families use MP_REACH_NLRI's own next-hop field instead (see
// mpreach.go) and never carry this attribute.
type NextHop struct {
	IP net.IP
}

func (NextHop) Code() Code  { return CodeNextHop }
func (NextHop) Flags() byte { return FlagTransitive }

func (n NextHop) PackValue(*capability.Negotiated) []byte {
	v4 := n.IP.To4()
	if v4 == nil {
		v4 = net.IPv4zero.To4()
	}
	return append([]byte(nil), v4...)
}

func unpackNextHop(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
	if len(data) != 4 {
		return nil, fmt.Errorf("attribute: next-hop: expected 4 bytes, got %d", len(data))
	}
	ip := make(net.IP, 4)
	copy(ip, data)
	return NextHop{IP: ip}, nil
}

func init() {
	Register(CodeNextHop, false, unpackNextHop)
}

package message

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// RouteRefresh is the ROUTE-REFRESH message (RFC 2918 §3, extended by RFC
// 7313 §4 with Begin-of-RIB/End-of-RIB subtypes), requesting the peer
// re-advertise its full Adj-RIB-Out for one family.
type RouteRefresh struct {
	Family  wire.Family
	Subtype byte // 0 normal, 1 Begin-of-RIB, 2 End-of-RIB (RFC 7313)
}

const (
	RouteRefreshNormal byte = 0
	RouteRefreshBoRR   byte = 1
	RouteRefreshEoRR   byte = 2
)

func (RouteRefresh) Type() Type { return TypeRouteRefresh }

func (r RouteRefresh) PackBody(*capability.Negotiated) []byte {
	b := wire.PutUint16(nil, uint16(r.Family.AFI))
	return append(b, r.Subtype, byte(r.Family.SAFI))
}

func decodeRouteRefresh(body []byte) (Message, error) {
	if len(body) != 4 {
		return nil, fmt.Errorf("message: route-refresh: expected 4 bytes, got %d", len(body))
	}
	afi, err := wire.ReadUint16(body)
	if err != nil {
		return nil, fmt.Errorf("message: route-refresh: %w", err)
	}
	return RouteRefresh{
		Family:  wire.Family{AFI: wire.AFI(afi), SAFI: wire.SAFI(body[3])},
		Subtype: body[2],
	}, nil
}

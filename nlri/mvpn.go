package nlri

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// MVPN route types (RFC 6514 §4).
const (
	MVPNIntraASIPMSIADType   byte = 1
	MVPNInterASIPMSIADType   byte = 2
	MVPNSPMSIADType          byte = 3
	MVPNLeafADType           byte = 4
	MVPNSourceActiveADType   byte = 5
	MVPNSharedTreeJoinType   byte = 6
	MVPNSourceTreeJoinType   byte = 7
)

// MVPNIntraASIPMSIAD is the Intra-AS I-PMSI A-D route (RFC 6514 §4.1).
type MVPNIntraASIPMSIAD struct {
	family            wire.Family
	RD                wire.RD
	OriginatingRouter wire.IP
}

func (r MVPNIntraASIPMSIAD) Family() wire.Family    { return r.family }
func (r MVPNIntraASIPMSIAD) PathID() (uint32, bool) { return 0, false }
func (r MVPNIntraASIPMSIAD) Key() string {
	return fmt.Sprintf("mvpn-intra-ad:%s:%s", r.RD, r.OriginatingRouter)
}

func (r MVPNIntraASIPMSIAD) packBody(*capability.Negotiated) []byte {
	body := r.RD.Pack(nil)
	body = r.OriginatingRouter.Pack(body)
	b := []byte{MVPNIntraASIPMSIADType, byte(len(body))}
	return append(b, body...)
}

// MVPNSourceGroupAD covers the S-PMSI A-D (type 3), Leaf A-D (type 4) and
// Source Active A-D (type 5) routes, which all carry an RD plus a
// (source, group) pair (RFC 6514 §4.3-4.5).
type MVPNSourceGroupAD struct {
	family            wire.Family
	RouteType         byte
	RD                wire.RD
	MulticastSource   wire.IP
	MulticastGroup    wire.IP
	OriginatingRouter wire.IP // S-PMSI A-D only
}

func (r MVPNSourceGroupAD) Family() wire.Family    { return r.family }
func (r MVPNSourceGroupAD) PathID() (uint32, bool) { return 0, false }
func (r MVPNSourceGroupAD) Key() string {
	return fmt.Sprintf("mvpn-sg:%d:%s:%s:%s", r.RouteType, r.RD, r.MulticastSource, r.MulticastGroup)
}

func (r MVPNSourceGroupAD) packBody(*capability.Negotiated) []byte {
	body := r.RD.Pack(nil)
	body = append(body, byte(len(r.MulticastSource.Addr)*8))
	body = r.MulticastSource.Pack(body)
	body = append(body, byte(len(r.MulticastGroup.Addr)*8))
	body = r.MulticastGroup.Pack(body)
	if r.RouteType == MVPNSPMSIADType {
		body = r.OriginatingRouter.Pack(body)
	}
	b := []byte{r.RouteType, byte(len(body))}
	return append(b, body...)
}

// MVPNOpaque preserves any MVPN route type this codec does not decompose
// (inter-AS I-PMSI A-D, shared/source tree join) as an opaque byte blob, so
// unrecognised-but-well-formed routes still round-trip on the wire.
type MVPNOpaque struct {
	family    wire.Family
	RouteType byte
	Data      []byte
}

func (r MVPNOpaque) Family() wire.Family    { return r.family }
func (r MVPNOpaque) PathID() (uint32, bool) { return 0, false }
func (r MVPNOpaque) Key() string            { return fmt.Sprintf("mvpn-opaque:%d:%x", r.RouteType, r.Data) }

func (r MVPNOpaque) packBody(*capability.Negotiated) []byte {
	b := []byte{r.RouteType, byte(len(r.Data))}
	return append(b, r.Data...)
}

func decodeMVPN(family wire.Family) Decoder {
	return func(data []byte, dir wire.Direction, n *capability.Negotiated) (NLRI, []byte, error) {
		if len(data) < 2 {
			return nil, nil, fmt.Errorf("nlri: mvpn: short read for route type/length")
		}
		routeType := data[0]
		length := int(data[1])
		rest := data[2:]
		if len(rest) < length {
			return nil, nil, fmt.Errorf("nlri: mvpn: declared length %d exceeds available %d", length, len(rest))
		}
		body := rest[:length]
		tail := rest[length:]

		switch routeType {
		case MVPNIntraASIPMSIADType:
			rd, body, err := wire.ReadRD(body)
			if err != nil {
				return nil, nil, fmt.Errorf("nlri: mvpn: %w", err)
			}
			ip, _, err := wire.ReadIP(body, family.AFI)
			if err != nil {
				return nil, nil, fmt.Errorf("nlri: mvpn: originating router: %w", err)
			}
			return MVPNIntraASIPMSIAD{family: family, RD: rd, OriginatingRouter: ip}, tail, nil

		case MVPNSPMSIADType, MVPNLeafADType, MVPNSourceActiveADType:
			rd, body, err := wire.ReadRD(body)
			if err != nil {
				return nil, nil, fmt.Errorf("nlri: mvpn: %w", err)
			}
			source, body, err := readMVPNAddr(body)
			if err != nil {
				return nil, nil, fmt.Errorf("nlri: mvpn: source: %w", err)
			}
			group, body, err := readMVPNAddr(body)
			if err != nil {
				return nil, nil, fmt.Errorf("nlri: mvpn: group: %w", err)
			}
			r := MVPNSourceGroupAD{family: family, RouteType: routeType, RD: rd, MulticastSource: source, MulticastGroup: group}
			if routeType == MVPNSPMSIADType && len(body) > 0 {
				router, _, err := wire.ReadIP(body, family.AFI)
				if err != nil {
					return nil, nil, fmt.Errorf("nlri: mvpn: originating router: %w", err)
				}
				r.OriginatingRouter = router
			}
			return r, tail, nil

		default:
			return MVPNOpaque{family: family, RouteType: routeType, Data: append([]byte(nil), body...)}, tail, nil
		}
	}
}

func readMVPNAddr(b []byte) (wire.IP, []byte, error) {
	if len(b) < 1 {
		return wire.IP{}, nil, fmt.Errorf("short read for address length")
	}
	bits := int(b[0])
	b = b[1:]
	afi := wire.AFIIPv4
	if bits == 128 {
		afi = wire.AFIIPv6
	} else if bits != 0 && bits != 32 {
		return wire.IP{}, nil, fmt.Errorf("unsupported address length %d bits", bits)
	}
	if bits == 0 {
		return wire.IP{}, b, nil
	}
	return wire.ReadIP(b, afi)
}

func init() {
	RegisterFamily(wire.MVPNv4, decodeMVPN(wire.MVPNv4))
	RegisterFamily(wire.MVPNv6, decodeMVPN(wire.MVPNv6))
}

package nlri

import (
	"encoding/hex"
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// EVPN route types (RFC 7432 §5).
const (
	EVPNEthernetAutoDiscoveryType byte = 1
	EVPNMACIPAdvertisementType    byte = 2
	EVPNInclusiveMulticastType    byte = 3
	EVPNEthernetSegmentType       byte = 4
	EVPNIPPrefixType              byte = 5
)

// ESI is a 10-byte Ethernet Segment Identifier.
type ESI [10]byte

func (e ESI) String() string { return hex.EncodeToString(e[:]) }

func readESI(b []byte) (ESI, []byte, error) {
	if len(b) < 10 {
		return ESI{}, nil, fmt.Errorf("nlri: evpn: short read for ESI: %d bytes", len(b))
	}
	var esi ESI
	copy(esi[:], b[:10])
	return esi, b[10:], nil
}

func (e ESI) pack(b []byte) []byte { return append(b, e[:]...) }

func readEVPNIP(b []byte) (wire.IP, []byte, error) {
	if len(b) < 1 {
		return wire.IP{}, nil, fmt.Errorf("nlri: evpn: short read for IP address length")
	}
	switch b[0] {
	case 0:
		return wire.IP{}, b[1:], nil
	case 32:
		return wire.ReadIP(b[1:], wire.AFIIPv4)
	case 128:
		return wire.ReadIP(b[1:], wire.AFIIPv6)
	default:
		return wire.IP{}, nil, fmt.Errorf("nlri: evpn: unsupported IP address length %d", b[0])
	}
}

func packEVPNIP(b []byte, ip wire.IP) []byte {
	if len(ip.Addr) == 0 {
		return append(b, 0)
	}
	if ip.AFI == wire.AFIIPv6 {
		b = append(b, 128)
	} else {
		b = append(b, 32)
	}
	return ip.Pack(b)
}

// EVPNAutoDiscovery is an Ethernet Auto-Discovery route (RFC 7432 §7.1).
type EVPNAutoDiscovery struct {
	RD            wire.RD
	ESI           ESI
	EthernetTagID uint32
	Label         wire.Labels
}

func (r EVPNAutoDiscovery) Family() wire.Family    { return wire.EVPN }
func (r EVPNAutoDiscovery) PathID() (uint32, bool) { return 0, false }
func (r EVPNAutoDiscovery) Key() string {
	return fmt.Sprintf("evpn-ad:%s:%s:%d", r.RD, r.ESI, r.EthernetTagID)
}

func (r EVPNAutoDiscovery) packBody(*capability.Negotiated) []byte {
	b := []byte{EVPNEthernetAutoDiscoveryType, 0}
	body := r.RD.Pack(nil)
	body = r.ESI.pack(body)
	body = wire.PutUint32(body, r.EthernetTagID)
	body = r.Label.Pack(body)
	b[1] = byte(len(body))
	return append(b, body...)
}

// EVPNMACAdvertisement is a MAC/IP Advertisement route (RFC 7432 §7.2).
type EVPNMACAdvertisement struct {
	RD            wire.RD
	ESI           ESI
	EthernetTagID uint32
	MAC           [6]byte
	IP            wire.IP
	Labels        wire.Labels // one or two labels (EVPN + optional L3 VNI)
}

func (r EVPNMACAdvertisement) Family() wire.Family    { return wire.EVPN }
func (r EVPNMACAdvertisement) PathID() (uint32, bool) { return 0, false }
func (r EVPNMACAdvertisement) Key() string {
	return fmt.Sprintf("evpn-mac:%s:%d:%x", r.RD, r.EthernetTagID, r.MAC)
}

func (r EVPNMACAdvertisement) packBody(*capability.Negotiated) []byte {
	b := []byte{EVPNMACIPAdvertisementType, 0}
	body := r.RD.Pack(nil)
	body = r.ESI.pack(body)
	body = wire.PutUint32(body, r.EthernetTagID)
	body = append(body, 48, r.MAC[0], r.MAC[1], r.MAC[2], r.MAC[3], r.MAC[4], r.MAC[5])
	body = packEVPNIP(body, r.IP)
	for _, l := range r.Labels {
		body = wire.Labels{l}.Pack(body)
	}
	b[1] = byte(len(body))
	return append(b, body...)
}

// EVPNInclusiveMulticast is an Inclusive Multicast Ethernet Tag route
// (RFC 7432 §7.3).
type EVPNInclusiveMulticast struct {
	RD                wire.RD
	EthernetTagID     uint32
	OriginatingRouter wire.IP
}

func (r EVPNInclusiveMulticast) Family() wire.Family    { return wire.EVPN }
func (r EVPNInclusiveMulticast) PathID() (uint32, bool) { return 0, false }
func (r EVPNInclusiveMulticast) Key() string {
	return fmt.Sprintf("evpn-imet:%s:%d:%s", r.RD, r.EthernetTagID, r.OriginatingRouter)
}

func (r EVPNInclusiveMulticast) packBody(*capability.Negotiated) []byte {
	b := []byte{EVPNInclusiveMulticastType, 0}
	body := r.RD.Pack(nil)
	body = wire.PutUint32(body, r.EthernetTagID)
	body = packEVPNIP(body, r.OriginatingRouter)
	b[1] = byte(len(body))
	return append(b, body...)
}

// EVPNEthernetSegment is an Ethernet Segment route (RFC 7432 §7.4).
type EVPNEthernetSegment struct {
	RD                wire.RD
	ESI               ESI
	OriginatingRouter wire.IP
}

func (r EVPNEthernetSegment) Family() wire.Family    { return wire.EVPN }
func (r EVPNEthernetSegment) PathID() (uint32, bool) { return 0, false }
func (r EVPNEthernetSegment) Key() string {
	return fmt.Sprintf("evpn-es:%s:%s", r.RD, r.ESI)
}

func (r EVPNEthernetSegment) packBody(*capability.Negotiated) []byte {
	b := []byte{EVPNEthernetSegmentType, 0}
	body := r.RD.Pack(nil)
	body = r.ESI.pack(body)
	body = packEVPNIP(body, r.OriginatingRouter)
	b[1] = byte(len(body))
	return append(b, body...)
}

// EVPNIPPrefix is an IP Prefix route (RFC 9136, carried under the RFC 7432
// registry as EVPN route type 5).
type EVPNIPPrefix struct {
	RD            wire.RD
	ESI           ESI
	EthernetTagID uint32
	Prefix        wire.CIDR
	GatewayIP     wire.IP
	Label         uint32
}

func (r EVPNIPPrefix) Family() wire.Family    { return wire.EVPN }
func (r EVPNIPPrefix) PathID() (uint32, bool) { return 0, false }
func (r EVPNIPPrefix) Key() string {
	return fmt.Sprintf("evpn-prefix:%s:%d:%s", r.RD, r.EthernetTagID, r.Prefix)
}

func (r EVPNIPPrefix) packBody(*capability.Negotiated) []byte {
	b := []byte{EVPNIPPrefixType, 0}
	body := r.RD.Pack(nil)
	body = r.ESI.pack(body)
	body = wire.PutUint32(body, r.EthernetTagID)
	body = append(body, byte(r.Prefix.Length))
	width := 4
	if r.Prefix.IP.AFI == wire.AFIIPv6 {
		width = 16
	}
	body = append(body, r.Prefix.IP.Addr[:width]...)
	if len(r.GatewayIP.Addr) == 0 {
		body = append(body, make([]byte, width)...)
	} else {
		body = append(body, r.GatewayIP.Addr[:width]...)
	}
	body = wire.Labels{r.Label}.Pack(body)
	b[1] = byte(len(body))
	return append(b, body...)
}

func decodeEVPN(data []byte, dir wire.Direction, n *capability.Negotiated) (NLRI, []byte, error) {
	if len(data) < 2 {
		return nil, nil, fmt.Errorf("nlri: evpn: short read for route type/length")
	}
	routeType := data[0]
	length := int(data[1])
	rest := data[2:]
	if len(rest) < length {
		return nil, nil, fmt.Errorf("nlri: evpn: declared length %d exceeds available %d", length, len(rest))
	}
	body := rest[:length]
	tail := rest[length:]

	switch routeType {
	case EVPNEthernetAutoDiscoveryType:
		rd, body, err := wire.ReadRD(body)
		if err != nil {
			return nil, nil, err
		}
		esi, body, err := readESI(body)
		if err != nil {
			return nil, nil, err
		}
		tag, err := wire.ReadUint32(body)
		if err != nil {
			return nil, nil, fmt.Errorf("nlri: evpn: ethernet tag: %w", err)
		}
		body = body[4:]
		labels, _, _, err := wire.ReadLabels(body, dir)
		if err != nil {
			return nil, nil, fmt.Errorf("nlri: evpn: %w", err)
		}
		return EVPNAutoDiscovery{RD: rd, ESI: esi, EthernetTagID: tag, Label: labels}, tail, nil

	case EVPNMACIPAdvertisementType:
		rd, body, err := wire.ReadRD(body)
		if err != nil {
			return nil, nil, err
		}
		esi, body, err := readESI(body)
		if err != nil {
			return nil, nil, err
		}
		tag, err := wire.ReadUint32(body)
		if err != nil {
			return nil, nil, fmt.Errorf("nlri: evpn: ethernet tag: %w", err)
		}
		body = body[4:]
		if len(body) < 7 || body[0] != 48 {
			return nil, nil, fmt.Errorf("nlri: evpn: unsupported MAC address length")
		}
		var mac [6]byte
		copy(mac[:], body[1:7])
		body = body[7:]
		ip, body, err := readEVPNIP(body)
		if err != nil {
			return nil, nil, err
		}
		var labels wire.Labels
		for len(body) >= 3 {
			l, _, rest2, err := wire.ReadLabels(body, dir)
			if err != nil {
				return nil, nil, fmt.Errorf("nlri: evpn: %w", err)
			}
			labels = append(labels, l...)
			body = rest2
		}
		return EVPNMACAdvertisement{RD: rd, ESI: esi, EthernetTagID: tag, MAC: mac, IP: ip, Labels: labels}, tail, nil

	case EVPNInclusiveMulticastType:
		rd, body, err := wire.ReadRD(body)
		if err != nil {
			return nil, nil, err
		}
		tag, err := wire.ReadUint32(body)
		if err != nil {
			return nil, nil, fmt.Errorf("nlri: evpn: ethernet tag: %w", err)
		}
		body = body[4:]
		ip, _, err := readEVPNIP(body)
		if err != nil {
			return nil, nil, err
		}
		return EVPNInclusiveMulticast{RD: rd, EthernetTagID: tag, OriginatingRouter: ip}, tail, nil

	case EVPNEthernetSegmentType:
		rd, body, err := wire.ReadRD(body)
		if err != nil {
			return nil, nil, err
		}
		esi, body, err := readESI(body)
		if err != nil {
			return nil, nil, err
		}
		ip, _, err := readEVPNIP(body)
		if err != nil {
			return nil, nil, err
		}
		return EVPNEthernetSegment{RD: rd, ESI: esi, OriginatingRouter: ip}, tail, nil

	case EVPNIPPrefixType:
		rd, body, err := wire.ReadRD(body)
		if err != nil {
			return nil, nil, err
		}
		esi, body, err := readESI(body)
		if err != nil {
			return nil, nil, err
		}
		tag, err := wire.ReadUint32(body)
		if err != nil {
			return nil, nil, fmt.Errorf("nlri: evpn: ethernet tag: %w", err)
		}
		body = body[4:]
		if len(body) < 1 {
			return nil, nil, fmt.Errorf("nlri: evpn: short read for prefix length")
		}
		prefixLen := int(body[0])
		body = body[1:]
		// The prefix and gateway address widths aren't tagged on the wire;
		// only the remaining length tells v4 (4+4+3) from v6 (16+16+3) apart.
		afi := wire.AFIIPv4
		if len(body) == 16+16+3 {
			afi = wire.AFIIPv6
		} else if len(body) != 4+4+3 {
			return nil, nil, fmt.Errorf("nlri: evpn: short read for IP prefix route")
		}
		width := 4
		if afi == wire.AFIIPv6 {
			width = 16
		}
		prefix, _, err := wire.ReadPrefixBits(body[:width], afi, prefixLen)
		if err != nil {
			return nil, nil, fmt.Errorf("nlri: evpn: %w", err)
		}
		body = body[width:]
		gw, body, err := wire.ReadIP(body, afi)
		if err != nil {
			return nil, nil, fmt.Errorf("nlri: evpn: gateway: %w", err)
		}
		labels, _, _, err := wire.ReadLabels(body, dir)
		if err != nil {
			return nil, nil, fmt.Errorf("nlri: evpn: %w", err)
		}
		var label uint32
		if len(labels) > 0 {
			label = labels[0]
		}
		return EVPNIPPrefix{RD: rd, ESI: esi, EthernetTagID: tag, Prefix: prefix, GatewayIP: gw, Label: label}, tail, nil

	default:
		return nil, nil, fmt.Errorf("nlri: evpn: unsupported route type %d", routeType)
	}
}

func init() {
	RegisterFamily(wire.EVPN, decodeEVPN)
}

package nlri

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// RTC is a Route Target Constrain NLRI (RFC 4684 §4): a variable-length
// prefix over the 96-bit concatenation of a 4-byte origin AS and an 8-byte
// Route Target. A zero-length prefix is the RTC wildcard, matching every
// Route Target and used to request a full RT-filtered re-advertisement.
type RTC struct {
	Length      int // bits of origin-AS+route-target actually carried, 0-96
	OriginAS    wire.ASN
	RouteTarget [8]byte
}

func (r RTC) Family() wire.Family    { return wire.RTCFamily }
func (r RTC) PathID() (uint32, bool) { return 0, false }

func (r RTC) Key() string {
	if r.Length == 0 {
		return "rtc:wildcard"
	}
	return fmt.Sprintf("rtc:%d:%d:%x", r.Length, r.OriginAS, r.RouteTarget)
}

func (r RTC) value() [12]byte {
	var v [12]byte
	v[0], v[1], v[2], v[3] = byte(r.OriginAS>>24), byte(r.OriginAS>>16), byte(r.OriginAS>>8), byte(r.OriginAS)
	copy(v[4:], r.RouteTarget[:])
	return v
}

func (r RTC) packBody(*capability.Negotiated) []byte {
	b := []byte{byte(r.Length)}
	if r.Length == 0 {
		return b
	}
	v := r.value()
	n := (r.Length + 7) / 8
	return append(b, v[:n]...)
}

func decodeRTC(data []byte, dir wire.Direction, n *capability.Negotiated) (NLRI, []byte, error) {
	if len(data) < 1 {
		return nil, nil, fmt.Errorf("nlri: rtc: short read for length")
	}
	length := int(data[0])
	rest := data[1:]
	if length == 0 {
		return RTC{Length: 0}, rest, nil
	}
	if length > 96 {
		return nil, nil, fmt.Errorf("nlri: rtc: prefix length %d exceeds 96 bits", length)
	}
	byteLen := (length + 7) / 8
	if len(rest) < byteLen {
		return nil, nil, fmt.Errorf("nlri: rtc: short read for %d-byte value", byteLen)
	}
	var v [12]byte
	copy(v[:], rest[:byteLen])
	rest = rest[byteLen:]
	originAS := wire.ASN(uint32(v[0])<<24 | uint32(v[1])<<16 | uint32(v[2])<<8 | uint32(v[3]))
	var rt [8]byte
	copy(rt[:], v[4:12])
	return RTC{Length: length, OriginAS: originAS, RouteTarget: rt}, rest, nil
}

func init() {
	RegisterFamily(wire.RTCFamily, decodeRTC)
}

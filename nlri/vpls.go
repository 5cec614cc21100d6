package nlri

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// VPLS is a VPLS NLRI (RFC 4761 §3.2.1): a Route Distinguisher identifying
// the VPLS instance and a VE block describing the label range this speaker
// offers its PE peers.
type VPLS struct {
	RD             wire.RD
	VEID           uint16
	VEBlockOffset  uint16
	VEBlockSize    uint16
	LabelBase      uint32 // 20 bits
}

func (v VPLS) Family() wire.Family    { return wire.VPLS }
func (v VPLS) PathID() (uint32, bool) { return 0, false }
func (v VPLS) Key() string            { return fmt.Sprintf("vpls:%s:%d", v.RD, v.VEID) }

func (v VPLS) packBody(*capability.Negotiated) []byte {
	b := []byte{17} // fixed length in bytes, per RFC 4761 the "length" field is in bytes here
	b = v.RD.Pack(b)
	b = wire.PutUint16(b, v.VEID)
	b = wire.PutUint16(b, v.VEBlockOffset)
	b = wire.PutUint16(b, v.VEBlockSize)
	label := v.LabelBase << 4
	return append(b, byte(label>>16), byte(label>>8), byte(label))
}

func decodeVPLS(data []byte, dir wire.Direction, n *capability.Negotiated) (NLRI, []byte, error) {
	if len(data) < 1 {
		return nil, nil, fmt.Errorf("nlri: vpls: short read for length")
	}
	length := int(data[0])
	rest := data[1:]
	if len(rest) < length {
		return nil, nil, fmt.Errorf("nlri: vpls: declared length %d exceeds available %d", length, len(rest))
	}
	body := rest[:length]
	tail := rest[length:]

	rd, body, err := wire.ReadRD(body)
	if err != nil {
		return nil, nil, fmt.Errorf("nlri: vpls: %w", err)
	}
	veID, err := wire.ReadUint16(body)
	if err != nil {
		return nil, nil, fmt.Errorf("nlri: vpls: ve id: %w", err)
	}
	body = body[2:]
	offset, err := wire.ReadUint16(body)
	if err != nil {
		return nil, nil, fmt.Errorf("nlri: vpls: ve block offset: %w", err)
	}
	body = body[2:]
	size, err := wire.ReadUint16(body)
	if err != nil {
		return nil, nil, fmt.Errorf("nlri: vpls: ve block size: %w", err)
	}
	body = body[2:]
	if len(body) < 3 {
		return nil, nil, fmt.Errorf("nlri: vpls: short read for label base")
	}
	label := (uint32(body[0])<<16 | uint32(body[1])<<8 | uint32(body[2])) >> 4
	return VPLS{RD: rd, VEID: veID, VEBlockOffset: offset, VEBlockSize: size, LabelBase: label}, tail, nil
}

func init() {
	RegisterFamily(wire.VPLS, decodeVPLS)
}

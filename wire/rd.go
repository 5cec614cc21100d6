package wire

import (
	"encoding/hex"
	"fmt"
)

// RD is an 8-byte Route Distinguisher (RFC 4364 §4.2). The first two bytes
// select one of three type encodings; everything else is preserved as
// opaque hex on decode for forward-compatibility with future types.
type RD [8]byte

const (
	RDTypeASN2    uint16 = 0 // 2-byte ASN : 4-byte number
	RDTypeIPv4    uint16 = 1 // 4-byte IPv4 address : 2-byte number
	RDTypeASN4    uint16 = 2 // 4-byte ASN : 2-byte number
)

// NewRDASN2 builds a type-0 RD: a 2-byte ASN and a 4-byte assigned number.
func NewRDASN2(asn uint16, number uint32) RD {
	var rd RD
	rd[0], rd[1] = byte(RDTypeASN2>>8), byte(RDTypeASN2)
	rd[2], rd[3] = byte(asn>>8), byte(asn)
	rd[4], rd[5], rd[6], rd[7] = byte(number>>24), byte(number>>16), byte(number>>8), byte(number)
	return rd
}

// NewRDIPv4 builds a type-1 RD: a 4-byte IPv4 address and a 2-byte number.
func NewRDIPv4(addr [4]byte, number uint16) RD {
	var rd RD
	rd[0], rd[1] = byte(RDTypeIPv4>>8), byte(RDTypeIPv4)
	copy(rd[2:6], addr[:])
	rd[6], rd[7] = byte(number>>8), byte(number)
	return rd
}

// NewRDASN4 builds a type-2 RD: a 4-byte ASN and a 2-byte number.
func NewRDASN4(asn uint32, number uint16) RD {
	var rd RD
	rd[0], rd[1] = byte(RDTypeASN4>>8), byte(RDTypeASN4)
	rd[2], rd[3], rd[4], rd[5] = byte(asn>>24), byte(asn>>16), byte(asn>>8), byte(asn)
	rd[6], rd[7] = byte(number>>8), byte(number)
	return rd
}

// Type returns the RD's 2-byte type field.
func (rd RD) Type() uint16 {
	return uint16(rd[0])<<8 | uint16(rd[1])
}

func (rd RD) String() string {
	switch rd.Type() {
	case RDTypeASN2:
		asn := uint16(rd[2])<<8 | uint16(rd[3])
		number := uint32(rd[4])<<24 | uint32(rd[5])<<16 | uint32(rd[6])<<8 | uint32(rd[7])
		return fmt.Sprintf("%d:%d", asn, number)
	case RDTypeIPv4:
		return fmt.Sprintf("%d.%d.%d.%d:%d", rd[2], rd[3], rd[4], rd[5], uint16(rd[6])<<8|uint16(rd[7]))
	case RDTypeASN4:
		asn := uint32(rd[2])<<24 | uint32(rd[3])<<16 | uint32(rd[4])<<8 | uint32(rd[5])
		return fmt.Sprintf("%d:%d", asn, uint16(rd[6])<<8|uint16(rd[7]))
	default:
		return hex.EncodeToString(rd[:])
	}
}

// ReadRD consumes the 8 bytes of a route distinguisher.
func ReadRD(b []byte) (RD, []byte, error) {
	if len(b) < 8 {
		return RD{}, nil, fmt.Errorf("wire: short read for route distinguisher: %d bytes", len(b))
	}
	var rd RD
	copy(rd[:], b[:8])
	return rd, b[8:], nil
}

// Pack appends the 8 raw bytes of rd.
func (rd RD) Pack(b []byte) []byte {
	return append(b, rd[:]...)
}

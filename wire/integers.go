// Package wire implements the fixed-size primitives every BGP-4 message,
// attribute and NLRI family is built from: network-byte-order integers,
// AFI/SAFI identifiers, autonomous system numbers, IP addresses, CIDR
// prefixes, route distinguishers and MPLS label stacks.
package wire

import (
	"encoding/binary"
	"fmt"
)

// ReadUint16 consumes the first two bytes of b as a big-endian uint16.
func ReadUint16(b []byte) (uint16, error) {
	if len(b) < 2 {
		return 0, fmt.Errorf("wire: short read for uint16: %d bytes", len(b))
	}
	return binary.BigEndian.Uint16(b), nil
}

// ReadUint32 consumes the first four bytes of b as a big-endian uint32.
func ReadUint32(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, fmt.Errorf("wire: short read for uint32: %d bytes", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

// PutUint16 appends v to b in network byte order.
func PutUint16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

// PutUint32 appends v to b in network byte order.
func PutUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

// Direction distinguishes an announcement from a withdrawal for codecs
// whose wire encoding depends on which side of an UPDATE they sit in
// (labelled unicast's withdraw-label sentinel, MP_REACH vs MP_UNREACH).
type Direction int

const (
	Announce Direction = iota
	Withdraw
)

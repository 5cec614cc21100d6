// Package message implements the BGP-4 message codec (RFC 4271 §4): the
// fixed 19-byte header shared by every message, and the per-type bodies
// (OPEN, UPDATE, NOTIFICATION, KEEPALIVE, ROUTE-REFRESH).
package message

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// Type identifies a message body (RFC 4271 §4.1).
type Type byte

const (
	TypeOpen         Type = 1
	TypeUpdate       Type = 2
	TypeNotification Type = 3
	TypeKeepalive    Type = 4
	TypeRouteRefresh Type = 5
)

func (t Type) String() string {
	switch t {
	case TypeOpen:
		return "OPEN"
	case TypeUpdate:
		return "UPDATE"
	case TypeNotification:
		return "NOTIFICATION"
	case TypeKeepalive:
		return "KEEPALIVE"
	case TypeRouteRefresh:
		return "ROUTE-REFRESH"
	default:
		return fmt.Sprintf("unknown(%d)", byte(t))
	}
}

// HeaderLength is the fixed 16-byte marker plus 2-byte length plus 1-byte
// type every BGP message starts with.
const HeaderLength = 19

// MinLength is the smallest legal message (a KEEPALIVE: header only).
const MinLength = 19

// Header is the 19-byte fixed header every BGP message carries.
type Header struct {
	Length uint16 // total message length, including the header itself
	Type   Type
}

// Pack appends the 16 0xFF marker bytes, the length and the type.
func (h Header) Pack(b []byte) []byte {
	for i := 0; i < 16; i++ {
		b = append(b, 0xFF)
	}
	b = wire.PutUint16(b, h.Length)
	return append(b, byte(h.Type))
}

// ReadHeader parses the fixed header from b, validating the marker and the
// length bounds against maxMessageSize (4096 unless Extended Message was
// negotiated, RFC 4271 §4.1 / the Extended Message capability).
func ReadHeader(b []byte, maxMessageSize int) (Header, error) {
	if len(b) < HeaderLength {
		return Header{}, fmt.Errorf("message: short read for header: %d bytes", len(b))
	}
	for i := 0; i < 16; i++ {
		if b[i] != 0xFF {
			return Header{}, fmt.Errorf("message: header marker not all-ones at byte %d", i)
		}
	}
	length, err := wire.ReadUint16(b[16:])
	if err != nil {
		return Header{}, fmt.Errorf("message: header length: %w", err)
	}
	if int(length) < MinLength || int(length) > maxMessageSize {
		return Header{}, fmt.Errorf("message: header length %d out of bounds [%d, %d]", length, MinLength, maxMessageSize)
	}
	return Header{Length: length, Type: Type(b[18])}, nil
}

// Message is one decoded BGP message body.
type Message interface {
	Type() Type
	PackBody(n *capability.Negotiated) []byte
}

// Pack encodes m into a full framed message: header plus body.
func Pack(m Message, n *capability.Negotiated) []byte {
	body := m.PackBody(n)
	h := Header{Length: uint16(HeaderLength + len(body)), Type: m.Type()}
	b := h.Pack(make([]byte, 0, h.Length))
	return append(b, body...)
}

// Decode parses one complete framed message's body, given the message
// type from its already-validated header, and dispatches to the per-type
// decoder. frame is the full message including the 19-byte header; the
// transport layer is responsible for having already read exactly
// Header.Length bytes via ReadHeader before calling Decode.
func Decode(frame []byte, n *capability.Negotiated) (Message, error) {
	if len(frame) < HeaderLength {
		return nil, fmt.Errorf("message: short read for header: %d bytes", len(frame))
	}
	body := frame[HeaderLength:]
	t := Type(frame[18])
	switch t {
	case TypeOpen:
		return decodeOpen(body)
	case TypeUpdate:
		return decodeUpdate(body, n)
	case TypeNotification:
		return decodeNotification(body)
	case TypeKeepalive:
		return decodeKeepalive(body)
	case TypeRouteRefresh:
		return decodeRouteRefresh(body)
	default:
		return nil, fmt.Errorf("message: unsupported message type %d", t)
	}
}

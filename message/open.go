package message

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// Version is the only BGP protocol version this codec speaks.
const Version = 4

// optParamCapabilities is the OPEN optional-parameter type that carries
// capability TLVs (RFC 5492 §4).
const optParamCapabilities byte = 2

// Open is the OPEN message (RFC 4271 §4.2): the first message each side
// sends once the TCP connection is up, proposing a hold time, identifying
// the sender's ASN and router-ID, and advertising its capabilities.
type Open struct {
	MyASN        uint16 // legacy 2-byte field; real ASN sits in the 4-byte-ASN capability when it overflows
	HoldTime     uint16 // seconds
	RouterID     uint32
	Capabilities *capability.Set
}

func (Open) Type() Type { return TypeOpen }

func (o Open) PackBody(*capability.Negotiated) []byte {
	b := []byte{Version}
	b = wire.PutUint16(b, o.MyASN)
	b = wire.PutUint16(b, o.HoldTime)
	b = wire.PutUint32(b, o.RouterID)

	var params []byte
	if o.Capabilities != nil {
		var capBytes []byte
		for _, c := range o.Capabilities.AllCapabilities() {
			value := c.Pack()
			capBytes = append(capBytes, byte(c.Code()), byte(len(value)))
			capBytes = append(capBytes, value...)
		}
		if len(capBytes) > 0 {
			params = append(params, optParamCapabilities, byte(len(capBytes)))
			params = append(params, capBytes...)
		}
	}
	b = append(b, byte(len(params)))
	return append(b, params...)
}

func decodeOpen(body []byte) (Message, error) {
	if len(body) < 10 {
		return nil, fmt.Errorf("message: open: short read for fixed fields")
	}
	version := body[0]
	if version != Version {
		return nil, Notification{Code: ErrOpenMessage, Subcode: SubErrUnsupportedVersionNumber, Data: []byte{0, Version}}
	}
	myASN, err := wire.ReadUint16(body[1:])
	if err != nil {
		return nil, fmt.Errorf("message: open: asn: %w", err)
	}
	holdTime, err := wire.ReadUint16(body[3:])
	if err != nil {
		return nil, fmt.Errorf("message: open: hold time: %w", err)
	}
	routerID, err := wire.ReadUint32(body[5:])
	if err != nil {
		return nil, fmt.Errorf("message: open: router id: %w", err)
	}
	optLen := int(body[9])
	params := body[10:]
	if len(params) < optLen {
		return nil, fmt.Errorf("message: open: optional parameters length %d exceeds available %d", optLen, len(params))
	}
	params = params[:optLen]

	caps := capability.NewSet()
	for len(params) > 0 {
		if len(params) < 2 {
			return nil, fmt.Errorf("message: open: short read for parameter header")
		}
		paramType := params[0]
		paramLen := int(params[1])
		params = params[2:]
		if len(params) < paramLen {
			return nil, fmt.Errorf("message: open: parameter length %d exceeds available %d", paramLen, len(params))
		}
		value := params[:paramLen]
		params = params[paramLen:]
		if paramType != optParamCapabilities {
			continue // unrecognised optional parameters are silently skipped
		}
		for len(value) > 0 {
			if len(value) < 2 {
				return nil, fmt.Errorf("message: open: short read for capability header")
			}
			code := capability.Code(value[0])
			capLen := int(value[1])
			value = value[2:]
			if len(value) < capLen {
				return nil, fmt.Errorf("message: open: capability length %d exceeds available %d", capLen, len(value))
			}
			c, err := capability.Unpack(code, value[:capLen])
			if err != nil {
				return nil, fmt.Errorf("message: open: capability %d: %w", code, err)
			}
			caps.Add(c)
			value = value[capLen:]
		}
	}

	return Open{MyASN: myASN, HoldTime: holdTime, RouterID: routerID, Capabilities: caps}, nil
}

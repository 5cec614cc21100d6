package attribute

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// PrefixSID TLV types (RFC 8669 §3, RFC 9252 §6 for the SRv6 service
// TLVs).
const (
	PrefixSIDTLVLabelIndex    uint16 = 1
	PrefixSIDTLVOriginatorSRGB uint16 = 3
	PrefixSIDTLVSRv6L3Service uint16 = 5
	PrefixSIDTLVSRv6L2Service uint16 = 6
)

// PrefixSIDTLV is one Prefix-SID sub-TLV. Only the Label-Index TLV's value
// is decomposed further; SRGB lists and the SRv6 service TLVs (which carry
// their own nested sub-TLV trees) are kept as their raw value bytes.
type PrefixSIDTLV struct {
	Type  uint16
	Value []byte
}

func (t PrefixSIDTLV) pack(b []byte) []byte {
	b = wire.PutUint16(b, t.Type)
	b = wire.PutUint16(b, uint16(len(t.Value)))
	return append(b, t.Value...)
}

// PrefixSID is the optional transitive BGP Prefix-SID attribute (RFC
// 8669), carrying one or more TLVs describing the Segment Routing label or
// SRv6 locator/SID a prefix should use.
type PrefixSID struct {
	TLVs []PrefixSIDTLV
}

func (PrefixSID) Code() Code  { return CodePrefixSID }
func (PrefixSID) Flags() byte { return FlagOptional | FlagTransitive }

// NewLabelIndex builds the Label-Index TLV (RFC 8669 §3.1): the offset
// into the advertising node's SRGB to use for this prefix.
func NewLabelIndex(index uint32) PrefixSIDTLV {
	v := []byte{0, 0, 0, 0, byte(index >> 24), byte(index >> 16), byte(index >> 8), byte(index)}
	return PrefixSIDTLV{Type: PrefixSIDTLVLabelIndex, Value: v}
}

func (p PrefixSID) PackValue(*capability.Negotiated) []byte {
	var b []byte
	for _, t := range p.TLVs {
		b = t.pack(b)
	}
	return b
}

func unpackPrefixSID(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
	var tlvs []PrefixSIDTLV
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, fmt.Errorf("attribute: prefix-sid: short read for TLV header")
		}
		t, err := wire.ReadUint16(data)
		if err != nil {
			return nil, fmt.Errorf("attribute: prefix-sid: %w", err)
		}
		length, err := wire.ReadUint16(data[2:])
		if err != nil {
			return nil, fmt.Errorf("attribute: prefix-sid: %w", err)
		}
		data = data[4:]
		if len(data) < int(length) {
			return nil, fmt.Errorf("attribute: prefix-sid: TLV %d declares length %d, only %d available", t, length, len(data))
		}
		tlvs = append(tlvs, PrefixSIDTLV{Type: t, Value: append([]byte(nil), data[:length]...)})
		data = data[length:]
	}
	return PrefixSID{TLVs: tlvs}, nil
}

func init() {
	Register(CodePrefixSID, true, unpackPrefixSID)
}

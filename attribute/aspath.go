package attribute

import (
	"fmt"
	"strings"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// SegmentType is an AS_PATH segment type (RFC 4271 §4.3).
type SegmentType byte

const (
	SegmentSet           SegmentType = 1
	SegmentSequence      SegmentType = 2
	SegmentConfedSequence SegmentType = 3
	SegmentConfedSet     SegmentType = 4
)

// Segment is one AS_PATH/AS4_PATH segment: an ordered (SEQUENCE) or
// unordered (SET) run of ASNs, possibly a confederation segment.
type Segment struct {
	Type SegmentType
	ASNs []wire.ASN
}

func (s Segment) String() string {
	parts := make([]string, len(s.ASNs))
	for i, a := range s.ASNs {
		parts[i] = fmt.Sprintf("%d", a)
	}
	inner := strings.Join(parts, " ")
	switch s.Type {
	case SegmentSet:
		return "{" + inner + "}"
	case SegmentConfedSequence:
		return "(" + inner + ")"
	case SegmentConfedSet:
		return "[" + inner + "]"
	default:
		return inner
	}
}

// ASPath is the well-known mandatory AS_PATH attribute (or, when four-byte
// ASNs are negotiated, the only AS path attribute present — AS4_PATH is
// suppressed by Attributes.Pack once ASN4 is true).
type ASPath struct {
	code     Code
	Segments []Segment
}

// NewASPath builds an AS_PATH attribute.
func NewASPath(segments []Segment) ASPath { return ASPath{code: CodeASPath, Segments: segments} }

// NewAS4Path builds an AS4_PATH attribute, carried alongside a 2-byte
// AS_PATH when the session has not (yet) negotiated four-byte ASNs on both
// sides (RFC 6793 §4.2.3).
func NewAS4Path(segments []Segment) ASPath { return ASPath{code: CodeAS4Path, Segments: segments} }

func (a ASPath) Code() Code  { return a.code }
func (a ASPath) Flags() byte { return FlagTransitive }

func (a ASPath) PackValue(n *capability.Negotiated) []byte {
	asn4 := a.code == CodeAS4Path || (n != nil && n.ASN4)
	var b []byte
	for _, seg := range a.Segments {
		b = append(b, byte(seg.Type), byte(len(seg.ASNs)))
		for _, asn := range seg.ASNs {
			if asn4 {
				b = wire.PutASN4(b, asn)
			} else {
				b = wire.PutASN2(b, asn)
			}
		}
	}
	return b
}

func unpackASPathCode(code Code, asn4 bool) unpacker {
	return func(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
		var segments []Segment
		for len(data) > 0 {
			if len(data) < 2 {
				return nil, fmt.Errorf("attribute: as-path: short read for segment header")
			}
			segType := SegmentType(data[0])
			count := int(data[1])
			data = data[2:]
			asns := make([]wire.ASN, 0, count)
			for i := 0; i < count; i++ {
				var asn wire.ASN
				var err error
				useASN4 := asn4 || (code == CodeAS4Path)
				if useASN4 {
					asn, err = wire.ReadASN4(data)
					if err == nil {
						data = data[4:]
					}
				} else {
					asn, err = wire.ReadASN2(data)
					if err == nil {
						data = data[2:]
					}
				}
				if err != nil {
					return nil, fmt.Errorf("attribute: as-path: %w", err)
				}
				asns = append(asns, asn)
			}
			segments = append(segments, Segment{Type: segType, ASNs: asns})
		}
		return ASPath{code: code, Segments: segments}, nil
	}
}

func init() {
	Register(CodeASPath, false, func(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
		asn4 := n != nil && n.ASN4
		return unpackASPathCode(CodeASPath, asn4)(flags, data, n)
	})
	Register(CodeAS4Path, true, unpackASPathCode(CodeAS4Path, true))
}

// ReconcileAS4Path merges a received AS_PATH/AS4_PATH pair into a single
// logical AS_PATH carrying the true four-byte ASNs (RFC 6793 §4.2.3). It is
// a no-op unless both attributes are present; callers are expected to only
// invoke it when the session has not negotiated four-byte ASNs end to end,
// since that is the only case a conformant peer sends AS4_PATH at all.
func ReconcileAS4Path(attrs *Attributes) {
	asPathAttr, ok := attrs.Get(CodeASPath)
	if !ok {
		return
	}
	as4Attr, ok := attrs.Get(CodeAS4Path)
	if !ok {
		return
	}
	asPath, ok := asPathAttr.(ASPath)
	if !ok {
		return
	}
	as4Path, ok := as4Attr.(ASPath)
	if !ok {
		return
	}
	attrs.Set(NewASPath(mergeASPathSegments(asPath.Segments, as4Path.Segments)))
	attrs.Delete(CodeAS4Path)
}

type flatASN struct {
	Type SegmentType
	ASN  wire.ASN
}

func flattenSegments(segments []Segment) []flatASN {
	var flat []flatASN
	for _, seg := range segments {
		for _, asn := range seg.ASNs {
			flat = append(flat, flatASN{Type: seg.Type, ASN: asn})
		}
	}
	return flat
}

func foldSegments(flat []flatASN) []Segment {
	var segments []Segment
	for _, f := range flat {
		if n := len(segments); n > 0 && segments[n-1].Type == f.Type {
			segments[n-1].ASNs = append(segments[n-1].ASNs, f.ASN)
			continue
		}
		segments = append(segments, Segment{Type: f.Type, ASNs: []wire.ASN{f.ASN}})
	}
	return segments
}

// mergeASPathSegments implements the length-based splice RFC 6793 §4.2.3
// describes: AS4_PATH covers the trailing (origin-side) part of the path,
// while the leading (most recently prepended) ASNs it lacks were added by
// two-byte-only speakers that passed AS4_PATH along untouched. The
// reconstructed path therefore keeps AS_PATH's leading ASNs for whatever
// prefix AS4_PATH is too short to cover, then takes AS4_PATH verbatim for
// the rest, replacing the AS_TRANS placeholders AS_PATH substituted there.
func mergeASPathSegments(asPath, as4Path []Segment) []Segment {
	flatAS := flattenSegments(asPath)
	flatAS4 := flattenSegments(as4Path)
	if len(flatAS4) == 0 {
		return asPath
	}
	if len(flatAS4) >= len(flatAS) {
		return as4Path
	}
	merged := append([]flatASN(nil), flatAS[:len(flatAS)-len(flatAS4)]...)
	merged = append(merged, flatAS4...)
	return foldSegments(merged)
}

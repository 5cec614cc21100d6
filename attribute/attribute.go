// Package attribute implements the BGP-4 path-attribute codec: every
// standard attribute type, its flags, and the registry that lets the
// UPDATE decoder dispatch by type code without a giant switch statement.
package attribute

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/nexthop-labs/bgpd/capability"
)

// Flag bits in the attribute-type-flags octet (RFC 4271 §4.3).
const (
	FlagOptional       byte = 0x80
	FlagTransitive     byte = 0x40
	FlagPartial        byte = 0x20
	FlagExtendedLength byte = 0x10
)

// Code is a registered path-attribute type.
type Code uint8

const (
	CodeOrigin            Code = 1
	CodeASPath            Code = 2
	CodeNextHop           Code = 3
	CodeMultiExitDisc     Code = 4
	CodeLocalPref         Code = 5
	CodeAtomicAggregate   Code = 6
	CodeAggregator        Code = 7
	CodeCommunities       Code = 8
	CodeOriginatorID      Code = 9
	CodeClusterList       Code = 10
	CodeMPReachNLRI       Code = 14
	CodeMPUnreachNLRI     Code = 15
	CodeExtendedCommunities Code = 16
	CodeAS4Path           Code = 17
	CodeAS4Aggregator     Code = 18
	CodePMSITunnel        Code = 22
	CodeAIGP              Code = 26
	CodeLargeCommunities  Code = 32
	CodeBGPLS             Code = 29
	CodePrefixSID         Code = 40
)

// Attribute is one decoded path attribute.
type Attribute interface {
	Code() Code
	// Flags returns the wire flags octet this attribute should be sent
	// with (OPTIONAL/TRANSITIVE/PARTIAL are policy; EXTENDED_LENGTH is
	// filled in by the encoder once the value length is known).
	Flags() byte
	// PackValue returns just the attribute's value bytes.
	PackValue(n *capability.Negotiated) []byte
}

// unpacker parses one attribute's value bytes.
type unpacker func(flags byte, data []byte, n *capability.Negotiated) (Attribute, error)

type registration struct {
	unpack          unpacker
	treatAsWithdraw bool
}

var registry = map[Code]registration{}

// Register associates a code with its unpacker and treat-as-withdraw
// policy (RFC 7606): if treatAsWithdraw, a malformed instance converts the
// UPDATE's announced NLRIs into withdrawals instead of tearing the session
// down.
func Register(code Code, treatAsWithdraw bool, u unpacker) {
	registry[code] = registration{unpack: u, treatAsWithdraw: treatAsWithdraw}
}

// Known reports whether code has a registered codec. An unknown code
// whose flags claim well-known (not OPTIONAL) is an Unrecognized
// Well-known Attribute error at the UPDATE decoder; an unknown optional
// one round-trips as Opaque.
func Known(code Code) bool {
	_, ok := registry[code]
	return ok
}

// TreatAsWithdraw reports the malformed-instance policy for code. Unknown
// optional-transitive codes default to treat-as-withdraw per RFC 7606;
// unknown well-known codes default to session-fatal (false).
func TreatAsWithdraw(code Code, flags byte) bool {
	if r, ok := registry[code]; ok {
		return r.treatAsWithdraw
	}
	return flags&FlagOptional != 0 && flags&FlagTransitive != 0
}

// Unpack parses one attribute TLV's value bytes, given its flags.
func Unpack(code Code, flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
	r, ok := registry[code]
	if !ok {
		return Opaque{code: code, flags: flags, data: append([]byte(nil), data...)}, nil
	}
	return r.unpack(flags, data, n)
}

// Pack encodes a into its full TLV: flags, type code, length, value.
func Pack(a Attribute, n *capability.Negotiated) []byte {
	value := a.PackValue(n)
	flags := a.Flags()
	var b []byte
	if len(value) > 255 {
		flags |= FlagExtendedLength
		b = append(b, flags, byte(a.Code()))
		b = append(b, byte(len(value)>>8), byte(len(value)))
	} else {
		flags &^= FlagExtendedLength
		b = append(b, flags, byte(a.Code()))
		b = append(b, byte(len(value)))
	}
	return append(b, value...)
}

// Opaque preserves an attribute this binary has no specific codec for, so
// it round-trips byte-for-byte and can still be propagated.
type Opaque struct {
	code  Code
	flags byte
	data  []byte
}

func (o Opaque) Code() Code                                   { return o.code }
func (o Opaque) Flags() byte                                  { return o.flags }
func (o Opaque) PackValue(*capability.Negotiated) []byte      { return o.data }

// Attributes is the set of path attributes carried by one UPDATE or Change,
// at most one instance per type code (the AS_PATH/AS4_PATH coexistence
// rule is modelled by storing both under their own codes and letting the
// encoder suppress AS4_PATH when ASN4 is negotiated).
type Attributes struct {
	byCode map[Code]Attribute
}

// New creates an empty attribute set.
func New() *Attributes {
	return &Attributes{byCode: map[Code]Attribute{}}
}

// Set stores a, replacing any existing attribute of the same code.
func (a *Attributes) Set(attr Attribute) {
	a.byCode[attr.Code()] = attr
}

// Get returns the attribute stored under code, if any.
func (a *Attributes) Get(code Code) (Attribute, bool) {
	v, ok := a.byCode[code]
	return v, ok
}

// Has reports whether code is present.
func (a *Attributes) Has(code Code) bool {
	_, ok := a.byCode[code]
	return ok
}

// Delete removes code, if present.
func (a *Attributes) Delete(code Code) {
	delete(a.byCode, code)
}

// Codes returns every stored code, ascending, for deterministic encoding.
func (a *Attributes) Codes() []Code {
	codes := make([]Code, 0, len(a.byCode))
	for c := range a.byCode {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// Pack encodes every attribute, in ascending type-code order (RFC 4271
// Appendix F.3 recommends but does not require canonical ordering; using
// it makes Attributes content-addressable without a separate canonical
// form).
func (a *Attributes) Pack(n *capability.Negotiated) []byte {
	var b []byte
	for _, c := range a.Codes() {
		if c == CodeAS4Path && n != nil && n.ASN4 {
			// AS4_PATH is only meaningful when the session is NOT
			// running 4-byte ASNs; a fully-negotiated ASN4 session
			// carries everything in AS_PATH directly.
			continue
		}
		b = append(b, Pack(a.byCode[c], n)...)
	}
	return b
}

// Fingerprint returns a stable content-address of the attribute set's
// canonical encoded form, used by adj-rib-out and the Delta generator to
// batch Changes that share identical attributes into one UPDATE.
func (a *Attributes) Fingerprint(n *capability.Negotiated) [32]byte {
	return sha256.Sum256(a.Pack(n))
}

// Clone returns a shallow copy safe to hand to a different Change (the
// Attribute values themselves are immutable once built).
func (a *Attributes) Clone() *Attributes {
	out := New()
	for c, v := range a.byCode {
		out.byCode[c] = v
	}
	return out
}

func (a *Attributes) String() string {
	return fmt.Sprintf("attributes(%d)", len(a.byCode))
}

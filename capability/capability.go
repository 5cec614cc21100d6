// Package capability implements BGP OPEN optional-parameter capability
// codecs (RFC 5492) and the negotiation that turns two peers' advertised
// capability sets into a single frozen Negotiated context.
package capability

import (
	"fmt"
	"sort"
)

// Code is a registered BGP capability type (IANA "Capability Codes").
type Code uint8

const (
	CodeMultiProtocol      Code = 1
	CodeRouteRefresh       Code = 2
	CodeExtendedNextHop    Code = 5
	CodeExtendedMessage    Code = 6
	CodeGracefulRestart    Code = 64
	CodeFourByteASN        Code = 65
	CodeAddPath            Code = 69
	CodeEnhancedRouteRefresh Code = 70
	CodeMultisession       Code = 68
	CodeHostname           Code = 73
	CodeSoftwareVersion    Code = 75
	CodeRouteRefreshCisco  Code = 128
)

// Capability is one OPEN optional-parameter capability instance.
type Capability interface {
	Code() Code
	// Pack returns the capability's value bytes (not including the
	// capability-code/length header, which the OPEN encoder adds).
	Pack() []byte
}

// Unpacker parses a capability value of a given code into a Capability.
type Unpacker func(data []byte) (Capability, error)

var registry = map[Code]Unpacker{}

// Register associates an unpacker with a capability code. Called from
// package init() in each capability's source file.
func Register(code Code, u Unpacker) {
	registry[code] = u
}

// Unpack parses one capability TLV value. An unrecognised code is not an
// error: per spec, unknown capabilities are silently ignored on receive.
func Unpack(code Code, data []byte) (Capability, error) {
	u, ok := registry[code]
	if !ok {
		return unknownCapability{code: code, data: append([]byte(nil), data...)}, nil
	}
	return u(data)
}

// unknownCapability preserves an unrecognised capability's bytes so a
// speaker that isn't the origin of negotiation (a route-reflector-like
// relay, or a diagnostic dump) can still echo or inspect it; it is never
// consulted by negotiation itself.
type unknownCapability struct {
	code Code
	data []byte
}

func (u unknownCapability) Code() Code   { return u.code }
func (u unknownCapability) Pack() []byte { return u.data }

// Set is the unordered collection of capabilities one side of an OPEN
// advertised. Multiple instances of the same code (e.g. one MultiProtocol
// capability per family) are all kept, grouped under their code.
type Set struct {
	byCode map[Code][]Capability
}

// NewSet creates an empty capability set.
func NewSet() *Set {
	return &Set{byCode: map[Code][]Capability{}}
}

// Add records a capability instance.
func (s *Set) Add(c Capability) {
	s.byCode[c.Code()] = append(s.byCode[c.Code()], c)
}

// All returns every instance advertised for code.
func (s *Set) All(code Code) []Capability {
	return s.byCode[code]
}

// One returns the first (and, for single-instance capabilities, only)
// advertised instance for code.
func (s *Set) One(code Code) (Capability, bool) {
	v := s.byCode[code]
	if len(v) == 0 {
		return nil, false
	}
	return v[0], true
}

// Has reports whether code was advertised at all.
func (s *Set) Has(code Code) bool {
	return len(s.byCode[code]) > 0
}

func (s *Set) String() string {
	return fmt.Sprintf("capabilities(%d codes)", len(s.byCode))
}

// AllCapabilities returns every advertised capability instance, grouped by
// code in ascending order, for deterministic OPEN encoding.
func (s *Set) AllCapabilities() []Capability {
	codes := make([]Code, 0, len(s.byCode))
	for c := range s.byCode {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	var out []Capability
	for _, c := range codes {
		out = append(out, s.byCode[c]...)
	}
	return out
}

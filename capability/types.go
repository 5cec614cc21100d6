package capability

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/wire"
)

// MultiProtocol (RFC 4760 §8) advertises one (AFI, SAFI) this speaker can
// carry in MP_REACH_NLRI/MP_UNREACH_NLRI.
type MultiProtocol struct {
	Family wire.Family
}

func (m MultiProtocol) Code() Code { return CodeMultiProtocol }

func (m MultiProtocol) Pack() []byte {
	b := wire.PutUint16(nil, uint16(m.Family.AFI))
	b = append(b, 0) // reserved
	b = append(b, byte(m.Family.SAFI))
	return b
}

func unpackMultiProtocol(data []byte) (Capability, error) {
	if len(data) != 4 {
		return nil, fmt.Errorf("capability: multi-protocol length %d, want 4", len(data))
	}
	afi, _ := wire.ReadUint16(data)
	return MultiProtocol{Family: wire.Family{AFI: wire.AFI(afi), SAFI: wire.SAFI(data[3])}}, nil
}

func init() { Register(CodeMultiProtocol, unpackMultiProtocol) }

// RouteRefresh is the empty-valued capability announcing support for
// ROUTE-REFRESH (RFC 2918). The same empty encoding is reused, under a
// different code, for the pre-standard Cisco variant (128).
type RouteRefresh struct{ Cisco bool }

func (r RouteRefresh) Code() Code {
	if r.Cisco {
		return CodeRouteRefreshCisco
	}
	return CodeRouteRefresh
}
func (r RouteRefresh) Pack() []byte { return nil }

func init() {
	Register(CodeRouteRefresh, func(data []byte) (Capability, error) { return RouteRefresh{}, nil })
	Register(CodeRouteRefreshCisco, func(data []byte) (Capability, error) { return RouteRefresh{Cisco: true}, nil })
}

// EnhancedRouteRefresh (RFC 7313) records that the peer understands
// Begin-of-RouteRefresh / End-of-RouteRefresh markers.
type EnhancedRouteRefresh struct{}

func (EnhancedRouteRefresh) Code() Code   { return CodeEnhancedRouteRefresh }
func (EnhancedRouteRefresh) Pack() []byte { return nil }

func init() {
	Register(CodeEnhancedRouteRefresh, func(data []byte) (Capability, error) { return EnhancedRouteRefresh{}, nil })
}

// FourByteASN (RFC 6793 §3) carries the sender's real 4-byte ASN.
type FourByteASN struct {
	ASN wire.ASN
}

func (f FourByteASN) Code() Code   { return CodeFourByteASN }
func (f FourByteASN) Pack() []byte { return wire.PutUint32(nil, uint32(f.ASN)) }

func unpackFourByteASN(data []byte) (Capability, error) {
	v, err := wire.ReadUint32(data)
	if err != nil {
		return nil, fmt.Errorf("capability: four-byte-asn: %w", err)
	}
	return FourByteASN{ASN: wire.ASN(v)}, nil
}

func init() { Register(CodeFourByteASN, unpackFourByteASN) }

// ExtendedMessage (draft-ietf-idr-bgp-extended-messages, widely deployed)
// raises the maximum message size from 4096 to 65535 octets.
type ExtendedMessage struct{}

func (ExtendedMessage) Code() Code   { return CodeExtendedMessage }
func (ExtendedMessage) Pack() []byte { return nil }

func init() {
	Register(CodeExtendedMessage, func(data []byte) (Capability, error) { return ExtendedMessage{}, nil })
}

// AddPathDirection encodes the three legal per-family AddPath modes
// (RFC 7911 §4).
type AddPathDirection uint8

const (
	AddPathReceive     AddPathDirection = 1
	AddPathSend        AddPathDirection = 2
	AddPathSendReceive AddPathDirection = 3
)

func (d AddPathDirection) canSend() bool    { return d == AddPathSend || d == AddPathSendReceive }
func (d AddPathDirection) canReceive() bool { return d == AddPathReceive || d == AddPathSendReceive }

// AddPathEntry is one (family, direction) tuple inside an AddPath capability.
type AddPathEntry struct {
	Family    wire.Family
	Direction AddPathDirection
}

// AddPath (RFC 7911 §4) lists, per family, whether this speaker wants to
// send multiple paths, receive them, or both.
type AddPath struct {
	Entries []AddPathEntry
}

func (a AddPath) Code() Code { return CodeAddPath }

func (a AddPath) Pack() []byte {
	var b []byte
	for _, e := range a.Entries {
		b = wire.PutUint16(b, uint16(e.Family.AFI))
		b = append(b, byte(e.Family.SAFI), byte(e.Direction))
	}
	return b
}

func unpackAddPath(data []byte) (Capability, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("capability: add-path length %d not a multiple of 4", len(data))
	}
	var a AddPath
	for len(data) > 0 {
		afi, _ := wire.ReadUint16(data)
		a.Entries = append(a.Entries, AddPathEntry{
			Family:    wire.Family{AFI: wire.AFI(afi), SAFI: wire.SAFI(data[2])},
			Direction: AddPathDirection(data[3]),
		})
		data = data[4:]
	}
	return a, nil
}

func init() { Register(CodeAddPath, unpackAddPath) }

// GracefulRestartFamily is one per-family entry in the Graceful Restart
// capability.
type GracefulRestartFamily struct {
	Family               wire.Family
	ForwardingPreserved  bool
}

const grRestartStateFlag = 0x8 // top bit of the 4-bit flags nibble

// GracefulRestart (RFC 4724 §3) advertises the restart-time this speaker
// asks its peer to wait across a session bounce, plus per-family whether
// forwarding state (and therefore routes) survived the restart.
type GracefulRestart struct {
	RestartTimeSeconds uint16 // 12 bits on the wire
	RestartState       bool
	Families           []GracefulRestartFamily
}

func (g GracefulRestart) Code() Code { return CodeGracefulRestart }

func (g GracefulRestart) Pack() []byte {
	flags := uint16(0)
	if g.RestartState {
		flags = grRestartStateFlag << 12
	}
	b := wire.PutUint16(nil, flags|(g.RestartTimeSeconds&0x0FFF))
	for _, f := range g.Families {
		b = wire.PutUint16(b, uint16(f.Family.AFI))
		b = append(b, byte(f.Family.SAFI))
		flagByte := byte(0)
		if f.ForwardingPreserved {
			flagByte = 0x80
		}
		b = append(b, flagByte)
	}
	return b
}

func unpackGracefulRestart(data []byte) (Capability, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("capability: graceful-restart too short")
	}
	v, _ := wire.ReadUint16(data)
	g := GracefulRestart{
		RestartTimeSeconds: v & 0x0FFF,
		RestartState:       v&(grRestartStateFlag<<12) != 0,
	}
	rest := data[2:]
	for len(rest) >= 4 {
		afi, _ := wire.ReadUint16(rest)
		g.Families = append(g.Families, GracefulRestartFamily{
			Family:              wire.Family{AFI: wire.AFI(afi), SAFI: wire.SAFI(rest[2])},
			ForwardingPreserved: rest[3]&0x80 != 0,
		})
		rest = rest[4:]
	}
	return g, nil
}

func init() { Register(CodeGracefulRestart, unpackGracefulRestart) }

// Multisession (draft-ietf-idr-bgp-multisession) lets two speakers that
// collide on neighbor-address run more than one independent session,
// differentiated by a session identifier carried in the capability value.
type Multisession struct {
	SessionID uint8
}

func (m Multisession) Code() Code   { return CodeMultisession }
func (m Multisession) Pack() []byte { return []byte{m.SessionID} }

func unpackMultisession(data []byte) (Capability, error) {
	if len(data) < 1 {
		return Multisession{}, nil
	}
	return Multisession{SessionID: data[0]}, nil
}

func init() { Register(CodeMultisession, unpackMultisession) }

// Hostname (draft-walton-bgp-hostname-capability) carries the sender's
// hostname and domain as length-prefixed strings, for diagnostics.
type Hostname struct {
	Hostname string
	Domain   string
}

func (h Hostname) Code() Code { return CodeHostname }

func (h Hostname) Pack() []byte {
	b := []byte{byte(len(h.Hostname))}
	b = append(b, h.Hostname...)
	b = append(b, byte(len(h.Domain)))
	b = append(b, h.Domain...)
	return b
}

func unpackHostname(data []byte) (Capability, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("capability: hostname too short")
	}
	n := int(data[0])
	if len(data) < 1+n+1 {
		return nil, fmt.Errorf("capability: hostname truncated")
	}
	h := Hostname{Hostname: string(data[1 : 1+n])}
	rest := data[1+n:]
	dn := int(rest[0])
	if len(rest) < 1+dn {
		return nil, fmt.Errorf("capability: hostname domain truncated")
	}
	h.Domain = string(rest[1 : 1+dn])
	return h, nil
}

func init() { Register(CodeHostname, unpackHostname) }

// SoftwareVersion (draft-abraitis-bgp-version-capability) is an opaque
// free-text string identifying the speaker's implementation and version.
type SoftwareVersion struct {
	Version string
}

func (s SoftwareVersion) Code() Code   { return CodeSoftwareVersion }
func (s SoftwareVersion) Pack() []byte { return []byte(s.Version) }

func unpackSoftwareVersion(data []byte) (Capability, error) {
	return SoftwareVersion{Version: string(data)}, nil
}

func init() { Register(CodeSoftwareVersion, unpackSoftwareVersion) }

package capability

import (
	"time"

	"github.com/nexthop-labs/bgpd/wire"
)

const (
	// DefaultMaxMessageSize is the 4096-octet cap RFC 4271 §4.1 places on
	// every BGP message unless Extended-Message raises it.
	DefaultMaxMessageSize = 4096
	// ExtendedMaxMessageSize is the cap once Extended-Message is negotiated.
	ExtendedMaxMessageSize = 65535
)

// AddPathNegotiated is the per-family, per-direction result of reconciling
// both sides' AddPath advertisements: "we send iff we advertised send and
// the peer advertised receive", and the mirror image for receiving.
type AddPathNegotiated struct {
	Send    bool
	Receive bool
}

// Negotiated is the read-only, session-lifetime result of an OPEN
// exchange. Every encoder and decoder in message/attribute/nlri consults
// it; nothing may mutate it after Compute returns.
type Negotiated struct {
	LocalASN  wire.ASN
	PeerASN   wire.ASN
	ASN4      bool
	Families  map[wire.Family]bool
	AddPath   map[wire.Family]AddPathNegotiated
	HoldTime  time.Duration
	MaxMessageSize int
	Multisession   bool
	LocalRouterID  uint32
	PeerRouterID   uint32
	GracefulRestart *GracefulRestart // peer's advertisement, nil if the peer did not advertise it
	EnhancedRouteRefresh bool
}

// Compute intersects the local and peer capability sets into a frozen
// Negotiated context.
func Compute(local, peer *Set, localASN, peerASN wire.ASN, localHold, peerHold time.Duration, localRouterID, peerRouterID uint32) *Negotiated {
	n := &Negotiated{
		LocalASN:      localASN,
		PeerASN:       peerASN,
		Families:      map[wire.Family]bool{},
		AddPath:       map[wire.Family]AddPathNegotiated{},
		MaxMessageSize: DefaultMaxMessageSize,
		LocalRouterID: localRouterID,
		PeerRouterID:  peerRouterID,
	}

	// Multi-Protocol: families = sent ∩ received. A session with no
	// MultiProtocol capability at all is implicitly IPv4 unicast only.
	localFamilies := familiesOf(local)
	peerFamilies := familiesOf(peer)
	if len(localFamilies) == 0 {
		localFamilies = map[wire.Family]bool{wire.IPv4Unicast: true}
	}
	if len(peerFamilies) == 0 {
		peerFamilies = map[wire.Family]bool{wire.IPv4Unicast: true}
	}
	for f := range localFamilies {
		if peerFamilies[f] {
			n.Families[f] = true
		}
	}

	// Four-byte ASN: enabled iff BOTH sides advertise it.
	n.ASN4 = local.Has(CodeFourByteASN) && peer.Has(CodeFourByteASN)

	// Extended-Message raises the per-message size cap.
	if local.Has(CodeExtendedMessage) && peer.Has(CodeExtendedMessage) {
		n.MaxMessageSize = ExtendedMaxMessageSize
	}

	// Multisession is symmetric: both sides must offer it.
	n.Multisession = local.Has(CodeMultisession) && peer.Has(CodeMultisession)

	n.EnhancedRouteRefresh = local.Has(CodeEnhancedRouteRefresh) && peer.Has(CodeEnhancedRouteRefresh)

	// Add-Path: per (AFI,SAFI), each side may have advertised
	// send/receive/send+receive; compose direction-wise.
	localAP := addPathOf(local)
	peerAP := addPathOf(peer)
	seen := map[wire.Family]bool{}
	for f := range localAP {
		seen[f] = true
	}
	for f := range peerAP {
		seen[f] = true
	}
	for f := range seen {
		l := localAP[f]
		p := peerAP[f]
		n.AddPath[f] = AddPathNegotiated{
			Send:    l.canSend() && p.canReceive(),
			Receive: l.canReceive() && p.canSend(),
		}
	}

	if gr, ok := peer.One(CodeGracefulRestart); ok {
		g := gr.(GracefulRestart)
		n.GracefulRestart = &g
	}

	n.HoldTime = localHold
	if peerHold < n.HoldTime {
		n.HoldTime = peerHold
	}

	return n
}

func familiesOf(s *Set) map[wire.Family]bool {
	out := map[wire.Family]bool{}
	for _, c := range s.All(CodeMultiProtocol) {
		out[c.(MultiProtocol).Family] = true
	}
	return out
}

func addPathOf(s *Set) map[wire.Family]AddPathDirection {
	out := map[wire.Family]AddPathDirection{}
	for _, c := range s.All(CodeAddPath) {
		for _, e := range c.(AddPath).Entries {
			out[e.Family] = e.Direction
		}
	}
	return out
}

// HasFamily reports whether family was negotiated for this session.
func (n *Negotiated) HasFamily(f wire.Family) bool {
	return n.Families[f]
}

// AddPathFor returns the negotiated AddPath directions for f (zero value
// if AddPath was never discussed for that family, i.e. disabled both ways).
func (n *Negotiated) AddPathFor(f wire.Family) AddPathNegotiated {
	return n.AddPath[f]
}

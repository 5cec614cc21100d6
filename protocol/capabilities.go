package protocol

import (
	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/config"
	"github.com/nexthop-labs/bgpd/message"
	"github.com/nexthop-labs/bgpd/wire"
)

// localCapabilities builds the capability set this speaker offers nb in
// its own OPEN, from the neighbor's configured "capabilities to offer".
func localCapabilities(nb config.Neighbor) *capability.Set {
	set := capability.NewSet()
	for _, f := range nb.Families {
		set.Add(capability.MultiProtocol{Family: f})
	}
	if nb.ASN4 {
		set.Add(capability.FourByteASN{ASN: nb.LocalASN})
	}
	if nb.ExtendedMessage {
		set.Add(capability.ExtendedMessage{})
	}
	if nb.RouteRefresh {
		set.Add(capability.RouteRefresh{})
	}
	if nb.EnhancedRouteRefresh {
		set.Add(capability.EnhancedRouteRefresh{})
	}
	if gr := nb.GracefulRestart; gr != nil && gr.RestartTime > 0 {
		g := capability.GracefulRestart{RestartTimeSeconds: uint16(gr.RestartTime.Seconds())}
		for _, f := range gr.ForwardingPreserved {
			g.Families = append(g.Families, capability.GracefulRestartFamily{Family: f, ForwardingPreserved: true})
		}
		set.Add(g)
	}
	if len(nb.AddPath) > 0 {
		ap := capability.AddPath{}
		for _, t := range nb.AddPath {
			ap.Entries = append(ap.Entries, capability.AddPathEntry{Family: t.Family, Direction: t.Direction})
		}
		set.Add(ap)
	}
	if nb.Multisession {
		set.Add(capability.Multisession{})
	}
	return set
}

// resolvePeerASN returns the peer's real ASN: the OPEN's 2-byte MyASN
// field, unless it is AS_TRANS and a FourByteASN capability is present, in
// which case the capability's value is authoritative (RFC 6793 §4.2.2).
func resolvePeerASN(open message.Open) wire.ASN {
	if wire.ASN(open.MyASN) == wire.ASTrans && open.Capabilities != nil {
		if c, ok := open.Capabilities.One(capability.CodeFourByteASN); ok {
			return c.(capability.FourByteASN).ASN
		}
	}
	return wire.ASN(open.MyASN)
}

// validatePeerASN checks the resolved peer ASN against the neighbor's
// configured expectation, if any is pinned (a zero PeerASN means "accept
// whatever ASN the peer advertises", used for dynamic/unnumbered peers).
func validatePeerASN(nb config.Neighbor, peerASN wire.ASN) *message.Notification {
	if nb.PeerASN != 0 && peerASN != nb.PeerASN {
		n := message.NewNotification(message.ErrOpenMessage, message.SubErrBadPeerAS)
		return &n
	}
	return nil
}

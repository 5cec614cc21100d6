// Package config holds the typed, external-interface structs for the
// per-Neighbor configuration and the Change stream the core consumes from
// config/API input. Parsing a configuration DSL into these structs is out
// of scope for this package — it is the seam an external loader builds
// Neighbor/Change values against.
package config

import (
	"net"
	"time"

	"github.com/nexthop-labs/bgpd/attribute"
	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/nlri"
	"github.com/nexthop-labs/bgpd/rib"
	"github.com/nexthop-labs/bgpd/wire"
)

// AddPathToggle requests a per-family AddPath direction this speaker
// should advertise, independent of whatever the peer ends up proposing
// (the session-level outcome is still the intersection capability.Compute
// computes).
type AddPathToggle struct {
	Family    wire.Family
	Direction capability.AddPathDirection
}

// TCPMD5 is the RFC 2385 shared secret for one neighbor's TCP session.
type TCPMD5 struct {
	Key string
}

// TCPAO is the RFC 5925 TCP Authentication Option key. Key rotation is out
// of scope; the key is an opaque input handed to the kernel as-is.
type TCPAO struct {
	KeyID     int
	Algorithm string
	Password  string
}

// GracefulRestart toggles RFC 4724 support for one neighbor: the
// restart-time this speaker asks the peer to wait, and which negotiated
// families have forwarding state preserved across a restart.
type GracefulRestart struct {
	RestartTime         time.Duration
	ForwardingPreserved []wire.Family
}

// HelperProcess describes one external process this neighbor's events and
// commands are piped to. Spawning, stdio plumbing and process supervision
// are out of scope; the core only needs to know
// whether to encode outbound events as JSON or as the line-oriented text
// form.
type HelperProcess struct {
	Command  []string
	JSONOut  bool
}

// Neighbor is the full configuration for one BGP peer.
type Neighbor struct {
	PeerAddress  net.IP
	PeerASN      wire.ASN
	LocalAddress net.IP
	LocalASN     wire.ASN
	// RouterID is this speaker's BGP Identifier to offer this neighbor; a
	// zero value means "discover one from the host's interfaces"
	// (network.FindBGPIdentifier).
	RouterID uint32
	HoldTime time.Duration

	// Passive, if set, means this neighbor is never actively dialed: the
	// reactor only ever hands it an inbound connection accepted on the
	// listening socket.
	Passive bool

	Families []wire.Family

	ASN4                 bool
	ExtendedMessage      bool
	RouteRefresh         bool
	EnhancedRouteRefresh bool
	GracefulRestart      *GracefulRestart
	AddPath              []AddPathToggle
	Multisession         bool
	Operational          bool

	MD5           *TCPMD5
	TCPAO         *TCPAO
	TTLSecurity   bool
	MinTTL        int
	BindInterface string

	// StaticRoutes are announced automatically once the session reaches
	// Established, ahead of anything the API sends.
	StaticRoutes []Change

	Helpers []HelperProcess
}

// String identifies a neighbor by its peer address, which uniquely
// identifies the neighbor within a multisession group.
func (n Neighbor) String() string {
	return n.PeerAddress.String()
}

// Change is one route-delta: an NLRI to announce or withdraw, carrying
// the attributes an announcement needs
// (a withdrawal carries none beyond what MP_UNREACH_NLRI framing
// requires — callers pass nil Attributes for a withdraw).
type Change struct {
	Family     wire.Family
	NLRI       nlri.NLRI
	Attributes *attribute.Attributes
	Action     rib.Action
}

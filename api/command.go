// Package api implements a scriptable control surface:
// a line-oriented text-command parser and a JSON/text event encoder,
// both operating over plain io.Reader/io.Writer so the core is testable
// without an actual spawned helper process's stdio. Bit-exact verb names
// matter for compatibility, so the parser recognises the standard
// verbs even though a config-DSL-level grammar (full
// Flow-Spec match expressions, operational message bodies) is out of
// scope — see DESIGN.md for exactly which sub-grammars are supported.
package api

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/nexthop-labs/bgpd/attribute"
	"github.com/nexthop-labs/bgpd/config"
	"github.com/nexthop-labs/bgpd/internal/log"
	"github.com/nexthop-labs/bgpd/nlri"
	"github.com/nexthop-labs/bgpd/rib"
	"github.com/nexthop-labs/bgpd/wire"
)

var apiLog = log.Component("api")

// Dispatcher is the subset of reactor.Reactor the command parser needs,
// kept as an interface so this package doesn't import `reactor` (and so
// tests can exercise the parser against a fake).
type Dispatcher interface {
	Announce(c config.Change, restrictTo string)
	RouteRefresh(family wire.Family, restrictTo string)
	Shutdown(restrictTo string)
	Status(restrictTo string) []NeighborStatus
	Routes(restrictTo string) []RouteEntry
}

// NeighborStatus is one row of the `show neighbor` reply.
type NeighborStatus struct {
	PeerAddress string
	State       string
	RoutesIn    int
	RoutesOut   int
}

// RouteEntry is one row of the `show routes` reply.
type RouteEntry struct {
	PeerAddress string
	Direction   string // "receive" (Adj-RIB-In) or "send" (Adj-RIB-Out)
	Family      string
	NLRI        string
	Attributes  string
	Withdrawn   bool
}

// Parser executes one command line at a time against a Dispatcher.
type Parser struct {
	d Dispatcher

	// watchdogs is only ever touched from Execute, called sequentially by
	// one helper-process-reading goroutine, so it needs no lock.
	watchdogs map[string]bool
}

// NewParser builds a Parser driving d.
func NewParser(d Dispatcher) *Parser {
	return &Parser{d: d, watchdogs: make(map[string]bool)}
}

// Execute parses and runs one command line, returning the text reply:
// commands are line-oriented; "show" verbs produce a
// reply, action verbs reply "done" or an error line. API errors are
// reported to the caller without affecting the core.
func (p *Parser) Execute(line string) (string, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", nil
	}
	fields := strings.Fields(line)
	restrictTo := ""
	if len(fields) >= 2 && fields[0] == "neighbor" {
		restrictTo = fields[1]
		fields = fields[2:]
	}
	if len(fields) == 0 {
		return "", fmt.Errorf("api: empty command")
	}

	switch fields[0] {
	case "announce":
		return p.announce(fields[1:], restrictTo)
	case "withdraw":
		return p.withdraw(fields[1:], restrictTo)
	case "shutdown":
		p.d.Shutdown(restrictTo)
		return "shutdown in progress", nil
	case "restart":
		// A session restart is just an administrative Cease followed by
		// the FSM's own automatic reconnection; there's no
		// separate "restart" action beyond Shutdown for a Passive=false
		// neighbor, which redials on its own backoff.
		p.d.Shutdown(restrictTo)
		return "restart in progress", nil
	case "reload":
		return "", fmt.Errorf("api: reload requires an external config loader (out of scope)")
	case "watchdog":
		return p.watchdog(fields[1:], restrictTo)
	case "show":
		return p.show(fields[1:], restrictTo)
	default:
		return "", fmt.Errorf("api: unknown command verb %q", fields[0])
	}
}

func (p *Parser) announce(fields []string, restrictTo string) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("api: announce: missing object")
	}
	switch fields[0] {
	case "route":
		return p.announceRoute(fields[1:], restrictTo, rib.ActionAnnounce)
	case "route-refresh":
		return p.announceRouteRefresh(fields[1:], restrictTo)
	case "eor":
		// End-of-RIB is emitted automatically once a session's initial
		// Adj-RIB-Out sync completes (protocol.syncAdjRibOut); there is
		// nothing left for the API to trigger here beyond that.
		return "eor is sent automatically at end of initial sync", nil
	case "flow":
		return p.flow(fields[1:], restrictTo, rib.ActionAnnounce)
	case "operational":
		return "", fmt.Errorf("api: announce operational: not a standard BGP message type, not implemented")
	default:
		return "", fmt.Errorf("api: announce: unknown object %q", fields[0])
	}
}

func (p *Parser) withdraw(fields []string, restrictTo string) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("api: withdraw: missing object")
	}
	switch fields[0] {
	case "route":
		return p.announceRoute(fields[1:], restrictTo, rib.ActionWithdraw)
	case "flow":
		return p.flow(fields[1:], restrictTo, rib.ActionWithdraw)
	default:
		return "", fmt.Errorf("api: withdraw: unknown object %q", fields[0])
	}
}

// announceRoute parses `<prefix> [next-hop <ip>] [as-path <asn,asn,...>]
// [origin igp|egp|incomplete] [med <n>] [local-preference <n>]`, the
// IPv4/IPv6 unicast subset of the `announce route`/`withdraw route` verbs.
// No other attribute keyword is accepted: a `community` keyword, like any
// other unknown one, is rejected with an error.
func (p *Parser) announceRoute(fields []string, restrictTo string, action rib.Action) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("api: route: missing prefix")
	}
	prefix, family, err := parsePrefix(fields[0])
	if err != nil {
		return "", err
	}
	n := nlri.NewInet(family, prefix)

	var attrs *attribute.Attributes
	if action == rib.ActionAnnounce {
		attrs, err = parseRouteAttributes(fields[1:])
		if err != nil {
			return "", err
		}
	}

	p.d.Announce(config.Change{Family: family, NLRI: n, Attributes: attrs, Action: action}, restrictTo)
	return "done", nil
}

func parsePrefix(s string) (wire.CIDR, wire.Family, error) {
	ip, ipnet, err := net.ParseCIDR(s)
	if err != nil {
		return wire.CIDR{}, wire.Family{}, fmt.Errorf("api: invalid prefix %q: %w", s, err)
	}
	ones, _ := ipnet.Mask.Size()
	wireIP := wire.NewIP(ip)
	cidr := wire.CIDR{IP: wireIP, Length: ones}
	family := wire.IPv4Unicast
	if wireIP.AFI == wire.AFIIPv6 {
		family = wire.IPv6Unicast
	}
	return cidr, family, nil
}

func parseRouteAttributes(fields []string) (*attribute.Attributes, error) {
	attrs := attribute.New()
	attrs.Set(attribute.Origin{Value: attribute.OriginIGP})
	// An empty AS_PATH is what a locally originated route carries; the
	// as-path keyword below replaces it.
	attrs.Set(attribute.NewASPath(nil))
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "next-hop":
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("api: next-hop: missing value")
			}
			ip := net.ParseIP(fields[i+1])
			if ip == nil {
				return nil, fmt.Errorf("api: invalid next-hop %q", fields[i+1])
			}
			attrs.Set(attribute.NextHop{IP: ip})
			i++
		case "origin":
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("api: origin: missing value")
			}
			v, err := parseOrigin(fields[i+1])
			if err != nil {
				return nil, err
			}
			attrs.Set(attribute.Origin{Value: v})
			i++
		case "as-path":
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("api: as-path: missing value")
			}
			segment, err := parseASPath(fields[i+1])
			if err != nil {
				return nil, err
			}
			attrs.Set(attribute.NewASPath([]attribute.Segment{segment}))
			i++
		case "med":
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("api: med: missing value")
			}
			v, err := strconv.ParseUint(fields[i+1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("api: invalid med %q: %w", fields[i+1], err)
			}
			attrs.Set(attribute.MED{Value: uint32(v)})
			i++
		case "local-preference":
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("api: local-preference: missing value")
			}
			v, err := strconv.ParseUint(fields[i+1], 10, 32)
			if err != nil {
				return nil, fmt.Errorf("api: invalid local-preference %q: %w", fields[i+1], err)
			}
			attrs.Set(attribute.LocalPref{Value: uint32(v)})
			i++
		default:
			return nil, fmt.Errorf("api: route: unknown attribute keyword %q", fields[i])
		}
	}
	return attrs, nil
}

func parseOrigin(s string) (attribute.OriginValue, error) {
	switch strings.ToLower(s) {
	case "igp":
		return attribute.OriginIGP, nil
	case "egp":
		return attribute.OriginEGP, nil
	case "incomplete":
		return attribute.OriginIncomplete, nil
	default:
		return 0, fmt.Errorf("api: invalid origin %q", s)
	}
}

// parseASPath parses a comma-separated ASN list into one AS_SEQUENCE
// segment, the common case for a locally originated route.
func parseASPath(s string) (attribute.Segment, error) {
	parts := strings.Split(s, ",")
	asns := make([]wire.ASN, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32)
		if err != nil {
			return attribute.Segment{}, fmt.Errorf("api: invalid ASN %q: %w", part, err)
		}
		asns = append(asns, wire.ASN(v))
	}
	return attribute.Segment{Type: attribute.SegmentSequence, ASNs: asns}, nil
}

func (p *Parser) announceRouteRefresh(fields []string, restrictTo string) (string, error) {
	family, err := parseFamily(fields)
	if err != nil {
		return "", err
	}
	p.d.RouteRefresh(family, restrictTo)
	return "done", nil
}

// parseFamily parses `family <afi> <safi>` (e.g. `family ipv4 unicast`),
// defaulting to ipv4 unicast when unspecified.
func parseFamily(fields []string) (wire.Family, error) {
	if len(fields) == 0 {
		return wire.IPv4Unicast, nil
	}
	if len(fields) < 3 || fields[0] != "family" {
		return wire.Family{}, fmt.Errorf("api: expected \"family <afi> <safi>\"")
	}
	switch strings.ToLower(fields[1]) + "/" + strings.ToLower(fields[2]) {
	case "ipv4/unicast":
		return wire.IPv4Unicast, nil
	case "ipv6/unicast":
		return wire.IPv6Unicast, nil
	case "ipv4/multicast":
		return wire.IPv4Multicast, nil
	case "ipv6/multicast":
		return wire.IPv6Multicast, nil
	default:
		return wire.Family{}, fmt.Errorf("api: unsupported family %s/%s", fields[1], fields[2])
	}
}

// show renders the `show neighbor` / `show routes` snapshot replies. Both
// take snapshots through the Dispatcher, so the reply reflects a
// consistent point in time per peer.
func (p *Parser) show(fields []string, restrictTo string) (string, error) {
	if len(fields) == 0 {
		return "", fmt.Errorf("api: show: expected \"show {neighbor|routes}\"")
	}
	switch fields[0] {
	case "neighbor":
		status := p.d.Status(restrictTo)
		if len(status) == 0 {
			return "no configured neighbor", nil
		}
		var b strings.Builder
		for _, s := range status {
			fmt.Fprintf(&b, "neighbor %s state %s routes-in %d routes-out %d\n",
				s.PeerAddress, s.State, s.RoutesIn, s.RoutesOut)
		}
		return strings.TrimRight(b.String(), "\n"), nil
	case "routes":
		routes := p.d.Routes(restrictTo)
		if len(routes) == 0 {
			return "no routes", nil
		}
		var b strings.Builder
		for _, r := range routes {
			state := "announced"
			if r.Withdrawn {
				state = "withdrawn"
			}
			fmt.Fprintf(&b, "neighbor %s %s %s %s %s", r.PeerAddress, r.Direction, r.Family, r.NLRI, state)
			if r.Attributes != "" {
				fmt.Fprintf(&b, " %s", r.Attributes)
			}
			b.WriteByte('\n')
		}
		return strings.TrimRight(b.String(), "\n"), nil
	default:
		return "", fmt.Errorf("api: show: unknown object %q", fields[0])
	}
}

// watchdog tracks a named condition an external monitor toggles; routes
// tagged with a matching watchdog name in their config are meant to be
// withdrawn while it reads "withdraw" (the `watchdog
// {announce|withdraw} <name>` verb). Gating actual Change announcement on
// watchdog state is the config loader's job (it owns the name-to-route
// association); this parser only records the toggle.
func (p *Parser) watchdog(fields []string, _ string) (string, error) {
	if len(fields) != 2 {
		return "", fmt.Errorf("api: watchdog: expected \"watchdog {announce|withdraw} <name>\"")
	}
	name := fields[1]
	switch fields[0] {
	case "announce":
		p.watchdogs[name] = true
	case "withdraw":
		p.watchdogs[name] = false
	default:
		return "", fmt.Errorf("api: watchdog: unknown action %q", fields[0])
	}
	apiLog.WithField("watchdog", name).WithField("state", fields[0]).Info("watchdog toggled")
	return "done", nil
}

// WatchdogState reports whether name is currently in the "announce"
// state (true) or "withdraw" state (false); unseen names default to
// announce, matching ExaBGP's "watchdogs start up".
func (p *Parser) WatchdogState(name string) bool {
	v, ok := p.watchdogs[name]
	if !ok {
		return true
	}
	return v
}

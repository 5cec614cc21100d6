// Package reactor is a single-threaded cooperative scheduler: it owns
// the set of `protocol.Protocol`s, the listening socket, and fans inbound
// connections and API commands out to the right peer. Rather than
// driving each `Protocol` through a generator scheduled onto one OS
// thread, this implementation uses one goroutine per `Protocol` and
// keeps the dispatch-side invariant ("no two goroutines mutate one
// peer's RIB/FSM concurrently") by construction: every mutation happens
// inside that peer's own `protocol.Protocol.Run` goroutine, reached only
// through its channel-based API.
package reactor

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/nexthop-labs/bgpd/api"
	"github.com/nexthop-labs/bgpd/config"
	"github.com/nexthop-labs/bgpd/internal/log"
	"github.com/nexthop-labs/bgpd/protocol"
	"github.com/nexthop-labs/bgpd/rib"
	"github.com/nexthop-labs/bgpd/transport"
	"github.com/nexthop-labs/bgpd/wire"
)

var reactorLog = log.Component("reactor")

// Reactor multiplexes every configured neighbor's session.
type Reactor struct {
	bindAddr net.IP
	security transport.Security

	mu    sync.RWMutex
	peers map[string]*protocol.Protocol

	listener *transport.Listener
	wg       sync.WaitGroup

	events chan protocol.Event
}

// New builds a Reactor that will listen on bindAddr once Run starts.
// The listening socket is opened with a zero transport.Security (no MD5,
// TTL security or bind-to-device option), and a neighbor's own
// MD5/TTL/bind-interface settings are not applied to the connections
// that listener accepts.
func New(bindAddr net.IP) *Reactor {
	return &Reactor{
		bindAddr: bindAddr,
		peers:    make(map[string]*protocol.Protocol),
		events:   make(chan protocol.Event, 256),
	}
}

// Events returns the merged event stream across every registered
// neighbor, the feed the `api` package encodes onward to helper
// processes.
func (r *Reactor) Events() <-chan protocol.Event { return r.events }

// AddNeighbor registers nb and starts its session goroutine. Safe to call
// before or after Run (rejecting a bad reload and keeping the old
// configuration is the caller's job — Reactor itself just starts what
// it's given).
func (r *Reactor) AddNeighbor(ctx context.Context, nb config.Neighbor) *protocol.Protocol {
	p := protocol.New(nb)
	r.mu.Lock()
	r.peers[nb.PeerAddress.String()] = p
	r.mu.Unlock()

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		p.Run(ctx)
	}()
	go func() {
		defer r.wg.Done()
		src := p.Events()
		for {
			select {
			case ev := <-src:
				select {
				case r.events <- ev:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return p
}

// RemoveNeighbor stops and forgets nb's session. The Protocol's own
// goroutine exits once Stop's administrative shutdown completes.
func (r *Reactor) RemoveNeighbor(peerAddr string) {
	r.mu.Lock()
	p, ok := r.peers[peerAddr]
	delete(r.peers, peerAddr)
	r.mu.Unlock()
	if ok {
		p.Stop()
	}
}

// Peer returns the Protocol for a configured neighbor, for `show
// neighbor`/`show routes` and for test harnesses.
func (r *Reactor) Peer(peerAddr string) (*protocol.Protocol, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.peers[peerAddr]
	return p, ok
}

// Peers returns every currently registered Protocol.
func (r *Reactor) Peers() []*protocol.Protocol {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*protocol.Protocol, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// Run opens the listening socket and accepts inbound connections until
// ctx is cancelled, routing each one to the Protocol whose configured
// peer-address matches the connection's remote IP (the
// listener is shared, each neighbor's Protocol decides whether to accept
// based on its own FSM state). Unmatched connections are closed with a
// Cease/ConnectionRejected NOTIFICATION opportunity left to the caller —
// here they're simply dropped, since no Protocol exists to hand them to.
func (r *Reactor) Run(ctx context.Context) error {
	ln, err := transport.Listen(r.bindAddr, r.security)
	if err != nil {
		return fmt.Errorf("reactor: listen: %w", err)
	}
	r.listener = ln

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				r.wg.Wait()
				return nil
			default:
				reactorLog.WithError(err).Warn("accept failed")
				continue
			}
		}
		r.dispatchIncoming(conn)
	}
}

func (r *Reactor) dispatchIncoming(conn *transport.Connection) {
	remote := conn.RemoteIP().String()
	r.mu.RLock()
	p, ok := r.peers[remote]
	r.mu.RUnlock()
	if !ok {
		reactorLog.WithField("remote", remote).Warn("inbound connection from unconfigured peer, rejecting")
		conn.Close()
		return
	}
	p.AcceptConn(conn)
}

// Announce fans a Change, an announce or a withdraw by its Action, out to
// every registered neighbor, the "API -> per-Neighbor adj-rib-out" data
// flow; neighbors are not filtered by their configured families.
// restrictTo, if non-empty, limits the fan-out to
// one neighbor (the `neighbor <ip>` command prefix).
func (r *Reactor) Announce(c config.Change, restrictTo string) {
	r.forEachTarget(restrictTo, func(p *protocol.Protocol) {
		p.SendChange(c)
	})
}

func (r *Reactor) forEachTarget(restrictTo string, fn func(*protocol.Protocol)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if restrictTo != "" {
		if p, ok := r.peers[restrictTo]; ok {
			fn(p)
		}
		return
	}
	for _, p := range r.peers {
		fn(p)
	}
}

// RouteRefresh requests a replay of restrictTo's (or every peer's)
// Adj-RIB-Out for family, as if a ROUTE-REFRESH had arrived for it.
func (r *Reactor) RouteRefresh(family wire.Family, restrictTo string) {
	r.forEachTarget(restrictTo, func(p *protocol.Protocol) {
		p.RequestRouteRefresh(family)
	})
}

// Shutdown administratively stops restrictTo, or every peer if empty.
func (r *Reactor) Shutdown(restrictTo string) {
	r.forEachTarget(restrictTo, func(p *protocol.Protocol) {
		p.Stop()
	})
}

// Status returns a snapshot of every targeted neighbor's session, the
// backing for `show neighbor`. Each peer's snapshot is taken inside its
// own session goroutine, so counts and state are mutually consistent per
// peer.
func (r *Reactor) Status(restrictTo string) []api.NeighborStatus {
	var out []api.NeighborStatus
	r.forEachTarget(restrictTo, func(p *protocol.Protocol) {
		snap := p.Snapshot()
		out = append(out, api.NeighborStatus{
			PeerAddress: p.Neighbor().String(),
			State:       snap.State.String(),
			RoutesIn:    len(snap.In),
			RoutesOut:   len(snap.Out),
		})
	})
	return out
}

// Routes returns every targeted neighbor's Adj-RIB-In and Adj-RIB-Out
// contents, the backing for `show routes`.
func (r *Reactor) Routes(restrictTo string) []api.RouteEntry {
	var out []api.RouteEntry
	r.forEachTarget(restrictTo, func(p *protocol.Protocol) {
		snap := p.Snapshot()
		peer := p.Neighbor().String()
		for _, route := range snap.In {
			out = append(out, routeEntry(peer, "receive", route))
		}
		for _, route := range snap.Out {
			out = append(out, routeEntry(peer, "send", route))
		}
	})
	return out
}

func routeEntry(peer, direction string, route rib.Route) api.RouteEntry {
	e := api.RouteEntry{
		PeerAddress: peer,
		Direction:   direction,
		Family:      route.Family.String(),
		NLRI:        route.NLRI.Key(),
		Withdrawn:   route.Action == rib.ActionWithdraw,
	}
	if route.Attributes != nil {
		e.Attributes = route.Attributes.String()
	}
	return e
}

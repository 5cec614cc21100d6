// Package rib implements the per-peer Routing Information Base (RFC
// 4271 §3.2): Adj-RIB-In and Adj-RIB-Out, keyed by
// (family, nlri-index), plus the
// Graceful-Restart stale-marking and sweep described below. The
// Loc-RIB / best-path Decision Process (RFC 4271 §9.1) is explicitly out
// of scope: each peer's Adj-RIB-In stands on its own,
// and what goes into a peer's Adj-RIB-Out is decided by the `reactor`
// (typically "everything from every other peer's Adj-RIB-In", i.e. a
// route-reflector/route-server topology) rather than by a shared
// best-path table.
package rib

import (
	"time"

	"github.com/nexthop-labs/bgpd/attribute"
	"github.com/nexthop-labs/bgpd/nlri"
	"github.com/nexthop-labs/bgpd/wire"
)

// Action is whether a Route entry represents something to announce or
// something withdrawn. Adj-RIB-In overwrites rather than deletes a
// withdrawn key's entry, so the key stays listed (e.g. by `show routes`
// after a withdrawal) until it is reused or the session resets; the
// withdrawn entry carries no attributes.
type Action int

const (
	ActionAnnounce Action = iota
	ActionWithdraw
)

// Route is one entry in a RIB: an NLRI paired with the path attributes
// that were current the last time it changed, RFC 4271 §3.1's
// destination-plus-path-attributes pairing.
type Route struct {
	Family     wire.Family
	NLRI       nlri.NLRI
	Attributes *attribute.Attributes
	Action     Action
	ReceivedAt time.Time
	// Stale marks an Adj-RIB-In entry that survived a session drop while
	// Graceful Restart was negotiated for this family, pending either a
	// replay from the peer or the sweep once EoR/restart-time elapses
	// (Graceful-Restart semantics).
	Stale bool
}

// key identifies one Route inside a RIB: the family plus the NLRI's own
// canonical Key(), which already folds in the add-path identifier when
// one is negotiated.
type key struct {
	family wire.Family
	nlri   string
}

func keyFor(family wire.Family, n nlri.NLRI) key {
	return key{family: family, nlri: n.Key()}
}

// AdjRibIn is the routing information learned from one peer's UPDATE
// messages (RFC 4271 §3.2(a)).
type AdjRibIn struct {
	routes map[key]*Route
}

// NewAdjRibIn returns an empty Adj-RIB-In.
func NewAdjRibIn() *AdjRibIn {
	return &AdjRibIn{routes: make(map[key]*Route)}
}

// Announce records or replaces the route for n: for
// each announced NLRI, overwrite with (nlri, attributes,
// action=announce, received_at).
func (r *AdjRibIn) Announce(family wire.Family, n nlri.NLRI, attrs *attribute.Attributes, at time.Time) {
	r.routes[keyFor(family, n)] = &Route{
		Family: family, NLRI: n, Attributes: attrs, Action: ActionAnnounce, ReceivedAt: at,
	}
}

// Withdraw marks the route for n withdrawn, replacing the entry with one
// that has no attributes rather than deleting it.
func (r *AdjRibIn) Withdraw(family wire.Family, n nlri.NLRI, at time.Time) {
	r.routes[keyFor(family, n)] = &Route{
		Family: family, NLRI: n, Action: ActionWithdraw, ReceivedAt: at,
	}
}

// Get returns the current entry for (family, n), if any.
func (r *AdjRibIn) Get(family wire.Family, n nlri.NLRI) (*Route, bool) {
	route, ok := r.routes[keyFor(family, n)]
	return route, ok
}

// Len returns the number of tracked keys (announced and withdrawn).
func (r *AdjRibIn) Len() int { return len(r.routes) }

// Routes returns every tracked entry, for snapshotting into a peer's
// Adj-RIB-Out on propagation, or for `show routes`.
func (r *AdjRibIn) Routes() []*Route {
	out := make([]*Route, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, route)
	}
	return out
}

// MarkStale flags every currently-announced entry stale, called when a
// session with Graceful Restart negotiated for family goes down.
func (r *AdjRibIn) MarkStale(family wire.Family) {
	for _, route := range r.routes {
		if route.Family == family && route.Action == ActionAnnounce {
			route.Stale = true
		}
	}
}

// ClearStale unmarks the entry for (family, n), called once the peer
// replays it after reconnecting (a route that reappears is no longer stale,
// regardless of whether its attributes changed).
func (r *AdjRibIn) ClearStale(family wire.Family, n nlri.NLRI) {
	if route, ok := r.routes[keyFor(family, n)]; ok {
		route.Stale = false
	}
}

// SweepStale deletes every entry still marked stale for family, called
// once End-of-RIB arrives (or the negotiated Graceful Restart time
// elapses without one). It returns the keys removed so
// the caller can synthesize the implicit withdrawals downstream.
func (r *AdjRibIn) SweepStale(family wire.Family) []nlri.NLRI {
	var removed []nlri.NLRI
	for k, route := range r.routes {
		if route.Family == family && route.Stale {
			removed = append(removed, route.NLRI)
			delete(r.routes, k)
		}
	}
	return removed
}

// AdjRibOut is the routing information selected for advertisement to one
// peer (RFC 4271 §3.2(c)). It additionally tracks which keys are
// "pending" — their on-the-wire state differs from Routes' cached
// state — so `delta.Generate` knows what still needs to go out.
type AdjRibOut struct {
	routes  map[key]*Route
	pending map[key]bool
}

// NewAdjRibOut returns an empty Adj-RIB-Out.
func NewAdjRibOut() *AdjRibOut {
	return &AdjRibOut{routes: make(map[key]*Route), pending: make(map[key]bool)}
}

// Insert records a change to advertise, superseding any pending change
// for the same key.
func (r *AdjRibOut) Insert(route *Route) {
	k := keyFor(route.Family, route.NLRI)
	r.routes[k] = route
	r.pending[k] = true
}

// Pending returns every route whose wire state hasn't been flushed yet,
// for `delta.Generate` to batch into UPDATE messages.
func (r *AdjRibOut) Pending() []*Route {
	out := make([]*Route, 0, len(r.pending))
	for k := range r.pending {
		if route, ok := r.routes[k]; ok {
			out = append(out, route)
		}
	}
	return out
}

// MarkFlushed clears the pending bit for every key in routes, called
// once `delta.Generate` has produced the UPDATE(s) carrying them.
func (r *AdjRibOut) MarkFlushed(routes []*Route) {
	for _, route := range routes {
		delete(r.pending, keyFor(route.Family, route.NLRI))
	}
}

// Replay marks every currently-cached route pending again, without
// changing the cache itself: used after a session reset to
// replay the entire cached state (plus EORs).
func (r *AdjRibOut) Replay() {
	for k := range r.routes {
		r.pending[k] = true
	}
}

// ReplayFamily marks only family's cached routes pending again, the
// selective counterpart to Replay used when a peer sends ROUTE-REFRESH
// for a single (AFI, SAFI) rather than bouncing the whole session.
func (r *AdjRibOut) ReplayFamily(family wire.Family) {
	for k, route := range r.routes {
		if route.Family == family {
			r.pending[k] = true
		}
	}
}

// Len returns the number of cached keys.
func (r *AdjRibOut) Len() int { return len(r.routes) }

// Routes returns every cached entry, pending or flushed, for `show
// routes`.
func (r *AdjRibOut) Routes() []*Route {
	out := make([]*Route, 0, len(r.routes))
	for _, route := range r.routes {
		out = append(out, route)
	}
	return out
}

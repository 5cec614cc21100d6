// Package delta implements the UPDATE generation pipeline: turning a
// batch of pending `rib.Route` changes into the smallest number of
// UPDATE messages that respects the negotiated maximum message size,
// grouping announcements by exact Attributes identity.
package delta

import (
	"github.com/nexthop-labs/bgpd/attribute"
	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/message"
	"github.com/nexthop-labs/bgpd/nlri"
	"github.com/nexthop-labs/bgpd/rib"
	"github.com/nexthop-labs/bgpd/wire"
)

// Generate drains routes (typically rib.AdjRibOut.Pending()) into as few
// UPDATE messages as fit under n's negotiated MaxMessageSize. Callers are
// responsible for calling AdjRibOut.MarkFlushed(routes) once every
// returned message has actually been written to the wire.
func Generate(routes []*rib.Route, n *capability.Negotiated) []message.Message {
	maxSize := capability.DefaultMaxMessageSize
	if n != nil && n.MaxMessageSize > 0 {
		maxSize = n.MaxMessageSize
	}

	var out []message.Message

	withdrawnByFamily := map[wire.Family][]nlri.NLRI{}
	for _, key := range groupAnnouncedKeys(routes) {
		g := key
		out = append(out, packAnnounced(g.family, g.attrs, g.nlris, n, maxSize)...)
	}
	for _, route := range routes {
		if route.Action == rib.ActionWithdraw {
			withdrawnByFamily[route.Family] = append(withdrawnByFamily[route.Family], route.NLRI)
		}
	}
	for family, list := range withdrawnByFamily {
		out = append(out, packWithdrawn(family, list, n, maxSize)...)
	}
	return out
}

// EndOfRIB builds the End-of-RIB marker for family (RFC 4724 §2): an
// empty UPDATE for IPv4 unicast, or an UPDATE whose only attribute is an
// empty MP_UNREACH_NLRI otherwise.
func EndOfRIB(family wire.Family) message.Update {
	if family == wire.IPv4Unicast {
		return message.Update{}
	}
	attrs := attribute.New()
	attrs.Set(attribute.MPUnreachNLRI{Family: family})
	return message.Update{Attributes: attrs}
}

type announceGroup struct {
	family wire.Family
	attrs  *attribute.Attributes
	nlris  []nlri.NLRI
}

// groupAnnouncedKeys groups announce routes by (family, Attributes
// fingerprint): a batch of Change events grouped by exact Attributes
// identity (after interning). Two routes
// with byte-identical attributes but from different append order still
// land in the same group since Attributes.Fingerprint is a pure function
// of the encoded content, not of insertion order.
func groupAnnouncedKeys(routes []*rib.Route) []announceGroup {
	index := map[wire.Family]map[[32]byte]*announceGroup{}
	var order []*announceGroup

	for _, route := range routes {
		if route.Action != rib.ActionAnnounce {
			continue
		}
		fp := route.Attributes.Fingerprint(nil)
		byFingerprint, ok := index[route.Family]
		if !ok {
			byFingerprint = map[[32]byte]*announceGroup{}
			index[route.Family] = byFingerprint
		}
		g, ok := byFingerprint[fp]
		if !ok {
			g = &announceGroup{family: route.Family, attrs: route.Attributes}
			byFingerprint[fp] = g
			order = append(order, g)
		}
		g.nlris = append(g.nlris, route.NLRI)
	}

	out := make([]announceGroup, 0, len(order))
	for _, g := range order {
		out = append(out, *g)
	}
	return out
}

// packAnnounced emits one or more UPDATEs carrying nlris with the shared
// attrs, splitting whenever the next NLRI would push the packed message
// over maxSize. IPv4 unicast with an IPv4 NEXT_HOP
// travels in the trailing NLRI section; every other family (and
// IPv4 unicast with a non-IPv4 next-hop, e.g. an IPv6 next-hop)
// goes through MP_REACH_NLRI.
func packAnnounced(family wire.Family, attrs *attribute.Attributes, nlris []nlri.NLRI, n *capability.Negotiated, maxSize int) []message.Message {
	if family == wire.IPv4Unicast {
		if nh := mpNextHop(attrs).Global; nh == nil || nh.To4() != nil {
			return packAnnouncedTopLevel(attrs, nlris, n, maxSize)
		}
	}
	return packAnnouncedMP(family, attrs, nlris, n, maxSize)
}

func packAnnouncedTopLevel(attrs *attribute.Attributes, nlris []nlri.NLRI, n *capability.Negotiated, maxSize int) []message.Message {
	var out []message.Message
	var batch []nlri.NLRI
	for _, item := range nlris {
		candidate := append(append([]nlri.NLRI{}, batch...), item)
		u := message.Update{Attributes: attrs, Announced: candidate}
		if len(message.Pack(u, n)) > maxSize && len(batch) > 0 {
			out = append(out, message.Update{Attributes: attrs, Announced: batch})
			batch = []nlri.NLRI{item}
			continue
		}
		batch = candidate
	}
	if len(batch) > 0 {
		out = append(out, message.Update{Attributes: attrs, Announced: batch})
	}
	return out
}

func packAnnouncedMP(family wire.Family, attrs *attribute.Attributes, nlris []nlri.NLRI, n *capability.Negotiated, maxSize int) []message.Message {
	nextHop := mpNextHop(attrs)
	var out []message.Message
	var batch []nlri.NLRI
	for _, item := range nlris {
		candidate := append(append([]nlri.NLRI{}, batch...), item)
		u := mpReachUpdate(family, attrs, nextHop, candidate)
		if len(message.Pack(u, n)) > maxSize && len(batch) > 0 {
			out = append(out, mpReachUpdate(family, attrs, nextHop, batch))
			batch = []nlri.NLRI{item}
			continue
		}
		batch = candidate
	}
	if len(batch) > 0 {
		out = append(out, mpReachUpdate(family, attrs, nextHop, batch))
	}
	return out
}

func mpReachUpdate(family wire.Family, attrs *attribute.Attributes, nextHop attribute.NextHopAddr, nlris []nlri.NLRI) message.Update {
	withMP := attrs.Clone()
	withMP.Delete(attribute.CodeNextHop)
	withMP.Set(attribute.MPReachNLRI{Family: family, NextHop: nextHop, NLRIs: nlris})
	return message.Update{Attributes: withMP}
}

func mpNextHop(attrs *attribute.Attributes) attribute.NextHopAddr {
	if a, ok := attrs.Get(attribute.CodeNextHop); ok {
		if nh, ok := a.(attribute.NextHop); ok {
			return attribute.NextHopAddr{Global: nh.IP}
		}
	}
	return attribute.NextHopAddr{}
}

// packWithdrawn emits one or more UPDATEs withdrawing nlris, splitting by
// maxSize the same way packAnnounced does.
func packWithdrawn(family wire.Family, nlris []nlri.NLRI, n *capability.Negotiated, maxSize int) []message.Message {
	if family == wire.IPv4Unicast {
		return packWithdrawnTopLevel(nlris, n, maxSize)
	}
	return packWithdrawnMP(family, nlris, n, maxSize)
}

func packWithdrawnTopLevel(nlris []nlri.NLRI, n *capability.Negotiated, maxSize int) []message.Message {
	var out []message.Message
	var batch []nlri.NLRI
	for _, item := range nlris {
		candidate := append(append([]nlri.NLRI{}, batch...), item)
		u := message.Update{Withdrawn: candidate}
		if len(message.Pack(u, n)) > maxSize && len(batch) > 0 {
			out = append(out, message.Update{Withdrawn: batch})
			batch = []nlri.NLRI{item}
			continue
		}
		batch = candidate
	}
	if len(batch) > 0 {
		out = append(out, message.Update{Withdrawn: batch})
	}
	return out
}

func packWithdrawnMP(family wire.Family, nlris []nlri.NLRI, n *capability.Negotiated, maxSize int) []message.Message {
	var out []message.Message
	var batch []nlri.NLRI
	for _, item := range nlris {
		candidate := append(append([]nlri.NLRI{}, batch...), item)
		u := mpUnreachUpdate(family, candidate)
		if len(message.Pack(u, n)) > maxSize && len(batch) > 0 {
			out = append(out, mpUnreachUpdate(family, batch))
			batch = []nlri.NLRI{item}
			continue
		}
		batch = candidate
	}
	if len(batch) > 0 {
		out = append(out, mpUnreachUpdate(family, batch))
	}
	return out
}

func mpUnreachUpdate(family wire.Family, nlris []nlri.NLRI) message.Update {
	attrs := attribute.New()
	attrs.Set(attribute.MPUnreachNLRI{Family: family, NLRIs: nlris})
	return message.Update{Attributes: attrs}
}

// Package nlri implements the per-family Network Layer Reachability
// Information codecs: IPv4/IPv6 unicast & multicast,
// labelled unicast, VPNv4/VPNv6, Flow-Spec, EVPN, BGP-LS, VPLS, MVPN, RTC
// and MUP. Each family registers itself against (AFI, SAFI); the message
// codec never special-cases a family by name.
package nlri

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/wire"
)

// NLRI is one routing entry: an address-family body plus an optional
// add-path identifier. Implementations are produced either by parsing the
// wire or by configuration/API input.
type NLRI interface {
	Family() wire.Family
	// PathID returns the add-path identifier and whether one is present.
	// Present iff add-path is negotiated send-or-receive for this family.
	PathID() (uint32, bool)
	// Key is the canonical, family-specific string identifying this NLRI
	// inside a RIB: stable across re-encodes of logically identical NLRI.
	Key() string
	// packBody encodes just the family-specific body (no path-id prefix;
	// Pack adds that uniformly for every family that negotiated AddPath).
	packBody(n *capability.Negotiated) []byte
}

// Decoder parses one family's body out of data (already past NLRI's own
// add-path prefix, if any) and returns the NLRI plus unconsumed bytes.
// Implementations MUST consume exactly the bytes their own encoding
// requires: a self-consuming guarantee that lets Flow-Spec and BGP-LS,
// which have no externally-applied length field, sit in a list.
type Decoder func(data []byte, dir wire.Direction, n *capability.Negotiated) (NLRI, []byte, error)

var registry = map[wire.Family]Decoder{}

// RegisterFamily associates a decoder with (afi, safi).
func RegisterFamily(f wire.Family, d Decoder) {
	registry[f] = d
}

// withPathID wraps a decoded NLRI with its add-path identifier.
type withPathID struct {
	NLRI
	pathID uint32
	has    bool
}

func (w withPathID) PathID() (uint32, bool) { return w.pathID, w.has }
func (w withPathID) Key() string {
	if w.has {
		return fmt.Sprintf("%d:%s", w.pathID, w.NLRI.Key())
	}
	return w.NLRI.Key()
}
func (w withPathID) packBody(n *capability.Negotiated) []byte { return w.NLRI.packBody(n) }

// Unpack decodes one NLRI for (afi, safi) from data, consuming the
// negotiated add-path prefix first if the receive direction is enabled,
// then dispatching to the registered family decoder.
func Unpack(f wire.Family, data []byte, dir wire.Direction, n *capability.Negotiated) (NLRI, []byte, error) {
	d, ok := registry[f]
	if !ok {
		return nil, nil, fmt.Errorf("nlri: no decoder registered for %s", f)
	}
	var pathID uint32
	hasPathID := n != nil && n.AddPathFor(f).Receive
	if hasPathID {
		v, err := wire.ReadUint32(data)
		if err != nil {
			return nil, nil, fmt.Errorf("nlri: %s add-path id: %w", f, err)
		}
		pathID = v
		data = data[4:]
	}
	body, rest, err := d(data, dir, n)
	if err != nil {
		return nil, nil, err
	}
	return withPathID{NLRI: body, pathID: pathID, has: hasPathID}, rest, nil
}

// Pack encodes one NLRI, prepending the 4-byte add-path id when the
// negotiated send direction is enabled for its family.
func Pack(item NLRI, n *capability.Negotiated) []byte {
	var b []byte
	if n != nil && n.AddPathFor(item.Family()).Send {
		if id, ok := item.PathID(); ok {
			b = wire.PutUint32(b, id)
		}
	}
	return append(b, item.packBody(n)...)
}

// UnpackAll decodes NLRI entries from data until it is exhausted, used by
// the withdrawn-routes/NLRI spans of an UPDATE and by MP_REACH/MP_UNREACH.
func UnpackAll(f wire.Family, data []byte, dir wire.Direction, n *capability.Negotiated) ([]NLRI, error) {
	var out []NLRI
	for len(data) > 0 {
		item, rest, err := Unpack(f, data, dir, n)
		if err != nil {
			return nil, err
		}
		if len(rest) >= len(data) {
			return nil, fmt.Errorf("nlri: %s decoder made no progress", f)
		}
		out = append(out, item)
		data = rest
	}
	return out, nil
}

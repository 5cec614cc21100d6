package message

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/attribute"
	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/nlri"
	"github.com/nexthop-labs/bgpd/wire"
)

// Update is the UPDATE message (RFC 4271 §4.3): IPv4 unicast withdrawals
// and announcements travel in the top-level Withdrawn/NLRI spans; every
// other family travels inside the MP_UNREACH_NLRI/MP_REACH_NLRI
// attributes instead (RFC 4760 §3-4).
type Update struct {
	Withdrawn  []nlri.NLRI // wire.IPv4Unicast only
	Attributes *attribute.Attributes
	Announced  []nlri.NLRI // wire.IPv4Unicast only
}

func (Update) Type() Type { return TypeUpdate }

func (u Update) PackBody(n *capability.Negotiated) []byte {
	var withdrawn []byte
	for _, w := range u.Withdrawn {
		withdrawn = append(withdrawn, nlri.Pack(w, n)...)
	}
	b := wire.PutUint16(nil, uint16(len(withdrawn)))
	b = append(b, withdrawn...)

	var attrs []byte
	if u.Attributes != nil {
		attrs = u.Attributes.Pack(n)
	}
	b = wire.PutUint16(b, uint16(len(attrs)))
	b = append(b, attrs...)

	for _, a := range u.Announced {
		b = append(b, nlri.Pack(a, n)...)
	}
	return b
}

func decodeUpdate(body []byte, n *capability.Negotiated) (Message, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("message: update: short read for withdrawn-routes length")
	}
	withdrawnLen, err := wire.ReadUint16(body)
	if err != nil {
		return nil, fmt.Errorf("message: update: %w", err)
	}
	rest := body[2:]
	if len(rest) < int(withdrawnLen) {
		return nil, fmt.Errorf("message: update: withdrawn-routes length %d exceeds available %d", withdrawnLen, len(rest))
	}
	withdrawnBytes := rest[:withdrawnLen]
	rest = rest[withdrawnLen:]

	withdrawn, err := nlri.UnpackAll(wire.IPv4Unicast, withdrawnBytes, wire.Withdraw, n)
	if err != nil {
		return nil, fmt.Errorf("message: update: withdrawn routes: %w", err)
	}

	if len(rest) < 2 {
		return nil, fmt.Errorf("message: update: short read for path-attribute length")
	}
	attrLen, err := wire.ReadUint16(rest)
	if err != nil {
		return nil, fmt.Errorf("message: update: %w", err)
	}
	rest = rest[2:]
	if len(rest) < int(attrLen) {
		return nil, fmt.Errorf("message: update: path-attribute length %d exceeds available %d", attrLen, len(rest))
	}
	attrBytes := rest[:attrLen]
	nlriBytes := rest[attrLen:]

	attrs, err := decodeAttributes(attrBytes, n)
	if err != nil {
		return nil, fmt.Errorf("message: update: %w", err)
	}

	announced, err := nlri.UnpackAll(wire.IPv4Unicast, nlriBytes, wire.Announce, n)
	if err != nil {
		return nil, fmt.Errorf("message: update: nlri: %w", err)
	}

	if code, ok := missingMandatory(attrs, announced); ok {
		return nil, Notification{
			Code:    ErrUpdateMessage,
			Subcode: SubErrMissingWellKnownAttribute,
			Data:    []byte{byte(code)},
		}
	}

	return Update{Withdrawn: withdrawn, Attributes: attrs, Announced: announced}, nil
}

// missingMandatory reports the first well-known mandatory attribute (RFC
// 4271 §6.3) absent from an UPDATE that announces routes: ORIGIN and
// AS_PATH always, plus NEXT_HOP when the top-level IPv4 unicast span is
// populated (multiprotocol announcements carry their next-hop inside
// MP_REACH_NLRI itself). Withdrawal-only UPDATEs and End-of-RIB markers
// announce nothing and carry no mandatory set.
func missingMandatory(attrs *attribute.Attributes, announced []nlri.NLRI) (attribute.Code, bool) {
	if len(announced) == 0 && !attrs.Has(attribute.CodeMPReachNLRI) {
		return 0, false
	}
	if !attrs.Has(attribute.CodeOrigin) {
		return attribute.CodeOrigin, true
	}
	if !attrs.Has(attribute.CodeASPath) {
		return attribute.CodeASPath, true
	}
	if len(announced) > 0 && !attrs.Has(attribute.CodeNextHop) {
		return attribute.CodeNextHop, true
	}
	return 0, false
}

// decodeAttributes parses the path-attribute TLV span of an UPDATE. A
// malformed instance of an attribute whose treat-as-withdraw policy is set
// (RFC 7606 §2) is reported as an AttributeError the caller can use to
// convert the enclosing UPDATE's announcements into withdrawals instead of
// resetting the session; anything else is session-fatal.
func decodeAttributes(data []byte, n *capability.Negotiated) (*attribute.Attributes, error) {
	attrs := attribute.New()
	seen := map[attribute.Code]bool{}
	for len(data) > 0 {
		if len(data) < 3 {
			return nil, fmt.Errorf("malformed attribute: short read for header")
		}
		flags := data[0]
		code := attribute.Code(data[1])
		var length int
		var value []byte
		if flags&attribute.FlagExtendedLength != 0 {
			if len(data) < 4 {
				return nil, fmt.Errorf("malformed attribute: short read for extended length")
			}
			length = int(data[2])<<8 | int(data[3])
			data = data[4:]
		} else {
			length = int(data[2])
			data = data[3:]
		}
		if len(data) < length {
			return nil, fmt.Errorf("malformed attribute: code %d declares length %d, only %d available", code, length, len(data))
		}
		value = data[:length]
		data = data[length:]

		if seen[code] {
			// Each attribute may appear at most once (RFC 4271 §5); a
			// repeat either degrades the whole UPDATE to a withdrawal or
			// resets the session, per the attribute's RFC 7606 policy.
			if attribute.TreatAsWithdraw(code, flags) {
				return nil, &AttributeError{Code: code, TreatAsWithdraw: true, Err: fmt.Errorf("duplicate attribute")}
			}
			return nil, NewNotification(ErrUpdateMessage, SubErrMalformedAttributeList)
		}
		seen[code] = true

		if !attribute.Known(code) && flags&attribute.FlagOptional == 0 {
			// An attribute claiming to be well-known that this speaker
			// does not recognise (RFC 4271 §6.3).
			return nil, Notification{
				Code:    ErrUpdateMessage,
				Subcode: SubErrUnrecognizedWellKnownAttribute,
				Data:    []byte{byte(code)},
			}
		}

		a, err := attribute.Unpack(code, flags, value, n)
		if err != nil {
			return nil, &AttributeError{Code: code, TreatAsWithdraw: attribute.TreatAsWithdraw(code, flags), Err: err}
		}
		attrs.Set(a)
	}
	if n == nil || !n.ASN4 {
		attribute.ReconcileAS4Path(attrs)
	}
	return attrs, nil
}

// AttributeError reports a malformed path attribute, carrying the RFC 7606
// treat-as-withdraw classification so the caller can decide between
// withdrawing the enclosing routes and resetting the session.
type AttributeError struct {
	Code            attribute.Code
	TreatAsWithdraw bool
	Err             error
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("malformed attribute %d: %v", e.Code, e.Err)
}

func (e *AttributeError) Unwrap() error { return e.Err }

// IsEndOfRIB reports whether u is the End-of-RIB marker (RFC 4724 §2) for
// family: for IPv4 unicast, a completely empty UPDATE; for every other
// family, an MP_UNREACH_NLRI attribute with zero withdrawn routes and
// nothing else.
func (u Update) IsEndOfRIB() (wire.Family, bool) {
	if len(u.Withdrawn) == 0 && len(u.Announced) == 0 && (u.Attributes == nil || len(u.Attributes.Codes()) == 0) {
		return wire.IPv4Unicast, true
	}
	if u.Attributes != nil {
		if a, ok := u.Attributes.Get(attribute.CodeMPUnreachNLRI); ok {
			if mp, ok := a.(attribute.MPUnreachNLRI); ok && mp.IsEndOfRIB() {
				if len(u.Attributes.Codes()) == 1 {
					return mp.Family, true
				}
			}
		}
	}
	return wire.Family{}, false
}

// AllAnnounced returns every announced NLRI, merging the top-level IPv4
// unicast span with any MP_REACH_NLRI attribute.
func (u Update) AllAnnounced() []nlri.NLRI {
	out := append([]nlri.NLRI(nil), u.Announced...)
	if u.Attributes == nil {
		return out
	}
	if a, ok := u.Attributes.Get(attribute.CodeMPReachNLRI); ok {
		if mp, ok := a.(attribute.MPReachNLRI); ok {
			out = append(out, mp.NLRIs...)
		}
	}
	return out
}

// AllWithdrawn returns every withdrawn NLRI, merging the top-level IPv4
// unicast span with any MP_UNREACH_NLRI attribute.
func (u Update) AllWithdrawn() []nlri.NLRI {
	out := append([]nlri.NLRI(nil), u.Withdrawn...)
	if u.Attributes == nil {
		return out
	}
	if a, ok := u.Attributes.Get(attribute.CodeMPUnreachNLRI); ok {
		if mp, ok := a.(attribute.MPUnreachNLRI); ok {
			out = append(out, mp.NLRIs...)
		}
	}
	return out
}

package message

import "github.com/nexthop-labs/bgpd/capability"

// Keepalive is the KEEPALIVE message (RFC 4271 §4.4): header only, used to
// signal liveness often enough that the hold timer never expires.
type Keepalive struct{}

func (Keepalive) Type() Type                            { return TypeKeepalive }
func (Keepalive) PackBody(*capability.Negotiated) []byte { return nil }

func decodeKeepalive(body []byte) (Message, error) {
	return Keepalive{}, nil
}

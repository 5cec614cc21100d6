package attribute

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
)

// PMSI tunnel types (RFC 6514 §5).
const (
	PMSITunnelNoTunnel         byte = 0
	PMSITunnelRSVPTEP2MP       byte = 1
	PMSITunnelmLDPP2MP         byte = 2
	PMSITunnelPIMSSM           byte = 3
	PMSITunnelPIMSM            byte = 4
	PMSITunnelBIDIRPIM         byte = 5
	PMSITunnelIngressReplication byte = 6
	PMSITunnelmLDPMP2MP        byte = 7
)

const pmsiLeafInfoRequired byte = 0x01

// PMSITunnel is the PMSI_TUNNEL attribute (RFC 6514 §5), describing the
// P-Multicast Service Interface tunnel a multicast VPN uses to deliver
// traffic for the route it's attached to.
type PMSITunnel struct {
	LeafInfoRequired bool
	TunnelType       byte
	Label            uint32 // 20 bits
	TunnelIdentifier []byte
}

func (PMSITunnel) Code() Code  { return CodePMSITunnel }
func (PMSITunnel) Flags() byte { return FlagOptional | FlagTransitive }

func (p PMSITunnel) PackValue(*capability.Negotiated) []byte {
	var flags byte
	if p.LeafInfoRequired {
		flags |= pmsiLeafInfoRequired
	}
	b := []byte{flags, p.TunnelType}
	label := p.Label << 4
	b = append(b, byte(label>>16), byte(label>>8), byte(label))
	return append(b, p.TunnelIdentifier...)
}

func unpackPMSITunnel(flags byte, data []byte, n *capability.Negotiated) (Attribute, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("attribute: pmsi-tunnel: short read for header")
	}
	label := (uint32(data[2])<<16 | uint32(data[3])<<8 | uint32(data[4])) >> 4
	return PMSITunnel{
		LeafInfoRequired: data[0]&pmsiLeafInfoRequired != 0,
		TunnelType:       data[1],
		Label:            label,
		TunnelIdentifier: append([]byte(nil), data[5:]...),
	}, nil
}

func init() {
	Register(CodePMSITunnel, true, unpackPMSITunnel)
}

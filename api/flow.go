package api

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nexthop-labs/bgpd/attribute"
	"github.com/nexthop-labs/bgpd/config"
	"github.com/nexthop-labs/bgpd/nlri"
	"github.com/nexthop-labs/bgpd/rib"
	"github.com/nexthop-labs/bgpd/wire"
)

// flow parses the `announce flow route`/`withdraw flow route` verbs:
//
//	flow route [destination <cidr>] [source <cidr>] [protocol <name|ops>]
//	           [port <ops>] [destination-port <ops>] [source-port <ops>]
//	           [icmp-type <ops>] [icmp-code <ops>] [packet-length <ops>]
//	           [dscp <ops>] [tcp-flags <ops>] [fragment <ops>]
//	           [then <action>...]
//
// where <ops> is a comma-separated OR list of operator-prefixed values
// (`=80,=443`, `>=1024`, a bare number means equals) and <action> is one
// of `discard`, `rate-limit <bytes/sec>`, `redirect <asn:number>`,
// `mark <dscp>`. A withdraw takes the match part only.
func (p *Parser) flow(fields []string, restrictTo string, action rib.Action) (string, error) {
	if len(fields) == 0 || fields[0] != "route" {
		return "", fmt.Errorf("api: flow: expected \"flow route <match...> [then <action...>]\"")
	}
	match := fields[1:]
	var actions []string
	for i, f := range match {
		if f == "then" {
			actions = match[i+1:]
			match = match[:i]
			break
		}
	}

	components, family, err := parseFlowMatch(match)
	if err != nil {
		return "", err
	}
	if len(components) == 0 {
		return "", fmt.Errorf("api: flow: empty match expression")
	}
	fs := nlri.NewFlowSpec(family, components)

	var attrs *attribute.Attributes
	if action == rib.ActionAnnounce {
		attrs, err = parseFlowActions(actions)
		if err != nil {
			return "", err
		}
	} else if len(actions) > 0 {
		return "", fmt.Errorf("api: withdraw flow: a withdrawal takes no \"then\" actions")
	}

	p.d.Announce(config.Change{Family: family, NLRI: fs, Attributes: attrs, Action: action}, restrictTo)
	return "done", nil
}

func parseFlowMatch(fields []string) ([]nlri.Component, wire.Family, error) {
	family := wire.FlowSpecIPv4
	var components []nlri.Component
	for i := 0; i < len(fields); i++ {
		keyword := fields[i]
		if i+1 >= len(fields) {
			return nil, family, fmt.Errorf("api: flow: %s: missing value", keyword)
		}
		value := fields[i+1]
		i++

		switch keyword {
		case "destination", "source":
			prefix, prefixFamily, err := parsePrefix(value)
			if err != nil {
				return nil, family, err
			}
			if prefixFamily == wire.IPv6Unicast {
				family = wire.FlowSpecIPv6
			}
			t := nlri.FSDestinationPrefix
			if keyword == "source" {
				t = nlri.FSSourcePrefix
			}
			c := prefix
			components = append(components, nlri.Component{Type: t, Prefix: &c})
		case "protocol":
			ops, err := parseNumericOps(mapProtocolNames(value))
			if err != nil {
				return nil, family, fmt.Errorf("api: flow: protocol: %w", err)
			}
			components = append(components, nlri.Component{Type: nlri.FSIPProtocol, Numeric: ops})
		case "port", "destination-port", "source-port", "icmp-type", "icmp-code", "packet-length", "dscp", "flow-label":
			ops, err := parseNumericOps(value)
			if err != nil {
				return nil, family, fmt.Errorf("api: flow: %s: %w", keyword, err)
			}
			components = append(components, nlri.Component{Type: flowNumericType(keyword), Numeric: ops})
		case "tcp-flags", "fragment":
			ops, err := parseBitmaskOps(value)
			if err != nil {
				return nil, family, fmt.Errorf("api: flow: %s: %w", keyword, err)
			}
			t := nlri.FSTCPFlags
			if keyword == "fragment" {
				t = nlri.FSFragment
			}
			components = append(components, nlri.Component{Type: t, Bitmask: ops})
		default:
			return nil, family, fmt.Errorf("api: flow: unknown match keyword %q", keyword)
		}
	}
	return components, family, nil
}

func flowNumericType(keyword string) byte {
	switch keyword {
	case "port":
		return nlri.FSPort
	case "destination-port":
		return nlri.FSDestinationPort
	case "source-port":
		return nlri.FSSourcePort
	case "icmp-type":
		return nlri.FSICMPType
	case "icmp-code":
		return nlri.FSICMPCode
	case "packet-length":
		return nlri.FSPacketLength
	case "dscp":
		return nlri.FSDSCP
	default:
		return nlri.FSFlowLabel
	}
}

// mapProtocolNames rewrites the well-known IP protocol names into their
// numeric form so `protocol tcp` and `protocol =6` mean the same thing.
func mapProtocolNames(s string) string {
	parts := strings.Split(s, ",")
	for i, part := range parts {
		name := strings.TrimPrefix(part, "=")
		switch strings.ToLower(name) {
		case "icmp":
			parts[i] = "=1"
		case "tcp":
			parts[i] = "=6"
		case "udp":
			parts[i] = "=17"
		case "icmpv6":
			parts[i] = "=58"
		}
	}
	return strings.Join(parts, ",")
}

// parseNumericOps parses a comma-separated OR list of operator-prefixed
// values into a numeric operator chain: `=25`, `>=1024`, `<1500`, and a
// bare number meaning equals.
func parseNumericOps(s string) ([]nlri.NumericOp, error) {
	parts := strings.Split(s, ",")
	ops := make([]nlri.NumericOp, 0, len(parts))
	for _, part := range parts {
		var op nlri.NumericOp
		switch {
		case strings.HasPrefix(part, ">="):
			op.GT, op.EQ = true, true
			part = part[2:]
		case strings.HasPrefix(part, "<="):
			op.LT, op.EQ = true, true
			part = part[2:]
		case strings.HasPrefix(part, ">"):
			op.GT = true
			part = part[1:]
		case strings.HasPrefix(part, "<"):
			op.LT = true
			part = part[1:]
		case strings.HasPrefix(part, "="):
			op.EQ = true
			part = part[1:]
		default:
			op.EQ = true
		}
		v, err := strconv.ParseUint(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", part, err)
		}
		op.Value = v
		ops = append(ops, op)
	}
	return ops, nil
}

// parseBitmaskOps parses a comma-separated OR list of bitmask values
// (tcp-flags, fragment): a bare number means "any of these bits set",
// a `!` prefix negates the match.
func parseBitmaskOps(s string) ([]nlri.BitmaskOp, error) {
	parts := strings.Split(s, ",")
	ops := make([]nlri.BitmaskOp, 0, len(parts))
	for _, part := range parts {
		var op nlri.BitmaskOp
		if strings.HasPrefix(part, "!") {
			op.Not = true
			part = part[1:]
		}
		v, err := strconv.ParseUint(part, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bitmask %q: %w", part, err)
		}
		op.Value = v
		ops = append(ops, op)
	}
	return ops, nil
}

// parseFlowActions turns the `then` clause into the Flow-Spec action
// extended communities (RFC 5575 §7) riding on the announcement.
func parseFlowActions(fields []string) (*attribute.Attributes, error) {
	attrs := attribute.New()
	attrs.Set(attribute.Origin{Value: attribute.OriginIGP})
	attrs.Set(attribute.NewASPath(nil))

	var communities []attribute.ExtendedCommunity
	for i := 0; i < len(fields); i++ {
		switch fields[i] {
		case "discard":
			communities = append(communities, attribute.NewFlowSpecTrafficRate(0, 0))
		case "rate-limit":
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("api: flow: rate-limit: missing bytes/sec value")
			}
			rate, err := strconv.ParseFloat(fields[i+1], 32)
			if err != nil {
				return nil, fmt.Errorf("api: flow: invalid rate-limit %q: %w", fields[i+1], err)
			}
			communities = append(communities, attribute.NewFlowSpecTrafficRate(0, float32(rate)))
			i++
		case "redirect":
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("api: flow: redirect: missing asn:number target")
			}
			c, err := parseRedirect(fields[i+1])
			if err != nil {
				return nil, err
			}
			communities = append(communities, c)
			i++
		case "mark":
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("api: flow: mark: missing dscp value")
			}
			dscp, err := strconv.ParseUint(fields[i+1], 10, 8)
			if err != nil || dscp > 63 {
				return nil, fmt.Errorf("api: flow: invalid dscp %q", fields[i+1])
			}
			communities = append(communities, attribute.NewFlowSpecTrafficMarking(byte(dscp)))
			i++
		default:
			return nil, fmt.Errorf("api: flow: unknown action %q", fields[i])
		}
	}
	if len(communities) > 0 {
		attrs.Set(attribute.ExtendedCommunities{Values: communities})
	}
	return attrs, nil
}

func parseRedirect(s string) (attribute.ExtendedCommunity, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return attribute.ExtendedCommunity{}, fmt.Errorf("api: flow: redirect target %q not asn:number", s)
	}
	asn, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		return attribute.ExtendedCommunity{}, fmt.Errorf("api: flow: invalid redirect asn %q: %w", parts[0], err)
	}
	number, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return attribute.ExtendedCommunity{}, fmt.Errorf("api: flow: invalid redirect number %q: %w", parts[1], err)
	}
	return attribute.NewFlowSpecRedirectAS(uint16(asn), uint32(number)), nil
}

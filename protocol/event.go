package protocol

import "github.com/nexthop-labs/bgpd/message"

// EventKind classifies one outbound Event, mirroring the helper-process
// event taxonomy: session lifecycle transitions plus
// per-message send/receive notifications.
type EventKind int

const (
	// EventConnected fires once the TCP connection is up, before OPEN
	// exchange completes.
	EventConnected EventKind = iota
	// EventUp fires once the session reaches Established.
	EventUp
	// EventDown fires on any session-terminating transition; Reason holds
	// a human-readable cause (NOTIFICATION text, I/O error, or
	// administrative action).
	EventDown
	// EventPacketSent/EventPacketReceived are the "packets" event family
	// (raw message, for an operator who wants the wire form).
	EventPacketSent
	EventPacketReceived
	// EventMessageParsed is the "parsed" event family: a decoded message.
	EventMessageParsed
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventUp:
		return "up"
	case EventDown:
		return "down"
	case EventPacketSent:
		return "packet-sent"
	case EventPacketReceived:
		return "packet-received"
	case EventMessageParsed:
		return "parsed"
	default:
		return "unknown"
	}
}

// Event is one notification handed to whatever is listening on
// Protocol.Events() — typically the `api` package, encoding it onward to
// a helper process as text or JSON.
type Event struct {
	Kind    EventKind
	Peer    string
	Message message.Message
	Reason  string
}

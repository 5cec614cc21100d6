package fsm

// Event is one input to the FSM (RFC 4271 §8.1). This implementation
// supports the mandatory administrative events and the BGP-message/TCP
// events the restricted transition table needs; the optional
// DelayOpen/damping machinery RFC 4271 describes is not implemented (the
// restricted transition table has no edges that need it).
type Event int

const (
	// EventStart is a local administrative or automatic instruction to
	// begin connecting to the peer (ManualStart/AutomaticStart, RFC 4271
	// §8.1.2 events 1 and 3, collapsed into one since this implementation
	// does not distinguish manual from automatic starts).
	EventStart Event = iota
	// EventStop tears the session down administratively.
	EventStop
	// EventConnectRetryTimerExpires fires the retry timer started after a
	// failed or reset connection attempt.
	EventConnectRetryTimerExpires
	// EventHoldTimerExpires fires when no message arrived within HoldTime.
	EventHoldTimerExpires
	// EventKeepaliveTimerExpires fires when it's time to send a KEEPALIVE
	// to reset the peer's hold timer.
	EventKeepaliveTimerExpires

	// EventTCPConnectionConfirmed is the outbound dial succeeding, or an
	// inbound connection being accepted.
	EventTCPConnectionConfirmed
	// EventTCPConnectionFails is the transport closing or erroring.
	EventTCPConnectionFails

	// EventOpenReceived is a well-formed OPEN message arriving.
	EventOpenReceived
	// EventOpenMessageError is a malformed OPEN (bad version, bad ASN,
	// unsupported mandatory capability).
	EventOpenMessageError
	// EventHeaderError is a malformed message header (bad marker, bad
	// length for the declared type).
	EventHeaderError
	// EventKeepaliveReceived is a KEEPALIVE message arriving.
	EventKeepaliveReceived
	// EventUpdateReceived is a well-formed UPDATE message arriving.
	EventUpdateReceived
	// EventUpdateMessageError is a session-fatal malformed UPDATE (a
	// treat-as-withdraw-eligible malformation never reaches the FSM as an
	// error — decodeAttributes's *message.AttributeError is handled one
	// layer up, in protocol's Protocol.onReadError, not here).
	EventUpdateMessageError
	// EventNotificationReceived is a NOTIFICATION arriving from the peer.
	EventNotificationReceived

	// EventCollisionDump is this connection losing RFC 4271 §6.8 collision
	// resolution against a sibling connection to the same peer.
	EventCollisionDump
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "Start"
	case EventStop:
		return "Stop"
	case EventConnectRetryTimerExpires:
		return "ConnectRetryTimerExpires"
	case EventHoldTimerExpires:
		return "HoldTimerExpires"
	case EventKeepaliveTimerExpires:
		return "KeepaliveTimerExpires"
	case EventTCPConnectionConfirmed:
		return "TCPConnectionConfirmed"
	case EventTCPConnectionFails:
		return "TCPConnectionFails"
	case EventOpenReceived:
		return "OpenReceived"
	case EventOpenMessageError:
		return "OpenMessageError"
	case EventHeaderError:
		return "HeaderError"
	case EventKeepaliveReceived:
		return "KeepaliveReceived"
	case EventUpdateReceived:
		return "UpdateReceived"
	case EventUpdateMessageError:
		return "UpdateMessageError"
	case EventNotificationReceived:
		return "NotificationReceived"
	case EventCollisionDump:
		return "CollisionDump"
	default:
		return "unknown"
	}
}

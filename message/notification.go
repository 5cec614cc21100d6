package message

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
)

// NOTIFICATION error codes (RFC 4271 §4.5, §6).
const (
	ErrMessageHeader      byte = 1
	ErrOpenMessage        byte = 2
	ErrUpdateMessage      byte = 3
	ErrHoldTimerExpired   byte = 4
	ErrFiniteStateMachine byte = 5
	ErrCease              byte = 6
)

var errorCodeName = map[byte]string{
	ErrMessageHeader:      "Message Header Error",
	ErrOpenMessage:        "OPEN Message Error",
	ErrUpdateMessage:      "UPDATE Message Error",
	ErrHoldTimerExpired:   "Hold Timer Expired",
	ErrFiniteStateMachine: "Finite State Machine Error",
	ErrCease:              "Cease",
}

// Message Header Error subcodes.
const (
	SubErrConnectionNotSynchronized byte = 1
	SubErrBadMessageLength          byte = 2
	SubErrBadMessageType            byte = 3
)

// OPEN Message Error subcodes.
const (
	SubErrUnsupportedVersionNumber     byte = 1
	SubErrBadPeerAS                    byte = 2
	SubErrBadBGPIdentifier             byte = 3
	SubErrUnsupportedOptionalParameter byte = 4
	SubErrUnacceptableHoldTime         byte = 6
	SubErrUnsupportedCapability        byte = 7 // RFC 5492 §5
)

// UPDATE Message Error subcodes.
const (
	SubErrMalformedAttributeList         byte = 1
	SubErrUnrecognizedWellKnownAttribute byte = 2
	SubErrMissingWellKnownAttribute      byte = 3
	SubErrAttributeFlagsError            byte = 4
	SubErrAttributeLengthError           byte = 5
	SubErrInvalidOriginAttribute         byte = 6
	SubErrInvalidNextHopAttribute        byte = 8
	SubErrOptionalAttributeError         byte = 9
	SubErrInvalidNetworkField            byte = 10
	SubErrMalformedASPath                byte = 11
)

// Cease subcodes (RFC 4486).
const (
	SubErrMaximumPrefixesReached   byte = 1
	SubErrAdministrativeShutdown   byte = 2
	SubErrPeerDeconfigured         byte = 3
	SubErrAdministrativeReset      byte = 4
	SubErrConnectionRejected       byte = 5
	SubErrOtherConfigurationChange byte = 6
	SubErrConnectionCollision      byte = 7
	SubErrOutOfResources           byte = 8
)

const noSubcode byte = 0

// Notification is the NOTIFICATION message (RFC 4271 §4.5): sent when an
// error condition is detected, after which the connection closes
// immediately. It also satisfies the error interface, so the fsm and
// protocol packages can return and compare it like any other Go error.
type Notification struct {
	Code    byte
	Subcode byte
	Data    []byte
}

// NewNotification builds a Notification with no diagnostic data.
func NewNotification(code, subcode byte) Notification {
	return Notification{Code: code, Subcode: subcode}
}

func (Notification) Type() Type { return TypeNotification }

func (n Notification) Error() string {
	name, ok := errorCodeName[n.Code]
	if !ok {
		name = fmt.Sprintf("unknown error code %d", n.Code)
	}
	if n.Subcode == noSubcode {
		return name
	}
	return fmt.Sprintf("%s (subcode %d)", name, n.Subcode)
}

func (n Notification) PackBody(*capability.Negotiated) []byte {
	b := []byte{n.Code, n.Subcode}
	return append(b, n.Data...)
}

func decodeNotification(body []byte) (Message, error) {
	if len(body) < 2 {
		return nil, fmt.Errorf("message: notification: short read for code/subcode")
	}
	return Notification{Code: body[0], Subcode: body[1], Data: append([]byte(nil), body[2:]...)}, nil
}

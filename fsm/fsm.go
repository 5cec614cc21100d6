package fsm

import (
	"fmt"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/message"
)

// Action is one side effect the driving `protocol` package must perform in
// response to a Handle call. FSM itself never touches a socket or a timer;
// it only reports what should happen.
type Action int

const (
	ActionDialPeer Action = iota
	ActionSendOpen
	ActionSendKeepalive
	ActionSendNotification
	ActionStartConnectRetryTimer
	ActionStopConnectRetryTimer
	ActionStartHoldTimer
	ActionStopHoldTimer
	ActionResetHoldTimer
	ActionStartKeepaliveTimer
	ActionStopKeepaliveTimer
	ActionCloseConnection
	ActionSyncAdjRibOut // session just reached ESTABLISHED: send full adj-rib-out, then per-family EOR
	ActionReleaseResources
)

// Result is what Handle returns: the state the FSM moved to, the actions
// the caller must carry out (in order), and — for error transitions — the
// NOTIFICATION to send before closing.
type Result struct {
	State        State
	Actions      []Action
	Notification *message.Notification
}

// FSM is one peer's finite state machine. It carries just enough session
// state to drive transitions and resolve collisions; RIB, transport and
// timers live one layer up in `protocol`.
type FSM struct {
	state               State
	connectRetryCounter int

	LocalRouterID uint32
	PeerRouterID  uint32 // filled in once an OPEN has been received
	Negotiated    *capability.Negotiated
}

// New returns an FSM in the Idle state.
func New(localRouterID uint32) *FSM {
	return &FSM{state: StateIdle, LocalRouterID: localRouterID}
}

// State returns the current state.
func (f *FSM) State() State { return f.state }

// SetNegotiated records the computed session parameters once the OPEN
// exchange completes; called by `protocol` just before Handle(EventOpenReceived, nil).
func (f *FSM) SetNegotiated(n *capability.Negotiated) {
	f.Negotiated = n
	f.PeerRouterID = n.PeerRouterID
}

func (f *FSM) move(to State, actions ...Action) Result {
	if !transitionAllowed(f.state, to) {
		// Not a legal edge in the restricted table: RFC 4271 §8.2.2's
		// default behaviour for an event with no defined transition is to
		// reset to Idle, incrementing ConnectRetryCounter.
		f.connectRetryCounter++
		f.state = StateIdle
		return Result{State: StateIdle, Actions: []Action{ActionReleaseResources}}
	}
	f.state = to
	if to == StateIdle {
		f.connectRetryCounter++
	}
	return Result{State: to, Actions: actions}
}

// Handle advances the FSM by one event. notif carries the NOTIFICATION to
// send for error events the caller has already classified and built
// (EventOpenMessageError, EventHeaderError, EventUpdateMessageError,
// EventNotificationReceived simply echoes what the peer sent for logging);
// it is ignored for events that don't need one.
func (f *FSM) Handle(event Event, notif *message.Notification) (Result, error) {
	switch f.state {
	case StateIdle:
		return f.handleIdle(event, notif)
	case StateConnect:
		return f.handleConnect(event, notif)
	case StateActive:
		return f.handleActive(event, notif)
	case StateOpenSent:
		return f.handleOpenSent(event, notif)
	case StateOpenConfirm:
		return f.handleOpenConfirm(event, notif)
	case StateEstablished:
		return f.handleEstablished(event, notif)
	default:
		return Result{}, fmt.Errorf("fsm: unknown state %v", f.state)
	}
}

func (f *FSM) handleIdle(event Event, notif *message.Notification) (Result, error) {
	switch event {
	case EventStart:
		return f.move(StateConnect, ActionDialPeer, ActionStartConnectRetryTimer), nil
	case EventTCPConnectionConfirmed:
		// A Passive neighbor never dials out, so its only path to OpenSent
		// is an inbound connection accepted straight out of Idle.
		return f.move(StateOpenSent, ActionStopConnectRetryTimer, ActionSendOpen, ActionStartHoldTimer), nil
	default:
		return Result{State: StateIdle}, nil
	}
}

func (f *FSM) handleConnect(event Event, notif *message.Notification) (Result, error) {
	switch event {
	case EventTCPConnectionConfirmed:
		return f.move(StateOpenSent, ActionStopConnectRetryTimer, ActionSendOpen, ActionStartHoldTimer), nil
	case EventTCPConnectionFails, EventConnectRetryTimerExpires:
		return f.move(StateActive, ActionStartConnectRetryTimer), nil
	case EventStop:
		return f.move(StateIdle, ActionStopConnectRetryTimer, ActionCloseConnection, ActionReleaseResources), nil
	case EventHeaderError, EventOpenMessageError:
		return f.errorOut(notif), nil
	default:
		return f.move(StateIdle, ActionReleaseResources), nil
	}
}

func (f *FSM) handleActive(event Event, notif *message.Notification) (Result, error) {
	switch event {
	case EventConnectRetryTimerExpires:
		return f.move(StateConnect, ActionDialPeer, ActionStartConnectRetryTimer), nil
	case EventTCPConnectionConfirmed:
		return f.move(StateOpenSent, ActionStopConnectRetryTimer, ActionSendOpen, ActionStartHoldTimer), nil
	case EventStop:
		return f.move(StateIdle, ActionStopConnectRetryTimer, ActionReleaseResources), nil
	default:
		return f.move(StateIdle, ActionReleaseResources), nil
	}
}

func (f *FSM) handleOpenSent(event Event, notif *message.Notification) (Result, error) {
	switch event {
	case EventOpenReceived:
		return f.move(StateOpenConfirm, ActionSendKeepalive, ActionResetHoldTimer, ActionStartKeepaliveTimer), nil
	case EventHeaderError, EventOpenMessageError:
		return f.errorOut(notif), nil
	case EventTCPConnectionFails:
		return f.move(StateActive, ActionStartConnectRetryTimer), nil
	case EventNotificationReceived:
		return f.move(StateIdle, ActionCloseConnection, ActionReleaseResources), nil
	case EventCollisionDump:
		n := message.NewNotification(message.ErrCease, message.SubErrConnectionCollision)
		return f.moveWithNotification(StateIdle, &n, ActionSendNotification, ActionCloseConnection, ActionReleaseResources)
	case EventStop:
		n := message.NewNotification(message.ErrCease, message.SubErrAdministrativeShutdown)
		return f.moveWithNotification(StateIdle, &n, ActionSendNotification, ActionCloseConnection, ActionReleaseResources)
	default:
		return f.move(StateIdle, ActionReleaseResources), nil
	}
}

func (f *FSM) handleOpenConfirm(event Event, notif *message.Notification) (Result, error) {
	switch event {
	case EventKeepaliveReceived:
		return f.move(StateEstablished, ActionResetHoldTimer, ActionSyncAdjRibOut), nil
	case EventKeepaliveTimerExpires:
		return f.move(StateOpenConfirm, ActionSendKeepalive, ActionStartKeepaliveTimer), nil
	case EventNotificationReceived:
		return f.move(StateIdle, ActionCloseConnection, ActionReleaseResources), nil
	case EventHoldTimerExpires:
		n := message.NewNotification(message.ErrHoldTimerExpired, noSubcode)
		return f.moveWithNotification(StateIdle, &n, ActionSendNotification, ActionCloseConnection, ActionReleaseResources)
	case EventCollisionDump:
		n := message.NewNotification(message.ErrCease, message.SubErrConnectionCollision)
		return f.moveWithNotification(StateIdle, &n, ActionSendNotification, ActionCloseConnection, ActionReleaseResources)
	case EventTCPConnectionFails:
		return f.move(StateActive, ActionStartConnectRetryTimer), nil
	case EventHeaderError, EventOpenMessageError:
		return f.errorOut(notif), nil
	default:
		return f.move(StateIdle, ActionReleaseResources), nil
	}
}

func (f *FSM) handleEstablished(event Event, notif *message.Notification) (Result, error) {
	switch event {
	case EventUpdateReceived, EventKeepaliveReceived:
		return Result{State: StateEstablished, Actions: []Action{ActionResetHoldTimer}}, nil
	case EventKeepaliveTimerExpires:
		return Result{State: StateEstablished, Actions: []Action{ActionSendKeepalive, ActionStartKeepaliveTimer}}, nil
	case EventHoldTimerExpires:
		n := message.NewNotification(message.ErrHoldTimerExpired, noSubcode)
		return f.moveWithNotification(StateIdle, &n, ActionSendNotification, ActionCloseConnection, ActionReleaseResources)
	case EventNotificationReceived:
		return f.move(StateIdle, ActionCloseConnection, ActionReleaseResources), nil
	case EventUpdateMessageError, EventHeaderError:
		return f.errorOut(notif), nil
	case EventCollisionDump:
		n := message.NewNotification(message.ErrCease, message.SubErrConnectionCollision)
		return f.moveWithNotification(StateIdle, &n, ActionSendNotification, ActionCloseConnection, ActionReleaseResources)
	case EventTCPConnectionFails:
		return f.move(StateIdle, ActionCloseConnection, ActionReleaseResources), nil
	case EventStop:
		n := message.NewNotification(message.ErrCease, message.SubErrAdministrativeShutdown)
		return f.moveWithNotification(StateIdle, &n, ActionSendNotification, ActionCloseConnection, ActionReleaseResources)
	default:
		return f.move(StateIdle, ActionReleaseResources), nil
	}
}

const noSubcode = 0

// errorOut tears the session down with the caller-supplied NOTIFICATION
// (built by `protocol` from the specific parse failure it observed).
func (f *FSM) errorOut(notif *message.Notification) Result {
	r := f.move(StateIdle, ActionSendNotification, ActionCloseConnection, ActionReleaseResources)
	r.Notification = notif
	return r
}

func (f *FSM) moveWithNotification(to State, notif *message.Notification, actions ...Action) (Result, error) {
	r := f.move(to, actions...)
	r.Notification = notif
	return r, nil
}

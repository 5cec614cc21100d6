// Package protocol drives one peer's BGP session end to end: it owns the
// `fsm.FSM` (a pure step function), a `transport.Connection`, the
// session's timers, and the peer's `rib.AdjRibIn`/`rib.AdjRibOut` — the
// "Protocol" object owning the per-peer session, realized as one
// goroutine per peer that blocks only on channel
// receives, never on a raw socket call from the main loop itself (reads
// happen on a dedicated reader goroutine that feeds results back over a
// channel, matching the "no worker threads for protocol work, any
// blocking syscall is the bug" rule by moving the one unavoidable
// blocking call off the dispatch goroutine instead of polling it).
package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/config"
	"github.com/nexthop-labs/bgpd/delta"
	"github.com/nexthop-labs/bgpd/fsm"
	"github.com/nexthop-labs/bgpd/internal/log"
	"github.com/nexthop-labs/bgpd/internal/metrics"
	"github.com/nexthop-labs/bgpd/message"
	"github.com/nexthop-labs/bgpd/network"
	"github.com/nexthop-labs/bgpd/rib"
	"github.com/nexthop-labs/bgpd/transport"
	"github.com/nexthop-labs/bgpd/wire"

	"github.com/sirupsen/logrus"
)

// negotiatedHolder lets the reader goroutine load the session's current
// Negotiated context through an atomic.Value, which requires a single
// concrete type across every Store call (a bare *capability.Negotiated
// would violate that the moment it is nil).
type negotiatedHolder struct {
	n *capability.Negotiated
}

type readResult struct {
	conn *transport.Connection
	msg  message.Message
	err  error
}

type dialResult struct {
	conn *transport.Connection
	err  error
}

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdChange
	cmdRouteRefresh
	cmdSnapshot
)

type command struct {
	kind   commandKind
	change config.Change
	family wire.Family
	reply  chan RIBSnapshot
}

// RIBSnapshot is a point-in-time copy of a session's state and both RIBs,
// taken inside the Run goroutine so callers on other goroutines (`show
// neighbor`, `show routes`) never race its FSM/RIB mutation.
type RIBSnapshot struct {
	State fsm.State
	In    []rib.Route
	Out   []rib.Route
}

// Protocol is one peer's live session.
type Protocol struct {
	neighbor config.Neighbor
	fsm      *fsm.FSM

	conn        *transport.Connection
	weInitiated bool

	// challenger is a second connection from the same peer, tracked while
	// the main connection is mid-handshake (RFC 4271 §6.8 collision); it
	// either wins and replaces conn, or is closed with a Cease.
	challenger          *transport.Connection
	challengerInitiated bool

	negotiated atomic.Value // holds negotiatedHolder

	adjIn  *rib.AdjRibIn
	adjOut *rib.AdjRibOut

	events   chan Event
	commands chan command
	incoming chan *transport.Connection
	readCh   chan readResult
	dialCh   chan dialResult
	done     chan struct{}

	connectRetryTimer *time.Timer
	holdTimer         *time.Timer
	keepaliveTimer    *time.Timer
	retryInterval     time.Duration

	log *logrus.Entry
}

// New builds a Protocol for nb, in the Idle state. RouterID discovery
// falls back to network.FindBGPIdentifier when the neighbor didn't pin
// one.
func New(nb config.Neighbor) *Protocol {
	if nb.RouterID == 0 {
		if id, err := network.FindBGPIdentifier(); err == nil {
			nb.RouterID = id
		}
	}
	p := &Protocol{
		neighbor: nb,
		fsm:      fsm.New(nb.RouterID),
		adjIn:    rib.NewAdjRibIn(),
		adjOut:   rib.NewAdjRibOut(),
		events:   make(chan Event, 64),
		commands: make(chan command, 16),
		incoming: make(chan *transport.Connection, 1),
		readCh:   make(chan readResult, 4),
		dialCh:   make(chan dialResult, 1),
		done:     make(chan struct{}),
		log:      log.Peer("protocol", nb.String()),
	}
	p.storeNegotiated(nil)
	for _, c := range nb.StaticRoutes {
		p.adjOut.Insert(&rib.Route{
			Family:     c.Family,
			NLRI:       c.NLRI,
			Attributes: c.Attributes,
			Action:     c.Action,
			ReceivedAt: time.Time{},
		})
	}
	return p
}

// Events returns the channel of outbound session/message notifications
// an `api`/reactor layer drains to produce the helper-process
// event stream.
func (p *Protocol) Events() <-chan Event { return p.events }

// State reports the FSM's current state, for `show neighbor`.
func (p *Protocol) State() fsm.State { return p.fsm.State() }

// AdjRibIn/AdjRibOut expose this peer's RIBs for `show routes` and for
// the reactor to fan routes out to other peers' Adj-RIB-Out.
func (p *Protocol) AdjRibIn() *rib.AdjRibIn   { return p.adjIn }
func (p *Protocol) AdjRibOut() *rib.AdjRibOut { return p.adjOut }

// Neighbor returns the configuration this Protocol was built from.
func (p *Protocol) Neighbor() config.Neighbor { return p.neighbor }

// SendChange queues a route announcement/withdrawal for this peer's
// Adj-RIB-Out, flushing immediately if the session is Established.
func (p *Protocol) SendChange(c config.Change) {
	select {
	case p.commands <- command{kind: cmdChange, change: c}:
	case <-p.done:
	}
}

// RequestRouteRefresh replays family's Adj-RIB-Out, as if the peer had
// sent a ROUTE-REFRESH for it.
func (p *Protocol) RequestRouteRefresh(family wire.Family) {
	select {
	case p.commands <- command{kind: cmdRouteRefresh, family: family}:
	case <-p.done:
	}
}

// Stop administratively tears the session down (the
// `shutdown`/`neighbor <ip> shutdown` command).
func (p *Protocol) Stop() {
	select {
	case p.commands <- command{kind: cmdStop}:
	case <-p.done:
	}
}

// Snapshot returns a copy of the session's current state and RIB
// contents, taken by the Run goroutine between its other work. A stopped
// session reports Idle with empty RIBs.
func (p *Protocol) Snapshot() RIBSnapshot {
	reply := make(chan RIBSnapshot, 1)
	select {
	case p.commands <- command{kind: cmdSnapshot, reply: reply}:
	case <-p.done:
		return RIBSnapshot{State: fsm.StateIdle}
	}
	select {
	case s := <-reply:
		return s
	case <-p.done:
		return RIBSnapshot{State: fsm.StateIdle}
	}
}

// AcceptConn hands Protocol an inbound TCP connection the reactor's
// listener accepted for this neighbor's peer address.
func (p *Protocol) AcceptConn(conn *transport.Connection) {
	select {
	case p.incoming <- conn:
	case <-p.done:
		conn.Close()
	}
}

// Run drives the session until ctx is cancelled or Stop results in a
// permanent Idle with no further automatic retries requested. It should
// be called from its own goroutine by the reactor.
func (p *Protocol) Run(ctx context.Context) {
	defer close(p.done)
	if !p.neighbor.Passive {
		p.handleEvent(ctx, fsm.EventStart, nil)
	}
	for {
		select {
		case <-ctx.Done():
			p.shutdown()
			return
		case cmd := <-p.commands:
			p.handleCommand(ctx, cmd)
			if cmd.kind == cmdStop && p.fsm.State() == fsm.StateIdle {
				return
			}
		case conn := <-p.incoming:
			p.handleIncoming(ctx, conn)
		case res := <-p.dialCh:
			p.handleDialResult(ctx, res)
		case res := <-p.readCh:
			p.handleRead(ctx, res)
		case <-timerChan(p.connectRetryTimer):
			p.handleEvent(ctx, fsm.EventConnectRetryTimerExpires, nil)
		case <-timerChan(p.holdTimer):
			p.handleEvent(ctx, fsm.EventHoldTimerExpires, nil)
		case <-timerChan(p.keepaliveTimer):
			p.handleEvent(ctx, fsm.EventKeepaliveTimerExpires, nil)
		}
	}
}

func (p *Protocol) shutdown() {
	n := message.NewNotification(message.ErrCease, message.SubErrAdministrativeShutdown)
	if p.conn != nil {
		p.send(n)
	}
	p.closeConn()
	p.closeChallenger()
}

// handleEvent steps the FSM and executes whatever the step demands.
func (p *Protocol) handleEvent(ctx context.Context, ev fsm.Event, notif *message.Notification) {
	before := p.fsm.State()
	result, err := p.fsm.Handle(ev, notif)
	if err != nil {
		p.log.WithError(err).Error("fsm: unexpected internal error")
		return
	}
	p.executeActions(ctx, result)
	metrics.SessionState.WithLabelValues(p.neighbor.String(), before.String()).Set(0)
	metrics.SessionState.WithLabelValues(p.neighbor.String(), result.State.String()).Set(1)
	if before != fsm.StateEstablished && result.State == fsm.StateEstablished {
		p.resetRetryBackoff()
		p.emit(Event{Kind: EventUp, Peer: p.neighbor.String()})
	}
	if before == fsm.StateEstablished && result.State != fsm.StateEstablished {
		reason := "session reset"
		if result.Notification != nil {
			reason = result.Notification.Error()
		}
		p.emit(Event{Kind: EventDown, Peer: p.neighbor.String(), Reason: reason})
	}
}

func (p *Protocol) executeActions(ctx context.Context, r fsm.Result) {
	for _, a := range r.Actions {
		switch a {
		case fsm.ActionDialPeer:
			p.dial(ctx)
		case fsm.ActionSendOpen:
			p.sendOpen()
		case fsm.ActionSendKeepalive:
			p.send(message.Keepalive{})
		case fsm.ActionSendNotification:
			if r.Notification != nil {
				p.send(*r.Notification)
			}
		case fsm.ActionStartConnectRetryTimer:
			resetTimer(&p.connectRetryTimer, p.nextRetryInterval())
		case fsm.ActionStopConnectRetryTimer:
			stopTimer(&p.connectRetryTimer)
		case fsm.ActionStartHoldTimer, fsm.ActionResetHoldTimer:
			resetTimer(&p.holdTimer, p.holdDuration())
		case fsm.ActionStopHoldTimer:
			stopTimer(&p.holdTimer)
		case fsm.ActionStartKeepaliveTimer:
			resetTimer(&p.keepaliveTimer, p.keepaliveInterval())
		case fsm.ActionStopKeepaliveTimer:
			stopTimer(&p.keepaliveTimer)
		case fsm.ActionCloseConnection:
			p.closeConn()
		case fsm.ActionSyncAdjRibOut:
			p.syncAdjRibOut()
		case fsm.ActionReleaseResources:
			p.releaseResources()
		}
	}
}

func (p *Protocol) dial(ctx context.Context) {
	sec := securityFromNeighbor(p.neighbor)
	addr := p.neighbor.PeerAddress
	go func() {
		dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		conn, err := transport.Dial(dialCtx, addr, sec)
		select {
		case p.dialCh <- dialResult{conn: conn, err: err}:
		case <-p.done:
			if conn != nil {
				conn.Close()
			}
		}
	}()
}

func (p *Protocol) handleDialResult(ctx context.Context, res dialResult) {
	if res.err != nil {
		p.log.WithError(res.err).Debug("dial failed")
		p.handleEvent(ctx, fsm.EventTCPConnectionFails, nil)
		return
	}
	switch p.fsm.State() {
	case fsm.StateIdle, fsm.StateConnect, fsm.StateActive:
		p.setConn(res.conn, true)
		p.handleEvent(ctx, fsm.EventTCPConnectionConfirmed, nil)
	case fsm.StateOpenSent, fsm.StateOpenConfirm:
		// The peer's inbound connection won the race to start the
		// handshake; our own dial landing now is the same RFC 4271 §6.8
		// collision, seen from the other side.
		if p.challenger != nil {
			res.conn.Close()
			return
		}
		p.challenger = res.conn
		p.challengerInitiated = true
		p.startReader(res.conn)
		p.log.Info("tracking dialed connection for collision resolution")
	default:
		res.conn.Close()
	}
}

func (p *Protocol) handleIncoming(ctx context.Context, conn *transport.Connection) {
	switch p.fsm.State() {
	case fsm.StateIdle, fsm.StateConnect, fsm.StateActive:
		stopTimer(&p.connectRetryTimer)
		p.setConn(conn, false)
		p.handleEvent(ctx, fsm.EventTCPConnectionConfirmed, nil)
	case fsm.StateOpenSent, fsm.StateOpenConfirm:
		// RFC 4271 §6.8: a second connection while the first is
		// mid-handshake is a collision. Track both: the peer's OPEN on the
		// challenger carries the router-id that settles which connection
		// survives (handleChallengerRead). Our own OPEN goes out on the
		// challenger only if it wins, so the loser never advances.
		if p.challenger != nil {
			conn.Close()
			return
		}
		p.challenger = conn
		p.challengerInitiated = false
		p.startReader(conn)
		p.log.Info("tracking second connection for collision resolution")
	default:
		// An Established session always beats a new connection (RFC 4271
		// §6.8: collision with an existing Established connection).
		n := message.NewNotification(message.ErrCease, message.SubErrConnectionCollision)
		if err := conn.WriteMessage(n, nil); err != nil {
			p.log.WithError(err).Debug("failed to notify rejected connection")
		}
		conn.Close()
	}
}

// handleChallengerRead drives the collision challenger. The only message
// that matters is the peer's OPEN: it delivers the router-id RFC 4271
// §6.8 compares. Anything else — an error, a stray message before OPEN —
// just drops the challenger and leaves the main connection alone.
func (p *Protocol) handleChallengerRead(ctx context.Context, res readResult) {
	if res.err != nil {
		p.log.WithError(res.err).Debug("collision challenger read failed")
		p.closeChallenger()
		return
	}
	open, ok := res.msg.(message.Open)
	if !ok {
		p.closeChallenger()
		return
	}
	challenger := p.challenger

	switch p.fsm.State() {
	case fsm.StateOpenSent, fsm.StateOpenConfirm:
		if fsm.ResolveCollision(p.fsm.LocalRouterID, open.RouterID, p.weInitiated) {
			// The existing connection survives; dump the challenger.
			n := message.NewNotification(message.ErrCease, message.SubErrConnectionCollision)
			if err := challenger.WriteMessage(n, nil); err != nil {
				p.log.WithError(err).Debug("failed to notify dumped challenger")
			}
			p.closeChallenger()
			return
		}
		// The challenger wins: the FSM dumps the existing connection
		// (Cease/ConnectionCollision, close, back to Idle), then the
		// surviving connection restarts the handshake from there.
		// setConn consumes p.challenger during adoption.
		p.handleEvent(ctx, fsm.EventCollisionDump, nil)
		p.adoptConnection(ctx, challenger, open)
	case fsm.StateEstablished:
		// The main session completed while the challenger's OPEN was in
		// flight; Established always wins.
		n := message.NewNotification(message.ErrCease, message.SubErrConnectionCollision)
		if err := challenger.WriteMessage(n, p.fsm.Negotiated); err != nil {
			p.log.WithError(err).Debug("failed to notify dumped challenger")
		}
		p.closeChallenger()
	default:
		// The original connection collapsed on its own while the
		// challenger was in flight: no collision left to resolve, adopt
		// the challenger as a fresh inbound connection.
		p.adoptConnection(ctx, challenger, open)
	}
}

// adoptConnection promotes a challenger whose OPEN has already been read
// into the session's connection: send our OPEN (the Idle → OpenSent
// edge), then process the peer's.
func (p *Protocol) adoptConnection(ctx context.Context, conn *transport.Connection, open message.Open) {
	stopTimer(&p.connectRetryTimer)
	p.setConn(conn, p.challengerInitiated)
	p.handleEvent(ctx, fsm.EventTCPConnectionConfirmed, nil)
	p.handleOpen(ctx, open)
}

func (p *Protocol) setConn(conn *transport.Connection, weInitiated bool) {
	p.conn = conn
	p.weInitiated = weInitiated
	if conn == p.challenger {
		// A promoted challenger's reader goroutine is already running.
		p.challenger = nil
		p.challengerInitiated = false
	} else {
		p.startReader(conn)
	}
	p.emit(Event{Kind: EventConnected, Peer: p.neighbor.String()})
}

func (p *Protocol) startReader(conn *transport.Connection) {
	go func() {
		for {
			n := p.loadNegotiated()
			maxSize := capability.DefaultMaxMessageSize
			if n != nil && n.MaxMessageSize > 0 {
				maxSize = n.MaxMessageSize
			}
			msg, err := conn.ReadMessage(n, maxSize)
			select {
			case p.readCh <- readResult{conn: conn, msg: msg, err: err}:
			case <-p.done:
				return
			}
			if err != nil {
				return
			}
		}
	}()
}

func (p *Protocol) closeConn() {
	if p.conn != nil {
		p.conn.Close()
		p.conn = nil
	}
}

func (p *Protocol) closeChallenger() {
	if p.challenger != nil {
		p.challenger.Close()
		p.challenger = nil
		p.challengerInitiated = false
	}
}

func (p *Protocol) loadNegotiated() *capability.Negotiated {
	h, _ := p.negotiated.Load().(negotiatedHolder)
	return h.n
}

func (p *Protocol) storeNegotiated(n *capability.Negotiated) {
	p.negotiated.Store(negotiatedHolder{n: n})
}

func (p *Protocol) sendOpen() {
	caps := localCapabilities(p.neighbor)
	myASN := uint16(p.neighbor.LocalASN)
	if p.neighbor.LocalASN.Is4Byte() {
		myASN = uint16(wire.ASTrans)
	}
	open := message.Open{
		MyASN:        myASN,
		HoldTime:     uint16(p.neighbor.HoldTime / time.Second),
		RouterID:     p.neighbor.RouterID,
		Capabilities: caps,
	}
	p.send(open)
}

// send writes m and records the outcome; write failures are not fed back
// into the FSM directly (TCP errors surface just as reliably, and sooner,
// on the read side — see handleRead/onReadError — so there is exactly one
// place that turns a broken socket into an EventTCPConnectionFails).
func (p *Protocol) send(m message.Message) {
	if err := p.sendRaw(m); err != nil {
		p.log.WithError(err).Warn("write failed")
	}
}

func (p *Protocol) sendRaw(m message.Message) error {
	if p.conn == nil {
		return fmt.Errorf("protocol: no connection")
	}
	if err := p.conn.WriteMessage(m, p.fsm.Negotiated); err != nil {
		return err
	}
	metrics.MessagesTotal.WithLabelValues(p.neighbor.String(), "send", m.Type().String()).Inc()
	if n, ok := m.(message.Notification); ok {
		metrics.NotificationsTotal.WithLabelValues(p.neighbor.String(), "send", fmt.Sprintf("%d", n.Code)).Inc()
	}
	p.emit(Event{Kind: EventPacketSent, Peer: p.neighbor.String(), Message: m})
	return nil
}

func (p *Protocol) handleRead(ctx context.Context, res readResult) {
	switch res.conn {
	case p.conn:
	case p.challenger:
		p.handleChallengerRead(ctx, res)
		return
	default:
		return // stale read from a connection already superseded
	}
	if res.err != nil {
		p.onReadError(ctx, res.err)
		return
	}
	metrics.MessagesTotal.WithLabelValues(p.neighbor.String(), "recv", res.msg.Type().String()).Inc()
	p.emit(Event{Kind: EventPacketReceived, Peer: p.neighbor.String(), Message: res.msg})

	switch m := res.msg.(type) {
	case message.Open:
		p.handleOpen(ctx, m)
	case message.Keepalive:
		p.handleEvent(ctx, fsm.EventKeepaliveReceived, nil)
	case message.Update:
		p.handleUpdate(ctx, m)
	case message.Notification:
		metrics.NotificationsTotal.WithLabelValues(p.neighbor.String(), "recv", fmt.Sprintf("%d", m.Code)).Inc()
		p.handleEvent(ctx, fsm.EventNotificationReceived, &m)
	case message.RouteRefresh:
		p.handleRouteRefresh(m)
	}
	p.emit(Event{Kind: EventMessageParsed, Peer: p.neighbor.String(), Message: res.msg})
}

func (p *Protocol) onReadError(ctx context.Context, err error) {
	var notif message.Notification
	if errors.As(err, &notif) {
		// message.Decode synthesized this NOTIFICATION itself (a bad OPEN
		// version, a missing mandatory attribute, a duplicate attribute);
		// send it back and close exactly like a locally detected protocol
		// error, picking the FSM event its error code calls for.
		ev := fsm.EventHeaderError
		switch notif.Code {
		case message.ErrOpenMessage:
			ev = fsm.EventOpenMessageError
		case message.ErrUpdateMessage:
			ev = fsm.EventUpdateMessageError
		}
		p.handleEvent(ctx, ev, &notif)
		return
	}
	var attrErr *message.AttributeError
	if errors.As(err, &attrErr) {
		if attrErr.TreatAsWithdraw {
			// RFC 7606 category 4: the session stays up. decodeUpdate
			// aborts before reaching the NLRI span on a malformed
			// attribute, so the specific prefixes to withdraw aren't
			// recoverable from this error alone; the peer's next UPDATE
			// for the same prefixes supersedes whatever stale state this
			// leaves in place.
			p.log.WithField("code", attrErr.Code).Warn("malformed attribute, treat-as-withdraw")
			return
		}
		n := message.NewNotification(message.ErrUpdateMessage, message.SubErrMalformedAttributeList)
		p.handleEvent(ctx, fsm.EventUpdateMessageError, &n)
		return
	}
	p.log.WithError(err).Debug("connection read failed")
	p.handleEvent(ctx, fsm.EventTCPConnectionFails, nil)
}

func (p *Protocol) handleOpen(ctx context.Context, m message.Open) {
	if m.Capabilities == nil {
		m.Capabilities = capability.NewSet()
	}
	peerASN := resolvePeerASN(m)
	if notif := validatePeerASN(p.neighbor, peerASN); notif != nil {
		p.handleEvent(ctx, fsm.EventOpenMessageError, notif)
		return
	}
	local := localCapabilities(p.neighbor)
	negotiated := capability.Compute(
		local, m.Capabilities,
		p.neighbor.LocalASN, peerASN,
		p.neighbor.HoldTime, time.Duration(m.HoldTime)*time.Second,
		p.neighbor.RouterID, m.RouterID,
	)
	p.fsm.SetNegotiated(negotiated)
	p.storeNegotiated(negotiated)
	p.handleEvent(ctx, fsm.EventOpenReceived, nil)
}

func (p *Protocol) handleUpdate(ctx context.Context, m message.Update) {
	p.handleEvent(ctx, fsm.EventUpdateReceived, nil)
	now := time.Now()

	if fam, isEOR := m.IsEndOfRIB(); isEOR {
		p.handleEndOfRIB(fam)
		return
	}

	for _, w := range m.AllWithdrawn() {
		p.adjIn.Withdraw(w.Family(), w, now)
	}
	for _, a := range m.AllAnnounced() {
		p.adjIn.Announce(a.Family(), a, m.Attributes, now)
	}
	metrics.RIBRoutes.WithLabelValues(p.neighbor.String(), "in").Set(float64(p.adjIn.Len()))
}

func (p *Protocol) handleEndOfRIB(family wire.Family) {
	if p.fsm.Negotiated != nil && p.fsm.Negotiated.GracefulRestart != nil {
		removed := p.adjIn.SweepStale(family)
		if len(removed) > 0 {
			p.log.WithField("family", family).WithField("count", len(removed)).Info("graceful-restart sweep removed stale routes")
		}
	}
}

func (p *Protocol) handleRouteRefresh(m message.RouteRefresh) {
	if m.Subtype != message.RouteRefreshNormal {
		return // BoRR/EoRR markers (RFC 7313) are bookkeeping only here
	}
	p.adjOut.ReplayFamily(m.Family)
	if p.fsm.State() == fsm.StateEstablished {
		p.flushAdjRibOut()
	}
}

func (p *Protocol) handleCommand(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdStart:
		p.handleEvent(ctx, fsm.EventStart, nil)
	case cmdStop:
		p.handleEvent(ctx, fsm.EventStop, nil)
	case cmdChange:
		p.applyChange(cmd.change)
	case cmdRouteRefresh:
		p.adjOut.ReplayFamily(cmd.family)
		if p.fsm.State() == fsm.StateEstablished {
			p.flushAdjRibOut()
		}
	case cmdSnapshot:
		cmd.reply <- RIBSnapshot{
			State: p.fsm.State(),
			In:    copyRoutes(p.adjIn.Routes()),
			Out:   copyRoutes(p.adjOut.Routes()),
		}
	}
}

func copyRoutes(routes []*rib.Route) []rib.Route {
	out := make([]rib.Route, len(routes))
	for i, r := range routes {
		out[i] = *r
	}
	return out
}

func (p *Protocol) applyChange(c config.Change) {
	if c.NLRI == nil {
		return
	}
	route := &rib.Route{
		Family:     c.Family,
		NLRI:       c.NLRI,
		Attributes: c.Attributes,
		Action:     c.Action,
		ReceivedAt: time.Now(),
	}
	p.adjOut.Insert(route)
	if p.fsm.State() == fsm.StateEstablished {
		p.flushAdjRibOut()
	}
}

func (p *Protocol) syncAdjRibOut() {
	p.adjOut.Replay()
	p.flushAdjRibOut()
	if p.fsm.Negotiated == nil {
		return
	}
	for family := range p.fsm.Negotiated.Families {
		p.send(delta.EndOfRIB(family))
	}
}

func (p *Protocol) flushAdjRibOut() {
	pending := p.adjOut.Pending()
	if len(pending) == 0 {
		return
	}
	for _, m := range delta.Generate(pending, p.fsm.Negotiated) {
		p.send(m)
	}
	p.adjOut.MarkFlushed(pending)
	metrics.RIBRoutes.WithLabelValues(p.neighbor.String(), "out").Set(float64(p.adjOut.Len()))
}

func (p *Protocol) releaseResources() {
	stopTimer(&p.holdTimer)
	stopTimer(&p.keepaliveTimer)

	if p.fsm.Negotiated != nil && p.fsm.Negotiated.GracefulRestart != nil {
		for _, f := range p.fsm.Negotiated.GracefulRestart.Families {
			p.adjIn.MarkStale(f.Family)
		}
	} else {
		// Adj-RIB-In is cleared on session down unless graceful-restart.
		p.adjIn = rib.NewAdjRibIn()
	}
	p.fsm.Negotiated = nil
	p.storeNegotiated(nil)
}

func (p *Protocol) emit(e Event) {
	select {
	case p.events <- e:
	default:
		p.log.Warn("event channel full, dropping event")
	}
}

func securityFromNeighbor(nb config.Neighbor) transport.Security {
	sec := transport.Security{
		TTLSecurity:   nb.TTLSecurity,
		MinTTL:        nb.MinTTL,
		BindInterface: nb.BindInterface,
	}
	if nb.MD5 != nil {
		sec.MD5Key = nb.MD5.Key
	}
	// TCP-AO (config.TCPAO) is carried through the Neighbor type
	// but not wired into transport.Security: the available
	// Linux socket-option library (golang.org/x/sys/unix @ v0.18.0)
	// predates that kernel's TCP_AO sockopt support, and key rotation is
	// out of scope regardless. See DESIGN.md.
	return sec
}

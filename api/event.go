package api

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/nexthop-labs/bgpd/message"
	"github.com/nexthop-labs/bgpd/protocol"
)

// exabgpVersion is the version string the JSON event envelope
// carries (`{"exabgp": "<version>", ...}`); this speaker is compatible
// with consumers written against that wire shape, not a reimplementation
// of ExaBGP itself, so the value is this module's own identifier.
const exabgpVersion = "5.0.0-bgpd"

// jsonEvent is the wire shape of one line of the JSON event
// stream.
type jsonEvent struct {
	ExaBGP   string `json:"exabgp"`
	Type     string `json:"type"`
	Neighbor string `json:"neighbor,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Encoder writes Events to an io.Writer, one line per event, as either
// JSON or ExaBGP-style line-oriented text — two equivalent
// transports.
type Encoder struct {
	w    io.Writer
	json bool
}

// NewEncoder builds an Encoder. asJSON selects the JSON transport;
// otherwise the line-oriented text transport is used.
func NewEncoder(w io.Writer, asJSON bool) *Encoder {
	return &Encoder{w: w, json: asJSON}
}

// Encode writes one Event as a single line.
func (e *Encoder) Encode(ev protocol.Event) error {
	if e.json {
		return e.encodeJSON(ev)
	}
	return e.encodeText(ev)
}

func (e *Encoder) encodeJSON(ev protocol.Event) error {
	je := jsonEvent{
		ExaBGP:   exabgpVersion,
		Type:     ev.Kind.String(),
		Neighbor: ev.Peer,
		Reason:   ev.Reason,
	}
	if ev.Message != nil {
		je.Message = describeMessage(ev.Message)
	}
	b, err := json.Marshal(je)
	if err != nil {
		return fmt.Errorf("api: encode event: %w", err)
	}
	b = append(b, '\n')
	_, err = e.w.Write(b)
	return err
}

func (e *Encoder) encodeText(ev protocol.Event) error {
	line := fmt.Sprintf("neighbor %s %s", ev.Peer, ev.Kind)
	if ev.Reason != "" {
		line += " reason " + ev.Reason
	}
	if ev.Message != nil {
		line += " " + describeMessage(ev.Message)
	}
	_, err := fmt.Fprintln(e.w, line)
	return err
}

// describeMessage renders m's type and the one or two fields an operator
// watching the stream most wants (route counts for UPDATE, code/subcode
// for NOTIFICATION) rather than a full structural dump.
func describeMessage(m message.Message) string {
	switch v := m.(type) {
	case message.Update:
		return fmt.Sprintf("UPDATE announced=%d withdrawn=%d", len(v.AllAnnounced()), len(v.AllWithdrawn()))
	case message.Notification:
		return fmt.Sprintf("NOTIFICATION code=%d subcode=%d", v.Code, v.Subcode)
	case message.Open:
		return fmt.Sprintf("OPEN asn=%d hold=%d router-id=%d", v.MyASN, v.HoldTime, v.RouterID)
	case message.RouteRefresh:
		return fmt.Sprintf("ROUTE-REFRESH family=%s", v.Family)
	default:
		return m.Type().String()
	}
}

// Pump reads Events from src until it closes, encoding each to w; it is
// meant to run in its own goroutine fed by reactor.Reactor.Events().
func Pump(src <-chan protocol.Event, enc *Encoder) {
	for ev := range src {
		if err := enc.Encode(ev); err != nil {
			apiLog.WithError(err).Warn("failed to encode event, helper process likely gone")
			return
		}
	}
}

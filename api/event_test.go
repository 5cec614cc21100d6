package api

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexthop-labs/bgpd/message"
	"github.com/nexthop-labs/bgpd/protocol"
)

func TestEncoderTextFormat(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, false)

	err := enc.Encode(protocol.Event{Kind: protocol.EventUp, Peer: "192.0.2.1"})
	require.NoError(t, err)
	assert.Equal(t, "neighbor 192.0.2.1 up\n", buf.String())
}

func TestEncoderTextFormatIncludesReason(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, false)

	err := enc.Encode(protocol.Event{Kind: protocol.EventDown, Peer: "192.0.2.1", Reason: "hold timer expired"})
	require.NoError(t, err)
	assert.Equal(t, "neighbor 192.0.2.1 down reason hold timer expired\n", buf.String())
}

func TestEncoderJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, true)

	err := enc.Encode(protocol.Event{Kind: protocol.EventUp, Peer: "192.0.2.1"})
	require.NoError(t, err)

	var je jsonEvent
	require.NoError(t, json.Unmarshal(buf.Bytes(), &je))
	assert.Equal(t, exabgpVersion, je.ExaBGP)
	assert.Equal(t, "up", je.Type)
	assert.Equal(t, "192.0.2.1", je.Neighbor)
}

func TestEncoderJSONIncludesMessageDescription(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, true)

	notif := message.Notification{Code: 6, Subcode: 2}
	err := enc.Encode(protocol.Event{Kind: protocol.EventMessageParsed, Peer: "192.0.2.1", Message: notif})
	require.NoError(t, err)

	var je jsonEvent
	require.NoError(t, json.Unmarshal(buf.Bytes(), &je))
	assert.Contains(t, je.Message, "NOTIFICATION")
	assert.Contains(t, je.Message, "code=6")
}

func TestPumpEncodesUntilChannelCloses(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf, false)

	src := make(chan protocol.Event, 2)
	src <- protocol.Event{Kind: protocol.EventConnected, Peer: "192.0.2.1"}
	src <- protocol.Event{Kind: protocol.EventUp, Peer: "192.0.2.1"}
	close(src)

	Pump(src, enc)
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
}

package protocol

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/config"
)

func testProtocol() *Protocol {
	return New(config.Neighbor{
		PeerAddress: net.ParseIP("192.0.2.1"),
		PeerASN:     65001,
		LocalASN:    65000,
		RouterID:    1,
		HoldTime:    90 * time.Second,
		Passive:     true,
	})
}

func TestNextRetryIntervalDoublesAndCaps(t *testing.T) {
	p := testProtocol()

	assert.Equal(t, 5*time.Second, p.nextRetryInterval())
	assert.Equal(t, 10*time.Second, p.nextRetryInterval())
	assert.Equal(t, 20*time.Second, p.nextRetryInterval())
	assert.Equal(t, 40*time.Second, p.nextRetryInterval())
	assert.Equal(t, 80*time.Second, p.nextRetryInterval())
	assert.Equal(t, maxConnectRetryInterval, p.nextRetryInterval(), "must clamp at the 120s ceiling")
	assert.Equal(t, maxConnectRetryInterval, p.nextRetryInterval(), "stays clamped on further calls")
}

func TestResetRetryBackoffRestartsFromInitial(t *testing.T) {
	p := testProtocol()

	p.nextRetryInterval()
	p.nextRetryInterval()
	p.resetRetryBackoff()

	assert.Equal(t, 5*time.Second, p.nextRetryInterval(), "a reset backoff must not continue the old multiplier")
}

func TestHoldDurationUsesConfiguredValueBeforeNegotiation(t *testing.T) {
	p := testProtocol()
	assert.Equal(t, 90*time.Second, p.holdDuration())
}

func TestHoldDurationPrefersNegotiatedValue(t *testing.T) {
	p := testProtocol()
	p.fsm.Negotiated = &capability.Negotiated{HoldTime: 30 * time.Second}
	assert.Equal(t, 30*time.Second, p.holdDuration())
}

func TestKeepaliveIntervalIsHoldDividedByThree(t *testing.T) {
	p := testProtocol()
	assert.Equal(t, 30*time.Second, p.keepaliveInterval())
}

func TestKeepaliveIntervalIsZeroWhenHoldTimeIsZero(t *testing.T) {
	p := testProtocol()
	p.neighbor.HoldTime = 0
	assert.Equal(t, time.Duration(0), p.keepaliveInterval())
}

func TestTimerChanOfNilTimerBlocksForever(t *testing.T) {
	ch := timerChan(nil)
	select {
	case <-ch:
		t.Fatal("a nil timer's channel must never fire")
	case <-time.After(10 * time.Millisecond):
	}
}

func TestResetTimerArmsThenStopTimerDisarms(t *testing.T) {
	var timer *time.Timer
	resetTimer(&timer, time.Millisecond)
	select {
	case <-timerChan(timer):
	case <-time.After(time.Second):
		t.Fatal("timer armed with a positive duration must fire")
	}

	resetTimer(&timer, 5*time.Minute)
	stopTimer(&timer)
	assert.Nil(t, timer)
}

func TestResetTimerWithNonPositiveDurationDisarms(t *testing.T) {
	var timer *time.Timer
	resetTimer(&timer, time.Hour)
	resetTimer(&timer, 0)
	assert.Nil(t, timer)
}

func TestSecurityFromNeighborMapsFields(t *testing.T) {
	nb := config.Neighbor{
		MD5:           &config.TCPMD5{Key: "secret"},
		TTLSecurity:   true,
		MinTTL:        253,
		BindInterface: "eth0",
	}
	sec := securityFromNeighbor(nb)
	assert.Equal(t, "secret", sec.MD5Key)
	assert.True(t, sec.TTLSecurity)
	assert.Equal(t, 253, sec.MinTTL)
	assert.Equal(t, "eth0", sec.BindInterface)
}

func TestSecurityFromNeighborWithoutMD5HasEmptyKey(t *testing.T) {
	sec := securityFromNeighbor(config.Neighbor{})
	assert.Empty(t, sec.MD5Key)
}

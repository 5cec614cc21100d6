package protocol

import "time"

// Connect-retry backoff bounds: CONNECT retries with
// exponential backoff bounded at ~120s.
const (
	initialConnectRetryInterval = 5 * time.Second
	maxConnectRetryInterval     = 120 * time.Second
)

// resetTimer (re)arms *t to fire after d, stopping whatever it was
// previously counting down. d<=0 disables the timer (both
// 0 disables).
func resetTimer(t **time.Timer, d time.Duration) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
	if d <= 0 {
		return
	}
	*t = time.NewTimer(d)
}

// stopTimer cancels *t, if armed.
func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// timerChan returns t's fire channel, or nil if t is unarmed — a nil
// channel makes the corresponding select case block forever, which is
// exactly "this timer isn't running".
func timerChan(t *time.Timer) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

// holdDuration is the hold time to arm the hold timer with: the
// negotiated value once OPEN exchange has completed, otherwise the
// locally configured proposal (RFC 4271 §4.2 uses the local value until
// the peer's OPEN is seen).
func (p *Protocol) holdDuration() time.Duration {
	if p.fsm.Negotiated != nil {
		return p.fsm.Negotiated.HoldTime
	}
	return p.neighbor.HoldTime
}

// keepaliveInterval is HoldTime/3 per RFC 4271 §4.4.
func (p *Protocol) keepaliveInterval() time.Duration {
	h := p.holdDuration()
	if h <= 0 {
		return 0
	}
	return h / 3
}

// nextRetryInterval returns the current backoff delay and advances it,
// doubling up to maxConnectRetryInterval.
func (p *Protocol) nextRetryInterval() time.Duration {
	d := p.retryInterval
	if d <= 0 {
		d = initialConnectRetryInterval
	}
	p.retryInterval = d * 2
	if p.retryInterval > maxConnectRetryInterval {
		p.retryInterval = maxConnectRetryInterval
	}
	return d
}

// resetRetryBackoff is called once a session reaches Established, so the
// next disconnect starts backing off from the initial interval again
// rather than continuing a multiplier built up across a long healthy run.
func (p *Protocol) resetRetryBackoff() {
	p.retryInterval = 0
}

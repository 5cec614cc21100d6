// Package transport wraps a BGP TCP session (RFC 4271 §8's "TCP
// connection", port 179): dialing/accepting with the peer-security socket
// options BGP deployments expect (TCP MD5, TTL security, SO_REUSEADDR,
// bind-to-device), and framing reads/writes around the 19-byte message
// header so callers exchange whole `message.Message` values instead of
// byte slices.
package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/nexthop-labs/bgpd/capability"
	"github.com/nexthop-labs/bgpd/message"
)

// DefaultMaxMessageSize is RFC 4271 §4.1's message size limit, used until
// the Extended Message capability (RFC 8654) negotiates a larger one.
const DefaultMaxMessageSize = 4096

// Port is the well-known BGP TCP port (RFC 4271 §8).
const Port = 179

// Security carries the peer-authentication and TTL-protection options RFC
// 4271 Appendix E / RFC 5082 (GTSM) describe. A zero value disables all of
// them.
type Security struct {
	// MD5Key is the RFC 2385 TCP MD5 signature shared secret. Empty
	// disables MD5 on the socket.
	MD5Key string
	// TTLSecurity enables RFC 5082's Generalized TTL Security Mechanism:
	// outgoing packets are sent with TTL 255 and incoming packets with a
	// TTL below MinTTL are dropped by the kernel.
	TTLSecurity bool
	// MinTTL is the minimum accepted TTL when TTLSecurity is set; 255
	// means "adjacent only" (hop count 1), 254 means at most 1 hop away,
	// and so on.
	MinTTL int
	// BindInterface restricts the socket to a single interface
	// (SO_BINDTODEVICE), for multi-VRF or multi-homed speakers.
	BindInterface string
}

// Connection is one framed BGP TCP session. It owns exactly one
// net.Conn and is not safe for concurrent reads, nor concurrent writes;
// the driving `protocol` goroutine is expected to serialize both itself
// (one reader loop, one writer call path), matching the single-threaded
// cooperative per-peer model realized as one goroutine per peer.
type Connection struct {
	conn   net.Conn
	r      *bufio.Reader
	local  net.IP
	remote net.IP
}

// Dial opens an active TCP connection to addr:Port with the given
// security options applied before connect(2), per RFC 4271 §8's
// ConnectRetryTimer-driven active open.
func Dial(ctx context.Context, addr net.IP, sec Security) (*Connection, error) {
	d := &net.Dialer{
		Timeout: 30 * time.Second,
		Control: controlFunc(sec),
	}
	raddr := net.JoinHostPort(addr.String(), fmt.Sprintf("%d", Port))
	conn, err := d.DialContext(ctx, "tcp", raddr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", raddr, err)
	}
	return newConnection(conn), nil
}

// Listener accepts inbound BGP connections with the given security
// options applied to the listening socket; accepted sockets get no
// Control call of their own.
type Listener struct {
	ln net.Listener
}

// Listen opens a passive listener on bindAddr:Port (bindAddr may be the
// zero IP to listen on all addresses).
func Listen(bindAddr net.IP, sec Security) (*Listener, error) {
	lc := net.ListenConfig{Control: controlFunc(sec)}
	laddr := net.JoinHostPort(bindAddr.String(), fmt.Sprintf("%d", Port))
	ln, err := lc.Listen(context.Background(), "tcp", laddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", laddr, err)
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks until an inbound connection arrives.
func (l *Listener) Accept() (*Connection, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("transport: accept: %w", err)
	}
	return newConnection(conn), nil
}

// Close stops accepting new connections.
func (l *Listener) Close() error { return l.ln.Close() }

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr { return l.ln.Addr() }

// NewFromConn wraps an already-established net.Conn in a framed
// Connection, for callers that manage their own TCP setup (an external
// listener, or an in-process pipe in tests).
func NewFromConn(conn net.Conn) *Connection { return newConnection(conn) }

func newConnection(conn net.Conn) *Connection {
	local, _, _ := net.SplitHostPort(conn.LocalAddr().String())
	remote, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
	return &Connection{
		conn:   conn,
		r:      bufio.NewReaderSize(conn, DefaultMaxMessageSize),
		local:  net.ParseIP(local),
		remote: net.ParseIP(remote),
	}
}

// LocalIP and RemoteIP identify the two ends of the TCP connection;
// `reactor` matches RemoteIP against the configured peer addresses to
// pick the neighbor an accepted connection belongs to.
func (c *Connection) LocalIP() net.IP  { return c.local }
func (c *Connection) RemoteIP() net.IP { return c.remote }

// Close tears down the underlying TCP connection (FSM's
// ActionCloseConnection).
func (c *Connection) Close() error { return c.conn.Close() }

// SetDeadline arms a read/write deadline on the underlying net.Conn, for
// a caller that wants to bound a single ReadMessage call. The `protocol`
// package does not call it; its FSM HoldTimer runs independently.
func (c *Connection) SetDeadline(t time.Time) error { return c.conn.SetDeadline(t) }

// ReadMessage blocks for exactly one framed BGP message: the fixed
// 19-byte header, then Header.Length-19 more bytes, then
// message.Decode. maxMessageSize should be capability.Negotiated's
// MaxMessageSize once negotiated, or DefaultMaxMessageSize before OPEN
// exchange completes.
func (c *Connection) ReadMessage(n *capability.Negotiated, maxMessageSize int) (message.Message, error) {
	header := make([]byte, message.HeaderLength)
	if err := readExact(c.r, header); err != nil {
		return nil, fmt.Errorf("transport: reading header: %w", err)
	}
	h, err := message.ReadHeader(header, maxMessageSize)
	if err != nil {
		return nil, err
	}
	frame := make([]byte, h.Length)
	copy(frame, header)
	if err := readExact(c.r, frame[message.HeaderLength:]); err != nil {
		return nil, fmt.Errorf("transport: reading body: %w", err)
	}
	return message.Decode(frame, n)
}

// WriteMessage frames and writes m in full, or returns an error; a short
// write never happens silently (write_all semantics).
func (c *Connection) WriteMessage(m message.Message, n *capability.Negotiated) error {
	frame := message.Pack(m, n)
	if err := writeAll(c.conn, frame); err != nil {
		return fmt.Errorf("transport: writing %s: %w", m.Type(), err)
	}
	return nil
}

func readExact(r *bufio.Reader, buf []byte) error {
	read := 0
	for read < len(buf) {
		n, err := r.Read(buf[read:])
		read += n
		if err != nil {
			if read == len(buf) {
				break
			}
			return err
		}
	}
	return nil
}

func writeAll(w net.Conn, buf []byte) error {
	written := 0
	for written < len(buf) {
		n, err := w.Write(buf[written:])
		written += n
		if err != nil {
			return err
		}
	}
	return nil
}

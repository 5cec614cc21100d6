//go:build !linux

package transport

import (
	"syscall"

	"github.com/nexthop-labs/bgpd/internal/log"
)

// controlFunc is a no-op off Linux: TCP_MD5SIG, IP_MINTTL and
// SO_BINDTODEVICE are all Linux-specific socket options with no portable
// equivalent, so a non-Linux build runs without those peer-security options,
// logging once per connection when they were requested but can't be
// honoured.
func controlFunc(sec Security) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		if sec.MD5Key != "" || sec.TTLSecurity || sec.BindInterface != "" {
			log.Component("transport").Warn("TCP MD5 / GTSM / bind-to-device are Linux-only; ignoring on this platform")
		}
		return nil
	}
}

//go:build linux

package transport

import (
	"fmt"
	"net"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/nexthop-labs/bgpd/internal/log"
)

// controlFunc builds the net.Dialer/net.ListenConfig Control hook that
// applies sec to the raw socket before connect(2)/listen(2), the
// standard way a Go networking stack reaches setsockopt(2) for options
// net.Conn has no portable API for.
func controlFunc(sec Security) func(network, address string, c syscall.RawConn) error {
	return func(network, address string, c syscall.RawConn) error {
		var sockErr error
		err := c.Control(func(fd uintptr) {
			if sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); sockErr != nil {
				return
			}

			if sec.MD5Key != "" {
				if sockErr = setTCPMD5(int(fd), address, sec.MD5Key); sockErr != nil {
					return
				}
			}

			if sec.TTLSecurity {
				minTTL := sec.MinTTL
				if minTTL == 0 {
					minTTL = 255
				}
				if sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TTL, 255); sockErr != nil {
					return
				}
				if sockErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_MINTTL, minTTL); sockErr != nil {
					return
				}
			}

			if sec.BindInterface != "" {
				if sockErr = unix.BindToDevice(int(fd), sec.BindInterface); sockErr != nil {
					return
				}
			}
		})
		if err != nil {
			return err
		}
		return sockErr
	}
}

// setTCPMD5 installs an RFC 2385 MD5 signature key for the address the
// Control hook was given. The kernel TCP MD5 option (TCP_MD5SIG) takes
// the full sockaddr of the peer plus the key, not just the key, so it
// applies per-connection rather than per-listener; a listener needs one
// such call per configured neighbor before it can accept signed
// connections from that neighbor. On a listening socket the hook is given
// the listener's own bind address, and that is the only key installed
// there.
func setTCPMD5(fd int, address, key string) error {
	log.Component("transport").WithField("address", address).Debug("installing TCP MD5 signature key")

	host, _, err := net.SplitHostPort(address)
	if err != nil {
		host = address
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return fmt.Errorf("transport: invalid peer address %q for TCP MD5", address)
	}

	sig := &unix.TCPMD5Sig{Keylen: uint16(len(key))}
	copy(sig.Key[:], key)
	if ip4 := ip.To4(); ip4 != nil {
		sa := (*unix.RawSockaddrInet4)(unsafe.Pointer(&sig.Addr))
		sa.Family = unix.AF_INET
		copy(sa.Addr[:], ip4)
	} else {
		sa := (*unix.RawSockaddrInet6)(unsafe.Pointer(&sig.Addr))
		sa.Family = unix.AF_INET6
		copy(sa.Addr[:], ip.To16())
	}

	return unix.SetsockoptTCPMD5Sig(fd, unix.IPPROTO_TCP, unix.TCP_MD5SIG, sig)
}

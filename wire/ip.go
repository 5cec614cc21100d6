package wire

import (
	"fmt"
	"net"
)

// IP is an address belonging to a specific address family. Length of Addr
// always matches AFI: four bytes for AFIIPv4, sixteen for AFIIPv6.
type IP struct {
	Addr net.IP
	AFI  AFI
}

// NewIP wraps ip, normalising it to the byte width its family requires.
func NewIP(ip net.IP) IP {
	if v4 := ip.To4(); v4 != nil {
		return IP{Addr: v4, AFI: AFIIPv4}
	}
	return IP{Addr: ip.To16(), AFI: AFIIPv6}
}

func (ip IP) width() int {
	if ip.AFI == AFIIPv4 {
		return 4
	}
	return 16
}

// Pack appends the raw address bytes (no length prefix).
func (ip IP) Pack(b []byte) []byte {
	return append(b, ip.Addr...)
}

// ReadIP consumes exactly width(afi) bytes from b.
func ReadIP(b []byte, afi AFI) (IP, []byte, error) {
	n := 4
	if afi == AFIIPv6 {
		n = 16
	}
	if len(b) < n {
		return IP{}, nil, fmt.Errorf("wire: short read for %s address: %d bytes", afi, len(b))
	}
	addr := make(net.IP, n)
	copy(addr, b[:n])
	return IP{Addr: addr, AFI: afi}, b[n:], nil
}

func (ip IP) String() string {
	return ip.Addr.String()
}

// CIDR is a packed IP prefix: a mask length followed by ceil(length/8)
// bytes of address. Host bits beyond the mask MUST be zero on decode.
type CIDR struct {
	IP     IP
	Length int
}

// PrefixBytes returns ceil(Length/8), the number of address bytes this
// prefix occupies on the wire.
func (c CIDR) PrefixBytes() int {
	return (c.Length + 7) / 8
}

// Pack appends the one-byte length followed by the packed prefix bytes.
func (c CIDR) Pack(b []byte) []byte {
	b = append(b, byte(c.Length))
	n := c.PrefixBytes()
	return append(b, c.IP.Addr[:n]...)
}

// ReadCIDR reads a length-prefixed CIDR for afi from b, returning the
// remaining bytes. maxLen is the address width in bits (32 or 128);
// callers that have already consumed part of the mask (labelled unicast
// raising the mask to cover a label stack) pass the residual bit budget.
func ReadCIDR(b []byte, afi AFI) (CIDR, []byte, error) {
	if len(b) < 1 {
		return CIDR{}, nil, fmt.Errorf("wire: short read for prefix length")
	}
	length := int(b[0])
	b = b[1:]
	maxBits := 32
	if afi == AFIIPv6 {
		maxBits = 128
	}
	if length > maxBits {
		return CIDR{}, nil, fmt.Errorf("wire: prefix length %d exceeds %d bits for %s", length, maxBits, afi)
	}
	n := (length + 7) / 8
	if len(b) < n {
		return CIDR{}, nil, fmt.Errorf("wire: short read for %d-byte prefix: %d bytes", n, len(b))
	}
	width := 4
	if afi == AFIIPv6 {
		width = 16
	}
	addr := make(net.IP, width)
	copy(addr, b[:n])
	if err := checkHostBitsZero(addr, length, width); err != nil {
		return CIDR{}, nil, err
	}
	return CIDR{IP: IP{Addr: addr, AFI: afi}, Length: length}, b[n:], nil
}

func checkHostBitsZero(addr net.IP, length, width int) error {
	for bit := length; bit < width*8; bit++ {
		byteIdx := bit / 8
		bitIdx := 7 - uint(bit%8)
		if addr[byteIdx]&(1<<bitIdx) != 0 {
			return fmt.Errorf("wire: non-zero host bits beyond /%d", length)
		}
	}
	return nil
}

func (c CIDR) String() string {
	return fmt.Sprintf("%s/%d", c.IP, c.Length)
}

// ReadPrefixBits reads a bare (no length byte) prefix of exactly length
// bits for afi from b. Used by families (labelled unicast, VPN) whose mask
// length byte covers more than the address prefix, so the length has
// already been parsed and adjusted before the address bytes are read.
func ReadPrefixBits(b []byte, afi AFI, length int) (CIDR, []byte, error) {
	width := 4
	if afi == AFIIPv6 {
		width = 16
	}
	if length < 0 || length > width*8 {
		return CIDR{}, nil, fmt.Errorf("wire: prefix length %d out of range for %s", length, afi)
	}
	n := (length + 7) / 8
	if len(b) < n {
		return CIDR{}, nil, fmt.Errorf("wire: short read for %d-byte prefix: %d bytes", n, len(b))
	}
	addr := make(net.IP, width)
	copy(addr, b[:n])
	if err := checkHostBitsZero(addr, length, width); err != nil {
		return CIDR{}, nil, err
	}
	return CIDR{IP: IP{Addr: addr, AFI: afi}, Length: length}, b[n:], nil
}

// PackPrefixBits appends just the address bytes of c (no length byte),
// for families where the length byte is shared with other fields.
func (c CIDR) PackPrefixBits(b []byte) []byte {
	n := c.PrefixBytes()
	return append(b, c.IP.Addr[:n]...)
}

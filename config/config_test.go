package config

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeighborStringIsPeerAddress(t *testing.T) {
	n := Neighbor{PeerAddress: net.ParseIP("192.0.2.1")}
	assert.Equal(t, "192.0.2.1", n.String())
}

func TestNeighborStringIsPeerAddressForIPv6(t *testing.T) {
	n := Neighbor{PeerAddress: net.ParseIP("2001:db8::1")}
	assert.Equal(t, "2001:db8::1", n.String())
}

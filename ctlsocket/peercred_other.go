//go:build !linux

package ctlsocket

import "net"

// peerUID is unavailable off Linux; the socket file mode is the only guard.
func peerUID(net.Conn) (uint32, error) {
	return 0, nil
}

const peerCredSupported = false

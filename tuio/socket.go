package tuio

import (
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// UDPSocket is the part of *net.UDPConn the receiver needs.
type UDPSocket interface {
	ReadFromUDP(b []byte) (n int, addr *net.UDPAddr, err error)
	SetReadBuffer(bytes int) error
	SetReadDeadline(t time.Time) error
	Close() error
	LocalAddr() net.Addr
}

// UDPSocketFactory opens listening sockets. Tests replace it with a fake.
type UDPSocketFactory interface {
	ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error)
}

// NetSocketFactory opens real sockets with net.ListenUDP.
type NetSocketFactory struct{}

// ListenUDP creates a new UDP socket
func (NetSocketFactory) ListenUDP(network string, laddr *net.UDPAddr) (UDPSocket, error) {
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// PacketWriter writes one datagram per call.
type PacketWriter interface {
	Write(b []byte) (int, error)
	Close() error
}

// DialUDP connects a PacketWriter to host:port
func DialUDP(host string, port int) (PacketWriter, error) {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	raddr, err := net.ResolveUDPAddr("udp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", address)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", address)
	}
	return conn, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

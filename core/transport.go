package core

import (
	"net"
	"time"

	"github.com/pkg/errors"
)

// DefaultTimeout bounds every receive before a retransmission is due.
const DefaultTimeout = 5 * time.Second

// Transport is the datagram conduit a Session sends and receives through.
// It exists as an interface so the state machine can be driven by a test
// double instead of a live socket.
type Transport interface {
	Send(pkt []byte, dst *net.UDPAddr) error
	Receive(max int) ([]byte, *net.UDPAddr, error)
	Close() error
}

// UDPTransport owns one UDP socket bound to an OS-assigned local port.
type UDPTransport struct {
	conn    *net.UDPConn
	timeout time.Duration
}

func NewUDPTransport(timeout time.Duration) (*UDPTransport, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, errors.Wrap(err, "bind udp socket")
	}

	return &UDPTransport{conn: conn, timeout: timeout}, nil
}

// Send fires the packet at dst. UDP gives no delivery guarantee; a nil
// return only means the datagram left the socket.
func (t *UDPTransport) Send(pkt []byte, dst *net.UDPAddr) error {
	_, err := t.conn.WriteToUDP(pkt, dst)
	return errors.Wrap(err, "send")
}

// Receive blocks until a datagram of up to max bytes arrives or the
// configured timeout elapses, in which case it returns ErrTimeout.
func (t *UDPTransport) Receive(max int) ([]byte, *net.UDPAddr, error) {
	if err := t.conn.SetReadDeadline(time.Now().Add(t.timeout)); err != nil {
		return nil, nil, errors.Wrap(err, "set read deadline")
	}

	buf := make([]byte, max)
	n, sender, err := t.conn.ReadFromUDP(buf)
	if err != nil {
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			return nil, nil, ErrTimeout
		}
		return nil, nil, errors.Wrap(err, "receive")
	}

	return buf[:n], sender, nil
}

func (t *UDPTransport) Close() error {
	return t.conn.Close()
}

func (t *UDPTransport) LocalAddr() *net.UDPAddr {
	return t.conn.LocalAddr().(*net.UDPAddr)
}

// Package tcp provides the TCP transport: a plain stream socket to a
// device that bridges the same framed protocol over a network link
// instead of RS-232.
package tcp

import (
	"fmt"
	"net"
	"time"
)

const (
	dialTimeout = 5 * time.Second
	readTimeout = 100 * time.Millisecond
)

// Conn is an open TCP link implementing protocol.Transport. It has no
// flow-control toggle (TCP has none to disable); the engine only invokes
// that toggle through a type assertion, so its absence here is enough to
// make Transfer skip it.
type Conn struct {
	conn net.Conn
}

// Dial connects to addr ("host:port") with a bounded connect timeout.
func Dial(addr string) (*Conn, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("tcp: dial %s: %w", addr, err)
	}
	return &Conn{conn: conn}, nil
}

// Read reads up to len(b) bytes, polling with a short deadline so a frame
// reader waiting on this transport behaves the same as over serial: no
// bytes within the poll window comes back as (0, nil), not an error.
func (c *Conn) Read(b []byte) (int, error) {
	c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	n, err := c.conn.Read(b)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil
		}
		return n, err
	}
	return n, nil
}

func (c *Conn) Write(b []byte) (int, error) { return c.conn.Write(b) }
func (c *Conn) Close() error                { return c.conn.Close() }
func (c *Conn) Sleep(d time.Duration)       { time.Sleep(d) }

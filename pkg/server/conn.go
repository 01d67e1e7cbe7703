package server

import (
	"net"
	"time"

	"github.com/rs/xid"
)

// Conn wraps a net.Conn, tracking open/close timestamps, bytes
// transferred and read/write errors, the same way the teacher's
// sockstats.Conn/conniver.Conn wrap a connection for later reporting
// by a stats callback. The tracked fields stay on the Conn:
// metrics.Collector only counts open connections per transport and
// does not read them.
type Conn struct {
	net.Conn

	ID xid.ID

	OpenedAt  int64
	ClosedAt  int64
	FirstRxAt int64
	FirstTxAt int64
	RxBytes   int64
	TxBytes   int64
	RxErr     error
	TxErr     error
}

// WrapConn wraps ncon, stamping OpenedAt and minting a correlation id.
func WrapConn(ncon net.Conn) *Conn {
	return &Conn{
		Conn:     ncon,
		ID:       xid.New(),
		OpenedAt: time.Now().UnixNano(),
	}
}

// Close stamps ClosedAt before delegating to the wrapped Conn.
func (c *Conn) Close() error {
	c.ClosedAt = time.Now().UnixNano()
	return c.Conn.Close()
}

// Read wraps the underlying Read, tracking received bytes and the
// first-byte-received timestamp.
func (c *Conn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 && c.FirstRxAt == 0 {
		c.FirstRxAt = time.Now().UnixNano()
	}
	c.RxBytes += int64(n)
	if err != nil {
		if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
			c.RxErr = err
		}
	}
	return n, err
}

// Write wraps the underlying Write, tracking sent bytes and the
// first-byte-sent timestamp.
func (c *Conn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	if n > 0 && c.FirstTxAt == 0 {
		c.FirstTxAt = time.Now().UnixNano()
	}
	c.TxBytes += int64(n)
	if err != nil {
		if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
			c.TxErr = err
		}
	}
	return n, err
}

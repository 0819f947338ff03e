package transport

import "sync"

type connection struct {
	conn      Conn
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConnection(c Conn, queue int) *connection {
	return &connection{
		conn: c,
		out:  make(chan []byte, queue),
		done: make(chan struct{}),
	}
}

func (c *connection) enqueue(data []byte) error {
	select {
	case c.out <- data:
		return nil
	default:
		return ErrOutboundFull
	}
}

func (c *connection) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

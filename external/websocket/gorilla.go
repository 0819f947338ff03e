package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/foxseedlab/mensetsu/internal/frame"
	"github.com/foxseedlab/mensetsu/internal/transport"
	"github.com/gorilla/websocket"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultPingInterval = 20 * time.Second
	defaultPongWait     = 60 * time.Second
	closeGracePeriod    = time.Second
)

type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	PongWait         time.Duration
	Header           http.Header
}

type GorillaDialer struct {
	dialer *websocket.Dialer
	opts   Options
}

func NewGorillaDialer(opts Options) transport.Dialer {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	return &GorillaDialer{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		opts: opts,
	}
}

func (d *GorillaDialer) Dial(ctx context.Context, url string) (transport.Conn, error) {
	ws, resp, err := d.dialer.DialContext(ctx, url, d.opts.Header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	c := &gorillaConn{
		ws:   ws,
		opts: d.opts,
		done: make(chan struct{}),
	}
	_ = ws.SetReadDeadline(time.Now().Add(d.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(d.opts.PongWait))
	})
	go c.pingLoop()
	return c, nil
}

// gorillaConn allows one concurrent reader and one concurrent writer.
// Control frames are written with WriteControl, which is safe alongside both.
type gorillaConn struct {
	ws        *websocket.Conn
	opts      Options
	done      chan struct{}
	closeOnce sync.Once
}

func (c *gorillaConn) ReadMessage() (frame.Kind, []byte, error) {
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, nil, transport.ErrPeerClosed
			}
			return 0, nil, err
		}
		// Any traffic proves the peer is alive.
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		switch messageType {
		case websocket.TextMessage:
			return frame.KindText, data, nil
		case websocket.BinaryMessage:
			return frame.KindBinary, data, nil
		}
	}
}

func (c *gorillaConn) WriteMessage(kind frame.Kind, data []byte) error {
	messageType := websocket.TextMessage
	if kind == frame.KindBinary {
		messageType = websocket.BinaryMessage
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}

func (c *gorillaConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if werr := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod)); werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			err = werr
		}
		if cerr := c.ws.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}

func (c *gorillaConn) pingLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return
			}
		}
	}
}

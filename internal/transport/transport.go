// Package transport owns the lifecycle of the persistent interview channel:
// dialing, dispatching inbound messages, sending turns, and retrying after
// failures.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/mensetsu/internal/eventloop"
	"github.com/foxseedlab/mensetsu/internal/frame"
)

const (
	defaultMaxRetries     = 3
	defaultRetryDelay     = 2 * time.Second
	defaultReconnectDelay = time.Second
	defaultDialTimeout    = 15 * time.Second
	defaultOutboundQueue  = 16
)

var (
	ErrNotOpen      = errors.New("channel is not open")
	ErrOutboundFull = errors.New("outbound queue is full")

	// ErrPeerClosed is returned by Conn.ReadMessage when the remote side closed
	// the channel normally.
	ErrPeerClosed = errors.New("channel closed by peer")
)

type Conn interface {
	ReadMessage() (frame.Kind, []byte, error)
	WriteMessage(kind frame.Kind, data []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

type Config struct {
	URL            string
	MaxRetries     int
	RetryDelay     time.Duration
	ReconnectDelay time.Duration
	DialTimeout    time.Duration
	OutboundQueue  int
}

type MessageHandler func(kind frame.Kind, data []byte)

type StateHandler func(StateEvent)

// Transport must be driven from the scheduler's loop. Blocking I/O runs on
// per-connection goroutines that post results back to the loop.
type Transport struct {
	sched  eventloop.Scheduler
	dialer Dialer
	cfg    Config

	onMessage MessageHandler
	onState   StateHandler

	state           State
	retries         int
	terminal        bool
	generation      uint64
	conn            *connection
	dialCancel      context.CancelFunc
	retryCancel     eventloop.Cancel
	reconnectCancel eventloop.Cancel
}

func New(sched eventloop.Scheduler, dialer Dialer, cfg Config) *Transport {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = defaultReconnectDelay
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.OutboundQueue <= 0 {
		cfg.OutboundQueue = defaultOutboundQueue
	}
	return &Transport{
		sched:  sched,
		dialer: dialer,
		cfg:    cfg,
		state:  StateClosed,
	}
}

func (t *Transport) OnMessage(h MessageHandler) {
	t.onMessage = h
}

func (t *Transport) OnState(h StateHandler) {
	t.onState = h
}

func (t *Transport) State() State {
	return t.state
}

func (t *Transport) Retries() int {
	return t.retries
}

func (t *Transport) URL() string {
	return t.cfg.URL
}

// Connect opens the channel and clears any previous failure history.
func (t *Transport) Connect() {
	if t.state == StateConnecting || t.state == StateOpen {
		slog.Debug("connect ignored; channel already active", "state", t.state.String())
		return
	}
	t.cancelTimers()
	t.retries = 0
	t.terminal = false
	t.dial()
}

// Send queues one structured message. It fails without sending when the
// channel is not open.
func (t *Transport) Send(data []byte) error {
	if t.state != StateOpen || t.conn == nil {
		slog.Warn("send rejected; channel not open", "state", t.state.String(), "bytes", len(data))
		return ErrNotOpen
	}
	if err := t.conn.enqueue(data); err != nil {
		slog.Warn("send rejected", "error", err, "bytes", len(data))
		return err
	}
	return nil
}

// Close terminates the channel. Pending retries and reconnects are cancelled.
func (t *Transport) Close() {
	t.cancelTimers()
	t.generation++
	if t.dialCancel != nil {
		t.dialCancel()
		t.dialCancel = nil
	}
	t.dropConn()
	t.terminal = false
	if t.state != StateClosed {
		t.setState(StateClosed, nil)
	}
}

// Reconnect closes the channel and opens it again after the reconnect delay.
func (t *Transport) Reconnect() {
	t.Close()
	t.reconnectCancel = t.sched.AfterFunc(t.cfg.ReconnectDelay, func() {
		t.reconnectCancel = nil
		t.Connect()
	})
}

func (t *Transport) dial() {
	t.generation++
	gen := t.generation
	ctx, cancel := context.WithTimeout(context.Background(), t.cfg.DialTimeout)
	t.dialCancel = cancel
	t.setState(StateConnecting, nil)
	slog.Info("dialing interview channel", "url", t.cfg.URL, "retries", t.retries)

	go func() {
		c, err := t.dialer.Dial(ctx, t.cfg.URL)
		cancel()
		t.sched.Post(func() {
			t.handleDialed(gen, c, err)
		})
	}()
}

func (t *Transport) handleDialed(gen uint64, c Conn, err error) {
	if gen != t.generation {
		if c != nil {
			_ = c.Close()
		}
		return
	}
	t.dialCancel = nil
	if err != nil {
		t.fail(&Error{Op: "dial", URL: t.cfg.URL, Err: err})
		return
	}

	t.conn = newConnection(c, t.cfg.OutboundQueue)
	t.retries = 0
	t.setState(StateOpen, nil)
	slog.Info("interview channel open", "url", t.cfg.URL)

	go t.readLoop(gen, t.conn)
	go t.writeLoop(gen, t.conn)
}

func (t *Transport) readLoop(gen uint64, conn *connection) {
	for {
		kind, data, err := conn.conn.ReadMessage()
		if err != nil {
			t.sched.Post(func() {
				t.handleReadError(gen, err)
			})
			return
		}
		t.sched.Post(func() {
			if gen != t.generation || t.onMessage == nil {
				return
			}
			t.onMessage(kind, data)
		})
	}
}

func (t *Transport) writeLoop(gen uint64, conn *connection) {
	for {
		select {
		case <-conn.done:
			return
		case data := <-conn.out:
			if err := conn.conn.WriteMessage(frame.KindText, data); err != nil {
				t.sched.Post(func() {
					t.handleWriteError(gen, err)
				})
				return
			}
		}
	}
}

func (t *Transport) handleReadError(gen uint64, err error) {
	if gen != t.generation {
		return
	}
	t.dropConn()
	if errors.Is(err, ErrPeerClosed) {
		slog.Info("interview channel closed by server")
		t.setState(StateClosed, nil)
		return
	}
	t.fail(&Error{Op: "read", URL: t.cfg.URL, Err: err})
}

func (t *Transport) handleWriteError(gen uint64, err error) {
	if gen != t.generation {
		return
	}
	t.dropConn()
	t.fail(&Error{Op: "write", URL: t.cfg.URL, Err: err})
}

func (t *Transport) fail(err error) {
	t.generation++
	t.retries++
	t.state = StateError
	if t.retries < t.cfg.MaxRetries {
		slog.Warn("interview channel failed; retrying", "error", err, "retries", t.retries, "delay", t.cfg.RetryDelay)
		t.retryCancel = t.sched.AfterFunc(t.cfg.RetryDelay, func() {
			t.retryCancel = nil
			if t.state != StateError || t.terminal {
				return
			}
			t.dial()
		})
		t.emit(StateEvent{State: StateError, Retries: t.retries, Err: err})
		return
	}
	t.terminal = true
	slog.Error("interview channel failed; giving up", "error", err, "retries", t.retries)
	t.emit(StateEvent{State: StateError, Retries: t.retries, Terminal: true, Err: err})
}

func (t *Transport) setState(s State, err error) {
	t.state = s
	t.emit(StateEvent{State: s, Retries: t.retries, Terminal: t.terminal, Err: err})
}

func (t *Transport) emit(ev StateEvent) {
	slog.Debug("channel state changed", "state", ev.State.String(), "retries", ev.Retries, "terminal", ev.Terminal)
	if t.onState != nil {
		t.onState(ev)
	}
}

func (t *Transport) dropConn() {
	if t.conn == nil {
		return
	}
	t.conn.shutdown()
	t.conn = nil
}

func (t *Transport) cancelTimers() {
	if t.retryCancel != nil {
		t.retryCancel()
		t.retryCancel = nil
	}
	if t.reconnectCancel != nil {
		t.reconnectCancel()
		t.reconnectCancel = nil
	}
}

func (t *Transport) String() string {
	return fmt.Sprintf("transport(%s, %s, retries=%d)", t.cfg.URL, t.state, t.retries)
}

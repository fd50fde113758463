package libemit

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Events published by SocketClient.
const (
	EventOpen      = "open"
	EventMessage   = "message"
	EventPing      = "ping"
	EventPong      = "pong"
	EventReconnect = "reconnect"
	EventClose     = "close"
)

type (
	// SocketOption configures a SocketClient.
	SocketOption func(*SocketClient)

	// SocketClient is a websocket client that publishes its lifecycle through
	// the Emitter it embeds:
	//
	//	open     (url string)
	//	message  (*MessageEvent)
	//	ping     ([]byte)
	//	pong     ([]byte)
	//	reconnect (attempts int) when WithReconnect is set
	//	close    (reason error, nil when closed by Close)
	//	error    (err error) for read failures
	//
	// Listeners receive the SocketClient as their EventEmitter.
	SocketClient struct {
		*Emitter

		url          url.URL
		header       http.Header
		dialer       *websocket.Dialer
		pingInterval time.Duration
		backoff      BackoffFunc
		healthyAfter time.Duration
		logger       Logger
		emitterOpts  []Option

		connected atomic.Bool
		send      chan Message
		openOnce  sync.Once
		closeC    chan struct{}
		closeOnce sync.Once
		done      chan struct{}

		reasonMu    sync.Mutex
		closeReason error
	}
)

func WithDialer(d *websocket.Dialer) SocketOption {
	return func(c *SocketClient) {
		if d != nil {
			c.dialer = d
		}
	}
}

func WithHeader(h http.Header) SocketOption {
	return func(c *SocketClient) {
		c.header = h
	}
}

// WithPingInterval makes the client send a ping frame every interval. Zero
// disables it.
func WithPingInterval(interval time.Duration) SocketOption {
	return func(c *SocketClient) {
		c.pingInterval = interval
	}
}

// WithReconnect redials after the connection fails, waiting backoff(attempts)
// before each try. The attempt counter restarts when the failed connection
// had lived longer than healthyAfter.
func WithReconnect(backoff BackoffFunc, healthyAfter time.Duration) SocketOption {
	return func(c *SocketClient) {
		c.backoff = backoff
		c.healthyAfter = healthyAfter
	}
}

// WithClientLogger sets the logger of the client and of its emitter.
func WithClientLogger(l Logger) SocketOption {
	return func(c *SocketClient) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEmitterOptions passes options to the embedded Emitter.
func WithEmitterOptions(opts ...Option) SocketOption {
	return func(c *SocketClient) {
		c.emitterOpts = append(c.emitterOpts, opts...)
	}
}

func NewSocketClient(u url.URL, opts ...SocketOption) *SocketClient {
	c := &SocketClient{
		url:    u,
		dialer: websocket.DefaultDialer,
		send:   make(chan Message, 32),
		closeC: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = NewLogrusLogger(nil)
	}

	c.Emitter = New(append([]Option{WithLogger(c.logger)}, c.emitterOpts...)...)
	c.Emitter.Bind(c)
	c.logger = c.logger.WithField("net", "ws_client").WithField("url", u.String())

	return c
}

// Open dials the server and starts the read, write and ping loops. It
// returns once the connection is established; the loops stop when ctx is
// done, Close is called or the connection fails.
func (c *SocketClient) Open(ctx context.Context) (err error) {
	opened := false
	c.openOnce.Do(func() {
		opened = true
		err = c.start(ctx)
	})
	if !opened {
		if c.closedByUser() {
			return ErrConnectionClosed
		}
		return ErrAlreadyOpened
	}
	return err
}

// Send queues m for writing.
func (c *SocketClient) Send(ctx context.Context, m Message) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}

	select {
	case <-c.closeC:
		return ErrConnectionClosed
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.closeC:
		return ErrConnectionClosed
	case <-c.done:
		return ErrConnectionClosed
	case c.send <- m:
		return nil
	}
}

// Close terminates the connection. The close event fires once the loops have
// stopped; Done reports when that happened. Closing a client that was never
// opened closes Done right away and makes later Open calls fail.
func (c *SocketClient) Close() {
	c.closeOnce.Do(func() {
		close(c.closeC)
	})
	c.openOnce.Do(func() {
		close(c.done)
	})
}

// Done is closed after the connection is gone and the close event has been
// emitted.
func (c *SocketClient) Done() <-chan struct{} {
	return c.done
}

// CloseErr explains why the connection closed. It is nil when it was closed
// with Close.
func (c *SocketClient) CloseErr() error {
	c.reasonMu.Lock()
	defer c.reasonMu.Unlock()

	return c.closeReason
}

func (c *SocketClient) start(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		c.logger.Errorf("connection err: %s", err)
		close(c.done)
		return err
	}

	c.connected.Store(true)
	c.emit(ctx, EventOpen, c.url.String())

	go c.run(ctx, conn)

	return nil
}

func (c *SocketClient) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := c.dialer.DialContext(ctx, c.url.String(), c.header)
	if err = c.handleDialError(resp, err); err != nil {
		return nil, err
	}

	c.logger.Debugln("connection opened")

	// Control frames are published before they are answered.
	conn.SetPingHandler(func(appData string) error {
		c.logger.Debugln("<= [PING]")
		c.emit(ctx, EventPing, []byte(appData))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		if e, ok := err.(net.Error); ok && e.Timeout() {
			return nil
		}
		return err
	})

	conn.SetPongHandler(func(appData string) error {
		c.logger.Debugln("<= [PONG]")
		c.emit(ctx, EventPong, []byte(appData))
		return nil
	})

	return conn, nil
}

// run serves conn until it ends, redialing while reconnection is enabled.
func (c *SocketClient) run(ctx context.Context, conn *websocket.Conn) {
	attempts := 0

	for {
		then := time.Now()
		err := c.serve(ctx, conn)

		switch {
		case c.closedByUser():
			err = nil
		case ctx.Err() != nil:
			err = ErrTerminated
		}

		if err == nil || errors.Is(err, ErrTerminated) || c.backoff == nil {
			c.finish(ctx, err)
			return
		}

		if time.Since(then) > c.healthyAfter {
			// The connection was healthy long enough to treat this as a fresh failure.
			attempts = 0
		}

		next, rerr := c.redial(ctx, &attempts, err)
		if rerr != nil {
			if c.closedByUser() {
				rerr = nil
			}
			c.finish(ctx, rerr)
			return
		}

		conn = next
		c.emit(ctx, EventReconnect, attempts)
	}
}

func (c *SocketClient) serve(ctx context.Context, conn *websocket.Conn) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.read(gctx, conn) })
	g.Go(func() error { return c.write(gctx, conn) })
	if c.pingInterval > 0 {
		g.Go(func() error { return c.ping(gctx) })
	}
	g.Go(func() error {
		// ReadMessage only returns once the connection is closed.
		<-gctx.Done()
		_ = conn.Close()
		return nil
	})

	return g.Wait()
}

func (c *SocketClient) redial(ctx context.Context, attempts *int, reason error) (*websocket.Conn, error) {
	for {
		*attempts++
		ttw := c.backoff(*attempts)
		c.logger.Infof("retrying to connect after %s due to %s", ttw, reason)

		timer := time.NewTimer(ttw)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ErrTerminated
		case <-c.closeC:
			timer.Stop()
			return nil, ErrTerminated
		case <-timer.C:
		}

		conn, err := c.dial(ctx)
		if err == nil {
			return conn, nil
		}
		reason = err
	}
}

func (c *SocketClient) finish(ctx context.Context, reason error) {
	c.reasonMu.Lock()
	c.closeReason = reason
	c.reasonMu.Unlock()

	c.logger.Infof("connection closed: %v", reason)
	c.emit(context.WithoutCancel(ctx), EventClose, reason)
	close(c.done)
}

func (c *SocketClient) read(ctx context.Context, conn *websocket.Conn) error {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if c.closedByUser() || ctx.Err() != nil {
				return ErrTerminated
			}

			err = errors.Wrap(ErrConnectionClosed, "error occurred on websocket read: "+err.Error())
			c.logger.Errorln(err)
			c.emit(ctx, EventError, err)
			return err
		}

		m := Message{Type: MessageType(mt), Data: data}
		c.logger.Debugf("<= [%s] %d bytes", m.Type, len(data))
		c.emit(ctx, EventMessage, newMessageEvent(m))
	}
}

func (c *SocketClient) write(ctx context.Context, conn *websocket.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.closeC:
			c.logger.Infoln("closing connection from our side")
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			return ErrTerminated
		case m := <-c.send:
			if err := writeMessage(conn, m); err != nil {
				if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					return ErrConnectionClosed
				}
				return errors.Wrap(ErrConnectionClosed, err.Error())
			}
			c.logger.Debugf("=> [%s] %d bytes", m.Type, len(m.Data))
		}
	}
}

func writeMessage(conn *websocket.Conn, m Message) error {
	deadline := time.Now().Add(time.Second)
	_ = conn.SetWriteDeadline(deadline)

	switch m.Type {
	case PingMessage, PongMessage:
		return conn.WriteControl(int(m.Type), m.Data, deadline)
	case CloseMessage:
		return conn.WriteControl(int(m.Type), websocket.FormatCloseMessage(m.Code, string(m.Data)), deadline)
	default:
		return conn.WriteMessage(int(m.Type), m.Data)
	}
}

func (c *SocketClient) ping(ctx context.Context) error {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			select {
			case c.send <- NewPingMessage(nil):
			default:
				c.logger.Warnln("send queue full, skipping ping")
			}
		}
	}
}

// emit dispatches on the embedded emitter. Failures nobody handled are
// logged since the socket loops have no caller to return them to.
func (c *SocketClient) emit(ctx context.Context, name string, args ...any) {
	if _, err := c.Emitter.Emit(ctx, name, args...); err != nil {
		c.logger.WithField("event", name).Errorf("unhandled listener failure: %s", err)
	}
}

func (c *SocketClient) closedByUser() bool {
	select {
	case <-c.closeC:
		return true
	default:
		return false
	}
}

func (c *SocketClient) handleDialError(resp *http.Response, err error) error {
	var msg string

	if resp != nil {
		if resp.Body != nil {
			bts, rerr := io.ReadAll(resp.Body)
			if rerr == nil {
				msg = string(bts)
			}
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return errors.Wrap(ErrRateLimit, msg)
		}
	}

	if err != nil {
		return WrapErrorUnrecoverableConnection(errors.Wrap(ErrCannotConnect, err.Error()), c.url)
	}

	return nil
}

package libemit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handle func(conn *websocket.Conn, n int)) url.URL {
	t.Helper()

	var (
		count    atomic.Int32
		upgrader websocket.Upgrader
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn, int(count.Add(1)))
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(strings.Replace(srv.URL, "http://", "ws://", 1))
	require.NoError(t, err)
	return *u
}

func echo(conn *websocket.Conn, _ int) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(mt, data); err != nil {
			return
		}
	}
}

func newTestSocketClient(u url.URL, opts ...SocketOption) *SocketClient {
	return NewSocketClient(u, append([]SocketOption{WithClientLogger(NewWriterLogger(io.Discard))}, opts...)...)
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	var zero T
	return zero
}

func forward[T any](ch chan<- T, pick func(args []any) T) *Listener {
	return NewListener(func(_ context.Context, _ EventEmitter, args ...any) error {
		ch <- pick(args)
		return nil
	})
}

func messageText(args []any) string {
	return string(args[0].(*MessageEvent).Message.Data)
}

func reason(args []any) error {
	err, _ := args[0].(error)
	return err
}

func TestSocketClient_Echo(t *testing.T) {
	u := newTestServer(t, echo)
	client := newTestSocketClient(u)

	opened := make(chan string, 1)
	messages := make(chan string, 4)
	closed := make(chan error, 1)
	var receiver atomic.Value

	client.On(EventOpen, forward(opened, func(args []any) string { return args[0].(string) }))
	client.On(EventMessage, forward(messages, messageText))
	client.On(EventMessage, NewListener(func(_ context.Context, em EventEmitter, _ ...any) error {
		receiver.Store(em)
		return nil
	}))
	client.On(EventClose, forward(closed, reason))

	ctx := context.Background()
	require.NoError(t, client.Open(ctx))
	assert.Equal(t, u.String(), receive(t, opened))
	assert.ErrorIs(t, client.Open(ctx), ErrAlreadyOpened)

	require.NoError(t, client.Send(ctx, NewTextMessage([]byte("hello"))))
	assert.Equal(t, "hello", receive(t, messages))
	assert.Same(t, client, receiver.Load())

	client.Close()
	assert.NoError(t, receive(t, closed))
	<-client.Done()
	assert.NoError(t, client.CloseErr())

	assert.ErrorIs(t, client.Open(ctx), ErrConnectionClosed)
	assert.ErrorIs(t, client.Send(ctx, NewTextMessage(nil)), ErrConnectionClosed)
}

func TestSocketClient_CancelledMessagesSkipLaterListeners(t *testing.T) {
	u := newTestServer(t, echo)
	client := newTestSocketClient(u)

	messages := make(chan string, 4)
	client.On(EventMessage, forward(messages, messageText))
	client.PrependListener(EventMessage, NewListener(func(_ context.Context, _ EventEmitter, args ...any) error {
		ev := args[0].(*MessageEvent)
		if strings.HasPrefix(string(ev.Message.Data), "skip") {
			ev.Cancel()
		}
		return nil
	}))

	ctx := context.Background()
	require.NoError(t, client.Open(ctx))
	defer client.Close()

	require.NoError(t, client.Send(ctx, NewTextMessage([]byte("skip me"))))
	require.NoError(t, client.Send(ctx, NewTextMessage([]byte("keep me"))))

	assert.Equal(t, "keep me", receive(t, messages))
}

func TestSocketClient_PingIsPublished(t *testing.T) {
	u := newTestServer(t, func(conn *websocket.Conn, n int) {
		_ = conn.WriteControl(websocket.PingMessage, []byte("hb"), time.Now().Add(time.Second))
		echo(conn, n)
	})
	client := newTestSocketClient(u)

	pings := make(chan string, 1)
	client.On(EventPing, forward(pings, func(args []any) string { return string(args[0].([]byte)) }))

	require.NoError(t, client.Open(context.Background()))
	defer client.Close()

	assert.Equal(t, "hb", receive(t, pings))
}

func TestSocketClient_DialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	u, err := url.Parse(strings.Replace(srv.URL, "http://", "ws://", 1))
	require.NoError(t, err)
	srv.Close()

	client := newTestSocketClient(*u)
	ctx := context.Background()

	assert.ErrorIs(t, client.Send(ctx, NewTextMessage(nil)), ErrNotConnected)

	err = client.Open(ctx)
	require.ErrorIs(t, err, ErrCannotConnect)

	var unrecoverable *ErrUnrecoverableConnection
	require.ErrorAs(t, err, &unrecoverable)

	select {
	case <-client.Done():
	default:
		t.Fatal("done channel left open after dial failure")
	}
}

func TestSocketClient_ServerDrop(t *testing.T) {
	u := newTestServer(t, func(*websocket.Conn, int) {})
	client := newTestSocketClient(u)

	errs := make(chan error, 1)
	closed := make(chan error, 1)
	client.On(EventError, forward(errs, reason))
	client.On(EventClose, forward(closed, reason))

	require.NoError(t, client.Open(context.Background()))

	assert.ErrorIs(t, receive(t, errs), ErrConnectionClosed)
	assert.ErrorIs(t, receive(t, closed), ErrConnectionClosed)
	<-client.Done()
	assert.ErrorIs(t, client.CloseErr(), ErrConnectionClosed)
}

func TestSocketClient_Reconnect(t *testing.T) {
	u := newTestServer(t, func(conn *websocket.Conn, n int) {
		if n == 1 {
			return
		}
		echo(conn, n)
	})
	client := newTestSocketClient(u, WithReconnect(ConstantBackoff(10*time.Millisecond), time.Minute))

	reconnects := make(chan int, 1)
	messages := make(chan string, 1)
	client.On(EventReconnect, forward(reconnects, func(args []any) int { return args[0].(int) }))
	client.On(EventMessage, forward(messages, messageText))

	ctx := context.Background()
	require.NoError(t, client.Open(ctx))
	defer client.Close()

	assert.Equal(t, 1, receive(t, reconnects))

	require.NoError(t, client.Send(ctx, NewTextMessage([]byte("again"))))
	assert.Equal(t, "again", receive(t, messages))
}

func TestSocketClient_ContextCancel(t *testing.T) {
	u := newTestServer(t, echo)
	client := newTestSocketClient(u)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, client.Open(ctx))
	cancel()

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not stop after context cancellation")
	}
	assert.True(t, errors.Is(client.CloseErr(), ErrTerminated))
}

func TestSocketClient_CloseBeforeOpen(t *testing.T) {
	client := newTestSocketClient(url.URL{Scheme: "ws", Host: "localhost"})
	client.Close()

	select {
	case <-client.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("done channel left open after closing an unopened client")
	}
	assert.NoError(t, client.CloseErr())
	assert.ErrorIs(t, client.Open(context.Background()), ErrConnectionClosed)
}

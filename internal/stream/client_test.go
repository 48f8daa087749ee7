package stream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xivwolf/a-tour-ingame/internal/adapter/identity"
	"github.com/xivwolf/a-tour-ingame/internal/domain/model"
)

const (
	waitFor = 3 * time.Second
	tick    = 5 * time.Millisecond
)

// pushServer accepts websocket clients and hands each connection to the test.
type pushServer struct {
	srv     *httptest.Server
	conns   chan *websocket.Conn
	queries chan url.Values
}

func newPushServer(t *testing.T) *pushServer {
	t.Helper()
	ps := &pushServer{
		conns:   make(chan *websocket.Conn, 8),
		queries: make(chan url.Values, 8),
	}
	upgrader := websocket.Upgrader{}
	ps.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ps.queries <- r.URL.Query()
		ps.conns <- ws
		// keep reading so control frames are answered
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(ps.srv.Close)
	return ps
}

func (ps *pushServer) url() string {
	return "ws" + strings.TrimPrefix(ps.srv.URL, "http") + "/ws"
}

func (ps *pushServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case ws := <-ps.conns:
		return ws
	case <-time.After(waitFor):
		t.Fatal("no client connected")
		return nil
	}
}

func newTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithRetryInterval(50 * time.Millisecond),
		WithHealthInterval(time.Second),
		WithHandshakeTimeout(time.Second),
		WithLogger(quietLogger()),
	}
	c := New(NewWebsocketDialer(time.Second, 1<<16), append(base, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = c.Shutdown(ctx)
	})
	return c
}

type deliveries struct {
	mu  sync.Mutex
	got []model.Delivery
}

func (d *deliveries) handle(x model.Delivery) {
	d.mu.Lock()
	d.got = append(d.got, x)
	d.mu.Unlock()
}

func (d *deliveries) all() []model.Delivery {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]model.Delivery(nil), d.got...)
}

func send(t *testing.T, ws *websocket.Conn, payload string) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(payload)))
}

func TestClient_ReceivesDecodedMessages(t *testing.T) {
	ps := newPushServer(t)
	c := newTestClient(t)

	rec := &deliveries{}
	c.Subscribe(rec.handle)
	require.NoError(t, c.Connect(ps.url()))

	ws := ps.accept(t)
	require.Eventually(t, func() bool { return c.State() == Open }, waitFor, tick)
	assert.Equal(t, uint64(1), c.Generation())

	send(t, ws, `garbage`)
	send(t, ws, `{"content":"Bozja run","category":"7A","role_mentions":[{"id":"42","name":"7A"}]}`)

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, waitFor, tick)
	got := rec.all()[0]
	assert.Equal(t, "Bozja run", got.Message.Content)
	assert.Equal(t, "7A", got.Message.Category)
	assert.True(t, got.Message.HasRole("42"))
	assert.Equal(t, uint64(1), got.Generation)
	assert.False(t, got.ReceivedAt.IsZero())

	stats := c.Stats()
	assert.Equal(t, "Open", stats.State)
	assert.EqualValues(t, 1, stats.DecodeFailures)
	assert.EqualValues(t, 2, stats.Frames)
	assert.Equal(t, 1, stats.Subscribers)
	assert.False(t, stats.ConnectedSince.IsZero())
}

func TestClient_ReconnectsAfterServerClose(t *testing.T) {
	ps := newPushServer(t)
	c := newTestClient(t)

	var mu sync.Mutex
	var transitions []string
	c.OnStateChange(func(from, to State) {
		mu.Lock()
		transitions = append(transitions, to.String())
		mu.Unlock()
	})

	rec := &deliveries{}
	c.Subscribe(rec.handle)
	require.NoError(t, c.Connect(ps.url()))

	first := ps.accept(t)
	require.Eventually(t, func() bool { return c.State() == Open }, waitFor, tick)

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "restart")
	require.NoError(t, first.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)))

	second := ps.accept(t)
	require.Eventually(t, func() bool { return c.State() == Open && c.Generation() == 2 }, waitFor, tick)

	send(t, second, `{"content":"after"}`)
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, waitFor, tick)
	assert.Equal(t, uint64(2), rec.all()[0].Generation)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, transitions, "Disconnected", "a drop passes through Disconnected")
	assert.Subset(t, transitions, []string{"Connecting", "Open", "Closing", "Disconnected"})
}

func TestClient_ReconnectNowAndReconfigure(t *testing.T) {
	a := newPushServer(t)
	b := newPushServer(t)
	c := newTestClient(t)

	require.NoError(t, c.Connect(a.url()))
	a.accept(t)
	require.Eventually(t, func() bool { return c.State() == Open }, waitFor, tick)

	require.NoError(t, c.Reconfigure(b.url()))
	assert.Equal(t, b.url(), c.Address())
	assert.Equal(t, Open, c.State(), "reconfigure keeps the current connection")

	c.Reconnect()
	b.accept(t)
	require.Eventually(t, func() bool { return c.State() == Open && c.Generation() == 2 }, waitFor, tick)
}

func TestClient_IdentityQueryParameter(t *testing.T) {
	ps := newPushServer(t)
	id := identity.NewStatic("")
	c := newTestClient(t, WithIdentity("player", id))

	require.NoError(t, c.Connect(ps.url()))
	ps.accept(t)
	q := <-ps.queries
	assert.False(t, q.Has("player"), "unknown identity sends the plain URI")

	id.Set("Tataru Taru")
	c.Reconnect()
	ps.accept(t)
	q = <-ps.queries
	assert.Equal(t, "Tataru Taru", q.Get("player"))
}

// gatedDialer holds the first handshake open until release is closed.
type gatedDialer struct {
	dialing chan struct{}
	release chan struct{}

	mu   sync.Mutex
	urls []string
}

func (d *gatedDialer) Dial(ctx context.Context, raw string) (Conn, error) {
	d.mu.Lock()
	d.urls = append(d.urls, raw)
	first := len(d.urls) == 1
	d.mu.Unlock()

	if first {
		close(d.dialing)
		select {
		case <-d.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return newFakeConn(), nil
}

func (d *gatedDialer) dialed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.urls...)
}

func TestClient_ReconnectDuringHandshakeRedials(t *testing.T) {
	d := &gatedDialer{dialing: make(chan struct{}), release: make(chan struct{})}
	c := New(d,
		WithRetryInterval(time.Second),
		WithHandshakeTimeout(waitFor),
		WithLogger(quietLogger()),
	)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	require.NoError(t, c.Connect("ws://old.example/ws"))
	select {
	case <-d.dialing:
	case <-time.After(waitFor):
		t.Fatal("handshake never started")
	}
	assert.Equal(t, Connecting, c.State())

	require.NoError(t, c.Reconfigure("ws://new.example/ws"))
	c.Reconnect()
	close(d.release)

	require.Eventually(t, func() bool { return c.State() == Open && c.Generation() == 2 }, waitFor, tick)
	assert.Equal(t, []string{"ws://old.example/ws", "ws://new.example/ws"}, d.dialed())
}

func TestClient_ShutdownIsIdempotent(t *testing.T) {
	never := New(NewWebsocketDialer(time.Second, 0), WithLogger(quietLogger()))
	require.NoError(t, never.Shutdown(context.Background()))
	never.Disconnect()

	ps := newPushServer(t)
	c := newTestClient(t)
	require.NoError(t, c.Connect(ps.url()))
	ps.accept(t)
	require.Eventually(t, func() bool { return c.State() == Open }, waitFor, tick)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, c.Shutdown(ctx))
	assert.Equal(t, Disconnected, c.State())
	require.NoError(t, c.Shutdown(ctx))

	// a stopped client may connect again and starts a new generation
	require.NoError(t, c.Connect(ps.url()))
	ps.accept(t)
	require.Eventually(t, func() bool { return c.State() == Open && c.Generation() == 2 }, waitFor, tick)
}

func TestClient_InvalidAddress(t *testing.T) {
	c := newTestClient(t)
	for _, addr := range []string{"", "http://example.com/ws", "ws://", "::not a url"} {
		require.ErrorIs(t, c.Connect(addr), ErrInvalidAddress, addr)
		require.ErrorIs(t, c.Reconfigure(addr), ErrInvalidAddress, addr)
	}
	assert.Equal(t, Disconnected, c.State())
	assert.Empty(t, c.Address())
}

type failingDialer struct{ attempts atomic.Int32 }

func (d *failingDialer) Dial(context.Context, string) (Conn, error) {
	d.attempts.Add(1)
	return nil, errors.New("connection refused")
}

func TestClient_RetriesFailedHandshakes(t *testing.T) {
	d := &failingDialer{}
	c := New(d, WithRetryInterval(10*time.Millisecond), WithLogger(quietLogger()))
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	require.NoError(t, c.Connect("ws://127.0.0.1:1/ws"))
	require.Eventually(t, func() bool { return d.attempts.Load() >= 3 }, waitFor, tick)

	stats := c.Stats()
	assert.Contains(t, stats.LastError, "connection refused")
	assert.Zero(t, stats.Connections)
	assert.Zero(t, c.Generation())
	assert.NotEqual(t, Open, c.State())
}

// scriptedDialer hands out prepared connections in order.
type scriptedDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	urls  []string
}

func (d *scriptedDialer) Dial(_ context.Context, raw string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, raw)
	if len(d.conns) == 0 {
		return nil, errors.New("no more connections")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

type pingFailConn struct{ *fakeConn }

func (pingFailConn) Ping(time.Time) error { return errors.New("broken pipe") }

func (d *scriptedDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func TestClient_FailedHealthCheckTearsDown(t *testing.T) {
	broken := newFakeConn()
	healthy := newFakeConn(frame{kind: TextFrame, data: `{"content":"ok"}`})

	d := &dialerFunc{fn: func(n int) (Conn, error) {
		switch n {
		case 1:
			return pingFailConn{broken}, nil
		case 2:
			return healthy, nil
		default:
			return nil, errors.New("exhausted")
		}
	}}

	c := New(d,
		WithRetryInterval(10*time.Millisecond),
		WithHealthInterval(20*time.Millisecond),
		WithLogger(quietLogger()),
	)
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	rec := &deliveries{}
	c.Subscribe(rec.handle)
	require.NoError(t, c.Connect("ws://stub/ws"))

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, waitFor, tick)
	assert.Equal(t, uint64(2), rec.all()[0].Generation)
	assert.Contains(t, c.Stats().LastError, ErrHealthCheck.Error())

	select {
	case <-broken.closed:
	default:
		t.Fatal("the failed transport was not closed")
	}
}

type dialerFunc struct {
	n  atomic.Int32
	fn func(n int) (Conn, error)
}

func (d *dialerFunc) Dial(context.Context, string) (Conn, error) {
	return d.fn(int(d.n.Add(1)))
}

func TestClient_PassesIdentityToDialer(t *testing.T) {
	d := &scriptedDialer{conns: []*fakeConn{newFakeConn()}}
	c := New(d, WithIdentity("who", identity.NewStatic("G'raha Tia")), WithLogger(quietLogger()))
	t.Cleanup(func() { _ = c.Shutdown(context.Background()) })

	require.NoError(t, c.Connect("ws://stub/ws?v=1"))
	require.Eventually(t, func() bool { return d.dials() == 1 && c.State() == Open }, waitFor, tick)

	d.mu.Lock()
	u, err := url.Parse(d.urls[0])
	d.mu.Unlock()
	require.NoError(t, err)
	assert.Equal(t, "G'raha Tia", u.Query().Get("who"))
	assert.Equal(t, "1", u.Query().Get("v"))
}

func TestBuildURL(t *testing.T) {
	got, err := BuildURL("wss://host:9/ws", "player", "")
	require.NoError(t, err)
	assert.Equal(t, "wss://host:9/ws", got)

	got, err = BuildURL("wss://host:9/ws", "player", "A B&C")
	require.NoError(t, err)
	assert.Equal(t, "wss://host:9/ws?player=A+B%26C", got)

	_, err = BuildURL("tcp://host", "player", "x")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "ws://h/ws", redact("ws://h/ws?player=secret"))
	assert.Equal(t, "ws://h/ws", redact("ws://h/ws"))
}

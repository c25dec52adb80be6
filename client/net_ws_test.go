package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn 内存连接：inbound 提供读取的帧，关闭后 ReadMessage 返回错误
type fakeConn struct {
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case b := <-f.inbound:
		return websocket.TextMessage, b, nil
	case <-f.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return errors.New("write on closed connection")
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, data)
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) Written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.written))
	copy(out, f.written)
	return out
}

// scriptedDialer 依次返回预设的结果，用完后一直失败
type scriptedDialer struct {
	mu      sync.Mutex
	results []*fakeConn
	calls   atomic.Int32
	headers []http.Header
}

func (d *scriptedDialer) Dial(_ context.Context, _ string, header http.Header) (Conn, error) {
	d.calls.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.headers = append(d.headers, header)
	if len(d.results) == 0 {
		return nil, errors.New("connection refused")
	}
	next := d.results[0]
	d.results = d.results[1:]
	if next == nil {
		return nil, errors.New("connection refused")
	}
	return next, nil
}

func newTestManager(d *scriptedDialer, sched *fakeScheduler, opened *atomic.Int32) *ConnectionManager {
	return NewConnectionManager(ConnectionOptions{
		URL:         "ws://example.invalid/ws",
		Delay:       ReconnectDelay,
		MaxAttempts: MaxReconnectAttempts,
		Dial:        d.Dial,
		Scheduler:   sched,
		OnOpen: func() {
			if opened != nil {
				opened.Add(1)
			}
		},
	})
}

func TestConnectionManager_GivesUpAfterMaxAttempts(t *testing.T) {
	d := &scriptedDialer{}
	sched := &fakeScheduler{}
	c := newTestManager(d, sched, nil)

	ready := c.Start()
	assert.Equal(t, StatusReconnecting, c.Status())
	assert.Equal(t, "Reconnecting... (1/5)", c.StatusText())

	for i := 2; i <= MaxReconnectAttempts; i++ {
		sched.Advance(ReconnectDelay)
		assert.Equal(t, i, c.Attempts())
	}
	assert.Equal(t, "Reconnecting... (5/5)", c.StatusText())

	sched.Advance(ReconnectDelay)
	assert.Equal(t, StatusFailed, c.Status())
	assert.Equal(t, "Connection Failed", c.StatusText())
	assert.Equal(t, int32(1+MaxReconnectAttempts), d.calls.Load(), "首次拨号 + 5 次重连")
	assert.Equal(t, 0, sched.Pending(), "失败后不再安排重连")

	select {
	case err := <-ready:
		assert.ErrorIs(t, err, ErrConnectionFailed)
	default:
		t.Fatal("Connect 等待方没有收到失败结果")
	}
	select {
	case <-c.Done():
	default:
		t.Fatal("Done 没有关闭")
	}

	sched.Advance(time.Minute)
	assert.Equal(t, int32(1+MaxReconnectAttempts), d.calls.Load())
}

func TestConnectionManager_ReconnectDelay(t *testing.T) {
	d := &scriptedDialer{}
	sched := &fakeScheduler{}
	c := newTestManager(d, sched, nil)
	c.Start()

	sched.Advance(ReconnectDelay - time.Millisecond)
	assert.Equal(t, int32(1), d.calls.Load())
	sched.Advance(time.Millisecond)
	assert.Equal(t, int32(2), d.calls.Load())
}

func TestConnectionManager_SuccessResetsAttempts(t *testing.T) {
	conn := newFakeConn()
	d := &scriptedDialer{results: []*fakeConn{nil, nil, conn}}
	sched := &fakeScheduler{}
	var opened atomic.Int32
	c := newTestManager(d, sched, &opened)
	defer c.Close()

	ready := c.Start()
	sched.Advance(ReconnectDelay)
	assert.Equal(t, 2, c.Attempts())
	sched.Advance(ReconnectDelay)

	assert.Equal(t, StatusConnected, c.Status())
	assert.Equal(t, "Connected", c.StatusText())
	assert.Equal(t, 0, c.Attempts())
	assert.Equal(t, int32(1), opened.Load())
	require.NoError(t, <-ready)

	for _, h := range d.headers {
		assert.NotEmpty(t, h.Get("X-Client-Session"))
	}
	assert.NotEqual(t, d.headers[0].Get("X-Client-Session"), d.headers[2].Get("X-Client-Session"))
}

func TestConnectionManager_ConnectWhenAlreadyConnected(t *testing.T) {
	conn := newFakeConn()
	d := &scriptedDialer{results: []*fakeConn{conn}}
	sched := &fakeScheduler{}
	c := newTestManager(d, sched, nil)
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))
	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, int32(1), d.calls.Load())
}

func TestConnectionManager_ConnectHonoursContext(t *testing.T) {
	dialing := make(chan struct{})
	aborted := make(chan struct{})
	c := NewConnectionManager(ConnectionOptions{
		URL:         "ws://example.invalid/ws",
		Delay:       ReconnectDelay,
		MaxAttempts: MaxReconnectAttempts,
		Scheduler:   &fakeScheduler{},
		Dial: func(ctx context.Context, _ string, _ http.Header) (Conn, error) {
			close(dialing)
			select {
			case <-ctx.Done():
				close(aborted)
				return nil, ctx.Err()
			case <-time.After(10 * time.Second):
				return nil, errors.New("handshake timeout")
			}
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := c.Connect(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second, "不等待握手结束")

	<-dialing
	assert.Equal(t, StatusConnecting, c.Status())

	// Close 中止进行中的握手，且不再安排重连
	c.Close()
	select {
	case <-aborted:
	case <-time.After(2 * time.Second):
		t.Fatal("dial not aborted by Close")
	}
	assert.Equal(t, StatusClosed, c.Status())
}

func TestConnectionManager_SendDroppedWhenNotReady(t *testing.T) {
	d := &scriptedDialer{}
	sched := &fakeScheduler{}
	c := newTestManager(d, sched, nil)

	assert.False(t, c.Send(ChatMessage{Type: MsgChat, Message: "hi"}))
	c.Start()
	assert.False(t, c.Send(ChatMessage{Type: MsgChat, Message: "hi"}), "重连期间不排队")
}

func TestConnectionManager_SendWritesJSON(t *testing.T) {
	conn := newFakeConn()
	d := &scriptedDialer{results: []*fakeConn{conn}}
	c := newTestManager(d, &fakeScheduler{}, nil)
	defer c.Close()
	require.NoError(t, c.Connect(context.Background()))

	require.True(t, c.Send(MoveMessage{Type: MsgMove, X: 10, Y: 20, Sprinting: true}))
	written := conn.Written()
	require.Len(t, written, 1)
	assert.JSONEq(t, `{"type":"move","x":10,"y":20,"sprinting":true}`, string(written[0]))
}

func TestConnectionManager_ForwardsFrames(t *testing.T) {
	conn := newFakeConn()
	d := &scriptedDialer{results: []*fakeConn{conn}}
	frames := make(chan []byte, 4)
	c := NewConnectionManager(ConnectionOptions{
		URL:         "ws://example.invalid/ws",
		MaxAttempts: MaxReconnectAttempts,
		Dial:        d.Dial,
		Scheduler:   &fakeScheduler{},
		OnFrame:     func(b []byte) { frames <- b },
	})
	defer c.Close()
	require.NoError(t, c.Connect(context.Background()))

	conn.inbound <- []byte(`{"type":"chat_message","name":"bob","message":"hey"}`)
	select {
	case b := <-frames:
		assert.Contains(t, string(b), "chat_message")
	case <-time.After(2 * time.Second):
		t.Fatal("frame not forwarded")
	}
}

func TestConnectionManager_DisconnectSchedulesReconnect(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	d := &scriptedDialer{results: []*fakeConn{first, second}}
	sched := &fakeScheduler{}
	var opened atomic.Int32
	c := newTestManager(d, sched, &opened)
	defer c.Close()
	require.NoError(t, c.Connect(context.Background()))

	_ = first.Close()
	require.Eventually(t, func() bool {
		return c.Status() == StatusReconnecting && sched.Pending() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, c.Attempts())
	assert.False(t, c.Send(ChatMessage{Type: MsgChat, Message: "lost"}))

	sched.Advance(ReconnectDelay)
	assert.Equal(t, StatusConnected, c.Status())
	assert.Equal(t, int32(2), opened.Load(), "每次连接就绪都重新 join")

	// 旧连接的读协程晚到的关闭事件被忽略
	c.handleClosed(1, errors.New("late close"))
	assert.Equal(t, StatusConnected, c.Status())
}

func TestConnectionManager_CloseCancelsReconnect(t *testing.T) {
	d := &scriptedDialer{}
	sched := &fakeScheduler{}
	c := newTestManager(d, sched, nil)

	ready := c.Start()
	require.Equal(t, 1, sched.Pending())
	c.Close()
	c.Close()

	assert.Equal(t, 0, sched.Pending())
	assert.Equal(t, StatusClosed, c.Status())
	assert.ErrorIs(t, <-ready, ErrConnectionClosed)
	assert.ErrorIs(t, c.Connect(context.Background()), ErrConnectionClosed)

	sched.Advance(time.Minute)
	assert.Equal(t, int32(1), d.calls.Load())
}

func TestConnectionManager_RestartAfterFailure(t *testing.T) {
	conn := newFakeConn()
	d := &scriptedDialer{results: []*fakeConn{nil, nil, nil, nil, nil, nil, conn}}
	sched := &fakeScheduler{}
	c := newTestManager(d, sched, nil)
	defer c.Close()

	ready := c.Start()
	sched.Advance(time.Duration(MaxReconnectAttempts) * ReconnectDelay)
	require.ErrorIs(t, <-ready, ErrConnectionFailed)

	// 外部重新调用 Connect 重新开始
	require.NoError(t, c.Connect(context.Background()))
	assert.Equal(t, StatusConnected, c.Status())
	select {
	case <-c.Done():
		t.Fatal("新一轮连接不应继承旧的 Done")
	default:
	}
}

func TestConnectionManager_WebsocketRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	received := make(chan map[string]any, 4)
	sessions := make(chan string, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessions <- r.Header.Get("X-Client-Session")
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(websocket.TextMessage, mustJSON(map[string]any{
			"type": MsgYourPlayer, "id": "p1", "name": "alice", "x": 400, "y": 300,
		}))
		for {
			_, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			var m map[string]any
			if json.Unmarshal(data, &m) == nil {
				received <- m
			}
		}
	}))
	defer srv.Close()

	frames := make(chan []byte, 4)
	c := NewConnectionManager(ConnectionOptions{
		URL:         "ws" + strings.TrimPrefix(srv.URL, "http"),
		Delay:       ReconnectDelay,
		MaxAttempts: MaxReconnectAttempts,
		OnFrame:     func(b []byte) { frames <- b },
	})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Connect(ctx))
	assert.NotEmpty(t, <-sessions)

	select {
	case b := <-frames:
		assert.Contains(t, string(b), `"your_player"`)
	case <-ctx.Done():
		t.Fatal("no frame from server")
	}

	require.True(t, c.Send(ChatMessage{Type: MsgChat, Message: "hello"}))
	select {
	case m := <-received:
		assert.Equal(t, "chat", m["type"])
		assert.Equal(t, "hello", m["message"])
	case <-ctx.Done():
		t.Fatal("server did not receive chat")
	}
}

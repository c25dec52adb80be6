package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	ReconnectDelay       = 3000 * time.Millisecond
	MaxReconnectAttempts = 5

	writeWait     = 5 * time.Second
	maxFrameBytes = 1 << 20 // 1MB
)

var (
	// ErrConnectionFailed 重连次数耗尽，需要外部重新调用 Connect
	ErrConnectionFailed = errors.New("connection failed")
	// ErrConnectionClosed 连接已被 Close 主动关闭
	ErrConnectionClosed = errors.New("connection closed")
)

// Conn 套接字的最小接口，*websocket.Conn 满足它
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// DialFunc 建立一条新连接
type DialFunc func(ctx context.Context, url string, header http.Header) (Conn, error)

// DialWebsocket 使用 gorilla/websocket 拨号
func DialWebsocket(ctx context.Context, url string, header http.Header) (Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(maxFrameBytes)
	return ws, nil
}

// Status 连接状态
type Status int

const (
	StatusIdle Status = iota
	StatusConnecting
	StatusConnected
	StatusDisconnected
	StatusReconnecting
	StatusFailed
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusFailed:
		return "failed"
	case StatusClosed:
		return "closed"
	default:
		return "idle"
	}
}

// ConnectionOptions ConnectionManager 的依赖与参数
type ConnectionOptions struct {
	URL         string
	Delay       time.Duration
	MaxAttempts int

	Dial      DialFunc
	Scheduler Scheduler
	Metrics   *Metrics

	// OnOpen 每次连接就绪后调用（发送 join）
	OnOpen func()
	// OnFrame 原样转发入站帧，在读协程中调用
	OnFrame func(frame []byte)
}

// ConnectionManager 独占套接字：生命周期、有限次重连、出站发送。
// 读协程与重连定时器会并发进入，因此自身状态由 mu 保护
type ConnectionManager struct {
	opts ConnectionOptions

	mu       sync.Mutex
	conn     Conn
	gen      uint64
	status   Status
	attempts int
	timer    Timer
	waiters  []chan error
	closed   bool
	done     chan struct{}
	doneOnce sync.Once

	baseCtx context.Context
	cancel  context.CancelFunc

	// gorilla/websocket 只允许一个并发写者
	writeMu sync.Mutex
}

func NewConnectionManager(opts ConnectionOptions) *ConnectionManager {
	if opts.Dial == nil {
		opts.Dial = DialWebsocket
	}
	if opts.Scheduler == nil {
		opts.Scheduler = WallScheduler{}
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics()
	}
	if opts.MaxAttempts < 0 {
		opts.MaxAttempts = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &ConnectionManager{
		opts:    opts,
		done:    make(chan struct{}),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Connect 建立连接，就绪后返回 nil；重连耗尽返回 ErrConnectionFailed。
// 拨号在后台进行，ctx 只控制等待；放弃连接需调用 Close
func (c *ConnectionManager) Connect(ctx context.Context) error {
	ready, dial := c.begin()
	if dial {
		go c.dial()
	}
	select {
	case err := <-ready:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start 与 Connect 相同，但首次拨号在调用方协程同步执行
func (c *ConnectionManager) Start() <-chan error {
	ready, dial := c.begin()
	if dial {
		c.dial()
	}
	return ready
}

// begin 登记等待方；dial 为 true 表示需要由调用方发起首次拨号
func (c *ConnectionManager) begin() (<-chan error, bool) {
	ready := make(chan error, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.closed:
		ready <- ErrConnectionClosed
		return ready, false
	case c.status == StatusConnected:
		ready <- nil
		return ready, false
	case len(c.waiters) > 0, c.status == StatusReconnecting:
		// 已有拨号或重连在进行中，等待同一个结果
		c.waiters = append(c.waiters, ready)
		return ready, false
	}
	if c.status == StatusFailed {
		// 外部重新调用：重新开始计数
		c.attempts = 0
		c.done = make(chan struct{})
		c.doneOnce = sync.Once{}
	}
	c.waiters = append(c.waiters, ready)
	c.setStatusLocked(StatusConnecting)
	return ready, true
}

// resolveLocked 通知所有等待 Connect 的调用方
func (c *ConnectionManager) resolveLocked(err error) {
	for _, w := range c.waiters {
		w <- err
	}
	c.waiters = nil
}

func (c *ConnectionManager) dial() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	attempt := c.attempts
	c.mu.Unlock()

	session := uuid.NewString()
	header := http.Header{}
	header.Set("X-Client-Session", session)
	Log.Infof("dialing %s session=%s attempt=%d/%d", c.opts.URL, session, attempt, c.opts.MaxAttempts)

	conn, err := c.opts.Dial(c.baseCtx, c.opts.URL, header)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		Log.Warnf("dial %s failed: %v", c.opts.URL, err)
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return
	}

	c.gen++
	gen := c.gen
	c.conn = conn
	c.attempts = 0
	c.setStatusLocked(StatusConnected)
	c.mu.Unlock()

	Log.Infof("connected to %s session=%s", c.opts.URL, session)
	go c.readPump(conn, gen)
	if c.opts.OnOpen != nil {
		c.opts.OnOpen()
	}

	c.mu.Lock()
	if gen == c.gen && c.status == StatusConnected {
		c.resolveLocked(nil)
	}
	c.mu.Unlock()
}

// scheduleReconnectLocked 未达上限则延迟重连，否则进入终态 failed
func (c *ConnectionManager) scheduleReconnectLocked() {
	c.conn = nil
	if c.attempts < c.opts.MaxAttempts {
		c.attempts++
		c.opts.Metrics.ReconnectAttempts.Inc()
		c.setStatusLocked(StatusReconnecting)
		c.timer = c.opts.Scheduler.AfterFunc(c.opts.Delay, c.dial)
		return
	}
	c.setStatusLocked(StatusFailed)
	c.resolveLocked(ErrConnectionFailed)
	c.doneOnce.Do(func() { close(c.done) })
}

// readPump 读取入站帧并原样转发；退出时触发重连策略
func (c *ConnectionManager) readPump(conn Conn, gen uint64) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			c.handleClosed(gen, err)
			return
		}
		if c.opts.OnFrame != nil {
			c.opts.OnFrame(payload)
		}
	}
}

func (c *ConnectionManager) handleClosed(gen uint64, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// 旧连接的读协程退出不影响新连接
	if c.closed || gen != c.gen || c.conn == nil {
		return
	}
	_ = c.conn.Close()
	Log.Infof("disconnected from %s: %v", c.opts.URL, err)
	c.setStatusLocked(StatusDisconnected)
	c.scheduleReconnectLocked()
}

// Send 连接就绪时写出；否则直接丢弃（不排队、不重试）
func (c *ConnectionManager) Send(msg OutboundMessage) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		Log.Errorf("marshal %s: %v", msg.MessageType(), err)
		return false
	}

	c.mu.Lock()
	conn := c.conn
	ready := c.status == StatusConnected && conn != nil
	c.mu.Unlock()
	if !ready {
		c.opts.Metrics.SendsDropped.Inc()
		return false
	}

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		// 连接断开由读协程发现并处理
		Log.Warnf("write %s: %v", msg.MessageType(), err)
		c.opts.Metrics.SendsDropped.Inc()
		return false
	}
	c.opts.Metrics.SendsTotal.Inc()
	return true
}

// Close 主动关闭：撤销重连定时器并关闭套接字，不再重连
func (c *ConnectionManager) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	c.setStatusLocked(StatusClosed)
	c.resolveLocked(ErrConnectionClosed)
	c.doneOnce.Do(func() { close(c.done) })
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		_ = conn.Close()
	}
}

// Done 在进入 failed 或 closed 终态时关闭
func (c *ConnectionManager) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *ConnectionManager) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *ConnectionManager) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// StatusText 面向用户的状态文本
func (c *ConnectionManager) StatusText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusTextLocked()
}

func (c *ConnectionManager) statusTextLocked() string {
	switch c.status {
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Connected"
	case StatusDisconnected:
		return "Disconnected"
	case StatusReconnecting:
		return fmt.Sprintf("Reconnecting... (%d/%d)", c.attempts, c.opts.MaxAttempts)
	case StatusFailed:
		return "Connection Failed"
	case StatusClosed:
		return "Closed"
	default:
		return "Idle"
	}
}

func (c *ConnectionManager) setStatusLocked(s Status) {
	if c.status == s && s != StatusReconnecting {
		return
	}
	c.status = s
	Log.Infof("connection status: %s", c.statusTextLocked())
}

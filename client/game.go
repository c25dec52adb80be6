package client

import (
	"context"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"
)

// spawnJitter join 时出生点相对视口中心的随机范围
const spawnJitter = 200.0

// Renderer 渲染适配器，只消费只读快照
type Renderer interface {
	Render(snap Snapshot)
}

// InputSource 每帧采样一次输入
type InputSource interface {
	Sample(now time.Time) InputState
}

// Tunables 可在调试接口热更新的参数
type Tunables struct {
	StepSpeed      float64 `json:"stepSpeed"`
	MoveIntervalMs int     `json:"moveIntervalMs"`
	PollIntervalMs int     `json:"pollIntervalMs"`
}

// Snapshot 一帧结束时的只读世界快照
type Snapshot struct {
	At         time.Time         `json:"at"`
	Frame      uint64            `json:"frame"`
	Status     string            `json:"status"`
	ConnStatus Status            `json:"conn_status"`
	Username   string            `json:"username"`
	Local      *Entity           `json:"local,omitempty"`
	Entities   []Entity          `json:"entities"`
	Stamina    StaminaSnapshot   `json:"stamina"`
	Proximity  ProximitySnapshot `json:"proximity"`
	Messages   []Line            `json:"messages"`
	Directive  *Directive        `json:"directive,omitempty"`
	Viewport   ViewportConfig    `json:"viewport"`
	Tunables   Tunables          `json:"tunables"`
}

// GameOptions 组装 Game 所需的外部依赖
type GameOptions struct {
	Config   *Config
	Identity Identity
	Input    InputSource
	Renderer Renderer
	Metrics  *Metrics
	// Dial 为空时使用 gorilla/websocket
	Dial DialFunc
	// Scheduler 为空时使用 WallScheduler
	ConnScheduler Scheduler
	// MenuLayout 渲染端的菜单几何，为空时使用 CanvasMenuLayout
	MenuLayout MenuLayout
}

// Game 编排器：持有所有子系统并按固定顺序驱动每一帧。
// 子系统之间只通过注入的窄接口相互调用
type Game struct {
	cfg      *Config
	identity Identity
	metrics  *Metrics

	loop   *Loop
	conn   *ConnectionManager
	router *MessageRouter
	store  *EntityStore
	gauge  *ResourceGauge
	prox   *ProximityInteraction
	pred   *Predictor
	ui     *MessageLog

	input    InputSource
	renderer Renderer

	frame     uint64
	lastFrame time.Time
	published atomic.Pointer[Snapshot]
	rng       *rand.Rand
}

func NewGame(opts GameOptions) *Game {
	cfg := opts.Config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}
	g := &Game{
		cfg:      cfg,
		identity: opts.Identity,
		metrics:  metrics,
		loop:     NewLoop(1024),
		ui:       NewMessageLog(),
		input:    opts.Input,
		renderer: opts.Renderer,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	g.conn = NewConnectionManager(ConnectionOptions{
		URL:         cfg.ServerURL,
		Delay:       cfg.ReconnectDelay(),
		MaxAttempts: cfg.Reconnect.MaxAttempts,
		Dial:        opts.Dial,
		Scheduler:   opts.ConnScheduler,
		Metrics:     metrics,
		OnOpen:      func() { g.loop.Post(g.join) },
		OnFrame: func(frame []byte) {
			g.loop.Post(func() { g.router.Route(frame) })
		},
	})

	g.gauge = NewResourceGauge()
	g.store = NewEntityStore(cfg.Viewport, g.conn, g.loop)
	g.prox = NewProximityInteraction(g.store, g.conn, g.loop, g.ui, opts.Identity.Token)
	g.prox.SetPollInterval(cfg.PollInterval())
	g.prox.SetMenuLayout(opts.MenuLayout)
	g.pred = NewPredictor(g.gauge, g.store)
	g.pred.Configure(cfg.Movement.StepSpeed, cfg.MoveInterval())
	g.router = NewMessageRouter(g.store, g.prox, g.ui, metrics)
	return g
}

// Run 立即进入帧循环，首次连接在后台进行，期间照常渲染连接状态并响应退出。
// 首次连接失败时结束循环并返回该错误；之后的断线只体现为状态
func (g *Game) Run(ctx context.Context) error {
	defer g.conn.Close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	failed := make(chan error, 1)
	go func() {
		if err := g.conn.Connect(ctx); err != nil {
			failed <- err
			g.loop.Stop()
		}
	}()

	Log.Infof("entering frame loop at %d FPS", FramesPerSecond)
	err := g.loop.Run(ctx, frameInterval, g.Frame)
	select {
	case connErr := <-failed:
		if err == nil {
			return connErr
		}
	default:
	}
	return err
}

// Stop 结束帧循环
func (g *Game) Stop() {
	g.loop.Stop()
}

// join 连接就绪后的握手，出生点在视口中心附近随机
func (g *Game) join() {
	cx, cy := g.cfg.Viewport.Width/2, g.cfg.Viewport.Height/2
	g.conn.Send(JoinMessage{
		Type:  MsgJoin,
		Name:  g.identity.Username,
		Token: g.identity.Token,
		X:     cx + (g.rng.Float64()-0.5)*spawnJitter,
		Y:     cy + (g.rng.Float64()-0.5)*spawnJitter,
	})
}

// Frame 一帧：输入采样 -> 体力 -> 实体插值 -> 附近轮询 -> 渲染
func (g *Game) Frame(now time.Time) bool {
	start := time.Now()
	dt := 0.0
	if !g.lastFrame.IsZero() {
		dt = now.Sub(g.lastFrame).Seconds()
	}
	g.lastFrame = now
	g.frame++

	var in InputState
	if g.input != nil {
		in = g.input.Sample(now)
	}
	if in.Quit {
		Log.Info("quit requested")
		return false
	}
	g.applyInput(now, in)

	g.gauge.Update(dt)
	g.store.Update()
	g.prox.Update(now)

	snap := g.Snapshot(now)
	g.published.Store(&snap)
	if g.renderer != nil {
		g.renderer.Render(snap)
	}
	g.metrics.AddFrame(time.Since(start))
	return true
}

func (g *Game) applyInput(now time.Time, in InputState) {
	g.pred.Step(now, in)
	if in.CloseMenu {
		g.prox.CloseMenu()
		g.ui.DismissDirective()
	}
	if in.MenuChoice > 0 {
		g.prox.SelectIndex(in.MenuChoice - 1)
	}
	for _, pt := range in.Clicks {
		g.prox.HandleClick(pt)
	}
	for _, text := range in.Chat {
		g.SendChat(text)
	}
}

// SendChat 发送聊天文本，空白内容忽略
func (g *Game) SendChat(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	return g.conn.Send(ChatMessage{Type: MsgChat, Message: text})
}

// Snapshot 构建只读快照；只能在循环线程调用
func (g *Game) Snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		At:         now,
		Frame:      g.frame,
		Status:     g.conn.StatusText(),
		ConnStatus: g.conn.Status(),
		Username:   g.identity.Username,
		Entities:   g.store.Entities(),
		Stamina:    g.gauge.Snapshot(),
		Proximity:  g.prox.Snapshot(),
		Messages:   g.ui.Lines(0),
		Directive:  g.ui.Directive(),
		Viewport:   g.cfg.Viewport,
		Tunables:   g.tunables(),
	}
	if local, ok := g.store.Local(); ok {
		snap.Local = &local
	}
	return snap
}

// LatestSnapshot 最近一帧发布的快照，可在任意协程读取
func (g *Game) LatestSnapshot() *Snapshot {
	return g.published.Load()
}

func (g *Game) tunables() Tunables {
	return Tunables{
		StepSpeed:      g.pred.StepSpeed(),
		MoveIntervalMs: int(g.pred.MoveInterval() / time.Millisecond),
		PollIntervalMs: int(g.prox.PollInterval() / time.Millisecond),
	}
}

// Post 把外部协程的修改投递到循环线程
func (g *Game) Post(fn func()) bool {
	return g.loop.Post(fn)
}

func (g *Game) Connection() *ConnectionManager { return g.conn }

func (g *Game) Metrics() *Metrics { return g.metrics }

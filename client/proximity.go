package client

import (
	"sort"
	"time"
)

const (
	NearbyPollInterval = 1000 * time.Millisecond
	// ClickRadius 点击命中附近实体的半径
	ClickRadius = 30.0
	// MenuArmDelay 菜单打开后多久才响应“点击菜单外关闭”，避免打开菜单的那次点击立刻关闭它
	MenuArmDelay = 200 * time.Millisecond
	// InteractionTimeout 服务端迟迟不回结果时释放在途交互
	InteractionTimeout = 5 * time.Second

	menuWidth        = 220.0
	menuHeaderHeight = 48.0
	menuRowHeight    = 32.0

	interactionPendingText = "Please wait for the previous interaction to finish"
)

// EntityLookup ProximityInteraction 对实体表的窄接口：只读查询 + 提示标记重算
type EntityLookup interface {
	Entity(id EntityID) (Entity, bool)
	Local() (Entity, bool)
	ApplyInteractionHints(near map[EntityID]bool)
}

// Rect 轴对齐矩形
type Rect struct {
	Min Vec2 `json:"min"`
	Max Vec2 `json:"max"`
}

func (r Rect) Contains(p Vec2) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}

// MenuState 唯一打开的交互菜单
type MenuState struct {
	TargetID     EntityID
	TargetName   string
	Interactions []InteractionDescriptor
	// Anchor 打开菜单的点击点
	Anchor Vec2
	// Armed 为 true 后，菜单外点击才会关闭菜单
	Armed bool

	armTimer Timer
}

func (m *MenuState) snapshot() MenuSnapshot {
	items := make([]InteractionDescriptor, len(m.Interactions))
	copy(items, m.Interactions)
	return MenuSnapshot{
		TargetID:     m.TargetID,
		TargetName:   m.TargetName,
		Interactions: items,
		Anchor:       m.Anchor,
		Armed:        m.Armed,
	}
}

// MenuLayout 菜单几何。渲染端画出的菜单与点击判定必须来自同一个布局
type MenuLayout interface {
	// MenuBounds 菜单外框（世界坐标）
	MenuBounds(m MenuSnapshot) Rect
	// MenuRowAt p 在菜单内时 inside 为 true；row 是菜单项下标，落在标题上为 -1
	MenuRowAt(m MenuSnapshot, p Vec2) (row int, inside bool)
}

// CanvasMenuLayout 世界坐标下固定尺寸的菜单：锚点为左上角
type CanvasMenuLayout struct{}

func (CanvasMenuLayout) MenuBounds(m MenuSnapshot) Rect {
	return Rect{
		Min: m.Anchor,
		Max: Vec2{
			X: m.Anchor.X + menuWidth,
			Y: m.Anchor.Y + menuHeaderHeight + float64(len(m.Interactions))*menuRowHeight,
		},
	}
}

func (l CanvasMenuLayout) MenuRowAt(m MenuSnapshot, p Vec2) (int, bool) {
	if !l.MenuBounds(m).Contains(p) {
		return 0, false
	}
	top := m.Anchor.Y + menuHeaderHeight
	if p.Y < top {
		return -1, true
	}
	idx := int((p.Y - top) / menuRowHeight)
	// 下边界本身算最后一行
	if idx >= len(m.Interactions) {
		idx = len(m.Interactions) - 1
	}
	return idx, true
}

// ClickResult 一次点击的处理结果
type ClickResult int

const (
	ClickIgnored ClickResult = iota
	ClickOpened
	ClickKept
	ClickClosed
	ClickSelected
)

// MenuSnapshot 菜单只读快照
type MenuSnapshot struct {
	TargetID     EntityID                `json:"target_id"`
	TargetName   string                  `json:"target_name"`
	Interactions []InteractionDescriptor `json:"interactions"`
	Anchor       Vec2                    `json:"anchor"`
	Bounds       Rect                    `json:"bounds"`
	Armed        bool                    `json:"armed"`
}

// ProximitySnapshot 附近实体与菜单状态
type ProximitySnapshot struct {
	Nearby   []NearbyEntity `json:"nearby"`
	Menu     *MenuSnapshot  `json:"menu,omitempty"`
	InFlight bool           `json:"in_flight"`
}

// ProximityInteraction 附近实体轮询、交互菜单与单飞交互请求
type ProximityInteraction struct {
	entities EntityLookup
	sender   OutboundSender
	sched    Scheduler
	ui       UI
	layout   MenuLayout
	token    string

	pollInterval time.Duration
	lastRequest  time.Time

	// near 每次响应整体替换，不做增量合并
	near map[EntityID]NearbyEntity
	menu *MenuState

	inFlight      bool
	inFlightSeq   uint64
	inFlightTimer Timer
}

func NewProximityInteraction(entities EntityLookup, sender OutboundSender, sched Scheduler, ui UI, token string) *ProximityInteraction {
	return &ProximityInteraction{
		entities:     entities,
		sender:       sender,
		sched:        sched,
		ui:           ui,
		layout:       CanvasMenuLayout{},
		token:        token,
		pollInterval: NearbyPollInterval,
		near:         make(map[EntityID]NearbyEntity),
	}
}

// SetPollInterval 调整轮询间隔（调试接口热更新）
func (p *ProximityInteraction) SetPollInterval(d time.Duration) {
	if d > 0 {
		p.pollInterval = d
	}
}

// SetMenuLayout 由渲染端提供菜单几何；nil 恢复默认布局
func (p *ProximityInteraction) SetMenuLayout(l MenuLayout) {
	if l == nil {
		l = CanvasMenuLayout{}
	}
	p.layout = l
}

func (p *ProximityInteraction) PollInterval() time.Duration { return p.pollInterval }

// Update 菜单关闭时按间隔请求附近实体；间隔从上次请求算起，不等响应
func (p *ProximityInteraction) Update(now time.Time) {
	if p.menu != nil {
		return
	}
	if !p.lastRequest.IsZero() && now.Sub(p.lastRequest) <= p.pollInterval {
		return
	}
	if local, ok := p.entities.Local(); ok {
		p.sender.Send(NearbyRequest{Type: MsgGetNearbyPlayers, PlayerID: local.ID})
	}
	p.lastRequest = now
}

// HandleNearby 整体替换附近集合，并全量重算所有实体的提示标记
func (p *ProximityInteraction) HandleNearby(list []NearbyEntity) {
	near := make(map[EntityID]NearbyEntity, len(list))
	hints := make(map[EntityID]bool, len(list))
	for _, n := range list {
		near[n.ID] = n
		hints[n.ID] = true
	}
	p.near = near
	p.entities.ApplyInteractionHints(hints)
}

// HandleClick 处理一次画布点击（世界坐标）
func (p *ProximityInteraction) HandleClick(pt Vec2) ClickResult {
	if m := p.menu; m != nil {
		if row, inside := p.layout.MenuRowAt(m.snapshot(), pt); inside {
			if row >= 0 && p.SelectIndex(row) {
				return ClickSelected
			}
			return ClickIgnored
		}
	}

	if target, ok := p.hitTest(pt); ok {
		if p.menu != nil && p.menu.TargetID == target.ID {
			return ClickKept
		}
		p.openMenu(target, pt)
		return ClickOpened
	}

	if p.menu != nil && p.menu.Armed {
		p.CloseMenu()
		return ClickClosed
	}
	return ClickIgnored
}

// hitTest 在附近集合中找距离点击点最近、且不超过 ClickRadius 的实体
func (p *ProximityInteraction) hitTest(pt Vec2) (Entity, bool) {
	ids := make([]EntityID, 0, len(p.near))
	for id := range p.near {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var best Entity
	found := false
	minDist := 0.0
	for _, id := range ids {
		e, ok := p.entities.Entity(id)
		if !ok {
			continue
		}
		d := pt.Dist(e.Position)
		if d <= ClickRadius && (!found || d < minDist) {
			best = e
			found = true
			minDist = d
		}
	}
	return best, found
}

func (p *ProximityInteraction) openMenu(target Entity, at Vec2) {
	p.CloseMenu()
	entry := p.near[target.ID]
	items := make([]InteractionDescriptor, len(entry.Interactions))
	copy(items, entry.Interactions)

	m := &MenuState{
		TargetID:     target.ID,
		TargetName:   target.Name,
		Interactions: items,
		Anchor:       at,
	}
	m.armTimer = p.sched.AfterFunc(MenuArmDelay, func() {
		if p.menu == m {
			m.Armed = true
		}
	})
	p.menu = m
	Log.Debugf("interaction menu opened for %s with %d options", target.ID, len(items))
}

// CloseMenu 关闭菜单并撤销 arm 定时器；未打开时为 no-op
func (p *ProximityInteraction) CloseMenu() {
	m := p.menu
	if m == nil {
		return
	}
	if m.armTimer != nil {
		m.armTimer.Stop()
		m.armTimer = nil
	}
	m.Armed = false
	p.menu = nil
}

// SelectIndex 选择菜单中第 i 项
func (p *ProximityInteraction) SelectIndex(i int) bool {
	m := p.menu
	if m == nil || i < 0 || i >= len(m.Interactions) {
		return false
	}
	d := m.Interactions[i]
	if !d.Enabled {
		return false
	}
	return p.execute(m.TargetID, d.Type)
}

// Select 按类型选择菜单项
func (p *ProximityInteraction) Select(interactionType string) bool {
	m := p.menu
	if m == nil {
		return false
	}
	for i, d := range m.Interactions {
		if d.Type == interactionType {
			return p.SelectIndex(i)
		}
	}
	return false
}

// execute 发送交互请求并立即关闭菜单，不等待服务端确认
func (p *ProximityInteraction) execute(target EntityID, interactionType string) bool {
	if p.inFlight {
		Log.Infof("interaction %s to %s refused: previous request still pending", interactionType, target)
		p.ui.SystemMessage(interactionPendingText)
		return false
	}
	sent := p.sender.Send(InteractRequest{
		Type:            MsgPlayerInteract,
		ToPlayerID:      target,
		InteractionType: interactionType,
		Token:           p.token,
	})
	p.CloseMenu()
	if !sent {
		Log.Warnf("interaction %s to %s dropped: socket not ready", interactionType, target)
		return true
	}

	p.inFlight = true
	p.inFlightSeq++
	seq := p.inFlightSeq
	p.inFlightTimer = p.sched.AfterFunc(InteractionTimeout, func() {
		if p.inFlight && p.inFlightSeq == seq {
			Log.Warnf("interaction %s to %s timed out without result", interactionType, target)
			p.inFlight = false
			p.inFlightTimer = nil
		}
	})
	return true
}

// HandleResult 结果只按到达顺序匹配；失败仅提示，无需回滚
func (p *ProximityInteraction) HandleResult(r InteractionResult) {
	p.inFlight = false
	if p.inFlightTimer != nil {
		p.inFlightTimer.Stop()
		p.inFlightTimer = nil
	}

	if !r.Success {
		reason := r.Error
		if reason == "" {
			reason = r.Message
		}
		if reason == "" {
			reason = "interaction failed"
		}
		p.ui.SystemMessage("Error: " + reason)
		return
	}

	msg := r.Message
	if msg == "" {
		msg = "Interaction completed"
	}
	p.ui.SystemMessage(msg)
	if r.Action != "" {
		payload := r.Stats
		if len(payload) == 0 {
			payload = r.Data
		}
		p.ui.ShowDirective(r.Action, payload)
	}
}

func (p *ProximityInteraction) MenuOpen() bool { return p.menu != nil }

func (p *ProximityInteraction) InFlight() bool { return p.inFlight }

// Nearby 当前附近集合中是否包含 id
func (p *ProximityInteraction) Nearby(id EntityID) bool {
	_, ok := p.near[id]
	return ok
}

func (p *ProximityInteraction) Snapshot() ProximitySnapshot {
	snap := ProximitySnapshot{
		Nearby:   make([]NearbyEntity, 0, len(p.near)),
		InFlight: p.inFlight,
	}
	for _, n := range p.near {
		snap.Nearby = append(snap.Nearby, n)
	}
	sort.Slice(snap.Nearby, func(i, j int) bool { return snap.Nearby[i].ID < snap.Nearby[j].ID })
	if m := p.menu; m != nil {
		ms := m.snapshot()
		ms.Bounds = p.layout.MenuBounds(ms)
		snap.Menu = &ms
	}
	return snap
}

package client

import (
	"sort"
	"time"
)

const (
	// InterpolationFactor 每 tick 向目标位置靠近的比例，与墙钟无关
	InterpolationFactor = 0.15
	// BoundaryMargin 本地移动距视口边缘的最小距离
	BoundaryMargin = 25.0
	// MovingClearDelay 本地移动后多久清除 moving 标记
	MovingClearDelay = 200 * time.Millisecond
)

// OutboundSender 出站发送能力；连接未就绪时返回 false（消息被丢弃）
type OutboundSender interface {
	Send(msg OutboundMessage) bool
}

// EntityStore 独占实体表：远端实体（含服务端回显的本地玩家）以及本地预测玩家
type EntityStore struct {
	entities map[EntityID]*Entity
	local    *LocalPlayer

	factor   float64
	viewport ViewportConfig

	sender OutboundSender
	sched  Scheduler
}

func NewEntityStore(viewport ViewportConfig, sender OutboundSender, sched Scheduler) *EntityStore {
	return &EntityStore{
		entities: make(map[EntityID]*Entity),
		factor:   InterpolationFactor,
		viewport: viewport,
		sender:   sender,
		sched:    sched,
	}
}

// AddEntity 插入未见过的实体，位置与目标相同（无运动）；已存在则不变
func (s *EntityStore) AddEntity(st EntityState) bool {
	if _, ok := s.entities[st.ID]; ok {
		return false
	}
	s.entities[st.ID] = newEntity(st)
	return true
}

// RemoveEntity 无条件删除，不存在时为 no-op
func (s *EntityStore) RemoveEntity(id EntityID) {
	delete(s.entities, id)
}

// UpdateTarget 只更新已存在实体的目标位置；move 消息永远不会创建实体
func (s *EntityStore) UpdateTarget(id EntityID, x, y float64) bool {
	e, ok := s.entities[id]
	if !ok {
		return false
	}
	e.Target = Vec2{X: x, Y: y}
	e.Moving = true
	return true
}

// ReconcileWorldState 未见过的加入，已存在的只覆盖目标位置；不在列表中的实体不删除
func (s *EntityStore) ReconcileWorldState(list []EntityState) {
	for _, st := range list {
		if e, ok := s.entities[st.ID]; ok {
			e.Target = Vec2{X: st.X, Y: st.Y}
			continue
		}
		s.entities[st.ID] = newEntity(st)
	}
}

// SetLocalPlayer 服务端（重新）定义本地玩家，同时在实体表中登记回显条目
func (s *EntityStore) SetLocalPlayer(st EntityState) {
	e := newEntity(st)
	s.local = &LocalPlayer{Entity: *e}
	s.entities[st.ID] = e
}

// Update 插值推进一次：position += (target - position) * f
func (s *EntityStore) Update() {
	for _, e := range s.entities {
		e.Position = e.Position.Add(e.Target.Sub(e.Position).Scale(s.factor))
	}
}

// MovePlayer 本地预测：裁剪到视口边界，立即写入本地位置并发送 move
func (s *EntityStore) MovePlayer(x, y float64, sprinting bool) bool {
	lp := s.local
	if lp == nil {
		return false
	}
	if s.viewport.Width > 0 && s.viewport.Height > 0 {
		x = clamp(x, BoundaryMargin, s.viewport.Width-BoundaryMargin)
		y = clamp(y, BoundaryMargin, s.viewport.Height-BoundaryMargin)
	}
	if x == lp.Position.X && y == lp.Position.Y {
		return false
	}
	lp.Position = Vec2{X: x, Y: y}
	lp.Moving = true
	lp.moveSeq++

	s.sender.Send(MoveMessage{Type: MsgMove, X: x, Y: y, Sprinting: sprinting})

	seq := lp.moveSeq
	s.sched.AfterFunc(MovingClearDelay, func() {
		// 被更新的移动取代或本地玩家已被重新定义时跳过
		if s.local == lp && lp.moveSeq == seq {
			lp.Moving = false
		}
	})
	return true
}

// ApplyInteractionHints 全量重算：id 在集合中为 true，其余为 false
func (s *EntityStore) ApplyInteractionHints(near map[EntityID]bool) {
	for id, e := range s.entities {
		e.InteractionHint = near[id]
	}
}

// Entity 按 id 查询，返回副本
func (s *EntityStore) Entity(id EntityID) (Entity, bool) {
	e, ok := s.entities[id]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// Local 本地玩家（预测位置）
func (s *EntityStore) Local() (Entity, bool) {
	if s.local == nil {
		return Entity{}, false
	}
	return s.local.Entity, true
}

func (s *EntityStore) Len() int { return len(s.entities) }

// Entities 按 id 排序的只读副本
func (s *EntityStore) Entities() []Entity {
	out := make([]Entity, 0, len(s.entities))
	for _, e := range s.entities {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

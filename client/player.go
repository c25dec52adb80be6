package client

import "math"

// EntityID 服务端分配的实体唯一标识（不透明字符串）
type EntityID string

// Vec2 世界坐标
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (v Vec2) Sub(o Vec2) Vec2 { return Vec2{X: v.X - o.X, Y: v.Y - o.Y} }

func (v Vec2) Add(o Vec2) Vec2 { return Vec2{X: v.X + o.X, Y: v.Y + o.Y} }

func (v Vec2) Scale(f float64) Vec2 { return Vec2{X: v.X * f, Y: v.Y * f} }

func (v Vec2) Len() float64 { return math.Hypot(v.X, v.Y) }

// Dist 两点欧氏距离
func (v Vec2) Dist(o Vec2) float64 { return v.Sub(o).Len() }

// Entity 可渲染的实体状态。
// Position 只由插值推进，Target 只由入站消息写入
type Entity struct {
	ID              EntityID `json:"id"`
	Name            string   `json:"name"`
	Position        Vec2     `json:"position"`
	Target          Vec2     `json:"target"`
	Moving          bool     `json:"moving"`
	InteractionHint bool     `json:"interaction_hint"`
	Color           string   `json:"color"`
}

// LocalPlayer 本客户端拥有的玩家：Position 由本地预测立即写入，不做插值
type LocalPlayer struct {
	Entity
	// moveSeq 每次本地移动自增，用于判断延迟清除 Moving 是否已被新移动取代
	moveSeq uint64
}

var playerPalette = []string{
	"#3498db", "#e67e22", "#2ecc71", "#9b59b6",
	"#f1c40f", "#e74c3c", "#1abc9c", "#34495e",
}

// PlayerColor 由 id 确定性地推导颜色：首字节对调色板取模
func PlayerColor(id EntityID) string {
	if id == "" {
		return playerPalette[0]
	}
	return playerPalette[int(id[0])%len(playerPalette)]
}

func newEntity(s EntityState) *Entity {
	pos := Vec2{X: s.X, Y: s.Y}
	return &Entity{
		ID:       s.ID,
		Name:     s.Name,
		Position: pos,
		Target:   pos,
		Color:    PlayerColor(s.ID),
	}
}

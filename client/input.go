package client

import "time"

const (
	// BaseStepSpeed 每次移动的步长（世界单位）
	BaseStepSpeed = 8.0
	// MoveInterval 两次本地移动之间的最小间隔
	MoveInterval = 50 * time.Millisecond
)

// InputState 每帧采样一次的输入记录
type InputState struct {
	Up, Down, Left, Right bool
	Sprint                bool

	// Clicks 本帧发生的点击（世界坐标）
	Clicks []Vec2
	// MenuChoice 1..n 选择菜单第 n 项，0 表示没有选择
	MenuChoice int
	CloseMenu  bool
	// Chat 本帧提交的聊天文本
	Chat []string
	Quit bool
}

// Moving 是否有方向键按下
func (in InputState) Moving() bool {
	return in.Up || in.Down || in.Left || in.Right
}

// SprintGate 预测器需要的冲刺闸门
type SprintGate interface {
	SetSprintHeld(held bool)
	SprintActive() bool
	SpeedMultiplier() float64
}

// PlayerMover 预测器写入本地位置的能力
type PlayerMover interface {
	Local() (Entity, bool)
	MovePlayer(x, y float64, sprinting bool) bool
}

// Predictor 本地移动预测：输入 -> 冲刺闸门 -> 立即写位置并发送 move
type Predictor struct {
	gate  SprintGate
	mover PlayerMover

	stepSpeed    float64
	moveInterval time.Duration
	lastMove     time.Time
}

func NewPredictor(gate SprintGate, mover PlayerMover) *Predictor {
	return &Predictor{
		gate:         gate,
		mover:        mover,
		stepSpeed:    BaseStepSpeed,
		moveInterval: MoveInterval,
	}
}

// Configure 调整步长与节流间隔
func (p *Predictor) Configure(stepSpeed float64, moveInterval time.Duration) {
	if stepSpeed > 0 {
		p.stepSpeed = stepSpeed
	}
	if moveInterval >= 0 {
		p.moveInterval = moveInterval
	}
}

func (p *Predictor) StepSpeed() float64 { return p.stepSpeed }

func (p *Predictor) MoveInterval() time.Duration { return p.moveInterval }

// Step 处理一帧输入；返回本帧是否发生了移动
func (p *Predictor) Step(now time.Time, in InputState) bool {
	p.gate.SetSprintHeld(in.Sprint)

	local, ok := p.mover.Local()
	if !ok || !in.Moving() {
		return false
	}
	if !p.lastMove.IsZero() && now.Sub(p.lastMove) < p.moveInterval {
		return false
	}

	sprinting := p.gate.SprintActive()
	speed := p.stepSpeed * p.gate.SpeedMultiplier()
	x, y := local.Position.X, local.Position.Y
	if in.Up {
		y -= speed
	}
	if in.Down {
		y += speed
	}
	if in.Left {
		x -= speed
	}
	if in.Right {
		x += speed
	}
	p.mover.MovePlayer(x, y, sprinting)
	p.lastMove = now
	return true
}

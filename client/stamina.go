package client

const (
	MaxStamina            = 100.0
	StaminaDepletionRate  = 15.0 // 每秒
	StaminaRegenRate      = 20.0 // 每秒
	StaminaRecoverRatio   = 0.3  // 冷却结束阈值：max 的 30%
	SprintSpeedMultiplier = 1.5
)

// GaugeState 体力状态机
type GaugeState int

const (
	GaugeIdle GaugeState = iota
	GaugeSprinting
	GaugeCooldown
)

func (s GaugeState) String() string {
	switch s {
	case GaugeSprinting:
		return "sprinting"
	case GaugeCooldown:
		return "cooldown"
	default:
		return "idle"
	}
}

// StaminaSnapshot 只读快照，供渲染适配器使用
type StaminaSnapshot struct {
	Current    float64    `json:"current"`
	Max        float64    `json:"max"`
	Percent    float64    `json:"percent"`
	CanSprint  bool       `json:"can_sprint"`
	InCooldown bool       `json:"in_cooldown"`
	SprintHeld bool       `json:"sprint_held"`
	Active     bool       `json:"active"`
	State      GaugeState `json:"state"`
	Level      string     `json:"level"`
}

// ResourceGauge 冲刺体力：按住冲刺消耗，松开或耗尽后恢复
type ResourceGauge struct {
	current    float64
	max        float64
	canSprint  bool
	inCooldown bool
	sprintHeld bool

	depletionRate float64
	regenRate     float64
}

func NewResourceGauge() *ResourceGauge {
	return &ResourceGauge{
		current:       MaxStamina,
		max:           MaxStamina,
		canSprint:     true,
		depletionRate: StaminaDepletionRate,
		regenRate:     StaminaRegenRate,
	}
}

// SetSprintHeld 写入原始按键状态
func (g *ResourceGauge) SetSprintHeld(held bool) {
	if held != g.sprintHeld {
		Log.Debugf("sprint held=%v stamina=%.1f", held, g.current)
	}
	g.sprintHeld = held
}

// SprintActive 冲刺是否正在生效；每次查询都重新计算
func (g *ResourceGauge) SprintActive() bool {
	return g.sprintHeld && g.canSprint && g.current > 0
}

// SpeedMultiplier 移动速度倍率
func (g *ResourceGauge) SpeedMultiplier() float64 {
	if g.SprintActive() {
		return SprintSpeedMultiplier
	}
	return 1
}

// Update 按经过的秒数推进
func (g *ResourceGauge) Update(dt float64) {
	if dt < 0 {
		dt = 0
	}
	if g.SprintActive() {
		g.current = clamp(g.current-g.depletionRate*dt, 0, g.max)
		if g.current <= 0 {
			g.current = 0
			g.canSprint = false
			g.inCooldown = true
			Log.Debugf("stamina depleted, sprint disabled")
		}
		return
	}
	g.current = clamp(g.current+g.regenRate*dt, 0, g.max)
	if g.inCooldown && g.current >= StaminaRecoverRatio*g.max {
		g.canSprint = true
		g.inCooldown = false
		Log.Debugf("stamina recovered to %.1f, sprint enabled", g.current)
	}
}

// State 当前所处状态
func (g *ResourceGauge) State() GaugeState {
	switch {
	case g.inCooldown:
		return GaugeCooldown
	case g.SprintActive():
		return GaugeSprinting
	default:
		return GaugeIdle
	}
}

func (g *ResourceGauge) Current() float64 { return g.current }

func (g *ResourceGauge) Snapshot() StaminaSnapshot {
	pct := g.current / g.max * 100
	level := "high"
	switch {
	case pct <= 25:
		level = "low"
	case pct <= 50:
		level = "mid"
	}
	return StaminaSnapshot{
		Current:    g.current,
		Max:        g.max,
		Percent:    pct,
		CanSprint:  g.canSprint,
		InCooldown: g.inCooldown,
		SprintHeld: g.sprintHeld,
		Active:     g.SprintActive(),
		State:      g.State(),
		Level:      level,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package client

import (
	"encoding/json"
	"time"
)

// UI 聊天与提示的外部协作者边界
type UI interface {
	ChatMessage(name, text string)
	SystemMessage(text string)
	// ShowDirective 交互成功后服务端给出的后续指令，例如 show_player_stats
	ShowDirective(action string, payload json.RawMessage)
}

// LineKind 消息行类别
type LineKind int

const (
	LineChat LineKind = iota
	LineSystem
)

// Line 一条可显示的消息
type Line struct {
	At   time.Time `json:"at"`
	Kind LineKind  `json:"kind"`
	Name string    `json:"name,omitempty"`
	Text string    `json:"text"`
}

// Directive 最近一次待 UI 呈现的指令
type Directive struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const maxLogLines = 100

// MessageLog 保留最近 100 条消息，循环线程独占
type MessageLog struct {
	lines     []Line
	directive *Directive
	now       func() time.Time
}

func NewMessageLog() *MessageLog {
	return &MessageLog{now: time.Now}
}

func (m *MessageLog) ChatMessage(name, text string) {
	m.push(Line{Kind: LineChat, Name: name, Text: text})
}

func (m *MessageLog) SystemMessage(text string) {
	m.push(Line{Kind: LineSystem, Name: "System", Text: text})
}

func (m *MessageLog) ShowDirective(action string, payload json.RawMessage) {
	m.directive = &Directive{Action: action, Payload: payload}
}

// DismissDirective 关闭当前指令（例如属性面板）
func (m *MessageLog) DismissDirective() {
	m.directive = nil
}

func (m *MessageLog) Directive() *Directive {
	if m.directive == nil {
		return nil
	}
	d := *m.directive
	return &d
}

// Lines 返回最近 n 条；n<=0 返回全部
func (m *MessageLog) Lines(n int) []Line {
	start := 0
	if n > 0 && len(m.lines) > n {
		start = len(m.lines) - n
	}
	out := make([]Line, len(m.lines)-start)
	copy(out, m.lines[start:])
	return out
}

func (m *MessageLog) push(l Line) {
	l.At = m.now()
	m.lines = append(m.lines, l)
	if len(m.lines) > maxLogLines {
		m.lines = append(m.lines[:0], m.lines[len(m.lines)-maxLogLines:]...)
	}
}

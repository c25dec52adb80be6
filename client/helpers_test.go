package client

import (
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// fakeScheduler 手动推进的调度器，定时回调在 Advance 的调用方协程执行
type fakeScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	s       *fakeScheduler
	at      time.Duration
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (s *fakeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &fakeTimer{s: s, at: s.now + d, seq: s.seq, fn: fn}
	s.timers = append(s.timers, t)
	return t
}

// Advance 推进时间并按到期顺序执行回调；回调中新注册的定时器同样会被处理
func (s *fakeScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()
	for {
		s.mu.Lock()
		next := s.nextDueLocked(target)
		if next == nil {
			s.now = target
			s.mu.Unlock()
			return
		}
		s.now = next.at
		next.fired = true
		s.mu.Unlock()
		next.fn()
	}
}

func (s *fakeScheduler) nextDueLocked(limit time.Duration) *fakeTimer {
	var due []*fakeTimer
	for _, t := range s.timers {
		if !t.stopped && !t.fired && t.at <= limit {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].at == due[j].at {
			return due[i].seq < due[j].seq
		}
		return due[i].at < due[j].at
	})
	return due[0]
}

// Pending 尚未触发且未取消的定时器数量
func (s *fakeScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeSender 记录所有出站消息；ready=false 时模拟连接未就绪
type fakeSender struct {
	ready bool
	sent  []OutboundMessage
}

func newFakeSender() *fakeSender { return &fakeSender{ready: true} }

func (f *fakeSender) Send(msg OutboundMessage) bool {
	if !f.ready {
		return false
	}
	f.sent = append(f.sent, msg)
	return true
}

func (f *fakeSender) ofType(typ string) []OutboundMessage {
	var out []OutboundMessage
	for _, m := range f.sent {
		if m.MessageType() == typ {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeSender) last() OutboundMessage {
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

// fakeUI 记录 UI 调用
type fakeUI struct {
	chats      []string
	system     []string
	directives []Directive
}

func (u *fakeUI) ChatMessage(name, text string) { u.chats = append(u.chats, name+": "+text) }

func (u *fakeUI) SystemMessage(text string) { u.system = append(u.system, text) }

func (u *fakeUI) ShowDirective(action string, payload json.RawMessage) {
	u.directives = append(u.directives, Directive{Action: action, Payload: payload})
}

var testViewport = ViewportConfig{Width: 1200, Height: 800}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

package client

import (
	"context"
	"sync"
	"time"
)

const (
	// FramesPerSecond 本地循环频率（约 60 FPS）
	FramesPerSecond = 60
)

var frameInterval = time.Second / FramesPerSecond

// Timer 可取消的延迟回调
type Timer interface {
	Stop() bool
}

// Scheduler 延迟执行；核心组件只通过它注册定时回调
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

// WallScheduler 直接在定时器协程执行回调，只给自带锁的组件（ConnectionManager）使用
type WallScheduler struct{}

func (WallScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Loop 单线程事件循环：socket 回调、定时器回调都投递到队列，
// 在帧与帧之间按到达顺序逐个执行，核心状态因此无需加锁
type Loop struct {
	queue chan func()
	done  chan struct{}
	once  sync.Once
}

func NewLoop(capacity int) *Loop {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Loop{
		queue: make(chan func(), capacity),
		done:  make(chan struct{}),
	}
}

// Post 投递回调。队列满时阻塞（入站消息不能丢），循环已停止则返回 false
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.queue <- fn:
		return true
	case <-l.done:
		return false
	}
}

// AfterFunc 实现 Scheduler：到期后把回调投递回循环线程执行
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() { l.Post(fn) })
}

// Drain 非阻塞地执行当前队列中的所有回调
func (l *Loop) Drain() {
	for {
		select {
		case fn := <-l.queue:
			fn()
		default:
			return
		}
	}
}

// Stop 停止循环，之后的 Post 全部被拒绝
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.done) })
}

// Run 启动帧循环，frame 返回 false 时退出
func (l *Loop) Run(ctx context.Context, interval time.Duration, frame func(now time.Time) bool) error {
	if interval <= 0 {
		interval = frameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer l.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.queue:
			fn()
		case now := <-ticker.C:
			// 帧开始前先把已到达的消息处理完
			l.Drain()
			if !frame(now) {
				return nil
			}
		}
	}
}

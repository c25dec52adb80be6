// Package tui 是终端渲染与输入适配器：消费 client.Snapshot，产出 client.InputState
package tui

import (
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"

	"realmclient/client"
)

// holdWindow 终端没有按键抬起事件，用自动重复的间隔近似“按住”
const holdWindow = 180 * time.Millisecond

const (
	hudRows     = 1
	messageRows = 4
)

type direction int

const (
	dirUp direction = iota
	dirDown
	dirLeft
	dirRight
)

// Terminal tcell 屏幕 + 输入累积。
// 事件在轮询协程写入，Sample/Render 在循环线程调用，所以输入状态由 mu 保护
type Terminal struct {
	screen tcell.Screen
	world  client.ViewportConfig

	mu          sync.Mutex
	held        map[direction]time.Time
	sprintUntil time.Time
	clicks      []client.Vec2
	menuChoice  int
	closeMenu   bool
	chat        []string
	chatMode    bool
	chatBuf     []rune
	quit        bool
	lastButtons tcell.ButtonMask
	cols, rows  int

	done chan struct{}
	once sync.Once
	now  func() time.Time
}

// New 初始化终端屏幕并开始轮询事件
func New(world client.ViewportConfig) (*Terminal, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnableMouse()
	screen.HideCursor()

	t := newTerminal(screen, world)
	go t.poll()
	return t, nil
}

func newTerminal(screen tcell.Screen, world client.ViewportConfig) *Terminal {
	t := &Terminal{
		screen: screen,
		world:  world,
		held:   make(map[direction]time.Time),
		done:   make(chan struct{}),
		now:    time.Now,
	}
	t.cols, t.rows = screen.Size()
	return t
}

// Close 恢复终端
func (t *Terminal) Close() {
	t.once.Do(func() {
		close(t.done)
		t.screen.Fini()
	})
}

func (t *Terminal) poll() {
	for {
		ev := t.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case <-t.done:
			return
		default:
		}
		t.handleEvent(ev)
	}
}

func (t *Terminal) handleEvent(ev tcell.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev := ev.(type) {
	case *tcell.EventResize:
		t.cols, t.rows = ev.Size()
		t.screen.Sync()
		client.Log.Debugf("terminal resized to %dx%d", t.cols, t.rows)
	case *tcell.EventKey:
		t.handleKey(ev)
	case *tcell.EventMouse:
		t.handleMouse(ev)
	}
}

func (t *Terminal) handleKey(ev *tcell.EventKey) {
	now := t.now()
	if ev.Key() == tcell.KeyCtrlC {
		t.quit = true
		return
	}

	if t.chatMode {
		switch ev.Key() {
		case tcell.KeyEnter:
			t.chat = append(t.chat, string(t.chatBuf))
			t.chatBuf = t.chatBuf[:0]
			t.chatMode = false
		case tcell.KeyEscape:
			t.chatBuf = t.chatBuf[:0]
			t.chatMode = false
		case tcell.KeyBackspace, tcell.KeyBackspace2:
			if n := len(t.chatBuf); n > 0 {
				t.chatBuf = t.chatBuf[:n-1]
			}
		case tcell.KeyRune:
			t.chatBuf = append(t.chatBuf, ev.Rune())
		}
		return
	}

	shift := ev.Modifiers()&tcell.ModShift != 0
	switch ev.Key() {
	case tcell.KeyEnter:
		t.chatMode = true
	case tcell.KeyEscape:
		t.closeMenu = true
	case tcell.KeyUp:
		t.press(dirUp, now, shift)
	case tcell.KeyDown:
		t.press(dirDown, now, shift)
	case tcell.KeyLeft:
		t.press(dirLeft, now, shift)
	case tcell.KeyRight:
		t.press(dirRight, now, shift)
	case tcell.KeyRune:
		r := ev.Rune()
		switch r {
		case 'w', 'W':
			t.press(dirUp, now, r == 'W')
		case 's', 'S':
			t.press(dirDown, now, r == 'S')
		case 'a', 'A':
			t.press(dirLeft, now, r == 'A')
		case 'd', 'D':
			t.press(dirRight, now, r == 'D')
		case 'q':
			t.quit = true
		default:
			if r >= '1' && r <= '9' {
				t.menuChoice = int(r - '0')
			}
		}
	}
}

// press 记录方向键；大写字母或 Shift+方向键视为按住冲刺
func (t *Terminal) press(d direction, now time.Time, sprint bool) {
	t.held[d] = now.Add(holdWindow)
	if sprint {
		t.sprintUntil = now.Add(holdWindow)
	}
}

func (t *Terminal) handleMouse(ev *tcell.EventMouse) {
	buttons := ev.Buttons()
	pressed := buttons&tcell.Button1 != 0 && t.lastButtons&tcell.Button1 == 0
	t.lastButtons = buttons
	if !pressed {
		return
	}
	x, y := ev.Position()
	if pt, ok := t.cellToWorld(x, y); ok {
		t.clicks = append(t.clicks, pt)
	}
}

// Sample 实现 client.InputSource：汇总本帧输入并清空一次性事件
func (t *Terminal) Sample(now time.Time) client.InputState {
	t.mu.Lock()
	defer t.mu.Unlock()

	in := client.InputState{
		Up:         now.Before(t.held[dirUp]),
		Down:       now.Before(t.held[dirDown]),
		Left:       now.Before(t.held[dirLeft]),
		Right:      now.Before(t.held[dirRight]),
		Sprint:     now.Before(t.sprintUntil),
		Clicks:     t.clicks,
		MenuChoice: t.menuChoice,
		CloseMenu:  t.closeMenu,
		Chat:       t.chat,
		Quit:       t.quit,
	}
	t.clicks = nil
	t.chat = nil
	t.menuChoice = 0
	t.closeMenu = false
	return in
}

// field 游戏区域：顶部 HUD 与底部消息区之间
func (t *Terminal) field() (top, cols, rows int) {
	rows = t.rows - hudRows - messageRows
	if rows < 1 {
		rows = 1
	}
	cols = t.cols
	if cols < 1 {
		cols = 1
	}
	return hudRows, cols, rows
}

func (t *Terminal) cellToWorld(x, y int) (client.Vec2, bool) {
	top, cols, rows := t.field()
	if y < top || y >= top+rows || x < 0 || x >= cols {
		return client.Vec2{}, false
	}
	return client.Vec2{
		X: (float64(x) + 0.5) / float64(cols) * t.world.Width,
		Y: (float64(y-top) + 0.5) / float64(rows) * t.world.Height,
	}, true
}

func (t *Terminal) worldToCell(p client.Vec2) (int, int) {
	top, cols, rows := t.field()
	x := int(p.X / t.world.Width * float64(cols))
	y := int(p.Y / t.world.Height * float64(rows))
	if x < 0 {
		x = 0
	}
	if x >= cols {
		x = cols - 1
	}
	if y < 0 {
		y = 0
	}
	if y >= rows {
		y = rows - 1
	}
	return x, y + top
}

package tui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"

	"realmclient/client"
)

const staminaBarWidth = 20

var (
	styleDefault = tcell.StyleDefault
	styleHUD     = tcell.StyleDefault.Reverse(true)
	styleDim     = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleHint    = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleLocal   = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleMenu    = tcell.StyleDefault.Background(tcell.ColorNavy).Foreground(tcell.ColorWhite)
	styleSystem  = tcell.StyleDefault.Foreground(tcell.ColorYellow)
)

var levelColor = map[string]tcell.Color{
	"low":  tcell.ColorRed,
	"mid":  tcell.ColorYellow,
	"high": tcell.ColorGreen,
}

// Render 实现 client.Renderer，在循环线程调用；持锁期间尺寸不会被 resize 改变
func (t *Terminal) Render(snap client.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	chatMode, chatBuf := t.chatMode, string(t.chatBuf)

	t.screen.Clear()
	t.drawHUD(snap)
	t.drawEntities(snap)
	if snap.Proximity.Menu != nil {
		t.drawMenu(*snap.Proximity.Menu)
	}
	if snap.Directive != nil {
		t.drawDirective(*snap.Directive)
	}
	t.drawMessages(snap.Messages, chatMode, chatBuf)
	t.screen.Show()
}

func (t *Terminal) drawText(x, y int, style tcell.Style, text string) int {
	for _, r := range text {
		if x >= t.cols {
			break
		}
		t.screen.SetContent(x, y, r, nil, style)
		x++
	}
	return x
}

func (t *Terminal) fillRow(y int, style tcell.Style) {
	for x := 0; x < t.cols; x++ {
		t.screen.SetContent(x, y, ' ', nil, style)
	}
}

func (t *Terminal) drawHUD(snap client.Snapshot) {
	t.fillRow(0, styleHUD)
	x := t.drawText(0, 0, styleHUD, fmt.Sprintf(" %s | %s | Players: %d | Stamina ",
		snap.Username, snap.Status, len(snap.Entities)))

	st := snap.Stamina
	filled := 0
	if st.Max > 0 {
		filled = int(st.Current / st.Max * staminaBarWidth)
	}
	bar := styleHUD.Foreground(levelColor[st.Level])
	x = t.drawText(x, 0, bar, "["+strings.Repeat("#", filled)+strings.Repeat("-", staminaBarWidth-filled)+"]")
	label := fmt.Sprintf(" %d/%d", int(st.Current), int(st.Max))
	if st.InCooldown {
		label += " (cooldown)"
	} else if st.Active {
		label += " (sprint)"
	}
	t.drawText(x, 0, styleHUD, label)
}

func (t *Terminal) drawEntities(snap client.Snapshot) {
	var localID client.EntityID
	if snap.Local != nil {
		localID = snap.Local.ID
	}
	for _, e := range snap.Entities {
		// 本地玩家的服务端回显不画，画本地预测位置
		if e.ID == localID {
			continue
		}
		x, y := t.worldToCell(e.Position)
		style := styleDefault.Foreground(tcell.GetColor(e.Color))
		t.screen.SetContent(x, y, 'o', nil, style)
		if e.InteractionHint {
			if x > 0 {
				t.screen.SetContent(x-1, y, '[', nil, styleHint)
			}
			t.screen.SetContent(x+1, y, ']', nil, styleHint)
		}
		t.drawText(x+2, y, styleDim, e.Name)
	}
	if snap.Local != nil {
		x, y := t.worldToCell(snap.Local.Position)
		t.screen.SetContent(x, y, '@', nil, styleLocal.Foreground(tcell.GetColor(snap.Local.Color)))
		t.drawText(x+2, y, styleLocal, snap.Local.Name)
	}
}

func (t *Terminal) drawMenu(m client.MenuSnapshot) {
	b := t.menuBoxLocked(m)
	row := func(dy int, style tcell.Style, text string) {
		for i := 0; i < b.w; i++ {
			t.screen.SetContent(b.x+i, b.y+dy, ' ', nil, style)
		}
		t.drawText(b.x+1, b.y+dy, style, text)
	}
	row(0, styleMenu.Bold(true), m.TargetName)
	for i, it := range m.Interactions {
		style := styleMenu
		if !it.Enabled {
			style = style.Foreground(tcell.ColorGray)
		}
		row(i+1, style, menuItemText(i, it))
	}
}

func (t *Terminal) drawDirective(d client.Directive) {
	top, cols, _ := t.field()
	x := cols - 40
	if x < 0 {
		x = 0
	}
	t.drawText(x, top, styleMenu.Bold(true), " "+d.Action+" (Esc) ")
	payload := strings.ReplaceAll(string(d.Payload), "\n", " ")
	for i := 0; i*38 < len(payload) && i < 6; i++ {
		end := (i + 1) * 38
		if end > len(payload) {
			end = len(payload)
		}
		t.drawText(x, top+1+i, styleMenu, " "+payload[i*38:end])
	}
}

func (t *Terminal) drawMessages(lines []client.Line, chatMode bool, chatBuf string) {
	shown := messageRows
	if chatMode {
		shown--
	}
	if len(lines) > shown {
		lines = lines[len(lines)-shown:]
	}
	y := t.rows - messageRows
	for _, l := range lines {
		style := styleDefault
		if l.Kind == client.LineSystem {
			style = styleSystem
		}
		t.drawText(0, y, style, l.Name+": "+l.Text)
		y++
	}
	if chatMode {
		t.drawText(0, t.rows-1, styleLocal, "> "+chatBuf+"_")
	}
}

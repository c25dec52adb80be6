package tui

import (
	"fmt"
	"unicode/utf8"

	"realmclient/client"
)

// menuBox 菜单占用的单元格区域：第一行是标题，之后每个菜单项一行
type menuBox struct {
	x, y, w, h int
}

func (b menuBox) contains(x, y int) bool {
	return x >= b.x && x < b.x+b.w && y >= b.y && y < b.y+b.h
}

func menuItemText(i int, it client.InteractionDescriptor) string {
	return fmt.Sprintf("%d. %s", i+1, it.Label)
}

// menuBoxLocked 从锚点所在单元格展开，放不下时向左上平移；调用方持有 mu
func (t *Terminal) menuBoxLocked(m client.MenuSnapshot) menuBox {
	x, y := t.worldToCell(m.Anchor)
	w := utf8.RuneCountInString(m.TargetName) + 2
	for i, it := range m.Interactions {
		if n := utf8.RuneCountInString(menuItemText(i, it)) + 2; n > w {
			w = n
		}
	}
	h := 1 + len(m.Interactions)

	top, cols, rows := t.field()
	if x+w > cols {
		x = max(cols-w, 0)
	}
	if y+h > top+rows {
		y = max(top+rows-h, top)
	}
	return menuBox{x: x, y: y, w: w, h: h}
}

// cellCorner 单元格左上角的世界坐标
func (t *Terminal) cellCorner(x, y int) client.Vec2 {
	top, cols, rows := t.field()
	return client.Vec2{
		X: float64(x) / float64(cols) * t.world.Width,
		Y: float64(y-top) / float64(rows) * t.world.Height,
	}
}

// MenuBounds 实现 client.MenuLayout：返回屏幕上实际画出的菜单区域
func (t *Terminal) MenuBounds(m client.MenuSnapshot) client.Rect {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.menuBoxLocked(m)
	return client.Rect{Min: t.cellCorner(b.x, b.y), Max: t.cellCorner(b.x+b.w, b.y+b.h)}
}

// MenuRowAt 实现 client.MenuLayout：按单元格判定点击落在哪一行
func (t *Terminal) MenuRowAt(m client.MenuSnapshot, p client.Vec2) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.menuBoxLocked(m)
	x, y := t.worldToCell(p)
	if !b.contains(x, y) {
		return 0, false
	}
	return y - b.y - 1, true
}

package ui

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/vkngwrapper/vulkan-mvp/frame"
)

// Rect is an axis-aligned rectangle in framebuffer pixels, origin top-left.
type Rect struct {
	Min mgl32.Vec2
	Max mgl32.Vec2
}

func RectXYWH(x, y, w, h float32) Rect {
	return Rect{Min: mgl32.Vec2{x, y}, Max: mgl32.Vec2{x + w, y + h}}
}

func (r Rect) Size() mgl32.Vec2 {
	return r.Max.Sub(r.Min)
}

// Inset shrinks r by d on every side.
func (r Rect) Inset(d float32) Rect {
	return Rect{Min: r.Min.Add(mgl32.Vec2{d, d}), Max: r.Max.Sub(mgl32.Vec2{d, d})}
}

// Extent rounds the rectangle's size to whole pixels, at least one each way.
func (r Rect) Extent() frame.Extent {
	size := r.Size()
	return frame.Extent{Width: round(size.X()), Height: round(size.Y())}.Clamped()
}

func round(f float32) int {
	if f < 0 {
		return 0
	}
	return int(f + 0.5)
}

// Layout is the frame's panel arrangement: a viewport panel whose content
// area shows the offscreen image, and an info panel docked on the right.
type Layout struct {
	Window frame.Extent

	Viewport        Rect
	ViewportTitle   Rect
	ViewportContent Rect

	Info        Rect
	InfoTitle   Rect
	InfoContent Rect
}

type Style struct {
	Margin       float32
	TitleHeight  float32
	Padding      float32
	InfoWidth    float32
	MaxInfoRatio float32
}

var DefaultStyle = Style{
	Margin:       8,
	TitleHeight:  22,
	Padding:      4,
	InfoWidth:    300,
	MaxInfoRatio: 0.35,
}

// Arrange lays out both panels for a window of the given framebuffer size.
// Degenerate windows produce empty rectangles rather than negative ones.
func (s Style) Arrange(window frame.Extent) Layout {
	w := float32(max(window.Width, 0))
	h := float32(max(window.Height, 0))

	infoWidth := min(s.InfoWidth, w*s.MaxInfoRatio)
	panelHeight := max(h-2*s.Margin, 0)

	viewportWidth := max(w-infoWidth-3*s.Margin, 0)
	viewport := RectXYWH(s.Margin, s.Margin, viewportWidth, panelHeight)
	info := RectXYWH(w-infoWidth-s.Margin, s.Margin, max(infoWidth, 0), panelHeight)

	layout := Layout{Window: window, Viewport: viewport, Info: info}
	layout.ViewportTitle, layout.ViewportContent = s.split(viewport)
	layout.InfoTitle, layout.InfoContent = s.split(info)
	return layout
}

func (s Style) split(panel Rect) (title, content Rect) {
	size := panel.Size()
	titleHeight := min(s.TitleHeight, size.Y())
	title = RectXYWH(panel.Min.X(), panel.Min.Y(), size.X(), titleHeight)

	content = RectXYWH(panel.Min.X(), panel.Min.Y()+titleHeight, size.X(), size.Y()-titleHeight).Inset(s.Padding)
	if content.Max.X() < content.Min.X() {
		content.Max[0] = content.Min.X()
	}
	if content.Max.Y() < content.Min.Y() {
		content.Max[1] = content.Min.Y()
	}
	return title, content
}

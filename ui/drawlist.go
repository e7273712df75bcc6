package ui

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/vkngwrapper/vulkan-mvp/frame"
)

// Quad is one textured, tinted rectangle. Untextured quads sample the white
// texture so a single pipeline draws everything.
type Quad struct {
	Rect    Rect
	UV      Rect
	Color   mgl32.Vec4
	Texture frame.TextureID
}

// QuadConstants is the push-constant block of the UI pipeline: the quad in
// normalized device coordinates, its texture coordinates and its tint.
type QuadConstants struct {
	Rect  mgl32.Vec4
	UV    mgl32.Vec4
	Color mgl32.Vec4
}

var fullUV = Rect{Min: mgl32.Vec2{0, 0}, Max: mgl32.Vec2{1, 1}}

type DrawList struct {
	Quads []Quad
}

func (l *DrawList) Reset() {
	l.Quads = l.Quads[:0]
}

func (l *DrawList) Fill(rect Rect, color mgl32.Vec4, white frame.TextureID) {
	l.Quads = append(l.Quads, Quad{Rect: rect, UV: fullUV, Color: color, Texture: white})
}

func (l *DrawList) Image(rect Rect, texture frame.TextureID) {
	l.Quads = append(l.Quads, Quad{Rect: rect, UV: fullUV, Color: mgl32.Vec4{1, 1, 1, 1}, Texture: texture})
}

// Constants converts a pixel-space quad into the pipeline's push constants
// for a framebuffer of the given size.
func (q Quad) Constants(framebuffer frame.Extent) QuadConstants {
	w := float32(max(framebuffer.Width, 1))
	h := float32(max(framebuffer.Height, 1))
	toNDC := func(p mgl32.Vec2) mgl32.Vec2 {
		return mgl32.Vec2{p.X()/w*2 - 1, p.Y()/h*2 - 1}
	}

	lo := toNDC(q.Rect.Min)
	hi := toNDC(q.Rect.Max)
	return QuadConstants{
		Rect:  mgl32.Vec4{lo.X(), lo.Y(), hi.X(), hi.Y()},
		UV:    mgl32.Vec4{q.UV.Min.X(), q.UV.Min.Y(), q.UV.Max.X(), q.UV.Max.Y()},
		Color: q.Color,
	}
}

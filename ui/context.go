// Package ui is a small immediate-mode layer composited onto the swapchain
// image: a viewport panel showing the offscreen scene and an info panel.
// The layout and draw list are rebuilt every frame.
package ui

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"

	"github.com/vkngwrapper/vulkan-mvp/frame"
)

// Backend turns an image view into something a pipeline can sample.
type Backend interface {
	BindTexture(view frame.ImageView) (frame.TextureBinding, error)
}

type Options struct {
	Style  Style
	Logger *slog.Logger
}

var ClearValues = frame.ClearValues{
	Color: [4]float32{0.10, 0.10, 0.10, 1.0},
}

var (
	panelColor  = mgl32.Vec4{0.16, 0.16, 0.17, 1}
	titleColor  = mgl32.Vec4{0.24, 0.32, 0.48, 1}
	slotColor   = mgl32.Vec4{0.30, 0.30, 0.32, 1}
	activeColor = mgl32.Vec4{0.36, 0.62, 0.90, 1}
	barColor    = mgl32.Vec4{0.45, 0.45, 0.48, 1}
)

// Context owns the UI's texture registry and records the UI pass. It
// satisfies both frame.Overlay and frame.TextureRegistry.
type Context struct {
	backend  Backend
	pipeline frame.Pipeline
	style    Style
	log      *slog.Logger

	textures map[frame.TextureID]frame.TextureBinding
	white    frame.TextureID

	layout Layout
	stats  frame.Stats
	draw   DrawList
}

func New(backend Backend, pipeline frame.Pipeline, white frame.ImageView, opts Options) (*Context, error) {
	c := &Context{
		backend:  backend,
		pipeline: pipeline,
		style:    opts.Style,
		log:      opts.Logger,
		textures: make(map[frame.TextureID]frame.TextureBinding),
	}
	if c.style == (Style{}) {
		c.style = DefaultStyle
	}
	if c.log == nil {
		c.log = slog.Default()
	}

	var err error
	c.white, err = c.Register(white)
	if err != nil {
		return nil, errors.Wrap(err, "register white texture")
	}
	return c, nil
}

// Register issues a fresh handle for view. Handles are never reused, so a
// stale handle held across a resize cannot alias the new image.
func (c *Context) Register(view frame.ImageView) (frame.TextureID, error) {
	binding, err := c.backend.BindTexture(view)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "bind ui texture")
	}

	id := uuid.New()
	c.textures[id] = binding
	c.log.Debug("ui texture registered", slog.String("id", id.String()), slog.Int("live", len(c.textures)))
	return id, nil
}

func (c *Context) Unregister(id frame.TextureID) {
	binding, ok := c.textures[id]
	if !ok {
		return
	}

	binding.Release()
	delete(c.textures, id)
	c.log.Debug("ui texture released", slog.String("id", id.String()), slog.Int("live", len(c.textures)))
}

// Live is the number of registered textures, the white texture included.
func (c *Context) Live() int {
	return len(c.textures)
}

// PanelSize lays out the frame and returns the viewport panel's content
// size in pixels.
func (c *Context) PanelSize(window frame.Extent) frame.Extent {
	c.layout = c.style.Arrange(window)
	return c.layout.ViewportContent.Extent()
}

// SetStats updates the figures the info panel displays.
func (c *Context) SetStats(stats frame.Stats) {
	c.stats = stats
}

func (c *Context) Layout() Layout {
	return c.layout
}

func (c *Context) build(tex frame.Texture) {
	c.draw.Reset()

	c.draw.Fill(c.layout.Viewport, panelColor, c.white)
	c.draw.Fill(c.layout.ViewportTitle, titleColor, c.white)
	c.draw.Image(c.layout.ViewportContent, tex.ID)

	if c.layout.Info.Size().X() <= 0 {
		return
	}
	c.draw.Fill(c.layout.Info, panelColor, c.white)
	c.draw.Fill(c.layout.InfoTitle, titleColor, c.white)
	c.buildInfo(c.layout.InfoContent)
}

// buildInfo draws one cell per frame slot with the active one highlighted,
// then bars for the swapchain and offscreen sizes relative to the window.
func (c *Context) buildInfo(area Rect) {
	if c.stats.Slots < 1 {
		return
	}

	const rowHeight, gap = 14, 6
	width := area.Size().X()
	cell := (width - gap*float32(c.stats.Slots-1)) / float32(c.stats.Slots)

	y := area.Min.Y()
	for i := 0; i < c.stats.Slots; i++ {
		color := slotColor
		if i == c.stats.Slot {
			color = activeColor
		}
		c.draw.Fill(RectXYWH(area.Min.X()+float32(i)*(cell+gap), y, cell, rowHeight), color, c.white)
	}

	window := c.layout.Window
	if window.Width <= 0 {
		return
	}
	for _, size := range []frame.Extent{c.stats.SurfaceExtent, c.stats.OffscreenSize} {
		y += rowHeight + gap
		fraction := min(float32(size.Width)/float32(window.Width), 1)
		c.draw.Fill(RectXYWH(area.Min.X(), y, width*fraction, rowHeight), barColor, c.white)
	}
}

// Record draws this frame's UI into target. tex is the offscreen image the
// viewport panel shows and must be registered with this context.
func (c *Context) Record(cmd frame.CommandBuffer, target frame.Framebuffer, tex frame.Texture) error {
	if _, ok := c.textures[tex.ID]; !ok {
		return errors.AssertionFailedf("ui: texture %s is not registered", tex.ID)
	}
	c.build(tex)

	err := cmd.BeginPass(target, ClearValues)
	if err != nil {
		return errors.Wrap(err, "begin ui pass")
	}

	extent := target.Extent()
	cmd.SetViewport(extent)
	cmd.BindPipeline(c.pipeline)

	bound := uuid.Nil
	for _, quad := range c.draw.Quads {
		if quad.Texture != bound {
			cmd.BindTexture(c.pipeline, c.textures[quad.Texture])
			bound = quad.Texture
		}

		constants := quad.Constants(extent)
		err = cmd.PushConstants(c.pipeline, &constants)
		if err != nil {
			return errors.Wrap(err, "push ui quad")
		}
		cmd.Draw(6)
	}

	cmd.EndPass()
	return nil
}

// Close releases every texture binding still registered.
func (c *Context) Close() {
	for id := range c.textures {
		c.Unregister(id)
	}
}

package frame

import (
	"github.com/cockroachdb/errors"
)

// OffscreenTarget is a render-to-texture destination: color and depth images,
// a framebuffer binding them, and the UI handle that samples the color image.
// One target belongs to each frame slot.
type OffscreenTarget struct {
	dev      Device
	textures TextureRegistry

	color       Image
	depth       Image
	framebuffer Framebuffer
	texture     TextureID
	registered  bool

	extent Extent
}

func NewOffscreenTarget(dev Device, textures TextureRegistry, size Extent) (*OffscreenTarget, error) {
	t := &OffscreenTarget{
		dev:      dev,
		textures: textures,
	}

	err := t.build(size)
	if err != nil {
		t.Destroy()
		return nil, err
	}
	return t, nil
}

func (t *OffscreenTarget) build(size Extent) error {
	t.extent = size.Clamped()

	var err error
	t.color, err = t.dev.CreateImage(ImageConfig{Extent: t.extent, Usage: ImageUsageColorTarget})
	if err != nil {
		return errors.Wrap(err, "create offscreen color image")
	}

	t.depth, err = t.dev.CreateImage(ImageConfig{Extent: t.extent, Usage: ImageUsageDepthTarget})
	if err != nil {
		return errors.Wrap(err, "create offscreen depth image")
	}

	t.framebuffer, err = t.dev.CreateFramebuffer(PassOffscreen, []ImageView{t.color.View(), t.depth.View()}, t.extent)
	if err != nil {
		return errors.Wrap(err, "create offscreen framebuffer")
	}

	t.texture, err = t.textures.Register(t.color.View())
	if err != nil {
		return errors.Wrap(err, "register offscreen texture")
	}
	t.registered = true

	return nil
}

// Destroy unregisters the UI handle before any backing image is freed.
func (t *OffscreenTarget) Destroy() {
	if t.registered {
		t.textures.Unregister(t.texture)
		t.registered = false
	}

	if t.framebuffer != nil {
		t.framebuffer.Destroy()
		t.framebuffer = nil
	}

	if t.depth != nil {
		t.depth.Destroy()
		t.depth = nil
	}

	if t.color != nil {
		t.color.Destroy()
		t.color = nil
	}
}

// ResizeIfNeeded rebuilds the target when size differs from the current one
// and reports whether it did. No in-flight work may reference the target.
func (t *OffscreenTarget) ResizeIfNeeded(size Extent) (bool, error) {
	size = size.Clamped()
	if size == t.extent {
		return false, nil
	}

	t.Destroy()
	err := t.build(size)
	if err != nil {
		return true, err
	}
	return true, nil
}

func (t *OffscreenTarget) Extent() Extent {
	return t.extent
}

// AspectRatio is width over height, or 1 for a zero-height target.
func (t *OffscreenTarget) AspectRatio() float32 {
	if t.extent.Height == 0 {
		return 1
	}
	return float32(t.extent.Width) / float32(t.extent.Height)
}

func (t *OffscreenTarget) Framebuffer() Framebuffer {
	return t.framebuffer
}

func (t *OffscreenTarget) Texture() Texture {
	return Texture{ID: t.texture, Size: t.extent}
}

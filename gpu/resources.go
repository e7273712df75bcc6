package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/vulkan-mvp/frame"
)

type ImageView struct {
	ctx    *Context
	handle core1_0.ImageView
	extent frame.Extent
}

func (v *ImageView) Extent() frame.Extent {
	return v.extent
}

func (v *ImageView) destroy() {
	if v.handle.Initialized() {
		v.ctx.deviceDriver.DestroyImageView(v.handle, nil)
		v.handle = core1_0.ImageView{}
	}
}

// Image is a device-local image with its own memory and a view over the
// whole image.
type Image struct {
	ctx    *Context
	handle core1_0.Image
	memory core1_0.DeviceMemory
	view   *ImageView
}

func (i *Image) View() frame.ImageView {
	return i.view
}

func (i *Image) Destroy() {
	if i.view != nil {
		i.view.destroy()
		i.view = nil
	}

	if i.handle.Initialized() {
		i.ctx.deviceDriver.DestroyImage(i.handle, nil)
		i.handle = core1_0.Image{}
	}

	if i.memory.Initialized() {
		i.ctx.deviceDriver.FreeMemory(i.memory, nil)
		i.memory = core1_0.DeviceMemory{}
	}
}

type Framebuffer struct {
	ctx    *Context
	handle core1_0.Framebuffer
	pass   frame.Pass
	extent frame.Extent
}

func (f *Framebuffer) Extent() frame.Extent {
	return f.extent
}

func (f *Framebuffer) Destroy() {
	if f.handle.Initialized() {
		f.ctx.deviceDriver.DestroyFramebuffer(f.handle, nil)
		f.handle = core1_0.Framebuffer{}
	}
}

// CreateImage creates an offscreen attachment. Color targets can also be
// sampled once their pass has finished.
func (c *Context) CreateImage(cfg frame.ImageConfig) (frame.Image, error) {
	format := offscreenColorFormat
	usage := core1_0.ImageUsageColorAttachment | core1_0.ImageUsageSampled
	aspect := core1_0.ImageAspectColor
	if cfg.Usage == frame.ImageUsageDepthTarget {
		format = c.depthFormat
		usage = core1_0.ImageUsageDepthStencilAttachment
		aspect = core1_0.ImageAspectDepth
		if hasStencilComponent(format) {
			aspect |= core1_0.ImageAspectStencil
		}
	}

	image, err := c.createImage(cfg.Extent, format, usage, aspect)
	if err != nil {
		return nil, err
	}
	return image, nil
}

func (c *Context) createImage(extent frame.Extent, format core1_0.Format, usage core1_0.ImageUsageFlags, aspect core1_0.ImageAspectFlags) (*Image, error) {
	if extent.Empty() {
		return nil, errors.Errorf("create image: zero area (%dx%d)", extent.Width, extent.Height)
	}

	handle, _, err := c.deviceDriver.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        core1_0.ImageTilingOptimal,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create image")
	}
	image := &Image{ctx: c, handle: handle}

	memReqs := c.deviceDriver.GetImageMemoryRequirements(handle)
	memoryIndex, err := c.findMemoryType(memReqs.MemoryTypeBits, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		image.Destroy()
		return nil, err
	}

	image.memory, _, err = c.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryIndex,
	})
	if err != nil {
		image.Destroy()
		return nil, errors.Wrap(err, "allocate image memory")
	}

	_, err = c.deviceDriver.BindImageMemory(handle, image.memory, 0)
	if err != nil {
		image.Destroy()
		return nil, errors.Wrap(err, "bind image memory")
	}

	image.view, err = c.createImageView(handle, format, aspect, extent)
	if err != nil {
		image.Destroy()
		return nil, err
	}
	return image, nil
}

func (c *Context) createImageView(image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags, extent frame.Extent) (*ImageView, error) {
	handle, _, err := c.deviceDriver.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create image view")
	}
	return &ImageView{ctx: c, handle: handle, extent: extent}, nil
}

// CreateFramebuffer binds attachments to the render pass named by pass.
func (c *Context) CreateFramebuffer(pass frame.Pass, attachments []frame.ImageView, extent frame.Extent) (frame.Framebuffer, error) {
	views := make([]core1_0.ImageView, len(attachments))
	for i, attachment := range attachments {
		views[i] = attachment.(*ImageView).handle
	}

	handle, _, err := c.deviceDriver.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
		RenderPass:  c.renderPass(pass),
		Layers:      1,
		Attachments: views,
		Width:       extent.Width,
		Height:      extent.Height,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create framebuffer")
	}
	return &Framebuffer{ctx: c, handle: handle, pass: pass, extent: extent}, nil
}

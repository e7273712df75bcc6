package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/vulkan-mvp/frame"
)

func (c *Context) createCommandPool() error {
	pool, _, err := c.deviceDriver.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: *c.families.graphics,
	})
	if err != nil {
		return errors.Wrap(err, "create command pool")
	}
	c.commandPool = pool

	return nil
}

// CommandBuffer records into one primary command buffer from the context's
// pool. It is reset and rerecorded every time its frame slot comes around.
type CommandBuffer struct {
	ctx    *Context
	handle core1_0.CommandBuffer
}

func (c *Context) AllocateCommandBuffer() (frame.CommandBuffer, error) {
	buffers, _, err := c.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        c.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "allocate command buffer")
	}
	return &CommandBuffer{ctx: c, handle: buffers[0]}, nil
}

func (b *CommandBuffer) Reset() error {
	_, err := b.ctx.deviceDriver.ResetCommandBuffer(b.handle, 0)
	if err != nil {
		return errors.Wrap(err, "reset command buffer")
	}
	return nil
}

func (b *CommandBuffer) Begin() error {
	_, err := b.ctx.deviceDriver.BeginCommandBuffer(b.handle, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		return errors.Wrap(err, "begin command buffer")
	}
	return nil
}

func (b *CommandBuffer) End() error {
	_, err := b.ctx.deviceDriver.EndCommandBuffer(b.handle)
	if err != nil {
		return errors.Wrap(err, "end command buffer")
	}
	return nil
}

func (b *CommandBuffer) BeginPass(target frame.Framebuffer, clear frame.ClearValues) error {
	framebuffer := target.(*Framebuffer)

	err := b.ctx.deviceDriver.CmdBeginRenderPass(b.handle, core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  b.ctx.renderPass(framebuffer.pass),
			Framebuffer: framebuffer.handle,
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: toExtent(framebuffer.extent),
			},
			ClearValues: clearValues(framebuffer.pass, clear),
		})
	if err != nil {
		return errors.Wrap(err, "begin render pass")
	}
	return nil
}

func (b *CommandBuffer) EndPass() {
	b.ctx.deviceDriver.CmdEndRenderPass(b.handle)
}

// SetViewport covers the whole extent with both the viewport and the
// scissor, which every pipeline leaves dynamic.
func (b *CommandBuffer) SetViewport(extent frame.Extent) {
	b.ctx.deviceDriver.CmdSetViewport(b.handle, core1_0.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	b.ctx.deviceDriver.CmdSetScissor(b.handle, core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: 0, Y: 0},
		Extent: toExtent(extent),
	})
}

func (b *CommandBuffer) BindPipeline(pipeline frame.Pipeline) {
	b.ctx.deviceDriver.CmdBindPipeline(b.handle, core1_0.PipelineBindPointGraphics, pipeline.(*Pipeline).handle)
}

func (b *CommandBuffer) BindTexture(pipeline frame.Pipeline, texture frame.TextureBinding) {
	b.ctx.deviceDriver.CmdBindDescriptorSets(b.handle, core1_0.PipelineBindPointGraphics, pipeline.(*Pipeline).layout, 0, []core1_0.DescriptorSet{
		texture.(*TextureBinding).set,
	}, nil)
}

func (b *CommandBuffer) BindVertexBuffer(buffer frame.Buffer) {
	b.ctx.deviceDriver.CmdBindVertexBuffers(b.handle, 0, []core1_0.Buffer{buffer.(*Buffer).handle}, []int{0})
}

// PushConstants encodes data with encoding/binary, so it must be a
// fixed-size value or a pointer to one.
func (b *CommandBuffer) PushConstants(pipeline frame.Pipeline, data any) error {
	p := pipeline.(*Pipeline)
	if p.pushSize == 0 {
		return errors.AssertionFailedf("pipeline declares no push constants")
	}

	encoded, err := encodeConstants(data)
	if err != nil {
		return err
	}
	if len(encoded) > p.pushSize {
		return errors.AssertionFailedf("push constants of %d bytes exceed the pipeline's %d", len(encoded), p.pushSize)
	}

	b.ctx.deviceDriver.CmdPushConstants(b.handle, p.layout, pushStages, 0, encoded)
	return nil
}

func (b *CommandBuffer) Draw(vertexCount int) {
	b.ctx.deviceDriver.CmdDraw(b.handle, vertexCount, 1, 0, 0)
}

func (b *CommandBuffer) Free() {
	if b.handle.Initialized() {
		b.ctx.deviceDriver.FreeCommandBuffers(b.handle)
		b.handle = core1_0.CommandBuffer{}
	}
}

func (c *Context) beginSingleTimeCommands() (core1_0.CommandBuffer, error) {
	buffers, _, err := c.deviceDriver.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        c.commandPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return core1_0.CommandBuffer{}, errors.Wrap(err, "allocate transfer command buffer")
	}

	buffer := buffers[0]
	_, err = c.deviceDriver.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		c.deviceDriver.FreeCommandBuffers(buffer)
		return core1_0.CommandBuffer{}, errors.Wrap(err, "begin transfer command buffer")
	}
	return buffer, nil
}

func (c *Context) endSingleTimeCommands(buffer core1_0.CommandBuffer) error {
	defer c.deviceDriver.FreeCommandBuffers(buffer)

	_, err := c.deviceDriver.EndCommandBuffer(buffer)
	if err != nil {
		return errors.Wrap(err, "end transfer command buffer")
	}

	return c.graphicsQueue.submitAndWait(buffer)
}

func (c *Context) copyBuffer(srcBuffer core1_0.Buffer, dstBuffer core1_0.Buffer, size int) error {
	buffer, err := c.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = c.deviceDriver.CmdCopyBuffer(buffer, srcBuffer, dstBuffer,
		core1_0.BufferCopy{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      size,
		},
	)
	if err != nil {
		c.deviceDriver.FreeCommandBuffers(buffer)
		return errors.Wrap(err, "copy buffer")
	}

	return c.endSingleTimeCommands(buffer)
}

func (c *Context) copyBufferToImage(buffer core1_0.Buffer, image core1_0.Image, extent frame.Extent) error {
	cmdBuffer, err := c.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = c.deviceDriver.CmdCopyBufferToImage(cmdBuffer, buffer, image, core1_0.ImageLayoutTransferDstOptimal,
		core1_0.BufferImageCopy{
			BufferOffset:      0,
			BufferRowLength:   0,
			BufferImageHeight: 0,

			ImageSubresource: core1_0.ImageSubresourceLayers{
				AspectMask:     core1_0.ImageAspectColor,
				MipLevel:       0,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent: core1_0.Extent3D{Width: extent.Width, Height: extent.Height, Depth: 1},
		},
	)
	if err != nil {
		c.deviceDriver.FreeCommandBuffers(cmdBuffer)
		return errors.Wrap(err, "copy buffer to image")
	}

	return c.endSingleTimeCommands(cmdBuffer)
}

func (c *Context) transitionImageLayout(image core1_0.Image, oldLayout core1_0.ImageLayout, newLayout core1_0.ImageLayout) error {
	var sourceStage, destStage core1_0.PipelineStageFlags
	var sourceAccess, destAccess core1_0.AccessFlags

	if oldLayout == core1_0.ImageLayoutUndefined && newLayout == core1_0.ImageLayoutTransferDstOptimal {
		sourceAccess = 0
		destAccess = core1_0.AccessTransferWrite
		sourceStage = core1_0.PipelineStageTopOfPipe
		destStage = core1_0.PipelineStageTransfer
	} else if oldLayout == core1_0.ImageLayoutTransferDstOptimal && newLayout == core1_0.ImageLayoutShaderReadOnlyOptimal {
		sourceAccess = core1_0.AccessTransferWrite
		destAccess = core1_0.AccessShaderRead
		sourceStage = core1_0.PipelineStageTransfer
		destStage = core1_0.PipelineStageFragmentShader
	} else {
		return errors.Errorf("unexpected layout transition: %s -> %s", oldLayout, newLayout)
	}

	buffer, err := c.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = c.deviceDriver.CmdPipelineBarrier(buffer, sourceStage, destStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{
		{
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			Image:               image,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			SrcAccessMask: sourceAccess,
			DstAccessMask: destAccess,
		},
	})
	if err != nil {
		c.deviceDriver.FreeCommandBuffers(buffer)
		return errors.Wrap(err, "record layout transition")
	}

	return c.endSingleTimeCommands(buffer)
}

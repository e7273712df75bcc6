package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/vulkan-mvp/frame"
)

type Semaphore struct {
	ctx    *Context
	handle core1_0.Semaphore
}

func (c *Context) CreateSemaphore() (frame.Semaphore, error) {
	handle, _, err := c.deviceDriver.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
	if err != nil {
		return nil, errors.Wrap(err, "create semaphore")
	}
	return &Semaphore{ctx: c, handle: handle}, nil
}

func (s *Semaphore) Destroy() {
	if s.handle.Initialized() {
		s.ctx.deviceDriver.DestroySemaphore(s.handle, nil)
		s.handle = core1_0.Semaphore{}
	}
}

type Fence struct {
	ctx    *Context
	handle core1_0.Fence
}

func (c *Context) CreateFence(signaled bool) (frame.Fence, error) {
	var flags core1_0.FenceCreateFlags
	if signaled {
		flags = core1_0.FenceCreateSignaled
	}

	handle, _, err := c.deviceDriver.CreateFence(nil, core1_0.FenceCreateInfo{
		Flags: flags,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create fence")
	}
	return &Fence{ctx: c, handle: handle}, nil
}

func (f *Fence) Wait() error {
	_, err := f.ctx.deviceDriver.WaitForFences(true, common.NoTimeout, f.handle)
	if err != nil {
		return errors.Wrap(err, "wait for fence")
	}
	return nil
}

func (f *Fence) Reset() error {
	_, err := f.ctx.deviceDriver.ResetFences(f.handle)
	if err != nil {
		return errors.Wrap(err, "reset fence")
	}
	return nil
}

func (f *Fence) Destroy() {
	if f.handle.Initialized() {
		f.ctx.deviceDriver.DestroyFence(f.handle, nil)
		f.handle = core1_0.Fence{}
	}
}

type Queue struct {
	ctx    *Context
	handle core1_0.Queue
}

// Submit queues work. The wait semaphore, if any, gates color attachment
// output, which is the first point a frame touches the swapchain image.
func (q *Queue) Submit(work frame.Submission) error {
	info := core1_0.SubmitInfo{
		CommandBuffers: []core1_0.CommandBuffer{work.Commands.(*CommandBuffer).handle},
	}
	if work.Wait != nil {
		info.WaitSemaphores = []core1_0.Semaphore{work.Wait.(*Semaphore).handle}
		info.WaitDstStageMask = []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput}
	}
	if work.Signal != nil {
		info.SignalSemaphores = []core1_0.Semaphore{work.Signal.(*Semaphore).handle}
	}

	var fence *core1_0.Fence
	if work.Fence != nil {
		fence = &work.Fence.(*Fence).handle
	}

	_, err := q.ctx.deviceDriver.QueueSubmit(q.handle, fence, info)
	if err != nil {
		return errors.Wrap(err, "queue submit")
	}
	return nil
}

// submitAndWait runs a one-off command buffer to completion.
func (q *Queue) submitAndWait(buffer core1_0.CommandBuffer) error {
	_, err := q.ctx.deviceDriver.QueueSubmit(q.handle, nil,
		core1_0.SubmitInfo{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	)
	if err != nil {
		return errors.Wrap(err, "queue submit")
	}

	_, err = q.ctx.deviceDriver.QueueWaitIdle(q.handle)
	if err != nil {
		return errors.Wrap(err, "queue wait idle")
	}
	return nil
}

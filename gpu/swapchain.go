package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/vulkan-mvp/frame"
)

type Swapchain struct {
	ctx    *Context
	handle khr_swapchain.Swapchain
	views  []*ImageView
}

// CreateSwapchain builds a swapchain for cfg. The format must be the one
// the present pass was created with.
func (c *Context) CreateSwapchain(cfg frame.SwapchainConfig) (frame.Swapchain, error) {
	if cfg.Format != c.surfaceFormat {
		return nil, errors.AssertionFailedf("swapchain format %v differs from present pass format %v", cfg.Format, c.surfaceFormat)
	}
	format := c.formats[cfg.Format]

	capabilities, _, err := c.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(c.surface, c.physicalDevice)
	if err != nil {
		return nil, errors.Wrap(err, "query surface capabilities")
	}

	sharingMode := core1_0.SharingModeExclusive
	var queueFamilyIndices []int
	if *c.families.graphics != *c.families.present {
		sharingMode = core1_0.SharingModeConcurrent
		queueFamilyIndices = c.families.unique()
	}

	handle, _, err := c.swapchainExtension.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: c.surface,

		MinImageCount:    cfg.ImageCount,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      toExtent(cfg.Extent),
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    toPresentMode(cfg.PresentMode),
		Clipped:        true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create swapchain")
	}

	s := &Swapchain{ctx: c, handle: handle}
	err = s.createImageViews(format.Format, cfg.Extent)
	if err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

func (s *Swapchain) createImageViews(format core1_0.Format, extent frame.Extent) error {
	images, _, err := s.ctx.swapchainExtension.GetSwapchainImages(s.handle)
	if err != nil {
		return errors.Wrap(err, "get swapchain images")
	}

	for _, image := range images {
		view, err := s.ctx.createImageView(image, format, core1_0.ImageAspectColor, extent)
		if err != nil {
			return errors.Wrap(err, "create swapchain image view")
		}
		s.views = append(s.views, view)
	}
	return nil
}

func (s *Swapchain) Images() []frame.ImageView {
	views := make([]frame.ImageView, len(s.views))
	for i, view := range s.views {
		views[i] = view
	}
	return views
}

// AcquireNextImage maps an out-of-date result to frame.ErrStale. A
// suboptimal swapchain still yields an image.
func (s *Swapchain) AcquireNextImage(signal frame.Semaphore) (int, error) {
	semaphore := signal.(*Semaphore)

	index, res, err := s.ctx.swapchainExtension.AcquireNextImage(s.handle, common.NoTimeout, &semaphore.handle, nil)
	if res == khr_swapchain.VKErrorOutOfDate {
		return 0, errors.Wrap(frame.ErrStale, "acquire next image")
	} else if err != nil {
		return 0, err
	}
	return index, nil
}

// Present maps out-of-date and suboptimal results to frame.ErrStale. In
// both cases the image has still been queued.
func (s *Swapchain) Present(index int, wait frame.Semaphore) error {
	res, err := s.ctx.swapchainExtension.QueuePresent(s.ctx.presentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{wait.(*Semaphore).handle},
		Swapchains:     []khr_swapchain.Swapchain{s.handle},
		ImageIndices:   []int{index},
	})
	if res == khr_swapchain.VKErrorOutOfDate || res == khr_swapchain.VKSuboptimal {
		return errors.Wrapf(frame.ErrStale, "present image %d", index)
	} else if err != nil {
		return err
	}
	return nil
}

// Destroy releases the image views, then the swapchain. The images
// themselves belong to the swapchain.
func (s *Swapchain) Destroy() {
	for _, view := range s.views {
		view.destroy()
	}
	s.views = nil

	if s.handle.Initialized() {
		s.ctx.swapchainExtension.DestroySwapchain(s.handle, nil)
		s.handle = khr_swapchain.Swapchain{}
	}
}

package frame

import (
	"github.com/cockroachdb/errors"
)

// Surface owns the swapchain and one framebuffer per presentable image.
// Format and extent are fixed for the lifetime of a build; a resize replaces
// everything wholesale.
type Surface struct {
	dev Device

	swapchain    Swapchain
	images       []ImageView
	framebuffers []Framebuffer
	format       SurfaceFormat
	presentMode  PresentMode
	extent       Extent
}

// NewSurface builds a surface for a window of the given size. The size must
// have nonzero area.
func NewSurface(dev Device, size Extent) (*Surface, error) {
	s := &Surface{dev: dev}
	err := s.build(size)
	if err != nil {
		s.Destroy()
		return nil, err
	}
	return s, nil
}

// Recreate tears the current swapchain down and builds a new one. The
// caller must have waited for the device to go idle.
func (s *Surface) Recreate(size Extent) error {
	if size.Empty() {
		return errors.Errorf("recreate surface: window has zero area (%dx%d)", size.Width, size.Height)
	}
	s.Destroy()
	return s.build(size)
}

func (s *Surface) build(size Extent) error {
	if size.Empty() {
		return errors.Errorf("create surface: window has zero area (%dx%d)", size.Width, size.Height)
	}

	support, err := s.dev.SurfaceSupport()
	if err != nil {
		return errors.Wrap(err, "query surface support")
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return errors.New("create surface: device reports no formats or present modes")
	}

	s.format = ChooseSurfaceFormat(support.Formats)
	s.presentMode = choosePresentMode(support.PresentModes)
	extent := chooseExtent(support.Capabilities, size)

	swapchain, err := s.dev.CreateSwapchain(SwapchainConfig{
		ImageCount:  chooseImageCount(support.Capabilities),
		Format:      s.format,
		PresentMode: s.presentMode,
		Extent:      extent,
	})
	if err != nil {
		return errors.Wrap(err, "create swapchain")
	}
	s.swapchain = swapchain
	s.extent = extent

	s.images = swapchain.Images()
	if len(s.images) == 0 {
		return errors.New("create surface: swapchain has no images")
	}

	for _, view := range s.images {
		framebuffer, err := s.dev.CreateFramebuffer(PassPresent, []ImageView{view}, extent)
		if err != nil {
			return errors.Wrap(err, "create swapchain framebuffer")
		}
		s.framebuffers = append(s.framebuffers, framebuffer)
	}

	return nil
}

// Destroy releases framebuffers before the images they reference, then the
// swapchain itself. It is safe to call on a partially built surface.
func (s *Surface) Destroy() {
	for _, framebuffer := range s.framebuffers {
		framebuffer.Destroy()
	}
	s.framebuffers = nil
	s.images = nil

	if s.swapchain != nil {
		s.swapchain.Destroy()
		s.swapchain = nil
	}
	s.extent = Extent{}
}

// AcquireNextImage returns the index of the next presentable image. signal
// is satisfied once the image is ready to be rendered to. An error matching
// ErrStale means no image was acquired and the surface must be recreated.
func (s *Surface) AcquireNextImage(signal Semaphore) (int, error) {
	index, err := s.swapchain.AcquireNextImage(signal)
	if err != nil {
		if errors.Is(err, ErrStale) {
			return 0, err
		}
		return 0, errors.Wrap(err, "acquire next image")
	}
	if index < 0 || index >= len(s.framebuffers) {
		return 0, errors.AssertionFailedf("swapchain returned image %d of %d", index, len(s.framebuffers))
	}
	return index, nil
}

// Present queues image index for display once wait is satisfied.
func (s *Surface) Present(index int, wait Semaphore) error {
	err := s.swapchain.Present(index, wait)
	if err != nil && !errors.Is(err, ErrStale) {
		return errors.Wrap(err, "present")
	}
	return err
}

func (s *Surface) Framebuffer(index int) Framebuffer {
	return s.framebuffers[index]
}

func (s *Surface) ImageCount() int {
	return len(s.images)
}

func (s *Surface) FramebufferCount() int {
	return len(s.framebuffers)
}

func (s *Surface) Extent() Extent {
	return s.extent
}

func (s *Surface) Format() SurfaceFormat {
	return s.format
}

func (s *Surface) PresentMode() PresentMode {
	return s.presentMode
}

// ChooseSurfaceFormat prefers 8-bit BGRA sRGB with a nonlinear sRGB color
// space and otherwise takes the first format offered. The slice must not be
// empty.
func ChooseSurfaceFormat(available []SurfaceFormat) SurfaceFormat {
	for _, format := range available {
		if format.Format == FormatB8G8R8A8SRGB && format.ColorSpace == ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return available[0]
}

func choosePresentMode(available []PresentMode) PresentMode {
	for _, mode := range available {
		if mode == PresentModeMailbox {
			return mode
		}
	}

	return PresentModeFIFO
}

func chooseExtent(capabilities SurfaceCapabilities, window Extent) Extent {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	width := window.Width
	height := window.Height

	if width < capabilities.MinImageExtent.Width {
		width = capabilities.MinImageExtent.Width
	}
	if width > capabilities.MaxImageExtent.Width {
		width = capabilities.MaxImageExtent.Width
	}
	if height < capabilities.MinImageExtent.Height {
		height = capabilities.MinImageExtent.Height
	}
	if height > capabilities.MaxImageExtent.Height {
		height = capabilities.MaxImageExtent.Height
	}

	return Extent{Width: width, Height: height}
}

func chooseImageCount(capabilities SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

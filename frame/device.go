package frame

// Extent is a size in pixels.
type Extent struct {
	Width  int
	Height int
}

// Empty reports whether the extent has no area.
func (e Extent) Empty() bool {
	return e.Width <= 0 || e.Height <= 0
}

// Clamped returns e with both sides raised to at least one pixel.
func (e Extent) Clamped() Extent {
	if e.Width < 1 {
		e.Width = 1
	}
	if e.Height < 1 {
		e.Height = 1
	}
	return e
}

type Format int

const (
	FormatUndefined Format = iota
	FormatB8G8R8A8SRGB
	FormatB8G8R8A8UNorm
	FormatR8G8B8A8SRGB
	FormatR8G8B8A8UNorm
	FormatD24UNormS8UInt
	FormatD32SFloatS8UInt
	FormatD32SFloat
)

type ColorSpace int

const (
	ColorSpaceSRGBNonlinear ColorSpace = iota
	ColorSpaceOther
)

type PresentMode int

const (
	PresentModeFIFO PresentMode = iota
	PresentModeMailbox
	PresentModeImmediate
	PresentModeFIFORelaxed
)

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// SurfaceCapabilities mirrors the platform limits for a presentable surface.
// A CurrentExtent of -1 in either dimension means the size is chosen by the
// swapchain rather than dictated by the window system.
type SurfaceCapabilities struct {
	MinImageCount  int
	MaxImageCount  int
	CurrentExtent  Extent
	MinImageExtent Extent
	MaxImageExtent Extent
}

type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

type SwapchainConfig struct {
	ImageCount  int
	Format      SurfaceFormat
	PresentMode PresentMode
	Extent      Extent
}

// Pass names the render pass a framebuffer or pipeline is compatible with.
type Pass int

const (
	PassOffscreen Pass = iota
	PassPresent
)

type ImageUsage int

const (
	ImageUsageColorTarget ImageUsage = iota
	ImageUsageDepthTarget
)

type ImageConfig struct {
	Extent Extent
	Usage  ImageUsage
}

// Device is the capability provider the frame core drives. Implementations
// own the graphics API instance, logical device and queues.
type Device interface {
	WaitIdle() error
	SurfaceSupport() (SurfaceSupport, error)
	CreateSwapchain(cfg SwapchainConfig) (Swapchain, error)
	CreateFramebuffer(pass Pass, attachments []ImageView, extent Extent) (Framebuffer, error)
	CreateImage(cfg ImageConfig) (Image, error)
	CreateSemaphore() (Semaphore, error)
	CreateFence(signaled bool) (Fence, error)
	AllocateCommandBuffer() (CommandBuffer, error)
	GraphicsQueue() Queue
}

type ImageView interface {
	Extent() Extent
}

// Image owns its backing memory and a default view.
type Image interface {
	View() ImageView
	Destroy()
}

type Framebuffer interface {
	Extent() Extent
	Destroy()
}

// Swapchain is the ring of presentable images. AcquireNextImage and Present
// return an error matching ErrStale when the swapchain no longer matches the
// window and has to be rebuilt.
type Swapchain interface {
	Images() []ImageView
	AcquireNextImage(signal Semaphore) (int, error)
	Present(index int, wait Semaphore) error
	Destroy()
}

type Semaphore interface {
	Destroy()
}

type Fence interface {
	Wait() error
	Reset() error
	Destroy()
}

type Submission struct {
	Commands CommandBuffer
	Wait     Semaphore
	Signal   Semaphore
	Fence    Fence
}

type Queue interface {
	Submit(work Submission) error
}

type Pipeline interface {
	Destroy()
}

// Buffer is device memory holding vertex data.
type Buffer interface {
	Destroy()
}

// TextureBinding is a backend-specific descriptor that lets a pipeline
// sample an image view.
type TextureBinding interface {
	Release()
}

type ClearValues struct {
	Color [4]float32
	Depth float32
}

type CommandBuffer interface {
	Reset() error
	Begin() error
	End() error

	BeginPass(target Framebuffer, clear ClearValues) error
	EndPass()
	SetViewport(extent Extent)
	BindPipeline(pipeline Pipeline)
	BindTexture(pipeline Pipeline, texture TextureBinding)
	BindVertexBuffer(buffer Buffer)
	PushConstants(pipeline Pipeline, data any) error
	Draw(vertexCount int)

	Free()
}

// Package gpu implements the frame package's device boundary on Vulkan
// through vkngwrapper, with an SDL2 window providing the surface.
package gpu

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/vulkan-mvp/frame"
	"github.com/vkngwrapper/vulkan-mvp/ui"
)

var (
	_ frame.Device = (*Context)(nil)
	_ ui.Backend   = (*Context)(nil)
)

type Options struct {
	AppName    string
	Validation bool
	// ShaderDir holds the compiled SPIR-V modules pipelines load.
	ShaderDir string
	Logger    *slog.Logger
	// MaxTextures bounds how many texture bindings may be live at once.
	MaxTextures int
}

// Context owns the Vulkan instance, the logical device and everything
// created once for the lifetime of the window: both render passes, the
// command pool, the sampler and the texture descriptor pool.
type Context struct {
	window *sdl.Window
	log    *slog.Logger
	opts   Options

	globalDriver   core1_0.GlobalDriver
	instanceDriver core1_0.CoreInstanceDriver
	deviceDriver   core1_0.CoreDeviceDriver

	debugDriver        ext_debug_utils.ExtensionDriver
	debugMessenger     ext_debug_utils.DebugUtilsMessenger
	surfaceExtension   khr_surface.ExtensionDriver
	surface            khr_surface.Surface
	swapchainExtension khr_swapchain.ExtensionDriver

	physicalDevice core1_0.PhysicalDevice
	families       queueFamilies
	graphicsQueue  *Queue
	presentQueue   core1_0.Queue

	// formats maps the formats reported to the frame core back to the
	// platform's own values.
	formats       map[frame.SurfaceFormat]khr_surface.SurfaceFormat
	surfaceFormat frame.SurfaceFormat
	depthFormat   core1_0.Format

	offscreenPass core1_0.RenderPass
	presentPass   core1_0.RenderPass

	commandPool    core1_0.CommandPool
	sampler        core1_0.Sampler
	textureLayout  core1_0.DescriptorSetLayout
	descriptorPool core1_0.DescriptorPool
}

func NewContext(window *sdl.Window, opts Options) (*Context, error) {
	c := &Context{
		window: window,
		log:    opts.Logger,
		opts:   opts,
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.opts.AppName == "" {
		c.opts.AppName = "Vulkan MVP"
	}
	if c.opts.MaxTextures <= 0 {
		c.opts.MaxTextures = 64
	}

	err := c.init()
	if err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Context) init() error {
	var err error
	c.globalDriver, err = core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return errors.Wrap(err, "load vulkan")
	}

	err = c.createInstance()
	if err != nil {
		return err
	}

	err = c.setupDebugMessenger()
	if err != nil {
		return err
	}

	err = c.createSurface()
	if err != nil {
		return err
	}

	err = c.pickPhysicalDevice()
	if err != nil {
		return err
	}

	err = c.createLogicalDevice()
	if err != nil {
		return err
	}

	err = c.createRenderPasses()
	if err != nil {
		return err
	}

	err = c.createCommandPool()
	if err != nil {
		return err
	}

	return c.createTextureResources()
}

// WaitIdle blocks until the device has finished all submitted work.
func (c *Context) WaitIdle() error {
	_, err := c.deviceDriver.DeviceWaitIdle()
	if err != nil {
		return errors.Wrap(err, "device wait idle")
	}
	return nil
}

func (c *Context) GraphicsQueue() frame.Queue {
	return c.graphicsQueue
}

// SurfaceFormat is the presentation format the present pass was built for.
func (c *Context) SurfaceFormat() frame.SurfaceFormat {
	return c.surfaceFormat
}

func (c *Context) renderPass(pass frame.Pass) core1_0.RenderPass {
	if pass == frame.PassOffscreen {
		return c.offscreenPass
	}
	return c.presentPass
}

// Close destroys everything NewContext created, in reverse order. Objects
// created through the context must be destroyed first.
func (c *Context) Close() {
	if c.descriptorPool.Initialized() {
		c.deviceDriver.DestroyDescriptorPool(c.descriptorPool, nil)
		c.descriptorPool = core1_0.DescriptorPool{}
	}

	if c.textureLayout.Initialized() {
		c.deviceDriver.DestroyDescriptorSetLayout(c.textureLayout, nil)
		c.textureLayout = core1_0.DescriptorSetLayout{}
	}

	if c.sampler.Initialized() {
		c.deviceDriver.DestroySampler(c.sampler, nil)
		c.sampler = core1_0.Sampler{}
	}

	if c.commandPool.Initialized() {
		c.deviceDriver.DestroyCommandPool(c.commandPool, nil)
		c.commandPool = core1_0.CommandPool{}
	}

	if c.presentPass.Initialized() {
		c.deviceDriver.DestroyRenderPass(c.presentPass, nil)
		c.presentPass = core1_0.RenderPass{}
	}

	if c.offscreenPass.Initialized() {
		c.deviceDriver.DestroyRenderPass(c.offscreenPass, nil)
		c.offscreenPass = core1_0.RenderPass{}
	}

	if c.deviceDriver != nil {
		c.deviceDriver.DestroyDevice(nil)
		c.deviceDriver = nil
	}

	if c.debugMessenger.Initialized() {
		c.debugDriver.DestroyDebugUtilsMessenger(c.debugMessenger, nil)
		c.debugMessenger = ext_debug_utils.DebugUtilsMessenger{}
	}

	if c.surface.Initialized() {
		c.surfaceExtension.DestroySurface(c.surface, nil)
		c.surface = khr_surface.Surface{}
	}

	if c.instanceDriver != nil {
		c.instanceDriver.DestroyInstance(nil)
		c.instanceDriver = nil
	}
}

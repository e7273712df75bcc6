package gpu

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/vkngwrapper/vulkan-mvp/frame"
)

var deviceExtensions = []string{khr_swapchain.ExtensionName}

type queueFamilies struct {
	graphics *int
	present  *int
}

func (q queueFamilies) complete() bool {
	return q.graphics != nil && q.present != nil
}

// unique lists the distinct families, graphics first.
func (q queueFamilies) unique() []int {
	families := []int{*q.graphics}
	if *q.present != *q.graphics {
		families = append(families, *q.present)
	}
	return families
}

type swapchainSupport struct {
	capabilities *khr_surface.SurfaceCapabilities
	formats      []khr_surface.SurfaceFormat
	presentModes []khr_surface.PresentMode
}

func (c *Context) pickPhysicalDevice() error {
	physicalDevices, _, err := c.instanceDriver.EnumeratePhysicalDevices()
	if err != nil {
		return errors.Wrap(err, "enumerate physical devices")
	}

	for _, device := range physicalDevices {
		families, ok := c.isDeviceSuitable(device)
		if ok {
			c.physicalDevice = device
			c.families = families
			break
		}
	}

	if !c.physicalDevice.Initialized() {
		return errors.New("no GPU supports presenting to this window")
	}

	properties, err := c.instanceDriver.GetPhysicalDeviceProperties(c.physicalDevice)
	if err == nil {
		c.log.Info("physical device selected",
			slog.String("name", properties.DeviceName),
			slog.Int("graphics_family", *c.families.graphics),
			slog.Int("present_family", *c.families.present),
		)
	}
	return nil
}

func (c *Context) isDeviceSuitable(device core1_0.PhysicalDevice) (queueFamilies, bool) {
	families, err := c.findQueueFamilies(device)
	if err != nil || !families.complete() {
		return families, false
	}

	if !c.checkDeviceExtensionSupport(device) {
		return families, false
	}

	support, err := c.querySwapchainSupport(device)
	if err != nil {
		return families, false
	}

	return families, len(support.formats) > 0 && len(support.presentModes) > 0
}

func (c *Context) checkDeviceExtensionSupport(device core1_0.PhysicalDevice) bool {
	extensions, _, err := c.instanceDriver.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return false
	}

	for _, extension := range deviceExtensions {
		_, hasExtension := extensions[extension]
		if !hasExtension {
			return false
		}
	}

	return true
}

func (c *Context) findQueueFamilies(device core1_0.PhysicalDevice) (queueFamilies, error) {
	families := queueFamilies{}
	properties := c.instanceDriver.GetPhysicalDeviceQueueFamilyProperties(device)

	for index, family := range properties {
		if families.graphics == nil && (family.QueueFlags&core1_0.QueueGraphics) != 0 {
			families.graphics = new(int)
			*families.graphics = index
		}

		supported, _, err := c.surfaceExtension.GetPhysicalDeviceSurfaceSupport(c.surface, device, index)
		if err != nil {
			return families, errors.Wrapf(err, "query present support for queue family %d", index)
		}

		if supported && families.present == nil {
			families.present = new(int)
			*families.present = index
		}

		if families.complete() {
			break
		}
	}

	return families, nil
}

func (c *Context) querySwapchainSupport(device core1_0.PhysicalDevice) (swapchainSupport, error) {
	var support swapchainSupport
	var err error

	support.capabilities, _, err = c.surfaceExtension.GetPhysicalDeviceSurfaceCapabilities(c.surface, device)
	if err != nil {
		return support, errors.Wrap(err, "query surface capabilities")
	}

	support.formats, _, err = c.surfaceExtension.GetPhysicalDeviceSurfaceFormats(c.surface, device)
	if err != nil {
		return support, errors.Wrap(err, "query surface formats")
	}

	support.presentModes, _, err = c.surfaceExtension.GetPhysicalDeviceSurfacePresentModes(c.surface, device)
	if err != nil {
		return support, errors.Wrap(err, "query surface present modes")
	}
	return support, nil
}

// SurfaceSupport reports the current surface limits in frame terms. Formats
// the frame core has no name for are left out.
func (c *Context) SurfaceSupport() (frame.SurfaceSupport, error) {
	support, err := c.querySwapchainSupport(c.physicalDevice)
	if err != nil {
		return frame.SurfaceSupport{}, err
	}

	result := frame.SurfaceSupport{
		Capabilities: fromCapabilities(support.capabilities),
	}

	c.formats = make(map[frame.SurfaceFormat]khr_surface.SurfaceFormat, len(support.formats))
	for _, format := range support.formats {
		converted, ok := fromSurfaceFormat(format)
		if !ok {
			continue
		}
		if _, seen := c.formats[converted]; !seen {
			c.formats[converted] = format
			result.Formats = append(result.Formats, converted)
		}
	}

	for _, mode := range support.presentModes {
		converted, ok := fromPresentMode(mode)
		if ok {
			result.PresentModes = append(result.PresentModes, converted)
		}
	}

	return result, nil
}

func (c *Context) createLogicalDevice() error {
	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, family := range c.families.unique() {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: family,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	var extensionNames []string
	extensionNames = append(extensionNames, deviceExtensions...)

	// Portability implementations require the subset extension to be enabled.
	extensions, _, err := c.instanceDriver.EnumerateDeviceExtensionProperties(c.physicalDevice)
	if err != nil {
		return errors.Wrap(err, "enumerate device extensions")
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	c.deviceDriver, _, err = c.instanceDriver.CreateDevice(c.physicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueFamilyOptions,
		EnabledFeatures:       &core1_0.PhysicalDeviceFeatures{},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return errors.Wrap(err, "create logical device")
	}

	c.swapchainExtension = khr_swapchain.CreateExtensionDriverFromCoreDriver(c.deviceDriver)
	c.graphicsQueue = &Queue{ctx: c, handle: c.deviceDriver.GetQueue(*c.families.graphics, 0)}
	c.presentQueue = c.deviceDriver.GetQueue(*c.families.present, 0)

	c.depthFormat, err = c.findDepthFormat()
	return err
}

func (c *Context) findSupportedFormat(formats []core1_0.Format, tiling core1_0.ImageTiling, features core1_0.FormatFeatureFlags) (core1_0.Format, error) {
	for _, format := range formats {
		props := c.instanceDriver.GetPhysicalDeviceFormatProperties(c.physicalDevice, format)

		if tiling == core1_0.ImageTilingLinear && (props.LinearTilingFeatures&features) == features {
			return format, nil
		} else if tiling == core1_0.ImageTilingOptimal && (props.OptimalTilingFeatures&features) == features {
			return format, nil
		}
	}

	return 0, errors.Errorf("no supported format for tiling %s, features %s", tiling, features)
}

func (c *Context) findDepthFormat() (core1_0.Format, error) {
	return c.findSupportedFormat(
		[]core1_0.Format{
			core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
			core1_0.FormatD32SignedFloatS8UnsignedInt,
			core1_0.FormatD32SignedFloat,
		},
		core1_0.ImageTilingOptimal,
		core1_0.FormatFeatureDepthStencilAttachment)
}

func (c *Context) findMemoryType(typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	memProperties := c.instanceDriver.GetPhysicalDeviceMemoryProperties(c.physicalDevice)
	for i, memoryType := range memProperties.MemoryTypes {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Errorf("no memory type matches filter %#x with properties %s", typeFilter, properties)
}

func hasStencilComponent(format core1_0.Format) bool {
	return format == core1_0.FormatD32SignedFloatS8UnsignedInt || format == core1_0.FormatD24UnsignedNormalizedS8UnsignedInt
}

package gpu

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"

	"github.com/vkngwrapper/vulkan-mvp/frame"
)

var formats = map[frame.Format]core1_0.Format{
	frame.FormatB8G8R8A8SRGB:    core1_0.FormatB8G8R8A8SRGB,
	frame.FormatB8G8R8A8UNorm:   core1_0.FormatB8G8R8A8UnsignedNormalized,
	frame.FormatR8G8B8A8SRGB:    core1_0.FormatR8G8B8A8SRGB,
	frame.FormatR8G8B8A8UNorm:   core1_0.FormatR8G8B8A8UnsignedNormalized,
	frame.FormatD24UNormS8UInt:  core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
	frame.FormatD32SFloatS8UInt: core1_0.FormatD32SignedFloatS8UnsignedInt,
	frame.FormatD32SFloat:       core1_0.FormatD32SignedFloat,
}

func toFormat(format frame.Format) (core1_0.Format, bool) {
	converted, ok := formats[format]
	return converted, ok
}

func fromFormat(format core1_0.Format) (frame.Format, bool) {
	for f, vk := range formats {
		if vk == format {
			return f, true
		}
	}
	return frame.FormatUndefined, false
}

func fromSurfaceFormat(format khr_surface.SurfaceFormat) (frame.SurfaceFormat, bool) {
	converted, ok := fromFormat(format.Format)
	if !ok {
		return frame.SurfaceFormat{}, false
	}

	colorSpace := frame.ColorSpaceOther
	if format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
		colorSpace = frame.ColorSpaceSRGBNonlinear
	}
	return frame.SurfaceFormat{Format: converted, ColorSpace: colorSpace}, true
}

var presentModes = map[frame.PresentMode]khr_surface.PresentMode{
	frame.PresentModeFIFO:        khr_surface.PresentModeFIFO,
	frame.PresentModeMailbox:     khr_surface.PresentModeMailbox,
	frame.PresentModeImmediate:   khr_surface.PresentModeImmediate,
	frame.PresentModeFIFORelaxed: khr_surface.PresentModeFIFORelaxed,
}

func toPresentMode(mode frame.PresentMode) khr_surface.PresentMode {
	converted, ok := presentModes[mode]
	if !ok {
		return khr_surface.PresentModeFIFO
	}
	return converted
}

func fromPresentMode(mode khr_surface.PresentMode) (frame.PresentMode, bool) {
	for m, vk := range presentModes {
		if vk == mode {
			return m, true
		}
	}
	return frame.PresentModeFIFO, false
}

func fromExtent(extent core1_0.Extent2D) frame.Extent {
	return frame.Extent{Width: extent.Width, Height: extent.Height}
}

func toExtent(extent frame.Extent) core1_0.Extent2D {
	return core1_0.Extent2D{Width: extent.Width, Height: extent.Height}
}

func fromCapabilities(capabilities *khr_surface.SurfaceCapabilities) frame.SurfaceCapabilities {
	return frame.SurfaceCapabilities{
		MinImageCount:  capabilities.MinImageCount,
		MaxImageCount:  capabilities.MaxImageCount,
		CurrentExtent:  fromExtent(capabilities.CurrentExtent),
		MinImageExtent: fromExtent(capabilities.MinImageExtent),
		MaxImageExtent: fromExtent(capabilities.MaxImageExtent),
	}
}

// clearValues orders clear values the way each pass declares its
// attachments: the offscreen pass clears color then depth, the present pass
// only color.
func clearValues(pass frame.Pass, clear frame.ClearValues) []core1_0.ClearValue {
	color := core1_0.ClearValueFloat{clear.Color[0], clear.Color[1], clear.Color[2], clear.Color[3]}
	if pass != frame.PassOffscreen {
		return []core1_0.ClearValue{color}
	}

	depth := clear.Depth
	if depth == 0 {
		depth = 1
	}
	return []core1_0.ClearValue{color, core1_0.ClearValueDepthStencil{Depth: depth, Stencil: 0}}
}

// encodeConstants lays data out as the shader sees it.
func encodeConstants(data any) ([]byte, error) {
	buf := &bytes.Buffer{}
	err := binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return nil, errors.Wrapf(err, "encode push constants %T", data)
	}
	return buf.Bytes(), nil
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode
}

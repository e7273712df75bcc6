package gpu

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

type Buffer struct {
	ctx    *Context
	handle core1_0.Buffer
	memory core1_0.DeviceMemory
}

func (b *Buffer) Destroy() {
	if b.handle.Initialized() {
		b.ctx.deviceDriver.DestroyBuffer(b.handle, nil)
		b.handle = core1_0.Buffer{}
	}

	if b.memory.Initialized() {
		b.ctx.deviceDriver.FreeMemory(b.memory, nil)
		b.memory = core1_0.DeviceMemory{}
	}
}

// CreateVertexBuffer uploads vertices, a slice of fixed-size values, to a
// device-local vertex buffer through a host-visible staging buffer.
func (c *Context) CreateVertexBuffer(vertices any) (*Buffer, error) {
	bufferSize := binary.Size(vertices)
	if bufferSize <= 0 {
		return nil, errors.Errorf("create vertex buffer: %T has no fixed binary size", vertices)
	}

	staging, err := c.createBuffer(bufferSize, core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, errors.Wrap(err, "create staging buffer")
	}
	defer staging.Destroy()

	err = writeData(c.deviceDriver, staging.memory, 0, vertices)
	if err != nil {
		return nil, err
	}

	vertexBuffer, err := c.createBuffer(bufferSize, core1_0.BufferUsageTransferDst|core1_0.BufferUsageVertexBuffer, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, errors.Wrap(err, "create vertex buffer")
	}

	err = c.copyBuffer(staging.handle, vertexBuffer.handle, bufferSize)
	if err != nil {
		vertexBuffer.Destroy()
		return nil, err
	}
	return vertexBuffer, nil
}

func (c *Context) createBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (*Buffer, error) {
	handle, _, err := c.deviceDriver.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, err
	}
	buffer := &Buffer{ctx: c, handle: handle}

	memRequirements := c.deviceDriver.GetBufferMemoryRequirements(handle)
	memoryTypeIndex, err := c.findMemoryType(memRequirements.MemoryTypeBits, properties)
	if err != nil {
		buffer.Destroy()
		return nil, err
	}

	buffer.memory, _, err = c.deviceDriver.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		buffer.Destroy()
		return nil, errors.Wrap(err, "allocate buffer memory")
	}

	_, err = c.deviceDriver.BindBufferMemory(handle, buffer.memory, 0)
	if err != nil {
		buffer.Destroy()
		return nil, errors.Wrap(err, "bind buffer memory")
	}
	return buffer, nil
}

func writeData(driver core1_0.DeviceDriver, memory core1_0.DeviceMemory, offset int, data any) error {
	bufferSize := binary.Size(data)

	memoryPtr, _, err := driver.MapMemory(memory, offset, bufferSize, 0)
	if err != nil {
		return errors.Wrap(err, "map memory")
	}
	defer driver.UnmapMemory(memory)

	dataBuffer := unsafe.Slice((*byte)(memoryPtr), bufferSize)

	buf := &bytes.Buffer{}
	err = binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return errors.Wrap(err, "encode buffer data")
	}

	copy(dataBuffer, buf.Bytes())
	return nil
}

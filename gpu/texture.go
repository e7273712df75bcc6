package gpu

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/vkngwrapper/vulkan-mvp/frame"
)

func (c *Context) createTextureResources() error {
	var err error
	c.sampler, _, err = c.deviceDriver.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeClampToEdge,
		AddressModeV: core1_0.SamplerAddressModeClampToEdge,
		AddressModeW: core1_0.SamplerAddressModeClampToEdge,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
		MinLod:     0,
		MaxLod:     0,
	})
	if err != nil {
		return errors.Wrap(err, "create sampler")
	}

	c.textureLayout, _, err = c.deviceDriver.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: []core1_0.DescriptorSetLayoutBinding{
			{
				Binding:         0,
				DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: 1,

				StageFlags: core1_0.StageFragment,
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "create texture descriptor set layout")
	}

	c.descriptorPool, _, err = c.deviceDriver.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		Flags:   core1_0.DescriptorPoolCreateFreeDescriptorSet,
		MaxSets: c.opts.MaxTextures,
		PoolSizes: []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: c.opts.MaxTextures,
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "create texture descriptor pool")
	}
	return nil
}

// TextureBinding is a descriptor set sampling one image view. Releasing it
// returns the set to the pool; the view itself is not touched.
type TextureBinding struct {
	ctx *Context
	set core1_0.DescriptorSet
}

func (t *TextureBinding) Release() {
	if t.set.Initialized() {
		t.ctx.deviceDriver.FreeDescriptorSets(t.set)
		t.set = core1_0.DescriptorSet{}
	}
}

// BindTexture allocates a descriptor set that samples view in shader
// read-only layout.
func (c *Context) BindTexture(view frame.ImageView) (frame.TextureBinding, error) {
	sets, _, err := c.deviceDriver.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: c.descriptorPool,
		SetLayouts:     []core1_0.DescriptorSetLayout{c.textureLayout},
	})
	if err != nil {
		return nil, errors.Wrap(err, "allocate texture descriptor set")
	}
	binding := &TextureBinding{ctx: c, set: sets[0]}

	err = c.deviceDriver.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{
		{
			DstSet:          binding.set,
			DstBinding:      0,
			DstArrayElement: 0,

			DescriptorType: core1_0.DescriptorTypeCombinedImageSampler,

			ImageInfo: []core1_0.DescriptorImageInfo{
				{
					ImageView:   view.(*ImageView).handle,
					Sampler:     c.sampler,
					ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
				},
			},
		},
	}, nil)
	if err != nil {
		binding.Release()
		return nil, errors.Wrap(err, "write texture descriptor set")
	}
	return binding, nil
}

// WhiteTexture creates a 1x1 opaque white image, ready to sample. Untextured
// UI quads draw with it so one pipeline serves every quad.
func (c *Context) WhiteTexture() (frame.Image, error) {
	extent := frame.Extent{Width: 1, Height: 1}
	pixel := []byte{255, 255, 255, 255}

	staging, err := c.createBuffer(len(pixel), core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, errors.Wrap(err, "create staging buffer")
	}
	defer staging.Destroy()

	err = writeData(c.deviceDriver, staging.memory, 0, pixel)
	if err != nil {
		return nil, err
	}

	image, err := c.createImage(extent, offscreenColorFormat,
		core1_0.ImageUsageTransferDst|core1_0.ImageUsageSampled,
		core1_0.ImageAspectColor)
	if err != nil {
		return nil, errors.Wrap(err, "create white texture")
	}

	err = c.transitionImageLayout(image.handle, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal)
	if err == nil {
		err = c.copyBufferToImage(staging.handle, image.handle, extent)
	}
	if err == nil {
		err = c.transitionImageLayout(image.handle, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal)
	}
	if err != nil {
		image.Destroy()
		return nil, errors.Wrap(err, "upload white texture")
	}
	return image, nil
}

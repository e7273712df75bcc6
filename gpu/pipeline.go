package gpu

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"golang.org/x/sync/errgroup"

	"github.com/vkngwrapper/vulkan-mvp/frame"
)

// pushStages is where push constants are visible in every pipeline.
const pushStages = core1_0.StageVertex | core1_0.StageFragment

// VertexLayout describes one interleaved vertex binding. Every attribute is
// a three-component float vector.
type VertexLayout struct {
	Stride     int
	Attributes []VertexAttribute
}

type VertexAttribute struct {
	Location int
	Offset   int
}

// PipelineConfig describes a graphics pipeline. Shader names are file names
// of compiled SPIR-V within the context's shader directory.
type PipelineConfig struct {
	Pass           frame.Pass
	VertexShader   string
	FragmentShader string
	// Vertex is nil for pipelines that generate their vertices in the
	// vertex shader.
	Vertex *VertexLayout
	// PushConstantSize is the size in bytes of the push constant block.
	PushConstantSize int
	// Textured pipelines take a combined image sampler in set 0.
	Textured  bool
	DepthTest bool
	Blend     bool
}

type Pipeline struct {
	ctx      *Context
	handle   core1_0.Pipeline
	layout   core1_0.PipelineLayout
	pushSize int
}

func (p *Pipeline) Destroy() {
	if p.handle.Initialized() {
		p.ctx.deviceDriver.DestroyPipeline(p.handle, nil)
		p.handle = core1_0.Pipeline{}
	}

	if p.layout.Initialized() {
		p.ctx.deviceDriver.DestroyPipelineLayout(p.layout, nil)
		p.layout = core1_0.PipelineLayout{}
	}
}

// loadShaders reads the named SPIR-V modules concurrently.
func (c *Context) loadShaders(names ...string) ([][]byte, error) {
	code := make([][]byte, len(names))

	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			path := filepath.Join(c.opts.ShaderDir, name)
			b, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrapf(err, "load shader %s", name)
			}
			if len(b) == 0 || len(b)%4 != 0 {
				return errors.Errorf("load shader %s: %d bytes is not SPIR-V", path, len(b))
			}
			code[i] = b
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}
	return code, nil
}

func (c *Context) createShaderModule(code []byte) (core1_0.ShaderModule, error) {
	module, _, err := c.deviceDriver.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: bytesToBytecode(code),
	})
	if err != nil {
		return core1_0.ShaderModule{}, errors.Wrap(err, "create shader module")
	}
	return module, nil
}

func (c *Context) CreatePipeline(cfg PipelineConfig) (*Pipeline, error) {
	code, err := c.loadShaders(cfg.VertexShader, cfg.FragmentShader)
	if err != nil {
		return nil, err
	}

	vertShader, err := c.createShaderModule(code[0])
	if err != nil {
		return nil, err
	}
	defer c.deviceDriver.DestroyShaderModule(vertShader, nil)

	fragShader, err := c.createShaderModule(code[1])
	if err != nil {
		return nil, err
	}
	defer c.deviceDriver.DestroyShaderModule(fragShader, nil)

	layoutInfo := core1_0.PipelineLayoutCreateInfo{}
	if cfg.Textured {
		layoutInfo.SetLayouts = []core1_0.DescriptorSetLayout{c.textureLayout}
	}
	if cfg.PushConstantSize > 0 {
		layoutInfo.PushConstantRanges = []core1_0.PushConstantRange{
			{
				StageFlags: pushStages,
				Offset:     0,
				Size:       cfg.PushConstantSize,
			},
		}
	}

	pipeline := &Pipeline{ctx: c, pushSize: cfg.PushConstantSize}
	pipeline.layout, _, err = c.deviceDriver.CreatePipelineLayout(nil, layoutInfo)
	if err != nil {
		return nil, errors.Wrap(err, "create pipeline layout")
	}

	pipelines, _, err := c.deviceDriver.CreateGraphicsPipelines(nil, nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				{
					Stage:  core1_0.StageVertex,
					Module: vertShader,
					Name:   "main",
				},
				{
					Stage:  core1_0.StageFragment,
					Module: fragShader,
					Name:   "main",
				},
			},
			VertexInputState: vertexInputState(cfg.Vertex),
			InputAssemblyState: &core1_0.PipelineInputAssemblyStateCreateInfo{
				Topology:               core1_0.PrimitiveTopologyTriangleList,
				PrimitiveRestartEnable: false,
			},
			// Viewport and scissor are set per pass, so a resize never
			// invalidates a pipeline.
			ViewportState: &core1_0.PipelineViewportStateCreateInfo{
				Viewports: []core1_0.Viewport{{Width: 1, Height: 1, MaxDepth: 1}},
				Scissors:  []core1_0.Rect2D{{Extent: core1_0.Extent2D{Width: 1, Height: 1}}},
			},
			DynamicState: &core1_0.PipelineDynamicStateCreateInfo{
				DynamicStates: []core1_0.DynamicState{
					core1_0.DynamicStateViewport,
					core1_0.DynamicStateScissor,
				},
			},
			RasterizationState: &core1_0.PipelineRasterizationStateCreateInfo{
				DepthClampEnable:        false,
				RasterizerDiscardEnable: false,

				PolygonMode: core1_0.PolygonModeFill,
				CullMode:    core1_0.CullModeNone,
				FrontFace:   core1_0.FrontFaceCounterClockwise,

				DepthBiasEnable: false,

				LineWidth: 1.0,
			},
			MultisampleState: &core1_0.PipelineMultisampleStateCreateInfo{
				SampleShadingEnable:  false,
				RasterizationSamples: core1_0.Samples1,
				MinSampleShading:     1.0,
			},
			DepthStencilState: &core1_0.PipelineDepthStencilStateCreateInfo{
				DepthTestEnable:  cfg.DepthTest,
				DepthWriteEnable: cfg.DepthTest,
				DepthCompareOp:   core1_0.CompareOpLess,
			},
			ColorBlendState: colorBlendState(cfg.Blend),
			Layout:          pipeline.layout,
			RenderPass:      c.renderPass(cfg.Pass),
			Subpass:         0,

			BasePipelineIndex: -1,
		},
	)
	if err != nil {
		pipeline.Destroy()
		return nil, errors.Wrapf(err, "create pipeline %s/%s", cfg.VertexShader, cfg.FragmentShader)
	}
	pipeline.handle = pipelines[0]

	return pipeline, nil
}

func vertexInputState(layout *VertexLayout) *core1_0.PipelineVertexInputStateCreateInfo {
	if layout == nil {
		return &core1_0.PipelineVertexInputStateCreateInfo{}
	}

	state := &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions: []core1_0.VertexInputBindingDescription{
			{
				Binding:   0,
				Stride:    layout.Stride,
				InputRate: core1_0.VertexInputRateVertex,
			},
		},
	}
	for _, attribute := range layout.Attributes {
		state.VertexAttributeDescriptions = append(state.VertexAttributeDescriptions, core1_0.VertexInputAttributeDescription{
			Binding:  0,
			Location: uint32(attribute.Location),
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   attribute.Offset,
		})
	}
	return state
}

// colorBlendState writes color straight through, or alpha-blends over the
// existing contents when blend is set.
func colorBlendState(blend bool) *core1_0.PipelineColorBlendStateCreateInfo {
	attachment := core1_0.PipelineColorBlendAttachmentState{
		BlendEnabled:   blend,
		ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
	}
	if blend {
		attachment.SrcColorBlendFactor = core1_0.BlendFactorSrcAlpha
		attachment.DstColorBlendFactor = core1_0.BlendFactorOneMinusSrcAlpha
		attachment.ColorBlendOp = core1_0.BlendOpAdd
		attachment.SrcAlphaBlendFactor = core1_0.BlendFactorOne
		attachment.DstAlphaBlendFactor = core1_0.BlendFactorOneMinusSrcAlpha
		attachment.AlphaBlendOp = core1_0.BlendOpAdd
	}

	return &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,

		BlendConstants: [4]float32{0, 0, 0, 0},
		Attachments:    []core1_0.PipelineColorBlendAttachmentState{attachment},
	}
}

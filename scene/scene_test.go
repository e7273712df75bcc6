package scene

import (
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkngwrapper/vulkan-mvp/frame"
)

type recordingCommands struct {
	calls  []string
	pushed any
	clear  frame.ClearValues
}

func (c *recordingCommands) Reset() error { return nil }
func (c *recordingCommands) Begin() error { return nil }
func (c *recordingCommands) End() error   { return nil }
func (c *recordingCommands) Free()        {}

func (c *recordingCommands) BeginPass(target frame.Framebuffer, clear frame.ClearValues) error {
	c.clear = clear
	c.calls = append(c.calls, "BeginPass "+target.(*namedFramebuffer).name)
	return nil
}

func (c *recordingCommands) EndPass() {
	c.calls = append(c.calls, "EndPass")
}

func (c *recordingCommands) SetViewport(extent frame.Extent) {
	c.calls = append(c.calls, fmt.Sprintf("SetViewport %dx%d", extent.Width, extent.Height))
}

func (c *recordingCommands) BindPipeline(pipeline frame.Pipeline) {
	c.calls = append(c.calls, "BindPipeline")
}

func (c *recordingCommands) BindTexture(pipeline frame.Pipeline, texture frame.TextureBinding) {
	c.calls = append(c.calls, "BindTexture")
}

func (c *recordingCommands) BindVertexBuffer(buffer frame.Buffer) {
	c.calls = append(c.calls, "BindVertexBuffer")
}

func (c *recordingCommands) PushConstants(pipeline frame.Pipeline, data any) error {
	c.pushed = data
	c.calls = append(c.calls, "PushConstants")
	return nil
}

func (c *recordingCommands) Draw(vertexCount int) {
	c.calls = append(c.calls, fmt.Sprintf("Draw %d", vertexCount))
}

type namedFramebuffer struct {
	name   string
	extent frame.Extent
}

func (f *namedFramebuffer) Extent() frame.Extent { return f.extent }
func (f *namedFramebuffer) Destroy()             {}

type target struct {
	fb *namedFramebuffer
}

func (t target) Framebuffer() frame.Framebuffer { return t.fb }
func (t target) Extent() frame.Extent           { return t.fb.extent }

type nopResource struct{}

func (nopResource) Destroy() {}

func TestRecordDrawsCubeIntoTarget(t *testing.T) {
	cmd := &recordingCommands{}
	renderer := NewRenderer(nopResource{}, nopResource{}, 36)
	tgt := target{fb: &namedFramebuffer{name: "offscreen", extent: frame.Extent{Width: 800, Height: 400}}}

	require.NoError(t, renderer.Record(cmd, tgt, 1.25))

	assert.Equal(t, []string{
		"BeginPass offscreen",
		"SetViewport 800x400",
		"BindPipeline",
		"BindVertexBuffer",
		"PushConstants",
		"Draw 36",
		"EndPass",
	}, cmd.calls)
	assert.Equal(t, [4]float32{0.18, 0.18, 0.18, 1.0}, cmd.clear.Color)
	assert.Equal(t, float32(1.0), cmd.clear.Depth)

	pushed, ok := cmd.pushed.(*mgl32.Mat4)
	require.True(t, ok)
	assert.True(t, pushed.ApproxEqual(MVP(1.25, 2)))
}

func TestAspectRatioGuardsZeroHeight(t *testing.T) {
	assert.Equal(t, float32(2), AspectRatio(frame.Extent{Width: 1600, Height: 800}))
	assert.Equal(t, float32(1), AspectRatio(frame.Extent{Width: 1600, Height: 0}))
}

func TestPerspectiveMapsDepthToUnitRange(t *testing.T) {
	p := Perspective(mgl32.DegToRad(60), 1.5, 0.1, 100)

	nearPoint := p.Mul4x1(mgl32.Vec4{0, 0, -0.1, 1})
	assert.InDelta(t, 0, nearPoint.Z()/nearPoint.W(), 1e-5)

	farPoint := p.Mul4x1(mgl32.Vec4{0, 0, -100, 1})
	assert.InDelta(t, 1, farPoint.Z()/farPoint.W(), 1e-5)
}

func TestPerspectiveFlipsY(t *testing.T) {
	p := Perspective(mgl32.DegToRad(60), 1, 0.1, 100)

	above := p.Mul4x1(mgl32.Vec4{0, 1, -5, 1})
	assert.Less(t, above.Y()/above.W(), float32(0))
}

func TestMVPCentersOrigin(t *testing.T) {
	for _, seconds := range []float32{0, 0.5, 3} {
		clip := MVP(seconds, 16.0/9.0).Mul4x1(mgl32.Vec4{0, 0, 0, 1})
		require.Greater(t, clip.W(), float32(0))
		assert.InDelta(t, 0, clip.X()/clip.W(), 1e-5)
		assert.InDelta(t, 0, clip.Y()/clip.W(), 1e-5)

		depth := clip.Z() / clip.W()
		assert.Greater(t, depth, float32(0))
		assert.Less(t, depth, float32(1))
	}
}

func TestMVPKeepsWorldUpAboveCenter(t *testing.T) {
	top := MVP(0, 1).Mul4x1(mgl32.Vec4{0, 0, 0.5, 1})
	assert.Less(t, top.Y()/top.W(), float32(0), "world +Z should land in the upper half of the target")
}

func TestMVPStartsUnrotated(t *testing.T) {
	want := Perspective(mgl32.DegToRad(60), 1, 0.1, 100).Mul4(mgl32.LookAtV(eye, at, up))
	assert.True(t, MVP(0, 1).ApproxEqual(want))
}

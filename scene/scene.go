// Package scene records the offscreen pass: a single spinning cube.
package scene

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/vkngwrapper/vulkan-mvp/frame"
)

var (
	eye = mgl32.Vec3{2.4, -3.2, 1.8}
	at  = mgl32.Vec3{0, 0, 0}
	up  = mgl32.Vec3{0, 0, 1}
)

const (
	fovY = 60.0
	near = 0.1
	far  = 100.0
)

var ClearValues = frame.ClearValues{
	Color: [4]float32{0.18, 0.18, 0.18, 1.0},
	Depth: 1.0,
}

// Renderer draws a non-indexed vertex buffer with a pipeline whose only
// input besides vertices is a 64-byte vertex-stage push constant.
type Renderer struct {
	pipeline    frame.Pipeline
	vertices    frame.Buffer
	vertexCount int
}

func NewRenderer(pipeline frame.Pipeline, vertices frame.Buffer, vertexCount int) *Renderer {
	return &Renderer{
		pipeline:    pipeline,
		vertices:    vertices,
		vertexCount: vertexCount,
	}
}

func (r *Renderer) Record(cmd frame.CommandBuffer, target frame.RenderTarget, seconds float64) error {
	extent := target.Extent()

	err := cmd.BeginPass(target.Framebuffer(), ClearValues)
	if err != nil {
		return errors.Wrap(err, "begin scene pass")
	}

	cmd.SetViewport(extent)
	cmd.BindPipeline(r.pipeline)
	cmd.BindVertexBuffer(r.vertices)

	mvp := MVP(float32(seconds), AspectRatio(extent))
	err = cmd.PushConstants(r.pipeline, &mvp)
	if err != nil {
		return errors.Wrap(err, "push scene transform")
	}

	cmd.Draw(r.vertexCount)
	cmd.EndPass()
	return nil
}

// AspectRatio is width over height, or 1 for a target with no height.
func AspectRatio(extent frame.Extent) float32 {
	if extent.Height <= 0 {
		return 1
	}
	return float32(extent.Width) / float32(extent.Height)
}

// MVP builds the cube transform at time t seconds. The model spins about Z
// and, at 0.6 of that rate, about Y.
func MVP(t float32, aspect float32) mgl32.Mat4 {
	model := mgl32.HomogRotate3DZ(t).Mul4(mgl32.HomogRotate3DY(0.6 * t))
	view := mgl32.LookAtV(eye, at, up)
	projection := Perspective(mgl32.DegToRad(fovY), aspect, near, far)

	return projection.Mul4(view).Mul4(model)
}

// Perspective is a right-handed projection onto Vulkan clip space: depth
// maps to [0,1] and Y points down.
func Perspective(fovy, aspect, near, far float32) mgl32.Mat4 {
	f := float32(1 / math.Tan(float64(fovy)/2))

	return mgl32.Mat4{
		f / aspect, 0, 0, 0,
		0, -f, 0, 0,
		0, 0, far / (near - far), -1,
		0, 0, near * far / (near - far), 0,
	}
}

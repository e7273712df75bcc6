// Package mesh holds the constant geometry drawn by the scene pass.
package mesh

import (
	"bytes"
	_ "embed"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
)

//go:embed cube.obj
var cubeOBJ []byte

//go:embed cube.mtl
var cubeMTL []byte

// Vertex is the layout the cube pipeline consumes: position at location 0,
// color at location 1.
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
}

const (
	VertexStride   = int(unsafe.Sizeof(Vertex{}))
	PositionOffset = int(unsafe.Offsetof(Vertex{}.Position))
	ColorOffset    = int(unsafe.Offsetof(Vertex{}.Color))
)

// Cube decodes the embedded unit cube into a non-indexed triangle list, six
// vertices per face, each face flat-shaded with its material's diffuse color.
func Cube() ([]Vertex, error) {
	return Decode(cubeOBJ, cubeMTL)
}

// Decode reads a Wavefront mesh and its material library and triangulates
// every face as a fan.
func Decode(objData, mtlData []byte) ([]Vertex, error) {
	decoder, err := obj.DecodeReader(bytes.NewReader(objData), bytes.NewReader(mtlData))
	if err != nil {
		return nil, errors.Wrap(err, "decode mesh")
	}

	var vertices []Vertex
	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			material, ok := decoder.Materials[face.Material]
			if !ok {
				return nil, errors.Errorf("decode mesh: face uses unknown material %q", face.Material)
			}
			color := mgl32.Vec3{material.Diffuse.R, material.Diffuse.G, material.Diffuse.B}

			for i := 2; i < len(face.Vertices); i++ {
				vertices = append(vertices,
					vertex(decoder, face.Vertices[0], color),
					vertex(decoder, face.Vertices[i-1], color),
					vertex(decoder, face.Vertices[i], color),
				)
			}
		}
	}

	if len(vertices) == 0 {
		return nil, errors.New("decode mesh: no faces")
	}
	return vertices, nil
}

func vertex(decoder *obj.Decoder, index int, color mgl32.Vec3) Vertex {
	return Vertex{
		Position: mgl32.Vec3{
			decoder.Vertices[index*3],
			decoder.Vertices[index*3+1],
			decoder.Vertices[index*3+2],
		},
		Color: color,
	}
}

package frame

import (
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// ErrStale marks a surface that no longer matches the window or platform
// and must be rebuilt before further use.
var ErrStale = errors.New("surface is out of date")

// Window is the slice of the window system the driver consumes.
type Window interface {
	FramebufferSize() Extent
	// PollEvents drains pending events and returns false once the user has
	// asked to close the window.
	PollEvents() bool
	WaitEvents()
	// TakeResized reports whether a resize was signaled since the last call
	// and clears the flag.
	TakeResized() bool
}

// TextureID is a sampled handle the UI layer uses to display an image.
type TextureID = uuid.UUID

type TextureRegistry interface {
	Register(view ImageView) (TextureID, error)
	Unregister(id TextureID)
}

// Texture is what the core hands the UI each frame: the active offscreen
// texture handle and its size in pixels.
type Texture struct {
	ID   TextureID
	Size Extent
}

// Overlay is the immediate-mode UI boundary.
type Overlay interface {
	// PanelSize returns the pixel size the UI wants for the offscreen panel
	// this frame.
	PanelSize(window Extent) Extent
	Record(cmd CommandBuffer, target Framebuffer, tex Texture) error
}

// RenderTarget is what a scene pass draws into.
type RenderTarget interface {
	Framebuffer() Framebuffer
	Extent() Extent
}

type SceneRecorder interface {
	Record(cmd CommandBuffer, target RenderTarget, seconds float64) error
}

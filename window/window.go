// Package window adapts an SDL2 window to the frame driver's window
// boundary.
package window

import (
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/vkngwrapper/vulkan-mvp/frame"
)

var _ frame.Window = (*Window)(nil)

type Options struct {
	Title  string
	Width  int
	Height int
	Logger *slog.Logger
}

// Window must be created and used from the thread that initialized SDL.
type Window struct {
	window  *sdl.Window
	log     *slog.Logger
	resized bool
	closed  bool
}

func New(opts Options) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "initialize sdl")
	}

	window, err := sdl.CreateWindow(opts.Title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(opts.Width), int32(opts.Height),
		sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE|sdl.WINDOW_ALLOW_HIGHDPI)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "create window")
	}

	w := &Window{window: window, log: opts.Logger}
	if w.log == nil {
		w.log = slog.Default()
	}
	return w, nil
}

// SDL exposes the underlying window for surface creation.
func (w *Window) SDL() *sdl.Window {
	return w.window
}

// FramebufferSize is the drawable size in pixels, or zero while minimized.
func (w *Window) FramebufferSize() frame.Extent {
	if (w.window.GetFlags() & sdl.WINDOW_MINIMIZED) != 0 {
		return frame.Extent{}
	}

	width, height := w.window.VulkanGetDrawableSize()
	return frame.Extent{Width: int(width), Height: int(height)}
}

func (w *Window) PollEvents() bool {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.handle(event)
	}
	return !w.closed
}

// WaitEvents blocks until at least one event arrives, then drains the rest.
func (w *Window) WaitEvents() {
	event := sdl.WaitEvent()
	if event != nil {
		w.handle(event)
	}
	w.PollEvents()
}

func (w *Window) handle(event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		w.closed = true
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			w.resized = true
			w.log.Debug("window resized", slog.Int("width", int(e.Data1)), slog.Int("height", int(e.Data2)))
		case sdl.WINDOWEVENT_CLOSE:
			w.closed = true
		}
	}
}

func (w *Window) TakeResized() bool {
	resized := w.resized
	w.resized = false
	return resized
}

func (w *Window) SetTitle(title string) {
	w.window.SetTitle(title)
}

func (w *Window) Close() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	sdl.Quit()
}

package frame

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
)

type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateRecording
	StateSubmitting
	StatePresenting
	StateRebuildSurface
	StateRebuildOffscreen
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAcquiring:
		return "Acquiring"
	case StateRecording:
		return "Recording"
	case StateSubmitting:
		return "Submitting"
	case StatePresenting:
		return "Presenting"
	case StateRebuildSurface:
		return "RebuildSurface"
	case StateRebuildOffscreen:
		return "RebuildOffscreen"
	}
	return "Unknown"
}

// Outcome says how one iteration of the frame loop ended.
type Outcome int

const (
	// OutcomeSuspended: the window had zero area; nothing was acquired and
	// the sequence number did not advance.
	OutcomeSuspended Outcome = iota
	// OutcomeSurfaceRebuilt: image acquisition found the surface stale, it
	// was rebuilt and nothing was rendered or presented.
	OutcomeSurfaceRebuilt
	OutcomePresented
	// OutcomePresentedStale: the frame was presented but the surface is
	// marked for rebuild at the start of the next iteration.
	OutcomePresentedStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuspended:
		return "suspended"
	case OutcomeSurfaceRebuilt:
		return "surface-rebuilt"
	case OutcomePresented:
		return "presented"
	case OutcomePresentedStale:
		return "presented-stale"
	}
	return "unknown"
}

type Options struct {
	FramesInFlight int
	OffscreenSize  Extent
	Logger         *slog.Logger
	// Clock returns seconds since an arbitrary start. Defaults to a
	// high-resolution clock started when the driver is created.
	Clock func() float64
	// OnFrame, if set, is called by Run after every iteration.
	OnFrame func(outcome Outcome, stats Stats)
}

type Stats struct {
	Sequence       uint64
	Slot           int
	Slots          int
	SurfaceExtent  Extent
	SurfaceImages  int
	OffscreenSize  Extent
	SurfaceRebuilt int
}

func (s Stats) String() string {
	return fmt.Sprintf("frame %d/%d | swapchain %dx%d (images=%d) | offscreen %dx%d",
		s.Slot, s.Slots,
		s.SurfaceExtent.Width, s.SurfaceExtent.Height, s.SurfaceImages,
		s.OffscreenSize.Width, s.OffscreenSize.Height)
}

// Driver runs the per-frame sequence: wait for a slot, acquire an image,
// record the scene and UI passes, submit and present. It owns the surface,
// the slot pool and one offscreen target per slot.
type Driver struct {
	dev     Device
	win     Window
	scene   SceneRecorder
	overlay Overlay
	log     *slog.Logger
	clock   func() float64
	onFrame func(Outcome, Stats)

	surface *Surface
	slots   *SlotPool
	targets []*OffscreenTarget

	seq          uint64
	state        State
	surfaceStale bool
	rebuilds     int
}

func NewDriver(opts Options, dev Device, win Window, scene SceneRecorder, overlay Overlay, textures TextureRegistry) (*Driver, error) {
	if opts.FramesInFlight < 1 {
		return nil, errors.Errorf("frame driver: frames in flight must be positive, got %d", opts.FramesInFlight)
	}

	d := &Driver{
		dev:     dev,
		win:     win,
		scene:   scene,
		overlay: overlay,
		log:     opts.Logger,
		clock:   opts.Clock,
		onFrame: opts.OnFrame,
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	if d.clock == nil {
		start := hrtime.Now()
		d.clock = func() float64 {
			return hrtime.Since(start).Seconds()
		}
	}

	size := win.FramebufferSize()
	for size.Empty() {
		win.WaitEvents()
		size = win.FramebufferSize()
	}

	var err error
	d.surface, err = NewSurface(dev, size)
	if err != nil {
		return nil, err
	}

	d.slots, err = NewSlotPool(dev, opts.FramesInFlight)
	if err != nil {
		d.surface.Destroy()
		return nil, err
	}

	d.targets = make([]*OffscreenTarget, opts.FramesInFlight)
	for i := range d.targets {
		d.targets[i], err = NewOffscreenTarget(dev, textures, opts.OffscreenSize)
		if err != nil {
			d.destroy()
			return nil, errors.Wrapf(err, "create offscreen target %d", i)
		}
	}

	d.log.Info("frame driver ready",
		slog.Int("slots", opts.FramesInFlight),
		slog.Int("width", d.surface.Extent().Width),
		slog.Int("height", d.surface.Extent().Height),
		slog.Int("images", d.surface.ImageCount()),
	)

	return d, nil
}

func (d *Driver) setState(state State) {
	if d.log.Enabled(context.Background(), slog.LevelDebug) {
		d.log.Debug("frame state", slog.Uint64("seq", d.seq), slog.String("from", d.state.String()), slog.String("to", state.String()))
	}
	d.state = state
}

func (d *Driver) State() State {
	return d.state
}

func (d *Driver) Sequence() uint64 {
	return d.seq
}

func (d *Driver) Surface() *Surface {
	return d.surface
}

// Target returns the offscreen target owned by slot index i.
func (d *Driver) Target(i int) *OffscreenTarget {
	return d.targets[i]
}

func (d *Driver) Stats() Stats {
	slot := d.slots.Index(d.seq)
	return Stats{
		Sequence:       d.seq,
		Slot:           slot,
		Slots:          d.slots.Size(),
		SurfaceExtent:  d.surface.Extent(),
		SurfaceImages:  d.surface.ImageCount(),
		OffscreenSize:  d.targets[slot].Extent(),
		SurfaceRebuilt: d.rebuilds,
	}
}

// Frame runs one iteration of the frame loop.
func (d *Driver) Frame() (Outcome, error) {
	size := d.win.FramebufferSize()
	if size.Empty() {
		d.win.WaitEvents()
		return OutcomeSuspended, nil
	}

	if d.surfaceStale {
		err := d.rebuildSurface(size)
		if err != nil {
			return 0, err
		}
	}

	d.setState(StateAcquiring)
	slot, err := d.slots.Acquire(d.seq)
	if err != nil {
		return 0, err
	}

	imageIndex, err := d.surface.AcquireNextImage(slot.AcquireSignal)
	if errors.Is(err, ErrStale) {
		d.slots.Release(slot)
		err = d.rebuildSurface(size)
		if err != nil {
			return 0, err
		}
		d.advance()
		return OutcomeSurfaceRebuilt, nil
	} else if err != nil {
		return 0, err
	}

	target := d.targets[slot.Index]
	panel := d.overlay.PanelSize(size)
	if panel.Clamped() != target.Extent() {
		d.setState(StateRebuildOffscreen)
		_, err = target.ResizeIfNeeded(panel)
		if err != nil {
			return 0, errors.Wrapf(err, "resize offscreen target %d", slot.Index)
		}
		d.log.Debug("offscreen target resized", slog.Int("slot", slot.Index), slog.Int("width", target.Extent().Width), slog.Int("height", target.Extent().Height))
	}

	d.setState(StateRecording)
	err = d.slots.BeginRecording(slot)
	if err != nil {
		return 0, err
	}

	err = d.scene.Record(slot.Commands, target, d.clock())
	if err != nil {
		return 0, errors.Wrap(err, "record scene pass")
	}

	err = d.overlay.Record(slot.Commands, d.surface.Framebuffer(imageIndex), target.Texture())
	if err != nil {
		return 0, errors.Wrap(err, "record ui pass")
	}

	d.setState(StateSubmitting)
	err = d.slots.Submit(slot, d.dev.GraphicsQueue())
	if err != nil {
		return 0, err
	}

	d.setState(StatePresenting)
	outcome := OutcomePresented
	err = d.surface.Present(imageIndex, slot.SubmitSignal)
	resized := d.win.TakeResized()
	if errors.Is(err, ErrStale) || resized {
		// The image just presented may still be in use; rebuild next time.
		d.surfaceStale = true
		outcome = OutcomePresentedStale
	} else if err != nil {
		return 0, err
	}

	d.advance()
	return outcome, nil
}

func (d *Driver) advance() {
	d.seq++
	d.setState(StateIdle)
}

func (d *Driver) rebuildSurface(size Extent) error {
	d.setState(StateRebuildSurface)

	err := d.dev.WaitIdle()
	if err != nil {
		return errors.Wrap(err, "wait for device idle before surface rebuild")
	}

	err = d.surface.Recreate(size)
	if err != nil {
		return err
	}

	d.win.TakeResized()
	d.surfaceStale = false
	d.rebuilds++

	d.log.Info("surface rebuilt",
		slog.Int("width", d.surface.Extent().Width),
		slog.Int("height", d.surface.Extent().Height),
		slog.Int("images", d.surface.ImageCount()),
	)
	return nil
}

// Run drives frames until the window is closed or ctx is canceled, then
// waits for the device to finish outstanding work.
func (d *Driver) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		if !d.win.PollEvents() {
			break
		}

		outcome, err := d.Frame()
		if err != nil {
			return err
		}

		if d.onFrame != nil {
			d.onFrame(outcome, d.Stats())
		}
	}

	return errors.Wrap(d.dev.WaitIdle(), "wait for device idle")
}

// Close waits for the device and releases everything the driver owns.
func (d *Driver) Close() error {
	err := d.dev.WaitIdle()
	d.destroy()
	return errors.Wrap(err, "wait for device idle")
}

func (d *Driver) destroy() {
	for i, target := range d.targets {
		if target != nil {
			target.Destroy()
			d.targets[i] = nil
		}
	}

	if d.slots != nil {
		d.slots.Destroy()
	}

	if d.surface != nil {
		d.surface.Destroy()
	}
}

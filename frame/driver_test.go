package frame

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type driverFixture struct {
	dev      *fakeDevice
	win      *fakeWindow
	scene    *fakeScene
	overlay  *fakeOverlay
	textures *fakeTextures
	driver   *Driver
}

func newDriverFixture(t *testing.T, slots int) *driverFixture {
	t.Helper()

	f := &driverFixture{
		dev:     newFakeDevice(),
		win:     &fakeWindow{size: Extent{Width: 1600, Height: 900}},
		scene:   &fakeScene{},
		overlay: &fakeOverlay{panel: Extent{Width: 1280, Height: 720}},
	}
	f.textures = newFakeTextures(f.dev)

	driver, err := NewDriver(Options{
		FramesInFlight: slots,
		OffscreenSize:  Extent{Width: 1280, Height: 720},
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:          func() float64 { return 1.5 },
	}, f.dev, f.win, f.scene, f.overlay, f.textures)
	require.NoError(t, err)
	f.driver = driver

	t.Cleanup(func() {
		assert.NoError(t, driver.Close())
	})
	return f
}

func (f *driverFixture) presents() int {
	n := 0
	for _, call := range f.dev.log() {
		if strings.HasPrefix(call, "Present ") {
			n++
		}
	}
	return n
}

func TestDriverPresentsFrame(t *testing.T) {
	f := newDriverFixture(t, 2)
	f.dev.autoComplete = true

	outcome, err := f.driver.Frame()
	require.NoError(t, err)
	assert.Equal(t, OutcomePresented, outcome)
	assert.Equal(t, uint64(1), f.driver.Sequence())
	assert.Equal(t, StateIdle, f.driver.State())

	cmd := f.dev.submissions[0].Commands.(*fakeCommands)
	target := f.driver.Target(0)
	assert.Equal(t, []string{
		"Begin",
		"BeginPass " + target.Framebuffer().(*fakeFramebuffer).name,
		"Draw 36",
		"EndPass",
		"BeginPass " + f.driver.Surface().Framebuffer(0).(*fakeFramebuffer).name,
		"Draw 6",
		"EndPass",
		"End",
	}, cmd.recorded)
	assert.Equal(t, 1, f.presents())
}

// With K slots and a device that only completes work on tick, no more than
// K submissions are ever outstanding.
func TestDriverBackpressure(t *testing.T) {
	const slots = 2
	f := newDriverFixture(t, slots)

	frames := make(chan error)
	go func() {
		for i := 0; i < 10; i++ {
			_, err := f.driver.Frame()
			frames <- err
		}
	}()

	for completed := 0; completed < 10; {
		select {
		case err := <-frames:
			require.NoError(t, err)
			completed++
		case <-time.After(20 * time.Millisecond):
			f.dev.tick()
		}
		assert.LessOrEqual(t, f.dev.outstanding(), slots)
	}

	assert.LessOrEqual(t, f.dev.maxOutstanding, slots)
	assert.Equal(t, slots, f.dev.maxOutstanding)
}

// Pool of two; iteration three waits on slot 0 until its work is ticked.
func TestDriverThirdFrameWaitsForFirstSlot(t *testing.T) {
	f := newDriverFixture(t, 2)

	for i := 0; i < 2; i++ {
		outcome, err := f.driver.Frame()
		require.NoError(t, err)
		assert.Equal(t, OutcomePresented, outcome)
	}
	require.Equal(t, 2, f.dev.outstanding())

	done := make(chan error, 1)
	go func() {
		_, err := f.driver.Frame()
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("third frame ran before slot 0 completed")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Len(t, f.dev.submissions, 2)

	// Completes iteration one's submission, which belongs to slot 0.
	f.dev.tick()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("third frame did not resume after slot 0 completed")
	}
	require.Len(t, f.dev.submissions, 3)
	assert.Same(t, f.dev.submissions[0].Commands, f.dev.submissions[2].Commands)
}

func TestDriverRebuildsOnStaleAcquire(t *testing.T) {
	f := newDriverFixture(t, 2)
	f.dev.autoComplete = true
	f.dev.staleAcquire[5] = true

	for i := 1; i <= 4; i++ {
		outcome, err := f.driver.Frame()
		require.NoError(t, err)
		require.Equal(t, OutcomePresented, outcome)
	}
	require.Equal(t, 4, f.presents())

	outcome, err := f.driver.Frame()
	require.NoError(t, err)
	assert.Equal(t, OutcomeSurfaceRebuilt, outcome)
	assert.Equal(t, 4, f.presents(), "no present for the stale iteration")
	assert.Len(t, f.dev.swapchains, 2)
	assert.Len(t, f.dev.submissions, 4)

	outcome, err = f.driver.Frame()
	require.NoError(t, err)
	assert.Equal(t, OutcomePresented, outcome)
	assert.Equal(t, 5, f.presents())
	assert.Contains(t, f.dev.log()[len(f.dev.log())-1], f.dev.swapchains[1].name)
}

func TestDriverDefersRebuildAfterStalePresent(t *testing.T) {
	f := newDriverFixture(t, 2)
	f.dev.autoComplete = true
	f.dev.stalePresent[1] = true

	outcome, err := f.driver.Frame()
	require.NoError(t, err)
	assert.Equal(t, OutcomePresentedStale, outcome)
	assert.Len(t, f.dev.swapchains, 1, "rebuild must wait for the next iteration")

	outcome, err = f.driver.Frame()
	require.NoError(t, err)
	assert.Equal(t, OutcomePresented, outcome)
	require.Len(t, f.dev.swapchains, 2)

	log := f.dev.log()
	waitIdle := -1
	for i, call := range log {
		if call == "WaitIdle" {
			waitIdle = i
		}
	}
	assert.Less(t, waitIdle, f.dev.indexOf("DestroySwapchain "+f.dev.swapchains[0].name))
}

func TestDriverResizeRebuildsSurface(t *testing.T) {
	f := newDriverFixture(t, 2)
	f.dev.autoComplete = true

	_, err := f.driver.Frame()
	require.NoError(t, err)

	f.win.resize(Extent{Width: 1024, Height: 600})
	outcome, err := f.driver.Frame()
	require.NoError(t, err)
	assert.Equal(t, OutcomePresentedStale, outcome)

	_, err = f.driver.Frame()
	require.NoError(t, err)

	surface := f.driver.Surface()
	assert.Equal(t, Extent{Width: 1024, Height: 600}, surface.Extent())
	assert.Equal(t, surface.ImageCount(), surface.FramebufferCount())

	// Window resizes leave offscreen targets alone.
	for i := 0; i < 2; i++ {
		assert.Equal(t, Extent{Width: 1280, Height: 720}, f.driver.Target(i).Extent())
	}
}

func TestDriverSuspendsOnZeroArea(t *testing.T) {
	f := newDriverFixture(t, 2)
	f.dev.autoComplete = true

	_, err := f.driver.Frame()
	require.NoError(t, err)
	seq := f.driver.Sequence()
	swapchains := len(f.dev.swapchains)

	f.win.resize(Extent{})
	for i := 0; i < 3; i++ {
		outcome, err := f.driver.Frame()
		require.NoError(t, err)
		assert.Equal(t, OutcomeSuspended, outcome)
	}
	assert.Equal(t, seq, f.driver.Sequence())
	assert.Equal(t, 3, f.win.waits)
	assert.Len(t, f.dev.swapchains, swapchains, "no rebuild while minimised")

	f.win.resize(Extent{Width: 640, Height: 480})
	_, err = f.driver.Frame()
	require.NoError(t, err)
	_, err = f.driver.Frame()
	require.NoError(t, err)
	assert.Equal(t, Extent{Width: 640, Height: 480}, f.driver.Surface().Extent())
}

func TestDriverWaitsForNonzeroWindowAtStartup(t *testing.T) {
	dev := newFakeDevice()
	win := &fakeWindow{onWait: func(w *fakeWindow) {
		if w.waits == 2 {
			w.size = Extent{Width: 300, Height: 200}
		}
	}}

	driver, err := NewDriver(Options{FramesInFlight: 2, OffscreenSize: Extent{Width: 10, Height: 10}},
		dev, win, &fakeScene{}, &fakeOverlay{panel: Extent{Width: 10, Height: 10}}, newFakeTextures(dev))
	require.NoError(t, err)
	defer driver.Close()

	assert.Equal(t, 2, win.waits)
	assert.Equal(t, Extent{Width: 300, Height: 200}, driver.Surface().Extent())
}

func TestDriverResizesOnlyActiveSlotTarget(t *testing.T) {
	f := newDriverFixture(t, 2)
	f.dev.autoComplete = true

	f.overlay.panel = Extent{Width: 500, Height: 400}
	surfaceBefore := f.driver.Surface().Extent()

	_, err := f.driver.Frame()
	require.NoError(t, err)
	assert.Equal(t, Extent{Width: 500, Height: 400}, f.driver.Target(0).Extent())
	assert.Equal(t, Extent{Width: 1280, Height: 720}, f.driver.Target(1).Extent(), "other slots rebuild lazily")
	assert.Equal(t, surfaceBefore, f.driver.Surface().Extent())

	_, err = f.driver.Frame()
	require.NoError(t, err)
	assert.Equal(t, Extent{Width: 500, Height: 400}, f.driver.Target(1).Extent())
	assert.Equal(t, surfaceBefore, f.driver.Surface().Extent())
	assert.Equal(t, 0, f.dev.waitIdles, "offscreen rebuild needs no device-wide stall")
}

func TestDriverPairsSceneAndUIBySlot(t *testing.T) {
	const slots = 3
	f := newDriverFixture(t, slots)
	f.dev.autoComplete = true

	for i := 0; i < 9; i++ {
		if i == 4 {
			f.overlay.panel = Extent{Width: 200, Height: 100}
		}
		_, err := f.driver.Frame()
		require.NoError(t, err)
	}

	require.Len(t, f.scene.calls, 9)
	require.Len(t, f.overlay.calls, 9)
	for s := 0; s < 9; s++ {
		scene := f.scene.calls[s]
		ui := f.overlay.calls[s]

		assert.Same(t, f.driver.Target(s%slots), scene.target, "frame %d", s)
		assert.Equal(t, scene.cmd, ui.cmd, "frame %d", s)
		assert.Equal(t, scene.texture, ui.texture.ID, "frame %d reads another slot's texture", s)
		assert.Equal(t, scene.extent, ui.texture.Size, "frame %d", s)
	}
}

func TestDriverRunStopsOnCancel(t *testing.T) {
	f := newDriverFixture(t, 2)
	f.dev.autoComplete = true

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, f.driver.Run(ctx))
	assert.Equal(t, uint64(0), f.driver.Sequence())
}

func TestDriverRunReportsEachFrame(t *testing.T) {
	dev := newFakeDevice()
	dev.autoComplete = true
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var seen []Stats
	driver, err := NewDriver(Options{
		FramesInFlight: 2,
		OffscreenSize:  Extent{Width: 64, Height: 64},
		OnFrame: func(outcome Outcome, stats Stats) {
			assert.Equal(t, OutcomePresented, outcome)
			seen = append(seen, stats)
			if len(seen) == 3 {
				cancel()
			}
		},
	}, dev, &fakeWindow{size: Extent{Width: 320, Height: 240}}, &fakeScene{}, &fakeOverlay{panel: Extent{Width: 64, Height: 64}}, newFakeTextures(dev))
	require.NoError(t, err)
	defer driver.Close()

	require.NoError(t, driver.Run(ctx))
	require.Len(t, seen, 3)
	assert.Equal(t, []int{1, 0, 1}, []int{seen[0].Slot, seen[1].Slot, seen[2].Slot})
	assert.Equal(t, "frame 1/2 | swapchain 320x240 (images=3) | offscreen 64x64", seen[2].String())
}

func TestDriverStats(t *testing.T) {
	f := newDriverFixture(t, 2)
	f.dev.autoComplete = true

	_, err := f.driver.Frame()
	require.NoError(t, err)

	stats := f.driver.Stats()
	assert.Equal(t, uint64(1), stats.Sequence)
	assert.Equal(t, 1, stats.Slot)
	assert.Equal(t, 2, stats.Slots)
	assert.Equal(t, Extent{Width: 1600, Height: 900}, stats.SurfaceExtent)
	assert.Equal(t, 3, stats.SurfaceImages)
	assert.Equal(t, Extent{Width: 1280, Height: 720}, stats.OffscreenSize)
}

func TestDriverCloseReleasesEverything(t *testing.T) {
	dev := newFakeDevice()
	textures := newFakeTextures(dev)
	driver, err := NewDriver(Options{FramesInFlight: 2, OffscreenSize: Extent{Width: 8, Height: 8}},
		dev, &fakeWindow{size: Extent{Width: 100, Height: 100}}, &fakeScene{}, &fakeOverlay{panel: Extent{Width: 8, Height: 8}}, textures)
	require.NoError(t, err)

	require.NoError(t, driver.Close())
	assert.Empty(t, textures.live)
	assert.Equal(t, 1, dev.count("DestroySwapchain swapchain1"))

	freed, fences := 0, 0
	for _, call := range dev.log() {
		if strings.HasPrefix(call, "FreeCommands ") {
			freed++
		}
		if strings.HasPrefix(call, "DestroyFence ") {
			fences++
		}
	}
	assert.Equal(t, 2, freed)
	assert.Equal(t, 2, fences)
}

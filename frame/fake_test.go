package frame

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// fakeDevice stands in for a GPU. Submitted work only completes when the
// test calls tick (or immediately when autoComplete is set), and every
// resource call is appended to a shared log so tests can assert ordering.
type fakeDevice struct {
	mu   sync.Mutex
	cond *sync.Cond

	calls  []string
	nextID int

	support SurfaceSupport

	autoComplete   bool
	pending        []*fakeFence
	submissions    []Submission
	maxOutstanding int

	acquires     int
	presents     int
	staleAcquire map[int]bool
	stalePresent map[int]bool
	nextImage    int

	swapchains []*fakeSwapchain
	waitIdles  int

	failImageAfter int
	imagesCreated  int
}

func newFakeDevice() *fakeDevice {
	dev := &fakeDevice{
		support: SurfaceSupport{
			Capabilities: SurfaceCapabilities{
				MinImageCount:  2,
				MaxImageCount:  3,
				CurrentExtent:  Extent{Width: -1, Height: -1},
				MinImageExtent: Extent{Width: 1, Height: 1},
				MaxImageExtent: Extent{Width: 16384, Height: 16384},
			},
			Formats: []SurfaceFormat{
				{Format: FormatB8G8R8A8UNorm, ColorSpace: ColorSpaceSRGBNonlinear},
				{Format: FormatB8G8R8A8SRGB, ColorSpace: ColorSpaceSRGBNonlinear},
			},
			PresentModes: []PresentMode{PresentModeFIFO, PresentModeMailbox},
		},
		staleAcquire:   map[int]bool{},
		stalePresent:   map[int]bool{},
		failImageAfter: -1,
	}
	dev.cond = sync.NewCond(&dev.mu)
	return dev
}

func (d *fakeDevice) record(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *fakeDevice) id(prefix string) string {
	d.nextID++
	return fmt.Sprintf("%s%d", prefix, d.nextID)
}

func (d *fakeDevice) log() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *fakeDevice) indexOf(call string) int {
	for i, c := range d.log() {
		if c == call {
			return i
		}
	}
	return -1
}

func (d *fakeDevice) count(call string) int {
	n := 0
	for _, c := range d.log() {
		if c == call {
			n++
		}
	}
	return n
}

func (d *fakeDevice) outstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// tick completes the oldest outstanding submission.
func (d *fakeDevice) tick() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pending) == 0 {
		return
	}
	fence := d.pending[0]
	d.pending = d.pending[1:]
	fence.signaled = true
	d.cond.Broadcast()
}

func (d *fakeDevice) WaitIdle() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.waitIdles++
	d.record("WaitIdle")
	for _, fence := range d.pending {
		fence.signaled = true
	}
	d.pending = nil
	d.cond.Broadcast()
	return nil
}

func (d *fakeDevice) SurfaceSupport() (SurfaceSupport, error) {
	return d.support, nil
}

func (d *fakeDevice) CreateSwapchain(cfg SwapchainConfig) (Swapchain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sc := &fakeSwapchain{dev: d, name: d.id("swapchain"), cfg: cfg}
	for i := 0; i < cfg.ImageCount; i++ {
		sc.images = append(sc.images, &fakeView{name: d.id("scimage"), extent: cfg.Extent})
	}
	d.swapchains = append(d.swapchains, sc)
	d.record("CreateSwapchain %s %dx%d", sc.name, cfg.Extent.Width, cfg.Extent.Height)
	return sc, nil
}

func (d *fakeDevice) CreateFramebuffer(pass Pass, attachments []ImageView, extent Extent) (Framebuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fb := &fakeFramebuffer{dev: d, name: d.id("fb"), pass: pass, extent: extent, attachments: attachments}
	d.record("CreateFramebuffer %s", fb.name)
	return fb, nil
}

func (d *fakeDevice) CreateImage(cfg ImageConfig) (Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failImageAfter >= 0 && d.imagesCreated >= d.failImageAfter {
		return nil, errors.New("out of device memory")
	}
	d.imagesCreated++
	name := d.id("image")
	img := &fakeImage{dev: d, name: name, usage: cfg.Usage, view: &fakeView{name: name + "view", extent: cfg.Extent}}
	d.record("CreateImage %s", name)
	return img, nil
}

func (d *fakeDevice) CreateSemaphore() (Semaphore, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &fakeSemaphore{dev: d, name: d.id("sem")}, nil
}

func (d *fakeDevice) CreateFence(signaled bool) (Fence, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &fakeFence{dev: d, name: d.id("fence"), signaled: signaled}, nil
}

func (d *fakeDevice) AllocateCommandBuffer() (CommandBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return &fakeCommands{dev: d, name: d.id("cmd")}, nil
}

func (d *fakeDevice) GraphicsQueue() Queue {
	return fakeQueue{dev: d}
}

type fakeQueue struct {
	dev *fakeDevice
}

func (q fakeQueue) Submit(work Submission) error {
	d := q.dev
	d.mu.Lock()
	defer d.mu.Unlock()

	fence := work.Fence.(*fakeFence)
	if fence.signaled {
		return errors.New("submit with a signaled fence")
	}
	d.submissions = append(d.submissions, work)
	d.record("Submit %s", work.Commands.(*fakeCommands).name)

	if d.autoComplete {
		fence.signaled = true
		d.cond.Broadcast()
		return nil
	}

	d.pending = append(d.pending, fence)
	if len(d.pending) > d.maxOutstanding {
		d.maxOutstanding = len(d.pending)
	}
	return nil
}

type fakeFence struct {
	dev      *fakeDevice
	name     string
	signaled bool
}

func (f *fakeFence) Wait() error {
	f.dev.mu.Lock()
	defer f.dev.mu.Unlock()
	for !f.signaled {
		f.dev.cond.Wait()
	}
	return nil
}

func (f *fakeFence) Reset() error {
	f.dev.mu.Lock()
	defer f.dev.mu.Unlock()
	f.signaled = false
	return nil
}

func (f *fakeFence) Destroy() {
	f.dev.mu.Lock()
	defer f.dev.mu.Unlock()
	f.dev.record("DestroyFence %s", f.name)
}

type fakeSemaphore struct {
	dev  *fakeDevice
	name string
}

func (s *fakeSemaphore) Destroy() {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	s.dev.record("DestroySemaphore %s", s.name)
}

type fakeView struct {
	name   string
	extent Extent
}

func (v *fakeView) Extent() Extent {
	return v.extent
}

type fakeImage struct {
	dev   *fakeDevice
	name  string
	usage ImageUsage
	view  *fakeView
}

func (i *fakeImage) View() ImageView {
	return i.view
}

func (i *fakeImage) Destroy() {
	i.dev.mu.Lock()
	defer i.dev.mu.Unlock()
	i.dev.record("DestroyImage %s", i.name)
}

type fakeFramebuffer struct {
	dev         *fakeDevice
	name        string
	pass        Pass
	extent      Extent
	attachments []ImageView
}

func (f *fakeFramebuffer) Extent() Extent {
	return f.extent
}

func (f *fakeFramebuffer) Destroy() {
	f.dev.mu.Lock()
	defer f.dev.mu.Unlock()
	f.dev.record("DestroyFramebuffer %s", f.name)
}

type fakeSwapchain struct {
	dev    *fakeDevice
	name   string
	cfg    SwapchainConfig
	images []ImageView
}

func (s *fakeSwapchain) Images() []ImageView {
	return s.images
}

func (s *fakeSwapchain) AcquireNextImage(signal Semaphore) (int, error) {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	d.acquires++
	if d.staleAcquire[d.acquires] {
		d.record("AcquireStale %s", s.name)
		return 0, errors.Wrap(ErrStale, "fake acquire")
	}
	index := d.nextImage % len(s.images)
	d.nextImage++
	d.record("Acquire %s %d", s.name, index)
	return index, nil
}

func (s *fakeSwapchain) Present(index int, wait Semaphore) error {
	d := s.dev
	d.mu.Lock()
	defer d.mu.Unlock()
	d.presents++
	d.record("Present %s %d", s.name, index)
	if d.stalePresent[d.presents] {
		return errors.Wrap(ErrStale, "fake present")
	}
	return nil
}

func (s *fakeSwapchain) Destroy() {
	s.dev.mu.Lock()
	defer s.dev.mu.Unlock()
	s.dev.record("DestroySwapchain %s", s.name)
}

type fakeBinding struct {
	name string
}

func (b *fakeBinding) Release() {}

type fakeCommands struct {
	dev      *fakeDevice
	name     string
	recorded []string
	passes   []Framebuffer
}

func (c *fakeCommands) note(format string, args ...any) {
	c.recorded = append(c.recorded, fmt.Sprintf(format, args...))
}

func (c *fakeCommands) Reset() error {
	c.recorded = nil
	c.passes = nil
	return nil
}

func (c *fakeCommands) Begin() error {
	c.note("Begin")
	return nil
}

func (c *fakeCommands) End() error {
	c.note("End")
	return nil
}

func (c *fakeCommands) BeginPass(target Framebuffer, clear ClearValues) error {
	c.passes = append(c.passes, target)
	c.note("BeginPass %s", target.(*fakeFramebuffer).name)
	return nil
}

func (c *fakeCommands) EndPass() {
	c.note("EndPass")
}

func (c *fakeCommands) SetViewport(extent Extent) {
	c.note("SetViewport %dx%d", extent.Width, extent.Height)
}

func (c *fakeCommands) BindPipeline(pipeline Pipeline) {
	c.note("BindPipeline")
}

func (c *fakeCommands) BindTexture(pipeline Pipeline, texture TextureBinding) {
	c.note("BindTexture %s", texture.(*fakeBinding).name)
}

func (c *fakeCommands) PushConstants(pipeline Pipeline, data any) error {
	c.note("PushConstants")
	return nil
}

func (c *fakeCommands) BindVertexBuffer(buffer Buffer) {
	c.note("BindVertexBuffer")
}

func (c *fakeCommands) Draw(vertexCount int) {
	c.note("Draw %d", vertexCount)
}

func (c *fakeCommands) Free() {
	c.dev.mu.Lock()
	defer c.dev.mu.Unlock()
	c.dev.record("FreeCommands %s", c.name)
}

type fakeTextures struct {
	dev  *fakeDevice
	live map[TextureID]ImageView
}

func newFakeTextures(dev *fakeDevice) *fakeTextures {
	return &fakeTextures{dev: dev, live: map[TextureID]ImageView{}}
}

func (t *fakeTextures) Register(view ImageView) (TextureID, error) {
	id := uuid.New()
	t.live[id] = view
	t.dev.mu.Lock()
	t.dev.record("RegisterTexture %s", view.(*fakeView).name)
	t.dev.mu.Unlock()
	return id, nil
}

func (t *fakeTextures) Unregister(id TextureID) {
	view, ok := t.live[id]
	if !ok {
		return
	}
	delete(t.live, id)
	t.dev.mu.Lock()
	t.dev.record("UnregisterTexture %s", view.(*fakeView).name)
	t.dev.mu.Unlock()
}

type fakeWindow struct {
	mu      sync.Mutex
	size    Extent
	resized bool
	waits   int
	onWait  func(w *fakeWindow)
}

func (w *fakeWindow) FramebufferSize() Extent {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

func (w *fakeWindow) PollEvents() bool {
	return true
}

func (w *fakeWindow) WaitEvents() {
	w.mu.Lock()
	w.waits++
	onWait := w.onWait
	w.mu.Unlock()
	if onWait != nil {
		onWait(w)
	}
}

func (w *fakeWindow) TakeResized() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	resized := w.resized
	w.resized = false
	return resized
}

func (w *fakeWindow) resize(size Extent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.size = size
	w.resized = true
}

type sceneCall struct {
	cmd     string
	target  *OffscreenTarget
	texture TextureID
	extent  Extent
}

type fakeScene struct {
	calls []sceneCall
}

func (s *fakeScene) Record(cmd CommandBuffer, target RenderTarget, seconds float64) error {
	offscreen := target.(*OffscreenTarget)
	s.calls = append(s.calls, sceneCall{
		cmd:     cmd.(*fakeCommands).name,
		target:  offscreen,
		texture: offscreen.Texture().ID,
		extent:  offscreen.Extent(),
	})
	err := cmd.BeginPass(target.Framebuffer(), ClearValues{})
	if err != nil {
		return err
	}
	cmd.Draw(36)
	cmd.EndPass()
	return nil
}

type overlayCall struct {
	cmd     string
	target  Framebuffer
	texture Texture
}

type fakeOverlay struct {
	panel Extent
	calls []overlayCall
}

func (o *fakeOverlay) PanelSize(window Extent) Extent {
	return o.panel
}

func (o *fakeOverlay) Record(cmd CommandBuffer, target Framebuffer, tex Texture) error {
	o.calls = append(o.calls, overlayCall{cmd: cmd.(*fakeCommands).name, target: target, texture: tex})
	err := cmd.BeginPass(target, ClearValues{})
	if err != nil {
		return err
	}
	cmd.Draw(6)
	cmd.EndPass()
	return nil
}

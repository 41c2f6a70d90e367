package display

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"
)

// recorder collects an ordered event log shared by fakes.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
	r.mu.Unlock()
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func (r *recorder) log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// fakeDevice is an in-memory Device counting allocations and clears.
type fakeDevice struct {
	rec *recorder

	created   int
	destroyed int
	clears    []fakeClear
	flushes   int
	maxSize   int
	failNext  bool
}

type fakeClear struct {
	label string
	flags ClearFlags
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{rec: &recorder{}}
}

func (d *fakeDevice) MaxTextureSize() int { return d.maxSize }

func (d *fakeDevice) CreateRenderTarget(desc TextureDescriptor) (DeviceTexture, error) {
	return d.create(desc)
}

func (d *fakeDevice) CreateDepthStencil(desc TextureDescriptor) (DeviceTexture, error) {
	return d.create(desc)
}

func (d *fakeDevice) create(desc TextureDescriptor) (DeviceTexture, error) {
	if d.failNext {
		d.failNext = false
		return nil, errors.New("out of memory")
	}
	d.created++
	d.rec.add("create %s %dx%d", desc.Label, desc.Width, desc.Height)
	s := &fakeSurface{device: d, desc: desc}
	return s.ref(), nil
}

func (d *fakeDevice) ClearSurface(tex DeviceTexture, flags ClearFlags, _ gputypes.Color, _ float32, _ uint32) error {
	t, ok := tex.(*fakeTexture)
	if !ok || t == nil {
		return errors.New("foreign texture")
	}
	d.clears = append(d.clears, fakeClear{label: t.s.desc.Label, flags: flags})
	return nil
}

func (d *fakeDevice) Flush() error {
	d.flushes++
	d.rec.add("flush")
	return nil
}

func (d *fakeDevice) live() int { return d.created - d.destroyed }

type fakeSurface struct {
	device *fakeDevice
	desc   TextureDescriptor
	refs   int
}

func (s *fakeSurface) ref() *fakeTexture {
	s.refs++
	return &fakeTexture{s: s}
}

type fakeTexture struct {
	s    *fakeSurface
	dead bool
}

func (t *fakeTexture) Width() int                     { return t.s.desc.Width }
func (t *fakeTexture) Height() int                    { return t.s.desc.Height }
func (t *fakeTexture) Format() gputypes.TextureFormat { return t.s.desc.Format }
func (t *fakeTexture) Native() any                    { return t.s }
func (t *fakeTexture) Share() DeviceTexture           { return t.s.ref() }

func (t *fakeTexture) Destroy() {
	if t.dead {
		return
	}
	t.dead = true
	t.s.refs--
	if t.s.refs == 0 {
		t.s.device.destroyed++
	}
}

// fakeBackend creates fakeSwapChains on a fakeDevice.
type fakeBackend struct {
	device *fakeDevice
	last   *fakeSwapChain
	fail   error
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) CreateSwapChain(desc SwapChainDescriptor) (SwapChain, error) {
	if b.fail != nil {
		return nil, b.fail
	}
	sc := &fakeSwapChain{device: b.device, desc: desc}
	sc.allocate()
	b.last = sc
	return sc, nil
}

type fakeSwapChain struct {
	device   *fakeDevice
	desc     SwapChainDescriptor
	buffers  []*fakeTexture
	index    int
	latency  int
	presents []int
	released bool

	// resizeErr fails every Resize when set.
	resizeErr error
}

func (s *fakeSwapChain) allocate() {
	s.buffers = nil
	for i := range s.desc.BufferCount {
		res, _ := s.device.create(ColorTargetDescriptor(fmt.Sprintf("sc_buffer%d", i), s.desc.Width, s.desc.Height, s.desc.Format))
		s.buffers = append(s.buffers, res.(*fakeTexture))
	}
	s.index = 0
}

func (s *fakeSwapChain) Descriptor() SwapChainDescriptor { return s.desc }

func (s *fakeSwapChain) Resize(w, h int, fullscreen bool) error {
	if s.resizeErr != nil {
		return s.resizeErr
	}
	for i, b := range s.buffers {
		if b.s.refs > 1 {
			return fmt.Errorf("buffer %d still referenced (%d)", i, b.s.refs)
		}
	}
	s.device.rec.add("resize %dx%d fullscreen=%v", w, h, fullscreen)
	for _, b := range s.buffers {
		b.Destroy()
	}
	s.desc.Width, s.desc.Height, s.desc.Fullscreen = w, h, fullscreen
	s.allocate()
	return nil
}

func (s *fakeSwapChain) Present(interval int) error {
	s.presents = append(s.presents, interval)
	s.index = (s.index + 1) % len(s.buffers)
	return nil
}

func (s *fakeSwapChain) Buffer(i int) (DeviceTexture, error) {
	if i < 0 || i >= len(s.buffers) {
		return nil, ErrIndexOutOfRange
	}
	s.device.rec.add("buffer %d", i)
	return s.buffers[i].Share(), nil
}

func (s *fakeSwapChain) BackBufferIndex() int             { return s.index }
func (s *fakeSwapChain) SetMaximumFrameLatency(frames int) { s.latency = frames }

func (s *fakeSwapChain) Release() {
	for _, b := range s.buffers {
		b.Destroy()
	}
	s.buffers = nil
	s.released = true
}

type fakeWindow struct {
	handle WindowHandle
	bounds image.Rectangle
}

func (w fakeWindow) Handle() WindowHandle    { return w.handle }
func (w fakeWindow) Bounds() image.Rectangle { return w.bounds }

type staticOutputs []Output

func (s staticOutputs) Outputs() ([]Output, error) {
	if len(s) == 0 {
		return nil, ErrNoOutput
	}
	return s, nil
}

var testOutputs = staticOutputs{
	{Index: 0, Name: "left", Bounds: image.Rect(0, 0, 1920, 1080), Refresh: RefreshRate{Numerator: 60, Denominator: 1}},
	{Index: 1, Name: "right", Bounds: image.Rect(1920, 0, 4480, 1440), Refresh: RefreshRate{Numerator: 144, Denominator: 1}},
}

func newTestSwapChainContext(t interface {
	Helper()
	Fatalf(string, ...any)
}, w, h int, flags ContextFlags, opts ...Option) (*SwapChainDisplayContext, *fakeDevice, *fakeBackend) {
	t.Helper()
	dev := newFakeDevice()
	backend := &fakeBackend{device: dev}
	desc := DefaultContextDescriptor("main", w, h)
	desc.Flags = flags
	opts = append([]Option{WithOutputs(testOutputs)}, opts...)
	sc, err := NewSwapChainDisplayContext(dev, backend, fakeWindow{handle: 1, bounds: image.Rect(100, 100, 100+w, 100+h)}, desc, opts...)
	if err != nil {
		t.Fatalf("NewSwapChainDisplayContext() error = %v", err)
	}
	return sc, dev, backend
}

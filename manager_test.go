package display

import (
	"errors"
	"image"
	"sync"
	"testing"
)

func newTestManager(opts ...Option) (*Manager, *fakeDevice, *fakeBackend) {
	dev := newFakeDevice()
	backend := &fakeBackend{device: dev}
	opts = append([]Option{WithBackend(backend), WithOutputs(testOutputs)}, opts...)
	return NewManager(dev, opts...), dev, backend
}

func TestManagerSameWindowSameContext(t *testing.T) {
	m, _, _ := newTestManager()
	win := fakeWindow{handle: 42, bounds: image.Rect(0, 0, 800, 600)}

	a, err := m.CreateSwapChainContext(win, DefaultContextDescriptor("main", 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.CreateSwapChainContext(win, DefaultContextDescriptor("again", 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("second CreateSwapChainContext for the same window returned a new context")
	}
	if got, ok := m.ContextByWindow(42); !ok || got != a {
		t.Errorf("ContextByWindow(42) = %v, %v", got, ok)
	}
	if n := len(m.Contexts()); n != 1 {
		t.Errorf("len(Contexts()) = %d, want 1", n)
	}
}

func TestManagerBaseAndActive(t *testing.T) {
	m, dev, _ := newTestManager()
	main, err := m.CreateSwapChainContext(fakeWindow{handle: 1, bounds: image.Rect(0, 0, 640, 480)}, DefaultContextDescriptor("main", 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	tool, err := m.CreateOffscreenContext(DefaultContextDescriptor("thumbnail", 128, 128))
	if err != nil {
		t.Fatal(err)
	}
	xr, err := m.CreateCustomContext(DefaultContextDescriptor("xr", 0, 0), newExternalBuffers(dev, 2, 64, 64))
	if err != nil {
		t.Fatal(err)
	}

	if m.Base() != main.DisplayContext || m.Active() != main.DisplayContext {
		t.Fatal("first context is not base and active")
	}
	if err := m.SetActive(tool.ID()); err != nil {
		t.Fatal(err)
	}
	if m.Active() != tool {
		t.Error("SetActive did not switch")
	}
	if _, ok := m.SwapChainContext(tool.ID()); ok {
		t.Error("offscreen context reported as swap chain context")
	}
	if got, ok := m.CustomContext(xr.ID()); !ok || got != xr {
		t.Error("CustomContext lookup failed")
	}

	if err := m.Delete(tool.ID()); err != nil {
		t.Fatal(err)
	}
	if m.Active() != main.DisplayContext {
		t.Error("deleting the active context did not activate the base context")
	}
	if err := m.Delete(main.ID()); err != nil {
		t.Fatal(err)
	}
	if m.Base() != xr.DisplayContext {
		t.Error("Base() did not fall back to the oldest remaining context")
	}
	if _, ok := m.ContextByWindow(1); ok {
		t.Error("window mapping kept after Delete")
	}
	if main.State() != StateReleased {
		t.Errorf("deleted context state = %v", main.State())
	}
}

func TestManagerUnknownContext(t *testing.T) {
	m, _, _ := newTestManager()
	if err := m.Delete(999); !errors.Is(err, ErrUnknownContext) {
		t.Errorf("Delete() error = %v, want ErrUnknownContext", err)
	}
	if err := m.SetActive(999); !errors.Is(err, ErrUnknownContext) {
		t.Errorf("SetActive() error = %v, want ErrUnknownContext", err)
	}
	m.RequestHDR(999, true)
	if _, err := m.BeginFrame(); !errors.Is(err, ErrUnknownContext) {
		t.Errorf("BeginFrame() error = %v, want ErrUnknownContext", err)
	}
}

func TestManagerRequestsFromGoroutines(t *testing.T) {
	m, _, backend := newTestManager()
	sc, err := m.CreateSwapChainContext(fakeWindow{handle: 1, bounds: image.Rect(0, 0, 640, 480)}, DefaultContextDescriptor("main", 0, 0))
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RequestVSync(sc.ID(), false)
		}()
	}
	wg.Wait()
	if m.Pending() != 8 {
		t.Fatalf("Pending() = %d, want 8", m.Pending())
	}
	if !sc.VSync() {
		t.Error("request applied before BeginFrame")
	}

	frame, err := m.BeginFrame()
	if err != nil {
		t.Fatal(err)
	}
	if frame != 1 || m.Pending() != 0 {
		t.Errorf("frame = %d, Pending() = %d", frame, m.Pending())
	}
	if sc.VSync() {
		t.Error("vsync request not applied")
	}
	if err := m.EndFrame(); err != nil {
		t.Fatal(err)
	}
	if len(backend.last.presents) != 1 || backend.last.presents[0] != 0 {
		t.Errorf("presents = %v, want [0]", backend.last.presents)
	}
}

func TestManagerRequestOrder(t *testing.T) {
	m, _, _ := newTestManager()
	sc, err := m.CreateSwapChainContext(fakeWindow{handle: 1, bounds: image.Rect(0, 0, 640, 480)}, DefaultContextDescriptor("main", 0, 0))
	if err != nil {
		t.Fatal(err)
	}

	m.RequestResolution(sc.ID(), 800, 600)
	m.RequestFullscreen(sc.ID(), true, 1024, 768)
	m.RequestResolution(sc.ID(), 1280, 720)
	m.RequestFullscreen(sc.ID(), false, 0, 0)
	if _, err := m.BeginFrame(); err != nil {
		t.Fatal(err)
	}

	if w, h := sc.DisplayResolution(); w != 1280 || h != 720 {
		t.Errorf("DisplayResolution() = %dx%d, want last requested 1280x720", w, h)
	}
	if sc.IsFullscreen() {
		t.Error("fullscreen request applied out of order")
	}
}

func TestManagerRequestErrorsJoined(t *testing.T) {
	m, _, _ := newTestManager()
	dc, err := m.CreateOffscreenContext(DefaultContextDescriptor("tool", 64, 64))
	if err != nil {
		t.Fatal(err)
	}
	m.RequestFullscreen(dc.ID(), true, 0, 0)
	m.RequestResolution(dc.ID(), 128, 96)
	if _, err := m.BeginFrame(); err == nil {
		t.Error("fullscreen on an offscreen context succeeded")
	}
	if w, h := dc.DisplayResolution(); w != 128 || h != 96 {
		t.Errorf("later request not applied: %dx%d", w, h)
	}
}

func TestManagerEndFrame(t *testing.T) {
	m, dev, backend := newTestManager()
	sc, err := m.CreateSwapChainContext(fakeWindow{handle: 1, bounds: image.Rect(0, 0, 640, 480)}, DefaultContextDescriptor("main", 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	xr, err := m.CreateCustomContext(DefaultContextDescriptor("xr", 0, 0), newExternalBuffers(dev, 2, 32, 32))
	if err != nil {
		t.Fatal(err)
	}

	for frame := uint64(1); frame <= 3; frame++ {
		if _, err := m.BeginFrame(); err != nil {
			t.Fatal(err)
		}
		if err := xr.Advance(); err != nil {
			t.Fatal(err)
		}
		out := sc.RenderOutput()
		if _, err := out.BeginRendering(Pass{Frame: m.Frame()}); err != nil {
			t.Fatal(err)
		}
		_ = out.EndRendering(Pass{Frame: m.Frame()})
		if err := m.EndFrame(); err != nil {
			t.Fatalf("EndFrame() error = %v", err)
		}
		if !sc.StorableColorOutput().SameResource(sc.CurrentBackBuffer()) {
			t.Errorf("frame %d: swap chain proxy not rotated", frame)
		}
		if !xr.StorableColorOutput().SameResource(xr.CurrentBackBuffer()) {
			t.Errorf("frame %d: custom proxy not rotated", frame)
		}
	}
	if len(backend.last.presents) != 3 {
		t.Errorf("presents = %d, want 3", len(backend.last.presents))
	}
}

func TestManagerThreadChecks(t *testing.T) {
	tripAssertions(t)

	th := NewThread("render")
	defer th.Close()
	m, _, _ := newTestManager(WithThread(th))

	if _, err := m.CreateOffscreenContext(DefaultContextDescriptor("x", 64, 64)); !errors.Is(err, ErrWrongThread) {
		t.Errorf("CreateOffscreenContext off thread error = %v, want ErrWrongThread", err)
	}

	var (
		dc  *DisplayContext
		err error
	)
	if doErr := th.Do(func() {
		dc, err = m.CreateOffscreenContext(DefaultContextDescriptor("x", 64, 64))
	}); doErr != nil {
		t.Fatal(doErr)
	}
	if err != nil {
		t.Fatalf("CreateOffscreenContext on thread error = %v", err)
	}

	// Requests are safe off thread.
	m.RequestResolution(dc.ID(), 96, 96)
	if _, err := m.BeginFrame(); !errors.Is(err, ErrWrongThread) {
		t.Errorf("BeginFrame off thread error = %v", err)
	}
	if err := dc.SetHDR(true); !errors.Is(err, ErrWrongThread) {
		t.Errorf("SetHDR off thread error = %v", err)
	}

	if doErr := th.Do(func() {
		_, err = m.BeginFrame()
		m.Close()
	}); doErr != nil {
		t.Fatal(doErr)
	}
	if err != nil {
		t.Fatalf("BeginFrame on thread error = %v", err)
	}
	if w, h := dc.DisplayResolution(); w != 96 || h != 96 {
		t.Errorf("DisplayResolution() = %dx%d", w, h)
	}
}

func TestManagerClose(t *testing.T) {
	m, dev, backend := newTestManager()
	if _, err := m.CreateSwapChainContext(fakeWindow{handle: 1, bounds: image.Rect(0, 0, 320, 240)}, DefaultContextDescriptor("main", 0, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateOffscreenContext(DefaultContextDescriptor("tool", 64, 64)); err != nil {
		t.Fatal(err)
	}

	m.Close()
	m.Close()
	if len(m.Contexts()) != 0 {
		t.Errorf("contexts after Close = %d", len(m.Contexts()))
	}
	if !backend.last.released {
		t.Error("swap chain not released by Close")
	}
	if dev.live() != 0 {
		t.Errorf("%d textures leaked", dev.live())
	}
	if _, err := m.BeginFrame(); !errors.Is(err, ErrReleased) {
		t.Errorf("BeginFrame after Close error = %v, want ErrReleased", err)
	}
	if _, err := m.CreateOffscreenContext(DefaultContextDescriptor("late", 64, 64)); !errors.Is(err, ErrReleased) {
		t.Errorf("CreateOffscreenContext after Close error = %v, want ErrReleased", err)
	}
}

func TestManagerBackendByName(t *testing.T) {
	dev := newFakeDevice()
	m := NewManager(dev, WithBackendName("missing"))
	_, err := m.CreateSwapChainContext(fakeWindow{handle: 1, bounds: image.Rect(0, 0, 64, 64)}, DefaultContextDescriptor("main", 0, 0))
	var nf *BackendNotFoundError
	if !errors.As(err, &nf) {
		t.Errorf("error = %v, want BackendNotFoundError", err)
	}
}

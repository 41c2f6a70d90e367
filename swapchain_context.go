package display

import (
	"errors"
	"fmt"
	"image"
)

// SwapChainDisplayContext is a DisplayContext presenting to a window through
// a SwapChain.
//
// The context wraps each physical back buffer in a Texture and vends one
// additional proxy Texture whose identity never changes. After every present
// the proxy is rebound to the buffer that is now current, so consumers may
// keep a pointer to StorableColorOutput across frames.
type SwapChainDisplayContext struct {
	*DisplayContext

	backend   SwapChainBackend
	win       Window
	outputs   OutputEnumerator
	swapChain SwapChain
	monitor   Output

	backBuffers []*Texture
	proxy       *Texture
	proxyIndex  int

	fullscreen bool
	vsync      bool
	interval   int
	maxFPS     int
}

// NewSwapChainDisplayContext creates a swap chain for window on backend and
// allocates its back buffers and targets. A zero descriptor size selects the
// window size. If backend is nil, the backend from WithBackend,
// WithBackendName or the registry is used.
func NewSwapChainDisplayContext(device Device, backend SwapChainBackend, window Window, desc ContextDescriptor, opts ...Option) (*SwapChainDisplayContext, error) {
	o := buildOptions(device, opts)
	if err := o.thread.check("NewSwapChainDisplayContext"); err != nil {
		return nil, err
	}
	if window == nil {
		return nil, &PlatformIntegrationError{Op: "create swap chain", Err: fmt.Errorf("nil window")}
	}
	if backend == nil {
		var err error
		if backend, err = resolveBackend(device, o); err != nil {
			return nil, err
		}
	}

	bounds := window.Bounds()
	if desc.Width == 0 && desc.Height == 0 {
		desc.Width, desc.Height = bounds.Dx(), bounds.Dy()
	}
	if !assertf(desc.Width > 0 && desc.Height > 0, "swap chain %q: invalid size %dx%d", desc.Name, desc.Width, desc.Height) {
		return nil, invalidDimensions("NewSwapChainDisplayContext", desc.Width, desc.Height)
	}

	output, err := SelectOutput(o.outputs, bounds)
	if err != nil {
		ValidatorError("no display output for window, using default", "window", window.Handle(), "err", err)
	}

	s := &SwapChainDisplayContext{
		DisplayContext: newDisplayContext(device, desc, o),
		backend:        backend,
		win:            window,
		outputs:        o.outputs,
		monitor:        output,
		proxyIndex:     -1,
		fullscreen:     desc.Flags&FlagFullscreen != 0,
		vsync:          o.config.VSync,
		maxFPS:         o.config.MaxFPS,
	}
	s.surface = s

	sc, err := backend.CreateSwapChain(SwapChainDescriptor{
		Window:      window.Handle(),
		Width:       desc.Width,
		Height:      desc.Height,
		Format:      FormatLDR,
		BufferCount: o.config.BackBufferCount,
		Fullscreen:  s.fullscreen,
		VSync:       s.vsync,
		Output:      output,
	})
	if err != nil {
		return nil, &PlatformIntegrationError{Op: "create swap chain", Err: err}
	}
	s.swapChain = sc
	sc.SetMaximumFrameLatency(o.config.MaxFrameLatency)
	s.interval = ComputePresentInterval(s.vsync, output.Refresh, s.maxFPS, 1)
	s.proxy = NewTexture(nil, ColorTargetDescriptor(s.desc.Name+"_backbuffer", desc.Width, desc.Height, FormatLDR))

	if err := s.allocate(desc.Width, desc.Height); err != nil {
		s.releaseSurface()
		return nil, err
	}
	Logger().Info("swap chain created",
		"backend", backend.Name(), "output", output.String(),
		"buffers", len(s.backBuffers), "interval", s.interval, "fullscreen", s.fullscreen)
	return s, nil
}

func resolveBackend(device Device, o options) (SwapChainBackend, error) {
	switch {
	case o.backend != nil:
		return o.backend, nil
	case o.backendName != "":
		return NewBackendByName(o.backendName, device)
	default:
		return NewBackend(device)
	}
}

// Backend returns the swap chain backend.
func (s *SwapChainDisplayContext) Backend() SwapChainBackend { return s.backend }

// Window returns the presented window.
func (s *SwapChainDisplayContext) Window() Window { return s.win }

// SwapChain returns the native swap chain.
func (s *SwapChainDisplayContext) SwapChain() SwapChain { return s.swapChain }

// Output returns the physical output the window is presented on.
func (s *SwapChainDisplayContext) Output() Output { return s.monitor }

// IsFullscreen reports whether the swap chain is fullscreen.
func (s *SwapChainDisplayContext) IsFullscreen() bool { return s.fullscreen }

// VSync reports whether presentation waits for vertical blank.
func (s *SwapChainDisplayContext) VSync() bool { return s.vsync }

// PresentInterval returns the swap interval passed to Present.
func (s *SwapChainDisplayContext) PresentInterval() int { return s.interval }

// BackBufferProxy returns the stable back-buffer handle.
func (s *SwapChainDisplayContext) BackBufferProxy() *Texture { return s.proxy }

// BackBuffers returns the physical back buffers.
func (s *SwapChainDisplayContext) BackBuffers() []*Texture {
	out := make([]*Texture, len(s.backBuffers))
	copy(out, s.backBuffers)
	return out
}

// AllocateBackBuffers wraps every swap chain buffer in a Texture and binds
// the proxy to the current one.
func (s *SwapChainDisplayContext) AllocateBackBuffers() error {
	if err := s.thread.check("AllocateBackBuffers"); err != nil {
		return err
	}
	if !assertf(len(s.backBuffers) == 0, "AllocateBackBuffers on %q with %d live buffers", s.desc.Name, len(s.backBuffers)) {
		s.releaseBuffers()
	}

	d := s.swapChain.Descriptor()
	buffers := make([]*Texture, 0, d.BufferCount)
	for i := range d.BufferCount {
		res, err := s.swapChain.Buffer(i)
		if err != nil {
			for _, b := range buffers {
				b.Release()
			}
			return &ResourceAllocationError{Label: fmt.Sprintf("%s_buffer%d", s.desc.Name, i), Err: err}
		}
		buffers = append(buffers, WrapTexture(fmt.Sprintf("%s_buffer%d", s.desc.Name, i), res))
	}
	s.backBuffers = buffers
	Logger().Debug("back buffers allocated", "id", s.id, "count", len(buffers), "width", d.Width, "height", d.Height)
	return s.bindProxy()
}

// ReleaseBackBuffers flushes the device and drops every reference to the
// swap chain buffers, including the proxy's. A swap chain may only be
// resized after this.
func (s *SwapChainDisplayContext) ReleaseBackBuffers() error {
	if err := s.thread.check("ReleaseBackBuffers"); err != nil {
		return err
	}
	if len(s.backBuffers) == 0 && !s.proxy.IsBound() {
		return nil
	}
	if err := s.device.Flush(); err != nil {
		Logger().Warn("flush before back buffer release failed", "id", s.id, "err", err)
	}
	s.releaseBuffers()
	return nil
}

func (s *SwapChainDisplayContext) releaseBuffers() {
	s.proxy.Unbind()
	s.proxyIndex = -1
	for _, b := range s.backBuffers {
		b.Release()
	}
	s.backBuffers = nil
}

// bindProxy rebinds the proxy to a new reference of the current back buffer.
func (s *SwapChainDisplayContext) bindProxy() error {
	idx := s.swapChain.BackBufferIndex()
	if idx < 0 || idx >= len(s.backBuffers) {
		assertf(false, "back buffer index %d out of range [0,%d)", idx, len(s.backBuffers))
		return ErrIndexOutOfRange
	}
	s.proxy.Rebind(s.backBuffers[idx].Resource().Share())
	s.proxyIndex = idx
	return nil
}

// SetFullscreen switches between windowed and fullscreen presentation at
// w x h. A zero size keeps the current display resolution.
func (s *SwapChainDisplayContext) SetFullscreen(on bool, w, h int) error {
	if err := s.checkMutable("SetFullscreen"); err != nil {
		return err
	}
	if w == 0 && h == 0 {
		w, h = s.width, s.height
	}
	if on == s.fullscreen && w == s.width && h == s.height {
		return nil
	}
	if !assertf(w > 0 && h > 0, "SetFullscreen on %q: invalid size %dx%d", s.desc.Name, w, h) {
		return invalidDimensions("SetFullscreen", w, h)
	}
	prev := s.fullscreen
	s.fullscreen = on
	if err := s.resize(w, h, image.Rectangle{}, true); err != nil {
		s.fullscreen = prev
		return err
	}
	Logger().Info("fullscreen changed", "id", s.id, "fullscreen", on, "width", s.width, "height", s.height)
	return nil
}

// SetVSync enables or disables vertical sync and recomputes the present interval.
func (s *SwapChainDisplayContext) SetVSync(on bool) error {
	if err := s.checkMutable("SetVSync"); err != nil {
		return err
	}
	s.vsync = on
	s.interval = ComputePresentInterval(on, s.monitor.Refresh, s.maxFPS, s.interval)
	return nil
}

// SetMaxFPS sets the frame rate cap that drives the present interval.
func (s *SwapChainDisplayContext) SetMaxFPS(fps int) error {
	if err := s.checkMutable("SetMaxFPS"); err != nil {
		return err
	}
	s.maxFPS = max(fps, 0)
	s.interval = ComputePresentInterval(s.vsync, s.monitor.Refresh, s.maxFPS, s.interval)
	return nil
}

// SetMaximumFrameLatency sets the number of frames the CPU may queue ahead.
func (s *SwapChainDisplayContext) SetMaximumFrameLatency(frames int) error {
	if err := s.checkMutable("SetMaximumFrameLatency"); err != nil {
		return err
	}
	s.swapChain.SetMaximumFrameLatency(min(max(frames, 1), MaxFrameLatencyLimit))
	return nil
}

// WindowMoved re-selects the physical output after the window moved to
// bounds and recomputes the present interval if the output changed.
func (s *SwapChainDisplayContext) WindowMoved(bounds image.Rectangle) error {
	if err := s.checkMutable("WindowMoved"); err != nil {
		return err
	}
	out, err := SelectOutput(s.outputs, bounds)
	if err != nil {
		ValidatorError("no display output for window, using default", "window", s.win.Handle(), "err", err)
	}
	if out.Index == s.monitor.Index && out.Name == s.monitor.Name {
		return nil
	}
	s.monitor = out
	s.interval = ComputePresentInterval(s.vsync, out.Refresh, s.maxFPS, s.interval)
	Logger().Info("window moved to output", "id", s.id, "output", out.String(), "interval", s.interval)
	return nil
}

// Present presents the current back buffer and rotates the proxy.
func (s *SwapChainDisplayContext) Present() error {
	if err := s.PrePresent(); err != nil {
		return err
	}
	if err := s.swapChain.Present(s.interval); err != nil {
		return &PlatformIntegrationError{Op: "present", Err: err}
	}
	return s.PostPresent()
}

func (s *SwapChainDisplayContext) resizeSurface(w, h int) (int, int, error) {
	if err := s.ReleaseBackBuffers(); err != nil {
		return 0, 0, err
	}
	d := s.swapChain.Descriptor()
	if d.Width != w || d.Height != h || d.Fullscreen != s.fullscreen {
		if err := s.swapChain.Resize(w, h, s.fullscreen); err != nil {
			rerr := &PlatformIntegrationError{Op: "resize swap chain", Err: err}
			// Keep presenting in the previous mode.
			Logger().Warn("swap chain resize failed", "id", s.id, "width", w, "height", h, "err", err)
			if aerr := s.AllocateBackBuffers(); aerr != nil {
				return 0, 0, errors.Join(rerr, aerr)
			}
			return 0, 0, rerr
		}
		d = s.swapChain.Descriptor()
		Logger().Info("swap chain resized", "id", s.id, "width", d.Width, "height", d.Height, "fullscreen", d.Fullscreen)
	}
	if err := s.AllocateBackBuffers(); err != nil {
		return 0, 0, err
	}
	return d.Width, d.Height, nil
}

func (s *SwapChainDisplayContext) currentBackBuffer() *Texture {
	if s.swapChain == nil {
		return nil
	}
	idx := s.swapChain.BackBufferIndex()
	if idx < 0 || idx >= len(s.backBuffers) {
		return nil
	}
	return s.backBuffers[idx]
}

func (s *SwapChainDisplayContext) storableColorOutput() *Texture { return s.proxy }

func (s *SwapChainDisplayContext) ensureCurrent() error {
	if s.proxyIndex == s.swapChain.BackBufferIndex() && s.proxy.IsBound() {
		return nil
	}
	return s.bindProxy()
}

func (s *SwapChainDisplayContext) prePresent() error {
	if !assertf(len(s.backBuffers) > 0, "PrePresent on %q without back buffers", s.desc.Name) {
		return ErrNullTarget
	}
	return nil
}

func (s *SwapChainDisplayContext) postPresent() error {
	if len(s.backBuffers) == 0 {
		return nil
	}
	return s.bindProxy()
}

func (s *SwapChainDisplayContext) releaseSurface() {
	if err := s.ReleaseBackBuffers(); err != nil {
		s.releaseBuffers()
	}
	s.proxy.Release()
	if s.swapChain != nil {
		s.swapChain.Release()
		s.swapChain = nil
	}
}

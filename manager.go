package display

import (
	"errors"
	"fmt"
	"image"
	"sync"
)

// Manager owns the display contexts of a renderer.
//
// Creation, deletion and the frame calls run on the render thread. The
// Request methods are safe to call from any goroutine; queued requests are
// applied in order at the next BeginFrame.
type Manager struct {
	device  Device
	opts    []Option
	o       options
	backend SwapChainBackend

	contexts map[ContextID]*managed
	order    []ContextID
	byWindow map[WindowHandle]ContextID
	active   ContextID
	frame    uint64
	closed   bool

	mu       sync.Mutex
	requests []request
}

type managed struct {
	base   *DisplayContext
	swap   *SwapChainDisplayContext
	custom *CustomDisplayContext
}

type requestKind uint8

const (
	requestResolution requestKind = iota
	requestFullscreen
	requestHDR
	requestVSync
)

func (k requestKind) String() string {
	switch k {
	case requestResolution:
		return "resolution"
	case requestFullscreen:
		return "fullscreen"
	case requestHDR:
		return "hdr"
	case requestVSync:
		return "vsync"
	}
	return "unknown"
}

type request struct {
	kind requestKind
	id   ContextID
	w, h int
	on   bool
}

// NewManager returns a Manager allocating from device. The options are also
// applied to every context the manager creates.
func NewManager(device Device, opts ...Option) *Manager {
	return &Manager{
		device:   device,
		opts:     opts,
		o:        buildOptions(device, opts),
		contexts: make(map[ContextID]*managed),
		byWindow: make(map[WindowHandle]ContextID),
	}
}

// Config returns the normalized configuration.
func (m *Manager) Config() Config { return m.o.config }

// Frame returns the current frame counter.
func (m *Manager) Frame() uint64 { return m.frame }

func (m *Manager) swapChainBackend() (SwapChainBackend, error) {
	if m.backend != nil {
		return m.backend, nil
	}
	b, err := resolveBackend(m.device, m.o)
	if err != nil {
		return nil, err
	}
	m.backend = b
	return b, nil
}

// CreateSwapChainContext creates a context presenting to window. If the
// window already has a context, that context is returned.
func (m *Manager) CreateSwapChainContext(window Window, desc ContextDescriptor) (*SwapChainDisplayContext, error) {
	if err := m.checkOpen("CreateSwapChainContext"); err != nil {
		return nil, err
	}
	if window != nil {
		if id, ok := m.byWindow[window.Handle()]; ok {
			return m.contexts[id].swap, nil
		}
	}
	backend, err := m.swapChainBackend()
	if err != nil {
		return nil, err
	}
	s, err := NewSwapChainDisplayContext(m.device, backend, window, desc, m.opts...)
	if err != nil {
		return nil, err
	}
	m.add(&managed{base: s.DisplayContext, swap: s})
	m.byWindow[window.Handle()] = s.id
	return s, nil
}

// CreateCustomContext creates a context over externally supplied buffers.
func (m *Manager) CreateCustomContext(desc ContextDescriptor, buffers []*Texture) (*CustomDisplayContext, error) {
	if err := m.checkOpen("CreateCustomContext"); err != nil {
		return nil, err
	}
	c, err := NewCustomDisplayContext(m.device, desc, buffers, m.opts...)
	if err != nil {
		return nil, err
	}
	m.add(&managed{base: c.DisplayContext, custom: c})
	return c, nil
}

// CreateOffscreenContext creates a context rendering into an owned target.
func (m *Manager) CreateOffscreenContext(desc ContextDescriptor) (*DisplayContext, error) {
	if err := m.checkOpen("CreateOffscreenContext"); err != nil {
		return nil, err
	}
	dc, err := NewDisplayContext(m.device, desc, m.opts...)
	if err != nil {
		return nil, err
	}
	m.add(&managed{base: dc})
	return dc, nil
}

func (m *Manager) add(e *managed) {
	id := e.base.id
	m.contexts[id] = e
	m.order = append(m.order, id)
	if len(m.order) == 1 {
		m.active = id
	}
}

// Delete releases and unregisters a context. Deleting the active context
// activates the oldest remaining one.
func (m *Manager) Delete(id ContextID) error {
	if err := m.o.thread.check("Delete"); err != nil {
		return err
	}
	e, ok := m.contexts[id]
	if !ok {
		return fmt.Errorf("display: delete context %d: %w", id, ErrUnknownContext)
	}
	e.base.Release()
	delete(m.contexts, id)
	if e.swap != nil {
		delete(m.byWindow, e.swap.win.Handle())
	}
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.active == id && len(m.order) > 0 {
		m.active = m.order[0]
	}
	return nil
}

// Context returns the context with id.
func (m *Manager) Context(id ContextID) (*DisplayContext, bool) {
	e, ok := m.contexts[id]
	if !ok {
		return nil, false
	}
	return e.base, true
}

// SwapChainContext returns the swap chain context with id.
func (m *Manager) SwapChainContext(id ContextID) (*SwapChainDisplayContext, bool) {
	e, ok := m.contexts[id]
	if !ok || e.swap == nil {
		return nil, false
	}
	return e.swap, true
}

// CustomContext returns the custom context with id.
func (m *Manager) CustomContext(id ContextID) (*CustomDisplayContext, bool) {
	e, ok := m.contexts[id]
	if !ok || e.custom == nil {
		return nil, false
	}
	return e.custom, true
}

// ContextByWindow returns the swap chain context presenting to window h.
func (m *Manager) ContextByWindow(h WindowHandle) (*SwapChainDisplayContext, bool) {
	id, ok := m.byWindow[h]
	if !ok {
		return nil, false
	}
	return m.contexts[id].swap, true
}

// Contexts returns the registered context ids in creation order.
func (m *Manager) Contexts() []ContextID {
	return append([]ContextID(nil), m.order...)
}

// Base returns the first created context that is still registered.
func (m *Manager) Base() *DisplayContext {
	if len(m.order) == 0 {
		return nil
	}
	return m.contexts[m.order[0]].base
}

// Active returns the active context, or nil when none is registered.
func (m *Manager) Active() *DisplayContext {
	e, ok := m.contexts[m.active]
	if !ok {
		return nil
	}
	return e.base
}

// SetActive makes id the active context.
func (m *Manager) SetActive(id ContextID) error {
	if _, ok := m.contexts[id]; !ok {
		return fmt.Errorf("display: activate context %d: %w", id, ErrUnknownContext)
	}
	m.active = id
	return nil
}

// RequestResolution queues a display resolution change.
func (m *Manager) RequestResolution(id ContextID, w, h int) {
	m.enqueue(request{kind: requestResolution, id: id, w: w, h: h})
}

// RequestFullscreen queues a fullscreen change. A zero size keeps the
// current resolution.
func (m *Manager) RequestFullscreen(id ContextID, on bool, w, h int) {
	m.enqueue(request{kind: requestFullscreen, id: id, on: on, w: w, h: h})
}

// RequestHDR queues an HDR change.
func (m *Manager) RequestHDR(id ContextID, on bool) {
	m.enqueue(request{kind: requestHDR, id: id, on: on})
}

// RequestVSync queues a vsync change.
func (m *Manager) RequestVSync(id ContextID, on bool) {
	m.enqueue(request{kind: requestVSync, id: id, on: on})
}

// Pending returns the number of queued requests.
func (m *Manager) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *Manager) enqueue(r request) {
	m.mu.Lock()
	m.requests = append(m.requests, r)
	m.mu.Unlock()
	Logger().Debug("display request queued", "kind", r.kind.String(), "id", r.id)
}

// BeginFrame advances the frame counter and applies queued requests in the
// order they were made. It returns the new frame number and the joined
// errors of failed requests; later requests still run after a failure.
func (m *Manager) BeginFrame() (uint64, error) {
	if err := m.checkOpen("BeginFrame"); err != nil {
		return m.frame, err
	}
	m.frame++

	m.mu.Lock()
	pending := m.requests
	m.requests = nil
	m.mu.Unlock()

	var errs []error
	for _, r := range pending {
		if err := m.apply(r); err != nil {
			Logger().Warn("display request failed", "kind", r.kind.String(), "id", r.id, "err", err)
			errs = append(errs, err)
		}
	}
	return m.frame, errors.Join(errs...)
}

func (m *Manager) apply(r request) error {
	e, ok := m.contexts[r.id]
	if !ok {
		return fmt.Errorf("display: %s request for context %d: %w", r.kind, r.id, ErrUnknownContext)
	}
	switch r.kind {
	case requestResolution:
		return e.base.SetDisplayResolutionAndRecreateTargets(r.w, r.h, image.Rectangle{})
	case requestFullscreen:
		if e.swap == nil {
			return fmt.Errorf("display: fullscreen request for context %d: not a swap chain context", r.id)
		}
		return e.swap.SetFullscreen(r.on, r.w, r.h)
	case requestHDR:
		return e.base.SetHDR(r.on)
	case requestVSync:
		if e.swap != nil {
			return e.swap.SetVSync(r.on)
		}
		return nil
	}
	return nil
}

// EndFrame presents every swap chain context and rotates the proxies of
// custom contexts.
func (m *Manager) EndFrame() error {
	if err := m.checkOpen("EndFrame"); err != nil {
		return err
	}
	var errs []error
	for _, id := range m.order {
		e := m.contexts[id]
		var err error
		switch {
		case e.swap != nil:
			err = e.swap.Present()
		case e.custom != nil:
			if err = e.custom.PrePresent(); err == nil {
				err = e.custom.PostPresent()
			}
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("display: present context %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases every context. The manager is unusable afterwards.
func (m *Manager) Close() {
	if m.closed {
		return
	}
	for _, id := range append([]ContextID(nil), m.order...) {
		if err := m.Delete(id); err != nil {
			Logger().Warn("delete context on close failed", "id", id, "err", err)
		}
	}
	m.closed = true
}

func (m *Manager) checkOpen(op string) error {
	if err := m.o.thread.check(op); err != nil {
		return err
	}
	if m.closed {
		return fmt.Errorf("display: %s: %w", op, ErrReleased)
	}
	return nil
}

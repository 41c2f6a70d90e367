package display

import (
	"image"
	"sync/atomic"

	"github.com/gogpu/gputypes"
)

// ContextID identifies a display context. The first context created in a
// process has id 0 and is the base context.
type ContextID uint32

var nextContextID atomic.Uint32

func allocContextID() ContextID {
	return ContextID(nextContextID.Add(1) - 1)
}

// State is the lifecycle state of a display context.
type State uint8

const (
	// StateUninitialized is the state before targets are allocated.
	StateUninitialized State = iota

	// StateAllocated means targets were allocated at the initial resolution.
	StateAllocated

	// StateResized means the resolution changed at least once.
	StateResized

	// StateReleased is terminal.
	StateReleased
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateAllocated:
		return "allocated"
	case StateResized:
		return "resized"
	case StateReleased:
		return "released"
	}
	return "unknown"
}

// ContextFlags configure a display context.
type ContextFlags uint8

const (
	// FlagMainViewport marks the main game viewport.
	FlagMainViewport ContextFlags = 1 << iota

	// FlagEditor marks an editor viewport. Editor viewports are never scalable.
	FlagEditor

	// FlagHDR enables the dedicated HDR target.
	FlagHDR

	// FlagFullscreen requests a fullscreen swap chain at creation.
	FlagFullscreen
)

// ContextDescriptor describes a display context at creation time.
type ContextDescriptor struct {
	Name   string
	Width  int
	Height int
	Flags  ContextFlags

	// Clear configuration of the owned RenderOutput.
	ClearFlags ClearFlags
	ClearColor gputypes.Color
	ClearDepth float32

	// SuperSamplingX and SuperSamplingY default to Config.SuperSampling for
	// main viewports and 1 otherwise.
	SuperSamplingX int
	SuperSamplingY int
}

// DefaultContextDescriptor returns a descriptor clearing color and depth
// to opaque black and far depth.
func DefaultContextDescriptor(name string, w, h int) ContextDescriptor {
	return ContextDescriptor{
		Name:       name,
		Width:      w,
		Height:     h,
		ClearFlags: ClearAll,
		ClearColor: gputypes.Color{R: 0, G: 0, B: 0, A: 1},
		ClearDepth: 1,
	}
}

// surface is the back-buffer source of a display context. The offscreen,
// swap chain and custom specializations implement it.
type surface interface {
	// resizeSurface resizes the back buffers and returns the dimensions
	// actually applied.
	resizeSurface(w, h int) (int, int, error)
	currentBackBuffer() *Texture
	storableColorOutput() *Texture
	// ensureCurrent binds the storable output to the current back buffer
	// if the back buffer rotated since the last bind.
	ensureCurrent() error
	prePresent() error
	postPresent() error
	releaseSurface()
}

// DisplayContext is one rendering surface and its logical state: display
// dimensions, viewport, HDR flag, supersampling and the owned RenderOutput.
//
// A DisplayContext is not safe for concurrent use; it is owned by the render
// thread. Main-thread code requests changes through a Manager.
type DisplayContext struct {
	id     ContextID
	desc   ContextDescriptor
	device Device
	thread *Thread
	config Config

	state    State
	width    int
	height   int
	viewport image.Rectangle
	aspect   float64
	ssX, ssY int
	hdr      bool

	hdrTarget   *Texture
	depthTarget *Texture

	output  *RenderOutput
	surface surface

	// window is the output currently rendering into this context.
	window *RenderOutput
}

// NewDisplayContext creates an offscreen display context whose back buffer
// is an owned LDR render target.
func NewDisplayContext(device Device, desc ContextDescriptor, opts ...Option) (*DisplayContext, error) {
	o := buildOptions(device, opts)
	if err := o.thread.check("NewDisplayContext"); err != nil {
		return nil, err
	}
	dc := newDisplayContext(device, desc, o)
	dc.surface = &offscreenSurface{dc: dc}
	if err := dc.allocate(desc.Width, desc.Height); err != nil {
		return nil, err
	}
	return dc, nil
}

func newDisplayContext(device Device, desc ContextDescriptor, o options) *DisplayContext {
	dc := &DisplayContext{
		id:     allocContextID(),
		desc:   desc,
		device: device,
		thread: o.thread,
		config: o.config,
		hdr:    desc.Flags&FlagHDR != 0,
	}
	dc.ssX, dc.ssY = max(desc.SuperSamplingX, 1), max(desc.SuperSamplingY, 1)
	if desc.SuperSamplingX == 0 && desc.SuperSamplingY == 0 && dc.IsMainViewport() {
		dc.ssX, dc.ssY = o.config.SuperSampling, o.config.SuperSampling
	}
	if dc.desc.Name == "" {
		dc.desc.Name = "display"
	}
	return dc
}

// allocate moves the context from Uninitialized to Allocated.
func (dc *DisplayContext) allocate(w, h int) error {
	if !assertf(w > 0 && h > 0, "display context %q: invalid size %dx%d", dc.desc.Name, w, h) {
		return invalidDimensions("allocate", w, h)
	}
	if err := dc.resize(w, h, image.Rectangle{}, true); err != nil {
		return err
	}
	dc.state = StateAllocated
	dc.output = newDisplayOutput(dc)
	if err := dc.output.InitializeOutputResolution(dc.outputResolution()); err != nil {
		return err
	}
	Logger().Info("display context created",
		"id", dc.id, "name", dc.desc.Name, "width", dc.width, "height", dc.height, "hdr", dc.hdr)
	return nil
}

// ID returns the unique context id.
func (dc *DisplayContext) ID() ContextID { return dc.id }

// Name returns the context name.
func (dc *DisplayContext) Name() string { return dc.desc.Name }

// Descriptor returns the creation descriptor.
func (dc *DisplayContext) Descriptor() ContextDescriptor { return dc.desc }

// State returns the lifecycle state.
func (dc *DisplayContext) State() State { return dc.state }

// Device returns the device the context allocates from.
func (dc *DisplayContext) Device() Device { return dc.device }

// Config returns the normalized knobs the context was created with.
func (dc *DisplayContext) Config() Config { return dc.config }

// DisplayResolution returns the display width and height.
func (dc *DisplayContext) DisplayResolution() (int, int) { return dc.width, dc.height }

// Viewport returns the viewport rectangle.
func (dc *DisplayContext) Viewport() image.Rectangle { return dc.viewport }

// AspectRatio returns display width over height.
func (dc *DisplayContext) AspectRatio() float64 { return dc.aspect }

// SuperSampling returns the supersampling factors.
func (dc *DisplayContext) SuperSampling() (int, int) { return dc.ssX, dc.ssY }

// IsHighDynamicRange reports whether the dedicated HDR target is active.
func (dc *DisplayContext) IsHighDynamicRange() bool { return dc.hdr }

// IsMainViewport reports whether this is the main viewport.
func (dc *DisplayContext) IsMainViewport() bool { return dc.desc.Flags&FlagMainViewport != 0 }

// IsEditor reports whether this is an editor viewport.
func (dc *DisplayContext) IsEditor() bool { return dc.desc.Flags&FlagEditor != 0 }

// IsScalable reports whether the output resolution may differ from the
// display resolution. Only the main, non-editor viewport is scalable.
func (dc *DisplayContext) IsScalable() bool {
	return dc.IsMainViewport() && !dc.IsEditor()
}

// IsNativeScalingEnabled reports whether a scalable context currently renders
// at a resolution different from its display resolution.
func (dc *DisplayContext) IsNativeScalingEnabled() bool {
	if !dc.IsScalable() {
		return false
	}
	if dc.config.HasCustomResolution() || dc.ssX > 1 || dc.ssY > 1 {
		return true
	}
	if dc.output != nil {
		w, h := dc.output.OutputResolution()
		return w != dc.width || h != dc.height
	}
	return false
}

// RenderOutput returns the owned render output.
func (dc *DisplayContext) RenderOutput() *RenderOutput { return dc.output }

// HDRTarget returns the dedicated HDR target, or nil when HDR is off.
func (dc *DisplayContext) HDRTarget() *Texture { return dc.hdrTarget }

// CurrentBackBuffer returns the physical back buffer rendered this frame.
func (dc *DisplayContext) CurrentBackBuffer() *Texture { return dc.surface.currentBackBuffer() }

// StorableColorOutput returns a color handle whose identity is stable across
// frames; its device resource follows the current back buffer.
func (dc *DisplayContext) StorableColorOutput() *Texture { return dc.surface.storableColorOutput() }

// CurrentColorOutput returns the dedicated HDR target when HDR is active,
// else the stable back-buffer handle.
func (dc *DisplayContext) CurrentColorOutput() *Texture {
	if dc.hdr && dc.hdrTarget != nil {
		return dc.hdrTarget
	}
	return dc.surface.storableColorOutput()
}

// CurrentDepthOutput returns the depth target.
func (dc *DisplayContext) CurrentDepthOutput() *Texture { return dc.depthTarget }

// SetDisplayResolutionAndRecreateTargets resizes the display and reallocates
// the color and depth targets. It is a no-op when the size is unchanged,
// apart from adopting a non-empty viewport. An empty viewport selects the
// full display divided by the supersampling factors.
func (dc *DisplayContext) SetDisplayResolutionAndRecreateTargets(w, h int, viewport image.Rectangle) error {
	if err := dc.checkMutable("SetDisplayResolutionAndRecreateTargets"); err != nil {
		return err
	}
	if !assertf(w > 0 && h > 0, "display context %q: invalid size %dx%d", dc.desc.Name, w, h) {
		return invalidDimensions("SetDisplayResolutionAndRecreateTargets", w, h)
	}
	return dc.resize(w, h, viewport, false)
}

// resize applies a resolution change. force recreates everything even when
// the size is unchanged (fullscreen toggles, initial allocation).
func (dc *DisplayContext) resize(w, h int, viewport image.Rectangle, force bool) error {
	if !force && dc.state != StateUninitialized && w == dc.width && h == dc.height {
		if !viewport.Empty() {
			dc.viewport = viewport
		}
		return nil
	}

	aw, ah, err := dc.surface.resizeSurface(w, h)
	if err != nil {
		return err
	}
	dc.width, dc.height = aw, ah
	dc.aspect = float64(aw) / float64(ah)
	if viewport.Empty() {
		viewport = image.Rect(0, 0, aw/dc.ssX, ah/dc.ssY)
	}
	dc.viewport = viewport
	dc.recreateTargets()

	if dc.state == StateAllocated || dc.state == StateResized {
		dc.state = StateResized
		if err := dc.output.InitializeOutputResolution(dc.outputResolution()); err != nil {
			return err
		}
		Logger().Info("display context resized", "id", dc.id, "width", aw, "height", ah)
	}
	return nil
}

// recreateTargets replaces the HDR and depth targets at display resolution.
// Device resources are realized lazily on first use.
func (dc *DisplayContext) recreateTargets() {
	dc.depthTarget.Release()
	dc.depthTarget = NewTexture(dc.device, DepthTargetDescriptor(dc.desc.Name+"_depth", dc.width, dc.height))

	dc.hdrTarget.Release()
	dc.hdrTarget = nil
	if dc.hdr {
		dc.hdrTarget = NewTexture(dc.device, ColorTargetDescriptor(dc.desc.Name+"_hdr", dc.width, dc.height, FormatHDR))
	}
	Logger().Debug("display targets recreated", "id", dc.id, "width", dc.width, "height", dc.height, "hdr", dc.hdr)
}

// SetHDR switches between the dedicated HDR target and direct LDR output.
func (dc *DisplayContext) SetHDR(on bool) error {
	if err := dc.checkMutable("SetHDR"); err != nil {
		return err
	}
	if on == dc.hdr {
		return nil
	}
	dc.hdr = on
	dc.recreateTargets()
	return dc.output.InitializeOutputResolution(dc.outputResolution())
}

// SetSuperSampling sets the supersampling factors. Each factor is clamped so
// the supersampled size stays within Config.CustomResMaxSize.
func (dc *DisplayContext) SetSuperSampling(x, y int) error {
	if err := dc.checkMutable("SetSuperSampling"); err != nil {
		return err
	}
	maxX := max(dc.config.CustomResMaxSize/dc.width, 1)
	maxY := max(dc.config.CustomResMaxSize/dc.height, 1)
	dc.ssX = min(max(x, 1), maxX)
	dc.ssY = min(max(y, 1), maxY)
	dc.viewport = image.Rect(0, 0, dc.width/dc.ssX, dc.height/dc.ssY)
	return nil
}

// outputResolution returns the resolution the owned RenderOutput renders at.
// Custom resolutions apply only to scalable contexts and are kept within
// [50%, 100%] of the display resolution.
func (dc *DisplayContext) outputResolution() (int, int) {
	if !dc.IsScalable() || !dc.config.HasCustomResolution() {
		return dc.width, dc.height
	}
	return customAxis(dc.config.CustomResWidth, dc.width, dc.config.CustomResMaxSize),
		customAxis(dc.config.CustomResHeight, dc.height, dc.config.CustomResMaxSize)
}

func customAxis(custom, display, maxSize int) int {
	v := min(max(custom, MinCustomResolution), min(maxSize, display))
	return min(max(v, minScaled(display)), display)
}

// minScaled returns the smallest output axis allowed for a display axis.
func minScaled(display int) int { return (display + 1) / 2 }

// withinScalingBounds reports whether (w, h) lies in [50%, 100%] of the display.
func (dc *DisplayContext) withinScalingBounds(w, h int) bool {
	return w >= minScaled(dc.width) && w <= dc.width &&
		h >= minScaled(dc.height) && h <= dc.height
}

// PrePresent prepares the current back buffer for presentation.
func (dc *DisplayContext) PrePresent() error {
	if err := dc.checkMutable("PrePresent"); err != nil {
		return err
	}
	if !assertf(dc.window == nil, "PrePresent on %q while render output %q is open", dc.desc.Name, dc.windowName()) {
		return &StateError{Op: "PrePresent", ID: dc.id, State: dc.state}
	}
	return dc.surface.prePresent()
}

// PostPresent rebinds the stable back-buffer handle to the current back buffer.
func (dc *DisplayContext) PostPresent() error {
	if err := dc.checkMutable("PostPresent"); err != nil {
		return err
	}
	return dc.surface.postPresent()
}

// beginRenderWindow records that o renders into this context.
func (dc *DisplayContext) beginRenderWindow(o *RenderOutput) error {
	if !assertf(dc.window == nil, "render output %q opened on %q while %q is open", o.name, dc.desc.Name, dc.windowName()) {
		return &StateError{Op: "BeginRendering", ID: dc.id, State: dc.state}
	}
	dc.window = o
	return nil
}

// endRenderWindow records that o finished rendering into this context.
func (dc *DisplayContext) endRenderWindow(o *RenderOutput) {
	if dc.window == o {
		dc.window = nil
	}
}

func (dc *DisplayContext) windowName() string {
	if dc.window == nil {
		return ""
	}
	return dc.window.name
}

// checkMutable guards mutating calls: render thread only, not released.
func (dc *DisplayContext) checkMutable(op string) error {
	if err := dc.thread.check(op); err != nil {
		return err
	}
	if !assertf(dc.state != StateReleased, "%s on released display context %q", op, dc.desc.Name) {
		return &StateError{Op: op, ID: dc.id, State: dc.state}
	}
	return nil
}

// Release tears down the context: back buffers, targets and the owned
// RenderOutput. Release is idempotent.
func (dc *DisplayContext) Release() {
	if dc.state == StateReleased {
		return
	}
	if err := dc.thread.check("Release"); err != nil {
		return
	}
	dc.surface.releaseSurface()
	dc.output.Release()
	dc.hdrTarget.Release()
	dc.depthTarget.Release()
	dc.hdrTarget, dc.depthTarget = nil, nil
	dc.window = nil
	dc.state = StateReleased
	Logger().Info("display context released", "id", dc.id, "name", dc.desc.Name)
}

// offscreenSurface backs a plain DisplayContext with one owned LDR target.
type offscreenSurface struct {
	dc     *DisplayContext
	target *Texture
}

func (s *offscreenSurface) resizeSurface(w, h int) (int, int, error) {
	s.target.Release()
	s.target = NewTexture(s.dc.device, ColorTargetDescriptor(s.dc.desc.Name+"_color", w, h, FormatLDR))
	return w, h, nil
}

func (s *offscreenSurface) currentBackBuffer() *Texture   { return s.target }
func (s *offscreenSurface) storableColorOutput() *Texture { return s.target }
func (s *offscreenSurface) ensureCurrent() error          { return nil }
func (s *offscreenSurface) prePresent() error             { return nil }
func (s *offscreenSurface) postPresent() error            { return nil }

func (s *offscreenSurface) releaseSurface() {
	s.target.Release()
	s.target = nil
}

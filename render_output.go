package display

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
)

var outputIDs atomic.Uint64

type outputMode uint8

const (
	modeDisplay outputMode = iota
	modeStatic
	modeDynamic
)

func (m outputMode) String() string {
	switch m {
	case modeDisplay:
		return "display"
	case modeStatic:
		return "static"
	case modeDynamic:
		return "dynamic"
	}
	return "unknown"
}

// OutputDescriptor configures a RenderOutput that is not owned by a
// DisplayContext.
type OutputDescriptor struct {
	Name         string
	ClearFlags   ClearFlags
	ClearColor   gputypes.Color
	ClearDepth   float32
	ClearStencil uint32

	// TempDepth allocates a transient depth buffer for every pass instead
	// of keeping a depth target.
	TempDepth bool
}

// Pass identifies one render pass recording into a RenderOutput.
type Pass struct {
	Name string

	// Frame is the frame counter. The cleared-this-frame state resets when
	// it changes.
	Frame uint64

	// Clear is added to the output's configured clear flags for this pass.
	Clear ClearFlags
}

// Targets are the resolved targets of one pass.
type Targets struct {
	Color  *Texture
	Depth  *Texture
	Width  int
	Height int

	// HDR reports whether the pass renders into a high dynamic range target.
	HDR bool

	// Cleared holds the clears performed by this BeginRendering call.
	Cleared ClearFlags
}

// DynamicTexture is a texture source whose device texture may change
// between frames, for example a transient render-to-texture target.
type DynamicTexture interface {
	Size() (int, int)
	// Update makes the texture w x h, recreating it if needed.
	Update(w, h int) error
	Texture() *Texture
}

// RenderOutput binds a DisplayContext, a static texture pair or a dynamic
// texture to the color and depth targets one pass writes into, and clears
// each target at most once per frame.
//
// Exactly one source is active, selected by the constructor.
type RenderOutput struct {
	name   string
	id     uint64
	mode   outputMode
	device Device

	width, height int

	display *DisplayContext
	dynamic DynamicTexture

	color, depth       *Texture
	ownColor, ownDepth bool

	clearFlags   ClearFlags
	clearColor   gputypes.Color
	clearDepth   float32
	clearStencil uint32

	cleared      ClearFlags
	clearedFrame uint64

	useTempDepth bool
	tempDepth    *Texture

	hdr       bool
	rendering bool
	released  bool
}

func newRenderOutput(name string, mode outputMode, device Device) *RenderOutput {
	return &RenderOutput{
		name:   name,
		id:     outputIDs.Add(1),
		mode:   mode,
		device: device,
	}
}

// newDisplayOutput returns the RenderOutput owned by dc. The caller
// initializes its resolution.
func newDisplayOutput(dc *DisplayContext) *RenderOutput {
	o := newRenderOutput(dc.desc.Name+"_output", modeDisplay, dc.device)
	o.display = dc
	o.clearFlags = dc.desc.ClearFlags
	o.clearColor = dc.desc.ClearColor
	o.clearDepth = dc.desc.ClearDepth
	o.clearStencil = 0
	return o
}

// NewTextureOutput returns a RenderOutput over an externally owned color
// texture and an optional depth texture. A nil depth is allocated at the
// color size unless desc.TempDepth is set.
func NewTextureOutput(device Device, desc OutputDescriptor, color, depth *Texture) (*RenderOutput, error) {
	if !assertf(color != nil, "texture output %q without color texture", desc.Name) {
		return nil, &ConfigurationError{Op: "NewTextureOutput", Err: ErrNullTarget}
	}
	o := newRenderOutput(desc.Name, modeStatic, device)
	o.configure(desc)
	o.color, o.depth = color, depth
	if err := o.InitializeOutputResolution(color.Width(), color.Height()); err != nil {
		return nil, err
	}
	return o, nil
}

// NewDynamicOutput returns a RenderOutput over a dynamic texture. The
// texture is updated to the output resolution on every BeginRendering.
func NewDynamicOutput(device Device, desc OutputDescriptor, src DynamicTexture, w, h int) (*RenderOutput, error) {
	if !assertf(src != nil, "dynamic output %q without source", desc.Name) {
		return nil, &ConfigurationError{Op: "NewDynamicOutput", Err: ErrNullTarget}
	}
	o := newRenderOutput(desc.Name, modeDynamic, device)
	o.configure(desc)
	o.dynamic = src
	if err := o.InitializeOutputResolution(w, h); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *RenderOutput) configure(desc OutputDescriptor) {
	if o.name == "" {
		o.name = fmt.Sprintf("output%d", o.id)
	}
	o.clearFlags = desc.ClearFlags
	o.clearColor = desc.ClearColor
	o.clearDepth = desc.ClearDepth
	o.clearStencil = desc.ClearStencil
	o.useTempDepth = desc.TempDepth
}

// Name returns the output name.
func (o *RenderOutput) Name() string { return o.name }

// ID returns the unique output id.
func (o *RenderOutput) ID() uint64 { return o.id }

// DisplayContext returns the owning context, or nil.
func (o *RenderOutput) DisplayContext() *DisplayContext { return o.display }

// OutputResolution returns the resolution passes render at.
func (o *RenderOutput) OutputResolution() (int, int) { return o.width, o.height }

// IsHDR reports whether the last pass rendered into an HDR target.
func (o *RenderOutput) IsHDR() bool { return o.hdr }

// ClearFlags returns the configured clear flags.
func (o *RenderOutput) ClearFlags() ClearFlags { return o.clearFlags }

// SetClearFlags sets the configured clear flags.
func (o *RenderOutput) SetClearFlags(f ClearFlags) { o.clearFlags = f }

// SetClearColor sets the color clear value.
func (o *RenderOutput) SetClearColor(c gputypes.Color) { o.clearColor = c }

// SetClearDepth sets the depth clear value.
func (o *RenderOutput) SetClearDepth(d float32) { o.clearDepth = d }

// SetClearStencil sets the stencil clear value.
func (o *RenderOutput) SetClearStencil(s uint32) { o.clearStencil = s }

// ClearedThisFrame returns the targets cleared during the current frame.
func (o *RenderOutput) ClearedThisFrame() ClearFlags { return o.cleared }

// IsRendering reports whether a pass is open.
func (o *RenderOutput) IsRendering() bool { return o.rendering }

// InitializeOutputResolution sets the output resolution, reconciles the
// targets and resets the clear state.
func (o *RenderOutput) InitializeOutputResolution(w, h int) error {
	if err := o.setResolution("InitializeOutputResolution", w, h); err != nil {
		return err
	}
	o.cleared = 0
	return nil
}

// ChangeOutputResolution sets the output resolution and reconciles the
// targets. It is a no-op when nothing changed.
func (o *RenderOutput) ChangeOutputResolution(w, h int) error {
	if err := o.checkMutable("ChangeOutputResolution"); err != nil {
		return err
	}
	if w == o.width && h == o.height && o.targetsMatch() {
		return nil
	}
	return o.setResolution("ChangeOutputResolution", w, h)
}

func (o *RenderOutput) setResolution(op string, w, h int) error {
	if o.released {
		return ErrReleased
	}
	if err := o.checkMutable(op); err != nil {
		return err
	}
	if !assertf(w > 0 && h > 0, "%s on %q: invalid size %dx%d", op, o.name, w, h) {
		return invalidDimensions(op, w, h)
	}
	if dc := o.display; dc != nil {
		dw, dh := dc.DisplayResolution()
		ok := dc.withinScalingBounds(w, h)
		if !dc.IsScalable() {
			ok = w == dw && h == dh
		}
		if !assertf(ok, "%s on %q: %dx%d outside [50%%,100%%] of display %dx%d", op, o.name, w, h, dw, dh) {
			return &ConfigurationError{Op: op, Width: w, Height: h, Err: ErrResolutionOutOfRange}
		}
	}
	o.width, o.height = w, h
	o.reconcile()
	Logger().Debug("output resolution set", "output", o.name, "width", w, "height", h, "mode", o.mode.String())
	return nil
}

// checkMutable applies the owning context's render thread and state checks.
func (o *RenderOutput) checkMutable(op string) error {
	if o.display == nil {
		return nil
	}
	return o.display.checkMutable(op)
}

// scaled reports whether a display-backed output renders at a resolution
// other than the display's and therefore owns its targets.
func (o *RenderOutput) scaled() bool {
	if o.display == nil {
		return false
	}
	dw, dh := o.display.DisplayResolution()
	return o.width != dw || o.height != dh
}

func (o *RenderOutput) colorFormat() gputypes.TextureFormat {
	switch {
	case o.display != nil && o.display.IsHighDynamicRange():
		return FormatHDR
	case o.color != nil:
		return o.color.Format()
	}
	return FormatLDR
}

func (o *RenderOutput) targetsMatch() bool {
	switch o.mode {
	case modeDisplay:
		if !o.scaled() {
			return o.color == nil && o.depth == nil
		}
		return o.sized(o.color) && o.color.Format() == o.colorFormat() && o.sized(o.depth)
	case modeStatic:
		return o.sized(o.color) && (o.useTempDepth || o.sized(o.depth))
	case modeDynamic:
		return o.useTempDepth || o.sized(o.depth)
	}
	return true
}

func (o *RenderOutput) sized(t *Texture) bool {
	return t != nil && !t.Released() && t.Width() == o.width && t.Height() == o.height
}

// reconcile creates or drops owned targets so their size and presence match
// the output resolution. Display-backed outputs at display resolution use
// the context's targets directly.
func (o *RenderOutput) reconcile() {
	switch o.mode {
	case modeDisplay:
		if !o.scaled() {
			o.dropColor()
			o.dropDepth()
			return
		}
		if !o.sized(o.color) || o.color.Format() != o.colorFormat() {
			o.replaceColor(o.colorFormat())
		}
		if !o.sized(o.depth) {
			o.replaceDepth()
		}
	case modeStatic:
		if !o.sized(o.color) {
			o.replaceColor(o.colorFormat())
		}
		if !o.useTempDepth && !o.sized(o.depth) {
			o.replaceDepth()
		}
	case modeDynamic:
		// The color texture follows the source on every BeginRendering.
		if !o.useTempDepth && !o.sized(o.depth) {
			o.replaceDepth()
		}
	}
}

func (o *RenderOutput) dropColor() {
	if o.ownColor {
		o.color.Release()
	}
	o.color, o.ownColor = nil, false
}

func (o *RenderOutput) dropDepth() {
	if o.ownDepth {
		o.depth.Release()
	}
	o.depth, o.ownDepth = nil, false
}

func (o *RenderOutput) replaceColor(format gputypes.TextureFormat) {
	o.dropColor()
	o.color = NewTexture(o.device, ColorTargetDescriptor(o.name+"_color", o.width, o.height, format))
	o.ownColor = true
}

func (o *RenderOutput) replaceDepth() {
	o.dropDepth()
	o.depth = NewTexture(o.device, DepthTargetDescriptor(o.name+"_depth", o.width, o.height))
	o.ownDepth = true
}

// ColorTarget returns the color target of the current frame. For outputs
// backed by a swap chain it rotates the back-buffer proxy on first access
// in a frame.
func (o *RenderOutput) ColorTarget() *Texture {
	switch o.mode {
	case modeDynamic:
		return o.dynamic.Texture()
	case modeDisplay:
		if o.color != nil {
			return o.color
		}
		if err := o.display.surface.ensureCurrent(); err != nil {
			Logger().Warn("back buffer rotation failed", "output", o.name, "err", err)
		}
		return o.display.CurrentColorOutput()
	}
	return o.color
}

// DepthTarget returns the depth target, or the temporary depth buffer while
// a temp-depth pass is open.
func (o *RenderOutput) DepthTarget() *Texture {
	if o.tempDepth != nil {
		return o.tempDepth
	}
	if o.mode == modeDisplay && o.depth == nil {
		return o.display.CurrentDepthOutput()
	}
	return o.depth
}

// BeginRendering resolves and realizes the targets for pass and clears each
// of them at most once per frame. The cleared targets are the union of the
// configured clear flags and pass.Clear, minus what was already cleared
// this frame.
func (o *RenderOutput) BeginRendering(pass Pass) (Targets, error) {
	if o.released {
		return Targets{}, ErrReleased
	}
	if err := o.checkMutable("BeginRendering"); err != nil {
		return Targets{}, err
	}
	if !assertf(!o.rendering, "BeginRendering %q on %q while a pass is open", pass.Name, o.name) {
		return Targets{}, &StateError{Op: "BeginRendering", ID: o.contextID(), State: o.contextState()}
	}
	if pass.Frame != o.clearedFrame {
		o.cleared = 0
		o.clearedFrame = pass.Frame
	}

	if o.mode == modeDynamic {
		if err := o.dynamic.Update(o.width, o.height); err != nil {
			return Targets{}, &ResourceAllocationError{Label: o.name, Err: err}
		}
	}

	color := o.ColorTarget()
	if color == nil {
		assertf(false, "BeginRendering %q on %q: no color target", pass.Name, o.name)
		o.replaceColor(o.colorFormat())
		color = o.color
	}

	var depth *Texture
	if o.useTempDepth {
		o.tempDepth = NewTexture(o.device, DepthTargetDescriptor(o.name+"_tempdepth", o.width, o.height))
		depth = o.tempDepth
	} else {
		depth = o.DepthTarget()
		if depth == nil {
			assertf(false, "BeginRendering %q on %q: no depth target", pass.Name, o.name)
			o.replaceDepth()
			depth = o.depth
		}
	}

	if err := color.Realize(); err != nil {
		o.releaseTempDepth()
		return Targets{}, err
	}
	if err := depth.Realize(); err != nil {
		o.releaseTempDepth()
		return Targets{}, err
	}

	if o.display != nil {
		if err := o.display.beginRenderWindow(o); err != nil {
			o.releaseTempDepth()
			return Targets{}, err
		}
	}

	cleared, err := o.clear(color, depth, o.clearFlags|pass.Clear)
	if err != nil {
		Logger().Warn("clear failed", "output", o.name, "pass", pass.Name, "err", err)
	}

	o.hdr = color.Format() == FormatHDR
	o.rendering = true
	return Targets{
		Color:   color,
		Depth:   depth,
		Width:   o.width,
		Height:  o.height,
		HDR:     o.hdr,
		Cleared: cleared,
	}, nil
}

// clear issues the clears in flags that were not yet performed this frame.
// A temporary depth buffer is new for every pass and is always cleared.
func (o *RenderOutput) clear(color, depth *Texture, flags ClearFlags) (ClearFlags, error) {
	pending := flags &^ o.cleared
	if o.tempDepth != nil {
		pending |= flags & ClearDepthStencil
	}
	var done ClearFlags
	if pending&ClearColor != 0 {
		if err := o.device.ClearSurface(color.Resource(), ClearColor, o.clearColor, o.clearDepth, o.clearStencil); err != nil {
			return done, err
		}
		done |= ClearColor
	}
	if ds := pending & ClearDepthStencil; ds != 0 {
		if err := o.device.ClearSurface(depth.Resource(), ds, o.clearColor, o.clearDepth, o.clearStencil); err != nil {
			return done, err
		}
		done |= ds
	}
	o.cleared |= done
	return done, nil
}

// EndRendering closes the pass opened by BeginRendering.
func (o *RenderOutput) EndRendering(pass Pass) error {
	if !assertf(o.rendering, "EndRendering %q on %q without BeginRendering", pass.Name, o.name) {
		return &StateError{Op: "EndRendering", ID: o.contextID(), State: o.contextState()}
	}
	o.releaseTempDepth()
	if o.display != nil {
		o.display.endRenderWindow(o)
	}
	o.rendering = false
	return nil
}

func (o *RenderOutput) releaseTempDepth() {
	if o.tempDepth != nil {
		o.tempDepth.Release()
		o.tempDepth = nil
	}
}

func (o *RenderOutput) contextID() ContextID {
	if o.display == nil {
		return 0
	}
	return o.display.id
}

func (o *RenderOutput) contextState() State {
	if o.display == nil {
		return StateAllocated
	}
	return o.display.state
}

// Release drops the owned targets. Externally supplied textures are left
// untouched. Release is idempotent.
func (o *RenderOutput) Release() {
	if o == nil || o.released {
		return
	}
	if o.rendering && o.display != nil {
		o.display.endRenderWindow(o)
	}
	o.releaseTempDepth()
	o.dropColor()
	o.dropDepth()
	o.rendering = false
	o.released = true
}

// TransientTexture is a DynamicTexture backed by one owned color target
// that is recreated whenever the requested size changes.
type TransientTexture struct {
	device Device
	label  string
	format gputypes.TextureFormat
	tex    *Texture
}

// NewTransientTexture returns an empty transient texture.
func NewTransientTexture(device Device, label string, format gputypes.TextureFormat) *TransientTexture {
	return &TransientTexture{device: device, label: label, format: format}
}

// Size returns the current size, or zero before the first Update.
func (t *TransientTexture) Size() (int, int) {
	if t.tex == nil {
		return 0, 0
	}
	return t.tex.Width(), t.tex.Height()
}

// Update recreates the texture if its size differs from w x h.
func (t *TransientTexture) Update(w, h int) error {
	if w <= 0 || h <= 0 {
		return invalidDimensions("TransientTexture.Update", w, h)
	}
	if t.tex != nil && t.tex.Width() == w && t.tex.Height() == h {
		return nil
	}
	t.tex.Release()
	t.tex = NewTexture(t.device, ColorTargetDescriptor(t.label, w, h, t.format))
	return nil
}

// Texture returns the current texture, or nil before the first Update.
func (t *TransientTexture) Texture() *Texture { return t.tex }

// Release drops the texture.
func (t *TransientTexture) Release() {
	t.tex.Release()
	t.tex = nil
}

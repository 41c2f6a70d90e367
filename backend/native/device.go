//go:build !nogpu

// Package native provides a display.Device over a gogpu/wgpu HAL device.
//
// Textures are created as 2D render attachments with one default view.
// Clears are recorded as empty render passes whose load operation clears
// the attachment; they are submitted immediately and waited on. Flush
// waits for the device to go idle.
package native

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/display"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// DefaultMaxTextureSize is the WebGPU default limit for 2D texture axes.
const DefaultMaxTextureSize = 8192

var (
	// ErrNilHALDevice is returned when the device or queue is nil.
	ErrNilHALDevice = errors.New("native: HAL device is nil")

	// ErrForeignTexture is returned for textures created by another device.
	ErrForeignTexture = errors.New("native: texture not created by this device")

	// ErrTextureDestroyed is returned when operating on a destroyed reference.
	ErrTextureDestroyed = errors.New("native: texture has been destroyed")
)

// Device is a display.Device backed by hal.Device and hal.Queue.
//
// Submission is serialized; a Device may be shared by goroutines.
type Device struct {
	device  hal.Device
	queue   hal.Queue
	maxSize int

	mu sync.Mutex
}

// NewDevice returns a device over an existing HAL device and queue. The
// caller keeps ownership of both.
func NewDevice(device hal.Device, queue hal.Queue) (*Device, error) {
	if device == nil || queue == nil {
		return nil, ErrNilHALDevice
	}
	return &Device{device: device, queue: queue, maxSize: DefaultMaxTextureSize}, nil
}

// NewDeviceFromProvider returns a device sharing the GPU of provider. The
// provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue.
func NewDeviceFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("native: provider does not expose HAL device")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok {
		return nil, fmt.Errorf("native: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok {
		return nil, fmt.Errorf("native: provider HalQueue is not hal.Queue")
	}
	display.Logger().Info("native display device: using shared GPU device")
	return NewDevice(device, queue)
}

// SetMaxTextureSize overrides the texture axis limit reported to display.
func (d *Device) SetMaxTextureSize(n int) {
	if n > 0 {
		d.maxSize = n
	}
}

// MaxTextureSize implements display.MaxTextureSizer.
func (d *Device) MaxTextureSize() int { return d.maxSize }

// CreateRenderTarget implements display.Device.
func (d *Device) CreateRenderTarget(desc display.TextureDescriptor) (display.DeviceTexture, error) {
	return d.create(desc)
}

// CreateDepthStencil implements display.Device.
func (d *Device) CreateDepthStencil(desc display.TextureDescriptor) (display.DeviceTexture, error) {
	desc.Usage |= gputypes.TextureUsageRenderAttachment
	return d.create(desc)
}

func (d *Device) create(desc display.TextureDescriptor) (*Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 || desc.Width > d.maxSize || desc.Height > d.maxSize {
		return nil, fmt.Errorf("native: create %q %dx%d: %w", desc.Label, desc.Width, desc.Height, display.ErrInvalidDimensions)
	}
	if desc.Usage == 0 {
		desc.Usage = gputypes.TextureUsageRenderAttachment
	}

	//nolint:gosec // G115: dimensions validated against maxSize above
	tex, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: uint32(desc.Width), Height: uint32(desc.Height), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   uint32(max(desc.SampleCount, 1)),
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create texture %q: %w", desc.Label, err)
	}
	view, err := d.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label: desc.Label + "_view",
	})
	if err != nil {
		d.device.DestroyTexture(tex)
		return nil, fmt.Errorf("native: create view %q: %w", desc.Label, err)
	}

	r := &resource{device: d, desc: desc, tex: tex, view: view}
	display.Logger().Debug("native texture created", "label", desc.Label, "width", desc.Width, "height", desc.Height)
	return r.ref(), nil
}

// ClearSurface implements display.Device.
func (d *Device) ClearSurface(tex display.DeviceTexture, flags display.ClearFlags, c gputypes.Color, depth float32, stencil uint32) error {
	t, ok := tex.(*Texture)
	if !ok || t == nil || t.r.device != d {
		return ErrForeignTexture
	}
	if t.dead.Load() {
		return ErrTextureDestroyed
	}

	rp := &hal.RenderPassDescriptor{Label: t.r.desc.Label + "_clear"}
	if t.r.desc.Format == display.FormatDepth {
		rp.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
			View:              t.r.view,
			DepthLoadOp:       loadOp(flags&display.ClearDepth != 0),
			DepthStoreOp:      gputypes.StoreOpStore,
			DepthClearValue:   depth,
			StencilLoadOp:     loadOp(flags&display.ClearStencil != 0),
			StencilStoreOp:    gputypes.StoreOpStore,
			StencilClearValue: stencil,
		}
	} else {
		if flags&display.ClearColor == 0 {
			return nil
		}
		rp.ColorAttachments = []hal.RenderPassColorAttachment{{
			View:       t.r.view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: c,
		}}
	}
	return d.submitPass(rp)
}

func loadOp(clear bool) gputypes.LoadOp {
	if clear {
		return gputypes.LoadOpClear
	}
	return gputypes.LoadOpLoad
}

// submitPass records an empty render pass, submits it and waits.
func (d *Device) submitPass(desc *hal.RenderPassDescriptor) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	encoder, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: desc.Label + "_encoder",
	})
	if err != nil {
		return fmt.Errorf("native: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding(desc.Label); err != nil {
		return fmt.Errorf("native: begin encoding: %w", err)
	}
	rp := encoder.BeginRenderPass(desc)
	rp.End()

	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("native: end encoding: %w", err)
	}
	defer d.device.FreeCommandBuffer(cmdBuf)

	return d.submitAndWait([]hal.CommandBuffer{cmdBuf})
}

// submitAndWait submits cmds, if any, and waits for the device to go idle.
func (d *Device) submitAndWait(cmds []hal.CommandBuffer) error {
	if len(cmds) > 0 {
		if _, err := d.queue.Submit(cmds); err != nil {
			return fmt.Errorf("native: submit: %w", err)
		}
	}
	if err := d.device.WaitIdle(); err != nil {
		return fmt.Errorf("native: wait idle: %w", err)
	}
	return nil
}

// Flush implements display.Device. It blocks until previously submitted
// work has completed.
func (d *Device) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submitAndWait(nil)
}

// resource is a HAL texture and its default view shared by Texture references.
type resource struct {
	device *Device
	desc   display.TextureDescriptor
	tex    hal.Texture
	view   hal.TextureView
	refs   atomic.Int32
}

func (r *resource) ref() *Texture {
	r.refs.Add(1)
	return &Texture{r: r}
}

func (r *resource) destroy() {
	r.device.device.DestroyTextureView(r.view)
	r.device.device.DestroyTexture(r.tex)
	r.view, r.tex = nil, nil
	display.Logger().Debug("native texture destroyed", "label", r.desc.Label)
}

// Texture is one reference to a HAL texture.
type Texture struct {
	r    *resource
	dead atomic.Bool
}

// Width implements display.DeviceTexture.
func (t *Texture) Width() int { return t.r.desc.Width }

// Height implements display.DeviceTexture.
func (t *Texture) Height() int { return t.r.desc.Height }

// Format implements display.DeviceTexture.
func (t *Texture) Format() gputypes.TextureFormat { return t.r.desc.Format }

// Native implements display.DeviceTexture.
func (t *Texture) Native() any { return t.r }

// Share implements display.DeviceTexture.
func (t *Texture) Share() display.DeviceTexture { return t.r.ref() }

// Refs returns the number of live references.
func (t *Texture) Refs() int { return int(t.r.refs.Load()) }

// Raw returns the HAL texture, or nil after the last reference is destroyed.
func (t *Texture) Raw() hal.Texture { return t.r.tex }

// View returns the default texture view, or nil after the last reference
// is destroyed.
func (t *Texture) View() hal.TextureView { return t.r.view }

// Destroy implements display.DeviceTexture. The HAL texture is destroyed
// with the last reference.
func (t *Texture) Destroy() {
	if !t.dead.CompareAndSwap(false, true) {
		return
	}
	if t.r.refs.Add(-1) == 0 {
		t.r.destroy()
	}
}

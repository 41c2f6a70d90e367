package display

import (
	"fmt"
	"sync/atomic"

	"github.com/gogpu/gputypes"
)

var textureIDs atomic.Uint64

// Texture is a two-phase texture handle. Its descriptor is valid from
// construction; the device resource is bound lazily, just before first use,
// and can be re-pointed without changing the Texture's identity.
//
// A Texture owns at most one DeviceTexture reference at a time.
type Texture struct {
	id     uint64
	desc   TextureDescriptor
	device Device
	res    DeviceTexture

	// generation increments on every rebind so consumers holding the
	// Texture can detect that the underlying resource changed.
	generation uint64

	released bool
}

// NewTexture returns an unbound logical texture that realizes itself on
// device when first used. device may be nil for textures bound only
// through Rebind.
func NewTexture(device Device, desc TextureDescriptor) *Texture {
	if desc.SampleCount == 0 {
		desc.SampleCount = 1
	}
	return &Texture{
		id:     textureIDs.Add(1),
		desc:   desc,
		device: device,
	}
}

// WrapTexture returns a Texture that takes ownership of an existing device
// resource. The descriptor is derived from res.
func WrapTexture(label string, res DeviceTexture) *Texture {
	t := NewTexture(nil, TextureDescriptor{
		Label:  label,
		Width:  res.Width(),
		Height: res.Height(),
		Format: res.Format(),
	})
	t.Rebind(res)
	return t
}

// ID returns the stable identity of the logical texture.
func (t *Texture) ID() uint64 { return t.id }

// Label returns the debug label.
func (t *Texture) Label() string { return t.desc.Label }

// Descriptor returns the logical descriptor.
func (t *Texture) Descriptor() TextureDescriptor { return t.desc }

// Width returns the logical width in pixels.
func (t *Texture) Width() int { return t.desc.Width }

// Height returns the logical height in pixels.
func (t *Texture) Height() int { return t.desc.Height }

// Format returns the logical pixel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.desc.Format }

// Generation returns the number of times the resource has been rebound.
func (t *Texture) Generation() uint64 { return t.generation }

// IsBound reports whether a device resource is attached.
func (t *Texture) IsBound() bool { return t.res != nil }

// Resource returns the bound device resource, or nil.
func (t *Texture) Resource() DeviceTexture { return t.res }

// SameResource reports whether t and o are bound to the same device resource.
func (t *Texture) SameResource(o *Texture) bool {
	if t == nil || o == nil || t.res == nil || o.res == nil {
		return false
	}
	return t.res.Native() == o.res.Native()
}

// Realize binds a device resource created from the descriptor if none
// is bound yet. It is a no-op for bound textures.
func (t *Texture) Realize() error {
	if t.released {
		return ErrReleased
	}
	if t.res != nil {
		return nil
	}
	if t.device == nil {
		return &ResourceAllocationError{Label: t.desc.Label, Err: ErrNullTarget}
	}

	var (
		res DeviceTexture
		err error
	)
	if isDepthFormat(t.desc.Format) {
		res, err = t.device.CreateDepthStencil(t.desc)
	} else {
		res, err = t.device.CreateRenderTarget(t.desc)
	}
	if err != nil {
		return &ResourceAllocationError{Label: t.desc.Label, Err: err}
	}
	if res == nil {
		return &ResourceAllocationError{Label: t.desc.Label, Err: ErrNullTarget}
	}
	t.bind(res)
	Logger().Debug("texture realized", "label", t.desc.Label, "width", t.desc.Width, "height", t.desc.Height)
	return nil
}

// Rebind transfers ownership of res to t. The previously bound reference is
// destroyed and the descriptor follows res. Identity is unchanged; the
// generation counter advances.
func (t *Texture) Rebind(res DeviceTexture) {
	if t.released {
		if res != nil {
			res.Destroy()
		}
		return
	}
	t.bind(res)
	if res != nil {
		t.desc.Width = res.Width()
		t.desc.Height = res.Height()
		t.desc.Format = res.Format()
	}
}

func (t *Texture) bind(res DeviceTexture) {
	if t.res != nil {
		t.res.Destroy()
	}
	t.res = res
	t.generation++
}

// Unbind destroys the bound reference, keeping the logical descriptor.
func (t *Texture) Unbind() {
	if t.res != nil {
		t.res.Destroy()
		t.res = nil
		t.generation++
	}
}

// Release unbinds the resource and marks the texture unusable.
func (t *Texture) Release() {
	if t == nil {
		return
	}
	t.Unbind()
	t.released = true
}

// Released reports whether Release was called.
func (t *Texture) Released() bool { return t.released }

// String implements fmt.Stringer.
func (t *Texture) String() string {
	return fmt.Sprintf("%s#%d(%dx%d)", t.desc.Label, t.id, t.desc.Width, t.desc.Height)
}

func isDepthFormat(f gputypes.TextureFormat) bool {
	return f == FormatDepth
}

// realize binds t's resource and asserts on failure. It reports whether t
// is usable.
func realize(t *Texture) bool {
	if t == nil {
		return assertf(false, "realize nil texture")
	}
	if err := t.Realize(); err != nil {
		return assertf(false, "texture %s: %v", t, err)
	}
	return true
}

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package software provides a CPU implementation of display.Device.
//
// Color targets are *image.RGBA regardless of the requested format; depth
// targets hold a float32 depth plane and a uint8 stencil plane. The device
// is used headless, in tests and by the virtual swap chain backend.
package software

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"

	"github.com/gogpu/display"
	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"
)

// DefaultMaxTextureSize is the largest texture axis the device accepts.
const DefaultMaxTextureSize = 8192

var (
	// ErrForeignTexture is returned for textures created by another device.
	ErrForeignTexture = errors.New("software: texture not created by this device")

	// ErrDestroyed is returned when operating on a destroyed texture reference.
	ErrDestroyed = errors.New("software: texture destroyed")

	// ErrTooLarge is returned when a texture exceeds the maximum size.
	ErrTooLarge = errors.New("software: texture exceeds maximum size")
)

// Stats are cumulative device counters.
type Stats struct {
	Created   int64
	Destroyed int64
	Clears    int64
	Flushes   int64
}

// Live returns the number of textures not yet destroyed.
func (s Stats) Live() int64 { return s.Created - s.Destroyed }

// Device is a CPU display.Device. It is safe for concurrent use.
type Device struct {
	maxSize int

	created   atomic.Int64
	destroyed atomic.Int64
	clears    atomic.Int64
	flushes   atomic.Int64

	// failNext makes the next texture creation fail.
	failNext atomic.Bool
}

// NewDevice returns a device accepting textures up to DefaultMaxTextureSize.
func NewDevice() *Device {
	return &Device{maxSize: DefaultMaxTextureSize}
}

// NewDeviceWithLimit returns a device accepting textures up to maxSize.
func NewDeviceWithLimit(maxSize int) *Device {
	if maxSize <= 0 {
		maxSize = DefaultMaxTextureSize
	}
	return &Device{maxSize: maxSize}
}

// MaxTextureSize implements display.MaxTextureSizer.
func (d *Device) MaxTextureSize() int { return d.maxSize }

// Stats returns a snapshot of the device counters.
func (d *Device) Stats() Stats {
	return Stats{
		Created:   d.created.Load(),
		Destroyed: d.destroyed.Load(),
		Clears:    d.clears.Load(),
		Flushes:   d.flushes.Load(),
	}
}

// FailNextAllocation makes the next CreateRenderTarget or CreateDepthStencil fail.
func (d *Device) FailNextAllocation() { d.failNext.Store(true) }

// CreateRenderTarget implements display.Device.
func (d *Device) CreateRenderTarget(desc display.TextureDescriptor) (display.DeviceTexture, error) {
	s, err := d.newSurface(desc)
	if err != nil {
		return nil, err
	}
	s.color = image.NewRGBA(image.Rect(0, 0, desc.Width, desc.Height))
	return s.ref(), nil
}

// CreateDepthStencil implements display.Device.
func (d *Device) CreateDepthStencil(desc display.TextureDescriptor) (display.DeviceTexture, error) {
	s, err := d.newSurface(desc)
	if err != nil {
		return nil, err
	}
	n := desc.Width * desc.Height
	s.depth = make([]float32, n)
	s.stencil = make([]uint8, n)
	return s.ref(), nil
}

func (d *Device) newSurface(desc display.TextureDescriptor) (*surface, error) {
	if d.failNext.CompareAndSwap(true, false) {
		return nil, fmt.Errorf("software: create %q: out of memory", desc.Label)
	}
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("software: create %q %dx%d: %w", desc.Label, desc.Width, desc.Height, display.ErrInvalidDimensions)
	}
	if desc.Width > d.maxSize || desc.Height > d.maxSize {
		return nil, fmt.Errorf("software: create %q %dx%d: %w", desc.Label, desc.Width, desc.Height, ErrTooLarge)
	}
	d.created.Add(1)
	display.Logger().Debug("software texture created", "label", desc.Label, "width", desc.Width, "height", desc.Height)
	return &surface{device: d, desc: desc}, nil
}

// ClearSurface implements display.Device.
func (d *Device) ClearSurface(tex display.DeviceTexture, flags display.ClearFlags, c gputypes.Color, depth float32, stencil uint32) error {
	t, err := d.own(tex)
	if err != nil {
		return err
	}
	s := t.s
	if flags&display.ClearColor != 0 && s.color != nil {
		draw.Draw(s.color, s.color.Bounds(), image.NewUniform(toRGBA(c)), image.Point{}, draw.Src)
	}
	if flags&display.ClearDepth != 0 && s.depth != nil {
		for i := range s.depth {
			s.depth[i] = depth
		}
	}
	if flags&display.ClearStencil != 0 && s.stencil != nil {
		//nolint:gosec // G115: stencil is 8 bits
		v := uint8(stencil & 0xFF)
		for i := range s.stencil {
			s.stencil[i] = v
		}
	}
	d.clears.Add(1)
	return nil
}

// Flush implements display.Device. Work completes synchronously, so Flush
// only counts.
func (d *Device) Flush() error {
	d.flushes.Add(1)
	return nil
}

// ReadPixels implements display.PixelReader. It returns a copy of the color plane.
func (d *Device) ReadPixels(tex display.DeviceTexture) (*image.RGBA, error) {
	t, err := d.own(tex)
	if err != nil {
		return nil, err
	}
	if t.s.color == nil {
		return nil, fmt.Errorf("software: read %q: not a color target", t.s.desc.Label)
	}
	img := image.NewRGBA(t.s.color.Bounds())
	copy(img.Pix, t.s.color.Pix)
	return img, nil
}

func (d *Device) own(tex display.DeviceTexture) (*Texture, error) {
	t, ok := tex.(*Texture)
	if !ok || t == nil || t.s.device != d {
		return nil, ErrForeignTexture
	}
	if t.dead.Load() {
		return nil, ErrDestroyed
	}
	return t, nil
}

func toRGBA(c gputypes.Color) color.RGBA {
	return color.RGBA{
		R: unit8(float64(c.R)),
		G: unit8(float64(c.G)),
		B: unit8(float64(c.B)),
		A: unit8(float64(c.A)),
	}
}

func unit8(v float64) uint8 {
	v = min(max(v, 0), 1)
	return uint8(v*255 + 0.5)
}

// surface is the shared storage behind one or more Texture references.
type surface struct {
	device  *Device
	desc    display.TextureDescriptor
	color   *image.RGBA
	depth   []float32
	stencil []uint8
	refs    atomic.Int32
}

func (s *surface) ref() *Texture {
	s.refs.Add(1)
	return &Texture{s: s}
}

// Texture is one reference to a software surface. Share returns another
// reference; the surface is freed when the last reference is destroyed.
type Texture struct {
	s    *surface
	dead atomic.Bool
}

// Width implements display.DeviceTexture.
func (t *Texture) Width() int { return t.s.desc.Width }

// Height implements display.DeviceTexture.
func (t *Texture) Height() int { return t.s.desc.Height }

// Format implements display.DeviceTexture.
func (t *Texture) Format() gputypes.TextureFormat { return t.s.desc.Format }

// Label returns the debug label.
func (t *Texture) Label() string { return t.s.desc.Label }

// Native implements display.DeviceTexture. References to the same surface
// return the same value.
func (t *Texture) Native() any { return t.s }

// Share implements display.DeviceTexture.
func (t *Texture) Share() display.DeviceTexture { return t.s.ref() }

// Refs returns the number of live references to the surface.
func (t *Texture) Refs() int { return int(t.s.refs.Load()) }

// Destroy implements display.DeviceTexture. Destroying a reference twice is a no-op.
func (t *Texture) Destroy() {
	if !t.dead.CompareAndSwap(false, true) {
		return
	}
	if t.s.refs.Add(-1) == 0 {
		t.s.device.destroyed.Add(1)
		t.s.color, t.s.depth, t.s.stencil = nil, nil, nil
	}
}

// Image returns the color plane, or nil for depth targets.
func (t *Texture) Image() *image.RGBA { return t.s.color }

// DepthAt returns the depth value at (x, y).
func (t *Texture) DepthAt(x, y int) float32 { return t.s.depth[y*t.s.desc.Width+x] }

// StencilAt returns the stencil value at (x, y).
func (t *Texture) StencilAt(x, y int) uint8 { return t.s.stencil[y*t.s.desc.Width+x] }

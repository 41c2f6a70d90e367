// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package display

import (
	"image"

	"github.com/gogpu/gputypes"
)

// Device is the GPU device abstraction consumed by display. It is provided by
// the host; display never creates one. See backend/software and backend/native.
//
// Key principle: display RECEIVES the device, it does NOT own it.
type Device interface {
	// CreateRenderTarget creates a color texture usable as a render attachment.
	CreateRenderTarget(desc TextureDescriptor) (DeviceTexture, error)

	// CreateDepthStencil creates a depth/stencil texture.
	CreateDepthStencil(desc TextureDescriptor) (DeviceTexture, error)

	// ClearSurface clears the selected aspects of tex.
	ClearSurface(tex DeviceTexture, flags ClearFlags, c gputypes.Color, depth float32, stencil uint32) error

	// Flush submits pending work, waits for the GPU to retire it and resets
	// bound state so no outstanding reference to any texture remains.
	Flush() error
}

// DeviceTexture is a device-side texture reference. Each value is owned by
// whoever received it; Destroy drops that reference only.
type DeviceTexture interface {
	// Width returns the texture width in pixels.
	Width() int

	// Height returns the texture height in pixels.
	Height() int

	// Format returns the texture pixel format.
	Format() gputypes.TextureFormat

	// Native returns the underlying device resource. Two references to the
	// same image return the same value.
	Native() any

	// Share returns a new owned reference to the same underlying resource.
	Share() DeviceTexture

	// Destroy drops this reference. The resource is freed with its last reference.
	Destroy()
}

// PixelReader is implemented by devices that support reading back texture
// contents, used by Capture.
type PixelReader interface {
	ReadPixels(tex DeviceTexture) (*image.RGBA, error)
}

// MaxTextureSizer is implemented by devices that report their texture size limit.
type MaxTextureSizer interface {
	MaxTextureSize() int
}

// TextureUsage aliases the gputypes usage flags.
type TextureUsage = gputypes.TextureUsage

// TextureDescriptor describes a texture to create.
type TextureDescriptor struct {
	// Label is an optional debug label.
	Label string

	// Width is the texture width in pixels.
	Width int

	// Height is the texture height in pixels.
	Height int

	// Format is the texture pixel format.
	Format gputypes.TextureFormat

	// SampleCount is the number of samples per pixel. 0 means 1.
	SampleCount int

	// Usage specifies how the texture will be used.
	Usage TextureUsage
}

// Formats used by display targets.
const (
	// FormatLDR is the swap chain and LDR offscreen format.
	FormatLDR = gputypes.TextureFormatBGRA8Unorm

	// FormatHDR is the dedicated HDR target format.
	FormatHDR = gputypes.TextureFormatRGBA16Float

	// FormatDepth is the depth/stencil target format.
	FormatDepth = gputypes.TextureFormatDepth24PlusStencil8
)

// ColorTargetDescriptor returns a descriptor for a color render target.
func ColorTargetDescriptor(label string, w, h int, format gputypes.TextureFormat) TextureDescriptor {
	return TextureDescriptor{
		Label:       label,
		Width:       w,
		Height:      h,
		Format:      format,
		SampleCount: 1,
		Usage:       gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopySrc,
	}
}

// DepthTargetDescriptor returns a descriptor for a depth/stencil target.
func DepthTargetDescriptor(label string, w, h int) TextureDescriptor {
	return TextureDescriptor{
		Label:       label,
		Width:       w,
		Height:      h,
		Format:      FormatDepth,
		SampleCount: 1,
		Usage:       gputypes.TextureUsageRenderAttachment,
	}
}

// ClearFlags selects which aspects of a target are cleared.
type ClearFlags uint8

const (
	// ClearColor clears the color target.
	ClearColor ClearFlags = 1 << iota

	// ClearDepth clears the depth aspect of the depth target.
	ClearDepth

	// ClearStencil clears the stencil aspect of the depth target.
	ClearStencil

	// ClearNone clears nothing.
	ClearNone ClearFlags = 0

	// ClearDepthStencil clears both depth and stencil.
	ClearDepthStencil = ClearDepth | ClearStencil

	// ClearAll clears every aspect.
	ClearAll = ClearColor | ClearDepth | ClearStencil
)

// String returns a short description such as "color|depth".
func (f ClearFlags) String() string {
	if f == ClearNone {
		return "none"
	}
	s := ""
	add := func(name string) {
		if s != "" {
			s += "|"
		}
		s += name
	}
	if f&ClearColor != 0 {
		add("color")
	}
	if f&ClearDepth != 0 {
		add("depth")
	}
	if f&ClearStencil != 0 {
		add("stencil")
	}
	return s
}

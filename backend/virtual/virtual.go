// Package virtual provides a swap chain backend that rotates a ring of
// render targets created on any display.Device.
//
// Nothing is shown on screen. The backend drives headless frame loops and
// tests, and behaves like a flip-model swap chain: Resize fails while any
// buffer reference other than the swap chain's own is still alive.
package virtual

import (
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/display"
	"github.com/gogpu/gputypes"
)

// Name is the registry name of the backend.
const Name = "virtual"

// Priority is the registry priority. Native backends rank higher.
const Priority = 10

var (
	// ErrBuffersInUse is returned by Resize while back buffer references are outstanding.
	ErrBuffersInUse = errors.New("virtual: back buffers still referenced")

	// ErrReleased is returned for operations on a released swap chain.
	ErrReleased = errors.New("virtual: swap chain released")
)

func init() {
	display.RegisterBackend(Name, Priority, func(device display.Device) (display.SwapChainBackend, error) {
		if device == nil {
			return nil, errors.New("virtual: nil device")
		}
		return New(device), nil
	}, nil)
}

// Backend creates virtual swap chains.
type Backend struct {
	device display.Device
}

// New returns a backend allocating buffers on device.
func New(device display.Device) *Backend {
	return &Backend{device: device}
}

// Name implements display.SwapChainBackend.
func (b *Backend) Name() string { return Name }

// CreateSwapChain implements display.SwapChainBackend.
func (b *Backend) CreateSwapChain(desc display.SwapChainDescriptor) (display.SwapChain, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("virtual: swap chain %dx%d: %w", desc.Width, desc.Height, display.ErrInvalidDimensions)
	}
	if desc.BufferCount <= 0 {
		desc.BufferCount = 2
	}
	if desc.Format == gputypes.TextureFormatUndefined {
		desc.Format = display.FormatLDR
	}
	sc := &SwapChain{device: b.device, desc: desc, latency: 1}
	if err := sc.allocate(); err != nil {
		return nil, err
	}
	display.Logger().Debug("virtual swap chain created",
		"window", desc.Window, "width", desc.Width, "height", desc.Height, "buffers", desc.BufferCount)
	return sc, nil
}

// refCounter is implemented by device textures that expose their reference count.
type refCounter interface {
	Refs() int
}

// SwapChain is a ring of render targets.
type SwapChain struct {
	device  display.Device
	desc    display.SwapChainDescriptor
	buffers []display.DeviceTexture
	index   int

	latency      int
	presents     int
	lastInterval int
	released     bool
}

func (s *SwapChain) allocate() error {
	s.buffers = make([]display.DeviceTexture, 0, s.desc.BufferCount)
	for i := range s.desc.BufferCount {
		res, err := s.device.CreateRenderTarget(display.ColorTargetDescriptor(
			fmt.Sprintf("swapchain%d_buffer%d", s.desc.Window, i), s.desc.Width, s.desc.Height, s.desc.Format))
		if err != nil {
			s.destroyBuffers()
			return err
		}
		s.buffers = append(s.buffers, res)
	}
	s.index = 0
	return nil
}

func (s *SwapChain) destroyBuffers() {
	for _, b := range s.buffers {
		b.Destroy()
	}
	s.buffers = nil
}

// Descriptor implements display.SwapChain.
func (s *SwapChain) Descriptor() display.SwapChainDescriptor { return s.desc }

// Resize implements display.SwapChain. Fullscreen with a zero size uses the
// output bounds.
func (s *SwapChain) Resize(width, height int, fullscreen bool) error {
	if s.released {
		return ErrReleased
	}
	if fullscreen && width == 0 && height == 0 && !s.desc.Output.Bounds.Empty() {
		width, height = s.desc.Output.Bounds.Dx(), s.desc.Output.Bounds.Dy()
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("virtual: resize %dx%d: %w", width, height, display.ErrInvalidDimensions)
	}
	for i, b := range s.buffers {
		if rc, ok := b.(refCounter); ok && rc.Refs() > 1 {
			return fmt.Errorf("virtual: resize buffer %d has %d references: %w", i, rc.Refs(), ErrBuffersInUse)
		}
	}
	s.destroyBuffers()
	s.desc.Width, s.desc.Height, s.desc.Fullscreen = width, height, fullscreen
	return s.allocate()
}

// Present implements display.SwapChain.
func (s *SwapChain) Present(interval int) error {
	if s.released {
		return ErrReleased
	}
	s.presents++
	s.lastInterval = interval
	s.index = (s.index + 1) % len(s.buffers)
	return nil
}

// Buffer implements display.SwapChain. The caller owns the returned reference.
func (s *SwapChain) Buffer(i int) (display.DeviceTexture, error) {
	if s.released {
		return nil, ErrReleased
	}
	if i < 0 || i >= len(s.buffers) {
		return nil, fmt.Errorf("virtual: buffer %d of %d: %w", i, len(s.buffers), display.ErrIndexOutOfRange)
	}
	return s.buffers[i].Share(), nil
}

// BackBufferIndex implements display.SwapChain.
func (s *SwapChain) BackBufferIndex() int { return s.index }

// SetMaximumFrameLatency implements display.SwapChain.
func (s *SwapChain) SetMaximumFrameLatency(frames int) { s.latency = frames }

// FrameLatency returns the configured maximum frame latency.
func (s *SwapChain) FrameLatency() int { return s.latency }

// Presents returns the number of Present calls.
func (s *SwapChain) Presents() int { return s.presents }

// LastInterval returns the interval of the last Present call.
func (s *SwapChain) LastInterval() int { return s.lastInterval }

// Release implements display.SwapChain.
func (s *SwapChain) Release() {
	if s.released {
		return
	}
	s.destroyBuffers()
	s.released = true
}

// Window is a display.Window with fixed bounds.
type Window struct {
	handle display.WindowHandle
	bounds image.Rectangle
}

// NewWindow returns a window with the given handle and screen bounds.
func NewWindow(handle display.WindowHandle, bounds image.Rectangle) *Window {
	return &Window{handle: handle, bounds: bounds}
}

// Handle implements display.Window.
func (w *Window) Handle() display.WindowHandle { return w.handle }

// Bounds implements display.Window.
func (w *Window) Bounds() image.Rectangle { return w.bounds }

// Move sets the window bounds.
func (w *Window) Move(bounds image.Rectangle) { w.bounds = bounds }

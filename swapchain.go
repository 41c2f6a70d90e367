package display

import (
	"image"

	"github.com/gogpu/gputypes"
)

// WindowHandle identifies a native window. Zero means no window.
type WindowHandle uintptr

// Window is the platform windowing surface consumed by swap chain contexts.
type Window interface {
	// Handle returns the native window handle.
	Handle() WindowHandle

	// Bounds returns the window rectangle in desktop coordinates.
	Bounds() image.Rectangle
}

// SwapChainDescriptor describes a swap chain. Every back buffer has exactly
// these dimensions and format.
type SwapChainDescriptor struct {
	Window      WindowHandle
	Width       int
	Height      int
	Format      gputypes.TextureFormat
	BufferCount int
	Fullscreen  bool
	VSync       bool
	Output      Output
}

// SwapChainBackend creates native swap chains. One implementation exists per
// platform; the context logic itself contains no platform conditionals.
type SwapChainBackend interface {
	// Name returns the backend identifier (e.g., "virtual", "vulkan").
	Name() string

	// CreateSwapChain creates a swap chain for desc.
	CreateSwapChain(desc SwapChainDescriptor) (SwapChain, error)
}

// SwapChain is the uniform native swap chain surface.
type SwapChain interface {
	// Descriptor returns the current descriptor.
	Descriptor() SwapChainDescriptor

	// Resize changes buffer dimensions and the fullscreen state. All buffer
	// references handed out before must have been destroyed.
	Resize(width, height int, fullscreen bool) error

	// Present queues the current back buffer for display with the given
	// swap interval and advances the back-buffer index.
	Present(interval int) error

	// Buffer returns a new owned reference to physical buffer i.
	Buffer(i int) (DeviceTexture, error)

	// BackBufferIndex returns the index of the buffer to render into.
	BackBufferIndex() int

	// SetMaximumFrameLatency limits the number of frames queued for presentation.
	SetMaximumFrameLatency(frames int)

	// Release destroys the swap chain.
	Release()
}

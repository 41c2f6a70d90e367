package display

import (
	"fmt"
	"image"
)

// CustomDisplayContext is a DisplayContext over an externally supplied set
// of back buffers, for example images provided by a compositor or an XR
// runtime. No swap chain is owned; the caller selects the current buffer
// with SetSwapChainIndex. The buffers remain owned by the caller.
type CustomDisplayContext struct {
	*DisplayContext

	buffers    []*Texture
	index      int
	proxy      *Texture
	proxyIndex int
}

// NewCustomDisplayContext creates a context presenting into buffers. All
// buffers must share dimensions and format. A zero descriptor size selects
// the buffer size; a non-zero size must match it.
func NewCustomDisplayContext(device Device, desc ContextDescriptor, buffers []*Texture, opts ...Option) (*CustomDisplayContext, error) {
	o := buildOptions(device, opts)
	if err := o.thread.check("NewCustomDisplayContext"); err != nil {
		return nil, err
	}
	if err := validateBuffers(buffers); err != nil {
		return nil, err
	}
	w, h := buffers[0].Width(), buffers[0].Height()
	if desc.Width == 0 && desc.Height == 0 {
		desc.Width, desc.Height = w, h
	}
	if !assertf(desc.Width == w && desc.Height == h, "custom context %q: size %dx%d does not match buffers %dx%d", desc.Name, desc.Width, desc.Height, w, h) {
		return nil, invalidDimensions("NewCustomDisplayContext", desc.Width, desc.Height)
	}

	c := &CustomDisplayContext{
		DisplayContext: newDisplayContext(device, desc, o),
		buffers:        append([]*Texture(nil), buffers...),
		proxyIndex:     -1,
	}
	c.surface = c
	c.proxy = NewTexture(nil, ColorTargetDescriptor(c.desc.Name+"_backbuffer", w, h, buffers[0].Format()))
	if err := c.allocate(w, h); err != nil {
		c.releaseSurface()
		return nil, err
	}
	return c, nil
}

func validateBuffers(buffers []*Texture) error {
	if !assertf(len(buffers) > 0, "custom context without back buffers") {
		return &ConfigurationError{Op: "custom back buffers", Err: ErrNullTarget}
	}
	first := buffers[0]
	for i, b := range buffers {
		if !assertf(b != nil, "custom back buffer %d is nil", i) {
			return &ConfigurationError{Op: "custom back buffers", Err: ErrNullTarget}
		}
		if b.Width() <= 0 || b.Height() <= 0 {
			assertf(false, "custom back buffer %d has invalid size %dx%d", i, b.Width(), b.Height())
			return invalidDimensions("custom back buffers", b.Width(), b.Height())
		}
		if b.Width() != first.Width() || b.Height() != first.Height() || b.Format() != first.Format() {
			assertf(false, "custom back buffer %d (%s) differs from buffer 0 (%s)", i, b, first)
			return &ConfigurationError{Op: fmt.Sprintf("custom back buffer %d", i), Width: b.Width(), Height: b.Height(), Err: ErrInvalidDimensions}
		}
	}
	return nil
}

// SwapChainIndex returns the index of the current buffer.
func (c *CustomDisplayContext) SwapChainIndex() int { return c.index }

// BufferCount returns the number of supplied buffers.
func (c *CustomDisplayContext) BufferCount() int { return len(c.buffers) }

// BackBufferProxy returns the stable back-buffer handle.
func (c *CustomDisplayContext) BackBufferProxy() *Texture { return c.proxy }

// SetSwapChainIndex selects which supplied buffer is current this frame.
// The proxy follows on the next access.
func (c *CustomDisplayContext) SetSwapChainIndex(i int) error {
	if err := c.checkMutable("SetSwapChainIndex"); err != nil {
		return err
	}
	if !assertf(i >= 0 && i < len(c.buffers), "swap chain index %d out of range [0,%d)", i, len(c.buffers)) {
		return ErrIndexOutOfRange
	}
	c.index = i
	return nil
}

// SetBackBuffers replaces the supplied buffers and resizes the context to
// their dimensions.
func (c *CustomDisplayContext) SetBackBuffers(buffers []*Texture) error {
	if err := c.checkMutable("SetBackBuffers"); err != nil {
		return err
	}
	if err := validateBuffers(buffers); err != nil {
		return err
	}
	c.proxy.Unbind()
	c.proxyIndex = -1
	c.buffers = append(c.buffers[:0], buffers...)
	c.index = 0
	return c.resize(buffers[0].Width(), buffers[0].Height(), image.Rectangle{}, true)
}

// Advance selects the next buffer in round-robin order.
func (c *CustomDisplayContext) Advance() error {
	return c.SetSwapChainIndex((c.index + 1) % len(c.buffers))
}

func (c *CustomDisplayContext) resizeSurface(w, h int) (int, int, error) {
	bw, bh := c.buffers[0].Width(), c.buffers[0].Height()
	if !assertf(w == bw && h == bh, "custom context %q cannot resize to %dx%d, buffers are %dx%d", c.desc.Name, w, h, bw, bh) {
		return 0, 0, invalidDimensions("resize custom context", w, h)
	}
	return bw, bh, c.bindProxy()
}

func (c *CustomDisplayContext) bindProxy() error {
	b := c.buffers[c.index]
	if err := b.Realize(); err != nil {
		assertf(false, "custom back buffer %s: %v", b, err)
		return err
	}
	c.proxy.Rebind(b.Resource().Share())
	c.proxyIndex = c.index
	return nil
}

func (c *CustomDisplayContext) currentBackBuffer() *Texture {
	if c.index >= len(c.buffers) {
		return nil
	}
	return c.buffers[c.index]
}

func (c *CustomDisplayContext) storableColorOutput() *Texture { return c.proxy }

func (c *CustomDisplayContext) ensureCurrent() error {
	if c.proxyIndex == c.index && c.proxy.IsBound() {
		return nil
	}
	return c.bindProxy()
}

func (c *CustomDisplayContext) prePresent() error { return nil }

func (c *CustomDisplayContext) postPresent() error { return c.ensureCurrent() }

func (c *CustomDisplayContext) releaseSurface() {
	if c.proxy.IsBound() && c.device != nil {
		if err := c.device.Flush(); err != nil {
			Logger().Warn("flush before custom buffer release failed", "id", c.id, "err", err)
		}
	}
	c.proxy.Release()
	c.buffers = nil
}

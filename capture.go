package display

import (
	"errors"
	"image"

	"golang.org/x/image/draw"
)

// ErrCaptureUnsupported is returned by Capture when the device cannot read
// back pixels.
var ErrCaptureUnsupported = errors.New("display: device does not support readback")

// Capture reads tex back through reader and scales it down to at most
// maxWidth pixels wide, preserving the aspect ratio. A maxWidth of zero
// keeps the native size.
func Capture(tex *Texture, reader PixelReader, maxWidth int) (*image.RGBA, error) {
	if reader == nil {
		return nil, ErrCaptureUnsupported
	}
	if tex == nil || !tex.IsBound() {
		return nil, ErrNullTarget
	}
	src, err := reader.ReadPixels(tex.Resource())
	if err != nil {
		return nil, err
	}
	b := src.Bounds()
	if maxWidth <= 0 || b.Dx() <= maxWidth {
		return src, nil
	}
	h := max(b.Dy()*maxWidth/b.Dx(), 1)
	dst := image.NewRGBA(image.Rect(0, 0, maxWidth, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst, nil
}

// CaptureContext captures the current back buffer of dc. The device must
// implement PixelReader.
func CaptureContext(dc *DisplayContext, maxWidth int) (*image.RGBA, error) {
	reader, _ := dc.device.(PixelReader)
	tex := dc.CurrentBackBuffer()
	if tex != nil {
		if err := tex.Realize(); err != nil {
			return nil, err
		}
	}
	return Capture(tex, reader, maxWidth)
}

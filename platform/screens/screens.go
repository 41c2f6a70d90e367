// Package screens enumerates physical display outputs with
// github.com/kbinani/screenshot.
package screens

import (
	"fmt"
	"image"

	"github.com/gogpu/display"
	"github.com/kbinani/screenshot"
)

// Enumerator implements display.OutputEnumerator over the active displays
// reported by the operating system. Refresh rates are not reported and
// are left unknown.
type Enumerator struct {
	// count and bounds are replaced in tests.
	count  func() int
	bounds func(int) image.Rectangle
}

// New returns an enumerator over the system displays.
func New() *Enumerator {
	return &Enumerator{
		count:  screenshot.NumActiveDisplays,
		bounds: screenshot.GetDisplayBounds,
	}
}

// Outputs implements display.OutputEnumerator. The primary display is first.
func (e *Enumerator) Outputs() ([]display.Output, error) {
	n := e.count()
	if n <= 0 {
		return nil, display.ErrNoOutput
	}
	outputs := make([]display.Output, 0, n)
	for i := range n {
		b := e.bounds(i)
		if b.Empty() {
			continue
		}
		outputs = append(outputs, display.Output{
			Index:  i,
			Name:   fmt.Sprintf("display%d", i),
			Bounds: b,
		})
	}
	if len(outputs) == 0 {
		return nil, display.ErrNoOutput
	}
	display.Logger().Debug("outputs enumerated", "count", len(outputs))
	return outputs, nil
}

// Static is a fixed output list, for headless use.
type Static []display.Output

// Outputs implements display.OutputEnumerator.
func (s Static) Outputs() ([]display.Output, error) {
	if len(s) == 0 {
		return nil, display.ErrNoOutput
	}
	return append([]display.Output(nil), s...), nil
}

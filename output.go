package display

import (
	"fmt"
	"image"
	"math"
)

// RefreshRate is a rational refresh rate in Hz. Zero values mean unknown.
type RefreshRate struct {
	Numerator   uint32
	Denominator uint32
}

// Known reports whether both terms are present.
func (r RefreshRate) Known() bool { return r.Numerator != 0 && r.Denominator != 0 }

// Hz returns the refresh rate as a float, or 0 when unknown.
func (r RefreshRate) Hz() float64 {
	if !r.Known() {
		return 0
	}
	return float64(r.Numerator) / float64(r.Denominator)
}

// Output is a physical display output (monitor).
type Output struct {
	Index   int
	Name    string
	Bounds  image.Rectangle
	Refresh RefreshRate
}

func (o Output) String() string {
	if o.Name != "" {
		return fmt.Sprintf("%s %v", o.Name, o.Bounds)
	}
	return fmt.Sprintf("output%d %v", o.Index, o.Bounds)
}

// OutputEnumerator lists the physical outputs. The first output returned is
// the system default. See platform/screens.
type OutputEnumerator interface {
	Outputs() ([]Output, error)
}

// DefaultOutput is used when no output can be enumerated.
var DefaultOutput = Output{Index: 0, Name: "default"}

// SelectOutput returns the output whose bounds contain the window. When no
// output contains it, the output with the largest overlap wins. When nothing
// overlaps or enumeration fails, the system default is returned together
// with a PlatformIntegrationError; the returned output is always usable.
func SelectOutput(enum OutputEnumerator, window image.Rectangle) (Output, error) {
	if enum == nil {
		return DefaultOutput, &PlatformIntegrationError{Op: "select output", Err: ErrNoOutput}
	}
	outputs, err := enum.Outputs()
	if err != nil {
		return DefaultOutput, &PlatformIntegrationError{Op: "enumerate outputs", Err: err}
	}
	if len(outputs) == 0 {
		return DefaultOutput, &PlatformIntegrationError{Op: "enumerate outputs", Err: ErrNoOutput}
	}

	best, bestArea := -1, 0
	for i, o := range outputs {
		if !window.Empty() && window.In(o.Bounds) {
			return o, nil
		}
		in := window.Intersect(o.Bounds)
		if a := in.Dx() * in.Dy(); a > bestArea {
			best, bestArea = i, a
		}
	}
	if best >= 0 {
		return outputs[best], nil
	}
	return outputs[0], &PlatformIntegrationError{
		Op:  fmt.Sprintf("no output contains window %v", window),
		Err: ErrNoOutput,
	}
}

// Present interval bounds.
const (
	MinPresentInterval = 1
	MaxPresentInterval = 4
)

// ComputePresentInterval derives the swap interval. Without vsync the
// interval is 0. With vsync and a known refresh rate and positive maxFPS it is
// clamp(round(refresh/maxFPS), 1, 4); otherwise current is kept (1 when
// current is 0).
func ComputePresentInterval(vsync bool, refresh RefreshRate, maxFPS int, current int) int {
	if !vsync {
		return 0
	}
	if current < MinPresentInterval {
		current = MinPresentInterval
	}
	if !refresh.Known() || maxFPS <= 0 {
		return current
	}
	interval := int(math.Round(refresh.Hz() / float64(maxFPS)))
	return min(max(interval, MinPresentInterval), MaxPresentInterval)
}

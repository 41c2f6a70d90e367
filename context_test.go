package display

import (
	"errors"
	"image"
	"testing"
)

func newTestContext(t *testing.T, w, h int, flags ContextFlags, opts ...Option) (*DisplayContext, *fakeDevice) {
	t.Helper()
	dev := newFakeDevice()
	desc := DefaultContextDescriptor("offscreen", w, h)
	desc.Flags = flags
	dc, err := NewDisplayContext(dev, desc, opts...)
	if err != nil {
		t.Fatalf("NewDisplayContext() error = %v", err)
	}
	return dc, dev
}

func TestNewDisplayContext(t *testing.T) {
	dc, _ := newTestContext(t, 640, 480, 0)

	if dc.State() != StateAllocated {
		t.Errorf("State() = %v, want allocated", dc.State())
	}
	w, h := dc.DisplayResolution()
	if w != 640 || h != 480 {
		t.Errorf("DisplayResolution() = %dx%d, want 640x480", w, h)
	}
	if got := dc.AspectRatio(); got != 640.0/480.0 {
		t.Errorf("AspectRatio() = %v, want %v", got, 640.0/480.0)
	}
	if got := dc.Viewport(); got != image.Rect(0, 0, 640, 480) {
		t.Errorf("Viewport() = %v, want full display", got)
	}
	if dc.RenderOutput() == nil {
		t.Fatal("RenderOutput() is nil")
	}
	if dc.CurrentBackBuffer() == nil || dc.CurrentDepthOutput() == nil {
		t.Fatal("targets not allocated")
	}
	if dc.CurrentBackBuffer().IsBound() {
		t.Error("back buffer should be realized lazily")
	}
}

func TestNewDisplayContextInvalid(t *testing.T) {
	tripAssertions(t)

	tests := []struct {
		name string
		w, h int
	}{
		{"zero width", 0, 480},
		{"zero height", 640, 0},
		{"negative", -1, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDisplayContext(newFakeDevice(), DefaultContextDescriptor("bad", tt.w, tt.h))
			if !errors.Is(err, ErrInvalidDimensions) {
				t.Errorf("error = %v, want ErrInvalidDimensions", err)
			}
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Errorf("error %T is not a ConfigurationError", err)
			}
		})
	}
}

func TestSetDisplayResolutionRoundTrip(t *testing.T) {
	tests := []struct {
		w, h int
	}{
		{1, 1},
		{640, 480},
		{1280, 720},
		{1920, 1080},
		{3840, 2160},
		{1080, 1920},
	}
	dc, _ := newTestContext(t, 640, 480, 0)
	for _, tt := range tests {
		if err := dc.SetDisplayResolutionAndRecreateTargets(tt.w, tt.h, image.Rectangle{}); err != nil {
			t.Fatalf("SetDisplayResolutionAndRecreateTargets(%d, %d) error = %v", tt.w, tt.h, err)
		}
		w, h := dc.DisplayResolution()
		if w != tt.w || h != tt.h {
			t.Errorf("DisplayResolution() = %dx%d, want %dx%d", w, h, tt.w, tt.h)
		}
		if d := dc.CurrentDepthOutput(); d.Width() != tt.w || d.Height() != tt.h {
			t.Errorf("depth target = %dx%d, want %dx%d", d.Width(), d.Height(), tt.w, tt.h)
		}
		if c := dc.CurrentBackBuffer(); c.Width() != tt.w || c.Height() != tt.h {
			t.Errorf("color target = %dx%d, want %dx%d", c.Width(), c.Height(), tt.w, tt.h)
		}
		ow, oh := dc.RenderOutput().OutputResolution()
		if ow != tt.w || oh != tt.h {
			t.Errorf("OutputResolution() = %dx%d, want %dx%d", ow, oh, tt.w, tt.h)
		}
	}
}

func TestSetDisplayResolutionIdempotent(t *testing.T) {
	dc, dev := newTestContext(t, 800, 600, 0)
	out := dc.RenderOutput()
	if _, err := out.BeginRendering(Pass{Name: "warm", Frame: 1}); err != nil {
		t.Fatalf("BeginRendering() error = %v", err)
	}
	if err := out.EndRendering(Pass{Name: "warm", Frame: 1}); err != nil {
		t.Fatalf("EndRendering() error = %v", err)
	}

	color, depth := dc.CurrentBackBuffer(), dc.CurrentDepthOutput()
	created := dev.created

	for range 3 {
		if err := dc.SetDisplayResolutionAndRecreateTargets(800, 600, image.Rectangle{}); err != nil {
			t.Fatalf("SetDisplayResolutionAndRecreateTargets() error = %v", err)
		}
	}
	if dc.CurrentBackBuffer() != color || dc.CurrentDepthOutput() != depth {
		t.Error("targets recreated for an unchanged resolution")
	}
	if dev.created != created {
		t.Errorf("device created %d textures, want 0", dev.created-created)
	}
	if dc.State() != StateAllocated {
		t.Errorf("State() = %v, want allocated", dc.State())
	}
}

func TestSetDisplayResolutionRecreates(t *testing.T) {
	dc, _ := newTestContext(t, 800, 600, 0)
	depth := dc.CurrentDepthOutput()

	if err := dc.SetDisplayResolutionAndRecreateTargets(1024, 768, image.Rectangle{}); err != nil {
		t.Fatalf("SetDisplayResolutionAndRecreateTargets() error = %v", err)
	}
	if dc.CurrentDepthOutput() == depth {
		t.Error("depth target not recreated")
	}
	if !depth.Released() {
		t.Error("old depth target not released")
	}
	if dc.State() != StateResized {
		t.Errorf("State() = %v, want resized", dc.State())
	}
	if got := dc.AspectRatio(); got != 1024.0/768.0 {
		t.Errorf("AspectRatio() = %v", got)
	}
}

func TestSetDisplayResolutionViewport(t *testing.T) {
	dc, _ := newTestContext(t, 800, 600, 0)
	vp := image.Rect(10, 10, 400, 300)

	if err := dc.SetDisplayResolutionAndRecreateTargets(800, 600, vp); err != nil {
		t.Fatalf("error = %v", err)
	}
	if dc.Viewport() != vp {
		t.Errorf("Viewport() = %v, want %v", dc.Viewport(), vp)
	}
}

func TestSetDisplayResolutionInvalid(t *testing.T) {
	tripAssertions(t)

	dc, _ := newTestContext(t, 800, 600, 0)
	for _, size := range [][2]int{{0, 600}, {800, 0}, {-5, -5}} {
		err := dc.SetDisplayResolutionAndRecreateTargets(size[0], size[1], image.Rectangle{})
		if !errors.Is(err, ErrInvalidDimensions) {
			t.Errorf("SetDisplayResolutionAndRecreateTargets(%d, %d) error = %v, want ErrInvalidDimensions", size[0], size[1], err)
		}
	}
	if w, h := dc.DisplayResolution(); w != 800 || h != 600 {
		t.Errorf("resolution changed to %dx%d after invalid calls", w, h)
	}
}

func TestDisplayContextRelease(t *testing.T) {
	tripAssertions(t)

	dc, dev := newTestContext(t, 320, 240, 0)
	out := dc.RenderOutput()
	if _, err := out.BeginRendering(Pass{Frame: 1}); err != nil {
		t.Fatalf("BeginRendering() error = %v", err)
	}
	_ = out.EndRendering(Pass{Frame: 1})

	dc.Release()
	dc.Release()

	if dc.State() != StateReleased {
		t.Errorf("State() = %v, want released", dc.State())
	}
	if dev.live() != 0 {
		t.Errorf("%d device textures leaked", dev.live())
	}
	err := dc.SetDisplayResolutionAndRecreateTargets(640, 480, image.Rectangle{})
	if !errors.Is(err, ErrReleased) {
		t.Errorf("error after release = %v, want ErrReleased", err)
	}
	var stateErr *StateError
	if !errors.As(err, &stateErr) || stateErr.State != StateReleased {
		t.Errorf("error = %v, want StateError in released state", err)
	}
	if _, err := out.BeginRendering(Pass{Frame: 2}); !errors.Is(err, ErrReleased) {
		t.Errorf("BeginRendering after release error = %v, want ErrReleased", err)
	}
}

func TestContextIDsUnique(t *testing.T) {
	a, _ := newTestContext(t, 64, 64, 0)
	b, _ := newTestContext(t, 64, 64, 0)
	if a.ID() == b.ID() {
		t.Errorf("contexts share id %d", a.ID())
	}
	if b.ID() <= a.ID() {
		t.Errorf("ids not increasing: %d then %d", a.ID(), b.ID())
	}
}

func TestIsScalable(t *testing.T) {
	tests := []struct {
		name  string
		flags ContextFlags
		want  bool
	}{
		{"main viewport", FlagMainViewport, true},
		{"main editor viewport", FlagMainViewport | FlagEditor, false},
		{"editor", FlagEditor, false},
		{"secondary", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dc, _ := newTestContext(t, 640, 480, tt.flags)
			if got := dc.IsScalable(); got != tt.want {
				t.Errorf("IsScalable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCustomResolution(t *testing.T) {
	tests := []struct {
		name         string
		flags        ContextFlags
		customW      int
		customH      int
		wantW, wantH int
		wantScaling  bool
	}{
		{"off", FlagMainViewport, 0, 0, 1920, 1080, false},
		{"downscale", FlagMainViewport, 1280, 720, 1280, 720, true},
		{"below half clamps to half", FlagMainViewport, 100, 100, 960, 540, true},
		{"above display clamps to display", FlagMainViewport, 4000, 4000, 1920, 1080, true},
		{"not scalable", 0, 1280, 720, 1920, 1080, false},
		{"editor", FlagMainViewport | FlagEditor, 1280, 720, 1920, 1080, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.CustomResWidth, cfg.CustomResHeight = tt.customW, tt.customH
			dc, _ := newTestContext(t, 1920, 1080, tt.flags, WithConfig(cfg))

			w, h := dc.RenderOutput().OutputResolution()
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("OutputResolution() = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
			if got := dc.IsNativeScalingEnabled(); got != tt.wantScaling {
				t.Errorf("IsNativeScalingEnabled() = %v, want %v", got, tt.wantScaling)
			}
		})
	}
}

func TestCustomResolutionMaxSize(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CustomResWidth, cfg.CustomResHeight = 3000, 2000
	cfg.CustomResMaxSize = 2048
	dc, _ := newTestContext(t, 3840, 2160, FlagMainViewport, WithConfig(cfg))

	w, h := dc.RenderOutput().OutputResolution()
	if w != 2048 || h != 2000 {
		t.Errorf("OutputResolution() = %dx%d, want 2048x2000", w, h)
	}
}

func TestSetSuperSampling(t *testing.T) {
	dc, _ := newTestContext(t, 1920, 1080, FlagMainViewport)

	if err := dc.SetSuperSampling(2, 2); err != nil {
		t.Fatalf("SetSuperSampling() error = %v", err)
	}
	if x, y := dc.SuperSampling(); x != 2 || y != 2 {
		t.Errorf("SuperSampling() = %d,%d, want 2,2", x, y)
	}
	if got := dc.Viewport(); got != image.Rect(0, 0, 960, 540) {
		t.Errorf("Viewport() = %v, want 960x540", got)
	}
	if !dc.IsNativeScalingEnabled() {
		t.Error("IsNativeScalingEnabled() = false with supersampling")
	}

	if err := dc.SetSuperSampling(10, 10); err != nil {
		t.Fatalf("SetSuperSampling() error = %v", err)
	}
	if x, y := dc.SuperSampling(); x != 2 || y != 3 {
		t.Errorf("SuperSampling() = %d,%d, want clamped 2,3", x, y)
	}

	if err := dc.SetSuperSampling(0, -1); err != nil {
		t.Fatalf("SetSuperSampling() error = %v", err)
	}
	if x, y := dc.SuperSampling(); x != 1 || y != 1 {
		t.Errorf("SuperSampling() = %d,%d, want 1,1", x, y)
	}
}

func TestSuperSamplingFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SuperSampling = 2

	main, _ := newTestContext(t, 1280, 720, FlagMainViewport, WithConfig(cfg))
	if x, y := main.SuperSampling(); x != 2 || y != 2 {
		t.Errorf("main SuperSampling() = %d,%d, want 2,2", x, y)
	}
	other, _ := newTestContext(t, 1280, 720, 0, WithConfig(cfg))
	if x, y := other.SuperSampling(); x != 1 || y != 1 {
		t.Errorf("secondary SuperSampling() = %d,%d, want 1,1", x, y)
	}
}

func TestHDRColorOutput(t *testing.T) {
	sc, _, _ := newTestSwapChainContext(t, 1280, 720, FlagMainViewport|FlagHDR)

	if !sc.IsHighDynamicRange() {
		t.Fatal("IsHighDynamicRange() = false")
	}
	hdr := sc.HDRTarget()
	if hdr == nil {
		t.Fatal("HDRTarget() is nil")
	}
	if hdr.Format() != FormatHDR {
		t.Errorf("HDR format = %v, want %v", hdr.Format(), FormatHDR)
	}
	if got := sc.CurrentColorOutput(); got != hdr {
		t.Errorf("CurrentColorOutput() = %v, want HDR target", got)
	}
	bb := sc.CurrentBackBuffer()
	if bb == nil || !bb.IsBound() {
		t.Fatal("back buffer should exist and be valid while HDR is active")
	}
	if sc.CurrentColorOutput() == bb || sc.CurrentColorOutput() == sc.StorableColorOutput() {
		t.Error("CurrentColorOutput() returned the back buffer")
	}
}

func TestSetHDR(t *testing.T) {
	sc, _, _ := newTestSwapChainContext(t, 1280, 720, FlagMainViewport)

	if sc.HDRTarget() != nil {
		t.Fatal("HDR target allocated without HDR")
	}
	if sc.CurrentColorOutput() != sc.StorableColorOutput() {
		t.Error("LDR CurrentColorOutput() should be the stable back buffer")
	}

	if err := sc.SetHDR(true); err != nil {
		t.Fatalf("SetHDR(true) error = %v", err)
	}
	hdr := sc.HDRTarget()
	if hdr == nil || sc.CurrentColorOutput() != hdr {
		t.Fatal("SetHDR(true) did not activate the HDR target")
	}
	if hdr.Width() != 1280 || hdr.Height() != 720 {
		t.Errorf("HDR target = %dx%d, want 1280x720", hdr.Width(), hdr.Height())
	}

	if err := sc.SetHDR(false); err != nil {
		t.Fatalf("SetHDR(false) error = %v", err)
	}
	if !hdr.Released() {
		t.Error("HDR target not released")
	}
	if sc.CurrentColorOutput() != sc.StorableColorOutput() {
		t.Error("CurrentColorOutput() not back to the stable back buffer")
	}
}

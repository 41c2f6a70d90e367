// Command displaydemo drives a headless frame loop through the display
// package: a virtual swap chain on the software device, a resolution and
// fullscreen change requested from another goroutine, and a PNG capture of
// the last presented frame.
package main

import (
	"flag"
	"image"
	"image/png"
	"log"
	"log/slog"
	"os"

	"github.com/gogpu/display"
	"github.com/gogpu/display/backend/software"
	"github.com/gogpu/display/backend/virtual"
	"github.com/gogpu/display/platform/screens"
	"github.com/gogpu/gputypes"
)

func main() {
	var (
		width      = flag.Int("width", 1280, "window width")
		height     = flag.Int("height", 720, "window height")
		frames     = flag.Int("frames", 120, "frames to render")
		hdr        = flag.Bool("hdr", false, "render through the HDR target")
		configPath = flag.String("config", "", "TOML config file")
		output     = flag.String("output", "capture.png", "capture file")
		capWidth   = flag.Int("capture-width", 640, "maximum capture width")
		useScreens = flag.Bool("screens", false, "select outputs from the system displays")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	display.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := display.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = display.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	var outputs display.OutputEnumerator = screens.Static{{
		Index:   0,
		Name:    "virtual",
		Bounds:  image.Rect(0, 0, 1920, 1080),
		Refresh: display.RefreshRate{Numerator: 60, Denominator: 1},
	}}
	if *useScreens {
		outputs = screens.New()
	}

	dev := software.NewDevice()
	th := display.NewThread("render")
	defer th.Close()

	m := display.NewManager(dev,
		display.WithThread(th),
		display.WithConfig(cfg),
		display.WithOutputs(outputs),
		display.WithBackendName(virtual.Name),
	)

	win := virtual.NewWindow(1, image.Rect(100, 100, 100+*width, 100+*height))
	desc := display.DefaultContextDescriptor("main", *width, *height)
	desc.Flags = display.FlagMainViewport
	if *hdr {
		desc.Flags |= display.FlagHDR
	}
	desc.ClearColor = gputypes.Color{R: 0.1, G: 0.2, B: 0.4, A: 1}

	var sc *display.SwapChainDisplayContext
	if err := th.Do(func() {
		var err error
		if sc, err = m.CreateSwapChainContext(win, desc); err != nil {
			log.Fatalf("Failed to create swap chain context: %v", err)
		}
	}); err != nil {
		log.Fatalf("Render thread: %v", err)
	}

	// Main-thread requests are applied at the next frame boundary.
	half := *frames / 2
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.RequestFullscreen(sc.ID(), true, 1920, 1080)
	}()

	for i := 0; i < *frames; i++ {
		if i == half {
			<-done
		}
		err := th.Do(func() {
			frame, err := m.BeginFrame()
			if err != nil {
				slog.Warn("frame requests failed", "err", err)
			}
			out := sc.RenderOutput()
			pass := display.Pass{Name: "scene", Frame: frame}
			if _, err := out.BeginRendering(pass); err != nil {
				slog.Warn("pass skipped", "err", err)
				return
			}
			_ = out.EndRendering(pass)
			if err := m.EndFrame(); err != nil {
				slog.Warn("present failed", "err", err)
			}
		})
		if err != nil {
			log.Fatalf("Render thread: %v", err)
		}
	}

	var (
		img  *image.RGBA
		w, h int
	)
	if err := th.Do(func() {
		w, h = sc.DisplayResolution()
		var err error
		if img, err = display.CaptureContext(sc.DisplayContext, *capWidth); err != nil {
			log.Fatalf("Failed to capture: %v", err)
		}
		m.Close()
	}); err != nil {
		log.Fatalf("Render thread: %v", err)
	}

	f, err := os.Create(*output)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", *output, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		log.Fatalf("Failed to encode: %v", err)
	}

	st := dev.Stats()
	log.Printf("Rendered %d frames at %dx%d, capture saved to %s (textures created=%d live=%d clears=%d)\n",
		*frames, w, h, *output, st.Created, st.Live(), st.Clears)
}

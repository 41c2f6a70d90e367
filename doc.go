// Package display manages the surfaces a frame is drawn into.
//
// # Overview
//
// display owns the resource lifecycle of on-screen and offscreen render
// surfaces: swap chain back buffers, externally supplied buffer sets and the
// color and depth targets each render pass consumes. It does not draw
// anything; a renderer asks a RenderOutput for its targets, records into
// them and presents.
//
// # Quick Start
//
//	dev := software.NewDevice()
//	m := display.NewManager(dev, display.WithBackendName("virtual"))
//	defer m.Close()
//
//	sc, err := m.CreateSwapChainContext(win, display.DefaultContextDescriptor("main", 1280, 720))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for {
//	    frame, _ := m.BeginFrame()
//	    out := sc.RenderOutput()
//	    targets, err := out.BeginRendering(display.Pass{Name: "scene", Frame: frame})
//	    // ... record into targets.Color and targets.Depth
//	    out.EndRendering(display.Pass{Name: "scene", Frame: frame})
//	    m.EndFrame()
//	}
//
// # Contexts
//
// A DisplayContext is one rendering surface. Three kinds exist:
//   - DisplayContext from NewDisplayContext renders into an owned target
//   - SwapChainDisplayContext presents to a window through a SwapChain
//   - CustomDisplayContext renders into caller supplied buffers
//
// Swap chain and custom contexts vend a back-buffer proxy: a Texture whose
// identity is stable across frames and whose device resource is rebound to
// the current physical buffer after every present.
//
// # Textures
//
// Texture is a two-phase handle. The descriptor is valid immediately; the
// device resource is created on first use by Realize, so rapid resize
// sequences never stall on allocation.
//
// # Threading
//
// Contexts and outputs are owned by the render thread. Pass a Thread with
// WithThread to have every mutating call checked. Other goroutines change
// resolution, fullscreen or HDR through the Manager Request methods, which
// are applied at the next BeginFrame.
//
// # Backends
//
// Swap chains come from a SwapChainBackend. Backends register themselves
// with RegisterBackend; blank-import the backend package:
//
//	import _ "github.com/gogpu/display/backend/virtual"
package display

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)

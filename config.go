package display

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Configuration limits.
const (
	// MaxFrameLatencyLimit is the upper bound of Config.MaxFrameLatency.
	MaxFrameLatencyLimit = 4

	// MinCustomResolution is the smallest custom resolution axis.
	MinCustomResolution = 32

	// DefaultCustomResMaxSize is the default custom resolution cap.
	DefaultCustomResMaxSize = 4096

	// MaxBackBufferCount is the largest supported swap chain length.
	MaxBackBufferCount = 4
)

// Config holds the renderer knobs consumed by display, the equivalent of
// console variables. The zero value is not normalized; use DefaultConfig.
type Config struct {
	// MaxFrameLatency is the maximum number of frames in flight.
	MaxFrameLatency int `toml:"max_frame_latency"`

	// CustomResWidth and CustomResHeight override the render resolution of
	// scalable contexts when both are non-zero.
	CustomResWidth  int `toml:"custom_res_width"`
	CustomResHeight int `toml:"custom_res_height"`

	// CustomResMaxSize caps custom resolutions and supersampled sizes.
	CustomResMaxSize int `toml:"custom_res_max_size"`

	// MaxFPS drives the present interval. 0 means unlimited.
	MaxFPS int `toml:"max_fps"`

	// VSync enables synchronized presentation.
	VSync bool `toml:"vsync"`

	// BackBufferCount is the number of swap chain buffers.
	BackBufferCount int `toml:"back_buffer_count"`

	// SuperSampling is the default supersampling factor for main viewports.
	SuperSampling int `toml:"super_sampling"`
}

// DefaultConfig returns the default knobs.
func DefaultConfig() Config {
	return Config{
		MaxFrameLatency:  1,
		CustomResMaxSize: DefaultCustomResMaxSize,
		VSync:            true,
		BackBufferCount:  2,
		SuperSampling:    1,
	}
}

// Normalize clamps every knob into its valid range. maxTextureSize bounds
// CustomResMaxSize; pass 0 when the device limit is unknown.
func (c Config) Normalize(maxTextureSize int) Config {
	c.MaxFrameLatency = min(max(c.MaxFrameLatency, 1), MaxFrameLatencyLimit)
	if c.CustomResMaxSize <= 0 {
		c.CustomResMaxSize = DefaultCustomResMaxSize
	}
	limit := c.CustomResMaxSize
	if maxTextureSize > 0 {
		limit = min(limit, maxTextureSize)
	}
	c.CustomResMaxSize = max(limit, MinCustomResolution)
	c.CustomResWidth = max(c.CustomResWidth, 0)
	c.CustomResHeight = max(c.CustomResHeight, 0)
	c.MaxFPS = max(c.MaxFPS, 0)
	c.BackBufferCount = min(max(c.BackBufferCount, 1), MaxBackBufferCount)
	c.SuperSampling = max(c.SuperSampling, 1)
	return c
}

// HasCustomResolution reports whether a custom resolution is configured.
func (c Config) HasCustomResolution() bool {
	return c.CustomResWidth > 0 && c.CustomResHeight > 0
}

// ParseConfig decodes TOML on top of DefaultConfig and normalizes the result.
func ParseConfig(data []byte) (Config, error) {
	c := DefaultConfig()
	if err := toml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("display: parse config: %w", err)
	}
	return c.Normalize(0), nil
}

// LoadConfig reads a TOML config file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("display: read config: %w", err)
	}
	return ParseConfig(data)
}

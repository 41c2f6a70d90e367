package display

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseConfig(t *testing.T) {
	data := []byte(`
max_frame_latency = 2
custom_res_width = 1600
custom_res_height = 900
max_fps = 72
vsync = false
back_buffer_count = 3
`)
	c, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	want := DefaultConfig()
	want.MaxFrameLatency = 2
	want.CustomResWidth, want.CustomResHeight = 1600, 900
	want.MaxFPS = 72
	want.VSync = false
	want.BackBufferCount = 3
	if c != want {
		t.Errorf("ParseConfig() = %+v, want %+v", c, want)
	}
	if !c.HasCustomResolution() {
		t.Error("HasCustomResolution() = false")
	}
}

func TestParseConfigInvalid(t *testing.T) {
	if _, err := ParseConfig([]byte("max_fps = \"fast\"")); err == nil {
		t.Error("ParseConfig() accepted a string for max_fps")
	}
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name   string
		in     Config
		maxTex int
		check  func(Config) bool
	}{
		{"latency low", Config{MaxFrameLatency: 0}, 0, func(c Config) bool { return c.MaxFrameLatency == 1 }},
		{"latency high", Config{MaxFrameLatency: 9}, 0, func(c Config) bool { return c.MaxFrameLatency == MaxFrameLatencyLimit }},
		{"max size default", Config{}, 0, func(c Config) bool { return c.CustomResMaxSize == DefaultCustomResMaxSize }},
		{"max size device limit", Config{CustomResMaxSize: 16384}, 8192, func(c Config) bool { return c.CustomResMaxSize == 8192 }},
		{"max size floor", Config{CustomResMaxSize: 4}, 0, func(c Config) bool { return c.CustomResMaxSize == MinCustomResolution }},
		{"negative custom", Config{CustomResWidth: -1, CustomResHeight: 720}, 0, func(c Config) bool { return !c.HasCustomResolution() }},
		{"negative fps", Config{MaxFPS: -30}, 0, func(c Config) bool { return c.MaxFPS == 0 }},
		{"buffers", Config{BackBufferCount: 8}, 0, func(c Config) bool { return c.BackBufferCount == MaxBackBufferCount }},
		{"no buffers", Config{}, 0, func(c Config) bool { return c.BackBufferCount == 1 }},
		{"supersampling", Config{SuperSampling: 0}, 0, func(c Config) bool { return c.SuperSampling == 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Normalize(tt.maxTex)
			if !tt.check(got) {
				t.Errorf("Normalize(%d) = %+v", tt.maxTex, got)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "display.toml")
	if err := os.WriteFile(path, []byte("super_sampling = 2\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if c.SuperSampling != 2 {
		t.Errorf("SuperSampling = %d, want 2", c.SuperSampling)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("LoadConfig() of a missing file succeeded")
	}
}

package display

// Option configures a Manager or a standalone display context.
//
// Example:
//
//	th := display.NewThread("render")
//	m := display.NewManager(dev,
//	    display.WithThread(th),
//	    display.WithConfig(cfg),
//	)
type Option func(*options)

// options holds optional configuration.
type options struct {
	thread      *Thread
	config      Config
	outputs     OutputEnumerator
	backend     SwapChainBackend
	backendName string
}

// defaultOptions returns the default options.
func defaultOptions() options {
	return options{config: DefaultConfig()}
}

func buildOptions(device Device, opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	maxTex := 0
	if s, ok := device.(MaxTextureSizer); ok {
		maxTex = s.MaxTextureSize()
	}
	o.config = o.config.Normalize(maxTex)
	return o
}

// WithThread sets the render thread checked on mutating calls.
func WithThread(t *Thread) Option {
	return func(o *options) {
		o.thread = t
	}
}

// WithConfig sets the renderer knobs. The config is normalized against the
// device limits.
func WithConfig(c Config) Option {
	return func(o *options) {
		o.config = c
	}
}

// WithOutputs sets the physical output enumerator used for monitor selection.
func WithOutputs(e OutputEnumerator) Option {
	return func(o *options) {
		o.outputs = e
	}
}

// WithBackend sets the swap chain backend used by a Manager, bypassing the registry.
func WithBackend(b SwapChainBackend) Option {
	return func(o *options) {
		o.backend = b
	}
}

// WithBackendName selects a registered swap chain backend by name.
func WithBackendName(name string) Option {
	return func(o *options) {
		o.backendName = name
	}
}

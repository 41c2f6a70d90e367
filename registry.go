// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package display

import (
	"sort"
	"sync"
)

// BackendFactory creates a swap chain backend presenting through device.
// Implementations should validate device and return descriptive errors.
type BackendFactory func(device Device) (SwapChainBackend, error)

// RegistryEntry represents a registered swap chain backend.
type RegistryEntry struct {
	// Name is the unique identifier for this backend.
	Name string

	// Priority determines selection order (higher = preferred).
	// Standard priorities:
	//   - 100: native presentation (DXGI, Vulkan, GNM)
	//   - 10: virtual swap chains over offscreen targets
	Priority int

	// Factory creates backend instances.
	Factory BackendFactory

	// Available reports if the backend is available on this system.
	Available func() bool
}

// globalRegistry is the default registry.
var globalRegistry = &Registry{}

// Registry manages registered swap chain backends.
//
// Platform backends register themselves from init, selected at link time by
// importing the backend package:
//
//	import _ "github.com/gogpu/display/backend/virtual"
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*RegistryEntry
}

// NewRegistry creates a new empty registry.
// Most code should use the global registry via RegisterBackend.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*RegistryEntry),
	}
}

// RegisterBackend adds a backend to the global registry.
// If available is nil, the backend is assumed always available.
// Registering a name that already exists replaces the previous entry.
func RegisterBackend(name string, priority int, factory BackendFactory, available func() bool) {
	globalRegistry.Register(name, priority, factory, available)
}

// UnregisterBackend removes a backend from the global registry.
func UnregisterBackend(name string) {
	globalRegistry.Unregister(name)
}

// Backends returns names of all available backends sorted by priority.
func Backends() []string {
	return globalRegistry.Available()
}

// NewBackend creates the best available backend for device.
func NewBackend(device Device) (SwapChainBackend, error) {
	return globalRegistry.New(device)
}

// NewBackendByName creates a specific named backend for device.
func NewBackendByName(name string, device Device) (SwapChainBackend, error) {
	return globalRegistry.NewByName(name, device)
}

// Register adds a backend to this registry.
func (r *Registry) Register(name string, priority int, factory BackendFactory, available func() bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries == nil {
		r.entries = make(map[string]*RegistryEntry)
	}
	if available == nil {
		available = func() bool { return true }
	}
	r.entries[name] = &RegistryEntry{
		Name:      name,
		Priority:  priority,
		Factory:   factory,
		Available: available,
	}
}

// Unregister removes a backend from this registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, name)
}

// Get returns the entry registered under name.
func (r *Registry) Get(name string) (*RegistryEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[name]
	return e, ok
}

// List returns all registered backend names sorted by priority.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedNames(false)
}

// Available returns names of all available backends sorted by priority.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.sortedNames(true)
}

// New creates a backend using the best available entry.
func (r *Registry) New(device Device) (SwapChainBackend, error) {
	r.mu.RLock()
	available := r.sortedNames(true)
	r.mu.RUnlock()

	if len(available) == 0 {
		return nil, ErrNoBackendAvailable
	}

	var lastErr error
	for _, name := range available {
		b, err := r.NewByName(name, device)
		if err == nil {
			return b, nil
		}
		Logger().Warn("swap chain backend failed, trying next", "backend", name, "err", err)
		lastErr = err
	}
	return nil, lastErr
}

// NewByName creates a backend using a specific entry.
func (r *Registry) NewByName(name string, device Device) (SwapChainBackend, error) {
	r.mu.RLock()
	entry, ok := r.entries[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &BackendNotFoundError{Name: name}
	}
	if !entry.Available() {
		return nil, &BackendUnavailableError{Name: name}
	}
	return entry.Factory(device)
}

// sortedNames returns backend names sorted by priority (highest first),
// ties broken by name. Must be called with lock held.
func (r *Registry) sortedNames(onlyAvailable bool) []string {
	if len(r.entries) == 0 {
		return nil
	}

	entries := make([]*RegistryEntry, 0, len(r.entries))
	for _, e := range r.entries {
		if onlyAvailable && !e.Available() {
			continue
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority > entries[j].Priority
		}
		return entries[i].Name < entries[j].Name
	})

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

// BackendNotFoundError indicates a named backend is not registered.
type BackendNotFoundError struct {
	Name string
}

func (e *BackendNotFoundError) Error() string {
	return "display: backend not found: " + e.Name
}

// BackendUnavailableError indicates a backend exists but is not available.
type BackendUnavailableError struct {
	Name string
}

func (e *BackendUnavailableError) Error() string {
	return "display: backend unavailable: " + e.Name
}

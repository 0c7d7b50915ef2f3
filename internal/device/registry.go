package device

import (
	"sort"
	"sync"
)

// Registry is the authoritative table of live devices, keyed by ID.
//
// Each entry carries a serialization token (a mutex) shared by every path
// that mutates the device: the scheduler's tick loop and the command/config
// path both go through WithDevice, which guarantees per-device total
// ordering of ticks and commands without a global lock.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	token sync.Mutex
	dev   Device
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

// Add registers a device. Fails with ErrExists if the ID is already live.
func (r *Registry) Add(dev Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[dev.ID()]; ok {
		return ErrExists
	}
	r.entries[dev.ID()] = &entry{dev: dev}
	return nil
}

// Remove unregisters a device. After Remove returns, WithDevice for the ID
// fails with ErrNotFound; a tick or command already holding the token
// completes first because Remove does not contend for it.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return ErrNotFound
	}
	delete(r.entries, id)
	return nil
}

// WithDevice runs fn while holding the device's serialization token. The
// device passed to fn must not be retained past the call.
func (r *Registry) WithDevice(id string, fn func(Device) error) error {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}

	e.token.Lock()
	defer e.token.Unlock()

	// Re-check liveness under the token: the device may have been removed
	// between the lookup and acquiring the token.
	r.mu.RLock()
	cur, live := r.entries[id]
	r.mu.RUnlock()
	if !live || cur != e {
		return ErrNotFound
	}

	return fn(e.dev)
}

// Summary returns the snapshot of a single device.
func (r *Registry) Summary(id string) (Summary, error) {
	var sum Summary
	err := r.WithDevice(id, func(d Device) error {
		sum = d.Summary()
		return nil
	})
	return sum, err
}

// List returns snapshots of all live devices, ordered by name for stable
// output.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	out := make([]Summary, 0, len(ids))
	for _, id := range ids {
		sum, err := r.Summary(id)
		if err != nil {
			continue // removed while listing
		}
		out = append(out, sum)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// IDs returns the IDs of all live devices in no particular order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of live devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

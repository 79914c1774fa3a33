// Package device holds the device-instance identity and probe model shared
// by every driver: an explicitly constructed Registry of instances, rather
// than a process-global list, per the "no hidden ownership" design note.
package device

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Status is a device instance's position in its lifecycle:
// NotFound -> Initializing -> Inactive <-> Active -> Stopping -> Inactive.
type Status int

const (
	StatusNotFound Status = iota
	StatusInitializing
	StatusInactive
	StatusActive
	StatusStopping
)

func (s Status) String() string {
	switch s {
	case StatusNotFound:
		return "not-found"
	case StatusInitializing:
		return "initializing"
	case StatusInactive:
		return "inactive"
	case StatusActive:
		return "active"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Instance is one discovered or opened device. DriverPrivate holds
// engine-owned state (trigger config, sample buffers, transport handles)
// behind an `any`, playing the role of the original's driver-private void*
// payload, but owned by exactly one engine at a time (spec.md §5).
type Instance struct {
	mu sync.Mutex

	ID      uuid.UUID
	Driver  string
	Index   int
	Status  Status
	Vendor  string
	Model   string
	Version string
	Probes  []Probe

	DriverPrivate any
}

// SetStatus transitions the instance's status under its own lock; engines
// should use this instead of writing Status directly, since subscribers may
// read it concurrently from the session loop's wake callbacks.
func (d *Instance) SetStatus(s Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Status = s
}

// CurrentStatus reads the status under the instance's lock.
func (d *Instance) CurrentStatus() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Status
}

// EnabledProbes returns the subset of Probes with Enabled set, in index
// order.
func (d *Instance) EnabledProbes() []Probe {
	out := make([]Probe, 0, len(d.Probes))
	for _, p := range d.Probes {
		if p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// ProbeMask returns the bitset of enabled probe indices.
func (d *Instance) ProbeMask() uint64 {
	var mask uint64
	for _, p := range d.Probes {
		if p.Enabled {
			mask |= p.Bit()
		}
	}
	return mask
}

// Registry is the explicit, caller-constructed collection of device
// instances a driver has discovered. There is no package-level global list:
// callers build one Registry per driver (or share one across drivers) and
// pass it around.
type Registry struct {
	mu        sync.RWMutex
	instances map[uuid.UUID]*Instance
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{instances: make(map[uuid.UUID]*Instance)}
}

// Add registers a newly discovered instance and returns its assigned ID.
func (r *Registry) Add(inst *Instance) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if inst.ID == uuid.Nil {
		inst.ID = uuid.New()
	}
	r.instances[inst.ID] = inst
	return inst.ID
}

// Get looks up an instance by ID.
func (r *Registry) Get(id uuid.UUID) (*Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	if !ok {
		return nil, fmt.Errorf("device: no instance with id %s", id)
	}
	return inst, nil
}

// List returns all registered instances in no particular order.
func (r *Registry) List() []*Instance {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Instance, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	return out
}

// Remove drops an instance from the registry (used by driver Cleanup).
func (r *Registry) Remove(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, id)
}

// Clear empties the registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances = make(map[uuid.UUID]*Instance)
}

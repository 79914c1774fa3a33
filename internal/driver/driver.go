// Package driver defines the capability-driven interface every hardware
// backend must honor (spec.md §4.2). It replaces the C function-pointer
// table (struct sr_dev_driver) with a plain Go interface, per the spec's
// "Polymorphic drivers" design note.
package driver

import (
	"context"

	"github.com/openbench/acquire-core/internal/device"
	"github.com/openbench/acquire-core/internal/session"
)

// Driver is the uniform interface every hardware backend exposes.
type Driver interface {
	// Name is the short driver identifier (e.g. "ols", "dslogic").
	Name() string

	// Init prepares process-wide driver state. Called once before any scan.
	Init(ctx context.Context) error

	// Cleanup releases all resources for all instances this driver owns.
	Cleanup() error

	// Scan probes for instruments reachable given opts and returns any
	// newly discovered device instances, registering them in the driver's
	// internal registry as a side effect.
	Scan(ctx context.Context, opts device.ScanOptions) ([]*device.Instance, error)

	// DevList returns every instance this driver currently knows about.
	DevList() []*device.Instance

	// DevOpen/DevClose transition an instance between Inactive and Active.
	DevOpen(inst *device.Instance) error
	DevClose(inst *device.Instance) error

	// InfoGet answers a capability/metadata query, optionally scoped to a
	// specific instance (some info-ids, like CurrentSamplerate, require
	// one).
	InfoGet(id InfoID, inst *device.Instance) (any, error)

	// ConfigSet applies one configuration capability to an (open) instance.
	ConfigSet(inst *device.Instance, cap ConfigCap, value any) error

	// AcquisitionStart begins streaming datafeed packets for inst. The
	// engine registers its transport source(s) with loop and emits every
	// packet from Header through End via loop.Send; this is the "cb_data"
	// + session-bus pairing from spec.md §4.1/§4.3.
	AcquisitionStart(inst *device.Instance, loop *session.Loop) error

	// AcquisitionStop requests an orderly stop: flush buffered samples,
	// emit End, unregister the instance's session sources. Idempotent.
	AcquisitionStop(inst *device.Instance) error
}

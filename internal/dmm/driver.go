package dmm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/openbench/acquire-core/internal/device"
	acqdriver "github.com/openbench/acquire-core/internal/driver"
	"github.com/openbench/acquire-core/internal/session"
	"github.com/openbench/acquire-core/internal/transport"
	"github.com/openbench/acquire-core/pkg/datafeed"
)

// devContext is the per-instance state a real struct dev_context (generic
// serial-dmm protocol.h) held.
type devContext struct {
	port   transport.SerialPort
	conn   string
	comm   transport.SerialComm
	parser FrameParser

	limitSamples uint64
	numSamples   uint64

	loop *session.Loop
	rs   *scanState
}

// Driver implements driver.Driver for serial multimeters speaking a
// fixed-size framed protocol. Only the rs9lcd parser is wired today; a
// second protocol would add its own FrameParser and a model-hint branch in
// Scan, without touching scanState.
type Driver struct {
	log      *logrus.Logger
	registry *device.Registry

	mu     sync.Mutex
	devctx map[uuid.UUID]*devContext
}

// New constructs a DMM driver against the given registry. log may be nil,
// in which case the standard logrus logger is used.
func New(log *logrus.Logger, registry *device.Registry) *Driver {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Driver{
		log:      log,
		registry: registry,
		devctx:   make(map[uuid.UUID]*devContext),
	}
}

func (d *Driver) Name() string { return "dmm" }

func (d *Driver) Init(ctx context.Context) error { return nil }

func (d *Driver) Cleanup() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, dc := range d.devctx {
		if dc.port != nil {
			dc.port.Close()
		}
		delete(d.devctx, id)
		d.registry.Remove(id)
	}
	return nil
}

// Scan opens conn and listens for a short window; if any byte sequence in
// that window validates against the configured parser, a device instance is
// registered. The 22-812 (and this framework generally) has no
// self-identification, so this is a best-effort listen-and-match rather
// than a request/response handshake like OLS's ID query.
func (d *Driver) Scan(ctx context.Context, opts device.ScanOptions) ([]*device.Instance, error) {
	conn := opts.Connection()
	if conn == "" {
		return nil, fmt.Errorf("dmm: scan requires a connection option")
	}
	comm, err := transport.ParseSerialComm("2400/7n1")
	if err != nil {
		return nil, err
	}
	if spec := opts.SerialComm(); spec != "" {
		parsed, err := transport.ParseSerialComm(spec)
		if err != nil {
			return nil, err
		}
		comm = parsed
	}

	port, err := transport.OpenSerial(conn, comm)
	if err != nil {
		return nil, fmt.Errorf("dmm: open %s: %w", conn, err)
	}
	defer port.Close()
	port.SetReadTimeout(50 * time.Millisecond)

	parser := Parser{}
	frameSize := parser.FrameSize()
	buf := make([]byte, 0, bufSize)
	tmp := make([]byte, frameSize)
	deadline := time.Now().Add(2 * time.Second)

	for time.Now().Before(deadline) {
		n, rerr := port.Read(tmp)
		if rerr != nil {
			return nil, rerr
		}
		if n == 0 {
			continue
		}
		buf = append(buf, tmp[:n]...)
		if len(buf) > bufSize {
			buf = buf[len(buf)-bufSize:]
		}
		for len(buf) >= frameSize {
			if parser.Validate(buf[:frameSize]) == nil {
				inst := &device.Instance{
					ID:      uuid.New(),
					Driver:  d.Name(),
					Index:   0,
					Status:  device.StatusInactive,
					Vendor:  "RadioShack",
					Model:   "22-812",
					Version: "",
					Probes:  []device.Probe{mustAnalogProbe()},
				}
				dc := &devContext{conn: conn, comm: comm, parser: parser}
				d.registry.Add(inst)
				d.mu.Lock()
				d.devctx[inst.ID] = dc
				d.mu.Unlock()
				return []*device.Instance{inst}, nil
			}
			buf = buf[1:]
		}
	}

	return nil, nil
}

func mustAnalogProbe() device.Probe {
	p, _ := device.NewProbe(0, device.KindAnalog, "P1")
	return p
}

func (d *Driver) DevList() []*device.Instance {
	out := make([]*device.Instance, 0)
	for _, inst := range d.registry.List() {
		if inst.Driver == d.Name() {
			out = append(out, inst)
		}
	}
	return out
}

func (d *Driver) devCtx(inst *device.Instance) (*devContext, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dc, ok := d.devctx[inst.ID]
	if !ok {
		return nil, fmt.Errorf("dmm: unknown instance %s", inst.ID)
	}
	return dc, nil
}

func (d *Driver) DevOpen(inst *device.Instance) error {
	dc, err := d.devCtx(inst)
	if err != nil {
		return err
	}
	port, err := transport.OpenSerial(dc.conn, dc.comm)
	if err != nil {
		return fmt.Errorf("dmm: open %s: %w", dc.conn, err)
	}
	dc.port = port
	inst.SetStatus(device.StatusActive)
	return nil
}

func (d *Driver) DevClose(inst *device.Instance) error {
	dc, err := d.devCtx(inst)
	if err != nil {
		return err
	}
	if dc.port != nil {
		dc.port.Close()
		dc.port = nil
	}
	inst.SetStatus(device.StatusInactive)
	return nil
}

func (d *Driver) InfoGet(id acqdriver.InfoID, inst *device.Instance) (any, error) {
	switch id {
	case acqdriver.InfoProbeCount:
		return 1, nil
	case acqdriver.InfoSupportedCapabilities:
		return []acqdriver.ConfigCap{acqdriver.ConfigLimitSamples}, nil
	default:
		return nil, fmt.Errorf("dmm: unsupported info id %d", id)
	}
}

func (d *Driver) ConfigSet(inst *device.Instance, cap acqdriver.ConfigCap, value any) error {
	dc, err := d.devCtx(inst)
	if err != nil {
		return err
	}
	if inst.CurrentStatus() != device.StatusActive {
		return fmt.Errorf("dmm: instance not active")
	}

	switch cap {
	case acqdriver.ConfigLimitSamples:
		n, ok := value.(uint64)
		if !ok {
			return fmt.Errorf("dmm: ConfigLimitSamples wants uint64")
		}
		dc.limitSamples = n
		return nil
	default:
		return fmt.Errorf("dmm: unsupported config capability %d", cap)
	}
}

func (d *Driver) AcquisitionStart(inst *device.Instance, loop *session.Loop) error {
	dc, err := d.devCtx(inst)
	if err != nil {
		return err
	}
	if inst.CurrentStatus() != device.StatusActive {
		return fmt.Errorf("dmm: instance not active")
	}

	dc.numSamples = 0
	rs := &scanState{d: d, dc: dc, inst: inst, loop: loop}
	dc.loop = loop
	dc.rs = rs
	loop.SourceAdd(inst.ID, session.EventReadable, -1, rs.poll, rs.onSource)

	loop.Send(inst, datafeed.Header{FeedVersion: 1, StartTime: time.Now()})

	return nil
}

// AcquisitionStop requests an orderly stop. Idempotent.
func (d *Driver) AcquisitionStop(inst *device.Instance) error {
	dc, err := d.devCtx(inst)
	if err != nil {
		return err
	}
	if dc.rs != nil {
		dc.rs.finish()
	}
	return nil
}

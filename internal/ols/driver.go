package ols

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
)

// devContext is the per-instance state a real sr_dev_inst->priv held in the
// original driver; here it lives behind device.Instance.DriverPrivate.
type devContext struct {
	port transport.SerialPort
	conn string
	comm transport.SerialComm

	maxSamples      uint64
	maxSamplerateHz uint64
	protocolVersion uint32

	curSamplerate     uint64
	samplerateDivider uint32
	flagReg           uint32
	limitSamples      uint64
	captureRatio      uint64
	rle               bool

	probeMask    uint32
	triggerMask  [numTriggerStages]uint32
	triggerValue [numTriggerStages]uint32
	numStages    int
	triggerAt    int64 // -1 means "no trigger configured"

	// acquisition runtime state, reset at the start of each AcquisitionStart.
	numChannels      int
	numTransfers     int
	numSamples       uint64
	numBytesInSample int
	sample           [4]byte
	tmpSample        [4]byte
	rleCount         uint64
	rawSampleBuf     []byte

	loop *session.Loop
	rs   *receiveState
}

// Driver implements driver.Driver for SUMP-protocol logic analyzers
// (Openbench Logic Sniffer and compatible "Sump" clones).
type Driver struct {
	log      *logrus.Logger
	registry *device.Registry

	mu     sync.Mutex
	devctx map[uuid.UUID]*devContext
}

// New constructs an OLS driver against the given registry (see the
// "no hidden ownership" note on device.Registry: drivers never keep a
// process-global instance list of their own). log may be nil, in which
// case the standard logrus logger is used.
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

func (d *Driver) Name() string { return "ols" }

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

// Scan performs the SUMP discovery handshake documented in spec.md §4.1:
// five resets, an ID query, and (if the device answers) a metadata query.
func (d *Driver) Scan(ctx context.Context, opts device.ScanOptions) ([]*device.Instance, error) {
	conn := opts.Connection()
	if conn == "" {
		return nil, fmt.Errorf("ols: scan requires a connection option")
	}
	comm := transport.DefaultSerialComm
	if spec := opts.SerialComm(); spec != "" {
		parsed, err := transport.ParseSerialComm(spec)
		if err != nil {
			return nil, err
		}
		comm = parsed
	}

	port, err := transport.OpenSerial(conn, comm)
	if err != nil {
		return nil, fmt.Errorf("ols: open %s: %w", conn, err)
	}
	defer port.Close()
	port.SetReadTimeout(50 * time.Millisecond)

	for i := 0; i < 5; i++ {
		if err := sendShortCommand(port, cmdReset); err != nil {
			return nil, fmt.Errorf("ols: %s is not writable: %w", conn, err)
		}
	}
	if err := sendShortCommand(port, cmdID); err != nil {
		return nil, err
	}

	time.Sleep(10 * time.Millisecond)
	idBuf, err := readAtLeast(port, 4, 50*time.Millisecond)
	if err != nil || (string(idBuf) != "1SLO" && string(idBuf) != "1ALS") {
		// Not a SUMP-protocol device on this port; not an error, just no
		// match (mirrors hw_scan returning NULL here).
		return nil, nil
	}

	inst := &device.Instance{
		ID:     uuid.New(),
		Driver: d.Name(),
		Index:  0,
		Status: device.StatusInactive,
	}
	dc := &devContext{
		conn:          conn,
		comm:          comm,
		curSamplerate: 200_000_000 / 1, // placeholder, replaced below
		triggerAt:     -1,
	}

	if err := sendShortCommand(port, cmdMeta); err != nil {
		return nil, err
	}
	meta, metaErr := readMetadata(&timedReader{port: port, deadline: time.Now().Add(20 * time.Millisecond)})
	if metaErr == nil && (meta.DeviceName != "" || meta.NumProbes > 0) {
		inst.Vendor = "Openbench"
		inst.Model = meta.DeviceName
		inst.Version = meta.Version
		dc.maxSamples = uint64(meta.MaxSamples)
		dc.maxSamplerateHz = uint64(meta.MaxSamplerateHz)
		dc.protocolVersion = meta.ProtocolVersion
		numProbes := meta.NumProbes
		if numProbes <= 0 {
			numProbes = numProbes32()
		}
		inst.Probes = makeProbes(numProbes)
	} else {
		inst.Vendor = "Sump"
		inst.Model = "Logic Analyzer"
		inst.Version = "v1.0"
		inst.Probes = makeProbes(numProbes32())
	}
	dc.curSamplerate = 200_000_000

	d.registry.Add(inst)
	d.mu.Lock()
	d.devctx[inst.ID] = dc
	d.mu.Unlock()

	return []*device.Instance{inst}, nil
}

func numProbes32() int { return numProbes }

func makeProbes(n int) []device.Probe {
	probes := make([]device.Probe, 0, n)
	for i := 0; i < n; i++ {
		p, _ := device.NewProbe(i, device.KindLogic, fmt.Sprintf("%d", i))
		p.Enabled = true
		probes = append(probes, p)
	}
	return probes
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
		return nil, fmt.Errorf("ols: unknown instance %s", inst.ID)
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
		return fmt.Errorf("ols: open %s: %w", dc.conn, err)
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
		return numProbes, nil
	case acqdriver.InfoTriggerAlphabet:
		return "01", nil
	case acqdriver.InfoSupportedCapabilities:
		return []acqdriver.ConfigCap{
			acqdriver.ConfigSamplerate,
			acqdriver.ConfigCaptureRatio,
			acqdriver.ConfigLimitSamples,
			acqdriver.ConfigRLE,
		}, nil
	case acqdriver.InfoSamplerates:
		dc, err := d.devCtx(inst)
		if err != nil {
			return nil, err
		}
		high := dc.maxSamplerateHz
		if high == 0 {
			high = 200_000_000
		}
		return acqdriver.SamplerateRange{Low: 10, High: high, Step: 1}, nil
	case acqdriver.InfoCurrentSamplerate:
		dc, err := d.devCtx(inst)
		if err != nil {
			return nil, err
		}
		return dc.curSamplerate, nil
	default:
		return nil, fmt.Errorf("ols: unsupported info id %d", id)
	}
}

// setSamplerate implements the divider/demux calculation from ols.c's
// set_samplerate: above the FPGA clock rate, the demux mode doubles the
// effective rate by sampling both clock edges.
func (dc *devContext) setSamplerate(hz uint64) error {
	if dc.maxSamplerateHz != 0 && hz > dc.maxSamplerateHz {
		return fmt.Errorf("ols: samplerate %d exceeds max %d", hz, dc.maxSamplerateHz)
	}
	if hz == 0 {
		return fmt.Errorf("ols: samplerate must be nonzero")
	}

	if hz > clockRateHz {
		dc.flagReg |= flagDemux
		dc.samplerateDivider = uint32(clockRateHz*2/hz) - 1
	} else {
		dc.flagReg &^= flagDemux
		dc.samplerateDivider = uint32(clockRateHz/hz) - 1
	}

	dc.curSamplerate = clockRateHz / uint64(dc.samplerateDivider+1)
	if dc.flagReg&flagDemux != 0 {
		dc.curSamplerate *= 2
	}
	return nil
}

func (d *Driver) ConfigSet(inst *device.Instance, cap acqdriver.ConfigCap, value any) error {
	dc, err := d.devCtx(inst)
	if err != nil {
		return err
	}
	if inst.CurrentStatus() != device.StatusActive {
		return fmt.Errorf("ols: instance not active")
	}

	switch cap {
	case acqdriver.ConfigSamplerate:
		hz, ok := value.(uint64)
		if !ok {
			return fmt.Errorf("ols: ConfigSamplerate wants uint64")
		}
		return dc.setSamplerate(hz)
	case acqdriver.ConfigLimitSamples:
		n, ok := value.(uint64)
		if !ok {
			return fmt.Errorf("ols: ConfigLimitSamples wants uint64")
		}
		if n < acqdriver.MinNumSamples {
			return fmt.Errorf("ols: limit samples %d below minimum %d", n, acqdriver.MinNumSamples)
		}
		if dc.maxSamples != 0 && n > dc.maxSamples {
			d.log.Warnf("ols: sample limit %d exceeds hardware max %d", n, dc.maxSamples)
		}
		dc.limitSamples = n
		return nil
	case acqdriver.ConfigCaptureRatio:
		ratio, ok := value.(uint64)
		if !ok {
			return fmt.Errorf("ols: capture ratio must be 0-100")
		}
		if ratio > 100 {
			dc.captureRatio = 0
			return fmt.Errorf("ols: capture ratio must be 0-100")
		}
		dc.captureRatio = ratio
		return nil
	case acqdriver.ConfigRLE:
		enabled, ok := value.(bool)
		if !ok {
			return fmt.Errorf("ols: ConfigRLE wants bool")
		}
		dc.rle = enabled
		if enabled {
			dc.flagReg |= flagRLE
		} else {
			dc.flagReg &^= flagRLE
		}
		return nil
	default:
		return fmt.Errorf("ols: unsupported config capability %d", cap)
	}
}

// configureProbes builds the trigger mask/value registers and probe mask
// from inst.Probes, mirroring ols.c's configure_probes. OLS trigger stages
// are level-only: TriggerExpr may contain only '0'/'1' characters.
func configureProbes(dc *devContext, inst *device.Instance) error {
	dc.probeMask = 0
	dc.triggerMask = [numTriggerStages]uint32{}
	dc.triggerValue = [numTriggerStages]uint32{}
	dc.numStages = 0

	for _, p := range inst.Probes {
		if !p.Enabled {
			continue
		}
		bit := uint32(1) << uint(p.Index)
		dc.probeMask |= bit

		if p.TriggerExpr == "" {
			continue
		}
		stage := 0
		for _, c := range p.TriggerExpr {
			if c != '0' && c != '1' {
				return fmt.Errorf("ols: trigger char %q not supported (only 0/1)", c)
			}
			if stage >= numTriggerStages {
				return fmt.Errorf("ols: trigger expression exceeds %d stages", numTriggerStages)
			}
			dc.triggerMask[stage] |= bit
			if c == '1' {
				dc.triggerValue[stage] |= bit
			}
			stage++
		}
		if stage > dc.numStages {
			dc.numStages = stage
		}
	}
	return nil
}

func (d *Driver) AcquisitionStart(inst *device.Instance, loop *session.Loop) error {
	dc, err := d.devCtx(inst)
	if err != nil {
		return err
	}
	if inst.CurrentStatus() != device.StatusActive {
		return fmt.Errorf("ols: instance not active")
	}
	if err := configureProbes(dc, inst); err != nil {
		return err
	}

	var changrpMask uint32
	numChannels := 0
	for i := 0; i < 4; i++ {
		if dc.probeMask&(0xff<<(uint(i)*8)) != 0 {
			changrpMask |= 1 << uint(i)
			numChannels++
		}
	}
	if numChannels == 0 {
		return fmt.Errorf("ols: no enabled probes")
	}
	dc.numChannels = numChannels

	readcount := dc.limitSamples
	if dc.maxSamples != 0 {
		maxByChannels := dc.maxSamples / uint64(numChannels)
		if maxByChannels < readcount {
			readcount = maxByChannels
		}
	}
	readcount /= 4
	if readcount == 0 {
		readcount = 1
	}

	var triggerConfig [numTriggerStages]uint32
	if dc.numStages > 0 {
		triggerConfig[dc.numStages-1] |= 0x08
	} else {
		triggerConfig[0] |= 0x08
	}

	var delaycount uint64
	if dc.triggerMask[0] != 0 {
		delaycount = uint64(float64(readcount) * (1 - float64(dc.captureRatio)/100.0))
		dc.triggerAt = int64(readcount-delaycount)*4 - int64(dc.numStages)

		for stage := 0; stage < numTriggerStages; stage++ {
			maskCmd, valCmd, cfgCmd := stageCommands(stage)
			if err := sendLongCommand(dc.port, maskCmd, reverse32(dc.triggerMask[stage])); err != nil {
				return err
			}
			if err := sendLongCommand(dc.port, valCmd, reverse32(dc.triggerValue[stage])); err != nil {
				return err
			}
			if err := sendLongCommand(dc.port, cfgCmd, triggerConfig[stage]); err != nil {
				return err
			}
		}
	} else {
		maskCmd, valCmd, cfgCmd := stageCommands(0)
		if err := sendLongCommand(dc.port, maskCmd, dc.triggerMask[0]); err != nil {
			return err
		}
		if err := sendLongCommand(dc.port, valCmd, dc.triggerValue[0]); err != nil {
			return err
		}
		if err := sendLongCommand(dc.port, cfgCmd, 0x00000008); err != nil {
			return err
		}
		delaycount = readcount
		dc.triggerAt = -1
	}

	if err := sendLongCommand(dc.port, cmdDivider, reverse32(dc.samplerateDivider)); err != nil {
		return err
	}

	data := ((uint32(readcount-1) & 0xffff) << 16) | (uint32(delaycount-1) & 0xffff)
	if err := sendLongCommand(dc.port, cmdCapture, reverse16(data)); err != nil {
		return err
	}

	dc.flagReg |= ^(changrpMask << 2) & 0x3c
	dc.flagReg |= flagFilter
	dc.rleCount = 0
	flagsData := (dc.flagReg << 24) | ((dc.flagReg << 8) & 0xff0000)
	if err := sendLongCommand(dc.port, cmdFlags, flagsData); err != nil {
		return err
	}

	if err := sendShortCommand(dc.port, cmdRun); err != nil {
		return err
	}

	dc.numTransfers = 0
	dc.numSamples = 0
	dc.numBytesInSample = 0
	dc.rawSampleBuf = nil

	rs := &receiveState{d: d, dc: dc, inst: inst, loop: loop}
	dc.loop = loop
	dc.rs = rs
	loop.SourceAdd(inst.ID, session.EventReadable, -1, rs.poll, rs.onSource)

	loop.Send(inst, header())
	loop.Send(inst, metaLogic(dc))

	return nil
}

// AcquisitionStop requests an orderly stop. It is idempotent: calling it
// after the receive state machine already finished on its own (timeout-
// triggered finalization) is a no-op.
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

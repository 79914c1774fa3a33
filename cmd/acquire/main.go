package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/openbench/acquire-core/internal/config"
	"github.com/openbench/acquire-core/internal/device"
	acqdriver "github.com/openbench/acquire-core/internal/driver"
	"github.com/openbench/acquire-core/internal/dmm"
	"github.com/openbench/acquire-core/internal/dslogic"
	"github.com/openbench/acquire-core/internal/monitor"
	"github.com/openbench/acquire-core/internal/ols"
	"github.com/openbench/acquire-core/internal/session"
	"github.com/openbench/acquire-core/internal/sink/redissink"
)

var (
	Version   = "0.1.0"
	BuildTime = "unknown"
)

func main() {
	configFile := flag.String("config", "configs/config.yaml", "path to configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("acquire-core v%s (build %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "acquire: load config: %v\n", err)
		cfg = config.DefaultConfig()
		fmt.Fprintln(os.Stderr, "acquire: falling back to default configuration")
	}

	log := setupLogger(cfg.Log)
	log.Infof("acquire-core v%s starting", Version)
	log.Infof("config file: %s", *configFile)

	registry := device.NewRegistry()
	drv, err := buildDriver(cfg.Acquisition.Driver, log, registry)
	if err != nil {
		log.WithError(err).Fatal("acquire: unsupported driver")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Acquisition.ScanTimeout)
	defer cancel()
	if err := drv.Init(ctx); err != nil {
		log.WithError(err).Fatal("acquire: driver init failed")
	}

	opts := device.ScanOptions{
		device.OptionConnection: cfg.Acquisition.Connection,
		device.OptionSerialComm: cfg.Acquisition.SerialComm,
	}
	instances, err := drv.Scan(ctx, opts)
	if err != nil {
		log.WithError(err).Fatal("acquire: scan failed")
	}
	if len(instances) == 0 {
		log.Fatal("acquire: scan found no matching device")
	}
	inst := instances[0]
	log.WithField("device_id", inst.ID).Infof("acquire: found %s %s", inst.Vendor, inst.Model)

	if err := drv.DevOpen(inst); err != nil {
		log.WithError(err).Fatal("acquire: open device failed")
	}
	defer drv.DevClose(inst)

	if err := applyConfig(drv, inst, cfg.Acquisition); err != nil {
		log.WithError(err).Fatal("acquire: configure device failed")
	}

	loop := session.New(log)

	var sink *redissink.Sink
	if cfg.Redis.Addr != "" {
		sink, err = redissink.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.Channel, cfg.Redis.DB, cfg.Redis.PoolSize, cfg.Redis.BackupList, log)
		if err != nil {
			log.WithError(err).Fatal("acquire: redis sink unavailable")
		}
		defer sink.Close()
		loop.DatafeedSubscribe(sink.AsDatafeedFunc())
	}

	if cfg.Monitor.Enabled {
		mon := monitor.NewMonitor(log)
		mon.StartMetricsServer(cfg.Monitor.MetricsPort)
		mon.StartRuntimeMonitor()
		monitor.DevicesOpen.Inc()
		defer monitor.DevicesOpen.Dec()

		loop.DatafeedSubscribe(func(inst *device.Instance, packet any) {
			monitor.PacketsEmitted.WithLabelValues(inst.Driver, fmt.Sprintf("%T", packet)).Inc()
		})
	}

	if err := drv.AcquisitionStart(inst, loop); err != nil {
		log.WithError(err).Fatal("acquire: acquisition start failed")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("acquire: shutdown signal received")
		if err := drv.AcquisitionStop(inst); err != nil {
			log.WithError(err).Warn("acquire: acquisition stop failed")
		}
		loop.Stop()
	}()

	loop.Run()

	if err := drv.Cleanup(); err != nil {
		log.WithError(err).Warn("acquire: cleanup failed")
	}
	log.Info("acquire: stopped")
}

func buildDriver(name string, log *logrus.Logger, registry *device.Registry) (acqdriver.Driver, error) {
	switch name {
	case "ols":
		return ols.New(log, registry), nil
	case "dslogic":
		return dslogic.New(log, registry), nil
	case "dmm", "rs9lcd":
		return dmm.New(log, registry), nil
	default:
		return nil, fmt.Errorf("unknown driver %q", name)
	}
}

// applyConfig pushes the configured acquisition parameters onto inst,
// skipping capabilities the driver doesn't advertise rather than failing
// outright (a DMM driver has no samplerate to set, for instance).
func applyConfig(drv acqdriver.Driver, inst *device.Instance, acq config.AcquisitionConfig) error {
	caps, err := drv.InfoGet(acqdriver.InfoSupportedCapabilities, inst)
	if err != nil {
		return err
	}
	supported := make(map[acqdriver.ConfigCap]bool)
	for _, c := range caps.([]acqdriver.ConfigCap) {
		supported[c] = true
	}

	if supported[acqdriver.ConfigSamplerate] && acq.Samplerate > 0 {
		if err := drv.ConfigSet(inst, acqdriver.ConfigSamplerate, acq.Samplerate); err != nil {
			return err
		}
	}
	if supported[acqdriver.ConfigLimitSamples] && acq.LimitSamples > 0 {
		if err := drv.ConfigSet(inst, acqdriver.ConfigLimitSamples, acq.LimitSamples); err != nil {
			return err
		}
	}
	if supported[acqdriver.ConfigCaptureRatio] {
		if err := drv.ConfigSet(inst, acqdriver.ConfigCaptureRatio, acq.CaptureRatio); err != nil {
			return err
		}
	}
	if supported[acqdriver.ConfigRLE] {
		if err := drv.ConfigSet(inst, acqdriver.ConfigRLE, acq.RLE); err != nil {
			return err
		}
	}
	return nil
}

func setupLogger(cfg config.LogConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}

	if cfg.Output == "file" && cfg.FilePath != "" {
		file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err == nil {
			log.SetOutput(file)
		} else {
			log.Warnf("acquire: open log file failed: %v, using stdout", err)
		}
	}

	return log
}

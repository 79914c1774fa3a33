// Package transport wraps the byte/transfer primitives the engines need:
// a serial port and a USB device, each behind a narrow interface so the
// engines never import the underlying driver library directly (spec.md
// §1 keeps concrete transport drivers out of scope; this package is the
// adapter boundary the core actually consumes).
package transport

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// SerialPort is the minimal surface an engine needs from a serial
// connection: read/write bytes and close it. Kept deliberately narrow, in
// the style of the example pack's SerialPorter interface.
type SerialPort interface {
	io.ReadWriter
	io.Closer
	// SetReadTimeout changes how long Read blocks before returning
	// (io.EOF-free) zero bytes. A timeout of 0 makes Read non-blocking.
	SetReadTimeout(d time.Duration) error
}

// SerialComm holds the parsed form of a "<baudrate>/<databits><parity><stopbits>"
// spec string (spec.md §6).
type SerialComm struct {
	BaudRate int
	DataBits int
	Parity   serial.Parity
	StopBits serial.StopBits
}

// DefaultSerialComm is used when no serial-comm-spec option is given.
var DefaultSerialComm = SerialComm{BaudRate: 115200, DataBits: 8, Parity: serial.NoParity, StopBits: serial.OneStopBit}

// ParseSerialComm parses a "9600/8n1"-shaped spec string.
func ParseSerialComm(spec string) (SerialComm, error) {
	var baud, data int
	var parity, stopText string
	n, err := fmt.Sscanf(spec, "%d/%d%1s%s", &baud, &data, &parity, &stopText)
	if err != nil || n < 3 {
		return SerialComm{}, fmt.Errorf("transport: invalid serial-comm-spec %q", spec)
	}

	sc := SerialComm{BaudRate: baud, DataBits: data}
	switch parity {
	case "n":
		sc.Parity = serial.NoParity
	case "e":
		sc.Parity = serial.EvenParity
	case "o":
		sc.Parity = serial.OddParity
	default:
		return SerialComm{}, fmt.Errorf("transport: invalid parity %q in %q", parity, spec)
	}
	switch stopText {
	case "1", "":
		sc.StopBits = serial.OneStopBit
	case "2":
		sc.StopBits = serial.TwoStopBits
	case "1.5":
		sc.StopBits = serial.OnePointFiveStopBits
	default:
		return SerialComm{}, fmt.Errorf("transport: invalid stop bits %q in %q", stopText, spec)
	}
	return sc, nil
}

// serialAdapter wraps a go.bug.st/serial port to satisfy SerialPort.
type serialAdapter struct {
	port serial.Port
}

// OpenSerial opens path with the given communication parameters.
func OpenSerial(path string, comm SerialComm) (SerialPort, error) {
	mode := &serial.Mode{
		BaudRate: comm.BaudRate,
		DataBits: comm.DataBits,
		Parity:   comm.Parity,
		StopBits: comm.StopBits,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open serial %s: %w", path, err)
	}
	return &serialAdapter{port: port}, nil
}

func (s *serialAdapter) Read(p []byte) (int, error)  { return s.port.Read(p) }
func (s *serialAdapter) Write(p []byte) (int, error) { return s.port.Write(p) }
func (s *serialAdapter) Close() error                { return s.port.Close() }

func (s *serialAdapter) SetReadTimeout(d time.Duration) error {
	return s.port.SetReadTimeout(d)
}

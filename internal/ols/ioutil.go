package ols

import (
	"fmt"
	"time"

	"github.com/openbench/acquire-core/internal/transport"
)

// readAtLeast blocks, retrying short reads, until n bytes have been
// accumulated from port or overallTimeout elapses.
func readAtLeast(port transport.SerialPort, n int, overallTimeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(overallTimeout)
	buf := make([]byte, 0, n)
	tmp := make([]byte, n)
	for len(buf) < n {
		if time.Now().After(deadline) {
			return buf, fmt.Errorf("ols: timed out waiting for %d bytes (got %d)", n, len(buf))
		}
		m, err := port.Read(tmp[:n-len(buf)])
		if err != nil {
			return buf, err
		}
		if m == 0 {
			time.Sleep(time.Millisecond)
			continue
		}
		buf = append(buf, tmp[:m]...)
	}
	return buf, nil
}

// timedReader adapts a transport.SerialPort's timeout-returns-zero-bytes
// read semantics into a plain io.Reader that gives up with an error past
// deadline, so callers like readMetadata never block forever on a device
// that stops replying mid-stream.
type timedReader struct {
	port     transport.SerialPort
	deadline time.Time
}

func (t *timedReader) Read(p []byte) (int, error) {
	for {
		if time.Now().After(t.deadline) {
			return 0, fmt.Errorf("ols: read timed out")
		}
		n, err := t.port.Read(p)
		if err != nil {
			return n, err
		}
		if n > 0 {
			return n, nil
		}
		time.Sleep(time.Millisecond)
	}
}
